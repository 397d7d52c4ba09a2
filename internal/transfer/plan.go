package transfer

import (
	"fmt"
	"path/filepath"

	"github.com/mrd/ca-drive/internal/models"
	"github.com/mrd/ca-drive/internal/validation"
)

// URLResolver turns a file's fileUrl into an absolute URL.
type URLResolver func(fileURL string) (string, error)

// Plan builds one Request per file, all targeting destDir. Names that are
// unsafe on disk are cleaned, and when two files would land on the same
// path each gets its ID inserted before the extension:
//
//	invoice.pdf, invoice.pdf -> invoice_f1.pdf, invoice_f2.pdf
//
// It returns the requests and how many files were renamed for collisions.
func Plan(files []models.File, destDir string, resolve URLResolver, overwrite bool) ([]Request, int, error) {
	reqs := make([]Request, 0, len(files))
	byName := make(map[string][]int)

	for _, f := range files {
		u := f.FileURL
		if resolve != nil {
			var err error
			if u, err = resolve(f.FileURL); err != nil {
				return nil, 0, fmt.Errorf("%s: %w", f.FileName, err)
			}
		}
		name := validation.SafeFilename(f.FileName, f.ID)
		byName[name] = append(byName[name], len(reqs))
		reqs = append(reqs, Request{
			URL:       u,
			DestDir:   destDir,
			FileName:  name,
			Size:      f.FileSize,
			Overwrite: overwrite,
		})
	}

	renamed := 0
	for name, idx := range byName {
		if len(idx) < 2 {
			continue
		}
		renamed += len(idx)
		ext := filepath.Ext(name)
		base := name[:len(name)-len(ext)]
		for _, i := range idx {
			reqs[i].FileName = validation.SafeFilename(fmt.Sprintf("%s_%s%s", base, files[i].ID, ext), files[i].ID)
		}
	}
	return reqs, renamed, nil
}
