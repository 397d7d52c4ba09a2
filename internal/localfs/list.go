package localfs

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"
)

// FileEntry represents a file or directory in the local filesystem.
type FileEntry struct {
	Path    string
	Name    string
	Size    int64 // 0 for directories
	IsDir   bool
	ModTime time.Time
}

// ListDirectory returns the entries of a directory sorted by name.
// Entries that cannot be stat'ed are skipped.
func ListDirectory(path string, opts ListOptions) ([]FileEntry, error) {
	entries, err := os.ReadDir(path)
	if err != nil {
		return nil, err
	}

	result := make([]FileEntry, 0, len(entries))
	for _, entry := range entries {
		name := entry.Name()
		if !opts.IncludeHidden && IsHiddenName(name) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		fe := FileEntry{
			Path:    filepath.Join(path, name),
			Name:    name,
			IsDir:   entry.IsDir(),
			ModTime: info.ModTime(),
		}
		if !fe.IsDir {
			fe.Size = info.Size()
		}
		result = append(result, fe)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	return result, nil
}

// UploadCandidates expands path into the files an upload should send. A
// regular file is returned as is, hidden or not. A directory contributes its
// regular files but not its subdirectories; it is an error for it to have none.
func UploadCandidates(path string, opts ListOptions) ([]FileEntry, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		if !info.Mode().IsRegular() {
			return nil, fmt.Errorf("%s is not a regular file", path)
		}
		return []FileEntry{{
			Path:    path,
			Name:    filepath.Base(path),
			Size:    info.Size(),
			ModTime: info.ModTime(),
		}}, nil
	}

	entries, err := ListDirectory(path, opts)
	if err != nil {
		return nil, err
	}
	files := entries[:0]
	for _, e := range entries {
		if e.IsDir {
			continue
		}
		// Symlinks and devices are left out.
		if st, err := os.Lstat(e.Path); err != nil || !st.Mode().IsRegular() {
			continue
		}
		files = append(files, e)
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no files in %s", path)
	}
	return files, nil
}
