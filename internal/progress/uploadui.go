package progress

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/vbauerster/mpb/v8"
	"github.com/vbauerster/mpb/v8/decor"
	"golang.org/x/term"

	"github.com/mrd/ca-drive/internal/drive"
)

// UploadUI renders one mpb bar per concurrent upload. It implements
// drive.UploadObserver. Without a terminal it prints one line per file.
type UploadUI struct {
	progress   *mpb.Progress
	out        io.Writer
	isTerminal bool
	folderPath string
	totalFiles int
	started    int32
	completed  int32
	failed     int32

	mu   sync.Mutex
	bars map[string]*fileBar
}

type fileBar struct {
	bar       *mpb.Bar
	index     int
	startTime time.Time
}

// NewUploadUI creates an upload UI for a batch of totalFiles going to folderPath.
func NewUploadUI(totalFiles int, folderPath string) *UploadUI {
	isTerminal := term.IsTerminal(int(os.Stderr.Fd()))
	if isTerminal {
		enableANSI(os.Stderr)
	}
	return newUploadUI(os.Stderr, isTerminal, totalFiles, folderPath)
}

func newUploadUI(out io.Writer, isTerminal bool, totalFiles int, folderPath string) *UploadUI {
	var p *mpb.Progress
	if isTerminal {
		p = mpb.New(
			mpb.WithOutput(out),
			mpb.WithRefreshRate(300*time.Millisecond),
			mpb.WithWidth(100),
		)
	} else {
		p = mpb.New(mpb.WithOutput(io.Discard))
	}
	return &UploadUI{
		progress:   p,
		out:        out,
		isTerminal: isTerminal,
		folderPath: folderPath,
		totalFiles: totalFiles,
		bars:       make(map[string]*fileBar),
	}
}

// Start opens a bar for f and returns a reader that advances it.
func (u *UploadUI) Start(f drive.LocalFile, r io.Reader) io.Reader {
	index := int(atomic.AddInt32(&u.started, 1))
	fb := &fileBar{index: index, startTime: time.Now()}
	label := truncatePath(displayPath(f), 2)

	if u.isTerminal {
		fb.bar = u.progress.New(f.Size,
			mpb.BarStyle().Lbound("[").Filler("█").Tip("█").Padding("░").Rbound("]"),
			mpb.PrependDecorators(
				decor.Name(fmt.Sprintf("[%d/%d] %s (%.1f MiB) → %s",
					index, u.totalFiles, label, mib(f.Size), u.folderPath), decor.WCSyncSpace),
			),
			mpb.AppendDecorators(
				decor.CountersKibiByte("% .1f / % .1f", decor.WCSyncSpace),
				decor.Name("  "),
				decor.Percentage(decor.WCSyncSpace),
				decor.Name("  "),
				decor.EwmaSpeed(decor.SizeB1024(0), "% .1f", 30, decor.WCSyncSpace),
			),
			mpb.BarRemoveOnComplete(),
		)
		r = fb.bar.ProxyReader(r)
	} else {
		fmt.Fprintf(u.out, "Uploading [%d/%d]: %s (%.1f MiB) → %s\n",
			index, u.totalFiles, label, mib(f.Size), u.folderPath)
	}

	u.mu.Lock()
	u.bars[barKey(f)] = fb
	u.mu.Unlock()
	return r
}

// Finish completes or aborts the bar for f and prints a summary line.
func (u *UploadUI) Finish(f drive.LocalFile, err error) {
	u.mu.Lock()
	fb := u.bars[barKey(f)]
	delete(u.bars, barKey(f))
	u.mu.Unlock()

	elapsed := time.Duration(0)
	if fb != nil {
		elapsed = time.Since(fb.startTime)
	}
	label := truncatePath(displayPath(f), 2)

	var msg string
	if err == nil {
		if fb != nil && fb.bar != nil {
			fb.bar.SetTotal(f.Size, true)
		}
		msg = fmt.Sprintf("✓ %s → %s (%.1f MiB, %s)\n", label, u.folderPath, mib(f.Size), elapsed.Round(time.Millisecond))
	} else {
		atomic.AddInt32(&u.failed, 1)
		if fb != nil && fb.bar != nil {
			fb.bar.Abort(false)
		}
		msg = fmt.Sprintf("✗ %s → %s: %v\n", label, u.folderPath, err)
	}
	atomic.AddInt32(&u.completed, 1)

	// Writing through mpb keeps the line above the bars.
	if _, werr := u.Writer().Write([]byte(msg)); werr != nil {
		fmt.Fprint(os.Stderr, msg)
	}
}

// Wait blocks until all bars are done.
func (u *UploadUI) Wait() {
	u.progress.Wait()
}

// Writer returns an io.Writer that prints above the bars.
func (u *UploadUI) Writer() io.Writer {
	if u.isTerminal {
		return u.progress
	}
	return u.out
}

// IsTerminal returns true if bars are drawn.
func (u *UploadUI) IsTerminal() bool {
	return u.isTerminal
}

// Counts returns how many files finished and how many of them failed.
func (u *UploadUI) Counts() (completed, failed int) {
	return int(atomic.LoadInt32(&u.completed)), int(atomic.LoadInt32(&u.failed))
}

func barKey(f drive.LocalFile) string {
	if f.Path != "" {
		return f.Path
	}
	return f.Name
}

func displayPath(f drive.LocalFile) string {
	if f.Path != "" {
		return f.Path
	}
	return f.Name
}

func mib(n int64) float64 {
	return float64(n) / (1024 * 1024)
}

// truncatePath keeps only the last N components.
// Example: truncatePath("/a/b/c/d/file.txt", 3) → "…/c/d/file.txt"
func truncatePath(path string, maxComponents int) string {
	parts := strings.Split(filepath.ToSlash(path), "/")
	if len(parts) <= maxComponents {
		return filepath.Base(path)
	}
	return "…/" + strings.Join(parts[len(parts)-maxComponents:], "/")
}
