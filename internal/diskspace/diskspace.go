// Package diskspace checks free space on the filesystem a download lands on.
package diskspace

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/mrd/ca-drive/internal/constants"
)

// InsufficientSpaceError indicates that there is not enough disk space available.
type InsufficientSpaceError struct {
	Path           string
	RequiredBytes  int64
	AvailableBytes int64
}

func (e *InsufficientSpaceError) Error() string {
	requiredMB := float64(e.RequiredBytes) / (1024 * 1024)
	availableMB := float64(e.AvailableBytes) / (1024 * 1024)
	return fmt.Sprintf("insufficient disk space for %s: need %.2f MB, have %.2f MB available",
		e.Path, requiredMB, availableMB)
}

// CheckAvailableSpace checks the filesystem that targetPath will be created on.
// safetyMargin multiplies requiredBytes (1.15 for a 15% buffer). When free
// space cannot be determined the check passes and the write fails naturally.
func CheckAvailableSpace(targetPath string, requiredBytes int64, safetyMargin float64) error {
	available, ok := availableBytes(filepath.Dir(targetPath))
	if !ok {
		return nil
	}

	requiredWithMargin := int64(float64(requiredBytes) * safetyMargin)
	if available < requiredWithMargin {
		return &InsufficientSpaceError{
			Path:           targetPath,
			RequiredBytes:  requiredWithMargin,
			AvailableBytes: available,
		}
	}
	return nil
}

// CheckForDownload applies the default download buffer.
func CheckForDownload(targetPath string, size int64) error {
	if size <= 0 {
		return nil
	}
	return CheckAvailableSpace(targetPath, size, 1+constants.DiskSpaceBufferPercent)
}

// GetAvailableSpace returns the available space in bytes for the filesystem
// containing the given path. Returns 0 if unable to determine.
func GetAvailableSpace(path string) int64 {
	n, ok := availableBytes(filepath.Dir(path))
	if !ok {
		return 0
	}
	return n
}

// IsInsufficientSpaceError reports whether err wraps an InsufficientSpaceError.
func IsInsufficientSpaceError(err error) bool {
	var target *InsufficientSpaceError
	return errors.As(err, &target)
}
