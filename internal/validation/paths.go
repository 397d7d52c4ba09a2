// Package validation checks names and paths that come from the backend
// before they touch the local filesystem.
package validation

import (
	"fmt"
	"path/filepath"
	"strings"
)

// ValidateFilename rejects a backend-supplied file name that could escape
// the download directory: empty, containing a separator or NUL, or "..".
func ValidateFilename(filename string) error {
	if filename == "" {
		return fmt.Errorf("filename cannot be empty")
	}
	if strings.ContainsRune(filename, 0) {
		return fmt.Errorf("filename contains null byte: %q", filename)
	}
	if strings.ContainsRune(filename, '/') || strings.ContainsRune(filename, '\\') {
		return fmt.Errorf("filename cannot contain path separators: %s", filename)
	}
	// "foo..bar.pdf" is fine; only the bare parent reference is dangerous.
	if filename == ".." || filename == "." {
		return fmt.Errorf("filename cannot be %q", filename)
	}
	return nil
}

// SafeFilename turns a display name into something ValidateFilename accepts,
// replacing separators and control characters. fallback is used when
// nothing usable remains.
func SafeFilename(name, fallback string) string {
	name = strings.Map(func(r rune) rune {
		switch {
		case r == '/' || r == '\\' || r == ':':
			return '_'
		case r < 0x20 || r == 0x7f:
			return -1
		}
		return r
	}, strings.TrimSpace(name))
	if ValidateFilename(name) != nil {
		return fallback
	}
	return name
}

// ValidatePathInDirectory checks that path, resolved against baseDir when
// relative, stays within baseDir.
//
//	ValidatePathInDirectory("../../etc/passwd", "/tmp/downloads") // error
//	ValidatePathInDirectory("FY/invoice.pdf", "/tmp/downloads")  // ok
func ValidatePathInDirectory(path string, baseDir string) error {
	if path == "" {
		return fmt.Errorf("path cannot be empty")
	}
	if baseDir == "" {
		return fmt.Errorf("base directory cannot be empty")
	}

	cleanBase, err := filepath.Abs(filepath.Clean(baseDir))
	if err != nil {
		return fmt.Errorf("failed to resolve base directory: %w", err)
	}

	resolved := filepath.Clean(path)
	if !filepath.IsAbs(resolved) {
		resolved = filepath.Join(cleanBase, resolved)
	}

	rel, err := filepath.Rel(cleanBase, resolved)
	if err != nil {
		return fmt.Errorf("failed to compute relative path: %w", err)
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return fmt.Errorf("path escapes base directory: %s (base: %s)", path, baseDir)
	}
	return nil
}
