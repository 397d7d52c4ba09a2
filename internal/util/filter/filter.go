// Package filter narrows drive file listings by glob and substring.
package filter

import (
	"path/filepath"
	"strings"

	"github.com/mrd/ca-drive/internal/models"
)

// Config holds filter configuration.
type Config struct {
	// Include patterns (glob-style). Empty means include all.
	// Example: []string{"*.pdf", "GSTR*"}
	Include []string

	// Exclude patterns (glob-style). Takes precedence over Include.
	Exclude []string

	// Search terms (case-insensitive substring match).
	// File must match ALL search terms to be included.
	Search []string

	// Kinds restricts by file kind ("pdf", "spreadsheet", "image", "other").
	Kinds []models.FileKind
}

// Empty reports whether the config filters nothing.
func (c Config) Empty() bool {
	return len(c.Include) == 0 && len(c.Exclude) == 0 && len(c.Search) == 0 && len(c.Kinds) == 0
}

// ApplyToFiles returns the files matching config, keeping their order.
func ApplyToFiles(files []models.File, config Config) []models.File {
	if config.Empty() {
		return files
	}
	filtered := make([]models.File, 0, len(files))
	for _, f := range files {
		if !matchesKind(f, config.Kinds) {
			continue
		}
		if Matches(f.FileName, config) {
			filtered = append(filtered, f)
		}
	}
	return filtered
}

// Matches checks a file name against the include, exclude and search rules.
func Matches(filename string, config Config) bool {
	// 1. Check exclude patterns first (highest priority)
	for _, pattern := range config.Exclude {
		if globMatch(pattern, filename) {
			return false
		}
	}

	// 2. Check include patterns
	if len(config.Include) > 0 {
		included := false
		for _, pattern := range config.Include {
			if globMatch(pattern, filename) {
				included = true
				break
			}
		}
		if !included {
			return false
		}
	}

	// 3. Check search terms (case-insensitive substring match)
	if len(config.Search) > 0 {
		lowerFilename := strings.ToLower(filename)
		for _, term := range config.Search {
			if !strings.Contains(lowerFilename, strings.ToLower(term)) {
				return false
			}
		}
	}

	return true
}

// globMatch matches case-insensitively; uploads from Windows often arrive as INVOICE.PDF.
func globMatch(pattern, name string) bool {
	matched, err := filepath.Match(strings.ToLower(pattern), strings.ToLower(name))
	return err == nil && matched
}

func matchesKind(f models.File, kinds []models.FileKind) bool {
	if len(kinds) == 0 {
		return true
	}
	k := f.Kind()
	for _, want := range kinds {
		if k == want {
			return true
		}
	}
	return false
}

// ParsePatternList parses a comma-separated list of patterns into a slice.
// Example: "*.pdf,*.xlsx" -> []string{"*.pdf", "*.xlsx"}
func ParsePatternList(patternStr string) []string {
	if patternStr == "" {
		return nil
	}
	parts := strings.Split(patternStr, ",")
	patterns := make([]string, 0, len(parts))
	for _, p := range parts {
		trimmed := strings.TrimSpace(p)
		if trimmed != "" {
			patterns = append(patterns, trimmed)
		}
	}
	return patterns
}

// ParseKinds parses "pdf,image" into file kinds, ignoring unknown names.
func ParseKinds(s string) []models.FileKind {
	var kinds []models.FileKind
	for _, p := range ParsePatternList(s) {
		switch k := models.FileKind(strings.ToLower(p)); k {
		case models.FileKindPDF, models.FileKindSpreadsheet, models.FileKindImage, models.FileKindOther:
			kinds = append(kinds, k)
		}
	}
	return kinds
}
