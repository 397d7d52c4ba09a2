package config

import (
	"os"
	"path/filepath"
	"runtime"
)

// ConfigDir is the configuration directory name under the user config root.
const ConfigDir = "ca-drive"

// configDir returns the platform-appropriate config directory.
//   - Windows: %APPDATA%\ca-drive
//   - Unix: ~/.config/ca-drive
func configDir() string {
	if runtime.GOOS == "windows" {
		if appData := os.Getenv("APPDATA"); appData != "" {
			return filepath.Join(appData, ConfigDir)
		}
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, ".config", ConfigDir)
	}
	return ""
}

// DefaultConfigPath returns the default config file path.
func DefaultConfigPath() string {
	dir := configDir()
	if dir == "" {
		return "ca-drive.ini"
	}
	return filepath.Join(dir, "config")
}

// DefaultJournalPath returns the default upload journal database path.
func DefaultJournalPath() string {
	dir := configDir()
	if dir == "" {
		return "uploads.db"
	}
	return filepath.Join(dir, "uploads.db")
}

// LogDirectory returns the directory the terminal explorer writes its log to.
func LogDirectory() string {
	dir := configDir()
	if dir == "" {
		return filepath.Join(os.TempDir(), "ca-drive-logs")
	}
	return filepath.Join(dir, "logs")
}

// EnsureLogDirectory creates the log directory with owner-only permissions.
func EnsureLogDirectory() error {
	return os.MkdirAll(LogDirectory(), 0700)
}
