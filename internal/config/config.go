// Package config provides configuration management for ca-drive.
package config

import (
	"errors"
	"fmt"
	"log"
	"net/url"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/ini.v1"

	"github.com/mrd/ca-drive/internal/constants"
)

// Config is the merged runtime configuration.
//
// INI format:
//
//	[api]
//	url = http://localhost:5001/api
//	token = <jwt>
//	request_timeout = 30s
//	upload_timeout = 5m
//
//	[proxy]
//	mode = no-proxy
//	host =
//	port = 8080
//	user =
//	no_proxy = localhost,127.0.0.1
//
//	[drive]
//	upload_workers = 4
//	view_mode = grid
//	default_year = FY - 2025-26
//	journal_path = ~/.config/ca-drive/uploads.db
//
//	[storage]
//	s3_region = ap-south-1
//	s3_access_key =
//	s3_secret_key =
type Config struct {
	// API settings
	APIBaseURL     string
	Token          string
	RequestTimeout time.Duration
	UploadTimeout  time.Duration

	// Proxy settings
	ProxyMode     string // "no-proxy", "ntlm", "basic", "system"
	ProxyHost     string
	ProxyPort     int
	ProxyUser     string
	ProxyPassword string // never persisted
	NoProxy       string // Comma-separated list of hosts to bypass proxy

	// Drive settings
	UploadWorkers int
	ViewMode      string // "grid" or "list"
	DefaultYear   string
	JournalPath   string

	// Storage credentials for s3:// download locations
	S3Region    string
	S3AccessKey string
	S3SecretKey string
}

// View modes
const (
	ViewModeGrid = "grid"
	ViewModeList = "list"
)

// Environment variable names
const (
	EnvAPIURL      = "CA_DRIVE_API_URL"
	EnvToken       = "CA_DRIVE_TOKEN"
	EnvProxyMode   = "CA_DRIVE_PROXY_MODE"
	EnvProxyPass   = "CA_DRIVE_PROXY_PASSWORD"
	EnvWorkers     = "CA_DRIVE_UPLOAD_WORKERS"
	EnvDefaultYear = "CA_DRIVE_DEFAULT_YEAR"
	EnvJournal     = "CA_DRIVE_JOURNAL"
	EnvS3Region    = "CA_DRIVE_S3_REGION"
	EnvS3AccessKey = "CA_DRIVE_S3_ACCESS_KEY"
	EnvS3SecretKey = "CA_DRIVE_S3_SECRET_KEY"
)

// Validation errors
var (
	ErrMissingAPIURL     = errors.New("api url is required")
	ErrMissingToken      = errors.New("not logged in (run 'ca-drive login' or set " + EnvToken + ")")
	ErrInvalidWorkers    = fmt.Errorf("upload_workers must be between 1 and %d", constants.MaxUploadWorkers)
	ErrInvalidViewMode   = errors.New("view_mode must be 'grid' or 'list'")
	ErrInvalidTimeout    = errors.New("timeouts must be positive")
	ErrUnknownConfigKey  = errors.New("unknown config key")
	ErrInvalidProxyMode  = errors.New("proxy mode must be one of no-proxy, system, basic, ntlm")
	ErrMissingProxyHost  = errors.New("proxy host is required for basic and ntlm modes")
	ErrInvalidConfigPair = errors.New("invalid config value")
)

// New returns a Config holding default values.
func New() *Config {
	return &Config{
		APIBaseURL:     constants.DefaultAPIURL,
		RequestTimeout: constants.APIRequestTimeout,
		UploadTimeout:  constants.UploadRequestTimeout,
		ProxyMode:      "no-proxy",
		ProxyPort:      8080,
		UploadWorkers:  constants.DefaultUploadWorkers,
		ViewMode:       ViewModeGrid,
		JournalPath:    DefaultJournalPath(),
	}
}

// Load reads configuration from an INI file.
// A missing file yields defaults and no error; an unreadable or malformed file is an error.
func Load(path string) (*Config, error) {
	cfg := New()

	if path == "" {
		path = DefaultConfigPath()
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil
	}

	iniFile, err := ini.Load(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	api := iniFile.Section("api")
	cfg.APIBaseURL = api.Key("url").MustString(cfg.APIBaseURL)
	cfg.Token = api.Key("token").String()
	cfg.RequestTimeout = api.Key("request_timeout").MustDuration(cfg.RequestTimeout)
	cfg.UploadTimeout = api.Key("upload_timeout").MustDuration(cfg.UploadTimeout)

	proxy := iniFile.Section("proxy")
	cfg.ProxyMode = proxy.Key("mode").MustString(cfg.ProxyMode)
	cfg.ProxyHost = proxy.Key("host").String()
	cfg.ProxyPort = proxy.Key("port").MustInt(cfg.ProxyPort)
	cfg.ProxyUser = proxy.Key("user").String()
	cfg.NoProxy = proxy.Key("no_proxy").String()
	if proxy.HasKey("password") && proxy.Key("password").String() != "" {
		log.Printf("[WARN] proxy password in config file is ignored, use %s or the interactive prompt", EnvProxyPass)
	}

	drive := iniFile.Section("drive")
	cfg.UploadWorkers = drive.Key("upload_workers").MustInt(cfg.UploadWorkers)
	cfg.ViewMode = drive.Key("view_mode").In(ViewModeGrid, []string{ViewModeGrid, ViewModeList})
	cfg.DefaultYear = drive.Key("default_year").String()
	cfg.JournalPath = expandHome(drive.Key("journal_path").MustString(cfg.JournalPath))

	storage := iniFile.Section("storage")
	cfg.S3Region = storage.Key("s3_region").String()
	cfg.S3AccessKey = storage.Key("s3_access_key").String()
	cfg.S3SecretKey = storage.Key("s3_secret_key").String()

	return cfg, nil
}

// Save writes the configuration to an INI file with 0600 permissions.
// Uses a temporary file and rename so a crash never leaves a half-written config.
func Save(cfg *Config, path string) error {
	if path == "" {
		path = DefaultConfigPath()
	}

	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	iniFile := ini.Empty()

	api, err := iniFile.NewSection("api")
	if err != nil {
		return fmt.Errorf("failed to create api section: %w", err)
	}
	api.Key("url").SetValue(cfg.APIBaseURL)
	api.Key("token").SetValue(cfg.Token)
	api.Key("request_timeout").SetValue(cfg.RequestTimeout.String())
	api.Key("upload_timeout").SetValue(cfg.UploadTimeout.String())

	proxy, err := iniFile.NewSection("proxy")
	if err != nil {
		return fmt.Errorf("failed to create proxy section: %w", err)
	}
	proxy.Key("mode").SetValue(cfg.ProxyMode)
	proxy.Key("host").SetValue(cfg.ProxyHost)
	proxy.Key("port").SetValue(strconv.Itoa(cfg.ProxyPort))
	proxy.Key("user").SetValue(cfg.ProxyUser)
	proxy.Key("no_proxy").SetValue(cfg.NoProxy)

	drive, err := iniFile.NewSection("drive")
	if err != nil {
		return fmt.Errorf("failed to create drive section: %w", err)
	}
	drive.Key("upload_workers").SetValue(strconv.Itoa(cfg.UploadWorkers))
	drive.Key("view_mode").SetValue(cfg.ViewMode)
	drive.Key("default_year").SetValue(cfg.DefaultYear)
	drive.Key("journal_path").SetValue(cfg.JournalPath)

	storage, err := iniFile.NewSection("storage")
	if err != nil {
		return fmt.Errorf("failed to create storage section: %w", err)
	}
	storage.Key("s3_region").SetValue(cfg.S3Region)
	storage.Key("s3_access_key").SetValue(cfg.S3AccessKey)
	storage.Key("s3_secret_key").SetValue(cfg.S3SecretKey)

	tmpPath := path + ".tmp"
	if err := iniFile.SaveTo(tmpPath); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	if runtime.GOOS != "windows" {
		if err := os.Chmod(tmpPath, 0600); err != nil {
			os.Remove(tmpPath)
			return fmt.Errorf("failed to set config permissions: %w", err)
		}
	}

	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to save config: %w", err)
	}

	return nil
}

// LoadDotEnv loads a .env file from the working directory if one exists.
// Variables already set in the environment win.
func LoadDotEnv() {
	if _, err := os.Stat(".env"); err != nil {
		return
	}
	if err := godotenv.Load(); err != nil {
		log.Printf("[WARN] failed to load .env: %v", err)
	}
}

// MergeWithFlags merges config with command-line flags and environment variables.
// Priority (highest to lowest): flags > environment > config file > defaults.
func (c *Config) MergeWithFlags(token, apiBaseURL string) {
	if v := os.Getenv(EnvAPIURL); v != "" {
		c.APIBaseURL = v
	}
	if v := os.Getenv(EnvToken); v != "" {
		c.Token = v
	}
	if v := os.Getenv(EnvProxyMode); v != "" {
		c.ProxyMode = v
	}
	if v := os.Getenv(EnvProxyPass); v != "" {
		c.ProxyPassword = v
	}
	if v := os.Getenv(EnvWorkers); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.UploadWorkers = n
		}
	}
	if v := os.Getenv(EnvDefaultYear); v != "" {
		c.DefaultYear = v
	}
	if v := os.Getenv(EnvJournal); v != "" {
		c.JournalPath = expandHome(v)
	}
	if v := os.Getenv(EnvS3Region); v != "" {
		c.S3Region = v
	}
	if v := os.Getenv(EnvS3AccessKey); v != "" {
		c.S3AccessKey = v
	}
	if v := os.Getenv(EnvS3SecretKey); v != "" {
		c.S3SecretKey = v
	}
	if envProxy := os.Getenv("HTTPS_PROXY"); envProxy != "" && c.ProxyHost == "" {
		c.parseProxyURL(envProxy)
	}

	if apiBaseURL != "" {
		c.APIBaseURL = apiBaseURL
	}
	if token != "" {
		c.Token = token
	}

	c.APIBaseURL = strings.TrimRight(c.APIBaseURL, "/")
	if c.APIBaseURL != "" && !strings.HasPrefix(c.APIBaseURL, "http") {
		c.APIBaseURL = "https://" + c.APIBaseURL
	}
}

// parseProxyURL parses a proxy URL from environment variable
func (c *Config) parseProxyURL(proxyURL string) {
	u, err := url.Parse(proxyURL)
	if err != nil || u.Host == "" {
		u, err = url.Parse("http://" + proxyURL)
		if err != nil {
			return
		}
	}
	c.ProxyHost = u.Hostname()
	if p, err := strconv.Atoi(u.Port()); err == nil {
		c.ProxyPort = p
	}
	if c.ProxyHost != "" && (c.ProxyMode == "no-proxy" || c.ProxyMode == "") {
		c.ProxyMode = "system"
	}
}

// Validate checks settings that every command needs.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.APIBaseURL) == "" {
		return ErrMissingAPIURL
	}
	if c.UploadWorkers < 1 || c.UploadWorkers > constants.MaxUploadWorkers {
		return ErrInvalidWorkers
	}
	if c.ViewMode != ViewModeGrid && c.ViewMode != ViewModeList {
		return ErrInvalidViewMode
	}
	if c.RequestTimeout <= 0 || c.UploadTimeout <= 0 {
		return ErrInvalidTimeout
	}
	switch strings.ToLower(c.ProxyMode) {
	case "", "no-proxy", "system":
	case "basic", "ntlm":
		if c.ProxyHost == "" {
			return ErrMissingProxyHost
		}
	default:
		return ErrInvalidProxyMode
	}
	return nil
}

// ValidateForConnection additionally requires a token.
func (c *Config) ValidateForConnection() error {
	if err := c.Validate(); err != nil {
		return err
	}
	if strings.TrimSpace(c.Token) == "" {
		return ErrMissingToken
	}
	return nil
}

// ToggleViewMode flips between grid and list and returns the new mode.
func (c *Config) ToggleViewMode() string {
	if c.ViewMode == ViewModeList {
		c.ViewMode = ViewModeGrid
	} else {
		c.ViewMode = ViewModeList
	}
	return c.ViewMode
}

// settable maps "section.key" names accepted by Set to their field setters.
var settable = map[string]func(c *Config, v string) error{
	"api.url":   func(c *Config, v string) error { c.APIBaseURL = strings.TrimRight(v, "/"); return nil },
	"api.token": func(c *Config, v string) error { c.Token = v; return nil },
	"api.request_timeout": func(c *Config, v string) error {
		return setDuration(&c.RequestTimeout, v)
	},
	"api.upload_timeout": func(c *Config, v string) error {
		return setDuration(&c.UploadTimeout, v)
	},
	"proxy.mode":     func(c *Config, v string) error { c.ProxyMode = v; return nil },
	"proxy.host":     func(c *Config, v string) error { c.ProxyHost = v; return nil },
	"proxy.port":     func(c *Config, v string) error { return setInt(&c.ProxyPort, v) },
	"proxy.user":     func(c *Config, v string) error { c.ProxyUser = v; return nil },
	"proxy.no_proxy": func(c *Config, v string) error { c.NoProxy = v; return nil },
	"drive.upload_workers": func(c *Config, v string) error {
		return setInt(&c.UploadWorkers, v)
	},
	"drive.view_mode":       func(c *Config, v string) error { c.ViewMode = strings.ToLower(v); return nil },
	"drive.default_year":    func(c *Config, v string) error { c.DefaultYear = v; return nil },
	"drive.journal_path":    func(c *Config, v string) error { c.JournalPath = expandHome(v); return nil },
	"storage.s3_region":     func(c *Config, v string) error { c.S3Region = v; return nil },
	"storage.s3_access_key": func(c *Config, v string) error { c.S3AccessKey = v; return nil },
	"storage.s3_secret_key": func(c *Config, v string) error { c.S3SecretKey = v; return nil },
}

// Keys lists the names accepted by Set, sorted.
func Keys() []string {
	keys := make([]string, 0, len(settable))
	for k := range settable {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Set assigns one "section.key" value and re-validates the result.
func (c *Config) Set(key, value string) error {
	set, ok := settable[strings.ToLower(key)]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownConfigKey, key)
	}
	next := *c
	if err := set(&next, strings.TrimSpace(value)); err != nil {
		return err
	}
	if err := next.Validate(); err != nil {
		return err
	}
	*c = next
	return nil
}

// Redacted returns the "section.key" view of the config with secrets masked.
func (c *Config) Redacted() map[string]string {
	return map[string]string{
		"api.url":               c.APIBaseURL,
		"api.token":             mask(c.Token),
		"api.request_timeout":   c.RequestTimeout.String(),
		"api.upload_timeout":    c.UploadTimeout.String(),
		"proxy.mode":            c.ProxyMode,
		"proxy.host":            c.ProxyHost,
		"proxy.port":            strconv.Itoa(c.ProxyPort),
		"proxy.user":            c.ProxyUser,
		"proxy.no_proxy":        c.NoProxy,
		"drive.upload_workers":  strconv.Itoa(c.UploadWorkers),
		"drive.view_mode":       c.ViewMode,
		"drive.default_year":    c.DefaultYear,
		"drive.journal_path":    c.JournalPath,
		"storage.s3_region":     c.S3Region,
		"storage.s3_access_key": mask(c.S3AccessKey),
		"storage.s3_secret_key": mask(c.S3SecretKey),
	}
}

func mask(s string) string {
	if s == "" {
		return ""
	}
	if len(s) <= 8 {
		return "****"
	}
	return s[:4] + "****" + s[len(s)-4:]
}

func setInt(dst *int, v string) error {
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("%w: %q is not a number", ErrInvalidConfigPair, v)
	}
	*dst = n
	return nil
}

func setDuration(dst *time.Duration, v string) error {
	d, err := time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("%w: %q is not a duration", ErrInvalidConfigPair, v)
	}
	*dst = d
	return nil
}

func expandHome(p string) string {
	if p == "~" || strings.HasPrefix(p, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, strings.TrimPrefix(p, "~"))
		}
	}
	return p
}
