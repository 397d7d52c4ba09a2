package cli

import (
	"fmt"

	"github.com/mrd/ca-drive/internal/api"
	"github.com/mrd/ca-drive/internal/config"
)

// configPath returns --config or the platform default.
func configPath() string {
	if cfgFile != "" {
		return cfgFile
	}
	return config.DefaultConfigPath()
}

// loadConfig reads the config file and merges environment and flags.
// Priority: flags > environment > config file > defaults
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath())
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	cfg.MergeWithFlags(token, apiBaseURL)
	return cfg, nil
}

// getAPIClient loads configuration and creates an authenticated API client.
// This is the standard way to get an API client in CLI commands.
func getAPIClient() (*api.Client, *config.Config, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}
	if err := cfg.ValidateForConnection(); err != nil {
		return nil, nil, err
	}
	client, err := api.NewClient(cfg, GetLogger())
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create API client: %w", err)
	}
	return client, cfg, nil
}
