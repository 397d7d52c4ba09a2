package cli

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/mrd/ca-drive/internal/api"
	"github.com/mrd/ca-drive/internal/config"
)

// newConfigCmd creates the 'config' command group.
func newConfigCmd() *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Manage ca-drive configuration",
		Long: `Configuration management commands for ca-drive.

Commands:
  init  - Interactive configuration setup
  show  - Display current configuration
  set   - Change one setting
  test  - Test API connection
  path  - Show configuration file path`,
	}

	configCmd.AddCommand(newConfigInitCmd())
	configCmd.AddCommand(newConfigShowCmd())
	configCmd.AddCommand(newConfigSetCmd())
	configCmd.AddCommand(newConfigTestCmd())
	configCmd.AddCommand(newConfigPathCmd())

	return configCmd
}

// newConfigInitCmd creates the 'config init' command.
func newConfigInitCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Initialize configuration interactively",
		Long: `Interactive configuration setup for ca-drive.

The token is not asked for here; run 'ca-drive login' afterwards.
Use --force to overwrite existing configuration.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path := configPath()
			if !force {
				if _, err := os.Stat(path); err == nil {
					fmt.Fprintf(cmd.OutOrStdout(), "Configuration already exists at: %s\n", path)
					fmt.Fprintln(cmd.OutOrStdout(), "Use --force to overwrite or run 'config show' to view current config.")
					return nil
				}
			}

			out := cmd.ErrOrStderr()
			fmt.Fprintln(out, "CA Drive Configuration Setup")
			fmt.Fprintln(out, "============================")
			fmt.Fprintln(out)

			cfg := config.New()
			answers := []struct {
				key, label, def string
			}{
				{"api.url", "API Base URL", cfg.APIBaseURL},
				{"drive.upload_workers", "Upload workers", fmt.Sprint(cfg.UploadWorkers)},
				{"drive.view_mode", "View mode (grid/list)", cfg.ViewMode},
				{"drive.default_year", "Default fiscal year folder", "none"},
				{"proxy.mode", "Proxy mode (no-proxy/system/basic/ntlm)", cfg.ProxyMode},
			}
			for _, a := range answers {
				v, err := promptDefault(stdinReader, out, a.label, a.def)
				if err != nil {
					return err
				}
				if a.key == "drive.default_year" && v == "none" {
					continue
				}
				if err := cfg.Set(a.key, v); err != nil {
					return fmt.Errorf("%s: %w", a.label, err)
				}
			}
			if cfg.ProxyMode == "basic" || cfg.ProxyMode == "ntlm" {
				host, err := promptLine(stdinReader, out, "Proxy host: ")
				if err != nil {
					return err
				}
				cfg.ProxyHost = host
				if err := cfg.Validate(); err != nil {
					return err
				}
			}

			if err := config.Save(cfg, path); err != nil {
				return fmt.Errorf("failed to save config: %w", err)
			}
			GetLogger().Info().Str("path", path).Msg("Configuration saved")

			fmt.Fprintf(cmd.OutOrStdout(), "✓ Configuration saved to: %s\n", path)
			fmt.Fprintln(cmd.OutOrStdout(), "Log in with: ca-drive login")
			return nil
		},
	}

	cmd.Flags().BoolVarP(&force, "force", "f", false, "Overwrite existing configuration")
	return cmd
}

// newConfigShowCmd creates the 'config show' command.
func newConfigShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Display current configuration",
		Long: `Display the current configuration settings with secrets masked.

This command shows the merged configuration from:
  1. Configuration file
  2. Environment variables (CA_DRIVE_TOKEN, CA_DRIVE_API_URL, ...)
  3. Command-line flags (--token, --api-url)

Priority: flags > environment > config file > defaults`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			values := cfg.Redacted()
			return render(cmd.OutOrStdout(), outputFormat, values, func(tw *tabwriter.Writer) {
				keys := make([]string, 0, len(values))
				for k := range values {
					keys = append(keys, k)
				}
				sort.Strings(keys)
				for _, k := range keys {
					v := values[k]
					if v == "" {
						v = "-"
					}
					row(tw, k, v)
				}
				fmt.Fprintln(tw)
				fmt.Fprintf(tw, "Configuration file: %s\n", configPath())
				if _, err := os.Stat(configPath()); os.IsNotExist(err) {
					fmt.Fprintln(tw, "  (file does not exist - using defaults)")
				}
			})
		},
	}
}

// newConfigSetCmd creates the 'config set' command.
func newConfigSetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set <key> <value>",
		Short: "Change one setting",
		Long: `Change one setting in the configuration file.

Keys:
  ` + strings.Join(config.Keys(), "\n  "),
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			// Environment and flags are not merged so they are never persisted.
			path := configPath()
			cfg, err := config.Load(path)
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			if err := cfg.Set(args[0], args[1]); err != nil {
				return err
			}
			if err := config.Save(cfg, path); err != nil {
				return fmt.Errorf("failed to save config: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "✓ %s = %s\n", strings.ToLower(args[0]), cfg.Redacted()[strings.ToLower(args[0])])
			return nil
		},
	}
}

// newConfigTestCmd creates the 'config test' command.
func newConfigTestCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "test",
		Short: "Test API connection",
		Long: `Test the API connection with current configuration.

Use this to verify your token and network connectivity.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := GetLogger()
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if err := cfg.ValidateForConnection(); err != nil {
				return fmt.Errorf("invalid configuration: %w", err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "API URL: %s\n", cfg.APIBaseURL)

			client, err := api.NewClient(cfg, logger)
			if err != nil {
				return fmt.Errorf("failed to create API client: %w", err)
			}

			ctx, cancel := context.WithTimeout(GetContext(), 10*time.Second)
			defer cancel()

			clients, err := client.ListClients(ctx)
			if err != nil {
				logger.Error().Err(err).Msg("Connection test failed")
				fmt.Fprintln(out, "✗ Connection FAILED")
				return fmt.Errorf("connection test failed: %w", err)
			}

			logger.Info().Msg("Connection test successful")
			fmt.Fprintln(out, "✓ Connection SUCCESSFUL")
			fmt.Fprintf(out, "  %d clients visible\n", len(clients))
			return nil
		},
	}
}

// newConfigPathCmd creates the 'config path' command.
func newConfigPathCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "Show configuration file path",
		Long:  `Display the paths of the configuration file, upload journal and logs.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			path := configPath()
			fmt.Fprintf(out, "Config:  %s\n", path)
			if info, err := os.Stat(path); err == nil {
				fmt.Fprintf(out, "         %d bytes, modified %s\n", info.Size(), info.ModTime().Format("2006-01-02 15:04:05"))
			} else {
				fmt.Fprintln(out, "         (does not exist; create it with 'ca-drive config init')")
			}
			if cfg, err := loadConfig(); err == nil {
				fmt.Fprintf(out, "Journal: %s\n", cfg.JournalPath)
			}
			fmt.Fprintf(out, "Logs:    %s\n", config.LogDirectory())
			return nil
		},
	}
}
