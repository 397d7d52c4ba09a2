package cli

import (
	"errors"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/spf13/cobra"

	"github.com/mrd/ca-drive/internal/api"
	"github.com/mrd/ca-drive/internal/config"
)

func newLoginCmd() *cobra.Command {
	var email string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in as a CA and store the token",
		Long: `Exchange CA credentials for a bearer token and save it to the config file.

The password is read from the terminal without echo, or from the
CA_DRIVE_PASSWORD environment variable when set.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			if email == "" {
				if email, err = promptLine(stdinReader, os.Stderr, "Email: "); err != nil {
					return err
				}
			}
			password := os.Getenv("CA_DRIVE_PASSWORD")
			if password == "" {
				if password, err = promptPassword("Password: "); err != nil {
					return err
				}
			}

			client, err := api.NewClient(cfg, GetLogger())
			if err != nil {
				return fmt.Errorf("failed to create API client: %w", err)
			}
			resp, err := client.Login(GetContext(), email, password)
			if err != nil {
				return fmt.Errorf("login failed: %w", err)
			}

			cfg.Token = resp.Token
			if err := config.Save(cfg, configPath()); err != nil {
				return fmt.Errorf("failed to save token: %w", err)
			}
			GetLogger().Debug().Str("path", configPath()).Msg("Token saved")

			name := resp.Name
			if name == "" {
				name = resp.Email
			}
			fmt.Fprintf(cmd.OutOrStdout(), "✓ Logged in as %s\n", name)
			return nil
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "Account email (prompted when omitted)")
	return cmd
}

func newLogoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Remove the stored token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath())
			if err != nil {
				return err
			}
			if cfg.Token == "" {
				fmt.Fprintln(cmd.OutOrStdout(), "Not logged in")
				return nil
			}
			cfg.Token = ""
			if err := config.Save(cfg, configPath()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "✓ Logged out")
			return nil
		},
	}
}

// tokenInfo is what whoami reports about the stored token.
type tokenInfo struct {
	Subject   string    `json:"subject,omitempty" yaml:"subject,omitempty"`
	Email     string    `json:"email,omitempty" yaml:"email,omitempty"`
	Role      string    `json:"role,omitempty" yaml:"role,omitempty"`
	IssuedAt  time.Time `json:"issuedAt,omitzero" yaml:"issuedAt,omitempty"`
	ExpiresAt time.Time `json:"expiresAt,omitzero" yaml:"expiresAt,omitempty"`
	Expired   bool      `json:"expired" yaml:"expired"`
}

// inspectToken decodes the claims without verifying the signature; the
// backend is the only party holding the key.
func inspectToken(raw string, now time.Time) (*tokenInfo, error) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(raw, claims); err != nil {
		return nil, fmt.Errorf("stored token is not a JWT: %w", err)
	}

	info := &tokenInfo{}
	info.Subject, _ = claims.GetSubject()
	for _, k := range []string{"id", "_id", "userId"} {
		if v, ok := claims[k].(string); ok && info.Subject == "" {
			info.Subject = v
		}
	}
	info.Email, _ = claims["email"].(string)
	info.Role, _ = claims["role"].(string)
	if iat, err := claims.GetIssuedAt(); err == nil && iat != nil {
		info.IssuedAt = iat.Time
	}
	if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
		info.ExpiresAt = exp.Time
		info.Expired = now.After(exp.Time)
	}
	return info, nil
}

func newWhoamiCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the identity and expiry of the stored token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if cfg.Token == "" {
				return config.ErrMissingToken
			}
			info, err := inspectToken(cfg.Token, time.Now())
			if err != nil {
				return err
			}

			err = render(cmd.OutOrStdout(), outputFormat, info, func(tw *tabwriter.Writer) {
				row(tw, "User:", info.Subject)
				if info.Email != "" {
					row(tw, "Email:", info.Email)
				}
				if info.Role != "" {
					row(tw, "Role:", info.Role)
				}
				if !info.ExpiresAt.IsZero() {
					left := time.Until(info.ExpiresAt).Round(time.Minute)
					state := fmt.Sprintf("in %s", left)
					if info.Expired {
						state = "EXPIRED"
					}
					row(tw, "Expires:", info.ExpiresAt.Local().Format(time.RFC1123)+" ("+state+")")
				}
				row(tw, "API:", cfg.APIBaseURL)
			})
			if err != nil {
				return err
			}
			if info.Expired {
				return errors.New("token expired, run 'ca-drive login'")
			}
			return nil
		},
	}
}
