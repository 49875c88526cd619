package cli

import (
	"bufio"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"quarry/pkg/cli/client"
)

func newAuthCmd(api *client.Client) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Authenticate against a quarry host",
	}
	cmd.AddCommand(newAuthLoginCmd(api))
	cmd.AddCommand(newAuthStatusCmd(api))
	cmd.AddCommand(newAuthTokenCmd())
	return cmd
}

func newAuthLoginCmd(api *client.Client) *cobra.Command {
	return &cobra.Command{
		Use:   "login",
		Short: "Verify credentials and save them to the active profile",
		Long: "Verify the API key or token against the host and save both to the " +
			"active profile. With no --api-key or --token flag, the key is prompted for.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := validateHostURL(api.BaseURL); err != nil {
				return err
			}
			if api.APIKey == "" && api.Token == "" {
				key, err := promptSecret("API key: ")
				if err != nil {
					return err
				}
				if key == "" {
					return fmt.Errorf("an API key or token is required")
				}
				api.APIKey = key
			}

			if err := verifyCredentials(api); err != nil {
				return fmt.Errorf("verify credentials: %w", err)
			}

			cfg, err := LoadUserConfig()
			if err != nil {
				cfg = NewUserConfig()
			}
			name := activeProfileName(cmd, cfg)
			p := cfg.Profiles[name]
			p.Host = api.BaseURL
			if api.APIKey != "" {
				p.APIKey = api.APIKey
			}
			if api.Token != "" {
				p.Token = api.Token
			}
			cfg.Profiles[name] = p
			if cfg.CurrentProfile == "" {
				cfg.CurrentProfile = name
			}
			if err := SaveUserConfig(cfg); err != nil {
				return err
			}

			if getOutputFormat(cmd) == "json" {
				return client.PrintJSON(os.Stdout, map[string]string{
					"status":  "ok",
					"profile": name,
					"host":    api.BaseURL,
				})
			}
			fmt.Fprintf(os.Stdout, "Logged in to %s; credentials saved to profile %q.\n", api.BaseURL, name)
			return nil
		},
	}
}

func newAuthStatusCmd(api *client.Client) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the active credentials and whether the host accepts them",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := LoadUserConfig()
			if err != nil {
				cfg = NewUserConfig()
			}

			fields := map[string]interface{}{
				"host":          api.BaseURL,
				"profile":       activeProfileName(cmd, cfg),
				"api_key":       maskSecret(api.APIKey),
				"token":         maskSecret(api.Token),
				"authenticated": true,
			}
			if err := verifyCredentials(api); err != nil {
				fields["authenticated"] = false
				fields["error"] = err.Error()
			}

			if getOutputFormat(cmd) == "json" {
				return client.PrintJSON(os.Stdout, fields)
			}
			client.PrintDetail(os.Stdout, fields)
			return nil
		},
	}
}

func newAuthTokenCmd() *cobra.Command {
	var (
		principal string
		secret    string
		admin     bool
		expires   time.Duration
	)
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Generate a development JWT and save it to the active profile",
		Long: "Generate an HS256 JWT for development and testing. The secret must " +
			"match the server's JWT_SECRET. The token is saved to the active profile.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			now := time.Now()
			claims := jwt.MapClaims{
				"sub": principal,
				"iat": now.Unix(),
				"exp": now.Add(expires).Unix(),
			}
			if admin {
				claims["admin"] = true
			}
			signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
			if err != nil {
				return fmt.Errorf("sign token: %w", err)
			}

			cfg, err := LoadUserConfig()
			if err != nil {
				cfg = NewUserConfig()
			}
			name := activeProfileName(cmd, cfg)
			p := cfg.Profiles[name]
			p.Token = signed
			cfg.Profiles[name] = p
			if cfg.CurrentProfile == "" {
				cfg.CurrentProfile = name
			}
			if err := SaveUserConfig(cfg); err != nil {
				return err
			}

			if getOutputFormat(cmd) == "json" {
				return client.PrintJSON(os.Stdout, map[string]interface{}{
					"token":   signed,
					"profile": name,
					"expires": now.Add(expires).UTC().Format(time.RFC3339),
				})
			}
			fmt.Fprintln(os.Stdout, signed)
			return nil
		},
	}
	cmd.Flags().StringVar(&principal, "principal", "", "Principal name for the token subject")
	cmd.Flags().StringVar(&secret, "secret", "", "HS256 signing secret (the server's JWT_SECRET)")
	cmd.Flags().BoolVar(&admin, "admin", false, "Grant the admin claim")
	cmd.Flags().DurationVar(&expires, "expires", 24*time.Hour, "Token lifetime")
	_ = cmd.MarkFlagRequired("principal")
	_ = cmd.MarkFlagRequired("secret")
	return cmd
}

// activeProfileName resolves the profile that credential writes land in.
func activeProfileName(cmd *cobra.Command, cfg *UserConfig) string {
	if override, _ := cmd.Root().PersistentFlags().GetString("profile"); override != "" {
		return override
	}
	if cfg.CurrentProfile != "" {
		return cfg.CurrentProfile
	}
	return "default"
}

// verifyCredentials makes the cheapest authenticated call the API offers.
func verifyCredentials(api *client.Client) error {
	q := url.Values{}
	q.Set("max_results", "1")
	resp, err := api.Do(http.MethodGet, "/datasets", q, nil)
	if err != nil {
		return err
	}
	if err := client.CheckError(resp); err != nil {
		return err
	}
	_, err = client.ReadBody(resp)
	return err
}

// promptSecret reads a secret from stdin, hiding the input on a terminal.
func promptSecret(prompt string) (string, error) {
	fmt.Fprint(os.Stderr, prompt)
	if client.IsStdinTTY() {
		raw, err := term.ReadPassword(int(os.Stdin.Fd()))
		fmt.Fprintln(os.Stderr)
		if err != nil {
			return "", fmt.Errorf("read secret: %w", err)
		}
		return strings.TrimSpace(string(raw)), nil
	}
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil && line == "" {
		return "", fmt.Errorf("read secret: %w", err)
	}
	return strings.TrimSpace(line), nil
}
