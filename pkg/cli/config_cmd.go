package cli

import (
	"fmt"
	"os"
	"sort"

	"github.com/spf13/cobra"

	"quarry/pkg/cli/client"
)

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage CLI configuration profiles",
	}
	cmd.AddCommand(newConfigShowCmd())
	cmd.AddCommand(newConfigSetProfileCmd())
	cmd.AddCommand(newConfigUseProfileCmd())
	return cmd
}

func newConfigShowCmd() *cobra.Command {
	var reveal bool
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show configured profiles",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := LoadUserConfig()
			if err != nil {
				cfg = NewUserConfig()
			}
			display := cfg
			if !reveal {
				display = maskConfig(cfg)
			}

			if getOutputFormat(cmd) == "json" {
				return client.PrintJSON(os.Stdout, display)
			}

			names := make([]string, 0, len(display.Profiles))
			for name := range display.Profiles {
				names = append(names, name)
			}
			sort.Strings(names)

			rows := make([][]string, 0, len(names))
			for _, name := range names {
				p := display.Profiles[name]
				active := ""
				if name == display.CurrentProfile {
					active = "*"
				}
				rows = append(rows, []string{name, active, p.Host, p.APIKey, p.Token, p.Output})
			}
			client.PrintTable(os.Stdout, []string{"profile", "active", "host", "api_key", "token", "output"}, rows)
			return nil
		},
	}
	cmd.Flags().BoolVar(&reveal, "reveal", false, "Show credentials unmasked")
	return cmd
}

func newConfigSetProfileCmd() *cobra.Command {
	var (
		host   string
		apiKey string
		token  string
		output string
	)
	cmd := &cobra.Command{
		Use:   "set-profile <name>",
		Short: "Create or update a profile",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := args[0]
			cfg, err := LoadUserConfig()
			if err != nil {
				cfg = NewUserConfig()
			}

			p := cfg.Profiles[name]
			if cmd.Flags().Changed("host") {
				if err := validateHostURL(host); err != nil {
					return err
				}
				p.Host = host
			}
			if cmd.Flags().Changed("api-key") {
				p.APIKey = apiKey
			}
			if cmd.Flags().Changed("token") {
				p.Token = token
			}
			if cmd.Flags().Changed("set-output") {
				if err := validateOutputFormat(output); err != nil {
					return err
				}
				p.Output = output
			}
			cfg.Profiles[name] = p
			if cfg.CurrentProfile == "" {
				cfg.CurrentProfile = name
			}
			if err := SaveUserConfig(cfg); err != nil {
				return err
			}

			path, _ := ConfigPath()
			if getOutputFormat(cmd) == "json" {
				return client.PrintJSON(os.Stdout, map[string]string{
					"status":  "ok",
					"profile": name,
					"path":    path,
				})
			}
			fmt.Fprintf(os.Stdout, "Profile %q saved to %s.\n", name, path)
			return nil
		},
	}
	cmd.Flags().StringVar(&host, "host", "", "API host URL for the profile")
	cmd.Flags().StringVar(&apiKey, "api-key", "", "API key for the profile")
	cmd.Flags().StringVar(&token, "token", "", "JWT token for the profile")
	cmd.Flags().StringVar(&output, "set-output", "", "Default output format for the profile")
	return cmd
}

func newConfigUseProfileCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "use-profile <name>",
		Short: "Switch the current profile",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := args[0]
			cfg, err := LoadUserConfig()
			if err != nil {
				cfg = NewUserConfig()
			}
			if _, ok := cfg.Profiles[name]; !ok {
				return fmt.Errorf("profile %q not found", name)
			}
			cfg.CurrentProfile = name
			if err := SaveUserConfig(cfg); err != nil {
				return err
			}

			if getOutputFormat(cmd) == "json" {
				return client.PrintJSON(os.Stdout, map[string]string{
					"status":  "ok",
					"profile": name,
				})
			}
			fmt.Fprintf(os.Stdout, "Switched to profile %q.\n", name)
			return nil
		},
	}
}

// maskSecret hides a credential for display. Short values mask fully so
// their length leaks nothing.
func maskSecret(s string) string {
	if s == "" {
		return ""
	}
	if len(s) <= 10 {
		return "****"
	}
	return s[:4] + "****" + s[len(s)-4:]
}

// maskConfig returns a copy of cfg with all credentials masked.
func maskConfig(cfg *UserConfig) *UserConfig {
	masked := &UserConfig{
		CurrentProfile: cfg.CurrentProfile,
		Profiles:       make(map[string]Profile, len(cfg.Profiles)),
	}
	for name, p := range cfg.Profiles {
		p.APIKey = maskSecret(p.APIKey)
		p.Token = maskSecret(p.Token)
		masked.Profiles[name] = p
	}
	return masked
}
