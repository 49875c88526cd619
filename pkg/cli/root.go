// Package cli implements the quarry command-line interface.
package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"quarry/pkg/cli/client"
)

// Set via -ldflags at build time.
var (
	version = "dev"
	commit  = "none"
)

// Execute runs the CLI and returns the process exit code.
func Execute() int {
	rootCmd := newRootCmd()
	if err := rootCmd.Execute(); err != nil {
		output, _ := rootCmd.PersistentFlags().GetString("output")
		if output == "json" {
			errObj := map[string]interface{}{"error": err.Error()}
			var apiErr *client.APIError
			if errors.As(err, &apiErr) {
				errObj["http_status"] = apiErr.HTTPStatus
				errObj["code"] = apiErr.Code
			}
			_ = client.PrintJSON(os.Stdout, errObj)
		} else {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		return 1
	}
	return 0
}

func newRootCmd() *cobra.Command {
	var (
		host    string
		apiKey  string
		token   string
		output  string
		profile string
		quiet   bool
	)

	rootCmd := &cobra.Command{
		Use:           "quarry",
		Short:         "Quarry dataset service CLI",
		Long:          "Command-line interface for the quarry dataset service API.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVar(&host, "host", "http://localhost:8080", "API host URL")
	rootCmd.PersistentFlags().StringVar(&apiKey, "api-key", "", "API key for authentication")
	rootCmd.PersistentFlags().StringVar(&token, "token", "", "JWT bearer token for authentication")
	rootCmd.PersistentFlags().StringVarP(&output, "output", "o", "table", "Output format (table or json)")
	rootCmd.PersistentFlags().StringVarP(&profile, "profile", "p", "", "Config profile to use")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "Print only resource identifiers in list output")

	api := client.NewClient(host, apiKey, token)

	// Resolution order for connection settings: flag > environment >
	// profile > default.
	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, _ []string) error {
		cfg, err := LoadUserConfig()
		if err != nil {
			// The config file is optional.
			cfg = NewUserConfig()
		}
		prof, err := cfg.ActiveProfile(profile)
		if err != nil {
			return err
		}

		if !cmd.Flags().Changed("host") {
			if v := os.Getenv("QUARRY_HOST"); v != "" {
				host = v
			} else if prof.Host != "" {
				host = prof.Host
			}
		}
		if !cmd.Flags().Changed("api-key") {
			if v := os.Getenv("QUARRY_API_KEY"); v != "" {
				apiKey = v
			} else if prof.APIKey != "" {
				apiKey = prof.APIKey
			}
		}
		if !cmd.Flags().Changed("token") {
			if v := os.Getenv("QUARRY_TOKEN"); v != "" {
				token = v
			} else if prof.Token != "" {
				token = prof.Token
			}
		}
		if !cmd.Flags().Changed("output") {
			if v := os.Getenv("QUARRY_OUTPUT"); v != "" {
				output = v
			} else if prof.Output != "" {
				output = prof.Output
			}
		}

		if err := validateOutputFormat(output); err != nil {
			return err
		}

		api.BaseURL = host
		api.APIKey = apiKey
		api.Token = token
		return nil
	}

	rootCmd.AddCommand(newVersionCmd())
	rootCmd.AddCommand(newConfigCmd())
	rootCmd.AddCommand(newAuthCmd(api))

	rootCmd.AddCommand(newDatasetCmd(api))
	rootCmd.AddCommand(newQueryCmd(api))
	rootCmd.AddCommand(newMacroCmd(api))
	rootCmd.AddCommand(newAPIKeyCmd(api))

	rootCmd.AddCommand(newPlanCmd(api))
	rootCmd.AddCommand(newApplyCmd(api))
	rootCmd.AddCommand(newExportCmd(api))
	rootCmd.AddCommand(newValidateCmd())

	rootCmd.AddCommand(newCompletionCmd())

	return rootCmd
}

func newCompletionCmd() *cobra.Command {
	return &cobra.Command{
		Use:       "completion [bash|zsh|fish|powershell]",
		Short:     "Generate shell completion scripts",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{"bash", "zsh", "fish", "powershell"},
		RunE: func(cmd *cobra.Command, args []string) error {
			switch args[0] {
			case "bash":
				return cmd.Root().GenBashCompletion(os.Stdout)
			case "zsh":
				return cmd.Root().GenZshCompletion(os.Stdout)
			case "fish":
				return cmd.Root().GenFishCompletion(os.Stdout, true)
			case "powershell":
				return cmd.Root().GenPowerShellCompletionWithDesc(os.Stdout)
			default:
				return fmt.Errorf("unsupported shell: %s", args[0])
			}
		},
	}
}
