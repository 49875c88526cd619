package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"quarry/internal/declarative"
	"quarry/pkg/cli/client"
)

func newValidateCmd() *cobra.Command {
	var (
		configDir          string
		allowUnknownFields bool
	)
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate the YAML manifests without contacting the server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			desired, err := declarative.LoadDirectoryWithOptions(configDir, declarative.LoadOptions{
				AllowUnknownFields: allowUnknownFields,
			})
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}

			errs := declarative.Validate(desired)
			if getOutputFormat(cmd) == "json" {
				out := map[string]interface{}{"valid": len(errs) == 0}
				if len(errs) > 0 {
					out["errors"] = errs
				}
				if err := client.PrintJSON(os.Stdout, out); err != nil {
					return err
				}
				if len(errs) > 0 {
					os.Exit(1)
				}
				return nil
			}

			if len(errs) > 0 {
				for _, e := range errs {
					fmt.Fprintf(os.Stderr, "%s: %s\n", e.Path, e.Message)
				}
				os.Exit(1)
			}
			fmt.Fprintln(os.Stdout, "Configuration is valid.")
			return nil
		},
	}
	cmd.Flags().StringVar(&configDir, "config-dir", "./quarry-config", "Directory holding the YAML manifests")
	cmd.Flags().BoolVar(&allowUnknownFields, "allow-unknown-fields", false, "Permit unknown YAML fields")
	return cmd
}
