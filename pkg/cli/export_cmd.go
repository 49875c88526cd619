package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"quarry/internal/declarative"
	"quarry/pkg/cli/client"
)

func newExportCmd(api *client.Client) *cobra.Command {
	var (
		configDir string
		overwrite bool
	)
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export the server state as YAML manifests",
		Long: "Fetch every dataset and macro and write one YAML manifest per resource, " +
			"suitable as a starting point for plan and apply.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if getOutputFormat(cmd) != "json" {
				fmt.Fprintln(os.Stdout, "Fetching state from server...")
			}

			state, err := NewAPIStateClient(api).ReadState(cmd.Context())
			if err != nil {
				return fmt.Errorf("read server state: %w", err)
			}
			if err := declarative.ExportDirectory(configDir, state, overwrite); err != nil {
				return err
			}

			if getOutputFormat(cmd) == "json" {
				return client.PrintJSON(os.Stdout, map[string]string{
					"status": "ok",
					"path":   configDir,
				})
			}
			fmt.Fprintf(os.Stdout, "Exported configuration to %s\n", configDir)
			return nil
		},
	}
	cmd.Flags().StringVar(&configDir, "config-dir", "./quarry-config", "Directory to write the YAML manifests into")
	cmd.Flags().BoolVar(&overwrite, "overwrite", false, "Write into a non-empty directory")
	return cmd
}
