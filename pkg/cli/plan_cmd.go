package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"quarry/internal/declarative"
	"quarry/pkg/cli/client"
)

func newPlanCmd(api *client.Client) *cobra.Command {
	var (
		configDir string
		output    string
		noColor   bool
	)
	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Show what apply would change",
		Long: "Load the YAML manifests, fetch the server state, and print the actions " +
			"needed to reconcile them. Exits 2 when changes are pending.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			switch output {
			case "text", "json":
			default:
				return fmt.Errorf("unsupported output format %q: use 'text' or 'json'", output)
			}

			desired, err := declarative.LoadDirectory(configDir)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if errs := declarative.Validate(desired); len(errs) > 0 {
				for _, e := range errs {
					fmt.Fprintf(os.Stderr, "%s: %s\n", e.Path, e.Message)
				}
				os.Exit(1)
			}

			state := NewAPIStateClient(api)
			actual, err := state.ReadState(cmd.Context())
			if err != nil {
				return fmt.Errorf("read server state: %w", err)
			}

			plan := declarative.Diff(desired, actual)
			plan.SortActions()

			if output == "json" {
				if err := declarative.FormatJSON(os.Stdout, plan); err != nil {
					return err
				}
			} else {
				declarative.FormatText(os.Stdout, plan, noColor)
			}

			if plan.HasChanges() {
				os.Exit(2)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&configDir, "config-dir", "./quarry-config", "Directory holding the YAML manifests")
	cmd.Flags().StringVarP(&output, "output", "o", "text", "Output format (text or json)")
	cmd.Flags().BoolVar(&noColor, "no-color", false, "Disable ANSI colors")
	return cmd
}
