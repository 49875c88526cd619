package cli

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"quarry/internal/declarative"
	"quarry/pkg/cli/client"
)

func newApplyCmd(api *client.Client) *cobra.Command {
	var (
		configDir   string
		autoApprove bool
		noColor     bool
	)
	cmd := &cobra.Command{
		Use:   "apply",
		Short: "Reconcile the server with the YAML manifests",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
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
			declarative.FormatText(os.Stdout, plan, noColor)

			if !plan.HasChanges() {
				return nil
			}
			if len(plan.Errors) > 0 {
				return fmt.Errorf("plan has %d error(s); resolve them before applying", len(plan.Errors))
			}

			if !autoApprove {
				if !client.IsStdinTTY() {
					return fmt.Errorf("confirmation required but stdin is not a terminal; use --auto-approve")
				}
				fmt.Fprint(os.Stdout, "\nApply these changes? [y/N] ")
				answer, _ := bufio.NewReader(os.Stdin).ReadString('\n')
				answer = strings.ToLower(strings.TrimSpace(answer))
				if answer != "y" && answer != "yes" {
					fmt.Fprintln(os.Stdout, "Apply cancelled.")
					return nil
				}
			}

			succeeded, failed := 0, 0
			for _, action := range plan.Actions {
				fmt.Fprintf(os.Stdout, "  %s %s %q ... ", action.Operation, action.ResourceKind, action.ResourceName)
				if err := state.Execute(cmd.Context(), action); err != nil {
					fmt.Fprintf(os.Stdout, "failed: %v\n", err)
					failed++
					continue
				}
				fmt.Fprintln(os.Stdout, "succeeded")
				succeeded++
			}

			fmt.Fprintf(os.Stdout, "\nApply complete: %d succeeded, %d failed.\n", succeeded, failed)
			if failed > 0 {
				os.Exit(1)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&configDir, "config-dir", "./quarry-config", "Directory holding the YAML manifests")
	cmd.Flags().BoolVar(&autoApprove, "auto-approve", false, "Apply without interactive confirmation")
	cmd.Flags().BoolVar(&noColor, "no-color", false, "Disable ANSI colors")
	return cmd
}
