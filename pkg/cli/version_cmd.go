package cli

import (
	"fmt"
	"os"
	"runtime"

	"github.com/spf13/cobra"

	"quarry/pkg/cli/client"
)

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show CLI version information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if getOutputFormat(cmd) == "json" {
				return client.PrintJSON(os.Stdout, map[string]string{
					"version":    version,
					"commit":     commit,
					"go_version": runtime.Version(),
				})
			}
			fmt.Fprintf(os.Stdout, "quarry %s (commit %s, %s)\n", version, commit, runtime.Version())
			return nil
		},
	}
}
