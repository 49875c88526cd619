package cli

import (
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"

	"quarry/pkg/cli/client"
)

func newAPIKeyCmd(api *client.Client) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "apikey",
		Short: "Manage API keys",
	}
	cmd.AddCommand(newAPIKeyListCmd(api))
	cmd.AddCommand(newAPIKeyCreateCmd(api))
	cmd.AddCommand(newAPIKeyDeleteCmd(api))
	return cmd
}

func newAPIKeyListCmd(api *client.Client) *cobra.Command {
	var (
		maxResults int
		pageToken  string
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List API keys",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			data, err := doJSON(api, http.MethodGet, "/apikeys", listQuery(cmd, maxResults, pageToken), nil)
			if err != nil {
				return err
			}
			return renderList(cmd, data, []string{"id", "principal_name", "name", "key_prefix", "is_admin", "expires_at"})
		},
	}
	cmd.Flags().IntVar(&maxResults, "max-results", 0, "Maximum results per page")
	cmd.Flags().StringVar(&pageToken, "page-token", "", "Page token from a previous response")
	return cmd
}

func newAPIKeyCreateCmd(api *client.Client) *cobra.Command {
	var (
		principal string
		name      string
		admin     bool
		expires   time.Duration
	)
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create an API key; the key itself is shown once",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			body := map[string]interface{}{
				"principal_name": principal,
				"name":           name,
			}
			if admin {
				body["is_admin"] = true
			}
			if cmd.Flags().Changed("expires") {
				body["expires_at"] = time.Now().Add(expires).UTC().Format(time.RFC3339)
			}

			data, err := doJSON(api, http.MethodPost, "/apikeys", nil, body)
			if err != nil {
				return err
			}
			if getOutputFormat(cmd) == "json" {
				return client.PrintJSON(os.Stdout, data)
			}
			client.PrintDetail(os.Stdout, data)
			fmt.Fprintln(os.Stderr, "\nStore the key now; it is not shown again.")
			return nil
		},
	}
	cmd.Flags().StringVar(&principal, "principal", "", "Principal the key authenticates as")
	cmd.Flags().StringVar(&name, "name", "", "Key name, unique per principal")
	cmd.Flags().BoolVar(&admin, "admin", false, "Grant admin rights")
	cmd.Flags().DurationVar(&expires, "expires", 0, "Key lifetime; omit for a non-expiring key")
	_ = cmd.MarkFlagRequired("principal")
	_ = cmd.MarkFlagRequired("name")
	return cmd
}

func newAPIKeyDeleteCmd(api *client.Client) *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "delete <id>",
		Short: "Revoke an API key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return confirmedDelete(cmd, api, yes, "/apikeys/"+args[0])
		},
	}
	cmd.Flags().BoolVar(&yes, "yes", false, "Skip the confirmation prompt")
	return cmd
}
