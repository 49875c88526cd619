package cli

import (
	"fmt"
	"net/http"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"quarry/pkg/cli/client"
)

func newMacroCmd(api *client.Client) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "macro",
		Short: "Manage reusable filter macros",
	}
	cmd.AddCommand(newMacroListCmd(api))
	cmd.AddCommand(newMacroGetCmd(api))
	cmd.AddCommand(newMacroCreateCmd(api))
	cmd.AddCommand(newMacroUpdateCmd(api))
	cmd.AddCommand(newMacroDeleteCmd(api))
	cmd.AddCommand(newMacroExpandCmd(api))
	return cmd
}

func newMacroListCmd(api *client.Client) *cobra.Command {
	var (
		maxResults int
		pageToken  string
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List filter macros",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			data, err := doJSON(api, http.MethodGet, "/macros", listQuery(cmd, maxResults, pageToken), nil)
			if err != nil {
				return err
			}
			return renderList(cmd, data, []string{"name", "status", "parameters", "description"})
		},
	}
	cmd.Flags().IntVar(&maxResults, "max-results", 0, "Maximum results per page")
	cmd.Flags().StringVar(&pageToken, "page-token", "", "Page token from a previous response")
	return cmd
}

func newMacroGetCmd(api *client.Client) *cobra.Command {
	return &cobra.Command{
		Use:   "get <name>",
		Short: "Show a macro",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := doJSON(api, http.MethodGet, "/macros/"+args[0], nil, nil)
			if err != nil {
				return err
			}
			return renderDetail(cmd, data)
		},
	}
}

// macroBody resolves the --body / --body-file pair.
func macroBody(body, bodyFile string) (string, error) {
	if body != "" && bodyFile != "" {
		return "", fmt.Errorf("--body and --body-file are mutually exclusive")
	}
	if bodyFile != "" {
		data, err := os.ReadFile(bodyFile)
		if err != nil {
			return "", fmt.Errorf("read body file: %w", err)
		}
		return strings.TrimSpace(string(data)), nil
	}
	return body, nil
}

func newMacroCreateCmd(api *client.Client) *cobra.Command {
	var (
		body        string
		bodyFile    string
		params      []string
		description string
		status      string
		jsonInput   string
	)
	cmd := &cobra.Command{
		Use:   "create <name>",
		Short: "Create a filter macro",
		Example: `  quarry macro create recent --param days \
    --body 'pickup_date >= date_add(today(), -days)'`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			reqBody, err := bodyFromJSONInput(jsonInput)
			if err != nil {
				return err
			}
			if reqBody == nil {
				text, err := macroBody(body, bodyFile)
				if err != nil {
					return err
				}
				if text == "" {
					return fmt.Errorf("--body or --body-file is required")
				}
				reqBody = map[string]interface{}{
					"name": args[0],
					"body": text,
				}
				if len(params) > 0 {
					reqBody["parameters"] = params
				}
				if cmd.Flags().Changed("description") {
					reqBody["description"] = description
				}
				if cmd.Flags().Changed("status") {
					reqBody["status"] = status
				}
			}

			data, err := doJSON(api, http.MethodPost, "/macros", nil, reqBody)
			if err != nil {
				return err
			}
			return renderDetail(cmd, data)
		},
	}
	cmd.Flags().StringVar(&body, "body", "", "Macro body expression")
	cmd.Flags().StringVar(&bodyFile, "body-file", "", "File holding the macro body")
	cmd.Flags().StringArrayVar(&params, "param", nil, "Macro parameter name; repeatable, order matters")
	cmd.Flags().StringVar(&description, "description", "", "Human-readable description")
	cmd.Flags().StringVar(&status, "status", "", "Macro status (ACTIVE or DEPRECATED)")
	cmd.Flags().StringVar(&jsonInput, "json", "", "Raw JSON request body, or @file to read one")
	return cmd
}

func newMacroUpdateCmd(api *client.Client) *cobra.Command {
	var (
		body        string
		bodyFile    string
		params      []string
		description string
		status      string
		jsonInput   string
	)
	cmd := &cobra.Command{
		Use:   "update <name>",
		Short: "Update a macro",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			reqBody, err := bodyFromJSONInput(jsonInput)
			if err != nil {
				return err
			}
			if reqBody == nil {
				reqBody = map[string]interface{}{}
				if body != "" || bodyFile != "" {
					text, err := macroBody(body, bodyFile)
					if err != nil {
						return err
					}
					reqBody["body"] = text
				}
				if cmd.Flags().Changed("param") {
					reqBody["parameters"] = params
				}
				if cmd.Flags().Changed("description") {
					reqBody["description"] = description
				}
				if cmd.Flags().Changed("status") {
					reqBody["status"] = status
				}
				if len(reqBody) == 0 {
					return fmt.Errorf("nothing to update: set at least one of --body, --param, --description, --status")
				}
			}

			data, err := doJSON(api, http.MethodPatch, "/macros/"+args[0], nil, reqBody)
			if err != nil {
				return err
			}
			return renderDetail(cmd, data)
		},
	}
	cmd.Flags().StringVar(&body, "body", "", "Macro body expression")
	cmd.Flags().StringVar(&bodyFile, "body-file", "", "File holding the macro body")
	cmd.Flags().StringArrayVar(&params, "param", nil, "Replacement parameter list; repeatable")
	cmd.Flags().StringVar(&description, "description", "", "Human-readable description")
	cmd.Flags().StringVar(&status, "status", "", "Macro status (ACTIVE or DEPRECATED)")
	cmd.Flags().StringVar(&jsonInput, "json", "", "Raw JSON request body, or @file to read one")
	return cmd
}

func newMacroDeleteCmd(api *client.Client) *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "delete <name>",
		Short: "Delete a macro",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return confirmedDelete(cmd, api, yes, "/macros/"+args[0])
		},
	}
	cmd.Flags().BoolVar(&yes, "yes", false, "Skip the confirmation prompt")
	return cmd
}

func newMacroExpandCmd(api *client.Client) *cobra.Command {
	var macroArgs []string
	cmd := &cobra.Command{
		Use:     "expand <name>",
		Short:   "Expand a macro into the filter expression it produces",
		Example: "  quarry macro expand recent --arg days=7",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			argValues, err := parseKeyValueArgs(macroArgs)
			if err != nil {
				return err
			}
			body := map[string]interface{}{}
			if len(argValues) > 0 {
				body["args"] = argValues
			}

			data, err := doJSON(api, http.MethodPost, "/macros/"+args[0]+"/expand", nil, body)
			if err != nil {
				return err
			}
			if getOutputFormat(cmd) == "json" {
				return client.PrintJSON(os.Stdout, data)
			}
			fmt.Fprintln(os.Stdout, client.ExtractField(data, "filter"))
			return nil
		},
	}
	cmd.Flags().StringArrayVar(&macroArgs, "arg", nil, "Macro argument as name=value; repeatable")
	return cmd
}

// parseKeyValueArgs parses repeated name=value flags.
func parseKeyValueArgs(pairs []string) (map[string]string, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	out := make(map[string]string, len(pairs))
	for _, pair := range pairs {
		name, value, ok := strings.Cut(pair, "=")
		if !ok || name == "" {
			return nil, fmt.Errorf("invalid --arg %q: expected name=value", pair)
		}
		out[name] = value
	}
	return out, nil
}
