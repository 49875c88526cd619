package cli

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"quarry/pkg/cli/client"
)

func validateOutputFormat(output string) error {
	switch output {
	case "table", "json":
		return nil
	default:
		return fmt.Errorf("unsupported output format %q: use 'table' or 'json'", output)
	}
}

// getOutputFormat reads the resolved --output value for the running command.
func getOutputFormat(cmd *cobra.Command) string {
	output, _ := cmd.Flags().GetString("output")
	return output
}

func isQuiet(cmd *cobra.Command) bool {
	quiet, _ := cmd.Flags().GetBool("quiet")
	return quiet
}

// doJSON executes a request and decodes the JSON object it returns.
func doJSON(api *client.Client, method, path string, query url.Values, body interface{}) (map[string]interface{}, error) {
	resp, err := api.Do(method, path, query, body)
	if err != nil {
		return nil, err
	}
	if err := client.CheckError(resp); err != nil {
		return nil, err
	}
	raw, err := client.ReadBody(resp)
	if err != nil {
		return nil, err
	}
	if len(raw) == 0 {
		return nil, nil
	}
	var data map[string]interface{}
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, fmt.Errorf("parse response: %w", err)
	}
	return data, nil
}

// renderList prints a paginated list response as a table, as JSON, or as
// bare identifiers with --quiet. The first column is the identifier.
func renderList(cmd *cobra.Command, data map[string]interface{}, columns []string) error {
	if getOutputFormat(cmd) == "json" {
		return client.PrintJSON(os.Stdout, data)
	}
	if isQuiet(cmd) {
		for _, row := range client.ExtractRows(data, columns[:1]) {
			fmt.Fprintln(os.Stdout, row[0])
		}
		return nil
	}
	client.PrintTable(os.Stdout, columns, client.ExtractRows(data, columns))
	if token := client.ExtractField(data, "next_page_token"); token != "" {
		fmt.Fprintf(os.Stderr, "\nNext page token: %s\n", token)
	}
	return nil
}

// renderDetail prints a single resource as aligned key/value lines or JSON.
func renderDetail(cmd *cobra.Command, data map[string]interface{}) error {
	if getOutputFormat(cmd) == "json" {
		return client.PrintJSON(os.Stdout, data)
	}
	client.PrintDetail(os.Stdout, data)
	return nil
}

// confirmedDelete prompts unless --yes was given, then issues the DELETE
// and prints the standard acknowledgement.
func confirmedDelete(cmd *cobra.Command, api *client.Client, yes bool, path string) error {
	if !yes && !client.ConfirmPrompt("Are you sure?") {
		return nil
	}
	resp, err := api.Do(http.MethodDelete, path, nil, nil)
	if err != nil {
		return err
	}
	if err := client.CheckError(resp); err != nil {
		return err
	}
	if _, err := client.ReadBody(resp); err != nil {
		return err
	}
	if getOutputFormat(cmd) == "json" {
		return client.PrintJSON(os.Stdout, map[string]string{"status": "ok"})
	}
	fmt.Fprintln(os.Stdout, "Done.")
	return nil
}

// bodyFromJSONInput parses a --json flag value: inline JSON or @path to a
// file holding the request body. Returns nil when the flag is empty.
func bodyFromJSONInput(input string) (map[string]interface{}, error) {
	if input == "" {
		return nil, nil
	}
	raw := []byte(input)
	if strings.HasPrefix(input, "@") {
		data, err := os.ReadFile(strings.TrimPrefix(input, "@"))
		if err != nil {
			return nil, fmt.Errorf("read JSON input: %w", err)
		}
		raw = data
	}
	var body map[string]interface{}
	if err := json.Unmarshal(raw, &body); err != nil {
		return nil, fmt.Errorf("parse JSON input: %w", err)
	}
	return body, nil
}

// listQuery assembles the shared pagination parameters for list commands.
func listQuery(cmd *cobra.Command, maxResults int, pageToken string) url.Values {
	q := url.Values{}
	if cmd.Flags().Changed("max-results") {
		q.Set("max_results", fmt.Sprintf("%d", maxResults))
	}
	if pageToken != "" {
		q.Set("page_token", pageToken)
	}
	return q
}
