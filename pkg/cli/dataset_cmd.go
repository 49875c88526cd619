package cli

import (
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"quarry/pkg/cli/client"
)

func newDatasetCmd(api *client.Client) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dataset",
		Short: "Manage registered datasets",
	}
	cmd.AddCommand(newDatasetListCmd(api))
	cmd.AddCommand(newDatasetGetCmd(api))
	cmd.AddCommand(newDatasetRegisterCmd(api))
	cmd.AddCommand(newDatasetUpdateCmd(api))
	cmd.AddCommand(newDatasetRefreshCmd(api))
	cmd.AddCommand(newDatasetDropCmd(api))
	cmd.AddCommand(newDatasetFilesCmd(api))
	cmd.AddCommand(newDatasetManifestCmd(api))
	return cmd
}

func newDatasetListCmd(api *client.Client) *cobra.Command {
	var (
		maxResults int
		pageToken  string
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List registered datasets",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			data, err := doJSON(api, http.MethodGet, "/datasets", listQuery(cmd, maxResults, pageToken), nil)
			if err != nil {
				return err
			}
			return renderList(cmd, data, []string{"name", "format", "location", "file_count", "last_refresh_at"})
		},
	}
	cmd.Flags().IntVar(&maxResults, "max-results", 0, "Maximum results per page")
	cmd.Flags().StringVar(&pageToken, "page-token", "", "Page token from a previous response")
	return cmd
}

func newDatasetGetCmd(api *client.Client) *cobra.Command {
	return &cobra.Command{
		Use:   "get <name>",
		Short: "Show a dataset",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := doJSON(api, http.MethodGet, "/datasets/"+args[0], nil, nil)
			if err != nil {
				return err
			}
			return renderDetail(cmd, data)
		},
	}
}

func newDatasetRegisterCmd(api *client.Client) *cobra.Command {
	var (
		location      string
		format        string
		pattern       string
		partitionKeys []string
		columns       []string
		description   string
		allowEmpty    bool
		refreshCron   string
		csvDelimiter  string
		csvNoHeader   bool
		csvNull       string
		jsonInput     string
	)
	cmd := &cobra.Command{
		Use:   "register <name>",
		Short: "Register a dataset over files at a storage location",
		Example: `  # Parquet files with hive partitions
  quarry dataset register trips --location s3://lake/trips --format parquet \
    --partition-key year --partition-key month

  # CSV files with declared column overrides
  quarry dataset register zones --location /data/zones --format csv \
    --csv-delimiter ';' --column zone_id:BIGINT --column "borough:VARCHAR"`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			body, err := bodyFromJSONInput(jsonInput)
			if err != nil {
				return err
			}
			if body == nil {
				if location == "" {
					return fmt.Errorf("--location is required")
				}
				if format == "" {
					return fmt.Errorf("--format is required")
				}
				body = map[string]interface{}{
					"name":     args[0],
					"location": location,
					"format":   format,
				}
				if cmd.Flags().Changed("pattern") {
					body["pattern"] = pattern
				}
				if len(partitionKeys) > 0 {
					body["partition_keys"] = partitionKeys
				}
				if len(columns) > 0 {
					cols, err := parseColumnDefs(columns)
					if err != nil {
						return err
					}
					body["columns"] = cols
				}
				if cmd.Flags().Changed("description") {
					body["description"] = description
				}
				if allowEmpty {
					body["allow_empty"] = true
				}
				if cmd.Flags().Changed("refresh-cron") {
					body["refresh_cron"] = refreshCron
				}
				if csv := csvOptionsBody(cmd, csvDelimiter, csvNoHeader, csvNull); len(csv) > 0 {
					body["csv"] = csv
				}
			}

			data, err := doJSON(api, http.MethodPost, "/datasets", nil, body)
			if err != nil {
				return err
			}
			return renderDetail(cmd, data)
		},
	}
	cmd.Flags().StringVar(&location, "location", "", "Root location of the files (path, s3://, gs://, az://)")
	cmd.Flags().StringVar(&format, "format", "", "File format: parquet or csv")
	cmd.Flags().StringVar(&pattern, "pattern", "", "Glob pattern relative to the location (default **/*.<format>)")
	cmd.Flags().StringArrayVar(&partitionKeys, "partition-key", nil, "Hive partition key; repeatable, order matters")
	cmd.Flags().StringArrayVar(&columns, "column", nil, "Declared column override name:TYPE[:sentinel,...]; repeatable")
	cmd.Flags().StringVar(&description, "description", "", "Human-readable description")
	cmd.Flags().BoolVar(&allowEmpty, "allow-empty", false, "Allow registration with zero matching files")
	cmd.Flags().StringVar(&refreshCron, "refresh-cron", "", "Cron spec for automatic refresh")
	cmd.Flags().StringVar(&csvDelimiter, "csv-delimiter", "", "CSV field delimiter")
	cmd.Flags().BoolVar(&csvNoHeader, "csv-no-header", false, "CSV files carry no header row")
	cmd.Flags().StringVar(&csvNull, "csv-null", "", "CSV value read as NULL")
	cmd.Flags().StringVar(&jsonInput, "json", "", "Raw JSON request body, or @file to read one")
	return cmd
}

func newDatasetUpdateCmd(api *client.Client) *cobra.Command {
	var (
		description string
		refreshCron string
		columns     []string
		jsonInput   string
	)
	cmd := &cobra.Command{
		Use:   "update <name>",
		Short: "Update a dataset's mutable fields",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			body, err := bodyFromJSONInput(jsonInput)
			if err != nil {
				return err
			}
			if body == nil {
				body = map[string]interface{}{}
				if cmd.Flags().Changed("description") {
					body["description"] = description
				}
				if cmd.Flags().Changed("refresh-cron") {
					body["refresh_cron"] = refreshCron
				}
				if cmd.Flags().Changed("column") {
					cols, err := parseColumnDefs(columns)
					if err != nil {
						return err
					}
					body["columns"] = cols
				}
				if len(body) == 0 {
					return fmt.Errorf("nothing to update: set at least one of --description, --refresh-cron, --column")
				}
			}

			data, err := doJSON(api, http.MethodPatch, "/datasets/"+args[0], nil, body)
			if err != nil {
				return err
			}
			return renderDetail(cmd, data)
		},
	}
	cmd.Flags().StringVar(&description, "description", "", "Human-readable description")
	cmd.Flags().StringVar(&refreshCron, "refresh-cron", "", "Cron spec for automatic refresh; empty clears it")
	cmd.Flags().StringArrayVar(&columns, "column", nil, "Replacement declared column overrides name:TYPE[:sentinel,...]")
	cmd.Flags().StringVar(&jsonInput, "json", "", "Raw JSON request body, or @file to read one")
	return cmd
}

func newDatasetRefreshCmd(api *client.Client) *cobra.Command {
	return &cobra.Command{
		Use:   "refresh <name>",
		Short: "Re-discover the dataset's files and re-infer its schema",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := doJSON(api, http.MethodPost, "/datasets/"+args[0]+"/refresh", nil, nil)
			if err != nil {
				return err
			}
			return renderDetail(cmd, data)
		},
	}
}

func newDatasetDropCmd(api *client.Client) *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "drop <name>",
		Short: "Drop a dataset and its file records",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return confirmedDelete(cmd, api, yes, "/datasets/"+args[0])
		},
	}
	cmd.Flags().BoolVar(&yes, "yes", false, "Skip the confirmation prompt")
	return cmd
}

func newDatasetFilesCmd(api *client.Client) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "files <name>",
		Short: "List the files discovered for a dataset",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := doJSON(api, http.MethodGet, "/datasets/"+args[0]+"/files", nil, nil)
			if err != nil {
				return err
			}
			if getOutputFormat(cmd) == "json" {
				return client.PrintJSON(os.Stdout, data)
			}
			columns := []string{"path", "size_bytes", "partition", "discovered_at"}
			// ExtractRows reads the "data" key; this endpoint nests under "files".
			rows := client.ExtractRows(map[string]interface{}{"data": data["files"]}, columns)
			client.PrintTable(os.Stdout, columns, rows)
			return nil
		},
	}
	return cmd
}

func newDatasetManifestCmd(api *client.Client) *cobra.Command {
	var filter string
	cmd := &cobra.Command{
		Use:   "manifest <name>",
		Short: "Show the files a filter would scan, with partition pruning applied",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			q := url.Values{}
			if filter != "" {
				q.Set("filter", filter)
			}
			data, err := doJSON(api, http.MethodGet, "/datasets/"+args[0]+"/manifest", q, nil)
			if err != nil {
				return err
			}
			if getOutputFormat(cmd) == "json" {
				return client.PrintJSON(os.Stdout, data)
			}
			columns := []string{"path", "size_bytes", "url"}
			rows := client.ExtractRows(map[string]interface{}{"data": data["files"]}, columns)
			client.PrintTable(os.Stdout, columns, rows)
			if expires := client.ExtractField(data, "expires_at"); expires != "" {
				fmt.Fprintf(os.Stderr, "\nSigned URLs expire at %s\n", expires)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&filter, "filter", "", "Filter expression used to prune partitions")
	return cmd
}

// parseColumnDefs parses --column values of the form name:TYPE or
// name:TYPE:sentinel[,sentinel...].
func parseColumnDefs(defs []string) ([]map[string]interface{}, error) {
	out := make([]map[string]interface{}, 0, len(defs))
	for _, def := range defs {
		parts := strings.SplitN(def, ":", 3)
		if len(parts) < 2 || parts[0] == "" || parts[1] == "" {
			return nil, fmt.Errorf("invalid --column %q: expected name:TYPE", def)
		}
		col := map[string]interface{}{
			"name":     parts[0],
			"type":     parts[1],
			"declared": true,
		}
		if len(parts) == 3 && parts[2] != "" {
			col["sentinels"] = strings.Split(parts[2], ",")
		}
		out = append(out, col)
	}
	return out, nil
}

// csvOptionsBody builds the csv request object from the csv-* flags.
func csvOptionsBody(cmd *cobra.Command, delimiter string, noHeader bool, nullValue string) map[string]interface{} {
	csv := map[string]interface{}{}
	if cmd.Flags().Changed("csv-delimiter") {
		csv["delimiter"] = delimiter
	}
	if noHeader {
		csv["header"] = false
	}
	if cmd.Flags().Changed("csv-null") {
		csv["null_value"] = nullValue
	}
	return csv
}
