package cli

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"quarry/pkg/cli/client"
)

func newQueryCmd(api *client.Client) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "query",
		Short: "Run queries and inspect their history",
	}
	cmd.AddCommand(newQueryRunCmd(api))
	cmd.AddCommand(newQueryExplainCmd(api))
	cmd.AddCommand(newQueryHistoryCmd(api))
	return cmd
}

// planFlags holds the step flags shared by `query run` and `query explain`.
type planFlags struct {
	planFile string
	selects  []string
	filters  []string
	groupBy  []string
	aggs     []string
	sorts    []string
	distinct bool
	limit    int64
	offset   int64
}

func (f *planFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.planFile, "plan-file", "", "JSON plan file; mutually exclusive with step flags")
	cmd.Flags().StringSliceVar(&f.selects, "select", nil, "Columns to project (comma separated)")
	cmd.Flags().StringArrayVar(&f.filters, "filter", nil, "Filter expression; repeatable, combined with AND")
	cmd.Flags().StringSliceVar(&f.groupBy, "group-by", nil, "Grouping columns (comma separated)")
	cmd.Flags().StringArrayVar(&f.aggs, "agg", nil, `Aggregate such as "sum(fare) as total"; repeatable`)
	cmd.Flags().StringArrayVar(&f.sorts, "sort", nil, "Sort key, column or column:desc; repeatable")
	cmd.Flags().BoolVar(&f.distinct, "distinct", false, "Deduplicate result rows")
	cmd.Flags().Int64Var(&f.limit, "limit", 0, "Maximum rows to return")
	cmd.Flags().Int64Var(&f.offset, "offset", 0, "Rows to skip")
}

var planStepFlagNames = []string{"select", "filter", "group-by", "agg", "sort", "distinct", "limit", "offset"}

func stepFlagsChanged(cmd *cobra.Command) bool {
	for _, name := range planStepFlagNames {
		if cmd.Flags().Changed(name) {
			return true
		}
	}
	return false
}

// buildPlan turns the flags into the wire plan. Each --filter becomes its
// own step; the steps are emitted in SQL evaluation order.
func (f *planFlags) buildPlan(cmd *cobra.Command, dataset string) (map[string]interface{}, error) {
	if f.planFile != "" {
		if stepFlagsChanged(cmd) {
			return nil, fmt.Errorf("--plan-file cannot be combined with step flags")
		}
		raw, err := os.ReadFile(f.planFile)
		if err != nil {
			return nil, fmt.Errorf("read plan file: %w", err)
		}
		var plan map[string]interface{}
		if err := json.Unmarshal(raw, &plan); err != nil {
			return nil, fmt.Errorf("parse plan file: %w", err)
		}
		if dataset != "" {
			plan["dataset"] = dataset
		}
		return plan, nil
	}

	steps := []map[string]interface{}{}
	for _, expr := range f.filters {
		steps = append(steps, map[string]interface{}{"op": "filter", "expr": expr})
	}
	if len(f.groupBy) > 0 {
		steps = append(steps, map[string]interface{}{"op": "group_by", "columns": f.groupBy})
	}
	if len(f.aggs) > 0 {
		aggs := make([]map[string]interface{}, 0, len(f.aggs))
		for _, raw := range f.aggs {
			agg, err := parseAggSpec(raw)
			if err != nil {
				return nil, err
			}
			aggs = append(aggs, agg)
		}
		steps = append(steps, map[string]interface{}{"op": "aggregate", "aggs": aggs})
	}
	if len(f.selects) > 0 {
		steps = append(steps, map[string]interface{}{"op": "select", "columns": f.selects})
	}
	if f.distinct {
		steps = append(steps, map[string]interface{}{"op": "distinct"})
	}
	if len(f.sorts) > 0 {
		keys := make([]map[string]interface{}, 0, len(f.sorts))
		for _, raw := range f.sorts {
			column, desc := parseSortKey(raw)
			key := map[string]interface{}{"column": column}
			if desc {
				key["desc"] = true
			}
			keys = append(keys, key)
		}
		steps = append(steps, map[string]interface{}{"op": "sort", "keys": keys})
	}
	if cmd.Flags().Changed("offset") {
		steps = append(steps, map[string]interface{}{"op": "offset", "n": f.offset})
	}
	if cmd.Flags().Changed("limit") {
		steps = append(steps, map[string]interface{}{"op": "limit", "n": f.limit})
	}
	return map[string]interface{}{"dataset": dataset, "steps": steps}, nil
}

func newQueryRunCmd(api *client.Client) *cobra.Command {
	flags := &planFlags{}
	cmd := &cobra.Command{
		Use:   "run [dataset]",
		Short: "Build a plan from flags and materialize it",
		Example: `  quarry query run trips --filter "year = 2024" --select vendor,fare --limit 10

  quarry query run trips --group-by vendor --agg "sum(fare) as total" \
    --sort total:desc

  quarry query run --plan-file plan.json`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dataset := ""
			if len(args) == 1 {
				dataset = args[0]
			}
			if dataset == "" && flags.planFile == "" {
				return fmt.Errorf("a dataset argument or --plan-file is required")
			}

			plan, err := flags.buildPlan(cmd, dataset)
			if err != nil {
				return err
			}
			data, err := doJSON(api, http.MethodPost, "/query", nil, plan)
			if err != nil {
				return err
			}
			if getOutputFormat(cmd) == "json" {
				return client.PrintJSON(os.Stdout, data)
			}

			columns := stringValues(data["columns"])
			var rows [][]string
			if rawRows, ok := data["rows"].([]interface{}); ok {
				for _, rawRow := range rawRows {
					cells, ok := rawRow.([]interface{})
					if !ok {
						continue
					}
					row := make([]string, 0, len(cells))
					for _, cell := range cells {
						row = append(row, client.FormatValue(cell))
					}
					rows = append(rows, row)
				}
			}
			client.PrintTable(os.Stdout, columns, rows)

			if stats, ok := data["stats"].(map[string]interface{}); ok {
				fmt.Fprintf(os.Stderr, "\n%s rows in %s ms (scanned %s of %s files)\n",
					client.ExtractField(stats, "rows_returned"),
					client.ExtractField(stats, "duration_ms"),
					client.ExtractField(stats, "files_scanned"),
					client.ExtractField(stats, "files_total"))
			}
			return nil
		},
	}
	flags.register(cmd)
	return cmd
}

func newQueryExplainCmd(api *client.Client) *cobra.Command {
	flags := &planFlags{}
	cmd := &cobra.Command{
		Use:   "explain [dataset]",
		Short: "Show the SQL and file pruning for a plan without running it",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dataset := ""
			if len(args) == 1 {
				dataset = args[0]
			}
			if dataset == "" && flags.planFile == "" {
				return fmt.Errorf("a dataset argument or --plan-file is required")
			}

			plan, err := flags.buildPlan(cmd, dataset)
			if err != nil {
				return err
			}
			data, err := doJSON(api, http.MethodPost, "/query/explain", nil, plan)
			if err != nil {
				return err
			}
			return renderDetail(cmd, data)
		},
	}
	flags.register(cmd)
	return cmd
}

func newQueryHistoryCmd(api *client.Client) *cobra.Command {
	var (
		dataset    string
		principal  string
		status     string
		from       string
		to         string
		maxResults int
		pageToken  string
	)
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List past query executions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			q := listQuery(cmd, maxResults, pageToken)
			if dataset != "" {
				q.Set("dataset", dataset)
			}
			if principal != "" {
				q.Set("principal", principal)
			}
			if status != "" {
				q.Set("status", status)
			}
			if from != "" {
				q.Set("from", from)
			}
			if to != "" {
				q.Set("to", to)
			}
			data, err := doJSON(api, http.MethodGet, "/queries", q, nil)
			if err != nil {
				return err
			}
			return renderList(cmd, data, []string{"id", "dataset_name", "principal_name", "status", "duration_ms", "rows_returned", "created_at"})
		},
	}
	cmd.Flags().StringVar(&dataset, "dataset", "", "Filter by dataset name")
	cmd.Flags().StringVar(&principal, "principal", "", "Filter by principal name")
	cmd.Flags().StringVar(&status, "status", "", "Filter by status (SUCCEEDED or FAILED)")
	cmd.Flags().StringVar(&from, "from", "", "Only entries at or after this RFC3339 time")
	cmd.Flags().StringVar(&to, "to", "", "Only entries before this RFC3339 time")
	cmd.Flags().IntVar(&maxResults, "max-results", 0, "Maximum results per page")
	cmd.Flags().StringVar(&pageToken, "page-token", "", "Page token from a previous response")
	return cmd
}

// parseAggSpec parses "func(column) as alias" with the column and alias
// optional, e.g. "count", "sum(fare)", "avg(fare) as avg_fare".
func parseAggSpec(raw string) (map[string]interface{}, error) {
	spec := strings.TrimSpace(raw)
	alias := ""
	if i := strings.LastIndex(strings.ToLower(spec), " as "); i >= 0 {
		alias = strings.TrimSpace(spec[i+4:])
		spec = strings.TrimSpace(spec[:i])
	}

	fn := spec
	column := ""
	if i := strings.Index(spec, "("); i >= 0 {
		if !strings.HasSuffix(spec, ")") {
			return nil, fmt.Errorf("invalid --agg %q: expected func(column) [as alias]", raw)
		}
		fn = strings.TrimSpace(spec[:i])
		column = strings.TrimSpace(spec[i+1 : len(spec)-1])
	}
	if fn == "" {
		return nil, fmt.Errorf("invalid --agg %q: expected func(column) [as alias]", raw)
	}

	agg := map[string]interface{}{"func": strings.ToLower(fn)}
	if column != "" && column != "*" {
		agg["column"] = column
	}
	if alias != "" {
		agg["as"] = alias
	}
	return agg, nil
}

// parseSortKey parses "column", "column:desc", or "column:asc".
func parseSortKey(raw string) (string, bool) {
	if column, dir, ok := strings.Cut(raw, ":"); ok {
		return column, strings.EqualFold(dir, "desc")
	}
	return raw, false
}

// stringValues renders a decoded JSON array as strings.
func stringValues(v interface{}) []string {
	items, ok := v.([]interface{})
	if !ok {
		return nil
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		out = append(out, client.FormatValue(item))
	}
	return out
}
