package client

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
)

// PrintJSON writes v as two-space-indented JSON followed by a newline.
func PrintJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encode JSON: %w", err)
	}
	return nil
}

// PrintTable writes rows as a padded table with uppercased headers.
// Columns are separated by two spaces.
func PrintTable(w io.Writer, columns []string, rows [][]string) {
	if len(columns) == 0 {
		return
	}

	widths := make([]int, len(columns))
	for i, col := range columns {
		widths[i] = len(col)
	}
	for _, row := range rows {
		for i, cell := range row {
			if i < len(widths) && len(cell) > widths[i] {
				widths[i] = len(cell)
			}
		}
	}

	header := make([]string, len(columns))
	for i, col := range columns {
		header[i] = strings.ToUpper(col)
	}
	writeTableRow(w, header, widths)
	for _, row := range rows {
		writeTableRow(w, row, widths)
	}
}

// writeTableRow pads every cell but the last so lines carry no trailing
// spaces.
func writeTableRow(w io.Writer, cells []string, widths []int) {
	var b strings.Builder
	for i, width := range widths {
		cell := ""
		if i < len(cells) {
			cell = cells[i]
		}
		if i > 0 {
			b.WriteString("  ")
		}
		if i < len(widths)-1 {
			cell = fmt.Sprintf("%-*s", width, cell)
		}
		b.WriteString(cell)
	}
	fmt.Fprintln(w, b.String())
}

// PrintDetail writes fields as aligned key/value lines, sorted by key.
func PrintDetail(w io.Writer, fields map[string]interface{}) {
	keys := make([]string, 0, len(fields))
	maxLen := 0
	for k := range fields {
		keys = append(keys, k)
		if len(k) > maxLen {
			maxLen = len(k)
		}
	}
	sort.Strings(keys)

	for _, k := range keys {
		fmt.Fprintf(w, "%s:%s  %s\n", k, strings.Repeat(" ", maxLen-len(k)), FormatValue(fields[k]))
	}
}

// FormatValue renders a decoded JSON value for table or detail output.
// Nested objects and arrays render as JSON rather than Go syntax.
func FormatValue(v interface{}) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case map[string]interface{}, []interface{}:
		data, err := json.Marshal(val)
		if err != nil {
			return fmt.Sprintf("%v", val)
		}
		return string(data)
	default:
		return fmt.Sprintf("%v", v)
	}
}

// ExtractField returns the string form of one field from a decoded JSON
// object, or "" when the field is absent or null.
func ExtractField(data map[string]interface{}, key string) string {
	v, ok := data[key]
	if !ok {
		return ""
	}
	return FormatValue(v)
}

// ExtractRows builds table rows from a list response's "data" array.
// Non-object items are skipped; missing columns render empty.
func ExtractRows(data map[string]interface{}, columns []string) [][]string {
	items, ok := data["data"].([]interface{})
	if !ok {
		return nil
	}
	rows := make([][]string, 0, len(items))
	for _, item := range items {
		obj, ok := item.(map[string]interface{})
		if !ok {
			continue
		}
		row := make([]string, len(columns))
		for i, col := range columns {
			row[i] = ExtractField(obj, col)
		}
		rows = append(rows, row)
	}
	return rows
}
