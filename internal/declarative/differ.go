package declarative

import (
	"fmt"
	"sort"
	"strings"

	"quarry/internal/domain"
)

// Diff compares the desired state (from YAML) against the actual state
// (from the server) and returns a plan of the changes needed. Resources on
// the server but absent from YAML are deleted: the manifest directory is
// the source of truth.
func Diff(desired, actual *DesiredState) *Plan {
	plan := &Plan{}
	diffDatasets(plan, desired.Datasets, actual.Datasets)
	diffMacros(plan, desired.Macros, actual.Macros)
	plan.SortActions()
	return plan
}

func addCreate(plan *Plan, kind ResourceKind, name, filePath string, desired any) {
	plan.Actions = append(plan.Actions, Action{
		Operation:    OpCreate,
		ResourceKind: kind,
		ResourceName: name,
		FilePath:     filePath,
		Desired:      desired,
	})
}

func addUpdate(plan *Plan, kind ResourceKind, name, filePath string, desired, actual any, changes []FieldDiff) {
	plan.Actions = append(plan.Actions, Action{
		Operation:    OpUpdate,
		ResourceKind: kind,
		ResourceName: name,
		FilePath:     filePath,
		Desired:      desired,
		Actual:       actual,
		Changes:      changes,
	})
}

func addDelete(plan *Plan, kind ResourceKind, name string, actual any) {
	plan.Actions = append(plan.Actions, Action{
		Operation:    OpDelete,
		ResourceKind: kind,
		ResourceName: name,
		Actual:       actual,
	})
}

func addError(plan *Plan, kind ResourceKind, name, msg string) {
	plan.Errors = append(plan.Errors, PlanError{
		ResourceKind: kind,
		ResourceName: name,
		Message:      msg,
	})
}

func diffField(changes *[]FieldDiff, field, oldVal, newVal string) {
	if oldVal != newVal {
		*changes = append(*changes, FieldDiff{Field: field, OldValue: oldVal, NewValue: newVal})
	}
}

// === Datasets ===

func diffDatasets(plan *Plan, desired, actual []DatasetResource) {
	actualMap := make(map[string]DatasetResource, len(actual))
	for _, a := range actual {
		actualMap[a.Name] = a
	}

	seen := make(map[string]bool, len(desired))
	for _, d := range desired {
		seen[d.Name] = true
		a, exists := actualMap[d.Name]
		if !exists {
			addCreate(plan, KindDataset, d.Name, d.FilePath, d)
			continue
		}

		// Fields fixed at registration. Drift here is not applyable: the
		// dataset has to be dropped and re-registered deliberately.
		if frozen := frozenDatasetDrift(d, a); len(frozen) > 0 {
			addError(plan, KindDataset, d.Name, fmt.Sprintf(
				"%s cannot change after registration; drop the dataset and apply again", strings.Join(frozen, ", ")))
			continue
		}

		var changes []FieldDiff
		diffField(&changes, "description", a.Spec.Description, d.Spec.Description)
		diffField(&changes, "refresh_cron", a.Spec.RefreshCron, d.Spec.RefreshCron)
		diffField(&changes, "columns", formatColumns(a.Spec.Columns), formatColumns(d.Spec.Columns))
		if len(changes) > 0 {
			addUpdate(plan, KindDataset, d.Name, d.FilePath, d, a, changes)
		}
	}

	for _, a := range actual {
		if !seen[a.Name] {
			addDelete(plan, KindDataset, a.Name, a)
		}
	}
}

// frozenDatasetDrift returns the names of registration-time fields whose
// declared value no longer matches the server.
func frozenDatasetDrift(d, a DatasetResource) []string {
	var drift []string
	if d.Spec.Location != a.Spec.Location {
		drift = append(drift, "location")
	}
	if d.Spec.Format != a.Spec.Format {
		drift = append(drift, "format")
	}
	if normalizePattern(d.Spec) != normalizePattern(a.Spec) {
		drift = append(drift, "pattern")
	}
	if strings.Join(d.Spec.PartitionKeys, ",") != strings.Join(a.Spec.PartitionKeys, ",") {
		drift = append(drift, "partition_keys")
	}
	if d.Spec.Format == domain.FormatCSV && formatCSVDef(d.Spec.CSV) != formatCSVDef(a.Spec.CSV) {
		drift = append(drift, "csv")
	}
	return drift
}

// normalizePattern applies the server-side default so an omitted pattern
// does not read as drift.
func normalizePattern(s DatasetSpec) string {
	if s.Pattern != "" {
		return s.Pattern
	}
	return "**/*." + s.Format
}

// formatCSVDef renders CSV options with defaults applied, for comparison.
func formatCSVDef(c *CSVDef) string {
	delimiter := ","
	header := true
	nullValue := ""
	if c != nil {
		if c.Delimiter != "" {
			delimiter = c.Delimiter
		}
		if c.Header != nil {
			header = *c.Header
		}
		nullValue = c.NullValue
	}
	return fmt.Sprintf("delimiter=%s header=%t null=%s", delimiter, header, nullValue)
}

// formatColumns renders declared column overrides as a stable string.
// Order in YAML is not significant.
func formatColumns(cols []ColumnDef) string {
	if len(cols) == 0 {
		return ""
	}
	parts := make([]string, 0, len(cols))
	for _, c := range cols {
		s := c.Name + ":" + c.Type
		if len(c.Sentinels) > 0 {
			s += "(" + strings.Join(c.Sentinels, "|") + ")"
		}
		parts = append(parts, s)
	}
	sort.Strings(parts)
	return strings.Join(parts, ", ")
}

// === Macros ===

func diffMacros(plan *Plan, desired, actual []MacroResource) {
	actualMap := make(map[string]MacroResource, len(actual))
	for _, a := range actual {
		actualMap[a.Name] = a
	}

	seen := make(map[string]bool, len(desired))
	for _, d := range desired {
		seen[d.Name] = true
		a, exists := actualMap[d.Name]
		if !exists {
			addCreate(plan, KindMacro, d.Name, d.FilePath, d)
			continue
		}
		var changes []FieldDiff
		diffField(&changes, "body", strings.TrimSpace(a.Spec.Body), strings.TrimSpace(d.Spec.Body))
		diffField(&changes, "description", a.Spec.Description, d.Spec.Description)
		diffField(&changes, "parameters", strings.Join(a.Spec.Parameters, ","), strings.Join(d.Spec.Parameters, ","))
		diffField(&changes, "status", normalizeStatus(a.Spec.Status), normalizeStatus(d.Spec.Status))
		if len(changes) > 0 {
			addUpdate(plan, KindMacro, d.Name, d.FilePath, d, a, changes)
		}
	}

	for _, a := range actual {
		if !seen[a.Name] {
			addDelete(plan, KindMacro, a.Name, a)
		}
	}
}

func normalizeStatus(s string) string {
	if s == "" {
		return domain.MacroStatusActive
	}
	return s
}
