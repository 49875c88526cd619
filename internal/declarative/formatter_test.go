package declarative

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func samplePlan() *Plan {
	plan := &Plan{}
	addCreate(plan, KindDataset, "trips", "datasets/trips.yaml", desiredTrips())
	addUpdate(plan, KindMacro, "date_range", "macros/date_range.yaml", nil, nil,
		[]FieldDiff{{Field: "body", OldValue: "old", NewValue: "new"}})
	addDelete(plan, KindDataset, "stale", nil)
	addError(plan, KindDataset, "events", "location cannot change after registration; drop the dataset and apply again")
	plan.SortActions()
	return plan
}

func TestFormatText(t *testing.T) {
	t.Parallel()

	var sb strings.Builder
	FormatText(&sb, samplePlan(), true)
	out := sb.String()

	assert.Contains(t, out, `+ dataset "trips" will be created`)
	assert.Contains(t, out, `~ macro "date_range" will be updated`)
	assert.Contains(t, out, `body: "old" -> "new"`)
	assert.Contains(t, out, `- dataset "stale" will be dropped`)
	assert.Contains(t, out, `! dataset "events": location cannot change`)
	assert.Contains(t, out, "# datasets/trips.yaml")
	assert.Contains(t, out, "Plan: 1 to create, 1 to update, 1 to drop. 1 error(s).")
	assert.NotContains(t, out, "\033[", "noColor must suppress ANSI codes")
}

func TestFormatText_NoChanges(t *testing.T) {
	t.Parallel()

	var sb strings.Builder
	FormatText(&sb, &Plan{}, true)

	assert.Contains(t, sb.String(), "No changes.")
}

func TestFormatJSON(t *testing.T) {
	t.Parallel()

	var sb strings.Builder
	require.NoError(t, FormatJSON(&sb, samplePlan()))

	var decoded struct {
		Actions []struct {
			Operation    string `json:"operation"`
			ResourceKind string `json:"resource_kind"`
			ResourceName string `json:"resource_name"`
		} `json:"actions"`
		Errors []struct {
			ResourceKind string `json:"resource_kind"`
			Message      string `json:"message"`
		} `json:"errors"`
		Summary PlanSummary `json:"summary"`
	}
	require.NoError(t, json.Unmarshal([]byte(sb.String()), &decoded))

	require.Len(t, decoded.Actions, 3)
	assert.Equal(t, "create", decoded.Actions[0].Operation)
	assert.Equal(t, "dataset", decoded.Actions[0].ResourceKind)
	require.Len(t, decoded.Errors, 1)
	assert.Equal(t, "dataset", decoded.Errors[0].ResourceKind)
	assert.Equal(t, PlanSummary{Creates: 1, Updates: 1, Deletes: 1, Errors: 1}, decoded.Summary)
}
