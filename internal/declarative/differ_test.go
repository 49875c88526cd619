package declarative

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func desiredTrips() DatasetResource {
	return DatasetResource{
		Name:     "trips",
		FilePath: "datasets/trips.yaml",
		Spec: DatasetSpec{
			Location:      "/data/trips",
			Format:        "parquet",
			PartitionKeys: []string{"year", "month"},
			Columns:       []ColumnDef{{Name: "fare", Type: "DOUBLE", Sentinels: []string{"N/A"}}},
			Description:   "NYC taxi trips",
			RefreshCron:   "0 * * * *",
		},
	}
}

// actualTrips mirrors desiredTrips as the server reports it, with the
// pattern default filled in.
func actualTrips() DatasetResource {
	r := desiredTrips()
	r.FilePath = ""
	r.Spec.Pattern = "**/*.parquet"
	return r
}

func desiredDateRange() MacroResource {
	return MacroResource{
		Name:     "date_range",
		FilePath: "macros/date_range.yaml",
		Spec: MacroSpec{
			Parameters: []string{"start", "end"},
			Body:       "def expand(start, end):\n    return 'x'",
		},
	}
}

func TestDiff_CreatesEverything(t *testing.T) {
	t.Parallel()

	desired := &DesiredState{
		Datasets: []DatasetResource{desiredTrips()},
		Macros:   []MacroResource{desiredDateRange()},
	}

	plan := Diff(desired, &DesiredState{})

	require.Len(t, plan.Actions, 2)
	assert.Empty(t, plan.Errors)
	// Datasets sort before macros on create.
	assert.Equal(t, OpCreate, plan.Actions[0].Operation)
	assert.Equal(t, KindDataset, plan.Actions[0].ResourceKind)
	assert.Equal(t, "trips", plan.Actions[0].ResourceName)
	assert.Equal(t, "datasets/trips.yaml", plan.Actions[0].FilePath)
	assert.Equal(t, KindMacro, plan.Actions[1].ResourceKind)

	s := plan.Summary()
	assert.Equal(t, PlanSummary{Creates: 2}, s)
}

func TestDiff_NoChanges(t *testing.T) {
	t.Parallel()

	desired := &DesiredState{
		Datasets: []DatasetResource{desiredTrips()},
		Macros:   []MacroResource{desiredDateRange()},
	}
	server := desiredDateRange()
	server.Spec.Status = "ACTIVE" // stored default, absent from YAML
	actual := &DesiredState{
		Datasets: []DatasetResource{actualTrips()},
		Macros:   []MacroResource{server},
	}

	plan := Diff(desired, actual)

	assert.False(t, plan.HasChanges())
}

func TestDiff_UpdatesMutableFields(t *testing.T) {
	t.Parallel()

	d := desiredTrips()
	d.Spec.Description = "Yellow cab trips"
	d.Spec.RefreshCron = ""
	d.Spec.Columns = append(d.Spec.Columns, ColumnDef{Name: "tip", Type: "DOUBLE"})

	plan := Diff(
		&DesiredState{Datasets: []DatasetResource{d}},
		&DesiredState{Datasets: []DatasetResource{actualTrips()}},
	)

	require.Len(t, plan.Actions, 1)
	a := plan.Actions[0]
	assert.Equal(t, OpUpdate, a.Operation)
	require.Len(t, a.Changes, 3)

	fields := map[string]FieldDiff{}
	for _, c := range a.Changes {
		fields[c.Field] = c
	}
	assert.Equal(t, "NYC taxi trips", fields["description"].OldValue)
	assert.Equal(t, "Yellow cab trips", fields["description"].NewValue)
	assert.Equal(t, "0 * * * *", fields["refresh_cron"].OldValue)
	assert.Equal(t, "", fields["refresh_cron"].NewValue)
	assert.Contains(t, fields["columns"].NewValue, "tip:DOUBLE")
}

func TestDiff_ColumnOrderIrrelevant(t *testing.T) {
	t.Parallel()

	d := desiredTrips()
	d.Spec.Columns = []ColumnDef{
		{Name: "vendor", Type: "VARCHAR"},
		{Name: "fare", Type: "DOUBLE", Sentinels: []string{"N/A"}},
	}
	a := actualTrips()
	a.Spec.Columns = []ColumnDef{
		{Name: "fare", Type: "DOUBLE", Sentinels: []string{"N/A"}},
		{Name: "vendor", Type: "VARCHAR"},
	}

	plan := Diff(
		&DesiredState{Datasets: []DatasetResource{d}},
		&DesiredState{Datasets: []DatasetResource{a}},
	)

	assert.False(t, plan.HasChanges())
}

func TestDiff_FrozenFieldDrift(t *testing.T) {
	t.Parallel()

	d := desiredTrips()
	d.Spec.Location = "/data/trips-v2"
	d.Spec.PartitionKeys = []string{"year"}

	plan := Diff(
		&DesiredState{Datasets: []DatasetResource{d}},
		&DesiredState{Datasets: []DatasetResource{actualTrips()}},
	)

	assert.Empty(t, plan.Actions)
	require.Len(t, plan.Errors, 1)
	e := plan.Errors[0]
	assert.Equal(t, KindDataset, e.ResourceKind)
	assert.Equal(t, "trips", e.ResourceName)
	assert.Contains(t, e.Message, "location, partition_keys")
	assert.Contains(t, e.Message, "drop the dataset")
}

func TestDiff_CSVDrift(t *testing.T) {
	t.Parallel()

	delim := func(s string) *CSVDef { return &CSVDef{Delimiter: s} }

	d := DatasetResource{Name: "events", Spec: DatasetSpec{Location: "s3://lake/events", Format: "csv", CSV: delim(";")}}
	a := DatasetResource{Name: "events", Spec: DatasetSpec{Location: "s3://lake/events", Format: "csv", Pattern: "**/*.csv", CSV: delim("|")}}

	plan := Diff(
		&DesiredState{Datasets: []DatasetResource{d}},
		&DesiredState{Datasets: []DatasetResource{a}},
	)

	require.Len(t, plan.Errors, 1)
	assert.Contains(t, plan.Errors[0].Message, "csv")
}

func TestDiff_CSVDefaultsNotDrift(t *testing.T) {
	t.Parallel()

	// nil CSV in YAML vs explicit defaults on the server.
	header := true
	d := DatasetResource{Name: "events", Spec: DatasetSpec{Location: "s3://lake/events", Format: "csv"}}
	a := DatasetResource{Name: "events", Spec: DatasetSpec{
		Location: "s3://lake/events", Format: "csv", Pattern: "**/*.csv",
		CSV: &CSVDef{Delimiter: ",", Header: &header},
	}}

	plan := Diff(
		&DesiredState{Datasets: []DatasetResource{d}},
		&DesiredState{Datasets: []DatasetResource{a}},
	)

	assert.False(t, plan.HasChanges())
}

func TestDiff_DeletesUnmanaged(t *testing.T) {
	t.Parallel()

	plan := Diff(&DesiredState{}, &DesiredState{
		Datasets: []DatasetResource{actualTrips()},
		Macros:   []MacroResource{desiredDateRange()},
	})

	require.Len(t, plan.Actions, 2)
	// Deletes run in reverse layer order: macros before datasets.
	assert.Equal(t, OpDelete, plan.Actions[0].Operation)
	assert.Equal(t, KindMacro, plan.Actions[0].ResourceKind)
	assert.Equal(t, KindDataset, plan.Actions[1].ResourceKind)
	assert.Equal(t, PlanSummary{Deletes: 2}, plan.Summary())
}

func TestDiff_MacroBodyChange(t *testing.T) {
	t.Parallel()

	d := desiredDateRange()
	d.Spec.Body = "def expand(start, end):\n    return 'y'"

	plan := Diff(
		&DesiredState{Macros: []MacroResource{d}},
		&DesiredState{Macros: []MacroResource{desiredDateRange()}},
	)

	require.Len(t, plan.Actions, 1)
	a := plan.Actions[0]
	assert.Equal(t, OpUpdate, a.Operation)
	require.Len(t, a.Changes, 1)
	assert.Equal(t, "body", a.Changes[0].Field)
}

func TestDiff_MacroTrailingNewlineNotDrift(t *testing.T) {
	t.Parallel()

	// YAML block scalars keep a trailing newline the API response may not.
	d := desiredDateRange()
	d.Spec.Body += "\n"

	plan := Diff(
		&DesiredState{Macros: []MacroResource{d}},
		&DesiredState{Macros: []MacroResource{desiredDateRange()}},
	)

	assert.False(t, plan.HasChanges())
}

func TestDiff_Ordering(t *testing.T) {
	t.Parallel()

	b := desiredTrips()
	b.Name = "boats"

	plan := Diff(
		&DesiredState{
			Datasets: []DatasetResource{desiredTrips(), b},
			Macros:   []MacroResource{desiredDateRange()},
		},
		&DesiredState{
			Datasets: []DatasetResource{{Name: "old", Spec: DatasetSpec{Location: "/x", Format: "parquet"}}},
			Macros:   []MacroResource{{Name: "stale", Spec: MacroSpec{Body: "def expand(): return ''"}}},
		},
	)

	var got []string
	for _, a := range plan.Actions {
		got = append(got, a.Operation.String()+" "+a.ResourceKind.String()+" "+a.ResourceName)
	}
	assert.Equal(t, []string{
		"create dataset boats",
		"create dataset trips",
		"create macro date_range",
		"delete macro stale",
		"delete dataset old",
	}, got)
}
