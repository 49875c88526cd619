package expr

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestColumns(t *testing.T) {
	tests := []struct {
		input string
		want  []string
	}{
		{"year = 2020", []string{"year"}},
		{"year = 2020 AND year < 2025", []string{"year"}},
		{"a = 1 OR b = 2 AND c = 3", []string{"a", "b", "c"}},
		{"lower(city) LIKE 'n%'", []string{"city"}},
		{"fare BETWEEN low_bound AND high_bound", []string{"fare", "low_bound", "high_bound"}},
		{"CASE WHEN a = 1 THEN b ELSE c END = d", []string{"a", "b", "c", "d"}},
		{"1 = 1", nil},
	}

	for _, tc := range tests {
		t.Run(tc.input, func(t *testing.T) {
			e, err := Parse(tc.input)
			require.NoError(t, err)
			assert.Equal(t, tc.want, Columns(e))
		})
	}
}

func TestFunctions(t *testing.T) {
	e, err := Parse("lower(trim(city)) = 'nyc' AND abs(fare) > 1")
	require.NoError(t, err)
	assert.Equal(t, []string{"lower", "trim", "abs"}, Functions(e))

	e, err = Parse("a = 1")
	require.NoError(t, err)
	assert.Nil(t, Functions(e))
}

func TestOnlyReferences(t *testing.T) {
	e, err := Parse("year = 2020 AND month > 6")
	require.NoError(t, err)

	assert.True(t, OnlyReferences(e, map[string]bool{"year": true, "month": true}))
	assert.False(t, OnlyReferences(e, map[string]bool{"year": true}))
}

func TestWalkSkipsChildren(t *testing.T) {
	e, err := Parse("lower(city) = 'nyc'")
	require.NoError(t, err)

	var visited int
	Walk(e, func(n Expr) bool {
		visited++
		// Stop at the function call; its argument must not be visited.
		_, isCall := n.(*FuncCall)
		return !isCall
	})
	// BinaryExpr, FuncCall, Literal. The ColumnRef inside lower() is skipped.
	assert.Equal(t, 3, visited)
}
