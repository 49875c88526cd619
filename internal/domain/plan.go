package domain

// Plan step operations accepted over the wire.
const (
	StepSelect    = "select"
	StepFilter    = "filter"
	StepGroupBy   = "group_by"
	StepAggregate = "aggregate"
	StepSort      = "sort"
	StepLimit     = "limit"
	StepOffset    = "offset"
	StepDistinct  = "distinct"
)

// PlanSpec is the wire form of a lazy query plan: an ordered list of steps
// applied to a registered dataset. Building a spec performs no I/O; it is
// validated and compiled only when materialized.
type PlanSpec struct {
	Dataset string     `json:"dataset"`
	Steps   []StepSpec `json:"steps"`
}

// StepSpec is a single transformation step. Which fields apply depends on Op.
type StepSpec struct {
	Op      string        `json:"op"`
	Columns []string      `json:"columns,omitempty"` // select, group_by
	Expr    string        `json:"expr,omitempty"`    // filter predicate text
	Aggs    []AggSpec     `json:"aggs,omitempty"`    // aggregate
	Keys    []SortKeySpec `json:"keys,omitempty"`    // sort
	N       int64         `json:"n,omitempty"`       // limit, offset
}

// AggSpec names one aggregate computation.
type AggSpec struct {
	Func   string `json:"func"`             // count, count_distinct, sum, avg, min, max
	Column string `json:"column,omitempty"` // empty only for count
	As     string `json:"as,omitempty"`     // output column name; defaulted when empty
}

// SortKeySpec is one sort key with direction.
type SortKeySpec struct {
	Column string `json:"column"`
	Desc   bool   `json:"desc,omitempty"`
}
