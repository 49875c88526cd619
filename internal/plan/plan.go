// Package plan provides the immutable logical query plan built by functional
// composition. Building a plan performs no I/O and touches no files; plans
// carry their construction error and validate fully against a dataset schema
// only when materialized.
package plan

import (
	"fmt"
	"strings"

	"quarry/internal/domain"
	"quarry/internal/expr"
)

// Aggregate funcs accepted by plans. Anything else is rejected at build time.
var aggregateFuncs = map[string]bool{
	"count":          true,
	"count_distinct": true,
	"sum":            true,
	"avg":            true,
	"min":            true,
	"max":            true,
	"median":         true,
	"stddev":         true,
}

// Aggregate is one aggregate computation over a column.
type Aggregate struct {
	Func   string
	Column string // empty only for count
	As     string // output column name
}

// SortKey is one sort key with direction.
type SortKey struct {
	Column string
	Desc   bool
}

// Plan is an immutable logical query over a registered dataset. Every
// composition method returns a new plan; the receiver is never modified,
// so a base plan can be extended in several directions safely.
type Plan struct {
	dataset  string
	selected []string // nil means all columns
	filters  []expr.Expr
	rawExprs []string // original filter text, kept for the wire form
	groupBy  []string
	aggs     []Aggregate
	sort     []SortKey
	limit    *int64
	offset   *int64
	distinct bool
	err      error // first composition error; surfaces at materialization
}

// New creates an empty plan over the named dataset.
func New(dataset string) *Plan {
	return &Plan{dataset: dataset}
}

// clone copies the plan so composition never aliases slices with ancestors.
func (p *Plan) clone() *Plan {
	c := &Plan{
		dataset:  p.dataset,
		distinct: p.distinct,
		err:      p.err,
	}
	c.selected = append([]string(nil), p.selected...)
	c.filters = append([]expr.Expr(nil), p.filters...)
	c.rawExprs = append([]string(nil), p.rawExprs...)
	c.groupBy = append([]string(nil), p.groupBy...)
	c.aggs = append([]Aggregate(nil), p.aggs...)
	c.sort = append([]SortKey(nil), p.sort...)
	if p.limit != nil {
		v := *p.limit
		c.limit = &v
	}
	if p.offset != nil {
		v := *p.offset
		c.offset = &v
	}
	return c
}

// fail records the first composition error on a fresh copy.
func (p *Plan) fail(format string, args ...interface{}) *Plan {
	c := p.clone()
	if c.err == nil {
		c.err = domain.ErrValidation(format, args...)
	}
	return c
}

// Err returns the first error recorded while composing the plan.
func (p *Plan) Err() error {
	return p.err
}

// Select narrows the output to the given columns. A later Select replaces an
// earlier one; columns referenced by filters remain available for reading.
func (p *Plan) Select(columns ...string) *Plan {
	if len(columns) == 0 {
		return p.fail("select requires at least one column")
	}
	seen := make(map[string]bool, len(columns))
	for _, col := range columns {
		if col == "" {
			return p.fail("select column name must not be empty")
		}
		if seen[col] {
			return p.fail("duplicate column %q in select", col)
		}
		seen[col] = true
	}
	c := p.clone()
	c.selected = append([]string(nil), columns...)
	return c
}

// Filter adds a predicate. Multiple filters combine with AND. The text is
// parsed now so composition errors surface close to their cause, but columns
// are resolved against the dataset schema only at materialization.
func (p *Plan) Filter(predicate string) *Plan {
	e, err := expr.Parse(predicate)
	if err != nil {
		return p.fail("invalid filter %q: %v", predicate, err)
	}
	c := p.clone()
	c.filters = append(c.filters, e)
	c.rawExprs = append(c.rawExprs, predicate)
	return c
}

// GroupBy sets the grouping keys. Only one grouping is allowed per plan.
func (p *Plan) GroupBy(columns ...string) *Plan {
	if len(p.groupBy) > 0 {
		return p.fail("group_by already applied")
	}
	if len(columns) == 0 {
		return p.fail("group_by requires at least one column")
	}
	seen := make(map[string]bool, len(columns))
	for _, col := range columns {
		if seen[col] {
			return p.fail("duplicate column %q in group_by", col)
		}
		seen[col] = true
	}
	c := p.clone()
	c.groupBy = append([]string(nil), columns...)
	return c
}

// Aggregate appends aggregate computations. Without GroupBy the plan
// aggregates the whole dataset into a single row.
func (p *Plan) Aggregate(aggs ...Aggregate) *Plan {
	if len(aggs) == 0 {
		return p.fail("aggregate requires at least one computation")
	}
	c := p.clone()
	for _, a := range aggs {
		fn := strings.ToLower(a.Func)
		if !aggregateFuncs[fn] {
			return p.fail("unsupported aggregate function %q", a.Func)
		}
		if fn != "count" && a.Column == "" {
			return p.fail("aggregate %s requires a column", fn)
		}
		if a.As == "" {
			if a.Column == "" {
				a.As = fn
			} else {
				a.As = fn + "_" + a.Column
			}
		}
		a.Func = fn
		c.aggs = append(c.aggs, a)
	}
	return c
}

// Count is shorthand for a single row-count aggregate.
func (p *Plan) Count() *Plan {
	return p.Aggregate(Aggregate{Func: "count"})
}

// Sort sets the output ordering. A later Sort replaces an earlier one.
func (p *Plan) Sort(keys ...SortKey) *Plan {
	if len(keys) == 0 {
		return p.fail("sort requires at least one key")
	}
	for _, k := range keys {
		if k.Column == "" {
			return p.fail("sort key column must not be empty")
		}
	}
	c := p.clone()
	c.sort = append([]SortKey(nil), keys...)
	return c
}

// Limit caps the number of output rows.
func (p *Plan) Limit(n int64) *Plan {
	if n < 0 {
		return p.fail("limit must be non-negative")
	}
	c := p.clone()
	c.limit = &n
	return c
}

// Offset skips the first n output rows.
func (p *Plan) Offset(n int64) *Plan {
	if n < 0 {
		return p.fail("offset must be non-negative")
	}
	c := p.clone()
	c.offset = &n
	return c
}

// Distinct deduplicates output rows.
func (p *Plan) Distinct() *Plan {
	c := p.clone()
	c.distinct = true
	return c
}

// === Accessors used by the engine ===

// Dataset returns the dataset name the plan reads from.
func (p *Plan) Dataset() string { return p.dataset }

// Selected returns the projection, or nil when all columns are selected.
func (p *Plan) Selected() []string { return append([]string(nil), p.selected...) }

// Filters returns the parsed filter predicates in application order.
func (p *Plan) Filters() []expr.Expr { return append([]expr.Expr(nil), p.filters...) }

// GroupKeys returns the grouping columns.
func (p *Plan) GroupKeys() []string { return append([]string(nil), p.groupBy...) }

// Aggregates returns the aggregate computations.
func (p *Plan) Aggregates() []Aggregate { return append([]Aggregate(nil), p.aggs...) }

// SortKeys returns the output ordering.
func (p *Plan) SortKeys() []SortKey { return append([]SortKey(nil), p.sort...) }

// LimitValue returns the row cap, or nil when unset.
func (p *Plan) LimitValue() *int64 {
	if p.limit == nil {
		return nil
	}
	v := *p.limit
	return &v
}

// OffsetValue returns the row skip, or nil when unset.
func (p *Plan) OffsetValue() *int64 {
	if p.offset == nil {
		return nil
	}
	v := *p.offset
	return &v
}

// IsDistinct reports whether output rows are deduplicated.
func (p *Plan) IsDistinct() bool { return p.distinct }

// HasAggregation reports whether the plan groups or aggregates.
func (p *Plan) HasAggregation() bool { return len(p.aggs) > 0 || len(p.groupBy) > 0 }

// OutputColumns returns the column names the materialized result will carry,
// or nil when the plan selects all dataset columns.
func (p *Plan) OutputColumns() []string {
	if p.HasAggregation() {
		out := append([]string(nil), p.groupBy...)
		for _, a := range p.aggs {
			out = append(out, a.As)
		}
		return out
	}
	return p.Selected()
}

// RequiredColumns returns the source columns the engine must read: the union
// of everything referenced by projections, filters, groupings, aggregates,
// and sorts. all is true when the plan needs every dataset column.
func (p *Plan) RequiredColumns() (cols []string, all bool) {
	seen := make(map[string]bool)
	add := func(names ...string) {
		for _, n := range names {
			if n != "" && !seen[n] {
				seen[n] = true
				cols = append(cols, n)
			}
		}
	}

	if p.HasAggregation() {
		add(p.groupBy...)
		for _, a := range p.aggs {
			add(a.Column)
		}
		for _, f := range p.filters {
			add(expr.Columns(f)...)
		}
		// Sorts over aggregated output reference output names, not source
		// columns; anything else is caught by Validate.
		return cols, false
	}

	if p.selected == nil {
		return nil, true
	}
	add(p.selected...)
	for _, f := range p.filters {
		add(expr.Columns(f)...)
	}
	for _, k := range p.sort {
		add(k.Column)
	}
	return cols, false
}

// Validate resolves the plan against a dataset schema. Called by the engine
// before compilation; plans built against stale or wrong schemas fail here.
func (p *Plan) Validate(d *domain.Dataset) error {
	if p.err != nil {
		return p.err
	}
	if p.dataset == "" {
		return domain.ErrValidation("plan has no dataset")
	}
	if d.Name != p.dataset {
		return domain.ErrValidation("plan targets dataset %q, got schema for %q", p.dataset, d.Name)
	}

	known := make(map[string]bool, len(d.Columns))
	for _, c := range d.Columns {
		known[c.Name] = true
	}
	for _, col := range p.selected {
		if !known[col] {
			return domain.ErrValidation("unknown column %q in select", col)
		}
	}
	for i, f := range p.filters {
		for _, col := range expr.Columns(f) {
			if !known[col] {
				return domain.ErrValidation("unknown column %q in filter %d", col, i+1)
			}
		}
	}
	for _, col := range p.groupBy {
		if !known[col] {
			return domain.ErrValidation("unknown column %q in group_by", col)
		}
	}
	outNames := make(map[string]bool)
	for _, col := range p.groupBy {
		outNames[col] = true
	}
	for _, a := range p.aggs {
		if a.Column != "" && !known[a.Column] {
			return domain.ErrValidation("unknown column %q in aggregate %s", a.Column, a.Func)
		}
		if outNames[a.As] {
			return domain.ErrValidation("duplicate output column %q in aggregation", a.As)
		}
		outNames[a.As] = true
	}

	if p.HasAggregation() {
		for _, col := range p.selected {
			if !outNames[col] {
				return domain.ErrValidation("select column %q is not produced by the aggregation", col)
			}
		}
		for _, k := range p.sort {
			if !outNames[k.Column] {
				return domain.ErrValidation("sort column %q is not produced by the aggregation", k.Column)
			}
		}
	} else {
		visible := known
		if p.selected != nil {
			visible = make(map[string]bool, len(p.selected))
			for _, col := range p.selected {
				visible[col] = true
			}
		}
		for _, k := range p.sort {
			if !visible[k.Column] {
				return domain.ErrValidation("sort column %q is not in the output", k.Column)
			}
		}
	}

	return nil
}

// String renders a compact description for logs.
func (p *Plan) String() string {
	var parts []string
	parts = append(parts, "dataset="+p.dataset)
	if p.selected != nil {
		parts = append(parts, "select="+strings.Join(p.selected, ","))
	}
	if len(p.rawExprs) > 0 {
		parts = append(parts, fmt.Sprintf("filters=%d", len(p.rawExprs)))
	}
	if len(p.groupBy) > 0 {
		parts = append(parts, "group_by="+strings.Join(p.groupBy, ","))
	}
	if len(p.aggs) > 0 {
		parts = append(parts, fmt.Sprintf("aggs=%d", len(p.aggs)))
	}
	if p.limit != nil {
		parts = append(parts, fmt.Sprintf("limit=%d", *p.limit))
	}
	return strings.Join(parts, " ")
}
