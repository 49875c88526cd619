package engine

import (
	"sort"
	"strconv"
	"strings"

	"quarry/internal/domain"
	"quarry/internal/expr"
	"quarry/internal/plan"
)

// filterFuncs are the scalar functions allowed in filter expressions. The
// list excludes anything volatile so the same plan always scans to the same
// result.
var filterFuncs = map[string]bool{
	"lower":       true,
	"upper":       true,
	"length":      true,
	"abs":         true,
	"round":       true,
	"floor":       true,
	"ceil":        true,
	"trim":        true,
	"ltrim":       true,
	"rtrim":       true,
	"replace":     true,
	"substr":      true,
	"substring":   true,
	"concat":      true,
	"coalesce":    true,
	"nullif":      true,
	"starts_with": true,
	"ends_with":   true,
	"contains":    true,
	"year":        true,
	"month":       true,
	"day":         true,
	"date_trunc":  true,
	"date_part":   true,
}

// castTypes are the target types allowed in CAST expressions.
var castTypes = map[string]bool{
	"BOOLEAN":   true,
	"TINYINT":   true,
	"SMALLINT":  true,
	"INTEGER":   true,
	"INT":       true,
	"BIGINT":    true,
	"FLOAT":     true,
	"REAL":      true,
	"DOUBLE":    true,
	"DECIMAL":   true,
	"NUMERIC":   true,
	"VARCHAR":   true,
	"TEXT":      true,
	"DATE":      true,
	"TIME":      true,
	"TIMESTAMP": true,
}

// Compilation is the SQL a plan compiles to, plus what the scan will touch.
type Compilation struct {
	Dataset      string
	SQL          string
	FilesTotal   int
	ScannedPaths []string
	PrunedPaths  []string
	ColumnsRead  []string // nil when every dataset column is required
}

// Compile validates the plan against the dataset, prunes files the filters
// rule out, and renders a single SELECT over the surviving files. Pruned
// paths never appear in the SQL.
func Compile(p *plan.Plan, d *domain.Dataset, files []domain.DatasetFile) (*Compilation, error) {
	if err := p.Validate(d); err != nil {
		return nil, err
	}
	if err := validateFilters(p); err != nil {
		return nil, err
	}

	kept, prunedPaths := PruneFiles(p.Filters(), d, files)

	required, all := p.RequiredColumns()
	var sourceCols []domain.ColumnSchema
	if all {
		sourceCols = d.Columns
	} else {
		want := make(map[string]bool, len(required))
		for _, c := range required {
			want[c] = true
		}
		for _, c := range d.Columns {
			if want[c.Name] {
				sourceCols = append(sourceCols, c)
			}
		}
	}

	var b strings.Builder
	b.WriteString("WITH scan AS (\n")
	b.WriteString(compileSource(d, sourceCols, kept))
	b.WriteString("\n)\nSELECT ")
	if p.IsDistinct() {
		b.WriteString("DISTINCT ")
	}
	b.WriteString(projection(p))
	b.WriteString("\nFROM scan")

	if filters := p.Filters(); len(filters) > 0 {
		clauses := make([]string, 0, len(filters))
		for _, f := range filters {
			clauses = append(clauses, "("+expr.Format(f)+")")
		}
		b.WriteString("\nWHERE " + strings.Join(clauses, " AND "))
	}
	if keys := p.GroupKeys(); len(keys) > 0 {
		quoted := make([]string, 0, len(keys))
		for _, k := range keys {
			quoted = append(quoted, quoteIdent(k))
		}
		b.WriteString("\nGROUP BY " + strings.Join(quoted, ", "))
	}
	if keys := p.SortKeys(); len(keys) > 0 {
		terms := make([]string, 0, len(keys))
		for _, k := range keys {
			dir := " ASC"
			if k.Desc {
				dir = " DESC"
			}
			terms = append(terms, quoteIdent(k.Column)+dir)
		}
		b.WriteString("\nORDER BY " + strings.Join(terms, ", "))
	}
	if n := p.LimitValue(); n != nil {
		b.WriteString("\nLIMIT " + strconv.FormatInt(*n, 10))
	}
	if n := p.OffsetValue(); n != nil {
		b.WriteString("\nOFFSET " + strconv.FormatInt(*n, 10))
	}

	comp := &Compilation{
		Dataset:      d.Name,
		SQL:          b.String(),
		FilesTotal:   len(files),
		ScannedPaths: make([]string, 0, len(kept)),
		PrunedPaths:  prunedPaths,
	}
	for _, f := range kept {
		comp.ScannedPaths = append(comp.ScannedPaths, f.Path)
	}
	if !all {
		comp.ColumnsRead = required
	}
	return comp, nil
}

// validateFilters rejects filter constructs the engine refuses to compile:
// functions outside the allowlist and casts to unrecognized types.
func validateFilters(p *plan.Plan) error {
	for _, f := range p.Filters() {
		var unsupported error
		expr.Walk(f, func(node expr.Expr) bool {
			switch n := node.(type) {
			case *expr.FuncCall:
				if !filterFuncs[strings.ToLower(n.Name)] {
					unsupported = domain.ErrUnsupported("function %q is not supported in filters", n.Name)
					return false
				}
			case *expr.CastExpr:
				if !castTypeAllowed(n.TypeName) {
					unsupported = domain.ErrUnsupported("cast to %q is not supported in filters", n.TypeName)
					return false
				}
			case *expr.TypeCastExpr:
				if !castTypeAllowed(n.TypeName) {
					unsupported = domain.ErrUnsupported("cast to %q is not supported in filters", n.TypeName)
					return false
				}
			}
			return true
		})
		if unsupported != nil {
			return unsupported
		}
	}
	return nil
}

func castTypeAllowed(typeName string) bool {
	base := typeName
	if i := strings.IndexByte(base, '('); i >= 0 {
		base = base[:i]
	}
	return castTypes[strings.ToUpper(strings.TrimSpace(base))]
}

// projection renders the outer SELECT list.
func projection(p *plan.Plan) string {
	if p.HasAggregation() {
		var items []string
		for _, k := range p.GroupKeys() {
			items = append(items, quoteIdent(k))
		}
		for _, a := range p.Aggregates() {
			items = append(items, aggSQL(a)+" AS "+quoteIdent(a.As))
		}
		return strings.Join(items, ", ")
	}
	sel := p.Selected()
	if sel == nil {
		return "*"
	}
	quoted := make([]string, 0, len(sel))
	for _, c := range sel {
		quoted = append(quoted, quoteIdent(c))
	}
	return strings.Join(quoted, ", ")
}

func aggSQL(a plan.Aggregate) string {
	switch a.Func {
	case "count":
		if a.Column == "" {
			return "count(*)"
		}
		return "count(" + quoteIdent(a.Column) + ")"
	case "count_distinct":
		return "count(DISTINCT " + quoteIdent(a.Column) + ")"
	default:
		return a.Func + "(" + quoteIdent(a.Column) + ")"
	}
}

// partitionGroup is a set of files sharing one partition value tuple. Files
// in the same group share a single read call.
type partitionGroup struct {
	sig   string
	vals  map[string]string
	paths []string
}

func groupFiles(keys []string, files []domain.DatasetFile) []partitionGroup {
	bySig := make(map[string]*partitionGroup)
	for _, f := range files {
		parts := make([]string, 0, len(keys))
		for _, k := range keys {
			v, ok := f.Partition[k]
			if !ok || v == domain.HiveNullSentinel {
				parts = append(parts, "\x00")
			} else {
				parts = append(parts, "\x01"+v)
			}
		}
		sig := strings.Join(parts, "\x1f")
		g, ok := bySig[sig]
		if !ok {
			g = &partitionGroup{sig: sig, vals: f.Partition}
			bySig[sig] = g
		}
		g.paths = append(g.paths, f.Path)
	}
	groups := make([]partitionGroup, 0, len(bySig))
	for _, g := range bySig {
		sort.Strings(g.paths)
		groups = append(groups, *g)
	}
	sort.Slice(groups, func(i, j int) bool { return groups[i].sig < groups[j].sig })
	return groups
}

// compileSource renders the inner scan: one branch per partition group, with
// partition values injected as typed constants. Files lacking a key read it
// as NULL.
func compileSource(d *domain.Dataset, cols []domain.ColumnSchema, files []domain.DatasetFile) string {
	if len(files) == 0 {
		return emptySource(cols)
	}
	groups := groupFiles(d.PartitionKeys, files)
	branches := make([]string, 0, len(groups))
	for _, g := range groups {
		branches = append(branches, branchSQL(d, cols, g))
	}
	return strings.Join(branches, "\nUNION ALL\n")
}

func branchSQL(d *domain.Dataset, cols []domain.ColumnSchema, g partitionGroup) string {
	exprs := make([]string, 0, len(cols))
	var dataCols []string
	for _, c := range cols {
		if c.Partition {
			v, ok := g.vals[c.Name]
			null := !ok || v == domain.HiveNullSentinel
			exprs = append(exprs, partitionConst(c, v, null)+" AS "+quoteIdent(c.Name))
		} else {
			exprs = append(exprs, dataColumnExpr(c))
			dataCols = append(dataCols, c.Name)
		}
	}
	if len(exprs) == 0 {
		// Nothing but a row count is needed; read the cheapest projection.
		exprs = []string{`1 AS "_n"`}
	}

	var opts []string
	if d.Format == domain.FormatCSV {
		opts = csvReadOptions(d.CSV, declaredTypes(d, dataCols))
	}
	return "SELECT " + strings.Join(exprs, ", ") + " FROM " + readCall(d.Format, g.paths, opts)
}

// dataColumnExpr renders a file-backed column, recoding any sentinel values
// to NULL so downstream filters and aggregates never see them.
func dataColumnExpr(c domain.ColumnSchema) string {
	e := quoteIdent(c.Name)
	if len(c.Sentinels) == 0 {
		return e
	}
	for _, s := range c.Sentinels {
		e = "NULLIF(" + e + ", " + quoteLiteral(s) + ")"
	}
	return e + " AS " + quoteIdent(c.Name)
}

// emptySource keeps the pipeline shape intact when every file was pruned or
// the dataset is empty: a zero-row relation with the right column types.
func emptySource(cols []domain.ColumnSchema) string {
	if len(cols) == 0 {
		return `SELECT 1 AS "_n" WHERE false`
	}
	exprs := make([]string, 0, len(cols))
	for _, c := range cols {
		typ := c.Type
		if typ == "" {
			typ = "VARCHAR"
		}
		exprs = append(exprs, "CAST(NULL AS "+typ+") AS "+quoteIdent(c.Name))
	}
	return "SELECT " + strings.Join(exprs, ", ") + " WHERE false"
}

// partitionConst renders a partition value as a typed SQL constant.
func partitionConst(c domain.ColumnSchema, v string, null bool) string {
	typ := c.Type
	if typ == "" {
		typ = "VARCHAR"
	}
	if null {
		return "CAST(NULL AS " + typ + ")"
	}
	lit := quoteLiteral(v)
	if strings.EqualFold(typ, "VARCHAR") || strings.EqualFold(typ, "TEXT") {
		return lit
	}
	return "CAST(" + lit + " AS " + typ + ")"
}

// readCall renders read_parquet(...) or read_csv(...) over a path list.
func readCall(format string, paths []string, opts []string) string {
	quoted := make([]string, 0, len(paths))
	for _, p := range paths {
		quoted = append(quoted, quoteLiteral(p))
	}
	fn := "read_parquet"
	if format == domain.FormatCSV {
		fn = "read_csv"
	}
	call := fn + "([" + strings.Join(quoted, ", ") + "]"
	if len(opts) > 0 {
		call += ", " + strings.Join(opts, ", ")
	}
	return call + ")"
}

// csvReadOptions renders read_csv named parameters. Declared column types pin
// the sniffer so re-materialization cannot drift.
func csvReadOptions(csv domain.CSVOptions, types map[string]string) []string {
	opts := []string{"header = " + strconv.FormatBool(csv.HasHeader())}
	if csv.Delimiter != "" {
		opts = append(opts, "delim = "+quoteLiteral(csv.Delimiter))
	}
	if csv.NullValue != "" {
		opts = append(opts, "nullstr = "+quoteLiteral(csv.NullValue))
	}
	if len(types) > 0 {
		names := make([]string, 0, len(types))
		for name := range types {
			names = append(names, name)
		}
		sort.Strings(names)
		pairs := make([]string, 0, len(names))
		for _, name := range names {
			pairs = append(pairs, quoteLiteral(name)+": "+quoteLiteral(types[name]))
		}
		opts = append(opts, "types = {"+strings.Join(pairs, ", ")+"}")
	}
	return opts
}

// declaredTypes maps declared non-partition columns among names to their types.
func declaredTypes(d *domain.Dataset, names []string) map[string]string {
	if len(names) == 0 {
		return nil
	}
	want := make(map[string]bool, len(names))
	for _, n := range names {
		want[n] = true
	}
	types := make(map[string]string)
	for _, c := range d.Columns {
		if c.Declared && !c.Partition && want[c.Name] {
			types[c.Name] = c.Type
		}
	}
	return types
}

func quoteIdent(name string) string { return expr.QuoteIdent(name) }

func quoteLiteral(v string) string { return expr.QuoteString(v) }
