package expr

import (
	"regexp"
	"strconv"
	"strings"
)

// Outcome is the result of partially evaluating a predicate against the
// partition values of a single file. Partition columns are constant within
// a file, so a predicate over them evaluates to the same result for every
// row. OutcomeUnknown means the predicate depends on row data and cannot
// be decided from partition values.
type Outcome int

// Outcomes.
const (
	OutcomeUnknown Outcome = iota
	OutcomeTrue
	OutcomeFalse
	OutcomeNull
)

// String returns a readable name for the outcome.
func (o Outcome) String() string {
	switch o {
	case OutcomeTrue:
		return "true"
	case OutcomeFalse:
		return "false"
	case OutcomeNull:
		return "null"
	default:
		return "unknown"
	}
}

// ExcludesAllRows reports whether the outcome proves that no row of the
// file can satisfy the predicate. SQL WHERE keeps a row only when the
// predicate is TRUE, so both FALSE and NULL exclude every row.
func (o Outcome) ExcludesAllRows() bool {
	return o == OutcomeFalse || o == OutcomeNull
}

// Env supplies per-file partition values during partial evaluation.
type Env interface {
	// PartitionValue reports the file's value for a column. ok is false
	// when the column is not a partition key, meaning its value varies by
	// row. null is true when the file's value for the key is NULL.
	PartitionValue(col string) (val string, null, ok bool)
}

// MapEnv is an Env backed by a declared key set and extracted value map.
// A declared key with no entry in Values reads as NULL, matching the
// NULL constant the engine injects for that file's column.
type MapEnv struct {
	Keys   map[string]bool
	Values map[string]string
}

// PartitionValue implements Env.
func (e MapEnv) PartitionValue(col string) (string, bool, bool) {
	if !e.Keys[col] {
		return "", false, false
	}
	v, present := e.Values[col]
	if !present {
		return "", true, true
	}
	return v, false, true
}

// EvalPartition partially evaluates a predicate against one file's partition
// values. The result is sound for pruning: when ExcludesAllRows reports true
// the file cannot contribute rows, and any construct the evaluator does not
// model yields OutcomeUnknown, never a wrong exclusion.
func EvalPartition(e Expr, env Env) Outcome {
	return evalBool(e, env)
}

// === Value model ===

type valueKind int

const (
	vUnknown valueKind = iota
	vNull
	vBool
	vNumber
	vString
)

type value struct {
	kind valueKind
	b    bool
	f    float64
	s    string
}

var (
	unknownValue = value{kind: vUnknown}
	nullValue    = value{kind: vNull}
)

// evalValue evaluates an expression to a scalar value where possible.
func evalValue(e Expr, env Env) value {
	switch ex := e.(type) {
	case *Literal:
		return literalValue(ex)
	case *ColumnRef:
		raw, null, ok := env.PartitionValue(ex.Name)
		if !ok {
			return unknownValue
		}
		if null {
			return nullValue
		}
		return value{kind: vString, s: raw}
	case *ParenExpr:
		return evalValue(ex.Expr, env)
	case *UnaryExpr:
		if ex.Op == TOKEN_MINUS || ex.Op == TOKEN_PLUS {
			v := evalValue(ex.Expr, env)
			if n, ok := v.asNumber(); ok {
				if ex.Op == TOKEN_MINUS {
					n = -n
				}
				return value{kind: vNumber, f: n}
			}
			if v.kind == vNull {
				return nullValue
			}
		}
		return unknownValue
	default:
		// Functions, CASE, CAST, and arithmetic stay unknown; the engine
		// evaluates them over row data instead.
		return unknownValue
	}
}

func literalValue(lit *Literal) value {
	switch lit.Kind {
	case LiteralNull:
		return nullValue
	case LiteralBool:
		return value{kind: vBool, b: strings.EqualFold(lit.Value, "true")}
	case LiteralNumber:
		f, err := strconv.ParseFloat(lit.Value, 64)
		if err != nil {
			return unknownValue
		}
		return value{kind: vNumber, f: f}
	default:
		return value{kind: vString, s: lit.Value}
	}
}

// asNumber coerces the value to a number. Partition values are raw path
// strings, so strings that parse numerically compare as numbers.
func (v value) asNumber() (float64, bool) {
	switch v.kind {
	case vNumber:
		return v.f, true
	case vString:
		f, err := strconv.ParseFloat(strings.TrimSpace(v.s), 64)
		return f, err == nil
	default:
		return 0, false
	}
}

// compare orders two values. comparable is false when the pair cannot be
// decided statically (unknown operands or incompatible kinds).
func compare(a, b value) (cmp int, isNull, comparable bool) {
	if a.kind == vUnknown || b.kind == vUnknown {
		return 0, false, false
	}
	if a.kind == vNull || b.kind == vNull {
		return 0, true, true
	}

	// Numeric comparison whenever one side is a number and the other
	// coerces. Hive path values are strings; "year=2020" must equal 2020.
	if a.kind == vNumber || b.kind == vNumber {
		af, aok := a.asNumber()
		bf, bok := b.asNumber()
		if !aok || !bok {
			return 0, false, false
		}
		switch {
		case af < bf:
			return -1, false, true
		case af > bf:
			return 1, false, true
		default:
			return 0, false, true
		}
	}

	if a.kind == vBool && b.kind == vBool {
		ai, bi := 0, 0
		if a.b {
			ai = 1
		}
		if b.b {
			bi = 1
		}
		return ai - bi, false, true
	}

	if a.kind == vString && b.kind == vString {
		return strings.Compare(a.s, b.s), false, true
	}

	return 0, false, false
}

// === Predicate evaluation ===

func evalBool(e Expr, env Env) Outcome {
	switch ex := e.(type) {
	case *BinaryExpr:
		return evalBinary(ex, env)
	case *UnaryExpr:
		if ex.Op == TOKEN_NOT {
			return notOutcome(evalBool(ex.Expr, env))
		}
		return OutcomeUnknown
	case *ParenExpr:
		return evalBool(ex.Expr, env)
	case *InExpr:
		return evalIn(ex, env)
	case *BetweenExpr:
		return evalBetween(ex, env)
	case *IsNullExpr:
		return evalIsNull(ex, env)
	case *IsBoolExpr:
		return evalIsBool(ex, env)
	case *LikeExpr:
		return evalLike(ex, env)
	case *Literal:
		return boolOutcome(literalValue(ex))
	case *ColumnRef:
		return boolOutcome(evalValue(ex, env))
	default:
		return OutcomeUnknown
	}
}

func evalBinary(e *BinaryExpr, env Env) Outcome {
	switch e.Op {
	case TOKEN_AND:
		return andOutcome(evalBool(e.Left, env), evalBool(e.Right, env))
	case TOKEN_OR:
		return orOutcome(evalBool(e.Left, env), evalBool(e.Right, env))
	case TOKEN_EQ, TOKEN_NE, TOKEN_LT, TOKEN_LE, TOKEN_GT, TOKEN_GE:
		return evalComparison(e.Op, evalValue(e.Left, env), evalValue(e.Right, env))
	default:
		return OutcomeUnknown
	}
}

func evalComparison(op TokenType, a, b value) Outcome {
	cmp, isNull, comparable := compare(a, b)
	if !comparable {
		return OutcomeUnknown
	}
	if isNull {
		return OutcomeNull
	}

	var result bool
	switch op {
	case TOKEN_EQ:
		result = cmp == 0
	case TOKEN_NE:
		result = cmp != 0
	case TOKEN_LT:
		result = cmp < 0
	case TOKEN_LE:
		result = cmp <= 0
	case TOKEN_GT:
		result = cmp > 0
	case TOKEN_GE:
		result = cmp >= 0
	default:
		return OutcomeUnknown
	}
	return boolToOutcome(result)
}

// evalIn implements x IN (a, b, ...) as a chain of equality ORs with SQL
// NULL semantics: a match wins, otherwise any NULL comparison taints the
// result to NULL.
func evalIn(e *InExpr, env Env) Outcome {
	lhs := evalValue(e.Expr, env)
	if lhs.kind == vUnknown {
		return OutcomeUnknown
	}

	result := OutcomeFalse
	for _, v := range e.Values {
		result = orOutcome(result, evalComparison(TOKEN_EQ, lhs, evalValue(v, env)))
		if result == OutcomeTrue {
			break
		}
	}
	if e.Not {
		return notOutcome(result)
	}
	return result
}

func evalBetween(e *BetweenExpr, env Env) Outcome {
	x := evalValue(e.Expr, env)
	result := andOutcome(
		evalComparison(TOKEN_GE, x, evalValue(e.Low, env)),
		evalComparison(TOKEN_LE, x, evalValue(e.High, env)),
	)
	if e.Not {
		return notOutcome(result)
	}
	return result
}

func evalIsNull(e *IsNullExpr, env Env) Outcome {
	v := evalValue(e.Expr, env)
	if v.kind == vUnknown {
		return OutcomeUnknown
	}
	result := v.kind == vNull
	if e.Not {
		result = !result
	}
	return boolToOutcome(result)
}

// evalIsBool implements IS [NOT] TRUE/FALSE, which never yields NULL.
func evalIsBool(e *IsBoolExpr, env Env) Outcome {
	o := evalBool(e.Expr, env)
	if o == OutcomeUnknown {
		return OutcomeUnknown
	}

	var result bool
	switch o {
	case OutcomeTrue:
		result = e.Value
	case OutcomeFalse:
		result = !e.Value
	case OutcomeNull:
		result = false
	}
	if e.Not {
		result = !result
	}
	return boolToOutcome(result)
}

func evalLike(e *LikeExpr, env Env) Outcome {
	lhs := evalValue(e.Expr, env)
	if lhs.kind == vUnknown {
		return OutcomeUnknown
	}
	if lhs.kind == vNull {
		return OutcomeNull
	}
	if lhs.kind != vString {
		return OutcomeUnknown
	}

	pattern := evalValue(e.Pattern, env)
	if pattern.kind == vNull {
		return OutcomeNull
	}
	if pattern.kind != vString {
		return OutcomeUnknown
	}

	var escape byte
	if e.Escape != nil {
		esc := evalValue(e.Escape, env)
		if esc.kind != vString || len(esc.s) != 1 {
			return OutcomeUnknown
		}
		escape = esc.s[0]
	}

	re, err := likeRegexp(pattern.s, escape, e.ILike)
	if err != nil {
		return OutcomeUnknown
	}
	result := re.MatchString(lhs.s)
	if e.Not {
		result = !result
	}
	return boolToOutcome(result)
}

// likeRegexp translates a SQL LIKE pattern into an anchored regexp.
// % matches any run, _ matches one character.
func likeRegexp(pattern string, escape byte, caseInsensitive bool) (*regexp.Regexp, error) {
	var sb strings.Builder
	if caseInsensitive {
		sb.WriteString("(?is)")
	} else {
		sb.WriteString("(?s)")
	}
	sb.WriteString("^")
	for i := 0; i < len(pattern); i++ {
		c := pattern[i]
		if escape != 0 && c == escape && i+1 < len(pattern) {
			i++
			sb.WriteString(regexp.QuoteMeta(string(pattern[i])))
			continue
		}
		switch c {
		case '%':
			sb.WriteString(".*")
		case '_':
			sb.WriteString(".")
		default:
			sb.WriteString(regexp.QuoteMeta(string(c)))
		}
	}
	sb.WriteString("$")
	return regexp.Compile(sb.String())
}

// === Outcome algebra ===

// Kleene AND extended with Unknown. FALSE dominates; an Unknown operand
// makes anything else undecidable except a dominating FALSE.
func andOutcome(a, b Outcome) Outcome {
	if a == OutcomeFalse || b == OutcomeFalse {
		return OutcomeFalse
	}
	if a == OutcomeUnknown || b == OutcomeUnknown {
		return OutcomeUnknown
	}
	if a == OutcomeNull || b == OutcomeNull {
		return OutcomeNull
	}
	return OutcomeTrue
}

// Kleene OR extended with Unknown. TRUE dominates.
func orOutcome(a, b Outcome) Outcome {
	if a == OutcomeTrue || b == OutcomeTrue {
		return OutcomeTrue
	}
	if a == OutcomeUnknown || b == OutcomeUnknown {
		return OutcomeUnknown
	}
	if a == OutcomeNull || b == OutcomeNull {
		return OutcomeNull
	}
	return OutcomeFalse
}

// NOT flips TRUE and FALSE; NULL and Unknown are fixed points.
func notOutcome(a Outcome) Outcome {
	switch a {
	case OutcomeTrue:
		return OutcomeFalse
	case OutcomeFalse:
		return OutcomeTrue
	default:
		return a
	}
}

func boolToOutcome(b bool) Outcome {
	if b {
		return OutcomeTrue
	}
	return OutcomeFalse
}

// boolOutcome interprets a scalar value in boolean position.
func boolOutcome(v value) Outcome {
	switch v.kind {
	case vBool:
		return boolToOutcome(v.b)
	case vNull:
		return OutcomeNull
	default:
		return OutcomeUnknown
	}
}
