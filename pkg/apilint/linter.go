// Package apilint lints the quarry OpenAPI document for the conventions the
// API is built around: stable operationIds, ref'd schemas, the shared Error
// envelope on failure responses, and max_results/page_token pagination.
// Rules run on the vacuum engine with quarry-specific rule functions.
package apilint

import (
	"errors"
	"fmt"
	"os"
	"sort"

	"github.com/daveshanley/vacuum/motor"

	"go.yaml.in/yaml/v4"
)

// Severity levels, ordered info < warn < error.
type Severity string

const (
	SeverityError Severity = "error"
	SeverityWarn  Severity = "warn"
	SeverityInfo  Severity = "info"
)

var sevRank = map[Severity]int{SeverityInfo: 0, SeverityWarn: 1, SeverityError: 2}

// Violation is a single lint finding.
type Violation struct {
	File     string
	Line     int
	RuleID   string
	Severity Severity
	Message  string
}

// String formats a violation in file:line style.
func (v Violation) String() string {
	return fmt.Sprintf("%s:%d: %s %s: %s", v.File, v.Line, v.RuleID, v.Severity, v.Message)
}

// Linter runs the quarry ruleset over one OpenAPI document.
type Linter struct {
	file string
	spec []byte
}

// New wraps an in-memory spec. file is used only for reporting.
func New(file string, spec []byte) *Linter {
	return &Linter{file: file, spec: spec}
}

// NewFromFile reads the spec from disk.
func NewFromFile(path string) (*Linter, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	// Fail on unparseable YAML here with a decent message rather than a
	// vacuum execution error later.
	var probe yaml.Node
	if err := yaml.Unmarshal(data, &probe); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return New(path, data), nil
}

// Run executes every rule at its default severity.
func (l *Linter) Run() ([]Violation, error) {
	return l.RunWithConfig(nil)
}

// RunWithConfig executes the ruleset with per-rule severity overrides.
// Rules configured "off" are not executed at all.
func (l *Linter) RunWithConfig(cfg *Config) ([]Violation, error) {
	execution := &motor.RuleSetExecution{
		RuleSet:         buildRuleSet(cfg),
		Spec:            l.spec,
		CustomFunctions: customFunctions(),
	}
	result := motor.ApplyRulesToRuleSet(execution)
	if len(result.Errors) > 0 {
		return nil, fmt.Errorf("lint %s: %w", l.file, errors.Join(result.Errors...))
	}

	vs := make([]Violation, 0, len(result.Results))
	for _, r := range result.Results {
		v := Violation{
			File:    l.file,
			RuleID:  r.RuleId,
			Message: r.Message,
		}
		if r.Rule != nil {
			if v.RuleID == "" {
				v.RuleID = r.Rule.Id
			}
			v.Severity = Severity(r.Rule.Severity)
		}
		if v.Severity == "" {
			v.Severity = SeverityWarn
		}
		if r.StartNode != nil {
			v.Line = r.StartNode.Line
		}
		vs = append(vs, v)
	}
	sort.Slice(vs, func(i, j int) bool {
		if vs[i].Line != vs[j].Line {
			return vs[i].Line < vs[j].Line
		}
		return vs[i].RuleID < vs[j].RuleID
	})
	return vs, nil
}

// HasErrors reports whether any violation is error severity.
func HasErrors(vs []Violation) bool {
	for _, v := range vs {
		if v.Severity == SeverityError {
			return true
		}
	}
	return false
}

// Filter keeps violations at or above minSev.
func Filter(vs []Violation, minSev Severity) []Violation {
	minRank := sevRank[minSev]
	var out []Violation
	for _, v := range vs {
		if sevRank[v.Severity] >= minRank {
			out = append(out, v)
		}
	}
	return out
}
