package plan

import (
	"quarry/internal/domain"
)

// FromSpec builds a plan from its wire form, applying steps in order.
// Composition errors are returned immediately so API callers get a
// validation failure instead of a poisoned plan.
func FromSpec(spec domain.PlanSpec) (*Plan, error) {
	if spec.Dataset == "" {
		return nil, domain.ErrValidation("plan dataset is required")
	}
	p := New(spec.Dataset)
	for i, step := range spec.Steps {
		switch step.Op {
		case domain.StepSelect:
			p = p.Select(step.Columns...)
		case domain.StepFilter:
			p = p.Filter(step.Expr)
		case domain.StepGroupBy:
			p = p.GroupBy(step.Columns...)
		case domain.StepAggregate:
			aggs := make([]Aggregate, 0, len(step.Aggs))
			for _, a := range step.Aggs {
				aggs = append(aggs, Aggregate{Func: a.Func, Column: a.Column, As: a.As})
			}
			p = p.Aggregate(aggs...)
		case domain.StepSort:
			keys := make([]SortKey, 0, len(step.Keys))
			for _, k := range step.Keys {
				keys = append(keys, SortKey{Column: k.Column, Desc: k.Desc})
			}
			p = p.Sort(keys...)
		case domain.StepLimit:
			p = p.Limit(step.N)
		case domain.StepOffset:
			p = p.Offset(step.N)
		case domain.StepDistinct:
			p = p.Distinct()
		default:
			return nil, domain.ErrValidation("unknown plan step %q at position %d", step.Op, i+1)
		}
		if err := p.Err(); err != nil {
			return nil, err
		}
	}
	return p, nil
}

// Spec returns the wire form of the plan, suitable for logging and replay.
func (p *Plan) Spec() domain.PlanSpec {
	spec := domain.PlanSpec{Dataset: p.dataset}
	if p.selected != nil {
		spec.Steps = append(spec.Steps, domain.StepSpec{Op: domain.StepSelect, Columns: append([]string(nil), p.selected...)})
	}
	for _, raw := range p.rawExprs {
		spec.Steps = append(spec.Steps, domain.StepSpec{Op: domain.StepFilter, Expr: raw})
	}
	if len(p.groupBy) > 0 {
		spec.Steps = append(spec.Steps, domain.StepSpec{Op: domain.StepGroupBy, Columns: append([]string(nil), p.groupBy...)})
	}
	if len(p.aggs) > 0 {
		aggs := make([]domain.AggSpec, 0, len(p.aggs))
		for _, a := range p.aggs {
			aggs = append(aggs, domain.AggSpec{Func: a.Func, Column: a.Column, As: a.As})
		}
		spec.Steps = append(spec.Steps, domain.StepSpec{Op: domain.StepAggregate, Aggs: aggs})
	}
	if len(p.sort) > 0 {
		keys := make([]domain.SortKeySpec, 0, len(p.sort))
		for _, k := range p.sort {
			keys = append(keys, domain.SortKeySpec{Column: k.Column, Desc: k.Desc})
		}
		spec.Steps = append(spec.Steps, domain.StepSpec{Op: domain.StepSort, Keys: keys})
	}
	if p.distinct {
		spec.Steps = append(spec.Steps, domain.StepSpec{Op: domain.StepDistinct})
	}
	if p.limit != nil {
		spec.Steps = append(spec.Steps, domain.StepSpec{Op: domain.StepLimit, N: *p.limit})
	}
	if p.offset != nil {
		spec.Steps = append(spec.Steps, domain.StepSpec{Op: domain.StepOffset, N: *p.offset})
	}
	return spec
}
