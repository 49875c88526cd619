package declarative

import "sort"

// Action represents a single planned change.
type Action struct {
	Operation    Operation
	ResourceKind ResourceKind
	ResourceName string
	FilePath     string // source YAML file (empty for deletes of server-only resources)
	Desired      any    // the spec from YAML (nil for Delete)
	Actual       any    // the current server state (nil for Create)
	Changes      []FieldDiff
}

// FieldDiff describes a single field change within an Update action.
type FieldDiff struct {
	Field    string `json:"field"`
	OldValue string `json:"old_value"`
	NewValue string `json:"new_value"`
}

// Plan is an ordered list of actions plus the issues that block them.
type Plan struct {
	Actions []Action
	Errors  []PlanError
}

// PlanError is a non-actionable issue found during planning, such as drift
// on an immutable field or a protected resource missing from YAML.
type PlanError struct {
	ResourceKind ResourceKind `json:"resource_kind"`
	ResourceName string       `json:"resource_name"`
	Message      string       `json:"message"`
}

// Summary returns counts of creates, updates, deletes, and errors.
func (p *Plan) Summary() PlanSummary {
	var s PlanSummary
	for _, a := range p.Actions {
		switch a.Operation {
		case OpCreate:
			s.Creates++
		case OpUpdate:
			s.Updates++
		case OpDelete:
			s.Deletes++
		}
	}
	s.Errors = len(p.Errors)
	return s
}

// HasChanges returns true if the plan has any actions or errors.
func (p *Plan) HasChanges() bool {
	return len(p.Actions) > 0 || len(p.Errors) > 0
}

// PlanSummary holds counts of planned operations.
type PlanSummary struct {
	Creates int `json:"creates"`
	Updates int `json:"updates"`
	Deletes int `json:"deletes"`
	Errors  int `json:"errors"`
}

// SortActions orders the plan: creates and updates by ascending layer,
// then deletes by descending layer. Within a group, alphabetical by name.
func (p *Plan) SortActions() {
	sort.SliceStable(p.Actions, func(i, j int) bool {
		ai, aj := p.Actions[i], p.Actions[j]

		iIsDelete := ai.Operation == OpDelete
		jIsDelete := aj.Operation == OpDelete
		if iIsDelete != jIsDelete {
			return !iIsDelete
		}

		li := ai.ResourceKind.Layer()
		lj := aj.ResourceKind.Layer()
		if li != lj {
			if iIsDelete {
				return li > lj
			}
			return li < lj
		}

		return ai.ResourceName < aj.ResourceName
	})
}
