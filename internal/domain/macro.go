package domain

import "time"

// Macro statuses.
const (
	MacroStatusActive     = "ACTIVE"
	MacroStatusDeprecated = "DEPRECATED"
)

// Macro is a named, parameterized filter generator. The body is a Starlark
// script whose expand(...) function returns a filter expression string; it
// runs sandboxed with step and output limits.
type Macro struct {
	ID          string
	Name        string
	Parameters  []string
	Body        string
	Description string
	Owner       string
	Status      string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// CreateMacroRequest holds parameters for creating a macro.
type CreateMacroRequest struct {
	Name        string   `json:"name"`
	Parameters  []string `json:"parameters,omitempty"`
	Body        string   `json:"body"`
	Description string   `json:"description,omitempty"`
	Status      string   `json:"status,omitempty"`
}

// Validate checks that the request is well-formed and applies defaults.
func (r *CreateMacroRequest) Validate() error {
	if r.Name == "" {
		return ErrValidation("macro name is required")
	}
	if !datasetNamePattern.MatchString(r.Name) {
		return ErrValidation("macro name %q must match %s", r.Name, datasetNamePattern.String())
	}
	if r.Body == "" {
		return ErrValidation("macro body is required")
	}
	for _, p := range r.Parameters {
		if !datasetNamePattern.MatchString(p) {
			return ErrValidation("macro parameter %q must match %s", p, datasetNamePattern.String())
		}
	}
	if r.Status == "" {
		r.Status = MacroStatusActive
	}
	if r.Status != MacroStatusActive && r.Status != MacroStatusDeprecated {
		return ErrValidation("status must be ACTIVE or DEPRECATED")
	}
	return nil
}

// UpdateMacroRequest holds partial-update parameters.
type UpdateMacroRequest struct {
	Body        *string  `json:"body,omitempty"`
	Description *string  `json:"description,omitempty"`
	Parameters  []string `json:"parameters,omitempty"`
	Status      *string  `json:"status,omitempty"`
}

// ExpandMacroRequest holds parameters for expanding a macro into a filter
// expression.
type ExpandMacroRequest struct {
	Name string            `json:"name"`
	Args map[string]string `json:"args,omitempty"`
}
