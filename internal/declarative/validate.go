package declarative

import (
	"fmt"

	"github.com/robfig/cron/v3"
)

// ValidationError is a single problem found in the desired state.
type ValidationError struct {
	Path    string `json:"path"` // source file, e.g. "datasets/trips.yaml"
	Message string `json:"message"`
}

func (e ValidationError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("%s: %s", e.Path, e.Message)
	}
	return e.Message
}

// Validate checks the desired state offline, without contacting the server.
// It applies the same request validation the API would and returns every
// problem found, not just the first.
func Validate(state *DesiredState) []ValidationError {
	var errs []ValidationError

	for _, d := range state.Datasets {
		req := d.RegisterRequest()
		if err := req.Validate(); err != nil {
			errs = append(errs, ValidationError{Path: d.FilePath, Message: err.Error()})
		}
		if d.Spec.RefreshCron != "" {
			if _, err := cron.ParseStandard(d.Spec.RefreshCron); err != nil {
				errs = append(errs, ValidationError{
					Path:    d.FilePath,
					Message: fmt.Sprintf("invalid refresh_cron %q: %v", d.Spec.RefreshCron, err),
				})
			}
		}
	}

	for _, m := range state.Macros {
		req := m.CreateRequest()
		if err := req.Validate(); err != nil {
			errs = append(errs, ValidationError{Path: m.FilePath, Message: err.Error()})
		}
	}

	return errs
}
