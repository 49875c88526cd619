package macro

import (
	"context"
	"log/slog"

	"quarry/internal/domain"
)

// Service provides macro management and expansion.
type Service struct {
	repo    domain.MacroRepository
	runtime *Runtime
	logger  *slog.Logger
}

// NewService creates a macro Service.
func NewService(repo domain.MacroRepository, runtime *Runtime, logger *slog.Logger) *Service {
	return &Service{repo: repo, runtime: runtime, logger: logger}
}

// Create validates, compiles, and stores a new macro. Compilation runs up
// front so syntax errors surface at write time, not at first use.
func (s *Service) Create(ctx context.Context, req domain.CreateMacroRequest) (*domain.Macro, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	owner := ""
	if p, ok := domain.PrincipalFromContext(ctx); ok {
		owner = p.Name
	}
	m := &domain.Macro{
		Name:        req.Name,
		Parameters:  req.Parameters,
		Body:        req.Body,
		Description: req.Description,
		Owner:       owner,
		Status:      req.Status,
	}
	if m.Parameters == nil {
		m.Parameters = []string{}
	}

	if err := s.runtime.CompileCheck(ctx, m); err != nil {
		return nil, err
	}

	created, err := s.repo.Create(ctx, m)
	if err != nil {
		return nil, err
	}
	s.logger.Info("macro created", "macro", created.Name, "parameters", len(created.Parameters))
	return created, nil
}

// Get returns a macro by name.
func (s *Service) Get(ctx context.Context, name string) (*domain.Macro, error) {
	return s.repo.GetByName(ctx, name)
}

// List returns a page of macros and the total count.
func (s *Service) List(ctx context.Context, page domain.PageRequest) ([]domain.Macro, int64, error) {
	return s.repo.List(ctx, page)
}

// Update applies a partial update and re-compiles the result.
func (s *Service) Update(ctx context.Context, name string, req domain.UpdateMacroRequest) (*domain.Macro, error) {
	m, err := s.repo.GetByName(ctx, name)
	if err != nil {
		return nil, err
	}

	if req.Body != nil {
		m.Body = *req.Body
	}
	if req.Description != nil {
		m.Description = *req.Description
	}
	if req.Parameters != nil {
		for _, p := range req.Parameters {
			if !isValidIdent(p) {
				return nil, domain.ErrValidation("macro parameter %q is not a valid identifier", p)
			}
		}
		m.Parameters = req.Parameters
	}
	if req.Status != nil {
		if *req.Status != domain.MacroStatusActive && *req.Status != domain.MacroStatusDeprecated {
			return nil, domain.ErrValidation("status must be ACTIVE or DEPRECATED")
		}
		m.Status = *req.Status
	}

	if err := s.runtime.CompileCheck(ctx, m); err != nil {
		return nil, err
	}
	if err := s.repo.Update(ctx, m); err != nil {
		return nil, err
	}
	s.logger.Info("macro updated", "macro", name)
	return s.repo.GetByName(ctx, name)
}

// Delete removes a macro by name.
func (s *Service) Delete(ctx context.Context, name string) error {
	if err := s.repo.Delete(ctx, name); err != nil {
		return err
	}
	s.logger.Info("macro deleted", "macro", name)
	return nil
}

// Expand runs a stored macro with the given keyword arguments and returns
// the generated filter expression.
func (s *Service) Expand(ctx context.Context, req domain.ExpandMacroRequest) (string, error) {
	if req.Name == "" {
		return "", domain.ErrValidation("macro name is required")
	}
	m, err := s.repo.GetByName(ctx, req.Name)
	if err != nil {
		return "", err
	}
	if m.Status == domain.MacroStatusDeprecated {
		s.logger.Warn("deprecated macro expanded", "macro", m.Name)
	}
	return s.runtime.Expand(ctx, m, req.Args)
}
