package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"quarry/internal/domain"
)

// Compile-time check.
var _ domain.MacroRepository = (*MacroRepo)(nil)

// MacroRepo implements domain.MacroRepository using SQLite.
type MacroRepo struct {
	db *sql.DB
}

// NewMacroRepo creates a new MacroRepo.
func NewMacroRepo(db *sql.DB) *MacroRepo {
	return &MacroRepo{db: db}
}

// Create inserts a new filter macro.
func (r *MacroRepo) Create(ctx context.Context, m *domain.Macro) (*domain.Macro, error) {
	created := *m
	if created.ID == "" {
		created.ID = domain.NewID()
	}
	now := time.Now().UTC()
	created.CreatedAt = now
	created.UpdatedAt = now
	if created.Status == "" {
		created.Status = domain.MacroStatusActive
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO macros (id, name, parameters, body, description, owner, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		created.ID, created.Name, mustJSONArray(created.Parameters), created.Body,
		created.Description, created.Owner, created.Status, created.CreatedAt, created.UpdatedAt)
	if err != nil {
		return nil, mapDBError(err)
	}
	return &created, nil
}

// GetByName returns a macro by name.
func (r *MacroRepo) GetByName(ctx context.Context, name string) (*domain.Macro, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, name, parameters, body, description, owner, status, created_at, updated_at
		FROM macros WHERE name = ?`, name)
	m, err := scanMacro(row)
	if err != nil {
		return nil, mapDBError(err)
	}
	return m, nil
}

// List returns a page of macros ordered by name, plus the total count.
func (r *MacroRepo) List(ctx context.Context, page domain.PageRequest) ([]domain.Macro, int64, error) {
	var total int64
	if err := r.db.QueryRowContext(ctx, `SELECT count(*) FROM macros`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count macros: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT id, name, parameters, body, description, owner, status, created_at, updated_at
		FROM macros ORDER BY name LIMIT ? OFFSET ?`,
		page.Limit(), page.Offset())
	if err != nil {
		return nil, 0, fmt.Errorf("list macros: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var macros []domain.Macro
	for rows.Next() {
		m, err := scanMacro(rows)
		if err != nil {
			return nil, 0, err
		}
		macros = append(macros, *m)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return macros, total, nil
}

// Update rewrites the mutable fields of a macro.
func (r *MacroRepo) Update(ctx context.Context, m *domain.Macro) error {
	m.UpdatedAt = time.Now().UTC()
	res, err := r.db.ExecContext(ctx, `
		UPDATE macros
		SET parameters = ?, body = ?, description = ?, owner = ?, status = ?, updated_at = ?
		WHERE name = ?`,
		mustJSONArray(m.Parameters), m.Body, m.Description, m.Owner, m.Status,
		m.UpdatedAt, m.Name)
	if err != nil {
		return mapDBError(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return domain.ErrNotFound("macro %q not found", m.Name)
	}
	return nil
}

// Delete removes a macro by name.
func (r *MacroRepo) Delete(ctx context.Context, name string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM macros WHERE name = ?`, name)
	if err != nil {
		return mapDBError(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return domain.ErrNotFound("macro %q not found", name)
	}
	return nil
}

func scanMacro(row rowScanner) (*domain.Macro, error) {
	var m domain.Macro
	var paramsJSON string
	if err := row.Scan(&m.ID, &m.Name, &paramsJSON, &m.Body, &m.Description,
		&m.Owner, &m.Status, &m.CreatedAt, &m.UpdatedAt); err != nil {
		return nil, err
	}
	_ = json.Unmarshal([]byte(paramsJSON), &m.Parameters)
	if m.Parameters == nil {
		m.Parameters = []string{}
	}
	return &m, nil
}
