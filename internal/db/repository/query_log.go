package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"quarry/internal/domain"
)

// Compile-time check.
var _ domain.QueryLogRepository = (*QueryLogRepo)(nil)

// QueryLogRepo implements domain.QueryLogRepository using SQLite.
type QueryLogRepo struct {
	db *sql.DB
}

// NewQueryLogRepo creates a new QueryLogRepo.
func NewQueryLogRepo(db *sql.DB) *QueryLogRepo {
	return &QueryLogRepo{db: db}
}

// Insert records one plan materialization and fills in the entry ID.
func (r *QueryLogRepo) Insert(ctx context.Context, e *domain.QueryLogEntry) error {
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO query_log (principal_name, dataset_name, plan_json, compiled_sql,
			status, error_message, duration_ms, rows_returned, files_scanned,
			files_pruned, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.PrincipalName, e.DatasetName, e.PlanJSON, e.CompiledSQL, e.Status,
		e.ErrorMessage, e.DurationMs, e.RowsReturned, e.FilesScanned,
		e.FilesPruned, e.CreatedAt)
	if err != nil {
		return mapDBError(err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("query log insert id: %w", err)
	}
	e.ID = id
	return nil
}

// List returns a filtered page of the query log, newest first, plus the total
// count under the same filter.
func (r *QueryLogRepo) List(ctx context.Context, filter domain.QueryLogFilter) ([]domain.QueryLogEntry, int64, error) {
	var conds []string
	var args []any
	if filter.PrincipalName != nil {
		conds = append(conds, "principal_name = ?")
		args = append(args, *filter.PrincipalName)
	}
	if filter.DatasetName != nil {
		conds = append(conds, "dataset_name = ?")
		args = append(args, *filter.DatasetName)
	}
	if filter.Status != nil {
		conds = append(conds, "status = ?")
		args = append(args, *filter.Status)
	}
	if filter.From != nil {
		conds = append(conds, "created_at >= ?")
		args = append(args, filter.From.UTC())
	}
	if filter.To != nil {
		conds = append(conds, "created_at < ?")
		args = append(args, filter.To.UTC())
	}

	where := ""
	if len(conds) > 0 {
		where = " WHERE " + strings.Join(conds, " AND ")
	}

	var total int64
	if err := r.db.QueryRowContext(ctx,
		`SELECT count(*) FROM query_log`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count query log: %w", err)
	}

	listArgs := append(append([]any{}, args...), filter.Page.Limit(), filter.Page.Offset())
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, principal_name, dataset_name, plan_json, compiled_sql, status,
			error_message, duration_ms, rows_returned, files_scanned, files_pruned,
			created_at
		FROM query_log`+where+`
		ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?`, listArgs...)
	if err != nil {
		return nil, 0, fmt.Errorf("list query log: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var entries []domain.QueryLogEntry
	for rows.Next() {
		var e domain.QueryLogEntry
		var planJSON, compiledSQL, errMsg sql.NullString
		var duration, rowsReturned, scanned, pruned sql.NullInt64
		if err := rows.Scan(&e.ID, &e.PrincipalName, &e.DatasetName, &planJSON,
			&compiledSQL, &e.Status, &errMsg, &duration, &rowsReturned,
			&scanned, &pruned, &e.CreatedAt); err != nil {
			return nil, 0, err
		}
		e.PlanJSON = nullableString(planJSON)
		e.CompiledSQL = nullableString(compiledSQL)
		e.ErrorMessage = nullableString(errMsg)
		e.DurationMs = nullableInt64(duration)
		e.RowsReturned = nullableInt64(rowsReturned)
		e.FilesScanned = nullableInt64(scanned)
		e.FilesPruned = nullableInt64(pruned)
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return entries, total, nil
}

func nullableString(v sql.NullString) *string {
	if !v.Valid {
		return nil
	}
	return &v.String
}

func nullableInt64(v sql.NullInt64) *int64 {
	if !v.Valid {
		return nil
	}
	return &v.Int64
}
