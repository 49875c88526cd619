package domain

import "time"

// Query execution statuses recorded in the query log.
const (
	QueryStatusSuccess = "success"
	QueryStatusError   = "error"
)

// ScanStats reports what the engine actually touched while materializing a plan.
type ScanStats struct {
	FilesTotal   int      `json:"files_total"`
	FilesScanned int      `json:"files_scanned"`
	FilesPruned  int      `json:"files_pruned"`
	ColumnsRead  []string `json:"columns_read"` // empty means all columns were required
	RowsReturned int64    `json:"rows_returned"`
	DurationMs   int64    `json:"duration_ms"`
}

// Result is a fully materialized query result.
type Result struct {
	Columns []string  `json:"columns"`
	Types   []string  `json:"types"`
	Rows    [][]any   `json:"rows"`
	Stats   ScanStats `json:"stats"`
}

// Explanation describes what a plan would do without executing it.
type Explanation struct {
	SQL          string   `json:"sql"`
	FilesTotal   int      `json:"files_total"`
	FilesScanned []string `json:"files_scanned"`
	FilesPruned  []string `json:"files_pruned"`
	ColumnsRead  []string `json:"columns_read"`
}

// QueryLogEntry records a single plan materialization.
type QueryLogEntry struct {
	ID            int64
	PrincipalName string
	DatasetName   string
	PlanJSON      *string
	CompiledSQL   *string
	Status        string
	ErrorMessage  *string
	DurationMs    *int64
	RowsReturned  *int64
	FilesScanned  *int64
	FilesPruned   *int64
	CreatedAt     time.Time
}

// QueryLogFilter holds filter parameters for listing the query log.
type QueryLogFilter struct {
	PrincipalName *string
	DatasetName   *string
	Status        *string
	From          *time.Time
	To            *time.Time
	Page          PageRequest
}
