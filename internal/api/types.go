package api

import (
	"time"

	"quarry/internal/domain"
)

// Error is the JSON error envelope returned on every non-2xx response.
type Error struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// Dataset is the wire form of a registered dataset.
type Dataset struct {
	ID            string                `json:"id"`
	Name          string                `json:"name"`
	Location      string                `json:"location"`
	Format        string                `json:"format"`
	Pattern       string                `json:"pattern"`
	PartitionKeys []string              `json:"partition_keys,omitempty"`
	Columns       []domain.ColumnSchema `json:"columns"`
	CSV           *domain.CSVOptions    `json:"csv,omitempty"`
	Description   string                `json:"description,omitempty"`
	Owner         string                `json:"owner,omitempty"`
	AllowEmpty    bool                  `json:"allow_empty,omitempty"`
	RefreshCron   string                `json:"refresh_cron,omitempty"`
	FileCount     int64                 `json:"file_count"`
	TotalBytes    int64                 `json:"total_bytes"`
	CreatedAt     time.Time             `json:"created_at"`
	UpdatedAt     time.Time             `json:"updated_at"`
	LastRefreshAt *time.Time            `json:"last_refresh_at,omitempty"`
}

// DatasetFile is one discovered member file of a dataset.
type DatasetFile struct {
	Path         string            `json:"path"`
	SizeBytes    int64             `json:"size_bytes"`
	Partition    map[string]string `json:"partition,omitempty"`
	DiscoveredAt time.Time         `json:"discovered_at"`
}

// Macro is the wire form of a filter macro.
type Macro struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Parameters  []string  `json:"parameters,omitempty"`
	Body        string    `json:"body"`
	Description string    `json:"description,omitempty"`
	Owner       string    `json:"owner,omitempty"`
	Status      string    `json:"status"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// MacroExpansion is the result of expanding a macro into a filter expression.
type MacroExpansion struct {
	Name   string            `json:"name"`
	Args   map[string]string `json:"args,omitempty"`
	Filter string            `json:"filter"`
}

// APIKeyInfo describes an API key without its secret.
type APIKeyInfo struct {
	ID            string     `json:"id"`
	PrincipalName string     `json:"principal_name"`
	Name          string     `json:"name"`
	KeyPrefix     string     `json:"key_prefix"`
	IsAdmin       bool       `json:"is_admin"`
	ExpiresAt     *time.Time `json:"expires_at,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
}

// CreateAPIKeyResponse carries the raw key. It is shown exactly once;
// only its hash is stored.
type CreateAPIKeyResponse struct {
	APIKeyInfo
	Key string `json:"key"`
}

// QueryLogEntry is the wire form of one recorded materialization.
type QueryLogEntry struct {
	ID            int64     `json:"id"`
	PrincipalName string    `json:"principal_name"`
	DatasetName   string    `json:"dataset_name"`
	Plan          *string   `json:"plan,omitempty"`
	CompiledSQL   *string   `json:"compiled_sql,omitempty"`
	Status        string    `json:"status"`
	ErrorMessage  *string   `json:"error_message,omitempty"`
	DurationMs    *int64    `json:"duration_ms,omitempty"`
	RowsReturned  *int64    `json:"rows_returned,omitempty"`
	FilesScanned  *int64    `json:"files_scanned,omitempty"`
	FilesPruned   *int64    `json:"files_pruned,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

// PaginatedDatasets is a page of datasets.
type PaginatedDatasets struct {
	Data          []Dataset `json:"data"`
	NextPageToken string    `json:"next_page_token,omitempty"`
}

// PaginatedMacros is a page of macros.
type PaginatedMacros struct {
	Data          []Macro `json:"data"`
	NextPageToken string  `json:"next_page_token,omitempty"`
}

// PaginatedAPIKeys is a page of API keys.
type PaginatedAPIKeys struct {
	Data          []APIKeyInfo `json:"data"`
	NextPageToken string       `json:"next_page_token,omitempty"`
}

// PaginatedQueryLog is a page of query log entries.
type PaginatedQueryLog struct {
	Data          []QueryLogEntry `json:"data"`
	NextPageToken string          `json:"next_page_token,omitempty"`
}

// DatasetFiles is the full current file list of a dataset.
type DatasetFiles struct {
	Dataset string        `json:"dataset"`
	Files   []DatasetFile `json:"files"`
}

// Health is the liveness response.
type Health struct {
	Status string `json:"status"`
}

// === Mapping helpers ===

func datasetToAPI(d *domain.Dataset) Dataset {
	out := Dataset{
		ID:            d.ID,
		Name:          d.Name,
		Location:      d.Location,
		Format:        d.Format,
		Pattern:       d.Pattern,
		PartitionKeys: d.PartitionKeys,
		Columns:       d.Columns,
		Description:   d.Description,
		Owner:         d.Owner,
		AllowEmpty:    d.AllowEmpty,
		RefreshCron:   d.RefreshCron,
		FileCount:     d.FileCount,
		TotalBytes:    d.TotalBytes,
		CreatedAt:     d.CreatedAt,
		UpdatedAt:     d.UpdatedAt,
		LastRefreshAt: d.LastRefreshAt,
	}
	if d.Format == domain.FormatCSV {
		csv := d.CSV
		out.CSV = &csv
	}
	return out
}

func datasetFileToAPI(f domain.DatasetFile) DatasetFile {
	return DatasetFile{
		Path:         f.Path,
		SizeBytes:    f.SizeBytes,
		Partition:    f.Partition,
		DiscoveredAt: f.DiscoveredAt,
	}
}

func macroToAPI(m *domain.Macro) Macro {
	return Macro{
		ID:          m.ID,
		Name:        m.Name,
		Parameters:  m.Parameters,
		Body:        m.Body,
		Description: m.Description,
		Owner:       m.Owner,
		Status:      m.Status,
		CreatedAt:   m.CreatedAt,
		UpdatedAt:   m.UpdatedAt,
	}
}

func apiKeyToAPI(k *domain.APIKey) APIKeyInfo {
	return APIKeyInfo{
		ID:            k.ID,
		PrincipalName: k.PrincipalName,
		Name:          k.Name,
		KeyPrefix:     k.KeyPrefix,
		IsAdmin:       k.IsAdmin,
		ExpiresAt:     k.ExpiresAt,
		CreatedAt:     k.CreatedAt,
	}
}

func queryLogEntryToAPI(e domain.QueryLogEntry) QueryLogEntry {
	return QueryLogEntry{
		ID:            e.ID,
		PrincipalName: e.PrincipalName,
		DatasetName:   e.DatasetName,
		Plan:          e.PlanJSON,
		CompiledSQL:   e.CompiledSQL,
		Status:        e.Status,
		ErrorMessage:  e.ErrorMessage,
		DurationMs:    e.DurationMs,
		RowsReturned:  e.RowsReturned,
		FilesScanned:  e.FilesScanned,
		FilesPruned:   e.FilesPruned,
		CreatedAt:     e.CreatedAt,
	}
}
