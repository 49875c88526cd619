package domain

import "context"

// DatasetRepository provides CRUD operations for datasets and their files.
type DatasetRepository interface {
	Create(ctx context.Context, d *Dataset) (*Dataset, error)
	GetByName(ctx context.Context, name string) (*Dataset, error)
	List(ctx context.Context, page PageRequest) ([]Dataset, int64, error)
	Update(ctx context.Context, d *Dataset) error
	Delete(ctx context.Context, name string) error

	// ReplaceFiles atomically swaps the file set of a dataset. Used on
	// registration and refresh so readers never see a partial listing.
	ReplaceFiles(ctx context.Context, datasetID string, files []DatasetFile) error
	ListFiles(ctx context.Context, datasetID string) ([]DatasetFile, error)
}

// MacroRepository provides CRUD operations for filter macros.
type MacroRepository interface {
	Create(ctx context.Context, m *Macro) (*Macro, error)
	GetByName(ctx context.Context, name string) (*Macro, error)
	List(ctx context.Context, page PageRequest) ([]Macro, int64, error)
	Update(ctx context.Context, m *Macro) error
	Delete(ctx context.Context, name string) error
}

// APIKeyRepository provides operations for API keys.
type APIKeyRepository interface {
	Create(ctx context.Context, k *APIKey) (*APIKey, error)
	GetByHash(ctx context.Context, keyHash string) (*APIKey, error)
	List(ctx context.Context, page PageRequest) ([]APIKey, int64, error)
	Delete(ctx context.Context, id string) error
}

// QueryLogRepository provides operations for the query log.
type QueryLogRepository interface {
	Insert(ctx context.Context, e *QueryLogEntry) error
	List(ctx context.Context, filter QueryLogFilter) ([]QueryLogEntry, int64, error)
}
