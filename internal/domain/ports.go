package domain

import (
	"context"
	"time"
)

// StorageObject is one file found under a storage location.
type StorageObject struct {
	Path      string // full URI or filesystem path
	SizeBytes int64
}

// FileLister enumerates data files under a storage location. Implementations
// exist for the local filesystem, S3, GCS, and Azure Blob.
type FileLister interface {
	List(ctx context.Context, location, pattern string) ([]StorageObject, error)
}

// FilePresigner generates time-limited download URLs for dataset files held
// in object storage.
type FilePresigner interface {
	PresignDownload(ctx context.Context, path string, expiry time.Duration) (string, error)
}

// SchemaInferrer samples files and reports column names and types.
// Implemented by the DuckDB engine.
type SchemaInferrer interface {
	InferSchema(ctx context.Context, format string, paths []string, csv CSVOptions) ([]ColumnSchema, error)
}

// MacroExpander turns a macro invocation into a filter expression string.
// Implemented by the Starlark macro runtime.
type MacroExpander interface {
	Expand(ctx context.Context, m *Macro, args map[string]string) (string, error)
}
