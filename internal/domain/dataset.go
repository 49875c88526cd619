package domain

import (
	"regexp"
	"strings"
	"time"
)

// Dataset file formats.
const (
	FormatParquet = "parquet"
	FormatCSV     = "csv"
)

// MaxDatasetNameLength bounds dataset names for storage and URL safety.
const MaxDatasetNameLength = 128

// HiveNullSentinel is the path value Hive writers emit for a NULL partition
// value. A file whose path carries it, or whose path lacks a declared key
// entirely, reads as NULL for that key.
const HiveNullSentinel = "__HIVE_DEFAULT_PARTITION__"

var datasetNamePattern = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// ColumnSchema describes a single column of a dataset.
type ColumnSchema struct {
	Name      string   `json:"name"`
	Type      string   `json:"type"` // DuckDB type name (BIGINT, DOUBLE, VARCHAR, DATE, ...)
	Declared  bool     `json:"declared,omitempty"`  // type came from a user override, never re-inferred
	Partition bool     `json:"partition,omitempty"` // column is derived from the file path, not file contents
	Sentinels []string `json:"sentinels,omitempty"` // raw values recoded to NULL at scan time
}

// CSVOptions controls how CSV members of a dataset are read.
type CSVOptions struct {
	Delimiter string `json:"delimiter,omitempty"` // default ","
	Header    *bool  `json:"header,omitempty"`    // default true
	NullValue string `json:"null_value,omitempty"`
}

// HasHeader reports whether CSV files carry a header row. Defaults to true.
func (o CSVOptions) HasHeader() bool {
	return o.Header == nil || *o.Header
}

// Dataset is a logical table backed by a set of files under a storage location.
type Dataset struct {
	ID            string
	Name          string
	Location      string // root URI: local path, s3://, gs://, or az://
	Format        string // parquet or csv
	Pattern       string // glob relative to Location; defaults to **/*.<format>
	PartitionKeys []string
	Columns       []ColumnSchema
	CSV           CSVOptions
	Description   string
	Owner         string
	AllowEmpty    bool   // permit registration with zero matching files
	RefreshCron   string // optional cron spec for automatic re-discovery
	FileCount     int64
	TotalBytes    int64
	CreatedAt     time.Time
	UpdatedAt     time.Time
	LastRefreshAt *time.Time
}

// DeclaredColumn returns the declared schema override for a column, if any.
func (d *Dataset) DeclaredColumn(name string) (ColumnSchema, bool) {
	for _, c := range d.Columns {
		if c.Name == name && c.Declared {
			return c, true
		}
	}
	return ColumnSchema{}, false
}

// IsPartitionKey reports whether name is one of the dataset's partition keys.
func (d *Dataset) IsPartitionKey(name string) bool {
	for _, k := range d.PartitionKeys {
		if k == name {
			return true
		}
	}
	return false
}

// ColumnNames returns the names of all columns in schema order.
func (d *Dataset) ColumnNames() []string {
	names := make([]string, 0, len(d.Columns))
	for _, c := range d.Columns {
		names = append(names, c.Name)
	}
	return names
}

// DatasetFile is one discovered member file of a dataset.
type DatasetFile struct {
	ID           string
	DatasetID    string
	Path         string            // full path or URI of the file
	SizeBytes    int64
	Partition    map[string]string // key=value pairs extracted from the path
	DiscoveredAt time.Time
}

// PartitionValue returns the raw partition value for a key, and whether the
// file carries that key at all.
func (f *DatasetFile) PartitionValue(key string) (string, bool) {
	v, ok := f.Partition[key]
	return v, ok
}

// RegisterDatasetRequest holds parameters for registering a dataset.
type RegisterDatasetRequest struct {
	Name          string         `json:"name"`
	Location      string         `json:"location"`
	Format        string         `json:"format"`
	Pattern       string         `json:"pattern,omitempty"`
	PartitionKeys []string       `json:"partition_keys,omitempty"`
	Columns       []ColumnSchema `json:"columns,omitempty"` // declared overrides; inference fills the rest
	CSV           CSVOptions     `json:"csv,omitempty"`
	Description   string         `json:"description,omitempty"`
	AllowEmpty    bool           `json:"allow_empty,omitempty"`
	RefreshCron   string         `json:"refresh_cron,omitempty"`
}

// Validate checks that the request is well-formed and applies defaults.
func (r *RegisterDatasetRequest) Validate() error {
	if r.Name == "" {
		return ErrValidation("dataset name is required")
	}
	if len(r.Name) > MaxDatasetNameLength {
		return ErrValidation("dataset name must be at most %d characters", MaxDatasetNameLength)
	}
	if !datasetNamePattern.MatchString(r.Name) {
		return ErrValidation("dataset name %q must match %s", r.Name, datasetNamePattern.String())
	}
	// Block names that would collide with DuckDB internal catalogs.
	reserved := map[string]bool{"main": true, "memory": true, "system": true, "temp": true}
	if reserved[strings.ToLower(r.Name)] {
		return ErrValidation("dataset name %q is reserved", r.Name)
	}
	if r.Location == "" {
		return ErrValidation("location is required")
	}
	switch r.Format {
	case FormatParquet, FormatCSV:
	case "":
		return ErrValidation("format is required (parquet or csv)")
	default:
		return ErrValidation("unsupported format %q (must be parquet or csv)", r.Format)
	}
	if r.Pattern == "" {
		r.Pattern = "**/*." + r.Format
	}
	seenKeys := map[string]bool{}
	for _, k := range r.PartitionKeys {
		if !datasetNamePattern.MatchString(k) {
			return ErrValidation("partition key %q must match %s", k, datasetNamePattern.String())
		}
		if seenKeys[k] {
			return ErrValidation("duplicate partition key %q", k)
		}
		seenKeys[k] = true
	}
	seenCols := map[string]bool{}
	for _, c := range r.Columns {
		if c.Name == "" {
			return ErrValidation("column name is required")
		}
		if c.Type == "" {
			return ErrValidation("column %q: type is required for declared columns", c.Name)
		}
		if seenCols[c.Name] {
			return ErrValidation("duplicate column %q", c.Name)
		}
		seenCols[c.Name] = true
	}
	return nil
}

// UpdateDatasetRequest holds partial-update parameters for a dataset.
type UpdateDatasetRequest struct {
	Description *string        `json:"description,omitempty"`
	RefreshCron *string        `json:"refresh_cron,omitempty"`
	Columns     []ColumnSchema `json:"columns,omitempty"` // replaces declared overrides when non-nil
}
