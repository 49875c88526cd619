// Package declarative reconciles a directory of YAML dataset and macro
// manifests against the live registry: load the desired state, diff it
// against what the server reports, and produce an ordered plan of creates,
// updates, and drops for `quarry apply` to execute.
package declarative

import "quarry/internal/domain"

// Document is the generic envelope parsed first to determine Kind.
type Document struct {
	APIVersion string `yaml:"apiVersion"`
	Kind       string `yaml:"kind"`
}

// ObjectMeta holds common metadata for named resources.
type ObjectMeta struct {
	Name string `yaml:"name"`
}

// DatasetDoc declares a single dataset.
type DatasetDoc struct {
	APIVersion string      `yaml:"apiVersion"`
	Kind       string      `yaml:"kind"`
	Metadata   ObjectMeta  `yaml:"metadata"`
	Spec       DatasetSpec `yaml:"spec"`
}

// DatasetSpec mirrors the registration surface of a dataset. Location,
// format, pattern, partition keys, and CSV options are fixed at
// registration; drift on those fields becomes a plan error, not an update.
type DatasetSpec struct {
	Location      string      `yaml:"location"`
	Format        string      `yaml:"format"`
	Pattern       string      `yaml:"pattern,omitempty"`
	PartitionKeys []string    `yaml:"partition_keys,omitempty"`
	Columns       []ColumnDef `yaml:"columns,omitempty"`
	CSV           *CSVDef     `yaml:"csv,omitempty"`
	Description   string      `yaml:"description,omitempty"`
	AllowEmpty    bool        `yaml:"allow_empty,omitempty"`
	RefreshCron   string      `yaml:"refresh_cron,omitempty"`
}

// ColumnDef declares a schema override for one column.
type ColumnDef struct {
	Name      string   `yaml:"name"`
	Type      string   `yaml:"type"`
	Sentinels []string `yaml:"sentinels,omitempty"`
}

// CSVDef declares CSV read options.
type CSVDef struct {
	Delimiter string `yaml:"delimiter,omitempty"`
	Header    *bool  `yaml:"header,omitempty"`
	NullValue string `yaml:"null_value,omitempty"`
}

// MacroDoc declares a single filter macro.
type MacroDoc struct {
	APIVersion string     `yaml:"apiVersion"`
	Kind       string     `yaml:"kind"`
	Metadata   ObjectMeta `yaml:"metadata"`
	Spec       MacroSpec  `yaml:"spec"`
}

// MacroSpec holds the macro body and its parameter list.
type MacroSpec struct {
	Parameters  []string `yaml:"parameters,omitempty"`
	Body        string   `yaml:"body"`
	Description string   `yaml:"description,omitempty"`
	Status      string   `yaml:"status,omitempty"` // ACTIVE (default) or DEPRECATED
}

// DatasetResource is a dataset definition plus its source file.
type DatasetResource struct {
	Name     string
	FilePath string
	Spec     DatasetSpec
}

// MacroResource is a macro definition plus its source file.
type MacroResource struct {
	Name     string
	FilePath string
	Spec     MacroSpec
}

// DesiredState is the full set of declared resources, either loaded from a
// manifest directory or read back from a running server.
type DesiredState struct {
	Datasets []DatasetResource
	Macros   []MacroResource
}

// DatasetFromDomain converts a live dataset into its declarative shape so
// the differ compares like against like. Only declared column overrides
// round-trip; inferred columns belong to the server.
func DatasetFromDomain(d *domain.Dataset) DatasetResource {
	spec := DatasetSpec{
		Location:      d.Location,
		Format:        d.Format,
		Pattern:       d.Pattern,
		PartitionKeys: d.PartitionKeys,
		Description:   d.Description,
		AllowEmpty:    d.AllowEmpty,
		RefreshCron:   d.RefreshCron,
	}
	for _, c := range d.Columns {
		if !c.Declared {
			continue
		}
		spec.Columns = append(spec.Columns, ColumnDef{Name: c.Name, Type: c.Type, Sentinels: c.Sentinels})
	}
	if d.Format == domain.FormatCSV {
		csv := CSVDef{Delimiter: d.CSV.Delimiter, Header: d.CSV.Header, NullValue: d.CSV.NullValue}
		if csv != (CSVDef{}) {
			spec.CSV = &csv
		}
	}
	return DatasetResource{Name: d.Name, Spec: spec}
}

// MacroFromDomain converts a live macro into its declarative shape.
func MacroFromDomain(m *domain.Macro) MacroResource {
	return MacroResource{
		Name: m.Name,
		Spec: MacroSpec{
			Parameters:  m.Parameters,
			Body:        m.Body,
			Description: m.Description,
			Status:      m.Status,
		},
	}
}

// RegisterRequest converts a declared dataset into the registration request.
func (r DatasetResource) RegisterRequest() domain.RegisterDatasetRequest {
	req := domain.RegisterDatasetRequest{
		Name:          r.Name,
		Location:      r.Spec.Location,
		Format:        r.Spec.Format,
		Pattern:       r.Spec.Pattern,
		PartitionKeys: r.Spec.PartitionKeys,
		Description:   r.Spec.Description,
		AllowEmpty:    r.Spec.AllowEmpty,
		RefreshCron:   r.Spec.RefreshCron,
	}
	for _, c := range r.Spec.Columns {
		req.Columns = append(req.Columns, domain.ColumnSchema{Name: c.Name, Type: c.Type, Declared: true, Sentinels: c.Sentinels})
	}
	if r.Spec.CSV != nil {
		req.CSV = domain.CSVOptions{Delimiter: r.Spec.CSV.Delimiter, Header: r.Spec.CSV.Header, NullValue: r.Spec.CSV.NullValue}
	}
	return req
}

// UpdateRequest converts a declared dataset into a partial update carrying
// every mutable field. Frozen fields are the differ's problem.
func (r DatasetResource) UpdateRequest() domain.UpdateDatasetRequest {
	desc := r.Spec.Description
	cron := r.Spec.RefreshCron
	req := domain.UpdateDatasetRequest{
		Description: &desc,
		RefreshCron: &cron,
		Columns:     []domain.ColumnSchema{},
	}
	for _, c := range r.Spec.Columns {
		req.Columns = append(req.Columns, domain.ColumnSchema{Name: c.Name, Type: c.Type, Declared: true, Sentinels: c.Sentinels})
	}
	return req
}

// CreateRequest converts a declared macro into the creation request.
func (r MacroResource) CreateRequest() domain.CreateMacroRequest {
	return domain.CreateMacroRequest{
		Name:        r.Name,
		Parameters:  r.Spec.Parameters,
		Body:        r.Spec.Body,
		Description: r.Spec.Description,
		Status:      r.Spec.Status,
	}
}

// UpdateRequest converts a declared macro into a partial update carrying
// every mutable field.
func (r MacroResource) UpdateRequest() domain.UpdateMacroRequest {
	body := r.Spec.Body
	desc := r.Spec.Description
	status := r.Spec.Status
	if status == "" {
		status = domain.MacroStatusActive
	}
	params := r.Spec.Parameters
	if params == nil {
		params = []string{}
	}
	return domain.UpdateMacroRequest{
		Body:        &body,
		Description: &desc,
		Parameters:  params,
		Status:      &status,
	}
}
