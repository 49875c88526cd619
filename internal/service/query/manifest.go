package query

import (
	"context"
	"fmt"
	"time"

	"quarry/internal/domain"
	"quarry/internal/engine"
	"quarry/internal/expr"
)

// manifestExpiry is how long presigned manifest URLs stay valid. Generous
// enough for a client to walk a large file list.
const manifestExpiry = time.Hour

// ManifestFile is one downloadable dataset member.
type ManifestFile struct {
	Path      string            `json:"path"`
	URL       string            `json:"url"`
	SizeBytes int64             `json:"size_bytes"`
	Partition map[string]string `json:"partition,omitempty"`
}

// Manifest lists a dataset's current files with time-limited download URLs,
// so external readers can scan the data directly without holding storage
// credentials.
type Manifest struct {
	Dataset   string                `json:"dataset"`
	Format    string                `json:"format"`
	Columns   []domain.ColumnSchema `json:"columns"`
	Files     []ManifestFile        `json:"files"`
	ExpiresAt time.Time             `json:"expires_at"`
}

// Manifest resolves a dataset's files to presigned URLs. An optional filter
// prunes the list to files whose partition values can satisfy it, the same
// decision materialization uses for its scan.
func (s *Service) Manifest(ctx context.Context, dataset, filter string) (*Manifest, error) {
	ds, err := s.datasets.GetByName(ctx, dataset)
	if err != nil {
		return nil, err
	}
	files, err := s.datasets.ListFiles(ctx, ds.ID)
	if err != nil {
		return nil, err
	}

	if filter != "" {
		text := filter
		if s.macros != nil {
			if text, err = s.macros.ExpandFilter(ctx, filter); err != nil {
				return nil, err
			}
		}
		pred, err := expr.Parse(text)
		if err != nil {
			return nil, domain.ErrValidation("invalid filter: %v", err)
		}
		files, _ = engine.PruneFiles([]expr.Expr{pred}, ds, files)
	}

	out := &Manifest{
		Dataset:   ds.Name,
		Format:    ds.Format,
		Columns:   ds.Columns,
		Files:     make([]ManifestFile, 0, len(files)),
		ExpiresAt: time.Now().Add(manifestExpiry),
	}
	for _, f := range files {
		url := f.Path
		if s.presigner != nil {
			url, err = s.presigner.PresignDownload(ctx, f.Path, manifestExpiry)
			if err != nil {
				return nil, fmt.Errorf("presign %q: %w", f.Path, err)
			}
		}
		out.Files = append(out.Files, ManifestFile{
			Path:      f.Path,
			URL:       url,
			SizeBytes: f.SizeBytes,
			Partition: f.Partition,
		})
	}
	return out, nil
}
