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
var _ domain.DatasetRepository = (*DatasetRepo)(nil)

// DatasetRepo implements domain.DatasetRepository using SQLite.
type DatasetRepo struct {
	db *sql.DB
}

// NewDatasetRepo creates a new DatasetRepo.
func NewDatasetRepo(db *sql.DB) *DatasetRepo {
	return &DatasetRepo{db: db}
}

const datasetColumns = `id, name, location, format, pattern, partition_keys, columns,
	csv_options, description, owner, allow_empty, refresh_cron, file_count,
	total_bytes, created_at, updated_at, last_refresh_at`

// Create inserts a new dataset. The file set is stored separately via ReplaceFiles.
func (r *DatasetRepo) Create(ctx context.Context, d *domain.Dataset) (*domain.Dataset, error) {
	created := *d
	if created.ID == "" {
		created.ID = domain.NewID()
	}
	now := time.Now().UTC()
	created.CreatedAt = now
	created.UpdatedAt = now

	colsJSON, err := json.Marshal(created.Columns)
	if err != nil {
		return nil, fmt.Errorf("marshal columns: %w", err)
	}
	csvJSON, err := csvOptionsJSON(&created)
	if err != nil {
		return nil, err
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO datasets (id, name, location, format, pattern, partition_keys,
			columns, csv_options, description, owner, allow_empty, refresh_cron,
			file_count, total_bytes, created_at, updated_at, last_refresh_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		created.ID, created.Name, created.Location, created.Format, created.Pattern,
		mustJSONArray(created.PartitionKeys), string(colsJSON), csvJSON,
		created.Description, created.Owner, created.AllowEmpty, created.RefreshCron,
		created.FileCount, created.TotalBytes, created.CreatedAt, created.UpdatedAt,
		created.LastRefreshAt)
	if err != nil {
		return nil, mapDBError(err)
	}
	return &created, nil
}

// GetByName returns a dataset by name.
func (r *DatasetRepo) GetByName(ctx context.Context, name string) (*domain.Dataset, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+datasetColumns+` FROM datasets WHERE name = ?`, name)
	d, err := scanDataset(row)
	if err != nil {
		return nil, mapDBError(err)
	}
	return d, nil
}

// List returns a page of datasets ordered by name, plus the total count.
func (r *DatasetRepo) List(ctx context.Context, page domain.PageRequest) ([]domain.Dataset, int64, error) {
	var total int64
	if err := r.db.QueryRowContext(ctx, `SELECT count(*) FROM datasets`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count datasets: %w", err)
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT `+datasetColumns+` FROM datasets ORDER BY name LIMIT ? OFFSET ?`,
		page.Limit(), page.Offset())
	if err != nil {
		return nil, 0, fmt.Errorf("list datasets: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var datasets []domain.Dataset
	for rows.Next() {
		d, err := scanDataset(rows)
		if err != nil {
			return nil, 0, err
		}
		datasets = append(datasets, *d)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return datasets, total, nil
}

// Update rewrites the mutable fields of a dataset. Name and creation time
// never change.
func (r *DatasetRepo) Update(ctx context.Context, d *domain.Dataset) error {
	colsJSON, err := json.Marshal(d.Columns)
	if err != nil {
		return fmt.Errorf("marshal columns: %w", err)
	}
	csvJSON, err := csvOptionsJSON(d)
	if err != nil {
		return err
	}
	d.UpdatedAt = time.Now().UTC()

	res, err := r.db.ExecContext(ctx, `
		UPDATE datasets
		SET location = ?, format = ?, pattern = ?, partition_keys = ?, columns = ?,
			csv_options = ?, description = ?, owner = ?, allow_empty = ?,
			refresh_cron = ?, file_count = ?, total_bytes = ?, updated_at = ?,
			last_refresh_at = ?
		WHERE id = ?`,
		d.Location, d.Format, d.Pattern, mustJSONArray(d.PartitionKeys),
		string(colsJSON), csvJSON, d.Description, d.Owner, d.AllowEmpty,
		d.RefreshCron, d.FileCount, d.TotalBytes, d.UpdatedAt, d.LastRefreshAt,
		d.ID)
	if err != nil {
		return mapDBError(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return domain.ErrNotFound("dataset %q not found", d.Name)
	}
	return nil
}

// Delete removes a dataset by name. Files cascade.
func (r *DatasetRepo) Delete(ctx context.Context, name string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM datasets WHERE name = ?`, name)
	if err != nil {
		return mapDBError(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return domain.ErrNotFound("dataset %q not found", name)
	}
	return nil
}

// ReplaceFiles atomically swaps the file set of a dataset and refreshes the
// aggregate counters on the dataset row, so readers never see a partial
// listing.
func (r *DatasetRepo) ReplaceFiles(ctx context.Context, datasetID string, files []domain.DatasetFile) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin replace files: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM dataset_files WHERE dataset_id = ?`, datasetID); err != nil {
		return fmt.Errorf("clear dataset files: %w", err)
	}

	now := time.Now().UTC()
	var totalBytes int64
	for i := range files {
		f := &files[i]
		if f.ID == "" {
			f.ID = domain.NewID()
		}
		f.DatasetID = datasetID
		if f.DiscoveredAt.IsZero() {
			f.DiscoveredAt = now
		}
		totalBytes += f.SizeBytes
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO dataset_files (id, dataset_id, path, size_bytes, partition, discovered_at)
			VALUES (?, ?, ?, ?, ?, ?)`,
			f.ID, f.DatasetID, f.Path, f.SizeBytes, mustJSONMap(f.Partition), f.DiscoveredAt); err != nil {
			return mapDBError(err)
		}
	}

	res, err := tx.ExecContext(ctx, `
		UPDATE datasets
		SET file_count = ?, total_bytes = ?, last_refresh_at = ?, updated_at = ?
		WHERE id = ?`,
		len(files), totalBytes, now, now, datasetID)
	if err != nil {
		return fmt.Errorf("update dataset counters: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return domain.ErrNotFound("dataset %s not found", datasetID)
	}

	return tx.Commit()
}

// ListFiles returns all files of a dataset ordered by path.
func (r *DatasetRepo) ListFiles(ctx context.Context, datasetID string) ([]domain.DatasetFile, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, dataset_id, path, size_bytes, partition, discovered_at
		FROM dataset_files WHERE dataset_id = ? ORDER BY path`, datasetID)
	if err != nil {
		return nil, fmt.Errorf("list dataset files: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var files []domain.DatasetFile
	for rows.Next() {
		var f domain.DatasetFile
		var partitionJSON string
		if err := rows.Scan(&f.ID, &f.DatasetID, &f.Path, &f.SizeBytes,
			&partitionJSON, &f.DiscoveredAt); err != nil {
			return nil, err
		}
		_ = json.Unmarshal([]byte(partitionJSON), &f.Partition)
		if f.Partition == nil {
			f.Partition = map[string]string{}
		}
		files = append(files, f)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return files, nil
}

// === Private mappers ===

func scanDataset(row rowScanner) (*domain.Dataset, error) {
	var d domain.Dataset
	var keysJSON, colsJSON string
	var csvJSON sql.NullString
	var lastRefresh sql.NullTime
	if err := row.Scan(&d.ID, &d.Name, &d.Location, &d.Format, &d.Pattern,
		&keysJSON, &colsJSON, &csvJSON, &d.Description, &d.Owner, &d.AllowEmpty,
		&d.RefreshCron, &d.FileCount, &d.TotalBytes, &d.CreatedAt, &d.UpdatedAt,
		&lastRefresh); err != nil {
		return nil, err
	}

	_ = json.Unmarshal([]byte(keysJSON), &d.PartitionKeys)
	_ = json.Unmarshal([]byte(colsJSON), &d.Columns)
	if csvJSON.Valid {
		_ = json.Unmarshal([]byte(csvJSON.String), &d.CSV)
	}
	if lastRefresh.Valid {
		t := lastRefresh.Time
		d.LastRefreshAt = &t
	}
	return &d, nil
}

// csvOptionsJSON renders the CSV options column; NULL for parquet datasets.
func csvOptionsJSON(d *domain.Dataset) (any, error) {
	if d.Format != domain.FormatCSV {
		return nil, nil
	}
	b, err := json.Marshal(d.CSV)
	if err != nil {
		return nil, fmt.Errorf("marshal csv options: %w", err)
	}
	return string(b), nil
}
