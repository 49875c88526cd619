// Package scheduler refreshes datasets on their cron schedules.
package scheduler

import (
	"context"
	"log/slog"
	"sync"

	"github.com/robfig/cron/v3"

	"quarry/internal/domain"
)

// Refresher re-discovers a dataset's files and reconciles its schema.
// Implemented by the registry.
type Refresher interface {
	Refresh(ctx context.Context, name string) (*domain.Dataset, error)
}

// Scheduler drives cron-based dataset refreshes. Every dataset registered
// with a refresh_cron gets an entry; Reload rebuilds the entries after
// dataset writes so schedule changes take effect without a restart.
type Scheduler struct {
	cron     *cron.Cron
	registry Refresher
	datasets domain.DatasetRepository
	logger   *slog.Logger
	mu       sync.Mutex
	entries  map[string]cron.EntryID // dataset ID → cron entry
}

// New creates a dataset refresh scheduler.
func New(registry Refresher, datasets domain.DatasetRepository, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		cron:     cron.New(),
		registry: registry,
		datasets: datasets,
		logger:   logger,
		entries:  make(map[string]cron.EntryID),
	}
}

// Start loads all scheduled datasets and starts the cron loop.
func (s *Scheduler) Start(ctx context.Context) error {
	if err := s.loadSchedules(ctx); err != nil {
		return err
	}
	s.cron.Start()
	s.logger.Info("refresh scheduler started", "scheduled", len(s.entries))
	return nil
}

// Stop stops the cron loop. Running refreshes finish on their own.
func (s *Scheduler) Stop() {
	s.cron.Stop()
	s.logger.Info("refresh scheduler stopped")
}

// Reload clears all entries and reloads schedules from the repository.
func (s *Scheduler) Reload(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, entryID := range s.entries {
		s.cron.Remove(entryID)
	}
	s.entries = make(map[string]cron.EntryID)

	return s.loadSchedules(ctx)
}

// loadSchedules pages through every dataset and registers the ones carrying
// a refresh schedule. An invalid schedule is skipped and logged, never fatal.
func (s *Scheduler) loadSchedules(ctx context.Context) error {
	var seen int64
	page := domain.PageRequest{MaxResults: domain.MaxMaxResults}
	for {
		batch, total, err := s.datasets.List(ctx, page)
		if err != nil {
			return err
		}
		for _, d := range batch {
			s.schedule(d)
		}
		seen += int64(len(batch))
		if len(batch) == 0 || seen >= total {
			return nil
		}
		page.PageToken = domain.EncodePageToken(int(seen))
	}
}

func (s *Scheduler) schedule(d domain.Dataset) {
	if d.RefreshCron == "" {
		return
	}
	name := d.Name

	entryID, err := s.cron.AddFunc(d.RefreshCron, func() {
		ctx := context.Background()
		if _, err := s.registry.Refresh(ctx, name); err != nil {
			s.logger.Warn("scheduled refresh failed", "dataset", name, "error", err)
		}
	})
	if err != nil {
		s.logger.Warn("invalid refresh schedule",
			"dataset", name,
			"schedule", d.RefreshCron,
			"error", err,
		)
		return
	}

	s.entries[d.ID] = entryID
	s.logger.Info("scheduled dataset refresh", "dataset", name, "schedule", d.RefreshCron)
}
