package snapshot

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/uptrace/bun"

	"github.com/cefbursatil/TransportContractAnalyzer/internal/lock"
	"github.com/cefbursatil/TransportContractAnalyzer/internal/models"
	"github.com/cefbursatil/TransportContractAnalyzer/internal/repositories"
)

// SQLStore keeps snapshots as rows in the SQLite database.
type SQLStore struct {
	db     *bun.DB
	locks  *lock.KeyedMutex
	logger *slog.Logger
	now    func() time.Time
}

var _ Store = (*SQLStore)(nil)

// NewSQLStore creates a store over a migrated database.
func NewSQLStore(db *bun.DB, logger *slog.Logger) *SQLStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &SQLStore{db: db, locks: lock.NewKeyedMutex(), logger: logger, now: time.Now}
}

// Save commits the new snapshot, then prunes older snapshots of tag.
func (s *SQLStore) Save(ctx context.Context, table models.Table, tag models.DatasetTag) error {
	if !tag.Valid() {
		return fmt.Errorf("%w: %q", models.ErrUnknownDataset, tag)
	}
	unlock := s.locks.Lock(string(tag))
	defer unlock()

	existing, err := repositories.ListSnapshots(ctx, s.db, tag)
	if err != nil {
		return fmt.Errorf("%w: list %s: %v", models.ErrSnapshotWrite, tag, err)
	}
	names := make([]string, 0, len(existing))
	for _, e := range existing {
		names = append(names, e.Name)
	}

	now := s.now().UTC()
	snap := &models.Snapshot{
		Name:       nextName(tag, now, names),
		DatasetTag: tag,
		TakenAt:    now,
		RowCount:   len(table),
	}

	rows := make([]*models.Contract, 0, len(table))
	for i := range table {
		c := table[i]
		c.DatasetTag = tag
		if err := c.Validate(); err != nil {
			return fmt.Errorf("%w: row %d: %v", models.ErrSnapshotWrite, i, err)
		}
		rows = append(rows, &c)
	}

	if err := repositories.InsertSnapshot(ctx, s.db, snap, rows); err != nil {
		return fmt.Errorf("%w: %s: %v", models.ErrSnapshotWrite, snap.Name, err)
	}
	s.logger.Info("snapshot saved", "dataset", string(tag), "name", snap.Name, "rows", len(rows))

	if removed, err := repositories.DeleteSnapshotsExcept(ctx, s.db, tag, snap.ID); err != nil {
		s.logger.Warn("could not delete old snapshots", "dataset", string(tag), "error", err)
	} else if removed > 0 {
		s.logger.Debug("old snapshots deleted", "dataset", string(tag), "count", removed)
	}
	return nil
}

func (s *SQLStore) LoadLatest(ctx context.Context, tag models.DatasetTag) (models.Table, error) {
	snap, err := repositories.LatestSnapshot(ctx, s.db, tag)
	if err != nil {
		return models.Table{}, fmt.Errorf("load %s snapshot: %w", tag, err)
	}
	if snap == nil {
		return models.Table{}, nil
	}
	table := make(models.Table, 0, len(snap.Contracts))
	for _, c := range snap.Contracts {
		table = append(table, *c)
	}
	return table, nil
}

func (s *SQLStore) List(ctx context.Context, tag models.DatasetTag) ([]models.Snapshot, error) {
	snaps, err := repositories.ListSnapshots(ctx, s.db, tag)
	if err != nil {
		return nil, fmt.Errorf("list %s snapshots: %w", tag, err)
	}
	return snaps, nil
}
