package snapshot

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/cefbursatil/TransportContractAnalyzer/internal/lock"
	"github.com/cefbursatil/TransportContractAnalyzer/internal/models"
)

// Bucket is a flat namespace of named blobs.
type Bucket interface {
	Put(ctx context.Context, name string, data []byte) error
	Get(ctx context.Context, name string) ([]byte, error)
	List(ctx context.Context, prefix string) ([]string, error)
	Delete(ctx context.Context, name string) error
}

// BlobStore keeps snapshots as JSON blobs named PREFIX_YYYYMMDD_HHMMSS.json.
type BlobStore struct {
	bucket Bucket
	locks  *lock.KeyedMutex
	logger *slog.Logger
	now    func() time.Time
}

var _ Store = (*BlobStore)(nil)

// NewBlobStore creates a store over bucket.
func NewBlobStore(bucket Bucket, logger *slog.Logger) *BlobStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &BlobStore{
		bucket: bucket,
		locks:  lock.NewKeyedMutex(),
		logger: logger,
		now:    time.Now,
	}
}

func (s *BlobStore) names(ctx context.Context, tag models.DatasetTag) ([]string, error) {
	all, err := s.bucket.List(ctx, Prefix(tag)+"_")
	if err != nil {
		return nil, fmt.Errorf("list %s snapshots: %w", tag, err)
	}
	return snapshotNames(tag, all), nil
}

// Save writes the new snapshot first and only then deletes the older ones.
func (s *BlobStore) Save(ctx context.Context, table models.Table, tag models.DatasetTag) error {
	if !tag.Valid() {
		return fmt.Errorf("%w: %q", models.ErrUnknownDataset, tag)
	}
	unlock := s.locks.Lock(string(tag))
	defer unlock()

	existing, err := s.names(ctx, tag)
	if err != nil {
		s.logger.Warn("could not list previous snapshots", "dataset", string(tag), "error", err)
	}

	now := s.now()
	name := nextName(tag, now, existing)
	data, err := encode(tag, now.UTC(), table)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", models.ErrSnapshotWrite, name, err)
	}
	if err := s.bucket.Put(ctx, name, data); err != nil {
		return fmt.Errorf("%w: %s: %v", models.ErrSnapshotWrite, name, err)
	}
	s.logger.Info("snapshot saved", "dataset", string(tag), "name", name, "rows", len(table))

	for _, old := range existing {
		if old == name {
			continue
		}
		if err := s.bucket.Delete(ctx, old); err != nil {
			s.logger.Warn("could not delete old snapshot", "name", old, "error", err)
		}
	}
	return nil
}

// LoadLatest reads the lexicographically greatest snapshot of tag.
func (s *BlobStore) LoadLatest(ctx context.Context, tag models.DatasetTag) (models.Table, error) {
	names, err := s.names(ctx, tag)
	if err != nil {
		return models.Table{}, err
	}
	if len(names) == 0 {
		return models.Table{}, nil
	}

	latest := names[len(names)-1]
	data, err := s.bucket.Get(ctx, latest)
	if err != nil {
		return models.Table{}, fmt.Errorf("read snapshot %s: %w", latest, err)
	}
	table, err := decode(data)
	if err != nil {
		return models.Table{}, fmt.Errorf("%s: %w", latest, err)
	}
	for i := range table {
		table[i].DatasetTag = tag
	}
	return table, nil
}

// List returns the retained snapshots of tag. Row counts are not read.
func (s *BlobStore) List(ctx context.Context, tag models.DatasetTag) ([]models.Snapshot, error) {
	names, err := s.names(ctx, tag)
	if err != nil {
		return nil, err
	}
	out := make([]models.Snapshot, 0, len(names))
	for _, n := range names {
		takenAt, _ := parseName(tag, n)
		out = append(out, models.Snapshot{Name: n, DatasetTag: tag, TakenAt: takenAt})
	}
	return out, nil
}
