package snapshot

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/cefbursatil/TransportContractAnalyzer/internal/models"
)

// Store keeps the most recent snapshot of each dataset tag.
type Store interface {
	// Save persists table as the newest snapshot of tag and removes older
	// ones. A failure to remove old snapshots is logged, not returned.
	Save(ctx context.Context, table models.Table, tag models.DatasetTag) error
	// LoadLatest returns the newest snapshot of tag, or an empty table.
	LoadLatest(ctx context.Context, tag models.DatasetTag) (models.Table, error)
	// List describes the retained snapshots of tag, oldest first.
	List(ctx context.Context, tag models.DatasetTag) ([]models.Snapshot, error)
}

// document is the on-disk JSON form of a snapshot.
type document struct {
	Dataset   models.DatasetTag `json:"dataset"`
	TakenAt   time.Time         `json:"taken_at"`
	Contracts models.Table      `json:"contracts"`
}

func encode(tag models.DatasetTag, takenAt time.Time, table models.Table) ([]byte, error) {
	if table == nil {
		table = models.Table{}
	}
	return json.Marshal(document{Dataset: tag, TakenAt: takenAt, Contracts: table})
}

func decode(data []byte) (models.Table, error) {
	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	if doc.Contracts == nil {
		return models.Table{}, nil
	}
	return doc.Contracts, nil
}
