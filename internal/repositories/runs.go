package repositories

import (
	"context"

	"github.com/uptrace/bun"

	"github.com/cefbursatil/TransportContractAnalyzer/internal/models"
)

// RunStore persists refresh run history.
type RunStore struct {
	db *bun.DB
}

// NewRunStore creates a RunStore over db.
func NewRunStore(db *bun.DB) *RunStore {
	return &RunStore{db: db}
}

// StartRun inserts a run in its initial state.
func (s *RunStore) StartRun(ctx context.Context, run *models.RefreshRun) error {
	_, err := s.db.NewInsert().Model(run).Exec(ctx)
	return err
}

// FinishRun stores the final state of a run by run id.
func (s *RunStore) FinishRun(ctx context.Context, run *models.RefreshRun) error {
	_, err := s.db.NewUpdate().
		Model(run).
		ExcludeColumn("id", "run_id", "created_at").
		Where("run_id = ?", run.RunID).
		Exec(ctx)
	return err
}

// RecentRuns returns the latest runs, newest first.
func (s *RunStore) RecentRuns(ctx context.Context, limit int) ([]models.RefreshRun, error) {
	var runs []models.RefreshRun
	err := s.db.NewSelect().
		Model(&runs).
		OrderExpr("start_time DESC, id DESC").
		Limit(limit).
		Scan(ctx)
	return runs, err
}
