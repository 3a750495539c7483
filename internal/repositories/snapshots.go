package repositories

import (
	"context"
	"database/sql"
	"errors"

	"github.com/uptrace/bun"

	"github.com/cefbursatil/TransportContractAnalyzer/internal/models"
)

const insertBatchSize = 500

// InsertSnapshot inserts a snapshot header and its contracts in a transaction.
func InsertSnapshot(ctx context.Context, db *bun.DB, snap *models.Snapshot, rows []*models.Contract) error {
	return db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.NewInsert().Model(snap).Exec(ctx); err != nil {
			return err
		}

		for _, r := range rows {
			r.ID = 0
			r.SnapshotID = snap.ID
		}

		for start := 0; start < len(rows); start += insertBatchSize {
			end := min(start+insertBatchSize, len(rows))
			batch := rows[start:end]
			if _, err := tx.NewInsert().Model(&batch).Exec(ctx); err != nil {
				return err
			}
		}

		return nil
	})
}

// LatestSnapshot returns the newest snapshot of tag with its contracts, or
// nil when none exists.
func LatestSnapshot(ctx context.Context, db *bun.DB, tag models.DatasetTag) (*models.Snapshot, error) {
	snap := new(models.Snapshot)
	err := db.NewSelect().
		Model(snap).
		Where("dataset_tag = ?", tag).
		OrderExpr("taken_at DESC, id DESC").
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	err = db.NewSelect().
		Model(&snap.Contracts).
		Where("snapshot_id = ?", snap.ID).
		OrderExpr("id ASC").
		Scan(ctx)
	return snap, err
}

// ListSnapshots returns snapshot headers of tag, oldest first.
func ListSnapshots(ctx context.Context, db *bun.DB, tag models.DatasetTag) ([]models.Snapshot, error) {
	var snaps []models.Snapshot
	err := db.NewSelect().
		Model(&snaps).
		Where("dataset_tag = ?", tag).
		OrderExpr("taken_at ASC, id ASC").
		Scan(ctx)
	return snaps, err
}

// DeleteSnapshotsExcept removes every snapshot of tag other than keepID.
func DeleteSnapshotsExcept(ctx context.Context, db *bun.DB, tag models.DatasetTag, keepID int64) (int, error) {
	var removed int
	err := db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		var ids []int64
		err := tx.NewSelect().
			Model((*models.Snapshot)(nil)).
			Column("id").
			Where("dataset_tag = ?", tag).
			Where("id != ?", keepID).
			Scan(ctx, &ids)
		if err != nil {
			return err
		}
		if len(ids) == 0 {
			return nil
		}

		if _, err := tx.NewDelete().
			Model((*models.Contract)(nil)).
			Where("snapshot_id IN (?)", bun.In(ids)).
			Exec(ctx); err != nil {
			return err
		}
		if _, err := tx.NewDelete().
			Model((*models.Snapshot)(nil)).
			Where("id IN (?)", bun.In(ids)).
			Exec(ctx); err != nil {
			return err
		}
		removed = len(ids)
		return nil
	})
	return removed, err
}
