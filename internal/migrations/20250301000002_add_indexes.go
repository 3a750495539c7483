package migrations

import (
	"context"

	"github.com/uptrace/bun"
)

func init() {
	Migrations.MustRegister(func(ctx context.Context, db *bun.DB) error {
		indexes := []string{
			"CREATE INDEX IF NOT EXISTS idx_snapshots_tag_taken ON snapshots(dataset_tag, taken_at)",
			"CREATE INDEX IF NOT EXISTS idx_snapshot_contracts_snapshot ON snapshot_contracts(snapshot_id)",
			"CREATE INDEX IF NOT EXISTS idx_snapshot_contracts_contract ON snapshot_contracts(dataset_tag, contract_id)",
			"CREATE INDEX IF NOT EXISTS idx_refresh_runs_start ON refresh_runs(start_time DESC)",
		}

		for _, idx := range indexes {
			if _, err := db.ExecContext(ctx, idx); err != nil {
				return err
			}
		}

		return nil
	}, func(ctx context.Context, db *bun.DB) error {
		indexes := []string{
			"DROP INDEX IF EXISTS idx_snapshots_tag_taken",
			"DROP INDEX IF EXISTS idx_snapshot_contracts_snapshot",
			"DROP INDEX IF EXISTS idx_snapshot_contracts_contract",
			"DROP INDEX IF EXISTS idx_refresh_runs_start",
		}

		for _, idx := range indexes {
			if _, err := db.ExecContext(ctx, idx); err != nil {
				return err
			}
		}

		return nil
	})
}
