package migrations

import (
	"context"

	"github.com/uptrace/bun"

	"github.com/cefbursatil/TransportContractAnalyzer/internal/models"
)

func init() {
	Migrations.MustRegister(func(ctx context.Context, db *bun.DB) error {
		modelsList := []interface{}{
			(*models.Snapshot)(nil),
			(*models.Contract)(nil),
			(*models.RefreshRun)(nil),
		}

		for _, model := range modelsList {
			if _, err := db.NewCreateTable().Model(model).IfNotExists().Exec(ctx); err != nil {
				return err
			}
		}

		return nil
	}, func(ctx context.Context, db *bun.DB) error {
		modelsList := []interface{}{
			(*models.RefreshRun)(nil),
			(*models.Contract)(nil),
			(*models.Snapshot)(nil),
		}

		for _, model := range modelsList {
			if _, err := db.NewDropTable().Model(model).IfExists().Exec(ctx); err != nil {
				return err
			}
		}

		return nil
	})
}
