package database

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

type migration struct {
	version int
	name    string
	stmts   []string
}

// Las migraciones se aplican una sola vez y en orden.
var migrations = []migration{
	{1, "history indexes", []string{
		`CREATE INDEX IF NOT EXISTS idx_asset_values_asset_recorded ON asset_values (asset_id, recorded_at)`,
		`CREATE INDEX IF NOT EXISTS idx_asset_contributions_asset_recorded ON asset_contributions (asset_id, recorded_at)`,
	}},
	{2, "refresh token families", []string{
		`CREATE INDEX IF NOT EXISTS idx_refresh_tokens_family ON refresh_tokens (user_account_id, family_id)`,
	}},
	{3, "owner lookups", []string{
		`CREATE INDEX IF NOT EXISTS idx_broker_assets_owner ON broker_provider_assets (user_account_id)`,
		`CREATE INDEX IF NOT EXISTS idx_general_assets_owner ON general_assets (user_account_id)`,
		`CREATE INDEX IF NOT EXISTS idx_milestones_owner ON milestones (user_account_id, created_at)`,
		`CREATE INDEX IF NOT EXISTS idx_securities_symbol ON securities (symbol)`,
	}},
}

// RunMigrations ejecuta las migraciones pendientes.
func RunMigrations(ctx context.Context, db *Database) error {
	applied := map[int]bool{}
	rows, err := db.QueryContext(ctx, `SELECT version FROM schema_migrations`)
	if err != nil {
		return fmt.Errorf("reading schema_migrations: %w", err)
	}
	for rows.Next() {
		var v int
		if err := rows.Scan(&v); err != nil {
			rows.Close()
			return err
		}
		applied[v] = true
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}

	for _, m := range migrations {
		if applied[m.version] {
			continue
		}
		err := db.WithTx(ctx, func(tx *Tx) error {
			for _, stmt := range m.stmts {
				if _, err := tx.ExecContext(ctx, stmt); err != nil {
					return err
				}
			}
			_, err := tx.ExecContext(ctx,
				`INSERT INTO schema_migrations (version, name, applied_at) VALUES (?, ?, ?)`,
				m.version, m.name, time.Now().UTC())
			return err
		})
		if err != nil {
			return fmt.Errorf("migration %d (%s): %w", m.version, m.name, err)
		}
		zap.L().Info("Migración aplicada", zap.Int("version", m.version), zap.String("name", m.name))
	}
	return nil
}
