package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/AgusMolinaCode/FIRE_Api.git/internal/database"
	"github.com/AgusMolinaCode/FIRE_Api.git/internal/models"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// HistoryKind es la tabla de series: valores o aportes.
type HistoryKind string

const (
	AssetValues        HistoryKind = "asset_values"
	AssetContributions HistoryKind = "asset_contributions"
)

var HistoryResource = Resource{
	Columns: map[string]Column{
		"value":      {Name: "value", Kind: KindNumber},
		"recordedAt": {Name: "recorded_at", Kind: KindTime},
		"createdAt":  {Name: "created_at", Kind: KindTime},
	},
	DefaultSort: SortParam{Field: "recordedAt"},
}

const historyColumns = `id, value, recorded_at, asset_id, created_at, updated_at`

func scanHistory(s scanner) (*models.AssetValue, error) {
	v := &models.AssetValue{}
	err := s.Scan(&v.ID, &v.Value, &v.RecordedAt, &v.AssetID, &v.CreatedAt, &v.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	v.RecordedAt = v.RecordedAt.UTC()
	return v, nil
}

func insertHistory(ctx context.Context, q database.Querier, kind HistoryKind, v *models.AssetValue) error {
	ts := now()
	v.ID = uuid.New().String()
	v.RecordedAt = v.RecordedAt.UTC()
	v.CreatedAt, v.UpdatedAt = ts, ts
	_, err := q.ExecContext(ctx,
		`INSERT INTO `+string(kind)+` (`+historyColumns+`) VALUES (?, ?, ?, ?, ?, ?)`,
		v.ID, v.Value, v.RecordedAt, v.AssetID, v.CreatedAt, v.UpdatedAt)
	return err
}

// recalculate pone current_value igual al último valor registrado, o 0 si no queda ninguno.
func recalculate(ctx context.Context, q database.Querier, assetType, assetID string) error {
	table := "general_assets"
	if assetType == models.AssetTypeBroker {
		table = "broker_provider_assets"
	}
	_, err := q.ExecContext(ctx, `
		UPDATE `+table+` SET current_value = COALESCE(
			(SELECT value FROM asset_values WHERE asset_id = ? ORDER BY recorded_at DESC, created_at DESC LIMIT 1), 0
		), updated_at = ?
		WHERE id = ?`, assetID, now(), assetID)
	return err
}

// ListHistory lista una serie del activo con la gramática de listados.
func (r *AssetRepository) ListHistory(ctx context.Context, kind HistoryKind, assetID string, q ListQuery) ([]models.AssetValue, error) {
	conds, args, suffix, err := HistoryResource.Build(q)
	if err != nil {
		return nil, err
	}
	query := `SELECT ` + historyColumns + ` FROM ` + string(kind) + where([]string{"asset_id = ?"}, conds) + suffix
	return r.queryHistory(ctx, query, append([]any{assetID}, args...)...)
}

// HistoryForAssets devuelve cada serie ordenada por fecha, agrupada por activo.
func (r *AssetRepository) HistoryForAssets(ctx context.Context, kind HistoryKind, assetIDs []string) (map[string][]models.AssetValue, error) {
	out := make(map[string][]models.AssetValue, len(assetIDs))
	if len(assetIDs) == 0 {
		return out, nil
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(assetIDs)), ", ")
	args := make([]any, len(assetIDs))
	for i, id := range assetIDs {
		args[i] = id
	}
	values, err := r.queryHistory(ctx,
		`SELECT `+historyColumns+` FROM `+string(kind)+` WHERE asset_id IN (`+placeholders+`) ORDER BY recorded_at, created_at`,
		args...)
	if err != nil {
		return nil, err
	}
	for _, v := range values {
		out[v.AssetID] = append(out[v.AssetID], v)
	}
	return out, nil
}

func (r *AssetRepository) queryHistory(ctx context.Context, query string, args ...any) ([]models.AssetValue, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	values := []models.AssetValue{}
	for rows.Next() {
		v, err := scanHistory(rows)
		if err != nil {
			return nil, err
		}
		values = append(values, *v)
	}
	return values, rows.Err()
}

func (r *AssetRepository) GetHistory(ctx context.Context, kind HistoryKind, assetID, id string) (*models.AssetValue, error) {
	return scanHistory(r.db.QueryRowContext(ctx,
		`SELECT `+historyColumns+` FROM `+string(kind)+` WHERE id = ? AND asset_id = ?`, id, assetID))
}

// AddHistory inserta un punto; si es un valor recalcula current_value en la misma transacción.
func (r *AssetRepository) AddHistory(ctx context.Context, kind HistoryKind, assetType string, v *models.AssetValue) error {
	return r.db.WithTx(ctx, func(tx *database.Tx) error {
		if err := insertHistory(ctx, tx, kind, v); err != nil {
			return err
		}
		if kind == AssetValues {
			return recalculate(ctx, tx, assetType, v.AssetID)
		}
		return nil
	})
}

func (r *AssetRepository) UpdateHistory(ctx context.Context, kind HistoryKind, assetType string, v *models.AssetValue) error {
	v.RecordedAt = v.RecordedAt.UTC()
	v.UpdatedAt = now()
	return r.db.WithTx(ctx, func(tx *database.Tx) error {
		res, err := tx.ExecContext(ctx,
			`UPDATE `+string(kind)+` SET value = ?, recorded_at = ?, updated_at = ? WHERE id = ? AND asset_id = ?`,
			v.Value, v.RecordedAt, v.UpdatedAt, v.ID, v.AssetID)
		if err := affected(res, err); err != nil {
			return err
		}
		if kind == AssetValues {
			return recalculate(ctx, tx, assetType, v.AssetID)
		}
		return nil
	})
}

func (r *AssetRepository) DeleteHistory(ctx context.Context, kind HistoryKind, assetType, assetID, id string) error {
	return r.db.WithTx(ctx, func(tx *database.Tx) error {
		res, err := tx.ExecContext(ctx,
			`DELETE FROM `+string(kind)+` WHERE id = ? AND asset_id = ?`, id, assetID)
		if err := affected(res, err); err != nil {
			return err
		}
		if kind == AssetValues {
			return recalculate(ctx, tx, assetType, assetID)
		}
		return nil
	})
}

// BookContribution registra un aporte recurrente y avanza last_processed_date, solo si
// todavía vale previous (nil = nunca procesado). Si otra pasada ya lo avanzó devuelve false
// y no registra nada.
func (r *AssetRepository) BookContribution(ctx context.Context, contributionID, assetID string, amount decimal.Decimal, previous *time.Time, at time.Time) (bool, error) {
	booked := false
	err := r.db.WithTx(ctx, func(tx *database.Tx) error {
		query := `UPDATE recurring_contributions SET last_processed_date = ?, updated_at = ?
			WHERE id = ? AND last_processed_date IS NULL`
		args := []any{at.UTC(), now(), contributionID}
		if previous != nil {
			query = `UPDATE recurring_contributions SET last_processed_date = ?, updated_at = ?
				WHERE id = ? AND last_processed_date = ?`
			args = append(args, previous.UTC())
		}

		res, err := tx.ExecContext(ctx, query, args...)
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			return nil
		}

		booked = true
		return insertHistory(ctx, tx, AssetContributions, &models.AssetValue{AssetID: assetID, Value: amount, RecordedAt: at})
	})
	if err != nil {
		return false, err
	}
	return booked, nil
}
