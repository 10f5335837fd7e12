package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/AgusMolinaCode/FIRE_Api.git/internal/database"
	"github.com/AgusMolinaCode/FIRE_Api.git/internal/models"
	"github.com/google/uuid"
)

type RecurringRepository struct {
	db *database.Database
}

func NewRecurringRepository(db *database.Database) *RecurringRepository {
	return &RecurringRepository{db: db}
}

const recurringColumns = `id, asset_id, amount, start_date, contribution_interval, is_active,
	last_processed_date, created_at, updated_at`

func scanRecurring(s scanner) (*models.RecurringContribution, error) {
	rc := &models.RecurringContribution{}
	err := s.Scan(&rc.ID, &rc.AssetID, &rc.Amount, &rc.StartDate, &rc.Interval, &rc.IsActive,
		&rc.LastProcessedDate, &rc.CreatedAt, &rc.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	rc.StartDate = rc.StartDate.UTC()
	if rc.LastProcessedDate != nil {
		t := rc.LastProcessedDate.UTC()
		rc.LastProcessedDate = &t
	}
	return rc, nil
}

func (r *RecurringRepository) list(ctx context.Context, query string, args ...any) ([]models.RecurringContribution, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []models.RecurringContribution{}
	for rows.Next() {
		rc, err := scanRecurring(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *rc)
	}
	return out, rows.Err()
}

func (r *RecurringRepository) ListForAsset(ctx context.Context, assetID string) ([]models.RecurringContribution, error) {
	return r.list(ctx,
		`SELECT `+recurringColumns+` FROM recurring_contributions WHERE asset_id = ? ORDER BY created_at`, assetID)
}

// ListActive devuelve todos los aportes activos; lo usa el procesador.
func (r *RecurringRepository) ListActive(ctx context.Context) ([]models.RecurringContribution, error) {
	return r.list(ctx,
		`SELECT `+recurringColumns+` FROM recurring_contributions WHERE is_active = ? ORDER BY created_at`, true)
}

func (r *RecurringRepository) Get(ctx context.Context, assetID, id string) (*models.RecurringContribution, error) {
	return scanRecurring(r.db.QueryRowContext(ctx,
		`SELECT `+recurringColumns+` FROM recurring_contributions WHERE id = ? AND asset_id = ?`, id, assetID))
}

func (r *RecurringRepository) Create(ctx context.Context, rc *models.RecurringContribution) error {
	ts := now()
	rc.ID = uuid.New().String()
	rc.StartDate = rc.StartDate.UTC()
	rc.CreatedAt, rc.UpdatedAt = ts, ts
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO recurring_contributions (`+recurringColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rc.ID, rc.AssetID, rc.Amount, rc.StartDate, rc.Interval, rc.IsActive, rc.LastProcessedDate, rc.CreatedAt, rc.UpdatedAt)
	return err
}

func (r *RecurringRepository) Update(ctx context.Context, rc *models.RecurringContribution) error {
	rc.UpdatedAt = now()
	rc.StartDate = rc.StartDate.UTC()
	return affected(r.db.ExecContext(ctx, `
		UPDATE recurring_contributions
		SET amount = ?, start_date = ?, contribution_interval = ?, is_active = ?, updated_at = ?
		WHERE id = ? AND asset_id = ?`,
		rc.Amount, rc.StartDate, rc.Interval, rc.IsActive, rc.UpdatedAt, rc.ID, rc.AssetID))
}

func (r *RecurringRepository) Delete(ctx context.Context, assetID, id string) error {
	return affected(r.db.ExecContext(ctx,
		`DELETE FROM recurring_contributions WHERE id = ? AND asset_id = ?`, id, assetID))
}
