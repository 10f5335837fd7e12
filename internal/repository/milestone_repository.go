package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/AgusMolinaCode/FIRE_Api.git/internal/database"
	"github.com/AgusMolinaCode/FIRE_Api.git/internal/models"
	"github.com/google/uuid"
)

type MilestoneRepository struct {
	db *database.Database
}

func NewMilestoneRepository(db *database.Database) *MilestoneRepository {
	return &MilestoneRepository{db: db}
}

const milestoneColumns = `id, user_account_id, name, target_value, account_type, is_completed, created_at, updated_at`

func scanMilestone(s scanner) (*models.Milestone, error) {
	m := &models.Milestone{}
	err := s.Scan(&m.ID, &m.UserAccountID, &m.Name, &m.TargetValue, &m.AccountType, &m.IsCompleted, &m.CreatedAt, &m.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return m, nil
}

func (r *MilestoneRepository) list(ctx context.Context, query string, args ...any) ([]models.Milestone, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []models.Milestone{}
	for rows.Next() {
		m, err := scanMilestone(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *m)
	}
	return out, rows.Err()
}

// ListByUser ordena de más nuevo a más viejo.
func (r *MilestoneRepository) ListByUser(ctx context.Context, accountID string) ([]models.Milestone, error) {
	return r.list(ctx,
		`SELECT `+milestoneColumns+` FROM milestones WHERE user_account_id = ? ORDER BY created_at DESC`, accountID)
}

func (r *MilestoneRepository) ListPending(ctx context.Context, accountID string) ([]models.Milestone, error) {
	return r.list(ctx,
		`SELECT `+milestoneColumns+` FROM milestones WHERE user_account_id = ? AND is_completed = ? ORDER BY target_value`,
		accountID, false)
}

func (r *MilestoneRepository) Get(ctx context.Context, id string) (*models.Milestone, error) {
	return scanMilestone(r.db.QueryRowContext(ctx, `SELECT `+milestoneColumns+` FROM milestones WHERE id = ?`, id))
}

func (r *MilestoneRepository) Create(ctx context.Context, m *models.Milestone) error {
	ts := now()
	m.ID = uuid.New().String()
	m.CreatedAt, m.UpdatedAt = ts, ts
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO milestones (`+milestoneColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		m.ID, m.UserAccountID, m.Name, m.TargetValue, m.AccountType, m.IsCompleted, m.CreatedAt, m.UpdatedAt)
	return err
}

func (r *MilestoneRepository) Update(ctx context.Context, m *models.Milestone) error {
	m.UpdatedAt = now()
	return affected(r.db.ExecContext(ctx, `
		UPDATE milestones SET name = ?, target_value = ?, account_type = ?, is_completed = ?, updated_at = ?
		WHERE id = ?`,
		m.Name, m.TargetValue, m.AccountType, m.IsCompleted, m.UpdatedAt, m.ID))
}

func (r *MilestoneRepository) SetCompleted(ctx context.Context, id string, completed bool) error {
	return affected(r.db.ExecContext(ctx,
		`UPDATE milestones SET is_completed = ?, updated_at = ? WHERE id = ?`, completed, now(), id))
}

func (r *MilestoneRepository) Delete(ctx context.Context, id string) error {
	return affected(r.db.ExecContext(ctx, `DELETE FROM milestones WHERE id = ?`, id))
}
