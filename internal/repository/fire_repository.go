package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/AgusMolinaCode/FIRE_Api.git/internal/database"
	"github.com/AgusMolinaCode/FIRE_Api.git/internal/models"
	"github.com/google/uuid"
)

type FireRepository struct {
	db *database.Database
}

func NewFireRepository(db *database.Database) *FireRepository {
	return &FireRepository{db: db}
}

const fireColumns = `id, user_account_id, target_retirement_age, annual_income_goal, expected_annual_return,
	safe_withdrawal_rate, monthly_investment, current_age, adjust_inflation, created_at, updated_at`

func scanFire(s scanner) (*models.FireSettings, error) {
	f := &models.FireSettings{}
	err := s.Scan(&f.ID, &f.UserAccountID, &f.TargetRetirementAge, &f.AnnualIncomeGoal, &f.ExpectedAnnualReturn,
		&f.SafeWithdrawalRate, &f.MonthlyInvestment, &f.CurrentAge, &f.AdjustInflation, &f.CreatedAt, &f.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return f, nil
}

func (r *FireRepository) Get(ctx context.Context, id string) (*models.FireSettings, error) {
	return scanFire(r.db.QueryRowContext(ctx, `SELECT `+fireColumns+` FROM fire_settings WHERE id = ?`, id))
}

func (r *FireRepository) GetByUser(ctx context.Context, accountID string) (*models.FireSettings, error) {
	return scanFire(r.db.QueryRowContext(ctx,
		`SELECT `+fireColumns+` FROM fire_settings WHERE user_account_id = ?`, accountID))
}

// Create devuelve ErrConflict si la cuenta ya tiene configuración.
func (r *FireRepository) Create(ctx context.Context, f *models.FireSettings) error {
	ts := now()
	f.ID = uuid.New().String()
	f.CreatedAt, f.UpdatedAt = ts, ts
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO fire_settings (`+fireColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		f.ID, f.UserAccountID, f.TargetRetirementAge, f.AnnualIncomeGoal, f.ExpectedAnnualReturn,
		f.SafeWithdrawalRate, f.MonthlyInvestment, f.CurrentAge, f.AdjustInflation, f.CreatedAt, f.UpdatedAt)
	if database.IsUniqueViolation(err) {
		return ErrConflict
	}
	return err
}

func (r *FireRepository) Update(ctx context.Context, f *models.FireSettings) error {
	f.UpdatedAt = now()
	return affected(r.db.ExecContext(ctx, `
		UPDATE fire_settings
		SET target_retirement_age = ?, annual_income_goal = ?, expected_annual_return = ?, safe_withdrawal_rate = ?,
			monthly_investment = ?, current_age = ?, adjust_inflation = ?, updated_at = ?
		WHERE id = ?`,
		f.TargetRetirementAge, f.AnnualIncomeGoal, f.ExpectedAnnualReturn, f.SafeWithdrawalRate,
		f.MonthlyInvestment, f.CurrentAge, f.AdjustInflation, f.UpdatedAt, f.ID))
}

func (r *FireRepository) Delete(ctx context.Context, id string) error {
	return affected(r.db.ExecContext(ctx, `DELETE FROM fire_settings WHERE id = ?`, id))
}
