package repository

import (
	"context"

	"github.com/AgusMolinaCode/FIRE_Api.git/internal/database"
	"github.com/AgusMolinaCode/FIRE_Api.git/internal/models"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// HoldingsRepository maneja los valores que tiene cada cuenta de broker
type HoldingsRepository struct {
	db *database.Database
}

// NewHoldingsRepository crea un nuevo repositorio de tenencias
func NewHoldingsRepository(db *database.Database) *HoldingsRepository {
	return &HoldingsRepository{db: db}
}

// GetHoldings devuelve las tenencias del activo con los datos del valor
func (r *HoldingsRepository) GetHoldings(ctx context.Context, assetID string) ([]models.AssetHolding, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT h.id, h.asset_id, h.security_id, h.shares, h.created_at, `+securityColumnsPrefixed+`
		FROM broker_provider_asset_securities h
		JOIN securities s ON s.id = h.security_id
		WHERE h.asset_id = ?
		ORDER BY s.symbol`, assetID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	holdings := []models.AssetHolding{}
	for rows.Next() {
		var h models.AssetHolding
		sec := &models.Security{}
		dest := append([]any{&h.ID, &h.AssetID, &h.SecurityID, &h.Shares, &h.CreatedAt}, securityDest(sec)...)
		if err := rows.Scan(dest...); err != nil {
			return nil, err
		}
		h.Security = sec
		holdings = append(holdings, h)
	}
	return holdings, rows.Err()
}

// UpsertHolding agrega el valor a la cuenta o actualiza la cantidad de acciones
func (r *HoldingsRepository) UpsertHolding(ctx context.Context, assetID, securityID string, shares decimal.Decimal) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO broker_provider_asset_securities (id, asset_id, security_id, shares, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (asset_id, security_id) DO UPDATE SET shares = excluded.shares`,
		uuid.New().String(), assetID, securityID, shares, now())
	return err
}

func (r *HoldingsRepository) DeleteHolding(ctx context.Context, assetID, securityID string) error {
	return affected(r.db.ExecContext(ctx,
		`DELETE FROM broker_provider_asset_securities WHERE asset_id = ? AND security_id = ?`, assetID, securityID))
}

// SharesBySymbol suma las acciones de un símbolo en todas las cuentas del usuario
func (r *HoldingsRepository) SharesBySymbol(ctx context.Context, accountID, symbol string) (decimal.Decimal, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT h.shares
		FROM broker_provider_asset_securities h
		JOIN securities s ON s.id = h.security_id
		JOIN broker_provider_assets a ON a.id = h.asset_id
		WHERE a.user_account_id = ? AND UPPER(s.symbol) = UPPER(?)`, accountID, symbol)
	if err != nil {
		return decimal.Zero, err
	}
	defer rows.Close()

	total := decimal.Zero
	for rows.Next() {
		var shares decimal.Decimal
		if err := rows.Scan(&shares); err != nil {
			return decimal.Zero, err
		}
		total = total.Add(shares)
	}
	return total, rows.Err()
}
