package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/AgusMolinaCode/FIRE_Api.git/internal/database"
	"github.com/AgusMolinaCode/FIRE_Api.git/internal/models"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var ErrProviderNotFound = errors.New("broker provider not found")

type AssetRepository struct {
	db *database.Database
}

func NewAssetRepository(db *database.Database) *AssetRepository {
	return &AssetRepository{db: db}
}

var BrokerAssetResource = Resource{
	Columns: map[string]Column{
		"name":         {Name: "a.name", Kind: KindText},
		"accountType":  {Name: "a.account_type", Kind: KindText},
		"providerId":   {Name: "a.provider_id", Kind: KindText},
		"currentValue": {Name: "a.current_value", Kind: KindNumber},
		"createdAt":    {Name: "a.created_at", Kind: KindTime},
		"updatedAt":    {Name: "a.updated_at", Kind: KindTime},
	},
	TextFields:  []string{"name"},
	DefaultSort: SortParam{Field: "createdAt"},
}

var GeneralAssetResource = Resource{
	Columns: map[string]Column{
		"name":         {Name: "name", Kind: KindText},
		"currentValue": {Name: "current_value", Kind: KindNumber},
		"createdAt":    {Name: "created_at", Kind: KindTime},
		"updatedAt":    {Name: "updated_at", Kind: KindTime},
	},
	TextFields:  []string{"name"},
	DefaultSort: SortParam{Field: "createdAt"},
}

// Providers

const providerColumns = `id, name, supports_api_key, supported_account_types`

func scanProvider(s scanner) (*models.BrokerProvider, error) {
	p := &models.BrokerProvider{}
	var types string
	err := s.Scan(&p.ID, &p.Name, &p.SupportsAPIKey, &types)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrProviderNotFound
	}
	if err != nil {
		return nil, err
	}
	p.SupportedAccountTypes = splitList(types)
	return p, nil
}

func splitList(s string) []string {
	out := []string{}
	for _, item := range strings.Split(s, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

func (r *AssetRepository) ListProviders(ctx context.Context) ([]models.BrokerProvider, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+providerColumns+` FROM broker_providers ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	providers := []models.BrokerProvider{}
	for rows.Next() {
		p, err := scanProvider(rows)
		if err != nil {
			return nil, err
		}
		providers = append(providers, *p)
	}
	return providers, rows.Err()
}

func (r *AssetRepository) GetProvider(ctx context.Context, id string) (*models.BrokerProvider, error) {
	return scanProvider(r.db.QueryRowContext(ctx,
		`SELECT `+providerColumns+` FROM broker_providers WHERE id = ?`, id))
}

// Broker assets

const brokerAssetSelect = `
	SELECT a.id, a.asset_type, a.name, a.current_value, a.user_account_id, a.provider_id, a.account_type,
		a.created_at, a.updated_at, p.id, p.name, p.supports_api_key, p.supported_account_types
	FROM broker_provider_assets a
	JOIN broker_providers p ON p.id = a.provider_id`

func scanBrokerAsset(s scanner) (*models.BrokerAsset, error) {
	a := &models.BrokerAsset{Provider: &models.BrokerProvider{}}
	var types string
	err := s.Scan(&a.ID, &a.AssetType, &a.Name, &a.CurrentValue, &a.UserAccountID, &a.ProviderID, &a.AccountType,
		&a.CreatedAt, &a.UpdatedAt, &a.Provider.ID, &a.Provider.Name, &a.Provider.SupportsAPIKey, &types)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	a.Provider.SupportedAccountTypes = splitList(types)
	return a, nil
}

func (r *AssetRepository) ListBrokerAssets(ctx context.Context, accountID string, q ListQuery) ([]models.BrokerAsset, error) {
	conds, args, suffix, err := BrokerAssetResource.Build(q)
	if err != nil {
		return nil, err
	}
	query := brokerAssetSelect + where([]string{"a.user_account_id = ?"}, conds) + suffix
	rows, err := r.db.QueryContext(ctx, query, append([]any{accountID}, args...)...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	assets := []models.BrokerAsset{}
	for rows.Next() {
		a, err := scanBrokerAsset(rows)
		if err != nil {
			return nil, err
		}
		assets = append(assets, *a)
	}
	return assets, rows.Err()
}

// GetBrokerAsset devuelve ErrNotFound también cuando el activo es de otra cuenta.
func (r *AssetRepository) GetBrokerAsset(ctx context.Context, accountID, id string) (*models.BrokerAsset, error) {
	return scanBrokerAsset(r.db.QueryRowContext(ctx,
		brokerAssetSelect+` WHERE a.id = ? AND a.user_account_id = ?`, id, accountID))
}

// CreateBrokerAsset inserta el activo y su valor inicial en la misma transacción.
func (r *AssetRepository) CreateBrokerAsset(ctx context.Context, a *models.BrokerAsset) error {
	ts := now()
	a.ID = uuid.New().String()
	a.AssetType = models.AssetTypeBroker
	a.CreatedAt, a.UpdatedAt = ts, ts

	err := r.db.WithTx(ctx, func(tx *database.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO broker_provider_assets
				(id, asset_type, name, current_value, user_account_id, provider_id, account_type, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			a.ID, a.AssetType, a.Name, a.CurrentValue, a.UserAccountID, a.ProviderID, a.AccountType, a.CreatedAt, a.UpdatedAt)
		if err != nil {
			return err
		}
		return insertHistory(ctx, tx, AssetValues, &models.AssetValue{AssetID: a.ID, Value: a.CurrentValue, RecordedAt: ts})
	})
	if database.IsUniqueViolation(err) {
		return ErrConflict
	}
	return err
}

func (r *AssetRepository) UpdateBrokerAsset(ctx context.Context, a *models.BrokerAsset) error {
	a.UpdatedAt = now()
	res, err := r.db.ExecContext(ctx, `
		UPDATE broker_provider_assets SET name = ?, provider_id = ?, account_type = ?, updated_at = ?
		WHERE id = ? AND user_account_id = ?`,
		a.Name, a.ProviderID, a.AccountType, a.UpdatedAt, a.ID, a.UserAccountID)
	if database.IsUniqueViolation(err) {
		return ErrConflict
	}
	return affected(res, err)
}

func (r *AssetRepository) DeleteBrokerAsset(ctx context.Context, accountID, id string) error {
	return r.deleteAsset(ctx, "broker_provider_assets", accountID, id)
}

// General assets

const generalAssetColumns = `id, asset_type, name, current_value, user_account_id, created_at, updated_at`

func scanGeneralAsset(s scanner) (*models.GeneralAsset, error) {
	a := &models.GeneralAsset{}
	err := s.Scan(&a.ID, &a.AssetType, &a.Name, &a.CurrentValue, &a.UserAccountID, &a.CreatedAt, &a.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return a, err
}

func (r *AssetRepository) ListGeneralAssets(ctx context.Context, accountID string, q ListQuery) ([]models.GeneralAsset, error) {
	conds, args, suffix, err := GeneralAssetResource.Build(q)
	if err != nil {
		return nil, err
	}
	query := `SELECT ` + generalAssetColumns + ` FROM general_assets` +
		where([]string{"user_account_id = ?"}, conds) + suffix
	rows, err := r.db.QueryContext(ctx, query, append([]any{accountID}, args...)...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	assets := []models.GeneralAsset{}
	for rows.Next() {
		a, err := scanGeneralAsset(rows)
		if err != nil {
			return nil, err
		}
		assets = append(assets, *a)
	}
	return assets, rows.Err()
}

func (r *AssetRepository) GetGeneralAsset(ctx context.Context, accountID, id string) (*models.GeneralAsset, error) {
	return scanGeneralAsset(r.db.QueryRowContext(ctx,
		`SELECT `+generalAssetColumns+` FROM general_assets WHERE id = ? AND user_account_id = ?`, id, accountID))
}

func (r *AssetRepository) CreateGeneralAsset(ctx context.Context, a *models.GeneralAsset) error {
	ts := now()
	a.ID = uuid.New().String()
	a.AssetType = models.AssetTypeGeneral
	a.CreatedAt, a.UpdatedAt = ts, ts

	err := r.db.WithTx(ctx, func(tx *database.Tx) error {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO general_assets (`+generalAssetColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?)`,
			a.ID, a.AssetType, a.Name, a.CurrentValue, a.UserAccountID, a.CreatedAt, a.UpdatedAt)
		if err != nil {
			return err
		}
		return insertHistory(ctx, tx, AssetValues, &models.AssetValue{AssetID: a.ID, Value: a.CurrentValue, RecordedAt: ts})
	})
	if database.IsUniqueViolation(err) {
		return ErrConflict
	}
	return err
}

func (r *AssetRepository) UpdateGeneralAsset(ctx context.Context, a *models.GeneralAsset) error {
	a.UpdatedAt = now()
	res, err := r.db.ExecContext(ctx,
		`UPDATE general_assets SET name = ?, updated_at = ? WHERE id = ? AND user_account_id = ?`,
		a.Name, a.UpdatedAt, a.ID, a.UserAccountID)
	if database.IsUniqueViolation(err) {
		return ErrConflict
	}
	return affected(res, err)
}

func (r *AssetRepository) DeleteGeneralAsset(ctx context.Context, accountID, id string) error {
	return r.deleteAsset(ctx, "general_assets", accountID, id)
}

// deleteAsset borra también el historial, que no tiene clave foránea.
func (r *AssetRepository) deleteAsset(ctx context.Context, table, accountID, id string) error {
	return r.db.WithTx(ctx, func(tx *database.Tx) error {
		res, err := tx.ExecContext(ctx, `DELETE FROM `+table+` WHERE id = ? AND user_account_id = ?`, id, accountID)
		if err := affected(res, err); err != nil {
			return err
		}
		for _, kind := range []HistoryKind{AssetValues, AssetContributions} {
			if _, err := tx.ExecContext(ctx, `DELETE FROM `+string(kind)+` WHERE asset_id = ?`, id); err != nil {
				return err
			}
		}
		return nil
	})
}

// FindAssetType indica si el id es un activo de broker o general de la cuenta.
func (r *AssetRepository) FindAssetType(ctx context.Context, accountID, id string) (string, error) {
	var assetType string
	err := r.db.QueryRowContext(ctx, `
		SELECT asset_type FROM broker_provider_assets WHERE id = ? AND user_account_id = ?
		UNION ALL
		SELECT asset_type FROM general_assets WHERE id = ? AND user_account_id = ?`,
		id, accountID, id, accountID).Scan(&assetType)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	return assetType, err
}

// AssetIDs devuelve los ids de los activos de la cuenta. Con accountType solo los de
// broker de ese tipo de cuenta.
func (r *AssetRepository) AssetIDs(ctx context.Context, accountID string, accountType *string) ([]string, error) {
	query := `SELECT id FROM broker_provider_assets WHERE user_account_id = ?`
	args := []any{accountID}
	if accountType != nil {
		query += ` AND account_type = ?`
		args = append(args, *accountType)
	} else {
		query += ` UNION ALL SELECT id FROM general_assets WHERE user_account_id = ?`
		args = append(args, accountID)
	}
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// AssetsWithHistory carga el historial de valores de los activos para los cálculos de portafolio.
func (r *AssetRepository) AssetsWithHistory(ctx context.Context, accountID string, accountType *string) ([]models.AssetWithHistory, error) {
	ids, err := r.AssetIDs(ctx, accountID, accountType)
	if err != nil {
		return nil, err
	}
	histories, err := r.HistoryForAssets(ctx, AssetValues, ids)
	if err != nil {
		return nil, err
	}
	out := make([]models.AssetWithHistory, 0, len(ids))
	for _, id := range ids {
		out = append(out, models.AssetWithHistory{ID: id, History: histories[id]})
	}
	return out, nil
}

// API key connections

func (r *AssetRepository) ConnectAPIKey(ctx context.Context, assetID, apiKey string) (*models.APIKeyConnection, error) {
	ts := now()
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO broker_provider_asset_api_key_connections (id, broker_provider_asset_id, api_key, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (broker_provider_asset_id) DO UPDATE SET api_key = excluded.api_key, updated_at = excluded.updated_at`,
		uuid.New().String(), assetID, apiKey, ts, ts)
	if err != nil {
		return nil, err
	}
	return r.GetAPIKeyConnection(ctx, assetID)
}

func (r *AssetRepository) GetAPIKeyConnection(ctx context.Context, assetID string) (*models.APIKeyConnection, error) {
	c := &models.APIKeyConnection{}
	err := r.db.QueryRowContext(ctx, `
		SELECT id, broker_provider_asset_id, created_at, updated_at
		FROM broker_provider_asset_api_key_connections WHERE broker_provider_asset_id = ?`, assetID,
	).Scan(&c.ID, &c.BrokerProviderAssetID, &c.CreatedAt, &c.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return c, err
}

// TotalValue suma current_value de los activos de la cuenta. Con accountType solo los
// de broker de ese tipo de cuenta.
func (r *AssetRepository) TotalValue(ctx context.Context, accountID string, accountType *string) (decimal.Decimal, error) {
	query := `SELECT current_value FROM broker_provider_assets WHERE user_account_id = ?`
	args := []any{accountID}
	if accountType != nil {
		query += ` AND account_type = ?`
		args = append(args, *accountType)
	} else {
		query += ` UNION ALL SELECT current_value FROM general_assets WHERE user_account_id = ?`
		args = append(args, accountID)
	}
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return decimal.Zero, err
	}
	defer rows.Close()

	total := decimal.Zero
	for rows.Next() {
		var v decimal.Decimal
		if err := rows.Scan(&v); err != nil {
			return total, err
		}
		total = total.Add(v)
	}
	return total, rows.Err()
}
