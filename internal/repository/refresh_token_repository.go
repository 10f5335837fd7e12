package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/AgusMolinaCode/FIRE_Api.git/internal/database"
	"github.com/AgusMolinaCode/FIRE_Api.git/internal/models"
)

type RefreshTokenRepository struct {
	db *database.Database
}

func NewRefreshTokenRepository(db *database.Database) *RefreshTokenRepository {
	return &RefreshTokenRepository{db: db}
}

const refreshTokenColumns = `id, tenant_id, user_account_id, token_hash, family_id, parent_token_hash,
	device_info, last_used_at, expires_at, is_revoked, created_at`

func insertRefreshToken(ctx context.Context, q database.Querier, t *models.RefreshToken) error {
	_, err := q.ExecContext(ctx,
		`INSERT INTO refresh_tokens (`+refreshTokenColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.TenantID, t.UserAccountID, t.TokenHash, t.FamilyID, t.ParentTokenHash,
		t.DeviceInfo, t.LastUsedAt, t.ExpiresAt, t.IsRevoked, t.CreatedAt)
	return err
}

func (r *RefreshTokenRepository) CreateRefreshToken(ctx context.Context, t *models.RefreshToken) error {
	return insertRefreshToken(ctx, r.db, t)
}

// FindActiveRefreshToken busca el token no revocado de la familia.
func (r *RefreshTokenRepository) FindActiveRefreshToken(ctx context.Context, accountID, familyID string) (*models.RefreshToken, error) {
	t := &models.RefreshToken{}
	err := r.db.QueryRowContext(ctx, `
		SELECT `+refreshTokenColumns+`
		FROM refresh_tokens
		WHERE user_account_id = ? AND family_id = ? AND is_revoked = ?
		ORDER BY created_at DESC
		LIMIT 1`, accountID, familyID, false,
	).Scan(&t.ID, &t.TenantID, &t.UserAccountID, &t.TokenHash, &t.FamilyID, &t.ParentTokenHash,
		&t.DeviceInfo, &t.LastUsedAt, &t.ExpiresAt, &t.IsRevoked, &t.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return t, nil
}

// RotateRefreshToken revoca la familia actual y guarda la siguiente en la misma transacción.
func (r *RefreshTokenRepository) RotateRefreshToken(ctx context.Context, current, next *models.RefreshToken) error {
	return r.db.WithTx(ctx, func(tx *database.Tx) error {
		res, err := tx.ExecContext(ctx, `
			UPDATE refresh_tokens SET is_revoked = ?, last_used_at = ?
			WHERE family_id = ? AND is_revoked = ?`,
			true, now(), current.FamilyID, false)
		// otra request ya rotó esta familia
		if err := affected(res, err); err != nil {
			return err
		}
		return insertRefreshToken(ctx, tx, next)
	})
}

func (r *RefreshTokenRepository) RevokeFamily(ctx context.Context, accountID, familyID string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE refresh_tokens SET is_revoked = ? WHERE user_account_id = ? AND family_id = ?`,
		true, accountID, familyID)
	return err
}

func (r *RefreshTokenRepository) RevokeAll(ctx context.Context, accountID string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE refresh_tokens SET is_revoked = ? WHERE user_account_id = ?`, true, accountID)
	return err
}

// ActiveFamilies cuenta las familias no revocadas de una cuenta.
func (r *RefreshTokenRepository) ActiveFamilies(ctx context.Context, accountID string) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(DISTINCT family_id) FROM refresh_tokens WHERE user_account_id = ? AND is_revoked = ?`,
		accountID, false).Scan(&n)
	return n, err
}
