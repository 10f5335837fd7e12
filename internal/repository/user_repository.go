package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/AgusMolinaCode/FIRE_Api.git/internal/database"
	"github.com/AgusMolinaCode/FIRE_Api.git/internal/models"
	"github.com/google/uuid"
)

// Tablas de tokens de un solo uso; comparten columnas.
type VerificationKind string

const (
	EmailVerification VerificationKind = "email_verifications"
	PhoneVerification VerificationKind = "phone_verifications"
	PasswordReset     VerificationKind = "password_resets"
)

type scanner interface {
	Scan(dest ...any) error
}

type UserRepository struct {
	db *database.Database
}

func NewUserRepository(db *database.Database) *UserRepository {
	return &UserRepository{db: db}
}

func now() time.Time {
	return time.Now().UTC()
}

// Register crea el usuario base, la cuenta y el perfil en una transacción.
func (r *UserRepository) Register(ctx context.Context, account *models.UserAccount) (*models.SessionUser, error) {
	ts := now()
	core := models.CoreUser{ID: uuid.New().String(), Status: models.UserStatusActive, CreatedAt: ts, UpdatedAt: ts}
	account.ID = uuid.New().String()
	account.CoreUserID = core.ID
	account.CreatedAt, account.UpdatedAt = ts, ts
	profile := &models.UserProfile{ID: uuid.New().String(), UserAccountID: account.ID, CreatedAt: ts, UpdatedAt: ts}

	err := r.db.WithTx(ctx, func(tx *database.Tx) error {
		if err := insertCoreUser(ctx, tx, &core); err != nil {
			return err
		}
		if err := insertAccount(ctx, tx, account); err != nil {
			return err
		}
		return insertProfile(ctx, tx, profile)
	})
	if err != nil {
		return nil, err
	}
	return &models.SessionUser{ID: core.ID, Account: *account, Profile: profile}, nil
}

// SessionUser arma la respuesta de /me.
func (r *UserRepository) SessionUser(ctx context.Context, accountID string) (*models.SessionUser, error) {
	account, err := r.GetAccount(ctx, accountID)
	if err != nil {
		return nil, err
	}
	profile, err := r.GetProfileByAccount(ctx, accountID)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return nil, err
	}
	return &models.SessionUser{ID: account.CoreUserID, Account: *account, Profile: profile}, nil
}

// Core users

func insertCoreUser(ctx context.Context, q database.Querier, u *models.CoreUser) error {
	_, err := q.ExecContext(ctx,
		`INSERT INTO core_users (id, status, created_at, updated_at) VALUES (?, ?, ?, ?)`,
		u.ID, u.Status, u.CreatedAt, u.UpdatedAt)
	return err
}

func (r *UserRepository) CreateCoreUser(ctx context.Context, u *models.CoreUser) error {
	ts := now()
	u.ID = uuid.New().String()
	u.CreatedAt, u.UpdatedAt = ts, ts
	if u.Status == "" {
		u.Status = models.UserStatusActive
	}
	return insertCoreUser(ctx, r.db, u)
}

func (r *UserRepository) GetCoreUser(ctx context.Context, id string) (*models.CoreUser, error) {
	u := &models.CoreUser{}
	err := r.db.QueryRowContext(ctx,
		`SELECT id, status, created_at, updated_at FROM core_users WHERE id = ?`, id,
	).Scan(&u.ID, &u.Status, &u.CreatedAt, &u.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return u, err
}

func (r *UserRepository) UpdateCoreUserStatus(ctx context.Context, id, status string) (*models.CoreUser, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE core_users SET status = ?, updated_at = ? WHERE id = ?`, status, now(), id)
	if err := affected(res, err); err != nil {
		return nil, err
	}
	return r.GetCoreUser(ctx, id)
}

func (r *UserRepository) DeleteCoreUser(ctx context.Context, id string) error {
	return affected(r.db.ExecContext(ctx, `DELETE FROM core_users WHERE id = ?`, id))
}

// Accounts

const accountColumns = `id, core_user_id, email, phone_number, password_hash, full_name,
	is_email_verified, is_phone_verified, created_at, updated_at`

func scanAccount(s scanner) (*models.UserAccount, error) {
	a := &models.UserAccount{}
	err := s.Scan(&a.ID, &a.CoreUserID, &a.Email, &a.PhoneNumber, &a.PasswordHash, &a.FullName,
		&a.IsEmailVerified, &a.IsPhoneVerified, &a.CreatedAt, &a.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return a, err
}

func insertAccount(ctx context.Context, q database.Querier, a *models.UserAccount) error {
	_, err := q.ExecContext(ctx,
		`INSERT INTO user_accounts (`+accountColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.CoreUserID, a.Email, a.PhoneNumber, a.PasswordHash, a.FullName,
		a.IsEmailVerified, a.IsPhoneVerified, a.CreatedAt, a.UpdatedAt)
	if database.IsUniqueViolation(err) {
		return ErrConflict
	}
	return err
}

// CreateAccount espera PasswordHash ya calculado.
func (r *UserRepository) CreateAccount(ctx context.Context, a *models.UserAccount) error {
	ts := now()
	a.ID = uuid.New().String()
	a.CreatedAt, a.UpdatedAt = ts, ts
	return insertAccount(ctx, r.db, a)
}

func (r *UserRepository) GetAccount(ctx context.Context, id string) (*models.UserAccount, error) {
	return scanAccount(r.db.QueryRowContext(ctx,
		`SELECT `+accountColumns+` FROM user_accounts WHERE id = ?`, id))
}

func (r *UserRepository) GetAccountByEmail(ctx context.Context, email string) (*models.UserAccount, error) {
	return scanAccount(r.db.QueryRowContext(ctx,
		`SELECT `+accountColumns+` FROM user_accounts WHERE LOWER(email) = LOWER(?)`, email))
}

// UpdateAccount guarda los campos editables; la contraseña va por UpdatePassword.
func (r *UserRepository) UpdateAccount(ctx context.Context, a *models.UserAccount) error {
	a.UpdatedAt = now()
	res, err := r.db.ExecContext(ctx, `
		UPDATE user_accounts
		SET email = ?, phone_number = ?, full_name = ?, is_email_verified = ?, is_phone_verified = ?, updated_at = ?
		WHERE id = ?`,
		a.Email, a.PhoneNumber, a.FullName, a.IsEmailVerified, a.IsPhoneVerified, a.UpdatedAt, a.ID)
	if database.IsUniqueViolation(err) {
		return ErrConflict
	}
	return affected(res, err)
}

func (r *UserRepository) DeleteAccount(ctx context.Context, id string) error {
	return affected(r.db.ExecContext(ctx, `DELETE FROM user_accounts WHERE id = ?`, id))
}

// ChangePassword guarda el hash nuevo y lo registra en el historial.
func (r *UserRepository) ChangePassword(ctx context.Context, accountID, hash string) error {
	return r.db.WithTx(ctx, func(tx *database.Tx) error {
		return setPassword(ctx, tx, accountID, hash)
	})
}

// ResetPassword además completa el token y revoca todas las familias de refresh tokens.
func (r *UserRepository) ResetPassword(ctx context.Context, resetID, accountID, hash string) error {
	return r.db.WithTx(ctx, func(tx *database.Tx) error {
		if err := setPassword(ctx, tx, accountID, hash); err != nil {
			return err
		}
		if err := completeVerification(ctx, tx, PasswordReset, resetID); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx,
			`UPDATE refresh_tokens SET is_revoked = ? WHERE user_account_id = ?`, true, accountID)
		return err
	})
}

func setPassword(ctx context.Context, tx *database.Tx, accountID, hash string) error {
	ts := now()
	res, err := tx.ExecContext(ctx,
		`UPDATE user_accounts SET password_hash = ?, updated_at = ? WHERE id = ?`, hash, ts, accountID)
	if err := affected(res, err); err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx,
		`INSERT INTO password_change_history (id, user_account_id, password_hash, changed_at) VALUES (?, ?, ?, ?)`,
		uuid.New().String(), accountID, hash, ts)
	return err
}

// PasswordChanges devuelve cuántas veces se cambió la contraseña.
func (r *UserRepository) PasswordChanges(ctx context.Context, accountID string) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM password_change_history WHERE user_account_id = ?`, accountID).Scan(&n)
	return n, err
}

// Profiles

const profileColumns = `id, user_account_id, avatar_url, created_at, updated_at`

func scanProfile(s scanner) (*models.UserProfile, error) {
	p := &models.UserProfile{}
	err := s.Scan(&p.ID, &p.UserAccountID, &p.AvatarURL, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return p, err
}

func insertProfile(ctx context.Context, q database.Querier, p *models.UserProfile) error {
	_, err := q.ExecContext(ctx,
		`INSERT INTO user_profiles (`+profileColumns+`) VALUES (?, ?, ?, ?, ?)`,
		p.ID, p.UserAccountID, p.AvatarURL, p.CreatedAt, p.UpdatedAt)
	return err
}

func (r *UserRepository) CreateProfile(ctx context.Context, p *models.UserProfile) error {
	ts := now()
	p.ID = uuid.New().String()
	p.CreatedAt, p.UpdatedAt = ts, ts
	return insertProfile(ctx, r.db, p)
}

func (r *UserRepository) GetProfile(ctx context.Context, id string) (*models.UserProfile, error) {
	return scanProfile(r.db.QueryRowContext(ctx,
		`SELECT `+profileColumns+` FROM user_profiles WHERE id = ?`, id))
}

func (r *UserRepository) GetProfileByAccount(ctx context.Context, accountID string) (*models.UserProfile, error) {
	return scanProfile(r.db.QueryRowContext(ctx,
		`SELECT `+profileColumns+` FROM user_profiles WHERE user_account_id = ? ORDER BY created_at LIMIT 1`, accountID))
}

func (r *UserRepository) UpdateProfile(ctx context.Context, p *models.UserProfile) error {
	p.UpdatedAt = now()
	return affected(r.db.ExecContext(ctx,
		`UPDATE user_profiles SET avatar_url = ?, updated_at = ? WHERE id = ?`, p.AvatarURL, p.UpdatedAt, p.ID))
}

func (r *UserRepository) DeleteProfile(ctx context.Context, id string) error {
	return affected(r.db.ExecContext(ctx, `DELETE FROM user_profiles WHERE id = ?`, id))
}

// Verificaciones y resets

const verificationColumns = `id, user_account_id, token, is_completed, completed_at, expires_at, created_at`

func scanVerification(s scanner) (*models.Verification, error) {
	v := &models.Verification{}
	err := s.Scan(&v.ID, &v.UserAccountID, &v.Token, &v.IsCompleted, &v.CompletedAt, &v.ExpiresAt, &v.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return v, err
}

// CreateVerification guarda un token nuevo. Si supersede es true los pendientes
// anteriores de la misma cuenta quedan completados.
func (r *UserRepository) CreateVerification(ctx context.Context, kind VerificationKind, accountID, token string, expiresAt time.Time, supersede bool) (*models.Verification, error) {
	ts := now()
	v := &models.Verification{
		ID:            uuid.New().String(),
		UserAccountID: accountID,
		Token:         token,
		ExpiresAt:     expiresAt.UTC(),
		CreatedAt:     ts,
	}
	err := r.db.WithTx(ctx, func(tx *database.Tx) error {
		if supersede {
			if _, err := tx.ExecContext(ctx,
				`UPDATE `+string(kind)+` SET is_completed = ?, completed_at = ? WHERE user_account_id = ? AND is_completed = ?`,
				true, ts, accountID, false); err != nil {
				return err
			}
		}
		_, err := tx.ExecContext(ctx,
			`INSERT INTO `+string(kind)+` (`+verificationColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?)`,
			v.ID, v.UserAccountID, v.Token, false, nil, v.ExpiresAt, v.CreatedAt)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("creating %s: %w", kind, err)
	}
	return v, nil
}

// LatestVerification devuelve el último token emitido para la cuenta.
func (r *UserRepository) LatestVerification(ctx context.Context, kind VerificationKind, accountID string) (*models.Verification, error) {
	return scanVerification(r.db.QueryRowContext(ctx,
		`SELECT `+verificationColumns+` FROM `+string(kind)+` WHERE user_account_id = ? ORDER BY created_at DESC LIMIT 1`,
		accountID))
}

func (r *UserRepository) FindVerificationByToken(ctx context.Context, kind VerificationKind, token string) (*models.Verification, error) {
	return scanVerification(r.db.QueryRowContext(ctx,
		`SELECT `+verificationColumns+` FROM `+string(kind)+` WHERE token = ? ORDER BY created_at DESC LIMIT 1`,
		token))
}

// CompleteVerification marca el token como usado y la cuenta como verificada.
func (r *UserRepository) CompleteVerification(ctx context.Context, kind VerificationKind, v *models.Verification) error {
	return r.db.WithTx(ctx, func(tx *database.Tx) error {
		if err := completeVerification(ctx, tx, kind, v.ID); err != nil {
			return err
		}
		column := ""
		switch kind {
		case EmailVerification:
			column = "is_email_verified"
		case PhoneVerification:
			column = "is_phone_verified"
		default:
			return nil
		}
		_, err := tx.ExecContext(ctx,
			`UPDATE user_accounts SET `+column+` = ?, updated_at = ? WHERE id = ?`, true, now(), v.UserAccountID)
		return err
	})
}

func completeVerification(ctx context.Context, q database.Querier, kind VerificationKind, id string) error {
	return affected(q.ExecContext(ctx,
		`UPDATE `+string(kind)+` SET is_completed = ?, completed_at = ? WHERE id = ?`, true, now(), id))
}

// affected convierte "0 filas" en ErrNotFound.
func affected(res sql.Result, err error) error {
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
