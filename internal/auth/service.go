// Package auth emite y rota las sesiones basadas en familias de refresh tokens.
package auth

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/AgusMolinaCode/FIRE_Api.git/internal/models"
	"github.com/AgusMolinaCode/FIRE_Api.git/internal/repository"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrUnauthorized       = errors.New("unauthorized")
	ErrInvalidCredentials = errors.New("invalid credentials")
)

// TokenStore persiste los refresh tokens.
type TokenStore interface {
	CreateRefreshToken(ctx context.Context, t *models.RefreshToken) error
	FindActiveRefreshToken(ctx context.Context, accountID, familyID string) (*models.RefreshToken, error)
	RotateRefreshToken(ctx context.Context, current, next *models.RefreshToken) error
	RevokeFamily(ctx context.Context, accountID, familyID string) error
	RevokeAll(ctx context.Context, accountID string) error
}

type Options struct {
	JWTSecret     string
	RefreshSecret string
	AccessExpiry  time.Duration
	RefreshExpiry time.Duration
	CookieDomain  string
	Secure        bool
	APIKeys       []string
}

type Service struct {
	opts         Options
	store        TokenStore
	apiKeyHashes [][]byte
	now          func() time.Time
}

// Session son los dos JWT que se guardan en cookies.
type Session struct {
	AccessToken  string
	RefreshToken string
	FamilyID     string
	ExpiresAt    time.Time
}

func NewService(opts Options, store TokenStore) *Service {
	s := &Service{opts: opts, store: store, now: time.Now}
	for _, key := range opts.APIKeys {
		if key == "" {
			continue
		}
		sum := sha256.Sum256([]byte(key))
		s.apiKeyHashes = append(s.apiKeyHashes, sum[:])
	}
	return s
}

// WithClock cambia el reloj; se usa en los tests.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// IssueSession crea una familia nueva para la cuenta.
func (s *Service) IssueSession(ctx context.Context, tenantID, accountID, deviceInfo string) (*Session, error) {
	sess, row, err := s.newSession(tenantID, accountID, deviceInfo, nil)
	if err != nil {
		return nil, err
	}
	if err := s.store.CreateRefreshToken(ctx, row); err != nil {
		return nil, fmt.Errorf("saving refresh token: %w", err)
	}
	return sess, nil
}

func (s *Service) newSession(tenantID, accountID, deviceInfo string, parent *models.RefreshToken) (*Session, *models.RefreshToken, error) {
	familyID, err := RandomHex(familyIDBytes)
	if err != nil {
		return nil, nil, fmt.Errorf("generating family id: %w", err)
	}
	tokenHash, err := RandomHex(tokenHashBytes)
	if err != nil {
		return nil, nil, fmt.Errorf("generating token hash: %w", err)
	}

	now := s.now().UTC()
	row := &models.RefreshToken{
		ID:            uuid.New().String(),
		TenantID:      tenantID,
		UserAccountID: accountID,
		TokenHash:     tokenHash,
		FamilyID:      familyID,
		ExpiresAt:     expiresIn(now, s.opts.RefreshExpiry),
		CreatedAt:     now,
	}
	if deviceInfo != "" {
		row.DeviceInfo = &deviceInfo
	}
	if parent != nil {
		row.ParentTokenHash = &parent.TokenHash
		row.LastUsedAt = &now
	}

	access, err := s.GenerateAccessToken(tenantID, accountID)
	if err != nil {
		return nil, nil, fmt.Errorf("signing access token: %w", err)
	}
	refresh, err := s.GenerateRefreshToken(tenantID, accountID, familyID)
	if err != nil {
		return nil, nil, fmt.Errorf("signing refresh token: %w", err)
	}

	return &Session{AccessToken: access, RefreshToken: refresh, FamilyID: familyID, ExpiresAt: row.ExpiresAt}, row, nil
}

// AuthorizeUser valida el access token y, si no sirve, rota la familia del refresh token.
// Cuando hay rotación devuelve la sesión nueva para reescribir las cookies.
func (s *Service) AuthorizeUser(ctx context.Context, accessToken, refreshToken, deviceInfo string) (*models.Tenant, *Session, error) {
	if accessToken != "" {
		if claims, err := s.VerifyAccessToken(accessToken); err == nil {
			return userTenant(claims.TenantID, claims.TenantAccountID), nil, nil
		}
	}
	if refreshToken == "" {
		return nil, nil, ErrUnauthorized
	}

	claims, err := s.VerifyRefreshToken(refreshToken)
	if err != nil {
		return nil, nil, ErrUnauthorized
	}

	current, err := s.store.FindActiveRefreshToken(ctx, claims.TenantAccountID, claims.FamilyID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, nil, ErrUnauthorized
	}
	if err != nil {
		return nil, nil, fmt.Errorf("loading refresh token: %w", err)
	}

	if !s.now().Before(current.ExpiresAt) {
		if err := s.store.RevokeFamily(ctx, current.UserAccountID, current.FamilyID); err != nil {
			zap.L().Error("revoking expired refresh family", zap.Error(err))
		}
		return nil, nil, ErrUnauthorized
	}

	sess, next, err := s.newSession(current.TenantID, current.UserAccountID, deviceInfo, current)
	if err != nil {
		return nil, nil, err
	}
	if err := s.store.RotateRefreshToken(ctx, current, next); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, nil, ErrUnauthorized
		}
		return nil, nil, fmt.Errorf("rotating refresh token: %w", err)
	}

	zap.L().Debug("refresh family rotated", zap.String("userAccountId", current.UserAccountID))
	return userTenant(current.TenantID, current.UserAccountID), sess, nil
}

// AuthorizeAPIKey compara el hash de la clave contra las configuradas en tiempo constante.
func (s *Service) AuthorizeAPIKey(ctx context.Context, key string) (*models.Tenant, error) {
	if key == "" {
		return nil, ErrUnauthorized
	}
	sum := sha256.Sum256([]byte(key))
	matched := 0
	for _, h := range s.apiKeyHashes {
		matched |= subtle.ConstantTimeCompare(sum[:], h)
	}
	if matched != 1 {
		return nil, ErrUnauthorized
	}
	return &models.Tenant{ID: "api-" + hex.EncodeToString(sum[:4]), Type: models.TenantTypeAPI}, nil
}

func (s *Service) RevokeFamily(ctx context.Context, accountID, familyID string) error {
	return s.store.RevokeFamily(ctx, accountID, familyID)
}

func (s *Service) RevokeAll(ctx context.Context, accountID string) error {
	return s.store.RevokeAll(ctx, accountID)
}

// FamilyFromRefreshToken devuelve la familia de un refresh token válido.
func (s *Service) FamilyFromRefreshToken(refreshToken string) (string, bool) {
	claims, err := s.VerifyRefreshToken(refreshToken)
	if err != nil {
		return "", false
	}
	return claims.FamilyID, true
}

func userTenant(tenantID, accountID string) *models.Tenant {
	return &models.Tenant{ID: tenantID, Type: models.TenantTypeUser, UserAccountID: accountID}
}

// HashPassword usa bcrypt con el costo por defecto.
func HashPassword(password string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hashed), nil
}

// CheckPassword devuelve ErrInvalidCredentials si no coincide.
func CheckPassword(hash, password string) error {
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		return ErrInvalidCredentials
	}
	return nil
}
