package auth

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// AccessClaims viaja en la cookie "aat".
type AccessClaims struct {
	TenantID        string `json:"tenantId"`
	TenantAccountID string `json:"tenantAccountId"`
	jwt.RegisteredClaims
}

// RefreshClaims viaja en la cookie "art". El hash del token nunca sale de la base.
type RefreshClaims struct {
	TenantID        string `json:"tenantId"`
	TenantAccountID string `json:"tenantAccountId"`
	FamilyID        string `json:"familyId"`
	jwt.RegisteredClaims
}

var errMissingClaims = errors.New("token is missing required claims")

func signToken(claims jwt.Claims, secret string) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}

func (s *Service) GenerateAccessToken(tenantID, accountID string) (string, error) {
	now := s.now()
	return signToken(AccessClaims{
		TenantID:        tenantID,
		TenantAccountID: accountID,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.opts.AccessExpiry)),
		},
	}, s.opts.JWTSecret)
}

func (s *Service) GenerateRefreshToken(tenantID, accountID, familyID string) (string, error) {
	now := s.now()
	return signToken(RefreshClaims{
		TenantID:        tenantID,
		TenantAccountID: accountID,
		FamilyID:        familyID,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.opts.RefreshExpiry)),
		},
	}, s.opts.RefreshSecret)
}

func (s *Service) parserOptions() []jwt.ParserOption {
	return []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	}
}

func (s *Service) VerifyAccessToken(tokenString string) (*AccessClaims, error) {
	claims := &AccessClaims{}
	_, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		return []byte(s.opts.JWTSecret), nil
	}, s.parserOptions()...)
	if err != nil {
		return nil, fmt.Errorf("verifying access token: %w", err)
	}
	if claims.TenantID == "" || claims.TenantAccountID == "" {
		return nil, errMissingClaims
	}
	return claims, nil
}

func (s *Service) VerifyRefreshToken(tokenString string) (*RefreshClaims, error) {
	claims := &RefreshClaims{}
	_, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		return []byte(s.opts.RefreshSecret), nil
	}, s.parserOptions()...)
	if err != nil {
		return nil, fmt.Errorf("verifying refresh token: %w", err)
	}
	if claims.TenantID == "" || claims.TenantAccountID == "" || claims.FamilyID == "" {
		return nil, errMissingClaims
	}
	return claims, nil
}

// RandomHex devuelve n bytes aleatorios en hexadecimal.
func RandomHex(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// Tamaños de los valores aleatorios de una sesión
const (
	familyIDBytes  = 32
	tokenHashBytes = 64
)

func expiresIn(now time.Time, d time.Duration) time.Time {
	return now.Add(d).UTC()
}
