package models

import "time"

// Tipos de Tenant
const (
	TenantTypeUser = "user"
	TenantTypeAPI  = "api"
)

// Tenant es el principal autenticado que se adjunta a cada request.
type Tenant struct {
	ID            string `json:"id"`
	Type          string `json:"type"`
	UserAccountID string `json:"userAccountId,omitempty"` // vacío para claves de API
}

// RefreshToken es la fila persistida de un refresh token; el JWT lleva solo la familia.
type RefreshToken struct {
	ID              string
	TenantID        string
	UserAccountID   string
	TokenHash       string
	FamilyID        string
	ParentTokenHash *string
	DeviceInfo      *string
	LastUsedAt      *time.Time
	ExpiresAt       time.Time
	IsRevoked       bool
	CreatedAt       time.Time
}
