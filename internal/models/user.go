package models

import (
	"time"
)

// Estados posibles de un CoreUser
const (
	UserStatusActive    = "active"
	UserStatusInactive  = "inactive"
	UserStatusSuspended = "suspended"
)

type CoreUser struct {
	ID        string    `json:"id"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// UserAccount es la cuenta con la que se inicia sesión.
type UserAccount struct {
	ID              string    `json:"id"`
	CoreUserID      string    `json:"coreUserId"`
	Email           string    `json:"email"`
	PhoneNumber     *string   `json:"phoneNumber"`
	PasswordHash    string    `json:"-"` // El "-" evita que se serialice en JSON
	FullName        string    `json:"fullName"`
	IsEmailVerified bool      `json:"isEmailVerified"`
	IsPhoneVerified bool      `json:"isPhoneVerified"`
	CreatedAt       time.Time `json:"createdAt"`
	UpdatedAt       time.Time `json:"updatedAt"`
}

type UserProfile struct {
	ID            string    `json:"id"`
	UserAccountID string    `json:"userAccountId"`
	AvatarURL     *string   `json:"avatarUrl"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

// SessionUser es lo que devuelven /login, /register y /me.
type SessionUser struct {
	ID      string       `json:"id"` // id del CoreUser
	Account UserAccount  `json:"account"`
	Profile *UserProfile `json:"profile"`
}

// Verification cubre password_resets, email_verifications y phone_verifications.
type Verification struct {
	ID            string     `json:"id"`
	UserAccountID string     `json:"userAccountId"`
	Token         string     `json:"-"`
	IsCompleted   bool       `json:"isCompleted"`
	CompletedAt   *time.Time `json:"completedAt"`
	ExpiresAt     time.Time  `json:"expiresAt"`
	CreatedAt     time.Time  `json:"createdAt"`
}

// Usable indica si el token todavía puede canjearse.
func (v Verification) Usable(now time.Time) bool {
	return !v.IsCompleted && now.Before(v.ExpiresAt)
}
