package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Milestone es un objetivo de valor del portafolio o de un tipo de cuenta.
type Milestone struct {
	ID            string          `json:"id"`
	UserAccountID string          `json:"userAccountId"`
	Name          string          `json:"name"`
	TargetValue   decimal.Decimal `json:"targetValue"`
	AccountType   *string         `json:"accountType"` // nil = portafolio completo
	IsCompleted   bool            `json:"isCompleted"`
	CreatedAt     time.Time       `json:"createdAt"`
	UpdatedAt     time.Time       `json:"updatedAt"`
}

// FireSettings son los parámetros de la proyección FIRE.
type FireSettings struct {
	ID                   string          `json:"id"`
	UserAccountID        string          `json:"userAccountId"`
	TargetRetirementAge  int             `json:"targetRetirementAge"`
	AnnualIncomeGoal     decimal.Decimal `json:"annualIncomeGoal"`
	ExpectedAnnualReturn decimal.Decimal `json:"expectedAnnualReturn"` // porcentaje
	SafeWithdrawalRate   decimal.Decimal `json:"safeWithdrawalRate"`   // porcentaje
	MonthlyInvestment    decimal.Decimal `json:"monthlyInvestment"`
	CurrentAge           int             `json:"currentAge"`
	AdjustInflation      bool            `json:"adjustInflation"`
	CreatedAt            time.Time       `json:"createdAt"`
	UpdatedAt            time.Time       `json:"updatedAt"`
}

// DefaultFireSettings devuelve los valores por defecto de una cuenta nueva.
func DefaultFireSettings(userAccountID string) FireSettings {
	return FireSettings{
		UserAccountID:        userAccountID,
		TargetRetirementAge:  60,
		AnnualIncomeGoal:     decimal.NewFromInt(48000),
		ExpectedAnnualReturn: decimal.NewFromInt(7),
		SafeWithdrawalRate:   decimal.NewFromInt(4),
		MonthlyInvestment:    decimal.NewFromInt(300),
		CurrentAge:           35,
		AdjustInflation:      true,
	}
}

// FireProjection es el resultado de proyectar el portafolio actual.
type FireProjection struct {
	FireNumber       decimal.Decimal `json:"fireNumber"`
	CurrentValue     decimal.Decimal `json:"currentValue"`
	RealAnnualReturn decimal.Decimal `json:"realAnnualReturn"`
	YearsToFire      *float64        `json:"yearsToFire"` // nil si no se alcanza en 100 años
	FireAge          *float64        `json:"fireAge"`
	OnTrack          bool            `json:"onTrack"` // alcanza antes de targetRetirementAge
	Progress         decimal.Decimal `json:"progress"` // porcentaje del FIRE number
}
