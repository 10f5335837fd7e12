package models

import (
	"time"

	"github.com/shopspring/decimal"
)

func init() {
	// Los importes viajan como números en JSON
	decimal.MarshalJSONWithoutQuotes = true
}

// Tipos de cuenta de los brokers
const (
	AccountTypeISA  = "ISA"
	AccountTypeCISA = "CISA"
	AccountTypeSIPP = "SIPP"
	AccountTypeLISA = "LISA"
	AccountTypeGIA  = "GIA"
)

var AccountTypes = []string{AccountTypeISA, AccountTypeCISA, AccountTypeSIPP, AccountTypeLISA, AccountTypeGIA}

func ValidAccountType(t string) bool {
	for _, at := range AccountTypes {
		if at == t {
			return true
		}
	}
	return false
}

const (
	AssetTypeBroker  = "broker"
	AssetTypeGeneral = "general"
)

type BrokerProvider struct {
	ID                    string   `json:"id"`
	Name                  string   `json:"name"`
	SupportsAPIKey        bool     `json:"supportsAPIKey"`
	SupportedAccountTypes []string `json:"supportedAccountTypes"`
}

// BrokerAsset es una cuenta en un broker (ISA, SIPP, ...).
type BrokerAsset struct {
	ID            string          `json:"id"`
	AssetType     string          `json:"assetType"`
	Name          string          `json:"name"`
	CurrentValue  decimal.Decimal `json:"currentValue"`
	UserAccountID string          `json:"userAccountId"`
	ProviderID    string          `json:"providerId"`
	AccountType   string          `json:"accountType"`
	Provider      *BrokerProvider `json:"provider,omitempty"`
	CreatedAt     time.Time       `json:"createdAt"`
	UpdatedAt     time.Time       `json:"updatedAt"`
}

// GeneralAsset es cualquier otro activo (efectivo, inmuebles, ...).
type GeneralAsset struct {
	ID            string          `json:"id"`
	AssetType     string          `json:"assetType"`
	Name          string          `json:"name"`
	CurrentValue  decimal.Decimal `json:"currentValue"`
	UserAccountID string          `json:"userAccountId"`
	CreatedAt     time.Time       `json:"createdAt"`
	UpdatedAt     time.Time       `json:"updatedAt"`
}

// AssetValue es un snapshot del saldo de un activo.
type AssetValue struct {
	ID         string          `json:"id"`
	Value      decimal.Decimal `json:"value"`
	RecordedAt time.Time       `json:"recordedAt"`
	AssetID    string          `json:"assetId"`
	CreatedAt  time.Time       `json:"createdAt"`
	UpdatedAt  time.Time       `json:"updatedAt"`
	Synthetic  bool            `json:"synthetic,omitempty"` // punto generado en el borde de un rango
}

// AssetContribution comparte la forma de AssetValue.
type AssetContribution = AssetValue

type APIKeyConnection struct {
	ID                    string    `json:"id"`
	BrokerProviderAssetID string    `json:"brokerProviderAssetId"`
	CreatedAt             time.Time `json:"createdAt"`
	UpdatedAt             time.Time `json:"updatedAt"`
}

// Intervalos de los aportes recurrentes
const (
	IntervalWeekly   = "weekly"
	IntervalBiweekly = "biweekly"
	IntervalMonthly  = "monthly"
)

func ValidInterval(i string) bool {
	return i == IntervalWeekly || i == IntervalBiweekly || i == IntervalMonthly
}

// NextOccurrence suma un intervalo a t. Los mensuales caen en anchorDay (el día de la fecha
// de inicio) o en el último día del mes si ese mes es más corto.
func NextOccurrence(t time.Time, interval string, anchorDay int) time.Time {
	switch interval {
	case IntervalWeekly:
		return t.AddDate(0, 0, 7)
	case IntervalBiweekly:
		return t.AddDate(0, 0, 14)
	}

	first := time.Date(t.Year(), t.Month()+1, 1, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
	lastDay := first.AddDate(0, 1, -1).Day()
	day := anchorDay
	if day <= 0 {
		day = t.Day()
	}
	if day > lastDay {
		day = lastDay
	}
	return first.AddDate(0, 0, day-1)
}

// Next devuelve la ocurrencia siguiente a t según el intervalo y la fecha de inicio.
func (rc RecurringContribution) Next(t time.Time) time.Time {
	return NextOccurrence(t, rc.Interval, rc.StartDate.Day())
}

type RecurringContribution struct {
	ID                string          `json:"id"`
	AssetID           string          `json:"assetId"`
	Amount            decimal.Decimal `json:"amount"`
	StartDate         time.Time       `json:"startDate"`
	Interval          string          `json:"interval"`
	IsActive          bool            `json:"isActive"`
	LastProcessedDate *time.Time      `json:"lastProcessedDate"`
	CreatedAt         time.Time       `json:"createdAt"`
	UpdatedAt         time.Time       `json:"updatedAt"`
}

// AssetHolding es un valor (acción, ETF) dentro de una cuenta de broker.
type AssetHolding struct {
	ID         string          `json:"id"`
	AssetID    string          `json:"assetId"`
	SecurityID string          `json:"securityId"`
	Shares     decimal.Decimal `json:"shares"`
	Security   *Security       `json:"security,omitempty"`
	CreatedAt  time.Time       `json:"createdAt"`
}

// DateRange es un rango opcional por ambos extremos.
type DateRange struct {
	Start *time.Time
	End   *time.Time
}

// AssetsChange resume la variación de uno o varios activos en un rango.
type AssetsChange struct {
	StartDate        *time.Time      `json:"startDate"`
	EndDate          *time.Time      `json:"endDate"`
	StartValue       decimal.Decimal `json:"startValue"`
	Value            decimal.Decimal `json:"value"`
	CurrencyChange   decimal.Decimal `json:"currencyChange"`
	PercentageChange decimal.Decimal `json:"percentageChange"`
}

type BrokerAssetWithChange struct {
	BrokerAsset
	AccountChange AssetsChange `json:"accountChange"`
}

type GeneralAssetWithChange struct {
	GeneralAsset
	AccountChange AssetsChange `json:"accountChange"`
}

// AssetWithHistory es la entrada de los cálculos de portafolio.
type AssetWithHistory struct {
	ID      string
	History []AssetValue
}

type PortfolioChange struct {
	AssetID       string          `json:"assetId"`
	PreviousValue decimal.Decimal `json:"previousValue"`
	NewValue      decimal.Decimal `json:"newValue"`
	Change        decimal.Decimal `json:"change"`
}

// PortfolioHistoryPoint es el valor total del portafolio en un día UTC.
type PortfolioHistoryPoint struct {
	Date    time.Time         `json:"date"`
	Value   decimal.Decimal   `json:"value"`
	Changes []PortfolioChange `json:"changes"`
}

// PortfolioValue agrega los textos formateados en la moneda del usuario.
type PortfolioValue struct {
	AssetsChange
	Currency string           `json:"currency"`
	Display  PortfolioDisplay `json:"display"`
}

type PortfolioDisplay struct {
	StartValue     string `json:"startValue"`
	Value          string `json:"value"`
	CurrencyChange string `json:"currencyChange"`
}
