package models

import "time"

// Security es un valor cotizado guardado en la caché local.
type Security struct {
	ID        string    `json:"id"`
	Symbol    string    `json:"symbol"`   // ej. "AAPL", "VWRL.L"
	Name      string    `json:"name"`
	Exchange  *string   `json:"exchange"` // ej. "NASDAQ", "LSE"
	Country   *string   `json:"country"`
	Currency  *string   `json:"currency"`
	Type      *string   `json:"type"`     // "Common Stock", "ETF", "Fund"
	ISIN      *string   `json:"isin"`
	CUSIP     *string   `json:"cusip"`
	FIGI      *string   `json:"figi"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// SecuritySearchResult es un resultado de búsqueda de la caché o de un proveedor.
type SecuritySearchResult struct {
	ID               string `json:"id,omitempty"`
	Symbol           string `json:"symbol"`
	Name             string `json:"name"`
	Exchange         string `json:"exchange,omitempty"`
	Country          string `json:"country,omitempty"`
	Currency         string `json:"currency,omitempty"`
	Type             string `json:"type,omitempty"`
	ISIN             string `json:"isin,omitempty"`
	CUSIP            string `json:"cusip,omitempty"`
	FIGI             string `json:"figi,omitempty"`
	FromCache        bool   `json:"fromCache"`
	SourceIdentifier string `json:"sourceIdentifier,omitempty"` // "eodhd", "alpha-vantage"
}

// SecurityHistory es una vela OHLC.
type SecurityHistory struct {
	Symbol string    `json:"symbol"`
	Date   time.Time `json:"date"`
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
}

// ExtractedAmount es un saldo leído de una captura de pantalla.
type ExtractedAmount struct {
	AccountName string  `json:"accountName"`
	Amount      float64 `json:"amount"`
	Confidence  float64 `json:"confidence"`
	AccountType string  `json:"accountType,omitempty"`
}
