package services

import (
	"github.com/AgusMolinaCode/FIRE_Api.git/internal/models"
	"github.com/Rhymond/go-money"
	"github.com/shopspring/decimal"
)

const fallbackCurrency = "GBP"

// FormatMoney muestra un importe con el símbolo y los decimales de la moneda, ej. "£1,234.50".
func FormatMoney(amount decimal.Decimal, code string) string {
	cur := money.GetCurrency(code)
	if cur == nil {
		code = fallbackCurrency
		cur = money.GetCurrency(code)
	}
	minor := amount.Shift(int32(cur.Fraction)).Round(0)
	return money.New(minor.IntPart(), code).Display()
}

// WithDisplay agrega los textos formateados a una variación del portafolio.
func WithDisplay(change models.AssetsChange, currency string) models.PortfolioValue {
	return models.PortfolioValue{
		AssetsChange: change,
		Currency:     currency,
		Display: models.PortfolioDisplay{
			StartValue:     FormatMoney(change.StartValue, currency),
			Value:          FormatMoney(change.Value, currency),
			CurrencyChange: FormatMoney(change.CurrencyChange, currency),
		},
	}
}
