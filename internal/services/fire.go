package services

import (
	"errors"
	"math"

	"github.com/AgusMolinaCode/FIRE_Api.git/internal/models"
	"github.com/shopspring/decimal"
)

const (
	fireInflationRate = 2.5
	fireMaxMonths     = 100 * 12
)

var ErrInvalidWithdrawalRate = errors.New("safe withdrawal rate must be greater than zero")

// ProjectFire calcula cuántos años faltan para llegar al FIRE number aportando todos los meses.
func ProjectFire(s models.FireSettings, currentValue decimal.Decimal) (models.FireProjection, error) {
	if !s.SafeWithdrawalRate.IsPositive() {
		return models.FireProjection{}, ErrInvalidWithdrawalRate
	}

	hundred := decimal.NewFromInt(100)
	fireNumber := s.AnnualIncomeGoal.Div(s.SafeWithdrawalRate.Div(hundred)).Round(2)

	realReturn := s.ExpectedAnnualReturn
	if s.AdjustInflation {
		realReturn = realReturn.Sub(decimal.NewFromFloat(fireInflationRate))
	}

	p := models.FireProjection{
		FireNumber:       fireNumber,
		CurrentValue:     currentValue,
		RealAnnualReturn: realReturn,
	}
	if fireNumber.IsPositive() {
		p.Progress = currentValue.Div(fireNumber).Mul(hundred).Round(2)
	}

	monthlyGrowth := decimal.NewFromInt(1).Add(realReturn.Div(hundred).Div(decimal.NewFromInt(12)))
	value := currentValue
	months := 0
	for value.LessThan(fireNumber) {
		if months == fireMaxMonths {
			// No se alcanza en 100 años
			return p, nil
		}
		value = value.Mul(monthlyGrowth).Add(s.MonthlyInvestment)
		months++
	}

	years := math.Round(float64(months)/12*100) / 100
	age := float64(s.CurrentAge) + years
	p.YearsToFire = &years
	p.FireAge = &age
	p.OnTrack = age <= float64(s.TargetRetirementAge)
	return p, nil
}
