package services

import (
	"testing"

	"github.com/AgusMolinaCode/FIRE_Api.git/internal/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPortfolioReport(t *testing.T) {
	overview := WithDisplay(models.AssetsChange{
		StartValue:       decimal.NewFromInt(200),
		Value:            decimal.NewFromInt(250),
		CurrencyChange:   decimal.NewFromInt(50),
		PercentageChange: decimal.NewFromInt(25),
	}, "GBP")
	rows := []ReportRow{{
		Name: "Stocks | Shares ISA",
		Kind: "ISA",
		Change: models.AssetsChange{
			Value:            decimal.NewFromInt(250),
			CurrencyChange:   decimal.NewFromInt(50),
			PercentageChange: decimal.NewFromInt(25),
		},
	}}

	md := PortfolioReport("saver@example.com", overview, rows)
	assert.Contains(t, md, "# Portfolio report: saver@example.com")
	assert.Contains(t, md, "- **Value:** £250.00")
	assert.Contains(t, md, "(25.00%)")
	assert.Contains(t, md, `| Stocks \| Shares ISA | ISA | £250.00 | £50.00 | 25.00% |`)

	out, err := RenderReport(md, "notty")
	require.NoError(t, err)
	assert.Contains(t, out, "£250.00")
}

func TestPortfolioReportWithoutAssets(t *testing.T) {
	md := PortfolioReport("x", WithDisplay(models.AssetsChange{}, "GBP"), nil)
	assert.Contains(t, md, "No assets yet.")
}
