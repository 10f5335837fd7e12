package services

import (
	"fmt"
	"strings"

	"github.com/AgusMolinaCode/FIRE_Api.git/internal/models"
	"github.com/charmbracelet/glamour"
)

// ReportRow es una línea de la tabla de activos del reporte.
type ReportRow struct {
	Name   string
	Kind   string // tipo de cuenta o "general"
	Change models.AssetsChange
}

// PortfolioReport arma el resumen del portafolio en markdown.
func PortfolioReport(owner string, overview models.PortfolioValue, rows []ReportRow) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# Portfolio report: %s\n\n", owner)
	if overview.StartDate != nil && overview.EndDate != nil {
		fmt.Fprintf(&b, "_%s to %s_\n\n", overview.StartDate.Format("2006-01-02"), overview.EndDate.Format("2006-01-02"))
	}

	fmt.Fprintf(&b, "- **Value:** %s\n", overview.Display.Value)
	fmt.Fprintf(&b, "- **Start value:** %s\n", overview.Display.StartValue)
	fmt.Fprintf(&b, "- **Change:** %s (%s%%)\n\n", overview.Display.CurrencyChange, overview.PercentageChange.StringFixed(2))

	if len(rows) == 0 {
		b.WriteString("No assets yet.\n")
		return b.String()
	}

	b.WriteString("| Asset | Type | Value | Change | % |\n")
	b.WriteString("|---|---|---:|---:|---:|\n")
	for _, r := range rows {
		fmt.Fprintf(&b, "| %s | %s | %s | %s | %s%% |\n",
			escapeCell(r.Name), r.Kind,
			FormatMoney(r.Change.Value, overview.Currency),
			FormatMoney(r.Change.CurrencyChange, overview.Currency),
			r.Change.PercentageChange.StringFixed(2))
	}
	return b.String()
}

func escapeCell(s string) string {
	return strings.ReplaceAll(s, "|", `\|`)
}

// RenderReport pinta el markdown para la terminal.
func RenderReport(markdown, style string) (string, error) {
	if style == "" {
		style = "dark"
	}
	return glamour.Render(markdown, style)
}
