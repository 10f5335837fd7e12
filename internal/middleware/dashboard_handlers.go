package middleware

import (
	"net/http"

	"github.com/AgusMolinaCode/FIRE_Api.git/internal/services"
	"github.com/gin-gonic/gin"
)

// GetPortfolioValue devuelve la variación total del portafolio en el rango, con textos en la moneda.
func GetPortfolioValue(c *gin.Context) {
	r, ok := dateRange(c)
	if !ok {
		return
	}
	assets, err := assetRepo.AssetsWithHistory(c.Request.Context(), currentAccount(c), nil)
	if err != nil {
		internalError(c, "Error loading portfolio", err)
		return
	}
	c.JSON(http.StatusOK, services.WithDisplay(services.PortfolioOverview(assets, r), currency))
}

// GetPortfolioValueHistory devuelve el valor diario del portafolio con los cambios por activo.
func GetPortfolioValueHistory(c *gin.Context) {
	r, ok := dateRange(c)
	if !ok {
		return
	}
	assets, err := assetRepo.AssetsWithHistory(c.Request.Context(), currentAccount(c), nil)
	if err != nil {
		internalError(c, "Error loading portfolio", err)
		return
	}
	c.JSON(http.StatusOK, services.PortfolioValueHistory(assets, r))
}
