package middleware

import (
	"errors"
	"net/http"

	"github.com/AgusMolinaCode/FIRE_Api.git/internal/services"
	"github.com/gin-gonic/gin"
)

func ExtractValues(c *gin.Context) {
	if aiService == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "OCR is not configured"})
		return
	}
	var req struct {
		ImageData     string   `json:"imageData"`
		ProviderNames []string `json:"providerNames"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, services.ErrInvalidImageFormat.Error())
		return
	}

	amounts, err := aiService.ExtractValues(c.Request.Context(), req.ImageData, req.ProviderNames)
	switch {
	case errors.Is(err, services.ErrInvalidImageFormat), errors.Is(err, services.ErrInvalidImageData):
		badRequest(c, err.Error())
	case err != nil:
		internalError(c, "Failed to process image", err)
	default:
		c.JSON(http.StatusOK, gin.H{"extractedValues": amounts})
	}
}
