package middleware

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// ProcessRecurringContributions registra los aportes vencidos a pedido de un servicio (X-API-Key).
func ProcessRecurringContributions(c *gin.Context) {
	processed, err := recurringProcessor.ProcessRecurringContributions(c.Request.Context(), time.Now().UTC())
	if err != nil {
		internalError(c, "Error processing recurring contributions", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"processed": processed})
}

// GetRecurringStatus indica cuándo corrió el worker por última vez.
func GetRecurringStatus(c *gin.Context) {
	var lastRun *time.Time
	if t := recurringProcessor.LastRun(); !t.IsZero() {
		lastRun = &t
	}
	c.JSON(http.StatusOK, gin.H{"lastRun": lastRun})
}
