package middleware

import (
	"errors"
	"net/http"
	"time"

	"github.com/AgusMolinaCode/FIRE_Api.git/internal/models"
	"github.com/AgusMolinaCode/FIRE_Api.git/internal/repository"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// internalError registra el detalle y responde un mensaje genérico.
func internalError(c *gin.Context, message string, err error) {
	zap.L().Error(message,
		zap.String("method", c.Request.Method),
		zap.String("path", c.FullPath()),
		zap.Error(err),
	)
	c.JSON(http.StatusInternalServerError, gin.H{"error": message})
}

// respondError traduce los errores del repositorio a códigos HTTP.
func respondError(c *gin.Context, err error, notFound, fallback string) {
	switch {
	case errors.Is(err, repository.ErrInvalidQuery):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, repository.ErrProviderNotFound):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Broker provider not found"})
	case errors.Is(err, repository.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": notFound})
	case errors.Is(err, repository.ErrConflict):
		c.JSON(http.StatusConflict, gin.H{"error": "Resource already exists"})
	default:
		internalError(c, fallback, err)
	}
}

func badRequest(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, gin.H{"error": message})
}

// listQuery interpreta los parámetros de paginación y filtros; responde 400 si no son válidos.
func listQuery(c *gin.Context) (repository.ListQuery, bool) {
	q, err := repository.ParseListQuery(c.Request.URL.Query())
	if err != nil {
		badRequest(c, err.Error())
		return q, false
	}
	return q, true
}

// dateRange lee ?start=&end= (RFC3339 o YYYY-MM-DD). end=YYYY-MM-DD incluye todo ese día.
func dateRange(c *gin.Context) (models.DateRange, bool) {
	var r models.DateRange
	if raw := c.Query("start"); raw != "" {
		t, err := repository.ParseTime(raw)
		if err != nil {
			badRequest(c, "Invalid start date")
			return r, false
		}
		r.Start = &t
	}
	if raw := c.Query("end"); raw != "" {
		t, err := repository.ParseTime(raw)
		if err != nil {
			badRequest(c, "Invalid end date")
			return r, false
		}
		if len(raw) == len("2006-01-02") {
			t = t.Add(24*time.Hour - time.Nanosecond)
		}
		r.End = &t
	}
	if r.Start != nil && r.End != nil && r.End.Before(*r.Start) {
		badRequest(c, "end must not be before start")
		return r, false
	}
	return r, true
}
