package middleware

import (
	"net/http"
	"strings"
	"time"

	"github.com/AgusMolinaCode/FIRE_Api.git/internal/models"
	"github.com/AgusMolinaCode/FIRE_Api.git/internal/repository"
	"github.com/AgusMolinaCode/FIRE_Api.git/internal/services"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

const (
	minSearchLength      = 2
	defaultHistoryWindow = 30 * 24 * time.Hour
)

var (
	securityRepo    *repository.SecurityRepository
	holdingsRepo    *repository.HoldingsRepository
	securityService *services.SecuritiesService
)

func InitSecurities(securities *repository.SecurityRepository, holdings *repository.HoldingsRepository, svc *services.SecuritiesService) {
	securityRepo = securities
	holdingsRepo = holdings
	securityService = svc
}

type securityRequest struct {
	Symbol   string  `json:"symbol" binding:"required"`
	Name     string  `json:"name" binding:"required"`
	Exchange *string `json:"exchange"`
	Country  *string `json:"country"`
	Currency *string `json:"currency"`
	Type     *string `json:"type"`
	ISIN     *string `json:"isin"`
	CUSIP    *string `json:"cusip"`
	FIGI     *string `json:"figi"`
}

func (r securityRequest) security() *models.Security {
	return &models.Security{
		Symbol:   strings.ToUpper(strings.TrimSpace(r.Symbol)),
		Name:     r.Name,
		Exchange: r.Exchange,
		Country:  r.Country,
		Currency: r.Currency,
		Type:     r.Type,
		ISIN:     r.ISIN,
		CUSIP:    r.CUSIP,
		FIGI:     r.FIGI,
	}
}

func GetSecurities(c *gin.Context) {
	q, ok := listQuery(c)
	if !ok {
		return
	}
	securities, err := securityRepo.List(c.Request.Context(), q)
	if err != nil {
		respondError(c, err, "Security not found", "Error loading securities")
		return
	}
	c.JSON(http.StatusOK, securities)
}

func GetSecurity(c *gin.Context) {
	sec, err := securityRepo.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err, "Security not found", "Error loading security")
		return
	}
	c.JSON(http.StatusOK, sec)
}

// CreateSecurity devuelve el existente (200) si el símbolo ya está guardado.
func CreateSecurity(c *gin.Context) {
	var req securityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	sec, created, err := securityRepo.CreateOrFind(c.Request.Context(), req.security())
	if err != nil {
		internalError(c, "Error creating security", err)
		return
	}
	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	c.JSON(status, sec)
}

func UpdateSecurity(c *gin.Context) {
	var req securityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	ctx := c.Request.Context()
	sec := req.security()
	sec.ID = c.Param("id")
	if err := securityRepo.Update(ctx, sec); err != nil {
		respondError(c, err, "Security not found", "Error updating security")
		return
	}
	updated, err := securityRepo.Get(ctx, sec.ID)
	if err != nil {
		respondError(c, err, "Security not found", "Error loading security")
		return
	}
	c.JSON(http.StatusOK, updated)
}

func DeleteSecurity(c *gin.Context) {
	if err := securityRepo.Delete(c.Request.Context(), c.Param("id")); err != nil {
		respondError(c, err, "Security not found", "Error deleting security")
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// SearchSecurities acepta varios identificadores separados por comas.
func SearchSecurities(c *gin.Context) {
	raw := strings.TrimSpace(c.Query("q"))
	if len(raw) < minSearchLength {
		badRequest(c, "Search query must be at least 2 characters")
		return
	}
	var identifiers []string
	for _, id := range strings.Split(raw, ",") {
		if id = strings.TrimSpace(id); id != "" {
			identifiers = append(identifiers, id)
		}
	}

	results, err := securityService.FindSecurities(c.Request.Context(), identifiers)
	if err != nil {
		internalError(c, "Error searching securities", err)
		return
	}
	c.JSON(http.StatusOK, results)
}

func GetSearchStats(c *gin.Context) {
	c.JSON(http.StatusOK, securityService.Limiter().Stats())
}

func ClearSearchHistory(c *gin.Context) {
	securityService.Limiter().Clear(c.Query("identifier"))
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// GetSecurityHistory devuelve velas diarias; con ?calculated=true las escala por las acciones del usuario.
func GetSecurityHistory(c *gin.Context) {
	r, ok := dateRange(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()
	sec, err := securityRepo.Get(ctx, c.Param("id"))
	if err != nil {
		respondError(c, err, "Security not found", "Error loading security")
		return
	}

	end := time.Now().UTC()
	if r.End != nil {
		end = *r.End
	}
	start := end.Add(-defaultHistoryWindow)
	if r.Start != nil {
		start = *r.Start
	}

	var history []models.SecurityHistory
	if c.Query("calculated") == "true" {
		shares, err := holdingsRepo.SharesBySymbol(ctx, currentAccount(c), sec.Symbol)
		if err != nil {
			internalError(c, "Error loading holdings", err)
			return
		}
		history, err = securityService.CalculatedHistory(ctx, sec.Symbol, shares, start, end)
		if err != nil {
			internalError(c, "Error loading security history", err)
			return
		}
	} else {
		history, err = securityService.HistoryForRange(ctx, sec.Symbol, start, end)
		if err != nil {
			internalError(c, "Error loading security history", err)
			return
		}
	}
	if history == nil {
		history = []models.SecurityHistory{}
	}
	c.JSON(http.StatusOK, history)
}

// GetSecurityIntraday devuelve las velas intradía de ?date (hoy por defecto) con ?interval (5min).
func GetSecurityIntraday(c *gin.Context) {
	ctx := c.Request.Context()
	sec, err := securityRepo.Get(ctx, c.Param("id"))
	if err != nil {
		respondError(c, err, "Security not found", "Error loading security")
		return
	}
	date := time.Now().UTC()
	if raw := c.Query("date"); raw != "" {
		if date, err = repository.ParseTime(raw); err != nil {
			badRequest(c, "Invalid date")
			return
		}
	}
	interval := c.DefaultQuery("interval", "5min")

	history, err := securityService.IntradayForDate(ctx, sec.Symbol, date, interval)
	if err != nil {
		internalError(c, "Error loading security history", err)
		return
	}
	if history == nil {
		history = []models.SecurityHistory{}
	}
	c.JSON(http.StatusOK, history)
}

// Tenencias de una cuenta de broker

func GetAssetHoldings(c *gin.Context) {
	assetID, ok := ownedAsset(c, models.AssetTypeBroker)
	if !ok {
		return
	}
	holdings, err := holdingsRepo.GetHoldings(c.Request.Context(), assetID)
	if err != nil {
		internalError(c, "Error loading holdings", err)
		return
	}
	c.JSON(http.StatusOK, holdings)
}

func AddAssetHolding(c *gin.Context) {
	assetID, ok := ownedAsset(c, models.AssetTypeBroker)
	if !ok {
		return
	}
	var req struct {
		SecurityID string           `json:"securityId" binding:"required"`
		Shares     *decimal.Decimal `json:"shares" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	if req.Shares.IsNegative() {
		badRequest(c, "Shares must not be negative")
		return
	}

	ctx := c.Request.Context()
	if _, err := securityRepo.Get(ctx, req.SecurityID); err != nil {
		respondError(c, err, "Security not found", "Error loading security")
		return
	}
	if err := holdingsRepo.UpsertHolding(ctx, assetID, req.SecurityID, *req.Shares); err != nil {
		internalError(c, "Error saving holding", err)
		return
	}
	holdings, err := holdingsRepo.GetHoldings(ctx, assetID)
	if err != nil {
		internalError(c, "Error loading holdings", err)
		return
	}
	c.JSON(http.StatusOK, holdings)
}

func DeleteAssetHolding(c *gin.Context) {
	assetID, ok := ownedAsset(c, models.AssetTypeBroker)
	if !ok {
		return
	}
	if err := holdingsRepo.DeleteHolding(c.Request.Context(), assetID, c.Param("securityId")); err != nil {
		respondError(c, err, "Holding not found", "Error deleting holding")
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}
