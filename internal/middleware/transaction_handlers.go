package middleware

import (
	"net/http"

	"github.com/AgusMolinaCode/FIRE_Api.git/internal/models"
	"github.com/AgusMolinaCode/FIRE_Api.git/internal/repository"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

// recurringRequest es el cuerpo de un aporte recurrente.
type recurringRequest struct {
	Amount    *decimal.Decimal `json:"amount" binding:"required"`
	StartDate string           `json:"startDate" binding:"required"`
	Interval  string           `json:"interval" binding:"required"`
	IsActive  *bool            `json:"isActive"`
}

func (r recurringRequest) apply(c *gin.Context, rc *models.RecurringContribution) bool {
	if !r.Amount.IsPositive() {
		badRequest(c, "Amount must be greater than zero")
		return false
	}
	if !models.ValidInterval(r.Interval) {
		badRequest(c, "Interval must be weekly, biweekly or monthly")
		return false
	}
	start, err := repository.ParseTime(r.StartDate)
	if err != nil {
		badRequest(c, "Invalid startDate")
		return false
	}
	rc.Amount = *r.Amount
	rc.StartDate = start
	rc.Interval = r.Interval
	rc.IsActive = r.IsActive == nil || *r.IsActive
	return true
}

func GetRecurringContributions(c *gin.Context) {
	assetID, ok := ownedAsset(c, models.AssetTypeBroker)
	if !ok {
		return
	}
	contributions, err := recurringRepo.ListForAsset(c.Request.Context(), assetID)
	if err != nil {
		internalError(c, "Error loading recurring contributions", err)
		return
	}
	c.JSON(http.StatusOK, contributions)
}

func CreateRecurringContribution(c *gin.Context) {
	assetID, ok := ownedAsset(c, models.AssetTypeBroker)
	if !ok {
		return
	}
	var req recurringRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	rc := &models.RecurringContribution{AssetID: assetID}
	if !req.apply(c, rc) {
		return
	}
	if err := recurringRepo.Create(c.Request.Context(), rc); err != nil {
		internalError(c, "Error creating recurring contribution", err)
		return
	}
	c.JSON(http.StatusCreated, rc)
}

func UpdateRecurringContribution(c *gin.Context) {
	assetID, ok := ownedAsset(c, models.AssetTypeBroker)
	if !ok {
		return
	}
	var req recurringRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	ctx := c.Request.Context()
	rc, err := recurringRepo.Get(ctx, assetID, c.Param("contributionId"))
	if err != nil {
		respondError(c, err, "Recurring contribution not found", "Error loading recurring contribution")
		return
	}
	if !req.apply(c, rc) {
		return
	}
	if err := recurringRepo.Update(ctx, rc); err != nil {
		respondError(c, err, "Recurring contribution not found", "Error updating recurring contribution")
		return
	}
	c.JSON(http.StatusOK, rc)
}

func DeleteRecurringContribution(c *gin.Context) {
	assetID, ok := ownedAsset(c, models.AssetTypeBroker)
	if !ok {
		return
	}
	if err := recurringRepo.Delete(c.Request.Context(), assetID, c.Param("contributionId")); err != nil {
		respondError(c, err, "Recurring contribution not found", "Error deleting recurring contribution")
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}
