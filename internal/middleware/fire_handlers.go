package middleware

import (
	"errors"
	"net/http"

	"github.com/AgusMolinaCode/FIRE_Api.git/internal/models"
	"github.com/AgusMolinaCode/FIRE_Api.git/internal/repository"
	"github.com/AgusMolinaCode/FIRE_Api.git/internal/services"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

// fireRequest es un cambio parcial sobre la configuración FIRE.
type fireRequest struct {
	TargetRetirementAge  *int             `json:"targetRetirementAge"`
	AnnualIncomeGoal     *decimal.Decimal `json:"annualIncomeGoal"`
	ExpectedAnnualReturn *decimal.Decimal `json:"expectedAnnualReturn"`
	SafeWithdrawalRate   *decimal.Decimal `json:"safeWithdrawalRate"`
	MonthlyInvestment    *decimal.Decimal `json:"monthlyInvestment"`
	CurrentAge           *int             `json:"currentAge"`
	AdjustInflation      *bool            `json:"adjustInflation"`
}

func (r fireRequest) apply(c *gin.Context, f *models.FireSettings) bool {
	if r.TargetRetirementAge != nil {
		f.TargetRetirementAge = *r.TargetRetirementAge
	}
	if r.AnnualIncomeGoal != nil {
		f.AnnualIncomeGoal = *r.AnnualIncomeGoal
	}
	if r.ExpectedAnnualReturn != nil {
		f.ExpectedAnnualReturn = *r.ExpectedAnnualReturn
	}
	if r.SafeWithdrawalRate != nil {
		f.SafeWithdrawalRate = *r.SafeWithdrawalRate
	}
	if r.MonthlyInvestment != nil {
		f.MonthlyInvestment = *r.MonthlyInvestment
	}
	if r.CurrentAge != nil {
		f.CurrentAge = *r.CurrentAge
	}
	if r.AdjustInflation != nil {
		f.AdjustInflation = *r.AdjustInflation
	}

	switch {
	case f.CurrentAge <= 0 || f.TargetRetirementAge <= 0:
		badRequest(c, "Ages must be greater than zero")
	case !f.SafeWithdrawalRate.IsPositive():
		badRequest(c, "Safe withdrawal rate must be greater than zero")
	case f.AnnualIncomeGoal.IsNegative() || f.MonthlyInvestment.IsNegative():
		badRequest(c, "Amounts must not be negative")
	default:
		return true
	}
	return false
}

func ownFireSettings(c *gin.Context) (*models.FireSettings, bool) {
	f, err := fireRepo.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err, "FIRE settings not found", "Failed to get FIRE settings")
		return nil, false
	}
	if f.UserAccountID != currentAccount(c) {
		c.JSON(http.StatusNotFound, gin.H{"error": "FIRE settings not found"})
		return nil, false
	}
	return f, true
}

// userFireSettings resuelve /user/:userAccountId; solo la propia cuenta.
func userFireSettings(c *gin.Context) (*models.FireSettings, bool) {
	if c.Param("userAccountId") != currentAccount(c) {
		forbidden(c)
		return nil, false
	}
	f, err := fireRepo.GetByUser(c.Request.Context(), currentAccount(c))
	if err != nil {
		respondError(c, err, "FIRE settings not found", "Failed to get FIRE settings")
		return nil, false
	}
	return f, true
}

func GetFireSettings(c *gin.Context) {
	f, ok := ownFireSettings(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, f)
}

func GetUserFireSettings(c *gin.Context) {
	f, ok := userFireSettings(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, f)
}

func CreateFireSettings(c *gin.Context) {
	var req fireRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid FIRE settings data")
		return
	}
	f := models.DefaultFireSettings(currentAccount(c))
	if !req.apply(c, &f) {
		return
	}
	if err := fireRepo.Create(c.Request.Context(), &f); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			badRequest(c, "FIRE settings already exist for this account")
			return
		}
		internalError(c, "Failed to create FIRE settings", err)
		return
	}
	c.JSON(http.StatusCreated, f)
}

func updateFireSettings(c *gin.Context, f *models.FireSettings) {
	var req fireRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid FIRE settings data")
		return
	}
	if !req.apply(c, f) {
		return
	}
	if err := fireRepo.Update(c.Request.Context(), f); err != nil {
		respondError(c, err, "FIRE settings not found", "Failed to update FIRE settings")
		return
	}
	c.JSON(http.StatusOK, f)
}

func UpdateFireSettings(c *gin.Context) {
	f, ok := ownFireSettings(c)
	if !ok {
		return
	}
	updateFireSettings(c, f)
}

func UpdateUserFireSettings(c *gin.Context) {
	f, ok := userFireSettings(c)
	if !ok {
		return
	}
	updateFireSettings(c, f)
}

func DeleteFireSettings(c *gin.Context) {
	f, ok := ownFireSettings(c)
	if !ok {
		return
	}
	if err := fireRepo.Delete(c.Request.Context(), f.ID); err != nil {
		respondError(c, err, "FIRE settings not found", "Failed to delete FIRE settings")
		return
	}
	c.Status(http.StatusNoContent)
}

// GetFireProjection proyecta el portafolio actual con la configuración de la cuenta.
func GetFireProjection(c *gin.Context) {
	f, ok := userFireSettings(c)
	if !ok {
		return
	}
	total, err := assetRepo.TotalValue(c.Request.Context(), f.UserAccountID, nil)
	if err != nil {
		internalError(c, "Failed to load portfolio value", err)
		return
	}
	projection, err := services.ProjectFire(*f, total)
	if errors.Is(err, services.ErrInvalidWithdrawalRate) {
		badRequest(c, "Safe withdrawal rate must be greater than zero")
		return
	}
	if err != nil {
		internalError(c, "Failed to project FIRE settings", err)
		return
	}
	c.JSON(http.StatusOK, projection)
}
