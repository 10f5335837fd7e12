package middleware

import (
	"net/http"

	"github.com/AgusMolinaCode/FIRE_Api.git/internal/models"
	"github.com/AgusMolinaCode/FIRE_Api.git/internal/repository"
	"github.com/AgusMolinaCode/FIRE_Api.git/internal/services"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

var (
	milestoneRepo *repository.MilestoneRepository
	fireRepo      *repository.FireRepository
	aiService     *services.AIService
)

func InitPlanning(milestones *repository.MilestoneRepository, fire *repository.FireRepository, ai *services.AIService) {
	milestoneRepo = milestones
	fireRepo = fire
	aiService = ai
}

type milestoneRequest struct {
	Name        *string          `json:"name"`
	TargetValue *decimal.Decimal `json:"targetValue"`
	AccountType *string          `json:"accountType"`
	IsCompleted *bool            `json:"isCompleted"`
}

func (r milestoneRequest) apply(c *gin.Context, m *models.Milestone) bool {
	if r.Name != nil {
		if *r.Name == "" {
			badRequest(c, "Invalid milestone data")
			return false
		}
		m.Name = *r.Name
	}
	if r.TargetValue != nil {
		if !r.TargetValue.IsPositive() {
			badRequest(c, "Target value must be greater than zero")
			return false
		}
		m.TargetValue = *r.TargetValue
	}
	if r.AccountType != nil {
		if *r.AccountType == "" {
			m.AccountType = nil
		} else if !models.ValidAccountType(*r.AccountType) {
			badRequest(c, "Invalid account type")
			return false
		} else {
			m.AccountType = r.AccountType
		}
	}
	if r.IsCompleted != nil {
		m.IsCompleted = *r.IsCompleted
	}
	return true
}

// ownMilestone carga el objetivo; los de otra cuenta responden 404.
func ownMilestone(c *gin.Context) (*models.Milestone, bool) {
	m, err := milestoneRepo.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err, "Milestone not found", "Failed to get milestone")
		return nil, false
	}
	if m.UserAccountID != currentAccount(c) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Milestone not found"})
		return nil, false
	}
	return m, true
}

func GetUserMilestones(c *gin.Context) {
	if c.Param("userId") != currentAccount(c) {
		forbidden(c)
		return
	}
	milestones, err := milestoneRepo.ListByUser(c.Request.Context(), currentAccount(c))
	if err != nil {
		internalError(c, "Failed to get milestones", err)
		return
	}
	c.JSON(http.StatusOK, milestones)
}

func GetMilestone(c *gin.Context) {
	m, ok := ownMilestone(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, m)
}

func CreateMilestone(c *gin.Context) {
	var req milestoneRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid milestone data")
		return
	}
	if req.Name == nil || req.TargetValue == nil {
		badRequest(c, "Invalid milestone data")
		return
	}
	m := &models.Milestone{UserAccountID: currentAccount(c)}
	if !req.apply(c, m) {
		return
	}

	ctx := c.Request.Context()
	if err := milestoneRepo.Create(ctx, m); err != nil {
		internalError(c, "Failed to create milestone", err)
		return
	}
	// Puede que el portafolio ya supere el objetivo
	checkMilestones(ctx, m.UserAccountID)
	if fresh, err := milestoneRepo.Get(ctx, m.ID); err == nil {
		m = fresh
	}
	c.JSON(http.StatusCreated, m)
}

func UpdateMilestone(c *gin.Context) {
	var req milestoneRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid milestone data")
		return
	}
	m, ok := ownMilestone(c)
	if !ok {
		return
	}
	if !req.apply(c, m) {
		return
	}
	if err := milestoneRepo.Update(c.Request.Context(), m); err != nil {
		respondError(c, err, "Milestone not found", "Failed to update milestone")
		return
	}
	c.JSON(http.StatusOK, m)
}

func DeleteMilestone(c *gin.Context) {
	m, ok := ownMilestone(c)
	if !ok {
		return
	}
	if err := milestoneRepo.Delete(c.Request.Context(), m.ID); err != nil {
		respondError(c, err, "Milestone not found", "Failed to delete milestone")
		return
	}
	c.Status(http.StatusNoContent)
}

func UpdateMilestoneCompletion(c *gin.Context) {
	var req struct {
		IsCompleted *bool `json:"isCompleted"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || req.IsCompleted == nil {
		badRequest(c, "isCompleted must be a boolean")
		return
	}
	m, ok := ownMilestone(c)
	if !ok {
		return
	}
	if err := milestoneRepo.SetCompleted(c.Request.Context(), m.ID, *req.IsCompleted); err != nil {
		respondError(c, err, "Milestone not found", "Failed to update milestone completion")
		return
	}
	m.IsCompleted = *req.IsCompleted
	c.JSON(http.StatusOK, m)
}

// SuggestMilestones pide al modelo objetivos nuevos a partir del portafolio actual.
func SuggestMilestones(c *gin.Context) {
	if aiService == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "AI suggestions are not configured"})
		return
	}
	ctx := c.Request.Context()
	accountID := currentAccount(c)

	assets, err := assetRepo.ListBrokerAssets(ctx, accountID, repository.ListQuery{Limit: 100})
	if err != nil {
		internalError(c, "Failed to load assets", err)
		return
	}
	total, err := assetRepo.TotalValue(ctx, accountID, nil)
	if err != nil {
		internalError(c, "Failed to load portfolio value", err)
		return
	}
	existing, err := milestoneRepo.ListByUser(ctx, accountID)
	if err != nil {
		internalError(c, "Failed to get milestones", err)
		return
	}

	suggestions, err := aiService.SuggestMilestones(ctx, assets, total, existing, currency)
	if err != nil {
		internalError(c, "Failed to generate milestone suggestions", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"suggestions": suggestions})
}
