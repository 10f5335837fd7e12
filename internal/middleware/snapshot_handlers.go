package middleware

import (
	"context"
	"net/http"
	"time"

	"github.com/AgusMolinaCode/FIRE_Api.git/internal/models"
	"github.com/AgusMolinaCode/FIRE_Api.git/internal/repository"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

// historyRequest es el cuerpo de un snapshot de valor o de un aporte.
type historyRequest struct {
	Value      *decimal.Decimal `json:"value" binding:"required"`
	RecordedAt string           `json:"recordedAt"` // RFC3339 o YYYY-MM-DD; vacío = ahora
}

func (r historyRequest) toValue(c *gin.Context, assetID string) (*models.AssetValue, bool) {
	at := time.Now().UTC()
	if r.RecordedAt != "" {
		t, err := repository.ParseTime(r.RecordedAt)
		if err != nil {
			badRequest(c, "Invalid recordedAt date")
			return nil, false
		}
		at = t
	}
	return &models.AssetValue{AssetID: assetID, Value: *r.Value, RecordedAt: at}, true
}

func historyNotFound(kind repository.HistoryKind) string {
	if kind == repository.AssetContributions {
		return "Contribution not found"
	}
	return "History entry not found"
}

// recordValue guarda un snapshot de valor y revisa los objetivos. Lo usan la API y los webhooks.
func recordValue(ctx context.Context, accountID, assetType string, v *models.AssetValue) error {
	if err := assetRepo.AddHistory(ctx, repository.AssetValues, assetType, v); err != nil {
		return err
	}
	checkMilestones(ctx, accountID)
	return nil
}

// ListAssetHistory lista los snapshots o aportes de un activo.
func ListAssetHistory(kind repository.HistoryKind, assetType string) gin.HandlerFunc {
	return func(c *gin.Context) {
		assetID, ok := ownedAsset(c, assetType)
		if !ok {
			return
		}
		q, ok := listQuery(c)
		if !ok {
			return
		}
		values, err := assetRepo.ListHistory(c.Request.Context(), kind, assetID, q)
		if err != nil {
			respondError(c, err, historyNotFound(kind), "Error loading history")
			return
		}
		c.JSON(http.StatusOK, values)
	}
}

func CreateAssetHistory(kind repository.HistoryKind, assetType string) gin.HandlerFunc {
	return func(c *gin.Context) {
		assetID, ok := ownedAsset(c, assetType)
		if !ok {
			return
		}
		var req historyRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}
		v, ok := req.toValue(c, assetID)
		if !ok {
			return
		}

		ctx := c.Request.Context()
		var err error
		if kind == repository.AssetValues {
			err = recordValue(ctx, currentAccount(c), assetType, v)
		} else {
			err = assetRepo.AddHistory(ctx, kind, assetType, v)
		}
		if err != nil {
			internalError(c, "Error saving history", err)
			return
		}
		c.JSON(http.StatusCreated, v)
	}
}

func UpdateAssetHistory(kind repository.HistoryKind, assetType, idParam string) gin.HandlerFunc {
	return func(c *gin.Context) {
		assetID, ok := ownedAsset(c, assetType)
		if !ok {
			return
		}
		var req historyRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}
		v, ok := req.toValue(c, assetID)
		if !ok {
			return
		}
		v.ID = c.Param(idParam)

		ctx := c.Request.Context()
		if err := assetRepo.UpdateHistory(ctx, kind, assetType, v); err != nil {
			respondError(c, err, historyNotFound(kind), "Error updating history")
			return
		}
		if kind == repository.AssetValues {
			checkMilestones(ctx, currentAccount(c))
		}
		updated, err := assetRepo.GetHistory(ctx, kind, assetID, v.ID)
		if err != nil {
			respondError(c, err, historyNotFound(kind), "Error loading history")
			return
		}
		c.JSON(http.StatusOK, updated)
	}
}

func DeleteAssetHistory(kind repository.HistoryKind, assetType, idParam string) gin.HandlerFunc {
	return func(c *gin.Context) {
		assetID, ok := ownedAsset(c, assetType)
		if !ok {
			return
		}
		if err := assetRepo.DeleteHistory(c.Request.Context(), kind, assetType, assetID, c.Param(idParam)); err != nil {
			respondError(c, err, historyNotFound(kind), "Error deleting history")
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true})
	}
}
