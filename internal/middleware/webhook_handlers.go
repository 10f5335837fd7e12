package middleware

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/AgusMolinaCode/FIRE_Api.git/internal/models"
	"github.com/AgusMolinaCode/FIRE_Api.git/internal/repository"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	svix "github.com/svix/svix-webhooks/go"
	"go.uber.org/zap"
)

var webhookVerifier *svix.Webhook

// InitWebhooks prepara la verificación de firmas; sin secreto los webhooks quedan deshabilitados.
func InitWebhooks(secret string) error {
	webhookVerifier = nil
	if secret == "" {
		return nil
	}
	wh, err := svix.NewWebhook(secret)
	if err != nil {
		return fmt.Errorf("creating webhook verifier: %w", err)
	}
	webhookVerifier = wh
	return nil
}

// assetValueEvent es el saldo que envía una integración de broker.
type assetValueEvent struct {
	AssetID       string           `json:"assetId"`
	UserAccountID string           `json:"userAccountId"`
	Value         *decimal.Decimal `json:"value"`
	RecordedAt    string           `json:"recordedAt"`
}

// AssetValueWebhook registra un snapshot firmado con svix.
func AssetValueWebhook(c *gin.Context) {
	if webhookVerifier == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Webhook secret not configured"})
		return
	}

	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		badRequest(c, "Could not read request body")
		return
	}
	if err := webhookVerifier.Verify(body, c.Request.Header); err != nil {
		zap.L().Warn("firma de webhook inválida", zap.Error(err))
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid webhook signature"})
		return
	}

	var event assetValueEvent
	if err := json.Unmarshal(body, &event); err != nil {
		badRequest(c, "Invalid JSON payload")
		return
	}
	if event.AssetID == "" || event.UserAccountID == "" || event.Value == nil {
		badRequest(c, "assetId, userAccountId and value are required")
		return
	}
	at := time.Now().UTC()
	if event.RecordedAt != "" {
		if at, err = repository.ParseTime(event.RecordedAt); err != nil {
			badRequest(c, "Invalid recordedAt date")
			return
		}
	}

	ctx := c.Request.Context()
	assetType, err := assetRepo.FindAssetType(ctx, event.UserAccountID, event.AssetID)
	if err != nil {
		respondError(c, err, "Asset not found", "Error loading asset")
		return
	}
	v := &models.AssetValue{AssetID: event.AssetID, Value: *event.Value, RecordedAt: at}
	if err := recordValue(ctx, event.UserAccountID, assetType, v); err != nil {
		internalError(c, "Error saving history", err)
		return
	}
	zap.L().Info("snapshot recibido por webhook",
		zap.String("assetId", v.AssetID),
		zap.String("msgId", c.GetHeader("svix-id")),
	)
	c.JSON(http.StatusCreated, v)
}
