package middleware

import (
	"context"
	"net/http"
	"slices"

	"github.com/AgusMolinaCode/FIRE_Api.git/internal/models"
	"github.com/AgusMolinaCode/FIRE_Api.git/internal/repository"
	"github.com/AgusMolinaCode/FIRE_Api.git/internal/services"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

var (
	assetRepo        *repository.AssetRepository
	recurringRepo    *repository.RecurringRepository
	milestoneChecker *services.MilestoneChecker
	currency         string
)

func InitAssets(assets *repository.AssetRepository, recurring *repository.RecurringRepository, checker *services.MilestoneChecker, defaultCurrency string) {
	assetRepo = assets
	recurringRepo = recurring
	milestoneChecker = checker
	currency = defaultCurrency
}

// ownedAsset comprueba que el activo de la ruta sea de la cuenta y del tipo pedido.
func ownedAsset(c *gin.Context, assetType string) (string, bool) {
	assetID := c.Param("assetId")
	found, err := assetRepo.FindAssetType(c.Request.Context(), currentAccount(c), assetID)
	if err != nil {
		respondError(c, err, "Asset not found", "Error loading asset")
		return "", false
	}
	if found != assetType {
		c.JSON(http.StatusNotFound, gin.H{"error": "Asset not found"})
		return "", false
	}
	return assetID, true
}

// checkMilestones completa los objetivos alcanzados tras escribir valores.
func checkMilestones(ctx context.Context, accountID string) {
	if milestoneChecker == nil {
		return
	}
	if _, err := milestoneChecker.Check(ctx, accountID); err != nil {
		zap.L().Warn("no se pudieron revisar los objetivos", zap.String("userAccountId", accountID), zap.Error(err))
	}
}

// changesByAsset calcula accountChange de cada activo para el rango.
func changesByAsset(ctx context.Context, ids []string, r models.DateRange) (map[string]models.AssetsChange, error) {
	histories, err := assetRepo.HistoryForAssets(ctx, repository.AssetValues, ids)
	if err != nil {
		return nil, err
	}
	out := make(map[string]models.AssetsChange, len(ids))
	for _, id := range ids {
		out[id] = services.AssetChangeForRange(histories[id], r)
	}
	return out, nil
}

func GetBrokerProviders(c *gin.Context) {
	providers, err := assetRepo.ListProviders(c.Request.Context())
	if err != nil {
		internalError(c, "Error loading broker providers", err)
		return
	}
	c.JSON(http.StatusOK, providers)
}

// Broker

type brokerAssetRequest struct {
	Name         string           `json:"name" binding:"required"`
	ProviderID   string           `json:"providerId" binding:"required"`
	AccountType  string           `json:"accountType" binding:"required"`
	CurrentValue *decimal.Decimal `json:"currentValue"`
}

// validBrokerRequest valida el tipo de cuenta contra el catálogo del proveedor.
func validBrokerRequest(c *gin.Context, req brokerAssetRequest) bool {
	if !models.ValidAccountType(req.AccountType) {
		badRequest(c, "Invalid account type")
		return false
	}
	provider, err := assetRepo.GetProvider(c.Request.Context(), req.ProviderID)
	if err != nil {
		respondError(c, err, "Broker provider not found", "Error loading broker provider")
		return false
	}
	if len(provider.SupportedAccountTypes) > 0 && !slices.Contains(provider.SupportedAccountTypes, req.AccountType) {
		badRequest(c, "Account type not supported by provider")
		return false
	}
	return true
}

func GetBrokerAssets(c *gin.Context) {
	q, ok := listQuery(c)
	if !ok {
		return
	}
	r, ok := dateRange(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()
	assets, err := assetRepo.ListBrokerAssets(ctx, currentAccount(c), q)
	if err != nil {
		respondError(c, err, "Asset not found", "Error loading assets")
		return
	}

	ids := make([]string, len(assets))
	for i, a := range assets {
		ids[i] = a.ID
	}
	changes, err := changesByAsset(ctx, ids, r)
	if err != nil {
		internalError(c, "Error loading asset history", err)
		return
	}

	out := make([]models.BrokerAssetWithChange, len(assets))
	for i, a := range assets {
		out[i] = models.BrokerAssetWithChange{BrokerAsset: a, AccountChange: changes[a.ID]}
	}
	c.JSON(http.StatusOK, out)
}

func CreateBrokerAsset(c *gin.Context) {
	var req brokerAssetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	if !validBrokerRequest(c, req) {
		return
	}
	asset := &models.BrokerAsset{
		Name:          req.Name,
		ProviderID:    req.ProviderID,
		AccountType:   req.AccountType,
		UserAccountID: currentAccount(c),
	}
	if req.CurrentValue != nil {
		asset.CurrentValue = *req.CurrentValue
	}
	if err := assetRepo.CreateBrokerAsset(c.Request.Context(), asset); err != nil {
		respondError(c, err, "Asset not found", "Error creating asset")
		return
	}
	checkMilestones(c.Request.Context(), asset.UserAccountID)
	c.JSON(http.StatusCreated, asset)
}

func GetBrokerAsset(c *gin.Context) {
	asset, err := assetRepo.GetBrokerAsset(c.Request.Context(), currentAccount(c), c.Param("assetId"))
	if err != nil {
		respondError(c, err, "Asset not found", "Error loading asset")
		return
	}
	c.JSON(http.StatusOK, asset)
}

func UpdateBrokerAsset(c *gin.Context) {
	var req brokerAssetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	if !validBrokerRequest(c, req) {
		return
	}
	ctx := c.Request.Context()
	asset := &models.BrokerAsset{
		ID:            c.Param("assetId"),
		Name:          req.Name,
		ProviderID:    req.ProviderID,
		AccountType:   req.AccountType,
		UserAccountID: currentAccount(c),
	}
	if err := assetRepo.UpdateBrokerAsset(ctx, asset); err != nil {
		respondError(c, err, "Asset not found", "Error updating asset")
		return
	}
	updated, err := assetRepo.GetBrokerAsset(ctx, asset.UserAccountID, asset.ID)
	if err != nil {
		respondError(c, err, "Asset not found", "Error loading asset")
		return
	}
	c.JSON(http.StatusOK, updated)
}

func DeleteBrokerAsset(c *gin.Context) {
	if err := assetRepo.DeleteBrokerAsset(c.Request.Context(), currentAccount(c), c.Param("assetId")); err != nil {
		respondError(c, err, "Asset not found", "Error deleting asset")
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func ConnectBrokerAPIKey(c *gin.Context) {
	var req struct {
		APIKey string `json:"apiKey" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	ctx := c.Request.Context()
	asset, err := assetRepo.GetBrokerAsset(ctx, currentAccount(c), c.Param("assetId"))
	if err != nil {
		respondError(c, err, "Asset not found", "Error loading asset")
		return
	}
	if asset.Provider == nil || !asset.Provider.SupportsAPIKey {
		badRequest(c, "Broker provider does not support API key connections")
		return
	}
	conn, err := assetRepo.ConnectAPIKey(ctx, asset.ID, req.APIKey)
	if err != nil {
		internalError(c, "Error connecting API key", err)
		return
	}
	c.JSON(http.StatusOK, conn)
}

// General

type generalAssetRequest struct {
	Name         string           `json:"name" binding:"required"`
	CurrentValue *decimal.Decimal `json:"currentValue"`
}

func GetGeneralAssets(c *gin.Context) {
	q, ok := listQuery(c)
	if !ok {
		return
	}
	r, ok := dateRange(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()
	assets, err := assetRepo.ListGeneralAssets(ctx, currentAccount(c), q)
	if err != nil {
		respondError(c, err, "Asset not found", "Error loading assets")
		return
	}

	ids := make([]string, len(assets))
	for i, a := range assets {
		ids[i] = a.ID
	}
	changes, err := changesByAsset(ctx, ids, r)
	if err != nil {
		internalError(c, "Error loading asset history", err)
		return
	}

	out := make([]models.GeneralAssetWithChange, len(assets))
	for i, a := range assets {
		out[i] = models.GeneralAssetWithChange{GeneralAsset: a, AccountChange: changes[a.ID]}
	}
	c.JSON(http.StatusOK, out)
}

func CreateGeneralAsset(c *gin.Context) {
	var req generalAssetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	asset := &models.GeneralAsset{Name: req.Name, UserAccountID: currentAccount(c)}
	if req.CurrentValue != nil {
		asset.CurrentValue = *req.CurrentValue
	}
	if err := assetRepo.CreateGeneralAsset(c.Request.Context(), asset); err != nil {
		respondError(c, err, "Asset not found", "Error creating asset")
		return
	}
	checkMilestones(c.Request.Context(), asset.UserAccountID)
	c.JSON(http.StatusCreated, asset)
}

func GetGeneralAsset(c *gin.Context) {
	asset, err := assetRepo.GetGeneralAsset(c.Request.Context(), currentAccount(c), c.Param("assetId"))
	if err != nil {
		respondError(c, err, "Asset not found", "Error loading asset")
		return
	}
	c.JSON(http.StatusOK, asset)
}

func UpdateGeneralAsset(c *gin.Context) {
	var req generalAssetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	ctx := c.Request.Context()
	asset := &models.GeneralAsset{ID: c.Param("assetId"), Name: req.Name, UserAccountID: currentAccount(c)}
	if err := assetRepo.UpdateGeneralAsset(ctx, asset); err != nil {
		respondError(c, err, "Asset not found", "Error updating asset")
		return
	}
	updated, err := assetRepo.GetGeneralAsset(ctx, asset.UserAccountID, asset.ID)
	if err != nil {
		respondError(c, err, "Asset not found", "Error loading asset")
		return
	}
	c.JSON(http.StatusOK, updated)
}

func DeleteGeneralAsset(c *gin.Context) {
	if err := assetRepo.DeleteGeneralAsset(c.Request.Context(), currentAccount(c), c.Param("assetId")); err != nil {
		respondError(c, err, "Asset not found", "Error deleting asset")
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}
