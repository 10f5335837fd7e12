package routes

import (
	"net/http"

	"github.com/AgusMolinaCode/FIRE_Api.git/internal/middleware"
	"github.com/AgusMolinaCode/FIRE_Api.git/internal/models"
	"github.com/AgusMolinaCode/FIRE_Api.git/internal/repository"
	"github.com/gin-gonic/gin"
)

// RegisterRoutes monta la API bajo /api. Los repositorios y servicios se inicializan antes con middleware.Init*.
func RegisterRoutes(router *gin.Engine) {
	api := router.Group("/api")
	requireUser := middleware.RequireUser()

	authGroup := api.Group("/auth")
	{
		authGroup.POST("/login", middleware.Login)
		authGroup.POST("/register", middleware.Register)
		authGroup.POST("/logout", requireUser, middleware.Logout)
		authGroup.GET("/me", requireUser, middleware.Me)
		authGroup.POST("/revoke-family", requireUser, middleware.RevokeFamily)
	}

	users := api.Group("/users")
	users.POST("/reset-password", middleware.ResetPassword)
	users.Use(requireUser)
	{
		users.POST("/core", middleware.CreateCoreUser)
		users.GET("/core/:id", middleware.GetCoreUser)
		users.PATCH("/core/:id", middleware.UpdateCoreUser)
		users.DELETE("/core/:id", middleware.DeleteCoreUser)

		users.POST("/account", middleware.CreateAccount)
		users.GET("/account/:id", middleware.GetAccount)
		users.PATCH("/account/:id", middleware.UpdateAccount)
		users.DELETE("/account/:id", middleware.DeleteAccount)

		users.POST("/profile", middleware.CreateProfile)
		users.GET("/profile/:id", middleware.GetProfile)
		users.PATCH("/profile/:id", middleware.UpdateProfile)
		users.DELETE("/profile/:id", middleware.DeleteProfile)

		users.POST("/verify-email", middleware.VerifyEmailToken)
		users.POST("/request-password-reset", middleware.RequestResetPassword)
		users.POST("/change-password", middleware.ChangePassword)
	}

	verification := api.Group("/verification", requireUser)
	{
		verification.POST("/verify-email", middleware.VerifyEmail)
		verification.POST("/verify-phone", middleware.VerifyPhone)
		verification.POST("/resend-email-verification", middleware.ResendEmailVerification)
		verification.POST("/resend-phone-verification", middleware.ResendPhoneVerification)
	}

	assets := api.Group("/assets")
	{
		assets.POST("/recurring-contributions/process", middleware.RequireAPIKey(), middleware.ProcessRecurringContributions)
		assets.GET("/recurring-contributions/status", middleware.RequireAPIKey(), middleware.GetRecurringStatus)
	}
	assets = assets.Group("", requireUser)
	{
		assets.GET("/broker-providers", middleware.GetBrokerProviders)
		assets.GET("/portfolio-value", middleware.GetPortfolioValue)
		assets.GET("/portfolio-value/history", middleware.GetPortfolioValueHistory)

		broker := models.AssetTypeBroker
		assets.GET("/broker", middleware.GetBrokerAssets)
		assets.POST("/broker", middleware.CreateBrokerAsset)
		assets.GET("/broker/:assetId", middleware.GetBrokerAsset)
		assets.PUT("/broker/:assetId", middleware.UpdateBrokerAsset)
		assets.DELETE("/broker/:assetId", middleware.DeleteBrokerAsset)
		assets.POST("/broker/:assetId/connect", middleware.ConnectBrokerAPIKey)

		assets.GET("/broker/:assetId/history", middleware.ListAssetHistory(repository.AssetValues, broker))
		assets.POST("/broker/:assetId/history", middleware.CreateAssetHistory(repository.AssetValues, broker))
		assets.PUT("/broker/:assetId/history/:historyId", middleware.UpdateAssetHistory(repository.AssetValues, broker, "historyId"))
		assets.DELETE("/broker/:assetId/history/:historyId", middleware.DeleteAssetHistory(repository.AssetValues, broker, "historyId"))

		assets.GET("/broker/:assetId/contributions", middleware.ListAssetHistory(repository.AssetContributions, broker))
		assets.POST("/broker/:assetId/contributions", middleware.CreateAssetHistory(repository.AssetContributions, broker))
		assets.PUT("/broker/:assetId/contributions/:contributionId", middleware.UpdateAssetHistory(repository.AssetContributions, broker, "contributionId"))
		assets.DELETE("/broker/:assetId/contributions/:contributionId", middleware.DeleteAssetHistory(repository.AssetContributions, broker, "contributionId"))

		assets.GET("/broker/:assetId/securities", middleware.GetAssetHoldings)
		assets.POST("/broker/:assetId/securities", middleware.AddAssetHolding)
		assets.DELETE("/broker/:assetId/securities/:securityId", middleware.DeleteAssetHolding)

		assets.GET("/broker/:assetId/recurring-contributions", middleware.GetRecurringContributions)
		assets.POST("/broker/:assetId/recurring-contributions", middleware.CreateRecurringContribution)
		assets.PUT("/broker/:assetId/recurring-contributions/:contributionId", middleware.UpdateRecurringContribution)
		assets.DELETE("/broker/:assetId/recurring-contributions/:contributionId", middleware.DeleteRecurringContribution)

		general := models.AssetTypeGeneral
		assets.GET("/general", middleware.GetGeneralAssets)
		assets.POST("/general", middleware.CreateGeneralAsset)
		assets.GET("/general/:assetId", middleware.GetGeneralAsset)
		assets.PUT("/general/:assetId", middleware.UpdateGeneralAsset)
		assets.DELETE("/general/:assetId", middleware.DeleteGeneralAsset)
		assets.GET("/general/:assetId/history", middleware.ListAssetHistory(repository.AssetValues, general))
		assets.POST("/general/:assetId/history", middleware.CreateAssetHistory(repository.AssetValues, general))
		assets.PUT("/general/:assetId/history/:historyId", middleware.UpdateAssetHistory(repository.AssetValues, general, "historyId"))
		assets.DELETE("/general/:assetId/history/:historyId", middleware.DeleteAssetHistory(repository.AssetValues, general, "historyId"))
	}

	milestones := api.Group("/milestones", requireUser)
	{
		milestones.GET("/user/:userId", middleware.GetUserMilestones)
		milestones.POST("", middleware.CreateMilestone)
		milestones.POST("/suggestions", middleware.SuggestMilestones)
		milestones.GET("/:id", middleware.GetMilestone)
		milestones.PATCH("/:id", middleware.UpdateMilestone)
		milestones.DELETE("/:id", middleware.DeleteMilestone)
		milestones.PATCH("/:id/completion", middleware.UpdateMilestoneCompletion)
	}

	fire := api.Group("/fire-settings", requireUser)
	{
		fire.POST("", middleware.CreateFireSettings)
		fire.GET("/user/:userAccountId", middleware.GetUserFireSettings)
		fire.PATCH("/user/:userAccountId", middleware.UpdateUserFireSettings)
		fire.GET("/user/:userAccountId/projection", middleware.GetFireProjection)
		fire.GET("/:id", middleware.GetFireSettings)
		fire.PATCH("/:id", middleware.UpdateFireSettings)
		fire.DELETE("/:id", middleware.DeleteFireSettings)
	}

	securities := api.Group("/securities", middleware.RequireAny())
	{
		securities.GET("", middleware.GetSecurities)
		securities.POST("", middleware.CreateSecurity)
		securities.GET("/search", middleware.SearchSecurities)
		securities.GET("/search/stats", middleware.GetSearchStats)
		securities.DELETE("/search/history", middleware.ClearSearchHistory)
		securities.GET("/:id", middleware.GetSecurity)
		securities.PUT("/:id", middleware.UpdateSecurity)
		securities.DELETE("/:id", middleware.DeleteSecurity)
		securities.GET("/:id/history", middleware.GetSecurityHistory)
		securities.GET("/:id/intraday", middleware.GetSecurityIntraday)
	}

	api.POST("/ocr/extract-values", requireUser, middleware.ExtractValues)
	api.POST("/webhooks/asset-values", middleware.AssetValueWebhook)

	router.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Not found"})
	})
}
