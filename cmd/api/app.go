package main

import (
	"context"
	"fmt"

	"github.com/AgusMolinaCode/FIRE_Api.git/internal/auth"
	"github.com/AgusMolinaCode/FIRE_Api.git/internal/config"
	"github.com/AgusMolinaCode/FIRE_Api.git/internal/database"
	"github.com/AgusMolinaCode/FIRE_Api.git/internal/middleware"
	"github.com/AgusMolinaCode/FIRE_Api.git/internal/repository"
	"github.com/AgusMolinaCode/FIRE_Api.git/internal/services"
	"go.uber.org/zap"
)

// app reúne las dependencias que comparten los comandos.
type app struct {
	db        *database.Database
	users     *repository.UserRepository
	assets    *repository.AssetRepository
	emails    *services.EmailService
	processor *services.RecurringProcessor
}

// openDatabase abre la base global, crea el esquema y carga el catálogo de brokers.
func openDatabase(ctx context.Context) (*database.Database, error) {
	if err := database.InitDB(cfg.Database.Driver, cfg.Database.URL); err != nil {
		return nil, fmt.Errorf("initializing database: %w", err)
	}
	if _, err := database.SeedProviders(ctx, database.DB, cfg.ProvidersFile); err != nil {
		database.DB.Close()
		return nil, fmt.Errorf("seeding broker providers: %w", err)
	}
	return database.DB, nil
}

// newApp construye repositorios y servicios y los registra en los handlers.
func newApp(ctx context.Context) (*app, error) {
	db, err := openDatabase(ctx)
	if err != nil {
		return nil, err
	}

	users := repository.NewUserRepository(db)
	assets := repository.NewAssetRepository(db)
	recurring := repository.NewRecurringRepository(db)
	securities := repository.NewSecurityRepository(db)
	holdings := repository.NewHoldingsRepository(db)
	milestones := repository.NewMilestoneRepository(db)
	fire := repository.NewFireRepository(db)
	tokens := repository.NewRefreshTokenRepository(db)

	accessExpiry, err := auth.ParseTimeString(cfg.Auth.AccessTokenExpiry)
	if err != nil {
		db.Close()
		return nil, err
	}
	refreshExpiry, err := auth.ParseTimeString(cfg.Auth.RefreshTokenExpiry)
	if err != nil {
		db.Close()
		return nil, err
	}
	authService := auth.NewService(auth.Options{
		JWTSecret:     cfg.Auth.JWTSecret,
		RefreshSecret: cfg.Auth.RefreshTokenSecret,
		AccessExpiry:  accessExpiry,
		RefreshExpiry: refreshExpiry,
		CookieDomain:  cfg.Auth.CookieDomain,
		Secure:        cfg.IsProduction(),
		APIKeys:       cfg.Auth.APIKeys,
	}, tokens)

	emails := services.NewEmailService(cfg.SMTP)
	checker := services.NewMilestoneChecker(milestones, assets, users, emails, cfg.Currency)

	// Solo se usan los proveedores con clave configurada; EODHD va primero
	client := services.NewProviderClient(cfg.Securities.CacheDir)
	var providers []services.SecurityProvider
	if cfg.Securities.EODHDAPIKey != "" {
		providers = append(providers, services.NewEODHD(cfg.Securities.EODHDAPIKey, client))
	}
	if cfg.Securities.AlphaVantageAPIKey != "" {
		providers = append(providers, services.NewAlphaVantage(cfg.Securities.AlphaVantageAPIKey, client))
	}
	if len(providers) == 0 {
		zap.L().Warn("sin proveedores de valores configurados; la búsqueda solo usa la caché local")
	}
	limiter := services.NewSearchLimiter(map[string]config.SearchLimitConfig{
		"eodhd":         cfg.Securities.EODHD,
		"alpha-vantage": cfg.Securities.AlphaVantage,
	})
	securityService := services.NewSecuritiesService(securities, limiter, providers...)

	var aiService *services.AIService
	if cfg.OCR.APIKey != "" {
		gemini, err := services.NewGemini(ctx, cfg.OCR.APIKey, cfg.OCR.Model)
		if err != nil {
			db.Close()
			return nil, err
		}
		aiService = services.NewAIService(gemini)
	} else {
		zap.L().Warn("GEMINI_API_KEY no configurada; OCR y sugerencias deshabilitados")
	}

	interval, err := cfg.RecurringInterval()
	if err != nil {
		db.Close()
		return nil, err
	}
	processor := services.NewRecurringProcessor(interval, recurring, assets)

	middleware.InitAuth(authService, users, emails)
	middleware.InitAssets(assets, recurring, checker, cfg.Currency)
	middleware.InitSecurities(securities, holdings, securityService)
	middleware.InitPlanning(milestones, fire, aiService)
	middleware.InitAdmin(processor)
	if err := middleware.InitWebhooks(cfg.Webhooks.Secret); err != nil {
		db.Close()
		return nil, err
	}

	return &app{db: db, users: users, assets: assets, emails: emails, processor: processor}, nil
}

func (a *app) close() {
	if err := a.db.Close(); err != nil {
		zap.L().Warn("error al cerrar la base de datos", zap.Error(err))
	}
}
