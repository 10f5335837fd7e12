package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/AgusMolinaCode/FIRE_Api.git/internal/config"
	"github.com/AgusMolinaCode/FIRE_Api.git/internal/logging"
	routes "github.com/AgusMolinaCode/FIRE_Api.git/internal/server"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var (
	configPath string
	cfg        config.Config
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	defaultConfig := os.Getenv("APP_CONFIG")
	if defaultConfig == "" {
		defaultConfig = "config.toml"
	}

	root := &cobra.Command{
		Use:           "api",
		Short:         "Personal finance and FIRE tracking API",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// Cargar variables de entorno
			envErr := godotenv.Load()

			var err error
			cfg, err = config.Load(configPath)
			if err != nil {
				return err
			}
			if _, err := logging.New(cfg.Env, cfg.LogLevel); err != nil {
				return err
			}
			if envErr != nil {
				zap.L().Debug("No se pudo cargar el archivo .env", zap.Error(envErr))
			}
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			_ = zap.L().Sync()
		},
		RunE: runServe,
	}
	root.PersistentFlags().StringVar(&configPath, "config", defaultConfig, "TOML config file")

	root.AddCommand(
		&cobra.Command{Use: "serve", Short: "Start the HTTP API and the recurring contribution worker", RunE: runServe},
		migrateCmd(),
		seedProvidersCmd(),
		processRecurringCmd(),
		reportCmd(),
	)
	return root
}

func runServe(cmd *cobra.Command, _ []string) error {
	if err := cfg.ValidateAuth(); err != nil {
		return err
	}

	a, err := newApp(cmd.Context())
	if err != nil {
		return err
	}
	defer a.close()

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(logging.GinLogger(), gin.Recovery())

	// Configurar CORS
	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = cfg.Server.CORSOrigins
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Accept", "X-API-Key"}
	corsConfig.AllowCredentials = true
	corsConfig.ExposeHeaders = []string{"Content-Length"}
	router.Use(cors.New(corsConfig))

	routes.RegisterRoutes(router)

	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		zap.L().Info("servidor escuchando", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serving http: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	g.Go(func() error {
		return a.processor.Run(gctx)
	})

	if err := g.Wait(); err != nil {
		zap.L().Error("el servidor terminó con error", zap.Error(err))
		return err
	}
	zap.L().Info("servidor detenido")
	return nil
}
