package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	zlog "github.com/rs/zerolog/log"

	"github.com/gin-gonic/gin"

	"github.com/nawasena/options-api/internal/alerts"
	"github.com/nawasena/options-api/internal/auth"
	"github.com/nawasena/options-api/internal/chain"
	"github.com/nawasena/options-api/internal/config"
	"github.com/nawasena/options-api/internal/database"
	"github.com/nawasena/options-api/internal/explain"
	"github.com/nawasena/options-api/internal/keeper"
	"github.com/nawasena/options-api/internal/oracle"
	"github.com/nawasena/options-api/internal/recommend"
	"github.com/nawasena/options-api/internal/scheduler"
	"github.com/nawasena/options-api/internal/signer"
	"github.com/nawasena/options-api/pkg/middleware"
)

// init configures the application logging based on environment settings
// In development mode, it enables pretty printing with timestamps
// Debug logging can be enabled via DEBUG environment variable
func init() {
	// Configure pretty logging for development
	if os.Getenv("ENV") != "production" {
		output := zerolog.ConsoleWriter{
			Out:        os.Stdout,
			TimeFormat: time.RFC3339,
		}
		zlog.Logger = zerolog.New(output).With().Timestamp().Logger()
	}

	// Set global log level
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	if os.Getenv("DEBUG") == "true" {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}
}

// main wires the recommendation, alert and settlement services and runs the
// API server with graceful shutdown.
func main() {
	cfg, err := config.Load()
	if err != nil {
		zlog.Fatal().Err(err).Msg("Failed to load configuration")
	}

	db, err := database.NewDatabase(cfg.DatabasePath)
	if err != nil {
		zlog.Fatal().Err(err).Msg("Failed to initialize database")
	}

	// On-chain clients
	priceSource, err := oracle.NewClient(cfg.RPCURL, cfg.OracleFeeds)
	if err != nil {
		zlog.Fatal().Err(err).Msg("Failed to initialize oracle client")
	}
	defer priceSource.Close()

	chainClient, err := chain.NewClient(cfg.RPCURL, cfg.ChainID, cfg.PositionRegistryAddress, cfg.SettlementAddress, cfg.MakerPrivateKey)
	if err != nil {
		zlog.Fatal().Err(err).Msg("Failed to initialize chain client")
	}
	defer chainClient.Close()

	// Missing signing key is a fatal config error, surfaced at startup
	orderSigner, err := signer.NewService(cfg.MakerPrivateKey, cfg.CollateralTokenAddress)
	if err != nil {
		zlog.Fatal().Err(err).Msg("Failed to initialize order signer")
	}

	// Explanation generation: LLM when configured, template otherwise
	var primary explain.Generator
	if llm := explain.NewLLMGenerator(cfg.ExplainAPIURL, cfg.ExplainAPIKey, cfg.ExplainModel); llm != nil {
		primary = llm
	}
	explainer := explain.NewFallbackGenerator(primary, explain.NewTemplateGenerator())

	// Initialize router
	router := gin.Default()

	// Initialize services and handlers
	authService := auth.NewService(cfg.JWTSecret)
	authService.RegisterAPICredentials(cfg.APIKey, cfg.APISecret)
	authHandlers := auth.NewGinHandlers(authService)

	recommendService := recommend.NewService(priceSource, orderSigner, explainer)
	recommendHandlers := recommend.NewGinHandlers(recommendService)

	alertService := alerts.NewService(db)
	alertHandlers := alerts.NewGinHandlers(alertService)

	keeperService := keeper.NewService(chainClient, chainClient, cfg.KeeperBatchSize, cfg.KeeperScanLimit)
	keeperHandlers := keeper.NewGinHandlers(keeperService)

	monitor := alerts.NewMonitor(alertService.GetDB(), chainClient, priceSource)
	monitorHandlers := alerts.NewMonitorHandlers(monitor)

	// In-process scheduler for deployments without an external cron
	schedCtx, schedCancel := context.WithCancel(context.Background())
	defer schedCancel()
	if cfg.SchedulerEnabled {
		sched := scheduler.New(schedCtx, keeperService, monitor)
		if err := sched.Register(cfg.KeeperCronSpec, cfg.MonitorCronSpec); err != nil {
			zlog.Fatal().Err(err).Msg("Failed to register scheduled jobs")
		}
		sched.Start()
		defer sched.Stop()
	}

	// Setup middleware
	router.Use(middleware.RateLimit())

	// Setup API routes
	setupRoutes(router, cfg, authHandlers, recommendHandlers, alertHandlers, keeperHandlers, monitorHandlers)

	// Create server
	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	// Graceful shutdown setup
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zlog.Fatal().Err(err).Msg("listen")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	zlog.Info().Msg("Shutting down server...")

	// Give outstanding operations 5 seconds to complete
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		zlog.Fatal().Err(err).Msg("Server forced to shutdown")
	}

	zlog.Info().Msg("Server exiting")
}

// setupRoutes configures all API endpoints and their handlers:
// - Auth routes: public token issuance
// - Recommendation route: public, rate limited
// - Alert/notification routes: protected by JWT user auth
// - Internal routes: scheduled triggers behind the shared cron secret
func setupRoutes(
	router *gin.Engine,
	cfg *config.Config,
	authHandlers *auth.GinHandlers,
	recommendHandlers *recommend.GinHandlers,
	alertHandlers *alerts.GinHandlers,
	keeperHandlers *keeper.GinHandlers,
	monitorHandlers *alerts.MonitorHandlers,
) {
	v1 := router.Group("/api/v1")
	{
		// Auth routes
		authGroup := v1.Group("/auth")
		{
			authGroup.POST("/token", authHandlers.GenerateTokenHandler())
		}

		// Recommendation routes
		v1.POST("/recommendations", recommendHandlers.GenerateHandler())

		// Alert and notification routes
		alertGroup := v1.Group("/alerts")
		alertGroup.Use(middleware.JWTAuth(cfg.JWTSecret))
		{
			alertGroup.POST("", alertHandlers.CreateAlertHandler())
			alertGroup.GET("", alertHandlers.ListAlertsHandler())
			alertGroup.GET("/:alert_id", alertHandlers.GetAlertHandler())
			alertGroup.PATCH("/:alert_id", alertHandlers.UpdateAlertHandler())
			alertGroup.DELETE("/:alert_id", alertHandlers.DeleteAlertHandler())
		}

		notificationGroup := v1.Group("/notifications")
		notificationGroup.Use(middleware.JWTAuth(cfg.JWTSecret))
		{
			notificationGroup.GET("", alertHandlers.ListNotificationsHandler())
			notificationGroup.POST("/:notification_id/read", alertHandlers.MarkNotificationReadHandler())
		}

		// Internal routes (scheduled triggers)
		internal := v1.Group("/internal")
		internal.Use(middleware.CronAuth(cfg.CronSecret))
		{
			internal.POST("/settlement/run", keeperHandlers.TriggerHandler())
			internal.POST("/alerts/run", monitorHandlers.TriggerHandler())
		}
	}
}
