package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"newsdesk_backend/config"
	"newsdesk_backend/controllers"
	"newsdesk_backend/middleware"
	"newsdesk_backend/models"
	"newsdesk_backend/routes"
	"newsdesk_backend/scheduler"
	"newsdesk_backend/services/marketdata"
	"newsdesk_backend/services/notifier"
	"newsdesk_backend/services/providers"
	"newsdesk_backend/services/settings"
	"newsdesk_backend/services/stream"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
	"go.mongodb.org/mongo-driver/mongo"
	"gorm.io/gorm"
)

// ready flips once the database and routes are up, for the /ready probe
var ready atomic.Bool

// app holds what graceful shutdown needs to release
type app struct {
	orchestrator *scheduler.Orchestrator
	hub          *stream.Hub
	mongoClient  *mongo.Client
	stopCleanup  chan struct{}
}

func main() {
	cfg, err := config.LoadConfig()
	config.InitLogger(cfg)
	if err != nil {
		log.Warn().Err(err).Msg("config load issue")
	}

	log.Info().Str("environment", cfg.Environment).Msg("newsdesk backend starting")

	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(corsMiddleware())
	router.Use(requestLogger())

	// Health endpoints first so probes pass while the database comes up
	setupHealthEndpoints(router)

	server := &http.Server{
		Addr:              "0.0.0.0:" + cfg.Port,
		Handler:           router,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
		MaxHeaderBytes:    1 << 20,
	}

	go func() {
		log.Info().Str("port", cfg.Port).Msg("server listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	var running atomic.Pointer[app]
	go func() {
		a, err := initialize(cfg, router)
		if err != nil {
			log.Error().Err(err).Msg("initialization failed, serving health checks only")
			return
		}
		running.Store(a)
		ready.Store(true)
		log.Info().Msg("application fully initialized")
	}()

	gracefulShutdown(server, &running)
}

// initialize opens storage, wires the refresh engine and registers the API routes
func initialize(cfg *config.Config, router *gin.Engine) (*app, error) {
	db, err := config.InitDB()
	if err != nil {
		return nil, err
	}

	if err := models.MigrateMarketModels(db); err != nil {
		return nil, err
	}
	if cfg.AssetSeedFile != "" {
		inserted, err := models.SeedAssetConfigs(db, cfg.AssetSeedFile)
		if err != nil {
			log.Warn().Err(err).Str("file", cfg.AssetSeedFile).Msg("asset seed failed")
		} else {
			log.Info().Int("inserted", inserted).Msg("asset configs seeded")
		}
	}

	a := &app{
		hub:         stream.NewHub(cfg.StreamMaxClients),
		stopCleanup: make(chan struct{}),
	}

	quotes, err := openQuoteStore(cfg, db, a)
	if err != nil {
		return nil, err
	}

	settingsStore := settings.NewStore(db)
	registry := providers.NewDefaultRegistry(cfg.Providers)
	log.Info().Strs("providers", registry.IDs()).Msg("quote providers registered")

	scraper := notifier.NewHTTPNotifier(cfg.ScraperNotifyURL)
	if !scraper.Enabled() {
		log.Info().Msg("SCRAPER_NOTIFY_URL not set, scraper notifications disabled")
	}

	prefs := marketdata.NewPreferences(settingsStore, registry)
	updater := marketdata.NewUpdater(marketdata.Deps{
		Assets:    marketdata.NewSQLAssetReader(db),
		Quotes:    quotes,
		Registry:  registry,
		Order:     prefs,
		Notifier:  scraper,
		Publisher: a.hub,
	})
	a.orchestrator = scheduler.NewOrchestrator(updater, settingsStore)

	limiter := middleware.NewRateLimiter(cfg.PublicRequestsPerMinute, cfg.PublicRequestsPerMinute/4, 30*time.Minute)
	limiter.StartCleanup(10*time.Minute, a.stopCleanup)

	if cfg.JWTSecret == "" {
		log.Warn().Msg("JWT_SECRET not set, admin and ingest routes will reject every request")
	}

	market := controllers.NewMarketController(a.orchestrator, updater, prefs, settingsStore, a.hub, registry.IDs())
	routes.SetupRoutes(router, routes.Dependencies{
		Market:        market,
		JWTSecret:     cfg.JWTSecret,
		PublicLimiter: limiter,
	})

	if cfg.MarketAutostart {
		if err := a.orchestrator.Start(context.Background()); err != nil {
			log.Error().Err(err).Msg("market scheduler failed to start")
		}
	}
	return a, nil
}

func openQuoteStore(cfg *config.Config, db *gorm.DB, a *app) (marketdata.QuoteStore, error) {
	if cfg.QuoteStore != "mongo" {
		return marketdata.NewSQLQuoteStore(db), nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	client, err := marketdata.ConnectMongo(ctx, cfg.MongoURI)
	if err != nil {
		return nil, err
	}
	a.mongoClient = client
	log.Info().Str("database", cfg.MongoDatabase).Msg("quotes stored in mongodb")
	return marketdata.NewMongoQuoteStore(client.Database(cfg.MongoDatabase)), nil
}

// setupHealthEndpoints sets up liveness and readiness probes
func setupHealthEndpoints(router *gin.Engine) {
	router.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "ok",
			"message": "Newsdesk Backend API",
			"version": "1.0.0",
		})
	})

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status": "ok",
		})
	})

	router.GET("/ready", func(c *gin.Context) {
		if !ready.Load() {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status":  "not_ready",
				"message": "Database not connected",
			})
			return
		}

		sqlDB, err := config.DB.DB()
		if err != nil || sqlDB.Ping() != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status":  "not_ready",
				"message": "Database ping failed",
			})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"status": "ready",
		})
	})
}

// corsMiddleware returns a CORS middleware handler
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")
		if origin == "" {
			origin = "*"
		}

		c.Header("Access-Control-Allow-Origin", origin)
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, Authorization, X-Requested-With")
		c.Header("Access-Control-Allow-Credentials", "true")
		c.Header("Access-Control-Max-Age", "86400")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

// requestLogger logs failed and slow requests
func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		path := c.Request.URL.Path
		if path == "/health" || path == "/ready" {
			c.Next()
			return
		}

		start := time.Now()
		c.Next()
		duration := time.Since(start)

		if c.Writer.Status() >= 400 || duration > time.Second {
			log.Info().
				Str("method", c.Request.Method).
				Str("path", path).
				Int("status", c.Writer.Status()).
				Dur("duration", duration).
				Msg("request")
		}
	}
}

// gracefulShutdown stops the scheduler before the server, then releases storage
func gracefulShutdown(server *http.Server, running *atomic.Pointer[app]) {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	sig := <-quit
	log.Info().Str("signal", sig.String()).Msg("shutting down gracefully")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	a := running.Load()
	if a != nil {
		a.orchestrator.Stop()
		a.hub.Shutdown()
		close(a.stopCleanup)
	}

	if err := server.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
	}

	if a != nil && a.mongoClient != nil {
		if err := a.mongoClient.Disconnect(ctx); err != nil {
			log.Warn().Err(err).Msg("mongodb disconnect failed")
		}
	}

	if config.DB != nil {
		if sqlDB, err := config.DB.DB(); err == nil {
			sqlDB.Close()
			log.Info().Msg("database connection closed")
		}
	}

	log.Info().Msg("server shutdown completed")
}
