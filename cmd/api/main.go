// main.go
package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	"github.com/Marga-Ghale/aurora-pm-backend/internal/api"
	"github.com/Marga-Ghale/aurora-pm-backend/internal/api/handlers"
	"github.com/Marga-Ghale/aurora-pm-backend/internal/config"
	"github.com/Marga-Ghale/aurora-pm-backend/internal/cron"
	"github.com/Marga-Ghale/aurora-pm-backend/internal/db"
	"github.com/Marga-Ghale/aurora-pm-backend/internal/events"
	"github.com/Marga-Ghale/aurora-pm-backend/internal/logger"
	"github.com/Marga-Ghale/aurora-pm-backend/internal/repository"
	"github.com/Marga-Ghale/aurora-pm-backend/internal/seed"
	"github.com/Marga-Ghale/aurora-pm-backend/internal/service"
	"github.com/Marga-Ghale/aurora-pm-backend/internal/socket"
)

func main() {
	// ============================================
	// Load environment variables
	// ============================================
	envErr := godotenv.Load()

	// ============================================
	// Load configuration
	// ============================================
	cfg := config.Load()
	logger.Init(cfg.Environment, cfg.LogLevel)
	if envErr != nil {
		log.Info().Msg("No .env file found, using environment variables")
	}
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("❌ Invalid configuration")
	}

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ============================================
	// Storage
	// ============================================
	var (
		repos    *repository.Repositories
		database handlers.Pinger
	)
	switch cfg.StorageDriver {
	case "memory":
		repos = repository.NewMemoryRepositories()
		log.Warn().Msg("⚠️  Using in-memory storage, data is lost on restart")
	default:
		log.Info().Msg("🔄 Running database migrations...")
		if err := db.RunMigrations(cfg.DatabaseURL, cfg.MigrationsPath); err != nil {
			log.Fatal().Err(err).Msg("❌ Migration failed")
		}

		pg, err := db.NewPostgresDB(cfg.DatabaseURL)
		if err != nil {
			log.Fatal().Err(err).Msg("❌ Failed to connect to PostgreSQL")
		}
		defer pg.Close()

		repos = repository.NewPgRepositories(pg.DB)
		database = pg
	}

	// ============================================
	// Redis (optional)
	// ============================================
	deps := &service.ServiceDeps{Config: cfg, Repos: repos}
	var cache handlers.Pinger
	if cfg.RedisURL != "" {
		redisDB, err := db.NewRedisDB(cfg.RedisURL)
		if err != nil {
			log.Warn().Err(err).Msg("⚠️  Redis unavailable, continuing without cache")
		} else {
			defer redisDB.Close()
			deps.Cache = redisDB
			cache = redisDB
		}
	}

	// ============================================
	// WebSocket hub and event relay
	// ============================================
	hub := socket.NewHub()
	if cfg.RabbitMQURL != "" {
		relay := events.NewRelay(cfg.RabbitMQURL, cfg.EventsQueue)
		relay.Start(ctx)
		hub.SetRelay(relay)
		log.Info().Str("queue", cfg.EventsQueue).Msg("📨 Event relay enabled")
	}
	hubDone := make(chan struct{})
	go func() {
		hub.Run(ctx)
		close(hubDone)
	}()
	deps.Broadcaster = socket.NewBroadcaster(hub, cfg.ScopedBroadcast())

	// ============================================
	// Services
	// ============================================
	services := service.NewServices(deps)

	if cfg.SeedData && !cfg.IsProduction() {
		if err := seed.SeedData(ctx, repos, services); err != nil {
			log.Error().Err(err).Msg("Seeding failed")
		}
	}

	// ============================================
	// Router
	// ============================================
	wsHandler := socket.NewHandler(hub, services.Auth, services.Activity, cfg.AllowedOrigins())
	router, err := api.NewRouter(api.RouterConfig{
		Config:    cfg,
		Services:  services,
		Health:    handlers.NewHealthHandler(database, cache, hub),
		WebSocket: wsHandler.HandleWebSocket,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("❌ Failed to build router")
	}

	// ============================================
	// Cron scheduler
	// ============================================
	scheduler := cron.NewScheduler(services, hub, cfg.AutoArchiveAfterDays)
	if err := scheduler.Start(); err != nil {
		log.Fatal().Err(err).Msg("❌ Failed to start scheduler")
	}

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: cfg.RequestTimeout + 5*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Str("port", cfg.Port).Str("storage", cfg.StorageDriver).Msg("🚀 Server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("Failed to start server")
			stop()
		}
	}()

	<-ctx.Done()
	stop()
	log.Info().Msg("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}
	scheduler.Stop(shutdownCtx)

	select {
	case <-hubDone:
	case <-shutdownCtx.Done():
	}

	log.Info().Msg("Server exited")
}
