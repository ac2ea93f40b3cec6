package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	echoapi "go.pilab.hu/toolbridge/api/echo"
	"go.pilab.hu/toolbridge/cache"
	rediscache "go.pilab.hu/toolbridge/cache/redis"
	"go.pilab.hu/toolbridge/config"
	"go.pilab.hu/toolbridge/internal/metrics"
	"go.pilab.hu/toolbridge/mongodb"
	"go.pilab.hu/toolbridge/secrets"
	"go.pilab.hu/toolbridge/services"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logLevel, parseErr := zerolog.ParseLevel(cfg.LogLevel)
	if parseErr != nil {
		logLevel = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(logLevel)
	if cfg.LogPretty {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stdout})
	}
	if parseErr != nil {
		log.Warn().Str("configured_log_level", cfg.LogLevel).Msg("Invalid LOG_LEVEL configured, defaulting to 'info'")
	}

	log.Info().
		Str("http_port", cfg.HTTPPort).
		Str("mongo_db_name", cfg.MongoDBName).
		Str("cache_backend", cfg.CacheBackend).
		Msg("Starting toolbridge server")

	ctx := context.Background()
	if err := mongodb.InitMongoDB(ctx, cfg.MongoURI, cfg.MongoDBName); err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize MongoDB connection")
	}
	db := mongodb.GetDB()

	toolRepo := mongodb.NewToolRepository(db)
	configRepo, err := mongodb.NewAuthConfigRepository(ctx, db)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize AuthConfigRepository")
	}
	credRepo, err := mongodb.NewCredentialRepository(ctx, db)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize CredentialRepository")
	}
	actionRepo, err := mongodb.NewActionRepository(ctx, db)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize ActionRepository")
	}

	registry := prometheus.NewRegistry()
	m := metrics.New(registry)

	var appCache cache.Cache
	var memCache *cache.Memory
	switch cfg.CacheBackend {
	case "redis":
		client := goredis.NewClient(&goredis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		appCache = rediscache.New(client, "toolbridge")
		log.Info().Str("addr", cfg.RedisAddr).Msg("Using Redis cache backend")
	default:
		memCache = cache.NewMemory()
		appCache = memCache
		log.Info().Msg("Using in-memory cache backend")
	}

	syncer := secrets.NewSyncer(secrets.NewMemory(), cfg.SecretPrefix)

	resolver := services.NewAuthResolver(toolRepo, configRepo, credRepo, appCache, syncer, m)
	flow := services.NewOAuthFlow(resolver, appCache, m, cfg.BaseURL, cfg.AllowedRedirectDomains)
	actionSvc := services.NewActionService(
		actionRepo, resolver, services.PassthroughValidator{}, services.NewHTTPTransport(), m)

	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	echoapi.NewIntegrationAPI(resolver, flow, actionSvc, registry).RegisterRoutes(e)

	go func() {
		log.Info().Str("port", cfg.HTTPPort).Msg("HTTP server listening")
		if err := e.Start(":" + cfg.HTTPPort); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Failed to start HTTP server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	log.Info().Str("signal", sig.String()).Msg("Shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown error")
	}
	if memCache != nil {
		memCache.Close()
	}
	mongodb.CloseMongoDB(shutdownCtx)

	log.Info().Msg("Server gracefully stopped")
}
