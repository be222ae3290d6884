package main

import (
	"context"
	"net/http"
	"os"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/trekjournal/media-proxy/api/controllers"
	"github.com/trekjournal/media-proxy/api/middleware"
	"github.com/trekjournal/media-proxy/api/routes"
	"github.com/trekjournal/media-proxy/internal/accesscontrol"
	"github.com/trekjournal/media-proxy/internal/journeys"
	"github.com/trekjournal/media-proxy/internal/mcp"
	"github.com/trekjournal/media-proxy/internal/objects"
	"github.com/trekjournal/media-proxy/pkg/auth"
	"github.com/trekjournal/media-proxy/pkg/config"
	"github.com/trekjournal/media-proxy/pkg/jwks"
	"github.com/trekjournal/media-proxy/pkg/logger"
	"github.com/trekjournal/media-proxy/pkg/metrics"
	"github.com/trekjournal/media-proxy/pkg/redis"
	"github.com/trekjournal/media-proxy/pkg/storage/bucket"
	"github.com/trekjournal/media-proxy/pkg/store"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "media-proxy"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "media-proxy",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	storeClient, err := store.NewClient(cfg.Store, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap store client", err)
		os.Exit(1)
	}

	bucketClient, err := bucket.NewClient(context.Background(), cfg.Bucket, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap bucket client", err)
		os.Exit(1)
	}

	keyCache := jwks.NewCache(cfg.Auth.JWKSURL(), logg, jwks.Options{
		TTL:          cfg.Auth.JWKSCacheTTL,
		FetchTimeout: cfg.Auth.JWKSFetchTimeout,
	})
	verifier := auth.NewVerifier(keyCache, auth.WithLegacyHS256(cfg.Auth.AllowLegacyHS256))

	readiness := map[string]controllers.Pinger{
		"store":  storeClient,
		"bucket": bucketClient,
	}

	var limiter middleware.RateLimiterStore
	if cfg.Redis.Enabled() {
		redisClient, err := redis.New(context.Background(), cfg.Redis)
		if err != nil {
			logg.Error(context.Background(), "failed to bootstrap redis", err)
			os.Exit(1)
		}
		defer func() {
			if err := redisClient.Close(); err != nil {
				logg.Error(context.Background(), "error closing redis", err)
			}
		}()
		limiter = redisClient
		readiness["redis"] = redisClient
	} else {
		logg.Warn(context.Background(), "redis not configured, upload rate limiting disabled")
	}

	repo := journeys.NewRepository(storeClient)
	checker := accesscontrol.NewChecker(repo, logg)
	objectsSvc := objects.NewService(bucketClient, repo, cfg.Media, logg)
	gateway := mcp.NewGateway(repo, verifier, logg)

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})
	logg.Info(ctx, "starting media proxy")

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(routes.Deps{
			Config:      cfg,
			Logger:      logg,
			Verifier:    verifier,
			Checker:     checker,
			Objects:     objectsSvc,
			MCP:         gateway,
			RateLimiter: limiter,
			HTTPMetrics: metrics.NewHTTPMetrics(prometheus.DefaultRegisterer),
			Readiness:   readiness,
		}),
	}

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logg.Error(ctx, "media proxy stopped unexpectedly", err)
		os.Exit(1)
	}
}
