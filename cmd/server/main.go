// Command server runs the civic broker HTTP API.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/civicmesh/civic-broker/pkg/config"
	"github.com/civicmesh/civic-broker/pkg/health"
	"github.com/civicmesh/civic-broker/pkg/kafka"
	"github.com/civicmesh/civic-broker/pkg/logger"
	"github.com/civicmesh/civic-broker/pkg/metrics"
	"github.com/civicmesh/civic-broker/pkg/postgres"
	"github.com/civicmesh/civic-broker/pkg/redis"

	"github.com/civicmesh/civic-broker/internal/api"
	"github.com/civicmesh/civic-broker/internal/audit"
	"github.com/civicmesh/civic-broker/internal/civic"
	"github.com/civicmesh/civic-broker/internal/civic/profile"
	"github.com/civicmesh/civic-broker/internal/civic/ratings"
	"github.com/civicmesh/civic-broker/internal/civic/resolver"
	"github.com/civicmesh/civic-broker/internal/civic/search"
	"github.com/civicmesh/civic-broker/internal/civic/store"
)

func main() {
	configPath := flag.String("config", "", "path to YAML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("loading config", "error", err)
		os.Exit(1)
	}
	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)
	log := logger.WithComponent("server")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	redisClient, err := redis.NewClient(cfg.Redis)
	if err != nil {
		log.Error("connecting to redis", "error", err)
		os.Exit(1)
	}
	defer redisClient.Close()
	kv := store.NewRedis(redisClient)

	var auditLog *audit.Log
	pgClient, err := postgres.New(cfg.Postgres)
	if err != nil {
		log.Warn("audit log disabled, postgres unavailable", "error", err)
	} else {
		defer pgClient.Close()
		auditLog = audit.New(pgClient)
		if err := auditLog.EnsureSchema(ctx); err != nil {
			log.Error("preparing audit schema", "error", err)
			os.Exit(1)
		}
	}

	var m *metrics.Metrics
	if cfg.Metrics.Enabled {
		m = metrics.New()
	}

	var warmer resolver.Warmer
	var warmProducer *kafka.Producer
	if cfg.ImageCache.Enabled() {
		warmProducer = kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.CacheWarm)
		defer warmProducer.Close()
		warmer = resolver.NewKafkaWarmer(warmProducer, m)
	}

	engine := search.NewEngine(kv)
	res := resolver.New(kv, engine, warmer, resolver.Config{
		PublicBase:   cfg.Server.PublicBase,
		CacheEnabled: cfg.ImageCache.Enabled(),
	})
	rat := ratings.New(kv, res)
	prof := profile.New(kv, rat)
	broker := civic.New(res, rat, engine, prof, m)

	checker := health.NewChecker()
	checker.Register("redis", func(ctx context.Context) health.ComponentHealth {
		if err := redisClient.Health(ctx); err != nil {
			return health.ComponentHealth{Status: health.StatusDown, Message: err.Error()}
		}
		return health.ComponentHealth{Status: health.StatusUp}
	})
	if pgClient != nil {
		// Audit is best effort, so a postgres outage only degrades readiness.
		checker.Register("postgres", func(ctx context.Context) health.ComponentHealth {
			if err := pgClient.Health(ctx); err != nil {
				return health.ComponentHealth{Status: health.StatusDegraded, Message: err.Error()}
			}
			return health.ComponentHealth{Status: health.StatusUp}
		})
	}

	handler := api.NewHandler(broker, auditLog, cfg.Server.ClientIPHeader)
	router := api.NewRouter(handler, api.RouterConfig{
		Auth:           api.NewAuth(cfg.Auth),
		Metrics:        m,
		Health:         checker,
		ImagesDir:      cfg.ImageCache.Dir,
		RequestTimeout: cfg.Server.WriteTimeout,
	})

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		log.Info("shutdown signal received")
	case err := <-errCh:
		log.Error("server failed", "error", err)
		os.Exit(1)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown failed", "error", err)
		os.Exit(1)
	}
	log.Info("server stopped")
}
