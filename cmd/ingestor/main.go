// Command ingestor consumes provider records from Kafka and feeds them
// through the entity resolver.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/civicmesh/civic-broker/pkg/config"
	"github.com/civicmesh/civic-broker/pkg/kafka"
	"github.com/civicmesh/civic-broker/pkg/logger"
	"github.com/civicmesh/civic-broker/pkg/redis"

	"github.com/civicmesh/civic-broker/internal/civic/normalize"
	"github.com/civicmesh/civic-broker/internal/civic/resolver"
	"github.com/civicmesh/civic-broker/internal/civic/search"
	"github.com/civicmesh/civic-broker/internal/civic/store"
)

// recordEnvelope is the shape published to the provider-records topic.
type recordEnvelope struct {
	Source string              `json:"source"`
	Record normalize.RawRecord `json:"record"`
}

func main() {
	configPath := flag.String("config", "", "path to YAML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("loading config", "error", err)
		os.Exit(1)
	}
	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)
	log := logger.WithComponent("ingestor")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	redisClient, err := redis.NewClient(cfg.Redis)
	if err != nil {
		log.Error("connecting to redis", "error", err)
		os.Exit(1)
	}
	defer redisClient.Close()
	kv := store.NewRedis(redisClient)

	engine := search.NewEngine(kv)
	res := resolver.New(kv, engine, nil, resolver.Config{
		PublicBase:   cfg.Server.PublicBase,
		CacheEnabled: false,
	})

	consumer := kafka.NewConsumer(cfg.Kafka, cfg.Kafka.Topics.ProviderRecords,
		func(ctx context.Context, key, value []byte) error {
			envelope, err := kafka.DecodeJSON[recordEnvelope](value)
			if err != nil {
				return err
			}
			id, err := res.Ingest(ctx, envelope.Source, envelope.Record)
			if err != nil {
				return err
			}
			log.Debug("record ingested", "source", envelope.Source, "politician_id", id)
			return nil
		})
	defer consumer.Close()

	log.Info("ingestor started", "topic", cfg.Kafka.Topics.ProviderRecords)
	if err := consumer.Start(ctx); err != nil {
		log.Error("consumer stopped with error", "error", err)
		os.Exit(1)
	}
	log.Info("ingestor stopped")
}
