// Command imagewarmer consumes photo cache-warm events, fetches each image
// (through the cache proxy when one is configured), and stores it in the
// image directory the API server serves from. Fetch failures are logged and
// dropped; warming is best effort by contract.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/civicmesh/civic-broker/pkg/config"
	"github.com/civicmesh/civic-broker/pkg/kafka"
	"github.com/civicmesh/civic-broker/pkg/logger"

	"github.com/civicmesh/civic-broker/internal/civic/resolver"
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
	log := logger.WithComponent("imagewarmer")

	if err := os.MkdirAll(cfg.ImageCache.Dir, 0o755); err != nil {
		log.Error("creating image directory", "dir", cfg.ImageCache.Dir, "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	client := &http.Client{Timeout: 30 * time.Second}

	consumer := kafka.NewConsumer(cfg.Kafka, cfg.Kafka.Topics.CacheWarm,
		func(ctx context.Context, key, value []byte) error {
			event, err := kafka.DecodeJSON[resolver.WarmEvent](value)
			if err != nil {
				return err
			}
			warm(ctx, client, cfg.ImageCache, event, log)
			return nil
		})
	defer consumer.Close()

	log.Info("imagewarmer started", "topic", cfg.Kafka.Topics.CacheWarm, "dir", cfg.ImageCache.Dir)
	if err := consumer.Start(ctx); err != nil {
		log.Error("consumer stopped with error", "error", err)
		os.Exit(1)
	}
	log.Info("imagewarmer stopped")
}

// warm fetches the image and writes it under the event's filename.
func warm(ctx context.Context, client *http.Client, cache config.ImageCacheConfig, event resolver.WarmEvent, log *slog.Logger) {
	name := filepath.Base(event.File)
	if name == "" || name == "." || strings.ContainsAny(name, "/\\") {
		log.Warn("warm event with bad filename", "file", event.File)
		return
	}

	target := event.URL
	if cache.Enabled() {
		target = fmt.Sprintf("%s/%s/%s", cache.URL, cache.Options, url.QueryEscape(event.URL))
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		log.Warn("building warm request", "url", event.URL, "error", err)
		return
	}
	resp, err := client.Do(req)
	if err != nil {
		log.Warn("cache warm fetch failed", "url", event.URL, "error", err)
		return
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		io.Copy(io.Discard, resp.Body)
		log.Warn("cache warm rejected", "url", event.URL, "status", resp.StatusCode)
		return
	}

	dest := filepath.Join(cache.Dir, name)
	tmp := dest + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		log.Warn("creating image file", "file", dest, "error", err)
		return
	}
	if _, err := io.Copy(f, resp.Body); err != nil {
		f.Close()
		os.Remove(tmp)
		log.Warn("writing image file", "file", dest, "error", err)
		return
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		log.Warn("closing image file", "file", dest, "error", err)
		return
	}
	if err := os.Rename(tmp, dest); err != nil {
		os.Remove(tmp)
		log.Warn("publishing image file", "file", dest, "error", err)
		return
	}
	log.Debug("cache warmed", "url", event.URL, "file", name)
}
