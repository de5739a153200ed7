package resolver

import (
	"context"
	"log/slog"
	"time"

	"github.com/civicmesh/civic-broker/pkg/kafka"
	"github.com/civicmesh/civic-broker/pkg/metrics"
)

// WarmEvent is the message published to the cache-warm topic. A downstream
// consumer fetches the URL and stores the body under File in the image
// directory.
type WarmEvent struct {
	URL       string    `json:"url"`
	File      string    `json:"file"`
	EmittedAt time.Time `json:"emitted_at"`
}

// KafkaWarmer emits cache-warm events to a Kafka topic. Publishing happens
// on a detached goroutine with its own deadline; the triggering request
// never waits on it and publish failures are logged and dropped.
type KafkaWarmer struct {
	producer *kafka.Producer
	metrics  *metrics.Metrics
	logger   *slog.Logger
}

// NewKafkaWarmer wraps a producer for the cache-warm topic. metrics may be
// nil.
func NewKafkaWarmer(producer *kafka.Producer, m *metrics.Metrics) *KafkaWarmer {
	return &KafkaWarmer{
		producer: producer,
		metrics:  m,
		logger:   slog.Default().With("component", "cache-warmer"),
	}
}

// Warm publishes a warm event and forgets about it.
func (w *KafkaWarmer) Warm(url, filename string) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		err := w.producer.Publish(ctx, kafka.Event{
			Key:   url,
			Value: WarmEvent{URL: url, File: filename, EmittedAt: time.Now().UTC()},
		})
		if err != nil {
			w.logger.Warn("cache warm dropped", "url", url, "error", err)
			if w.metrics != nil {
				w.metrics.CacheWarmsTotal.WithLabelValues("dropped").Inc()
			}
			return
		}
		if w.metrics != nil {
			w.metrics.CacheWarmsTotal.WithLabelValues("published").Inc()
		}
	}()
}
