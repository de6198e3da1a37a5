package cmd

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/dukex/operion-gateway/pkg/channels/gochannel"
	"github.com/dukex/operion-gateway/pkg/channels/kafka"
	"github.com/dukex/operion-gateway/pkg/queue"
)

// NewDialer returns the broker dialer of the event bus provider.
func NewDialer(provider string, kafkaConfig kafka.Config, logger *slog.Logger) (queue.Dialer, error) {
	switch provider {
	case "kafka":
		return kafka.Dialer(kafkaConfig, logger), nil
	case "gochannel":
		return gochannel.NewBroker(logger).Dial, nil
	default:
		return nil, fmt.Errorf("unsupported event bus provider: %s", provider)
	}
}

// NewIdempotencyStore returns a Redis store when redisURL is set and an in-memory one
// otherwise. The returned function releases the store.
func NewIdempotencyStore(ctx context.Context, logger *slog.Logger, redisURL, prefix string) (queue.IdempotencyStore, func() error, error) {
	if redisURL == "" {
		logger.WarnContext(ctx, "Redis is not configured, message markers are kept in memory")

		return queue.NewMemoryStore(), func() error { return nil }, nil
	}

	store, err := queue.NewRedisStoreFromURL(ctx, redisURL, prefix)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create redis idempotency store: %w", err)
	}

	return store, store.Close, nil
}
