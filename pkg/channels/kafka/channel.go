// Package kafka connects the queue client to Kafka through watermill.
package kafka

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/IBM/sarama"
	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill-kafka/v3/pkg/kafka"
	"github.com/dukex/operion-gateway/pkg/queue"
)

var ErrNoBrokers = errors.New("kafka brokers are not set")

type Config struct {
	Brokers     []string
	ServiceName string
	// ErrorsQueues adds a dedicated consumer group for the delay queues.
	ErrorsQueues bool
	OTELEnabled  bool
}

func (c Config) consumerGroup() string {
	return "cg-" + c.ServiceName
}

// Dialer returns a queue.Dialer opening a new Kafka publisher and subscribers on every call.
func Dialer(cfg Config, logger *slog.Logger) queue.Dialer {
	wmLogger := watermill.NewSlogLogger(logger)

	return func(_ context.Context) (*queue.Connection, error) {
		if len(cfg.Brokers) == 0 || cfg.Brokers[0] == "" {
			return nil, ErrNoBrokers
		}

		reader, err := newSubscriber(cfg, cfg.consumerGroup(), wmLogger)
		if err != nil {
			return nil, err
		}

		writer, err := newPublisher(cfg, wmLogger)
		if err != nil {
			_ = reader.Close()

			return nil, err
		}

		conn := &queue.Connection{
			Reader:              reader,
			Writer:              writer,
			SharedSubscriptions: true,
		}

		if cfg.ErrorsQueues {
			errorsReader, err := newSubscriber(cfg, cfg.consumerGroup()+"-errors", wmLogger)
			if err != nil {
				_ = conn.Close()

				return nil, err
			}

			conn.Errors = writer
			conn.ErrorsReader = errorsReader
		}

		return conn, nil
	}
}

func newSubscriber(cfg Config, consumerGroup string, logger watermill.LoggerAdapter) (*kafka.Subscriber, error) {
	saramaSubscriberConfig := kafka.DefaultSaramaSubscriberConfig()
	saramaSubscriberConfig.Consumer.Offsets.Initial = sarama.OffsetOldest

	subscriber, err := kafka.NewSubscriber(
		kafka.SubscriberConfig{
			Brokers:               cfg.Brokers,
			Unmarshaler:           kafka.DefaultMarshaler{},
			OverwriteSaramaConfig: saramaSubscriberConfig,
			ConsumerGroup:         consumerGroup,
			OTELEnabled:           cfg.OTELEnabled,
		},
		logger,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create kafka subscriber: %w", err)
	}

	return subscriber, nil
}

func newPublisher(cfg Config, logger watermill.LoggerAdapter) (*kafka.Publisher, error) {
	saramaPublisherConfig := sarama.NewConfig()
	saramaPublisherConfig.Producer.Return.Successes = true

	publisher, err := kafka.NewPublisher(
		kafka.PublisherConfig{
			Brokers:               cfg.Brokers,
			Marshaler:             kafka.DefaultMarshaler{},
			OverwriteSaramaConfig: saramaPublisherConfig,
			OTELEnabled:           cfg.OTELEnabled,
		},
		logger,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create kafka publisher: %w", err)
	}

	return publisher, nil
}
