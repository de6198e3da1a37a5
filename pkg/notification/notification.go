// Package notification delivers workflow error notifications to subscribers.
package notification

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/dukex/operion-gateway/pkg/models"
	"github.com/dukex/operion-gateway/pkg/queue"
)

// DefaultTopic is where error notifications are published unless configured otherwise.
const DefaultTopic = "workflow-errors-notifications"

type Producer interface {
	Produce(ctx context.Context, payload any, opts ...queue.ProduceOption) (string, error)
}

// QueueNotifier publishes notifications to a topic consumed by the mailer.
type QueueNotifier struct {
	producer Producer
	topic    string
	logger   *slog.Logger
}

func NewQueueNotifier(producer Producer, topic string, logger *slog.Logger) *QueueNotifier {
	if topic == "" {
		topic = DefaultTopic
	}

	return &QueueNotifier{
		producer: producer,
		topic:    topic,
		logger:   logger.With("module", "notification"),
	}
}

func (n *QueueNotifier) NotifyWorkflowError(ctx context.Context, notification models.ErrorNotification) error {
	id, err := n.producer.Produce(ctx, notification, queue.WithQueue(n.topic))
	if err != nil {
		return fmt.Errorf("failed to publish error notification for workflow %s: %w", notification.WorkflowID, err)
	}

	n.logger.InfoContext(ctx, "Error notification published",
		"workflow_id", notification.WorkflowID,
		"topic", n.topic,
		"message_id", id,
		"subscribers", len(notification.WorkflowErrorsSubscribers),
	)

	return nil
}

// LogNotifier only logs notifications. Used when no notification topic is configured.
type LogNotifier struct {
	logger *slog.Logger
}

func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	return &LogNotifier{logger: logger.With("module", "notification")}
}

func (n *LogNotifier) NotifyWorkflowError(ctx context.Context, notification models.ErrorNotification) error {
	n.logger.WarnContext(ctx, "Workflow error",
		"workflow_id", notification.WorkflowID,
		"workflow_template", notification.WorkflowTemplateName,
		"gateway_template_id", notification.GatewayTemplateID,
		"subscribers", notification.WorkflowErrorsSubscribers,
		"error", notification.Error,
	)

	return nil
}
