package events

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/cleanmatch/service-booking/internal/domain/booking"
	"github.com/cleanmatch/service-booking/internal/platform/kafka"
)

// EventPublisher writes a CloudEvent to a topic.
type EventPublisher interface {
	PublishEvent(ctx context.Context, topic string, event kafka.CloudEvent) error
}

// NotificationPublisher implements booking.NotificationDispatcher by publishing
// to the notification topic. The notification service handles delivery.
type NotificationPublisher struct {
	publisher EventPublisher
	logger    *zap.Logger
}

// NewNotificationPublisher creates a new NotificationPublisher.
func NewNotificationPublisher(publisher EventPublisher, logger *zap.Logger) *NotificationPublisher {
	return &NotificationPublisher{publisher: publisher, logger: logger}
}

// Notify publishes n as a "notification.<type>" event keyed by the recipient.
func (p *NotificationPublisher) Notify(ctx context.Context, n booking.Notification) error {
	evt, err := kafka.NewCloudEvent(eventSource, "notification."+string(n.Type), NotificationEvent{
		RecipientUserID: n.RecipientUserID,
		Type:            string(n.Type),
		Title:           n.Title,
		Message:         n.Message,
		RelatedEntity:   n.RelatedEntity,
		RelatedID:       n.RelatedID,
	})
	if err != nil {
		return fmt.Errorf("failed to build notification event: %w", err)
	}
	evt.Subject = n.RecipientUserID.String()

	if err := p.publisher.PublishEvent(ctx, TopicNotificationEvents, evt); err != nil {
		return fmt.Errorf("failed to publish notification: %w", err)
	}
	return nil
}
