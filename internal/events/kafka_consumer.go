package events

import (
	"context"
	"errors"

	"github.com/google/uuid"
	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/cleanmatch/service-booking/internal/platform/domain"
	"github.com/cleanmatch/service-booking/internal/platform/kafka"
)

// PaymentConfirmer marks a booking paid on behalf of the provider.
type PaymentConfirmer interface {
	ConfirmPaymentFromProvider(ctx context.Context, bookingID uuid.UUID, providerPaymentID string) error
}

// PaymentEventConsumer listens to payment events and confirms bookings.
type PaymentEventConsumer struct {
	consumer *kafka.Consumer
	service  PaymentConfirmer
	logger   *zap.Logger
}

// NewPaymentEventConsumer creates a new PaymentEventConsumer.
func NewPaymentEventConsumer(
	brokers []string,
	groupID string,
	service PaymentConfirmer,
	logger *zap.Logger,
) *PaymentEventConsumer {
	consumer := kafka.NewConsumer(brokers, groupID, TopicPaymentEvents, logger)
	return &PaymentEventConsumer{
		consumer: consumer,
		service:  service,
		logger:   logger,
	}
}

// Start begins consuming payment events. This blocks until the context is cancelled.
func (c *PaymentEventConsumer) Start(ctx context.Context) error {
	return c.consumer.Consume(ctx, c.handleMessage)
}

// Close closes the underlying Kafka consumer.
func (c *PaymentEventConsumer) Close() error {
	return c.consumer.Close()
}

func (c *PaymentEventConsumer) handleMessage(ctx context.Context, msg kafkago.Message) error {
	cloudEvent, err := kafka.ParseCloudEvent(msg.Value)
	if err != nil {
		c.logger.Error("failed to parse cloud event from payment topic",
			zap.Error(err),
			zap.String("raw", string(msg.Value)),
		)
		return nil // Don't retry malformed messages
	}

	switch cloudEvent.Type {
	case PaymentSucceeded:
		return c.handlePaymentSucceeded(ctx, cloudEvent)
	case PaymentFailed:
		return c.handlePaymentFailed(cloudEvent)
	default:
		c.logger.Debug("ignoring unhandled payment event type",
			zap.String("type", cloudEvent.Type),
		)
		return nil
	}
}

func (c *PaymentEventConsumer) handlePaymentSucceeded(ctx context.Context, cloudEvent kafka.CloudEvent) error {
	var evt PaymentSucceededEvent
	if err := cloudEvent.ParseData(&evt); err != nil {
		c.logger.Error("failed to parse PaymentSucceededEvent data", zap.Error(err))
		return nil
	}

	c.logger.Info("processing payment succeeded event",
		zap.String("booking_id", evt.BookingID.String()),
		zap.String("provider_payment_id", evt.ProviderPaymentID),
	)

	if err := c.service.ConfirmPaymentFromProvider(ctx, evt.BookingID, evt.ProviderPaymentID); err != nil {
		if domain.IsNotFound(err) || isPermanent(err) {
			c.logger.Warn("dropping payment event that cannot be applied",
				zap.String("booking_id", evt.BookingID.String()),
				zap.Error(err),
			)
			return nil
		}
		c.logger.Error("failed to confirm booking payment",
			zap.String("booking_id", evt.BookingID.String()),
			zap.Error(err),
		)
		return err
	}

	c.logger.Info("booking payment confirmed by provider",
		zap.String("booking_id", evt.BookingID.String()),
	)
	return nil
}

func (c *PaymentEventConsumer) handlePaymentFailed(cloudEvent kafka.CloudEvent) error {
	var evt PaymentFailedEvent
	if err := cloudEvent.ParseData(&evt); err != nil {
		c.logger.Error("failed to parse PaymentFailedEvent data", zap.Error(err))
		return nil
	}
	c.logger.Warn("payment failed at provider",
		zap.String("booking_id", evt.BookingID.String()),
		zap.String("provider_payment_id", evt.ProviderPaymentID),
		zap.String("reason", evt.Reason),
	)
	return nil
}

// isPermanent reports errors that redelivery cannot fix, such as a booking
// that was cancelled before the charge settled.
func isPermanent(err error) bool {
	var invalid *domain.InvalidStateError
	var validation *domain.ValidationError
	return errors.As(err, &invalid) || errors.As(err, &validation)
}
