package events

import "github.com/google/uuid"

// Kafka topics.
const (
	TopicPaymentEvents      = "payment.events"
	TopicNotificationEvents = "notification.events"
)

// Payment provider event types.
const (
	PaymentSucceeded = "payment.succeeded"
	PaymentFailed    = "payment.failed"
)

const eventSource = "service-booking"

// PaymentSucceededEvent is published by the payment service once the host's charge settles.
type PaymentSucceededEvent struct {
	BookingID         uuid.UUID `json:"booking_id"`
	ProviderPaymentID string    `json:"provider_payment_id"`
	Amount            int64     `json:"amount"`
	Currency          string    `json:"currency"`
}

// PaymentFailedEvent reports a charge the provider declined.
type PaymentFailedEvent struct {
	BookingID         uuid.UUID `json:"booking_id"`
	ProviderPaymentID string    `json:"provider_payment_id"`
	Reason            string    `json:"reason"`
}

// NotificationEvent is the payload of every notification.* event.
type NotificationEvent struct {
	RecipientUserID uuid.UUID `json:"recipient_user_id"`
	Type            string    `json:"type"`
	Title           string    `json:"title"`
	Message         string    `json:"message"`
	RelatedEntity   string    `json:"related_entity"`
	RelatedID       uuid.UUID `json:"related_id"`
}
