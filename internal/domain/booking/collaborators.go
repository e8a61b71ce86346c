package booking

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// AuthorizeRequest asks the provider to charge the host.
type AuthorizeRequest struct {
	Amount         int64
	Currency       string
	PayerRef       string
	Metadata       map[string]string
	IdempotencyKey string
}

// RefundRequest returns money to the host. A zero Amount refunds the full payment.
type RefundRequest struct {
	ProviderPaymentID string
	Amount            int64
	Reason            string
	IdempotencyKey    string
}

// TransferRequest pays the cleaner out of the platform balance.
type TransferRequest struct {
	Amount          int64
	Currency        string
	PayeeAccountRef string
	Metadata        map[string]string
	IdempotencyKey  string
}

// PaymentGateway moves money through the payment provider. Every failure,
// including timeouts, must be reported as an error.
type PaymentGateway interface {
	Authorize(ctx context.Context, req AuthorizeRequest) (providerPaymentID string, err error)
	Refund(ctx context.Context, req RefundRequest) (refundID string, err error)
	Transfer(ctx context.Context, req TransferRequest) (providerTransferID string, err error)
}

// AvailabilityLedger owns the listing's bookable status and the cleaner's schedule.
// Every method is idempotent.
type AvailabilityLedger interface {
	SetListingStatus(ctx context.Context, listingID uuid.UUID, status string) error
	AddCleanerCommitment(ctx context.Context, cleanerID, bookingID uuid.UUID, date time.Time) error
	RemoveCleanerCommitment(ctx context.Context, cleanerID, bookingID uuid.UUID) error
}

// NotificationType classifies a user-facing notification.
type NotificationType string

const (
	NotifyBookingRequested NotificationType = "booking_requested"
	NotifyPaymentConfirmed NotificationType = "payment_confirmed"
	NotifyBookingAccepted  NotificationType = "booking_accepted"
	NotifyBookingRejected  NotificationType = "booking_rejected"
	NotifyCleanerArrived   NotificationType = "cleaner_arrived"
	NotifyJobCompleted     NotificationType = "job_completed"
	NotifyComplaintFiled   NotificationType = "complaint_filed"
	NotifyBookingCancelled NotificationType = "booking_cancelled"
	NotifyPayoutSent       NotificationType = "payout_sent"
	NotifyRatingReceived   NotificationType = "rating_received"
	NotifyDisputeResolved  NotificationType = "dispute_resolved"
	NotifyJobReminder      NotificationType = "job_reminder"
	NotifyContactShared    NotificationType = "contact_shared"
)

// Notification is one message for one recipient.
type Notification struct {
	RecipientUserID uuid.UUID
	Type            NotificationType
	Title           string
	Message         string
	RelatedEntity   string
	RelatedID       uuid.UUID
}

// NotificationDispatcher delivers notifications. Delivery is best-effort.
type NotificationDispatcher interface {
	Notify(ctx context.Context, n Notification) error
}
