package invoice

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Repository persists invoices. There is at most one invoice per booking and
// every write is idempotent.
type Repository interface {
	// Save inserts the invoice unless the booking already has one.
	Save(ctx context.Context, inv *Invoice) error
	FindByBookingID(ctx context.Context, bookingID uuid.UUID) (*Invoice, error)
	MarkPaidByBookingID(ctx context.Context, bookingID uuid.UUID, paidAt time.Time) error
	DeleteByBookingID(ctx context.Context, bookingID uuid.UUID) error
}
