package invoice

import (
	"time"

	"github.com/google/uuid"
)

// Status is the payment state of an invoice.
type Status string

const (
	StatusIssued Status = "issued"
	StatusPaid   Status = "paid"
)

// Invoice is the cleaner's bill for one completed job, paid by the platform at payout.
type Invoice struct {
	id        uuid.UUID
	number    string
	bookingID uuid.UUID
	hostID    uuid.UUID
	cleanerID uuid.UUID
	amount    int64
	currency  string
	status    Status
	issuedAt  time.Time
	paidAt    *time.Time
}

// NewInvoice issues an invoice numbered after the booking.
func NewInvoice(bookingID uuid.UUID, bookingNumber string, hostID, cleanerID uuid.UUID, amount int64, currency string, now time.Time) *Invoice {
	return &Invoice{
		id:        uuid.New(),
		number:    "INV-" + bookingNumber,
		bookingID: bookingID,
		hostID:    hostID,
		cleanerID: cleanerID,
		amount:    amount,
		currency:  currency,
		status:    StatusIssued,
		issuedAt:  now,
	}
}

// Reconstruct rebuilds an Invoice from persistence.
func Reconstruct(id uuid.UUID, number string, bookingID, hostID, cleanerID uuid.UUID, amount int64, currency string,
	status Status, issuedAt time.Time, paidAt *time.Time) *Invoice {
	return &Invoice{
		id:        id,
		number:    number,
		bookingID: bookingID,
		hostID:    hostID,
		cleanerID: cleanerID,
		amount:    amount,
		currency:  currency,
		status:    status,
		issuedAt:  issuedAt,
		paidAt:    paidAt,
	}
}

func (i *Invoice) ID() uuid.UUID        { return i.id }
func (i *Invoice) Number() string       { return i.number }
func (i *Invoice) BookingID() uuid.UUID { return i.bookingID }
func (i *Invoice) HostID() uuid.UUID    { return i.hostID }
func (i *Invoice) CleanerID() uuid.UUID { return i.cleanerID }
func (i *Invoice) Amount() int64        { return i.amount }
func (i *Invoice) Currency() string     { return i.currency }
func (i *Invoice) Status() Status       { return i.status }
func (i *Invoice) IssuedAt() time.Time  { return i.issuedAt }
func (i *Invoice) PaidAt() *time.Time   { return i.paidAt }
