package application

import (
	"time"

	"github.com/google/uuid"

	bookingDomain "github.com/cleanmatch/service-booking/internal/domain/booking"
	"github.com/cleanmatch/service-booking/internal/domain/profile"
)

// Audience is who a booking is rendered for.
type Audience string

const (
	AudienceHost    Audience = "host"
	AudienceCleaner Audience = "cleaner"
	AudienceAdmin   Audience = "admin"
)

// Contacts carries the participants' contact details when they were loaded.
type Contacts struct {
	Host    *profile.Contact
	Cleaner *profile.Contact
}

// BookingResponse is implemented by every booking view.
type BookingResponse interface {
	BookingID() uuid.UUID
}

// PaymentView is the payment summary every participant may see.
type PaymentView struct {
	Amount        int64      `json:"amount"`
	PlatformFee   int64      `json:"platform_fee"`
	CleanerPayout int64      `json:"cleaner_payout"`
	Currency      string     `json:"currency"`
	IsPaid        bool       `json:"is_paid"`
	PaidAt        *time.Time `json:"paid_at,omitempty"`
	IsPayoutSent  bool       `json:"is_payout_sent"`
	PayoutSentAt  *time.Time `json:"payout_sent_at,omitempty"`
	IsRefunded    bool       `json:"is_refunded"`
}

// BookingViewRedacted is a booking without contact details or provider references.
type BookingViewRedacted struct {
	ID                        uuid.UUID                    `json:"id"`
	BookingNumber             string                       `json:"booking_number"`
	ListingID                 uuid.UUID                    `json:"listing_id"`
	HostID                    uuid.UUID                    `json:"host_id"`
	CleanerID                 uuid.UUID                    `json:"cleaner_id"`
	Status                    string                       `json:"status"`
	Schedule                  bookingDomain.Schedule       `json:"date_scheduled"`
	TaskChecklist             []bookingDomain.Task         `json:"task_checklist"`
	Payment                   PaymentView                  `json:"payment"`
	ContactInfoShared         bool                         `json:"contact_info_shared"`
	CleanerAccepted           bool                         `json:"cleaner_accepted"`
	CleanerArrival            *bookingDomain.Arrival       `json:"cleaner_arrival,omitempty"`
	Complaint                 *bookingDomain.Complaint     `json:"complaint,omitempty"`
	Cancellation              *bookingDomain.Cancellation  `json:"cancellation,omitempty"`
	TaskCompletionConfirmed   bool                         `json:"task_completion_confirmed"`
	TaskCompletionConfirmedAt *time.Time                   `json:"task_completion_confirmed_at,omitempty"`
	CompletedBy               string                       `json:"completed_by,omitempty"`
	HostReviewPeriodEndsAt    *time.Time                   `json:"host_review_period_ends_at,omitempty"`
	HostRating                *bookingDomain.Rating        `json:"host_rating,omitempty"`
	CleanerRating             *bookingDomain.Rating        `json:"cleaner_rating,omitempty"`
	Version                   int64                        `json:"version"`
	CreatedAt                 time.Time                    `json:"created_at"`
	UpdatedAt                 time.Time                    `json:"updated_at"`
}

// BookingID implements BookingResponse.
func (v BookingViewRedacted) BookingID() uuid.UUID { return v.ID }

// BookingView is the unredacted booking: counterparty contact for participants once
// contact info is shared, and provider references for admins.
type BookingView struct {
	BookingViewRedacted
	HostContact        *profile.Contact `json:"host_contact,omitempty"`
	CleanerContact     *profile.Contact `json:"cleaner_contact,omitempty"`
	ProviderPaymentID  string           `json:"provider_payment_id,omitempty"`
	ProviderTransferID string           `json:"provider_transfer_id,omitempty"`
	RefundID           string           `json:"refund_id,omitempty"`
}

// SelectBookingView picks the view for audience. It is a pure function of its inputs.
func SelectBookingView(bk *bookingDomain.Booking, audience Audience, contacts Contacts) BookingResponse {
	redacted := toRedactedView(bk)
	switch audience {
	case AudienceAdmin:
		p := bk.Payment()
		return BookingView{
			BookingViewRedacted: redacted,
			HostContact:         contacts.Host,
			CleanerContact:      contacts.Cleaner,
			ProviderPaymentID:   p.ProviderPaymentID,
			ProviderTransferID:  p.ProviderTransferID,
			RefundID:            p.RefundID,
		}
	case AudienceHost:
		if bk.ContactInfoShared() {
			return BookingView{BookingViewRedacted: redacted, CleanerContact: contacts.Cleaner}
		}
	case AudienceCleaner:
		if bk.ContactInfoShared() {
			return BookingView{BookingViewRedacted: redacted, HostContact: contacts.Host}
		}
	}
	return redacted
}

func toRedactedView(bk *bookingDomain.Booking) BookingViewRedacted {
	p := bk.Payment()
	return BookingViewRedacted{
		ID:            bk.ID(),
		BookingNumber: bk.BookingNumber(),
		ListingID:     bk.ListingID(),
		HostID:        bk.HostID(),
		CleanerID:     bk.CleanerID(),
		Status:        string(bk.Status()),
		Schedule:      bk.Schedule(),
		TaskChecklist: bk.Checklist(),
		Payment: PaymentView{
			Amount:        p.Amount,
			PlatformFee:   p.PlatformFee,
			CleanerPayout: p.CleanerPayout,
			Currency:      p.Currency,
			IsPaid:        p.IsPaid,
			PaidAt:        p.PaidAt,
			IsPayoutSent:  p.IsPayoutSent,
			PayoutSentAt:  p.PayoutSentAt,
			IsRefunded:    p.RefundID != "",
		},
		ContactInfoShared:         bk.ContactInfoShared(),
		CleanerAccepted:           bk.CleanerAcceptedAt() != nil,
		CleanerArrival:            bk.Arrival(),
		Complaint:                 bk.Complaint(),
		Cancellation:              bk.Cancellation(),
		TaskCompletionConfirmed:   bk.TaskCompletionConfirmed(),
		TaskCompletionConfirmedAt: bk.TaskCompletionConfirmedAt(),
		CompletedBy:               string(bk.CompletedBy()),
		HostReviewPeriodEndsAt:    bk.HostReviewPeriodEndsAt(),
		HostRating:                bk.HostRating(),
		CleanerRating:             bk.CleanerRating(),
		Version:                   bk.Version(),
		CreatedAt:                 bk.CreatedAt(),
		UpdatedAt:                 bk.UpdatedAt(),
	}
}
