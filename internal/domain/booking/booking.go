package booking

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/cleanmatch/service-booking/internal/platform/domain"
	"github.com/google/uuid"
)

const bookingNumberChars = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

// Booking is the aggregate root for the booking domain.
type Booking struct {
	id            uuid.UUID
	bookingNumber string
	listingID     uuid.UUID
	hostID        uuid.UUID
	hostUserID    uuid.UUID
	cleanerID     uuid.UUID
	cleanerUserID uuid.UUID
	status        BookingStatus
	schedule      Schedule
	checklist     Checklist
	payment       Payment

	contactInfoShared bool
	cleanerAcceptedAt *time.Time
	arrival           *Arrival
	complaint         *Complaint
	cancellation      *Cancellation

	taskCompletionConfirmed   bool
	taskCompletionConfirmedAt *time.Time
	completedBy               Party
	completionCounted         bool
	hostReviewPeriodEndsAt    *time.Time

	// hostRating is left by the cleaner about the host; cleanerRating by the host about the cleaner.
	hostRating    *Rating
	cleanerRating *Rating

	reminderSentAt *time.Time

	version   int64
	createdAt time.Time
	updatedAt time.Time
}

// NewBookingParams holds everything snapshotted when a booking is requested.
type NewBookingParams struct {
	ListingID     uuid.UUID
	HostID        uuid.UUID
	HostUserID    uuid.UUID
	CleanerID     uuid.UUID
	CleanerUserID uuid.UUID
	Schedule      Schedule
	Services      []string
	Amount        int64
	PlatformFee   int64
	CleanerPayout int64
	Currency      string
}

// generateBookingNumber creates a booking number in the format "CL-XXXXXX".
func generateBookingNumber() (string, error) {
	result := make([]byte, 6)
	for i := range result {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(len(bookingNumberChars))))
		if err != nil {
			return "", fmt.Errorf("failed to generate booking number: %w", err)
		}
		result[i] = bookingNumberChars[n.Int64()]
	}
	return "CL-" + string(result), nil
}

// NewBooking creates a new Booking aggregate with status=pending.
func NewBooking(p NewBookingParams, now time.Time) (*Booking, error) {
	if p.ListingID == uuid.Nil {
		return nil, domain.NewValidationError("listing ID is required")
	}
	if p.HostID == uuid.Nil || p.HostUserID == uuid.Nil {
		return nil, domain.NewValidationError("host is required")
	}
	if p.CleanerID == uuid.Nil || p.CleanerUserID == uuid.Nil {
		return nil, domain.NewValidationError("cleaner is required")
	}
	if err := validateSchedule(p.Schedule); err != nil {
		return nil, err
	}
	if len(p.Services) == 0 {
		return nil, domain.NewValidationError("listing has no services to perform")
	}
	if p.Amount <= 0 {
		return nil, domain.NewValidationError("amount must be positive")
	}
	if p.PlatformFee < 0 || p.CleanerPayout < 0 || p.PlatformFee+p.CleanerPayout != p.Amount {
		return nil, domain.NewValidationError("amount must equal platform fee plus cleaner payout")
	}
	if p.Currency == "" {
		return nil, domain.NewValidationError("currency is required")
	}

	bookingNumber, err := generateBookingNumber()
	if err != nil {
		return nil, err
	}

	return &Booking{
		id:            uuid.New(),
		bookingNumber: bookingNumber,
		listingID:     p.ListingID,
		hostID:        p.HostID,
		hostUserID:    p.HostUserID,
		cleanerID:     p.CleanerID,
		cleanerUserID: p.CleanerUserID,
		status:        StatusPending,
		schedule:      p.Schedule,
		checklist:     NewChecklist(p.Services),
		payment: Payment{
			Amount:        p.Amount,
			PlatformFee:   p.PlatformFee,
			CleanerPayout: p.CleanerPayout,
			Currency:      p.Currency,
		},
		version:   1,
		createdAt: now,
		updatedAt: now,
	}, nil
}

func validateSchedule(s Schedule) error {
	if s.Date.IsZero() {
		return domain.NewValidationError("scheduled date is required")
	}
	start, err := time.Parse("15:04", s.StartTime)
	if err != nil {
		return domain.NewValidationError("start time must be HH:MM")
	}
	end, err := time.Parse("15:04", s.EndTime)
	if err != nil {
		return domain.NewValidationError("end time must be HH:MM")
	}
	if !end.After(start) {
		return domain.NewValidationError("end time must be after start time")
	}
	return nil
}

// Snapshot carries every persisted field of a Booking.
type Snapshot struct {
	ID                        uuid.UUID
	BookingNumber             string
	ListingID                 uuid.UUID
	HostID                    uuid.UUID
	HostUserID                uuid.UUID
	CleanerID                 uuid.UUID
	CleanerUserID             uuid.UUID
	Status                    BookingStatus
	Schedule                  Schedule
	Checklist                 Checklist
	Payment                   Payment
	ContactInfoShared         bool
	CleanerAcceptedAt         *time.Time
	Arrival                   *Arrival
	Complaint                 *Complaint
	Cancellation              *Cancellation
	TaskCompletionConfirmed   bool
	TaskCompletionConfirmedAt *time.Time
	CompletedBy               Party
	CompletionCounted         bool
	HostReviewPeriodEndsAt    *time.Time
	HostRating                *Rating
	CleanerRating             *Rating
	ReminderSentAt            *time.Time
	Version                   int64
	CreatedAt                 time.Time
	UpdatedAt                 time.Time
}

// ReconstructBooking rebuilds a Booking from persistence data (no validation).
func ReconstructBooking(s Snapshot) *Booking {
	return &Booking{
		id:                        s.ID,
		bookingNumber:             s.BookingNumber,
		listingID:                 s.ListingID,
		hostID:                    s.HostID,
		hostUserID:                s.HostUserID,
		cleanerID:                 s.CleanerID,
		cleanerUserID:             s.CleanerUserID,
		status:                    s.Status,
		schedule:                  s.Schedule,
		checklist:                 s.Checklist,
		payment:                   s.Payment,
		contactInfoShared:         s.ContactInfoShared,
		cleanerAcceptedAt:         s.CleanerAcceptedAt,
		arrival:                   s.Arrival,
		complaint:                 s.Complaint,
		cancellation:              s.Cancellation,
		taskCompletionConfirmed:   s.TaskCompletionConfirmed,
		taskCompletionConfirmedAt: s.TaskCompletionConfirmedAt,
		completedBy:               s.CompletedBy,
		completionCounted:         s.CompletionCounted,
		hostReviewPeriodEndsAt:    s.HostReviewPeriodEndsAt,
		hostRating:                s.HostRating,
		cleanerRating:             s.CleanerRating,
		reminderSentAt:            s.ReminderSentAt,
		version:                   s.Version,
		createdAt:                 s.CreatedAt,
		updatedAt:                 s.UpdatedAt,
	}
}

// Snapshot returns a copy of every persisted field.
func (b *Booking) Snapshot() Snapshot {
	return Snapshot{
		ID:                        b.id,
		BookingNumber:             b.bookingNumber,
		ListingID:                 b.listingID,
		HostID:                    b.hostID,
		HostUserID:                b.hostUserID,
		CleanerID:                 b.cleanerID,
		CleanerUserID:             b.cleanerUserID,
		Status:                    b.status,
		Schedule:                  b.schedule,
		Checklist:                 b.checklist.clone(),
		Payment:                   b.payment,
		ContactInfoShared:         b.contactInfoShared,
		CleanerAcceptedAt:         clonePtr(b.cleanerAcceptedAt),
		Arrival:                   clonePtr(b.arrival),
		Complaint:                 clonePtr(b.complaint),
		Cancellation:              clonePtr(b.cancellation),
		TaskCompletionConfirmed:   b.taskCompletionConfirmed,
		TaskCompletionConfirmedAt: clonePtr(b.taskCompletionConfirmedAt),
		CompletedBy:               b.completedBy,
		CompletionCounted:         b.completionCounted,
		HostReviewPeriodEndsAt:    clonePtr(b.hostReviewPeriodEndsAt),
		HostRating:                clonePtr(b.hostRating),
		CleanerRating:             clonePtr(b.cleanerRating),
		ReminderSentAt:            clonePtr(b.reminderSentAt),
		Version:                   b.version,
		CreatedAt:                 b.createdAt,
		UpdatedAt:                 b.updatedAt,
	}
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

// --- Getters ---

// ID returns the booking's unique identifier.
func (b *Booking) ID() uuid.UUID { return b.id }

// BookingNumber returns the human-readable booking number.
func (b *Booking) BookingNumber() string { return b.bookingNumber }

// ListingID returns the listing this booking was made against.
func (b *Booking) ListingID() uuid.UUID { return b.listingID }

// HostID returns the host profile id.
func (b *Booking) HostID() uuid.UUID { return b.hostID }

// HostUserID returns the host's user id (notification recipient).
func (b *Booking) HostUserID() uuid.UUID { return b.hostUserID }

// CleanerID returns the cleaner profile id.
func (b *Booking) CleanerID() uuid.UUID { return b.cleanerID }

// CleanerUserID returns the cleaner's user id (notification recipient).
func (b *Booking) CleanerUserID() uuid.UUID { return b.cleanerUserID }

// Status returns the current booking status.
func (b *Booking) Status() BookingStatus { return b.status }

// Schedule returns when the job takes place.
func (b *Booking) Schedule() Schedule { return b.schedule }

// Checklist returns a copy of the task checklist.
func (b *Booking) Checklist() Checklist { return b.checklist.clone() }

// Payment returns the escrow record.
func (b *Booking) Payment() Payment { return b.payment }

// ContactInfoShared reports whether the host has shared contact details.
func (b *Booking) ContactInfoShared() bool { return b.contactInfoShared }

// CleanerAcceptedAt returns when the cleaner accepted, or nil.
func (b *Booking) CleanerAcceptedAt() *time.Time { return b.cleanerAcceptedAt }

// Arrival returns the cleaner's check-in, or nil.
func (b *Booking) Arrival() *Arrival { return b.arrival }

// Complaint returns the host's complaint, or nil.
func (b *Booking) Complaint() *Complaint { return b.complaint }

// Cancellation returns the cancellation or rejection record, or nil.
func (b *Booking) Cancellation() *Cancellation { return b.cancellation }

// TaskCompletionConfirmed reports whether completion was recorded.
func (b *Booking) TaskCompletionConfirmed() bool { return b.taskCompletionConfirmed }

// TaskCompletionConfirmedAt returns when the job was completed.
func (b *Booking) TaskCompletionConfirmedAt() *time.Time { return b.taskCompletionConfirmedAt }

// CompletedBy returns who completed the job.
func (b *Booking) CompletedBy() Party { return b.completedBy }

// CompletionCounted reports whether the cleaner's completed-job counter was incremented.
func (b *Booking) CompletionCounted() bool { return b.completionCounted }

// HostReviewPeriodEndsAt returns the end of the dispute window, or nil before completion.
func (b *Booking) HostReviewPeriodEndsAt() *time.Time { return b.hostReviewPeriodEndsAt }

// HostRating returns the cleaner's rating of the host, or nil.
func (b *Booking) HostRating() *Rating { return b.hostRating }

// CleanerRating returns the host's rating of the cleaner, or nil.
func (b *Booking) CleanerRating() *Rating { return b.cleanerRating }

// ReminderSentAt returns when the day-before reminder went out, or nil.
func (b *Booking) ReminderSentAt() *time.Time { return b.reminderSentAt }

// Version returns the entity version for optimistic locking.
func (b *Booking) Version() int64 { return b.version }

// CreatedAt returns the creation timestamp.
func (b *Booking) CreatedAt() time.Time { return b.createdAt }

// UpdatedAt returns the last-updated timestamp.
func (b *Booking) UpdatedAt() time.Time { return b.updatedAt }

// --- Behavior ---

// AttachPaymentIntent records the provider payment created at authorization.
func (b *Booking) AttachPaymentIntent(providerPaymentID string, now time.Time) {
	b.payment.ProviderPaymentID = providerPaymentID
	b.updatedAt = now
}

// EnsurePayable checks that payment can still be confirmed.
func (b *Booking) EnsurePayable() error {
	if b.payment.IsPaid {
		return domain.NewPreconditionError("payment is already marked as paid")
	}
	if !b.status.CanTransitionTo(StatusConfirmed) {
		return domain.NewInvalidStateError(string(b.status), string(StatusConfirmed))
	}
	return nil
}

// ConfirmPayment transitions pending -> confirmed once the provider reported success.
func (b *Booking) ConfirmPayment(providerPaymentID string, now time.Time) error {
	if err := b.EnsurePayable(); err != nil {
		return err
	}
	if providerPaymentID == "" {
		return domain.NewValidationError("provider payment ID is required")
	}
	b.payment.ProviderPaymentID = providerPaymentID
	b.payment.IsPaid = true
	b.payment.PaidAt = &now
	b.status = StatusConfirmed
	b.updatedAt = now
	return nil
}

// AcceptByCleaner records the cleaner's commitment on a pending booking. Repeating it is a no-op.
func (b *Booking) AcceptByCleaner(now time.Time) error {
	if b.status != StatusPending {
		return domain.NewPreconditionError(fmt.Sprintf("booking cannot be accepted while %s", b.status))
	}
	if b.cleanerAcceptedAt != nil {
		return nil
	}
	b.cleanerAcceptedAt = &now
	b.updatedAt = now
	return nil
}

// Reject transitions pending -> rejected on the cleaner's behalf.
func (b *Booking) Reject(reason string, now time.Time) error {
	if !b.status.CanTransitionTo(StatusRejected) {
		return domain.NewInvalidStateError(string(b.status), string(StatusRejected))
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return domain.NewValidationError("rejection reason is required")
	}
	b.status = StatusRejected
	b.cancellation = &Cancellation{CancelledBy: PartyCleaner, CancelledAt: now, Reason: reason}
	b.updatedAt = now
	return nil
}

// MarkArrived transitions confirmed -> inProgress.
func (b *Booking) MarkArrived(location *GeoPoint, now time.Time) error {
	if !b.status.CanTransitionTo(StatusInProgress) {
		return domain.NewInvalidStateError(string(b.status), string(StatusInProgress))
	}
	b.arrival = &Arrival{HasArrived: true, ArrivedAt: now, Location: location}
	b.status = StatusInProgress
	b.updatedAt = now
	return nil
}

// UpdateTasks patches the checklist and completes the booking when every task is done.
// It returns true when this call completed the booking.
func (b *Booking) UpdateTasks(updates []TaskUpdate, now time.Time) (bool, error) {
	if b.status != StatusInProgress {
		return false, domain.NewPreconditionError(fmt.Sprintf("tasks can only be updated while inProgress, booking is %s", b.status))
	}
	b.checklist.Apply(updates, now)
	b.updatedAt = now
	if !b.checklist.AllCompleted() {
		return false, nil
	}
	b.complete(PartyCleaner, now)
	return true, nil
}

// Complete finishes an inProgress booking explicitly. A cleaner completing the job
// also ticks any open tasks.
func (b *Booking) Complete(by Party, now time.Time) error {
	if b.status != StatusInProgress {
		return domain.NewInvalidStateError(string(b.status), string(StatusCompleted))
	}
	if by == PartyCleaner {
		b.checklist.CompleteRemaining(now)
	}
	b.complete(by, now)
	return nil
}

func (b *Booking) complete(by Party, now time.Time) {
	ends := now.Add(ReviewPeriod)
	b.status = StatusCompleted
	b.taskCompletionConfirmed = true
	b.taskCompletionConfirmedAt = &now
	b.completedBy = by
	b.hostReviewPeriodEndsAt = &ends
	b.updatedAt = now
}

// MarkCompletionCounted flips the completed-job latch. It returns false when the
// job was already counted, so callers increment the cleaner counter at most once.
func (b *Booking) MarkCompletionCounted() bool {
	if b.completionCounted || !b.taskCompletionConfirmed {
		return false
	}
	b.completionCounted = true
	return true
}

// ShareContactInfo sets the one-way contact sharing latch.
func (b *Booking) ShareContactInfo(now time.Time) error {
	if b.status != StatusConfirmed && b.status != StatusInProgress {
		return domain.NewPreconditionError(fmt.Sprintf("contact info cannot be shared while %s", b.status))
	}
	if b.contactInfoShared {
		return nil
	}
	b.contactInfoShared = true
	b.updatedAt = now
	return nil
}

// ReviewPeriodOpen reports whether the host can still dispute at now.
func (b *Booking) ReviewPeriodOpen(now time.Time) bool {
	return b.hostReviewPeriodEndsAt != nil && now.Before(*b.hostReviewPeriodEndsAt)
}

// SubmitComplaint transitions completed -> disputed.
func (b *Booking) SubmitComplaint(description string, evidencePhotos []string, now time.Time) error {
	if b.complaint != nil && b.complaint.IsSubmitted {
		return domain.NewPreconditionError("a complaint has already been submitted for this booking")
	}
	if !b.status.CanTransitionTo(StatusDisputed) {
		return domain.NewInvalidStateError(string(b.status), string(StatusDisputed))
	}
	if !b.ReviewPeriodOpen(now) {
		return domain.NewPreconditionError("the review period has expired")
	}
	description = strings.TrimSpace(description)
	if description == "" {
		return domain.NewValidationError("complaint description is required")
	}
	photos := make([]string, 0, len(evidencePhotos))
	for _, p := range evidencePhotos {
		if p = strings.TrimSpace(p); p != "" {
			photos = append(photos, p)
		}
	}
	b.complaint = &Complaint{
		IsSubmitted:    true,
		SubmittedAt:    now,
		Description:    description,
		EvidencePhotos: photos,
	}
	b.status = StatusDisputed
	b.updatedAt = now
	return nil
}

// EnsureCancellable validates a cancellation before any money moves.
func (b *Booking) EnsureCancellable(reason string) error {
	if !b.status.CanBeCancelled() {
		return domain.NewInvalidStateError(string(b.status), string(StatusCancelled))
	}
	if strings.TrimSpace(reason) == "" {
		return domain.NewValidationError("cancellation reason is required")
	}
	return nil
}

// Cancel transitions pending/confirmed -> cancelled. refundID is empty when nothing was paid.
func (b *Booking) Cancel(by Party, reason, refundID string, now time.Time) error {
	if err := b.EnsureCancellable(reason); err != nil {
		return err
	}
	if b.payment.IsPaid && refundID == "" {
		return domain.NewPreconditionError("a paid booking cannot be cancelled without a refund")
	}
	b.payment.RefundID = refundID
	b.cancellation = &Cancellation{CancelledBy: by, CancelledAt: now, Reason: strings.TrimSpace(reason)}
	b.status = StatusCancelled
	b.updatedAt = now
	return nil
}

// EvaluatePayout computes the payout gate at now.
func (b *Booking) EvaluatePayout(now time.Time) PayoutGate {
	return PayoutGate{
		StatusCompleted:     b.status == StatusCompleted,
		ReviewPeriodElapsed: b.hostReviewPeriodEndsAt != nil && !now.Before(*b.hostReviewPeriodEndsAt),
		PaymentCaptured:     b.payment.IsPaid,
		NotDisputed:         b.status != StatusDisputed,
		PayoutNotSent:       !b.payment.IsPayoutSent,
	}
}

// RecordPayout stores a successful transfer. The gate is re-checked so the flag
// can only be set while every condition holds.
func (b *Booking) RecordPayout(providerTransferID string, now time.Time) error {
	gate := b.EvaluatePayout(now)
	if !gate.Eligible() {
		return domain.NewPreconditionError("payout not allowed: " + gate.Reason())
	}
	if providerTransferID == "" {
		return domain.NewValidationError("provider transfer ID is required")
	}
	b.payment.IsPayoutSent = true
	b.payment.PayoutSentAt = &now
	b.payment.ProviderTransferID = providerTransferID
	b.updatedAt = now
	return nil
}

// Rate stores the rating left by a participant about the other one.
func (b *Booking) Rate(by Party, value int, comment string, now time.Time) error {
	if b.status != StatusCompleted {
		return domain.NewPreconditionError(fmt.Sprintf("booking can only be rated when completed, it is %s", b.status))
	}
	if value < 1 || value > 5 {
		return domain.NewValidationError("rating must be between 1 and 5")
	}
	r := &Rating{Value: value, Comment: strings.TrimSpace(comment), CreatedAt: now}
	switch by {
	case PartyHost:
		if b.cleanerRating != nil {
			return domain.NewPreconditionError("host has already rated this booking")
		}
		b.cleanerRating = r
	case PartyCleaner:
		if b.hostRating != nil {
			return domain.NewPreconditionError("cleaner has already rated this booking")
		}
		b.hostRating = r
	default:
		return domain.NewForbiddenError("only booking participants can rate")
	}
	b.updatedAt = now
	return nil
}

// EnsureDisputeResolvable validates an admin resolution before any money moves.
func (b *Booking) EnsureDisputeResolvable(outcome DisputeOutcome) error {
	if !outcome.IsValid() {
		return domain.NewValidationError(fmt.Sprintf("invalid dispute outcome: %s", outcome))
	}
	if b.status != StatusDisputed || b.complaint == nil {
		return domain.NewPreconditionError(fmt.Sprintf("booking is not disputed, it is %s", b.status))
	}
	return nil
}

// ResolveDispute closes the complaint: release returns to completed, refund ends in refunded.
func (b *Booking) ResolveDispute(outcome DisputeOutcome, note, refundID string, now time.Time) error {
	if err := b.EnsureDisputeResolvable(outcome); err != nil {
		return err
	}
	resolution := string(outcome)
	if note = strings.TrimSpace(note); note != "" {
		resolution += ": " + note
	}
	switch outcome {
	case OutcomeRelease:
		b.status = StatusCompleted
	case OutcomeRefund:
		if b.payment.IsPaid && refundID == "" {
			return domain.NewPreconditionError("refund outcome requires a refund")
		}
		b.payment.RefundID = refundID
		b.status = StatusRefunded
	}
	b.complaint.Resolution = resolution
	b.complaint.ResolvedAt = &now
	b.updatedAt = now
	return nil
}

// EnsureDeletable rejects deletion of a booking that holds money.
func (b *Booking) EnsureDeletable() error {
	if b.payment.IsPaid {
		return domain.NewPreconditionError("a paid booking cannot be deleted")
	}
	return nil
}

// NeedsReminder reports whether the day-before reminder is due at now.
func (b *Booking) NeedsReminder(now time.Time) bool {
	if b.status != StatusConfirmed || b.reminderSentAt != nil {
		return false
	}
	y1, m1, d1 := now.UTC().AddDate(0, 0, 1).Date()
	y2, m2, d2 := b.schedule.Date.UTC().Date()
	return y1 == y2 && m1 == m2 && d1 == d2
}

// MarkReminderSent sets the reminder latch.
func (b *Booking) MarkReminderSent(now time.Time) {
	b.reminderSentAt = &now
	b.updatedAt = now
}

// IsParticipant reports whether the profile id is the booking's host or cleaner.
func (b *Booking) IsParticipant(profileID uuid.UUID) bool {
	return profileID == b.hostID || profileID == b.cleanerID
}

// IncrementVersion bumps the version for optimistic locking.
func (b *Booking) IncrementVersion() {
	b.version++
}
