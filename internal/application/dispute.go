package application

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	bookingDomain "github.com/cleanmatch/service-booking/internal/domain/booking"
)

// SubmitComplaintRequest is the host's objection to a completed job.
type SubmitComplaintRequest struct {
	Description    string   `json:"description" binding:"required"`
	EvidencePhotos []string `json:"evidence_photos"`
}

// ResolveDisputeRequest is the admin's decision on a disputed booking.
type ResolveDisputeRequest struct {
	Outcome bookingDomain.DisputeOutcome `json:"outcome" binding:"required,oneof=release refund"`
	Note    string                       `json:"note"`
}

// SubmitComplaint moves a completed booking to disputed while the review period is open.
func (s *BookingService) SubmitComplaint(ctx context.Context, actor Actor, bookingID uuid.UUID, req SubmitComplaintRequest) (BookingResponse, error) {
	bk, err := s.mutate(ctx, bookingID, func(ctx context.Context, bk *bookingDomain.Booking) error {
		if _, err := s.resolveParty(actor, bk, bookingDomain.PartyHost); err != nil {
			return err
		}
		return bk.SubmitComplaint(req.Description, req.EvidencePhotos, s.now())
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("complaint submitted", zap.String("booking_id", bk.ID().String()))
	s.notify(ctx, bk, bk.CleanerUserID(), bookingDomain.NotifyComplaintFiled,
		"Complaint filed",
		fmt.Sprintf("The host filed a complaint about booking %s. Payout is on hold until it is resolved.", bk.BookingNumber()))
	return s.render(ctx, bk, actor), nil
}

// ResolveDispute closes a dispute. Release returns the booking to completed so the
// payout gate can pass; refund returns the full amount to the host first.
func (s *BookingService) ResolveDispute(ctx context.Context, actor Actor, bookingID uuid.UUID, req ResolveDisputeRequest) (BookingResponse, error) {
	var bk *bookingDomain.Booking
	err := s.withLock(ctx, bookingLockKey(bookingID), func(ctx context.Context) error {
		var err error
		bk, err = s.repo.FindByID(ctx, bookingID)
		if err != nil {
			return err
		}
		if _, err := s.resolveParty(actor, bk, bookingDomain.PartyAdmin); err != nil {
			return err
		}
		if err := bk.EnsureDisputeResolvable(req.Outcome); err != nil {
			return err
		}

		var refundID string
		if req.Outcome == bookingDomain.OutcomeRefund && bk.Payment().IsPaid {
			if refundID, err = s.refund(ctx, bk, "dispute resolved in host's favour", "dispute-refund"); err != nil {
				return err
			}
		}
		if err := bk.ResolveDispute(req.Outcome, req.Note, refundID, s.now()); err != nil {
			return err
		}
		bk.IncrementVersion()
		if err := s.repo.Update(ctx, bk); err != nil {
			if refundID != "" {
				return s.reconciliationFailure(bk, "dispute-refund", writeStep("booking", err))
			}
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("dispute resolved",
		zap.String("booking_id", bk.ID().String()),
		zap.String("outcome", string(req.Outcome)),
	)
	msg := fmt.Sprintf("The complaint on booking %s was resolved: %s.", bk.BookingNumber(), req.Outcome)
	s.notify(ctx, bk, bk.HostUserID(), bookingDomain.NotifyDisputeResolved, "Dispute resolved", msg)
	s.notify(ctx, bk, bk.CleanerUserID(), bookingDomain.NotifyDisputeResolved, "Dispute resolved", msg)
	return s.render(ctx, bk, actor), nil
}
