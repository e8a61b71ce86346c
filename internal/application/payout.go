package application

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	bookingDomain "github.com/cleanmatch/service-booking/internal/domain/booking"
	"github.com/cleanmatch/service-booking/internal/platform/domain"
)

// ReconcilePayoutRequest records a transfer the provider made but the service failed to persist.
type ReconcilePayoutRequest struct {
	ProviderTransferID string `json:"provider_transfer_id" binding:"required"`
}

// ReleasePayout transfers the cleaner's share once the payout gate holds. The
// transfer uses a per-booking idempotency key so a retry after a failed write
// cannot pay twice.
func (s *BookingService) ReleasePayout(ctx context.Context, actor Actor, bookingID uuid.UUID) (BookingResponse, error) {
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

		gate := bk.EvaluatePayout(s.now())
		if !gate.Eligible() {
			s.logger.Warn("payout refused",
				zap.String("booking_id", bk.ID().String()),
				zap.Bool("status_completed", gate.StatusCompleted),
				zap.Bool("review_period_elapsed", gate.ReviewPeriodElapsed),
				zap.Bool("payment_captured", gate.PaymentCaptured),
				zap.Bool("not_disputed", gate.NotDisputed),
				zap.Bool("payout_not_sent", gate.PayoutNotSent),
			)
			return domain.NewPreconditionError("payout not allowed: " + gate.Reason())
		}

		cleaner, err := s.profiles.FindCleanerByID(ctx, bk.CleanerID())
		if err != nil {
			return err
		}
		if cleaner.PayoutAccountRef() == "" {
			return domain.NewPreconditionError("cleaner has no payout account on file")
		}

		p := bk.Payment()
		transferID, err := s.payments.Transfer(ctx, bookingDomain.TransferRequest{
			Amount:          p.CleanerPayout,
			Currency:        p.Currency,
			PayeeAccountRef: cleaner.PayoutAccountRef(),
			Metadata: map[string]string{
				"booking_id":     bk.ID().String(),
				"booking_number": bk.BookingNumber(),
			},
			IdempotencyKey: idempotencyKey(bk.ID(), "payout"),
		})
		if err != nil {
			return domain.NewPaymentError("transfer", err)
		}
		if transferID == "" {
			return domain.NewPaymentError("transfer", errors.New("provider returned no transfer ID"))
		}

		if err := s.applyPayout(ctx, bk, transferID); err != nil {
			return s.reconciliationFailure(bk, "payout", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.afterPayout(ctx, bk)
	return s.render(ctx, bk, actor), nil
}

// ReconcilePayout persists a payout whose transfer succeeded while the follow-up
// writes failed. It is a no-op when the payout is already recorded.
func (s *BookingService) ReconcilePayout(ctx context.Context, actor Actor, bookingID uuid.UUID, req ReconcilePayoutRequest) (BookingResponse, error) {
	var (
		bk      *bookingDomain.Booking
		applied bool
	)
	err := s.withLock(ctx, bookingLockKey(bookingID), func(ctx context.Context) error {
		var err error
		bk, err = s.repo.FindByID(ctx, bookingID)
		if err != nil {
			return err
		}
		if _, err := s.resolveParty(actor, bk, bookingDomain.PartyAdmin); err != nil {
			return err
		}
		if bk.Payment().IsPayoutSent {
			return nil
		}
		if err := s.applyPayout(ctx, bk, req.ProviderTransferID); err != nil {
			return err
		}
		applied = true
		return nil
	})
	if err != nil {
		return nil, err
	}

	if applied {
		s.logger.Info("payout reconciled", zap.String("booking_id", bk.ID().String()))
		s.afterPayout(ctx, bk)
	}
	return s.render(ctx, bk, actor), nil
}

// applyPayout records the transfer on the booking, credits the cleaner's earnings
// and marks the invoice paid in one transaction. The booking's version check makes
// a concurrent second application roll back the earnings credit.
func (s *BookingService) applyPayout(ctx context.Context, bk *bookingDomain.Booking, transferID string) error {
	now := s.now()
	if err := bk.RecordPayout(transferID, now); err != nil {
		return err
	}
	return s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		if err := s.profiles.AddEarnings(ctx, bk.CleanerID(), bk.Payment().CleanerPayout); err != nil {
			return writeStep("earnings", err)
		}
		if err := s.invoices.MarkPaidByBookingID(ctx, bk.ID(), now); err != nil {
			return writeStep("invoice", err)
		}
		bk.IncrementVersion()
		if err := s.repo.Update(ctx, bk); err != nil {
			return writeStep("booking", err)
		}
		return nil
	})
}

func (s *BookingService) afterPayout(ctx context.Context, bk *bookingDomain.Booking) {
	p := bk.Payment()
	s.logger.Info("payout released",
		zap.String("booking_id", bk.ID().String()),
		zap.Int64("amount", p.CleanerPayout),
		zap.String("provider_transfer_id", p.ProviderTransferID),
	)
	s.notify(ctx, bk, bk.CleanerUserID(), bookingDomain.NotifyPayoutSent,
		"Payout sent",
		fmt.Sprintf("%s %s for booking %s is on its way.", formatAmount(p.CleanerPayout), p.Currency, bk.BookingNumber()))
}

// formatAmount renders minor units as a decimal amount.
func formatAmount(minor int64) string {
	sign := ""
	if minor < 0 {
		sign = "-"
		minor = -minor
	}
	return fmt.Sprintf("%s%d.%02d", sign, minor/100, minor%100)
}
