package application

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	bookingDomain "github.com/cleanmatch/service-booking/internal/domain/booking"
	"github.com/cleanmatch/service-booking/internal/domain/invoice"
)

// UpdateTasksRequest patches the checklist. Unknown task IDs are ignored.
type UpdateTasksRequest struct {
	Tasks []bookingDomain.TaskUpdate `json:"tasks" binding:"required,dive"`
}

// UpdateTasks applies the cleaner's checklist changes. Completing the last task
// completes the booking and opens the host's review period.
func (s *BookingService) UpdateTasks(ctx context.Context, actor Actor, bookingID uuid.UUID, req UpdateTasksRequest) (BookingResponse, error) {
	var (
		bk        *bookingDomain.Booking
		completed bool
	)
	err := s.withLock(ctx, bookingLockKey(bookingID), func(ctx context.Context) error {
		var err error
		bk, err = s.repo.FindByID(ctx, bookingID)
		if err != nil {
			return err
		}
		if _, err := s.resolveParty(actor, bk, bookingDomain.PartyCleaner); err != nil {
			return err
		}
		completed, err = bk.UpdateTasks(req.Tasks, s.now())
		if err != nil {
			return err
		}
		return s.persistCompletion(ctx, bk)
	})
	if err != nil {
		return nil, err
	}

	if completed {
		s.afterCompletion(ctx, bk)
	}
	return s.render(ctx, bk, actor), nil
}

// CompleteBooking completes an inProgress booking explicitly.
func (s *BookingService) CompleteBooking(ctx context.Context, actor Actor, bookingID uuid.UUID) (BookingResponse, error) {
	var bk *bookingDomain.Booking
	err := s.withLock(ctx, bookingLockKey(bookingID), func(ctx context.Context) error {
		var err error
		bk, err = s.repo.FindByID(ctx, bookingID)
		if err != nil {
			return err
		}
		party, err := s.resolveParty(actor, bk, bookingDomain.PartyCleaner, bookingDomain.PartyHost, bookingDomain.PartyAdmin)
		if err != nil {
			return err
		}
		if err := bk.Complete(party, s.now()); err != nil {
			return err
		}
		return s.persistCompletion(ctx, bk)
	})
	if err != nil {
		return nil, err
	}

	s.afterCompletion(ctx, bk)
	return s.render(ctx, bk, actor), nil
}

// persistCompletion stores bk and, the first time the job counts as done, bumps
// the cleaner's job counter and issues the invoice in the same transaction.
func (s *BookingService) persistCompletion(ctx context.Context, bk *bookingDomain.Booking) error {
	return s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		if bk.MarkCompletionCounted() {
			if err := s.profiles.IncrementCompletedJobs(ctx, bk.CleanerID()); err != nil {
				return fmt.Errorf("failed to count completed job: %w", err)
			}
			p := bk.Payment()
			inv := invoice.NewInvoice(bk.ID(), bk.BookingNumber(), bk.HostID(), bk.CleanerID(), p.CleanerPayout, p.Currency, s.now())
			if err := s.invoices.Save(ctx, inv); err != nil {
				return fmt.Errorf("failed to issue invoice: %w", err)
			}
		}
		bk.IncrementVersion()
		return s.repo.Update(ctx, bk)
	})
}

func (s *BookingService) afterCompletion(ctx context.Context, bk *bookingDomain.Booking) {
	s.logger.Info("booking completed",
		zap.String("booking_id", bk.ID().String()),
		zap.String("completed_by", string(bk.CompletedBy())),
		zap.Timep("review_period_ends_at", bk.HostReviewPeriodEndsAt()),
	)
	s.notify(ctx, bk, bk.HostUserID(), bookingDomain.NotifyJobCompleted,
		"Job completed",
		fmt.Sprintf("Booking %s is complete. You can raise a complaint until %s.",
			bk.BookingNumber(), bk.HostReviewPeriodEndsAt().Format("2006-01-02 15:04 MST")))
}
