package application

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	bookingDomain "github.com/cleanmatch/service-booking/internal/domain/booking"
	"github.com/cleanmatch/service-booking/internal/domain/invoice"
	"github.com/cleanmatch/service-booking/internal/domain/listing"
	"github.com/cleanmatch/service-booking/internal/domain/photo"
	"github.com/cleanmatch/service-booking/internal/domain/profile"
	"github.com/cleanmatch/service-booking/internal/domain/rating"
	"github.com/cleanmatch/service-booking/internal/platform/auth"
	"github.com/cleanmatch/service-booking/internal/platform/database"
	"github.com/cleanmatch/service-booking/internal/platform/domain"
	"github.com/cleanmatch/service-booking/internal/platform/lock"
)

const defaultLockTTL = 10 * time.Second

// CreateBookingRequest holds the data needed to book a cleaner for a listing.
type CreateBookingRequest struct {
	ListingID uuid.UUID `json:"listing_id" binding:"required"`
	CleanerID uuid.UUID `json:"cleaner_id" binding:"required"`
	Date      time.Time `json:"date" binding:"required"`
	StartTime string    `json:"start_time" binding:"required"`
	EndTime   string    `json:"end_time" binding:"required"`
}

// BookingServiceDeps lists the collaborators of BookingService.
type BookingServiceDeps struct {
	Bookings bookingDomain.BookingRepository
	Listings listing.Repository
	Profiles profile.Repository
	Invoices invoice.Repository
	Photos   photo.PhotoRepository
	Ledger   bookingDomain.AvailabilityLedger
	Payments bookingDomain.PaymentGateway
	Notifier bookingDomain.NotificationDispatcher
	Ratings  rating.Aggregator
	Tx       database.Transactor
	Locker   lock.Locker
	LockTTL  time.Duration
	Logger   *zap.Logger
	// Clock defaults to time.Now in UTC.
	Clock func() time.Time
}

// BookingService is the application service orchestrating booking use cases.
// Every transition of one booking runs under that booking's lock and persists
// its writes in one transaction with the booking row written last.
type BookingService struct {
	repo     bookingDomain.BookingRepository
	listings listing.Repository
	profiles profile.Repository
	invoices invoice.Repository
	photos   photo.PhotoRepository
	ledger   bookingDomain.AvailabilityLedger
	payments bookingDomain.PaymentGateway
	notifier bookingDomain.NotificationDispatcher
	ratings  rating.Aggregator
	tx       database.Transactor
	locker   lock.Locker
	lockTTL  time.Duration
	now      func() time.Time
	logger   *zap.Logger
}

// NewBookingService creates a new BookingService.
func NewBookingService(d BookingServiceDeps) *BookingService {
	s := &BookingService{
		repo:     d.Bookings,
		listings: d.Listings,
		profiles: d.Profiles,
		invoices: d.Invoices,
		photos:   d.Photos,
		ledger:   d.Ledger,
		payments: d.Payments,
		notifier: d.Notifier,
		ratings:  d.Ratings,
		tx:       d.Tx,
		locker:   d.Locker,
		lockTTL:  d.LockTTL,
		now:      d.Clock,
		logger:   d.Logger,
	}
	if s.lockTTL <= 0 {
		s.lockTTL = defaultLockTTL
	}
	if s.now == nil {
		s.now = func() time.Time { return time.Now().UTC() }
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	return s
}

// CreateBooking books the cleaner for the host's listing. Payment authorization is
// attempted once the booking exists; its failure leaves the booking pending.
func (s *BookingService) CreateBooking(ctx context.Context, actor Actor, req CreateBookingRequest) (BookingResponse, error) {
	if actor.Role != auth.RoleHost {
		return nil, domain.NewForbiddenError("only hosts can create bookings")
	}
	host, err := s.profiles.FindHostByUserID(ctx, actor.UserID)
	if err != nil {
		return nil, err
	}

	var bk *bookingDomain.Booking
	err = s.withLock(ctx, listingLockKey(req.ListingID), func(ctx context.Context) error {
		l, err := s.listings.FindByID(ctx, req.ListingID)
		if err != nil {
			return err
		}
		if err := l.EnsureBookable(host.ID(), req.CleanerID); err != nil {
			return err
		}
		cleaner, err := s.profiles.FindCleanerByID(ctx, req.CleanerID)
		if err != nil {
			return err
		}

		pricing := l.Pricing()
		bk, err = bookingDomain.NewBooking(bookingDomain.NewBookingParams{
			ListingID:     l.ID(),
			HostID:        host.ID(),
			HostUserID:    host.UserID(),
			CleanerID:     cleaner.ID(),
			CleanerUserID: cleaner.UserID(),
			Schedule: bookingDomain.Schedule{
				Date:      calendarDate(req.Date),
				StartTime: req.StartTime,
				EndTime:   req.EndTime,
			},
			Services:      l.Services(),
			Amount:        pricing.TotalAmount,
			PlatformFee:   pricing.Commission,
			CleanerPayout: pricing.BaseAmount,
			Currency:      pricing.Currency,
		}, s.now())
		if err != nil {
			return err
		}

		return s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
			if err := s.ledger.SetListingStatus(ctx, l.ID(), string(listing.StatusBooked)); err != nil {
				return fmt.Errorf("failed to mark listing booked: %w", err)
			}
			if err := s.ledger.AddCleanerCommitment(ctx, cleaner.ID(), bk.ID(), bk.Schedule().Date); err != nil {
				return fmt.Errorf("failed to add cleaner commitment: %w", err)
			}
			if err := s.repo.Save(ctx, bk); err != nil {
				return fmt.Errorf("failed to save booking: %w", err)
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("booking created",
		zap.String("booking_id", bk.ID().String()),
		zap.String("booking_number", bk.BookingNumber()),
		zap.String("listing_id", bk.ListingID().String()),
	)

	if host.HasPaymentProfile() {
		s.authorizePaymentBestEffort(ctx, bk, host)
	}

	s.notify(ctx, bk, bk.CleanerUserID(), bookingDomain.NotifyBookingRequested,
		"New booking request",
		fmt.Sprintf("You have been booked for %s on %s.", bk.BookingNumber(), bk.Schedule().Date.Format(time.DateOnly)))

	return SelectBookingView(bk, actor.audience(), Contacts{}), nil
}

// authorizePaymentBestEffort charges the host right after creation. Failures are
// logged and the booking stays pending without a payment intent.
func (s *BookingService) authorizePaymentBestEffort(ctx context.Context, bk *bookingDomain.Booking, host *profile.Host) {
	err := s.withLock(ctx, bookingLockKey(bk.ID()), func(ctx context.Context) error {
		paymentID, err := s.authorize(ctx, bk, host.PaymentCustomerRef(), "authorize")
		if err != nil {
			return err
		}
		bk.AttachPaymentIntent(paymentID, s.now())
		bk.IncrementVersion()
		return s.repo.Update(ctx, bk)
	})
	if err != nil {
		s.logger.Warn("payment authorization after booking creation failed",
			zap.String("booking_id", bk.ID().String()),
			zap.Error(err),
		)
	}
}

// authorize asks the provider for a payment intent. step names the idempotency
// key so a retry on confirm is not answered with the decline from creation.
func (s *BookingService) authorize(ctx context.Context, bk *bookingDomain.Booking, payerRef, step string) (string, error) {
	p := bk.Payment()
	paymentID, err := s.payments.Authorize(ctx, bookingDomain.AuthorizeRequest{
		Amount:   p.Amount,
		Currency: p.Currency,
		PayerRef: payerRef,
		Metadata: map[string]string{
			"booking_id":     bk.ID().String(),
			"booking_number": bk.BookingNumber(),
		},
		IdempotencyKey: idempotencyKey(bk.ID(), step),
	})
	if err != nil {
		return "", domain.NewPaymentError("authorize", err)
	}
	if paymentID == "" {
		return "", domain.NewPaymentError("authorize", errors.New("provider returned no payment ID"))
	}
	return paymentID, nil
}

// ConfirmPayment transitions pending -> confirmed. When no payment was authorized
// yet it authorizes now and fails without changing the booking if that fails.
func (s *BookingService) ConfirmPayment(ctx context.Context, actor Actor, bookingID uuid.UUID) (BookingResponse, error) {
	var bk *bookingDomain.Booking
	err := s.withLock(ctx, bookingLockKey(bookingID), func(ctx context.Context) error {
		var err error
		bk, err = s.repo.FindByID(ctx, bookingID)
		if err != nil {
			return err
		}
		if _, err := s.resolveParty(actor, bk, bookingDomain.PartyHost, bookingDomain.PartyAdmin); err != nil {
			return err
		}
		if err := bk.EnsurePayable(); err != nil {
			return err
		}
		paymentID := bk.Payment().ProviderPaymentID
		if paymentID == "" {
			host, err := s.profiles.FindHostByID(ctx, bk.HostID())
			if err != nil {
				return err
			}
			if !host.HasPaymentProfile() {
				return domain.NewPreconditionError("host has no payment method on file")
			}
			if paymentID, err = s.authorize(ctx, bk, host.PaymentCustomerRef(), "confirm-authorize"); err != nil {
				return err
			}
		}
		if err := bk.ConfirmPayment(paymentID, s.now()); err != nil {
			return err
		}
		bk.IncrementVersion()
		return s.repo.Update(ctx, bk)
	})
	if err != nil {
		return nil, err
	}

	s.afterPaymentConfirmed(ctx, bk)
	return s.render(ctx, bk, actor), nil
}

// ConfirmPaymentFromProvider applies a provider's payment success callback.
// Replaying the callback for an already paid booking is a no-op.
func (s *BookingService) ConfirmPaymentFromProvider(ctx context.Context, bookingID uuid.UUID, providerPaymentID string) error {
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
		if _, err := s.resolveParty(SystemActor(), bk, bookingDomain.PartySystem); err != nil {
			return err
		}
		if bk.Payment().IsPaid {
			return nil
		}
		if err := bk.ConfirmPayment(providerPaymentID, s.now()); err != nil {
			return err
		}
		bk.IncrementVersion()
		if err := s.repo.Update(ctx, bk); err != nil {
			return err
		}
		applied = true
		return nil
	})
	if err != nil {
		return err
	}
	if !applied {
		s.logger.Info("payment callback already applied", zap.String("booking_id", bookingID.String()))
		return nil
	}

	s.afterPaymentConfirmed(ctx, bk)
	return nil
}

func (s *BookingService) afterPaymentConfirmed(ctx context.Context, bk *bookingDomain.Booking) {
	s.logger.Info("booking payment confirmed", zap.String("booking_id", bk.ID().String()))
	msg := fmt.Sprintf("Payment for booking %s has been received.", bk.BookingNumber())
	s.notify(ctx, bk, bk.HostUserID(), bookingDomain.NotifyPaymentConfirmed, "Payment confirmed", msg)
	s.notify(ctx, bk, bk.CleanerUserID(), bookingDomain.NotifyPaymentConfirmed, "Payment confirmed", msg)
}

// AcceptBooking records the cleaner's commitment on a pending booking.
func (s *BookingService) AcceptBooking(ctx context.Context, actor Actor, bookingID uuid.UUID) (BookingResponse, error) {
	bk, err := s.mutate(ctx, bookingID, func(ctx context.Context, bk *bookingDomain.Booking) error {
		if _, err := s.resolveParty(actor, bk, bookingDomain.PartyCleaner); err != nil {
			return err
		}
		return bk.AcceptByCleaner(s.now())
	})
	if err != nil {
		return nil, err
	}

	s.notify(ctx, bk, bk.HostUserID(), bookingDomain.NotifyBookingAccepted,
		"Booking accepted", fmt.Sprintf("Your cleaner accepted booking %s.", bk.BookingNumber()))
	return s.render(ctx, bk, actor), nil
}

// RejectBooking transitions pending -> rejected and frees the listing and the cleaner.
func (s *BookingService) RejectBooking(ctx context.Context, actor Actor, bookingID uuid.UUID, reason string) (BookingResponse, error) {
	var bk *bookingDomain.Booking
	err := s.withLock(ctx, bookingLockKey(bookingID), func(ctx context.Context) error {
		var err error
		bk, err = s.repo.FindByID(ctx, bookingID)
		if err != nil {
			return err
		}
		if _, err := s.resolveParty(actor, bk, bookingDomain.PartyCleaner); err != nil {
			return err
		}
		if err := bk.Reject(reason, s.now()); err != nil {
			return err
		}
		return s.releaseAvailability(ctx, bk)
	})
	if err != nil {
		return nil, err
	}

	s.notify(ctx, bk, bk.HostUserID(), bookingDomain.NotifyBookingRejected,
		"Booking rejected", fmt.Sprintf("Booking %s was rejected: %s", bk.BookingNumber(), bk.Cancellation().Reason))
	return s.render(ctx, bk, actor), nil
}

// releaseAvailability republishes the listing, drops the cleaner's commitment and
// persists bk in one transaction.
func (s *BookingService) releaseAvailability(ctx context.Context, bk *bookingDomain.Booking) error {
	return s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		if err := s.ledger.SetListingStatus(ctx, bk.ListingID(), string(listing.StatusPublished)); err != nil {
			return writeStep("listing", err)
		}
		if err := s.ledger.RemoveCleanerCommitment(ctx, bk.CleanerID(), bk.ID()); err != nil {
			return writeStep("cleaner_commitment", err)
		}
		bk.IncrementVersion()
		if err := s.repo.Update(ctx, bk); err != nil {
			return writeStep("booking", err)
		}
		return nil
	})
}

// MarkArrived transitions confirmed -> inProgress.
func (s *BookingService) MarkArrived(ctx context.Context, actor Actor, bookingID uuid.UUID, location *bookingDomain.GeoPoint) (BookingResponse, error) {
	bk, err := s.mutate(ctx, bookingID, func(ctx context.Context, bk *bookingDomain.Booking) error {
		if _, err := s.resolveParty(actor, bk, bookingDomain.PartyCleaner); err != nil {
			return err
		}
		return bk.MarkArrived(location, s.now())
	})
	if err != nil {
		return nil, err
	}

	s.notify(ctx, bk, bk.HostUserID(), bookingDomain.NotifyCleanerArrived,
		"Cleaner arrived", fmt.Sprintf("Your cleaner has arrived for booking %s.", bk.BookingNumber()))
	return s.render(ctx, bk, actor), nil
}

// ShareContactInfo lets the host reveal both parties' contact details. It cannot be undone.
func (s *BookingService) ShareContactInfo(ctx context.Context, actor Actor, bookingID uuid.UUID) (BookingResponse, error) {
	var wasShared bool
	bk, err := s.mutate(ctx, bookingID, func(ctx context.Context, bk *bookingDomain.Booking) error {
		if _, err := s.resolveParty(actor, bk, bookingDomain.PartyHost); err != nil {
			return err
		}
		wasShared = bk.ContactInfoShared()
		return bk.ShareContactInfo(s.now())
	})
	if err != nil {
		return nil, err
	}

	if !wasShared {
		s.notify(ctx, bk, bk.CleanerUserID(), bookingDomain.NotifyContactShared,
			"Contact details shared", fmt.Sprintf("The host shared contact details for booking %s.", bk.BookingNumber()))
	}
	return s.render(ctx, bk, actor), nil
}

// CancelBooking cancels a pending or confirmed booking. A paid booking is refunded
// in full first; if the refund fails nothing changes.
func (s *BookingService) CancelBooking(ctx context.Context, actor Actor, bookingID uuid.UUID, reason string) (BookingResponse, error) {
	var bk *bookingDomain.Booking
	err := s.withLock(ctx, bookingLockKey(bookingID), func(ctx context.Context) error {
		var err error
		bk, err = s.repo.FindByID(ctx, bookingID)
		if err != nil {
			return err
		}
		party, err := s.resolveParty(actor, bk, bookingDomain.PartyHost, bookingDomain.PartyCleaner, bookingDomain.PartyAdmin)
		if err != nil {
			return err
		}
		if err := bk.EnsureCancellable(reason); err != nil {
			return err
		}

		var refundID string
		if bk.Payment().IsPaid {
			if refundID, err = s.refund(ctx, bk, reason, "cancel-refund"); err != nil {
				return err
			}
		}
		if err := bk.Cancel(party, reason, refundID, s.now()); err != nil {
			return err
		}
		if err := s.releaseAvailability(ctx, bk); err != nil {
			if refundID != "" {
				return s.reconciliationFailure(bk, "cancel", err)
			}
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("booking cancelled",
		zap.String("booking_id", bk.ID().String()),
		zap.String("cancelled_by", string(bk.Cancellation().CancelledBy)),
	)
	msg := fmt.Sprintf("Booking %s was cancelled: %s", bk.BookingNumber(), bk.Cancellation().Reason)
	s.notify(ctx, bk, bk.HostUserID(), bookingDomain.NotifyBookingCancelled, "Booking cancelled", msg)
	s.notify(ctx, bk, bk.CleanerUserID(), bookingDomain.NotifyBookingCancelled, "Booking cancelled", msg)
	return s.render(ctx, bk, actor), nil
}

func (s *BookingService) refund(ctx context.Context, bk *bookingDomain.Booking, reason, transition string) (string, error) {
	p := bk.Payment()
	refundID, err := s.payments.Refund(ctx, bookingDomain.RefundRequest{
		ProviderPaymentID: p.ProviderPaymentID,
		Amount:            p.Amount,
		Reason:            reason,
		IdempotencyKey:    idempotencyKey(bk.ID(), transition),
	})
	if err != nil {
		return "", domain.NewPaymentError("refund", err)
	}
	if refundID == "" {
		return "", domain.NewPaymentError("refund", errors.New("provider returned no refund ID"))
	}
	return refundID, nil
}

// GetBooking returns the booking rendered for the caller. A due day-before
// reminder is sent on the way out; its failure never fails the read.
func (s *BookingService) GetBooking(ctx context.Context, actor Actor, bookingID uuid.UUID) (BookingResponse, error) {
	bk, err := s.repo.FindByID(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if _, err := s.resolveParty(actor, bk, bookingDomain.PartyHost, bookingDomain.PartyCleaner, bookingDomain.PartyAdmin); err != nil {
		return nil, err
	}
	if bk.NeedsReminder(s.now()) {
		s.sendReminder(ctx, bk.ID())
		if fresh, err := s.repo.FindByID(ctx, bookingID); err == nil {
			bk = fresh
		}
	}
	return s.render(ctx, bk, actor), nil
}

func (s *BookingService) sendReminder(ctx context.Context, bookingID uuid.UUID) {
	bk, err := s.mutate(ctx, bookingID, func(ctx context.Context, bk *bookingDomain.Booking) error {
		if !bk.NeedsReminder(s.now()) {
			return errReminderNotDue
		}
		bk.MarkReminderSent(s.now())
		return nil
	})
	if err != nil {
		if !errors.Is(err, errReminderNotDue) {
			s.logger.Warn("failed to record job reminder", zap.String("booking_id", bookingID.String()), zap.Error(err))
		}
		return
	}
	sched := bk.Schedule()
	msg := fmt.Sprintf("Booking %s is tomorrow from %s to %s.", bk.BookingNumber(), sched.StartTime, sched.EndTime)
	s.notify(ctx, bk, bk.HostUserID(), bookingDomain.NotifyJobReminder, "Job reminder", msg)
	s.notify(ctx, bk, bk.CleanerUserID(), bookingDomain.NotifyJobReminder, "Job reminder", msg)
}

var errReminderNotDue = errors.New("reminder not due")

// ListMyBookings returns the caller's bookings: as host, as cleaner, or all for admins.
func (s *BookingService) ListMyBookings(ctx context.Context, actor Actor, page, limit int) (*domain.PaginatedResult[BookingResponse], error) {
	var (
		bookings []*bookingDomain.Booking
		total    int64
		err      error
	)
	switch actor.Role {
	case auth.RoleHost:
		host, ferr := s.profiles.FindHostByUserID(ctx, actor.UserID)
		if ferr != nil {
			return nil, ferr
		}
		bookings, total, err = s.repo.FindByHostID(ctx, host.ID(), page, limit)
	case auth.RoleCleaner:
		cleaner, ferr := s.profiles.FindCleanerByUserID(ctx, actor.UserID)
		if ferr != nil {
			return nil, ferr
		}
		bookings, total, err = s.repo.FindByCleanerID(ctx, cleaner.ID(), page, limit)
	case auth.RoleAdmin:
		bookings, total, err = s.repo.ListAll(ctx, page, limit)
	default:
		return nil, domain.NewForbiddenError("unknown role")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to list bookings: %w", err)
	}

	views := make([]BookingResponse, len(bookings))
	for i, bk := range bookings {
		views[i] = SelectBookingView(bk, actor.audience(), Contacts{})
	}
	result := domain.NewPaginatedResult(views, total, page, limit)
	return &result, nil
}

// DeleteBooking removes an unpaid booking (admin) and undoes its side effects:
// the listing is republished, the cleaner released, invoices and photos dropped.
func (s *BookingService) DeleteBooking(ctx context.Context, actor Actor, bookingID uuid.UUID) error {
	return s.withLock(ctx, bookingLockKey(bookingID), func(ctx context.Context) error {
		bk, err := s.repo.FindByID(ctx, bookingID)
		if err != nil {
			return err
		}
		if _, err := s.resolveParty(actor, bk, bookingDomain.PartyAdmin); err != nil {
			return err
		}
		if err := bk.EnsureDeletable(); err != nil {
			return err
		}
		err = s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
			if !bk.Status().IsTerminal() {
				if err := s.ledger.SetListingStatus(ctx, bk.ListingID(), string(listing.StatusPublished)); err != nil {
					return fmt.Errorf("failed to republish listing: %w", err)
				}
			}
			if err := s.ledger.RemoveCleanerCommitment(ctx, bk.CleanerID(), bk.ID()); err != nil {
				return fmt.Errorf("failed to remove cleaner commitment: %w", err)
			}
			if err := s.invoices.DeleteByBookingID(ctx, bk.ID()); err != nil {
				return fmt.Errorf("failed to delete invoices: %w", err)
			}
			if err := s.photos.DeleteByBookingID(ctx, bk.ID()); err != nil {
				return fmt.Errorf("failed to delete photos: %w", err)
			}
			return s.repo.Delete(ctx, bk.ID())
		})
		if err != nil {
			return err
		}
		s.logger.Info("booking deleted", zap.String("booking_id", bk.ID().String()))
		return nil
	})
}

// --- Admin methods ---

// BookingStatsDTO holds booking statistics for the admin dashboard.
type BookingStatsDTO struct {
	TotalBookings int64            `json:"total_bookings"`
	ByStatus      map[string]int64 `json:"by_status"`
}

// GetBookingStats returns aggregate booking statistics (admin).
func (s *BookingService) GetBookingStats(ctx context.Context) (*BookingStatsDTO, error) {
	counts, err := s.repo.CountByStatus(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get booking stats: %w", err)
	}
	var total int64
	for _, c := range counts {
		total += c
	}
	return &BookingStatsDTO{
		TotalBookings: total,
		ByStatus:      counts,
	}, nil
}

// --- Helpers ---

// resolveParty maps the caller to its party on bk. Admins are never bound by
// ownership; state checks still apply to them.
func (s *BookingService) resolveParty(actor Actor, bk *bookingDomain.Booking, allowed ...bookingDomain.Party) (bookingDomain.Party, error) {
	var party bookingDomain.Party
	switch actor.Role {
	case auth.RoleAdmin:
		party = bookingDomain.PartyAdmin
	case roleSystem:
		party = bookingDomain.PartySystem
	case auth.RoleHost:
		if actor.UserID != bk.HostUserID() {
			return "", domain.NewForbiddenError("booking does not belong to this host")
		}
		party = bookingDomain.PartyHost
	case auth.RoleCleaner:
		if actor.UserID != bk.CleanerUserID() {
			return "", domain.NewForbiddenError("booking is not assigned to this cleaner")
		}
		party = bookingDomain.PartyCleaner
	default:
		return "", domain.NewForbiddenError("unknown role")
	}
	if !slices.Contains(allowed, party) {
		return "", domain.NewForbiddenError(fmt.Sprintf("%s cannot perform this action", party))
	}
	return party, nil
}

// withLock runs fn while holding the named lock.
func (s *BookingService) withLock(ctx context.Context, key string, fn func(ctx context.Context) error) error {
	release, err := s.locker.Acquire(ctx, key, s.lockTTL)
	if errors.Is(err, lock.ErrNotAcquired) {
		return domain.NewConflictError("booking is being modified by another request, please retry")
	}
	if err != nil {
		return fmt.Errorf("failed to acquire lock %s: %w", key, err)
	}
	defer func() {
		if err := release(context.WithoutCancel(ctx)); err != nil {
			s.logger.Warn("failed to release lock", zap.String("key", key), zap.Error(err))
		}
	}()
	return fn(ctx)
}

// mutate loads the booking under its lock, applies fn and persists the result.
func (s *BookingService) mutate(ctx context.Context, bookingID uuid.UUID, fn func(ctx context.Context, bk *bookingDomain.Booking) error) (*bookingDomain.Booking, error) {
	var bk *bookingDomain.Booking
	err := s.withLock(ctx, bookingLockKey(bookingID), func(ctx context.Context) error {
		var err error
		bk, err = s.repo.FindByID(ctx, bookingID)
		if err != nil {
			return err
		}
		if err := fn(ctx, bk); err != nil {
			return err
		}
		bk.IncrementVersion()
		return s.repo.Update(ctx, bk)
	})
	if err != nil {
		return nil, err
	}
	return bk, nil
}

// render selects the caller's view, loading contact details only when the view shows them.
func (s *BookingService) render(ctx context.Context, bk *bookingDomain.Booking, actor Actor) BookingResponse {
	audience := actor.audience()
	var contacts Contacts
	if bk.ContactInfoShared() || audience == AudienceAdmin {
		if audience != AudienceCleaner {
			if c, err := s.profiles.FindCleanerByID(ctx, bk.CleanerID()); err == nil {
				contact := c.Contact()
				contacts.Cleaner = &contact
			}
		}
		if audience != AudienceHost {
			if h, err := s.profiles.FindHostByID(ctx, bk.HostID()); err == nil {
				contact := h.Contact()
				contacts.Host = &contact
			}
		}
	}
	return SelectBookingView(bk, audience, contacts)
}

// notify delivers one notification. Failures are logged and swallowed.
func (s *BookingService) notify(ctx context.Context, bk *bookingDomain.Booking, recipient uuid.UUID, typ bookingDomain.NotificationType, title, message string) {
	err := s.notifier.Notify(ctx, bookingDomain.Notification{
		RecipientUserID: recipient,
		Type:            typ,
		Title:           title,
		Message:         message,
		RelatedEntity:   "booking",
		RelatedID:       bk.ID(),
	})
	if err != nil {
		s.logger.Warn("failed to send notification",
			zap.String("booking_id", bk.ID().String()),
			zap.String("type", string(typ)),
			zap.Error(err),
		)
	}
}

// writeStepError names the sub-write that failed inside a multi-write transition.
type writeStepError struct {
	step string
	err  error
}

func (e *writeStepError) Error() string { return e.step + ": " + e.err.Error() }
func (e *writeStepError) Unwrap() error { return e.err }

func writeStep(step string, err error) error {
	return &writeStepError{step: step, err: err}
}

// reconciliationFailure reports money that moved at the provider without the
// matching records being persisted.
func (s *BookingService) reconciliationFailure(bk *bookingDomain.Booking, transition string, err error) error {
	step := "unknown"
	var se *writeStepError
	if errors.As(err, &se) {
		step = se.step
	}
	p := bk.Payment()
	s.logger.Error("booking needs reconciliation",
		zap.String("booking_id", bk.ID().String()),
		zap.String("transition", transition),
		zap.String("sub_write", step),
		zap.String("provider_payment_id", p.ProviderPaymentID),
		zap.String("provider_transfer_id", p.ProviderTransferID),
		zap.String("refund_id", p.RefundID),
		zap.Error(err),
	)
	return domain.NewReconciliationError(bk.ID().String(), transition, step, err)
}

// calendarDate keeps the calendar day t names in its own offset, as midnight UTC.
func calendarDate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func bookingLockKey(id uuid.UUID) string { return "booking:" + id.String() }

func listingLockKey(id uuid.UUID) string { return "listing:" + id.String() }

// idempotencyKey makes provider calls for one transition of one booking safe to retry.
func idempotencyKey(bookingID uuid.UUID, transition string) string {
	return bookingID.String() + ":" + transition
}
