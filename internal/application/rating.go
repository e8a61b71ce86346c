package application

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	bookingDomain "github.com/cleanmatch/service-booking/internal/domain/booking"
	"github.com/cleanmatch/service-booking/internal/domain/profile"
	"github.com/cleanmatch/service-booking/internal/domain/rating"
	"github.com/cleanmatch/service-booking/internal/platform/domain"
)

// Rating aggregation strategies selectable by configuration.
const (
	RatingStrategyScan        = "scan"
	RatingStrategyIncremental = "incremental"
)

// RateBookingRequest is one participant's rating of the other.
type RateBookingRequest struct {
	Rating  int    `json:"rating" binding:"required,min=1,max=5"`
	Comment string `json:"comment"`
}

// RateBooking stores the caller's rating of the other participant and refreshes
// the rated profile's average in the same transaction.
func (s *BookingService) RateBooking(ctx context.Context, actor Actor, bookingID uuid.UUID, req RateBookingRequest) (BookingResponse, error) {
	var (
		bk     *bookingDomain.Booking
		target rating.Target
	)
	err := s.withLock(ctx, bookingLockKey(bookingID), func(ctx context.Context) error {
		var err error
		bk, err = s.repo.FindByID(ctx, bookingID)
		if err != nil {
			return err
		}
		party, err := s.resolveParty(actor, bk, bookingDomain.PartyHost, bookingDomain.PartyCleaner)
		if err != nil {
			return err
		}
		if err := bk.Rate(party, req.Rating, req.Comment, s.now()); err != nil {
			return err
		}
		target = ratingTarget(bk, party)

		return s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
			bk.IncrementVersion()
			if err := s.repo.Update(ctx, bk); err != nil {
				return err
			}
			summary, err := s.ratings.RecomputeAverage(ctx, target, req.Rating)
			if err != nil {
				return fmt.Errorf("failed to update %s rating: %w", target.Party, err)
			}
			s.logger.Info("rating recorded",
				zap.String("booking_id", bk.ID().String()),
				zap.String("rated", string(target.Party)),
				zap.Float64("average", summary.Average),
				zap.Int("count", summary.Count),
			)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	recipient := bk.CleanerUserID()
	if target.Party == bookingDomain.PartyHost {
		recipient = bk.HostUserID()
	}
	s.notify(ctx, bk, recipient, bookingDomain.NotifyRatingReceived,
		"New rating", fmt.Sprintf("You received a %d-star rating for booking %s.", req.Rating, bk.BookingNumber()))
	return s.render(ctx, bk, actor), nil
}

// ratingTarget is the party rated by rater: hosts rate cleaners and vice versa.
func ratingTarget(bk *bookingDomain.Booking, rater bookingDomain.Party) rating.Target {
	if rater == bookingDomain.PartyHost {
		return rating.Target{Party: bookingDomain.PartyCleaner, ProfileID: bk.CleanerID()}
	}
	return rating.Target{Party: bookingDomain.PartyHost, ProfileID: bk.HostID()}
}

// ScanAggregator recomputes an average from every rating the profile received.
type ScanAggregator struct {
	bookings bookingDomain.BookingRepository
	profiles profile.Repository
}

// NewScanAggregator creates a new ScanAggregator.
func NewScanAggregator(bookings bookingDomain.BookingRepository, profiles profile.Repository) *ScanAggregator {
	return &ScanAggregator{bookings: bookings, profiles: profiles}
}

// RecomputeAverage implements rating.Aggregator.
func (a *ScanAggregator) RecomputeAverage(ctx context.Context, target rating.Target, _ int) (profile.RatingSummary, error) {
	values, err := a.bookings.ReceivedRatings(ctx, target.Party, target.ProfileID)
	if err != nil {
		return profile.RatingSummary{}, err
	}
	summary := rating.Summarize(values)
	switch target.Party {
	case bookingDomain.PartyHost:
		err = a.profiles.SetHostRating(ctx, target.ProfileID, summary)
	case bookingDomain.PartyCleaner:
		err = a.profiles.SetCleanerRating(ctx, target.ProfileID, summary)
	default:
		err = domain.NewValidationError(fmt.Sprintf("%s cannot be rated", target.Party))
	}
	if err != nil {
		return profile.RatingSummary{}, err
	}
	return summary, nil
}

// IncrementalAggregator folds the newest value into the stored sum and count.
type IncrementalAggregator struct {
	profiles profile.Repository
}

// NewIncrementalAggregator creates a new IncrementalAggregator.
func NewIncrementalAggregator(profiles profile.Repository) *IncrementalAggregator {
	return &IncrementalAggregator{profiles: profiles}
}

// RecomputeAverage implements rating.Aggregator.
func (a *IncrementalAggregator) RecomputeAverage(ctx context.Context, target rating.Target, latest int) (profile.RatingSummary, error) {
	switch target.Party {
	case bookingDomain.PartyHost:
		return a.profiles.AddHostRating(ctx, target.ProfileID, latest)
	case bookingDomain.PartyCleaner:
		return a.profiles.AddCleanerRating(ctx, target.ProfileID, latest)
	}
	return profile.RatingSummary{}, domain.NewValidationError(fmt.Sprintf("%s cannot be rated", target.Party))
}

// NewRatingAggregator returns the aggregator configured by strategy.
func NewRatingAggregator(strategy string, bookings bookingDomain.BookingRepository, profiles profile.Repository) (rating.Aggregator, error) {
	switch strategy {
	case "", RatingStrategyScan:
		return NewScanAggregator(bookings, profiles), nil
	case RatingStrategyIncremental:
		return NewIncrementalAggregator(profiles), nil
	}
	return nil, fmt.Errorf("unknown rating strategy %q", strategy)
}
