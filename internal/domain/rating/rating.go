package rating

import (
	"context"
	"math"

	"github.com/google/uuid"

	"github.com/cleanmatch/service-booking/internal/domain/booking"
	"github.com/cleanmatch/service-booking/internal/domain/profile"
)

// Target is the profile whose average changes: the rated party, not the rater.
type Target struct {
	Party     booking.Party
	ProfileID uuid.UUID
}

// Aggregator maintains a profile's average rating. latest is the value that
// triggered the recomputation; full-scan strategies ignore it.
type Aggregator interface {
	RecomputeAverage(ctx context.Context, target Target, latest int) (profile.RatingSummary, error)
}

// Summarize averages values, rounded to one decimal place. No values yields a zero summary.
func Summarize(values []int) profile.RatingSummary {
	if len(values) == 0 {
		return profile.RatingSummary{}
	}
	var total int64
	for _, v := range values {
		total += int64(v)
	}
	return profile.RatingSummary{
		Average: Round1(float64(total) / float64(len(values))),
		Count:   len(values),
		Total:   total,
	}
}

// Round1 rounds half away from zero to one decimal place.
func Round1(v float64) float64 {
	return math.Round(v*10) / 10
}
