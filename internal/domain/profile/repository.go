package profile

import (
	"context"

	"github.com/google/uuid"
)

// Repository persists host and cleaner profiles. Counter updates are applied
// atomically in the store, not read-modify-write.
type Repository interface {
	FindHostByID(ctx context.Context, id uuid.UUID) (*Host, error)
	FindHostByUserID(ctx context.Context, userID uuid.UUID) (*Host, error)
	FindCleanerByID(ctx context.Context, id uuid.UUID) (*Cleaner, error)
	FindCleanerByUserID(ctx context.Context, userID uuid.UUID) (*Cleaner, error)

	SaveHost(ctx context.Context, host *Host) error
	SaveCleaner(ctx context.Context, cleaner *Cleaner) error

	// SetHostRating / SetCleanerRating overwrite the stored aggregate.
	SetHostRating(ctx context.Context, hostID uuid.UUID, summary RatingSummary) error
	SetCleanerRating(ctx context.Context, cleanerID uuid.UUID, summary RatingSummary) error

	// AddHostRating / AddCleanerRating fold one new value into the stored aggregate.
	AddHostRating(ctx context.Context, hostID uuid.UUID, value int) (RatingSummary, error)
	AddCleanerRating(ctx context.Context, cleanerID uuid.UUID, value int) (RatingSummary, error)

	IncrementCompletedJobs(ctx context.Context, cleanerID uuid.UUID) error
	AddEarnings(ctx context.Context, cleanerID uuid.UUID, amount int64) error
}
