package booking

import (
	"context"

	"github.com/google/uuid"
)

// BookingRepository defines the persistence contract for booking aggregates.
type BookingRepository interface {
	// FindByID retrieves a booking by its unique identifier.
	FindByID(ctx context.Context, id uuid.UUID) (*Booking, error)

	// FindByHostID retrieves bookings for a host profile with pagination.
	FindByHostID(ctx context.Context, hostID uuid.UUID, page, limit int) ([]*Booking, int64, error)

	// FindByCleanerID retrieves bookings for a cleaner profile with pagination.
	FindByCleanerID(ctx context.Context, cleanerID uuid.UUID, page, limit int) ([]*Booking, int64, error)

	// ListAll retrieves all bookings with pagination (admin).
	ListAll(ctx context.Context, page, limit int) ([]*Booking, int64, error)

	// CountByStatus returns booking counts grouped by status (admin).
	CountByStatus(ctx context.Context) (map[string]int64, error)

	// ReceivedRatings returns every rating value the given profile has received.
	ReceivedRatings(ctx context.Context, rated Party, profileID uuid.UUID) ([]int, error)

	// Save persists a new booking.
	Save(ctx context.Context, booking *Booking) error

	// Update persists changes to an existing booking with optimistic locking.
	Update(ctx context.Context, booking *Booking) error

	// Delete removes a booking.
	Delete(ctx context.Context, id uuid.UUID) error
}
