package listing

import (
	"context"

	"github.com/google/uuid"
)

// Repository reads listings together with their applications.
type Repository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*Listing, error)
}
