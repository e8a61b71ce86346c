package application

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	bookingDomain "github.com/cleanmatch/service-booking/internal/domain/booking"
	photoDomain "github.com/cleanmatch/service-booking/internal/domain/photo"
	"github.com/cleanmatch/service-booking/internal/platform/auth"
	"github.com/cleanmatch/service-booking/internal/platform/domain"
)

// UploadPhotoRequest holds the data to attach a photo to a booking.
type UploadPhotoRequest struct {
	PhotoType string `json:"photo_type" binding:"required,oneof=arrival completion evidence"`
	PhotoURL  string `json:"photo_url" binding:"required,url"`
	Caption   string `json:"caption"`
}

// PhotoDTO is the API response representation of a booking photo.
type PhotoDTO struct {
	ID           uuid.UUID `json:"id"`
	BookingID    uuid.UUID `json:"booking_id"`
	UploaderID   uuid.UUID `json:"uploader_id"`
	UploaderRole string    `json:"uploader_role"`
	PhotoType    string    `json:"photo_type"`
	PhotoURL     string    `json:"photo_url"`
	Caption      string    `json:"caption"`
	TakenAt      time.Time `json:"taken_at"`
	CreatedAt    time.Time `json:"created_at"`
}

// PhotoService handles booking photo use cases. Only the booking's participants
// and admins can see or add photos.
type PhotoService struct {
	repo     photoDomain.PhotoRepository
	bookings bookingDomain.BookingRepository
	logger   *zap.Logger
}

// NewPhotoService creates a new PhotoService.
func NewPhotoService(repo photoDomain.PhotoRepository, bookings bookingDomain.BookingRepository, logger *zap.Logger) *PhotoService {
	return &PhotoService{repo: repo, bookings: bookings, logger: logger}
}

// UploadPhoto attaches a photo to a booking on behalf of one of its participants.
func (s *PhotoService) UploadPhoto(ctx context.Context, actor Actor, bookingID uuid.UUID, req UploadPhotoRequest) (*PhotoDTO, error) {
	bk, err := s.bookings.FindByID(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if err := ensureParticipant(actor, bk); err != nil {
		return nil, err
	}

	photo, err := photoDomain.NewBookingPhoto(
		bookingID,
		actor.UserID,
		string(actor.Role),
		photoDomain.PhotoType(req.PhotoType),
		req.PhotoURL,
		req.Caption,
	)
	if err != nil {
		return nil, err
	}

	if err := s.repo.Save(ctx, photo); err != nil {
		return nil, err
	}

	s.logger.Info("photo uploaded",
		zap.String("booking_id", bookingID.String()),
		zap.String("photo_type", req.PhotoType),
	)

	return toPhotoDTO(photo), nil
}

// GetBookingPhotos returns all photos for a booking.
func (s *PhotoService) GetBookingPhotos(ctx context.Context, actor Actor, bookingID uuid.UUID) ([]*PhotoDTO, error) {
	bk, err := s.bookings.FindByID(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if actor.Role != auth.RoleAdmin {
		if err := ensureParticipant(actor, bk); err != nil {
			return nil, err
		}
	}

	photos, err := s.repo.FindByBookingID(ctx, bookingID)
	if err != nil {
		return nil, err
	}

	dtos := make([]*PhotoDTO, len(photos))
	for i, p := range photos {
		dtos[i] = toPhotoDTO(p)
	}
	return dtos, nil
}

// ensureParticipant checks that the caller is the booking's host or cleaner.
func ensureParticipant(actor Actor, bk *bookingDomain.Booking) error {
	switch {
	case actor.Role == auth.RoleHost && actor.UserID == bk.HostUserID():
		return nil
	case actor.Role == auth.RoleCleaner && actor.UserID == bk.CleanerUserID():
		return nil
	}
	return domain.NewForbiddenError("only booking participants can access its photos")
}

func toPhotoDTO(p *photoDomain.BookingPhoto) *PhotoDTO {
	return &PhotoDTO{
		ID:           p.ID(),
		BookingID:    p.BookingID(),
		UploaderID:   p.UploaderID(),
		UploaderRole: p.UploaderRole(),
		PhotoType:    string(p.PhotoType()),
		PhotoURL:     p.PhotoURL(),
		Caption:      p.Caption(),
		TakenAt:      p.TakenAt(),
		CreatedAt:    p.CreatedAt(),
	}
}
