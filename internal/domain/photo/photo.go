package photo

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/cleanmatch/service-booking/internal/platform/domain"
)

// PhotoType represents why a photo was taken.
type PhotoType string

const (
	PhotoTypeArrival    PhotoType = "arrival"
	PhotoTypeCompletion PhotoType = "completion"
	PhotoTypeEvidence   PhotoType = "evidence"
)

// IsValid returns true if the photo type is recognized.
func (p PhotoType) IsValid() bool {
	return p == PhotoTypeArrival || p == PhotoTypeCompletion || p == PhotoTypeEvidence
}

// BookingPhoto is a proof photo attached to a booking.
type BookingPhoto struct {
	id           uuid.UUID
	bookingID    uuid.UUID
	uploaderID   uuid.UUID
	uploaderRole string
	photoType    PhotoType
	photoURL     string
	caption      string
	takenAt      time.Time
	createdAt    time.Time
}

// NewBookingPhoto creates a new booking photo. Evidence photos come from the host,
// arrival and completion photos from the cleaner.
func NewBookingPhoto(bookingID, uploaderID uuid.UUID, uploaderRole string, photoType PhotoType, photoURL, caption string) (*BookingPhoto, error) {
	if !photoType.IsValid() {
		return nil, domain.NewValidationError(fmt.Sprintf("invalid photo type: %s", photoType))
	}
	if photoURL == "" {
		return nil, domain.NewValidationError("photo URL is required")
	}
	switch {
	case photoType == PhotoTypeEvidence && uploaderRole != "host":
		return nil, domain.NewForbiddenError("only the host can upload evidence photos")
	case photoType != PhotoTypeEvidence && uploaderRole != "cleaner":
		return nil, domain.NewForbiddenError(fmt.Sprintf("only the cleaner can upload %s photos", photoType))
	}

	now := time.Now().UTC()
	return &BookingPhoto{
		id:           uuid.New(),
		bookingID:    bookingID,
		uploaderID:   uploaderID,
		uploaderRole: uploaderRole,
		photoType:    photoType,
		photoURL:     photoURL,
		caption:      caption,
		takenAt:      now,
		createdAt:    now,
	}, nil
}

// Reconstruct rebuilds a BookingPhoto from persistence.
func Reconstruct(id, bookingID, uploaderID uuid.UUID, uploaderRole string, photoType PhotoType, photoURL, caption string, takenAt, createdAt time.Time) *BookingPhoto {
	return &BookingPhoto{
		id:           id,
		bookingID:    bookingID,
		uploaderID:   uploaderID,
		uploaderRole: uploaderRole,
		photoType:    photoType,
		photoURL:     photoURL,
		caption:      caption,
		takenAt:      takenAt,
		createdAt:    createdAt,
	}
}

// Getters.
func (p *BookingPhoto) ID() uuid.UUID         { return p.id }
func (p *BookingPhoto) BookingID() uuid.UUID  { return p.bookingID }
func (p *BookingPhoto) UploaderID() uuid.UUID { return p.uploaderID }
func (p *BookingPhoto) UploaderRole() string  { return p.uploaderRole }
func (p *BookingPhoto) PhotoType() PhotoType  { return p.photoType }
func (p *BookingPhoto) PhotoURL() string      { return p.photoURL }
func (p *BookingPhoto) Caption() string       { return p.caption }
func (p *BookingPhoto) TakenAt() time.Time    { return p.takenAt }
func (p *BookingPhoto) CreatedAt() time.Time  { return p.createdAt }
