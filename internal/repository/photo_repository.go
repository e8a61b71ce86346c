package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	photoDomain "github.com/cleanmatch/service-booking/internal/domain/photo"
	"github.com/cleanmatch/service-booking/internal/platform/database"
	"github.com/cleanmatch/service-booking/internal/platform/domain"
)

// PhotoModel is the GORM model for the booking_photos table.
type PhotoModel struct {
	ID           uuid.UUID `gorm:"type:uuid;primaryKey"`
	BookingID    uuid.UUID `gorm:"type:uuid;not null;index"`
	UploaderID   uuid.UUID `gorm:"type:uuid;not null"`
	UploaderRole string    `gorm:"type:varchar(20);not null"`
	PhotoType    string    `gorm:"type:varchar(20);not null"`
	PhotoURL     string    `gorm:"type:text;not null"`
	Caption      string    `gorm:"type:text"`
	TakenAt      time.Time `gorm:"not null"`
	CreatedAt    time.Time `gorm:"not null"`
}

// TableName sets the table name.
func (PhotoModel) TableName() string { return "booking_photos" }

// GormPhotoRepository implements PhotoRepository using GORM.
type GormPhotoRepository struct {
	db *gorm.DB
}

// NewGormPhotoRepository creates a new GormPhotoRepository.
func NewGormPhotoRepository(db *gorm.DB) *GormPhotoRepository {
	return &GormPhotoRepository{db: db}
}

// Save persists a new booking photo.
func (r *GormPhotoRepository) Save(ctx context.Context, photo *photoDomain.BookingPhoto) error {
	model := toPhotoModel(photo)
	if err := database.Conn(ctx, r.db).Create(&model).Error; err != nil {
		return fmt.Errorf("failed to save photo: %w", err)
	}
	return nil
}

// FindByBookingID returns all photos for a booking, oldest first.
func (r *GormPhotoRepository) FindByBookingID(ctx context.Context, bookingID uuid.UUID) ([]*photoDomain.BookingPhoto, error) {
	var models []PhotoModel
	if err := database.Conn(ctx, r.db).Where("booking_id = ?", bookingID).Order("taken_at ASC").Find(&models).Error; err != nil {
		return nil, fmt.Errorf("failed to find photos: %w", err)
	}

	photos := make([]*photoDomain.BookingPhoto, len(models))
	for i := range models {
		photos[i] = toPhotoDomain(&models[i])
	}
	return photos, nil
}

// FindByID returns a single photo by ID.
func (r *GormPhotoRepository) FindByID(ctx context.Context, id uuid.UUID) (*photoDomain.BookingPhoto, error) {
	var model PhotoModel
	if err := database.Conn(ctx, r.db).Where("id = ?", id).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.NewNotFoundError("Photo", id.String())
		}
		return nil, fmt.Errorf("failed to find photo: %w", err)
	}
	return toPhotoDomain(&model), nil
}

// DeleteByBookingID removes every photo of a booking.
func (r *GormPhotoRepository) DeleteByBookingID(ctx context.Context, bookingID uuid.UUID) error {
	if err := database.Conn(ctx, r.db).Where("booking_id = ?", bookingID).Delete(&PhotoModel{}).Error; err != nil {
		return fmt.Errorf("failed to delete photos: %w", err)
	}
	return nil
}

func toPhotoModel(p *photoDomain.BookingPhoto) PhotoModel {
	return PhotoModel{
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

func toPhotoDomain(m *PhotoModel) *photoDomain.BookingPhoto {
	return photoDomain.Reconstruct(
		m.ID,
		m.BookingID,
		m.UploaderID,
		m.UploaderRole,
		photoDomain.PhotoType(m.PhotoType),
		m.PhotoURL,
		m.Caption,
		m.TakenAt,
		m.CreatedAt,
	)
}
