package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/cleanmatch/service-booking/internal/platform/database"
)

// CommitmentModel reserves a cleaner for one booking on one day.
type CommitmentModel struct {
	CleanerID     uuid.UUID `gorm:"type:uuid;primaryKey"`
	BookingID     uuid.UUID `gorm:"type:uuid;primaryKey"`
	ScheduledDate time.Time `gorm:"type:date;not null"`
	CreatedAt     time.Time `gorm:"not null"`
}

func (CommitmentModel) TableName() string { return "cleaner_commitments" }

// GormAvailabilityLedger implements booking.AvailabilityLedger on the listings
// and cleaner_commitments tables. Every write is safe to repeat.
type GormAvailabilityLedger struct {
	db *gorm.DB
}

func NewGormAvailabilityLedger(db *gorm.DB) *GormAvailabilityLedger {
	return &GormAvailabilityLedger{db: db}
}

func (l *GormAvailabilityLedger) SetListingStatus(ctx context.Context, listingID uuid.UUID, status string) error {
	err := database.Conn(ctx, l.db).Model(&ListingModel{}).
		Where("id = ?", listingID).
		Update("status", status).Error
	if err != nil {
		return fmt.Errorf("failed to set listing status: %w", err)
	}
	return nil
}

func (l *GormAvailabilityLedger) AddCleanerCommitment(ctx context.Context, cleanerID, bookingID uuid.UUID, date time.Time) error {
	model := CommitmentModel{
		CleanerID:     cleanerID,
		BookingID:     bookingID,
		ScheduledDate: date,
		CreatedAt:     time.Now().UTC(),
	}
	err := database.Conn(ctx, l.db).Clauses(clause.OnConflict{DoNothing: true}).Create(&model).Error
	if err != nil {
		return fmt.Errorf("failed to add cleaner commitment: %w", err)
	}
	return nil
}

func (l *GormAvailabilityLedger) RemoveCleanerCommitment(ctx context.Context, cleanerID, bookingID uuid.UUID) error {
	err := database.Conn(ctx, l.db).
		Where("cleaner_id = ? AND booking_id = ?", cleanerID, bookingID).
		Delete(&CommitmentModel{}).Error
	if err != nil {
		return fmt.Errorf("failed to remove cleaner commitment: %w", err)
	}
	return nil
}
