package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/cleanmatch/service-booking/internal/domain/listing"
	"github.com/cleanmatch/service-booking/internal/platform/database"
	"github.com/cleanmatch/service-booking/internal/platform/domain"
)

// ListingModel mirrors the listings table written by the listing service.
type ListingModel struct {
	ID          uuid.UUID       `gorm:"type:uuid;primaryKey"`
	HostID      uuid.UUID       `gorm:"type:uuid;index;not null"`
	Title       string          `gorm:"size:200;not null"`
	Status      string          `gorm:"size:20;not null"`
	Services    json.RawMessage `gorm:"type:jsonb"`
	BaseAmount  int64           `gorm:"not null"`
	Commission  int64           `gorm:"not null"`
	TotalAmount int64           `gorm:"not null"`
	Currency    string          `gorm:"size:3;not null"`
}

func (ListingModel) TableName() string { return "listings" }

// ListingApplicationModel is one cleaner's application to a listing.
type ListingApplicationModel struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey"`
	ListingID uuid.UUID `gorm:"type:uuid;index;not null"`
	CleanerID uuid.UUID `gorm:"type:uuid;not null"`
	Status    string    `gorm:"size:20;not null"`
}

func (ListingApplicationModel) TableName() string { return "listing_applications" }

// GormListingRepository reads listings for booking creation.
type GormListingRepository struct {
	db *gorm.DB
}

func NewGormListingRepository(db *gorm.DB) *GormListingRepository {
	return &GormListingRepository{db: db}
}

func (r *GormListingRepository) FindByID(ctx context.Context, id uuid.UUID) (*listing.Listing, error) {
	db := database.Conn(ctx, r.db)

	var model ListingModel
	if err := db.Where("id = ?", id).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.NewNotFoundError("Listing", id.String())
		}
		return nil, fmt.Errorf("failed to find listing: %w", err)
	}

	var apps []ListingApplicationModel
	if err := db.Where("listing_id = ?", id).Find(&apps).Error; err != nil {
		return nil, fmt.Errorf("failed to load listing applications: %w", err)
	}

	var services []string
	if len(model.Services) > 0 {
		if err := json.Unmarshal(model.Services, &services); err != nil {
			return nil, fmt.Errorf("failed to decode listing services: %w", err)
		}
	}

	applications := make([]listing.Application, len(apps))
	for i, a := range apps {
		applications[i] = listing.Application{
			ID:        a.ID,
			CleanerID: a.CleanerID,
			Status:    listing.ApplicationStatus(a.Status),
		}
	}

	return listing.Reconstruct(
		model.ID, model.HostID, model.Title,
		listing.Status(model.Status),
		services,
		listing.Pricing{
			BaseAmount:  model.BaseAmount,
			Commission:  model.Commission,
			TotalAmount: model.TotalAmount,
			Currency:    model.Currency,
		},
		applications,
	), nil
}
