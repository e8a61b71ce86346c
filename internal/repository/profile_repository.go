package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/cleanmatch/service-booking/internal/domain/profile"
	"github.com/cleanmatch/service-booking/internal/platform/database"
	"github.com/cleanmatch/service-booking/internal/platform/domain"
)

// HostModel is the GORM model for the host_profiles table.
type HostModel struct {
	ID                 uuid.UUID `gorm:"type:uuid;primaryKey"`
	UserID             uuid.UUID `gorm:"type:uuid;uniqueIndex;not null"`
	DisplayName        string    `gorm:"type:varchar(100);not null"`
	Email              string    `gorm:"type:varchar(255)"`
	Phone              string    `gorm:"type:varchar(50)"`
	PaymentCustomerRef string    `gorm:"type:varchar(100)"`
	RatingAverage      float64   `gorm:"type:numeric(2,1);not null;default:0"`
	RatingCount        int       `gorm:"not null;default:0"`
	RatingTotal        int64     `gorm:"not null;default:0"`
	Version            int64     `gorm:"not null;default:1"`
	CreatedAt          time.Time `gorm:"type:timestamptz;not null;default:now()"`
	UpdatedAt          time.Time `gorm:"type:timestamptz;not null;default:now()"`
}

func (HostModel) TableName() string { return "host_profiles" }

// CleanerModel is the GORM model for the cleaner_profiles table.
type CleanerModel struct {
	ID               uuid.UUID `gorm:"type:uuid;primaryKey"`
	UserID           uuid.UUID `gorm:"type:uuid;uniqueIndex;not null"`
	DisplayName      string    `gorm:"type:varchar(100);not null"`
	Email            string    `gorm:"type:varchar(255)"`
	Phone            string    `gorm:"type:varchar(50)"`
	PayoutAccountRef string    `gorm:"type:varchar(100)"`
	RatingAverage    float64   `gorm:"type:numeric(2,1);not null;default:0"`
	RatingCount      int       `gorm:"not null;default:0"`
	RatingTotal      int64     `gorm:"not null;default:0"`
	CompletedJobs    int       `gorm:"not null;default:0"`
	TotalEarnings    int64     `gorm:"not null;default:0"`
	Version          int64     `gorm:"not null;default:1"`
	CreatedAt        time.Time `gorm:"type:timestamptz;not null;default:now()"`
	UpdatedAt        time.Time `gorm:"type:timestamptz;not null;default:now()"`
}

func (CleanerModel) TableName() string { return "cleaner_profiles" }

// GormProfileRepository implements profile.Repository using GORM.
type GormProfileRepository struct {
	db *gorm.DB
}

func NewGormProfileRepository(db *gorm.DB) *GormProfileRepository {
	return &GormProfileRepository{db: db}
}

func (r *GormProfileRepository) FindHostByID(ctx context.Context, id uuid.UUID) (*profile.Host, error) {
	return r.findHost(ctx, "id = ?", id)
}

func (r *GormProfileRepository) FindHostByUserID(ctx context.Context, userID uuid.UUID) (*profile.Host, error) {
	return r.findHost(ctx, "user_id = ?", userID)
}

func (r *GormProfileRepository) findHost(ctx context.Context, where string, id uuid.UUID) (*profile.Host, error) {
	var model HostModel
	if err := database.Conn(ctx, r.db).Where(where, id).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.NewNotFoundError("HostProfile", id.String())
		}
		return nil, fmt.Errorf("failed to find host profile: %w", err)
	}
	return toHostDomain(&model), nil
}

func (r *GormProfileRepository) FindCleanerByID(ctx context.Context, id uuid.UUID) (*profile.Cleaner, error) {
	return r.findCleaner(ctx, "id = ?", id)
}

func (r *GormProfileRepository) FindCleanerByUserID(ctx context.Context, userID uuid.UUID) (*profile.Cleaner, error) {
	return r.findCleaner(ctx, "user_id = ?", userID)
}

func (r *GormProfileRepository) findCleaner(ctx context.Context, where string, id uuid.UUID) (*profile.Cleaner, error) {
	db := database.Conn(ctx, r.db)
	var model CleanerModel
	if err := db.Where(where, id).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.NewNotFoundError("CleanerProfile", id.String())
		}
		return nil, fmt.Errorf("failed to find cleaner profile: %w", err)
	}

	var active []uuid.UUID
	if err := db.Model(&CommitmentModel{}).
		Where("cleaner_id = ?", model.ID).
		Order("scheduled_date ASC").
		Pluck("booking_id", &active).Error; err != nil {
		return nil, fmt.Errorf("failed to load cleaner commitments: %w", err)
	}
	return toCleanerDomain(&model, active), nil
}

// SaveHost inserts the host or updates its editable fields. Counters and
// ratings are never written from here.
func (r *GormProfileRepository) SaveHost(ctx context.Context, h *profile.Host) error {
	model := toHostModel(h)
	return database.Conn(ctx, r.db).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"display_name", "email", "phone", "payment_customer_ref", "version", "updated_at"}),
	}).Create(model).Error
}

// SaveCleaner inserts the cleaner or updates its editable fields.
func (r *GormProfileRepository) SaveCleaner(ctx context.Context, c *profile.Cleaner) error {
	model := toCleanerModel(c)
	return database.Conn(ctx, r.db).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"display_name", "email", "phone", "payout_account_ref", "version", "updated_at"}),
	}).Create(model).Error
}

func (r *GormProfileRepository) SetHostRating(ctx context.Context, hostID uuid.UUID, s profile.RatingSummary) error {
	return r.setRating(ctx, &HostModel{}, "HostProfile", hostID, s)
}

func (r *GormProfileRepository) SetCleanerRating(ctx context.Context, cleanerID uuid.UUID, s profile.RatingSummary) error {
	return r.setRating(ctx, &CleanerModel{}, "CleanerProfile", cleanerID, s)
}

func (r *GormProfileRepository) setRating(ctx context.Context, model any, entity string, id uuid.UUID, s profile.RatingSummary) error {
	result := database.Conn(ctx, r.db).Model(model).Where("id = ?", id).Updates(map[string]interface{}{
		"rating_average": s.Average,
		"rating_count":   s.Count,
		"rating_total":   s.Total,
		"updated_at":     time.Now().UTC(),
	})
	if result.Error != nil {
		return fmt.Errorf("failed to set rating: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return domain.NewNotFoundError(entity, id.String())
	}
	return nil
}

func (r *GormProfileRepository) AddHostRating(ctx context.Context, hostID uuid.UUID, value int) (profile.RatingSummary, error) {
	return r.addRating(ctx, "host_profiles", "HostProfile", hostID, value)
}

func (r *GormProfileRepository) AddCleanerRating(ctx context.Context, cleanerID uuid.UUID, value int) (profile.RatingSummary, error) {
	return r.addRating(ctx, "cleaner_profiles", "CleanerProfile", cleanerID, value)
}

// addRating folds value into the stored aggregate in one statement. Every
// right-hand side reads the row as it was before the update.
func (r *GormProfileRepository) addRating(ctx context.Context, table, entity string, id uuid.UUID, value int) (profile.RatingSummary, error) {
	var row struct {
		RatingAverage float64
		RatingCount   int
		RatingTotal   int64
	}
	sql := `UPDATE ` + table + ` SET
		rating_total = rating_total + @value,
		rating_count = rating_count + 1,
		rating_average = ROUND((rating_total + @value)::numeric / (rating_count + 1), 1),
		updated_at = NOW()
	WHERE id = @id
	RETURNING rating_average, rating_count, rating_total`
	result := database.Conn(ctx, r.db).Raw(sql, map[string]interface{}{"value": value, "id": id}).Scan(&row)
	if result.Error != nil {
		return profile.RatingSummary{}, fmt.Errorf("failed to add rating: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return profile.RatingSummary{}, domain.NewNotFoundError(entity, id.String())
	}
	return profile.RatingSummary{Average: row.RatingAverage, Count: row.RatingCount, Total: row.RatingTotal}, nil
}

func (r *GormProfileRepository) IncrementCompletedJobs(ctx context.Context, cleanerID uuid.UUID) error {
	return r.bumpCleaner(ctx, cleanerID, "completed_jobs", gorm.Expr("completed_jobs + 1"))
}

func (r *GormProfileRepository) AddEarnings(ctx context.Context, cleanerID uuid.UUID, amount int64) error {
	return r.bumpCleaner(ctx, cleanerID, "total_earnings", gorm.Expr("total_earnings + ?", amount))
}

func (r *GormProfileRepository) bumpCleaner(ctx context.Context, cleanerID uuid.UUID, column string, expr clause.Expr) error {
	result := database.Conn(ctx, r.db).Model(&CleanerModel{}).
		Where("id = ?", cleanerID).
		Updates(map[string]interface{}{column: expr, "updated_at": time.Now().UTC()})
	if result.Error != nil {
		return fmt.Errorf("failed to update %s: %w", column, result.Error)
	}
	if result.RowsAffected == 0 {
		return domain.NewNotFoundError("CleanerProfile", cleanerID.String())
	}
	return nil
}

// --- Conversions ---

func toHostModel(h *profile.Host) *HostModel {
	rating := h.Rating()
	return &HostModel{
		ID:                 h.ID(),
		UserID:             h.UserID(),
		DisplayName:        h.DisplayName(),
		Email:              h.Contact().Email,
		Phone:              h.Contact().Phone,
		PaymentCustomerRef: h.PaymentCustomerRef(),
		RatingAverage:      rating.Average,
		RatingCount:        rating.Count,
		RatingTotal:        rating.Total,
		Version:            h.Version(),
		CreatedAt:          h.CreatedAt(),
		UpdatedAt:          h.UpdatedAt(),
	}
}

func toHostDomain(m *HostModel) *profile.Host {
	return profile.ReconstructHost(
		m.ID, m.UserID,
		m.DisplayName,
		profile.Contact{Email: m.Email, Phone: m.Phone},
		m.PaymentCustomerRef,
		profile.RatingSummary{Average: m.RatingAverage, Count: m.RatingCount, Total: m.RatingTotal},
		m.Version,
		m.CreatedAt, m.UpdatedAt,
	)
}

func toCleanerModel(c *profile.Cleaner) *CleanerModel {
	rating := c.Rating()
	return &CleanerModel{
		ID:               c.ID(),
		UserID:           c.UserID(),
		DisplayName:      c.DisplayName(),
		Email:            c.Contact().Email,
		Phone:            c.Contact().Phone,
		PayoutAccountRef: c.PayoutAccountRef(),
		RatingAverage:    rating.Average,
		RatingCount:      rating.Count,
		RatingTotal:      rating.Total,
		CompletedJobs:    c.CompletedJobs(),
		TotalEarnings:    c.TotalEarnings(),
		Version:          c.Version(),
		CreatedAt:        c.CreatedAt(),
		UpdatedAt:        c.UpdatedAt(),
	}
}

func toCleanerDomain(m *CleanerModel, active []uuid.UUID) *profile.Cleaner {
	return profile.ReconstructCleaner(
		m.ID, m.UserID,
		m.DisplayName,
		profile.Contact{Email: m.Email, Phone: m.Phone},
		m.PayoutAccountRef,
		profile.RatingSummary{Average: m.RatingAverage, Count: m.RatingCount, Total: m.RatingTotal},
		m.CompletedJobs, m.TotalEarnings,
		active,
		m.Version,
		m.CreatedAt, m.UpdatedAt,
	)
}
