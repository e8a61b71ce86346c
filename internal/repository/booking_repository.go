package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	bookingDomain "github.com/cleanmatch/service-booking/internal/domain/booking"
	"github.com/cleanmatch/service-booking/internal/platform/database"
	"github.com/cleanmatch/service-booking/internal/platform/domain"
)

// BookingModel is the GORM model for the bookings table. Payment and rating
// fields are flat columns so payout and rating queries can filter on them.
type BookingModel struct {
	ID            uuid.UUID `gorm:"type:uuid;primaryKey"`
	BookingNumber string    `gorm:"uniqueIndex;not null;size:20"`
	ListingID     uuid.UUID `gorm:"type:uuid;index;not null"`
	HostID        uuid.UUID `gorm:"type:uuid;index;not null"`
	HostUserID    uuid.UUID `gorm:"type:uuid;not null"`
	CleanerID     uuid.UUID `gorm:"type:uuid;index;not null"`
	CleanerUserID uuid.UUID `gorm:"type:uuid;not null"`
	Status        string    `gorm:"not null;size:30;index"`

	ScheduledDate time.Time       `gorm:"type:date;not null"`
	StartTime     string          `gorm:"size:5;not null"`
	EndTime       string          `gorm:"size:5;not null"`
	TaskChecklist json.RawMessage `gorm:"type:jsonb;not null"`

	Amount             int64      `gorm:"not null"`
	PlatformFee        int64      `gorm:"not null"`
	CleanerPayout      int64      `gorm:"not null"`
	Currency           string     `gorm:"not null;size:3"`
	ProviderPaymentID  string     `gorm:"size:100"`
	ProviderTransferID string     `gorm:"size:100"`
	RefundID           string     `gorm:"size:100"`
	IsPaid             bool       `gorm:"not null;default:false"`
	PaidAt             *time.Time `gorm:""`
	IsPayoutSent       bool       `gorm:"not null;default:false"`
	PayoutSentAt       *time.Time `gorm:""`

	ContactInfoShared bool            `gorm:"not null;default:false"`
	CleanerAcceptedAt *time.Time      `gorm:""`
	CleanerArrival    json.RawMessage `gorm:"type:jsonb"`
	Complaint         json.RawMessage `gorm:"type:jsonb"`
	Cancellation      json.RawMessage `gorm:"type:jsonb"`

	TaskCompletionConfirmed   bool       `gorm:"not null;default:false"`
	TaskCompletionConfirmedAt *time.Time `gorm:""`
	CompletedBy               string     `gorm:"size:20"`
	CompletionCounted         bool       `gorm:"not null;default:false"`
	HostReviewPeriodEndsAt    *time.Time `gorm:"index"`

	HostRating           *int       `gorm:""`
	HostRatingComment    string     `gorm:"size:1000"`
	HostRatingAt         *time.Time `gorm:""`
	CleanerRating        *int       `gorm:""`
	CleanerRatingComment string     `gorm:"size:1000"`
	CleanerRatingAt      *time.Time `gorm:""`

	ReminderSentAt *time.Time `gorm:""`
	Version        int64      `gorm:"not null;default:1"`
	CreatedAt      time.Time  `gorm:"not null"`
	UpdatedAt      time.Time  `gorm:"not null"`
}

// TableName returns the table name for the GORM model.
func (BookingModel) TableName() string {
	return "bookings"
}

// GormBookingRepository is the GORM-based implementation of BookingRepository.
type GormBookingRepository struct {
	db *gorm.DB
}

// NewGormBookingRepository creates a new GormBookingRepository.
func NewGormBookingRepository(db *gorm.DB) *GormBookingRepository {
	return &GormBookingRepository{db: db}
}

// FindByID retrieves a booking by its unique identifier.
func (r *GormBookingRepository) FindByID(ctx context.Context, id uuid.UUID) (*bookingDomain.Booking, error) {
	var model BookingModel
	if err := database.Conn(ctx, r.db).Where("id = ?", id).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.NewNotFoundError("Booking", id.String())
		}
		return nil, fmt.Errorf("failed to find booking by ID: %w", err)
	}
	return toDomainBooking(&model)
}

// FindByHostID retrieves bookings for a host profile with pagination.
func (r *GormBookingRepository) FindByHostID(ctx context.Context, hostID uuid.UUID, page, limit int) ([]*bookingDomain.Booking, int64, error) {
	return r.findPage(ctx, "host_id = ?", hostID, page, limit)
}

// FindByCleanerID retrieves bookings for a cleaner profile with pagination.
func (r *GormBookingRepository) FindByCleanerID(ctx context.Context, cleanerID uuid.UUID, page, limit int) ([]*bookingDomain.Booking, int64, error) {
	return r.findPage(ctx, "cleaner_id = ?", cleanerID, page, limit)
}

// ListAll retrieves all bookings with pagination (admin).
func (r *GormBookingRepository) ListAll(ctx context.Context, page, limit int) ([]*bookingDomain.Booking, int64, error) {
	return r.findPage(ctx, "", nil, page, limit)
}

func (r *GormBookingRepository) findPage(ctx context.Context, where string, arg any, page, limit int) ([]*bookingDomain.Booking, int64, error) {
	scope := func() *gorm.DB {
		q := database.Conn(ctx, r.db).Model(&BookingModel{})
		if where != "" {
			q = q.Where(where, arg)
		}
		return q
	}

	var total int64
	if err := scope().Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count bookings: %w", err)
	}

	var models []BookingModel
	offset := (page - 1) * limit
	if err := scope().
		Order("created_at DESC").
		Offset(offset).
		Limit(limit).
		Find(&models).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to list bookings: %w", err)
	}

	bookings := make([]*bookingDomain.Booking, len(models))
	for i := range models {
		bk, err := toDomainBooking(&models[i])
		if err != nil {
			return nil, 0, err
		}
		bookings[i] = bk
	}

	return bookings, total, nil
}

// CountByStatus returns booking counts grouped by status (admin).
func (r *GormBookingRepository) CountByStatus(ctx context.Context) (map[string]int64, error) {
	type statusCount struct {
		Status string
		Count  int64
	}
	var results []statusCount
	if err := database.Conn(ctx, r.db).Model(&BookingModel{}).
		Select("status, count(*) as count").
		Group("status").
		Find(&results).Error; err != nil {
		return nil, fmt.Errorf("failed to count by status: %w", err)
	}

	counts := make(map[string]int64)
	for _, sc := range results {
		counts[sc.Status] = sc.Count
	}
	return counts, nil
}

// ReceivedRatings returns every rating value the given profile has received.
func (r *GormBookingRepository) ReceivedRatings(ctx context.Context, rated bookingDomain.Party, profileID uuid.UUID) ([]int, error) {
	var column, owner string
	switch rated {
	case bookingDomain.PartyHost:
		column, owner = "host_rating", "host_id"
	case bookingDomain.PartyCleaner:
		column, owner = "cleaner_rating", "cleaner_id"
	default:
		return nil, domain.NewValidationError(fmt.Sprintf("%s cannot be rated", rated))
	}

	var values []int
	if err := database.Conn(ctx, r.db).Model(&BookingModel{}).
		Where(owner+" = ? AND "+column+" IS NOT NULL", profileID).
		Pluck(column, &values).Error; err != nil {
		return nil, fmt.Errorf("failed to load ratings: %w", err)
	}
	return values, nil
}

// Save persists a new booking.
func (r *GormBookingRepository) Save(ctx context.Context, bk *bookingDomain.Booking) error {
	model, err := toBookingModel(bk)
	if err != nil {
		return fmt.Errorf("failed to convert booking to model: %w", err)
	}

	if err := database.Conn(ctx, r.db).Create(model).Error; err != nil {
		return fmt.Errorf("failed to save booking: %w", err)
	}
	return nil
}

// Update persists changes to an existing booking with optimistic locking.
func (r *GormBookingRepository) Update(ctx context.Context, bk *bookingDomain.Booking) error {
	model, err := toBookingModel(bk)
	if err != nil {
		return fmt.Errorf("failed to convert booking to model: %w", err)
	}

	// Only update if the version matches (current version - 1 since IncrementVersion was called).
	expectedVersion := bk.Version() - 1
	result := database.Conn(ctx, r.db).
		Model(&BookingModel{}).
		Where("id = ? AND version = ?", model.ID, expectedVersion).
		Updates(map[string]interface{}{
			"status":                       model.Status,
			"task_checklist":               model.TaskChecklist,
			"provider_payment_id":          model.ProviderPaymentID,
			"provider_transfer_id":         model.ProviderTransferID,
			"refund_id":                    model.RefundID,
			"is_paid":                      model.IsPaid,
			"paid_at":                      model.PaidAt,
			"is_payout_sent":               model.IsPayoutSent,
			"payout_sent_at":               model.PayoutSentAt,
			"contact_info_shared":          model.ContactInfoShared,
			"cleaner_accepted_at":          model.CleanerAcceptedAt,
			"cleaner_arrival":              model.CleanerArrival,
			"complaint":                    model.Complaint,
			"cancellation":                 model.Cancellation,
			"task_completion_confirmed":    model.TaskCompletionConfirmed,
			"task_completion_confirmed_at": model.TaskCompletionConfirmedAt,
			"completed_by":                 model.CompletedBy,
			"completion_counted":           model.CompletionCounted,
			"host_review_period_ends_at":   model.HostReviewPeriodEndsAt,
			"host_rating":                  model.HostRating,
			"host_rating_comment":          model.HostRatingComment,
			"host_rating_at":               model.HostRatingAt,
			"cleaner_rating":               model.CleanerRating,
			"cleaner_rating_comment":       model.CleanerRatingComment,
			"cleaner_rating_at":            model.CleanerRatingAt,
			"reminder_sent_at":             model.ReminderSentAt,
			"version":                      model.Version,
			"updated_at":                   model.UpdatedAt,
		})

	if result.Error != nil {
		return fmt.Errorf("failed to update booking: %w", result.Error)
	}

	if result.RowsAffected == 0 {
		return domain.NewConflictError("booking was modified by another transaction")
	}

	return nil
}

// Delete removes a booking.
func (r *GormBookingRepository) Delete(ctx context.Context, id uuid.UUID) error {
	if err := database.Conn(ctx, r.db).Where("id = ?", id).Delete(&BookingModel{}).Error; err != nil {
		return fmt.Errorf("failed to delete booking: %w", err)
	}
	return nil
}

// --- Conversion Helpers ---

func toBookingModel(bk *bookingDomain.Booking) (*BookingModel, error) {
	s := bk.Snapshot()

	checklistJSON, err := json.Marshal(s.Checklist)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal checklist: %w", err)
	}
	arrivalJSON, err := marshalOptional(s.Arrival)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal arrival: %w", err)
	}
	complaintJSON, err := marshalOptional(s.Complaint)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal complaint: %w", err)
	}
	cancellationJSON, err := marshalOptional(s.Cancellation)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal cancellation: %w", err)
	}

	m := &BookingModel{
		ID:                        s.ID,
		BookingNumber:             s.BookingNumber,
		ListingID:                 s.ListingID,
		HostID:                    s.HostID,
		HostUserID:                s.HostUserID,
		CleanerID:                 s.CleanerID,
		CleanerUserID:             s.CleanerUserID,
		Status:                    string(s.Status),
		ScheduledDate:             s.Schedule.Date,
		StartTime:                 s.Schedule.StartTime,
		EndTime:                   s.Schedule.EndTime,
		TaskChecklist:             checklistJSON,
		Amount:                    s.Payment.Amount,
		PlatformFee:               s.Payment.PlatformFee,
		CleanerPayout:             s.Payment.CleanerPayout,
		Currency:                  s.Payment.Currency,
		ProviderPaymentID:         s.Payment.ProviderPaymentID,
		ProviderTransferID:        s.Payment.ProviderTransferID,
		RefundID:                  s.Payment.RefundID,
		IsPaid:                    s.Payment.IsPaid,
		PaidAt:                    s.Payment.PaidAt,
		IsPayoutSent:              s.Payment.IsPayoutSent,
		PayoutSentAt:              s.Payment.PayoutSentAt,
		ContactInfoShared:         s.ContactInfoShared,
		CleanerAcceptedAt:         s.CleanerAcceptedAt,
		CleanerArrival:            arrivalJSON,
		Complaint:                 complaintJSON,
		Cancellation:              cancellationJSON,
		TaskCompletionConfirmed:   s.TaskCompletionConfirmed,
		TaskCompletionConfirmedAt: s.TaskCompletionConfirmedAt,
		CompletedBy:               string(s.CompletedBy),
		CompletionCounted:         s.CompletionCounted,
		HostReviewPeriodEndsAt:    s.HostReviewPeriodEndsAt,
		ReminderSentAt:            s.ReminderSentAt,
		Version:                   s.Version,
		CreatedAt:                 s.CreatedAt,
		UpdatedAt:                 s.UpdatedAt,
	}
	if s.HostRating != nil {
		v, at := s.HostRating.Value, s.HostRating.CreatedAt
		m.HostRating, m.HostRatingComment, m.HostRatingAt = &v, s.HostRating.Comment, &at
	}
	if s.CleanerRating != nil {
		v, at := s.CleanerRating.Value, s.CleanerRating.CreatedAt
		m.CleanerRating, m.CleanerRatingComment, m.CleanerRatingAt = &v, s.CleanerRating.Comment, &at
	}
	return m, nil
}

func toDomainBooking(m *BookingModel) (*bookingDomain.Booking, error) {
	var checklist bookingDomain.Checklist
	if err := json.Unmarshal(m.TaskChecklist, &checklist); err != nil {
		return nil, fmt.Errorf("failed to unmarshal checklist: %w", err)
	}
	arrival, err := unmarshalOptional[bookingDomain.Arrival](m.CleanerArrival)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal arrival: %w", err)
	}
	complaint, err := unmarshalOptional[bookingDomain.Complaint](m.Complaint)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal complaint: %w", err)
	}
	cancellation, err := unmarshalOptional[bookingDomain.Cancellation](m.Cancellation)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal cancellation: %w", err)
	}

	return bookingDomain.ReconstructBooking(bookingDomain.Snapshot{
		ID:            m.ID,
		BookingNumber: m.BookingNumber,
		ListingID:     m.ListingID,
		HostID:        m.HostID,
		HostUserID:    m.HostUserID,
		CleanerID:     m.CleanerID,
		CleanerUserID: m.CleanerUserID,
		Status:        bookingDomain.BookingStatus(m.Status),
		Schedule: bookingDomain.Schedule{
			Date:      m.ScheduledDate.UTC(),
			StartTime: m.StartTime,
			EndTime:   m.EndTime,
		},
		Checklist: checklist,
		Payment: bookingDomain.Payment{
			Amount:             m.Amount,
			PlatformFee:        m.PlatformFee,
			CleanerPayout:      m.CleanerPayout,
			Currency:           m.Currency,
			ProviderPaymentID:  m.ProviderPaymentID,
			ProviderTransferID: m.ProviderTransferID,
			IsPaid:             m.IsPaid,
			PaidAt:             m.PaidAt,
			IsPayoutSent:       m.IsPayoutSent,
			PayoutSentAt:       m.PayoutSentAt,
			RefundID:           m.RefundID,
		},
		ContactInfoShared:         m.ContactInfoShared,
		CleanerAcceptedAt:         m.CleanerAcceptedAt,
		Arrival:                   arrival,
		Complaint:                 complaint,
		Cancellation:              cancellation,
		TaskCompletionConfirmed:   m.TaskCompletionConfirmed,
		TaskCompletionConfirmedAt: m.TaskCompletionConfirmedAt,
		CompletedBy:               bookingDomain.Party(m.CompletedBy),
		CompletionCounted:         m.CompletionCounted,
		HostReviewPeriodEndsAt:    m.HostReviewPeriodEndsAt,
		HostRating:                toRating(m.HostRating, m.HostRatingComment, m.HostRatingAt),
		CleanerRating:             toRating(m.CleanerRating, m.CleanerRatingComment, m.CleanerRatingAt),
		ReminderSentAt:            m.ReminderSentAt,
		Version:                   m.Version,
		CreatedAt:                 m.CreatedAt,
		UpdatedAt:                 m.UpdatedAt,
	}), nil
}

func toRating(value *int, comment string, at *time.Time) *bookingDomain.Rating {
	if value == nil {
		return nil
	}
	r := &bookingDomain.Rating{Value: *value, Comment: comment}
	if at != nil {
		r.CreatedAt = *at
	}
	return r
}

func marshalOptional[T any](v *T) (json.RawMessage, error) {
	if v == nil {
		return nil, nil
	}
	return json.Marshal(v)
}

func unmarshalOptional[T any](raw json.RawMessage) (*T, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}
	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, err
	}
	return &v, nil
}
