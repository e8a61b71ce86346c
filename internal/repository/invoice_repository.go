package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/cleanmatch/service-booking/internal/domain/invoice"
	"github.com/cleanmatch/service-booking/internal/platform/database"
	"github.com/cleanmatch/service-booking/internal/platform/domain"
)

// InvoiceModel is the GORM model for the invoices table.
type InvoiceModel struct {
	ID        uuid.UUID  `gorm:"type:uuid;primaryKey"`
	Number    string     `gorm:"size:30;uniqueIndex;not null"`
	BookingID uuid.UUID  `gorm:"type:uuid;uniqueIndex;not null"`
	HostID    uuid.UUID  `gorm:"type:uuid;not null"`
	CleanerID uuid.UUID  `gorm:"type:uuid;index;not null"`
	Amount    int64      `gorm:"not null"`
	Currency  string     `gorm:"size:3;not null"`
	Status    string     `gorm:"size:20;not null"`
	IssuedAt  time.Time  `gorm:"not null"`
	PaidAt    *time.Time `gorm:""`
}

func (InvoiceModel) TableName() string { return "invoices" }

// GormInvoiceRepository implements invoice.Repository using GORM.
type GormInvoiceRepository struct {
	db *gorm.DB
}

func NewGormInvoiceRepository(db *gorm.DB) *GormInvoiceRepository {
	return &GormInvoiceRepository{db: db}
}

// Save inserts the invoice. A second invoice for the same booking is ignored.
func (r *GormInvoiceRepository) Save(ctx context.Context, inv *invoice.Invoice) error {
	model := InvoiceModel{
		ID:        inv.ID(),
		Number:    inv.Number(),
		BookingID: inv.BookingID(),
		HostID:    inv.HostID(),
		CleanerID: inv.CleanerID(),
		Amount:    inv.Amount(),
		Currency:  inv.Currency(),
		Status:    string(inv.Status()),
		IssuedAt:  inv.IssuedAt(),
		PaidAt:    inv.PaidAt(),
	}
	err := database.Conn(ctx, r.db).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "booking_id"}},
		DoNothing: true,
	}).Create(&model).Error
	if err != nil {
		return fmt.Errorf("failed to save invoice: %w", err)
	}
	return nil
}

func (r *GormInvoiceRepository) FindByBookingID(ctx context.Context, bookingID uuid.UUID) (*invoice.Invoice, error) {
	var m InvoiceModel
	if err := database.Conn(ctx, r.db).Where("booking_id = ?", bookingID).First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.NewNotFoundError("Invoice", bookingID.String())
		}
		return nil, fmt.Errorf("failed to find invoice: %w", err)
	}
	return invoice.Reconstruct(m.ID, m.Number, m.BookingID, m.HostID, m.CleanerID, m.Amount, m.Currency,
		invoice.Status(m.Status), m.IssuedAt, m.PaidAt), nil
}

// MarkPaidByBookingID flips an issued invoice to paid. Already paid or
// missing invoices are left alone.
func (r *GormInvoiceRepository) MarkPaidByBookingID(ctx context.Context, bookingID uuid.UUID, paidAt time.Time) error {
	err := database.Conn(ctx, r.db).Model(&InvoiceModel{}).
		Where("booking_id = ? AND status = ?", bookingID, string(invoice.StatusIssued)).
		Updates(map[string]interface{}{
			"status":  string(invoice.StatusPaid),
			"paid_at": paidAt,
		}).Error
	if err != nil {
		return fmt.Errorf("failed to mark invoice paid: %w", err)
	}
	return nil
}

func (r *GormInvoiceRepository) DeleteByBookingID(ctx context.Context, bookingID uuid.UUID) error {
	if err := database.Conn(ctx, r.db).Where("booking_id = ?", bookingID).Delete(&InvoiceModel{}).Error; err != nil {
		return fmt.Errorf("failed to delete invoice: %w", err)
	}
	return nil
}
