package application

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/phpdave11/gofpdf"
	"go.uber.org/zap"

	bookingDomain "github.com/cleanmatch/service-booking/internal/domain/booking"
	"github.com/cleanmatch/service-booking/internal/domain/invoice"
	"github.com/cleanmatch/service-booking/internal/platform/auth"
)

// InvoiceDTO is the API response representation of an invoice.
type InvoiceDTO struct {
	ID        uuid.UUID  `json:"id"`
	Number    string     `json:"number"`
	BookingID uuid.UUID  `json:"booking_id"`
	HostID    uuid.UUID  `json:"host_id"`
	CleanerID uuid.UUID  `json:"cleaner_id"`
	Amount    int64      `json:"amount"`
	Currency  string     `json:"currency"`
	Status    string     `json:"status"`
	IssuedAt  time.Time  `json:"issued_at"`
	PaidAt    *time.Time `json:"paid_at,omitempty"`
}

// InvoiceService exposes the invoice issued when a booking completes.
type InvoiceService struct {
	repo     invoice.Repository
	bookings bookingDomain.BookingRepository
	logger   *zap.Logger
}

// NewInvoiceService creates a new InvoiceService.
func NewInvoiceService(repo invoice.Repository, bookings bookingDomain.BookingRepository, logger *zap.Logger) *InvoiceService {
	return &InvoiceService{repo: repo, bookings: bookings, logger: logger}
}

// GetBookingInvoice returns the booking's invoice to its participants and admins.
func (s *InvoiceService) GetBookingInvoice(ctx context.Context, actor Actor, bookingID uuid.UUID) (*InvoiceDTO, error) {
	inv, _, err := s.load(ctx, actor, bookingID)
	if err != nil {
		return nil, err
	}
	return toInvoiceDTO(inv), nil
}

// RenderInvoicePDF returns the invoice as a PDF document and its file name.
func (s *InvoiceService) RenderInvoicePDF(ctx context.Context, actor Actor, bookingID uuid.UUID) ([]byte, string, error) {
	inv, bk, err := s.load(ctx, actor, bookingID)
	if err != nil {
		return nil, "", err
	}
	out, err := renderInvoicePDF(inv, bk)
	if err != nil {
		s.logger.Error("failed to render invoice", zap.String("invoice", inv.Number()), zap.Error(err))
		return nil, "", fmt.Errorf("failed to render invoice: %w", err)
	}
	return out, inv.Number() + ".pdf", nil
}

func (s *InvoiceService) load(ctx context.Context, actor Actor, bookingID uuid.UUID) (*invoice.Invoice, *bookingDomain.Booking, error) {
	bk, err := s.bookings.FindByID(ctx, bookingID)
	if err != nil {
		return nil, nil, err
	}
	if actor.Role != auth.RoleAdmin {
		if err := ensureParticipant(actor, bk); err != nil {
			return nil, nil, err
		}
	}
	inv, err := s.repo.FindByBookingID(ctx, bookingID)
	if err != nil {
		return nil, nil, err
	}
	return inv, bk, nil
}

func renderInvoicePDF(inv *invoice.Invoice, bk *bookingDomain.Booking) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetTitle("Invoice "+inv.Number(), false)
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 18)
	pdf.Cell(0, 10, "INVOICE")
	pdf.Ln(12)

	pdf.SetFont("Helvetica", "", 12)
	lines := []string{
		"Invoice no  : " + inv.Number(),
		"Booking     : " + bk.BookingNumber(),
		"Issued      : " + inv.IssuedAt().Format("2006-01-02"),
		"Job date    : " + bk.Schedule().Date.Format("2006-01-02") + " " + bk.Schedule().StartTime + "-" + bk.Schedule().EndTime,
	}
	for _, l := range lines {
		pdf.Cell(0, 7, l)
		pdf.Ln(7)
	}
	pdf.Ln(4)

	pdf.SetFont("Helvetica", "B", 12)
	pdf.Cell(0, 7, "Services:")
	pdf.Ln(8)
	pdf.SetFont("Helvetica", "", 11)
	for i, task := range bk.Checklist() {
		pdf.Cell(0, 6, fmt.Sprintf("%d) %s", i+1, task.Name))
		pdf.Ln(6)
	}
	pdf.Ln(4)

	pdf.SetFont("Helvetica", "B", 12)
	pdf.Cell(0, 8, fmt.Sprintf("Total: %s %s", formatAmount(inv.Amount()), inv.Currency()))
	pdf.Ln(10)

	pdf.SetFont("Helvetica", "I", 10)
	status := "Status: issued, paid out after the host review period."
	if inv.Status() == invoice.StatusPaid && inv.PaidAt() != nil {
		status = "Status: paid on " + inv.PaidAt().Format("2006-01-02")
	}
	pdf.MultiCell(0, 6, status, "", "", false)

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func toInvoiceDTO(inv *invoice.Invoice) *InvoiceDTO {
	return &InvoiceDTO{
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
}

