package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/cleanmatch/service-booking/internal/application"
	"github.com/cleanmatch/service-booking/internal/platform/auth"
	"github.com/cleanmatch/service-booking/internal/platform/middleware"
	"github.com/cleanmatch/service-booking/internal/platform/response"
)

// InvoiceHandler serves cleaner invoices as JSON and PDF.
type InvoiceHandler struct {
	service *application.InvoiceService
}

func NewInvoiceHandler(service *application.InvoiceService) *InvoiceHandler {
	return &InvoiceHandler{service: service}
}

func (h *InvoiceHandler) RegisterRoutes(r *gin.RouterGroup, jwtManager *auth.JWTManager) {
	invoices := r.Group("/api/v1/bookings")
	invoices.Use(middleware.AuthMiddleware(jwtManager))
	{
		invoices.GET("/:id/invoice", h.GetInvoice)
		invoices.GET("/:id/invoice.pdf", h.DownloadInvoice)
	}
}

// GetInvoice handles GET /api/v1/bookings/:id/invoice.
func (h *InvoiceHandler) GetInvoice(c *gin.Context) {
	id, ok := bookingID(c)
	if !ok {
		return
	}
	actor, ok := currentActor(c)
	if !ok {
		return
	}

	result, err := h.service.GetBookingInvoice(c.Request.Context(), actor, id)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, result)
}

// DownloadInvoice handles GET /api/v1/bookings/:id/invoice.pdf.
func (h *InvoiceHandler) DownloadInvoice(c *gin.Context) {
	id, ok := bookingID(c)
	if !ok {
		return
	}
	actor, ok := currentActor(c)
	if !ok {
		return
	}

	pdf, filename, err := h.service.RenderInvoicePDF(c.Request.Context(), actor, id)
	if err != nil {
		response.Error(c, err)
		return
	}

	c.Header("Content-Disposition", `attachment; filename="`+filename+`"`)
	c.Data(http.StatusOK, "application/pdf", pdf)
}
