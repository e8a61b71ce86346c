package handler

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/cleanmatch/service-booking/internal/application"
	"github.com/cleanmatch/service-booking/internal/platform/auth"
	"github.com/cleanmatch/service-booking/internal/platform/middleware"
	"github.com/cleanmatch/service-booking/internal/platform/response"
)

// AdminBookingHandler handles admin HTTP requests for booking management.
type AdminBookingHandler struct {
	service *application.BookingService
}

// NewAdminBookingHandler creates a new AdminBookingHandler.
func NewAdminBookingHandler(service *application.BookingService) *AdminBookingHandler {
	return &AdminBookingHandler{service: service}
}

// RegisterRoutes registers admin booking routes.
func (h *AdminBookingHandler) RegisterRoutes(r *gin.RouterGroup, jwtManager *auth.JWTManager) {
	authMW := middleware.AuthMiddleware(jwtManager)
	adminRole := middleware.RequireRole(auth.RoleAdmin)

	admin := r.Group("/api/v1/admin")
	admin.Use(authMW, adminRole)
	{
		admin.GET("/bookings", h.ListBookings)
		admin.GET("/stats/bookings", h.BookingStats)
		admin.POST("/bookings/:id/confirm-payment", h.ConfirmPayment)
		admin.POST("/bookings/:id/complete", h.CompleteBooking)
		admin.POST("/bookings/:id/payout", h.ReleasePayout)
		admin.POST("/bookings/:id/payout/reconcile", h.ReconcilePayout)
		admin.POST("/bookings/:id/resolve", h.ResolveDispute)
		admin.DELETE("/bookings/:id", h.DeleteBooking)
	}
}

// ListBookings handles GET /api/v1/admin/bookings.
func (h *AdminBookingHandler) ListBookings(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}

	page, limit := parsePagination(c)
	result, err := h.service.ListMyBookings(c.Request.Context(), actor, page, limit)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Paginated(c, result.Items, result.Total, result.Page, result.Limit)
}

// BookingStats handles GET /api/v1/admin/stats/bookings.
func (h *AdminBookingHandler) BookingStats(c *gin.Context) {
	stats, err := h.service.GetBookingStats(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, stats)
}

// ConfirmPayment handles POST /api/v1/admin/bookings/:id/confirm-payment.
func (h *AdminBookingHandler) ConfirmPayment(c *gin.Context) {
	h.transition(c, h.service.ConfirmPayment)
}

// CompleteBooking handles POST /api/v1/admin/bookings/:id/complete.
func (h *AdminBookingHandler) CompleteBooking(c *gin.Context) {
	h.transition(c, h.service.CompleteBooking)
}

// ReleasePayout handles POST /api/v1/admin/bookings/:id/payout.
func (h *AdminBookingHandler) ReleasePayout(c *gin.Context) {
	h.transition(c, h.service.ReleasePayout)
}

// ReconcilePayout handles POST /api/v1/admin/bookings/:id/payout/reconcile.
func (h *AdminBookingHandler) ReconcilePayout(c *gin.Context) {
	id, ok := bookingID(c)
	if !ok {
		return
	}
	actor, ok := currentActor(c)
	if !ok {
		return
	}

	var req application.ReconcilePayoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	result, err := h.service.ReconcilePayout(c.Request.Context(), actor, id, req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, result)
}

// ResolveDispute handles POST /api/v1/admin/bookings/:id/resolve.
func (h *AdminBookingHandler) ResolveDispute(c *gin.Context) {
	id, ok := bookingID(c)
	if !ok {
		return
	}
	actor, ok := currentActor(c)
	if !ok {
		return
	}

	var req application.ResolveDisputeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	result, err := h.service.ResolveDispute(c.Request.Context(), actor, id, req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, result)
}

// DeleteBooking handles DELETE /api/v1/admin/bookings/:id.
func (h *AdminBookingHandler) DeleteBooking(c *gin.Context) {
	id, ok := bookingID(c)
	if !ok {
		return
	}
	actor, ok := currentActor(c)
	if !ok {
		return
	}

	if err := h.service.DeleteBooking(c.Request.Context(), actor, id); err != nil {
		response.Error(c, err)
		return
	}

	response.NoContent(c)
}

type bookingTransition func(ctx context.Context, actor application.Actor, id uuid.UUID) (application.BookingResponse, error)

func (h *AdminBookingHandler) transition(c *gin.Context, fn bookingTransition) {
	id, ok := bookingID(c)
	if !ok {
		return
	}
	actor, ok := currentActor(c)
	if !ok {
		return
	}

	result, err := fn(c.Request.Context(), actor, id)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, result)
}
