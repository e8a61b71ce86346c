package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/cleanmatch/service-booking/internal/application"
	bookingDomain "github.com/cleanmatch/service-booking/internal/domain/booking"
	"github.com/cleanmatch/service-booking/internal/platform/auth"
	"github.com/cleanmatch/service-booking/internal/platform/middleware"
	"github.com/cleanmatch/service-booking/internal/platform/response"
)

// BookingHandler handles HTTP requests for booking operations.
type BookingHandler struct {
	service *application.BookingService
}

// NewBookingHandler creates a new BookingHandler.
func NewBookingHandler(service *application.BookingService) *BookingHandler {
	return &BookingHandler{service: service}
}

type reasonBody struct {
	Reason string `json:"reason"`
}

type arriveBody struct {
	Location *bookingDomain.GeoPoint `json:"location"`
}

// RegisterRoutes registers all booking routes on the given router group.
func (h *BookingHandler) RegisterRoutes(r *gin.RouterGroup, jwtManager *auth.JWTManager) {
	authMW := middleware.AuthMiddleware(jwtManager)
	hostOnly := middleware.RequireRole(auth.RoleHost)
	cleanerOnly := middleware.RequireRole(auth.RoleCleaner)
	participant := middleware.RequireRole(auth.RoleHost, auth.RoleCleaner)

	bookings := r.Group("/api/v1/bookings")
	bookings.Use(authMW)
	{
		bookings.POST("", hostOnly, h.CreateBooking)
		bookings.GET("", participant, h.ListBookings)
		bookings.GET("/:id", h.GetBooking)
		bookings.POST("/:id/pay", hostOnly, h.ConfirmPayment)
		bookings.POST("/:id/accept", cleanerOnly, h.AcceptBooking)
		bookings.POST("/:id/reject", cleanerOnly, h.RejectBooking)
		bookings.POST("/:id/arrive", cleanerOnly, h.MarkArrived)
		bookings.POST("/:id/share-contact", hostOnly, h.ShareContactInfo)
		bookings.PATCH("/:id/tasks", cleanerOnly, h.UpdateTasks)
		bookings.POST("/:id/complete", participant, h.CompleteBooking)
		bookings.POST("/:id/complaint", hostOnly, h.SubmitComplaint)
		bookings.POST("/:id/rate", participant, h.RateBooking)
		bookings.POST("/:id/cancel", h.CancelBooking)
	}
}

// CreateBooking handles POST /api/v1/bookings.
func (h *BookingHandler) CreateBooking(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}

	var req application.CreateBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	result, err := h.service.CreateBooking(c.Request.Context(), actor, req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, result)
}

// ListBookings handles GET /api/v1/bookings. Hosts see their requests, cleaners their jobs.
func (h *BookingHandler) ListBookings(c *gin.Context) {
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

// GetBooking handles GET /api/v1/bookings/:id.
func (h *BookingHandler) GetBooking(c *gin.Context) {
	id, ok := bookingID(c)
	if !ok {
		return
	}
	actor, ok := currentActor(c)
	if !ok {
		return
	}

	result, err := h.service.GetBooking(c.Request.Context(), actor, id)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, result)
}

// ConfirmPayment handles POST /api/v1/bookings/:id/pay.
func (h *BookingHandler) ConfirmPayment(c *gin.Context) {
	id, ok := bookingID(c)
	if !ok {
		return
	}
	actor, ok := currentActor(c)
	if !ok {
		return
	}

	result, err := h.service.ConfirmPayment(c.Request.Context(), actor, id)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, result)
}

// AcceptBooking handles POST /api/v1/bookings/:id/accept.
func (h *BookingHandler) AcceptBooking(c *gin.Context) {
	id, ok := bookingID(c)
	if !ok {
		return
	}
	actor, ok := currentActor(c)
	if !ok {
		return
	}

	result, err := h.service.AcceptBooking(c.Request.Context(), actor, id)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, result)
}

// RejectBooking handles POST /api/v1/bookings/:id/reject.
func (h *BookingHandler) RejectBooking(c *gin.Context) {
	id, ok := bookingID(c)
	if !ok {
		return
	}
	actor, ok := currentActor(c)
	if !ok {
		return
	}

	var body reasonBody
	_ = c.ShouldBindJSON(&body)

	result, err := h.service.RejectBooking(c.Request.Context(), actor, id, body.Reason)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, result)
}

// MarkArrived handles POST /api/v1/bookings/:id/arrive. The location is optional.
func (h *BookingHandler) MarkArrived(c *gin.Context) {
	id, ok := bookingID(c)
	if !ok {
		return
	}
	actor, ok := currentActor(c)
	if !ok {
		return
	}

	var body arriveBody
	_ = c.ShouldBindJSON(&body)

	result, err := h.service.MarkArrived(c.Request.Context(), actor, id, body.Location)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, result)
}

// ShareContactInfo handles POST /api/v1/bookings/:id/share-contact.
func (h *BookingHandler) ShareContactInfo(c *gin.Context) {
	id, ok := bookingID(c)
	if !ok {
		return
	}
	actor, ok := currentActor(c)
	if !ok {
		return
	}

	result, err := h.service.ShareContactInfo(c.Request.Context(), actor, id)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, result)
}

// UpdateTasks handles PATCH /api/v1/bookings/:id/tasks.
func (h *BookingHandler) UpdateTasks(c *gin.Context) {
	id, ok := bookingID(c)
	if !ok {
		return
	}
	actor, ok := currentActor(c)
	if !ok {
		return
	}

	var req application.UpdateTasksRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	result, err := h.service.UpdateTasks(c.Request.Context(), actor, id, req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, result)
}

// CompleteBooking handles POST /api/v1/bookings/:id/complete.
func (h *BookingHandler) CompleteBooking(c *gin.Context) {
	id, ok := bookingID(c)
	if !ok {
		return
	}
	actor, ok := currentActor(c)
	if !ok {
		return
	}

	result, err := h.service.CompleteBooking(c.Request.Context(), actor, id)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, result)
}

// SubmitComplaint handles POST /api/v1/bookings/:id/complaint.
func (h *BookingHandler) SubmitComplaint(c *gin.Context) {
	id, ok := bookingID(c)
	if !ok {
		return
	}
	actor, ok := currentActor(c)
	if !ok {
		return
	}

	var req application.SubmitComplaintRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	result, err := h.service.SubmitComplaint(c.Request.Context(), actor, id, req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, result)
}

// RateBooking handles POST /api/v1/bookings/:id/rate.
func (h *BookingHandler) RateBooking(c *gin.Context) {
	id, ok := bookingID(c)
	if !ok {
		return
	}
	actor, ok := currentActor(c)
	if !ok {
		return
	}

	var req application.RateBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	result, err := h.service.RateBooking(c.Request.Context(), actor, id, req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, result)
}

// CancelBooking handles POST /api/v1/bookings/:id/cancel.
func (h *BookingHandler) CancelBooking(c *gin.Context) {
	id, ok := bookingID(c)
	if !ok {
		return
	}
	actor, ok := currentActor(c)
	if !ok {
		return
	}

	var body reasonBody
	_ = c.ShouldBindJSON(&body)

	result, err := h.service.CancelBooking(c.Request.Context(), actor, id, body.Reason)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, result)
}
