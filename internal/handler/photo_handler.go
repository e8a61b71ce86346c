package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/cleanmatch/service-booking/internal/application"
	"github.com/cleanmatch/service-booking/internal/platform/auth"
	"github.com/cleanmatch/service-booking/internal/platform/middleware"
	"github.com/cleanmatch/service-booking/internal/platform/response"
)

// PhotoHandler handles HTTP requests for booking photo operations.
type PhotoHandler struct {
	service *application.PhotoService
}

// NewPhotoHandler creates a new PhotoHandler.
func NewPhotoHandler(service *application.PhotoService) *PhotoHandler {
	return &PhotoHandler{service: service}
}

// RegisterRoutes registers all photo routes.
func (h *PhotoHandler) RegisterRoutes(r *gin.RouterGroup, jwtManager *auth.JWTManager) {
	authMW := middleware.AuthMiddleware(jwtManager)

	photos := r.Group("/api/v1/bookings")
	photos.Use(authMW)
	{
		photos.POST("/:id/photos", middleware.RequireRole(auth.RoleHost, auth.RoleCleaner), h.UploadPhoto)
		photos.GET("/:id/photos", h.GetBookingPhotos)
	}
}

// UploadPhoto handles POST /api/v1/bookings/:id/photos.
func (h *PhotoHandler) UploadPhoto(c *gin.Context) {
	id, ok := bookingID(c)
	if !ok {
		return
	}
	actor, ok := currentActor(c)
	if !ok {
		return
	}

	var req application.UploadPhotoRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	result, err := h.service.UploadPhoto(c.Request.Context(), actor, id, req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, result)
}

// GetBookingPhotos handles GET /api/v1/bookings/:id/photos.
func (h *PhotoHandler) GetBookingPhotos(c *gin.Context) {
	id, ok := bookingID(c)
	if !ok {
		return
	}
	actor, ok := currentActor(c)
	if !ok {
		return
	}

	result, err := h.service.GetBookingPhotos(c.Request.Context(), actor, id)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, result)
}
