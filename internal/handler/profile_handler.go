package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/cleanmatch/service-booking/internal/application"
	"github.com/cleanmatch/service-booking/internal/platform/auth"
	"github.com/cleanmatch/service-booking/internal/platform/middleware"
	"github.com/cleanmatch/service-booking/internal/platform/response"
)

// ProfileHandler handles HTTP requests for host and cleaner profiles.
type ProfileHandler struct {
	service *application.ProfileService
}

// NewProfileHandler creates a new ProfileHandler.
func NewProfileHandler(service *application.ProfileService) *ProfileHandler {
	return &ProfileHandler{service: service}
}

// RegisterRoutes registers profile routes.
func (h *ProfileHandler) RegisterRoutes(r *gin.RouterGroup, jwtManager *auth.JWTManager) {
	authMW := middleware.AuthMiddleware(jwtManager)
	participant := middleware.RequireRole(auth.RoleHost, auth.RoleCleaner)

	profiles := r.Group("/api/v1/profiles")
	profiles.Use(authMW)
	{
		profiles.POST("/me", participant, h.CreateProfile)
		profiles.GET("/me", participant, h.GetMyProfile)
		profiles.PUT("/me", participant, h.UpdateProfile)
		profiles.GET("/cleaners/:id", h.GetCleanerProfile)
	}
}

// CreateProfile handles POST /api/v1/profiles/me.
func (h *ProfileHandler) CreateProfile(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}

	var req application.CreateProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	result, err := h.service.CreateMyProfile(c.Request.Context(), actor, req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, result)
}

// GetMyProfile handles GET /api/v1/profiles/me.
func (h *ProfileHandler) GetMyProfile(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}

	result, err := h.service.GetMyProfile(c.Request.Context(), actor)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, result)
}

// UpdateProfile handles PUT /api/v1/profiles/me.
func (h *ProfileHandler) UpdateProfile(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}

	var req application.UpdateProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	result, err := h.service.UpdateMyProfile(c.Request.Context(), actor, req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, result)
}

// GetCleanerProfile handles GET /api/v1/profiles/cleaners/:id.
func (h *ProfileHandler) GetCleanerProfile(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid cleaner ID")
		return
	}

	result, err := h.service.GetCleanerProfile(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, result)
}
