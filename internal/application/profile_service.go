package application

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/cleanmatch/service-booking/internal/domain/profile"
	"github.com/cleanmatch/service-booking/internal/platform/auth"
	"github.com/cleanmatch/service-booking/internal/platform/domain"
)

// CreateProfileRequest is the request DTO for creating the caller's profile.
type CreateProfileRequest struct {
	DisplayName string `json:"display_name" binding:"required"`
	Email       string `json:"email" binding:"required,email"`
	Phone       string `json:"phone"`
}

// UpdateProfileRequest is the request DTO for updating the caller's profile.
// AccountRef is the payment customer for hosts and the payout account for cleaners.
type UpdateProfileRequest struct {
	DisplayName string  `json:"display_name"`
	Email       *string `json:"email" binding:"omitempty,email"`
	Phone       *string `json:"phone"`
	AccountRef  string  `json:"account_ref"`
}

// ProfileDTO is the API response representation of a host or cleaner profile.
type ProfileDTO struct {
	ID             uuid.UUID             `json:"id"`
	UserID         uuid.UUID             `json:"user_id"`
	Role           string                `json:"role"`
	DisplayName    string                `json:"display_name"`
	Contact        *profile.Contact      `json:"contact,omitempty"`
	Rating         profile.RatingSummary `json:"rating"`
	HasAccountRef  bool                  `json:"has_account_ref"`
	CompletedJobs  int                   `json:"completed_jobs,omitempty"`
	TotalEarnings  int64                 `json:"total_earnings,omitempty"`
	ActiveBookings []uuid.UUID           `json:"active_bookings,omitempty"`
	CreatedAt      time.Time             `json:"created_at"`
	UpdatedAt      time.Time             `json:"updated_at"`
}

// ProfileService implements use cases for host and cleaner profiles.
type ProfileService struct {
	repo   profile.Repository
	now    func() time.Time
	logger *zap.Logger
}

// NewProfileService creates a new ProfileService.
func NewProfileService(repo profile.Repository, logger *zap.Logger) *ProfileService {
	return &ProfileService{repo: repo, now: func() time.Time { return time.Now().UTC() }, logger: logger}
}

// CreateMyProfile creates the caller's host or cleaner profile.
func (s *ProfileService) CreateMyProfile(ctx context.Context, actor Actor, req CreateProfileRequest) (*ProfileDTO, error) {
	contact := profile.Contact{Email: req.Email, Phone: req.Phone}
	switch actor.Role {
	case auth.RoleHost:
		if _, err := s.repo.FindHostByUserID(ctx, actor.UserID); err == nil {
			return nil, domain.NewConflictError("host profile already exists")
		} else if !domain.IsNotFound(err) {
			return nil, err
		}
		h, err := profile.NewHost(actor.UserID, req.DisplayName, contact, s.now())
		if err != nil {
			return nil, err
		}
		if err := s.repo.SaveHost(ctx, h); err != nil {
			return nil, fmt.Errorf("failed to create host profile: %w", err)
		}
		s.logger.Info("host profile created", zap.String("host_id", h.ID().String()))
		return toHostDTO(h, true), nil
	case auth.RoleCleaner:
		if _, err := s.repo.FindCleanerByUserID(ctx, actor.UserID); err == nil {
			return nil, domain.NewConflictError("cleaner profile already exists")
		} else if !domain.IsNotFound(err) {
			return nil, err
		}
		c, err := profile.NewCleaner(actor.UserID, req.DisplayName, contact, s.now())
		if err != nil {
			return nil, err
		}
		if err := s.repo.SaveCleaner(ctx, c); err != nil {
			return nil, fmt.Errorf("failed to create cleaner profile: %w", err)
		}
		s.logger.Info("cleaner profile created", zap.String("cleaner_id", c.ID().String()))
		return toCleanerDTO(c, true), nil
	}
	return nil, domain.NewForbiddenError("only hosts and cleaners have profiles")
}

// GetMyProfile returns the caller's own profile including contact details.
func (s *ProfileService) GetMyProfile(ctx context.Context, actor Actor) (*ProfileDTO, error) {
	switch actor.Role {
	case auth.RoleHost:
		h, err := s.repo.FindHostByUserID(ctx, actor.UserID)
		if err != nil {
			return nil, err
		}
		return toHostDTO(h, true), nil
	case auth.RoleCleaner:
		c, err := s.repo.FindCleanerByUserID(ctx, actor.UserID)
		if err != nil {
			return nil, err
		}
		return toCleanerDTO(c, true), nil
	}
	return nil, domain.NewForbiddenError("only hosts and cleaners have profiles")
}

// UpdateMyProfile applies a partial update to the caller's profile.
func (s *ProfileService) UpdateMyProfile(ctx context.Context, actor Actor, req UpdateProfileRequest) (*ProfileDTO, error) {
	switch actor.Role {
	case auth.RoleHost:
		h, err := s.repo.FindHostByUserID(ctx, actor.UserID)
		if err != nil {
			return nil, err
		}
		h.UpdateDetails(req.DisplayName, mergeContact(h.Contact(), req), req.AccountRef, s.now())
		if err := s.repo.SaveHost(ctx, h); err != nil {
			return nil, fmt.Errorf("failed to update host profile: %w", err)
		}
		return toHostDTO(h, true), nil
	case auth.RoleCleaner:
		c, err := s.repo.FindCleanerByUserID(ctx, actor.UserID)
		if err != nil {
			return nil, err
		}
		c.UpdateDetails(req.DisplayName, mergeContact(c.Contact(), req), req.AccountRef, s.now())
		if err := s.repo.SaveCleaner(ctx, c); err != nil {
			return nil, fmt.Errorf("failed to update cleaner profile: %w", err)
		}
		return toCleanerDTO(c, true), nil
	}
	return nil, domain.NewForbiddenError("only hosts and cleaners have profiles")
}

// GetCleanerProfile returns a cleaner's public profile: no contact details.
func (s *ProfileService) GetCleanerProfile(ctx context.Context, cleanerID uuid.UUID) (*ProfileDTO, error) {
	c, err := s.repo.FindCleanerByID(ctx, cleanerID)
	if err != nil {
		return nil, err
	}
	dto := toCleanerDTO(c, false)
	dto.TotalEarnings = 0
	dto.ActiveBookings = nil
	return dto, nil
}

func mergeContact(current profile.Contact, req UpdateProfileRequest) *profile.Contact {
	if req.Email == nil && req.Phone == nil {
		return nil
	}
	if req.Email != nil {
		current.Email = *req.Email
	}
	if req.Phone != nil {
		current.Phone = *req.Phone
	}
	return &current
}

func toHostDTO(h *profile.Host, withContact bool) *ProfileDTO {
	dto := &ProfileDTO{
		ID:            h.ID(),
		UserID:        h.UserID(),
		Role:          string(auth.RoleHost),
		DisplayName:   h.DisplayName(),
		Rating:        h.Rating(),
		HasAccountRef: h.HasPaymentProfile(),
		CreatedAt:     h.CreatedAt(),
		UpdatedAt:     h.UpdatedAt(),
	}
	if withContact {
		c := h.Contact()
		dto.Contact = &c
	}
	return dto
}

func toCleanerDTO(c *profile.Cleaner, withContact bool) *ProfileDTO {
	dto := &ProfileDTO{
		ID:             c.ID(),
		UserID:         c.UserID(),
		Role:           string(auth.RoleCleaner),
		DisplayName:    c.DisplayName(),
		Rating:         c.Rating(),
		HasAccountRef:  c.PayoutAccountRef() != "",
		CompletedJobs:  c.CompletedJobs(),
		TotalEarnings:  c.TotalEarnings(),
		ActiveBookings: c.ActiveBookings(),
		CreatedAt:      c.CreatedAt(),
		UpdatedAt:      c.UpdatedAt(),
	}
	if withContact {
		ct := c.Contact()
		dto.Contact = &ct
	}
	return dto
}
