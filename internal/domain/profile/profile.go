package profile

import (
	"strings"
	"time"

	"github.com/cleanmatch/service-booking/internal/platform/domain"
	"github.com/google/uuid"
)

// Contact holds the details revealed to the counterparty once the host shares them.
type Contact struct {
	Email string `json:"email"`
	Phone string `json:"phone"`
}

// RatingSummary is a profile's running rating aggregate.
type RatingSummary struct {
	Average float64 `json:"average"`
	Count   int     `json:"count"`
	Total   int64   `json:"-"`
}

// Host is the profile record of a property owner.
type Host struct {
	id                 uuid.UUID
	userID             uuid.UUID
	displayName        string
	contact            Contact
	paymentCustomerRef string
	rating             RatingSummary
	version            int64
	createdAt          time.Time
	updatedAt          time.Time
}

// NewHost creates a host profile for a user.
func NewHost(userID uuid.UUID, displayName string, contact Contact, now time.Time) (*Host, error) {
	if userID == uuid.Nil {
		return nil, domain.NewValidationError("user ID is required")
	}
	displayName = strings.TrimSpace(displayName)
	if displayName == "" {
		return nil, domain.NewValidationError("display name is required")
	}
	return &Host{
		id:          uuid.New(),
		userID:      userID,
		displayName: displayName,
		contact:     contact,
		version:     1,
		createdAt:   now,
		updatedAt:   now,
	}, nil
}

// ReconstructHost rebuilds a Host from persistence data (no validation).
func ReconstructHost(id, userID uuid.UUID, displayName string, contact Contact, paymentCustomerRef string,
	rating RatingSummary, version int64, createdAt, updatedAt time.Time) *Host {
	return &Host{
		id:                 id,
		userID:             userID,
		displayName:        displayName,
		contact:            contact,
		paymentCustomerRef: paymentCustomerRef,
		rating:             rating,
		version:            version,
		createdAt:          createdAt,
		updatedAt:          updatedAt,
	}
}

func (h *Host) ID() uuid.UUID               { return h.id }
func (h *Host) UserID() uuid.UUID           { return h.userID }
func (h *Host) DisplayName() string         { return h.displayName }
func (h *Host) Contact() Contact            { return h.contact }
func (h *Host) PaymentCustomerRef() string  { return h.paymentCustomerRef }
func (h *Host) Rating() RatingSummary       { return h.rating }
func (h *Host) Version() int64              { return h.version }
func (h *Host) CreatedAt() time.Time        { return h.createdAt }
func (h *Host) UpdatedAt() time.Time        { return h.updatedAt }

// HasPaymentProfile reports whether the host can be charged without further input.
func (h *Host) HasPaymentProfile() bool { return h.paymentCustomerRef != "" }

// UpdateDetails overwrites the editable fields; empty values leave a field unchanged.
func (h *Host) UpdateDetails(displayName string, contact *Contact, paymentCustomerRef string, now time.Time) {
	if v := strings.TrimSpace(displayName); v != "" {
		h.displayName = v
	}
	if contact != nil {
		h.contact = *contact
	}
	if v := strings.TrimSpace(paymentCustomerRef); v != "" {
		h.paymentCustomerRef = v
	}
	h.version++
	h.updatedAt = now
}

// Cleaner is the profile record of a cleaning professional.
type Cleaner struct {
	id               uuid.UUID
	userID           uuid.UUID
	displayName      string
	contact          Contact
	payoutAccountRef string
	rating           RatingSummary
	completedJobs    int
	totalEarnings    int64
	activeBookings   []uuid.UUID
	version          int64
	createdAt        time.Time
	updatedAt        time.Time
}

// NewCleaner creates a cleaner profile for a user.
func NewCleaner(userID uuid.UUID, displayName string, contact Contact, now time.Time) (*Cleaner, error) {
	if userID == uuid.Nil {
		return nil, domain.NewValidationError("user ID is required")
	}
	displayName = strings.TrimSpace(displayName)
	if displayName == "" {
		return nil, domain.NewValidationError("display name is required")
	}
	return &Cleaner{
		id:          uuid.New(),
		userID:      userID,
		displayName: displayName,
		contact:     contact,
		version:     1,
		createdAt:   now,
		updatedAt:   now,
	}, nil
}

// ReconstructCleaner rebuilds a Cleaner from persistence data (no validation).
func ReconstructCleaner(id, userID uuid.UUID, displayName string, contact Contact, payoutAccountRef string,
	rating RatingSummary, completedJobs int, totalEarnings int64, activeBookings []uuid.UUID,
	version int64, createdAt, updatedAt time.Time) *Cleaner {
	return &Cleaner{
		id:               id,
		userID:           userID,
		displayName:      displayName,
		contact:          contact,
		payoutAccountRef: payoutAccountRef,
		rating:           rating,
		completedJobs:    completedJobs,
		totalEarnings:    totalEarnings,
		activeBookings:   activeBookings,
		version:          version,
		createdAt:        createdAt,
		updatedAt:        updatedAt,
	}
}

func (c *Cleaner) ID() uuid.UUID             { return c.id }
func (c *Cleaner) UserID() uuid.UUID         { return c.userID }
func (c *Cleaner) DisplayName() string       { return c.displayName }
func (c *Cleaner) Contact() Contact          { return c.contact }
func (c *Cleaner) PayoutAccountRef() string  { return c.payoutAccountRef }
func (c *Cleaner) Rating() RatingSummary     { return c.rating }
func (c *Cleaner) CompletedJobs() int        { return c.completedJobs }
func (c *Cleaner) TotalEarnings() int64      { return c.totalEarnings }
func (c *Cleaner) Version() int64            { return c.version }
func (c *Cleaner) CreatedAt() time.Time      { return c.createdAt }
func (c *Cleaner) UpdatedAt() time.Time      { return c.updatedAt }
func (c *Cleaner) ActiveBookings() []uuid.UUID {
	return append([]uuid.UUID(nil), c.activeBookings...)
}

// UpdateDetails overwrites the editable fields; empty values leave a field unchanged.
func (c *Cleaner) UpdateDetails(displayName string, contact *Contact, payoutAccountRef string, now time.Time) {
	if v := strings.TrimSpace(displayName); v != "" {
		c.displayName = v
	}
	if contact != nil {
		c.contact = *contact
	}
	if v := strings.TrimSpace(payoutAccountRef); v != "" {
		c.payoutAccountRef = v
	}
	c.version++
	c.updatedAt = now
}
