package listing

import (
	"fmt"

	"github.com/cleanmatch/service-booking/internal/platform/domain"
	"github.com/google/uuid"
)

// Status is the lifecycle state of a listing.
type Status string

const (
	StatusDraft     Status = "draft"
	StatusPublished Status = "published"
	StatusBooked    Status = "booked"
	StatusArchived  Status = "archived"
)

// ApplicationStatus is the state of a cleaner's application to a listing.
type ApplicationStatus string

const (
	ApplicationPending  ApplicationStatus = "pending"
	ApplicationAccepted ApplicationStatus = "accepted"
	ApplicationRejected ApplicationStatus = "rejected"
)

// Pricing is computed when the listing is published. TotalAmount = BaseAmount + Commission.
type Pricing struct {
	BaseAmount  int64  `json:"base_amount"`
	Commission  int64  `json:"commission"`
	TotalAmount int64  `json:"total_amount"`
	Currency    string `json:"currency"`
}

// Application is a cleaner's request to take the job.
type Application struct {
	ID        uuid.UUID
	CleanerID uuid.UUID
	Status    ApplicationStatus
}

// Listing is a host's posted cleaning request. This service only reads it and
// flips its status; the listing service owns everything else.
type Listing struct {
	id           uuid.UUID
	hostID       uuid.UUID
	title        string
	status       Status
	services     []string
	pricing      Pricing
	applications []Application
}

// Reconstruct rebuilds a Listing from persistence.
func Reconstruct(id, hostID uuid.UUID, title string, status Status, services []string, pricing Pricing, applications []Application) *Listing {
	return &Listing{
		id:           id,
		hostID:       hostID,
		title:        title,
		status:       status,
		services:     services,
		pricing:      pricing,
		applications: applications,
	}
}

func (l *Listing) ID() uuid.UUID        { return l.id }
func (l *Listing) HostID() uuid.UUID    { return l.hostID }
func (l *Listing) Title() string        { return l.title }
func (l *Listing) Status() Status       { return l.status }
func (l *Listing) Pricing() Pricing     { return l.pricing }
func (l *Listing) Services() []string   { return append([]string(nil), l.services...) }
func (l *Listing) Applications() []Application {
	return append([]Application(nil), l.applications...)
}

// EnsureBookable checks that hostID may book cleanerID on this listing.
func (l *Listing) EnsureBookable(hostID, cleanerID uuid.UUID) error {
	if l.hostID != hostID {
		return domain.NewForbiddenError("listing does not belong to this host")
	}
	if l.status != StatusPublished {
		return domain.NewPreconditionError(fmt.Sprintf("listing is %s, only published listings can be booked", l.status))
	}
	if !l.HasAcceptedApplication(cleanerID) {
		return domain.NewPreconditionError("cleaner has no accepted application on this listing")
	}
	if l.pricing.BaseAmount+l.pricing.Commission != l.pricing.TotalAmount {
		return domain.NewPreconditionError("listing pricing is inconsistent")
	}
	return nil
}

// HasAcceptedApplication reports whether cleanerID was accepted for this listing.
func (l *Listing) HasAcceptedApplication(cleanerID uuid.UUID) bool {
	for _, a := range l.applications {
		if a.CleanerID == cleanerID && a.Status == ApplicationAccepted {
			return true
		}
	}
	return false
}
