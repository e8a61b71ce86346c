package booking

import "time"

// ReviewPeriod is how long after completion the host may dispute, and how long payout is held.
const ReviewPeriod = 7 * 24 * time.Hour

// Schedule is when the job takes place. Times are "HH:MM" on Date.
type Schedule struct {
	Date      time.Time `json:"date"`
	StartTime string    `json:"start_time"`
	EndTime   string    `json:"end_time"`
}

// Complaint is the host's objection to a completed job.
type Complaint struct {
	IsSubmitted    bool       `json:"is_submitted"`
	SubmittedAt    time.Time  `json:"submitted_at"`
	Description    string     `json:"description"`
	EvidencePhotos []string   `json:"evidence_photos"`
	Resolution     string     `json:"resolution,omitempty"`
	ResolvedAt     *time.Time `json:"resolved_at,omitempty"`
}

// Arrival records the cleaner checking in on site.
type Arrival struct {
	HasArrived bool      `json:"has_arrived"`
	ArrivedAt  time.Time `json:"arrived_at"`
	Location   *GeoPoint `json:"location,omitempty"`
}

// GeoPoint is a WGS84 coordinate.
type GeoPoint struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Rating is a 1-5 score left by one participant about the other.
type Rating struct {
	Value     int       `json:"rating"`
	Comment   string    `json:"comment,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Cancellation records who cancelled or rejected a booking and why.
type Cancellation struct {
	CancelledBy Party     `json:"cancelled_by"`
	CancelledAt time.Time `json:"cancelled_at"`
	Reason      string    `json:"reason"`
}

// DisputeOutcome is the admin decision on a complaint.
type DisputeOutcome string

const (
	// OutcomeRelease keeps the job as completed; payout follows the normal gate.
	OutcomeRelease DisputeOutcome = "release"
	// OutcomeRefund returns the full payment to the host.
	OutcomeRefund DisputeOutcome = "refund"
)

// IsValid returns true if the outcome is recognized.
func (o DisputeOutcome) IsValid() bool {
	return o == OutcomeRelease || o == OutcomeRefund
}
