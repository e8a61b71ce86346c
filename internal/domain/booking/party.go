package booking

// Party identifies who performed an action on a booking.
type Party string

const (
	PartyHost    Party = "host"
	PartyCleaner Party = "cleaner"
	PartyAdmin   Party = "admin"
	// PartySystem is used for actions triggered by provider callbacks.
	PartySystem Party = "system"
)

// IsValid returns true if the party is recognized.
func (p Party) IsValid() bool {
	switch p {
	case PartyHost, PartyCleaner, PartyAdmin, PartySystem:
		return true
	}
	return false
}
