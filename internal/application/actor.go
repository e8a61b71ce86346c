package application

import (
	"github.com/google/uuid"

	"github.com/cleanmatch/service-booking/internal/platform/auth"
)

// roleSystem marks internal callers such as the payment callback consumer.
const roleSystem auth.Role = "system"

// Actor is the authenticated caller of a use case.
type Actor struct {
	UserID uuid.UUID
	Role   auth.Role
}

// SystemActor is used for transitions triggered by provider callbacks.
func SystemActor() Actor {
	return Actor{Role: roleSystem}
}

// audience maps the caller's role to the view it is allowed to see.
func (a Actor) audience() Audience {
	switch a.Role {
	case auth.RoleHost:
		return AudienceHost
	case auth.RoleCleaner:
		return AudienceCleaner
	default:
		return AudienceAdmin
	}
}
