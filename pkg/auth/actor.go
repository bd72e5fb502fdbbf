package auth

import (
	"github.com/google/uuid"

	"github.com/davidorduna/agromarket-backend/pkg/enums"
)

// Actor is the authenticated identity a service operation runs as. Services
// do their own owner-or-admin checks against it; transport only extracts it.
type Actor struct {
	CustomerID uuid.UUID      `json:"customer_id"`
	Role       enums.UserRole `json:"role"`
}

// IsAdmin reports whether the actor carries the administrator role.
func (a Actor) IsAdmin() bool {
	return a.Role == enums.UserRoleAdministrator
}

// CanAccess reports whether the actor may act on the given customer's data.
func (a Actor) CanAccess(customerID uuid.UUID) bool {
	return a.IsAdmin() || a.CustomerID == customerID
}
