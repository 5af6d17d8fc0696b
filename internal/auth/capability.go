package auth

import (
	"github.com/google/uuid"

	"github.com/sahaj-pos/core/internal/enum"
)

// Capability is a coarse permission the services check on state-machine
// edges. Roles map to capability sets here, in the core, not in the
// presentation layer.
type Capability string

const (
	// CapStaff covers everyday order work: creating orders, adding items,
	// moving an order through preparation and serving.
	CapStaff Capability = "staff"
	// CapCashier gates completing an order and recording payments.
	CapCashier Capability = "cashier"
)

var roleCapabilities = map[string][]Capability{
	enum.UserRoleOwner:   {CapStaff, CapCashier},
	enum.UserRoleManager: {CapStaff, CapCashier},
	enum.UserRoleCashier: {CapStaff, CapCashier},
	enum.UserRoleWaiter:  {CapStaff},
	enum.UserRoleKitchen: {CapStaff},
}

// Actor is a resolved identity plus its role, as produced by the identity
// collaborator (here, validated JWT claims).
type Actor struct {
	ID         uuid.UUID
	Username   string
	Role       string
	TerminalID string
}

// Can reports whether the actor's role grants the capability.
func (a Actor) Can(cap Capability) bool {
	for _, c := range roleCapabilities[a.Role] {
		if c == cap {
			return true
		}
	}
	return false
}
