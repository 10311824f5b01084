package domain

import "fmt"

// PartyRole is the closed set of participant kinds in the marketplace.
type PartyRole string

const (
	RoleAdmin  PartyRole = "ADMIN"
	RoleSeller PartyRole = "SELLER"
	RoleBuyer  PartyRole = "BUYER"
)

// Valid reports whether r is one of the known roles.
func (r PartyRole) Valid() bool {
	switch r {
	case RoleAdmin, RoleSeller, RoleBuyer:
		return true
	default:
		return false
	}
}

// ParsePartyRole converts a token claim or query value into a PartyRole.
func ParsePartyRole(raw string) (PartyRole, error) {
	role := PartyRole(raw)
	if !role.Valid() {
		return "", fmt.Errorf("unknown party role %q", raw)
	}
	return role, nil
}

// Party is a resolved, verified identity acting on the chat core.
type Party struct {
	ID   string
	Role PartyRole
}

// IsAdmin reports whether the party acts as a marketplace admin.
func (p Party) IsAdmin() bool {
	return p.Role == RoleAdmin
}

// PartyProfile is the directory view of an admin, seller or buyer.
type PartyProfile struct {
	ID          string
	Role        PartyRole
	DisplayName string
	Email       string
	Active      bool
}
