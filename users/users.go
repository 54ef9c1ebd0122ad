package users

import (
	"time"
)

// Baseline roles granted to every authenticated user.
const (
	RoleUser = "user"
	RoleSelf = "self"
)

// BaselineRoles is appended, in this order, after a user's assigned roles
// when resolving the allowed-roles claim.
var BaselineRoles = []string{RoleUser, RoleSelf}

type User struct {
	ID          string    `json:"id,omitempty"`           // Unique identifier for the user
	Email       string    `json:"email,omitempty"`        // User's email address
	DefaultRole string    `json:"default_role,omitempty"` // Role assumed when none is requested
	Roles       []string  `json:"roles,omitempty"`        // Assigned role names, in assignment order
	Created     time.Time `json:"created,omitempty"`      // When the user first requested a login
	LastLogin   time.Time `json:"last_login,omitempty"`   // Last completed login
}
