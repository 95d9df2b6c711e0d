package auth

import "time"

// Role controls what a user may do.
type Role string

const (
	// RoleViewer may read products, stock and history.
	RoleViewer Role = "viewer"
	// RoleAdmin may post movements and manage products.
	RoleAdmin Role = "admin"
	// RoleSuperadmin additionally runs bulk imports.
	RoleSuperadmin Role = "superadmin"
)

// Valid reports whether the role is one of the known values.
func (r Role) Valid() bool {
	switch r {
	case RoleViewer, RoleAdmin, RoleSuperadmin:
		return true
	}
	return false
}

// User represents an authenticated user account.
type User struct {
	ID        int64
	Email     string
	Name      string
	Role      Role
	IsActive  bool
	CreatedAt time.Time
	UpdatedAt time.Time
}
