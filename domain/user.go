package domain

import "time"

// Role classifies an account side of the marketplace.
type Role string

const (
	RoleHomeowner Role = "homeowner"
	RoleTiler     Role = "tiler"
	RoleAdmin     Role = "admin"
)

func ValidRole(r Role) bool {
	switch r {
	case RoleHomeowner, RoleTiler, RoleAdmin:
		return true
	default:
		return false
	}
}

// User represents an authenticated identity in the platform. Role is the
// authoritative record consulted by the write path; client-asserted roles
// are never trusted.
type User struct {
	ID        string            `json:"id"`
	Email     string            `json:"email,omitempty"`
	Role      Role              `json:"role"`
	Status    string            `json:"status"`
	Metadata  map[string]string `json:"metadata,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
	UpdatedAt time.Time         `json:"updated_at"`
}

func (u *User) IsActive() bool {
	return u != nil && u.Status == "active"
}

func (u *User) IsTiler() bool {
	return u != nil && u.Role == RoleTiler
}

func (u *User) IsAdmin() bool {
	return u != nil && u.Role == RoleAdmin
}
