package directory

import (
	"errors"
	"time"

	"fieldops.lk/internal/rbac"
)

var (
	ErrNotFound           = errors.New("directory: user not found")
	ErrInvalidInput       = errors.New("directory: invalid input")
	ErrUsernameTaken      = errors.New("directory: username exists")
	ErrPermissionDenied   = errors.New("directory: permission denied")
	ErrInvalidCredentials = errors.New("directory: invalid credentials")
)

// User is an identity record. ID and Username are immutable after creation.
// Passwords are stored as bcrypt hashes; DefaultPasswordHash backs the
// reset-to-default flow.
type User struct {
	ID                  string    `json:"id"`
	Username            string    `json:"username"`
	Name                string    `json:"name"`
	Email               string    `json:"email"`
	PasswordHash        string    `json:"-"`
	DefaultPasswordHash string    `json:"-"`
	Role                rbac.Role `json:"role"`
	Region              string    `json:"region,omitempty"`
	ProfilePhoto        string    `json:"profile_photo,omitempty"`
	CreatedBy           string    `json:"created_by"`
	CreatedAt           time.Time `json:"created_at"`
}

// Principal returns the audit/authorization snapshot for the user.
func (u User) Principal() rbac.Principal {
	return rbac.Principal{UserID: u.ID, Name: u.Name, Role: u.Role, Region: u.Region}
}

// UserUpdate carries partial fields for merge-style updates; nil pointers
// leave the stored value untouched.
type UserUpdate struct {
	Name         *string
	Email        *string
	Region       *string
	Password     *string
	ProfilePhoto *string
}

// CreateUserParams is the input for Service.Create.
type CreateUserParams struct {
	Username string
	Name     string
	Email    string
	Password string
	Role     rbac.Role
	Region   string
}

// regionRequired reports whether the role must carry a region.
func regionRequired(role rbac.Role) bool {
	switch role {
	case rbac.RoleRegionalManager, rbac.RoleBusinessSupport, rbac.RoleTechLeadPartner:
		return true
	}
	return false
}
