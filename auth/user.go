package auth

import (
	"time"

	"github.com/reedcms/reed/rbac"
)

// User is the service-level view of an authenticated principal: credential
// state plus the roles/permissions rbac needs, assembled from durable.User
// (credential row) on every load.
type User struct {
	ID       string
	Username string
	Email    string
	Name     string

	PasswordHash string

	Roles       []string
	Permissions []string

	Enabled            bool
	Locked              bool
	MustChangePassword bool
	FailedLogins       int

	CreatedAt   time.Time
	UpdatedAt   time.Time
	LastLoginAt *time.Time
}

// ToPrincipal adapts a User to the rbac package's authorisation-facing view.
func (u *User) ToPrincipal() rbac.Principal {
	return rbac.Principal{ID: u.ID, Permissions: u.Permissions, Roles: u.Roles}
}

// UserResponse is a User with credential material removed, safe to return
// from an API handler.
type UserResponse struct {
	ID          string     `json:"id"`
	Username    string     `json:"username"`
	Email       string     `json:"email,omitempty"`
	Name        string     `json:"name,omitempty"`
	Roles       []string   `json:"roles"`
	Enabled     bool       `json:"enabled"`
	Locked      bool       `json:"locked"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	LastLoginAt *time.Time `json:"last_login_at,omitempty"`
}

// ToResponse converts User to UserResponse, removing sensitive fields.
func (u *User) ToResponse() *UserResponse {
	return &UserResponse{
		ID:          u.ID,
		Username:    u.Username,
		Email:       u.Email,
		Name:        u.Name,
		Roles:       u.Roles,
		Enabled:     u.Enabled,
		Locked:      u.Locked,
		CreatedAt:   u.CreatedAt,
		UpdatedAt:   u.UpdatedAt,
		LastLoginAt: u.LastLoginAt,
	}
}

// CreateUserRequest represents a request to create a new user.
type CreateUserRequest struct {
	Username           string   `json:"username"`
	Email              string   `json:"email,omitempty"`
	Password           string   `json:"password"`
	Name               string   `json:"name,omitempty"`
	Roles              []string `json:"roles,omitempty"`
	MustChangePassword bool     `json:"must_change_password,omitempty"`
}

// UpdateUserRequest represents a request to update an existing user.
type UpdateUserRequest struct {
	Email              *string   `json:"email,omitempty"`
	Password           *string   `json:"password,omitempty"`
	Name               *string   `json:"name,omitempty"`
	Roles              *[]string `json:"roles,omitempty"`
	Enabled            *bool     `json:"enabled,omitempty"`
	Locked             *bool     `json:"locked,omitempty"`
	MustChangePassword *bool     `json:"must_change_password,omitempty"`
}

// HasRole checks if the user has a specific role.
func (u *User) HasRole(role string) bool {
	for _, r := range u.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// HasAnyRole checks if the user has any of the specified roles.
func (u *User) HasAnyRole(roles ...string) bool {
	for _, role := range roles {
		if u.HasRole(role) {
			return true
		}
	}
	return false
}

// IsAdmin checks if the user has the admin role.
func (u *User) IsAdmin() bool {
	return u.HasRole(RoleAdmin)
}
