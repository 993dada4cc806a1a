package durable

import (
	"strings"
	"time"

	"gorm.io/gorm"
)

// CreateUser inserts a new credential row. u.ID and u.EntityID must already
// be populated by the caller (the auth package mints one id via ids.New and
// uses it for both).
func (g *GormDB) CreateUser(u User) error {
	u.CreatedAt = time.Now()
	u.UpdatedAt = u.CreatedAt
	return g.DB.Create(&u).Error
}

// GetUserByID returns the credential row for id.
func (g *GormDB) GetUserByID(id string) (User, bool) {
	var u User
	if err := g.DB.First(&u, "id = ?", id).Error; err != nil {
		return User{}, false
	}
	return u, true
}

// GetUserByUsername returns the credential row for username.
func (g *GormDB) GetUserByUsername(username string) (User, bool) {
	var u User
	if err := g.DB.First(&u, "username = ?", username).Error; err != nil {
		return User{}, false
	}
	return u, true
}

// GetUserByEmail returns the credential row for email.
func (g *GormDB) GetUserByEmail(email string) (User, bool) {
	var u User
	if err := g.DB.First(&u, "email = ?", email).Error; err != nil {
		return User{}, false
	}
	return u, true
}

// UpdateUser persists every mutable credential field to an existing row.
func (g *GormDB) UpdateUser(u User) error {
	u.UpdatedAt = time.Now()
	return g.DB.Model(&User{}).Where("id = ?", u.ID).Updates(map[string]interface{}{
		"email":                u.Email,
		"name":                 u.Name,
		"password_hash":        u.PasswordHash,
		"roles":                u.Roles,
		"enabled":              u.Enabled,
		"locked":               u.Locked,
		"must_change_password": u.MustChangePassword,
		"failed_logins":        u.FailedLogins,
		"last_login_at":        u.LastLoginAt,
		"updated_at":           u.UpdatedAt,
	}).Error
}

// DeleteUser removes a credential row. The backing UCG "user" entity is
// untouched; callers detach it separately if the person record itself is
// being removed.
func (g *GormDB) DeleteUser(id string) error {
	return g.DB.Delete(&User{}, "id = ?", id).Error
}

// ListUsers returns every credential row.
func (g *GormDB) ListUsers() ([]User, error) {
	var users []User
	if err := g.DB.Find(&users).Error; err != nil {
		return nil, err
	}
	return users, nil
}

// RolesOf splits a User's comma-separated Roles column into a slice.
func RolesOf(u User) []string {
	if u.Roles == "" {
		return nil
	}
	return strings.Split(u.Roles, ",")
}

// JoinRoles renders role names into the comma-separated column format.
func JoinRoles(roles []string) string {
	return strings.Join(roles, ",")
}

// RecordAuditEvent appends a login/logout/password trail entry. Audit
// logging never blocks authentication on failure; callers log and continue.
func (g *GormDB) RecordAuditEvent(ev SessionAuditEvent) error {
	ev.CreatedAt = time.Now()
	return g.DB.Create(&ev).Error
}

// ListAuditEvents returns audit events for userID, most recent first,
// capped at limit (0 means unbounded).
func (g *GormDB) ListAuditEvents(userID string, limit int) ([]SessionAuditEvent, error) {
	q := g.DB.Where("user_id = ?", userID).Order("created_at DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	var events []SessionAuditEvent
	if err := q.Find(&events).Error; err != nil {
		return nil, err
	}
	return events, nil
}

// ErrNoRows reports whether err is GORM's not-found sentinel, letting
// callers distinguish "no such user" from a genuine storage failure.
func ErrNoRows(err error) bool {
	return err == gorm.ErrRecordNotFound
}
