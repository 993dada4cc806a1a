package auth

import (
	"github.com/reedcms/reed/durable"
)

// GormUserStore is the production UserStore, backed by durable.GormDB's
// credential table. It never touches the UCG entity graph itself — the
// "user" UCG entity (if one is attached for ownership/authorship display)
// is a separate concern wired by the caller, linked by sharing User.ID as
// the entity id.
type GormUserStore struct {
	db *durable.GormDB
}

// NewGormUserStore wraps db as a UserStore.
func NewGormUserStore(db *durable.GormDB) *GormUserStore {
	return &GormUserStore{db: db}
}

func (s *GormUserStore) CreateUser(u *User) error {
	row := toRow(u)
	row.EntityID = row.ID
	return s.db.CreateUser(row)
}

func (s *GormUserStore) GetUser(id string) (*User, error) {
	row, ok := s.db.GetUserByID(id)
	if !ok {
		return nil, ErrUserNotFound
	}
	return fromRow(row), nil
}

func (s *GormUserStore) GetUserByUsername(username string) (*User, error) {
	row, ok := s.db.GetUserByUsername(username)
	if !ok {
		return nil, ErrUserNotFound
	}
	return fromRow(row), nil
}

func (s *GormUserStore) GetUserByEmail(email string) (*User, error) {
	row, ok := s.db.GetUserByEmail(email)
	if !ok {
		return nil, ErrUserNotFound
	}
	return fromRow(row), nil
}

func (s *GormUserStore) UpdateUser(u *User) error {
	return s.db.UpdateUser(toRow(u))
}

func (s *GormUserStore) DeleteUser(id string) error {
	return s.db.DeleteUser(id)
}

func (s *GormUserStore) ListUsers() ([]*User, error) {
	rows, err := s.db.ListUsers()
	if err != nil {
		return nil, err
	}
	users := make([]*User, len(rows))
	for i := range rows {
		users[i] = fromRow(rows[i])
	}
	return users, nil
}

func toRow(u *User) durable.User {
	return durable.User{
		ID:                 u.ID,
		Username:           u.Username,
		Email:              u.Email,
		Name:               u.Name,
		PasswordHash:       u.PasswordHash,
		Roles:              durable.JoinRoles(u.Roles),
		Enabled:            u.Enabled,
		Locked:             u.Locked,
		MustChangePassword: u.MustChangePassword,
		FailedLogins:       u.FailedLogins,
		CreatedAt:          u.CreatedAt,
		UpdatedAt:          u.UpdatedAt,
		LastLoginAt:        u.LastLoginAt,
	}
}

func fromRow(row durable.User) *User {
	return &User{
		ID:                 row.ID,
		Username:           row.Username,
		Email:              row.Email,
		Name:               row.Name,
		PasswordHash:       row.PasswordHash,
		Roles:              durable.RolesOf(row),
		Enabled:            row.Enabled,
		Locked:             row.Locked,
		MustChangePassword: row.MustChangePassword,
		FailedLogins:       row.FailedLogins,
		CreatedAt:          row.CreatedAt,
		UpdatedAt:          row.UpdatedAt,
		LastLoginAt:        row.LastLoginAt,
	}
}
