package durable

import (
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// User is the durable-store row backing an authenticated principal. The
// entity graph knows users as tag="user" entities; this table carries the
// credential material the UCG payload deliberately does not (password
// hash, API keys) so it never flows through CSV export.
type User struct {
	ID           string `gorm:"primaryKey;type:uuid"`
	EntityID     string `gorm:"uniqueIndex;type:uuid"`
	Username     string `gorm:"uniqueIndex"`
	Email        string `gorm:"index"`
	Name         string
	PasswordHash string
	Roles        string // comma-separated role names

	Enabled            bool
	Locked              bool
	MustChangePassword bool
	FailedLogins       int

	CreatedAt   time.Time
	UpdatedAt   time.Time
	LastLoginAt *time.Time
}

// SessionAuditEvent is an append-only login/logout/password trail. Sessions
// themselves are hot-store-only (§4.8 Open Question a); this table is the
// only durable trace of authentication activity.
type SessionAuditEvent struct {
	ID        uint `gorm:"primaryKey;autoIncrement"`
	UserID    string
	Event     string // login | login_failed | login_failed_locked | login_failed_disabled | login_oauth | logout | logout_everywhere | change_password | change_password_failed
	IP        string
	UserAgent string
	CreatedAt time.Time
}

// PluginRegistryRecord persists plugin metadata across restarts, chiefly the
// operator's enable/disable decision; installed plugins are still discovered
// from disk on every boot. Runtime lifecycle state (loaded/active/failed) stays
// in-process (see pluginhost's statemanager-derived introspection).
type PluginRegistryRecord struct {
	ID         string `gorm:"primaryKey"`
	Version    string
	Author     string
	Priority   int
	Enabled    bool
	InstalledAt time.Time
}

// GormDB wraps a *gorm.DB for the ancillary (non-UCG) tables.
type GormDB struct {
	DB *gorm.DB
}

// OpenGorm connects GORM to the same Postgres instance the raw-SQL store
// uses and runs AutoMigrate for the ancillary tables.
func OpenGorm(dsn string) (*GormDB, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, err
	}
	if err := db.AutoMigrate(&User{}, &SessionAuditEvent{}, &PluginRegistryRecord{}); err != nil {
		return nil, err
	}
	return &GormDB{DB: db}, nil
}

func (g *GormDB) Close() error {
	sqlDB, err := g.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
