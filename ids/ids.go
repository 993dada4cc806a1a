// Package ids mints the 128-bit identifiers used across entities,
// associations, sessions, and events.
package ids

import "github.com/google/uuid"

// New returns a fresh random (v4) identifier string.
func New() string {
	return uuid.New().String()
}

// Valid reports whether s parses as a UUID.
func Valid(s string) bool {
	_, err := uuid.Parse(s)
	return err == nil
}
