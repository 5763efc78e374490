// Package uid generates request and instance identifiers.
package uid

import "github.com/google/uuid"

// New returns a random (version 4) UUID string.
func New() string {
	return uuid.NewString()
}

// IsValid reports whether id parses as a UUID. Empty strings are invalid.
func IsValid(id string) bool {
	if id == "" {
		return false
	}
	_, err := uuid.Parse(id)
	return err == nil
}
