package models

import "github.com/google/uuid"

// NewID returns a random identifier for users and organisations.
func NewID() string {
	return uuid.NewString()
}

// ValidID reports whether s is shaped like an identifier produced by NewID.
func ValidID(s string) bool {
	_, err := uuid.Parse(s)
	return err == nil
}
