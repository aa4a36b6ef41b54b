package database

import (
	"github.com/google/uuid"
)

// generateTranslationKey returns the key shared by all locale variants of a
// page. Every new page starts a translation group of its own.
func generateTranslationKey() string {
	return uuid.NewString()
}
