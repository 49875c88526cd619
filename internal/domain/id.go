package domain

import "github.com/google/uuid"

// NewID generates a UUIDv7 string for application-owned entities.
// V7 IDs sort by creation time, which keeps SQLite index pages warm.
func NewID() string {
	return uuid.Must(uuid.NewV7()).String()
}
