package controller

import (
	"github.com/google/uuid"
)

// generateTimeBasedId returns a UUIDv7, so ids sort by creation time.
func (c controller) generateTimeBasedId() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}

	return id.String()
}
