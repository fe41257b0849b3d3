package common

import (
	"github.com/google/uuid"
)

// NewMessageID generates a unique id for a stored digest
func NewMessageID() string {
	return uuid.New().String()
}
