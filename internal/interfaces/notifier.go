package interfaces

import (
	"context"

	"github.com/ternarybob/earningsear/internal/models"
)

// Notification is a composed digest addressed to subscribers.
type Notification struct {
	Ticker  string
	Quarter int
	Year    int
	Message models.DigestMessage
}

// Notifier delivers a digest to one channel.
type Notifier interface {
	Notify(ctx context.Context, n Notification) error
	Name() string
}
