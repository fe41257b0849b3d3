// -----------------------------------------------------------------------
// Page Renderer Interface - navigate, query anchors, read visible text
// -----------------------------------------------------------------------

package interfaces

import (
	"context"
	"time"

	"github.com/ternarybob/earningsear/internal/models"
)

// PageRenderer opens pages in a browser-like engine. Each Open call starts a
// session the caller must Close.
type PageRenderer interface {
	// Open starts a session. It does not navigate.
	Open(ctx context.Context) (Page, error)

	// Engine names the underlying engine, e.g. "chromium" or "static".
	Engine() string
}

// Page is one rendering session.
type Page interface {
	// Navigate loads url within timeout. A timeout is reported with
	// context.DeadlineExceeded but whatever loaded stays queryable.
	Navigate(ctx context.Context, url string, timeout time.Duration) error

	// WaitFor blocks until selector matches or timeout elapses.
	WaitFor(ctx context.Context, selector string, timeout time.Duration) error

	// QueryAll returns every element matching selector as anchors.
	QueryAll(ctx context.Context, selector string) ([]models.Anchor, error)

	// Text returns the visible text of the first element matching selector.
	// Returns models.ErrExtractionTimeout when the element does not appear in time.
	Text(ctx context.Context, selector string, timeout time.Duration) (string, error)

	// HTML returns the outer HTML of the first element matching selector.
	HTML(ctx context.Context, selector string, timeout time.Duration) (string, error)

	Close() error
}

// RendererPolicy picks the engine for a zero-based attempt index.
type RendererPolicy interface {
	ForAttempt(attempt int) PageRenderer
}
