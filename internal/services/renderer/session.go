package renderer

import (
	"context"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/earningsear/internal/interfaces"
)

// Session keeps one page open per engine across retry iterations.
// Asking for a different engine closes the current page first.
type Session struct {
	renderer interfaces.PageRenderer
	page     interfaces.Page
	logger   arbor.ILogger
}

// NewSession creates an empty session
func NewSession(logger arbor.ILogger) *Session {
	return &Session{logger: logger}
}

// PageFor returns the open page for r, opening one if needed.
func (s *Session) PageFor(ctx context.Context, r interfaces.PageRenderer) (interfaces.Page, error) {
	if s.page != nil && s.renderer == r {
		return s.page, nil
	}
	if s.page != nil {
		s.logger.Info().
			Str("from", s.renderer.Engine()).
			Str("to", r.Engine()).
			Msg("Switching renderer engine")
		s.Close()
	}
	page, err := r.Open(ctx)
	if err != nil {
		return nil, err
	}
	s.renderer, s.page = r, page
	return page, nil
}

// Close releases the current page, if any.
func (s *Session) Close() {
	if s.page == nil {
		return
	}
	if err := s.page.Close(); err != nil {
		s.logger.Debug().Err(err).Msg("Failed to close renderer session")
	}
	s.page, s.renderer = nil, nil
}
