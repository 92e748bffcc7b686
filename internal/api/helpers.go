package api

import (
	"context"

	domainerrors "github.com/biblioapp/biblio/internal/errors"
	"github.com/biblioapp/biblio/internal/session"
)

// lookupSession resolves the X-Browse-Session header to a live session.
func (s *Server) lookupSession(id string) (*session.Session, error) {
	if id == "" {
		return nil, domainerrors.Validationf("missing %s header", SessionHeader)
	}
	return s.sessions.Get(id)
}

// allowSessionCreate applies the per-IP limit on new browse sessions.
func (s *Server) allowSessionCreate(ctx context.Context) error {
	ip := getClientIPFromContext(ctx)
	if !s.sessionLimiter.Allow(ip) {
		s.logger.Warn("Rate limit exceeded", "ip", ip, "operation", "createBrowseSession")
		return domainerrors.ErrRateLimited
	}
	return nil
}
