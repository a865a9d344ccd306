// Package services contains the CoDrive client operations built on the API
// client and the session store: trip search and publishing, reservations,
// vehicles and profile changes.
package services

import (
	"context"

	"github.com/dmitrijs2005/codrive/internal/client/models"
	"github.com/dmitrijs2005/codrive/internal/client/session"
)

// Session is the view of the session store the services need.
type Session interface {
	Snapshot() session.Snapshot
	SetProfile(ctx context.Context, profile models.Profile) error
}

// currentUser returns the logged-in profile or session.ErrNotAuthenticated.
func currentUser(s Session) (models.Profile, error) {
	snap := s.Snapshot()
	if !snap.Authenticated() || snap.User == nil {
		return models.Profile{}, session.ErrNotAuthenticated
	}
	return *snap.User, nil
}
