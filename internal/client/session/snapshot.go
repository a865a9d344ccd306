package session

import "github.com/dmitrijs2005/codrive/internal/client/models"

type Status int

const (
	StatusBootstrapping Status = iota
	StatusAnonymous
	StatusAuthenticated
)

func (s Status) String() string {
	switch s {
	case StatusBootstrapping:
		return "bootstrapping"
	case StatusAnonymous:
		return "anonymous"
	case StatusAuthenticated:
		return "authenticated"
	default:
		return "unknown"
	}
}

// Snapshot is a read-only view of the session at one point in time.
// Token is non-empty exactly when Status is StatusAuthenticated.
type Snapshot struct {
	Status Status
	Token  string
	User   *models.Profile
	// Offline is set when the profile came from the local cache because the
	// backend could not be reached at bootstrap.
	Offline bool
	// Version increases with every published transition.
	Version uint64
}

func (s Snapshot) Authenticated() bool {
	return s.Status == StatusAuthenticated
}

func (s Snapshot) clone() Snapshot {
	if s.User != nil {
		u := *s.User
		s.User = &u
	}
	return s
}

// sameState reports whether a and b differ only in Version.
func sameState(a, b Snapshot) bool {
	if a.Status != b.Status || a.Token != b.Token || a.Offline != b.Offline {
		return false
	}
	if a.User == nil || b.User == nil {
		return a.User == b.User
	}
	return *a.User == *b.User
}
