package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dmitrijs2005/codrive/internal/client/client"
	"github.com/dmitrijs2005/codrive/internal/client/models"
	"github.com/dmitrijs2005/codrive/internal/logging"
)

// Backend is the part of the API client the session needs.
type Backend interface {
	Login(ctx context.Context, email, password string) (*models.AuthResult, error)
	Register(ctx context.Context, name, email, password string) (*models.AuthResult, error)
	CurrentUser(ctx context.Context, token string) (*models.Profile, error)
}

// CredentialStore persists the token and the cached profile.
type CredentialStore interface {
	LoadToken(ctx context.Context) (string, error)
	LoadProfile(ctx context.Context) (*models.Profile, error)
	SaveSession(ctx context.Context, token string, profile models.Profile) error
	SaveProfile(ctx context.Context, profile models.Profile) error
	Clear(ctx context.Context) error
}

type Option func(*Store)

func WithLogger(l logging.Logger) Option {
	return func(s *Store) { s.log = l }
}

// WithClock overrides the time source used for token expiry checks.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

type Store struct {
	api   Backend
	creds CredentialStore
	log   logging.Logger
	now   func() time.Time

	inflight atomic.Bool
	// opMu orders persistence with the state commit that follows it.
	opMu sync.Mutex

	mu      sync.Mutex
	state   Snapshot
	epoch   uint64
	subs    map[int]chan Snapshot
	nextSub int
}

func New(api Backend, creds CredentialStore, opts ...Option) *Store {
	s := &Store{
		api:   api,
		creds: creds,
		log:   logging.Nop(),
		now:   time.Now,
		state: Snapshot{Status: StatusBootstrapping},
		subs:  make(map[int]chan Snapshot),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Snapshot returns the current session state.
func (s *Store) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.clone()
}

// Token returns the current bearer token, or "" when not authenticated.
func (s *Store) Token() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Token
}

// Subscribe returns a channel that receives the current snapshot right away
// and then every later transition. A slow reader only misses intermediate
// snapshots; it always ends up with the latest one. cancel closes the
// channel.
func (s *Store) Subscribe() (<-chan Snapshot, func()) {
	ch := make(chan Snapshot, 1)

	s.mu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = ch
	ch <- s.state.clone()
	s.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			delete(s.subs, id)
			close(ch)
		})
	}
	return ch, cancel
}

// commit replaces the state and notifies subscribers. Callers hold s.mu.
func (s *Store) commit(next Snapshot) {
	if sameState(s.state, next) {
		return
	}
	next.Version = s.state.Version + 1
	s.state = next.clone()

	for _, ch := range s.subs {
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- s.state.clone():
		default:
		}
	}
}

func (s *Store) commitLocked(next Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.commit(next)
}

func (s *Store) currentEpoch() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.epoch
}

func (s *Store) begin() error {
	if !s.inflight.CompareAndSwap(false, true) {
		return ErrBusy
	}
	return nil
}

func (s *Store) end() {
	s.inflight.Store(false)
}

// Bootstrap restores the persisted session. It never leaves the store in
// StatusBootstrapping: any failure resolves to StatusAnonymous. A persisted
// token is kept when the backend is unreachable, and the cached profile, if
// any, is used to start an offline session.
func (s *Store) Bootstrap(ctx context.Context) error {
	if err := s.begin(); err != nil {
		return err
	}
	defer s.end()

	epoch := s.currentEpoch()

	s.opMu.Lock()
	token, err := s.creds.LoadToken(ctx)
	s.opMu.Unlock()
	if err != nil {
		s.log.Error(ctx, "failed to load persisted token", "error", err)
		s.commitLocked(Snapshot{Status: StatusAnonymous})
		return fmt.Errorf("bootstrap: %w", err)
	}
	if token == "" {
		s.commitLocked(Snapshot{Status: StatusAnonymous})
		return nil
	}

	if tokenExpired(token, s.now()) {
		s.log.Info(ctx, "persisted token expired")
		s.discard(ctx, epoch)
		return nil
	}

	profile, err := s.api.CurrentUser(ctx, token)
	switch {
	case err == nil:
		return s.restore(ctx, epoch, token, *profile)
	case errors.Is(err, client.ErrUnavailable), ctx.Err() != nil:
		return s.restoreOffline(ctx, epoch, token, err)
	default:
		s.log.Info(ctx, "persisted token rejected", "error", err)
		s.discard(ctx, epoch)
		return nil
	}
}

func (s *Store) restore(ctx context.Context, epoch uint64, token string, profile models.Profile) error {
	s.opMu.Lock()
	defer s.opMu.Unlock()

	if s.currentEpoch() != epoch {
		return ErrSuperseded
	}
	if err := s.creds.SaveProfile(ctx, profile); err != nil {
		s.log.Warn(ctx, "failed to refresh cached profile", "error", err)
	}
	s.commitLocked(Snapshot{Status: StatusAuthenticated, Token: token, User: &profile})
	s.log.Info(ctx, "session restored", "user", profile.Email)
	return nil
}

func (s *Store) restoreOffline(ctx context.Context, epoch uint64, token string, cause error) error {
	s.opMu.Lock()
	defer s.opMu.Unlock()

	if s.currentEpoch() != epoch {
		return ErrSuperseded
	}
	cached, err := s.creds.LoadProfile(ctx)
	if err != nil {
		s.log.Warn(ctx, "failed to load cached profile", "error", err)
	}
	if cached == nil {
		s.log.Warn(ctx, "backend unreachable, starting anonymous", "error", cause)
		s.commitLocked(Snapshot{Status: StatusAnonymous})
		return nil
	}
	s.log.Warn(ctx, "backend unreachable, using cached profile", "user", cached.Email, "error", cause)
	s.commitLocked(Snapshot{Status: StatusAuthenticated, Token: token, User: cached, Offline: true})
	return nil
}

// discard drops the persisted credentials and resolves to anonymous.
func (s *Store) discard(ctx context.Context, epoch uint64) {
	s.opMu.Lock()
	defer s.opMu.Unlock()

	if s.currentEpoch() != epoch {
		return
	}
	if err := s.creds.Clear(ctx); err != nil {
		s.log.Error(ctx, "failed to clear persisted credentials", "error", err)
	}
	s.commitLocked(Snapshot{Status: StatusAnonymous})
}

// Login authenticates with the backend. On any failure the state and the
// persistent store are left untouched and the error wraps ErrLoginFailed.
func (s *Store) Login(ctx context.Context, email, password string) error {
	return s.authenticate(ctx, "login", func() (*models.AuthResult, error) {
		return s.api.Login(ctx, email, password)
	})
}

// Register creates an account and logs into it, with the same contract as
// Login.
func (s *Store) Register(ctx context.Context, name, email, password string) error {
	return s.authenticate(ctx, "register", func() (*models.AuthResult, error) {
		return s.api.Register(ctx, name, email, password)
	})
}

func (s *Store) authenticate(ctx context.Context, op string, fn func() (*models.AuthResult, error)) error {
	if err := s.begin(); err != nil {
		return err
	}
	defer s.end()

	epoch := s.currentEpoch()

	res, err := fn()
	if err != nil {
		s.log.Info(ctx, op+" rejected", "error", err)
		return fmt.Errorf("%w: %w", ErrLoginFailed, err)
	}

	profile := res.User
	if profile == nil {
		profile, err = s.api.CurrentUser(ctx, res.Token)
		if err != nil {
			s.log.Warn(ctx, "profile fetch after "+op+" failed", "error", err)
			return fmt.Errorf("%w: fetch profile: %w", ErrLoginFailed, err)
		}
	}

	s.opMu.Lock()
	defer s.opMu.Unlock()

	if s.currentEpoch() != epoch {
		return fmt.Errorf("%w: %w", ErrLoginFailed, ErrSuperseded)
	}
	if err := s.creds.SaveSession(ctx, res.Token, *profile); err != nil {
		s.log.Error(ctx, "failed to persist session", "error", err)
		return fmt.Errorf("%w: persist session: %w", ErrLoginFailed, err)
	}
	s.commitLocked(Snapshot{Status: StatusAuthenticated, Token: res.Token, User: profile})
	s.log.Info(ctx, op+" succeeded", "user", profile.Email)
	return nil
}

// Logout drops the session from memory and then from the persistent store.
// It cannot fail; storage errors are only logged. Any Login, Register or
// Bootstrap still running is discarded.
func (s *Store) Logout(ctx context.Context) {
	s.opMu.Lock()
	defer s.opMu.Unlock()

	s.mu.Lock()
	s.epoch++
	s.commit(Snapshot{Status: StatusAnonymous})
	s.mu.Unlock()

	if err := s.creds.Clear(ctx); err != nil {
		s.log.Error(ctx, "failed to clear persisted credentials", "error", err)
	}
}

// HandleUnauthorized is called when the backend rejects token on an
// authenticated request. It logs out unless the session has already moved
// on to a different token.
func (s *Store) HandleUnauthorized(ctx context.Context, token string) {
	if token == "" || s.Token() != token {
		return
	}
	s.log.Warn(ctx, "token rejected by backend, logging out")
	s.Logout(ctx)
}

// SetProfile replaces the cached profile, keeping the token. The in-memory
// state is updated even if persisting the profile fails.
func (s *Store) SetProfile(ctx context.Context, profile models.Profile) error {
	s.opMu.Lock()
	defer s.opMu.Unlock()

	s.mu.Lock()
	if s.state.Status != StatusAuthenticated {
		s.mu.Unlock()
		return ErrNotAuthenticated
	}
	next := s.state
	next.User = &profile
	s.commit(next)
	s.mu.Unlock()

	if err := s.creds.SaveProfile(ctx, profile); err != nil {
		return fmt.Errorf("save profile: %w", err)
	}
	return nil
}

var _ client.TokenSource = (*Store)(nil)
