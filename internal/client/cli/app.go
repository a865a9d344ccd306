package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/dmitrijs2005/codrive/internal/client/client"
	"github.com/dmitrijs2005/codrive/internal/client/config"
	"github.com/dmitrijs2005/codrive/internal/client/models"
	"github.com/dmitrijs2005/codrive/internal/client/repositories/credentials"
	"github.com/dmitrijs2005/codrive/internal/client/repositories/kv"
	"github.com/dmitrijs2005/codrive/internal/client/services"
	"github.com/dmitrijs2005/codrive/internal/client/session"
	"github.com/dmitrijs2005/codrive/internal/logging"
)

type App struct {
	session      *session.Store
	trips        services.TripService
	reservations services.ReservationService
	profile      services.ProfileService
	reader       *bufio.Reader
	out          io.Writer
	log          logging.Logger
	closers      []func() error
}

// NewApp opens the local session database and wires the API client, the
// session store and the services according to c.
func NewApp(ctx context.Context, c *config.Config) (*App, error) {
	log := logging.NewTextLogger(os.Stderr, c.LogLevel)

	db, err := kv.Open(ctx, c.DatabasePath)
	if err != nil {
		log.Error(ctx, "error initializing database", "path", c.DatabasePath, "error", err)
		return nil, err
	}

	api, err := client.NewHTTPClient(c.ServerURL,
		client.WithTimeout(c.RequestTimeout),
		client.WithRegisterPath(c.RegisterPath),
		client.WithProfilePath(c.ProfilePath),
		client.WithLogger(log.With("component", "api")),
	)
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	creds := credentials.NewStore(kv.NewSQLiteRepository(db))
	store := session.New(api, creds, session.WithLogger(log.With("component", "session")))

	a := newApp(store, api.WithTokenSource(store), bufio.NewReader(os.Stdin), os.Stdout, log)
	a.closers = append(a.closers, db.Close)
	return a, nil
}

func newApp(s *session.Store, api client.Client, reader *bufio.Reader, out io.Writer, log logging.Logger) *App {
	return &App{
		session:      s,
		trips:        services.NewTripService(api, s),
		reservations: services.NewReservationService(api, s),
		profile:      services.NewProfileService(api, s),
		reader:       reader,
		out:          &syncWriter{w: out},
		log:          log,
	}
}

// Run restores the session, then serves the REPL until the user exits.
func (a *App) Run(ctx context.Context) {
	defer a.Close()

	a.println("Welcome to CoDrive CLI (type 'help' for commands)")
	if err := a.session.Bootstrap(ctx); err != nil {
		a.log.Warn(ctx, "session bootstrap failed", "error", err)
	}

	watchCtx, stop := context.WithCancel(ctx)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		a.watchSession(watchCtx)
	}()

	runREPL(ctx, a, a.status, a.reader)

	stop()
	wg.Wait()
}

func (a *App) Close() {
	for _, c := range a.closers {
		if err := c(); err != nil {
			a.log.Warn(context.Background(), "close failed", "error", err)
		}
	}
	a.closers = nil
}

func (a *App) isLoggedIn() bool {
	return a.session.Snapshot().Authenticated()
}

// status is the prompt decoration, e.g. "(ana@example.com)".
func (a *App) status() string {
	snap := a.session.Snapshot()
	switch {
	case !snap.Authenticated():
		return "(" + snap.Status.String() + ")"
	case snap.Offline:
		return "(" + snap.User.Email + " offline)"
	default:
		return "(" + snap.User.Email + ")"
	}
}

// watchSession prints session transitions until ctx is done.
func (a *App) watchSession(ctx context.Context) {
	ch, cancel := a.session.Subscribe()
	defer cancel()

	var last session.Snapshot
	for {
		select {
		case <-ctx.Done():
			return
		case snap, ok := <-ch:
			if !ok {
				return
			}
			if msg := transitionMessage(last, snap); msg != "" {
				a.println(msg)
			}
			last = snap
		}
	}
}

// transitionMessage describes the move from prev to next, or returns "" when
// nothing worth showing changed.
func transitionMessage(prev, next session.Snapshot) string {
	if next.Status == session.StatusBootstrapping {
		return ""
	}
	if prev.Status == next.Status && prev.Offline == next.Offline && sameUser(prev.User, next.User) {
		return ""
	}

	switch {
	case !next.Authenticated() && prev.Authenticated():
		return "You are logged out."
	case !next.Authenticated():
		return "You are not logged in. Use 'login' or 'register'."
	case next.Offline:
		return fmt.Sprintf("Logged in as %s (offline, using saved profile).", next.User.Name)
	case prev.Authenticated() && prev.User != nil && prev.User.ID == next.User.ID:
		return fmt.Sprintf("Profile updated: %s (%s).", next.User.Name, roleName(*next.User))
	default:
		return fmt.Sprintf("Logged in as %s <%s>.", next.User.Name, next.User.Email)
	}
}

func sameUser(a, b *models.Profile) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func (a *App) println(args ...any) {
	fmt.Fprintln(a.out, args...)
}

func (a *App) printf(format string, args ...any) {
	fmt.Fprintf(a.out, format, args...)
}

// syncWriter serializes writes from the REPL and the session watcher.
type syncWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (s *syncWriter) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.w.Write(p)
}
