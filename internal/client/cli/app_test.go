package cli

import (
	"bufio"
	"bytes"
	"context"
	"io"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/dmitrijs2005/codrive/internal/client/client"
	"github.com/dmitrijs2005/codrive/internal/client/client/apitest"
	"github.com/dmitrijs2005/codrive/internal/client/config"
	"github.com/dmitrijs2005/codrive/internal/client/models"
	"github.com/dmitrijs2005/codrive/internal/client/repositories/credentials"
	"github.com/dmitrijs2005/codrive/internal/client/repositories/kv"
	"github.com/dmitrijs2005/codrive/internal/client/services"
	"github.com/dmitrijs2005/codrive/internal/client/session"
	"github.com/dmitrijs2005/codrive/internal/common"
	"github.com/dmitrijs2005/codrive/internal/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func stubPassword(t *testing.T, pw string) {
	t.Helper()
	orig := getPassword
	getPassword = func(io.Writer) ([]byte, error) { return []byte(pw), nil }
	t.Cleanup(func() { getPassword = orig })
}

type harness struct {
	srv   *apitest.Server
	store *session.Store
	out   *lockedBuffer
	luis  models.Profile
	ana   models.Profile
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	srv := apitest.NewServer()
	t.Cleanup(srv.Close)

	api, err := client.NewHTTPClient(srv.URL)
	require.NoError(t, err)
	store := session.New(api, credentials.NewStore(kv.NewMemoryRepository()))
	return &harness{
		srv:   srv,
		store: store,
		out:   &lockedBuffer{},
		luis:  srv.AddUser("Luis", "luis@example.com", "pw", common.RoleDriver),
		ana:   srv.AddUser("Ana", "ana@example.com", "pw", common.RolePassenger),
	}
}

// app returns an App whose prompts read the given input lines.
func (h *harness) app(t *testing.T, lines ...string) *App {
	t.Helper()
	api, err := client.NewHTTPClient(h.srv.URL)
	require.NoError(t, err)
	reader := bufio.NewReader(strings.NewReader(strings.Join(lines, "\n") + "\n"))
	return newApp(h.store, api.WithTokenSource(h.store), reader, h.out, logging.Nop())
}

func (h *harness) loginAs(t *testing.T, email string) {
	t.Helper()
	require.NoError(t, h.store.Login(context.Background(), email, "pw"))
}

func TestApp_LoginAndLogout(t *testing.T) {
	h := newHarness(t)
	stubPassword(t, "pw")
	ctx := context.Background()

	a := h.app(t, "ana@example.com")
	require.NoError(t, a.Login(ctx))
	assert.True(t, a.isLoggedIn())
	assert.Equal(t, "(ana@example.com)", a.status())

	require.NoError(t, a.WhoAmI(ctx))
	assert.Contains(t, h.out.String(), "Ana <ana@example.com>, passenger")

	require.NoError(t, a.Logout(ctx))
	assert.False(t, a.isLoggedIn())
	assert.Equal(t, "(anonymous)", a.status())
}

func TestApp_LoginWrongPassword(t *testing.T) {
	h := newHarness(t)
	stubPassword(t, "nope")

	err := h.app(t, "ana@example.com").Login(context.Background())
	require.ErrorIs(t, err, session.ErrLoginFailed)
	assert.Equal(t, "Could not log in. Check your email, password and connection.", describeError(err))
}

func TestApp_Register(t *testing.T) {
	h := newHarness(t)
	stubPassword(t, "pw")
	ctx := context.Background()

	require.NoError(t, h.app(t, "Bea", "bea@example.com").Register(ctx))
	assert.Equal(t, "Bea", h.store.Snapshot().User.Name)

	h.store.Logout(ctx)
	err := h.app(t, "Bea", "bea@example.com").Register(ctx)
	require.ErrorIs(t, err, client.ErrRejected)
	assert.Equal(t, "Could not log in. Check your email, password and connection.", describeError(err))

	require.Error(t, h.app(t, "", "x@example.com").Register(ctx))
}

func TestApp_WhoAmIAnonymous(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.app(t).WhoAmI(context.Background()))
	assert.Contains(t, h.out.String(), "Not logged in.")
}

func TestApp_PublishSearchJoinTrip(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	h.loginAs(t, h.luis.Email)
	a := h.app(t, "Madrid", "Toledo", "2030-06-01 10:00", "2030-06-01 11:15", "3")
	require.NoError(t, a.Publish(ctx))
	assert.Contains(t, h.out.String(), "published.")

	h.store.Logout(ctx)
	h.loginAs(t, h.ana.Email)

	a = h.app(t, "Madrid", "Toledo", "")
	require.NoError(t, a.Search(ctx))
	out := h.out.String()
	assert.Contains(t, out, "Madrid -> Toledo, 2030-06-01 10:00, 3/3 seats free")

	found, err := a.trips.Search(ctx, models.TripQuery{Origin: "Madrid", Destination: "Toledo"})
	require.NoError(t, err)
	require.Len(t, found, 1)
	id := strconv.FormatInt(found[0].ID, 10)

	require.NoError(t, a.Join(ctx, []string{id}))
	require.NoError(t, a.Trip(ctx, []string{id}))
	out = h.out.String()
	assert.Contains(t, out, "Seat requested on trip #"+id)
	assert.Contains(t, out, "2/3 seats free")
	assert.Contains(t, out, "Driver: Luis <luis@example.com>")
	assert.Contains(t, out, "Passengers: Ana")
}

func TestApp_PublishAsPassenger(t *testing.T) {
	h := newHarness(t)
	h.loginAs(t, h.ana.Email)

	a := h.app(t, "A", "B", "2030-06-01 10:00", "2030-06-01 11:00", "2")
	err := a.Publish(context.Background())
	require.ErrorIs(t, err, services.ErrNotDriver)
}

func TestApp_SearchNoResultsAndValidation(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.loginAs(t, h.ana.Email)

	require.NoError(t, h.app(t, "Nowhere", "Else", "").Search(ctx))
	assert.Contains(t, h.out.String(), "No trips found.")

	err := h.app(t, "", "Else", "").Search(ctx)
	require.Error(t, err)
	assert.True(t, strings.HasPrefix(describeError(err), "Invalid input"))
}

func TestApp_UsageOnBadIDs(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	a := h.app(t)

	require.NoError(t, a.Trip(ctx, nil))
	require.NoError(t, a.Join(ctx, []string{"x"}))
	require.NoError(t, a.Confirm(ctx, nil))
	require.NoError(t, a.Cancel(ctx, []string{"0"}))

	out := h.out.String()
	for _, u := range []string{"Usage: trip <id>", "Usage: join <id>", "Usage: confirm <id>", "Usage: cancel <id>"} {
		assert.Contains(t, out, u)
	}
	assert.Zero(t, h.srv.TotalHits())
}

func TestApp_ReservationsConfirmCancel(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	trip := h.srv.AddTrip(h.luis.ID, models.NewTrip{Origin: "Madrid", Destination: "Toledo", TotalSeats: 2})

	h.loginAs(t, h.ana.Email)
	a := h.app(t)
	require.NoError(t, a.Reservations(ctx))
	assert.Contains(t, h.out.String(), "No reservations.")
	require.NoError(t, a.Join(ctx, []string{strconv.FormatInt(trip.ID, 10)}))
	h.store.Logout(ctx)

	h.loginAs(t, h.luis.Email)
	require.NoError(t, a.Reservations(ctx))
	assert.Contains(t, h.out.String(), "[PENDIENTE] Ana: Madrid -> Toledo")

	list, err := a.reservations.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	rid := strconv.FormatInt(list[0].ID, 10)

	require.NoError(t, a.Confirm(ctx, []string{rid}))
	assert.Contains(t, h.out.String(), "Reservation #"+rid+" confirmed.")

	err = a.Cancel(ctx, []string{rid})
	require.ErrorIs(t, err, client.ErrRejected)
	assert.Equal(t, "Rejected by server: La reserva ya no está pendiente", describeError(err))
}

func TestApp_VehiclesAndDriver(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.loginAs(t, h.ana.Email)

	a := h.app(t, "Seat", "Ibiza", "1234abc", "4")
	require.NoError(t, a.Vehicles(ctx))
	assert.Contains(t, h.out.String(), "No vehicles registered.")

	require.NoError(t, a.AddVehicle(ctx))
	require.NoError(t, a.Vehicles(ctx))
	assert.Contains(t, h.out.String(), "Seat Ibiza (1234ABC), 4 seats")

	require.NoError(t, a.Driver(ctx))
	assert.Contains(t, h.out.String(), "Ana can now publish trips.")
	assert.True(t, h.store.Snapshot().User.IsDriver())
}

func TestApp_RevokedTokenLogsOut(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.loginAs(t, h.ana.Email)
	h.srv.Revoke(h.store.Token())

	err := h.app(t).Reservations(ctx)
	require.ErrorIs(t, err, client.ErrUnauthorized)
	assert.False(t, h.store.Snapshot().Authenticated())
}

func TestApp_WatchSessionPrintsTransitions(t *testing.T) {
	h := newHarness(t)
	a := h.app(t)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		a.watchSession(ctx)
	}()

	require.NoError(t, h.store.Bootstrap(context.Background()))
	assert.Eventually(t, func() bool {
		return strings.Contains(h.out.String(), "You are not logged in.")
	}, time.Second, 10*time.Millisecond)

	h.loginAs(t, h.ana.Email)
	assert.Eventually(t, func() bool {
		return strings.Contains(h.out.String(), "Logged in as Ana <ana@example.com>.")
	}, time.Second, 10*time.Millisecond)

	h.store.Logout(context.Background())
	assert.Eventually(t, func() bool {
		return strings.Contains(h.out.String(), "You are logged out.")
	}, time.Second, 10*time.Millisecond)

	cancel()
	<-done
}

func TestTransitionMessage(t *testing.T) {
	ana := &models.Profile{ID: 1, Name: "Ana", Email: "ana@example.com", Role: common.RolePassenger}
	driver := *ana
	driver.Role = common.RoleDriver

	boot := session.Snapshot{Status: session.StatusBootstrapping}
	anon := session.Snapshot{Status: session.StatusAnonymous}
	authed := session.Snapshot{Status: session.StatusAuthenticated, Token: "t", User: ana}
	offline := session.Snapshot{Status: session.StatusAuthenticated, Token: "t", User: ana, Offline: true}
	upgraded := session.Snapshot{Status: session.StatusAuthenticated, Token: "t", User: &driver}

	assert.Empty(t, transitionMessage(session.Snapshot{}, boot))
	assert.Equal(t, "You are not logged in. Use 'login' or 'register'.", transitionMessage(boot, anon))
	assert.Equal(t, "Logged in as Ana <ana@example.com>.", transitionMessage(anon, authed))
	assert.Equal(t, "Logged in as Ana (offline, using saved profile).", transitionMessage(boot, offline))
	assert.Equal(t, "Profile updated: Ana (driver).", transitionMessage(authed, upgraded))
	assert.Equal(t, "You are logged out.", transitionMessage(authed, anon))
	assert.Empty(t, transitionMessage(authed, authed))
}

func TestNewApp_RunAndExit(t *testing.T) {
	capturePrints(t)
	srv := apitest.NewServer()
	defer srv.Close()

	cfg := &config.Config{}
	cfg.LoadDefaults()
	cfg.ServerURL = srv.URL
	cfg.DatabasePath = filepath.Join(t.TempDir(), "codrive.db")
	cfg.LogLevel = "error"

	a, err := NewApp(context.Background(), cfg)
	require.NoError(t, err)
	out := &lockedBuffer{}
	a.reader = bufio.NewReader(strings.NewReader("whoami\nexit\n"))
	a.out = out

	a.Run(context.Background())
	assert.Contains(t, out.String(), "Welcome to CoDrive CLI")
	assert.Contains(t, out.String(), "Not logged in.")
	assert.Zero(t, srv.TotalHits(), "no saved session means no backend call")
	assert.Empty(t, a.closers)
}

func TestNewApp_BadServerURL(t *testing.T) {
	cfg := &config.Config{}
	cfg.LoadDefaults()
	cfg.ServerURL = "localhost:8080"
	cfg.DatabasePath = filepath.Join(t.TempDir(), "codrive.db")

	_, err := NewApp(context.Background(), cfg)
	require.Error(t, err)
}
