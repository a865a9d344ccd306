package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/dmitrijs2005/codrive/internal/client/client"
	"github.com/dmitrijs2005/codrive/internal/client/client/apitest"
	"github.com/dmitrijs2005/codrive/internal/client/models"
	"github.com/dmitrijs2005/codrive/internal/client/repositories/credentials"
	"github.com/dmitrijs2005/codrive/internal/client/repositories/kv"
	"github.com/dmitrijs2005/codrive/internal/common"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	anaEmail    = "ana@example.com"
	anaPassword = "secret"
)

type fixture struct {
	srv   *apitest.Server
	api   *client.HTTPClient
	repo  *kv.MemoryRepository
	creds *credentials.Store
	ana   models.Profile
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	srv := apitest.NewServer()
	t.Cleanup(srv.Close)

	api, err := client.NewHTTPClient(srv.URL)
	require.NoError(t, err)

	repo := kv.NewMemoryRepository()
	return &fixture{
		srv:   srv,
		api:   api,
		repo:  repo,
		creds: credentials.NewStore(repo),
		ana:   srv.AddUser("Ana", anaEmail, anaPassword, common.RolePassenger),
	}
}

func (f *fixture) store(opts ...Option) *Store {
	return New(f.api, f.creds, opts...)
}

func (f *fixture) stored(t *testing.T) map[string][]byte {
	t.Helper()
	all, err := f.repo.List(context.Background())
	require.NoError(t, err)
	return all
}

func (f *fixture) persistedToken(t *testing.T) string {
	t.Helper()
	token, err := f.creds.LoadToken(context.Background())
	require.NoError(t, err)
	return token
}

func TestStore_InitialStateIsBootstrapping(t *testing.T) {
	f := newFixture(t)
	snap := f.store().Snapshot()
	assert.Equal(t, StatusBootstrapping, snap.Status)
	assert.Empty(t, snap.Token)
	assert.Nil(t, snap.User)
}

func TestStore_LoginSuccess(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	s := f.store()
	require.NoError(t, s.Bootstrap(ctx))

	require.NoError(t, s.Login(ctx, anaEmail, anaPassword))

	snap := s.Snapshot()
	assert.Equal(t, StatusAuthenticated, snap.Status)
	assert.NotEmpty(t, snap.Token)
	require.NotNil(t, snap.User)
	assert.Empty(t, cmp.Diff(f.ana, *snap.User))
	assert.False(t, snap.Offline)

	assert.Equal(t, snap.Token, f.persistedToken(t))
	assert.Equal(t, snap.Token, s.Token())
	assert.Zero(t, f.srv.Hits("GET /usuarios/mi-perfil"), "embedded user needs no profile fetch")
}

func TestStore_LoginTokenOnlyFetchesProfile(t *testing.T) {
	for _, shape := range []apitest.AuthShape{apitest.ShapeTokenOnly, apitest.ShapeJSONString, apitest.ShapePlainText} {
		f := newFixture(t)
		f.srv.SetAuthShape(shape)
		s := f.store()

		require.NoError(t, s.Login(context.Background(), anaEmail, anaPassword))
		snap := s.Snapshot()
		require.True(t, snap.Authenticated())
		assert.Equal(t, f.ana, *snap.User)
		assert.Equal(t, 1, f.srv.Hits("GET /usuarios/mi-perfil"))
	}
}

func TestStore_LoginInvalidCredentials(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	s := f.store()
	require.NoError(t, s.Bootstrap(ctx))
	before := s.Snapshot()

	err := s.Login(ctx, anaEmail, "wrong")
	require.ErrorIs(t, err, ErrLoginFailed)
	require.ErrorIs(t, err, client.ErrUnauthorized)

	assert.Equal(t, before, s.Snapshot())
	assert.Empty(t, f.stored(t))
}

func TestStore_LoginFailureKeepsExistingSession(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	s := f.store()
	require.NoError(t, s.Login(ctx, anaEmail, anaPassword))
	before := s.Snapshot()

	require.ErrorIs(t, s.Login(ctx, anaEmail, "wrong"), ErrLoginFailed)
	assert.Equal(t, before, s.Snapshot())
	assert.Equal(t, before.Token, f.persistedToken(t))
}

func TestStore_LoginBackendDown(t *testing.T) {
	f := newFixture(t)
	f.srv.SetDown(true)
	s := f.store()

	err := s.Login(context.Background(), anaEmail, anaPassword)
	require.ErrorIs(t, err, ErrLoginFailed)
	require.ErrorIs(t, err, client.ErrUnavailable)
	assert.Equal(t, StatusBootstrapping, s.Snapshot().Status)
	assert.Empty(t, f.stored(t))
}

func TestStore_LoginProfileFetchFailureIsLoginFailure(t *testing.T) {
	f := newFixture(t)
	f.srv.SetAuthShape(apitest.ShapeTokenOnly)
	f.srv.SetProfileDown(true)
	ctx := context.Background()
	s := f.store()
	require.NoError(t, s.Bootstrap(ctx))

	err := s.Login(ctx, anaEmail, anaPassword)
	require.ErrorIs(t, err, ErrLoginFailed)
	require.ErrorIs(t, err, client.ErrUnavailable)

	assert.Equal(t, StatusAnonymous, s.Snapshot().Status)
	assert.Empty(t, f.stored(t), "no token persisted without a profile")
}

func TestStore_Register(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	s := f.store()

	require.NoError(t, s.Register(ctx, "Bea", "bea@example.com", "pw"))
	snap := s.Snapshot()
	require.True(t, snap.Authenticated())
	assert.Equal(t, "Bea", snap.User.Name)
	assert.Equal(t, common.RolePassenger, snap.User.Role)
	assert.NotEmpty(t, f.persistedToken(t))

	err := s.Register(ctx, "Bea", "bea@example.com", "pw")
	require.ErrorIs(t, err, ErrLoginFailed)
	require.ErrorIs(t, err, client.ErrRejected)
}

func TestStore_BootstrapWithoutToken(t *testing.T) {
	f := newFixture(t)
	s := f.store()

	require.NoError(t, s.Bootstrap(context.Background()))
	assert.Equal(t, StatusAnonymous, s.Snapshot().Status)
	assert.Zero(t, f.srv.TotalHits())
}

func TestStore_BootstrapRejectedToken(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	token := f.srv.IssueToken(f.ana.ID, time.Hour)
	f.srv.Revoke(token)
	require.NoError(t, f.creds.SaveSession(ctx, token, f.ana))

	s := f.store()
	require.NoError(t, s.Bootstrap(ctx))
	first := s.Snapshot()
	assert.Equal(t, StatusAnonymous, first.Status)
	assert.Empty(t, f.stored(t))
	hits := f.srv.TotalHits()
	assert.Equal(t, 1, hits)

	require.NoError(t, s.Bootstrap(ctx))
	assert.Equal(t, first, s.Snapshot())
	assert.Equal(t, hits, f.srv.TotalHits(), "second bootstrap is the empty case")
}

func TestStore_BootstrapExpiredTokenSkipsNetwork(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.creds.SaveSession(ctx, f.srv.IssueToken(f.ana.ID, -time.Minute), f.ana))

	s := f.store()
	require.NoError(t, s.Bootstrap(ctx))
	assert.Equal(t, StatusAnonymous, s.Snapshot().Status)
	assert.Zero(t, f.srv.TotalHits())
	assert.Empty(t, f.stored(t))
}

func TestStore_BootstrapClockControlsExpiry(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.creds.SaveSession(ctx, f.srv.IssueToken(f.ana.ID, time.Hour), f.ana))

	s := f.store(WithClock(func() time.Time { return time.Now().Add(2 * time.Hour) }))
	require.NoError(t, s.Bootstrap(ctx))
	assert.Equal(t, StatusAnonymous, s.Snapshot().Status)
	assert.Zero(t, f.srv.TotalHits())
}

func TestStore_BootstrapLegacyToken(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	token := f.srv.IssueToken(f.ana.ID, time.Hour)
	require.NoError(t, f.repo.Set(ctx, common.TokenKey, []byte(token)))

	s := f.store()
	require.NoError(t, s.Bootstrap(ctx))
	snap := s.Snapshot()
	require.True(t, snap.Authenticated())
	assert.Equal(t, f.ana, *snap.User)

	cached, err := f.creds.LoadProfile(ctx)
	require.NoError(t, err)
	require.NotNil(t, cached, "bootstrap refreshes the cached profile")
	assert.Equal(t, f.ana, *cached)
}

func TestStore_BootstrapOffline(t *testing.T) {
	t.Run("with cached profile", func(t *testing.T) {
		f := newFixture(t)
		ctx := context.Background()
		token := f.srv.IssueToken(f.ana.ID, time.Hour)
		require.NoError(t, f.creds.SaveSession(ctx, token, f.ana))
		f.srv.SetDown(true)

		s := f.store()
		require.NoError(t, s.Bootstrap(ctx))
		snap := s.Snapshot()
		require.True(t, snap.Authenticated())
		assert.True(t, snap.Offline)
		assert.Equal(t, token, snap.Token)
		assert.Equal(t, f.ana, *snap.User)
	})

	t.Run("without cached profile", func(t *testing.T) {
		f := newFixture(t)
		ctx := context.Background()
		token := f.srv.IssueToken(f.ana.ID, time.Hour)
		require.NoError(t, f.repo.Set(ctx, common.TokenKey, []byte(token)))
		f.srv.SetDown(true)

		s := f.store()
		require.NoError(t, s.Bootstrap(ctx))
		assert.Equal(t, StatusAnonymous, s.Snapshot().Status)
		assert.Equal(t, token, f.persistedToken(t), "token kept for the next start")
	})
}

type failingCreds struct {
	CredentialStore
	err error
}

func (f failingCreds) LoadToken(context.Context) (string, error) { return "", f.err }
func (f failingCreds) Clear(context.Context) error               { return f.err }

func TestStore_BootstrapStorageError(t *testing.T) {
	f := newFixture(t)
	boom := errors.New("disk gone")
	s := New(f.api, failingCreds{CredentialStore: f.creds, err: boom})

	err := s.Bootstrap(context.Background())
	require.ErrorIs(t, err, boom)
	assert.Equal(t, StatusAnonymous, s.Snapshot().Status)
}

func TestStore_LogoutIsIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	s := f.store()
	require.NoError(t, s.Login(ctx, anaEmail, anaPassword))

	s.Logout(ctx)
	once := s.Snapshot()
	assert.Equal(t, StatusAnonymous, once.Status)
	assert.Empty(t, once.Token)
	assert.Nil(t, once.User)
	assert.Empty(t, f.stored(t))

	s.Logout(ctx)
	assert.Equal(t, once, s.Snapshot())
}

func TestStore_LogoutNeverFails(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	s := New(f.api, failingCreds{CredentialStore: f.creds, err: errors.New("read-only")})
	require.NoError(t, s.Login(ctx, anaEmail, anaPassword))

	s.Logout(ctx)
	assert.Equal(t, StatusAnonymous, s.Snapshot().Status)
}

func TestStore_LoginThenBootstrapRoundTrip(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	first := f.store()
	require.NoError(t, first.Login(ctx, anaEmail, anaPassword))

	restarted := f.store()
	require.NoError(t, restarted.Bootstrap(ctx))

	a, b := first.Snapshot(), restarted.Snapshot()
	require.True(t, b.Authenticated())
	assert.Equal(t, a.Token, b.Token)
	assert.Empty(t, cmp.Diff(a.User, b.User))
}

func TestStore_RoundTripOverSQLite(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	path := t.TempDir() + "/codrive.db"

	db, err := kv.Open(ctx, path)
	require.NoError(t, err)
	s := New(f.api, credentials.NewStore(kv.NewSQLiteRepository(db)))
	require.NoError(t, s.Login(ctx, anaEmail, anaPassword))
	require.NoError(t, db.Close())

	db, err = kv.Open(ctx, path)
	require.NoError(t, err)
	defer db.Close()
	restarted := New(f.api, credentials.NewStore(kv.NewSQLiteRepository(db)))
	require.NoError(t, restarted.Bootstrap(ctx))
	assert.Equal(t, f.ana, *restarted.Snapshot().User)
}

func TestStore_SetProfile(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	s := f.store()

	require.ErrorIs(t, s.SetProfile(ctx, f.ana), ErrNotAuthenticated)
	assert.Nil(t, s.Snapshot().User)

	require.NoError(t, s.Login(ctx, anaEmail, anaPassword))
	token := s.Token()

	updated := f.ana
	updated.Role = common.RoleDriver
	require.NoError(t, s.SetProfile(ctx, updated))

	snap := s.Snapshot()
	assert.Equal(t, token, snap.Token)
	assert.True(t, snap.User.IsDriver())

	cached, err := f.creds.LoadProfile(ctx)
	require.NoError(t, err)
	assert.Equal(t, updated, *cached)
}

func TestStore_SnapshotIsACopy(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	s := f.store()
	require.NoError(t, s.Login(ctx, anaEmail, anaPassword))

	snap := s.Snapshot()
	snap.User.Name = "mutated"
	assert.Equal(t, "Ana", s.Snapshot().User.Name)
}

func TestStore_SubscribeObservesTransitions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	s := f.store()

	ch, cancel := s.Subscribe()
	defer cancel()

	next := func() Snapshot {
		t.Helper()
		select {
		case snap := <-ch:
			return snap
		case <-time.After(time.Second):
			t.Fatal("no snapshot received")
			return Snapshot{}
		}
	}

	assert.Equal(t, StatusBootstrapping, next().Status)

	require.NoError(t, s.Bootstrap(ctx))
	anon := next()
	assert.Equal(t, StatusAnonymous, anon.Status)

	require.NoError(t, s.Login(ctx, anaEmail, anaPassword))
	authed := next()
	assert.Equal(t, StatusAuthenticated, authed.Status)
	assert.Greater(t, authed.Version, anon.Version)

	s.Logout(ctx)
	out := next()
	assert.Equal(t, StatusAnonymous, out.Status)
	assert.Greater(t, out.Version, authed.Version)
}

func TestStore_SlowSubscriberGetsLatest(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	s := f.store()

	ch, cancel := s.Subscribe()
	require.NoError(t, s.Bootstrap(ctx))
	require.NoError(t, s.Login(ctx, anaEmail, anaPassword))
	s.Logout(ctx)

	latest := <-ch
	assert.Equal(t, StatusAnonymous, latest.Status)
	assert.Equal(t, s.Snapshot().Version, latest.Version)

	cancel()
	cancel()
	_, open := <-ch
	assert.False(t, open)
}

func TestStore_SubscribeLateGetsCurrent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	s := f.store()
	require.NoError(t, s.Login(ctx, anaEmail, anaPassword))

	ch, cancel := s.Subscribe()
	defer cancel()
	snap := <-ch
	assert.True(t, snap.Authenticated())
}

type blockingBackend struct {
	Backend
	once    sync.Once
	started chan struct{}
	release chan struct{}
}

func newBlockingBackend(b Backend) *blockingBackend {
	return &blockingBackend{Backend: b, started: make(chan struct{}), release: make(chan struct{})}
}

func (b *blockingBackend) Login(ctx context.Context, email, password string) (*models.AuthResult, error) {
	b.once.Do(func() { close(b.started) })
	<-b.release
	return b.Backend.Login(ctx, email, password)
}

func TestStore_OverlappingLoginIsBusy(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	backend := newBlockingBackend(f.api)
	s := New(backend, f.creds)

	done := make(chan error, 1)
	go func() { done <- s.Login(ctx, anaEmail, anaPassword) }()
	<-backend.started

	require.ErrorIs(t, s.Login(ctx, anaEmail, anaPassword), ErrBusy)
	require.ErrorIs(t, s.Register(ctx, "x", "x@example.com", "x"), ErrBusy)
	require.ErrorIs(t, s.Bootstrap(ctx), ErrBusy)

	close(backend.release)
	require.NoError(t, <-done)
	assert.True(t, s.Snapshot().Authenticated())

	s.Logout(ctx)
	require.NoError(t, s.Login(ctx, anaEmail, anaPassword), "guard released after completion")
}

func TestStore_LogoutDuringLoginDiscardsResult(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	backend := newBlockingBackend(f.api)
	s := New(backend, f.creds)

	done := make(chan error, 1)
	go func() { done <- s.Login(ctx, anaEmail, anaPassword) }()
	<-backend.started

	s.Logout(ctx)
	close(backend.release)

	err := <-done
	require.ErrorIs(t, err, ErrSuperseded)
	require.ErrorIs(t, err, ErrLoginFailed)
	assert.Equal(t, StatusAnonymous, s.Snapshot().Status)
	assert.Empty(t, f.stored(t))
}

func TestStore_UnauthorizedResponseLogsOut(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	s := f.store()
	require.NoError(t, s.Login(ctx, anaEmail, anaPassword))

	authed := f.api.WithTokenSource(s)
	_, err := authed.UserReservations(ctx, f.ana.ID)
	require.NoError(t, err)
	require.True(t, s.Snapshot().Authenticated())

	f.srv.Revoke(s.Token())
	_, err = authed.UserReservations(ctx, f.ana.ID)
	require.ErrorIs(t, err, client.ErrUnauthorized)

	assert.Equal(t, StatusAnonymous, s.Snapshot().Status)
	assert.Empty(t, f.stored(t))
}

func TestStore_HandleUnauthorizedIgnoresStaleToken(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	s := f.store()
	require.NoError(t, s.Login(ctx, anaEmail, anaPassword))

	s.HandleUnauthorized(ctx, "some-older-token")
	s.HandleUnauthorized(ctx, "")
	assert.True(t, s.Snapshot().Authenticated())
}

func TestStore_ConcurrentReadersAndLogout(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	s := f.store()
	require.NoError(t, s.Login(ctx, anaEmail, anaPassword))

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				snap := s.Snapshot()
				assert.Equal(t, snap.Authenticated(), snap.Token != "")
				_ = s.Token()
			}
		}()
	}
	s.Logout(ctx)
	wg.Wait()
}
