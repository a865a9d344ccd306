package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/dmitrijs2005/codrive/internal/client/models"
	"github.com/dmitrijs2005/codrive/internal/common"
	"github.com/dmitrijs2005/codrive/internal/logging"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	DefaultTimeout      = 15 * time.Second
	DefaultRegisterPath = "/auth/register"
	DefaultProfilePath  = "/usuarios/mi-perfil"

	loginPath              = "/auth/login"
	updateProfilePath      = "/usuarios/actualizar"
	tripsPath              = "/viajes"
	availableTripsPath     = "/viajes/disponibles"
	driverReservationsPath = "/reservas/mis-viajes/reservas"

	tracerName   = "github.com/dmitrijs2005/codrive/internal/client/client"
	maxBodyBytes = 4 << 20
)

type HTTPClient struct {
	baseURL      *url.URL
	http         *http.Client
	tokens       TokenSource
	registerPath string
	profilePath  string
	log          logging.Logger
	tracer       trace.Tracer
}

type Option func(*HTTPClient)

// WithHTTPClient replaces the underlying *http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *HTTPClient) { c.http = hc }
}

// WithTimeout bounds each request, including reading the body.
func WithTimeout(d time.Duration) Option {
	return func(c *HTTPClient) {
		if d > 0 {
			c.http = &http.Client{Transport: c.http.Transport, Timeout: d}
		}
	}
}

// WithRegisterPath selects the registration endpoint ("/auth/register" or
// "/auth/registro" depending on the backend revision).
func WithRegisterPath(p string) Option {
	return func(c *HTTPClient) {
		if p != "" {
			c.registerPath = p
		}
	}
}

// WithProfilePath selects the current-user endpoint ("/usuarios/mi-perfil"
// or "/auth/me").
func WithProfilePath(p string) Option {
	return func(c *HTTPClient) {
		if p != "" {
			c.profilePath = p
		}
	}
}

func WithLogger(l logging.Logger) Option {
	return func(c *HTTPClient) { c.log = l }
}

// WithTracerProvider overrides the global tracer provider.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(c *HTTPClient) { c.tracer = tp.Tracer(tracerName) }
}

func NewHTTPClient(baseURL string, opts ...Option) (*HTTPClient, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid server url %q: %w", baseURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("invalid server url %q: scheme must be http or https", baseURL)
	}

	c := &HTTPClient{
		baseURL:      u,
		http:         &http.Client{Timeout: DefaultTimeout},
		registerPath: DefaultRegisterPath,
		profilePath:  DefaultProfilePath,
		log:          logging.Nop(),
		tracer:       otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// WithTokenSource returns a copy of c that authenticates with ts.
func (c *HTTPClient) WithTokenSource(ts TokenSource) *HTTPClient {
	cp := *c
	cp.tokens = ts
	return &cp
}

type call struct {
	method string
	path   string
	query  url.Values
	body   any

	authed bool
	token  string // explicit token; empty means ask the TokenSource
}

func (c *HTTPClient) send(ctx context.Context, cl call) ([]byte, error) {
	token, fromSource := cl.token, false
	if cl.authed && token == "" {
		if c.tokens != nil {
			token, fromSource = c.tokens.Token(), true
		}
		if token == "" {
			return nil, fmt.Errorf("%w: not logged in", ErrUnauthorized)
		}
	}

	ctx, span := c.tracer.Start(ctx, cl.method+" "+cl.path, trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()

	var body io.Reader
	if cl.body != nil {
		b, err := json.Marshal(cl.body)
		if err != nil {
			return nil, fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(b)
	}

	endpoint := c.baseURL.JoinPath(cl.path)
	endpoint.RawQuery = cl.query.Encode()

	req, err := http.NewRequestWithContext(ctx, cl.method, endpoint.String(), body)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set(common.AuthorizationHeader, common.BearerPrefix+token)
	}
	requestID := uuid.NewString()
	req.Header.Set(common.RequestIDHeader, requestID)

	span.SetAttributes(
		attribute.String("http.request.method", cl.method),
		attribute.String("url.path", cl.path),
		attribute.String("codrive.request_id", requestID),
	)

	resp, err := c.http.Do(req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "transport error")
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		c.log.Warn(ctx, "request failed", "method", cl.method, "path", cl.path, "request_id", requestID, "error", err)
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: read body: %v", ErrUnavailable, err)
	}

	span.SetAttributes(attribute.Int("http.response.status_code", resp.StatusCode))
	c.log.Debug(ctx, "request done", "method", cl.method, "path", cl.path, "status", resp.StatusCode, "request_id", requestID)

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return data, nil
	}

	apiErr := mapStatus(resp.StatusCode, errorMessage(data))
	span.SetStatus(codes.Error, apiErr.Error())
	if fromSource && resp.StatusCode == http.StatusUnauthorized {
		c.tokens.HandleUnauthorized(ctx, token)
	}
	return nil, apiErr
}

func (c *HTTPClient) do(ctx context.Context, cl call, out any) error {
	data, err := c.send(ctx, cl)
	if err != nil {
		return err
	}
	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	return nil
}

// errorMessage extracts a human-readable reason from an error body.
func errorMessage(data []byte) string {
	var payload struct {
		Message string `json:"message"`
		Mensaje string `json:"mensaje"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal(data, &payload); err == nil {
		for _, m := range []string{payload.Message, payload.Mensaje, payload.Error} {
			if m != "" {
				return m
			}
		}
		return ""
	}

	text := strings.TrimSpace(string(data))
	if len(text) > 200 || strings.HasPrefix(text, "<") {
		return ""
	}
	return text
}

func idPath(prefix string, id int64, suffix string) string {
	return prefix + "/" + strconv.FormatInt(id, 10) + suffix
}

func (c *HTTPClient) Login(ctx context.Context, email, password string) (*models.AuthResult, error) {
	data, err := c.send(ctx, call{
		method: http.MethodPost,
		path:   loginPath,
		body:   models.Credentials{Email: email, Password: password},
	})
	if err != nil {
		return nil, err
	}
	return decodeAuth(data)
}

func (c *HTTPClient) Register(ctx context.Context, name, email, password string) (*models.AuthResult, error) {
	data, err := c.send(ctx, call{
		method: http.MethodPost,
		path:   c.registerPath,
		body:   models.Registration{Name: name, Email: email, Password: password},
	})
	if err != nil {
		return nil, err
	}
	return decodeAuth(data)
}

// CurrentUser fetches the profile owned by token. A rejected token is not
// reported to the TokenSource; the caller decides what to do with it.
func (c *HTTPClient) CurrentUser(ctx context.Context, token string) (*models.Profile, error) {
	if token == "" {
		return nil, fmt.Errorf("%w: empty token", ErrUnauthorized)
	}
	var p models.Profile
	if err := c.do(ctx, call{method: http.MethodGet, path: c.profilePath, authed: true, token: token}, &p); err != nil {
		return nil, err
	}
	if p.ID == 0 && p.Email == "" {
		return nil, fmt.Errorf("%w: empty profile", ErrMalformedResponse)
	}
	return &p, nil
}

func (c *HTTPClient) UpdateProfile(ctx context.Context, update models.ProfileUpdate) error {
	return c.do(ctx, call{method: http.MethodPut, path: updateProfilePath, body: update, authed: true}, nil)
}

func (c *HTTPClient) SearchTrips(ctx context.Context, q models.TripQuery) ([]models.Trip, error) {
	query := url.Values{}
	query.Set("origen", q.Origin)
	query.Set("destino", q.Destination)
	if q.MinSeats > 0 {
		query.Set("plazasMin", strconv.Itoa(q.MinSeats))
	}

	var trips []models.Trip
	err := c.do(ctx, call{method: http.MethodGet, path: availableTripsPath, query: query, authed: true}, &trips)
	return trips, err
}

func (c *HTTPClient) GetTrip(ctx context.Context, id int64) (*models.Trip, error) {
	var trip models.Trip
	if err := c.do(ctx, call{method: http.MethodGet, path: idPath(tripsPath, id, ""), authed: true}, &trip); err != nil {
		return nil, err
	}
	return &trip, nil
}

// PublishTrip returns the created trip, or nil if the backend sent no body.
func (c *HTTPClient) PublishTrip(ctx context.Context, trip models.NewTrip) (*models.Trip, error) {
	var created *models.Trip
	if err := c.do(ctx, call{method: http.MethodPost, path: tripsPath, body: trip, authed: true}, &created); err != nil {
		return nil, err
	}
	return created, nil
}

func (c *HTTPClient) JoinTrip(ctx context.Context, id int64) error {
	return c.do(ctx, call{method: http.MethodPost, path: idPath(tripsPath, id, "/unirse"), authed: true}, nil)
}

func (c *HTTPClient) UserReservations(ctx context.Context, userID int64) ([]models.Reservation, error) {
	var out []models.Reservation
	err := c.do(ctx, call{method: http.MethodGet, path: idPath("/reservas/usuario", userID, ""), authed: true}, &out)
	return out, err
}

func (c *HTTPClient) DriverReservations(ctx context.Context) ([]models.Reservation, error) {
	var out []models.Reservation
	err := c.do(ctx, call{method: http.MethodGet, path: driverReservationsPath, authed: true}, &out)
	return out, err
}

func (c *HTTPClient) ConfirmReservation(ctx context.Context, id int64) error {
	return c.do(ctx, call{method: http.MethodPost, path: idPath("/reservas", id, "/confirmar"), authed: true}, nil)
}

func (c *HTTPClient) CancelReservation(ctx context.Context, id int64) error {
	return c.do(ctx, call{method: http.MethodPost, path: idPath("/reservas", id, "/cancelar"), authed: true}, nil)
}

func (c *HTTPClient) ListVehicles(ctx context.Context, userID int64) ([]models.Vehicle, error) {
	var out []models.Vehicle
	err := c.do(ctx, call{method: http.MethodGet, path: idPath("/usuarios", userID, "/vehiculos"), authed: true}, &out)
	return out, err
}

func (c *HTTPClient) AddVehicle(ctx context.Context, userID int64, v models.Vehicle) error {
	return c.do(ctx, call{method: http.MethodPost, path: idPath("/usuarios", userID, "/vehiculos"), body: v, authed: true}, nil)
}

var _ Client = (*HTTPClient)(nil)
