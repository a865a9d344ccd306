// Package apitest runs an in-process fake of the CoDrive backend for tests.
// It implements the endpoints the client uses with the same JSON shapes,
// bcrypt-hashed passwords and HS256 JWT bearer tokens.
package apitest

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/dmitrijs2005/codrive/internal/client/models"
	"github.com/dmitrijs2005/codrive/internal/common"
	"github.com/dmitrijs2005/codrive/internal/timex"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"golang.org/x/crypto/bcrypt"
)

// AuthShape selects how login and registration answer.
type AuthShape int

const (
	ShapeTokenAndUser AuthShape = iota // {"token": "...", "user": {...}}
	ShapeTokenOnly                     // {"token": "..."}
	ShapeJSONString                    // "..."
	ShapePlainText                     // ...
)

type account struct {
	profile models.Profile
	hash    []byte
}

type Server struct {
	*httptest.Server

	secret []byte
	ttl    time.Duration

	mu           sync.Mutex
	shape        AuthShape
	down         bool
	profileDown  bool
	loginDelay   time.Duration
	nextID       int64
	users        map[int64]*account
	byEmail      map[string]int64
	revoked      map[string]bool
	trips        map[int64]*models.Trip
	reservations map[int64]*models.Reservation
	vehicles     map[int64][]models.Vehicle
	hits         map[string]int
}

func NewServer() *Server {
	s := &Server{
		secret:       []byte("apitest-secret"),
		ttl:          time.Hour,
		users:        make(map[int64]*account),
		byEmail:      make(map[string]int64),
		revoked:      make(map[string]bool),
		trips:        make(map[int64]*models.Trip),
		reservations: make(map[int64]*models.Reservation),
		vehicles:     make(map[int64][]models.Vehicle),
		hits:         make(map[string]int),
	}
	s.Server = httptest.NewServer(s.routes())
	return s
}

func (s *Server) routes() http.Handler {
	r := mux.NewRouter()
	r.Use(s.middleware)

	r.HandleFunc("/auth/login", s.handleLogin).Methods(http.MethodPost)
	r.HandleFunc("/auth/register", s.handleRegister).Methods(http.MethodPost)
	r.HandleFunc("/auth/registro", s.handleRegister).Methods(http.MethodPost)
	r.HandleFunc("/auth/me", s.authed(s.handleProfile)).Methods(http.MethodGet)
	r.HandleFunc("/usuarios/mi-perfil", s.authed(s.handleProfile)).Methods(http.MethodGet)
	r.HandleFunc("/usuarios/actualizar", s.authed(s.handleUpdateProfile)).Methods(http.MethodPut)
	r.HandleFunc("/usuarios/{id:[0-9]+}/vehiculos", s.authed(s.handleListVehicles)).Methods(http.MethodGet)
	r.HandleFunc("/usuarios/{id:[0-9]+}/vehiculos", s.authed(s.handleAddVehicle)).Methods(http.MethodPost)

	r.HandleFunc("/viajes/disponibles", s.authed(s.handleSearchTrips)).Methods(http.MethodGet)
	r.HandleFunc("/viajes", s.authed(s.handlePublishTrip)).Methods(http.MethodPost)
	r.HandleFunc("/viajes/{id:[0-9]+}", s.authed(s.handleGetTrip)).Methods(http.MethodGet)
	r.HandleFunc("/viajes/{id:[0-9]+}/unirse", s.authed(s.handleJoinTrip)).Methods(http.MethodPost)

	r.HandleFunc("/reservas/usuario/{id:[0-9]+}", s.authed(s.handleUserReservations)).Methods(http.MethodGet)
	r.HandleFunc("/reservas/mis-viajes/reservas", s.authed(s.handleDriverReservations)).Methods(http.MethodGet)
	r.HandleFunc("/reservas/{id:[0-9]+}/confirmar", s.authed(s.handleSetReservation(models.ReservationConfirmed))).Methods(http.MethodPost)
	r.HandleFunc("/reservas/{id:[0-9]+}/cancelar", s.authed(s.handleSetReservation(models.ReservationCancelled))).Methods(http.MethodPost)

	return r
}

func (s *Server) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		route := r.URL.Path
		if cur := mux.CurrentRoute(r); cur != nil {
			if tpl, err := cur.GetPathTemplate(); err == nil {
				route = tpl
			}
		}

		s.mu.Lock()
		s.hits[r.Method+" "+route]++
		down := s.down
		s.mu.Unlock()

		if down {
			writeError(w, http.StatusServiceUnavailable, "maintenance")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Hits counts requests by "METHOD /route/template", e.g. "GET /usuarios/mi-perfil".
func (s *Server) Hits(route string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hits[route]
}

// TotalHits counts every request served.
func (s *Server) TotalHits() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, v := range s.hits {
		n += v
	}
	return n
}

// SetDown makes every endpoint answer 503.
func (s *Server) SetDown(down bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.down = down
}

// SetProfileDown makes only the current-user endpoints answer 500.
func (s *Server) SetProfileDown(down bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.profileDown = down
}

func (s *Server) SetAuthShape(shape AuthShape) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.shape = shape
}

// SetLoginDelay holds login answers for d.
func (s *Server) SetLoginDelay(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loginDelay = d
}

// AddUser creates an account directly.
func (s *Server) AddUser(name, email, password, role string) models.Profile {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addUserLocked(name, email, password, role)
}

func (s *Server) addUserLocked(name, email, password, role string) models.Profile {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		panic(err)
	}
	s.nextID++
	p := models.Profile{ID: s.nextID, Name: name, Email: email, Role: role}
	s.users[p.ID] = &account{profile: p, hash: hash}
	s.byEmail[strings.ToLower(email)] = p.ID
	return p
}

// IssueToken signs a token for userID that expires after ttl (negative ttl
// yields an already expired token).
func (s *Server) IssueToken(userID int64, ttl time.Duration) string {
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:   strconv.FormatInt(userID, 10),
		ID:        uuid.NewString(),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		panic(err)
	}
	return signed
}

// Revoke makes the backend reject token from now on.
func (s *Server) Revoke(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.revoked[token] = true
}

// AddTrip publishes a trip on behalf of driverID.
func (s *Server) AddTrip(driverID int64, t models.NewTrip) models.Trip {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addTripLocked(driverID, t)
}

func (s *Server) addTripLocked(driverID int64, t models.NewTrip) models.Trip {
	s.nextID++
	trip := &models.Trip{
		ID:             s.nextID,
		Origin:         t.Origin,
		Destination:    t.Destination,
		DepartureAt:    t.DepartureAt,
		ArrivalAt:      t.ArrivalAt,
		TotalSeats:     t.TotalSeats,
		AvailableSeats: t.TotalSeats,
	}
	if acc, ok := s.users[driverID]; ok {
		driver := acc.profile
		trip.Driver = &driver
	}
	s.trips[trip.ID] = trip
	return *trip
}

// Reservation returns a copy of reservation id.
func (s *Server) Reservation(id int64) (models.Reservation, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.reservations[id]
	if !ok {
		return models.Reservation{}, false
	}
	return *r, true
}

// Profile returns the backend's current copy of a user.
func (s *Server) Profile(id int64) (models.Profile, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	acc, ok := s.users[id]
	if !ok {
		return models.Profile{}, false
	}
	return acc.profile, true
}

type authedHandler func(w http.ResponseWriter, r *http.Request, user *account)

func (s *Server) authed(h authedHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		raw, ok := strings.CutPrefix(r.Header.Get(common.AuthorizationHeader), common.BearerPrefix)
		if !ok || raw == "" {
			writeError(w, http.StatusUnauthorized, "missing token")
			return
		}

		var claims jwt.RegisteredClaims
		_, err := jwt.ParseWithClaims(raw, &claims, func(*jwt.Token) (any, error) {
			return s.secret, nil
		}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
		if err != nil {
			writeError(w, http.StatusUnauthorized, "invalid token")
			return
		}
		id, err := strconv.ParseInt(claims.Subject, 10, 64)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "invalid subject")
			return
		}

		s.mu.Lock()
		defer s.mu.Unlock()
		acc, exists := s.users[id]
		if s.revoked[raw] || !exists {
			writeError(w, http.StatusUnauthorized, "token revoked")
			return
		}
		h(w, r, acc)
	}
}

func (s *Server) writeAuth(w http.ResponseWriter, status int, p models.Profile) {
	token := s.IssueToken(p.ID, s.ttl)
	switch s.shape {
	case ShapeTokenOnly:
		writeJSON(w, status, map[string]string{"token": token})
	case ShapeJSONString:
		writeJSON(w, status, token)
	case ShapePlainText:
		w.Header().Set("Content-Type", "text/plain")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(token))
	default:
		writeJSON(w, status, map[string]any{"token": token, "user": p})
	}
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req models.Credentials
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}

	s.mu.Lock()
	delay := s.loginDelay
	s.mu.Unlock()
	if delay > 0 {
		time.Sleep(delay)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	acc, ok := s.users[s.byEmail[strings.ToLower(req.Email)]]
	if !ok || bcrypt.CompareHashAndPassword(acc.hash, []byte(req.Password)) != nil {
		writeError(w, http.StatusUnauthorized, "Credenciales inválidas")
		return
	}
	s.writeAuth(w, http.StatusOK, acc.profile)
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req models.Registration
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}
	if req.Name == "" || req.Email == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "nombre, email y password son obligatorios")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.byEmail[strings.ToLower(req.Email)]; exists {
		writeError(w, http.StatusConflict, "El email ya está registrado")
		return
	}
	p := s.addUserLocked(req.Name, req.Email, req.Password, common.RolePassenger)
	s.writeAuth(w, http.StatusCreated, p)
}

func (s *Server) handleProfile(w http.ResponseWriter, r *http.Request, user *account) {
	if s.profileDown {
		writeError(w, http.StatusInternalServerError, "profile service down")
		return
	}
	writeJSON(w, http.StatusOK, user.profile)
}

func (s *Server) handleUpdateProfile(w http.ResponseWriter, r *http.Request, user *account) {
	var req models.ProfileUpdate
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}
	if req.Name != "" {
		user.profile.Name = req.Name
	}
	user.profile.Phone = req.Phone
	if req.Role != "" {
		user.profile.Role = req.Role
	}
	if req.Password != "" {
		hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.MinCost)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		user.hash = hash
	}
	writeJSON(w, http.StatusOK, user.profile)
}

func (s *Server) handleListVehicles(w http.ResponseWriter, r *http.Request, user *account) {
	id, _ := pathID(r)
	writeJSON(w, http.StatusOK, append([]models.Vehicle{}, s.vehicles[id]...))
}

func (s *Server) handleAddVehicle(w http.ResponseWriter, r *http.Request, user *account) {
	id, _ := pathID(r)
	if id != user.profile.ID {
		writeError(w, http.StatusForbidden, "not your profile")
		return
	}
	var v models.Vehicle
	if err := json.NewDecoder(r.Body).Decode(&v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}
	if v.Brand == "" || v.Model == "" || v.Plate == "" || v.Seats <= 0 {
		writeError(w, http.StatusBadRequest, "datos del vehículo incompletos")
		return
	}
	s.nextID++
	v.ID = s.nextID
	s.vehicles[id] = append(s.vehicles[id], v)
	writeJSON(w, http.StatusCreated, v)
}

func (s *Server) handleSearchTrips(w http.ResponseWriter, r *http.Request, user *account) {
	q := r.URL.Query()
	origin, destination := q.Get("origen"), q.Get("destino")
	minSeats, _ := strconv.Atoi(q.Get("plazasMin"))

	out := make([]models.Trip, 0)
	for _, t := range s.trips {
		if !strings.EqualFold(t.Origin, origin) || !strings.EqualFold(t.Destination, destination) {
			continue
		}
		if t.AvailableSeats <= 0 || t.AvailableSeats < minSeats {
			continue
		}
		out = append(out, *t)
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleGetTrip(w http.ResponseWriter, r *http.Request, user *account) {
	id, _ := pathID(r)
	t, ok := s.trips[id]
	if !ok {
		writeError(w, http.StatusNotFound, "Viaje no encontrado")
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func (s *Server) handlePublishTrip(w http.ResponseWriter, r *http.Request, user *account) {
	if !user.profile.IsDriver() {
		writeError(w, http.StatusForbidden, "Solo los conductores pueden publicar viajes")
		return
	}
	var req models.NewTrip
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}
	if req.Origin == "" || req.Destination == "" || req.TotalSeats <= 0 || !req.ArrivalAt.After(req.DepartureAt.Time) {
		writeError(w, http.StatusBadRequest, "datos del viaje inválidos")
		return
	}
	writeJSON(w, http.StatusCreated, s.addTripLocked(user.profile.ID, req))
}

func (s *Server) handleJoinTrip(w http.ResponseWriter, r *http.Request, user *account) {
	id, _ := pathID(r)
	t, ok := s.trips[id]
	if !ok {
		writeError(w, http.StatusNotFound, "Viaje no encontrado")
		return
	}
	if t.Driver != nil && t.Driver.ID == user.profile.ID {
		writeError(w, http.StatusBadRequest, "No puedes unirte a tu propio viaje")
		return
	}
	if t.AvailableSeats <= 0 {
		writeError(w, http.StatusConflict, "No quedan plazas")
		return
	}

	t.AvailableSeats--
	t.Passengers = append(t.Passengers, user.profile)
	s.nextID++
	res := &models.Reservation{
		ID:         s.nextID,
		User:       user.profile,
		Trip:       *t,
		ReservedAt: timex.NewTime(time.Now().UTC()),
		Status:     models.ReservationPending,
	}
	s.reservations[res.ID] = res
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleUserReservations(w http.ResponseWriter, r *http.Request, user *account) {
	id, _ := pathID(r)
	if id != user.profile.ID {
		writeError(w, http.StatusForbidden, "not your reservations")
		return
	}
	out := make([]models.Reservation, 0)
	for _, res := range s.reservations {
		if res.User.ID == id {
			out = append(out, *res)
		}
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleDriverReservations(w http.ResponseWriter, r *http.Request, user *account) {
	out := make([]models.Reservation, 0)
	for _, res := range s.reservations {
		if res.Trip.Driver != nil && res.Trip.Driver.ID == user.profile.ID {
			out = append(out, *res)
		}
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleSetReservation(status models.ReservationStatus) authedHandler {
	return func(w http.ResponseWriter, r *http.Request, user *account) {
		id, _ := pathID(r)
		res, ok := s.reservations[id]
		if !ok {
			writeError(w, http.StatusNotFound, "Reserva no encontrada")
			return
		}
		if res.Trip.Driver == nil || res.Trip.Driver.ID != user.profile.ID {
			writeError(w, http.StatusForbidden, "Solo el conductor puede gestionar la reserva")
			return
		}
		if !res.Pending() {
			writeError(w, http.StatusConflict, "La reserva ya no está pendiente")
			return
		}
		res.Status = status
		if status == models.ReservationCancelled {
			if t, ok := s.trips[res.Trip.ID]; ok {
				t.AvailableSeats++
			}
		}
		writeJSON(w, http.StatusOK, res)
	}
}

func pathID(r *http.Request) (int64, error) {
	raw, ok := mux.Vars(r)["id"]
	if !ok {
		return 0, errors.New("no id in path")
	}
	return strconv.ParseInt(raw, 10, 64)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]any{"status": status, "message": message})
}
