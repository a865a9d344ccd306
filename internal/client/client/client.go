package client

import (
	"context"

	"github.com/dmitrijs2005/codrive/internal/client/models"
)

// Client is the CoDrive backend contract.
type Client interface {
	Login(ctx context.Context, email, password string) (*models.AuthResult, error)
	Register(ctx context.Context, name, email, password string) (*models.AuthResult, error)
	CurrentUser(ctx context.Context, token string) (*models.Profile, error)
	UpdateProfile(ctx context.Context, update models.ProfileUpdate) error

	SearchTrips(ctx context.Context, q models.TripQuery) ([]models.Trip, error)
	GetTrip(ctx context.Context, id int64) (*models.Trip, error)
	PublishTrip(ctx context.Context, trip models.NewTrip) (*models.Trip, error)
	JoinTrip(ctx context.Context, id int64) error

	UserReservations(ctx context.Context, userID int64) ([]models.Reservation, error)
	DriverReservations(ctx context.Context) ([]models.Reservation, error)
	ConfirmReservation(ctx context.Context, id int64) error
	CancelReservation(ctx context.Context, id int64) error

	ListVehicles(ctx context.Context, userID int64) ([]models.Vehicle, error)
	AddVehicle(ctx context.Context, userID int64, v models.Vehicle) error
}

// TokenSource supplies the bearer token for authenticated calls and is told
// when the backend rejects it.
type TokenSource interface {
	Token() string
	HandleUnauthorized(ctx context.Context, token string)
}
