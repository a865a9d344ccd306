package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/codrive/internal/client/client"
	"github.com/dmitrijs2005/codrive/internal/client/models"
	"github.com/dmitrijs2005/codrive/internal/timex"
)

// TripService covers searching, joining and publishing trips.
//
// Contract:
//   - Search: origin and destination are required, MinSeats must be >= 0.
//   - Get: fetch one trip by id.
//   - Join: reserve a seat on a trip for the current user.
//   - Publish: drivers only; origin and destination required, at least one
//     seat and arrival after departure. Times are sent in UTC.
//
// Every method needs an authenticated session.
type TripService interface {
	Search(ctx context.Context, q models.TripQuery) ([]models.Trip, error)
	Get(ctx context.Context, id int64) (*models.Trip, error)
	Join(ctx context.Context, id int64) error
	Publish(ctx context.Context, trip models.NewTrip) (*models.Trip, error)
}

type tripService struct {
	api     client.Client
	session Session
}

func NewTripService(api client.Client, s Session) TripService {
	return &tripService{api: api, session: s}
}

func (t *tripService) Search(ctx context.Context, q models.TripQuery) ([]models.Trip, error) {
	if _, err := currentUser(t.session); err != nil {
		return nil, err
	}
	q.Origin = strings.TrimSpace(q.Origin)
	q.Destination = strings.TrimSpace(q.Destination)
	if q.Origin == "" || q.Destination == "" {
		return nil, fmt.Errorf("%w: origin and destination are required", ErrValidation)
	}
	if q.MinSeats < 0 {
		return nil, fmt.Errorf("%w: seats must not be negative", ErrValidation)
	}
	return t.api.SearchTrips(ctx, q)
}

func (t *tripService) Get(ctx context.Context, id int64) (*models.Trip, error) {
	if _, err := currentUser(t.session); err != nil {
		return nil, err
	}
	return t.api.GetTrip(ctx, id)
}

func (t *tripService) Join(ctx context.Context, id int64) error {
	if _, err := currentUser(t.session); err != nil {
		return err
	}
	return t.api.JoinTrip(ctx, id)
}

func (t *tripService) Publish(ctx context.Context, trip models.NewTrip) (*models.Trip, error) {
	user, err := currentUser(t.session)
	if err != nil {
		return nil, err
	}
	if !user.IsDriver() {
		return nil, ErrNotDriver
	}

	trip.Origin = strings.TrimSpace(trip.Origin)
	trip.Destination = strings.TrimSpace(trip.Destination)
	switch {
	case trip.Origin == "" || trip.Destination == "":
		return nil, fmt.Errorf("%w: origin and destination are required", ErrValidation)
	case trip.TotalSeats <= 0:
		return nil, fmt.Errorf("%w: at least one seat is required", ErrValidation)
	case trip.DepartureAt.IsZero() || trip.ArrivalAt.IsZero():
		return nil, fmt.Errorf("%w: departure and arrival times are required", ErrValidation)
	case !trip.ArrivalAt.After(trip.DepartureAt.Time):
		return nil, fmt.Errorf("%w: arrival must be after departure", ErrValidation)
	}
	trip.DepartureAt = timex.NewTime(trip.DepartureAt.UTC())
	trip.ArrivalAt = timex.NewTime(trip.ArrivalAt.UTC())

	return t.api.PublishTrip(ctx, trip)
}
