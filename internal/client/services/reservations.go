package services

import (
	"cmp"
	"context"
	"slices"

	"github.com/dmitrijs2005/codrive/internal/client/client"
	"github.com/dmitrijs2005/codrive/internal/client/models"
)

// ReservationService lists and manages reservations. Drivers see both their
// own bookings and the bookings made on their trips.
type ReservationService interface {
	List(ctx context.Context) ([]models.Reservation, error)
	Confirm(ctx context.Context, id int64) error
	Cancel(ctx context.Context, id int64) error
}

type reservationService struct {
	api     client.Client
	session Session
}

func NewReservationService(api client.Client, s Session) ReservationService {
	return &reservationService{api: api, session: s}
}

func (r *reservationService) List(ctx context.Context) ([]models.Reservation, error) {
	user, err := currentUser(r.session)
	if err != nil {
		return nil, err
	}

	own, err := r.api.UserReservations(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	if !user.IsDriver() {
		return SortReservations(own), nil
	}

	onTrips, err := r.api.DriverReservations(ctx)
	if err != nil {
		return nil, err
	}
	return SortReservations(MergeReservations(own, onTrips)), nil
}

func (r *reservationService) Confirm(ctx context.Context, id int64) error {
	if _, err := currentUser(r.session); err != nil {
		return err
	}
	return r.api.ConfirmReservation(ctx, id)
}

func (r *reservationService) Cancel(ctx context.Context, id int64) error {
	if _, err := currentUser(r.session); err != nil {
		return err
	}
	return r.api.CancelReservation(ctx, id)
}

// MergeReservations concatenates lists, keeping the first reservation seen
// for each id.
func MergeReservations(lists ...[]models.Reservation) []models.Reservation {
	seen := make(map[int64]struct{})
	var out []models.Reservation
	for _, list := range lists {
		for _, r := range list {
			if _, dup := seen[r.ID]; dup {
				continue
			}
			seen[r.ID] = struct{}{}
			out = append(out, r)
		}
	}
	return out
}

// SortReservations orders by status (pending, confirmed, cancelled, then
// anything else) and then by id. It sorts in place and returns rs.
func SortReservations(rs []models.Reservation) []models.Reservation {
	slices.SortStableFunc(rs, func(a, b models.Reservation) int {
		return cmp.Or(
			cmp.Compare(a.Status.Rank(), b.Status.Rank()),
			cmp.Compare(a.ID, b.ID),
		)
	})
	return rs
}
