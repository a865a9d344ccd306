package cli

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/codrive/internal/client/models"
)

// Reservations lists the user's reservations; drivers also see the ones
// made on their trips.
func (a *App) Reservations(ctx context.Context) error {
	list, err := a.reservations.List(ctx)
	if err != nil {
		return err
	}
	if len(list) == 0 {
		a.println("No reservations.")
		return nil
	}
	for _, r := range list {
		a.println(formatReservation(r))
	}
	return nil
}

func (a *App) Confirm(ctx context.Context, args []string) error {
	id, err := parseID(args)
	if err != nil {
		a.println("Usage: confirm <id>")
		return nil
	}
	if err := a.reservations.Confirm(ctx, id); err != nil {
		return err
	}
	a.printf("Reservation #%d confirmed.\n", id)
	return nil
}

func (a *App) Cancel(ctx context.Context, args []string) error {
	id, err := parseID(args)
	if err != nil {
		a.println("Usage: cancel <id>")
		return nil
	}
	if err := a.reservations.Cancel(ctx, id); err != nil {
		return err
	}
	a.printf("Reservation #%d cancelled.\n", id)
	return nil
}

func formatReservation(r models.Reservation) string {
	return fmt.Sprintf("#%d [%s] %s: %s -> %s, %s",
		r.ID, r.Status, r.User.Name, r.Trip.Origin, r.Trip.Destination, formatTime(r.Trip.DepartureAt))
}
