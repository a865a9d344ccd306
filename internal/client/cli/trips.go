package cli

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/dmitrijs2005/codrive/internal/client/models"
	"github.com/dmitrijs2005/codrive/internal/timex"
)

const displayLayout = "2006-01-02 15:04"

// Search asks for origin, destination and a minimum number of free seats
// and lists the matching trips.
func (a *App) Search(ctx context.Context) error {
	origin, err := getSimpleText(a.reader, "From", a.out)
	if err != nil {
		return err
	}
	destination, err := getSimpleText(a.reader, "To", a.out)
	if err != nil {
		return err
	}
	seats, err := GetInt(a.reader, "Minimum free seats (Enter for any)", 0, a.out)
	if err != nil {
		return err
	}

	trips, err := a.trips.Search(ctx, models.TripQuery{Origin: origin, Destination: destination, MinSeats: seats})
	if err != nil {
		return err
	}
	if len(trips) == 0 {
		a.println("No trips found.")
		return nil
	}
	for _, t := range trips {
		a.println(formatTrip(t))
	}
	return nil
}

// Trip shows one trip in detail.
func (a *App) Trip(ctx context.Context, args []string) error {
	id, err := parseID(args)
	if err != nil {
		a.println("Usage: trip <id>")
		return nil
	}
	t, err := a.trips.Get(ctx, id)
	if err != nil {
		return err
	}

	a.println(formatTrip(*t))
	a.printf("Arrival: %s\n", formatTime(t.ArrivalAt))
	if t.Driver != nil {
		a.printf("Driver: %s <%s>\n", t.Driver.Name, t.Driver.Email)
	}
	if len(t.Passengers) > 0 {
		names := make([]string, 0, len(t.Passengers))
		for _, p := range t.Passengers {
			names = append(names, p.Name)
		}
		a.printf("Passengers: %s\n", strings.Join(names, ", "))
	}
	return nil
}

func (a *App) Join(ctx context.Context, args []string) error {
	id, err := parseID(args)
	if err != nil {
		a.println("Usage: join <id>")
		return nil
	}
	if err := a.trips.Join(ctx, id); err != nil {
		return err
	}
	a.printf("Seat requested on trip #%d. The driver has to confirm it.\n", id)
	return nil
}

// Publish asks for the trip details and publishes it. Times are entered in
// local time.
func (a *App) Publish(ctx context.Context) error {
	origin, err := getSimpleText(a.reader, "From", a.out)
	if err != nil {
		return err
	}
	destination, err := getSimpleText(a.reader, "To", a.out)
	if err != nil {
		return err
	}
	dep, err := GetTime(a.reader, "Departure (YYYY-MM-DD HH:MM)", time.Local, a.out)
	if err != nil {
		return err
	}
	arr, err := GetTime(a.reader, "Arrival (YYYY-MM-DD HH:MM)", time.Local, a.out)
	if err != nil {
		return err
	}
	seats, err := GetInt(a.reader, "Seats offered", 0, a.out)
	if err != nil {
		return err
	}

	created, err := a.trips.Publish(ctx, models.NewTrip{
		Origin:      origin,
		Destination: destination,
		DepartureAt: timex.NewTime(dep),
		ArrivalAt:   timex.NewTime(arr),
		TotalSeats:  seats,
	})
	if err != nil {
		return err
	}
	if created == nil {
		a.println("Trip published.")
		return nil
	}
	a.printf("Trip #%d published.\n", created.ID)
	return nil
}

func formatTrip(t models.Trip) string {
	return fmt.Sprintf("#%d %s -> %s, %s, %d/%d seats free",
		t.ID, t.Origin, t.Destination, formatTime(t.DepartureAt), t.AvailableSeats, t.TotalSeats)
}

func formatTime(t timex.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Local().Format(displayLayout)
}
