package cli

import (
	"context"

	"github.com/dmitrijs2005/codrive/internal/client/models"
)

func (a *App) Vehicles(ctx context.Context) error {
	vs, err := a.profile.Vehicles(ctx)
	if err != nil {
		return err
	}
	if len(vs) == 0 {
		a.println("No vehicles registered.")
		return nil
	}
	for _, v := range vs {
		a.printf("%s %s (%s), %d seats\n", v.Brand, v.Model, v.Plate, v.Seats)
	}
	return nil
}

func (a *App) AddVehicle(ctx context.Context) error {
	brand, err := getSimpleText(a.reader, "Brand", a.out)
	if err != nil {
		return err
	}
	model, err := getSimpleText(a.reader, "Model", a.out)
	if err != nil {
		return err
	}
	plate, err := getSimpleText(a.reader, "Plate", a.out)
	if err != nil {
		return err
	}
	seats, err := GetInt(a.reader, "Seats", 0, a.out)
	if err != nil {
		return err
	}

	if err := a.profile.AddVehicle(ctx, models.Vehicle{Brand: brand, Model: model, Plate: plate, Seats: seats}); err != nil {
		return err
	}
	a.println("Vehicle added.")
	return nil
}

// Driver upgrades the account to the driver role.
func (a *App) Driver(ctx context.Context) error {
	p, err := a.profile.BecomeDriver(ctx)
	if err != nil {
		return err
	}
	a.printf("%s can now publish trips.\n", p.Name)
	return nil
}
