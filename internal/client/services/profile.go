package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/codrive/internal/client/client"
	"github.com/dmitrijs2005/codrive/internal/client/models"
	"github.com/dmitrijs2005/codrive/internal/common"
)

// ProfileService manages the current user's vehicles and role.
type ProfileService interface {
	Vehicles(ctx context.Context) ([]models.Vehicle, error)
	AddVehicle(ctx context.Context, v models.Vehicle) error
	// BecomeDriver switches the account to the driver role on the backend
	// and then in the session.
	BecomeDriver(ctx context.Context) (models.Profile, error)
}

type profileService struct {
	api     client.Client
	session Session
}

func NewProfileService(api client.Client, s Session) ProfileService {
	return &profileService{api: api, session: s}
}

func (p *profileService) Vehicles(ctx context.Context) ([]models.Vehicle, error) {
	user, err := currentUser(p.session)
	if err != nil {
		return nil, err
	}
	return p.api.ListVehicles(ctx, user.ID)
}

func (p *profileService) AddVehicle(ctx context.Context, v models.Vehicle) error {
	user, err := currentUser(p.session)
	if err != nil {
		return err
	}

	v.Brand = strings.TrimSpace(v.Brand)
	v.Model = strings.TrimSpace(v.Model)
	v.Plate = strings.ToUpper(strings.TrimSpace(v.Plate))
	if v.Brand == "" || v.Model == "" || v.Plate == "" {
		return fmt.Errorf("%w: brand, model and plate are required", ErrValidation)
	}
	if v.Seats <= 0 {
		return fmt.Errorf("%w: at least one seat is required", ErrValidation)
	}
	return p.api.AddVehicle(ctx, user.ID, v)
}

func (p *profileService) BecomeDriver(ctx context.Context) (models.Profile, error) {
	user, err := currentUser(p.session)
	if err != nil {
		return models.Profile{}, err
	}
	if user.IsDriver() {
		return user, nil
	}

	err = p.api.UpdateProfile(ctx, models.ProfileUpdate{
		Email: user.Email,
		Name:  user.Name,
		Phone: user.Phone,
		Role:  common.RoleDriver,
	})
	if err != nil {
		return models.Profile{}, err
	}

	user.Role = common.RoleDriver
	if err := p.session.SetProfile(ctx, user); err != nil {
		return user, fmt.Errorf("role changed but local profile not saved: %w", err)
	}
	return user, nil
}
