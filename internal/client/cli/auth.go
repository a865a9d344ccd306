package cli

import (
	"context"
	"errors"

	"github.com/dmitrijs2005/codrive/internal/client/models"
	"github.com/dmitrijs2005/codrive/internal/common"
)

// getSimpleText and getPassword are indirections used to facilitate testing.
// They point to interactive input helpers and can be swapped in tests.
var getSimpleText = GetSimpleText
var getPassword = GetPassword

// Register prompts for name, email and password and creates an account.
// On success the session watcher announces the new login.
func (a *App) Register(ctx context.Context) error {
	name, err := getSimpleText(a.reader, "Enter name", a.out)
	if err != nil {
		return err
	}
	email, err := getSimpleText(a.reader, "Enter email", a.out)
	if err != nil {
		return err
	}
	password, err := getPassword(a.out)
	if err != nil {
		return err
	}
	defer common.WipeByteArray(password)

	if name == "" || email == "" || len(password) == 0 {
		return errors.New("name, email and password are required")
	}
	return a.session.Register(ctx, name, email, string(password))
}

// Login prompts for credentials and logs in. A failure leaves any existing
// session in place.
func (a *App) Login(ctx context.Context) error {
	email, err := getSimpleText(a.reader, "Enter email", a.out)
	if err != nil {
		return err
	}
	password, err := getPassword(a.out)
	if err != nil {
		return err
	}
	defer common.WipeByteArray(password)

	return a.session.Login(ctx, email, string(password))
}

// Logout always succeeds.
func (a *App) Logout(ctx context.Context) error {
	a.session.Logout(ctx)
	return nil
}

func (a *App) WhoAmI(ctx context.Context) error {
	snap := a.session.Snapshot()
	if !snap.Authenticated() {
		a.println("Not logged in.")
		return nil
	}
	u := snap.User
	a.printf("%s <%s>, %s\n", u.Name, u.Email, roleName(*u))
	if u.Phone != "" {
		a.printf("Phone: %s\n", u.Phone)
	}
	if snap.Offline {
		a.println("Offline: showing the saved profile.")
	}
	return nil
}

func roleName(p models.Profile) string {
	if p.IsDriver() {
		return "driver"
	}
	return "passenger"
}
