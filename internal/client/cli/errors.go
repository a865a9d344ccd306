package cli

import (
	"errors"

	"github.com/dmitrijs2005/codrive/internal/client/client"
	"github.com/dmitrijs2005/codrive/internal/client/services"
	"github.com/dmitrijs2005/codrive/internal/client/session"
)

// describeError turns a command error into the line shown to the user.
func describeError(err error) string {
	var apiErr *client.APIError
	switch {
	case errors.Is(err, session.ErrBusy):
		return "Another login is still running, please wait."
	case errors.Is(err, session.ErrLoginFailed):
		return "Could not log in. Check your email, password and connection."
	case errors.Is(err, session.ErrNotAuthenticated):
		return "Please log in first."
	case errors.Is(err, services.ErrNotDriver):
		return "This needs a driver account. Run 'driver' to become one."
	case errors.Is(err, services.ErrValidation):
		return "Invalid input: " + err.Error()
	case errors.Is(err, client.ErrUnauthorized):
		return "Your session is no longer valid. Please log in again."
	case errors.Is(err, client.ErrNotFound):
		return "Not found."
	case errors.Is(err, client.ErrUnavailable):
		return "Server unavailable, try again later."
	case errors.As(err, &apiErr) && apiErr.Message != "":
		return "Rejected by server: " + apiErr.Message
	default:
		return "Error: " + err.Error()
	}
}
