package cli

import (
	"errors"
	"fmt"
	"testing"

	"github.com/dmitrijs2005/codrive/internal/client/client"
	"github.com/dmitrijs2005/codrive/internal/client/services"
	"github.com/dmitrijs2005/codrive/internal/client/session"
	"github.com/stretchr/testify/assert"
)

func TestDescribeError(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{session.ErrBusy, "Another login is still running, please wait."},
		{fmt.Errorf("%w: %w", session.ErrLoginFailed, client.ErrUnavailable), "Could not log in. Check your email, password and connection."},
		{session.ErrNotAuthenticated, "Please log in first."},
		{services.ErrNotDriver, "This needs a driver account. Run 'driver' to become one."},
		{fmt.Errorf("%w: seats", services.ErrValidation), "Invalid input: invalid input: seats"},
		{fmt.Errorf("reservations: %w", client.ErrUnauthorized), "Your session is no longer valid. Please log in again."},
		{fmt.Errorf("get trip: %w", client.ErrNotFound), "Not found."},
		{client.ErrUnavailable, "Server unavailable, try again later."},
		{errors.New("disk full"), "Error: disk full"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, describeError(tt.err), "%v", tt.err)
	}
}
