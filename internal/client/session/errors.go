package session

import "errors"

var (
	// ErrBusy is returned when Login, Register or Bootstrap is already running.
	ErrBusy = errors.New("another session operation is in progress")
	// ErrLoginFailed wraps every login or registration failure. The cause
	// stays reachable through errors.Is.
	ErrLoginFailed = errors.New("login failed")
	// ErrNotAuthenticated is returned by operations that need a session.
	ErrNotAuthenticated = errors.New("not authenticated")
	// ErrSuperseded means a Logout happened while the operation was running
	// and its result was discarded.
	ErrSuperseded = errors.New("session changed during operation")
)
