package services

import "errors"

var (
	// ErrValidation marks input rejected before any request is sent.
	ErrValidation = errors.New("invalid input")
	// ErrNotDriver is returned for driver-only operations on a passenger account.
	ErrNotDriver = errors.New("only drivers can do this")
)
