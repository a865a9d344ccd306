// Package common contains constants shared by the CoDrive client packages.
package common

const (
	// AuthorizationHeader carries the bearer token on authenticated requests.
	AuthorizationHeader = "Authorization"
	// BearerPrefix precedes the token in AuthorizationHeader.
	BearerPrefix = "Bearer "
	// RequestIDHeader tags each outbound request for log correlation.
	RequestIDHeader = "X-Request-ID"

	// Keys of the device-local key/value store.
	TokenKey   = "token"
	ProfileKey = "user"
)

// Backend role names.
const (
	RoleDriver    = "CONDUCTOR"
	RolePassenger = "PASAJERO"
)
