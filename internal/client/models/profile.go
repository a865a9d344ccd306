// Package models defines the CoDrive records exchanged with the backend and
// cached on the device. JSON names follow the backend's field names.
package models

import (
	"strings"

	"github.com/dmitrijs2005/codrive/internal/common"
)

// Profile is the backend-owned user record. The client only caches it.
type Profile struct {
	ID    int64  `json:"id"`
	Name  string `json:"nombre"`
	Email string `json:"email"`
	Phone string `json:"telefono,omitempty"`
	Role  string `json:"rol"`
}

// IsDriver reports whether the profile may publish trips.
func (p Profile) IsDriver() bool {
	return strings.EqualFold(p.Role, common.RoleDriver)
}

// ProfileUpdate is the body of PUT /usuarios/actualizar. An empty password
// leaves the current one unchanged.
type ProfileUpdate struct {
	Email    string `json:"email"`
	Name     string `json:"nombre"`
	Phone    string `json:"telefono"`
	Password string `json:"password"`
	Role     string `json:"rol"`
}

// AuthResult is what login and registration resolve to. User is nil when
// the backend returned only a token.
type AuthResult struct {
	Token string
	User  *Profile
}

// Credentials is the body of POST /auth/login.
type Credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Registration is the body of POST /auth/register.
type Registration struct {
	Name     string `json:"nombre"`
	Email    string `json:"email"`
	Password string `json:"password"`
}
