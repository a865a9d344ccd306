// Package client talks to the CoDrive REST backend.
//
// # Overview
//
// Client is the transport-agnostic contract; HTTPClient implements it over
// JSON/HTTP. Unauthenticated calls (login, registration, profile lookup with
// an explicit token) work on a bare HTTPClient. Everything else needs a
// TokenSource bound with WithTokenSource: the token is attached as
// "Authorization: Bearer <token>" and a 401/403 answer is reported back to
// the source so the session can be dropped.
//
// # Error Handling
//
// Non-2xx answers become *APIError values that unwrap to a sentinel:
// ErrUnauthorized (401, 403), ErrNotFound (404), ErrUnavailable (5xx, 408,
// 429 and transport failures) or ErrRejected (other 4xx, with the backend's
// "message"). Undecodable bodies yield ErrMalformedResponse.
//
// # Auth responses
//
// The backend has answered login/registration with {token, user}, {token},
// a JSON string or a plain-text token depending on its version. All forms
// are accepted; AuthResult.User is nil when no profile was embedded.
//
// Every request carries an X-Request-ID and, when a tracer provider is
// registered, runs inside a client span.
package client
