// Package session owns the client's authentication state.
//
// A Store is the single source of truth for whether the user is logged in
// and as whom. It moves through three states:
//
//	Bootstrapping -> Anonymous | Authenticated
//	Anonymous     -> Authenticated      (Login, Register)
//	Authenticated -> Anonymous          (Logout, rejected token)
//
// A session is Authenticated only once both the token and the profile are
// known; the token is never exposed without a profile. Token and profile are
// persisted through a CredentialStore so the session survives restarts, and
// Bootstrap restores it.
//
// Consumers never mutate the state directly. They read immutable Snapshots
// via Snapshot or Subscribe. The Store is safe for concurrent use; a second
// Login, Register or Bootstrap issued while one is pending fails with ErrBusy.
package session
