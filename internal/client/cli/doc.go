// Package cli provides the interactive CoDrive command-line client.
//
// It wires configuration, the local session database, the API client, the
// session store and the client services, and runs a REPL over them. On
// start the saved session is restored before the first prompt; a background
// watcher subscribed to the session store prints every login and logout,
// including the ones triggered by the backend rejecting the token.
//
// Key features:
//   - Register / Login / Logout / WhoAmI
//   - Search, show, join and publish trips
//   - List, confirm and cancel reservations
//   - Vehicles and switching to the driver role
//
// The REPL is started via App.Run(ctx), which blocks until the user exits.
// See App and runREPL for details.
package cli
