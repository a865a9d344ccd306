package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
)

// printlnFn is a test seam for user-facing output. In tests, replace it with a stub.
var printlnFn = fmt.Println

// execIface defines the minimal command surface the REPL needs to operate.
// The real App type satisfies this interface; tests can provide a lightweight stub.
type execIface interface {
	isLoggedIn() bool
	Register(ctx context.Context) error
	Login(ctx context.Context) error
	Logout(ctx context.Context) error
	WhoAmI(ctx context.Context) error
	Search(ctx context.Context) error
	Trip(ctx context.Context, args []string) error
	Join(ctx context.Context, args []string) error
	Publish(ctx context.Context) error
	Reservations(ctx context.Context) error
	Confirm(ctx context.Context, args []string) error
	Cancel(ctx context.Context, args []string) error
	Vehicles(ctx context.Context) error
	AddVehicle(ctx context.Context) error
	Driver(ctx context.Context) error
}

const (
	anonymousHelp = "Available commands: register, login, whoami, help, exit"
	loggedInHelp  = "Available commands: search, trip <id>, join <id>, publish, reservations, " +
		"confirm <id>, cancel <id>, vehicles, addvehicle, driver, whoami, logout, help, exit"
)

// runREPL starts a simple read–eval–print loop for the CoDrive CLI.
//
// It reads a line from reader, parses the first token as the command and
// dispatches to methods on 'a'; the remaining tokens are passed as
// arguments where a command takes an id. The loop exits on EOF or when the
// user types "exit" or "quit".
//
// The same reader is shared with the command handlers so prompts inside a
// command consume the following input lines.
//
// Errors returned by handlers are shown to the user via describeError and
// never end the loop.
func runREPL(ctx context.Context, a execIface, statusFn func() string, reader *bufio.Reader) {
	for {
		printlnFn(fmt.Sprintf("codrive %s> ", statusFn()))
		line, err := reader.ReadString('\n')
		if err != nil && (!errors.Is(err, io.EOF) || line == "") {
			return
		}
		parts := strings.Fields(line)
		if len(parts) == 0 {
			continue
		}
		cmd, args := parts[0], parts[1:]

		var cmdErr error
		switch cmd {
		case "help":
			if a.isLoggedIn() {
				printlnFn(loggedInHelp)
			} else {
				printlnFn(anonymousHelp)
			}

		case "register":
			cmdErr = a.Register(ctx)

		case "login":
			cmdErr = a.Login(ctx)

		case "logout":
			cmdErr = a.Logout(ctx)

		case "whoami":
			cmdErr = a.WhoAmI(ctx)

		case "search":
			cmdErr = a.Search(ctx)

		case "trip":
			cmdErr = a.Trip(ctx, args)

		case "join":
			cmdErr = a.Join(ctx, args)

		case "publish":
			cmdErr = a.Publish(ctx)

		case "reservations", "r":
			cmdErr = a.Reservations(ctx)

		case "confirm":
			cmdErr = a.Confirm(ctx, args)

		case "cancel":
			cmdErr = a.Cancel(ctx, args)

		case "vehicles":
			cmdErr = a.Vehicles(ctx)

		case "addvehicle":
			cmdErr = a.AddVehicle(ctx)

		case "driver":
			cmdErr = a.Driver(ctx)

		case "exit", "quit":
			printlnFn("Bye!")
			return

		default:
			printlnFn("Unknown command:", cmd)
		}

		if cmdErr != nil {
			printlnFn(describeError(cmdErr))
		}
	}
}
