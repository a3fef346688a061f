package cli

import (
	"bufio"
	"context"
	"fmt"
	"strings"
)

// printlnFn is a test seam for user-facing output. In tests, replace it with a stub.
var printlnFn = fmt.Println

// execIface defines the minimal command surface the REPL needs to operate.
// The real App type satisfies this interface; tests can provide a lightweight stub.
type execIface interface {
	isLoggedIn() bool
	Login(ctx context.Context) error
	Logout(ctx context.Context) error
	WhoAmI(ctx context.Context) error
	Get(ctx context.Context, table string) error
	Invoke(ctx context.Context, name string) error
	Sync(ctx context.Context) error
	Queue(ctx context.Context) error
	ClearQueue(ctx context.Context) error
	Device(ctx context.Context, rotate bool) error
}

// runREPL starts a simple read–eval–print loop for the NVLP CLI.
//
// It reads a line from the provided scanner, parses the first token as the
// command, and dispatches to methods on 'a'. Unknown commands are reported
// back to the user. The loop exits on scanner EOF or when the user types
// "exit" or "quit".
//
// Prompt & Commands
//
// The prompt shows the current status (from statusFn) and accepts commands:
//
//	Not logged in:
//	  - help           — show available commands
//	  - login          — authenticate
//	  - exit | quit    — leave the program
//
//	Logged in:
//	  - help           — show available commands
//	  - whoami         — show the current session
//	  - get <table>    — fetch rows from a table
//	  - invoke <fn>    — call an edge function
//	  - sync           — replay the offline queue
//	  - queue          — show pending offline entries
//	  - clearqueue     — drop pending offline entries
//	  - device         — show the device identifier
//	  - device rotate  — rotate the device identifier
//	  - logout         — log out
//	  - exit | quit    — leave the program
//
// Any errors returned by command handlers are ignored here; handlers should
// log their own errors. This keeps the REPL loop resilient and focused on I/O.
func runREPL(ctx context.Context, a execIface, statusFn func() string, scanner *bufio.Scanner) {
	for {
		printlnFn(fmt.Sprintf("nvlp %s> ", statusFn()))
		if !scanner.Scan() {
			return
		}
		line := scanner.Text()
		parts := strings.Fields(line)
		if len(parts) == 0 {
			continue
		}
		cmd := parts[0]
		args := parts[1:]

		switch cmd {
		case "help":
			if a.isLoggedIn() {
				printlnFn("Available commands: whoami, get <table>, invoke <fn>, sync, queue, clearqueue, device [rotate], logout, exit")
			} else {
				printlnFn("Available commands: login, queue, exit")
			}
		case "login":
			a.Login(ctx)
		case "logout":
			a.Logout(ctx)
		case "whoami":
			a.WhoAmI(ctx)
		case "get":
			if len(args) == 0 {
				printlnFn("Usage: get <table>")
				continue
			}
			a.Get(ctx, args[0])
		case "invoke":
			if len(args) == 0 {
				printlnFn("Usage: invoke <fn>")
				continue
			}
			a.Invoke(ctx, args[0])
		case "sync":
			a.Sync(ctx)
		case "queue":
			a.Queue(ctx)
		case "clearqueue":
			a.ClearQueue(ctx)
		case "device":
			a.Device(ctx, len(args) > 0 && args[0] == "rotate")
		case "exit", "quit":
			printlnFn("Bye!")
			return
		default:
			printlnFn("Unknown command: " + cmd)
		}
	}
}
