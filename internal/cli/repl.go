package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/dmitrijs2005/toastit/internal/services"
)

// printlnFn is a test seam for user-facing output. In tests, replace it with a stub.
var printlnFn = fmt.Println

// execIface defines the minimal command surface the REPL needs to operate.
// The real App type satisfies this interface; tests can provide a lightweight stub.
type execIface interface {
	Help() string
	SwitchMode(name string) bool
	Calendar(ctx context.Context, args []string) error
	Exec(ctx context.Context, cmd string, args []string) error
}

// runREPL starts a simple read–eval–print loop.
//
// It reads a line from reader, parses the first token as the command, and
// dispatches it. The loop exits on EOF, when ctx is done, or when the user
// types "exit" or "quit".
//
// The prompt shows the current kind (from statusFn). Global commands:
//
//	help                — show available commands
//	cal [date]          — show the calendar for a day
//	task | project | …  — switch the current kind
//	exit | quit         — leave the program
//
// Everything else goes to the current kind's handler. Errors are printed and
// the loop goes on.
func runREPL(ctx context.Context, a execIface, statusFn func() string, reader *bufio.Reader) {
	for {
		if ctx.Err() != nil {
			return
		}
		printlnFn(fmt.Sprintf("toastit> %s > ", statusFn()))

		line, err := reader.ReadString('\n')
		if err != nil && (!errors.Is(err, io.EOF) || line == "") {
			return
		}
		parts := strings.Fields(line)
		if len(parts) == 0 {
			continue
		}
		cmd, args := parts[0], parts[1:]

		switch cmd {
		case "help":
			printlnFn(a.Help())

		case "cal", "calendar":
			reportError(a.Calendar(ctx, args))

		case "exit", "quit":
			printlnFn("Bye!")
			return

		default:
			if a.SwitchMode(cmd) {
				continue
			}
			err := a.Exec(ctx, cmd, args)
			if errors.Is(err, errUnknownCommand) {
				printlnFn("Unknown command:", cmd)
				continue
			}
			reportError(err)
		}
	}
}

func reportError(err error) {
	switch {
	case err == nil:
	case services.IsRecoverable(err):
		printlnFn(yellow.Sprint(err.Error()))
	default:
		printlnFn(red.Sprint("error: " + err.Error()))
	}
}
