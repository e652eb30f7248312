// Command phishctl manages personalization fields and variables on a
// phishvars server from the terminal.
package main

import (
	"bufio"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
)

var version = "dev"

type command func(a *app, args []string) error

var commands = map[string]command{
	"fields":    func(a *app, args []string) error { return a.runEntity(fieldsKind, args) },
	"variables": func(a *app, args []string) error { return a.runEntity(variablesKind, args) },
	"value":     (*app).runValue,
	"render":    (*app).runRender,
}

func usage(w io.Writer) {
	fmt.Fprintf(w, `phishctl - personalization fields and variables

Usage:
  phishctl <command> [subcommand] [options]

Commands:
  fields list|show|edit|delete|template     Manage fields
  variables list|show|edit|delete|template  Manage variables
  value -name <variable> -email <addr>      Resolve one value for a target
  render -email <addr> -text <template>     Substitute placeholders in text
  version                                   Show version

Environment:
  PHISHVARS_URL      Server base URL (default %s)
  PHISHVARS_API_KEY  API key sent as a bearer token

Run 'phishctl <command> -h' for command-specific help.
`, defaultURL)
}

func main() {
	a := &app{
		in:     bufio.NewReader(os.Stdin),
		out:    os.Stdout,
		errOut: os.Stderr,
		getenv: os.Getenv,
	}
	os.Exit(a.run(os.Args[1:]))
}

// run dispatches args and returns the process exit code.
func (a *app) run(args []string) int {
	if len(args) < 1 {
		usage(a.errOut)
		return 1
	}
	cmd := args[0]
	switch cmd {
	case "-h", "--help", "help":
		usage(a.out)
		return 0
	case "-v", "--version", "version":
		fmt.Fprintln(a.out, version)
		return 0
	}

	fn, ok := commands[cmd]
	if !ok {
		fmt.Fprintf(a.errOut, "unknown command: %s\n\n", cmd)
		usage(a.errOut)
		return 1
	}
	if err := fn(a, args[1:]); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		if !errors.Is(err, errReported) {
			fmt.Fprintf(a.errOut, "error: %v\n", err)
		}
		return 1
	}
	return 0
}
