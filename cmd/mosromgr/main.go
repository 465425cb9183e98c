package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/dusk-indust/mosromgr/internal/orchestrator"
)

// version is set by goreleaser at build time.
var version = "dev"

// errUsage marks missing or conflicting arguments.
var errUsage = errors.New("invalid arguments")

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

// run executes the command line and returns the process exit code.
func run(args []string, stdout, stderr io.Writer) int {
	cmd := newRootCmd(&app{out: stdout, errOut: stderr})
	cmd.SetArgs(args)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)
	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitCode(err)
	}
	return 0
}

// exitCode is 2 for domain errors and bad arguments, 1 for anything else.
func exitCode(err error) int {
	if errors.Is(err, errUsage) || orchestrator.IsFatal(err) {
		return 2
	}
	return 1
}
