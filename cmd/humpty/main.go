package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/kk-code-lab/humpty/internal/app"
)

const programName = "humpty"

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

// run dispatches a command line and returns the process exit code:
// 0 success, 1 usage error, 2 operation failure.
func run(args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		printUsage(stdout)
		return 0
	}
	var err error
	switch cmd := args[0]; cmd {
	case "-h", "--help", "help":
		printUsage(stdout)
		return 0
	case "-v", "--version":
		fmt.Fprintf(stdout, "%s %s (commit %s)\n", programName, app.Version, app.BuildCommit)
		return 0
	case "split":
		err = runSplit(args[1:], stdout)
	case "join":
		err = runJoin(args[1:], stdout)
	case "verify":
		err = runVerify(args[1:], stdout)
	case "inspect":
		err = runInspect(args[1:], stdout)
	case "catalog":
		err = runCatalog(args[1:], stdout)
	default:
		err = usageError(fmt.Errorf("unknown command: %s", cmd))
	}
	return report(err, stdout, stderr)
}

func report(err error, stdout, stderr io.Writer) int {
	if err == nil {
		return 0
	}
	if errors.Is(err, errShowUsage) {
		printUsage(stdout)
		return 0
	}
	var exitErr *exitCodeError
	if !errors.As(err, &exitErr) {
		exitErr = &exitCodeError{code: exitFailure, msg: err.Error()}
	}
	if !exitErr.Quiet() {
		if exitErr.ExitCode() == exitUsage {
			fmt.Fprintf(stderr, "Error: %s\n\n", exitErr.Error())
			printUsage(stderr)
		} else {
			fmt.Fprintln(stderr, exitErr.Error())
		}
	}
	return exitErr.ExitCode()
}
