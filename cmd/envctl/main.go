// Command envctl manages environment variables and group presets through a
// running env-manager server.
package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/bcnelson/env-manager/internal/domain"
)

// Exit codes.
const (
	exitSuccess       = 0
	exitFailure       = 1
	exitForbidden     = 3
	exitNotFound      = 4
	exitValidation    = 5
	exitApplyFailed   = 6
	exitRenamePartial = 7
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	root := newRootCmd(stdout, stderr)
	root.SetArgs(args)
	if err := root.Execute(); err != nil {
		reportError(stderr, err)
		return exitCode(err)
	}
	return exitSuccess
}

// exitCode classifies err. Partial-write errors are checked first since they
// may wrap a forbidden or not-found cause.
func exitCode(err error) int {
	switch {
	case err == nil:
		return exitSuccess
	case errors.Is(err, domain.ErrRenamePartial):
		return exitRenamePartial
	case errors.Is(err, domain.ErrApplyFailed):
		return exitApplyFailed
	case errors.Is(err, domain.ErrForbidden):
		return exitForbidden
	case errors.Is(err, domain.ErrNotFound):
		return exitNotFound
	case errors.Is(err, domain.ErrInvalidInput):
		return exitValidation
	default:
		return exitFailure
	}
}

func reportError(w io.Writer, err error) {
	p := newPrinter(w, false)

	var applyErr *domain.ApplyError
	if errors.As(err, &applyErr) {
		p.Error("Activation failed part-way: %v", applyErr.Err)
		if len(applyErr.Written) > 0 {
			p.Warn("These variables were already written:")
			for _, v := range applyErr.Written {
				fmt.Fprintf(w, "  %s (%s) = %s\n", v.Name, v.Scope, v.Value)
			}
		}
		p.Warn("The environment may be partially updated. Retry or verify manually.")
		return
	}

	var renameErr *domain.RenameError
	if errors.As(err, &renameErr) {
		p.Error("%s (%s) was deleted but its replacement could not be written: %v",
			renameErr.Deleted.Name, renameErr.Deleted.Scope, renameErr.Err)
		p.Warn("Previous value was %q.", renameErr.Deleted.Value)
		return
	}

	if errors.Is(err, domain.ErrForbidden) {
		p.Error("%v", err)
		p.Warn("Run the server with administrator privileges to change system variables.")
		return
	}
	p.Error("%v", err)
}
