package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"modelforge/internal/services"
)

func main() {
	cmd := newRootCommand()
	if err := cmd.Execute(); err != nil {
		if !errors.Is(err, context.Canceled) {
			fmt.Fprintln(os.Stderr, err)
		}
		os.Exit(exitCode(err))
	}
}

// exitCode returns 2 for caller mistakes (bad input or configuration) and 1
// for everything else.
func exitCode(err error) int {
	if errors.Is(err, services.ErrValidation) || errors.Is(err, services.ErrConfiguration) || errors.Is(err, services.ErrNotFound) {
		return 2
	}
	return 1
}
