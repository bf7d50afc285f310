package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/Cornman92/Better11-sub004/internal/domain/app"
)

// Exit codes reported by the CLI.
const (
	exitFailure     = 1
	exitInterrupted = 130
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(exitCode(err))
	}
}

func exitCode(err error) int {
	if app.CodeOf(err) == app.ErrCodeCancelled || errors.Is(err, context.Canceled) {
		return exitInterrupted
	}
	return exitFailure
}
