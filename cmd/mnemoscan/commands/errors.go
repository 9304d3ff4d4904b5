// Package commands implements CLI command handlers for mnemoscan.
package commands

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/mnemoscan/internal/scan"
	"github.com/Sumatoshi-tech/mnemoscan/pkg/exitcode"
)

var (
	// ErrUsage marks invalid flags, arguments or configuration.
	ErrUsage = errors.New("invalid usage")
	// ErrInterrupted is returned when a scan stopped on a signal after saving progress.
	ErrInterrupted = errors.New("scan interrupted")
)

// ExitCode maps a command error to the process exit status.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return exitcode.OK
	case errors.Is(err, ErrInterrupted):
		return exitcode.Interrupted
	case errors.Is(err, scan.ErrInputMismatch):
		return exitcode.InputMismatch
	case errors.Is(err, ErrUsage):
		return exitcode.Usage
	default:
		return exitcode.Failure
	}
}

// FlagError marks flag parsing failures as usage errors.
func FlagError(_ *cobra.Command, err error) error {
	return usageError(err)
}

func usageError(err error) error {
	return fmt.Errorf("%w: %w", ErrUsage, err)
}

// maxArgs is cobra.MaximumNArgs reporting a usage error.
func maxArgs(n int) cobra.PositionalArgs {
	check := cobra.MaximumNArgs(n)

	return func(cmd *cobra.Command, args []string) error {
		err := check(cmd, args)
		if err != nil {
			return usageError(err)
		}

		return nil
	}
}
