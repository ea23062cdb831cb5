// Package errors formats user-facing error output for the stride CLI.
package errors

import (
	"fmt"
	"os"

	"github.com/stride-app/stride/internal/logger"
)

// Format renders an error with the CLI's "Error: " prefix. Returns "" for nil.
func Format(err error) string {
	if err == nil {
		return ""
	}
	return fmt.Sprintf("Error: %v", err)
}

// Fatal logs the error, prints it to stderr, and exits with code 1.
// A nil error is a no-op, so it can wrap the final command dispatch directly.
func Fatal(err error) {
	if err == nil {
		return
	}
	logger.Error("command failed", "error", err)
	fmt.Fprintln(os.Stderr, Format(err))
	os.Exit(1)
}
