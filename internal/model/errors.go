package model

import (
	"errors"
	"fmt"
)

// ExitCode is a process exit code produced by the launcher itself.
//
// Codes coming from child processes (the helper query, venv creation, pip,
// the target module) are passed through unchanged and may take any value;
// the constants below only cover failures that originate in the launcher.
type ExitCode int

const (
	// ExitSuccess indicates the launch sequence completed and the target
	// module exited with 0.
	ExitSuccess ExitCode = 0

	// ExitGeneralError indicates an unspecified launcher failure.
	ExitGeneralError ExitCode = 1

	// ExitInvalidConfig indicates a launcher config file could not be
	// read, parsed or validated.
	ExitInvalidConfig ExitCode = 2

	// ExitCommandNotFound indicates an external program could not be
	// started at all, usually because it is not on PATH. Matches the
	// POSIX shell convention.
	ExitCommandNotFound ExitCode = 127
)

// Int returns the exit code as a plain int, suitable for os.Exit.
func (c ExitCode) Int() int {
	return int(c)
}

// LaunchError is an error that carries an exit code.
// The CLI layer translates it into the process exit status.
type LaunchError struct {
	// Code is the exit code to return to the OS.
	Code ExitCode

	// Message is the human-readable error description.
	Message string

	// Err is the underlying error, if any.
	Err error

	// Passthrough marks an exit code that belongs to a child process.
	// The child already reported the problem on its own streams, so the
	// launcher exits with Code without printing anything.
	Passthrough bool
}

// Error satisfies the error interface.
func (e *LaunchError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the underlying error for use with errors.Is/errors.As.
func (e *LaunchError) Unwrap() error {
	return e.Err
}

// NewLaunchError creates a new LaunchError with the given exit code and message.
func NewLaunchError(code ExitCode, message string) *LaunchError {
	return &LaunchError{Code: code, Message: message}
}

// WrapLaunchError creates a new LaunchError that wraps an existing error.
func WrapLaunchError(code ExitCode, message string, err error) *LaunchError {
	return &LaunchError{Code: code, Message: message, Err: err}
}

// PassthroughError reports that the named child process exited with code.
// The launcher propagates code verbatim and stays silent.
func PassthroughError(code int, program string) *LaunchError {
	return &LaunchError{
		Code:        ExitCode(code),
		Message:     fmt.Sprintf("%s exited with code %d", program, code),
		Passthrough: true,
	}
}

// ExitCodeOf returns the exit code an error should produce.
// nil maps to ExitSuccess, a LaunchError to its own code, and anything
// else to ExitGeneralError.
func ExitCodeOf(err error) ExitCode {
	if err == nil {
		return ExitSuccess
	}
	var launchErr *LaunchError
	if errors.As(err, &launchErr) {
		return launchErr.Code
	}
	return ExitGeneralError
}
