// Package model defines the exit codes and error type shared by the
// blogger launcher packages.
//
// The launcher has no persistent data model. Paths and exit codes are
// computed once per invocation and discarded on exit, so this package only
// carries the vocabulary the other packages use to report failures:
// ExitCode and LaunchError.
package model
