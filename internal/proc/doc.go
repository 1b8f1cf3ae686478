// Package proc runs the external programs the launcher delegates to.
//
// Every step of the launch sequence is an external process: the appvars
// helper query, venv creation, pip, and the target module. This package
// wraps os/exec behind the Runner interface so the launcher can be tested
// with a recording fake, and so exit codes are reported uniformly:
//   - a process that ran and exited non-zero yields its code and a nil error
//   - a process that could not be started yields a model.LaunchError
package proc
