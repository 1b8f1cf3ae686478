// Package venv describes a Python virtual environment on disk.
//
// It knows the platform layout of an environment (Scripts\*.exe on Windows,
// bin/* elsewhere) and builds the commands the launcher runs against it:
// creation via the interpreter's built-in venv module, dependency
// installation via the environment's pip, and module execution via the
// environment's interpreter. The environment's internals are left entirely
// to those tools; this package only computes paths and arguments, and reads
// pyvenv.cfg to report which Python the environment was built with.
package venv
