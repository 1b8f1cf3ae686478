//go:build windows

package venv

// Windows environments keep executables under Scripts with an .exe suffix.
const (
	binDir       = "Scripts"
	pythonBinary = "python.exe"
	pipBinary    = "pip.exe"
)
