//go:build !windows

package venv

const (
	binDir       = "bin"
	pythonBinary = "python"
	pipBinary    = "pip"
)
