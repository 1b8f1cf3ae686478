package venv

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	version "github.com/hashicorp/go-version"

	"github.com/wabisoft/blogger-launcher/internal/proc"
)

// cfgFileName is the marker file the venv module writes at the root of
// every environment.
const cfgFileName = "pyvenv.cfg"

// ErrNoVersion is returned by ReadVersion when pyvenv.cfg exists but
// records no interpreter version.
var ErrNoVersion = errors.New("pyvenv.cfg does not record a version")

// Environment is a virtual environment rooted at Dir.
type Environment struct {
	Dir string
}

// New returns the Environment rooted at dir.
func New(dir string) *Environment {
	return &Environment{Dir: dir}
}

// Python returns the path of the environment's interpreter.
func (e *Environment) Python() string {
	return filepath.Join(e.Dir, binDir, pythonBinary)
}

// Pip returns the path of the environment's package installer.
func (e *Environment) Pip() string {
	return filepath.Join(e.Dir, binDir, pipBinary)
}

// ConfigFile returns the path of the environment's pyvenv.cfg.
func (e *Environment) ConfigFile() string {
	return filepath.Join(e.Dir, cfgFileName)
}

// Exists reports whether Dir exists and is a directory.
//
// Only the directory is checked, not its contents: a half-built
// environment is left for pip to fail on rather than silently recreated.
func (e *Environment) Exists() bool {
	info, err := os.Stat(e.Dir)
	return err == nil && info.IsDir()
}

// CreateCommand returns the command that creates the environment using
// the given bootstrap interpreter.
func (e *Environment) CreateCommand(python string) proc.Command {
	return proc.Command{
		Name: python,
		Args: []string{"-m", "venv", e.Dir},
	}
}

// InstallCommand returns the pip command that installs the packages listed
// in requirements, quietly and without pip's self-version check.
func (e *Environment) InstallCommand(requirements string) proc.Command {
	return proc.Command{
		Name: e.Pip(),
		Args: []string{"install", "--quiet", "--disable-pip-version-check", "-r", requirements},
	}
}

// RunModuleCommand returns the command that runs module with the
// environment's interpreter, forwarding args unchanged.
func (e *Environment) RunModuleCommand(module string, args []string) proc.Command {
	full := make([]string, 0, len(args)+2)
	full = append(full, "-m", module)
	full = append(full, args...)
	return proc.Command{
		Name: e.Python(),
		Args: full,
	}
}

// ReadVersion returns the interpreter version recorded in pyvenv.cfg.
//
// The venv module writes "version = X.Y.Z" (Python < 3.11) or
// "version_info = X.Y.Z.final.0" (3.11+); both are understood.
func (e *Environment) ReadVersion() (*version.Version, error) {
	f, err := os.Open(e.ConfigFile())
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	values := make(map[string]string)
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		key, value, ok := strings.Cut(scanner.Text(), "=")
		if !ok {
			continue
		}
		values[strings.ToLower(strings.TrimSpace(key))] = strings.TrimSpace(value)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", e.ConfigFile(), err)
	}

	raw := values["version"]
	if raw == "" {
		raw = values["version_info"]
	}
	if raw == "" {
		return nil, ErrNoVersion
	}

	v, err := version.NewVersion(trimReleaseLevel(raw))
	if err != nil {
		return nil, fmt.Errorf("invalid version %q in %s: %w", raw, e.ConfigFile(), err)
	}
	return v, nil
}

// CheckMinVersion reports whether the environment's interpreter is at
// least minimum. It returns the recorded version alongside the verdict so the
// caller can log it.
func (e *Environment) CheckMinVersion(minimum string) (*version.Version, bool, error) {
	minVersion, err := version.NewVersion(minimum)
	if err != nil {
		return nil, false, fmt.Errorf("invalid minimum python version %q: %w", minimum, err)
	}

	current, err := e.ReadVersion()
	if err != nil {
		return nil, false, err
	}

	return current, current.GreaterThanOrEqual(minVersion), nil
}

// trimReleaseLevel turns "3.12.1.final.0" into "3.12.1" and leaves plain
// versions alone.
func trimReleaseLevel(raw string) string {
	parts := strings.Split(raw, ".")
	for i, p := range parts {
		if p == "" || strings.Trim(p, "0123456789") != "" {
			return strings.Join(parts[:i], ".")
		}
	}
	return raw
}
