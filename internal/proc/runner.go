package proc

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"os/signal"
	"strings"
	"syscall"

	"github.com/wabisoft/blogger-launcher/internal/model"
)

// Command describes one external program invocation.
type Command struct {
	// Name is the program to run, either a bare name resolved via PATH or
	// an absolute path (e.g. the venv's interpreter).
	Name string

	// Args are passed to the program verbatim.
	Args []string

	// Dir is the working directory. Empty means the launcher's own.
	Dir string

	// Env holds extra KEY=VALUE entries appended to the inherited
	// environment. The launch steps leave it empty so every child sees the
	// user's environment unchanged; it is for callers that need to mark a
	// child, such as a test binary re-executing itself.
	Env []string
}

// String renders the command for log output.
func (c Command) String() string {
	if len(c.Args) == 0 {
		return c.Name
	}
	return c.Name + " " + strings.Join(c.Args, " ")
}

// Runner executes Commands and reports their exit codes.
type Runner interface {
	// Run executes cmd with the launcher's stdin, stdout and stderr and
	// waits for it to exit.
	Run(ctx context.Context, cmd Command) (int, error)

	// Output executes cmd, captures its stdout and waits for it to exit.
	// Stderr still goes to the launcher's stderr.
	Output(ctx context.Context, cmd Command) (string, int, error)
}

// ExecRunner is the os/exec backed Runner.
type ExecRunner struct {
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer
}

// NewExecRunner returns an ExecRunner wired to the process's own stdio.
func NewExecRunner() *ExecRunner {
	return &ExecRunner{
		Stdin:  os.Stdin,
		Stdout: os.Stdout,
		Stderr: os.Stderr,
	}
}

// Run implements Runner.
//
// The child shares the console, so it receives Ctrl+C itself. While it
// runs the launcher ignores os.Interrupt and passes SIGTERM on, and the
// child's own exit code is what comes back.
func (r *ExecRunner) Run(ctx context.Context, c Command) (int, error) {
	if err := checkDir(c); err != nil {
		return model.ExitGeneralError.Int(), err
	}

	cmd := r.command(ctx, c)
	cmd.Stdin = r.Stdin
	cmd.Stdout = r.Stdout

	return exitStatus(c, runRelayingSignals(cmd))
}

// runRelayingSignals starts cmd and waits for it with the launcher's
// signal handling suspended.
func runRelayingSignals(cmd *exec.Cmd) error {
	signals := make(chan os.Signal, 1)
	signal.Notify(signals, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(signals)

	if err := cmd.Start(); err != nil {
		return err
	}

	done := make(chan struct{})
	defer close(done)
	go func() {
		for {
			select {
			case <-done:
				return
			case sig := <-signals:
				// Ctrl+C already reached the whole process group.
				if sig != os.Interrupt {
					_ = cmd.Process.Signal(sig)
				}
			}
		}
	}()

	return cmd.Wait()
}

// Output implements Runner.
func (r *ExecRunner) Output(ctx context.Context, c Command) (string, int, error) {
	if err := checkDir(c); err != nil {
		return "", model.ExitGeneralError.Int(), err
	}

	cmd := r.command(ctx, c)

	var stdout strings.Builder
	cmd.Stdout = &stdout

	code, err := exitStatus(c, cmd.Run())
	return stdout.String(), code, err
}

func (r *ExecRunner) command(ctx context.Context, c Command) *exec.Cmd {
	// #nosec G204 -- the program and its arguments are the launcher's
	// own configuration plus the user's forwarded argv.
	cmd := exec.CommandContext(ctx, c.Name, c.Args...)
	cmd.Dir = c.Dir
	cmd.Stderr = r.Stderr
	if len(c.Env) > 0 {
		cmd.Env = append(os.Environ(), c.Env...)
	}
	return cmd
}

// checkDir reports an unusable working directory before the start error
// can be mistaken for a missing program.
func checkDir(c Command) error {
	if c.Dir == "" {
		return nil
	}

	info, err := os.Stat(c.Dir)
	if err == nil && !info.IsDir() {
		err = fmt.Errorf("%s is not a directory", c.Dir)
	}
	if err != nil {
		return model.WrapLaunchError(
			model.ExitGeneralError,
			fmt.Sprintf("cannot run %s: bad working directory", c.Name),
			err,
		)
	}
	return nil
}

// exitStatus translates the result of exec.Cmd.Run into an exit code.
func exitStatus(c Command, err error) (int, error) {
	if err == nil {
		return model.ExitSuccess.Int(), nil
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		code := exitErr.ExitCode()
		if code < 0 {
			// Killed by a signal; there is no code to propagate.
			return model.ExitGeneralError.Int(), nil
		}
		return code, nil
	}

	var pathErr *os.PathError
	chdirFailed := errors.As(err, &pathErr) && pathErr.Op == "chdir"
	if errors.Is(err, exec.ErrNotFound) || (errors.Is(err, os.ErrNotExist) && !chdirFailed) {
		return model.ExitCommandNotFound.Int(), model.WrapLaunchError(
			model.ExitCommandNotFound,
			fmt.Sprintf("cannot find %s", c.Name),
			err,
		)
	}

	return model.ExitGeneralError.Int(), model.WrapLaunchError(
		model.ExitGeneralError,
		fmt.Sprintf("cannot run %s", c.Name),
		err,
	)
}
