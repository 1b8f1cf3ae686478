// Package cli implements the cobra command for the blogger launcher.
//
// The launcher is a transparent front for the blogger Python module: it
// owns no flags and no subcommands, and every argument it receives, flags
// included, is forwarded verbatim. The root command therefore disables
// cobra's flag parsing and help handling and hands its argv straight to
// the launcher package.
package cli

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/wabisoft/blogger-launcher/internal/config"
	"github.com/wabisoft/blogger-launcher/internal/launcher"
	"github.com/wabisoft/blogger-launcher/internal/logging"
	"github.com/wabisoft/blogger-launcher/internal/model"
	"github.com/wabisoft/blogger-launcher/internal/proc"
)

// version, commit, and date are set at build time via ldflags.
// They are injected from the main package and only show up in logs, since
// --version belongs to the blogger module.
var (
	// Version is the semantic version of the binary (e.g., "1.0.0").
	Version = "dev"

	// Commit is the Git commit hash the binary was built from.
	Commit = "none"

	// Date is the build timestamp.
	Date = "unknown"
)

// Dependencies are the collaborators the root command wires together.
// Zero values select the production implementations.
type Dependencies struct {
	// Runner executes external programs.
	Runner proc.Runner

	// ScriptDir overrides the launcher directory detection.
	ScriptDir string

	// Stderr receives launcher error messages and verbose output.
	Stderr io.Writer
}

// NewRootCommand creates the root cobra command with production
// dependencies.
func NewRootCommand() *cobra.Command {
	return NewRootCommandWith(Dependencies{})
}

// NewRootCommandWith creates the root cobra command with the given
// dependencies.
func NewRootCommandWith(deps Dependencies) *cobra.Command {
	if deps.Runner == nil {
		deps.Runner = proc.NewExecRunner()
	}
	if deps.Stderr == nil {
		deps.Stderr = os.Stderr
	}

	rootCmd := &cobra.Command{
		Use:   "blogger [args...]",
		Short: "Bootstrap the blogger environment and run blogger",
		Long: `blogger prepares a private Python environment for the blogger site
generator and then runs it.

On every start it:
  1. asks "python -m blogger.appvars" for the application data directory
  2. creates <appdata>/venv with "python -m venv" if it does not exist
  3. installs requirements.txt into it with pip
  4. runs "python -m blogger" inside it with the given arguments

All arguments, flags included, are passed to blogger unchanged. The exit
code is blogger's, or that of the first bootstrap step that failed.`,

		// Every argument belongs to the blogger module.
		DisableFlagParsing: true,
		Args:               cobra.ArbitraryArgs,

		// Errors are reported by Execute; child processes speak for
		// themselves.
		SilenceUsage:  true,
		SilenceErrors: true,

		// A "completion" subcommand would shadow blogger's own arguments.
		CompletionOptions: cobra.CompletionOptions{DisableDefaultCmd: true},

		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) > 0 && args[0] == argsMarker {
				args = args[1:]
			}
			return run(cmd, deps, args)
		},
	}

	rootCmd.SetErr(deps.Stderr)
	return rootCmd
}

// run loads configuration, sets up logging and executes the launch.
func run(cmd *cobra.Command, deps Dependencies, args []string) error {
	scriptDir := deps.ScriptDir
	if scriptDir == "" {
		dir, err := ScriptDir()
		if err != nil {
			return err
		}
		scriptDir = dir
	}

	cfg, err := config.Load(scriptDir)
	if err != nil {
		return err
	}

	log, err := logging.New(logging.Options{
		Verbose:    cfg.Verbose,
		Console:    deps.Stderr,
		File:       cfg.Log.File,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAgeDays: cfg.Log.MaxAgeDays,
	})
	if err != nil {
		return model.WrapLaunchError(model.ExitInvalidConfig, "cannot open launcher log", err)
	}
	defer func() { _ = log.Close() }()

	log.Debug("launcher starting",
		"version", Version, "commit", Commit, "built", Date,
		"script_dir", scriptDir, "config", cfg.Source)

	code, err := launcher.New(cfg, deps.Runner, log).Launch(cmd.Context(), scriptDir, args)
	if err != nil {
		return err
	}
	if code != 0 {
		return model.PassthroughError(code, cfg.Module)
	}
	return nil
}

// ScriptDir returns the directory the launcher is installed in: the
// directory of the running executable with symlinks resolved, unless
// BLOGGER_LAUNCHER_HOME names another.
func ScriptDir() (string, error) {
	if home := os.Getenv(config.EnvHome); home != "" {
		return filepath.Abs(home)
	}

	exe, err := os.Executable()
	if err != nil {
		return "", model.WrapLaunchError(model.ExitGeneralError, "cannot locate launcher executable", err)
	}
	if resolved, err := filepath.EvalSymlinks(exe); err == nil {
		exe = resolved
	}
	return filepath.Dir(exe), nil
}

// argsMarker goes in front of the forwarded arguments. Cobra stops looking
// for subcommands at "--", so even its hidden "__complete" request command
// cannot claim an argument meant for blogger.
const argsMarker = "--"

// Execute runs the root command with args and returns the process exit
// code.
//
// Passthrough errors exit with the child's code silently. Other
// LaunchErrors print "Error: ..." to stderr and exit with their code, and
// any other error exits 1.
func Execute(rootCmd *cobra.Command, args []string) int {
	rootCmd.SetArgs(append([]string{argsMarker}, args...))

	err := rootCmd.Execute()
	if err == nil {
		return model.ExitSuccess.Int()
	}

	var launchErr *model.LaunchError
	if errors.As(err, &launchErr) && launchErr.Passthrough {
		return launchErr.Code.Int()
	}

	fmt.Fprintf(rootCmd.ErrOrStderr(), "Error: %s\n", err.Error())
	return model.ExitCodeOf(err).Int()
}
