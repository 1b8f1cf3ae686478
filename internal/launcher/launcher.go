// Package launcher implements the bootstrap sequence that prepares the
// blogger runtime and hands control to it.
//
// The sequence is strictly linear and fail-fast:
//  1. resolve the environment directory (appvars helper query, or env_dir)
//  2. create the environment if the directory is missing
//  3. install requirements into it with pip
//  4. run the blogger module inside it with the caller's arguments
//
// Each step is an external process. Whenever one exits non-zero the
// sequence stops and that exit code becomes the launcher's own. There are
// no retries and no recovery.
package launcher

import (
	"context"
	"errors"

	"github.com/wabisoft/blogger-launcher/internal/appvars"
	"github.com/wabisoft/blogger-launcher/internal/config"
	"github.com/wabisoft/blogger-launcher/internal/logging"
	"github.com/wabisoft/blogger-launcher/internal/model"
	"github.com/wabisoft/blogger-launcher/internal/proc"
	"github.com/wabisoft/blogger-launcher/internal/venv"
)

// Launcher runs the bootstrap sequence.
type Launcher struct {
	cfg    config.Config
	runner proc.Runner
	log    *logging.Logger
}

// New returns a Launcher. A nil logger discards diagnostics.
func New(cfg config.Config, runner proc.Runner, log *logging.Logger) *Launcher {
	if log == nil {
		log = logging.Discard()
	}
	return &Launcher{cfg: cfg, runner: runner, log: log}
}

// Launch runs the sequence for a launcher installed in scriptDir and
// returns the exit code the launcher process should end with.
//
// A non-nil error is always a *model.LaunchError whose Code equals the
// returned exit code. Passthrough errors carry a child's exit code; the
// child has already reported the failure itself. When the target module
// runs, its exit code is returned with a nil error even when non-zero.
func (l *Launcher) Launch(ctx context.Context, scriptDir string, args []string) (int, error) {
	envDir, err := l.resolveEnvDir(ctx, scriptDir)
	if err != nil {
		return failure(err)
	}
	env := venv.New(envDir)

	if env.Exists() {
		l.log.Debug("using existing environment", "dir", envDir)
		l.checkVersion(env)
	} else {
		l.log.Info("creating environment", "dir", envDir)
		if err := l.step(ctx, env.CreateCommand(l.cfg.Python)); err != nil {
			return failure(err)
		}
	}

	requirements := l.cfg.RequirementsPath(scriptDir)
	l.log.Debug("installing requirements", "file", requirements)
	if err := l.step(ctx, env.InstallCommand(requirements)); err != nil {
		return failure(err)
	}

	cmd := env.RunModuleCommand(l.cfg.Module, args)
	l.log.Debug("running module", "cmd", cmd.String())
	code, err := l.runner.Run(ctx, cmd)
	if err != nil {
		return failure(err)
	}
	l.log.Debug("module exited", "code", code)
	return code, nil
}

// resolveEnvDir returns the configured env_dir, or asks the appvars helper
// for the application data directory and appends the env subpath.
func (l *Launcher) resolveEnvDir(ctx context.Context, scriptDir string) (string, error) {
	if l.cfg.EnvDir != "" {
		return appvars.EnvDir(l.cfg.EnvDir, "", scriptDir), nil
	}

	appData, err := appvars.Query(ctx, l.runner, l.cfg.Python, l.cfg.AppvarsModule, scriptDir)
	if err != nil {
		return "", err
	}
	l.log.Debug("application data directory", "dir", appData)
	return appvars.EnvDir(appData, l.cfg.EnvSubdir, scriptDir), nil
}

// step runs one bootstrap command and turns a non-zero exit into a
// passthrough error.
func (l *Launcher) step(ctx context.Context, cmd proc.Command) error {
	l.log.Debug("running", "cmd", cmd.String())
	code, err := l.runner.Run(ctx, cmd)
	if err != nil {
		return err
	}
	if code != 0 {
		l.log.Error("command failed", "cmd", cmd.String(), "code", code)
		return model.PassthroughError(code, cmd.String())
	}
	return nil
}

// checkVersion warns when an existing environment predates min_python.
// It never changes the outcome of the launch.
func (l *Launcher) checkVersion(env *venv.Environment) {
	if l.cfg.MinPython == "" {
		return
	}
	current, ok, err := env.CheckMinVersion(l.cfg.MinPython)
	if err != nil {
		l.log.Debug("cannot determine environment python version", "error", err)
		return
	}
	if !ok {
		l.log.Warn("environment python is older than min_python; delete the environment to rebuild it",
			"dir", env.Dir, "version", current.String(), "min_python", l.cfg.MinPython)
	}
}

// failure converts err into the (code, error) pair Launch returns.
func failure(err error) (int, error) {
	var launchErr *model.LaunchError
	if !errors.As(err, &launchErr) {
		launchErr = model.WrapLaunchError(model.ExitGeneralError, "launch failed", err)
	}
	return launchErr.Code.Int(), launchErr
}
