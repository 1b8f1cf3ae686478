// Package appvars asks the blogger package where its per-user application
// data lives.
//
// The blogger package owns that decision (it derives the roaming data
// directory from its app name and author), so the launcher does not
// recompute it. It runs the package's appvars helper module with the
// bootstrap interpreter and reads the directory from its output.
package appvars

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/wabisoft/blogger-launcher/internal/model"
	"github.com/wabisoft/blogger-launcher/internal/proc"
)

// QueryCommand returns the command that prints the application data
// directory: `python -m <module>`, run from dir so the blogger package
// shipped beside the launcher is importable.
func QueryCommand(python, module, dir string) proc.Command {
	return proc.Command{
		Name: python,
		Args: []string{"-m", module},
		Dir:  dir,
	}
}

// Query runs the helper and returns the directory it printed.
//
// A non-zero exit is returned as a passthrough model.LaunchError carrying
// the helper's own exit code. Empty output is a launcher error.
func Query(ctx context.Context, runner proc.Runner, python, module, dir string) (string, error) {
	cmd := QueryCommand(python, module, dir)

	out, code, err := runner.Output(ctx, cmd)
	if err != nil {
		return "", err
	}
	if code != 0 {
		return "", model.PassthroughError(code, cmd.String())
	}

	appData := lastLine(out)
	if appData == "" {
		return "", model.NewLaunchError(model.ExitGeneralError,
			fmt.Sprintf("%s printed no application data directory", cmd.String()))
	}
	return appData, nil
}

// EnvDir joins the application data directory with the environment
// subpath. A relative result is resolved against scriptDir.
func EnvDir(appData, subpath, scriptDir string) string {
	dir := filepath.Join(appData, subpath)
	if !filepath.IsAbs(dir) {
		dir = filepath.Join(scriptDir, dir)
	}
	return dir
}

// lastLine returns the last non-blank line of out, trimmed. Interpreters
// occasionally emit warnings on stdout ahead of the real answer.
func lastLine(out string) string {
	lines := strings.Split(strings.ReplaceAll(out, "\r\n", "\n"), "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		if line := strings.TrimSpace(lines[i]); line != "" {
			return line
		}
	}
	return ""
}
