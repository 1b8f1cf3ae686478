package launcher

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wabisoft/blogger-launcher/internal/config"
	"github.com/wabisoft/blogger-launcher/internal/logging"
	"github.com/wabisoft/blogger-launcher/internal/model"
	"github.com/wabisoft/blogger-launcher/internal/proc"
	"github.com/wabisoft/blogger-launcher/internal/venv"
)

// step identifies which bootstrap step a recorded command belongs to.
type step string

const (
	stepQuery   step = "query"
	stepCreate  step = "create"
	stepInstall step = "install"
	stepModule  step = "module"
)

// fakeRunner records every command and answers with per-step exit codes.
// The create step really creates the directory, as venv would, so the
// launcher sees a consistent filesystem afterwards.
type fakeRunner struct {
	t        *testing.T
	appData  string
	codes    map[step]int
	startErr map[step]error
	calls    []proc.Command
	steps    []step
}

func newFakeRunner(t *testing.T, appData string) *fakeRunner {
	return &fakeRunner{
		t:        t,
		appData:  appData,
		codes:    map[step]int{},
		startErr: map[step]error{},
	}
}

func (f *fakeRunner) classify(cmd proc.Command) step {
	switch {
	case len(cmd.Args) >= 2 && cmd.Args[0] == "-m" && cmd.Args[1] == "blogger.appvars":
		return stepQuery
	case len(cmd.Args) >= 2 && cmd.Args[0] == "-m" && cmd.Args[1] == "venv":
		return stepCreate
	case len(cmd.Args) >= 1 && cmd.Args[0] == "install":
		return stepInstall
	default:
		return stepModule
	}
}

func (f *fakeRunner) record(cmd proc.Command) step {
	s := f.classify(cmd)
	f.calls = append(f.calls, cmd)
	f.steps = append(f.steps, s)
	return s
}

func (f *fakeRunner) Run(_ context.Context, cmd proc.Command) (int, error) {
	s := f.record(cmd)
	if err := f.startErr[s]; err != nil {
		return model.ExitCodeOf(err).Int(), err
	}
	code := f.codes[s]
	if s == stepCreate && code == 0 {
		require.NoError(f.t, os.MkdirAll(cmd.Args[2], 0755))
	}
	return code, nil
}

func (f *fakeRunner) Output(_ context.Context, cmd proc.Command) (string, int, error) {
	s := f.record(cmd)
	if err := f.startErr[s]; err != nil {
		return "", model.ExitCodeOf(err).Int(), err
	}
	if code := f.codes[s]; code != 0 {
		return "", code, nil
	}
	return f.appData + "\n", 0, nil
}

func (f *fakeRunner) count(s step) int {
	n := 0
	for _, got := range f.steps {
		if got == s {
			n++
		}
	}
	return n
}

func (f *fakeRunner) commandFor(s step) (proc.Command, bool) {
	for i, got := range f.steps {
		if got == s {
			return f.calls[i], true
		}
	}
	return proc.Command{}, false
}

// fixture is a launcher installed in a temp script dir whose appvars
// helper points at a temp application data dir.
type fixture struct {
	scriptDir string
	appData   string
	envDir    string
	cfg       config.Config
	runner    *fakeRunner
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	appData := t.TempDir()
	cfg := config.Default()
	cfg.Python = "python-bootstrap"
	return &fixture{
		scriptDir: t.TempDir(),
		appData:   appData,
		envDir:    filepath.Join(appData, "venv"),
		cfg:       cfg,
		runner:    newFakeRunner(t, appData),
	}
}

func (fx *fixture) launch(args ...string) (int, error) {
	return New(fx.cfg, fx.runner, nil).Launch(context.Background(), fx.scriptDir, args)
}

func TestLaunch_FreshEnvironment(t *testing.T) {
	fx := newFixture(t)

	code, err := fx.launch("build")
	require.NoError(t, err)
	assert.Equal(t, 0, code)

	assert.Equal(t, []step{stepQuery, stepCreate, stepInstall, stepModule}, fx.runner.steps)

	query := fx.runner.calls[0]
	assert.Equal(t, "python-bootstrap", query.Name)
	assert.Equal(t, []string{"-m", "blogger.appvars"}, query.Args)
	assert.Equal(t, fx.scriptDir, query.Dir)

	create := fx.runner.calls[1]
	assert.Equal(t, "python-bootstrap", create.Name)
	assert.Equal(t, []string{"-m", "venv", fx.envDir}, create.Args)
}

// TestLaunch_ChildrenInheritEnvironment verifies no step adds variables of
// its own to the user's environment.
func TestLaunch_ChildrenInheritEnvironment(t *testing.T) {
	fx := newFixture(t)

	_, err := fx.launch("serve")
	require.NoError(t, err)

	require.Len(t, fx.runner.calls, 4)
	for i, cmd := range fx.runner.calls {
		assert.Empty(t, cmd.Env, "step %s", fx.runner.steps[i])
	}
}

// TestLaunch_CreatesOnceBeforeInstall verifies a missing environment is
// created exactly once, and before pip runs.
func TestLaunch_CreatesOnceBeforeInstall(t *testing.T) {
	fx := newFixture(t)

	_, err := fx.launch()
	require.NoError(t, err)

	assert.Equal(t, 1, fx.runner.count(stepCreate))
	createAt, installAt := -1, -1
	for i, s := range fx.runner.steps {
		switch s {
		case stepCreate:
			createAt = i
		case stepInstall:
			installAt = i
		}
	}
	assert.Less(t, createAt, installAt)
}

func TestLaunch_ExistingEnvironmentNotRecreated(t *testing.T) {
	fx := newFixture(t)
	require.NoError(t, os.MkdirAll(fx.envDir, 0755))

	code, err := fx.launch("serve")
	require.NoError(t, err)
	assert.Equal(t, 0, code)

	assert.Zero(t, fx.runner.count(stepCreate))
	assert.Equal(t, []step{stepQuery, stepInstall, stepModule}, fx.runner.steps)
}

// TestLaunch_SecondRunSkipsCreation runs the launcher twice against the
// same directories, as a user would.
func TestLaunch_SecondRunSkipsCreation(t *testing.T) {
	fx := newFixture(t)

	_, err := fx.launch()
	require.NoError(t, err)
	_, err = fx.launch()
	require.NoError(t, err)

	assert.Equal(t, 1, fx.runner.count(stepCreate))
	assert.Equal(t, 2, fx.runner.count(stepInstall))
}

func TestLaunch_InstallUsesFixedRequirements(t *testing.T) {
	fx := newFixture(t)
	want := filepath.Join(fx.scriptDir, "requirements.txt")
	env := venv.New(fx.envDir)

	for i := 0; i < 3; i++ {
		_, err := fx.launch("arg", "run-"+strconv.Itoa(i))
		require.NoError(t, err)
	}

	n := 0
	for i, s := range fx.runner.steps {
		if s != stepInstall {
			continue
		}
		n++
		cmd := fx.runner.calls[i]
		assert.Equal(t, env.Pip(), cmd.Name)
		assert.Equal(t, []string{"install", "--quiet", "--disable-pip-version-check", "-r", want}, cmd.Args)
	}
	assert.Equal(t, 3, n)
}

// TestLaunch_InstallFailurePropagates verifies a failing pip aborts the
// launch with pip's own exit code and the module never runs.
func TestLaunch_InstallFailurePropagates(t *testing.T) {
	for _, pipCode := range []int{1, 2, 23} {
		t.Run(strconv.Itoa(pipCode), func(t *testing.T) {
			fx := newFixture(t)
			fx.runner.codes[stepInstall] = pipCode

			code, err := fx.launch("build")
			require.Error(t, err)
			assert.Equal(t, pipCode, code)

			var launchErr *model.LaunchError
			require.ErrorAs(t, err, &launchErr)
			assert.True(t, launchErr.Passthrough)
			assert.Equal(t, model.ExitCode(pipCode), launchErr.Code)

			assert.Zero(t, fx.runner.count(stepModule), "module must not run after a failed install")
		})
	}
}

// TestLaunch_ForwardsArgumentsVerbatim verifies the module receives exactly
// the launcher's arguments, in order, including flag-like values.
func TestLaunch_ForwardsArgumentsVerbatim(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"no arguments", nil},
		{"subcommand", []string{"build"}},
		{"flags and values", []string{"serve", "--port", "8000", "-v"}},
		{"help and version", []string{"--help", "--version"}},
		{"spaces and empties", []string{"new post", "", "C:\\sites\\my blog"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fx := newFixture(t)

			_, err := fx.launch(tt.args...)
			require.NoError(t, err)

			cmd, ok := fx.runner.commandFor(stepModule)
			require.True(t, ok)
			assert.Equal(t, venv.New(fx.envDir).Python(), cmd.Name)
			assert.Equal(t, append([]string{"-m", "blogger"}, tt.args...), cmd.Args)
		})
	}
}

// TestLaunch_ModuleExitCodeIsOwn verifies the module's exit code becomes
// the launcher's, with no error attached.
func TestLaunch_ModuleExitCodeIsOwn(t *testing.T) {
	for _, want := range []int{0, 1, 4, 130} {
		fx := newFixture(t)
		fx.runner.codes[stepModule] = want

		code, err := fx.launch("build")
		require.NoError(t, err)
		assert.Equal(t, want, code)
	}
}

func TestLaunch_QueryFailurePropagates(t *testing.T) {
	fx := newFixture(t)
	fx.runner.codes[stepQuery] = 1

	code, err := fx.launch("build")
	require.Error(t, err)
	assert.Equal(t, 1, code)
	assert.Equal(t, []step{stepQuery}, fx.runner.steps, "nothing runs after a failed query")
}

func TestLaunch_CreateFailurePropagates(t *testing.T) {
	fx := newFixture(t)
	fx.runner.codes[stepCreate] = 3

	code, err := fx.launch("build")
	require.Error(t, err)
	assert.Equal(t, 3, code)
	assert.Equal(t, []step{stepQuery, stepCreate}, fx.runner.steps)
}

func TestLaunch_BootstrapPythonMissing(t *testing.T) {
	fx := newFixture(t)
	fx.runner.startErr[stepQuery] = model.WrapLaunchError(model.ExitCommandNotFound,
		"cannot find python-bootstrap", errors.New("executable file not found in $PATH"))

	code, err := fx.launch()
	require.Error(t, err)
	assert.Equal(t, model.ExitCommandNotFound.Int(), code)

	var launchErr *model.LaunchError
	require.ErrorAs(t, err, &launchErr)
	assert.False(t, launchErr.Passthrough, "the launcher reports start failures itself")
}

// TestLaunch_EnvDirOverride verifies a configured env_dir skips the helper
// query entirely.
func TestLaunch_EnvDirOverride(t *testing.T) {
	fx := newFixture(t)
	fx.cfg.EnvDir = filepath.Join(t.TempDir(), "custom-env")

	_, err := fx.launch()
	require.NoError(t, err)

	assert.Zero(t, fx.runner.count(stepQuery))
	create, ok := fx.runner.commandFor(stepCreate)
	require.True(t, ok)
	assert.Equal(t, []string{"-m", "venv", fx.cfg.EnvDir}, create.Args)
}

func TestLaunch_CustomModuleAndSubdir(t *testing.T) {
	fx := newFixture(t)
	fx.cfg.Module = "blogger.cli"
	fx.cfg.EnvSubdir = filepath.Join("envs", "py3")

	_, err := fx.launch("x")
	require.NoError(t, err)

	create, ok := fx.runner.commandFor(stepCreate)
	require.True(t, ok)
	assert.Equal(t, filepath.Join(fx.appData, "envs", "py3"), create.Args[2])

	module, ok := fx.runner.commandFor(stepModule)
	require.True(t, ok)
	assert.Equal(t, []string{"-m", "blogger.cli", "x"}, module.Args)
}

// TestLaunch_MinPythonWarning verifies an outdated environment only
// produces a warning and the launch proceeds normally.
func TestLaunch_MinPythonWarning(t *testing.T) {
	fx := newFixture(t)
	fx.cfg.MinPython = "3.11"
	require.NoError(t, os.MkdirAll(fx.envDir, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(fx.envDir, "pyvenv.cfg"), []byte("version = 3.9.7\n"), 0644))

	var console bytes.Buffer
	log, err := logging.New(logging.Options{Verbose: true, Console: &console})
	require.NoError(t, err)

	code, err := New(fx.cfg, fx.runner, log).Launch(context.Background(), fx.scriptDir, nil)
	require.NoError(t, err)
	assert.Equal(t, 0, code)

	assert.Contains(t, console.String(), "older than min_python")
	assert.Contains(t, console.String(), "version=3.9.7")
	assert.Zero(t, fx.runner.count(stepCreate))
}
