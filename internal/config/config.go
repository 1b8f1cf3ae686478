package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	version "github.com/hashicorp/go-version"
	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"

	"github.com/wabisoft/blogger-launcher/internal/model"
)

// Environment variables recognized by Load.
const (
	EnvHome    = "BLOGGER_LAUNCHER_HOME"
	EnvPython  = "BLOGGER_LAUNCHER_PYTHON"
	EnvEnvDir  = "BLOGGER_LAUNCHER_ENV_DIR"
	EnvVerbose = "BLOGGER_LAUNCHER_VERBOSE"
	EnvLogFile = "BLOGGER_LAUNCHER_LOG_FILE"
)

// FileNames lists the config files Load looks for beside the launcher,
// in priority order.
var FileNames = []string{
	"launcher.yaml",
	"launcher.yml",
	"launcher.toml",
	"launcher.json",
	"launcher.jsonc",
}

// Config holds the launcher settings.
type Config struct {
	// Python is the bootstrap interpreter used for the appvars query and
	// for creating the environment.
	Python string `yaml:"python" toml:"python" json:"python"`

	// Module is the module run inside the environment.
	Module string `yaml:"module" toml:"module" json:"module"`

	// AppvarsModule prints the application data directory.
	AppvarsModule string `yaml:"appvars_module" toml:"appvars_module" json:"appvars_module"`

	// EnvSubdir is appended to the application data directory.
	EnvSubdir string `yaml:"env_subdir" toml:"env_subdir" json:"env_subdir"`

	// EnvDir, when set, is used as the environment directory and the
	// appvars query is skipped.
	EnvDir string `yaml:"env_dir" toml:"env_dir" json:"env_dir"`

	// Requirements is the requirements file, relative to the launcher
	// directory unless absolute.
	Requirements string `yaml:"requirements" toml:"requirements" json:"requirements"`

	// MinPython, when set, makes the launcher warn if an existing
	// environment was built with an older interpreter.
	MinPython string `yaml:"min_python" toml:"min_python" json:"min_python"`

	// Verbose enables console logging on stderr.
	Verbose bool `yaml:"verbose" toml:"verbose" json:"verbose"`

	Log LogConfig `yaml:"log" toml:"log" json:"log"`

	// Source is the config file the settings were read from, if any.
	Source string `yaml:"-" toml:"-" json:"-"`
}

// LogConfig controls the optional rotating log file.
type LogConfig struct {
	File       string `yaml:"file" toml:"file" json:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb" toml:"max_size_mb" json:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups" toml:"max_backups" json:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days" toml:"max_age_days" json:"max_age_days"`
}

// Default returns the stock settings.
func Default() Config {
	return Config{
		Python:        defaultPython(),
		Module:        "blogger",
		AppvarsModule: "blogger.appvars",
		EnvSubdir:     "venv",
		Requirements:  "requirements.txt",
		Log: LogConfig{
			MaxSizeMB:  1,
			MaxBackups: 2,
			MaxAgeDays: 30,
		},
	}
}

// defaultPython is the interpreter name the platform's installers put on
// PATH.
func defaultPython() string {
	if runtime.GOOS == "windows" {
		return "python"
	}
	return "python3"
}

// Load resolves the settings for a launcher living in dir.
// Errors are model.LaunchErrors with ExitInvalidConfig.
func Load(dir string) (Config, error) {
	cfg := Default()

	if path, ok := findFile(dir); ok {
		if err := decodeFile(path, &cfg); err != nil {
			return Config{}, model.WrapLaunchError(model.ExitInvalidConfig,
				fmt.Sprintf("invalid launcher config %s", path), err)
		}
		cfg.Source = path
	}

	if err := applyEnv(&cfg); err != nil {
		return Config{}, model.WrapLaunchError(model.ExitInvalidConfig,
			"invalid launcher environment", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, model.WrapLaunchError(model.ExitInvalidConfig,
			"invalid launcher config", err)
	}

	return cfg, nil
}

// RequirementsPath returns the requirements file path for a launcher in
// scriptDir.
func (c Config) RequirementsPath(scriptDir string) string {
	if filepath.IsAbs(c.Requirements) {
		return c.Requirements
	}
	return filepath.Join(scriptDir, c.Requirements)
}

// Validate checks that every required setting is present and well formed.
func (c Config) Validate() error {
	var errs []error
	required := []struct {
		key   string
		value string
	}{
		{"python", c.Python},
		{"module", c.Module},
		{"requirements", c.Requirements},
	}
	for _, r := range required {
		if strings.TrimSpace(r.value) == "" {
			errs = append(errs, fmt.Errorf("%s must not be empty", r.key))
		}
	}

	if c.EnvDir == "" {
		if strings.TrimSpace(c.AppvarsModule) == "" {
			errs = append(errs, errors.New("appvars_module must not be empty when env_dir is unset"))
		}
		if strings.TrimSpace(c.EnvSubdir) == "" {
			errs = append(errs, errors.New("env_subdir must not be empty when env_dir is unset"))
		}
	}

	if c.MinPython != "" {
		if _, err := version.NewVersion(c.MinPython); err != nil {
			errs = append(errs, fmt.Errorf("min_python: %w", err))
		}
	}

	// lumberjack reads a zero size as its own 100 MB default.
	if c.Log.MaxSizeMB < 1 {
		errs = append(errs, errors.New("log.max_size_mb must be at least 1"))
	}
	if c.Log.MaxBackups < 0 || c.Log.MaxAgeDays < 0 {
		errs = append(errs, errors.New("log limits must not be negative"))
	}

	return errors.Join(errs...)
}

// findFile returns the first of FileNames present in dir.
func findFile(dir string) (string, bool) {
	for _, name := range FileNames {
		path := filepath.Join(dir, name)
		if info, err := os.Stat(path); err == nil && !info.IsDir() {
			return path, true
		}
	}
	return "", false
}

// decodeFile merges the file at path into cfg. Keys missing from the file
// keep their current values.
func decodeFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return yaml.Unmarshal(data, cfg)
	case ".toml":
		_, err := toml.Decode(string(data), cfg)
		return err
	case ".json", ".jsonc":
		return json.Unmarshal(jsonc.ToJSON(data), cfg)
	default:
		return fmt.Errorf("unsupported config format %q", filepath.Ext(path))
	}
}

// applyEnv overlays BLOGGER_LAUNCHER_* variables onto cfg.
func applyEnv(cfg *Config) error {
	if v := os.Getenv(EnvPython); v != "" {
		cfg.Python = v
	}
	if v := os.Getenv(EnvEnvDir); v != "" {
		cfg.EnvDir = v
	}
	if v := os.Getenv(EnvLogFile); v != "" {
		cfg.Log.File = v
	}
	if v := os.Getenv(EnvVerbose); v != "" {
		verbose, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvVerbose, err)
		}
		cfg.Verbose = verbose
	}
	return nil
}
