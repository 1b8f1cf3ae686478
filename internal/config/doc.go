// Package config loads the launcher's settings.
//
// Settings are resolved in three layers, later layers winning:
//  1. Default(): built-in values reproducing the stock behavior
//     (python -m blogger.appvars, <appdata>/venv, requirements.txt, -m blogger)
//  2. The first launcher config file found beside the launcher. YAML
//     (gopkg.in/yaml.v3), TOML (github.com/BurntSushi/toml) and JSON with
//     comments (github.com/tidwall/jsonc) are accepted.
//  3. BLOGGER_LAUNCHER_* environment variables
//
// The launcher itself defines no command-line flags, since every argument
// belongs to the blogger module, so files and environment are the only
// ways to adjust it.
package config
