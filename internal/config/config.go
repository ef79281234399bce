package config

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/rendis/flowlint/pkg/schema"
)

// EnvPrefix prefixes every environment override: FLOWLINT_LOG_LEVEL sets
// log.level, FLOWLINT_REPORT_FAIL_WHEN sets report.fail_when.
const EnvPrefix = "FLOWLINT_"

// Config holds all flowlint configuration.
// Priority: env vars > settings file > defaults.
type Config struct {
	Log        LogConfig        `koanf:"log"`
	DB         DBConfig         `koanf:"db"`
	Connectors ConnectorsConfig `koanf:"connectors"`
	Report     ReportConfig     `koanf:"report"`
	Validation ValidationConfig `koanf:"validation"`
}

type LogConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"` // text, json
}

type DBConfig struct {
	Path string `koanf:"path"`
}

type ConnectorsConfig struct {
	Dir string `koanf:"dir"`
}

type ReportConfig struct {
	Format   string `koanf:"format"` // text, json
	Color    bool   `koanf:"color"`
	FailWhen string `koanf:"fail_when"`
}

type ValidationConfig struct {
	Parallel bool `koanf:"parallel"`
}

// Dir returns the per-user flowlint directory.
func Dir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".flowlint"
	}
	return filepath.Join(home, ".flowlint")
}

// SettingsPath returns the default settings file location.
func SettingsPath() string {
	return filepath.Join(Dir(), "settings.yaml")
}

func defaults() map[string]any {
	return map[string]any{
		"log.level":           "info",
		"log.format":          "text",
		"db.path":             filepath.Join(Dir(), "flowlint.db"),
		"connectors.dir":      "connectors",
		"report.format":       "text",
		"report.color":        true,
		"report.fail_when":    "errors > 0",
		"validation.parallel": false,
	}
}

// Load layers defaults, the settings file and FLOWLINT_* env vars. An empty
// path loads the default settings file if it exists; an explicit path must
// exist.
func Load(path string) (*Config, error) {
	k := koanf.New(".")
	for key, v := range defaults() {
		if err := k.Set(key, v); err != nil {
			return nil, configError("set default "+key, err)
		}
	}

	explicit := path != ""
	if !explicit {
		path = SettingsPath()
	}
	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		if explicit || !errors.Is(err, fs.ErrNotExist) {
			return nil, configError("load "+path, err)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, configError("load environment", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, configError("decode", err)
	}
	return &cfg, nil
}

// envKey maps FLOWLINT_SECTION_SOME_KEY to section.some_key. Only the first
// underscore separates the section so multi-word keys survive.
func envKey(s string) string {
	return strings.Replace(strings.ToLower(strings.TrimPrefix(s, EnvPrefix)), "_", ".", 1)
}

func configError(op string, err error) error {
	return schema.NewErrorf(schema.ErrCodeConfig, "config: %s: %v", op, err).WithCause(err)
}
