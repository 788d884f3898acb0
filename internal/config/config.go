// Package config loads the tb client configuration.
//
// Sources, later ones winning: defaults, YAML file, .env file, TB_* environment variables.
// Command line flags are applied by the caller on top of the loaded Config.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// EnvPrefix prefixes every environment override, e.g. TB_API_BASE_URL.
const EnvPrefix = "TB_"

// Session backends.
const (
	BackendFile     = "file"
	BackendPostgres = "postgres"
)

// Config is the full client configuration.
type Config struct {
	API     APIConfig     `koanf:"api"`
	Session SessionConfig `koanf:"session"`
	Log     LogConfig     `koanf:"log"`
	Output  string        `koanf:"output"`
}

// APIConfig points the client at a server.
type APIConfig struct {
	BaseURL string        `koanf:"base_url"`
	Timeout time.Duration `koanf:"timeout"`
}

// SessionConfig selects where the token pair is kept.
type SessionConfig struct {
	Backend    string `koanf:"backend"`
	Dir        string `koanf:"dir"`
	DSN        string `koanf:"dsn"`
	Passphrase string `koanf:"passphrase"`
}

// LogConfig controls the zap logger.
type LogConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// DefaultBaseURL is the API root used when nothing else is configured.
// Override at build time with -ldflags "-X github.com/and161185/travelblog/internal/config.DefaultBaseURL=...".
var DefaultBaseURL = "http://127.0.0.1:8080/api"

// DefaultDir returns ~/.travelblog, or ./.travelblog when the home directory is unknown.
func DefaultDir() string {
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return ".travelblog"
	}
	return filepath.Join(home, ".travelblog")
}

// DefaultPath returns the default config file path.
func DefaultPath() string { return filepath.Join(DefaultDir(), "config.yaml") }

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		API:     APIConfig{BaseURL: DefaultBaseURL, Timeout: 30 * time.Second},
		Session: SessionConfig{Backend: BackendFile, Dir: DefaultDir()},
		Log:     LogConfig{Level: "warn", Format: "console"},
		Output:  "table",
	}
}

type loadOpts struct {
	path     string
	explicit bool
	envFile  string
}

// Option configures Load.
type Option func(*loadOpts)

// WithFile reads path instead of the default location. A missing explicit file is an error.
func WithFile(path string) Option {
	return func(o *loadOpts) {
		if path != "" {
			o.path, o.explicit = path, true
		}
	}
}

// WithEnvFile loads a dotenv file into the process environment before reading TB_* variables.
// A missing file is ignored.
func WithEnvFile(path string) Option { return func(o *loadOpts) { o.envFile = path } }

// Load builds the configuration and validates it.
func Load(opts ...Option) (Config, error) {
	o := loadOpts{path: DefaultPath(), envFile: ".env"}
	for _, fn := range opts {
		fn(&o)
	}

	k := koanf.New(".")
	if _, err := os.Stat(o.path); err == nil {
		if err := k.Load(file.Provider(o.path), yaml.Parser()); err != nil {
			return Config{}, fmt.Errorf("load config file %s: %w", o.path, err)
		}
	} else if o.explicit {
		return Config{}, fmt.Errorf("config file %s: %w", o.path, err)
	}

	if o.envFile != "" {
		if _, err := os.Stat(o.envFile); err == nil {
			if err := godotenv.Load(o.envFile); err != nil {
				return Config{}, fmt.Errorf("load env file %s: %w", o.envFile, err)
			}
		}
	}
	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return Config{}, fmt.Errorf("load env: %w", err)
	}

	cfg := Default()
	if err := k.Unmarshal("", &cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	cfg.Session.Dir = expandHome(cfg.Session.Dir)
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// envKey maps TB_SECTION_SOME_KEY to section.some_key: the first underscore separates the
// section, the rest belong to the key.
func envKey(s string) string {
	s = strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	return strings.Replace(s, "_", ".", 1)
}

func expandHome(p string) string {
	if p == "~" || strings.HasPrefix(p, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, strings.TrimPrefix(p, "~"))
		}
	}
	return p
}

// Validate checks values that would otherwise fail late.
func (c Config) Validate() error {
	var problems []error
	u, err := url.Parse(c.API.BaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		problems = append(problems, fmt.Errorf("api.base_url %q: must be an absolute http(s) URL", c.API.BaseURL))
	}
	if c.API.Timeout < 0 {
		problems = append(problems, errors.New("api.timeout must not be negative"))
	}
	switch c.Session.Backend {
	case BackendFile:
		if c.Session.Dir == "" {
			problems = append(problems, errors.New("session.dir is required for the file backend"))
		}
	case BackendPostgres:
		if c.Session.DSN == "" {
			problems = append(problems, errors.New("session.dsn is required for the postgres backend"))
		}
	default:
		problems = append(problems, fmt.Errorf("session.backend %q: want file or postgres", c.Session.Backend))
	}
	switch c.Output {
	case "table", "json", "yaml":
	default:
		problems = append(problems, fmt.Errorf("output %q: want table, json or yaml", c.Output))
	}
	switch c.Log.Format {
	case "console", "json":
	default:
		problems = append(problems, fmt.Errorf("log.format %q: want console or json", c.Log.Format))
	}
	return errors.Join(problems...)
}
