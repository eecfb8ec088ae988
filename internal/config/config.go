// Package config loads recordtree settings from flags, the environment,
// and an optional recordtree.yaml file, in that order of precedence.
package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	DefaultEnvPrefix  = "RECORDTREE"
	DefaultConfigName = "recordtree"
	DefaultRoot       = ".recordtree"
	DefaultBackend    = "sqlite"
	DefaultMaxRetries = 3
)

// Backends lists the accepted storage backends.
var Backends = []string{"sqlite", "badger", "memory"}

var DefaultConfig = Config{
	Root:       DefaultRoot,
	Backend:    DefaultBackend,
	Author:     Author{Name: "recordtree"},
	MaxRetries: DefaultMaxRetries,
	LogLevel:   slog.LevelInfo,
}

// Author is recorded on every commit.
type Author struct {
	Name  string `json:"name,omitempty"  mapstructure:"name"`
	Email string `json:"email,omitempty" mapstructure:"email"`
}

// Config holds repository and process settings.
type Config struct {
	Root            string        `json:"root,omitempty"             mapstructure:"root"`
	Backend         string        `json:"backend,omitempty"          mapstructure:"backend"`
	Author          Author        `json:"author"                     mapstructure:"author"`
	MaxRetries      int           `json:"max_retries"                mapstructure:"max_retries"`
	WriteTimeout    time.Duration `json:"write_timeout,omitempty"    mapstructure:"write_timeout"`
	ReadConcurrency int           `json:"read_concurrency,omitempty" mapstructure:"read_concurrency"`
	Placeholders    bool          `json:"placeholders"               mapstructure:"placeholders"`
	SchemaFile      string        `json:"schema_file,omitempty"      mapstructure:"schema_file"`
	LogLevel        slog.Level    `json:"log_level"                  mapstructure:"log_level"`

	// File is the configuration file that was read, if any.
	File string `json:"-" mapstructure:"-"`
}

// flagKeys maps flag names to configuration keys.
var flagKeys = map[string]string{
	"root":             "root",
	"backend":          "backend",
	"author":           "author.name",
	"email":            "author.email",
	"max-retries":      "max_retries",
	"write-timeout":    "write_timeout",
	"read-concurrency": "read_concurrency",
	"placeholders":     "placeholders",
	"schema":           "schema_file",
	"log-level":        "log_level",
}

// Load resolves the configuration. flags may be nil; only flags that were
// defined on the set are bound. A "config" flag, when present and set,
// names the configuration file explicitly; otherwise recordtree.yaml is
// looked up in the working directory and then in the root.
func Load(flags *pflag.FlagSet) (*Config, error) {
	v := viper.NewWithOptions(
		viper.KeyDelimiter("."),
		viper.EnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_")),
	)
	v.SetEnvPrefix(DefaultEnvPrefix)
	v.AutomaticEnv()

	v.SetDefault("root", DefaultConfig.Root)
	v.SetDefault("backend", DefaultConfig.Backend)
	v.SetDefault("author.name", DefaultConfig.Author.Name)
	v.SetDefault("author.email", "")
	v.SetDefault("max_retries", DefaultConfig.MaxRetries)
	v.SetDefault("write_timeout", "0s")
	v.SetDefault("read_concurrency", 0)
	v.SetDefault("placeholders", false)
	v.SetDefault("schema_file", "")
	v.SetDefault("log_level", DefaultConfig.LogLevel.String())

	if flags != nil {
		for name, key := range flagKeys {
			if f := flags.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("bind flag %q: %w", name, err)
				}
			}
		}
	}

	if err := readFile(v, flags); err != nil {
		return nil, err
	}

	decodeHooks := mapstructure.ComposeDecodeHookFunc(
		mapstructure.TextUnmarshallerHookFunc(),
		mapstructure.StringToTimeDurationHookFunc(),
	)

	cfg := &Config{}
	if err := v.Unmarshal(cfg, viper.DecodeHook(decodeHooks)); err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	cfg.File = v.ConfigFileUsed()
	return cfg, nil
}

func readFile(v *viper.Viper, flags *pflag.FlagSet) error {
	explicit := ""
	if flags != nil {
		if f := flags.Lookup("config"); f != nil && f.Changed {
			explicit = f.Value.String()
		}
	}
	if explicit == "" {
		explicit = os.Getenv(DefaultEnvPrefix + "_CONFIG")
	}

	if explicit != "" {
		v.SetConfigFile(explicit)
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("read config %s: %w", explicit, err)
		}
		return nil
	}

	v.SetConfigName(DefaultConfigName)
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	if root := v.GetString("root"); root != "" {
		v.AddConfigPath(root)
	}
	err := v.ReadInConfig()
	var notFound viper.ConfigFileNotFoundError
	if err != nil && !errors.As(err, &notFound) {
		return fmt.Errorf("read config: %w", err)
	}
	return nil
}

// Validate reports every invalid setting.
func (c *Config) Validate() error {
	var problems []error
	if !slices.Contains(Backends, c.Backend) {
		problems = append(problems, fmt.Errorf("backend %q: must be one of %v", c.Backend, Backends))
	}
	if c.Root == "" && c.Backend != "memory" {
		problems = append(problems, errors.New("root: required for the "+c.Backend+" backend"))
	}
	if c.MaxRetries < 0 {
		problems = append(problems, fmt.Errorf("max_retries: must not be negative, got %d", c.MaxRetries))
	}
	if c.WriteTimeout < 0 {
		problems = append(problems, fmt.Errorf("write_timeout: must not be negative, got %s", c.WriteTimeout))
	}
	if c.ReadConcurrency < 0 {
		problems = append(problems, fmt.Errorf("read_concurrency: must not be negative, got %d", c.ReadConcurrency))
	}
	if c.Author.Name == "" {
		problems = append(problems, errors.New("author.name: required"))
	}
	if len(problems) > 0 {
		return fmt.Errorf("invalid configuration: %w", errors.Join(problems...))
	}
	return nil
}

// Logger returns a text logger at the configured level.
func (c *Config) Logger(w io.Writer) *slog.Logger {
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: c.LogLevel}))
}
