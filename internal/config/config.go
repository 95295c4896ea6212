// Package config loads segmentctl configuration from defaults, a YAML file,
// SEGMENT_ environment variables and command line flags.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/snowflake-labs/segment"
	"github.com/snowflake-labs/segment/catalog"
	"github.com/spf13/pflag"
)

// EnvPrefix prefixes environment variables.  Nested keys are separated with a
// double underscore, eg. SEGMENT_CATALOG__DSN sets catalog.dsn.
const EnvPrefix = "SEGMENT_"

// DefaultFiles are searched for in the working directory when no config file is given.
var DefaultFiles = []string{"segmentctl.yaml", "segmentctl.yml"}

// flagKeys maps command line flags to config keys.
var flagKeys = map[string]string{
	"driver":       "catalog.driver",
	"dsn":          "catalog.dsn",
	"snapshot-dir": "catalog.snapshot_dir",
	"relation":     "executor.relation",
	"log-level":    "log.level",
	"log-format":   "log.format",
}

type Config struct {
	Catalog  CatalogConfig  `koanf:"catalog"`
	Executor ExecutorConfig `koanf:"executor"`
	Log      LogConfig      `koanf:"log"`

	// File is the config file which was loaded, if any.
	File string `koanf:"-"`
}

type CatalogConfig struct {
	Driver            string           `koanf:"driver"`
	DSN               string           `koanf:"dsn"`
	Database          string           `koanf:"database"`
	DescriptionColumn string           `koanf:"description_column"`
	Placeholder       string           `koanf:"placeholder"`
	IdentifierCase    string           `koanf:"identifier_case"`
	SnapshotDir       string           `koanf:"snapshot_dir"`
	Timeout           time.Duration    `koanf:"timeout"`
	Concurrency       int              `koanf:"concurrency"`
	Sources           []catalog.Source `koanf:"sources"`
}

type ExecutorConfig struct {
	// Relation is the table or view segments are counted and sampled from.
	Relation       string `koanf:"relation"`
	QualifyColumns bool   `koanf:"qualify_columns"`
	CoerceValues   bool   `koanf:"coerce_values"`
	SampleLimit    int    `koanf:"sample_limit"`
	// LikeEscape is the single character escaping LIKE wildcards.  Empty uses a
	// backslash;  Snowflake needs another character, eg. "!".
	LikeEscape string `koanf:"like_escape"`
}

type LogConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

func defaults() map[string]any {
	return map[string]any{
		"catalog.driver":             "pgx",
		"catalog.description_column": "comment",
		"catalog.placeholder":        "dollar",
		"catalog.identifier_case":    "upper",
		"catalog.snapshot_dir":       ".segment/catalog",
		"catalog.timeout":            "30s",
		"catalog.concurrency":        4,
		"executor.coerce_values":     true,
		"executor.sample_limit":      10,
		"log.level":                  "info",
		"log.format":                 "text",
	}
}

// Load loads configuration.  Precedence, highest first, is:  flags which were
// explicitly set, environment variables, the config file and defaults.  flags may
// be nil.
func Load(cfgFile string, flags *pflag.FlagSet) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(confmap.Provider(defaults(), "."), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	cfgFile = findConfigFile(cfgFile)
	if cfgFile != "" {
		if err := k.Load(file.Provider(cfgFile), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("error reading config file %s: %w", cfgFile, err)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("failed to load env vars: %w", err)
	}

	if flags != nil {
		if err := k.Load(posflag.ProviderWithFlag(flags, ".", k, func(f *pflag.Flag) (string, interface{}) {
			if !f.Changed {
				return "", nil
			}
			key, ok := flagKeys[f.Name]
			if !ok {
				return "", nil
			}
			return key, posflag.FlagVal(flags, f)
		}), nil); err != nil {
			return nil, fmt.Errorf("failed to load flags: %w", err)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}
	cfg.File = cfgFile

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// envKey maps SEGMENT_CATALOG__DSN to catalog.dsn.
func envKey(s string) string {
	s = strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	return strings.ReplaceAll(s, "__", ".")
}

func findConfigFile(explicit string) string {
	if explicit != "" {
		return explicit
	}
	for _, name := range DefaultFiles {
		if _, err := os.Stat(name); err == nil {
			return name
		}
	}
	return ""
}

// Validate checks that every enumerated value is known.
func (c *Config) Validate() error {
	switch c.Catalog.Driver {
	case "pgx", "sqlite":
	default:
		return fmt.Errorf("unknown catalog driver %q: expected pgx or sqlite", c.Catalog.Driver)
	}
	if _, err := segment.ParsePlaceholder(c.Catalog.Placeholder); err != nil {
		return err
	}
	if c.Catalog.Concurrency < 1 {
		return fmt.Errorf("catalog concurrency must be at least 1, got %d", c.Catalog.Concurrency)
	}
	if c.Catalog.Timeout <= 0 {
		return fmt.Errorf("catalog timeout must be positive, got %s", c.Catalog.Timeout)
	}
	for n, s := range c.Catalog.Sources {
		if s.Category == "" {
			return fmt.Errorf("catalog source %d has no category", n)
		}
		if _, err := catalog.ParseTableName(s.Table); err != nil {
			return fmt.Errorf("catalog source %d: %w", n, err)
		}
	}
	if c.Executor.SampleLimit < 1 {
		return fmt.Errorf("sample limit must be at least 1, got %d", c.Executor.SampleLimit)
	}
	if _, err := c.Executor.likeEscape(); err != nil {
		return err
	}
	if _, err := c.Log.SlogLevel(); err != nil {
		return err
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("unknown log format %q: expected text or json", c.Log.Format)
	}
	return nil
}

// Dialect returns the SQL dialect used to render segments.
func (c *Config) Dialect() segment.Dialect {
	p, _ := segment.ParsePlaceholder(c.Catalog.Placeholder)
	esc, _ := c.Executor.likeEscape()
	return segment.Dialect{
		Placeholder:    p,
		QualifyColumns: c.Executor.QualifyColumns,
		CoerceValues:   c.Executor.CoerceValues,
		LikeEscape:     esc,
	}
}

// likeEscape returns the configured escape character, or zero for the default.
func (e ExecutorConfig) likeEscape() (rune, error) {
	if e.LikeEscape == "" {
		return 0, nil
	}
	runes := []rune(e.LikeEscape)
	if len(runes) != 1 || strings.ContainsRune(`'%_`, runes[0]) {
		return 0, fmt.Errorf("invalid like escape %q: expected a single character other than ', %% or _", e.LikeEscape)
	}
	return runes[0], nil
}

// SQLOpts returns the catalog provider options.
func (c *Config) SQLOpts(logger *slog.Logger) catalog.SQLOpts {
	p, _ := segment.ParsePlaceholder(c.Catalog.Placeholder)
	return catalog.SQLOpts{
		Database:          c.Catalog.Database,
		DescriptionColumn: c.Catalog.DescriptionColumn,
		Placeholder:       p,
		IdentifierCase:    c.Catalog.IdentifierCase,
		Concurrency:       c.Catalog.Concurrency,
		Logger:            logger,
	}
}

// SlogLevel parses the configured log level.
func (l LogConfig) SlogLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(l.Level)); err != nil {
		return 0, fmt.Errorf("unknown log level %q", l.Level)
	}
	return level, nil
}
