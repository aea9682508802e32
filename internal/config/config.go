// Package config loads stratum.yaml.
//
// The file is found by walking up from a starting directory. Relative paths
// in it resolve against the directory that holds it. Environment variables
// override file values; a .env file next to the config supplies variables
// the process environment leaves unset.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// FileName is the config file searched for by FindConfig.
const FileName = "stratum.yaml"

// DefaultDB is the database path used when neither the file nor the
// environment names one.
const DefaultDB = ".stratum/stratum.db"

// Environment overrides.
const (
	EnvDB       = "STRATUM_DB"
	EnvWorkers  = "STRATUM_WORKERS"
	EnvLogLevel = "STRATUM_LOG_LEVEL"
)

// Config is the parsed stratum.yaml.
type Config struct {
	// DB is the SQLite database path.
	DB string `yaml:"db,omitempty"`

	// Sources are the directories indexed by "stratum index" when no
	// arguments are given.
	Sources []string `yaml:"sources,omitempty"`

	// Metadata are the bundle files imported by "stratum import" when no
	// arguments are given.
	Metadata []string `yaml:"metadata,omitempty"`

	// Workers bounds parallel extraction. Zero means one per CPU.
	Workers int `yaml:"workers,omitempty"`

	// CacheSize is the number of decoded metadata entries kept in memory.
	// Zero means the engine default.
	CacheSize int `yaml:"cache_size,omitempty"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `yaml:"log_level,omitempty"`

	// Annotations enables decoding of annotations stored in metadata.
	Annotations bool `yaml:"annotations,omitempty"`

	// Scripts is the directory Risor scripts are loaded from.
	Scripts string `yaml:"scripts,omitempty"`

	// Dir is the directory relative paths resolve against: the one holding
	// the config file, or the starting directory when there is none.
	Dir string `yaml:"-"`

	// Path is the config file that was read, empty when none was found.
	Path string `yaml:"-"`
}

// Load finds and reads the config for dir, applies the environment and
// resolves relative paths. A missing config file is not an error: the
// defaults are used, rooted at dir.
func Load(dir string) (*Config, error) {
	path, err := FindConfig(dir)
	if err != nil {
		return nil, err
	}

	var cfg *Config
	if path != "" {
		cfg, err = LoadConfig(path)
		if err != nil {
			return nil, err
		}
	} else {
		abs, err := filepath.Abs(dir)
		if err != nil {
			return nil, fmt.Errorf("resolving directory: %w", err)
		}
		cfg = &Config{Dir: abs}
	}

	dotenv, err := readDotenv(filepath.Join(cfg.Dir, ".env"))
	if err != nil {
		return nil, err
	}
	getenv := func(key string) string {
		if v, ok := os.LookupEnv(key); ok {
			return v
		}
		return dotenv[key]
	}
	if err := cfg.ApplyEnv(getenv); err != nil {
		return nil, err
	}
	if cfg.DB == "" {
		cfg.DB = DefaultDB
	}
	cfg.resolvePaths()
	return cfg, nil
}

// LoadConfig reads and parses a stratum.yaml file.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}
	cfg, err := ParseConfig(data, path)
	if err != nil {
		return nil, err
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolving config path: %w", err)
	}
	cfg.Path = abs
	cfg.Dir = filepath.Dir(abs)
	return cfg, nil
}

// ParseConfig parses stratum.yaml content. The path is used only for error
// messages.
func ParseConfig(data []byte, path string) (*Config, error) {
	var cfg Config
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	if err := cfg.validate(path); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// FindConfig searches for stratum.yaml starting from dir and walking up to
// parent directories. Returns the empty string when there is none.
func FindConfig(dir string) (string, error) {
	dir, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("resolving directory: %w", err)
	}

	for {
		candidate := filepath.Join(dir, FileName)
		if _, err := os.Stat(candidate); err == nil {
			return candidate, nil
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return "", nil
		}
		dir = parent
	}
}

// ApplyEnv overrides file values with the STRATUM_* variables that getenv
// reports as non-empty.
func (c *Config) ApplyEnv(getenv func(string) string) error {
	if v := strings.TrimSpace(getenv(EnvDB)); v != "" {
		c.DB = v
	}
	if v := strings.TrimSpace(getenv(EnvWorkers)); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return fmt.Errorf("%s: invalid worker count %q", EnvWorkers, v)
		}
		c.Workers = n
	}
	if v := strings.TrimSpace(getenv(EnvLogLevel)); v != "" {
		if _, err := parseLevel(v); err != nil {
			return fmt.Errorf("%s: %w", EnvLogLevel, err)
		}
		c.LogLevel = v
	}
	return nil
}

// Level returns the configured slog level, Info when unset.
func (c *Config) Level() slog.Level {
	l, err := parseLevel(c.LogLevel)
	if err != nil {
		return slog.LevelInfo
	}
	return l
}

func parseLevel(s string) (slog.Level, error) {
	if s == "" {
		return slog.LevelInfo, nil
	}
	var l slog.Level
	if err := l.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo, fmt.Errorf("invalid log level %q", s)
	}
	return l, nil
}

func (c *Config) validate(path string) error {
	if c.Workers < 0 {
		return fmt.Errorf("%s: workers must not be negative", path)
	}
	if c.CacheSize < 0 {
		return fmt.Errorf("%s: cache_size must not be negative", path)
	}
	if _, err := parseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	return nil
}

func (c *Config) resolvePaths() {
	c.DB = c.resolve(c.DB)
	c.Scripts = c.resolve(c.Scripts)
	for i, p := range c.Sources {
		c.Sources[i] = c.resolve(p)
	}
	for i, p := range c.Metadata {
		c.Metadata[i] = c.resolve(p)
	}
}

func (c *Config) resolve(p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(c.Dir, p)
}

// readDotenv reads a .env file. A missing file yields an empty map.
func readDotenv(path string) (map[string]string, error) {
	env, err := godotenv.Read(path)
	if errors.Is(err, fs.ErrNotExist) {
		return map[string]string{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return env, nil
}
