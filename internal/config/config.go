// Package config loads traverse settings from an optional YAML file and
// TRAVERSE_* environment variables.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/abhisek/traverse/internal/gateway"
	"github.com/abhisek/traverse/internal/llm"
	"github.com/abhisek/traverse/internal/lock"
	"github.com/abhisek/traverse/internal/observe"
	"github.com/abhisek/traverse/internal/progress"
	"github.com/abhisek/traverse/internal/remediation"
)

// Config is the complete application configuration.
type Config struct {
	// DBPath is the SQLite file. Empty resolves to the default data path.
	DBPath string `yaml:"db_path"`

	// Addr is the HTTP listen address for serve. Default: ":8080".
	Addr string `yaml:"addr"`

	Log         LogConfig             `yaml:"log"`
	Attempts    AttemptsConfig        `yaml:"attempts"`
	Remediation remediation.Config    `yaml:"remediation"`
	Gateway     gateway.Config        `yaml:"gateway"`
	Lock        lock.Config           `yaml:"lock"`
	Redis       RedisConfig           `yaml:"redis"`
	Tracing     observe.TracingConfig `yaml:"tracing"`
	LLM         llm.Config            `yaml:"llm"`
}

// LogConfig selects the zap preset and level.
type LogConfig struct {
	Mode  string `yaml:"mode"` // "dev" or "prod"
	Level string `yaml:"level"`
}

// AttemptsConfig controls the progress state machine.
type AttemptsConfig struct {
	// Ceiling is the number of failed attempts that blocks a node. Default: 3.
	Ceiling int `yaml:"ceiling"`
}

// RedisConfig is used when Lock.Backend is "redis".
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Addr:        ":8080",
		Log:         LogConfig{Mode: "dev", Level: "info"},
		Attempts:    AttemptsConfig{Ceiling: progress.DefaultCeiling},
		Remediation: remediation.DefaultConfig(),
		Gateway:     gateway.DefaultConfig(),
		Lock:        lock.DefaultConfig(),
		Tracing:     observe.TracingConfig{ServiceName: "traverse", SampleRatio: 1},
		LLM:         llm.DefaultConfig(),
	}
}

// DefaultPath returns $XDG_CONFIG_HOME/traverse/config.yaml, falling back to
// ~/.config when XDG_CONFIG_HOME is unset.
func DefaultPath() (string, error) {
	dir := os.Getenv("XDG_CONFIG_HOME")
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home dir: %w", err)
		}
		dir = filepath.Join(home, ".config")
	}
	return filepath.Join(dir, "traverse", "config.yaml"), nil
}

// Load builds a Config from defaults, the YAML file at path and the
// environment, in that order of increasing priority. An empty path reads the
// default config file if one exists; an explicit path must exist.
func Load(path string) (Config, error) {
	cfg := DefaultConfig()

	explicit := path != ""
	if !explicit {
		p, err := DefaultPath()
		if err == nil {
			path = p
		}
	}
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := decode(data, &cfg); err != nil {
				return Config{}, fmt.Errorf("parse %s: %w", path, err)
			}
		case errors.Is(err, os.ErrNotExist) && !explicit:
		default:
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	if err := cfg.ApplyEnv(); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Parse decodes YAML over the defaults without consulting the environment.
func Parse(data []byte) (Config, error) {
	cfg := DefaultConfig()
	if err := decode(data, &cfg); err != nil {
		return Config{}, err
	}
	return cfg, cfg.Validate()
}

func decode(data []byte, cfg *Config) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// ApplyEnv overrides fields of cfg with any TRAVERSE_* variables that are
// set. When no provider was chosen explicitly and the configured one has no
// key, the first vendor API key found in the environment selects the provider.
func (c *Config) ApplyEnv() error {
	if v := os.Getenv("TRAVERSE_DB"); v != "" {
		c.DBPath = v
	}
	if v := os.Getenv("TRAVERSE_ADDR"); v != "" {
		c.Addr = v
	}
	if v := os.Getenv("TRAVERSE_LOG_MODE"); v != "" {
		c.Log.Mode = v
	}
	if v := os.Getenv("TRAVERSE_LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
	if err := envInt("TRAVERSE_ATTEMPT_CEILING", &c.Attempts.Ceiling); err != nil {
		return err
	}
	if err := envInt("TRAVERSE_REMEDIATION_MAX_PER_NODE", &c.Remediation.MaxPerNode); err != nil {
		return err
	}
	if err := envDuration("TRAVERSE_GATEWAY_TIMEOUT", &c.Gateway.Timeout); err != nil {
		return err
	}
	if v := os.Getenv("TRAVERSE_LOCK_BACKEND"); v != "" {
		c.Lock.Backend = v
	}
	if err := envDuration("TRAVERSE_LOCK_WAIT", &c.Lock.Wait); err != nil {
		return err
	}
	if v := os.Getenv("TRAVERSE_REDIS_ADDR"); v != "" {
		c.Redis.Addr = v
	}
	if v := os.Getenv("TRAVERSE_REDIS_PASSWORD"); v != "" {
		c.Redis.Password = v
	}
	if err := envInt("TRAVERSE_REDIS_DB", &c.Redis.DB); err != nil {
		return err
	}
	if v := os.Getenv("TRAVERSE_TRACING"); v != "" {
		on, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("TRAVERSE_TRACING: %w", err)
		}
		c.Tracing.Enabled = on
	}

	c.LLM.ApplyEnv()
	if os.Getenv("TRAVERSE_LLM_PROVIDER") == "" && c.LLM.Validate() != nil {
		if found, ok := llm.DiscoverConfig(); ok {
			c.LLM.Provider = found.Provider
			c.LLM.Gemini.APIKey = found.Gemini.APIKey
			c.LLM.OpenAI.APIKey = found.OpenAI.APIKey
			c.LLM.Anthropic.APIKey = found.Anthropic.APIKey
			c.LLM.OpenRouter.APIKey = found.OpenRouter.APIKey
		}
	}
	return nil
}

// Validate checks the non-LLM settings. LLM settings are checked by
// llm.Config.Validate when a provider is built.
func (c Config) Validate() error {
	if c.Attempts.Ceiling < 1 {
		return fmt.Errorf("attempts.ceiling must be at least 1, got %d", c.Attempts.Ceiling)
	}
	if c.Remediation.MaxPerNode < 0 {
		return fmt.Errorf("remediation.max_per_node must not be negative")
	}
	if c.Gateway.Timeout <= 0 {
		return fmt.Errorf("gateway.timeout must be positive")
	}
	switch c.Lock.Backend {
	case "memory":
	case "redis":
		if c.Redis.Addr == "" {
			return fmt.Errorf("redis.addr is required for the redis lock backend")
		}
	default:
		return fmt.Errorf("unknown lock backend: %q", c.Lock.Backend)
	}
	if c.Tracing.SampleRatio < 0 || c.Tracing.SampleRatio > 1 {
		return fmt.Errorf("tracing.sample_ratio must be within [0, 1]")
	}
	return nil
}

func envInt(name string, dst *int) error {
	v := os.Getenv(name)
	if v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	*dst = n
	return nil
}

func envDuration(name string, dst *time.Duration) error {
	v := os.Getenv(name)
	if v == "" {
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	*dst = d
	return nil
}
