// Package config loads wasmplug settings from YAML with environment
// overrides.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/wippyai/wasm-plugins/compiler"
	"github.com/wippyai/wasm-plugins/errors"
	"github.com/wippyai/wasm-plugins/source"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "WASMPLUG_"

// Config holds all wasmplug settings.
type Config struct {
	Compiler CompilerConfig `yaml:"compiler"`
	Loader   LoaderConfig   `yaml:"loader"`
	Logging  LoggingConfig  `yaml:"logging"`
	Metrics  MetricsConfig  `yaml:"metrics"`
}

// CompilerConfig configures source gathering and the compilation session.
type CompilerConfig struct {
	SourceSuffix string `yaml:"source_suffix"`
	BusyPolicy   string `yaml:"busy_policy"`
	Verbose      bool   `yaml:"verbose"`
}

// LoaderConfig configures artifact loading and scanning.
type LoaderConfig struct {
	// MemoryLimitPages caps guest memory in 64 KiB pages; 0 keeps the
	// runtime default.
	MemoryLimitPages uint32 `yaml:"memory_limit_pages"`
	// ScanConcurrency bounds parallel loads during a scan; 0 means
	// GOMAXPROCS.
	ScanConcurrency int `yaml:"scan_concurrency"`
}

type LoggingConfig struct {
	Level       string `yaml:"level"`
	Development bool   `yaml:"development"`
}

type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Compiler: CompilerConfig{
			SourceSuffix: source.DefaultSuffix,
			BusyPolicy:   compiler.BusyQueue.String(),
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load reads path over the defaults and applies environment overrides. A
// missing file yields the defaults; an empty path skips the file.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case os.IsNotExist(err):
		case err != nil:
			return nil, errors.Wrap(errors.PhaseConfig, errors.KindInvalidInput, err, "read config")
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, errors.Wrap(errors.PhaseConfig, errors.KindInvalidData, err, "parse "+path)
			}
		}
	}

	if err := cfg.applyEnvOverrides(os.LookupEnv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes the configuration as YAML.
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

func (c *Config) applyEnvOverrides(lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(EnvPrefix + key); ok && v != "" {
			*dst = v
		}
	}
	boolean := func(key string, dst *bool) error {
		v, ok := lookup(EnvPrefix + key)
		if !ok || v == "" {
			return nil
		}
		b, err := strconv.ParseBool(v)
		if err != nil {
			return envError(key, err)
		}
		*dst = b
		return nil
	}

	str("SOURCE_SUFFIX", &c.Compiler.SourceSuffix)
	str("BUSY_POLICY", &c.Compiler.BusyPolicy)
	str("LOG_LEVEL", &c.Logging.Level)
	if err := boolean("VERBOSE", &c.Compiler.Verbose); err != nil {
		return err
	}
	if err := boolean("LOG_DEVELOPMENT", &c.Logging.Development); err != nil {
		return err
	}
	if err := boolean("METRICS", &c.Metrics.Enabled); err != nil {
		return err
	}
	if v, ok := lookup(EnvPrefix + "MEMORY_LIMIT_PAGES"); ok && v != "" {
		n, err := strconv.ParseUint(v, 10, 32)
		if err != nil {
			return envError("MEMORY_LIMIT_PAGES", err)
		}
		c.Loader.MemoryLimitPages = uint32(n)
	}
	if v, ok := lookup(EnvPrefix + "SCAN_CONCURRENCY"); ok && v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return envError("SCAN_CONCURRENCY", err)
		}
		c.Loader.ScanConcurrency = n
	}
	return nil
}

func envError(key string, err error) error {
	return errors.New(errors.PhaseConfig, errors.KindInvalidInput).
		Name(EnvPrefix + key).Cause(err).Detail("invalid environment override").Build()
}

// Validate checks values that cannot be fixed up silently.
func (c *Config) Validate() error {
	if !strings.HasPrefix(c.Compiler.SourceSuffix, ".") {
		return errors.InvalidInput(errors.PhaseConfig,
			fmt.Sprintf("source_suffix %q must start with a dot", c.Compiler.SourceSuffix))
	}
	if _, err := compiler.ParseBusyPolicy(c.Compiler.BusyPolicy); err != nil {
		return errors.Wrap(errors.PhaseConfig, errors.KindInvalidInput, err, "busy_policy")
	}
	if c.Loader.MemoryLimitPages > 65536 {
		return errors.InvalidInput(errors.PhaseConfig, "memory_limit_pages exceeds 65536")
	}
	if c.Loader.ScanConcurrency < 0 {
		return errors.InvalidInput(errors.PhaseConfig, "scan_concurrency must not be negative")
	}
	if _, err := zap.ParseAtomicLevel(c.Logging.Level); err != nil {
		return errors.Wrap(errors.PhaseConfig, errors.KindInvalidInput, err, "logging.level")
	}
	return nil
}

// Busy returns the parsed busy policy. Call Validate first.
func (c *Config) Busy() compiler.BusyPolicy {
	p, _ := compiler.ParseBusyPolicy(c.Compiler.BusyPolicy)
	return p
}

// ZapConfig builds the zap configuration for the logging section.
func (c *Config) ZapConfig() zap.Config {
	zc := zap.NewProductionConfig()
	if c.Logging.Development {
		zc = zap.NewDevelopmentConfig()
	}
	if lvl, err := zap.ParseAtomicLevel(c.Logging.Level); err == nil {
		zc.Level = lvl
	}
	return zc
}
