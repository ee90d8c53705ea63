package config

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/mabhi256/dumpdiag/internal/diagnosis"
)

const envPrefix = "DUMPDIAG_"

var OutputFormats = []string{"cli", "json", "html", "tui"}

// Config holds all configuration for the CLI and the engine
type Config struct {
	// LogLevel is the logging level (debug, info, warn, error)
	LogLevel string `yaml:"log_level" toml:"log_level"`

	// Output is the default report format for analyze
	Output string `yaml:"output" toml:"output"`

	// Parallel runs the independent analyzers concurrently
	Parallel bool `yaml:"parallel" toml:"parallel"`

	// CacheSize is the number of diagnoses memoized by snapshot digest
	CacheSize int `yaml:"cache_size" toml:"cache_size"`

	// MetricsOut is a Prometheus textfile written after each run
	MetricsOut string `yaml:"metrics_out" toml:"metrics_out"`

	Engine EngineConfig `yaml:"engine" toml:"engine"`
}

type EngineConfig struct {
	StackDepthThreshold      int      `yaml:"stack_depth_threshold" toml:"stack_depth_threshold"`
	SuspiciousModulePatterns []string `yaml:"suspicious_module_patterns" toml:"suspicious_module_patterns"`
	OwnershipCycles          bool     `yaml:"ownership_cycles" toml:"ownership_cycles"`
}

// ConfigError represents a configuration validation error
type ConfigError struct {
	message string
}

// NewConfigError creates a new configuration error
func NewConfigError(message string) *ConfigError {
	return &ConfigError{message: message}
}

func (e *ConfigError) Error() string {
	return e.message
}

func Default() *Config {
	return &Config{
		LogLevel:  "info",
		Output:    "cli",
		CacheSize: 64,
		Engine: EngineConfig{
			StackDepthThreshold:      diagnosis.DefaultStackDepthThreshold,
			SuspiciousModulePatterns: slices.Clone(diagnosis.DefaultSuspiciousPatterns),
		},
	}
}

// Load builds a Config from defaults, the optional file at path, a .env file
// in the working directory and DUMPDIAG_* environment variables, in that
// order of increasing precedence.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		var err error
		switch strings.ToLower(filepath.Ext(path)) {
		case ".toml":
			err = loadTOML(path, cfg)
		case ".yaml", ".yml":
			err = loadYAML(path, cfg)
		default:
			err = fmt.Errorf("unsupported config extension %q (use .yaml, .yml or .toml)", filepath.Ext(path))
		}
		if err != nil {
			return nil, err
		}
	}

	// A missing .env is the common case
	_ = godotenv.Load()

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

func loadYAML(path string, cfg *Config) error {
	k := koanf.New(".")

	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		return fmt.Errorf("failed to load config from %q: %w", path, err)
	}

	if err := k.UnmarshalWithConf("", cfg, koanf.UnmarshalConf{Tag: "yaml"}); err != nil {
		return fmt.Errorf("failed to parse config from %q: %w", path, err)
	}

	// Slices are replaced wholesale rather than merged element-wise into the defaults
	if k.Exists("engine.suspicious_module_patterns") {
		cfg.Engine.SuspiciousModulePatterns = k.Strings("engine.suspicious_module_patterns")
	}

	return nil
}

func loadTOML(path string, cfg *Config) error {
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return fmt.Errorf("%s: failed to parse TOML: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() error {
	if v, ok := lookupEnv("LOG_LEVEL"); ok {
		c.LogLevel = v
	}
	if v, ok := lookupEnv("OUTPUT"); ok {
		c.Output = v
	}
	if v, ok := lookupEnv("METRICS_OUT"); ok {
		c.MetricsOut = v
	}
	if v, ok := lookupEnv("SUSPICIOUS_PATTERNS"); ok {
		c.Engine.SuspiciousModulePatterns = splitList(v)
	}

	var err error
	if c.Parallel, err = envBool("PARALLEL", c.Parallel); err != nil {
		return err
	}
	if c.Engine.OwnershipCycles, err = envBool("OWNERSHIP_CYCLES", c.Engine.OwnershipCycles); err != nil {
		return err
	}
	if c.CacheSize, err = envInt("CACHE_SIZE", c.CacheSize); err != nil {
		return err
	}
	if c.Engine.StackDepthThreshold, err = envInt("STACK_DEPTH_THRESHOLD", c.Engine.StackDepthThreshold); err != nil {
		return err
	}
	return nil
}

// Validate checks that the configuration is valid
func (c *Config) Validate() error {
	if !slices.Contains(OutputFormats, c.Output) {
		return NewConfigError(fmt.Sprintf("output must be one of %s, got %q", strings.Join(OutputFormats, ", "), c.Output))
	}

	if c.CacheSize < 0 {
		return NewConfigError("cache_size must not be negative")
	}

	if c.Engine.StackDepthThreshold < 1 {
		return NewConfigError("engine.stack_depth_threshold must be at least 1")
	}

	if len(c.Engine.SuspiciousModulePatterns) == 0 {
		return NewConfigError("engine.suspicious_module_patterns must not be empty")
	}

	for _, p := range c.Engine.SuspiciousModulePatterns {
		if strings.TrimSpace(p) == "" {
			return NewConfigError("engine.suspicious_module_patterns must not contain blank entries")
		}
	}

	return nil
}

// EngineOptions maps the configuration onto the diagnosis engine options.
func (c *Config) EngineOptions() diagnosis.Options {
	return diagnosis.Options{
		StackDepthThreshold: c.Engine.StackDepthThreshold,
		SuspiciousPatterns:  slices.Clone(c.Engine.SuspiciousModulePatterns),
		OwnershipCycles:     c.Engine.OwnershipCycles,
		Parallel:            c.Parallel,
		CacheSize:           c.CacheSize,
	}
}

func lookupEnv(key string) (string, bool) {
	v, ok := os.LookupEnv(envPrefix + key)
	if !ok || strings.TrimSpace(v) == "" {
		return "", false
	}
	return strings.TrimSpace(v), true
}

func envInt(key string, fallback int) (int, error) {
	v, ok := lookupEnv(key)
	if !ok {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, NewConfigError(fmt.Sprintf("%s%s must be an integer, got %q", envPrefix, key, v))
	}
	return n, nil
}

func envBool(key string, fallback bool) (bool, error) {
	v, ok := lookupEnv(key)
	if !ok {
		return fallback, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, NewConfigError(fmt.Sprintf("%s%s must be a boolean, got %q", envPrefix, key, v))
	}
	return b, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
