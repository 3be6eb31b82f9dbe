package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// FileName is the workspace configuration file.
const FileName = "proforma.yaml"

// EnvPrefix prefixes environment overrides, e.g. PROFORMA_ORACLE_TIMEOUT.
const EnvPrefix = "PROFORMA"

// Config represents the top-level proforma.yaml configuration.
type Config struct {
	Filer   FilerConfig   `yaml:"filer"`
	Oracle  OracleConfig  `yaml:"oracle"`
	Engine  EngineConfig  `yaml:"engine"`
	Batch   BatchConfig   `yaml:"batch"`
	Log     LogConfig     `yaml:"log"`
	Metrics MetricsConfig `yaml:"metrics"`
	Git     GitConfig     `yaml:"git"`
}

// FilerConfig identifies the filer a workspace tracks.
type FilerConfig struct {
	Name string `yaml:"name"`
	CIK  string `yaml:"cik"`
}

// OracleConfig selects the correction oracle. An empty Command and
// ReplayFile disable correction.
type OracleConfig struct {
	Command    []string      `yaml:"command,omitempty"`
	Timeout    time.Duration `yaml:"timeout" validate:"gte=0"`
	ReplayFile string        `yaml:"replay_file,omitempty" split_words:"true"`
	Breaker    BreakerConfig `yaml:"breaker"`
}

// BreakerConfig tunes the circuit breaker around the oracle.
type BreakerConfig struct {
	MaxFailures uint32        `yaml:"max_failures" split_words:"true"`
	OpenTimeout time.Duration `yaml:"open_timeout" split_words:"true" validate:"gte=0"`
}

// EngineConfig bounds input documents.
type EngineConfig struct {
	MaxDepth int `yaml:"max_depth" split_words:"true" validate:"gte=0"`
}

// BatchConfig controls concurrent filings in `proforma batch`.
type BatchConfig struct {
	Concurrency int `yaml:"concurrency" validate:"gte=0"`
}

// LogConfig controls the process logger.
type LogConfig struct {
	Level  string `yaml:"level" validate:"omitempty,oneof=trace debug info warn error"`
	Format string `yaml:"format" validate:"omitempty,oneof=console json"`
}

// MetricsConfig controls the Prometheus textfile export.
type MetricsConfig struct {
	Textfile string `yaml:"textfile,omitempty"`
}

// GitConfig controls git integration.
type GitConfig struct {
	AutoCommit  bool   `yaml:"auto_commit" split_words:"true"`
	AuthorName  string `yaml:"author_name" split_words:"true"`
	AuthorEmail string `yaml:"author_email" split_words:"true"`
}

// Load reads a proforma.yaml file from disk. Keys missing from the file
// keep their defaults; environment overrides are applied last.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	cfg := Default("", "")
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := ApplyEnv(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadOrDefault is Load, falling back to defaults plus environment when
// path does not exist.
func LoadOrDefault(path string) (*Config, error) {
	cfg, err := Load(path)
	if err == nil || !errors.Is(err, os.ErrNotExist) {
		return cfg, err
	}
	cfg = Default("", "")
	if err := ApplyEnv(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyEnv overrides cfg from PROFORMA_* variables. Unset variables leave
// fields alone.
func ApplyEnv(cfg *Config) error {
	if err := envconfig.Process(EnvPrefix, cfg); err != nil {
		return fmt.Errorf("reading environment: %w", err)
	}
	return nil
}

// Validate checks value ranges and enumerations.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// Save writes a Config to a YAML file.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	return nil
}

// Default returns a Config with sensible defaults for a new workspace.
func Default(filerName, cik string) *Config {
	return &Config{
		Filer: FilerConfig{
			Name: filerName,
			CIK:  cik,
		},
		Oracle: OracleConfig{
			Timeout: 2 * time.Minute,
			Breaker: BreakerConfig{
				MaxFailures: 3,
				OpenTimeout: 60 * time.Second,
			},
		},
		Engine: EngineConfig{MaxDepth: 32},
		Batch:  BatchConfig{Concurrency: 4},
		Log: LogConfig{
			Level:  "info",
			Format: "console",
		},
		Git: GitConfig{
			AutoCommit:  true,
			AuthorName:  "Proforma",
			AuthorEmail: "proforma@localhost",
		},
	}
}
