// Package config holds the console's own configuration, loaded from a
// YAML file. Run parameters live in types.RunConfig; this covers the
// client-side knobs around them.
package config

import (
	"encoding/json"
	"os"

	"github.com/go-playground/validator/v10"
	"github.com/invopop/jsonschema"
	"github.com/rxtech-lab/argo-console/internal/types"
	"github.com/rxtech-lab/argo-console/pkg/errors"
	"gopkg.in/yaml.v3"
)

// ServerConfig locates the backtest server.
type ServerConfig struct {
	BaseURL        string `yaml:"base_url" json:"base_url" jsonschema:"title=Base URL,description=HTTP base URL of the backtest server" validate:"required,url"`
	TimeoutSeconds int    `yaml:"timeout_seconds" json:"timeout_seconds" jsonschema:"title=Timeout,description=Request timeout in seconds" validate:"gte=0"`
}

// ChartConfig controls the chart baseline fetch.
type ChartConfig struct {
	Lookback  int    `yaml:"lookback" json:"lookback" jsonschema:"title=Lookback,description=Number of bars to request" validate:"gte=0"`
	Timeframe string `yaml:"timeframe" json:"timeframe" jsonschema:"title=Timeframe,description=Chart timeframe such as D or 15m" validate:"required"`
}

// LogConfig controls the server log tail.
type LogConfig struct {
	TailCapacity int `yaml:"tail_capacity" json:"tail_capacity" jsonschema:"title=Tail Capacity,description=Maximum retained log lines" validate:"gte=0"`
}

// Config is the console configuration file.
type Config struct {
	Server ServerConfig    `yaml:"server" json:"server"`
	Chart  ChartConfig     `yaml:"chart" json:"chart"`
	Log    LogConfig       `yaml:"log" json:"log"`
	Run    types.RunConfig `yaml:"run" json:"run"`
	// ExportDir is where log exports are written.
	ExportDir string `yaml:"export_dir" json:"export_dir" jsonschema:"title=Export Directory,description=Directory for exported files"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		Server: ServerConfig{
			BaseURL:        "http://localhost:8000",
			TimeoutSeconds: 30,
		},
		Chart: ChartConfig{
			Lookback:  300,
			Timeframe: "D",
		},
		Log: LogConfig{
			TailCapacity: 500,
		},
		ExportDir: ".",
	}
}

// Load reads and validates a configuration file. Fields missing from the
// file keep their defaults; the run section stays zero-valued until the
// user fills it in, so it is only validated when a run starts.
func Load(path string) (Config, error) {
	cfg := Default()

	raw, err := os.ReadFile(path)
	if err != nil {
		return Config{}, errors.Wrapf(errors.ErrCodeInvalidConfiguration, err, "failed to read config file %s", path)
	}

	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return Config{}, errors.Wrapf(errors.ErrCodeInvalidConfiguration, err, "failed to parse config file %s", path)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// Validate validates everything except the run section.
func (c *Config) Validate() error {
	validate := validator.New()

	if err := validate.Struct(c.Server); err != nil {
		return errors.Wrap(errors.ErrCodeInvalidConfiguration, "invalid server config", err)
	}

	if err := validate.Struct(c.Chart); err != nil {
		return errors.Wrap(errors.ErrCodeInvalidConfiguration, "invalid chart config", err)
	}

	if err := validate.Struct(c.Log); err != nil {
		return errors.Wrap(errors.ErrCodeInvalidConfiguration, "invalid log config", err)
	}

	return nil
}

// GenerateSchemaJSON generates the JSON schema for the configuration
// file, used by editors for completion and validation.
func (c *Config) GenerateSchemaJSON() (string, error) {
	schema := jsonschema.Reflect(c)

	schemaJSON, err := json.MarshalIndent(schema, "", "  ")
	if err != nil {
		return "", errors.Wrap(errors.ErrCodeInvalidConfiguration, "failed to marshal config schema", err)
	}

	return string(schemaJSON), nil
}
