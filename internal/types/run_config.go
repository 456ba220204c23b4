package types

import (
	"encoding/json"

	"github.com/go-playground/validator/v10"
	"github.com/invopop/jsonschema"
	"github.com/rxtech-lab/argo-console/pkg/errors"
)

// RunConfig describes one backtest run. It is sent as the first message of a
// streaming session and is immutable for the session's lifetime.
type RunConfig struct {
	Symbol      string `yaml:"symbol" json:"symbol" jsonschema:"title=Symbol,description=Instrument code to backtest" validate:"required"`
	StartDate   string `yaml:"start" json:"start" jsonschema:"title=Start Date,description=Backtest start date in YYYYMMDD format" validate:"required,len=8,number"`
	EndDate     string `yaml:"end" json:"end" jsonschema:"title=End Date,description=Backtest end date in YYYYMMDD format" validate:"required,len=8,number"`
	StrategyID  string `yaml:"strategy_id" json:"strategy_id" jsonschema:"title=Strategy,description=Identifier of the registered strategy" validate:"required"`
	InitialCash int64  `yaml:"initial_cash" json:"initial_cash" jsonschema:"title=Initial Cash,description=Starting cash for the simulated portfolio" validate:"required,gt=0"`
}

// Validate validates the RunConfig struct.
func (c *RunConfig) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		return errors.Wrap(errors.ErrCodeInvalidRunConfig, "invalid run config", err)
	}

	if c.EndDate < c.StartDate {
		return errors.Newf(errors.ErrCodeInvalidRunConfig, "end date %s precedes start date %s", c.EndDate, c.StartDate)
	}

	return nil
}

// GenerateSchemaJSON generates the JSON schema for RunConfig, used by config
// editors to validate run requests.
func (c *RunConfig) GenerateSchemaJSON() (string, error) {
	schema := jsonschema.Reflect(c)

	schemaJSON, err := json.MarshalIndent(schema, "", "  ")
	if err != nil {
		return "", errors.Wrap(errors.ErrCodeInvalidConfiguration, "failed to marshal run config schema", err)
	}

	return string(schemaJSON), nil
}
