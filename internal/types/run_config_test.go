package types

import (
	"testing"

	"github.com/stretchr/testify/suite"
)

type RunConfigTestSuite struct {
	suite.Suite
}

func TestRunConfigSuite(t *testing.T) {
	suite.Run(t, new(RunConfigTestSuite))
}

func validRunConfig() RunConfig {
	return RunConfig{
		Symbol:      "005930",
		StartDate:   "20240101",
		EndDate:     "20240331",
		StrategyID:  "ma_trend",
		InitialCash: 100000000,
	}
}

func (s *RunConfigTestSuite) TestValidateSuccess() {
	cfg := validRunConfig()
	s.NoError(cfg.Validate())
}

func (s *RunConfigTestSuite) TestValidateMissingSymbol() {
	cfg := validRunConfig()
	cfg.Symbol = ""
	s.Error(cfg.Validate())
}

func (s *RunConfigTestSuite) TestValidateBadDateFormat() {
	cfg := validRunConfig()
	cfg.StartDate = "2024-01-01"
	s.Error(cfg.Validate())
}

func (s *RunConfigTestSuite) TestValidateReversedRange() {
	cfg := validRunConfig()
	cfg.StartDate = "20240401"
	cfg.EndDate = "20240101"
	s.Error(cfg.Validate())
}

func (s *RunConfigTestSuite) TestValidateNonPositiveCash() {
	cfg := validRunConfig()
	cfg.InitialCash = 0
	s.Error(cfg.Validate())
}

func (s *RunConfigTestSuite) TestGenerateSchemaJSON() {
	cfg := validRunConfig()

	schema, err := cfg.GenerateSchemaJSON()
	s.Require().NoError(err)
	s.Contains(schema, "initial_cash")
	s.Contains(schema, "strategy_id")
}
