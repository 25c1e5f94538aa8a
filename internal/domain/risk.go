package domain

import (
	"fmt"
	"sort"
	"time"
)

// RiskConfig is the immutable risk bundle the engine is built with.
// Fractions are expressed as 0.02 = 2%.
type RiskConfig struct {
	MaxPositionSize          float64       `yaml:"max_position_size"` // of balance
	StopLossPct              float64       `yaml:"stop_loss_pct"`
	TakeProfitPct            float64       `yaml:"take_profit_pct"`
	MaxOpenPositions         int           `yaml:"max_open_positions"`
	FeeRate                  float64       `yaml:"fee_rate"` // per side
	RiskPerTrade             float64       `yaml:"risk_per_trade"`
	DailyLossLimit           float64       `yaml:"daily_loss_limit"`
	TrailingStop             bool          `yaml:"trailing_stop"`
	TrailingStopPct          float64       `yaml:"trailing_stop_pct"`
	TrailingActivationPct    float64       `yaml:"trailing_activation_pct"` // min unrealized gain before trailing
	MaxDailyTrades           int           `yaml:"max_daily_trades"`
	MaxHolding               time.Duration `yaml:"max_holding"`
	EmergencyVolatilityRatio float64       `yaml:"emergency_volatility_ratio"`
	QuantityStep             float64       `yaml:"quantity_step"` // lot size; 0 disables flooring
}

const (
	ProfileStandard = "standard"
	ProfileIntraday = "intraday"
	ProfileActive   = "active"
)

var riskPresets = map[string]RiskConfig{
	ProfileStandard: {
		MaxPositionSize:          0.15,
		StopLossPct:              0.025,
		TakeProfitPct:            0.05,
		MaxOpenPositions:         3,
		FeeRate:                  0.001,
		RiskPerTrade:             0.02,
		DailyLossLimit:           0.10,
		TrailingStop:             true,
		TrailingStopPct:          0.015,
		TrailingActivationPct:    0.02,
		MaxDailyTrades:           20,
		MaxHolding:               24 * time.Hour,
		EmergencyVolatilityRatio: 3,
	},
	ProfileIntraday: {
		MaxPositionSize:          0.10,
		StopLossPct:              0.02,
		TakeProfitPct:            0.04,
		MaxOpenPositions:         1,
		FeeRate:                  0.001,
		RiskPerTrade:             0.02,
		DailyLossLimit:           0.05,
		TrailingActivationPct:    0.02,
		MaxDailyTrades:           24,
		MaxHolding:               4 * time.Hour,
		EmergencyVolatilityRatio: 3,
	},
	ProfileActive: {
		MaxPositionSize:          0.15,
		StopLossPct:              0.02,
		TakeProfitPct:            0.04,
		MaxOpenPositions:         2,
		FeeRate:                  0.001,
		RiskPerTrade:             0.03,
		DailyLossLimit:           0.10,
		TrailingStop:             true,
		TrailingStopPct:          0.015,
		TrailingActivationPct:    0.02,
		MaxDailyTrades:           20,
		MaxHolding:               24 * time.Hour,
		EmergencyVolatilityRatio: 3,
	},
}

// RiskPreset returns the named risk configuration.
func RiskPreset(name string) (RiskConfig, error) {
	cfg, ok := riskPresets[name]
	if !ok {
		return RiskConfig{}, fmt.Errorf("%w: unknown risk profile %q (have %v)", ErrInvalidConfig, name, RiskProfiles())
	}
	return cfg, nil
}

// RiskProfiles lists the preset names in stable order.
func RiskProfiles() []string {
	names := make([]string, 0, len(riskPresets))
	for n := range riskPresets {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Validate rejects values the engine cannot run with.
func (c RiskConfig) Validate() error {
	checks := []struct {
		ok  bool
		msg string
	}{
		{c.MaxPositionSize > 0 && c.MaxPositionSize <= 1, "max_position_size must be in (0, 1]"},
		{c.StopLossPct > 0 && c.StopLossPct < 1, "stop_loss_pct must be in (0, 1)"},
		{c.TakeProfitPct > 0, "take_profit_pct must be > 0"},
		{c.MaxOpenPositions >= 1, "max_open_positions must be >= 1"},
		{c.FeeRate >= 0 && c.FeeRate < 1, "fee_rate must be in [0, 1)"},
		{c.RiskPerTrade > 0 && c.RiskPerTrade <= 1, "risk_per_trade must be in (0, 1]"},
		{c.DailyLossLimit > 0 && c.DailyLossLimit <= 1, "daily_loss_limit must be in (0, 1]"},
		{!c.TrailingStop || (c.TrailingStopPct > 0 && c.TrailingStopPct < 1), "trailing_stop_pct must be in (0, 1) when trailing is enabled"},
		{c.TrailingActivationPct >= 0, "trailing_activation_pct must be >= 0"},
		{c.MaxDailyTrades >= 1, "max_daily_trades must be >= 1"},
		{c.MaxHolding >= 0, "max_holding must be >= 0"},
		{c.EmergencyVolatilityRatio >= 0, "emergency_volatility_ratio must be >= 0"},
		{c.QuantityStep >= 0, "quantity_step must be >= 0"},
	}
	for _, chk := range checks {
		if !chk.ok {
			return fmt.Errorf("%w: %s", ErrInvalidConfig, chk.msg)
		}
	}
	return nil
}
