package domain

import (
	"fmt"
	"math"
	"time"
)

// Direction is the trading intent emitted by the scorer.
type Direction string

const (
	DirectionBuy  Direction = "BUY"
	DirectionSell Direction = "SELL"
	DirectionHold Direction = "HOLD"
)

// Side maps BUY to LONG and SELL to SHORT. HOLD has no side.
func (d Direction) Side() (Side, bool) {
	switch d {
	case DirectionBuy:
		return SideLong, true
	case DirectionSell:
		return SideShort, true
	}
	return "", false
}

// Signal is the ephemeral output of ScoreSignal. Strength is the absolute
// accumulated score, also reported on HOLD for diagnostics.
type Signal struct {
	Symbol          string
	Direction       Direction
	Strength        float64
	Reasons         []string
	Price           float64
	VolatilityRatio float64
	Timestamp       time.Time
}

// ScorerConfig holds the weights and thresholds of the signal scorer.
type ScorerConfig struct {
	Threshold           float64 `yaml:"threshold"`
	MinObservations     int     `yaml:"min_observations"`
	RSIOversold         float64 `yaml:"rsi_oversold"`
	RSIOverbought       float64 `yaml:"rsi_overbought"`
	VolumeBoostRatio    float64 `yaml:"volume_boost_ratio"`
	VolumeBoost         float64 `yaml:"volume_boost"`
	VolatilityThreshold float64 `yaml:"volatility_threshold"` // 0 disables the volatility condition

	CrossoverWeight  float64 `yaml:"crossover_weight"`
	RSIWeight        float64 `yaml:"rsi_weight"`
	BandWeight       float64 `yaml:"band_weight"`
	MACDWeight       float64 `yaml:"macd_weight"`
	VolatilityWeight float64 `yaml:"volatility_weight"`
}

// DefaultScorerConfig returns the weights used by the reference bots:
// crossover 2, RSI 1.5, band touch 1, MACD cross 1.5, ×1.2 on high volume,
// and a direction only at |score| >= 3.
func DefaultScorerConfig() ScorerConfig {
	return ScorerConfig{
		Threshold:           3,
		MinObservations:     50,
		RSIOversold:         30,
		RSIOverbought:       70,
		VolumeBoostRatio:    1.5,
		VolumeBoost:         1.2,
		VolatilityThreshold: 1.5,
		CrossoverWeight:     2,
		RSIWeight:           1.5,
		BandWeight:          1,
		MACDWeight:          1.5,
		VolatilityWeight:    1,
	}
}

// ScoreSignal converts an indicator bundle into a directional intent.
// Pure: same input, same output.
func ScoreSignal(ind Indicators, cfg ScorerConfig) Signal {
	sig := Signal{
		Symbol:          ind.Symbol,
		Direction:       DirectionHold,
		Price:           ind.Current.Close,
		VolatilityRatio: ind.VolatilityRatio,
		Timestamp:       ind.Timestamp,
	}
	if ind.Observations < cfg.MinObservations || ind.Observations < 2 {
		sig.Reasons = []string{"insufficient data"}
		return sig
	}

	cur, prev := ind.Current, ind.Previous
	score := 0.0
	add := func(weight float64, reason string) {
		score += weight
		sig.Reasons = append(sig.Reasons, reason)
	}

	switch {
	case cur.FastMA > cur.SlowMA && prev.FastMA <= prev.SlowMA:
		add(cfg.CrossoverWeight, "MA bullish crossover")
	case cur.FastMA < cur.SlowMA && prev.FastMA >= prev.SlowMA:
		add(-cfg.CrossoverWeight, "MA bearish crossover")
	}

	switch {
	case cur.RSI > 0 && cur.RSI < cfg.RSIOversold:
		add(cfg.RSIWeight, "RSI oversold")
	case cur.RSI > cfg.RSIOverbought:
		add(-cfg.RSIWeight, "RSI overbought")
	}

	if cur.BBUpper > cur.BBLower {
		switch {
		case cur.Close <= cur.BBLower:
			add(cfg.BandWeight, "BB lower touch")
		case cur.Close >= cur.BBUpper:
			add(-cfg.BandWeight, "BB upper touch")
		}
	}

	switch {
	case cur.MACD > cur.MACDSignal && prev.MACD <= prev.MACDSignal:
		add(cfg.MACDWeight, "MACD bullish")
	case cur.MACD < cur.MACDSignal && prev.MACD >= prev.MACDSignal:
		add(-cfg.MACDWeight, "MACD bearish")
	}

	// Elevated volatility confirms whichever trend is in place.
	if cfg.VolatilityThreshold > 0 && ind.VolatilityRatio > cfg.VolatilityThreshold {
		switch {
		case cur.FastMA > cur.SlowMA:
			add(cfg.VolatilityWeight, "elevated volatility, uptrend")
		case cur.FastMA < cur.SlowMA:
			add(-cfg.VolatilityWeight, "elevated volatility, downtrend")
		}
	}

	if cfg.VolumeBoostRatio > 0 && cur.VolumeAvg > 0 && cur.Volume > cur.VolumeAvg*cfg.VolumeBoostRatio {
		score *= cfg.VolumeBoost
		sig.Reasons = append(sig.Reasons, "high volume")
	}

	sig.Strength = math.Abs(score)
	switch {
	case score >= cfg.Threshold:
		sig.Direction = DirectionBuy
	case score <= -cfg.Threshold:
		sig.Direction = DirectionSell
	}
	return sig
}

// Validate rejects scorer settings that would emit a direction on no evidence.
func (c ScorerConfig) Validate() error {
	if c.Threshold <= 0 {
		return fmt.Errorf("%w: scorer threshold must be > 0", ErrInvalidConfig)
	}
	if c.MinObservations < 2 {
		return fmt.Errorf("%w: scorer min_observations must be >= 2", ErrInvalidConfig)
	}
	if c.VolumeBoost < 0 {
		return fmt.Errorf("%w: scorer volume_boost must be >= 0", ErrInvalidConfig)
	}
	return nil
}
