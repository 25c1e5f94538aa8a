package domain

import (
	"math"
	"time"
)

// ExitLevels computes the stop-loss and take-profit prices at entry.
func ExitLevels(side Side, entry float64, cfg RiskConfig) (stopLoss, takeProfit float64) {
	if side == SideShort {
		return entry * (1 + cfg.StopLossPct), entry * (1 - cfg.TakeProfitPct)
	}
	return entry * (1 - cfg.StopLossPct), entry * (1 + cfg.TakeProfitPct)
}

// ExitDecision is the Risk Manager verdict for one open trade in one cycle.
// NewStop is non-zero when the trailing stop ratcheted; it is reported even
// when no exit fires.
type ExitDecision struct {
	Exit    bool
	Reason  CloseReason
	NewStop float64
}

// ShouldExit evaluates the exit triggers in fixed priority order: time limit,
// volatility emergency, stop-loss, take-profit. When none fires, a trailing
// stop adjustment may be returned. volRatio <= 0 means no volatility reading.
func ShouldExit(t Trade, price, volRatio float64, now time.Time, cfg RiskConfig) ExitDecision {
	if cfg.MaxHolding > 0 && t.HoldingTime(now) > cfg.MaxHolding {
		return ExitDecision{Exit: true, Reason: ReasonTimeLimit}
	}
	if cfg.EmergencyVolatilityRatio > 0 && volRatio > cfg.EmergencyVolatilityRatio {
		return ExitDecision{Exit: true, Reason: ReasonVolatilityEmergency}
	}
	if stopBreached(t, price) {
		return ExitDecision{Exit: true, Reason: ReasonStopLoss}
	}
	if targetReached(t, price) {
		return ExitDecision{Exit: true, Reason: ReasonTakeProfit}
	}
	if stop, moved := TrailStop(t, price, cfg); moved {
		return ExitDecision{NewStop: stop}
	}
	return ExitDecision{}
}

// TrailStop ratchets the stop toward price once the unrealized gain exceeds
// the activation threshold. The stop never loosens.
func TrailStop(t Trade, price float64, cfg RiskConfig) (float64, bool) {
	if !cfg.TrailingStop || price <= 0 {
		return t.StopLoss, false
	}
	if t.GainPct(price) <= cfg.TrailingActivationPct {
		return t.StopLoss, false
	}
	if t.Side == SideShort {
		candidate := price * (1 + cfg.TrailingStopPct)
		next := math.Min(t.StopLoss, candidate)
		return next, next < t.StopLoss
	}
	candidate := price * (1 - cfg.TrailingStopPct)
	next := math.Max(t.StopLoss, candidate)
	return next, next > t.StopLoss
}

func stopBreached(t Trade, price float64) bool {
	if t.Side == SideShort {
		return price >= t.StopLoss
	}
	return price <= t.StopLoss
}

func targetReached(t Trade, price float64) bool {
	if t.Side == SideShort {
		return price <= t.TakeProfit
	}
	return price >= t.TakeProfit
}
