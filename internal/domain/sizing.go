package domain

import (
	"math"

	"github.com/shopspring/decimal"
)

// PositionSize converts a risk budget and stop distance into a quantity.
//
//	qty = balance × risk_per_trade / |entry − stop|
//
// capped by balance × max_position_size / entry and by what available can fund
// including the entry fee. Returns 0 when no positive quantity fits.
func PositionSize(balance, available, entry, stop float64, cfg RiskConfig) float64 {
	if balance <= 0 || available <= 0 || entry <= 0 {
		return 0
	}
	riskPerUnit := math.Abs(entry - stop)
	if riskPerUnit == 0 {
		return 0
	}

	qty := balance * cfg.RiskPerTrade / riskPerUnit

	maxQty := balance * cfg.MaxPositionSize / entry
	if qty > maxQty {
		qty = maxQty
	}

	unitCost := entry * (1 + cfg.FeeRate)
	if qty*unitCost > available {
		qty = available / unitCost
	}

	qty = FloorToStep(qty, cfg.QuantityStep)
	if qty <= 0 || math.IsNaN(qty) || math.IsInf(qty, 0) {
		return 0
	}
	return qty
}

// FloorToStep rounds qty down to a multiple of step. A non-positive step
// returns qty unchanged.
func FloorToStep(qty, step float64) float64 {
	if step <= 0 || qty <= 0 {
		return qty
	}
	s := decimal.NewFromFloat(step)
	floored, _ := decimal.NewFromFloat(qty).Div(s).Floor().Mul(s).Float64()
	return floored
}

// EntryFee is the fee charged on the notional at entry.
func EntryFee(price, qty float64, cfg RiskConfig) float64 {
	return price * qty * cfg.FeeRate
}
