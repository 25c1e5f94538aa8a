package engine

import (
	"time"

	"github.com/alejandrodnm/papertrader/internal/domain"
)

// Governor is the daily risk breaker: it caps trades per calendar day and
// pauses new entries once the day's realized loss reaches the limit.
// Day boundaries are evaluated in loc.
type Governor struct {
	loc            *time.Location
	maxTrades      int
	dailyLossLimit float64

	day         time.Time
	dailyPnL    float64
	dailyTrades int
}

// NewGovernor creates a governor whose current day is the day of now.
func NewGovernor(cfg domain.RiskConfig, loc *time.Location, now time.Time) *Governor {
	if loc == nil {
		loc = time.UTC
	}
	g := &Governor{
		loc:            loc,
		maxTrades:      cfg.MaxDailyTrades,
		dailyLossLimit: cfg.DailyLossLimit,
	}
	g.day = g.dayOf(now)
	return g
}

// dayOf returns local midnight of t.
func (g *Governor) dayOf(t time.Time) time.Time {
	y, m, d := t.In(g.loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, g.loc)
}

// CheckAndReset zeroes the daily counters when now falls on a later day than
// the one being tracked. Repeated calls on the same day are no-ops.
// Reports whether a rollover happened.
func (g *Governor) CheckAndReset(now time.Time) bool {
	today := g.dayOf(now)
	if !today.After(g.day) {
		return false
	}
	g.day = today
	g.dailyPnL = 0
	g.dailyTrades = 0
	return true
}

// CanTrade returns DeclineNone when a new entry is allowed, otherwise the
// reason the governor blocks it.
func (g *Governor) CanTrade(balance float64) domain.DeclineReason {
	if g.dailyTrades >= g.maxTrades {
		return domain.DeclineDailyTradeLimit
	}
	if g.LossLimitHit(balance) {
		return domain.DeclineDailyLossLimit
	}
	return domain.DeclineNone
}

// LossLimitHit reports whether today's realized P&L is at or below
// -daily_loss_limit × balance.
func (g *Governor) LossLimitHit(balance float64) bool {
	return g.dailyPnL <= -g.dailyLossLimit*balance && g.dailyPnL < 0
}

func (g *Governor) recordOpen() {
	g.dailyTrades++
}

func (g *Governor) recordClose(pnl float64) {
	g.dailyPnL += pnl
}

// restore loads persisted counters if they belong to the current day.
func (g *Governor) restore(day time.Time, pnl float64, trades int) bool {
	if day.IsZero() || !g.dayOf(day).Equal(g.day) {
		return false
	}
	g.dailyPnL = pnl
	g.dailyTrades = trades
	return true
}

func (g *Governor) DailyPnL() float64 { return g.dailyPnL }
func (g *Governor) DailyTrades() int   { return g.dailyTrades }
func (g *Governor) Day() time.Time     { return g.day }
