package domain

import "time"

// Side is the direction of a position.
type Side string

const (
	SideLong  Side = "LONG"
	SideShort Side = "SHORT"
)

// Sign returns +1 for LONG and -1 for SHORT.
func (s Side) Sign() float64 {
	if s == SideShort {
		return -1
	}
	return 1
}

// TradeStatus represents the lifecycle of a simulated trade.
type TradeStatus string

const (
	TradeStatusOpen      TradeStatus = "OPEN"
	TradeStatusClosed    TradeStatus = "CLOSED"
	TradeStatusCancelled TradeStatus = "CANCELLED"
)

// CloseReason explains why a trade left the OPEN state.
type CloseReason string

const (
	ReasonTimeLimit           CloseReason = "time_limit"
	ReasonVolatilityEmergency CloseReason = "volatility_emergency"
	ReasonStopLoss            CloseReason = "stop_loss"
	ReasonTakeProfit          CloseReason = "take_profit"
	ReasonShutdown            CloseReason = "shutdown"
	ReasonManual              CloseReason = "manual"
)

// Trade is one position's full lifecycle record.
// ExitPrice and ExitTime are only set once Status is CLOSED; PnL stays 0 while OPEN.
// Fees holds the entry fee while open and entry+exit fees once closed.
type Trade struct {
	ID          string
	Symbol      string
	Side        Side
	EntryPrice  float64
	Quantity    float64
	EntryTime   time.Time
	StopLoss    float64
	TakeProfit  float64
	Strategy    string
	ExitPrice   float64
	ExitTime    *time.Time
	PnL         float64
	PnLPct      float64
	CloseReason CloseReason
	Fees        float64
	Status      TradeStatus
}

// IsOpen reports whether the trade is still OPEN.
func (t Trade) IsOpen() bool {
	return t.Status == TradeStatusOpen
}

// Notional is the value locked by the trade at entry.
func (t Trade) Notional() float64 {
	return t.EntryPrice * t.Quantity
}

// GrossPnL is the price-driven P&L at the given price, before fees.
func (t Trade) GrossPnL(price float64) float64 {
	return (price - t.EntryPrice) * t.Quantity * t.Side.Sign()
}

// GainPct is the unrealized move in the trade's favour as a fraction of entry.
func (t Trade) GainPct(price float64) float64 {
	if t.EntryPrice <= 0 {
		return 0
	}
	return (price - t.EntryPrice) / t.EntryPrice * t.Side.Sign()
}

// HoldingTime returns how long the trade has been (or was) open.
func (t Trade) HoldingTime(now time.Time) time.Duration {
	if t.ExitTime != nil {
		return t.ExitTime.Sub(t.EntryTime)
	}
	return now.Sub(t.EntryTime)
}

// EventType classifies the outcome records a cycle produces.
type EventType string

const (
	EventOpened   EventType = "opened"
	EventClosed   EventType = "closed"
	EventDeclined EventType = "declined"
)

// TradeEvent is emitted by the engine for every open, close or declined entry.
type TradeEvent struct {
	Type    EventType
	Symbol  string
	Side    Side
	Trade   *Trade        // snapshot of the trade after the transition; nil on declines
	Decline DeclineReason // set only on EventDeclined
	Time    time.Time
}
