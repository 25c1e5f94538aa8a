package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidConfig is fatal and only returned at construction or config load.
	ErrInvalidConfig = errors.New("invalid configuration")
	// ErrTradeNotOpen is returned when closing a trade that already left OPEN.
	ErrTradeNotOpen = errors.New("trade is not open")
	// ErrTradeNotFound is returned when closing an unknown trade id.
	ErrTradeNotFound = errors.New("trade not found")
)

// ProviderError wraps a market data failure for a single symbol.
type ProviderError struct {
	Op     string // "price" | "candles"
	Symbol string
	Err    error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("provider %s %s: %v", e.Op, e.Symbol, e.Err)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// DeclineReason explains why an entry was not opened. Declines are expected
// outcomes, not faults.
type DeclineReason string

const (
	DeclineNone                DeclineReason = ""
	DeclinePositionLimit       DeclineReason = "position_limit_reached"
	DeclineSymbolOpen          DeclineReason = "symbol_already_open"
	DeclineDailyTradeLimit     DeclineReason = "daily_trade_limit"
	DeclineDailyLossLimit      DeclineReason = "daily_loss_limit"
	DeclineInsufficientBalance DeclineReason = "insufficient_balance"
)
