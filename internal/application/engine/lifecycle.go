package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/alejandrodnm/papertrader/internal/domain"
)

// entryCheckLocked applies the account-level gates in fixed order.
func (e *Engine) entryCheckLocked(symbol string) domain.DeclineReason {
	if len(e.open) >= e.cfg.Risk.MaxOpenPositions {
		return domain.DeclinePositionLimit
	}
	for _, t := range e.open {
		if t.Symbol == symbol {
			return domain.DeclineSymbolOpen
		}
	}
	return e.governor.CanTrade(e.ledger.Balance())
}

// Open sizes and opens a position for sig at sig.Price. Declines are
// returned as events, never as errors.
func (e *Engine) Open(ctx context.Context, sig domain.Signal, side domain.Side) domain.TradeEvent {
	now := e.now()
	ev := domain.TradeEvent{Type: domain.EventDeclined, Symbol: sig.Symbol, Side: side, Time: now}

	e.mu.Lock()
	if reason := e.entryCheckLocked(sig.Symbol); reason != domain.DeclineNone {
		e.mu.Unlock()
		ev.Decline = reason
		slog.Debug("engine: entry declined", "symbol", sig.Symbol, "side", side, "reason", reason)
		return ev
	}

	stop, take := domain.ExitLevels(side, sig.Price, e.cfg.Risk)
	qty := domain.PositionSize(e.ledger.Balance(), e.ledger.Available(), sig.Price, stop, e.cfg.Risk)
	if qty <= 0 {
		available := e.ledger.Available()
		e.mu.Unlock()
		ev.Decline = domain.DeclineInsufficientBalance
		slog.Debug("engine: entry declined", "symbol", sig.Symbol, "side", side, "reason", ev.Decline,
			"available", available)
		return ev
	}

	t := &domain.Trade{
		ID:         e.newID(),
		Symbol:     sig.Symbol,
		Side:       side,
		EntryPrice: sig.Price,
		Quantity:   qty,
		EntryTime:  now,
		StopLoss:   stop,
		TakeProfit: take,
		Strategy:   e.cfg.Strategy,
		Fees:       domain.EntryFee(sig.Price, qty, e.cfg.Risk),
		Status:     domain.TradeStatusOpen,
	}
	e.ledger.reserve(*t)
	e.open[t.ID] = t
	e.governor.recordOpen()
	snapshot := *t
	e.mu.Unlock()

	e.saveTrade(ctx, snapshot)

	slog.Info("engine: trade opened",
		"trade_id", snapshot.ID,
		"symbol", snapshot.Symbol,
		"side", snapshot.Side,
		"qty", snapshot.Quantity,
		"entry", snapshot.EntryPrice,
		"stop", snapshot.StopLoss,
		"target", snapshot.TakeProfit,
		"strength", fmt.Sprintf("%.2f", sig.Strength),
	)

	ev.Type = domain.EventOpened
	ev.Trade = &snapshot
	return ev
}

// Close settles an open trade at price. Closing a trade that already left
// OPEN returns ErrTradeNotOpen and leaves the ledger untouched.
func (e *Engine) Close(ctx context.Context, id string, price float64, reason domain.CloseReason) (domain.Trade, error) {
	if price <= 0 {
		return domain.Trade{}, fmt.Errorf("engine.Close: trade %s: invalid exit price %v", id, price)
	}

	e.mu.Lock()
	t, ok := e.open[id]
	if !ok {
		e.mu.Unlock()
		if e.wasClosed(id) {
			return domain.Trade{}, fmt.Errorf("engine.Close: trade %s: %w", id, domain.ErrTradeNotOpen)
		}
		return domain.Trade{}, fmt.Errorf("engine.Close: trade %s: %w", id, domain.ErrTradeNotFound)
	}
	closed := e.settleLocked(t, price, reason, e.now())
	e.mu.Unlock()

	e.saveTrade(ctx, closed)

	slog.Info("engine: trade closed",
		"trade_id", closed.ID,
		"symbol", closed.Symbol,
		"side", closed.Side,
		"reason", closed.CloseReason,
		"exit", closed.ExitPrice,
		"pnl", fmt.Sprintf("$%.2f", closed.PnL),
		"pnl_pct", fmt.Sprintf("%.2f%%", closed.PnLPct*100),
	)
	return closed, nil
}

func (e *Engine) wasClosed(id string) bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	_, ok := e.closed[id]
	return ok
}

// settleLocked moves t from OPEN to CLOSED and books the result.
func (e *Engine) settleLocked(t *domain.Trade, price float64, reason domain.CloseReason, now time.Time) domain.Trade {
	entryFee := t.Fees
	exitFee := price * t.Quantity * e.cfg.Risk.FeeRate
	net := t.GrossPnL(price) - entryFee - exitFee

	t.ExitPrice = price
	t.ExitTime = &now
	t.PnL = net
	if n := t.Notional(); n > 0 {
		t.PnLPct = net / n
	}
	t.CloseReason = reason
	t.Fees = entryFee + exitFee
	t.Status = domain.TradeStatusClosed

	e.ledger.settle(*t, entryFee)
	e.governor.recordClose(net)
	delete(e.open, t.ID)
	e.closed[t.ID] = struct{}{}
	return *t
}

// trailLocked moves the stop of an open trade; it never loosens it.
func (e *Engine) trailLocked(id string, stop float64) (domain.Trade, bool) {
	t, ok := e.open[id]
	if !ok {
		return domain.Trade{}, false
	}
	if (t.Side == domain.SideShort && stop >= t.StopLoss) || (t.Side == domain.SideLong && stop <= t.StopLoss) {
		return *t, false
	}
	t.StopLoss = stop
	return *t, true
}
