package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"time"

	"github.com/alejandrodnm/papertrader/internal/domain"
)

// RunCycle executes one tick in strict phase order: day rollover, price
// refresh, exit evaluation, entry scan, snapshot. A provider failure only
// skips the affected symbol. The returned error is reserved for broken
// ledger invariants.
func (e *Engine) RunCycle(ctx context.Context) (*domain.CycleReport, error) {
	e.tickMu.Lock()
	defer e.tickMu.Unlock()

	start := e.now()
	report := &domain.CycleReport{Started: start}

	// 1. rollover
	e.mu.Lock()
	rolled := e.governor.CheckAndReset(start)
	day := e.governor.Day()
	e.mu.Unlock()
	if rolled {
		slog.Info("engine: new trading day, daily counters reset", "day", day.Format(time.DateOnly))
	}

	// 2. prices + indicators
	symbols := e.trackedSymbols()
	prices, priceErrs := e.fetchPrices(ctx, symbols)
	e.mu.Lock()
	for sym, p := range prices {
		e.lastPrice[sym] = p
	}
	e.mu.Unlock()

	healthy := make([]string, 0, len(symbols))
	for _, sym := range symbols {
		if err, failed := priceErrs[sym]; failed {
			report.ProviderErrors++
			slog.Warn("engine: price refresh failed, symbol skipped this cycle", "symbol", sym, "err", err)
			continue
		}
		healthy = append(healthy, sym)
	}

	inds, indErrs := e.fetchIndicators(ctx, healthy)
	for _, sym := range healthy {
		if err, failed := indErrs[sym]; failed {
			report.ProviderErrors++
			slog.Warn("engine: indicators unavailable", "symbol", sym, "err", err)
		}
	}

	// 3. exits
	if err := e.evaluateExits(ctx, prices, inds, report); err != nil {
		return nil, err
	}

	// 4. entries
	e.evaluateEntries(ctx, prices, inds, report)

	// 5. snapshot
	summary := e.Summary()
	e.saveSnapshot(ctx, summary)

	report.Summary = summary
	report.Duration = e.now().Sub(start)

	for _, obs := range e.observers {
		obs.ObserveCycle(*report)
	}

	slog.Info("engine: cycle complete",
		"opened", report.Count(domain.EventOpened),
		"closed", report.Count(domain.EventClosed),
		"declined", report.Count(domain.EventDeclined),
		"provider_errors", report.ProviderErrors,
		"balance", fmt.Sprintf("$%.2f", summary.Balance),
		"open_positions", summary.OpenPositions,
		"duration", report.Duration.Round(time.Millisecond),
	)
	return report, nil
}

// trackedSymbols returns the configured symbols in order followed by any
// symbol that only has an open (resumed) trade.
func (e *Engine) trackedSymbols() []string {
	out := append([]string(nil), e.cfg.Symbols...)
	known := make(map[string]bool, len(out))
	for _, s := range out {
		known[s] = true
	}

	e.mu.RLock()
	var extra []string
	for _, t := range e.open {
		if !known[t.Symbol] {
			known[t.Symbol] = true
			extra = append(extra, t.Symbol)
		}
	}
	e.mu.RUnlock()

	sort.Strings(extra)
	return append(out, extra...)
}

// evaluateExits checks every open trade against the Risk Manager. Trades
// whose price could not be refreshed are left untouched.
func (e *Engine) evaluateExits(
	ctx context.Context,
	prices map[string]float64,
	inds map[string]domain.Indicators,
	report *domain.CycleReport,
) error {
	e.mu.RLock()
	open := e.sortedOpenLocked()
	ids := make([]string, len(open))
	for i, t := range open {
		ids[i] = t.ID
	}
	e.mu.RUnlock()

	for _, id := range ids {
		e.mu.RLock()
		t, ok := e.open[id]
		var trade domain.Trade
		if ok {
			trade = *t
		}
		e.mu.RUnlock()
		if !ok {
			continue
		}

		price, ok := prices[trade.Symbol]
		if !ok {
			slog.Debug("engine: exit check skipped, no price", "trade_id", id, "symbol", trade.Symbol)
			continue
		}
		volRatio := inds[trade.Symbol].VolatilityRatio

		d := domain.ShouldExit(trade, price, volRatio, e.now(), e.cfg.Risk)
		if d.Exit {
			closed, err := e.Close(ctx, id, price, d.Reason)
			if err != nil {
				if errors.Is(err, domain.ErrTradeNotOpen) || errors.Is(err, domain.ErrTradeNotFound) {
					return fmt.Errorf("engine.RunCycle: exit %s: %w", id, err)
				}
				slog.Warn("engine: close failed", "trade_id", id, "err", err)
				continue
			}
			report.Events = append(report.Events, domain.TradeEvent{
				Type:   domain.EventClosed,
				Symbol: closed.Symbol,
				Side:   closed.Side,
				Trade:  &closed,
				Time:   *closed.ExitTime,
			})
			continue
		}

		if d.NewStop > 0 {
			e.mu.Lock()
			updated, moved := e.trailLocked(id, d.NewStop)
			e.mu.Unlock()
			if moved {
				slog.Debug("engine: trailing stop moved", "trade_id", id, "symbol", updated.Symbol,
					"from", trade.StopLoss, "to", updated.StopLoss)
				e.saveTrade(ctx, updated)
			}
		}
	}
	return nil
}

// evaluateEntries scans configured symbols in order. The whole phase is
// skipped while the governor blocks new trades.
func (e *Engine) evaluateEntries(
	ctx context.Context,
	prices map[string]float64,
	inds map[string]domain.Indicators,
	report *domain.CycleReport,
) {
	e.mu.RLock()
	reason := e.governor.CanTrade(e.ledger.Balance())
	holding := make(map[string]bool, len(e.open))
	for _, t := range e.open {
		holding[t.Symbol] = true
	}
	e.mu.RUnlock()

	if reason != domain.DeclineNone {
		report.EntriesPaused = true
		if reason == domain.DeclineDailyLossLimit {
			slog.Warn("engine: daily loss limit reached, entries paused")
		} else {
			slog.Info("engine: entries paused", "reason", reason)
		}
		return
	}

	for _, sym := range e.cfg.Symbols {
		if holding[sym] {
			continue
		}
		price, ok := prices[sym]
		if !ok {
			continue
		}
		ind, ok := inds[sym]
		if !ok {
			continue
		}

		sig := domain.ScoreSignal(ind, e.cfg.Scorer)
		side, ok := sig.Direction.Side()
		if !ok {
			slog.Debug("engine: no signal", "symbol", sym, "strength", sig.Strength, "reasons", sig.Reasons)
			continue
		}
		sig.Price = price

		ev := e.Open(ctx, sig, side)
		report.Events = append(report.Events, ev)
	}
}

// Run drives ticks every TickInterval until ctx is cancelled, Stop is
// called or the stop file appears. The stop request is honoured at the top
// of each tick and while waiting between ticks; a tick in flight always
// completes. Open positions are drained on exit when DrainOnStop is set.
func (e *Engine) Run(ctx context.Context) error {
	slog.Info("engine starting",
		"symbols", e.cfg.Symbols,
		"interval", e.cfg.TickInterval,
		"balance", e.Summary().Balance,
	)

	ticker := time.NewTicker(e.cfg.TickInterval)
	defer ticker.Stop()

	tickCtx := context.WithoutCancel(ctx)
	for !e.stopRequested(ctx) {
		if _, err := e.RunCycle(tickCtx); err != nil {
			return fmt.Errorf("engine.Run: %w", err)
		}

		select {
		case <-ctx.Done():
		case <-e.stopCh:
		case <-ticker.C:
		}
	}

	slog.Info("engine stopping")
	if e.cfg.DrainOnStop {
		e.Drain(tickCtx)
	}
	return nil
}

func (e *Engine) stopRequested(ctx context.Context) bool {
	if ctx.Err() != nil {
		slog.Info("engine: stop requested (signal)")
		return true
	}
	select {
	case <-e.stopCh:
		slog.Info("engine: stop requested")
		return true
	default:
	}
	if e.cfg.StopFile != "" {
		if _, err := os.Stat(e.cfg.StopFile); err == nil {
			slog.Info("engine: STOP file detected", "path", e.cfg.StopFile)
			if err := os.Remove(e.cfg.StopFile); err != nil {
				slog.Warn("engine: could not remove STOP file", "err", err)
			}
			return true
		}
	}
	return false
}

// Drain closes every open trade at its last known price with reason
// shutdown and persists a final snapshot. Trades without any known price
// are closed at their entry price.
func (e *Engine) Drain(ctx context.Context) []domain.TradeEvent {
	e.tickMu.Lock()
	defer e.tickMu.Unlock()

	e.mu.RLock()
	open := e.sortedOpenLocked()
	type target struct {
		id    string
		price float64
	}
	targets := make([]target, 0, len(open))
	for _, t := range open {
		p, ok := e.lastPrice[t.Symbol]
		if !ok {
			slog.Warn("engine: no known price, draining at entry", "trade_id", t.ID, "symbol", t.Symbol)
			p = t.EntryPrice
		}
		targets = append(targets, target{id: t.ID, price: p})
	}
	e.mu.RUnlock()

	var events []domain.TradeEvent
	for _, tg := range targets {
		closed, err := e.Close(ctx, tg.id, tg.price, domain.ReasonShutdown)
		if err != nil {
			slog.Warn("engine: drain close failed", "trade_id", tg.id, "err", err)
			continue
		}
		events = append(events, domain.TradeEvent{
			Type:   domain.EventClosed,
			Symbol: closed.Symbol,
			Side:   closed.Side,
			Trade:  &closed,
			Time:   *closed.ExitTime,
		})
	}

	if len(events) > 0 {
		e.saveSnapshot(ctx, e.Summary())
	}
	slog.Info("engine: drained open positions", "closed", len(events))
	return events
}
