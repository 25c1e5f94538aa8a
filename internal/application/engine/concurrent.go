package engine

// concurrent.go: worker pool para las llamadas al proveedor de mercado.
//
// Only I/O runs in the workers; results are applied to the ledger afterwards
// by the tick goroutine, in configured symbol order.

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"sync"
	"time"

	"github.com/alejandrodnm/papertrader/internal/domain"
)

// fetchConcurrent runs fetch for every symbol on a bounded worker pool, each
// call under its own timeout. Failed symbols land in errs, never in vals.
//
// Si workers <= 0 usa runtime.NumCPU().
func fetchConcurrent[T any](
	ctx context.Context,
	symbols []string,
	workers int,
	timeout time.Duration,
	fetch func(ctx context.Context, symbol string) (T, error),
) (vals map[string]T, errs map[string]error) {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	if workers > len(symbols) {
		workers = len(symbols)
	}

	type result struct {
		symbol string
		val    T
		err    error
	}

	workCh := make(chan string, len(symbols))
	resultCh := make(chan result, len(symbols))

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for sym := range workCh {
				callCtx, cancel := context.WithTimeout(ctx, timeout)
				v, err := fetch(callCtx, sym)
				cancel()
				resultCh <- result{symbol: sym, val: v, err: err}
			}
		}()
	}

	for _, sym := range symbols {
		workCh <- sym
	}
	close(workCh)

	go func() {
		wg.Wait()
		close(resultCh)
	}()

	vals = make(map[string]T, len(symbols))
	errs = make(map[string]error)
	for r := range resultCh {
		if r.err != nil {
			errs[r.symbol] = r.err
			continue
		}
		vals[r.symbol] = r.val
	}

	slog.Debug("engine: concurrent fetch complete",
		"symbols", len(symbols),
		"failed", len(errs),
		"workers", workers,
	)
	return vals, errs
}

// fetchPrices refreshes the latest price of every symbol.
func (e *Engine) fetchPrices(ctx context.Context, symbols []string) (map[string]float64, map[string]error) {
	return fetchConcurrent(ctx, symbols, e.cfg.Workers, e.cfg.CallTimeout,
		func(ctx context.Context, symbol string) (float64, error) {
			p, err := e.market.GetPrice(ctx, symbol)
			if err != nil {
				return 0, asProviderError("price", symbol, err)
			}
			if p <= 0 {
				return 0, &domain.ProviderError{Op: "price", Symbol: symbol, Err: fmt.Errorf("non-positive price %v", p)}
			}
			return p, nil
		})
}

// fetchIndicators pulls candles and derives the indicator bundle per symbol.
func (e *Engine) fetchIndicators(ctx context.Context, symbols []string) (map[string]domain.Indicators, map[string]error) {
	return fetchConcurrent(ctx, symbols, e.cfg.Workers, e.cfg.CallTimeout,
		func(ctx context.Context, symbol string) (domain.Indicators, error) {
			candles, err := e.market.GetCandles(ctx, symbol, e.cfg.CandleInterval, e.cfg.Lookback)
			if err != nil {
				return domain.Indicators{}, asProviderError("candles", symbol, err)
			}
			ind, err := e.calc.Compute(symbol, candles)
			if err != nil {
				return domain.Indicators{}, fmt.Errorf("indicators %s: %w", symbol, err)
			}
			return ind, nil
		})
}

func asProviderError(op, symbol string, err error) error {
	var pe *domain.ProviderError
	if errors.As(err, &pe) {
		return err
	}
	return &domain.ProviderError{Op: op, Symbol: symbol, Err: err}
}
