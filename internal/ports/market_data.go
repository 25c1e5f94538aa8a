package ports

import (
	"context"

	"github.com/alejandrodnm/papertrader/internal/domain"
)

// MarketData supplies prices and candle history per symbol.
// Failures are returned as *domain.ProviderError so callers can isolate the symbol.
type MarketData interface {
	// GetPrice devuelve el último precio del símbolo.
	GetPrice(ctx context.Context, symbol string) (float64, error)

	// GetCandles returns up to limit OHLCV bars, oldest first.
	GetCandles(ctx context.Context, symbol, interval string, limit int) ([]domain.Candle, error)
}

// IndicatorCalculator derives the scorer's indicator bundle from a candle series.
type IndicatorCalculator interface {
	Compute(symbol string, candles []domain.Candle) (domain.Indicators, error)
}
