package binance

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/alejandrodnm/papertrader/internal/domain"
)

const maxKlines = 1000

// tickerPrice es la respuesta de /api/v3/ticker/price.
type tickerPrice struct {
	Symbol string `json:"symbol"`
	Price  string `json:"price"`
}

// GetPrice devuelve el último precio negociado del símbolo.
func (c *Client) GetPrice(ctx context.Context, symbol string) (float64, error) {
	var out tickerPrice
	q := url.Values{"symbol": {strings.ToUpper(symbol)}}
	if err := c.get(ctx, "/api/v3/ticker/price", q, &out); err != nil {
		return 0, &domain.ProviderError{Op: "price", Symbol: symbol, Err: err}
	}
	p, err := parseDecimal(out.Price)
	if err != nil {
		return 0, &domain.ProviderError{Op: "price", Symbol: symbol, Err: err}
	}
	return p, nil
}

// GetCandles devuelve hasta limit velas cerradas o en curso, de la más antigua a la más reciente.
func (c *Client) GetCandles(ctx context.Context, symbol, interval string, limit int) ([]domain.Candle, error) {
	if limit <= 0 || limit > maxKlines {
		limit = maxKlines
	}
	q := url.Values{
		"symbol":   {strings.ToUpper(symbol)},
		"interval": {interval},
		"limit":    {strconv.Itoa(limit)},
	}

	var raw [][]any
	if err := c.get(ctx, "/api/v3/klines", q, &raw); err != nil {
		return nil, &domain.ProviderError{Op: "candles", Symbol: symbol, Err: err}
	}

	candles := make([]domain.Candle, 0, len(raw))
	for i, row := range raw {
		k, err := parseKline(row)
		if err != nil {
			return nil, &domain.ProviderError{Op: "candles", Symbol: symbol, Err: fmt.Errorf("kline %d: %w", i, err)}
		}
		candles = append(candles, k)
	}
	return candles, nil
}

// parseKline convierte [openTime, open, high, low, close, volume, ...].
func parseKline(row []any) (domain.Candle, error) {
	if len(row) < 6 {
		return domain.Candle{}, fmt.Errorf("expected at least 6 fields, got %d", len(row))
	}
	ms, ok := row[0].(float64)
	if !ok {
		return domain.Candle{}, fmt.Errorf("open time is %T", row[0])
	}

	var vals [5]float64
	for j := range vals {
		s, ok := row[j+1].(string)
		if !ok {
			return domain.Candle{}, fmt.Errorf("field %d is %T", j+1, row[j+1])
		}
		v, err := parseDecimal(s)
		if err != nil {
			return domain.Candle{}, fmt.Errorf("field %d: %w", j+1, err)
		}
		vals[j] = v
	}

	return domain.Candle{
		OpenTime: time.UnixMilli(int64(ms)).UTC(),
		Open:     vals[0],
		High:     vals[1],
		Low:      vals[2],
		Close:    vals[3],
		Volume:   vals[4],
	}, nil
}

// parseDecimal lee los strings decimales de Binance.
func parseDecimal(s string) (float64, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, fmt.Errorf("parse %q: %w", s, err)
	}
	return d.InexactFloat64(), nil
}
