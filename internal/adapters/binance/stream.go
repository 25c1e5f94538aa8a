package binance

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/alejandrodnm/papertrader/internal/domain"
)

const (
	defaultWSBase   = "wss://stream.binance.com:9443"
	wsReadTimeout   = 60 * time.Second
	wsMaxBackoff    = 30 * time.Second
	defaultMaxAge   = 30 * time.Second
	wsReadLimit     = 1 << 20
	minReconnectGap = time.Second
)

type quote struct {
	price float64
	at    time.Time
}

// Stream keeps the latest mini-ticker price per symbol from the combined
// websocket stream and serves GetPrice from it while fresh. Candles and
// stale prices fall back to the REST client.
type Stream struct {
	wsBase  string
	symbols []string
	rest    *Client
	maxAge  time.Duration
	now     func() time.Time

	mu     sync.RWMutex
	prices map[string]quote
}

// NewStream creates a price stream for symbols. Empty wsBase uses production.
func NewStream(wsBase string, symbols []string, rest *Client, maxAge time.Duration) *Stream {
	if wsBase == "" {
		wsBase = defaultWSBase
	}
	if maxAge <= 0 {
		maxAge = defaultMaxAge
	}
	return &Stream{
		wsBase:  strings.TrimRight(wsBase, "/"),
		symbols: symbols,
		rest:    rest,
		maxAge:  maxAge,
		now:     time.Now,
		prices:  make(map[string]quote),
	}
}

// URL returns the combined stream endpoint for the configured symbols.
func (s *Stream) URL() string {
	streams := make([]string, len(s.symbols))
	for i, sym := range s.symbols {
		streams[i] = strings.ToLower(sym) + "@miniTicker"
	}
	return s.wsBase + "/stream?streams=" + strings.Join(streams, "/")
}

// Run connects and reconnects with exponential backoff until ctx is done.
func (s *Stream) Run(ctx context.Context) error {
	backoff := minReconnectGap
	for {
		connectedAt := time.Now()
		err := s.session(ctx)
		if ctx.Err() != nil {
			return nil
		}
		if time.Since(connectedAt) > wsMaxBackoff {
			backoff = minReconnectGap
		}
		slog.Warn("binance: price stream disconnected, reconnecting", "err", err, "in", backoff)

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(backoff):
		}
		backoff = min(backoff*2, wsMaxBackoff)
	}
}

// session runs one websocket connection until it fails or ctx ends.
func (s *Stream) session(ctx context.Context) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, s.URL(), nil)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	defer conn.Close()
	slog.Info("binance: price stream connected", "symbols", len(s.symbols))

	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	conn.SetReadLimit(wsReadLimit)
	for {
		if err := conn.SetReadDeadline(time.Now().Add(wsReadTimeout)); err != nil {
			return err
		}
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("read: %w", err)
		}
		if err := s.handle(msg); err != nil {
			slog.Debug("binance: ignoring stream message", "err", err)
		}
	}
}

// miniTicker es el payload de <symbol>@miniTicker dentro del envelope combinado.
type miniTicker struct {
	Event     string `json:"e"`
	EventTime int64  `json:"E"`
	Symbol    string `json:"s"`
	Close     string `json:"c"`
}

type envelope struct {
	Stream string     `json:"stream"`
	Data   miniTicker `json:"data"`
}

func (s *Stream) handle(msg []byte) error {
	var env envelope
	if err := json.Unmarshal(msg, &env); err != nil {
		return fmt.Errorf("decode: %w", err)
	}
	if env.Data.Event != "24hrMiniTicker" || env.Data.Symbol == "" {
		return fmt.Errorf("unexpected event %q", env.Data.Event)
	}
	p, err := parseDecimal(env.Data.Close)
	if err != nil {
		return err
	}
	if p <= 0 {
		return fmt.Errorf("non-positive price for %s", env.Data.Symbol)
	}

	s.mu.Lock()
	s.prices[env.Data.Symbol] = quote{price: p, at: s.now()}
	s.mu.Unlock()
	return nil
}

// GetPrice devuelve el precio del stream si es reciente; si no, consulta REST.
func (s *Stream) GetPrice(ctx context.Context, symbol string) (float64, error) {
	s.mu.RLock()
	q, ok := s.prices[strings.ToUpper(symbol)]
	s.mu.RUnlock()
	if ok && s.now().Sub(q.at) <= s.maxAge {
		return q.price, nil
	}
	return s.rest.GetPrice(ctx, symbol)
}

// GetCandles delega en REST.
func (s *Stream) GetCandles(ctx context.Context, symbol, interval string, limit int) ([]domain.Candle, error) {
	return s.rest.GetCandles(ctx, symbol, interval, limit)
}
