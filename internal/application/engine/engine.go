package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/alejandrodnm/papertrader/internal/domain"
	"github.com/alejandrodnm/papertrader/internal/ports"
)

const (
	defaultTickInterval = 60 * time.Second
	defaultCallTimeout  = 10 * time.Second
	defaultLookback     = 200
	defaultCandles      = "5m"
	defaultStrategy     = "technical_confluence"
)

// Config holds the engine settings. Risk and Scorer are immutable once the
// engine is built.
type Config struct {
	Symbols        []string // entry scan order
	CandleInterval string
	Lookback       int
	TickInterval   time.Duration
	InitialBalance float64
	CallTimeout    time.Duration // per provider/store call
	Workers        int
	Strategy       string
	Location       *time.Location // day boundaries for the governor
	DrainOnStop    bool
	StopFile       string // empty disables

	Risk   domain.RiskConfig
	Scorer domain.ScorerConfig
}

// Validate rejects configurations the engine cannot run with.
func (c Config) Validate() error {
	if len(c.Symbols) == 0 {
		return fmt.Errorf("%w: at least one symbol is required", domain.ErrInvalidConfig)
	}
	seen := make(map[string]bool, len(c.Symbols))
	for _, s := range c.Symbols {
		if s == "" || seen[s] {
			return fmt.Errorf("%w: empty or duplicated symbol %q", domain.ErrInvalidConfig, s)
		}
		seen[s] = true
	}
	if c.InitialBalance <= 0 {
		return fmt.Errorf("%w: initial balance must be > 0", domain.ErrInvalidConfig)
	}
	if c.Lookback < c.Scorer.MinObservations {
		return fmt.Errorf("%w: lookback %d is below scorer min_observations %d",
			domain.ErrInvalidConfig, c.Lookback, c.Scorer.MinObservations)
	}
	if err := c.Risk.Validate(); err != nil {
		return err
	}
	return c.Scorer.Validate()
}

func (c *Config) setDefaults() {
	if c.TickInterval <= 0 {
		c.TickInterval = defaultTickInterval
	}
	if c.CallTimeout <= 0 {
		c.CallTimeout = defaultCallTimeout
	}
	if c.Lookback <= 0 {
		c.Lookback = defaultLookback
	}
	if c.CandleInterval == "" {
		c.CandleInterval = defaultCandles
	}
	if c.Strategy == "" {
		c.Strategy = defaultStrategy
	}
	if c.Location == nil {
		c.Location = time.UTC
	}
}

// Option customizes an Engine.
type Option func(*Engine)

// WithClock replaces time.Now, mainly for tests.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithObservers registers receivers for every cycle report.
func WithObservers(obs ...ports.CycleObserver) Option {
	return func(e *Engine) { e.observers = append(e.observers, obs...) }
}

// WithIDGenerator replaces the uuid trade id generator.
func WithIDGenerator(gen func() string) Option {
	return func(e *Engine) { e.newID = gen }
}

// Engine is the position and risk lifecycle engine. Ticks are serialized;
// all state mutations happen inside a tick (or Drain/Close), reads through
// Summary and OpenTrades are safe from other goroutines.
type Engine struct {
	cfg       Config
	market    ports.MarketData
	calc      ports.IndicatorCalculator
	store     ports.TradeStore // nil disables persistence
	observers []ports.CycleObserver
	now       func() time.Time
	newID     func() string

	tickMu sync.Mutex

	mu        sync.RWMutex
	ledger    *Ledger
	governor  *Governor
	open      map[string]*domain.Trade
	closed    map[string]struct{}
	lastPrice map[string]float64

	stopOnce sync.Once
	stopCh   chan struct{}
}

// New validates cfg and builds an engine. store may be nil (dry run).
func New(
	cfg Config,
	market ports.MarketData,
	calc ports.IndicatorCalculator,
	store ports.TradeStore,
	opts ...Option,
) (*Engine, error) {
	cfg.setDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("engine.New: %w", err)
	}
	if market == nil || calc == nil {
		return nil, fmt.Errorf("engine.New: %w: market data and indicator calculator are required", domain.ErrInvalidConfig)
	}

	e := &Engine{
		cfg:       cfg,
		market:    market,
		calc:      calc,
		store:     store,
		now:       time.Now,
		newID:     uuid.NewString,
		open:      make(map[string]*domain.Trade),
		closed:    make(map[string]struct{}),
		lastPrice: make(map[string]float64),
		stopCh:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.ledger = NewLedger(cfg.InitialBalance)
	e.governor = NewGovernor(cfg.Risk, cfg.Location, e.now())
	return e, nil
}

// Config returns the effective configuration after defaults.
func (e *Engine) Config() Config {
	return e.cfg
}

// Summary returns a read-only view of the portfolio and the daily counters.
func (e *Engine) Summary() domain.PortfolioSummary {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.summaryLocked()
}

func (e *Engine) summaryLocked() domain.PortfolioSummary {
	p := e.ledger.p
	return domain.PortfolioSummary{
		Timestamp:        e.now(),
		InitialBalance:   p.InitialBalance,
		Balance:          p.CurrentBalance,
		AvailableBalance: p.AvailableBalance,
		TotalPnL:         p.TotalPnL,
		ReturnPct:        p.ReturnPct(),
		TotalTrades:      p.TotalTrades,
		WinningTrades:    p.WinningTrades,
		LosingTrades:     p.LosingTrades,
		WinRate:          p.WinRate(),
		PeakBalance:      p.PeakBalance,
		MaxDrawdown:      p.MaxDrawdown,
		CurrentDrawdown:  p.CurrentDrawdown,
		DailyPnL:         e.governor.DailyPnL(),
		DailyTrades:      e.governor.DailyTrades(),
		Day:              e.governor.Day(),
		OpenPositions:    len(e.open),
	}
}

// Portfolio returns a copy of the ledger aggregate.
func (e *Engine) Portfolio() domain.Portfolio {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.ledger.Portfolio()
}

// OpenTrades returns copies of the open trades, oldest first.
func (e *Engine) OpenTrades() []domain.Trade {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]domain.Trade, 0, len(e.open))
	for _, t := range e.sortedOpenLocked() {
		out = append(out, *t)
	}
	return out
}

// LastPrice returns the most recent price seen for symbol.
func (e *Engine) LastPrice(symbol string) (float64, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	p, ok := e.lastPrice[symbol]
	return p, ok
}

func (e *Engine) sortedOpenLocked() []*domain.Trade {
	trades := make([]*domain.Trade, 0, len(e.open))
	for _, t := range e.open {
		trades = append(trades, t)
	}
	sort.Slice(trades, func(i, j int) bool {
		if !trades[i].EntryTime.Equal(trades[j].EntryTime) {
			return trades[i].EntryTime.Before(trades[j].EntryTime)
		}
		return trades[i].ID < trades[j].ID
	})
	return trades
}

// Resume restores the latest snapshot and the open trades from the store.
// Must be called before the first cycle.
func (e *Engine) Resume(ctx context.Context) error {
	if e.store == nil {
		return nil
	}

	snapCtx, cancel := context.WithTimeout(ctx, e.cfg.CallTimeout)
	snap, ok, err := e.store.LatestSnapshot(snapCtx)
	cancel()
	if err != nil {
		return fmt.Errorf("engine.Resume: load snapshot: %w", err)
	}

	openCtx, cancel := context.WithTimeout(ctx, e.cfg.CallTimeout)
	trades, err := e.store.LoadOpenTrades(openCtx)
	cancel()
	if err != nil {
		return fmt.Errorf("engine.Resume: load open trades: %w", err)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if ok {
		e.ledger.restore(snap)
		if e.governor.restore(snap.Day, snap.DailyPnL, snap.DailyTrades) {
			slog.Info("engine: restored daily counters", "daily_pnl", snap.DailyPnL, "daily_trades", snap.DailyTrades)
		}
	}
	for i := range trades {
		t := trades[i]
		if !t.IsOpen() {
			continue
		}
		e.ledger.reserve(t)
		e.open[t.ID] = &t
	}

	slog.Info("engine: resumed",
		"snapshot", ok,
		"balance", fmt.Sprintf("$%.2f", e.ledger.Balance()),
		"open_trades", len(e.open),
	)
	return nil
}

// Stop requests a graceful shutdown. The in-flight tick completes first.
func (e *Engine) Stop() {
	e.stopOnce.Do(func() { close(e.stopCh) })
}

func (e *Engine) saveTrade(ctx context.Context, t domain.Trade) {
	if e.store == nil {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, e.cfg.CallTimeout)
	defer cancel()
	if err := e.store.SaveTrade(ctx, t); err != nil {
		slog.Warn("engine: persist trade failed", "trade_id", t.ID, "symbol", t.Symbol, "err", err)
	}
}

func (e *Engine) saveSnapshot(ctx context.Context, s domain.PortfolioSummary) {
	if e.store == nil {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, e.cfg.CallTimeout)
	defer cancel()
	if err := e.store.SavePortfolioSnapshot(ctx, s); err != nil {
		slog.Warn("engine: persist snapshot failed", "err", err)
	}
}
