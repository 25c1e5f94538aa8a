package domain

import "time"

// Portfolio is the running account state of one engine instance.
// All risk figures are fractions of PeakBalance.
type Portfolio struct {
	InitialBalance   float64
	CurrentBalance   float64
	AvailableBalance float64 // CurrentBalance minus value locked in open positions
	Positions        map[string]float64
	TotalPnL         float64
	TotalTrades      int
	WinningTrades    int
	LosingTrades     int
	PeakBalance      float64
	CurrentDrawdown  float64
	MaxDrawdown      float64
}

// NewPortfolio seeds a portfolio with a starting balance.
func NewPortfolio(initial float64) Portfolio {
	return Portfolio{
		InitialBalance:   initial,
		CurrentBalance:   initial,
		AvailableBalance: initial,
		Positions:        make(map[string]float64),
		PeakBalance:      initial,
	}
}

// UpdateDrawdown applies the monotonic peak rule after a balance mutation.
func (p *Portfolio) UpdateDrawdown() {
	if p.CurrentBalance > p.PeakBalance {
		p.PeakBalance = p.CurrentBalance
	}
	p.CurrentDrawdown = 0
	if p.PeakBalance > 0 && p.CurrentBalance < p.PeakBalance {
		p.CurrentDrawdown = (p.PeakBalance - p.CurrentBalance) / p.PeakBalance
	}
	if p.CurrentDrawdown > p.MaxDrawdown {
		p.MaxDrawdown = p.CurrentDrawdown
	}
}

// WinRate returns winning/total as a fraction, 0 without trades.
func (p Portfolio) WinRate() float64 {
	if p.TotalTrades == 0 {
		return 0
	}
	return float64(p.WinningTrades) / float64(p.TotalTrades)
}

// ReturnPct returns the total return vs. the initial balance as a fraction.
func (p Portfolio) ReturnPct() float64 {
	if p.InitialBalance <= 0 {
		return 0
	}
	return (p.CurrentBalance - p.InitialBalance) / p.InitialBalance
}

// PortfolioSummary is the read-only view exposed to presentation and persistence.
type PortfolioSummary struct {
	Timestamp        time.Time
	InitialBalance   float64
	Balance          float64
	AvailableBalance float64
	TotalPnL         float64
	ReturnPct        float64
	TotalTrades      int
	WinningTrades    int
	LosingTrades     int
	WinRate          float64
	PeakBalance      float64
	MaxDrawdown      float64
	CurrentDrawdown  float64
	DailyPnL         float64
	DailyTrades      int
	Day              time.Time // calendar day the daily counters belong to
	OpenPositions    int
}

// CycleReport is everything a single orchestrator tick produced.
type CycleReport struct {
	Started        time.Time
	Duration       time.Duration
	Events         []TradeEvent
	ProviderErrors int
	EntriesPaused  bool
	Summary        PortfolioSummary
}

// Count returns how many events of the given type the cycle emitted.
func (r CycleReport) Count(t EventType) int {
	n := 0
	for _, ev := range r.Events {
		if ev.Type == t {
			n++
		}
	}
	return n
}
