package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func standardRisk(t *testing.T) RiskConfig {
	t.Helper()
	cfg, err := RiskPreset(ProfileStandard)
	require.NoError(t, err)
	return cfg
}

// --- PositionSize ---

func TestPositionSize_CappedByMaxPositionSize(t *testing.T) {
	// risk qty = 10000×0.02/2 = 100; cap = 0.15×10000/100 = 15
	qty := PositionSize(10000, 10000, 100, 98, standardRisk(t))
	assert.InDelta(t, 15.0, qty, 1e-9)
}

func TestPositionSize_RiskBasedWhenBelowCap(t *testing.T) {
	cfg := standardRisk(t)
	// risk qty = 10000×0.02/20 = 10; cap 15
	qty := PositionSize(10000, 10000, 100, 80, cfg)
	assert.InDelta(t, 10.0, qty, 1e-9)
}

func TestPositionSize_ReducedToFitAvailable(t *testing.T) {
	cfg := standardRisk(t)
	qty := PositionSize(10000, 500, 100, 98, cfg)
	assert.InDelta(t, 500/(100*1.001), qty, 1e-9)
	assert.LessOrEqual(t, qty*100*(1+cfg.FeeRate), 500.0+1e-9)
}

func TestPositionSize_Rejects(t *testing.T) {
	cfg := standardRisk(t)
	tests := []struct {
		name                      string
		balance, avail, entry, sl float64
	}{
		{"stop equals entry", 10000, 10000, 100, 100},
		{"no available balance", 10000, 0, 100, 98},
		{"zero balance", 0, 0, 100, 98},
		{"zero entry", 10000, 10000, 0, 98},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, 0.0, PositionSize(tt.balance, tt.avail, tt.entry, tt.sl, cfg))
		})
	}
}

func TestPositionSize_FlooredToStep(t *testing.T) {
	cfg := standardRisk(t)
	cfg.QuantityStep = 0.001
	qty := PositionSize(10000, 10000, 30000, 29250, cfg)
	// cap = 1500/30000 = 0.05; risk qty = 200/750 = 0.2666
	assert.InDelta(t, 0.05, qty, 1e-12)

	cfg.QuantityStep = 1
	assert.Equal(t, 0.0, PositionSize(10000, 10000, 30000, 29250, cfg), "step larger than quantity rejects")
}

func TestFloorToStep(t *testing.T) {
	assert.InDelta(t, 1.23, FloorToStep(1.2399, 0.01), 1e-12)
	assert.InDelta(t, 1.2399, FloorToStep(1.2399, 0), 1e-12)
	assert.Equal(t, 0.0, FloorToStep(0.4, 1))
}

// --- ExitLevels ---

func TestExitLevels(t *testing.T) {
	cfg := standardRisk(t)

	sl, tp := ExitLevels(SideLong, 100, cfg)
	assert.InDelta(t, 97.5, sl, 1e-9)
	assert.InDelta(t, 105.0, tp, 1e-9)

	sl, tp = ExitLevels(SideShort, 100, cfg)
	assert.InDelta(t, 102.5, sl, 1e-9)
	assert.InDelta(t, 95.0, tp, 1e-9)
}

// --- ShouldExit ---

func openLong(entry time.Time) Trade {
	return Trade{
		ID: "t1", Symbol: "BTCUSDT", Side: SideLong,
		EntryPrice: 100, Quantity: 1, EntryTime: entry,
		StopLoss: 97.5, TakeProfit: 105, Status: TradeStatusOpen,
	}
}

func TestShouldExit_PriorityOrder(t *testing.T) {
	cfg := standardRisk(t)
	entry := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)

	tests := []struct {
		name     string
		price    float64
		vol      float64
		now      time.Time
		wantExit bool
		reason   CloseReason
	}{
		{"time limit beats stop", 90, 5, entry.Add(25 * time.Hour), true, ReasonTimeLimit},
		{"volatility beats stop", 90, 3.5, entry.Add(time.Hour), true, ReasonVolatilityEmergency},
		{"stop loss", 97.5, 1, entry.Add(time.Hour), true, ReasonStopLoss},
		{"take profit", 105, 1, entry.Add(time.Hour), true, ReasonTakeProfit},
		{"volatility at multiple does not fire", 100, 3, entry.Add(time.Hour), false, ""},
		{"inside band holds", 101, 0, entry.Add(time.Hour), false, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := ShouldExit(openLong(entry), tt.price, tt.vol, tt.now, cfg)
			assert.Equal(t, tt.wantExit, d.Exit)
			assert.Equal(t, tt.reason, d.Reason)
		})
	}
}

func TestShouldExit_ShortMirrored(t *testing.T) {
	cfg := standardRisk(t)
	entry := time.Now()
	tr := Trade{Side: SideShort, EntryPrice: 100, Quantity: 1, EntryTime: entry, StopLoss: 102.5, TakeProfit: 95}

	assert.Equal(t, ReasonStopLoss, ShouldExit(tr, 103, 0, entry, cfg).Reason)
	assert.Equal(t, ReasonTakeProfit, ShouldExit(tr, 94, 0, entry, cfg).Reason)
	assert.False(t, ShouldExit(tr, 100, 0, entry, cfg).Exit)
}

func TestShouldExit_TrailingRatchetsWithoutExit(t *testing.T) {
	cfg := standardRisk(t)
	entry := time.Now()
	tr := openLong(entry)

	d := ShouldExit(tr, 104, 0, entry, cfg)
	assert.False(t, d.Exit)
	assert.InDelta(t, 104*(1-0.015), d.NewStop, 1e-9)
}

func TestTrailStop_NeverLoosens(t *testing.T) {
	cfg := standardRisk(t)
	tr := openLong(time.Now())
	tr.StopLoss = 103

	// gain 4% > 2%, candidate 102.44 < 103 → unchanged
	stop, moved := TrailStop(tr, 104, cfg)
	assert.False(t, moved)
	assert.Equal(t, 103.0, stop)
}

func TestTrailStop_BelowActivationOrDisabled(t *testing.T) {
	cfg := standardRisk(t)
	tr := openLong(time.Now())

	_, moved := TrailStop(tr, 101.5, cfg)
	assert.False(t, moved, "gain below 2% activation")

	cfg.TrailingStop = false
	_, moved = TrailStop(tr, 110, cfg)
	assert.False(t, moved)
}

func TestTrailStop_Short(t *testing.T) {
	cfg := standardRisk(t)
	tr := Trade{Side: SideShort, EntryPrice: 100, StopLoss: 102.5, TakeProfit: 95}

	stop, moved := TrailStop(tr, 96, cfg)
	assert.True(t, moved)
	assert.InDelta(t, 96*1.015, stop, 1e-9)
}

// --- RiskConfig ---

func TestRiskPresets_AreValid(t *testing.T) {
	for _, name := range RiskProfiles() {
		cfg, err := RiskPreset(name)
		require.NoError(t, err)
		assert.NoError(t, cfg.Validate(), name)
	}
	assert.Equal(t, []string{ProfileActive, ProfileIntraday, ProfileStandard}, RiskProfiles())
}

func TestRiskPreset_Unknown(t *testing.T) {
	_, err := RiskPreset("yolo")
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestRiskConfig_ValidateRejects(t *testing.T) {
	base := standardRisk(t)
	tests := []struct {
		name   string
		mutate func(*RiskConfig)
	}{
		{"negative risk", func(c *RiskConfig) { c.RiskPerTrade = -0.01 }},
		{"zero stop", func(c *RiskConfig) { c.StopLossPct = 0 }},
		{"no positions", func(c *RiskConfig) { c.MaxOpenPositions = 0 }},
		{"trailing without pct", func(c *RiskConfig) { c.TrailingStopPct = 0 }},
		{"fee of 100%", func(c *RiskConfig) { c.FeeRate = 1 }},
		{"zero daily trades", func(c *RiskConfig) { c.MaxDailyTrades = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base
			tt.mutate(&cfg)
			assert.ErrorIs(t, cfg.Validate(), ErrInvalidConfig)
		})
	}
}

// --- Trade / Portfolio ---

func TestTrade_GrossPnL(t *testing.T) {
	long := Trade{Side: SideLong, EntryPrice: 100, Quantity: 15}
	short := Trade{Side: SideShort, EntryPrice: 100, Quantity: 15}

	assert.InDelta(t, 60.0, long.GrossPnL(104), 1e-9)
	assert.InDelta(t, -60.0, short.GrossPnL(104), 1e-9)
	assert.InDelta(t, 0.04, long.GainPct(104), 1e-12)
	assert.InDelta(t, -0.04, short.GainPct(104), 1e-12)
}

func TestPortfolio_UpdateDrawdown(t *testing.T) {
	p := NewPortfolio(10000)

	p.CurrentBalance = 11000
	p.UpdateDrawdown()
	assert.Equal(t, 11000.0, p.PeakBalance)
	assert.Equal(t, 0.0, p.CurrentDrawdown)

	p.CurrentBalance = 9900
	p.UpdateDrawdown()
	assert.InDelta(t, 0.1, p.CurrentDrawdown, 1e-12)
	assert.InDelta(t, 0.1, p.MaxDrawdown, 1e-12)

	p.CurrentBalance = 10450
	p.UpdateDrawdown()
	assert.Equal(t, 11000.0, p.PeakBalance, "peak never decreases")
	assert.InDelta(t, 0.05, p.CurrentDrawdown, 1e-12)
	assert.InDelta(t, 0.1, p.MaxDrawdown, 1e-12)
}

func TestPortfolio_Ratios(t *testing.T) {
	p := NewPortfolio(10000)
	assert.Equal(t, 0.0, p.WinRate())

	p.TotalTrades, p.WinningTrades = 4, 3
	p.CurrentBalance = 10500
	assert.InDelta(t, 0.75, p.WinRate(), 1e-12)
	assert.InDelta(t, 0.05, p.ReturnPct(), 1e-12)
}
