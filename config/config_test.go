package config_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alejandrodnm/papertrader/config"
	"github.com/alejandrodnm/papertrader/internal/domain"
)

func TestLoad_RepoConfig(t *testing.T) {
	cfg, err := config.Load("config.yaml")
	require.NoError(t, err)

	assert.Equal(t, []string{"BTCUSDT", "ETHUSDT", "SOLUSDT"}, cfg.Engine.Symbols)
	assert.Equal(t, 60*time.Second, cfg.Engine.TickInterval)
	assert.Equal(t, 10000.0, cfg.Engine.InitialBalance)
	assert.True(t, cfg.Engine.DrainOnStop)
	assert.Equal(t, domain.ProfileStandard, cfg.Risk.Profile)

	risk, err := cfg.Risk.Resolve()
	require.NoError(t, err)
	preset, _ := domain.RiskPreset(domain.ProfileStandard)
	assert.Equal(t, preset, risk)
}

func TestParse_Defaults(t *testing.T) {
	cfg, err := config.Parse([]byte(`{}`))
	require.NoError(t, err)

	assert.Equal(t, []string{"BTCUSDT", "ETHUSDT", "SOLUSDT"}, cfg.Engine.Symbols)
	assert.Equal(t, "5m", cfg.Engine.CandleInterval)
	assert.Equal(t, 200, cfg.Engine.Lookback)
	assert.Equal(t, "UTC", cfg.Engine.Timezone)
	assert.Equal(t, "papertrader.db", cfg.Storage.DSN)
	assert.Equal(t, "/metrics", cfg.Metrics.Path)
	assert.Empty(t, cfg.Metrics.Addr, "metrics disabled by default")
	assert.Equal(t, domain.DefaultScorerConfig(), cfg.Scorer)

	loc, err := cfg.Location()
	require.NoError(t, err)
	assert.Equal(t, time.UTC, loc)
}

func TestParse_RiskOverridesApplyOnPreset(t *testing.T) {
	cfg, err := config.Parse([]byte(`
risk:
  profile: intraday
  stop_loss_pct: 0.03
  max_holding: 2h
`))
	require.NoError(t, err)

	risk, err := cfg.Risk.Resolve()
	require.NoError(t, err)

	preset, _ := domain.RiskPreset(domain.ProfileIntraday)
	assert.Equal(t, 0.03, risk.StopLossPct)
	assert.Equal(t, 2*time.Hour, risk.MaxHolding)
	assert.Equal(t, preset.TakeProfitPct, risk.TakeProfitPct, "untouched fields keep the preset")
	assert.Equal(t, preset.MaxOpenPositions, risk.MaxOpenPositions)
}

func TestParse_ScorerPartialOverride(t *testing.T) {
	cfg, err := config.Parse([]byte(`
scorer:
  threshold: 4
`))
	require.NoError(t, err)
	assert.Equal(t, 4.0, cfg.Scorer.Threshold)
	assert.Equal(t, domain.DefaultScorerConfig().CrossoverWeight, cfg.Scorer.CrossoverWeight)
}

func TestParse_Invalid(t *testing.T) {
	cases := map[string]string{
		"unknown profile": "risk: {profile: yolo}",
		"bad override":    "risk: {profile: standard, stop_loss_pct: 1.5}",
		"bad timezone":    "engine: {timezone: Mars/Olympus}",
		"bad log level":   "log: {level: loud}",
		"bad indicators":  "indicators: {fast_period: 30, slow_period: 26}",
		"below warmup":    "scorer: {min_observations: 10}",
		"neg balance":     "engine: {initial_balance: -100}",
		"neg lookback":    "engine: {lookback: -5}",
		"neg workers":     "engine: {workers: -1}",
		"neg tick":        "engine: {tick_interval: -1s}",
		"neg stream age":  "binance: {stream_max_age: -1s}",
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := config.Parse([]byte(doc))
			require.Error(t, err)
			assert.True(t, errors.Is(err, domain.ErrInvalidConfig), "got %v", err)
		})
	}
}

func TestParse_MalformedYAML(t *testing.T) {
	_, err := config.Parse([]byte("engine: [unclosed"))
	assert.Error(t, err)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("PAPER_SYMBOLS", " ethusdt, bnbusdt ,")
	t.Setenv("PAPER_PROFILE", "active")
	t.Setenv("PAPER_DB", ":memory:")
	t.Setenv("PAPER_BALANCE", "2500")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("METRICS_ADDR", ":9100")

	path := filepath.Join(t.TempDir(), "cfg.yaml")
	require.NoError(t, os.WriteFile(path, []byte("engine: {symbols: [BTCUSDT]}\n"), 0o644))

	cfg, err := config.Load(path)
	require.NoError(t, err)

	assert.Equal(t, []string{"ETHUSDT", "BNBUSDT"}, cfg.Engine.Symbols)
	assert.Equal(t, domain.ProfileActive, cfg.Risk.Profile)
	assert.Equal(t, ":memory:", cfg.Storage.DSN)
	assert.Equal(t, 2500.0, cfg.Engine.InitialBalance)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, ":9100", cfg.Metrics.Addr)
}

func TestLoad_MalformedBalanceEnv(t *testing.T) {
	t.Setenv("PAPER_BALANCE", "10k")

	path := filepath.Join(t.TempDir(), "cfg.yaml")
	require.NoError(t, os.WriteFile(path, []byte("log: {level: error}\n"), 0o644))

	_, err := config.Load(path)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrInvalidConfig)
	assert.Contains(t, err.Error(), "PAPER_BALANCE")
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := config.Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestSplitSymbols(t *testing.T) {
	assert.Equal(t, []string{"BTCUSDT", "ETHUSDT"}, config.SplitSymbols("btcusdt,,ETHUSDT "))
	assert.Nil(t, config.SplitSymbols(" , "))
}
