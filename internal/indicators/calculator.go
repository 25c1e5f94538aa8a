package indicators

import (
	"errors"
	"fmt"
	"math"

	"github.com/alejandrodnm/papertrader/internal/domain"
)

var (
	// ErrNoCandles is returned when the series is empty.
	ErrNoCandles = errors.New("no candles")
	// ErrInsufficientData is returned when the series is shorter than Warmup.
	ErrInsufficientData = errors.New("series shorter than indicator warmup")
)

// Config holds indicator periods.
type Config struct {
	FastPeriod   int     `yaml:"fast_period"`
	SlowPeriod   int     `yaml:"slow_period"`
	SignalPeriod int     `yaml:"signal_period"`
	RSIPeriod    int     `yaml:"rsi_period"`
	BBPeriod     int     `yaml:"bb_period"`
	BBStdDev     float64 `yaml:"bb_stddev"`
	VolumePeriod int     `yaml:"volume_period"`
	EWMAAlpha    float64 `yaml:"ewma_alpha"`
}

// DefaultConfig: EMA 12/26, MACD signal 9, RSI 14, BB 20×2, volume 20,
// EWMA alpha 0.15.
func DefaultConfig() Config {
	return Config{
		FastPeriod:   12,
		SlowPeriod:   26,
		SignalPeriod: 9,
		RSIPeriod:    14,
		BBPeriod:     20,
		BBStdDev:     2,
		VolumePeriod: 20,
		EWMAAlpha:    0.15,
	}
}

// Validate rejects periods the calculator cannot use.
func (c Config) Validate() error {
	if c.FastPeriod <= 0 || c.SlowPeriod <= c.FastPeriod || c.SignalPeriod <= 0 {
		return fmt.Errorf("%w: indicators need 0 < fast < slow and signal > 0", domain.ErrInvalidConfig)
	}
	if c.RSIPeriod <= 0 || c.BBPeriod <= 1 || c.VolumePeriod <= 0 {
		return fmt.Errorf("%w: indicator periods must be positive", domain.ErrInvalidConfig)
	}
	if c.BBStdDev <= 0 || c.EWMAAlpha <= 0 || c.EWMAAlpha >= 1 {
		return fmt.Errorf("%w: bb_stddev must be > 0 and ewma_alpha in (0, 1)", domain.ErrInvalidConfig)
	}
	return nil
}

// Calculator implements ports.IndicatorCalculator.
type Calculator struct {
	cfg Config
}

// NewCalculator returns a calculator with cfg; zero fields take defaults.
func NewCalculator(cfg Config) *Calculator {
	def := DefaultConfig()
	if cfg.FastPeriod == 0 {
		cfg.FastPeriod = def.FastPeriod
	}
	if cfg.SlowPeriod == 0 {
		cfg.SlowPeriod = def.SlowPeriod
	}
	if cfg.SignalPeriod == 0 {
		cfg.SignalPeriod = def.SignalPeriod
	}
	if cfg.RSIPeriod == 0 {
		cfg.RSIPeriod = def.RSIPeriod
	}
	if cfg.BBPeriod == 0 {
		cfg.BBPeriod = def.BBPeriod
	}
	if cfg.BBStdDev == 0 {
		cfg.BBStdDev = def.BBStdDev
	}
	if cfg.VolumePeriod == 0 {
		cfg.VolumePeriod = def.VolumePeriod
	}
	if cfg.EWMAAlpha == 0 {
		cfg.EWMAAlpha = def.EWMAAlpha
	}
	return &Calculator{cfg: cfg}
}

// Warmup is the number of candles after which every indicator is defined.
func (c *Calculator) Warmup() int {
	return max(c.cfg.SlowPeriod+c.cfg.SignalPeriod-1, c.cfg.RSIPeriod+1, c.cfg.BBPeriod, c.cfg.VolumePeriod) + 1
}

// Compute derives the latest and previous indicator snapshots. A series
// shorter than Warmup fails with ErrInsufficientData.
func (c *Calculator) Compute(symbol string, candles []domain.Candle) (domain.Indicators, error) {
	if len(candles) == 0 {
		return domain.Indicators{}, fmt.Errorf("indicators.Compute %s: %w", symbol, ErrNoCandles)
	}

	if len(candles) < c.Warmup() {
		return domain.Indicators{}, fmt.Errorf("indicators.Compute %s: %d of %d candles: %w",
			symbol, len(candles), c.Warmup(), ErrInsufficientData)
	}

	ind := domain.Indicators{
		Symbol:       symbol,
		Observations: len(candles),
		Timestamp:    candles[len(candles)-1].OpenTime,
	}

	closes := make([]float64, len(candles))
	volumes := make([]float64, len(candles))
	for i, k := range candles {
		closes[i] = k.Close
		volumes[i] = k.Volume
	}

	fast, err := EMA(closes, c.cfg.FastPeriod)
	if err != nil {
		return ind, fmt.Errorf("indicators.Compute %s: fast ema: %w", symbol, err)
	}
	slow, err := EMA(closes, c.cfg.SlowPeriod)
	if err != nil {
		return ind, fmt.Errorf("indicators.Compute %s: slow ema: %w", symbol, err)
	}
	rsi, err := RSI(closes, c.cfg.RSIPeriod)
	if err != nil {
		return ind, fmt.Errorf("indicators.Compute %s: rsi: %w", symbol, err)
	}
	bands, err := Bollinger(closes, c.cfg.BBPeriod, c.cfg.BBStdDev)
	if err != nil {
		return ind, fmt.Errorf("indicators.Compute %s: bollinger: %w", symbol, err)
	}
	macd, signal, err := MACD(closes, c.cfg.FastPeriod, c.cfg.SlowPeriod, c.cfg.SignalPeriod)
	if err != nil {
		return ind, fmt.Errorf("indicators.Compute %s: macd: %w", symbol, err)
	}
	volAvg, err := SMA(volumes, c.cfg.VolumePeriod)
	if err != nil {
		return ind, fmt.Errorf("indicators.Compute %s: volume avg: %w", symbol, err)
	}

	at := func(i int) domain.IndicatorSnapshot {
		return domain.IndicatorSnapshot{
			Close:      closes[i],
			FastMA:     fast[i],
			SlowMA:     slow[i],
			RSI:        rsi[i],
			BBUpper:    bands.Upper[i],
			BBMiddle:   bands.Middle[i],
			BBLower:    bands.Lower[i],
			MACD:       macd[i],
			MACDSignal: signal[i],
			Volume:     volumes[i],
			VolumeAvg:  volAvg[i],
		}
	}
	last := len(candles) - 1
	ind.Current = at(last)
	ind.Previous = at(last - 1)
	ind.VolatilityRatio = c.volatilityRatio(closes)
	return ind, nil
}

// volatilityRatio compares the EWMA volatility forecast against the plain
// standard deviation of the same returns window. 0 means no reading.
func (c *Calculator) volatilityRatio(closes []float64) float64 {
	returns := LogReturns(closes)
	baseline := StdDev(returns)
	if baseline == 0 {
		return 0
	}
	forecast := math.Sqrt(EWMAVariance(returns, c.cfg.EWMAAlpha))
	return forecast / baseline
}
