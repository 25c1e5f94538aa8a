package indicators

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alejandrodnm/papertrader/internal/domain"
)

func closes() []float64 {
	return []float64{102, 105, 106, 108, 110, 111, 113, 114, 116, 118}
}

func TestSMA(t *testing.T) {
	sma, err := SMA(closes(), 5)
	require.NoError(t, err)
	assert.True(t, math.IsNaN(sma[3]))
	// 102,105,106,108,110 => 106.2
	assert.InDelta(t, 106.2, sma[4], 1e-9)
	// 111,113,114,116,118 => 114.4
	assert.InDelta(t, 114.4, sma[9], 1e-9)

	_, err = SMA(closes(), 0)
	assert.Error(t, err)
}

func TestEMA_SeededWithSMA(t *testing.T) {
	ema, err := EMA(closes(), 5)
	require.NoError(t, err)
	assert.InDelta(t, 106.2, ema[4], 1e-9)
	// (111-106.2)*(1/3)+106.2
	assert.InDelta(t, 107.8, ema[5], 1e-9)
	assert.Greater(t, ema[9], ema[5])
}

func TestEMA_SkipsLeadingNaN(t *testing.T) {
	in := []float64{math.NaN(), math.NaN(), 1, 2, 3}
	ema, err := EMA(in, 3)
	require.NoError(t, err)
	assert.True(t, math.IsNaN(ema[3]))
	assert.InDelta(t, 2.0, ema[4], 1e-9)
}

func TestRSI(t *testing.T) {
	up := make([]float64, 20)
	for i := range up {
		up[i] = float64(100 + i)
	}
	rsi, err := RSI(up, 14)
	require.NoError(t, err)
	assert.True(t, math.IsNaN(rsi[13]))
	assert.Equal(t, 100.0, rsi[19])

	flat := make([]float64, 20)
	for i := range flat {
		flat[i] = 100
	}
	rsi, err = RSI(flat, 14)
	require.NoError(t, err)
	assert.Equal(t, 50.0, rsi[19])

	alt := make([]float64, 30)
	for i := range alt {
		alt[i] = 100 + float64(i%2)
	}
	rsi, err = RSI(alt, 14)
	require.NoError(t, err)
	assert.InDelta(t, 50.0, rsi[29], 5)
}

func TestBollinger(t *testing.T) {
	in := []float64{1, 2, 3, 4, 5}
	b, err := Bollinger(in, 5, 2)
	require.NoError(t, err)
	sd := math.Sqrt(2)
	assert.InDelta(t, 3.0, b.Middle[4], 1e-9)
	assert.InDelta(t, 3+2*sd, b.Upper[4], 1e-9)
	assert.InDelta(t, 3-2*sd, b.Lower[4], 1e-9)
}

func TestMACD(t *testing.T) {
	_, _, err := MACD(closes(), 26, 12, 9)
	assert.Error(t, err)

	in := make([]float64, 60)
	for i := range in {
		in[i] = 100 + float64(i)
	}
	line, sig, err := MACD(in, 12, 26, 9)
	require.NoError(t, err)
	assert.True(t, math.IsNaN(sig[32]))
	assert.False(t, math.IsNaN(sig[33]))
	assert.Greater(t, line[59], 0.0, "fast above slow in an uptrend")
}

func TestEWMAVariance(t *testing.T) {
	assert.Zero(t, EWMAVariance(nil, 0.15))
	r := []float64{0.01, 0.01, 0.01}
	assert.InDelta(t, 0.0001, EWMAVariance(r, 0.15), 1e-12)

	// a late shock dominates the forecast
	calm := append(make([]float64, 50), 0.05)
	assert.InDelta(t, 0.15*0.05*0.05, EWMAVariance(calm, 0.15), 1e-12)
}

func series(n int, price func(i int) float64) []domain.Candle {
	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	out := make([]domain.Candle, n)
	for i := range out {
		p := price(i)
		out[i] = domain.Candle{
			OpenTime: start.Add(time.Duration(i) * 5 * time.Minute),
			Open:     p, High: p * 1.001, Low: p * 0.999, Close: p,
			Volume: 1000,
		}
	}
	return out
}

func TestCalculator_Compute(t *testing.T) {
	c := NewCalculator(Config{})
	candles := series(100, func(i int) float64 { return 100 + math.Sin(float64(i)/5)*3 })

	ind, err := c.Compute("BTCUSDT", candles)
	require.NoError(t, err)

	assert.Equal(t, "BTCUSDT", ind.Symbol)
	assert.Equal(t, 100, ind.Observations)
	assert.Equal(t, candles[99].OpenTime, ind.Timestamp)

	cur := ind.Current
	assert.InDelta(t, candles[99].Close, cur.Close, 1e-9)
	assert.InDelta(t, candles[98].Close, ind.Previous.Close, 1e-9)
	for _, v := range []float64{cur.FastMA, cur.SlowMA, cur.RSI, cur.BBUpper, cur.BBLower, cur.MACD, cur.MACDSignal, cur.VolumeAvg} {
		assert.False(t, math.IsNaN(v))
	}
	assert.Greater(t, cur.BBUpper, cur.BBLower)
	assert.InDelta(t, 1000.0, cur.VolumeAvg, 1e-9)
	assert.Greater(t, ind.VolatilityRatio, 0.0)
}

func TestCalculator_ShortSeries(t *testing.T) {
	c := NewCalculator(DefaultConfig())
	require.Equal(t, 35, c.Warmup())

	_, err := c.Compute("ETHUSDT", series(30, func(int) float64 { return 50 }))
	assert.ErrorIs(t, err, ErrInsufficientData)

	// justo en el warmup ya hay snapshots completos
	ind, err := c.Compute("ETHUSDT", series(35, func(int) float64 { return 50 }))
	require.NoError(t, err)
	assert.Equal(t, 35, ind.Observations)
	assert.InDelta(t, 50.0, ind.Current.FastMA, 1e-9)

	_, err = c.Compute("ETHUSDT", nil)
	assert.ErrorIs(t, err, ErrNoCandles)
}

func TestCalculator_VolatilityShockRaisesRatio(t *testing.T) {
	c := NewCalculator(DefaultConfig())
	calm := series(200, func(i int) float64 { return 100 + float64(i%2)*0.1 })
	shock := series(200, func(i int) float64 {
		if i >= 195 {
			return 100 + float64(i%2)*3
		}
		return 100 + float64(i%2)*0.1
	})

	a, err := c.Compute("X", calm)
	require.NoError(t, err)
	b, err := c.Compute("X", shock)
	require.NoError(t, err)

	assert.InDelta(t, 1.0, a.VolatilityRatio, 0.05)
	assert.Greater(t, b.VolatilityRatio, 1.5)
}

func TestConfig_Validate(t *testing.T) {
	assert.NoError(t, DefaultConfig().Validate())

	cfg := DefaultConfig()
	cfg.FastPeriod = 30
	assert.ErrorIs(t, cfg.Validate(), domain.ErrInvalidConfig)

	cfg = DefaultConfig()
	cfg.EWMAAlpha = 1
	assert.ErrorIs(t, cfg.Validate(), domain.ErrInvalidConfig)
}
