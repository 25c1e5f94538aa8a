// Package indicators computes the technical indicators the signal scorer
// consumes from an oldest-first candle series.
package indicators

import (
	"fmt"
	"math"
)

// SMA returns the simple moving average series of values. Entries before
// the warmup (index < period-1) are NaN.
func SMA(values []float64, period int) ([]float64, error) {
	if period <= 0 {
		return nil, fmt.Errorf("period must be positive, got %d", period)
	}
	out := nanSeries(len(values))
	sum := 0.0
	for i, v := range values {
		sum += v
		if i >= period {
			sum -= values[i-period]
		}
		if i >= period-1 {
			out[i] = sum / float64(period)
		}
	}
	return out, nil
}

// EMA returns the exponential moving average series, seeded with the SMA of
// the first period values. Entries before the seed are NaN; NaN inputs are
// skipped until the first valid value.
func EMA(values []float64, period int) ([]float64, error) {
	if period <= 0 {
		return nil, fmt.Errorf("period must be positive, got %d", period)
	}
	out := nanSeries(len(values))
	multiplier := 2.0 / float64(period+1)

	start := 0
	for start < len(values) && math.IsNaN(values[start]) {
		start++
	}
	if len(values)-start < period {
		return out, nil
	}

	seed := 0.0
	for i := start; i < start+period; i++ {
		seed += values[i]
	}
	ema := seed / float64(period)
	out[start+period-1] = ema

	for i := start + period; i < len(values); i++ {
		ema = (values[i]-ema)*multiplier + ema
		out[i] = ema
	}
	return out, nil
}

// RSI returns Wilder's relative strength index series.
func RSI(values []float64, period int) ([]float64, error) {
	if period <= 0 {
		return nil, fmt.Errorf("period must be positive, got %d", period)
	}
	out := nanSeries(len(values))
	if len(values) <= period {
		return out, nil
	}

	var gain, loss float64
	for i := 1; i <= period; i++ {
		d := values[i] - values[i-1]
		if d > 0 {
			gain += d
		} else {
			loss -= d
		}
	}
	gain /= float64(period)
	loss /= float64(period)
	out[period] = rsiValue(gain, loss)

	for i := period + 1; i < len(values); i++ {
		d := values[i] - values[i-1]
		up, down := 0.0, 0.0
		if d > 0 {
			up = d
		} else {
			down = -d
		}
		gain = (gain*float64(period-1) + up) / float64(period)
		loss = (loss*float64(period-1) + down) / float64(period)
		out[i] = rsiValue(gain, loss)
	}
	return out, nil
}

func rsiValue(gain, loss float64) float64 {
	if loss == 0 {
		if gain == 0 {
			return 50
		}
		return 100
	}
	return 100 - 100/(1+gain/loss)
}

// Bands holds a Bollinger band series.
type Bands struct {
	Upper, Middle, Lower []float64
}

// Bollinger returns middle = SMA(period) and upper/lower at k population
// standard deviations.
func Bollinger(values []float64, period int, k float64) (Bands, error) {
	mid, err := SMA(values, period)
	if err != nil {
		return Bands{}, err
	}
	b := Bands{Upper: nanSeries(len(values)), Middle: mid, Lower: nanSeries(len(values))}
	for i := period - 1; i < len(values); i++ {
		sd := stddev(values[i-period+1:i+1], mid[i])
		b.Upper[i] = mid[i] + k*sd
		b.Lower[i] = mid[i] - k*sd
	}
	return b, nil
}

// MACD returns the MACD line (fast EMA − slow EMA) and its signal EMA.
func MACD(values []float64, fast, slow, signal int) (line, sig []float64, err error) {
	if fast >= slow {
		return nil, nil, fmt.Errorf("fast period %d must be below slow period %d", fast, slow)
	}
	f, err := EMA(values, fast)
	if err != nil {
		return nil, nil, err
	}
	s, err := EMA(values, slow)
	if err != nil {
		return nil, nil, err
	}
	line = nanSeries(len(values))
	for i := range values {
		line[i] = f[i] - s[i]
	}
	sig, err = EMA(line, signal)
	if err != nil {
		return nil, nil, err
	}
	return line, sig, nil
}

// LogReturns returns ln(v[i]/v[i-1]); len is len(values)-1.
func LogReturns(values []float64) []float64 {
	if len(values) < 2 {
		return nil
	}
	out := make([]float64, 0, len(values)-1)
	for i := 1; i < len(values); i++ {
		if values[i-1] <= 0 || values[i] <= 0 {
			out = append(out, 0)
			continue
		}
		out = append(out, math.Log(values[i]/values[i-1]))
	}
	return out
}

// EWMAVariance returns the exponentially weighted variance of returns with
// smoothing factor alpha (RiskMetrics recursion, seeded with the first
// squared return).
func EWMAVariance(returns []float64, alpha float64) float64 {
	if len(returns) == 0 {
		return 0
	}
	v := returns[0] * returns[0]
	for _, r := range returns[1:] {
		v = alpha*r*r + (1-alpha)*v
	}
	return v
}

// StdDev is the population standard deviation of values.
func StdDev(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	mean := 0.0
	for _, v := range values {
		mean += v
	}
	mean /= float64(len(values))
	return stddev(values, mean)
}

func stddev(values []float64, mean float64) float64 {
	if len(values) == 0 {
		return 0
	}
	ss := 0.0
	for _, v := range values {
		d := v - mean
		ss += d * d
	}
	return math.Sqrt(ss / float64(len(values)))
}

func nanSeries(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = math.NaN()
	}
	return out
}
