package domain

import "time"

// Candle is one OHLCV bar, oldest-first in every series.
type Candle struct {
	OpenTime time.Time
	Open     float64
	High     float64
	Low      float64
	Close    float64
	Volume   float64
}

// IndicatorSnapshot is the indicator state at a single observation.
type IndicatorSnapshot struct {
	Close      float64
	FastMA     float64
	SlowMA     float64
	RSI        float64
	BBUpper    float64
	BBMiddle   float64
	BBLower    float64
	MACD       float64
	MACDSignal float64
	Volume     float64
	VolumeAvg  float64
}

// Indicators bundles the latest and previous observations the scorer needs.
// VolatilityRatio is the short-horizon volatility forecast divided by its
// baseline; 0 means no reading.
type Indicators struct {
	Symbol          string
	Current         IndicatorSnapshot
	Previous        IndicatorSnapshot
	Observations    int
	VolatilityRatio float64
	Timestamp       time.Time
}

// BandPosition returns where Close sits inside the Bollinger band
// (0 = lower, 1 = upper). Returns 0.5 when the band is degenerate.
func (s IndicatorSnapshot) BandPosition() float64 {
	width := s.BBUpper - s.BBLower
	if width <= 0 {
		return 0.5
	}
	return (s.Close - s.BBLower) / width
}

// VolumeRatio returns Volume / VolumeAvg, 0 without an average.
func (s IndicatorSnapshot) VolumeRatio() float64 {
	if s.VolumeAvg <= 0 {
		return 0
	}
	return s.Volume / s.VolumeAvg
}
