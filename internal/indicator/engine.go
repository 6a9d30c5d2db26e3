// Package indicator computes the technical indicators layered onto a raw
// candle series: moving averages, volume ratio, bias, and a simple
// support/resistance estimate.
package indicator

import (
	"github.com/markcheno/go-talib"
	"gonum.org/v1/gonum/stat"

	"github.com/gcaaa31928/daily-stock-analysis/internal/domain"
)

// Engine enriches a candle series with the indicator set the analysis
// pipeline and narrative generation both read from.
type Engine struct{}

// NewEngine constructs an Engine. It holds no state: every call is a pure
// function of its input series.
func NewEngine() *Engine {
	return &Engine{}
}

// Enrich computes MA5/MA10/MA20, volume ratio, bias-to-MA5, and a
// support/resistance band for every candle in candles, using as much
// trailing history as is available for each point (early candles get
// partial-window averages rather than being dropped).
func (e *Engine) Enrich(candles []domain.Candle) []domain.EnrichedCandle {
	if len(candles) == 0 {
		return nil
	}

	closes := make([]float64, len(candles))
	volumes := make([]float64, len(candles))
	for i, c := range candles {
		closes[i] = c.Close
		volumes[i] = c.Volume
	}

	ma5 := movingAverage(closes, 5)
	ma10 := movingAverage(closes, 10)
	ma20 := movingAverage(closes, 20)

	out := make([]domain.EnrichedCandle, len(candles))
	for i, c := range candles {
		enriched := domain.EnrichedCandle{
			Candle: c,
			MA5:    ma5[i],
			MA10:   ma10[i],
			MA20:   ma20[i],
		}

		enriched.VolumeRatio = volumeRatio(volumes, i, 5)
		if ma5[i] > 0 {
			enriched.BiasMA5 = (c.Close - ma5[i]) / ma5[i]
		}

		support, resistance := supportResistance(candles, i, 20)
		enriched.Support = support
		enriched.Resistance = resistance

		out[i] = enriched
	}

	return out
}

// movingAverage computes a simple moving average of period length at
// every index, using talib.Sma over the full series and falling back to
// a partial-window gonum mean for the leading indices talib can't fill.
func movingAverage(closes []float64, period int) []float64 {
	out := make([]float64, len(closes))
	if len(closes) == 0 {
		return out
	}

	// talib.Sma indexes past the end of a series shorter than period, so
	// it only runs once the window can fill at least once.
	var sma []float64
	if len(closes) >= period {
		sma = talib.Sma(closes, period)
	}
	for i := range closes {
		if i < len(sma) && !isNaN(sma[i]) && sma[i] != 0 {
			out[i] = sma[i]
			continue
		}
		// talib.Sma returns 0 for indices before the window fills; use a
		// partial window instead of leaving the indicator undefined.
		start := 0
		if i-period+1 > 0 {
			start = i - period + 1
		}
		out[i] = stat.Mean(closes[start:i+1], nil)
	}
	return out
}

// volumeRatio is today's volume divided by the mean volume of the
// preceding `period` sessions (excluding today). When the ratio is
// undefined — no prior history, or a zero-volume window — it is 1.0,
// a neutral "in line with average" reading.
func volumeRatio(volumes []float64, i, period int) float64 {
	if i == 0 {
		return 1.0
	}
	start := 0
	if i-period > 0 {
		start = i - period
	}
	window := volumes[start:i]
	if len(window) == 0 {
		return 1.0
	}
	avg := stat.Mean(window, nil)
	if avg == 0 {
		return 1.0
	}
	return volumes[i] / avg
}

// supportResistance estimates support as the lowest low and resistance as
// the highest high over the trailing `period` sessions including today.
func supportResistance(candles []domain.Candle, i, period int) (support, resistance float64) {
	start := 0
	if i-period+1 > 0 {
		start = i - period + 1
	}
	window := candles[start : i+1]

	support = window[0].Low
	resistance = window[0].High
	for _, c := range window[1:] {
		if c.Low < support {
			support = c.Low
		}
		if c.High > resistance {
			resistance = c.High
		}
	}
	return support, resistance
}

func isNaN(f float64) bool {
	return f != f
}
