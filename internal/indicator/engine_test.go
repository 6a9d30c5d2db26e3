package indicator

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gcaaa31928/daily-stock-analysis/internal/domain"
)

func seriesOf(closes []float64) []domain.Candle {
	out := make([]domain.Candle, len(closes))
	for i, c := range closes {
		out[i] = domain.Candle{
			Date:   time.Now().AddDate(0, 0, i-len(closes)),
			Open:   c,
			High:   c + 1,
			Low:    c - 1,
			Close:  c,
			Volume: 1000,
		}
	}
	return out
}

func TestEngine_Enrich_Basic(t *testing.T) {
	e := NewEngine()
	candles := seriesOf([]float64{10, 11, 12, 13, 14, 15, 16, 17, 18, 19, 20})

	out := e.Enrich(candles)
	require.Len(t, out, len(candles))

	last := out[len(out)-1]
	assert.Greater(t, last.MA5, 0.0)
	assert.Greater(t, last.MA10, 0.0)
	assert.InDelta(t, 18.0, last.MA5, 0.01) // mean of 16..20
}

func TestEngine_Enrich_SupportResistance(t *testing.T) {
	e := NewEngine()
	candles := seriesOf([]float64{10, 20, 5, 15})

	out := e.Enrich(candles)
	last := out[len(out)-1]
	assert.Equal(t, 4.0, last.Support)    // min low across window = 5-1
	assert.Equal(t, 21.0, last.Resistance) // max high across window = 20+1
}

func TestEngine_Enrich_Empty(t *testing.T) {
	e := NewEngine()
	assert.Nil(t, e.Enrich(nil))
}

func TestEngine_Enrich_VolumeRatio(t *testing.T) {
	e := NewEngine()
	candles := seriesOf([]float64{10, 10, 10, 10, 10})
	candles[4].Volume = 5000 // spike on the last day

	out := e.Enrich(candles)
	last := out[len(out)-1]
	assert.Greater(t, last.VolumeRatio, 1.0)
}

func TestEngine_Enrich_VolumeRatioUndefinedIsNeutral(t *testing.T) {
	e := NewEngine()

	// A single-row series has no prior window; the ratio reads neutral.
	out := e.Enrich(seriesOf([]float64{10}))
	require.Len(t, out, 1)
	assert.Equal(t, 1.0, out[0].VolumeRatio)

	// Same for the first row of a longer series, and for a row whose
	// trailing window traded zero volume.
	candles := seriesOf([]float64{10, 11, 12})
	candles[0].Volume = 0
	candles[1].Volume = 0
	out = e.Enrich(candles)
	assert.Equal(t, 1.0, out[0].VolumeRatio)
	assert.Equal(t, 1.0, out[1].VolumeRatio) // window is the zero-volume day 0
}
