package indicators

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"btcalert/config"
	"btcalert/internal/fetch"
	"btcalert/models"
)

func cryptoConfig() *config.Config {
	return &config.Config{IndexSymbol: "BTC-USD", StrikeGap: 1000}
}

func syntheticBars(n int) []models.Bar {
	end := time.Date(2025, 5, 1, 12, 0, 0, 0, time.UTC)
	bars := fetch.GenerateSynthetic("5m", "2d", 42, end)
	if n < len(bars) {
		bars = bars[:n]
	}
	return bars
}

func TestComputeProducesFiniteRows(t *testing.T) {
	bars := syntheticBars(576)
	rows := NewEngine(cryptoConfig()).Compute(bars)

	require.NotEmpty(t, rows)
	assert.Less(t, len(rows), len(bars), "warm-up rows must be dropped")

	for i := range rows {
		require.True(t, rows[i].IsFinite(), "row %d at %s holds a non-finite column", i, rows[i].Time)
	}
}

func TestComputeColumnRanges(t *testing.T) {
	rows := NewEngine(cryptoConfig()).Compute(syntheticBars(576))
	require.NotEmpty(t, rows)

	for i := range rows {
		r := &rows[i]
		assert.GreaterOrEqual(t, r.RSI14, 0.0)
		assert.LessOrEqual(t, r.RSI14, 100.0)
		assert.GreaterOrEqual(t, r.StochK, 0.0)
		assert.LessOrEqual(t, r.StochK, 100.0)
		assert.GreaterOrEqual(t, r.WilliamsR, -100.0)
		assert.LessOrEqual(t, r.WilliamsR, 0.0)
		assert.GreaterOrEqual(t, r.MomentumConfluence, -4.0)
		assert.LessOrEqual(t, r.MomentumConfluence, 4.0)
		assert.Contains(t, []float64{0, 1, 2}, r.VolatilityRegime)
		assert.GreaterOrEqual(t, r.BBUpper, r.BBLower)
		assert.Greater(t, r.ATR, 0.0)
		assert.GreaterOrEqual(t, r.SupportLevel, 0.0)
		assert.GreaterOrEqual(t, r.ResistanceLevel, r.SupportLevel)
	}
}

func TestComputeCryptoSessionFeatures(t *testing.T) {
	rows := NewEngine(cryptoConfig()).Compute(syntheticBars(576))
	require.NotEmpty(t, rows)

	for i := range rows {
		r := &rows[i]
		assert.Equal(t, float64(r.Time.Hour()), r.Hour)
		wd := r.Time.Weekday()
		wantWeekend := 0.0
		if wd == time.Saturday || wd == time.Sunday {
			wantWeekend = 1.0
		}
		assert.Equal(t, wantWeekend, r.IsWeekend)
	}
}

func TestComputeNonCryptoSkipsSessionFeatures(t *testing.T) {
	cfg := &config.Config{IndexSymbol: "NIFTY", StrikeGap: 50}
	rows := NewEngine(cfg).Compute(syntheticBars(576))
	require.NotEmpty(t, rows)

	for i := range rows {
		assert.Zero(t, rows[i].CryptoFearGreed)
		assert.Zero(t, rows[i].Hour)
		assert.Zero(t, rows[i].IsWeekend)
	}
}

func TestComputeShortSeriesIsEmptyNotPanic(t *testing.T) {
	for _, n := range []int{0, 1, 5, 30} {
		bars := syntheticBars(n)
		rows := NewEngine(cryptoConfig()).Compute(bars)
		assert.Empty(t, rows, "%d bars cannot fill the longest warm-up window", n)
	}
}

func TestComputeLagsMatchHistory(t *testing.T) {
	rows := NewEngine(cryptoConfig()).Compute(syntheticBars(576))
	require.Greater(t, len(rows), 6)

	// Surviving rows are contiguous, so lag columns must equal the value
	// from k rows earlier.
	for i := 5; i < len(rows); i++ {
		assert.Equal(t, rows[i-1].Close, rows[i].CloseLag1, "row %d", i)
		assert.Equal(t, rows[i-3].Close, rows[i].CloseLag3, "row %d", i)
		assert.Equal(t, rows[i-5].Close, rows[i].CloseLag5, "row %d", i)
	}
}

func TestConfluenceVoteTable(t *testing.T) {
	for name, tt := range map[string]struct {
		row  models.FeatureRow
		want float64
	}{
		"all bullish": {
			models.FeatureRow{RSI14: 25, MACD: 2, MACDSignal: 1, StochK: 15, EMACrossShort: 1}, 4,
		},
		"all bearish": {
			models.FeatureRow{RSI14: 75, MACD: 1, MACDSignal: 2, StochK: 85, EMACrossShort: 0}, -4,
		},
		"overbought oscillators vote against a bullish trend": {
			models.FeatureRow{RSI14: 80, MACD: 2, MACDSignal: 1, StochK: 90, EMACrossShort: 1}, 0,
		},
		"oversold oscillators vote against a bearish trend": {
			models.FeatureRow{RSI14: 20, MACD: 1, MACDSignal: 2, StochK: 10, EMACrossShort: 0}, 0,
		},
		"neutral oscillators abstain": {
			models.FeatureRow{RSI14: 50, MACD: 2, MACDSignal: 1, StochK: 50, EMACrossShort: 1}, 2,
		},
		"neutral oscillators abstain bearish": {
			models.FeatureRow{RSI14: 50, MACD: 1, MACDSignal: 2, StochK: 50, EMACrossShort: 0}, -2,
		},
	} {
		t.Run(name, func(t *testing.T) {
			row := tt.row
			assert.Equal(t, tt.want, confluence(&row))
		})
	}
}

func TestRSISeries(t *testing.T) {
	rising := make([]float64, 50)
	for i := range rising {
		rising[i] = 100 + float64(i)
	}
	out := rsi(rising, 14)
	assert.Equal(t, 100.0, out[len(out)-1], "monotone rise must saturate RSI")

	short := rsi([]float64{1, 2, 3}, 14)
	for _, v := range short {
		assert.Equal(t, 50.0, v, "short series must degrade to neutral")
	}
}

func TestCleanRowsForwardFillLimit(t *testing.T) {
	rows := make([]models.FeatureRow, 7)
	for i := range rows {
		for _, col := range models.FeatureColumns {
			col.Set(&rows[i], 1.0)
		}
		rows[i].Time = time.Date(2025, 5, 1, 0, i, 0, 0, time.UTC)
	}
	// A 3-gap is fillable; a 4-gap starting at row 2 is not.
	rows[1].RSI14 = math.NaN()
	rows[2].ATR = math.Inf(1)
	rows[3].ATR = math.NaN()
	rows[4].ATR = math.NaN()
	rows[5].ATR = math.NaN()

	out := CleanRows(rows)
	require.Len(t, out, 6, "only the 4th consecutive gap row is dropped")
	assert.Equal(t, 1.0, out[1].RSI14, "single gap forward-filled")
	assert.Equal(t, 1.0, out[2].ATR, "infinity treated as a gap and filled")
}

func TestPercentile(t *testing.T) {
	values := []float64{1, 2, 3, 4, 5}
	assert.Equal(t, 3.0, percentile(values, 0.5))
	assert.Equal(t, 1.0, percentile(values, 0))
	assert.Equal(t, 5.0, percentile(values, 1))
	assert.True(t, math.IsNaN(percentile(nil, 0.5)))
}
