package fetch

import (
	"math"
	"math/rand"
	"time"

	"btcalert/models"
)

const (
	syntheticBasePrice  = 65000.0
	syntheticFloorPrice = 1000.0
	syntheticDrift      = 0.0001
)

// GenerateSynthetic produces a deterministic seeded random-walk OHLCV
// series ending at end. Volatility is scaled to the interval (short
// intervals move less per bar). Identical seed, interval, period and end
// yield identical output; downstream stages always receive plausible bars:
// high >= max(open, close), low <= min(open, close), positive volume.
func GenerateSynthetic(interval, period string, seed int64, end time.Time) []models.Bar {
	periods := barCount(interval, period, 0)
	step := intervalDuration(interval)
	rng := rand.New(rand.NewSource(seed))

	volatility := 0.02
	if interval == "1m" || interval == "5m" {
		volatility = 0.005
	}

	prices := make([]float64, periods)
	prices[0] = syntheticBasePrice
	for i := 1; i < periods; i++ {
		ret := rng.NormFloat64()*volatility + syntheticDrift
		prices[i] = math.Max(prices[i-1]*(1+ret), syntheticFloorPrice)
	}

	start := end.Add(-time.Duration(periods-1) * step)
	bars := make([]models.Bar, periods)
	for i := 0; i < periods; i++ {
		closePx := prices[i]
		openPx := closePx
		if i > 0 {
			openPx = prices[i-1]
		}

		barRange := closePx * 0.01
		high := math.Max(openPx, closePx) + rng.Float64()*barRange
		low := math.Min(openPx, closePx) - rng.Float64()*barRange
		volume := 100 + rng.Float64()*900

		bars[i] = models.Bar{
			Time:   start.Add(time.Duration(i) * step),
			Open:   round2(openPx),
			High:   round2(high),
			Low:    round2(low),
			Close:  round2(closePx),
			Volume: round2(volume),
		}
	}
	return bars
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
