// Package indicators derives the full feature column set from an OHLCV
// series: momentum, trend, volatility, volume, structure and regime
// groups, lagged values, rolling statistics and trailing returns.
package indicators

import (
	"math"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"btcalert/config"
	"btcalert/models"
)

// Engine computes feature rows from raw bars. It is stateless between
// calls; every Compute sees the full series.
type Engine struct {
	cfg    *config.Config
	logger zerolog.Logger
}

func NewEngine(cfg *config.Config) *Engine {
	return &Engine{
		cfg:    cfg,
		logger: log.With().Str("component", "indicator_engine").Logger(),
	}
}

// Compute derives every feature column and post-processes the result:
// Inf becomes NaN, short gaps are forward-filled (limit 3), and rows
// still holding non-finite values are dropped. The returned rows are
// fully finite. Short inputs yield fewer rows, possibly none; Compute
// never fails.
func (e *Engine) Compute(bars []models.Bar) []models.FeatureRow {
	n := len(bars)
	if n == 0 {
		return nil
	}

	highs := make([]float64, n)
	lows := make([]float64, n)
	closes := make([]float64, n)
	volumes := make([]float64, n)
	for i, b := range bars {
		highs[i] = b.High
		lows[i] = b.Low
		closes[i] = b.Close
		volumes[i] = b.Volume
	}

	// Momentum
	rsi14 := rsi(closes, 14)
	rsi21 := rsi(closes, 21)
	rsi7 := rsi(closes, 7)
	rsiMomentum := diff(rsi14)
	priceMomentum := pctChange(closes, 1)
	stochK, stochD := stochastic(highs, lows, closes, 14, 3)
	williams := williamsR(highs, lows, closes, 14)

	// Trend. The fast 8/21/5 MACD drives signals; the standard 12/26/9
	// parameterization rides along as a confirmation feature.
	macdLine, macdSignal, macdHist := macdSeries(closes, 8, 21, 5)
	macdStd, macdSignalStd, _ := macdSeries(closes, 12, 26, 9)
	ema9 := ema(closes, 9)
	ema21 := ema(closes, 21)
	ema50 := ema(closes, 50)
	ema200 := ema(closes, 200)

	// Volatility
	bbMid := sma(closes, 20)
	bbStd := rollingStd(closes, 20)
	tr := trueRange(highs, lows, closes)
	atr := sma(tr, 14)
	kcMid := ema(typicalPrice(highs, lows, closes), 20)
	kcATR := sma(tr, 10)

	// Volume
	vwapLine := vwap(highs, lows, closes, volumes)
	obv := onBalanceVolume(closes, volumes)
	obvEMA := ema(obv, 20)
	volumeROC := pctChange(volumes, 10)

	// Structure
	support := rollingMin(closes, 20)
	resistance := rollingMax(closes, 20)

	// Regime
	adx := adxSeries(highs, lows, closes, 14)
	chop := choppinessIndex(highs, lows, closes, 14)

	// Lags and rolling statistics
	closeLags := map[int][]float64{}
	rsiLags := map[int][]float64{}
	macdLags := map[int][]float64{}
	for _, k := range []int{1, 2, 3, 5} {
		closeLags[k] = lag(closes, k)
		rsiLags[k] = lag(rsi14, k)
		macdLags[k] = lag(macdLine, k)
	}
	closeSMA5 := sma(closes, 5)
	closeSMA20 := sma(closes, 20)
	closeStd20 := rollingStd(closes, 20)
	closeSkew20 := rollingSkew(closes, 20)
	closeKurt20 := rollingKurt(closes, 20)

	returns := map[int][]float64{}
	vols := map[int][]float64{}
	oneBar := pctChange(closes, 1)
	for _, p := range []int{3, 5, 10, 20} {
		returns[p] = pctChange(closes, p)
		vols[p] = rollingStd(oneBar, p)
	}

	crypto := e.cfg.IsCrypto()
	rows := make([]models.FeatureRow, n)
	for i := range bars {
		r := &rows[i]
		r.Time = bars[i].Time
		r.Open = bars[i].Open
		r.High = bars[i].High
		r.Low = bars[i].Low
		r.Close = bars[i].Close
		r.Volume = bars[i].Volume

		r.RSI14 = rsi14[i]
		r.RSI21 = rsi21[i]
		r.RSI7 = rsi7[i]
		r.RSIMomentum = rsiMomentum[i]
		r.PriceMomentum = priceMomentum[i]
		r.StochK = stochK[i]
		r.StochD = stochD[i]
		r.WilliamsR = williams[i]

		r.MACD = macdLine[i]
		r.MACDSignal = macdSignal[i]
		r.MACDHistogram = macdHist[i]
		r.MACDStd = macdStd[i]
		r.MACDSignalStd = macdSignalStd[i]
		r.EMA9 = ema9[i]
		r.EMA21 = ema21[i]
		r.EMA50 = ema50[i]
		r.EMA200 = ema200[i]
		r.EMACrossShort = flag(ema9[i] > ema21[i])
		r.EMACrossLong = flag(ema50[i] > ema200[i])

		r.BBMid = bbMid[i]
		r.BBUpper = bbMid[i] + 2*bbStd[i]
		r.BBLower = bbMid[i] - 2*bbStd[i]
		r.BBWidth = (r.BBUpper - r.BBLower) / bbMid[i]
		r.BBPosition = (closes[i] - r.BBLower) / (r.BBUpper - r.BBLower)
		r.KCMid = kcMid[i]
		r.KCUpper = kcMid[i] + 2*kcATR[i]
		r.KCLower = kcMid[i] - 2*kcATR[i]
		r.ATR = atr[i]
		r.ATRPercent = atr[i] / closes[i] * 100
		r.VolatilityBreakout = flag(closes[i] > r.BBUpper || closes[i] < r.BBLower)

		r.VWAP = vwapLine[i]
		r.VWAPDistance = (closes[i] - vwapLine[i]) / vwapLine[i] * 100
		r.OBV = obv[i]
		r.OBVEMA = obvEMA[i]
		r.VolumeROC = volumeROC[i]

		r.HigherHigh = flag(i >= 2 && highs[i] > highs[i-1] && highs[i-1] > highs[i-2])
		r.LowerLow = flag(i >= 2 && lows[i] < lows[i-1] && lows[i-1] < lows[i-2])
		r.SupportLevel = support[i]
		r.ResistanceLevel = resistance[i]
		r.SupportDistance = (closes[i] - support[i]) / closes[i]
		r.ResistanceDistance = (resistance[i] - closes[i]) / closes[i]

		r.ADX = adx[i]
		r.TrendingMarket = flag(adx[i] > 25)
		r.Choppiness = chop[i]

		if crypto {
			r.CryptoFearGreed = (100 - rsi14[i]) * r.ATRPercent / 100
			wd := bars[i].Time.Weekday()
			r.IsWeekend = flag(wd == time.Saturday || wd == time.Sunday)
			hour := float64(bars[i].Time.Hour())
			r.Hour = hour
			r.IsUSHours = flag(hour >= 9 && hour <= 16)
			r.IsAsianHours = flag(hour >= 1 && hour <= 8)
		}

		r.MomentumConfluence = confluence(r)

		r.CloseLag1 = closeLags[1][i]
		r.CloseLag2 = closeLags[2][i]
		r.CloseLag3 = closeLags[3][i]
		r.CloseLag5 = closeLags[5][i]
		r.RSILag1 = rsiLags[1][i]
		r.RSILag2 = rsiLags[2][i]
		r.RSILag3 = rsiLags[3][i]
		r.RSILag5 = rsiLags[5][i]
		r.MACDLag1 = macdLags[1][i]
		r.MACDLag2 = macdLags[2][i]
		r.MACDLag3 = macdLags[3][i]
		r.MACDLag5 = macdLags[5][i]

		r.CloseSMA5 = closeSMA5[i]
		r.CloseSMA20 = closeSMA20[i]
		r.CloseStd20 = closeStd20[i]
		r.CloseSkew20 = closeSkew20[i]
		r.CloseKurt20 = closeKurt20[i]

		r.Return3d = returns[3][i]
		r.Return5d = returns[5][i]
		r.Return10d = returns[10][i]
		r.Return20d = returns[20][i]
		r.Volatility3d = vols[3][i]
		r.Volatility5d = vols[5][i]
		r.Volatility10d = vols[10][i]
		r.Volatility20d = vols[20][i]
	}

	// Volatility regime terciles are computed before cleanup so the bucket
	// boundaries reflect the whole series, not the surviving tail.
	atrPct := make([]float64, n)
	for i := range rows {
		atrPct[i] = rows[i].ATRPercent
	}
	p33 := percentile(atrPct, 0.33)
	p67 := percentile(atrPct, 0.67)
	for i := range rows {
		switch {
		case math.IsNaN(rows[i].ATRPercent):
			rows[i].VolatilityRegime = nan
		case rows[i].ATRPercent <= p33:
			rows[i].VolatilityRegime = 0
		case rows[i].ATRPercent <= p67:
			rows[i].VolatilityRegime = 1
		default:
			rows[i].VolatilityRegime = 2
		}
	}

	cleaned := CleanRows(rows)
	e.logger.Info().
		Int("input_bars", n).
		Int("feature_rows", len(cleaned)).
		Msg("Computed indicator features")
	return cleaned
}

// confluence sums four momentum votes, -4 (all bearish) to +4. RSI and
// stochastic vote contrarian: overbought is a bearish vote, oversold a
// bullish one, and the neutral band abstains. MACD-vs-signal and the
// short EMA cross always take a side.
func confluence(r *models.FeatureRow) float64 {
	score := 0.0
	switch {
	case r.RSI14 > 70:
		score--
	case r.RSI14 < 30:
		score++
	}
	if r.MACD > r.MACDSignal {
		score++
	} else {
		score--
	}
	switch {
	case r.StochK > 80:
		score--
	case r.StochK < 20:
		score++
	}
	if r.EMACrossShort == 1 {
		score++
	} else {
		score--
	}
	return score
}

func flag(cond bool) float64 {
	if cond {
		return 1
	}
	return 0
}

func typicalPrice(highs, lows, closes []float64) []float64 {
	out := make([]float64, len(closes))
	for i := range closes {
		out[i] = (highs[i] + lows[i] + closes[i]) / 3
	}
	return out
}

// CleanRows post-processes feature rows per column: infinities become
// NaN, gaps of up to 3 consecutive NaNs are forward-filled from the last
// finite value, and any row still holding a non-finite column is dropped.
func CleanRows(rows []models.FeatureRow) []models.FeatureRow {
	for _, col := range models.FeatureColumns {
		lastValid := nan
		gap := 0
		for i := range rows {
			v := col.Get(&rows[i])
			if math.IsInf(v, 0) {
				v = nan
			}
			if math.IsNaN(v) {
				gap++
				if gap <= 3 && !math.IsNaN(lastValid) {
					col.Set(&rows[i], lastValid)
				} else {
					col.Set(&rows[i], nan)
				}
				continue
			}
			col.Set(&rows[i], v)
			lastValid = v
			gap = 0
		}
	}

	out := rows[:0:0]
	for i := range rows {
		if rows[i].IsFinite() {
			out = append(out, rows[i])
		}
	}
	return out
}
