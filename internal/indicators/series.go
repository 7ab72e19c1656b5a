package indicators

import (
	"math"
	"sort"
)

// Series helpers operate on aligned float64 slices; NaN marks positions
// where insufficient history exists. The engine's post-processing decides
// what survives.

var nan = math.NaN()

func sma(values []float64, window int) []float64 {
	out := nanSlice(len(values))
	if window <= 0 || len(values) < window {
		return out
	}
	var sum float64
	for i, v := range values {
		sum += v
		if i >= window {
			sum -= values[i-window]
		}
		if i >= window-1 {
			out[i] = sum / float64(window)
		}
	}
	return out
}

// rollingStd is the sample standard deviation over a trailing window.
func rollingStd(values []float64, window int) []float64 {
	out := nanSlice(len(values))
	if window < 2 || len(values) < window {
		return out
	}
	for i := window - 1; i < len(values); i++ {
		out[i] = stddev(values[i-window+1 : i+1])
	}
	return out
}

func stddev(window []float64) float64 {
	n := float64(len(window))
	if n < 2 {
		return nan
	}
	var mean float64
	for _, v := range window {
		mean += v
	}
	mean /= n
	var ss float64
	for _, v := range window {
		d := v - mean
		ss += d * d
	}
	return math.Sqrt(ss / (n - 1))
}

// rollingSkew is the adjusted Fisher-Pearson sample skewness.
func rollingSkew(values []float64, window int) []float64 {
	out := nanSlice(len(values))
	if window < 3 || len(values) < window {
		return out
	}
	for i := window - 1; i < len(values); i++ {
		w := values[i-window+1 : i+1]
		n := float64(window)
		s := stddev(w)
		if s == 0 {
			out[i] = 0
			continue
		}
		var mean float64
		for _, v := range w {
			mean += v
		}
		mean /= n
		var m3 float64
		for _, v := range w {
			z := (v - mean) / s
			m3 += z * z * z
		}
		out[i] = n / ((n - 1) * (n - 2)) * m3
	}
	return out
}

// rollingKurt is the sample excess kurtosis with bias correction.
func rollingKurt(values []float64, window int) []float64 {
	out := nanSlice(len(values))
	if window < 4 || len(values) < window {
		return out
	}
	for i := window - 1; i < len(values); i++ {
		w := values[i-window+1 : i+1]
		n := float64(window)
		s := stddev(w)
		if s == 0 {
			out[i] = 0
			continue
		}
		var mean float64
		for _, v := range w {
			mean += v
		}
		mean /= n
		var m4 float64
		for _, v := range w {
			z := (v - mean) / s
			m4 += z * z * z * z
		}
		out[i] = n*(n+1)/((n-1)*(n-2)*(n-3))*m4 - 3*(n-1)*(n-1)/((n-2)*(n-3))
	}
	return out
}

func rollingMin(values []float64, window int) []float64 {
	out := nanSlice(len(values))
	for i := window - 1; i < len(values); i++ {
		m := values[i]
		for j := i - window + 1; j < i; j++ {
			if values[j] < m {
				m = values[j]
			}
		}
		out[i] = m
	}
	return out
}

func rollingMax(values []float64, window int) []float64 {
	out := nanSlice(len(values))
	for i := window - 1; i < len(values); i++ {
		m := values[i]
		for j := i - window + 1; j < i; j++ {
			if values[j] > m {
				m = values[j]
			}
		}
		out[i] = m
	}
	return out
}

// ema seeds with the simple average of the first full window past any
// leading NaNs, then applies the standard recursive smoothing.
func ema(values []float64, period int) []float64 {
	out := nanSlice(len(values))
	first := 0
	for first < len(values) && math.IsNaN(values[first]) {
		first++
	}
	if period <= 0 || len(values)-first < period {
		return out
	}

	var seed float64
	for i := first; i < first+period; i++ {
		seed += values[i]
	}
	seed /= float64(period)
	out[first+period-1] = seed

	k := 2.0 / float64(period+1)
	for i := first + period; i < len(values); i++ {
		out[i] = values[i]*k + out[i-1]*(1-k)
	}
	return out
}

// rsi uses Wilder's smoothing. With insufficient history the whole series
// degrades to the neutral value 50 instead of erroring.
func rsi(closes []float64, period int) []float64 {
	n := len(closes)
	if n < period+1 {
		return fillSlice(n, 50.0)
	}

	out := nanSlice(n)
	var gains, losses float64
	for i := 1; i <= period; i++ {
		change := closes[i] - closes[i-1]
		if change > 0 {
			gains += change
		} else {
			losses -= change
		}
	}
	avgGain := gains / float64(period)
	avgLoss := losses / float64(period)
	out[period] = rsiValue(avgGain, avgLoss)

	for i := period + 1; i < n; i++ {
		change := closes[i] - closes[i-1]
		gain, loss := 0.0, 0.0
		if change > 0 {
			gain = change
		} else {
			loss = -change
		}
		avgGain = (avgGain*float64(period-1) + gain) / float64(period)
		avgLoss = (avgLoss*float64(period-1) + loss) / float64(period)
		out[i] = rsiValue(avgGain, avgLoss)
	}
	return out
}

func rsiValue(avgGain, avgLoss float64) float64 {
	if avgLoss == 0 {
		return 100.0
	}
	rs := avgGain / avgLoss
	return 100.0 - 100.0/(1.0+rs)
}

// macdSeries returns the MACD line, signal line and histogram.
func macdSeries(closes []float64, fast, slow, signal int) (line, sig, hist []float64) {
	fastEMA := ema(closes, fast)
	slowEMA := ema(closes, slow)

	line = nanSlice(len(closes))
	for i := range closes {
		line[i] = fastEMA[i] - slowEMA[i]
	}
	sig = ema(line, signal)

	hist = nanSlice(len(closes))
	for i := range closes {
		hist[i] = line[i] - sig[i]
	}
	return line, sig, hist
}

// stochastic returns %K and its %D smoothing. Short series degrade to the
// neutral value 50.
func stochastic(highs, lows, closes []float64, kWindow, dWindow int) (k, d []float64) {
	n := len(closes)
	if n < kWindow {
		return fillSlice(n, 50.0), fillSlice(n, 50.0)
	}

	k = nanSlice(n)
	hh := rollingMax(highs, kWindow)
	ll := rollingMin(lows, kWindow)
	for i := kWindow - 1; i < n; i++ {
		span := hh[i] - ll[i]
		if span == 0 {
			k[i] = 50.0
			continue
		}
		k[i] = (closes[i] - ll[i]) / span * 100
	}
	d = sma(compact(k), dWindow)
	// realign %D to the original index
	aligned := nanSlice(n)
	offset := n - len(d)
	for i := range d {
		aligned[offset+i] = d[i]
	}
	return k, aligned
}

// williamsR degrades to -50 on short series.
func williamsR(highs, lows, closes []float64, period int) []float64 {
	n := len(closes)
	if n < period {
		return fillSlice(n, -50.0)
	}
	out := nanSlice(n)
	hh := rollingMax(highs, period)
	ll := rollingMin(lows, period)
	for i := period - 1; i < n; i++ {
		span := hh[i] - ll[i]
		if span == 0 {
			out[i] = -50.0
			continue
		}
		out[i] = -100 * (hh[i] - closes[i]) / span
	}
	return out
}

// trueRange is the greatest of high-low, |high-prevClose|, |low-prevClose|.
func trueRange(highs, lows, closes []float64) []float64 {
	out := make([]float64, len(closes))
	for i := range closes {
		hl := highs[i] - lows[i]
		if i == 0 {
			out[i] = hl
			continue
		}
		out[i] = math.Max(hl, math.Max(
			math.Abs(highs[i]-closes[i-1]),
			math.Abs(lows[i]-closes[i-1])))
	}
	return out
}

// adxSeries returns the ADX via Wilder's DI smoothing; NaN during the
// warm-up, and series shorter than 2*period produce no values at all.
func adxSeries(highs, lows, closes []float64, period int) []float64 {
	n := len(closes)
	out := nanSlice(n)
	if n < period*2 {
		return out
	}

	plusDM := make([]float64, n-1)
	minusDM := make([]float64, n-1)
	tr := make([]float64, n-1)
	for i := 1; i < n; i++ {
		upMove := highs[i] - highs[i-1]
		downMove := lows[i-1] - lows[i]
		if upMove > downMove && upMove > 0 {
			plusDM[i-1] = upMove
		}
		if downMove > upMove && downMove > 0 {
			minusDM[i-1] = downMove
		}
		tr[i-1] = math.Max(highs[i]-lows[i], math.Max(
			math.Abs(highs[i]-closes[i-1]),
			math.Abs(lows[i]-closes[i-1])))
	}

	var smPlus, smMinus, smTR float64
	for i := 0; i < period; i++ {
		smPlus += plusDM[i]
		smMinus += minusDM[i]
		smTR += tr[i]
	}
	adx := dx(smPlus, smMinus, smTR)
	out[period] = adx

	for i := period; i < len(tr); i++ {
		smPlus = smPlus - smPlus/float64(period) + plusDM[i]
		smMinus = smMinus - smMinus/float64(period) + minusDM[i]
		smTR = smTR - smTR/float64(period) + tr[i]

		adx = (float64(period-1)*adx + dx(smPlus, smMinus, smTR)) / float64(period)
		out[i+1] = adx
	}
	return out
}

func dx(smPlus, smMinus, smTR float64) float64 {
	if smTR == 0 {
		return 0
	}
	plusDI := smPlus / smTR * 100
	minusDI := smMinus / smTR * 100
	if plusDI+minusDI == 0 {
		return 0
	}
	return math.Abs(plusDI-minusDI) / (plusDI + minusDI) * 100
}

// choppinessIndex is the log-scaled ratio of summed true range to the
// window's price range; higher means choppier/ranging.
func choppinessIndex(highs, lows, closes []float64, window int) []float64 {
	n := len(closes)
	out := nanSlice(n)
	tr := trueRange(highs, lows, closes)
	atr := sma(tr, window)
	hh := rollingMax(highs, window)
	ll := rollingMin(lows, window)

	for i := window - 1; i < n; i++ {
		span := hh[i] - ll[i]
		if span <= 0 || math.IsNaN(atr[i]) {
			continue
		}
		out[i] = 100 * math.Log10(atr[i]*float64(window)/span) / math.Log10(float64(window))
	}
	return out
}

func onBalanceVolume(closes, volumes []float64) []float64 {
	out := make([]float64, len(closes))
	for i := 1; i < len(closes); i++ {
		switch {
		case closes[i] > closes[i-1]:
			out[i] = out[i-1] + volumes[i]
		case closes[i] < closes[i-1]:
			out[i] = out[i-1] - volumes[i]
		default:
			out[i] = out[i-1]
		}
	}
	return out
}

// vwap is the cumulative typical-price × volume ratio, with volume
// clipped to at least 1 so a dead tape cannot collapse the divisor.
func vwap(highs, lows, closes, volumes []float64) []float64 {
	out := make([]float64, len(closes))
	var cumVP, cumVol float64
	for i := range closes {
		typical := (highs[i] + lows[i] + closes[i]) / 3
		vol := math.Max(volumes[i], 1)
		cumVP += typical * vol
		cumVol += vol
		out[i] = cumVP / cumVol
	}
	return out
}

func pctChange(values []float64, periods int) []float64 {
	out := nanSlice(len(values))
	for i := periods; i < len(values); i++ {
		if values[i-periods] == 0 {
			out[i] = math.Inf(1)
			continue
		}
		out[i] = (values[i] - values[i-periods]) / values[i-periods]
	}
	return out
}

func diff(values []float64) []float64 {
	out := nanSlice(len(values))
	for i := 1; i < len(values); i++ {
		out[i] = values[i] - values[i-1]
	}
	return out
}

func lag(values []float64, k int) []float64 {
	out := nanSlice(len(values))
	for i := k; i < len(values); i++ {
		out[i] = values[i-k]
	}
	return out
}

// percentile uses linear interpolation between order statistics, matching
// the quantile convention the regime terciles were tuned with.
func percentile(values []float64, q float64) float64 {
	finite := make([]float64, 0, len(values))
	for _, v := range values {
		if !math.IsNaN(v) && !math.IsInf(v, 0) {
			finite = append(finite, v)
		}
	}
	if len(finite) == 0 {
		return nan
	}
	sort.Float64s(finite)
	if len(finite) == 1 {
		return finite[0]
	}
	pos := q * float64(len(finite)-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	if lo == hi {
		return finite[lo]
	}
	return finite[lo] + (pos-float64(lo))*(finite[hi]-finite[lo])
}

func nanSlice(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = nan
	}
	return out
}

func fillSlice(n int, v float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = v
	}
	return out
}

// compact drops leading NaNs so window functions can operate on the valid
// tail of a derived series.
func compact(values []float64) []float64 {
	first := 0
	for first < len(values) && math.IsNaN(values[first]) {
		first++
	}
	return values[first:]
}
