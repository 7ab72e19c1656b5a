// Package merge joins feature rows with at-the-money call option data on
// nearest timestamps and annotates every row with chain-wide aggregates.
package merge

import (
	"math"
	"math/rand"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"btcalert/config"
	"btcalert/models"
)

// ATMStrike rounds price to the nearest strike on the gap grid.
func ATMStrike(price, gap float64) float64 {
	return math.Round(price/gap) * gap
}

// Merger attaches option columns to feature rows. When the chain holds no
// quotes at the at-the-money strike a seeded synthetic call series keeps
// the column contract intact.
type Merger struct {
	cfg    *config.Config
	logger zerolog.Logger
}

func New(cfg *config.Config) *Merger {
	return &Merger{
		cfg:    cfg,
		logger: log.With().Str("component", "data_merger").Logger(),
	}
}

// Merge joins rows with the at-the-money call leg of the chain. The join
// is as-of on nearest timestamp (either direction); chain aggregates are
// identical on every row since the chain is a single snapshot. Rows left
// with non-finite option columns are dropped.
func (m *Merger) Merge(rows []models.FeatureRow, chain []models.OptionQuote) []models.FeatureRow {
	if len(rows) == 0 {
		return nil
	}

	agg := aggregates(chain)
	atm := ATMStrike(rows[len(rows)-1].Close, m.cfg.StrikeGap)

	var calls []models.OptionQuote
	for _, q := range chain {
		if q.Type == models.Call && q.Strike == atm {
			calls = append(calls, q)
		}
	}

	merged := make([]models.FeatureRow, len(rows))
	copy(merged, rows)

	if len(calls) == 0 {
		m.logger.Warn().
			Float64("atm_strike", atm).
			Msg("No ATM call quotes, generating synthetic option columns")
		m.fillSynthetic(merged, atm)
	} else {
		for i := range merged {
			q := nearestQuote(calls, merged[i])
			merged[i].CallLTP = q.LTP
			merged[i].CallIV = q.IV
			merged[i].CallOI = q.OI
			merged[i].CallVolume = q.Volume
		}
	}

	for i := range merged {
		merged[i].PCRVolume = agg.pcrVolume
		merged[i].PCROI = agg.pcrOI
		merged[i].AvgIV = agg.avgIV
		merged[i].IVSkew = agg.ivSkew
	}

	out := merged[:0:0]
	for i := range merged {
		if merged[i].IsFinite() {
			out = append(out, merged[i])
		}
	}
	m.logger.Info().
		Float64("atm_strike", atm).
		Int("rows", len(out)).
		Msg("Merged market and option data")
	return out
}

// nearestQuote picks the quote whose timestamp is closest to the row's,
// in either direction.
func nearestQuote(quotes []models.OptionQuote, row models.FeatureRow) models.OptionQuote {
	best := quotes[0]
	bestGap := absDuration(quotes[0].Time.Sub(row.Time))
	for _, q := range quotes[1:] {
		gap := absDuration(q.Time.Sub(row.Time))
		if gap < bestGap {
			best = q
			bestGap = gap
		}
	}
	return best
}

func absDuration(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}

func (m *Merger) fillSynthetic(rows []models.FeatureRow, atm float64) {
	rng := rand.New(rand.NewSource(42))
	for i := range rows {
		intrinsic := math.Max(rows[i].Close-atm, 0)
		rows[i].CallLTP = intrinsic + 500 + rng.Float64()*1500
		rows[i].CallIV = 60 + rng.Float64()*40
		rows[i].CallOI = float64(int(100 + rng.Float64()*900))
		rows[i].CallVolume = float64(int(10 + rng.Float64()*490))
	}
}

type chainAggregates struct {
	pcrVolume float64
	pcrOI     float64
	avgIV     float64
	ivSkew    float64
}

// aggregates summarizes the whole chain: put/call ratios on volume and
// open interest, mean implied volatility, and the put-minus-call IV skew.
func aggregates(chain []models.OptionQuote) chainAggregates {
	var callVol, putVol, callOI, putOI float64
	var callIV, putIV, totalIV float64
	var callN, putN int
	for _, q := range chain {
		totalIV += q.IV
		if q.Type == models.Call {
			callVol += q.Volume
			callOI += q.OI
			callIV += q.IV
			callN++
		} else {
			putVol += q.Volume
			putOI += q.OI
			putIV += q.IV
			putN++
		}
	}

	agg := chainAggregates{pcrVolume: 1, pcrOI: 1}
	if callVol > 0 {
		agg.pcrVolume = putVol / callVol
	}
	if callOI > 0 {
		agg.pcrOI = putOI / callOI
	}
	if len(chain) > 0 {
		agg.avgIV = totalIV / float64(len(chain))
	}
	if callN > 0 && putN > 0 {
		agg.ivSkew = putIV/float64(putN) - callIV/float64(callN)
	}
	return agg
}
