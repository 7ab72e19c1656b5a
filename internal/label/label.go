// Package label turns feature rows into supervised training examples by
// looking ahead at realized price moves. Two strategies exist: a simple
// directional-move rule and an option payoff simulation; the simulation
// is preferred when enough option-enriched history is available.
package label

import (
	"errors"
	"math"
	"math/rand"
	"sort"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"btcalert/config"
	"btcalert/models"
)

// Strategy tags which labeling path produced a result.
type Strategy string

const (
	StrategyBasic    Strategy = "basic"
	StrategyAdvanced Strategy = "advanced"
)

// ErrInsufficientData means a strategy could not produce enough labeled
// examples to be worth training on.
var ErrInsufficientData = errors.New("label: insufficient labeled examples")

// Result is a labeled dataset tagged with the strategy that built it.
type Result struct {
	Rows     []models.LabeledRow
	Strategy Strategy
}

const (
	basicThreshold    = 0.02
	minAdvancedRows   = 100
	minAdvancedUsable = 10
)

var (
	basicPeriods    = []int{3, 5, 10}
	advancedPeriods = []int{3, 5, 10, 15}
)

// Labeler builds labeled datasets from feature rows.
type Labeler struct {
	cfg    *config.Config
	logger zerolog.Logger
}

func New(cfg *config.Config) *Labeler {
	return &Labeler{
		cfg:    cfg,
		logger: log.With().Str("component", "labeler").Logger(),
	}
}

// Label picks the best available strategy: the option payoff simulation
// when the dataset carries call premiums and enough history, otherwise
// the basic directional rule. An advanced run that yields too few usable
// examples falls back to basic rather than failing the pipeline.
func (l *Labeler) Label(rows []models.FeatureRow) Result {
	if len(rows) > minAdvancedRows && hasCallData(rows) {
		labeled, err := l.labelAdvanced(rows)
		if err == nil {
			l.logger.Info().Int("examples", len(labeled)).Msg("Labeled with payoff simulation")
			return Result{Rows: labeled, Strategy: StrategyAdvanced}
		}
		l.logger.Warn().Err(err).Msg("Payoff labeling unusable, falling back to basic")
	}

	labeled := l.labelBasic(rows)
	l.logger.Info().Int("examples", len(labeled)).Msg("Labeled with directional rule")
	return Result{Rows: labeled, Strategy: StrategyBasic}
}

func hasCallData(rows []models.FeatureRow) bool {
	for i := range rows {
		if rows[i].CallLTP > 0 {
			return true
		}
	}
	return false
}

// labelBasic labels on forward returns. Direction comes from the
// shortest-period return only; the largest absolute return across all
// periods measures strength. Both must clear the threshold, so a move
// that has not started within the shortest horizon stays NO_ACTION no
// matter how far the longer horizons travel. Crypto instruments use the
// wider configured volatility threshold.
func (l *Labeler) labelBasic(rows []models.FeatureRow) []models.LabeledRow {
	threshold := basicThreshold
	if l.cfg.IsCrypto() {
		threshold = l.cfg.VolatilityThreshold
	}

	maxPeriod := basicPeriods[len(basicPeriods)-1]
	var labeled []models.LabeledRow
	for i := 0; i+maxPeriod < len(rows); i++ {
		best := forwardReturn(rows, i, basicPeriods[0])
		strength := maxAbsForwardReturn(rows, i, basicPeriods)

		lr := models.LabeledRow{FeatureRow: rows[i]}
		switch {
		case best > threshold && strength > threshold:
			lr.Signal = models.BuyCall
			lr.ExpectedProfit = strength
		case best < -threshold && strength > threshold:
			lr.Signal = models.BuyPut
			lr.ExpectedProfit = strength
		}
		lr.SignalConf = basicConfidence(lr.Signal, lr.ExpectedProfit, threshold)
		labeled = append(labeled, lr)
	}

	labeled = l.filterOptionType(labeled)
	// Keep NO_ACTION at half the actionable count so the trained model is
	// not dominated by the do-nothing class.
	return balance(labeled, 0.5)
}

func forwardReturn(rows []models.FeatureRow, i, period int) float64 {
	return (rows[i+period].Close - rows[i].Close) / rows[i].Close
}

func maxAbsForwardReturn(rows []models.FeatureRow, i int, periods []int) float64 {
	var strength float64
	for _, p := range periods {
		if abs := math.Abs(forwardReturn(rows, i, p)); abs > strength {
			strength = abs
		}
	}
	return strength
}

func basicConfidence(sig models.Signal, profit, threshold float64) models.Confidence {
	if sig == models.NoAction {
		return models.ConfidenceLow
	}
	if profit > 2*threshold {
		return models.ConfidenceHigh
	}
	return models.ConfidenceMedium
}

// labelAdvanced simulates buying at-the-money legs at each bar and
// labels by the better realized premium return. Payoffs are measured
// against the row's own close (the option is treated as struck exactly
// at the money), so a flat market yields zero payoff on both legs. The
// put premium is approximated as 80% of the call premium since only the
// call leg is merged into the dataset.
func (l *Labeler) labelAdvanced(rows []models.FeatureRow) ([]models.LabeledRow, error) {
	maxPeriod := advancedPeriods[len(advancedPeriods)-1]

	var labeled []models.LabeledRow
	for i := 0; i+maxPeriod < len(rows); i++ {
		callPremium := rows[i].CallLTP
		if callPremium <= 0 {
			continue
		}
		putPremium := 0.8 * callPremium
		current := rows[i].Close

		bestCall, bestPut := math.Inf(-1), math.Inf(-1)
		for _, p := range advancedPeriods {
			future := rows[i+p].Close
			callRet := (math.Max(future-current, 0) - callPremium) / callPremium
			putRet := (math.Max(current-future, 0) - putPremium) / putPremium
			if callRet > bestCall {
				bestCall = callRet
			}
			if putRet > bestPut {
				bestPut = putRet
			}
		}

		lr := models.LabeledRow{FeatureRow: rows[i]}
		switch {
		case bestCall > l.cfg.MinProfitThreshold && bestCall > bestPut:
			lr.Signal = models.BuyCall
			lr.ExpectedProfit = bestCall
		case bestPut > l.cfg.MinProfitThreshold && bestPut > bestCall:
			lr.Signal = models.BuyPut
			lr.ExpectedProfit = bestPut
		}
		lr.SignalConf = l.advancedConfidence(lr.Signal, lr.ExpectedProfit)
		labeled = append(labeled, lr)
	}

	labeled = l.filterOptionType(labeled)
	// Payoff labels keep NO_ACTION at parity with the actionable classes.
	labeled = balance(labeled, 1.0)
	if len(labeled) <= minAdvancedUsable {
		return nil, ErrInsufficientData
	}
	return labeled, nil
}

func (l *Labeler) advancedConfidence(sig models.Signal, profit float64) models.Confidence {
	if sig == models.NoAction {
		return models.ConfidenceLow
	}
	if profit > l.cfg.HighConfidenceThreshold {
		return models.ConfidenceHigh
	}
	return models.ConfidenceMedium
}

// filterOptionType neutralizes signals the configuration does not trade.
func (l *Labeler) filterOptionType(rows []models.LabeledRow) []models.LabeledRow {
	switch l.cfg.OptionType {
	case "call":
		for i := range rows {
			if rows[i].Signal == models.BuyPut {
				rows[i].Signal = models.NoAction
				rows[i].SignalConf = models.ConfidenceLow
				rows[i].ExpectedProfit = 0
			}
		}
	case "put":
		for i := range rows {
			if rows[i].Signal == models.BuyCall {
				rows[i].Signal = models.NoAction
				rows[i].SignalConf = models.ConfidenceLow
				rows[i].ExpectedProfit = 0
			}
		}
	}
	return rows
}

func countActionable(rows []models.LabeledRow) int {
	n := 0
	for i := range rows {
		if rows[i].Signal != models.NoAction {
			n++
		}
	}
	return n
}

// balance downsamples NO_ACTION rows to ratio × the actionable count,
// deterministically, preserving chronological order. With no actionable
// rows every NO_ACTION row is dropped and the result is empty; the
// strategy selection treats that as unusable.
func balance(rows []models.LabeledRow, ratio float64) []models.LabeledRow {
	actionable := countActionable(rows)
	keepNoAction := int(float64(actionable) * ratio)
	var noActionIdx []int
	for i := range rows {
		if rows[i].Signal == models.NoAction {
			noActionIdx = append(noActionIdx, i)
		}
	}
	if len(noActionIdx) <= keepNoAction {
		return rows
	}

	rng := rand.New(rand.NewSource(42))
	rng.Shuffle(len(noActionIdx), func(i, j int) {
		noActionIdx[i], noActionIdx[j] = noActionIdx[j], noActionIdx[i]
	})
	kept := noActionIdx[:keepNoAction]
	sort.Ints(kept)

	keep := make(map[int]bool, keepNoAction)
	for _, i := range kept {
		keep[i] = true
	}

	out := make([]models.LabeledRow, 0, actionable+keepNoAction)
	for i := range rows {
		if rows[i].Signal != models.NoAction || keep[i] {
			out = append(out, rows[i])
		}
	}
	return out
}
