package label

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"btcalert/config"
	"btcalert/models"
)

func testConfig() *config.Config {
	return &config.Config{
		IndexSymbol:             "BTC-USD",
		StrikeGap:               1000,
		OptionType:              "both",
		MinProfitThreshold:      0.20,
		HighConfidenceThreshold: 0.50,
		VolatilityThreshold:     0.03,
	}
}

// trendRows builds feature rows whose close compounds at ratePerBar.
func trendRows(n int, start, ratePerBar float64) []models.FeatureRow {
	base := time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC)
	rows := make([]models.FeatureRow, n)
	px := start
	for i := range rows {
		rows[i].Time = base.Add(time.Duration(i) * 5 * time.Minute)
		rows[i].Close = px
		px *= 1 + ratePerBar
	}
	return rows
}

func TestBasicLabelsRisingMarket(t *testing.T) {
	// 2% per bar: every 3-bar forward return clears the 3% crypto
	// threshold, and the 10-bar return clears twice the threshold.
	rows := trendRows(40, 65000, 0.02)
	result := New(testConfig()).Label(rows)

	assert.Equal(t, StrategyBasic, result.Strategy)
	require.NotEmpty(t, result.Rows)
	for _, lr := range result.Rows {
		assert.Equal(t, models.BuyCall, lr.Signal)
		assert.Equal(t, models.ConfidenceHigh, lr.SignalConf)
		assert.Greater(t, lr.ExpectedProfit, 0.03)
	}
}

func TestBasicLabelsFallingMarket(t *testing.T) {
	rows := trendRows(40, 65000, -0.02)
	result := New(testConfig()).Label(rows)

	assert.Equal(t, StrategyBasic, result.Strategy)
	require.NotEmpty(t, result.Rows)
	for _, lr := range result.Rows {
		assert.Equal(t, models.BuyPut, lr.Signal)
	}
}

func TestBasicFlatMarketYieldsNothing(t *testing.T) {
	// With zero actionable rows the balancing step drops every NO_ACTION
	// row too; a flat market produces no training examples at all.
	rows := trendRows(40, 65000, 0.0001)
	result := New(testConfig()).Label(rows)

	assert.Equal(t, StrategyBasic, result.Strategy)
	assert.Empty(t, result.Rows)
}

func TestBasicDirectionComesFromShortestHorizon(t *testing.T) {
	// Price is flat for 10 bars then steps up 10% and stays there. Early
	// rows see a large 10-bar return but a zero 3-bar return; only rows
	// whose 3-bar horizon crosses the step may signal.
	rows := trendRows(40, 100, 0)
	for i := 10; i < len(rows); i++ {
		rows[i].Close = 110
	}
	stepTime := rows[7].Time

	result := New(testConfig()).Label(rows)

	for _, lr := range result.Rows {
		if lr.Time.Before(stepTime) {
			assert.Equal(t, models.NoAction, lr.Signal,
				"row at %s has a flat 3-bar return and must not signal", lr.Time)
		} else if !lr.Time.After(rows[9].Time) {
			assert.Equal(t, models.BuyCall, lr.Signal, "row at %s", lr.Time)
		}
	}
}

func TestBasicBalancesNoAction(t *testing.T) {
	// Rise for 60 bars then hold flat, producing both actionable and
	// no-action labels.
	rows := trendRows(60, 65000, 0.02)
	flat := trendRows(60, rows[len(rows)-1].Close, 0)
	for i := range flat {
		flat[i].Time = rows[len(rows)-1].Time.Add(time.Duration(i+1) * 5 * time.Minute)
	}
	rows = append(rows, flat...)

	result := New(testConfig()).Label(rows)

	actionable, noAction := 0, 0
	for _, lr := range result.Rows {
		if lr.Signal == models.NoAction {
			noAction++
		} else {
			actionable++
		}
	}
	require.Greater(t, actionable, 0)
	assert.LessOrEqual(t, noAction, actionable/2+1, "no-action class must be downsampled")
}

func TestAdvancedStrategySelectedWithOptionData(t *testing.T) {
	rows := trendRows(120, 65000, 0.01)
	for i := range rows {
		rows[i].CallLTP = 500
	}

	result := New(testConfig()).Label(rows)

	assert.Equal(t, StrategyAdvanced, result.Strategy)
	require.NotEmpty(t, result.Rows)

	foundHigh := false
	for _, lr := range result.Rows {
		if lr.Signal == models.BuyCall && lr.SignalConf == models.ConfidenceHigh {
			foundHigh = true
		}
		if lr.Signal != models.NoAction {
			assert.Greater(t, lr.ExpectedProfit, 0.20)
		}
	}
	assert.True(t, foundHigh, "a strongly profitable payoff must rate HIGH confidence")
}

func TestAdvancedFallsBackWithoutCallData(t *testing.T) {
	rows := trendRows(120, 65000, 0.01)
	result := New(testConfig()).Label(rows)
	assert.Equal(t, StrategyBasic, result.Strategy, "no call premiums means no payoff simulation")
}

func TestAdvancedFallsBackWhenUnusable(t *testing.T) {
	// Premiums so large no simulated trade clears the profit bar.
	rows := trendRows(120, 65000, 0.0001)
	for i := range rows {
		rows[i].CallLTP = 1e9
	}

	result := New(testConfig()).Label(rows)
	assert.Equal(t, StrategyBasic, result.Strategy)
}

func TestAdvancedFlatMarketNotActionable(t *testing.T) {
	// A flat market must never simulate a profitable trade, including
	// when the close sits between strike grid points: the payoff base is
	// the row's own price, so both legs expire worthless.
	rows := trendRows(120, 65400, 0)
	for i := range rows {
		rows[i].CallLTP = 300
	}

	result := New(testConfig()).Label(rows)

	assert.Equal(t, StrategyBasic, result.Strategy, "no profitable payoffs means fallback")
	for _, lr := range result.Rows {
		assert.Equal(t, models.NoAction, lr.Signal)
	}
}

func TestAdvancedUsableGateCountsTotalRows(t *testing.T) {
	// Eight actionable rows balanced to parity give sixteen total, which
	// is enough labeled data even though actionable alone is below ten.
	rows := trendRows(120, 65000, 0.01)
	for i := range rows {
		rows[i].CallLTP = 1e9
	}
	for i := 10; i < 18; i++ {
		rows[i].CallLTP = 300
	}

	labeled, err := New(testConfig()).labelAdvanced(rows)
	require.NoError(t, err)
	assert.Len(t, labeled, 16)

	actionable := 0
	for _, lr := range labeled {
		if lr.Signal != models.NoAction {
			actionable++
		}
	}
	assert.Equal(t, 8, actionable)
}

func TestOptionTypeFilter(t *testing.T) {
	cfg := testConfig()
	cfg.OptionType = "call"

	// Falls then rises, so both put and call opportunities exist.
	down := trendRows(40, 65000, -0.02)
	up := trendRows(40, down[len(down)-1].Close, 0.02)
	for i := range up {
		up[i].Time = down[len(down)-1].Time.Add(time.Duration(i+1) * 5 * time.Minute)
	}
	rows := append(down, up...)

	result := New(cfg).Label(rows)

	require.NotEmpty(t, result.Rows)
	sawCall := false
	for _, lr := range result.Rows {
		assert.NotEqual(t, models.BuyPut, lr.Signal, "puts are filtered out in call-only mode")
		if lr.Signal == models.BuyCall {
			sawCall = true
		}
	}
	assert.True(t, sawCall, "call signals must survive the filter")
}

func TestForwardReturnHelpers(t *testing.T) {
	rows := trendRows(20, 100, 0)
	rows[3].Close = 110
	rows[5].Close = 85

	assert.InDelta(t, 0.10, forwardReturn(rows, 0, 3), 1e-9)
	assert.InDelta(t, -0.15, forwardReturn(rows, 0, 5), 1e-9)
	assert.InDelta(t, 0.0, forwardReturn(rows, 0, 10), 1e-9)

	strength := maxAbsForwardReturn(rows, 0, []int{3, 5, 10})
	assert.InDelta(t, 0.15, strength, 1e-9, "strength is the largest absolute move")
	assert.False(t, math.IsInf(strength, 0))
}
