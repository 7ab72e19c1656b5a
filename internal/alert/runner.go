package alert

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"btcalert/config"
	"btcalert/internal/fetch"
	"btcalert/internal/indicators"
	"btcalert/internal/merge"
	"btcalert/internal/options"
	phttp "btcalert/internal/platform/http"
	"btcalert/internal/store"
	"btcalert/internal/train"
	"btcalert/models"
)

// Runner drives the live alert cycle end to end. Construction wires the
// standard component set; tests swap pieces through the struct fields.
type Runner struct {
	cfg     *config.Config
	fetcher *fetch.Fetcher
	engine  *indicators.Engine
	chains  *options.Client
	merger  *merge.Merger
	cache   *store.Cache
	history *store.History
	sink    Sink
	logger  zerolog.Logger

	now func() time.Time
}

func NewRunner(cfg *config.Config, sink Sink, history *store.History) *Runner {
	optClient := options.NewClient(phttp.NewClient(phttp.ClientOptions{
		Name:    "deribit",
		Timeout: time.Duration(cfg.RequestTimeoutSec) * time.Second,
	}))
	return &Runner{
		cfg:     cfg,
		fetcher: fetch.New(cfg),
		engine:  indicators.NewEngine(cfg),
		chains:  optClient,
		merger:  merge.New(cfg),
		cache:   store.NewCache(cfg.DataDir),
		history: history,
		sink:    sink,
		logger:  log.With().Str("component", "alert_runner").Logger(),
		now:     time.Now,
	}
}

// TargetExpiry resolves the option expiry for this cycle: the next
// weekly expiry day, or the fixed configured date. An unparseable fixed
// date falls back to the weekly schedule.
func (r *Runner) TargetExpiry() time.Time {
	now := r.now().UTC()
	if r.cfg.UseWeeklyOptions {
		return options.NextWeeklyExpiry(now, r.cfg.WeeklyExpiryDay)
	}
	expiry, err := time.Parse("2006-01-02", r.cfg.ExpiryDate)
	if err != nil {
		r.logger.Warn().Str("expiry_date", r.cfg.ExpiryDate).Msg("Unparseable expiry date, using weekly schedule")
		return options.NextWeeklyExpiry(now, r.cfg.WeeklyExpiryDay)
	}
	return expiry
}

// PrepareData runs the acquisition half of the pipeline: fetch bars,
// compute indicators, fetch the option chain and merge. The merged
// dataset is cached to disk for later offline fallback.
func (r *Runner) PrepareData(ctx context.Context) ([]models.FeatureRow, error) {
	result := r.fetcher.Fetch(ctx, r.cfg.DataFetchInterval, r.cfg.DataLookbackPeriod)
	rows := r.engine.Compute(result.Bars)
	if len(rows) == 0 {
		return nil, fmt.Errorf("no feature rows survived indicator computation (%d bars in)", len(result.Bars))
	}

	chain := r.chains.FetchChain(ctx, r.TargetExpiry())
	merged := r.merger.Merge(rows, chain.Quotes)
	if len(merged) == 0 {
		return nil, fmt.Errorf("merge produced no rows")
	}

	if err := r.cache.SaveMerged(merged); err != nil {
		r.logger.Warn().Err(err).Msg("Could not cache merged dataset")
	}
	return merged, nil
}

// RunCycle executes one full alert cycle: acquire data with retries
// (falling back to the disk cache), predict on the latest row, and
// deliver the signal when it clears the confidence bar. Failures are
// reported to the sink rather than crashing the schedule.
func (r *Runner) RunCycle(ctx context.Context) error {
	runID := uuid.NewString()
	logger := r.logger.With().Str("run_id", runID).Logger()

	rows, err := r.acquire(ctx, logger)
	if err != nil {
		r.notifyError(logger, fmt.Sprintf("data acquisition failed: %v", err))
		return err
	}

	predictor, err := train.LoadPredictor(r.cfg.ModelDir)
	if err != nil {
		r.notifyError(logger, fmt.Sprintf("model load failed: %v", err))
		return fmt.Errorf("loading model: %w", err)
	}

	latest := rows[len(rows)-1]
	pred, err := predictor.Predict(&latest)
	if err != nil {
		r.notifyError(logger, fmt.Sprintf("prediction failed: %v", err))
		return fmt.Errorf("predicting: %w", err)
	}

	expiry := r.TargetExpiry()
	strike := RecommendedStrike(latest.Close, r.cfg.StrikeGap, pred.Signal)
	actionable := pred.Signal != models.NoAction && pred.Confidence >= r.cfg.SignalConfidenceThreshold

	logger.Info().
		Str("signal", pred.Signal.String()).
		Float64("confidence", pred.Confidence).
		Float64("spot", latest.Close).
		Bool("actionable", actionable).
		Msg("Cycle prediction")

	sent := false
	if actionable {
		msg := r.formatSignal(runID, latest, pred, strike, expiry)
		if err := r.sink.Send(msg); err != nil {
			logger.Error().Err(err).Msg("Alert delivery failed")
		} else {
			sent = true
		}
	}

	if err := r.history.Record(ctx, store.SignalRecord{
		RunID:      runID,
		Time:       r.now().UTC(),
		Symbol:     r.cfg.IndexSymbol,
		Signal:     pred.Signal,
		Confidence: pred.Confidence,
		SpotPrice:  latest.Close,
		Strike:     strike,
		Expiry:     expiry,
		Sent:       sent,
	}); err != nil {
		logger.Warn().Err(err).Msg("Could not record signal history")
	}
	return nil
}

// acquire tries live preparation up to the retry budget, then falls back
// to the cached dataset.
func (r *Runner) acquire(ctx context.Context, logger zerolog.Logger) ([]models.FeatureRow, error) {
	var lastErr error
	for attempt := 1; attempt <= r.cfg.MaxRetries; attempt++ {
		rows, err := r.PrepareData(ctx)
		if err == nil {
			return rows, nil
		}
		lastErr = err
		logger.Warn().Err(err).Int("attempt", attempt).Msg("Data preparation failed")

		if attempt < r.cfg.MaxRetries {
			select {
			case <-time.After(time.Duration(r.cfg.RetryDelaySec) * time.Second):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
	}

	rows, err := r.cache.LoadMerged()
	if err != nil {
		return nil, fmt.Errorf("live preparation failed (%v) and no usable cache: %w", lastErr, err)
	}
	logger.Warn().Int("rows", len(rows)).Msg("Using cached dataset after live failures")
	return rows, nil
}

// Schedule runs cycles on the configured interval until the context is
// cancelled. A startup message confirms delivery works before the first
// cycle.
func (r *Runner) Schedule(ctx context.Context) error {
	startup := fmt.Sprintf("🤖 *%s Alert Service Started*\nInterval: %d min\nExpiry: %s",
		r.cfg.IndexName, r.cfg.FetchIntervalMin, r.TargetExpiry().Format("2006-01-02"))
	if err := r.sink.Send(startup); err != nil {
		r.logger.Error().Err(err).Msg("Startup notification failed")
	}

	if r.inMarketHours(r.now()) {
		if err := r.RunCycle(ctx); err != nil {
			r.logger.Error().Err(err).Msg("Cycle failed")
		}
	}

	ticker := time.NewTicker(time.Duration(r.cfg.FetchIntervalMin) * time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			r.logger.Info().Msg("Alert schedule stopped")
			return ctx.Err()
		case <-ticker.C:
			if !r.inMarketHours(r.now()) {
				r.logger.Debug().Msg("Outside market hours, skipping cycle")
				continue
			}
			if err := r.RunCycle(ctx); err != nil {
				r.logger.Error().Err(err).Msg("Cycle failed")
			}
		}
	}
}

// inMarketHours gates cycles. Crypto trades around the clock unless
// trading hours are explicitly limited (08:00-22:00); traditional
// instruments trade weekdays 09:15-15:30.
func (r *Runner) inMarketHours(now time.Time) bool {
	if r.cfg.IsCrypto() {
		if !r.cfg.LimitTradingHours {
			return true
		}
		h := now.Hour()
		return h >= 8 && h < 22
	}

	wd := now.Weekday()
	if wd == time.Saturday || wd == time.Sunday {
		return false
	}
	minutes := now.Hour()*60 + now.Minute()
	return minutes >= 9*60+15 && minutes <= 15*60+30
}

// RecommendedStrike picks the strike to trade: calls round up to the
// next gap above spot, puts round down to the gap below.
func RecommendedStrike(price, gap float64, sig models.Signal) float64 {
	base := math.Floor(price/gap) * gap
	if sig == models.BuyCall {
		return base + gap
	}
	return base
}

func (r *Runner) formatSignal(runID string, row models.FeatureRow, pred train.Prediction, strike float64, expiry time.Time) string {
	var b strings.Builder
	fmt.Fprintf(&b, "🚨 *%s Options Signal*\n\n", r.cfg.IndexName)
	fmt.Fprintf(&b, "*Signal:* %s\n", pred.Signal.String())
	fmt.Fprintf(&b, "*Confidence:* %.1f%%\n", pred.Confidence)
	fmt.Fprintf(&b, "*Spot:* %.2f\n", row.Close)
	fmt.Fprintf(&b, "*Strike:* %.0f\n", strike)
	fmt.Fprintf(&b, "*Expiry:* %s\n\n", expiry.Format("2006-01-02"))
	fmt.Fprintf(&b, "*RSI(14):* %.1f\n", row.RSI14)
	fmt.Fprintf(&b, "*MACD:* %.2f\n", row.MACD)
	fmt.Fprintf(&b, "*BB Width:* %.4f\n", row.BBWidth)
	fmt.Fprintf(&b, "*ATR:* %.2f\n", row.ATR)
	fmt.Fprintf(&b, "*ATM Call Premium:* %.2f\n\n", row.CallLTP)
	fmt.Fprintf(&b, "_run %s · %s_", runID[:8], r.now().UTC().Format("2006-01-02 15:04 MST"))
	return b.String()
}

func (r *Runner) notifyError(logger zerolog.Logger, text string) {
	if err := r.sink.Send("⚠️ " + text); err != nil {
		logger.Error().Err(err).Msg("Error notification failed")
	}
}
