package alert

import (
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"

	"btcalert/config"
	"btcalert/internal/train"
	"btcalert/models"
)

type captureSink struct {
	messages []string
}

func (c *captureSink) Send(text string) error {
	c.messages = append(c.messages, text)
	return nil
}

func testRunner(cfg *config.Config, now time.Time) *Runner {
	return &Runner{
		cfg:    cfg,
		sink:   &captureSink{},
		now:    func() time.Time { return now },
		logger: zerolog.Nop(),
	}
}

func cryptoConfig() *config.Config {
	return &config.Config{
		IndexSymbol:               "BTC-USD",
		IndexName:                 "BITCOIN",
		StrikeGap:                 1000,
		UseWeeklyOptions:          true,
		WeeklyExpiryDay:           "friday",
		SignalConfidenceThreshold: 70,
		FetchIntervalMin:          15,
	}
}

func TestRecommendedStrike(t *testing.T) {
	for _, tt := range []struct {
		price float64
		gap   float64
		sig   models.Signal
		want  float64
	}{
		{65123, 1000, models.BuyCall, 66000},
		{65123, 1000, models.BuyPut, 65000},
		{65999, 1000, models.BuyCall, 66000},
		{65000, 1000, models.BuyCall, 66000},
		{65000, 1000, models.BuyPut, 65000},
		{22130, 50, models.BuyCall, 22150},
		{22130, 50, models.BuyPut, 22100},
	} {
		got := RecommendedStrike(tt.price, tt.gap, tt.sig)
		assert.Equal(t, tt.want, got, "price=%v gap=%v sig=%s", tt.price, tt.gap, tt.sig)
	}
}

func TestInMarketHoursCrypto(t *testing.T) {
	cfg := cryptoConfig()
	r := testRunner(cfg, time.Time{})

	sundayNight := time.Date(2025, 5, 4, 3, 0, 0, 0, time.UTC)
	assert.True(t, r.inMarketHours(sundayNight), "crypto trades around the clock")

	cfg.LimitTradingHours = true
	assert.False(t, r.inMarketHours(sundayNight))
	assert.True(t, r.inMarketHours(time.Date(2025, 5, 4, 12, 0, 0, 0, time.UTC)))
	assert.False(t, r.inMarketHours(time.Date(2025, 5, 4, 22, 30, 0, 0, time.UTC)))
}

func TestInMarketHoursTraditional(t *testing.T) {
	cfg := cryptoConfig()
	cfg.IndexSymbol = "NIFTY"
	r := testRunner(cfg, time.Time{})

	assert.False(t, r.inMarketHours(time.Date(2025, 5, 3, 10, 0, 0, 0, time.UTC)), "saturday")
	assert.False(t, r.inMarketHours(time.Date(2025, 5, 2, 8, 0, 0, 0, time.UTC)), "before open")
	assert.True(t, r.inMarketHours(time.Date(2025, 5, 2, 9, 15, 0, 0, time.UTC)), "at open")
	assert.True(t, r.inMarketHours(time.Date(2025, 5, 2, 12, 0, 0, 0, time.UTC)))
	assert.False(t, r.inMarketHours(time.Date(2025, 5, 2, 15, 31, 0, 0, time.UTC)), "after close")
}

func TestTargetExpiryWeekly(t *testing.T) {
	now := time.Date(2025, 4, 30, 12, 0, 0, 0, time.UTC) // Wednesday
	r := testRunner(cryptoConfig(), now)

	expiry := r.TargetExpiry()
	assert.Equal(t, time.Friday, expiry.Weekday())
	assert.Equal(t, time.Date(2025, 5, 2, 0, 0, 0, 0, time.UTC), expiry)
}

func TestTargetExpiryFixedDate(t *testing.T) {
	cfg := cryptoConfig()
	cfg.UseWeeklyOptions = false
	cfg.ExpiryDate = "2025-06-27"
	r := testRunner(cfg, time.Date(2025, 4, 30, 12, 0, 0, 0, time.UTC))

	assert.Equal(t, time.Date(2025, 6, 27, 0, 0, 0, 0, time.UTC), r.TargetExpiry())
}

func TestTargetExpiryBadDateFallsBackWeekly(t *testing.T) {
	cfg := cryptoConfig()
	cfg.UseWeeklyOptions = false
	cfg.ExpiryDate = "27/06/2025"
	r := testRunner(cfg, time.Date(2025, 4, 30, 12, 0, 0, 0, time.UTC))

	assert.Equal(t, time.Friday, r.TargetExpiry().Weekday())
}

func TestFormatSignal(t *testing.T) {
	now := time.Date(2025, 4, 30, 12, 0, 0, 0, time.UTC)
	r := testRunner(cryptoConfig(), now)

	row := models.FeatureRow{
		Time:    now,
		Close:   65123.45,
		RSI14:   61.2,
		MACD:    45.1,
		BBWidth: 0.034,
		ATR:     420.5,
		CallLTP: 812.5,
	}
	pred := train.Prediction{Signal: models.BuyCall, Confidence: 78.3}
	expiry := time.Date(2025, 5, 2, 0, 0, 0, 0, time.UTC)

	msg := r.formatSignal("0123456789abcdef", row, pred, 66000, expiry)

	assert.Contains(t, msg, "BUY_CALL")
	assert.Contains(t, msg, "78.3%")
	assert.Contains(t, msg, "65123.45")
	assert.Contains(t, msg, "66000")
	assert.Contains(t, msg, "2025-05-02")
	assert.Contains(t, msg, "01234567", "run id is shortened")
	assert.True(t, strings.HasPrefix(msg, "🚨"))
}
