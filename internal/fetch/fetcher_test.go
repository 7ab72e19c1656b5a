package fetch

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"btcalert/models"
)

type stubSource struct {
	name  string
	bars  []models.Bar
	err   error
	calls int
}

func (s *stubSource) Name() string { return s.name }

func (s *stubSource) Fetch(ctx context.Context, interval, period string) ([]models.Bar, error) {
	s.calls++
	return s.bars, s.err
}

func makeBars(n int) []models.Bar {
	start := time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC)
	bars := make([]models.Bar, n)
	for i := range bars {
		px := 65000 + float64(i)
		bars[i] = models.Bar{
			Time: start.Add(time.Duration(i) * 5 * time.Minute),
			Open: px, High: px + 10, Low: px - 10, Close: px, Volume: 100,
		}
	}
	return bars
}

func TestFetchFirstSourceWins(t *testing.T) {
	first := &stubSource{name: "first", bars: makeBars(50)}
	second := &stubSource{name: "second", bars: makeBars(50)}
	f := NewWithSources([]Source{first, second}, time.Millisecond)

	result := f.Fetch(context.Background(), "5m", "2d")

	assert.Equal(t, OriginLive, result.Origin)
	assert.Equal(t, "first", result.Source)
	assert.Len(t, result.Bars, 50)
	assert.Zero(t, second.calls, "lower-ranked source must not be called")
}

func TestFetchFailsOver(t *testing.T) {
	first := &stubSource{name: "first", err: errors.New("connection refused")}
	second := &stubSource{name: "second", bars: makeBars(5)} // below minimum
	third := &stubSource{name: "third", bars: makeBars(30)}
	f := NewWithSources([]Source{first, second, third}, time.Millisecond)

	result := f.Fetch(context.Background(), "5m", "2d")

	assert.Equal(t, OriginLive, result.Origin)
	assert.Equal(t, "third", result.Source)
	assert.Equal(t, 1, first.calls)
	assert.Equal(t, 1, second.calls)
}

func TestFetchSyntheticFallback(t *testing.T) {
	failing := &stubSource{name: "down", err: errors.New("boom")}
	f := NewWithSources([]Source{failing}, time.Millisecond)

	result := f.Fetch(context.Background(), "5m", "2d")

	assert.Equal(t, OriginSynthetic, result.Origin)
	require.NotEmpty(t, result.Bars, "synthetic fallback must never be empty")
	assert.Len(t, result.Bars, 576)
}

func TestOriginString(t *testing.T) {
	assert.Equal(t, "live", OriginLive.String())
	assert.Equal(t, "cache", OriginCache.String())
	assert.Equal(t, "synthetic", OriginSynthetic.String())
}

func TestBarCount(t *testing.T) {
	assert.Equal(t, 576, barCount("5m", "2d", 0))
	assert.Equal(t, 1000, barCount("1m", "2d", 1000))
	assert.Equal(t, 288, barCount("unknown", "1d", 0))
	assert.Equal(t, 288, barCount("5m", "garbage", 0))
}
