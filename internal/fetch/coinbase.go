package fetch

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"btcalert/models"
	phttp "btcalert/internal/platform/http"
)

var coinbaseGranularity = map[string]int{
	"1m":  60,
	"5m":  300,
	"15m": 900,
	"30m": 1800,
	"1h":  3600,
	"1d":  86400,
}

// CoinbaseSource fetches candles from the Coinbase Exchange public API.
type CoinbaseSource struct {
	client  *phttp.Client
	baseURL string
	product string
	logger  zerolog.Logger
}

// NewCoinbaseSource creates a Coinbase adapter for the given product id
// (e.g. BTC-USD).
func NewCoinbaseSource(client *phttp.Client, product string) *CoinbaseSource {
	return &CoinbaseSource{
		client:  client,
		baseURL: "https://api.exchange.coinbase.com",
		product: product,
		logger:  log.With().Str("component", "coinbase_source").Logger(),
	}
}

func (s *CoinbaseSource) Name() string { return "Coinbase" }

// Fetch returns candles converted to the canonical bar schema, oldest
// first. Coinbase candles arrive as [time, low, high, open, close, volume].
func (s *CoinbaseSource) Fetch(ctx context.Context, interval, period string) ([]models.Bar, error) {
	granularity, ok := coinbaseGranularity[interval]
	if !ok {
		granularity = 300
	}

	end := time.Now().UTC()
	start := end.Add(-time.Duration(periodDays(period)) * 24 * time.Hour)

	url := fmt.Sprintf("%s/products/%s/candles?start=%s&end=%s&granularity=%d",
		s.baseURL, s.product,
		start.Format(time.RFC3339), end.Format(time.RFC3339), granularity)

	body, err := s.client.Get(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("coinbase candles: %w", err)
	}

	var raw [][]float64
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("parsing candles JSON: %w", err)
	}

	bars := make([]models.Bar, 0, len(raw))
	for _, c := range raw {
		if len(c) < 6 {
			continue
		}
		bars = append(bars, models.Bar{
			Time:   time.Unix(int64(c[0]), 0).UTC(),
			Low:    c[1],
			High:   c[2],
			Open:   c[3],
			Close:  c[4],
			Volume: c[5],
		})
	}

	sort.Slice(bars, func(i, j int) bool { return bars[i].Time.Before(bars[j].Time) })

	s.logger.Debug().Int("count", len(bars)).Msg("Fetched candles")
	return bars, nil
}
