package fetch

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"btcalert/models"
	phttp "btcalert/internal/platform/http"
)

var krakenIntervalMinutes = map[string]int{
	"1m":  1,
	"5m":  5,
	"15m": 15,
	"30m": 30,
	"1h":  60,
	"1d":  1440,
}

// KrakenSource fetches OHLC data from the Kraken public API.
type KrakenSource struct {
	client  *phttp.Client
	baseURL string
	pair    string
	logger  zerolog.Logger
}

// NewKrakenSource creates a Kraken adapter for the given pair (e.g. XBTUSD).
func NewKrakenSource(client *phttp.Client, pair string) *KrakenSource {
	return &KrakenSource{
		client:  client,
		baseURL: "https://api.kraken.com",
		pair:    pair,
		logger:  log.With().Str("component", "kraken_source").Logger(),
	}
}

func (s *KrakenSource) Name() string { return "Kraken" }

type krakenOHLCResponse struct {
	Error  []string                   `json:"error"`
	Result map[string]json.RawMessage `json:"result"`
}

// Fetch returns OHLC rows converted to the canonical bar schema, oldest
// first. Kraken rows arrive as
// [time, "open", "high", "low", "close", "vwap", "volume", count].
func (s *KrakenSource) Fetch(ctx context.Context, interval, period string) ([]models.Bar, error) {
	minutes, ok := krakenIntervalMinutes[interval]
	if !ok {
		minutes = 5
	}

	since := time.Now().UTC().Add(-time.Duration(periodDays(period)) * 24 * time.Hour).Unix()
	url := fmt.Sprintf("%s/0/public/OHLC?pair=%s&interval=%d&since=%d",
		s.baseURL, s.pair, minutes, since)

	body, err := s.client.Get(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("kraken OHLC: %w", err)
	}

	var resp krakenOHLCResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("parsing OHLC JSON: %w", err)
	}
	if len(resp.Error) > 0 {
		return nil, fmt.Errorf("kraken API error: %s", strings.Join(resp.Error, "; "))
	}

	// The result map keys the rows under the normalized pair name; "last"
	// is a pagination cursor.
	var rows [][]any
	for key, raw := range resp.Result {
		if key == "last" {
			continue
		}
		if err := json.Unmarshal(raw, &rows); err != nil {
			return nil, fmt.Errorf("parsing OHLC rows: %w", err)
		}
		break
	}

	bars := make([]models.Bar, 0, len(rows))
	for _, r := range rows {
		if len(r) < 7 {
			continue
		}
		ts, ok := r[0].(float64)
		if !ok {
			continue
		}
		open, err1 := krakenField(r[1])
		high, err2 := krakenField(r[2])
		low, err3 := krakenField(r[3])
		closePx, err4 := krakenField(r[4])
		volume, err5 := krakenField(r[6])
		if err1 != nil || err2 != nil || err3 != nil || err4 != nil || err5 != nil {
			continue
		}
		bars = append(bars, models.Bar{
			Time:   time.Unix(int64(ts), 0).UTC(),
			Open:   open,
			High:   high,
			Low:    low,
			Close:  closePx,
			Volume: volume,
		})
	}

	sort.Slice(bars, func(i, j int) bool { return bars[i].Time.Before(bars[j].Time) })

	s.logger.Debug().Int("count", len(bars)).Msg("Fetched OHLC")
	return bars, nil
}

func krakenField(v any) (float64, error) {
	switch t := v.(type) {
	case string:
		return strconv.ParseFloat(t, 64)
	case float64:
		return t, nil
	default:
		return 0, fmt.Errorf("unexpected OHLC field type %T", v)
	}
}
