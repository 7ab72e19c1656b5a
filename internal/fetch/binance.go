package fetch

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"btcalert/models"
	phttp "btcalert/internal/platform/http"
)

// BinanceSource fetches klines from the Binance public REST API.
type BinanceSource struct {
	client  *phttp.Client
	baseURL string
	symbol  string
	logger  zerolog.Logger
}

// NewBinanceSource creates a Binance adapter for the given trading symbol
// (e.g. BTCUSDT).
func NewBinanceSource(client *phttp.Client, symbol string) *BinanceSource {
	return &BinanceSource{
		client:  client,
		baseURL: "https://api.binance.com",
		symbol:  symbol,
		logger:  log.With().Str("component", "binance_source").Logger(),
	}
}

func (s *BinanceSource) Name() string { return "Binance" }

// Fetch returns klines converted to the canonical bar schema, oldest first.
func (s *BinanceSource) Fetch(ctx context.Context, interval, period string) ([]models.Bar, error) {
	limit := barCount(interval, period, 1000)
	url := fmt.Sprintf("%s/api/v3/klines?symbol=%s&interval=%s&limit=%d",
		s.baseURL, s.symbol, interval, limit)

	body, err := s.client.Get(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("binance klines: %w", err)
	}

	// Klines arrive as arrays of mixed numbers and numeric strings:
	// [openTime, open, high, low, close, volume, closeTime, ...].
	var raw [][]any
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("parsing klines JSON: %w", err)
	}

	bars := make([]models.Bar, 0, len(raw))
	for _, k := range raw {
		if len(k) < 6 {
			continue
		}
		openTime, ok := k[0].(float64)
		if !ok {
			continue
		}
		open, err1 := klineField(k[1])
		high, err2 := klineField(k[2])
		low, err3 := klineField(k[3])
		closePx, err4 := klineField(k[4])
		volume, err5 := klineField(k[5])
		if err1 != nil || err2 != nil || err3 != nil || err4 != nil || err5 != nil {
			continue
		}
		bars = append(bars, models.Bar{
			Time:   time.UnixMilli(int64(openTime)).UTC(),
			Open:   open,
			High:   high,
			Low:    low,
			Close:  closePx,
			Volume: volume,
		})
	}

	sort.Slice(bars, func(i, j int) bool { return bars[i].Time.Before(bars[j].Time) })

	s.logger.Debug().Int("count", len(bars)).Msg("Fetched klines")
	return bars, nil
}

func klineField(v any) (float64, error) {
	switch t := v.(type) {
	case string:
		return strconv.ParseFloat(t, 64)
	case float64:
		return t, nil
	default:
		return 0, fmt.Errorf("unexpected kline field type %T", v)
	}
}
