// Package options acquires option chain snapshots for a target expiry,
// with a deterministic synthetic fallback when the exchange is
// unavailable.
package options

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"btcalert/models"
	phttp "btcalert/internal/platform/http"
)

const defaultSpotPrice = 60000.0

// Client fetches BTC option chains from the Deribit public API.
type Client struct {
	http    *phttp.Client
	baseURL string
	limiter *rate.Limiter
	rng     *rand.Rand
	logger  zerolog.Logger
}

// NewClient creates a Deribit chain client. Per-instrument detail calls
// are rate limited to avoid upstream throttling.
func NewClient(httpClient *phttp.Client) *Client {
	return &Client{
		http:    httpClient,
		baseURL: "https://www.deribit.com",
		limiter: rate.NewLimiter(rate.Every(200*time.Millisecond), 1),
		rng:     rand.New(rand.NewSource(42)),
		logger:  log.With().Str("component", "option_fetcher").Logger(),
	}
}

// ChainResult is a fetched option chain tagged with its origin.
type ChainResult struct {
	Quotes    []models.OptionQuote
	Synthetic bool
	Spot      float64
}

type instrumentsResponse struct {
	Result []struct {
		InstrumentName      string  `json:"instrument_name"`
		Strike              float64 `json:"strike"`
		OptionType          string  `json:"option_type"`
		ExpirationTimestamp int64   `json:"expiration_timestamp"`
	} `json:"result"`
}

type orderBookResponse struct {
	Result struct {
		MarkPrice float64 `json:"mark_price"`
		Stats     struct {
			Volume       float64 `json:"volume"`
			OpenInterest float64 `json:"open_interest"`
		} `json:"stats"`
		Greeks struct {
			Vega float64 `json:"vega"`
		} `json:"greeks"`
	} `json:"result"`
}

type indexPriceResponse struct {
	Result struct {
		IndexPrice float64 `json:"index_price"`
	} `json:"result"`
}

// FetchChain returns the option chain for the target expiry. Any network
// or parse failure, and an empty live result, fall back to a synthetic
// chain around the current underlying price — the merge stage never
// receives an empty right-hand side.
func (c *Client) FetchChain(ctx context.Context, expiry time.Time) ChainResult {
	spot := c.indexPrice(ctx)

	quotes, err := c.fetchLive(ctx, expiry, spot)
	if err != nil {
		c.logger.Warn().Err(err).Msg("Live chain fetch failed, generating synthetic chain")
		return ChainResult{Quotes: c.SyntheticChain(expiry, spot), Synthetic: true, Spot: spot}
	}
	if len(quotes) == 0 {
		c.logger.Warn().Msg("No usable option records, generating synthetic chain")
		return ChainResult{Quotes: c.SyntheticChain(expiry, spot), Synthetic: true, Spot: spot}
	}

	c.logger.Info().Int("records", len(quotes)).Msg("Fetched option chain")
	return ChainResult{Quotes: quotes, Spot: spot}
}

func (c *Client) indexPrice(ctx context.Context) float64 {
	body, err := c.http.Get(ctx, c.baseURL+"/api/v2/public/get_index_price?index_name=btc_usd")
	if err != nil {
		c.logger.Warn().Err(err).Msg("Index price fetch failed, using default")
		return defaultSpotPrice
	}
	var resp indexPriceResponse
	if err := json.Unmarshal(body, &resp); err != nil || resp.Result.IndexPrice <= 0 {
		return defaultSpotPrice
	}
	return resp.Result.IndexPrice
}

func (c *Client) fetchLive(ctx context.Context, expiry time.Time, spot float64) ([]models.OptionQuote, error) {
	url := c.baseURL + "/api/v2/public/get_instruments?currency=BTC&kind=option&expired=false"
	body, err := c.http.Get(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("listing instruments: %w", err)
	}

	var resp instrumentsResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("parsing instruments JSON: %w", err)
	}

	code := expiryCode(expiry)
	matching := resp.Result[:0:0]
	for _, inst := range resp.Result {
		if strings.Contains(inst.InstrumentName, code) {
			matching = append(matching, inst)
		}
	}
	// No instruments for the target expiry: fall back to the full listing
	// rather than an empty chain.
	if len(matching) == 0 {
		c.logger.Warn().Str("expiry", code).Msg("No options for target expiry, using all available")
		matching = resp.Result
	}

	now := time.Now().UTC()
	var quotes []models.OptionQuote
	for _, inst := range matching {
		if err := c.limiter.Wait(ctx); err != nil {
			return quotes, err
		}

		detail, err := c.orderBook(ctx, inst.InstrumentName)
		if err != nil {
			c.logger.Warn().Err(err).Str("instrument", inst.InstrumentName).Msg("Detail fetch failed")
			continue
		}

		optType := models.Put
		if inst.OptionType == "call" {
			optType = models.Call
		}
		instExpiry := expiry
		if inst.ExpirationTimestamp > 0 {
			instExpiry = time.UnixMilli(inst.ExpirationTimestamp).UTC()
		}

		quotes = append(quotes, models.OptionQuote{
			Time:   now,
			Strike: inst.Strike,
			Type:   optType,
			Expiry: instExpiry,
			LTP:    detail.Result.MarkPrice,
			// Known precision limitation: implied volatility is
			// approximated from the vega greek, not an inverted pricing
			// model. Downstream thresholds were tuned against this value.
			IV:     detail.Result.Greeks.Vega * 100,
			OI:     detail.Result.Stats.OpenInterest,
			Volume: detail.Result.Stats.Volume,
		})
	}
	return quotes, nil
}

func (c *Client) orderBook(ctx context.Context, instrument string) (*orderBookResponse, error) {
	url := fmt.Sprintf("%s/api/v2/public/get_order_book?instrument_name=%s", c.baseURL, instrument)
	body, err := c.http.Get(ctx, url)
	if err != nil {
		return nil, err
	}
	var resp orderBookResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("parsing order book JSON: %w", err)
	}
	return &resp, nil
}

// SyntheticChain generates a deterministic mock chain: strikes spanning
// ±10000 around spot in 1000 increments, one call and one put per strike,
// premiums from intrinsic value plus a random extrinsic component.
func (c *Client) SyntheticChain(expiry time.Time, spot float64) []models.OptionQuote {
	now := time.Now().UTC()
	var quotes []models.OptionQuote
	for strike := spot - 10000; strike < spot+10000; strike += 1000 {
		callPremium := intrinsic(spot-strike) + 500 + c.rng.Float64()*1500
		putPremium := intrinsic(strike-spot) + 500 + c.rng.Float64()*1500

		quotes = append(quotes,
			models.OptionQuote{
				Time: now, Strike: strike, Type: models.Call, Expiry: expiry,
				LTP:    round2(callPremium),
				IV:     round2(60 + c.rng.Float64()*40),
				OI:     float64(int(100 + c.rng.Float64()*900)),
				Volume: float64(int(10 + c.rng.Float64()*490)),
			},
			models.OptionQuote{
				Time: now, Strike: strike, Type: models.Put, Expiry: expiry,
				LTP:    round2(putPremium),
				IV:     round2(60 + c.rng.Float64()*40),
				OI:     float64(int(100 + c.rng.Float64()*900)),
				Volume: float64(int(10 + c.rng.Float64()*490)),
			},
		)
	}
	return quotes
}

func intrinsic(v float64) float64 {
	if v > 0 {
		return v
	}
	return 0
}

func round2(v float64) float64 {
	return float64(int(v*100)) / 100
}
