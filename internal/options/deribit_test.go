package options

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"btcalert/models"
	phttp "btcalert/internal/platform/http"
)

func testClient() *phttp.Client {
	return phttp.NewClient(phttp.ClientOptions{
		Name:            "test",
		Timeout:         2 * time.Second,
		RequestsPerSec:  1000,
		MaxRetryTimeout: 100 * time.Millisecond,
	})
}

func TestSyntheticChainShape(t *testing.T) {
	c := NewClient(testClient())
	expiry := time.Date(2025, 5, 2, 0, 0, 0, 0, time.UTC)
	spot := 65000.0

	quotes := c.SyntheticChain(expiry, spot)
	require.Len(t, quotes, 40, "20 strikes, call and put each")

	calls, puts := 0, 0
	for _, q := range quotes {
		assert.GreaterOrEqual(t, q.Strike, spot-10000)
		assert.Less(t, q.Strike, spot+10000)
		assert.Equal(t, expiry, q.Expiry)
		assert.GreaterOrEqual(t, q.IV, 60.0)
		assert.LessOrEqual(t, q.IV, 100.0)
		assert.GreaterOrEqual(t, q.OI, 100.0)
		assert.GreaterOrEqual(t, q.Volume, 10.0)

		// Premium must cover intrinsic value plus some extrinsic.
		var intrinsicValue float64
		if q.Type == models.Call {
			calls++
			intrinsicValue = intrinsic(spot - q.Strike)
		} else {
			puts++
			intrinsicValue = intrinsic(q.Strike - spot)
		}
		assert.GreaterOrEqual(t, q.LTP, intrinsicValue+500-1)
	}
	assert.Equal(t, 20, calls)
	assert.Equal(t, 20, puts)
}

func TestFetchChainFallsBackOnUpstreamFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	c := NewClient(testClient())
	c.baseURL = server.URL

	result := c.FetchChain(context.Background(), time.Date(2025, 5, 2, 0, 0, 0, 0, time.UTC))

	assert.True(t, result.Synthetic)
	assert.Equal(t, defaultSpotPrice, result.Spot)
	assert.NotEmpty(t, result.Quotes, "fallback chain must never be empty")
}

func TestFetchChainUsesIndexPrice(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/v2/public/get_index_price":
			w.Write([]byte(`{"result": {"index_price": 72000.0}}`))
		default:
			// Instrument listing fails, forcing the synthetic path with
			// the live index price.
			w.WriteHeader(http.StatusServiceUnavailable)
		}
	}))
	defer server.Close()

	c := NewClient(testClient())
	c.baseURL = server.URL

	result := c.FetchChain(context.Background(), time.Date(2025, 5, 2, 0, 0, 0, 0, time.UTC))

	require.True(t, result.Synthetic)
	assert.Equal(t, 72000.0, result.Spot)
	for _, q := range result.Quotes {
		assert.GreaterOrEqual(t, q.Strike, 62000.0)
		assert.Less(t, q.Strike, 82000.0)
	}
}

func TestFetchChainParsesLiveInstruments(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/v2/public/get_index_price":
			w.Write([]byte(`{"result": {"index_price": 65000.0}}`))
		case "/api/v2/public/get_instruments":
			w.Write([]byte(`{"result": [
				{"instrument_name": "BTC-02MAY25-65000-C", "strike": 65000, "option_type": "call", "expiration_timestamp": 1746172800000},
				{"instrument_name": "BTC-02MAY25-65000-P", "strike": 65000, "option_type": "put", "expiration_timestamp": 1746172800000}
			]}`))
		case "/api/v2/public/get_order_book":
			w.Write([]byte(`{"result": {"mark_price": 1200.5, "stats": {"volume": 42, "open_interest": 310}, "greeks": {"vega": 0.65}}}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	c := NewClient(testClient())
	c.baseURL = server.URL

	result := c.FetchChain(context.Background(), time.Date(2025, 5, 2, 0, 0, 0, 0, time.UTC))

	assert.False(t, result.Synthetic)
	require.Len(t, result.Quotes, 2)
	assert.Equal(t, 1200.5, result.Quotes[0].LTP)
	assert.InDelta(t, 65.0, result.Quotes[0].IV, 1e-9)
	assert.Equal(t, 310.0, result.Quotes[0].OI)
}
