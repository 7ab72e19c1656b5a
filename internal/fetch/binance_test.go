package fetch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	phttp "btcalert/internal/platform/http"
)

func testClient() *phttp.Client {
	return phttp.NewClient(phttp.ClientOptions{
		Name:            "test",
		Timeout:         2 * time.Second,
		RequestsPerSec:  100,
		MaxRetryTimeout: 100 * time.Millisecond,
	})
}

func TestBinanceFetchParsesKlines(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v3/klines", r.URL.Path)
		assert.Equal(t, "BTCUSDT", r.URL.Query().Get("symbol"))
		// Deliberately out of order; the adapter must sort ascending.
		w.Write([]byte(`[
			[1714560300000, "65100.0", "65200.0", "65000.0", "65150.0", "12.5", 1714560599999],
			[1714560000000, "65000.0", "65100.0", "64900.0", "65100.0", "10.0", 1714560299999]
		]`))
	}))
	defer server.Close()

	src := NewBinanceSource(testClient(), "BTCUSDT")
	src.baseURL = server.URL

	bars, err := src.Fetch(context.Background(), "5m", "1d")
	require.NoError(t, err)
	require.Len(t, bars, 2)

	assert.True(t, bars[0].Time.Before(bars[1].Time))
	assert.Equal(t, 65000.0, bars[0].Open)
	assert.Equal(t, 65150.0, bars[1].Close)
	assert.Equal(t, 12.5, bars[1].Volume)
}

func TestBinanceFetchUpstreamError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))
	defer server.Close()

	src := NewBinanceSource(testClient(), "BTCUSDT")
	src.baseURL = server.URL

	_, err := src.Fetch(context.Background(), "5m", "1d")
	assert.Error(t, err)
}

func TestKlineFieldTypes(t *testing.T) {
	v, err := klineField("65000.5")
	require.NoError(t, err)
	assert.Equal(t, 65000.5, v)

	v, err = klineField(65000.5)
	require.NoError(t, err)
	assert.Equal(t, 65000.5, v)

	_, err = klineField(true)
	assert.Error(t, err)
}
