package binance

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/quantdesk/backtesting-backend/internal/config"
	"github.com/quantdesk/backtesting-backend/internal/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const _klinesPayload = `[
	[1700000000000,"37000.10","37100.00","36900.00","37050.50","123.456",1700000059999,"0",10,"0","0","0"],
	[1700000060000,"37050.50","37200.00","37000.00","37150.00","98.7",1700000119999,"0",8,"0","0","0"]
]`

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	client := NewClient(config.BinanceConfig{
		Address:           srv.URL,
		RequestsPerMinute: 10000,
	}, logger.NewNop())
	t.Cleanup(func() { client.Close() })

	return client
}

func TestFetchKlines(t *testing.T) {
	var gotQuery map[string]string
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, _klinesURL, r.URL.Path)
		gotQuery = map[string]string{
			"symbol":   r.URL.Query().Get("symbol"),
			"interval": r.URL.Query().Get("interval"),
			"limit":    r.URL.Query().Get("limit"),
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(_klinesPayload)) //nolint:errcheck
	})

	klines, err := client.FetchKlines(context.Background(), "BTCUSDT", "1m", 2)
	require.NoError(t, err)
	require.Len(t, klines, 2)

	assert.Equal(t, map[string]string{"symbol": "BTCUSDT", "interval": "1m", "limit": "2"}, gotQuery)

	first := klines[0]
	assert.Equal(t, "BTCUSDT", first.Symbol)
	assert.Equal(t, "1m", first.Interval)
	assert.EqualValues(t, 1700000000000, first.OpenTime)
	assert.EqualValues(t, 1700000059999, first.CloseTime)
	assert.InDelta(t, 37000.10, first.Open, 1e-9)
	assert.InDelta(t, 37100.00, first.High, 1e-9)
	assert.InDelta(t, 36900.00, first.Low, 1e-9)
	assert.InDelta(t, 37050.50, first.Close, 1e-9)
	assert.InDelta(t, 123.456, first.Volume, 1e-9)
	assert.Equal(t, time.UnixMilli(1700000000000).UTC(), first.Ts())
}

func TestFetchKlinesClientErrorNotRetried(t *testing.T) {
	var calls int
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		http.Error(w, `{"code":-1121,"msg":"Invalid symbol."}`, http.StatusBadRequest)
	})

	_, err := client.FetchKlines(context.Background(), "NOPE", "1m", 5)
	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestFetchKlinesRetriesServerErrors(t *testing.T) {
	var calls int
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls < 3 {
			http.Error(w, "down", http.StatusInternalServerError)
			return
		}
		w.Write([]byte(_klinesPayload)) //nolint:errcheck
	})

	klines, err := client.FetchKlines(context.Background(), "BTCUSDT", "1m", 2)
	require.NoError(t, err)
	assert.Len(t, klines, 2)
	assert.Equal(t, 3, calls)
}

func TestParseKlinesMalformed(t *testing.T) {
	_, err := parseKlines([]byte(`{"not":"an array"}`), "BTCUSDT", "1m")
	assert.Error(t, err)

	_, err = parseKlines([]byte(`[[1700000000000,"1","2"]]`), "BTCUSDT", "1m")
	assert.Error(t, err)

	_, err = parseKlines([]byte(`[[1700000000000,"x","2","3","4","5",1700000059999]]`), "BTCUSDT", "1m")
	assert.Error(t, err)
}

func TestParseKlinesEmpty(t *testing.T) {
	klines, err := parseKlines([]byte(`[]`), "BTCUSDT", "1m")
	require.NoError(t, err)
	assert.Empty(t, klines)
}
