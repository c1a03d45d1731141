package collector

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/quantdesk/backtesting-backend/internal/binance"
	"github.com/quantdesk/backtesting-backend/internal/config"
	"github.com/quantdesk/backtesting-backend/internal/logger"
	"github.com/quantdesk/backtesting-backend/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fetchCall struct {
	symbol   string
	interval string
	limit    int
}

type fakeFetcher struct {
	klines map[string][]binance.Kline
	err    error
	calls  []fetchCall
}

func (f *fakeFetcher) FetchKlines(_ context.Context, symbol, interval string, limit int) ([]binance.Kline, error) {
	f.calls = append(f.calls, fetchCall{symbol: symbol, interval: interval, limit: limit})
	if f.err != nil {
		return nil, f.err
	}
	return f.klines[symbol+"/"+interval], nil
}

type fakeStore struct {
	inserted  map[string][]model.Candle
	history   []model.Candle
	upserted  map[string][]model.IndicatorRow
	insertErr error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		inserted: map[string][]model.Candle{},
		upserted: map[string][]model.IndicatorRow{},
	}
}

func (s *fakeStore) InsertCandles(_ context.Context, interval string, candles []model.Candle) (int64, error) {
	if s.insertErr != nil {
		return 0, s.insertErr
	}
	s.inserted[interval] = append(s.inserted[interval], candles...)
	return int64(len(candles)), nil
}

func (s *fakeStore) GetRecentCandles(_ context.Context, _, _ string, _ int) ([]model.Candle, error) {
	return s.history, nil
}

func (s *fakeStore) UpsertIndicators(_ context.Context, interval string, rows []model.IndicatorRow) (int64, error) {
	s.upserted[interval] = append(s.upserted[interval], rows...)
	return int64(len(rows)), nil
}

func testConfig(symbols, intervals []string) *config.CollectorConfig {
	return (&config.CollectorConfig{Symbols: symbols, Intervals: intervals, Limit: 500}).Setup()
}

func makeKlines(symbol, interval string, n int) []binance.Kline {
	klines := make([]binance.Kline, n)
	for i := range klines {
		klines[i] = binance.Kline{
			Symbol:   symbol,
			Interval: interval,
			OpenTime: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC).Add(time.Duration(i)*time.Minute).UnixMilli(),
			Open:     100,
			High:     101,
			Low:      99,
			Close:    100.5,
			Volume:   10,
		}
	}
	return klines
}

func makeHistory(symbol string, n int) []model.Candle {
	candles := make([]model.Candle, n)
	for i := range candles {
		candles[i] = model.Candle{
			Ts:     time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC).Add(time.Duration(i) * time.Minute),
			Symbol: symbol,
			Close:  100 + float64(i%5),
		}
	}
	return candles
}

func TestCollectOnce(t *testing.T) {
	fetcher := &fakeFetcher{klines: map[string][]binance.Kline{
		"BTCUSDT/1m": makeKlines("BTCUSDT", "1m", 3),
	}}
	store := newFakeStore()
	store.history = makeHistory("BTCUSDT", 120)

	c := New(fetcher, store, testConfig([]string{"BTCUSDT"}, []string{"1m"}), logger.NewNop())
	require.NoError(t, c.CollectOnce(context.Background()))

	require.Len(t, fetcher.calls, 1)
	assert.Equal(t, fetchCall{symbol: "BTCUSDT", interval: "1m", limit: 500}, fetcher.calls[0])

	require.Len(t, store.inserted["1m"], 3)
	first := store.inserted["1m"][0]
	assert.Equal(t, "BTCUSDT", first.Symbol)
	assert.Equal(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), first.Ts)
	assert.InDelta(t, 100.5, first.Close, 1e-9)

	assert.NotEmpty(t, store.upserted["1m"], "indicators must be refreshed after an insert")
}

func TestCollectOnceAllPairs(t *testing.T) {
	fetcher := &fakeFetcher{klines: map[string][]binance.Kline{
		"BTCUSDT/1m": makeKlines("BTCUSDT", "1m", 1),
		"BTCUSDT/1h": makeKlines("BTCUSDT", "1h", 1),
		"ETHUSDT/1m": makeKlines("ETHUSDT", "1m", 1),
		"ETHUSDT/1h": makeKlines("ETHUSDT", "1h", 1),
	}}
	store := newFakeStore()

	c := New(fetcher, store, testConfig([]string{"BTCUSDT", "ETHUSDT"}, []string{"1m", "1h"}), logger.NewNop())
	require.NoError(t, c.CollectOnce(context.Background()))

	assert.Len(t, fetcher.calls, 4)
	assert.Len(t, store.inserted["1m"], 2)
	assert.Len(t, store.inserted["1h"], 2)
}

func TestCollectOnceShortHistorySkipsIndicators(t *testing.T) {
	fetcher := &fakeFetcher{klines: map[string][]binance.Kline{
		"BTCUSDT/1m": makeKlines("BTCUSDT", "1m", 2),
	}}
	store := newFakeStore()
	store.history = makeHistory("BTCUSDT", 10)

	c := New(fetcher, store, testConfig([]string{"BTCUSDT"}, []string{"1m"}), logger.NewNop())
	require.NoError(t, c.CollectOnce(context.Background()))

	assert.Len(t, store.inserted["1m"], 2)
	assert.Empty(t, store.upserted["1m"])
}

func TestCollectOnceFetchErrorReported(t *testing.T) {
	fetcher := &fakeFetcher{err: errors.New("binance down")}
	store := newFakeStore()

	c := New(fetcher, store, testConfig([]string{"BTCUSDT"}, []string{"1m"}), logger.NewNop())
	err := c.CollectOnce(context.Background())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "binance down")
	assert.Empty(t, store.inserted)
}

func TestCollectOnceContinuesAfterFailure(t *testing.T) {
	fetcher := &fakeFetcher{klines: map[string][]binance.Kline{
		// BTCUSDT/1m missing: empty batch, logged and skipped
		"ETHUSDT/1m": makeKlines("ETHUSDT", "1m", 1),
	}}
	store := newFakeStore()
	store.insertErr = nil

	c := New(fetcher, store, testConfig([]string{"BTCUSDT", "ETHUSDT"}, []string{"1m"}), logger.NewNop())
	require.NoError(t, c.CollectOnce(context.Background()))

	assert.Len(t, fetcher.calls, 2)
	assert.Len(t, store.inserted["1m"], 1)
}

func TestCollectOnceCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	fetcher := &fakeFetcher{}
	c := New(fetcher, newFakeStore(), testConfig([]string{"BTCUSDT"}, []string{"1m"}), logger.NewNop())

	err := c.CollectOnce(ctx)
	require.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, fetcher.calls)
}

func TestRunBadCronSpec(t *testing.T) {
	cfg := testConfig([]string{"BTCUSDT"}, []string{"1m"})
	cfg.CronSpec = "not a cron spec"

	fetcher := &fakeFetcher{}
	c := New(fetcher, newFakeStore(), cfg, logger.NewNop())

	err := c.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad cron spec")
}

func TestRunStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	fetcher := &fakeFetcher{klines: map[string][]binance.Kline{
		"BTCUSDT/1m": makeKlines("BTCUSDT", "1m", 1),
	}}
	c := New(fetcher, newFakeStore(), testConfig([]string{"BTCUSDT"}, []string{"1m"}), logger.NewNop())

	done := make(chan error, 1)
	go func() { done <- c.Run(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not stop after cancel")
	}

	// the immediate batch ran before the cancel
	assert.NotEmpty(t, fetcher.calls)
}
