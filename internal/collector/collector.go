// Package collector ingests exchange candles on a schedule and keeps the
// derived indicator tables in step.
package collector

import (
	"context"
	"fmt"

	"github.com/quantdesk/backtesting-backend/internal/binance"
	"github.com/quantdesk/backtesting-backend/internal/config"
	"github.com/quantdesk/backtesting-backend/internal/indicators"
	"github.com/quantdesk/backtesting-backend/internal/logger"
	"github.com/quantdesk/backtesting-backend/internal/metrics"
	"github.com/quantdesk/backtesting-backend/internal/model"
	"github.com/robfig/cron/v3"
)

// history to reload for indicator recomputation: warmup for the slowest
// series plus a tail of rows whose values may still move
const _indicatorHistory = 400

type KlinesFetcher interface {
	FetchKlines(ctx context.Context, symbol, interval string, limit int) ([]binance.Kline, error)
}

type CandleStore interface {
	InsertCandles(ctx context.Context, interval string, candles []model.Candle) (int64, error)
	GetRecentCandles(ctx context.Context, symbol, interval string, limit int) ([]model.Candle, error)
	UpsertIndicators(ctx context.Context, interval string, rows []model.IndicatorRow) (int64, error)
}

type Collector struct {
	fetcher KlinesFetcher
	store   CandleStore
	cfg     *config.CollectorConfig

	logger logger.Logger
}

func New(fetcher KlinesFetcher, store CandleStore, cfg *config.CollectorConfig, logger logger.Logger) *Collector {
	return &Collector{
		fetcher: fetcher,
		store:   store,
		cfg:     cfg,
		logger:  logger,
	}
}

// CollectOnce ingests one batch for every configured symbol/interval pair.
// A failing pair is logged and skipped, the rest of the batch continues.
func (c *Collector) CollectOnce(ctx context.Context) error {
	var lastErr error
	for _, symbol := range c.cfg.Symbols {
		for _, interval := range c.cfg.Intervals {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if err := c.collectPair(ctx, symbol, interval); err != nil {
				c.logger.Errorf("%s: batch for %s %s failed", err, symbol, interval)
				metrics.RecordCollectorBatch(symbol, interval, "error")
				lastErr = err
				continue
			}
			metrics.RecordCollectorBatch(symbol, interval, "ok")
		}
	}
	return lastErr
}

func (c *Collector) collectPair(ctx context.Context, symbol, interval string) error {
	klines, err := c.fetcher.FetchKlines(ctx, symbol, interval, c.cfg.Limit)
	if err != nil {
		return fmt.Errorf("%w: can't fetch klines", err)
	}
	if len(klines) == 0 {
		c.logger.Warnf("no klines for %s %s", symbol, interval)
		return nil
	}

	candles := make([]model.Candle, len(klines))
	for i, k := range klines {
		candles[i] = model.Candle{
			Ts:     k.Ts(),
			Symbol: k.Symbol,
			Open:   k.Open,
			High:   k.High,
			Low:    k.Low,
			Close:  k.Close,
			Volume: k.Volume,
		}
	}

	inserted, err := c.store.InsertCandles(ctx, interval, candles)
	if err != nil {
		return fmt.Errorf("%w: can't store candles", err)
	}
	c.logger.Infof("inserted %d/%d candles for %s %s", inserted, len(candles), symbol, interval)

	return c.refreshIndicators(ctx, symbol, interval)
}

func (c *Collector) refreshIndicators(ctx context.Context, symbol, interval string) error {
	history, err := c.store.GetRecentCandles(ctx, symbol, interval, _indicatorHistory)
	if err != nil {
		return fmt.Errorf("%w: can't load candle history", err)
	}

	rows := indicators.Compute(symbol, history)
	if len(rows) == 0 {
		c.logger.Debugf("not enough history for indicators on %s %s (%d candles)", symbol, interval, len(history))
		return nil
	}

	if _, err := c.store.UpsertIndicators(ctx, interval, rows); err != nil {
		return fmt.Errorf("%w: can't store indicators", err)
	}
	c.logger.Infof("refreshed %d indicator rows for %s %s", len(rows), symbol, interval)
	return nil
}

// Run schedules CollectOnce with the configured cron spec until the context
// is cancelled. The first batch runs immediately.
func (c *Collector) Run(ctx context.Context) error {
	if err := c.CollectOnce(ctx); err != nil {
		c.logger.Warnf("%s: initial batch had failures", err)
	}

	sched := cron.New()
	if _, err := sched.AddFunc(c.cfg.CronSpec, func() {
		if err := c.CollectOnce(ctx); err != nil {
			c.logger.Warnf("%s: scheduled batch had failures", err)
		}
	}); err != nil {
		return fmt.Errorf("%w: bad cron spec %q", err, c.cfg.CronSpec)
	}

	sched.Start()
	<-ctx.Done()

	stopCtx := sched.Stop()
	<-stopCtx.Done()
	return ctx.Err()
}
