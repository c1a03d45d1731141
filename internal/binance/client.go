package binance

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/bytedance/sonic"
	"github.com/cenkalti/backoff/v4"
	"github.com/quantdesk/backtesting-backend/internal/config"
	"github.com/quantdesk/backtesting-backend/internal/logger"
	"github.com/quantdesk/backtesting-backend/internal/tools"
	"go.uber.org/ratelimit"
	"resty.dev/v3"
)

const _klinesURL = "/fapi/v1/klines"

// Kline is one USD-M futures candle as returned by the exchange.
type Kline struct {
	Symbol    string
	Interval  string
	OpenTime  int64 // ms
	CloseTime int64 // ms
	Open      float64
	High      float64
	Low       float64
	Close     float64
	Volume    float64
}

func (k Kline) Ts() time.Time {
	return time.UnixMilli(k.OpenTime).UTC()
}

type Client struct {
	c           *resty.Client
	rateLimiter ratelimit.Limiter

	logger logger.Logger
}

func NewClient(cfg config.BinanceConfig, logger logger.Logger) *Client {
	client := resty.New().
		SetLogger(logger).
		SetBaseURL(cfg.Address)

	return &Client{
		c:           client,
		rateLimiter: ratelimit.New(cfg.RequestsPerMinute, ratelimit.Per(1*time.Minute)),
		logger:      logger,
	}
}

func (c *Client) Close() error {
	return c.c.Close()
}

// FetchKlines loads up to limit candles for symbol/interval. Transport and
// 5xx errors are retried with exponential backoff, 4xx are not.
func (c *Client) FetchKlines(ctx context.Context, symbol, interval string, limit int) ([]Kline, error) {
	var body []byte

	op := func() error {
		c.rateLimiter.Take()

		resp, err := c.c.R().
			SetContext(ctx).
			SetQueryParams(map[string]string{
				"symbol":   symbol,
				"interval": interval,
				"limit":    strconv.Itoa(limit),
			}).
			Get(_klinesURL)
		if err != nil {
			return fmt.Errorf("%w: can't send klines request", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode() >= 500 {
			return fmt.Errorf("klines request failed: %s", resp.Status())
		}
		if resp.IsError() {
			return backoff.Permanent(fmt.Errorf("klines request rejected: %s", resp.Status()))
		}

		body = resp.Bytes()
		return nil
	}

	bo := backoff.WithContext(backoff.NewExponentialBackOff(), ctx)
	notify := func(err error, next time.Duration) {
		c.logger.Warnf("%s: klines fetch for %s %s failed, retry in %s", err, symbol, interval, next)
	}
	if err := backoff.RetryNotify(op, bo, notify); err != nil {
		return nil, err
	}

	return parseKlines(body, symbol, interval)
}

// parseKlines decodes the exchange payload: an array of arrays where
// index 0 is open time (ms), 1-5 are OHLCV as strings, 6 is close time (ms).
func parseKlines(data []byte, symbol, interval string) ([]Kline, error) {
	var raw [][]any
	if err := sonic.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: can't decode klines payload", err)
	}

	klines := make([]Kline, 0, len(raw))
	for i, row := range raw {
		if len(row) < 7 {
			return nil, fmt.Errorf("kline row %d too short: %d fields", i, len(row))
		}

		openTime, err := asMillis(row[0])
		if err != nil {
			return nil, fmt.Errorf("%w: kline row %d open time", err, i)
		}
		closeTime, err := asMillis(row[6])
		if err != nil {
			return nil, fmt.Errorf("%w: kline row %d close time", err, i)
		}

		k := Kline{
			Symbol:    symbol,
			Interval:  interval,
			OpenTime:  openTime,
			CloseTime: closeTime,
		}
		for j, dst := range []*float64{&k.Open, &k.High, &k.Low, &k.Close, &k.Volume} {
			v, err := asPrice(row[j+1])
			if err != nil {
				return nil, fmt.Errorf("%w: kline row %d field %d", err, i, j+1)
			}
			*dst = v
		}

		klines = append(klines, k)
	}

	return klines, nil
}

func asMillis(v any) (int64, error) {
	switch t := v.(type) {
	case float64:
		return int64(t), nil
	case int64:
		return t, nil
	default:
		return 0, fmt.Errorf("unexpected timestamp type %T", v)
	}
}

func asPrice(v any) (float64, error) {
	switch t := v.(type) {
	case string:
		return tools.ParsePrice(t)
	case float64:
		return t, nil
	default:
		return 0, fmt.Errorf("unexpected price type %T", v)
	}
}
