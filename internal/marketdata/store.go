// Package marketdata persists candles and derived indicators in the
// interval-suffixed trading_data tables.
package marketdata

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/quantdesk/backtesting-backend/internal/logger"
	"github.com/quantdesk/backtesting-backend/internal/model"
)

type Store struct {
	db     *sqlx.DB
	logger logger.Logger
}

func NewStore(db *sqlx.DB, logger logger.Logger) *Store {
	return &Store{
		db:     db,
		logger: logger,
	}
}

func OHLCVTable(interval string) string {
	return "trading_data.ohlcv_" + strings.ToLower(interval)
}

func IndicatorsTable(interval string) string {
	return "trading_data.indicators_" + strings.ToLower(interval)
}

const (
	_insertCandles = `INSERT INTO %s ("timestamp", symbol, "open", high, low, "close", volume)
		VALUES (:timestamp, :symbol, :open, :high, :low, :close, :volume)
		ON CONFLICT ("timestamp") DO NOTHING`

	_queryCandles = `SELECT "timestamp", symbol, "open", high, low, "close", volume
		FROM %s WHERE symbol = $1 ORDER BY "timestamp"`

	_queryRecentCandles = `SELECT "timestamp", symbol, "open", high, low, "close", volume
		FROM (SELECT * FROM %s WHERE symbol = $1 ORDER BY "timestamp" DESC LIMIT $2) t
		ORDER BY "timestamp"`

	_upsertIndicators = `INSERT INTO %s ("timestamp", symbol, rsi_14, ema_7, ema_21, ema_99,
			macd, macd_signal, bb_upper, bb_middle, bb_lower)
		VALUES (:timestamp, :symbol, :rsi_14, :ema_7, :ema_21, :ema_99,
			:macd, :macd_signal, :bb_upper, :bb_middle, :bb_lower)
		ON CONFLICT (symbol, "timestamp") DO UPDATE SET
			rsi_14 = EXCLUDED.rsi_14,
			ema_7 = EXCLUDED.ema_7,
			ema_21 = EXCLUDED.ema_21,
			ema_99 = EXCLUDED.ema_99,
			macd = EXCLUDED.macd,
			macd_signal = EXCLUDED.macd_signal,
			bb_upper = EXCLUDED.bb_upper,
			bb_middle = EXCLUDED.bb_middle,
			bb_lower = EXCLUDED.bb_lower`
)

// InsertCandles writes candles into the interval table, skipping timestamps
// that are already present. Returns the number of new rows.
func (s *Store) InsertCandles(ctx context.Context, interval string, candles []model.Candle) (int64, error) {
	if !model.ValidInterval(interval) {
		return 0, fmt.Errorf("unsupported interval %q", interval)
	}
	if len(candles) == 0 {
		return 0, nil
	}

	res, err := s.db.NamedExecContext(ctx, fmt.Sprintf(_insertCandles, OHLCVTable(interval)), candles)
	if err != nil {
		return 0, fmt.Errorf("%w: can't insert candles", err)
	}

	inserted, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("%w: can't count inserted candles", err)
	}
	return inserted, nil
}

func (s *Store) GetCandles(ctx context.Context, symbol, interval string) ([]model.Candle, error) {
	if !model.ValidInterval(interval) {
		return nil, fmt.Errorf("unsupported interval %q", interval)
	}

	var candles []model.Candle
	if err := s.db.SelectContext(ctx, &candles, fmt.Sprintf(_queryCandles, OHLCVTable(interval)), symbol); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: can't query candles", err)
	}
	return candles, nil
}

// GetRecentCandles returns the latest limit candles in ascending order,
// enough history for indicator warmup.
func (s *Store) GetRecentCandles(ctx context.Context, symbol, interval string, limit int) ([]model.Candle, error) {
	if !model.ValidInterval(interval) {
		return nil, fmt.Errorf("unsupported interval %q", interval)
	}

	var candles []model.Candle
	if err := s.db.SelectContext(ctx, &candles, fmt.Sprintf(_queryRecentCandles, OHLCVTable(interval)), symbol, limit); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: can't query recent candles", err)
	}
	return candles, nil
}

// UpsertIndicators writes derived indicator rows, overwriting previous
// values since late candles can shift the series.
func (s *Store) UpsertIndicators(ctx context.Context, interval string, rows []model.IndicatorRow) (int64, error) {
	if !model.ValidInterval(interval) {
		return 0, fmt.Errorf("unsupported interval %q", interval)
	}
	if len(rows) == 0 {
		return 0, nil
	}

	res, err := s.db.NamedExecContext(ctx, fmt.Sprintf(_upsertIndicators, IndicatorsTable(interval)), rows)
	if err != nil {
		return 0, fmt.Errorf("%w: can't upsert indicators", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("%w: can't count upserted indicators", err)
	}
	return affected, nil
}
