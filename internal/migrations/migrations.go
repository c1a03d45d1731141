// Package migrations applies the schema DDL at startup. Statements are
// idempotent and run in order, no external migration tooling involved.
package migrations

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/quantdesk/backtesting-backend/internal/marketdata"
	"github.com/quantdesk/backtesting-backend/internal/model"
)

const (
	_createTradingDataSchema = `CREATE SCHEMA IF NOT EXISTS trading_data`
	_createUsersSchema       = `CREATE SCHEMA IF NOT EXISTS users`

	_createOHLCVTable = `CREATE TABLE IF NOT EXISTS %s (
		"timestamp" TIMESTAMPTZ PRIMARY KEY,
		symbol TEXT NOT NULL,
		"open" DOUBLE PRECISION NOT NULL,
		high DOUBLE PRECISION NOT NULL,
		low DOUBLE PRECISION NOT NULL,
		"close" DOUBLE PRECISION NOT NULL,
		volume DOUBLE PRECISION NOT NULL
	)`

	_createIndicatorsTable = `CREATE TABLE IF NOT EXISTS %s (
		"timestamp" TIMESTAMPTZ NOT NULL,
		symbol TEXT NOT NULL,
		rsi_14 DOUBLE PRECISION,
		ema_7 DOUBLE PRECISION,
		ema_21 DOUBLE PRECISION,
		ema_99 DOUBLE PRECISION,
		macd DOUBLE PRECISION,
		macd_signal DOUBLE PRECISION,
		bb_upper DOUBLE PRECISION,
		bb_middle DOUBLE PRECISION,
		bb_lower DOUBLE PRECISION,
		PRIMARY KEY (symbol, "timestamp")
	)`

	_createFilteredTable = `CREATE TABLE IF NOT EXISTS trading_data.filtered (
		entry_time TIMESTAMPTZ PRIMARY KEY,
		entry_price DOUBLE PRECISION,
		stop_loss DOUBLE PRECISION,
		take_profit DOUBLE PRECISION,
		exit_time TIMESTAMPTZ,
		result TEXT,
		symbol TEXT,
		"interval" TEXT,
		strategy TEXT,
		what_indicators TEXT,
		profit_rate DOUBLE PRECISION,
		cum_profit_rate DOUBLE PRECISION
	)`

	_createBacktestResultsTable = `CREATE TABLE IF NOT EXISTS users.backtest_results (
		run_id UUID NOT NULL,
		google_id TEXT NOT NULL,
		symbol TEXT NOT NULL,
		"interval" TEXT NOT NULL,
		strategy_sql TEXT NOT NULL,
		risk_reward_ratio DOUBLE PRECISION NOT NULL,
		start_time TIMESTAMPTZ,
		end_time TIMESTAMPTZ,
		entry_time TIMESTAMPTZ NOT NULL,
		exit_time TIMESTAMPTZ,
		result TEXT NOT NULL,
		profit_rate DOUBLE PRECISION NOT NULL,
		cum_profit_rate DOUBLE PRECISION NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		PRIMARY KEY (run_id, entry_time)
	)`
)

// Statements returns the ordered DDL for every table the service touches.
func Statements() []string {
	stmts := []string{
		_createTradingDataSchema,
		_createUsersSchema,
	}
	for _, iv := range model.SupportedIntervals {
		stmts = append(stmts,
			fmt.Sprintf(_createOHLCVTable, marketdata.OHLCVTable(iv)),
			fmt.Sprintf(_createIndicatorsTable, marketdata.IndicatorsTable(iv)),
		)
	}
	return append(stmts,
		_createFilteredTable,
		_createBacktestResultsTable,
	)
}

// Apply runs all migration statements in order.
func Apply(ctx context.Context, db *sqlx.DB) error {
	for i, stmt := range Statements() {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("%w: migration %d failed", err, i)
		}
	}
	return nil
}
