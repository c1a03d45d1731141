// Package backtest runs SQL-driven strategy backtests: entry candles are
// selected by a strategy expression over joined candle/indicator tables,
// exits by a lateral scan for the first candle that crosses the stop or
// the target.
package backtest

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/quantdesk/backtesting-backend/internal/logger"
	"github.com/quantdesk/backtesting-backend/internal/marketdata"
	"github.com/quantdesk/backtesting-backend/internal/model"
)

const (
	StopLossLow    = "low"
	StopLossCustom = "custom"
)

type Engine struct {
	db     *sqlx.DB
	logger logger.Logger
}

func NewEngine(db *sqlx.DB, logger logger.Logger) *Engine {
	return &Engine{
		db:     db,
		logger: logger,
	}
}

// ValidationError marks bad requests so handlers can answer 400 instead
// of 500.
type ValidationError struct {
	msg string
}

func (e *ValidationError) Error() string {
	return e.msg
}

func invalidf(format string, args ...interface{}) error {
	return &ValidationError{msg: fmt.Sprintf(format, args...)}
}

// Run executes the backtest and returns trades with profit columns filled,
// sorted by entry time.
func (e *Engine) Run(ctx context.Context, req model.StrategyRequest) ([]model.Trade, error) {
	if err := validateRequest(&req); err != nil {
		return nil, err
	}

	from, to, err := parseWindow(req.StartTime, req.EndTime)
	if err != nil {
		return nil, err
	}

	query, args := buildQuery(req, from, to)
	e.logger.Debugf("running backtest %s %s rr=%.2f", req.Symbol, req.Interval, req.RiskRewardRatio)

	var trades []model.Trade
	if err := e.db.SelectContext(ctx, &trades, query, args...); err != nil {
		return nil, fmt.Errorf("%w: can't run backtest query", err)
	}

	return ApplyProfit(trades), nil
}

func validateRequest(req *model.StrategyRequest) error {
	if req.Symbol == "" {
		return invalidf("empty symbol")
	}
	if !model.ValidInterval(req.Interval) {
		return invalidf("unsupported interval %q", req.Interval)
	}
	if req.RiskRewardRatio <= 0 {
		return invalidf("risk_reward_ratio must be positive")
	}
	if err := ValidateStrategySQL(req.StrategySQL); err != nil {
		return invalidf("%s", err)
	}

	switch req.StopLossType {
	case "":
		req.StopLossType = StopLossLow
	case StopLossLow:
	case StopLossCustom:
		if req.StopLossValue <= 0 {
			return invalidf("custom stop loss requires a positive stop_loss_value")
		}
	default:
		return invalidf("unknown stop_loss_type %q", req.StopLossType)
	}
	return nil
}

// parseWindow accepts RFC3339 and the naive timestamp forms frontends send.
func parseWindow(start, end string) (*time.Time, *time.Time, error) {
	from, err := parseTime(start)
	if err != nil {
		return nil, nil, invalidf("bad start_time: %s", err)
	}
	to, err := parseTime(end)
	if err != nil {
		return nil, nil, invalidf("bad end_time: %s", err)
	}
	if from != nil && to != nil && from.After(*to) {
		return nil, nil, invalidf("start_time after end_time")
	}
	return from, to, nil
}

var _timeLayouts = []string{time.RFC3339, "2006-01-02T15:04:05", "2006-01-02"}

func parseTime(s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	for _, layout := range _timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			t = t.UTC()
			return &t, nil
		}
	}
	return nil, fmt.Errorf("can't parse time %q", s)
}

// buildQuery assembles the entry/exit query. The strategy expression is
// interpolated (it is the query language of this service, validated above);
// everything else binds as parameters.
func buildQuery(req model.StrategyRequest, from, to *time.Time) (string, []interface{}) {
	ohlcvTable := marketdata.OHLCVTable(req.Interval)
	indiTable := marketdata.IndicatorsTable(req.Interval)

	stopLossExpr := "e.low"
	if req.StopLossType == StopLossCustom {
		stopLossExpr = strconv.FormatFloat(req.StopLossValue, 'f', -1, 64)
	}

	args := []interface{}{
		req.RiskRewardRatio,               // $1
		req.Symbol,                        // $2
		req.Interval,                      // $3
		req.StrategySQL,                   // $4
		DetectIndicators(req.StrategySQL), // $5
	}

	var timeFilter strings.Builder
	if from != nil {
		args = append(args, *from)
		fmt.Fprintf(&timeFilter, " AND o.timestamp >= $%d", len(args))
	}
	if to != nil {
		args = append(args, *to)
		fmt.Fprintf(&timeFilter, " AND o.timestamp <= $%d", len(args))
	}

	query := fmt.Sprintf(`
	SELECT
		e.timestamp AS entry_time,
		e.close AS entry_price,
		(%[1]s) AS stop_loss,
		e.close + (e.close - (%[1]s)) * $1 AS take_profit,
		x.timestamp AS exit_time,
		CASE
			WHEN x.timestamp IS NULL THEN '%[5]s'
			WHEN x.low <= (%[1]s) THEN '%[6]s'
			WHEN x.high >= (e.close + (e.close - (%[1]s)) * $1) THEN '%[7]s'
			ELSE '%[8]s'
		END AS result,
		$2::text AS symbol,
		$3::text AS "interval",
		$4::text AS strategy,
		$5::text AS what_indicators
	FROM (
		SELECT o.timestamp, o.close, o.low
		FROM %[2]s AS o
		JOIN %[3]s AS i USING (symbol, timestamp)
		WHERE o.symbol = $2 AND (%[4]s)%[9]s
	) e
	LEFT JOIN LATERAL (
		SELECT x.timestamp, x.low, x.high
		FROM %[2]s AS x
		WHERE x.timestamp > e.timestamp
		  AND (
			  x.low <= (%[1]s)
			  OR x.high >= (e.close + (e.close - (%[1]s)) * $1)
		  )
		ORDER BY x.timestamp
		LIMIT 1
	) x ON TRUE`,
		stopLossExpr, ohlcvTable, indiTable, req.StrategySQL,
		model.ResultOpen, model.ResultSL, model.ResultTP, model.ResultUnknown,
		timeFilter.String(),
	)

	return query, args
}
