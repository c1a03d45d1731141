package backtest

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/quantdesk/backtesting-backend/internal/logger"
	"github.com/quantdesk/backtesting-backend/internal/model"
)

const (
	_deleteFiltered = `DELETE FROM trading_data.filtered`

	_insertFiltered = `INSERT INTO trading_data.filtered (
			entry_time, entry_price, stop_loss, take_profit, exit_time, result,
			symbol, "interval", strategy, what_indicators, profit_rate, cum_profit_rate
		) VALUES (
			:entry_time, :entry_price, :stop_loss, :take_profit, :exit_time, :result,
			:symbol, :interval, :strategy, :what_indicators, :profit_rate, :cum_profit_rate
		)`

	_queryFilteredTrades = `SELECT entry_time, entry_price, stop_loss, take_profit, exit_time, result,
			symbol, "interval", strategy, what_indicators, profit_rate, cum_profit_rate
		FROM trading_data.filtered ORDER BY entry_time`

	_queryProfitCurve = `SELECT entry_time, profit_rate, cum_profit_rate
		FROM trading_data.filtered ORDER BY entry_time`

	_insertUserResult = `INSERT INTO users.backtest_results (
			run_id, google_id, symbol, "interval", strategy_sql, risk_reward_ratio,
			start_time, end_time, entry_time, exit_time, result,
			profit_rate, cum_profit_rate, created_at, updated_at
		) VALUES (
			:run_id, :google_id, :symbol, :interval, :strategy_sql, :risk_reward_ratio,
			:start_time, :end_time, :entry_time, :exit_time, :result,
			:profit_rate, :cum_profit_rate, :created_at, :updated_at
		)`

	_queryUserResults = `SELECT run_id, google_id, symbol, "interval", strategy_sql, risk_reward_ratio,
			start_time, end_time, entry_time, exit_time, result,
			profit_rate, cum_profit_rate, created_at, updated_at
		FROM users.backtest_results WHERE google_id = $1 ORDER BY entry_time`

	_queryAllResults = `SELECT run_id, google_id, symbol, "interval", strategy_sql, risk_reward_ratio,
			start_time, end_time, entry_time, exit_time, result,
			profit_rate, cum_profit_rate, created_at, updated_at
		FROM users.backtest_results ORDER BY entry_time`
)

// ResultsStore persists backtest output: the latest run in
// trading_data.filtered, per-user history in users.backtest_results.
type ResultsStore struct {
	db     *sqlx.DB
	logger logger.Logger
}

func NewResultsStore(db *sqlx.DB, logger logger.Logger) *ResultsStore {
	return &ResultsStore{
		db:     db,
		logger: logger,
	}
}

// ReplaceFiltered truncates the latest-run table and writes the new trades
// in a single transaction.
func (s *ResultsStore) ReplaceFiltered(ctx context.Context, trades []model.Trade) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: can't begin filtered tx", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	if _, err := tx.ExecContext(ctx, _deleteFiltered); err != nil {
		return fmt.Errorf("%w: can't clear filtered table", err)
	}

	if len(trades) > 0 {
		if _, err := tx.NamedExecContext(ctx, _insertFiltered, trades); err != nil {
			return fmt.Errorf("%w: can't insert filtered trades", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: can't commit filtered tx", err)
	}
	return nil
}

// SaveUserResults records a run under the authenticated user.
func (s *ResultsStore) SaveUserResults(ctx context.Context, googleID string, req model.StrategyRequest, trades []model.Trade) (string, error) {
	if len(trades) == 0 {
		return "", nil
	}

	runID := uuid.NewString()
	now := time.Now().UTC()
	start, _ := parseTime(req.StartTime)
	end, _ := parseTime(req.EndTime)

	rows := make([]model.UserBacktestResult, len(trades))
	for i, t := range trades {
		rows[i] = model.UserBacktestResult{
			RunID:           runID,
			GoogleID:        googleID,
			Symbol:          req.Symbol,
			Interval:        req.Interval,
			StrategySQL:     req.StrategySQL,
			RiskRewardRatio: req.RiskRewardRatio,
			StartTime:       start,
			EndTime:         end,
			EntryTime:       t.EntryTime,
			ExitTime:        t.ExitTime,
			Result:          t.Result,
			ProfitRate:      t.ProfitRate,
			CumProfitRate:   t.CumProfitRate,
			CreatedAt:       now,
			UpdatedAt:       now,
		}
	}

	if _, err := s.db.NamedExecContext(ctx, _insertUserResult, rows); err != nil {
		return "", fmt.Errorf("%w: can't insert user results", err)
	}
	return runID, nil
}

// GetUserResults returns the run history, all users' when googleID is empty.
func (s *ResultsStore) GetUserResults(ctx context.Context, googleID string) ([]model.UserBacktestResult, error) {
	var (
		results []model.UserBacktestResult
		err     error
	)
	if googleID == "" {
		err = s.db.SelectContext(ctx, &results, _queryAllResults)
	} else {
		err = s.db.SelectContext(ctx, &results, _queryUserResults, googleID)
	}
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: can't query backtest results", err)
	}
	return results, nil
}

// GetProfitCurve returns the cumulative profit points of the latest run.
func (s *ResultsStore) GetProfitCurve(ctx context.Context) ([]model.ProfitPoint, error) {
	var points []model.ProfitPoint
	if err := s.db.SelectContext(ctx, &points, _queryProfitCurve); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: can't query profit curve", err)
	}
	return points, nil
}

// GetStats aggregates the latest run's TP/SL outcomes.
func (s *ResultsStore) GetStats(ctx context.Context) (model.TradeStats, error) {
	var trades []model.Trade
	if err := s.db.SelectContext(ctx, &trades, _queryFilteredTrades); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.TradeStats{}, nil
		}
		return model.TradeStats{}, fmt.Errorf("%w: can't query filtered trades", err)
	}
	return ComputeStats(trades), nil
}
