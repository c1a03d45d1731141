package model

import "time"

// StrategyRequest is the body of POST /save_strategy.
type StrategyRequest struct {
	Symbol          string  `json:"symbol"`
	Interval        string  `json:"interval"`
	StrategySQL     string  `json:"strategy_sql"`
	RiskRewardRatio float64 `json:"risk_reward_ratio"`
	StartTime       string  `json:"start_time,omitempty"`
	EndTime         string  `json:"end_time,omitempty"`
	StopLossType    string  `json:"stop_loss_type,omitempty"`
	StopLossValue   float64 `json:"stop_loss_value,omitempty"`
}

// Trade results as written by the lateral exit scan.
const (
	ResultTP      = "TP"
	ResultSL      = "SL"
	ResultOpen    = "OPEN"
	ResultUnknown = "UNKNOWN"
)

// Trade is one backtested position: the entry candle, its stop/target levels
// and the first candle that resolved them. ExitTime is nil while the trade
// is still open at the end of the data.
type Trade struct {
	EntryTime      time.Time  `db:"entry_time" json:"entry_time"`
	EntryPrice     float64    `db:"entry_price" json:"entry_price"`
	StopLoss       float64    `db:"stop_loss" json:"stop_loss"`
	TakeProfit     float64    `db:"take_profit" json:"take_profit"`
	ExitTime       *time.Time `db:"exit_time" json:"exit_time"`
	Result         string     `db:"result" json:"result"`
	Symbol         string     `db:"symbol" json:"symbol"`
	Interval       string     `db:"interval" json:"interval"`
	Strategy       string     `db:"strategy" json:"strategy"`
	WhatIndicators string     `db:"what_indicators" json:"what_indicators"`
	ProfitRate     float64    `db:"profit_rate" json:"profit_rate"`
	CumProfitRate  float64    `db:"cum_profit_rate" json:"cum_profit_rate"`
}

// UserBacktestResult is one row of users.backtest_results: a trade plus the
// run parameters and the owning user.
type UserBacktestResult struct {
	RunID           string     `db:"run_id" json:"run_id"`
	GoogleID        string     `db:"google_id" json:"google_id"`
	Symbol          string     `db:"symbol" json:"symbol"`
	Interval        string     `db:"interval" json:"interval"`
	StrategySQL     string     `db:"strategy_sql" json:"strategy_sql"`
	RiskRewardRatio float64    `db:"risk_reward_ratio" json:"risk_reward_ratio"`
	StartTime       *time.Time `db:"start_time" json:"start_time"`
	EndTime         *time.Time `db:"end_time" json:"end_time"`
	EntryTime       time.Time  `db:"entry_time" json:"entry_time"`
	ExitTime        *time.Time `db:"exit_time" json:"exit_time"`
	Result          string     `db:"result" json:"result"`
	ProfitRate      float64    `db:"profit_rate" json:"profit_rate"`
	CumProfitRate   float64    `db:"cum_profit_rate" json:"cum_profit_rate"`
	CreatedAt       time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time  `db:"updated_at" json:"updated_at"`
}

// ProfitPoint is one point of the cumulative profit curve.
type ProfitPoint struct {
	EntryTime     time.Time `db:"entry_time" json:"entry_time"`
	ProfitRate    float64   `db:"profit_rate" json:"profit_rate"`
	CumProfitRate float64   `db:"cum_profit_rate" json:"cum_profit_rate"`
}

// TradeStats aggregates TP/SL outcomes of the latest run.
type TradeStats struct {
	TotalCount      int     `json:"total_count"`
	TPCount         int     `json:"tp_count"`
	SLCount         int     `json:"sl_count"`
	TPRate          float64 `json:"tp_rate"`
	Expectancy      float64 `json:"expectancy"`
	FinalProfitRate float64 `json:"final_profit_rate"`
}
