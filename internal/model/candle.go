package model

import "time"

// Candle is one OHLCV bar from a trading_data.ohlcv_<interval> table.
type Candle struct {
	Ts     time.Time `db:"timestamp" json:"timestamp"`
	Symbol string    `db:"symbol" json:"symbol,omitempty"`
	Open   float64   `db:"open" json:"open"`
	High   float64   `db:"high" json:"high"`
	Low    float64   `db:"low" json:"low"`
	Close  float64   `db:"close" json:"close"`
	Volume float64   `db:"volume" json:"volume"`
}

// IndicatorRow is one derived-indicator bar aligned with a candle.
type IndicatorRow struct {
	Ts         time.Time `db:"timestamp" json:"timestamp"`
	Symbol     string    `db:"symbol" json:"symbol"`
	RSI14      float64   `db:"rsi_14" json:"rsi_14"`
	EMA7       float64   `db:"ema_7" json:"ema_7"`
	EMA21      float64   `db:"ema_21" json:"ema_21"`
	EMA99      float64   `db:"ema_99" json:"ema_99"`
	MACD       float64   `db:"macd" json:"macd"`
	MACDSignal float64   `db:"macd_signal" json:"macd_signal"`
	BBUpper    float64   `db:"bb_upper" json:"bb_upper"`
	BBMiddle   float64   `db:"bb_middle" json:"bb_middle"`
	BBLower    float64   `db:"bb_lower" json:"bb_lower"`
}
