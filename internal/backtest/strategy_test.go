package backtest

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDetectIndicators(t *testing.T) {
	tests := []struct {
		name     string
		strategy string
		want     string
	}{
		{"none", "close > open", "None"},
		{"single", "rsi_14 < 30", "rsi_14"},
		{"macd via signal", "macd_signal > 0", "macd"},
		{"boll via lower", "close < bb_lower", "boll"},
		{"sorted multi", "rsi_14 < 30 AND ema_7 > ema_21 AND macd > macd_signal", "ema_21 and ema_7 and macd and rsi_14"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DetectIndicators(tt.strategy))
		})
	}
}

func TestValidateStrategySQL(t *testing.T) {
	valid := []string{
		"rsi_14 < 30",
		"rsi_14 < 30 AND ema_7 > ema_21",
		"close < bb_lower OR close > bb_upper",
		"i.macd > i.macd_signal",
		"(rsi_14 < 30) AND NOT (close > ema_99)",
		"volume > 1000.5",
		"close BETWEEN 100 AND 200",
	}
	for _, s := range valid {
		assert.NoError(t, ValidateStrategySQL(s), s)
	}

	invalid := []string{
		"",
		"   ",
		"rsi_14 < 30; DROP TABLE trading_data.filtered",
		"rsi_14 < 30 -- comment",
		"rsi_14 < 30 /* comment */",
		"pg_sleep(10) > 0",
		"close > 'abc'",
		"user_password = 1",
	}
	for _, s := range invalid {
		assert.Error(t, ValidateStrategySQL(s), s)
	}
}
