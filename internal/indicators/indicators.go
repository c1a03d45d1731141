// Package indicators derives the technical-indicator series the strategy
// engine joins against: RSI(14), EMA(7/21/99), MACD(12,26,9) and
// Bollinger(20, 2).
package indicators

import (
	"math"

	"github.com/quantdesk/backtesting-backend/internal/model"
)

const (
	_rsiPeriod    = 14
	_emaFast      = 7
	_emaMid       = 21
	_emaSlow      = 99
	_macdFast     = 12
	_macdSlow     = 26
	_macdSignal   = 9
	_bollPeriod   = 20
	_bollStdDevs  = 2.0
	_warmupLength = _emaSlow // the slowest series defines the warmup
)

// Compute derives indicator rows from candles sorted ascending by time.
// Rows inside the warmup window of the slowest indicator are skipped so
// every emitted row has all columns populated.
func Compute(symbol string, candles []model.Candle) []model.IndicatorRow {
	if len(candles) < _warmupLength {
		return nil
	}

	closes := make([]float64, len(candles))
	for i, c := range candles {
		closes[i] = c.Close
	}

	rsi := rsiSeries(closes, _rsiPeriod)
	ema7 := emaSeries(closes, _emaFast)
	ema21 := emaSeries(closes, _emaMid)
	ema99 := emaSeries(closes, _emaSlow)
	macd, signal := macdSeries(closes)
	bbUpper, bbMiddle, bbLower := bollingerSeries(closes, _bollPeriod, _bollStdDevs)

	rows := make([]model.IndicatorRow, 0, len(candles)-_warmupLength+1)
	for i := _warmupLength - 1; i < len(candles); i++ {
		rows = append(rows, model.IndicatorRow{
			Ts:         candles[i].Ts,
			Symbol:     symbol,
			RSI14:      rsi[i],
			EMA7:       ema7[i],
			EMA21:      ema21[i],
			EMA99:      ema99[i],
			MACD:       macd[i],
			MACDSignal: signal[i],
			BBUpper:    bbUpper[i],
			BBMiddle:   bbMiddle[i],
			BBLower:    bbLower[i],
		})
	}
	return rows
}

// emaSeries seeds with the SMA of the first period values; indices before
// period-1 hold NaN.
func emaSeries(values []float64, period int) []float64 {
	out := nanSlice(len(values))
	if len(values) < period {
		return out
	}

	var sum float64
	for _, v := range values[:period] {
		sum += v
	}
	prev := sum / float64(period)
	out[period-1] = prev

	k := 2.0 / float64(period+1)
	for i := period; i < len(values); i++ {
		prev = prev + k*(values[i]-prev)
		out[i] = prev
	}
	return out
}

// rsiSeries is Wilder-smoothed: initial averages over the first period
// changes, then (prev*(period-1)+current)/period.
func rsiSeries(values []float64, period int) []float64 {
	out := nanSlice(len(values))
	if len(values) <= period {
		return out
	}

	var avgGain, avgLoss float64
	for i := 1; i <= period; i++ {
		change := values[i] - values[i-1]
		if change > 0 {
			avgGain += change
		} else {
			avgLoss -= change
		}
	}
	avgGain /= float64(period)
	avgLoss /= float64(period)
	out[period] = rsiValue(avgGain, avgLoss)

	for i := period + 1; i < len(values); i++ {
		change := values[i] - values[i-1]
		gain, loss := 0.0, 0.0
		if change > 0 {
			gain = change
		} else {
			loss = -change
		}
		avgGain = (avgGain*float64(period-1) + gain) / float64(period)
		avgLoss = (avgLoss*float64(period-1) + loss) / float64(period)
		out[i] = rsiValue(avgGain, avgLoss)
	}
	return out
}

func rsiValue(avgGain, avgLoss float64) float64 {
	if avgLoss == 0 {
		return 100
	}
	rs := avgGain / avgLoss
	return 100 - 100/(1+rs)
}

func macdSeries(values []float64) (macd, signal []float64) {
	fast := emaSeries(values, _macdFast)
	slow := emaSeries(values, _macdSlow)

	macd = nanSlice(len(values))
	for i := range values {
		if !math.IsNaN(fast[i]) && !math.IsNaN(slow[i]) {
			macd[i] = fast[i] - slow[i]
		}
	}

	// signal is an EMA of the defined part of the MACD line
	signal = nanSlice(len(values))
	start := _macdSlow - 1
	if len(values) <= start {
		return macd, signal
	}
	defined := emaSeries(macd[start:], _macdSignal)
	copy(signal[start:], defined)
	return macd, signal
}

func bollingerSeries(values []float64, period int, stdDevs float64) (upper, middle, lower []float64) {
	upper = nanSlice(len(values))
	middle = nanSlice(len(values))
	lower = nanSlice(len(values))

	for i := period - 1; i < len(values); i++ {
		window := values[i-period+1 : i+1]

		var sum float64
		for _, v := range window {
			sum += v
		}
		mean := sum / float64(period)

		var variance float64
		for _, v := range window {
			variance += (v - mean) * (v - mean)
		}
		sd := math.Sqrt(variance / float64(period))

		middle[i] = mean
		upper[i] = mean + stdDevs*sd
		lower[i] = mean - stdDevs*sd
	}
	return upper, middle, lower
}

func nanSlice(n int) []float64 {
	s := make([]float64, n)
	for i := range s {
		s[i] = math.NaN()
	}
	return s
}
