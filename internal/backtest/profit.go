package backtest

import (
	"sort"
	"time"

	"github.com/quantdesk/backtesting-backend/internal/model"
)

// ApplyProfit fills the profit columns: per-trade rate from the resolved
// level, duplicates on (entry, exit) dropped, then the compounded cumulative
// rate in entry order. Rates come out as percentages.
func ApplyProfit(trades []model.Trade) []model.Trade {
	if len(trades) == 0 {
		return trades
	}

	type key struct {
		entry time.Time
		exit  time.Time
	}
	seen := make(map[key]bool, len(trades))
	deduped := trades[:0]
	for _, t := range trades {
		k := key{entry: t.EntryTime}
		if t.ExitTime != nil {
			k.exit = *t.ExitTime
		}
		if seen[k] {
			continue
		}
		seen[k] = true
		deduped = append(deduped, t)
	}

	sort.SliceStable(deduped, func(i, j int) bool {
		return deduped[i].EntryTime.Before(deduped[j].EntryTime)
	})

	cum := 1.0
	for i := range deduped {
		t := &deduped[i]

		var rate float64
		if t.EntryPrice != 0 {
			switch t.Result {
			case model.ResultTP:
				rate = (t.TakeProfit - t.EntryPrice) / t.EntryPrice
			case model.ResultSL:
				rate = (t.StopLoss - t.EntryPrice) / t.EntryPrice
			}
		}

		cum *= 1 + rate
		t.ProfitRate = rate * 100
		t.CumProfitRate = (cum - 1) * 100
	}

	return deduped
}

// ComputeStats aggregates TP/SL outcomes; trades must already carry
// percentage profit columns in entry order.
func ComputeStats(trades []model.Trade) model.TradeStats {
	var stats model.TradeStats
	if len(trades) == 0 {
		return stats
	}

	var tpSum, slSum float64
	for _, t := range trades {
		switch t.Result {
		case model.ResultTP:
			stats.TPCount++
			tpSum += t.ProfitRate
		case model.ResultSL:
			stats.SLCount++
			slSum += t.ProfitRate
		}
	}
	stats.TotalCount = stats.TPCount + stats.SLCount
	stats.FinalProfitRate = trades[len(trades)-1].CumProfitRate

	if stats.TotalCount == 0 {
		return stats
	}

	stats.TPRate = roundTo(float64(stats.TPCount)*100/float64(stats.TotalCount), 2)

	// expectancy is the count-weighted mean of average win and average loss
	var expectancy float64
	if stats.TPCount > 0 {
		expectancy += float64(stats.TPCount) * (tpSum / float64(stats.TPCount))
	}
	if stats.SLCount > 0 {
		expectancy += float64(stats.SLCount) * (slSum / float64(stats.SLCount))
	}
	stats.Expectancy = expectancy / float64(stats.TotalCount)

	return stats
}

func roundTo(v float64, digits int) float64 {
	pow := 1.0
	for i := 0; i < digits; i++ {
		pow *= 10
	}
	if v >= 0 {
		return float64(int64(v*pow+0.5)) / pow
	}
	return float64(int64(v*pow-0.5)) / pow
}
