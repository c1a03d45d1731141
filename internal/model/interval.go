package model

// Intervals this service keeps candle tables for. Interval names become
// table suffixes, so anything else is rejected up front.
var SupportedIntervals = []string{"1m", "5m", "15m", "1h", "4h", "1d"}

func ValidInterval(interval string) bool {
	for _, iv := range SupportedIntervals {
		if iv == interval {
			return true
		}
	}
	return false
}
