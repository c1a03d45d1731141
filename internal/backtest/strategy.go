package backtest

import (
	"fmt"
	"sort"
	"strings"
	"unicode"
)

// indicatorGroups maps a display name onto the columns that reveal it in a
// strategy expression.
var indicatorGroups = []struct {
	name    string
	columns []string
}{
	{"rsi_14", []string{"rsi_14"}},
	{"ema_7", []string{"ema_7"}},
	{"ema_21", []string{"ema_21"}},
	{"ema_99", []string{"ema_99"}},
	{"macd", []string{"macd", "macd_signal"}},
	{"boll", []string{"bb_upper", "bb_middle", "bb_lower"}},
}

// DetectIndicators names the indicator groups a strategy expression touches,
// sorted and joined with " and "; "None" when the expression only uses
// price columns.
func DetectIndicators(strategySQL string) string {
	var used []string
	for _, g := range indicatorGroups {
		for _, col := range g.columns {
			if strings.Contains(strategySQL, col) {
				used = append(used, g.name)
				break
			}
		}
	}
	if len(used) == 0 {
		return "None"
	}
	sort.Strings(used)
	return strings.Join(used, " and ")
}

// allowedIdentifiers are the only bare words a strategy expression may
// contain: indicator and candle columns, the entry/indicator aliases and
// boolean keywords. The expression is interpolated into the entry subquery,
// so everything else is rejected.
var allowedIdentifiers = map[string]bool{
	"rsi_14": true, "ema_7": true, "ema_21": true, "ema_99": true,
	"macd": true, "macd_signal": true,
	"bb_upper": true, "bb_middle": true, "bb_lower": true,
	"open": true, "high": true, "low": true, "close": true, "volume": true,
	"timestamp": true, "symbol": true,
	"o": true, "i": true,
	"and": true, "or": true, "not": true, "between": true,
	"true": true, "false": true,
}

const _allowedPunct = "<>=!()+-*/.,%"

// ValidateStrategySQL checks that a strategy expression only uses known
// columns, numbers, comparison operators and boolean connectives.
func ValidateStrategySQL(strategySQL string) error {
	s := strings.TrimSpace(strategySQL)
	if s == "" {
		return fmt.Errorf("empty strategy expression")
	}
	if strings.Contains(s, ";") || strings.Contains(s, "--") || strings.Contains(s, "/*") {
		return fmt.Errorf("forbidden token in strategy expression")
	}

	for i := 0; i < len(s); {
		r := rune(s[i])
		switch {
		case unicode.IsSpace(r):
			i++
		case r == '_' || unicode.IsLetter(r):
			j := i
			for j < len(s) && (s[j] == '_' || isWordByte(s[j])) {
				j++
			}
			word := strings.ToLower(s[i:j])
			if !allowedIdentifiers[word] {
				return fmt.Errorf("unknown identifier %q in strategy expression", s[i:j])
			}
			i = j
		case unicode.IsDigit(r):
			j := i
			for j < len(s) && (isWordByte(s[j]) || s[j] == '.') {
				j++
			}
			i = j
		case strings.ContainsRune(_allowedPunct, r):
			i++
		default:
			return fmt.Errorf("forbidden character %q in strategy expression", r)
		}
	}
	return nil
}

func isWordByte(b byte) bool {
	return b == '_' ||
		(b >= 'a' && b <= 'z') ||
		(b >= 'A' && b <= 'Z') ||
		(b >= '0' && b <= '9')
}
