package tools

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// ParsePrice converts an exchange price string ("68123.45000000") into a
// float64 going through decimal to avoid accumulating binary parse error
// on the trailing zeros.
func ParsePrice(s string) (float64, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, fmt.Errorf("%w: can't parse price %q", err, s)
	}
	return d.InexactFloat64(), nil
}

// RoundToStep snaps a price to the nearest multiple of step. Step 0 returns
// the price unchanged.
func RoundToStep(price, step float64) float64 {
	if step <= 0 {
		return price
	}
	p := decimal.NewFromFloat(price)
	s := decimal.NewFromFloat(step)
	k := p.Div(s).Round(0)
	return k.Mul(s).InexactFloat64()
}
