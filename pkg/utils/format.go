// Package utils provides shared utility functions.
package utils

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// NormalizePrice rounds a price to the symbol's digits.
func NormalizePrice(price float64, digits int) float64 {
	if math.IsNaN(price) || math.IsInf(price, 0) {
		return price
	}
	if digits < 0 {
		digits = 0
	}
	return decimal.NewFromFloat(price).Round(int32(digits)).InexactFloat64()
}

// StepVolume rounds a volume down to a multiple of step.
func StepVolume(volume, step float64) float64 {
	if step <= 0 {
		return volume
	}
	v := decimal.NewFromFloat(volume)
	s := decimal.NewFromFloat(step)
	return v.Div(s).Floor().Mul(s).InexactFloat64()
}

// IsVolumeStep reports whether volume is a whole multiple of step.
func IsVolumeStep(volume, step float64) bool {
	if step <= 0 {
		return true
	}
	return decimal.NewFromFloat(volume).Mod(decimal.NewFromFloat(step)).IsZero()
}

// FormatVolume renders a lot size without trailing zeros, e.g. 0.1 or 2.
func FormatVolume(volume float64) string {
	return strconv.FormatFloat(volume, 'f', -1, 64)
}

// FormatMoney formats an amount with thousands separators and a currency code.
func FormatMoney(amount float64, currency string) string {
	negative := amount < 0
	if negative {
		amount = -amount
	}

	str := fmt.Sprintf("%.2f", amount)
	parts := strings.Split(str, ".")
	result := groupThousands(parts[0]) + "." + parts[1]
	if negative {
		result = "-" + result
	}
	if currency != "" {
		result += " " + currency
	}
	return result
}

func groupThousands(s string) string {
	n := len(s)
	if n <= 3 {
		return s
	}

	var b strings.Builder
	lead := n % 3
	if lead > 0 {
		b.WriteString(s[:lead])
	}
	for i := lead; i < n; i += 3 {
		if b.Len() > 0 {
			b.WriteByte(',')
		}
		b.WriteString(s[i : i+3])
	}
	return b.String()
}

// FormatPnL formats profit with an explicit sign.
func FormatPnL(pnl float64, currency string) string {
	formatted := FormatMoney(pnl, currency)
	if pnl > 0 {
		return "+" + formatted
	}
	return formatted
}
