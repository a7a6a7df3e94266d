package dashboard

import (
	"fmt"
	"strings"

	"github.com/Rhymond/go-money"
	"github.com/shopspring/decimal"
)

// FormatUSD formats an amount as US dollars, e.g. "$8,500.00". Amounts are
// rounded half away from zero to the cent.
func FormatUSD(d decimal.Decimal) string {
	cents := d.Shift(2).Round(0).IntPart()
	return money.New(cents, money.USD).Display()
}

// FormatPrice formats an optional price as dollars, or "N/A" when absent.
func FormatPrice(p decimal.NullDecimal) string {
	if !p.Valid || !p.Decimal.IsPositive() {
		return "N/A"
	}
	return FormatUSD(p.Decimal)
}

// FormatChange formats a percent change as "+X.XX%" / "-X.XX%", or "N/A"
// when absent.
func FormatChange(c decimal.NullDecimal) string {
	if !c.Valid {
		return "N/A"
	}
	s := c.Decimal.StringFixed(2)
	if !c.Decimal.IsNegative() {
		s = "+" + s
	}
	return s + "%"
}

// ChangeClass returns "up" or "down" for styling a percent change.
func ChangeClass(c decimal.NullDecimal) string {
	if c.Valid && c.Decimal.IsNegative() {
		return "down"
	}
	return "up"
}

// FormatInt formats an integer with comma separators.
func FormatInt(n int64) string {
	s := fmt.Sprintf("%d", n)
	neg := strings.HasPrefix(s, "-")
	if neg {
		s = s[1:]
	}
	if len(s) <= 3 {
		if neg {
			return "-" + s
		}
		return s
	}
	var b strings.Builder
	if neg {
		b.WriteByte('-')
	}
	start := len(s) % 3
	if start > 0 {
		b.WriteString(s[:start])
	}
	for i := start; i < len(s); i += 3 {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(s[i : i+3])
	}
	return b.String()
}

// FormatShares formats a share count, e.g. "1 share", "1,200 shares".
func FormatShares(n int64) string {
	if n == 1 {
		return "1 share"
	}
	return FormatInt(n) + " shares"
}
