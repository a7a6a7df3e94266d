package dashboard

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"papertrade/internal/domain"
	"papertrade/internal/store"
)

// Summary is the portfolio summary block.
type Summary struct {
	Cash           decimal.Decimal `json:"cash"`
	PortfolioValue decimal.Decimal `json:"portfolioValue"`
	Total          decimal.Decimal `json:"total"`
	Failed         []string        `json:"failed,omitempty"`
	ValuedAt       time.Time       `json:"valuedAt,omitzero"`
}

// Summarize combines the cash balance with the latest valuation. A zero
// Valuation (nothing held, or not yet valued) counts as 0.
func Summarize(cash decimal.Decimal, val domain.Valuation) Summary {
	return Summary{
		Cash:           cash,
		PortfolioValue: val.Value,
		Total:          cash.Add(val.Value),
		Failed:         val.Failed,
		ValuedAt:       val.At,
	}
}

// Theme reads and writes the dark mode preference.
type Theme struct {
	kv store.KV
}

// NewTheme wraps the preference store.
func NewTheme(kv store.KV) *Theme {
	return &Theme{kv: kv}
}

// Dark reports whether dark mode is on. Unset or unreadable values mean
// light mode.
func (t *Theme) Dark(ctx context.Context) (bool, error) {
	v, ok, err := t.kv.Get(ctx, store.KeyDarkMode)
	if err != nil || !ok {
		return false, err
	}
	dark, _ := strconv.ParseBool(v)
	return dark, nil
}

// SetDark persists the preference as "true" or "false".
func (t *Theme) SetDark(ctx context.Context, dark bool) error {
	if err := t.kv.Set(ctx, store.KeyDarkMode, strconv.FormatBool(dark)); err != nil {
		return fmt.Errorf("saving theme: %w", err)
	}
	return nil
}

// Toggle flips the preference and returns the new value.
func (t *Theme) Toggle(ctx context.Context) (bool, error) {
	dark, err := t.Dark(ctx)
	if err != nil {
		return false, err
	}
	if err := t.SetDark(ctx, !dark); err != nil {
		return dark, err
	}
	return !dark, nil
}
