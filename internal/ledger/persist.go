package ledger

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"papertrade/internal/domain"
	"papertrade/internal/store"
)

// load reads the persisted balance and portfolio. Store errors are
// returned; undecodable values are logged and replaced by defaults.
func (l *Ledger) load(ctx context.Context) error {
	l.cash = l.starting
	l.holdings = nil

	raw, ok, err := l.kv.Get(ctx, store.KeyBalance)
	if err != nil {
		return fmt.Errorf("loading balance: %w", err)
	}
	if ok {
		cash, err := parseBalance(raw)
		if err != nil {
			l.log.Warn("ignoring persisted balance", "value", raw, "error", err)
		} else {
			l.cash = cash
		}
	}

	raw, ok, err = l.kv.Get(ctx, store.KeyPortfolio)
	if err != nil {
		return fmt.Errorf("loading portfolio: %w", err)
	}
	if ok {
		holdings, err := parsePortfolio(raw)
		if err != nil {
			l.log.Warn("ignoring persisted portfolio", "error", err)
		} else {
			l.holdings = holdings
		}
	}

	l.log.Info("ledger loaded", "cash", l.cash.String(), "holdings", len(l.holdings))
	return nil
}

// parseBalance accepts a decimal string, optionally JSON-quoted.
func parseBalance(raw string) (decimal.Decimal, error) {
	s := strings.Trim(strings.TrimSpace(raw), `"`)
	return decimal.NewFromString(s)
}

// parsePortfolio decodes the JSON array of holdings. Prices may be numbers
// or strings. Symbols are uppercased, empty positions dropped and repeated
// symbols merged into the first occurrence.
func parsePortfolio(raw string) ([]domain.Holding, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}
	var decoded []domain.Holding
	if err := json.Unmarshal([]byte(raw), &decoded); err != nil {
		return nil, err
	}

	var holdings []domain.Holding
	for _, h := range decoded {
		h.Symbol = normalize(h.Symbol)
		if h.Symbol == "" || h.Quantity <= 0 {
			continue
		}
		if i := indexOf(holdings, h.Symbol); i >= 0 {
			holdings[i].Quantity += h.Quantity
			holdings[i].TotalValue = holdings[i].TotalValue.Add(h.TotalValue)
			continue
		}
		holdings = append(holdings, h)
	}
	return holdings, nil
}
