// Package domain defines the core types shared across papertrade: holdings,
// quotes, price history, news articles, trades and valuations.
package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// ---------------------------------------------------------------------------
// Ledger
// ---------------------------------------------------------------------------

// Holding is a position in a single symbol. Quantity is always > 0 while the
// holding is present in a ledger.
type Holding struct {
	Symbol        string          `json:"symbol"`
	Quantity      int64           `json:"quantity"`
	PurchasePrice decimal.Decimal `json:"purchasePrice"`
	TotalValue    decimal.Decimal `json:"totalValue"`
}

// Portfolio is a point-in-time copy of the ledger state. Holdings are in
// insertion order.
type Portfolio struct {
	CashBalance decimal.Decimal `json:"cashBalance"`
	Holdings    []Holding       `json:"holdings"`
}

// Holding returns the holding for symbol and whether it exists.
func (p Portfolio) Holding(symbol string) (Holding, bool) {
	for _, h := range p.Holdings {
		if h.Symbol == symbol {
			return h, true
		}
	}
	return Holding{}, false
}

// TradeSide identifies the direction of a trade.
type TradeSide string

const (
	TradeSideBuy  TradeSide = "buy"
	TradeSideSell TradeSide = "sell"
)

// Trade is an executed ledger mutation as recorded in the trade journal.
type Trade struct {
	ID         string          `json:"id"`
	Side       TradeSide       `json:"side"`
	Symbol     string          `json:"symbol"`
	Quantity   int64           `json:"quantity"`
	Price      decimal.Decimal `json:"price"`
	Total      decimal.Decimal `json:"total"`
	ExecutedAt time.Time       `json:"executedAt"`
}

// ---------------------------------------------------------------------------
// Market data
// ---------------------------------------------------------------------------

// Quote is the latest price and daily percent change for a symbol. Either
// value may be absent.
type Quote struct {
	Symbol        string              `json:"symbol"`
	Price         decimal.NullDecimal `json:"price"`
	ChangePercent decimal.NullDecimal `json:"changePercent"`
}

// HasPrice reports whether the quote carries a usable (positive) price.
func (q Quote) HasPrice() bool {
	return q.Price.Valid && q.Price.Decimal.IsPositive()
}

// ClosePoint is one daily close in a price history.
type ClosePoint struct {
	Date  string          `json:"date"` // YYYY-MM-DD
	Close decimal.Decimal `json:"close"`
}

// Article is a single news article.
type Article struct {
	Headline    string    `json:"headline"`
	Summary     string    `json:"summary"`
	URL         string    `json:"url"`
	Source      string    `json:"source,omitempty"`
	PublishedAt time.Time `json:"publishedAt"`
}

// Valuation is the live market value of all holdings at a point in time.
// Failed lists symbols whose quote could not be fetched; they contribute 0.
type Valuation struct {
	Value   decimal.Decimal `json:"value"`
	Symbols int             `json:"symbols"`
	Failed  []string        `json:"failed,omitempty"`
	At      time.Time       `json:"at"`
}
