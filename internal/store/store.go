// Package store defines the persistence ports used by papertrade and their
// backends: a key-value port for ledger state and preferences, a trade
// journal and a valuation archive.
package store

import (
	"context"
	"time"

	"papertrade/internal/domain"
)

// Well-known keys. The names match what the browser version kept in local
// storage so exported state stays interchangeable.
const (
	KeyDarkMode  = "darkMode"
	KeyBalance   = "balance"
	KeyPortfolio = "portfolio"
)

// KV is the key-value persistence port. Values are strings; callers own the
// encoding.
type KV interface {
	// Get returns the value for key and whether it was present.
	Get(ctx context.Context, key string) (string, bool, error)

	// Set stores a single value.
	Set(ctx context.Context, key, value string) error

	// SetMany stores all values atomically: either every key is written or
	// none is.
	SetMany(ctx context.Context, values map[string]string) error

	// Clear removes the given keys, or every key when none are given.
	Clear(ctx context.Context, keys ...string) error
}

// TradeJournal records executed trades.
type TradeJournal interface {
	// RecordTrade appends a trade to the journal.
	RecordTrade(ctx context.Context, trade domain.Trade) error

	// ListTrades returns the most recent trades, newest first, up to limit
	// (limit <= 0 means all).
	ListTrades(ctx context.Context, limit int) ([]domain.Trade, error)
}

// ValuationArchive persists published portfolio valuations.
type ValuationArchive interface {
	// WriteValuations appends valuations to the archive.
	WriteValuations(ctx context.Context, vals []domain.Valuation) error

	// ReadValuations returns the valuations recorded on the given day
	// (UTC), oldest first.
	ReadValuations(ctx context.Context, day time.Time) ([]domain.Valuation, error)
}
