package domain

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// Error taxonomy. Callers match with errors.Is; the typed errors below unwrap
// to the matching sentinel.
var (
	// ErrFetchFailed reports a network or HTTP error talking to a provider.
	ErrFetchFailed = errors.New("fetch failed")
	// ErrNoData reports a well-formed but empty provider response.
	ErrNoData = errors.New("no data")

	ErrInvalidOrder       = errors.New("invalid order")
	ErrInsufficientFunds  = errors.New("insufficient funds")
	ErrNoSuchHolding      = errors.New("no such holding")
	ErrInsufficientShares = errors.New("insufficient shares")
	// ErrPriceUnavailable reports a missing or zero quote at sell time.
	ErrPriceUnavailable = errors.New("price unavailable")
)

// InsufficientFundsError is returned by a buy whose total cost exceeds the
// cash balance.
type InsufficientFundsError struct {
	Required  decimal.Decimal
	Available decimal.Decimal
}

func (e *InsufficientFundsError) Error() string {
	return fmt.Sprintf("insufficient funds: need %s, have %s",
		e.Required.StringFixed(2), e.Available.StringFixed(2))
}

func (e *InsufficientFundsError) Unwrap() error { return ErrInsufficientFunds }

// InsufficientSharesError is returned by a sell of more shares than held.
type InsufficientSharesError struct {
	Symbol    string
	Held      int64
	Requested int64
}

func (e *InsufficientSharesError) Error() string {
	return fmt.Sprintf("insufficient shares of %s: hold %d, requested %d", e.Symbol, e.Held, e.Requested)
}

func (e *InsufficientSharesError) Unwrap() error { return ErrInsufficientShares }
