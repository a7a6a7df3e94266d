package dashboard

import (
	"errors"
	"fmt"

	"papertrade/internal/domain"
)

// SellAmounts are the fixed quantities offered by the sell buttons.
var SellAmounts = []int64{1, 5, 10, 20, 50, 100}

// UserMessage maps an order error to the notice shown to the user.
func UserMessage(err error) string {
	var shares *domain.InsufficientSharesError
	switch {
	case err == nil:
		return ""
	case errors.Is(err, domain.ErrInsufficientFunds):
		return "Not enough balance!"
	case errors.Is(err, domain.ErrNoSuchHolding):
		return "You don't own this stock!"
	case errors.As(err, &shares):
		return fmt.Sprintf("You only have %d shares!", shares.Held)
	case errors.Is(err, domain.ErrPriceUnavailable) && errors.Is(err, domain.ErrFetchFailed):
		return "Failed to get the latest stock price. Try again."
	case errors.Is(err, domain.ErrPriceUnavailable):
		return "Failed to fetch latest stock price. Try again."
	case errors.Is(err, domain.ErrInvalidOrder):
		return "Please enter a valid order."
	case errors.Is(err, ErrInvalidSymbol):
		return "Please enter a valid stock symbol."
	case errors.Is(err, domain.ErrFetchFailed), errors.Is(err, domain.ErrNoData):
		return "Failed to fetch stock data. Try again."
	default:
		return "Something went wrong. Try again."
	}
}

// HistoryMessage is the inline message for a chart that failed to load.
func HistoryMessage(err error) string {
	if errors.Is(err, domain.ErrNoData) {
		return "No historical data available."
	}
	return "Failed to load stock chart."
}

// CompanyNewsMessage is the inline message for a card's news list.
func CompanyNewsMessage(err error) string {
	if errors.Is(err, domain.ErrNoData) {
		return "No news available for this stock."
	}
	return "Failed to load news. Try again later."
}

// MarketNewsMessage is the inline message for the market news page.
func MarketNewsMessage(err error) string {
	if errors.Is(err, domain.ErrNoData) {
		return "No market news available."
	}
	return "Failed to load news. Try again later."
}
