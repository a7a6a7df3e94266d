// Package httpapi serves the paper-trading dashboard over HTTP: the HTML
// dashboard and news pages, a JSON API used by the CLI and SDK, and a
// websocket that pushes live valuations to an open dashboard.
package httpapi

import (
	"github.com/shopspring/decimal"

	"papertrade/internal/dashboard"
	"papertrade/internal/domain"
)

// BuyRequest is the body of POST /api/buy. Price is the quote the user
// was shown; the order is rejected without one.
type BuyRequest struct {
	Symbol   string              `json:"symbol"`
	Price    decimal.NullDecimal `json:"price"`
	Quantity int64               `json:"quantity"`
}

// SellRequest is the body of POST /api/sell.
type SellRequest struct {
	Symbol   string `json:"symbol"`
	Quantity int64  `json:"quantity"`
}

// TradeResponse is returned by buy and sell.
type TradeResponse struct {
	Trade     domain.Trade     `json:"trade"`
	Portfolio domain.Portfolio `json:"portfolio"`
}

// HistoryResponse holds the daily closes for a symbol, oldest first.
type HistoryResponse struct {
	Symbol string              `json:"symbol"`
	Points []domain.ClosePoint `json:"points"`
}

// NewsResponse holds company or market news. Symbol is empty for market
// news.
type NewsResponse struct {
	Symbol   string           `json:"symbol,omitempty"`
	Articles []domain.Article `json:"articles"`
}

// ValuationsResponse lists the archived valuations of one UTC day.
type ValuationsResponse struct {
	Date       string             `json:"date"`
	Valuations []domain.Valuation `json:"valuations"`
}

// TradesResponse lists journaled trades, newest first.
type TradesResponse struct {
	Trades []domain.Trade `json:"trades"`
}

// Settings holds the user preferences.
type Settings struct {
	DarkMode bool `json:"darkMode"`
}

// ErrorResponse is the body of every non-2xx JSON response.
type ErrorResponse struct {
	Error string `json:"error"`
}

// StreamMessage is pushed over /ws.
type StreamMessage = dashboard.Update

// ---------------------------------------------------------------------------
// Page view models
// ---------------------------------------------------------------------------

type cardView struct {
	dashboard.Card
	Chart   Chart
	TopNews []domain.Article
}

type dashboardPage struct {
	Dark        bool
	Notice      string
	Cards       []cardView
	Summary     dashboard.Summary
	Holdings    []domain.Holding
	SellAmounts []int64
}

type newsPage struct {
	Dark     bool
	Articles []domain.Article
	Message  string
}

// newCardView trims a card's news to the number shown under it.
func newCardView(c dashboard.Card, newsPerCard int) cardView {
	v := cardView{Card: c, Chart: BuildChart(c.History, chartWidth, chartHeight), TopNews: c.News}
	if len(v.TopNews) > newsPerCard {
		v.TopNews = v.TopNews[:newsPerCard]
	}
	return v
}
