package marketdata

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	"github.com/shopspring/decimal"

	"papertrade/internal/domain"
)

// Compile-time interface check.
var _ QuoteSource = (*FinnhubQuotes)(nil)

// FinnhubQuotes fetches quotes from Finnhub's /quote endpoint.
type FinnhubQuotes struct {
	client  *http.Client
	baseURL string
	token   string
}

// NewFinnhubQuotes creates a quote client. baseURL is the API root, e.g.
// https://finnhub.io/api/v1.
func NewFinnhubQuotes(client *http.Client, baseURL, token string) *FinnhubQuotes {
	return &FinnhubQuotes{client: client, baseURL: strings.TrimRight(baseURL, "/"), token: token}
}

type finnhubQuote struct {
	Current       decimal.NullDecimal `json:"c"`
	ChangePercent decimal.NullDecimal `json:"dp"`
}

// Quote returns the current price and daily percent change. Finnhub answers
// unknown symbols with zeros, so a zero price is reported as absent.
func (f *FinnhubQuotes) Quote(ctx context.Context, symbol string) (domain.Quote, error) {
	q := url.Values{}
	q.Set("symbol", symbol)
	q.Set("token", f.token)

	var raw finnhubQuote
	if err := FetchJSON(ctx, f.client, f.baseURL+"/quote?"+q.Encode(), &raw); err != nil {
		return domain.Quote{}, err
	}

	quote := domain.Quote{Symbol: symbol, ChangePercent: raw.ChangePercent}
	if raw.Current.Valid && raw.Current.Decimal.IsPositive() {
		quote.Price = raw.Current
	}
	return quote, nil
}
