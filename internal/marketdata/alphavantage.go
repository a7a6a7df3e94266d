package marketdata

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/shopspring/decimal"

	"papertrade/internal/domain"
	"papertrade/internal/util"
)

// Compile-time interface check.
var _ HistorySource = (*AlphaVantageHistory)(nil)

// AlphaVantageHistory fetches daily closes from Alpha Vantage's
// TIME_SERIES_DAILY function. Requests are throttled to stay inside the
// free-tier quota.
type AlphaVantageHistory struct {
	client  *http.Client
	baseURL string
	token   string
	limiter *util.RateLimiter
}

// NewAlphaVantageHistory creates a history client allowing perMinute
// requests per minute (<= 0 disables throttling).
func NewAlphaVantageHistory(client *http.Client, baseURL, token string, perMinute int) *AlphaVantageHistory {
	return &AlphaVantageHistory{
		client:  client,
		baseURL: baseURL,
		token:   token,
		limiter: util.NewRateLimiter(perMinute),
	}
}

type alphaVantageDaily struct {
	Series map[string]struct {
		Close string `json:"4. close"`
	} `json:"Time Series (Daily)"`

	// Present instead of the series when the request was rejected.
	Note         string `json:"Note"`
	Information  string `json:"Information"`
	ErrorMessage string `json:"Error Message"`
}

// History returns the most recent HistoryDays closes, oldest first.
func (a *AlphaVantageHistory) History(ctx context.Context, symbol string) ([]domain.ClosePoint, error) {
	if err := a.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrFetchFailed, err)
	}

	q := url.Values{}
	q.Set("function", "TIME_SERIES_DAILY")
	q.Set("symbol", symbol)
	q.Set("apikey", a.token)

	var raw alphaVantageDaily
	if err := FetchJSON(ctx, a.client, a.baseURL+"?"+q.Encode(), &raw); err != nil {
		return nil, err
	}

	if len(raw.Series) == 0 {
		switch {
		case raw.ErrorMessage != "":
			return nil, fmt.Errorf("%w: %s", domain.ErrNoData, raw.ErrorMessage)
		case raw.Note != "":
			return nil, fmt.Errorf("%w: %s", domain.ErrNoData, raw.Note)
		case raw.Information != "":
			return nil, fmt.Errorf("%w: %s", domain.ErrNoData, raw.Information)
		}
		return nil, fmt.Errorf("%w: no daily series for %s", domain.ErrNoData, symbol)
	}

	points := make([]domain.ClosePoint, 0, len(raw.Series))
	for date, day := range raw.Series {
		c, err := decimal.NewFromString(day.Close)
		if err != nil {
			return nil, fmt.Errorf("%w: close for %s on %s: %v", domain.ErrFetchFailed, symbol, date, err)
		}
		points = append(points, domain.ClosePoint{Date: date, Close: c})
	}
	return keepRecent(points, HistoryDays), nil
}
