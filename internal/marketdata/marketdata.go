// Package marketdata provides quote and daily price history clients for the
// Finnhub, Alpha Vantage and Alpaca market data APIs.
package marketdata

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"sort"
	"time"

	"papertrade/internal/config"
	"papertrade/internal/domain"
)

// HistoryDays is the number of daily closes returned by a HistorySource.
const HistoryDays = 7

// QuoteSource fetches the latest quote for a symbol.
type QuoteSource interface {
	Quote(ctx context.Context, symbol string) (domain.Quote, error)
}

// HistorySource fetches the most recent HistoryDays daily closes for a
// symbol, oldest first.
type HistorySource interface {
	History(ctx context.Context, symbol string) ([]domain.ClosePoint, error)
}

// Sources bundles the clients selected by configuration.
type Sources struct {
	Quotes  QuoteSource
	History HistorySource
}

// New builds the quote and history clients for cfg.Market.Provider.
func New(cfg *config.Config, log *slog.Logger) (*Sources, error) {
	httpClient := &http.Client{Timeout: cfg.Market.RequestTimeout}

	switch cfg.Market.Provider {
	case "finnhub":
		if cfg.Finnhub.APIKey == "" {
			log.Warn("FINNHUB_API_KEY not set, quote requests will be rejected")
		}
		if cfg.AlphaVantage.APIKey == "" {
			log.Warn("ALPHAVANTAGE_API_KEY not set, history requests will be rejected")
		}
		return &Sources{
			Quotes: NewFinnhubQuotes(httpClient, cfg.Finnhub.BaseURL, cfg.Finnhub.APIKey),
			History: NewAlphaVantageHistory(httpClient, cfg.AlphaVantage.BaseURL,
				cfg.AlphaVantage.APIKey, cfg.AlphaVantage.RateLimitPerMin),
		}, nil
	case "alpaca":
		if cfg.Alpaca.APIKey == "" || cfg.Alpaca.APISecret == "" {
			return nil, errors.New("alpaca provider requires APCA_API_KEY_ID and APCA_API_SECRET_KEY")
		}
		src := NewAlpacaSource(NewAlpacaClient(cfg.Alpaca, cfg.Market.RequestTimeout), cfg.Alpaca.Feed)
		return &Sources{Quotes: src, History: src}, nil
	default:
		return nil, fmt.Errorf("unknown market provider %q", cfg.Market.Provider)
	}
}

// FetchJSON issues a GET for rawURL and decodes the JSON body into v.
// Transport errors, timeouts, non-2xx statuses and undecodable bodies are
// reported as domain.ErrFetchFailed. The URL is never included in the error
// because it carries the access token.
func FetchJSON(ctx context.Context, client *http.Client, rawURL string, v any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrFetchFailed, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		var uerr *url.Error
		if errors.As(err, &uerr) {
			err = uerr.Err
		}
		return fmt.Errorf("%w: %v", domain.ErrFetchFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("%w: %s", domain.ErrFetchFailed, resp.Status)
	}
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("%w: decoding response: %v", domain.ErrFetchFailed, err)
	}
	return nil
}

// keepRecent sorts points by date, keeps the last n and returns them oldest
// first. Dates are YYYY-MM-DD so lexical order is chronological.
func keepRecent(points []domain.ClosePoint, n int) []domain.ClosePoint {
	sortByDate(points)
	if len(points) > n {
		points = points[len(points)-n:]
	}
	return points
}

func sortByDate(points []domain.ClosePoint) {
	sort.Slice(points, func(i, j int) bool { return points[i].Date < points[j].Date })
}

func dateOf(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}
