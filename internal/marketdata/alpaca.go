package marketdata

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/alpacahq/alpaca-trade-api-go/v3/marketdata"
	"github.com/shopspring/decimal"

	"papertrade/internal/config"
	"papertrade/internal/domain"
)

// Compile-time interface checks.
var _ QuoteSource = (*AlpacaSource)(nil)
var _ HistorySource = (*AlpacaSource)(nil)

// NewAlpacaClient creates an Alpaca market data client from configuration.
func NewAlpacaClient(cfg config.Alpaca, timeout time.Duration) *marketdata.Client {
	opts := marketdata.ClientOpts{
		APIKey:     cfg.APIKey,
		APISecret:  cfg.APISecret,
		Feed:       cfg.Feed,
		HTTPClient: &http.Client{Timeout: timeout},
	}
	if cfg.DataURL != "" {
		opts.BaseURL = cfg.DataURL
	}
	return marketdata.NewClient(opts)
}

// AlpacaSource implements QuoteSource and HistorySource with the Alpaca
// market data API.
type AlpacaSource struct {
	client *marketdata.Client
	feed   string
}

// NewAlpacaSource wraps an Alpaca market data client.
func NewAlpacaSource(client *marketdata.Client, feed string) *AlpacaSource {
	return &AlpacaSource{client: client, feed: feed}
}

// Quote returns the latest trade price and the percent change against the
// previous daily close.
func (a *AlpacaSource) Quote(ctx context.Context, symbol string) (domain.Quote, error) {
	if ctx.Err() != nil {
		return domain.Quote{}, fmt.Errorf("%w: %v", domain.ErrFetchFailed, ctx.Err())
	}

	snap, err := a.client.GetSnapshot(symbol, marketdata.GetSnapshotRequest{Feed: a.feed})
	if err != nil {
		return domain.Quote{}, fmt.Errorf("%w: snapshot %s: %v", domain.ErrFetchFailed, symbol, err)
	}

	quote := domain.Quote{Symbol: symbol}
	if snap == nil || snap.LatestTrade == nil || snap.LatestTrade.Price <= 0 {
		return quote, nil
	}
	last := decimal.NewFromFloat(snap.LatestTrade.Price)
	quote.Price = decimal.NewNullDecimal(last)

	if snap.PrevDailyBar != nil && snap.PrevDailyBar.Close > 0 {
		prev := decimal.NewFromFloat(snap.PrevDailyBar.Close)
		pct := last.Sub(prev).Div(prev).Mul(decimal.NewFromInt(100)).Round(4)
		quote.ChangePercent = decimal.NewNullDecimal(pct)
	}
	return quote, nil
}

// History returns the most recent HistoryDays daily closes, oldest first.
// It requests three weeks of bars to cover weekends and holidays.
func (a *AlpacaSource) History(ctx context.Context, symbol string) ([]domain.ClosePoint, error) {
	if ctx.Err() != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrFetchFailed, ctx.Err())
	}

	end := time.Now()
	bars, err := a.client.GetBars(symbol, marketdata.GetBarsRequest{
		TimeFrame: marketdata.OneDay,
		Start:     end.AddDate(0, 0, -21),
		End:       end,
		Feed:      a.feed,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: bars %s: %v", domain.ErrFetchFailed, symbol, err)
	}
	if len(bars) == 0 {
		return nil, fmt.Errorf("%w: no daily bars for %s", domain.ErrNoData, symbol)
	}

	points := make([]domain.ClosePoint, 0, len(bars))
	for _, b := range bars {
		points = append(points, domain.ClosePoint{
			Date:  dateOf(b.Timestamp),
			Close: decimal.NewFromFloat(b.Close),
		})
	}
	return keepRecent(points, HistoryDays), nil
}
