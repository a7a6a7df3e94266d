package news

import (
	"context"
	"fmt"
	"time"

	"github.com/alpacahq/alpaca-trade-api-go/v3/marketdata"

	"papertrade/internal/domain"
)

// Compile-time interface check.
var _ Source = (*AlpacaNews)(nil)

// AlpacaNews fetches news from the Alpaca marketdata API.
type AlpacaNews struct {
	client *marketdata.Client
	opts   Options
	now    func() time.Time
}

// NewAlpacaNews wraps an Alpaca market data client.
func NewAlpacaNews(client *marketdata.Client, opts Options) *AlpacaNews {
	return &AlpacaNews{client: client, opts: opts, now: time.Now}
}

// CompanyNews returns the newest articles mentioning symbol.
func (a *AlpacaNews) CompanyNews(ctx context.Context, symbol string) ([]domain.Article, error) {
	articles, err := a.fetch(ctx, []string{symbol}, a.opts.SymbolLimit)
	if err != nil {
		return nil, err
	}
	if len(articles) == 0 {
		return nil, fmt.Errorf("%w: no news for %s", domain.ErrNoData, symbol)
	}
	return a.opts.trim(articles, a.opts.SymbolLimit), nil
}

// MarketNews returns the newest articles across all symbols.
func (a *AlpacaNews) MarketNews(ctx context.Context) ([]domain.Article, error) {
	articles, err := a.fetch(ctx, nil, a.opts.MarketLimit)
	if err != nil {
		return nil, err
	}
	if len(articles) == 0 {
		return nil, fmt.Errorf("%w: no market news", domain.ErrNoData)
	}
	return a.opts.trim(articles, a.opts.MarketLimit), nil
}

func (a *AlpacaNews) fetch(ctx context.Context, symbols []string, limit int) ([]domain.Article, error) {
	if ctx.Err() != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrFetchFailed, ctx.Err())
	}

	end := a.now()
	alpacaNews, err := a.client.GetNews(marketdata.GetNewsRequest{
		Symbols:        symbols,
		Start:          end.AddDate(0, 0, -a.opts.LookbackDays),
		End:            end,
		TotalLimit:     limit,
		IncludeContent: len(symbols) == 1,
		Sort:           marketdata.SortDesc,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: alpaca news: %v", domain.ErrFetchFailed, err)
	}

	articles := make([]domain.Article, 0, len(alpacaNews))
	for _, n := range alpacaNews {
		summary := n.Summary
		if summary == "" && n.Content != "" && len(symbols) == 1 {
			summary = ExtractSymbolContent(n.Content, symbols[0])
		}
		articles = append(articles, domain.Article{
			Headline:    n.Headline,
			Summary:     summary,
			URL:         n.URL,
			Source:      "alpaca",
			PublishedAt: n.CreatedAt,
		})
	}
	return articles, nil
}
