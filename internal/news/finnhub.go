package news

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"papertrade/internal/domain"
	"papertrade/internal/marketdata"
)

// Compile-time interface check.
var _ Source = (*FinnhubNews)(nil)

// FinnhubNews fetches news from Finnhub's company-news and news endpoints.
type FinnhubNews struct {
	client  *http.Client
	baseURL string
	token   string
	opts    Options
	now     func() time.Time
}

// NewFinnhubNews creates a news client. baseURL is the API root, e.g.
// https://finnhub.io/api/v1.
func NewFinnhubNews(client *http.Client, baseURL, token string, opts Options) *FinnhubNews {
	return &FinnhubNews{
		client:  client,
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		opts:    opts,
		now:     time.Now,
	}
}

type finnhubArticle struct {
	Headline string `json:"headline"`
	Summary  string `json:"summary"`
	URL      string `json:"url"`
	Source   string `json:"source"`
	Datetime int64  `json:"datetime"` // unix seconds
}

// CompanyNews returns up to SymbolLimit articles about symbol published in
// the last LookbackDays days.
func (f *FinnhubNews) CompanyNews(ctx context.Context, symbol string) ([]domain.Article, error) {
	to := f.now()
	from := to.AddDate(0, 0, -f.opts.LookbackDays)

	q := url.Values{}
	q.Set("symbol", symbol)
	q.Set("from", from.Format("2006-01-02"))
	q.Set("to", to.Format("2006-01-02"))
	q.Set("token", f.token)

	articles, err := f.fetch(ctx, "/company-news?"+q.Encode())
	if err != nil {
		return nil, err
	}
	if len(articles) == 0 {
		return nil, fmt.Errorf("%w: no news for %s", domain.ErrNoData, symbol)
	}
	return f.opts.trim(articles, f.opts.SymbolLimit), nil
}

// MarketNews returns up to MarketLimit general market articles.
func (f *FinnhubNews) MarketNews(ctx context.Context) ([]domain.Article, error) {
	q := url.Values{}
	q.Set("category", "general")
	q.Set("token", f.token)

	articles, err := f.fetch(ctx, "/news?"+q.Encode())
	if err != nil {
		return nil, err
	}
	if len(articles) == 0 {
		return nil, fmt.Errorf("%w: no market news", domain.ErrNoData)
	}
	return f.opts.trim(articles, f.opts.MarketLimit), nil
}

func (f *FinnhubNews) fetch(ctx context.Context, pathAndQuery string) ([]domain.Article, error) {
	var raw []finnhubArticle
	if err := marketdata.FetchJSON(ctx, f.client, f.baseURL+pathAndQuery, &raw); err != nil {
		return nil, err
	}

	articles := make([]domain.Article, 0, len(raw))
	for _, a := range raw {
		articles = append(articles, domain.Article{
			Headline:    a.Headline,
			Summary:     a.Summary,
			URL:         a.URL,
			Source:      a.Source,
			PublishedAt: time.Unix(a.Datetime, 0).UTC(),
		})
	}
	return articles, nil
}
