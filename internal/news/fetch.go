// Package news fetches per-symbol and general market news from Finnhub or
// Alpaca and trims it for display.
package news

import (
	"context"
	"errors"
	"fmt"
	"html"
	"net/http"
	"regexp"
	"strings"
	"unicode/utf8"

	"papertrade/internal/config"
	"papertrade/internal/domain"
	"papertrade/internal/marketdata"
)

// Source fetches company and general market news. Both calls return
// domain.ErrNoData when the provider has no articles.
type Source interface {
	CompanyNews(ctx context.Context, symbol string) ([]domain.Article, error)
	MarketNews(ctx context.Context) ([]domain.Article, error)
}

// Options controls list caps, the company news window and summary length.
type Options struct {
	SymbolLimit  int
	MarketLimit  int
	SummaryChars int
	LookbackDays int
}

// OptionsFrom converts the news section of the configuration.
func OptionsFrom(cfg config.News) Options {
	return Options{
		SymbolLimit:  cfg.SymbolLimit,
		MarketLimit:  cfg.MarketLimit,
		SummaryChars: cfg.SummaryChars,
		LookbackDays: cfg.LookbackDays,
	}
}

// New builds the news source for cfg.Market.Provider.
func New(cfg *config.Config) (Source, error) {
	opts := OptionsFrom(cfg.News)
	switch cfg.Market.Provider {
	case "finnhub":
		client := &http.Client{Timeout: cfg.Market.RequestTimeout}
		return NewFinnhubNews(client, cfg.Finnhub.BaseURL, cfg.Finnhub.APIKey, opts), nil
	case "alpaca":
		if cfg.Alpaca.APIKey == "" || cfg.Alpaca.APISecret == "" {
			return nil, errors.New("alpaca provider requires APCA_API_KEY_ID and APCA_API_SECRET_KEY")
		}
		return NewAlpacaNews(marketdata.NewAlpacaClient(cfg.Alpaca, cfg.Market.RequestTimeout), opts), nil
	default:
		return nil, fmt.Errorf("unknown market provider %q", cfg.Market.Provider)
	}
}

// trim caps the list and shortens every summary.
func (o Options) trim(articles []domain.Article, limit int) []domain.Article {
	if limit > 0 && len(articles) > limit {
		articles = articles[:limit]
	}
	for i := range articles {
		articles[i].Summary = Truncate(StripHTML(articles[i].Summary), o.SummaryChars)
	}
	return articles
}

// Truncate shortens s to n runes followed by "..." when it is longer than n.
// n <= 0 leaves s untouched.
func Truncate(s string, n int) string {
	if n <= 0 || utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return string(runes[:n]) + "..."
}

// --- HTML helpers ---

var htmlTagRe = regexp.MustCompile(`<[^>]*>`)
var htmlParaRe = regexp.MustCompile(`(?i)</?(p|br|div|li|h[1-6])\b[^>]*>`)

// StripHTML removes HTML tags and normalizes whitespace.
func StripHTML(s string) string {
	s = htmlTagRe.ReplaceAllString(s, " ")
	s = html.UnescapeString(s)
	fields := strings.Fields(s)
	return strings.Join(fields, " ")
}

// ExtractSymbolContent extracts paragraphs mentioning the symbol from HTML content.
// Falls back to full stripped HTML if no paragraphs mention the symbol.
func ExtractSymbolContent(rawHTML, symbol string) string {
	chunks := htmlParaRe.Split(rawHTML, -1)
	var matched []string
	upper := strings.ToUpper(symbol)
	for _, chunk := range chunks {
		plain := StripHTML(chunk)
		if plain == "" {
			continue
		}
		if strings.Contains(strings.ToUpper(plain), upper) {
			matched = append(matched, plain)
		}
	}
	if len(matched) > 0 {
		return strings.Join(matched, " ")
	}
	return StripHTML(rawHTML)
}
