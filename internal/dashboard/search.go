// Package dashboard holds the view model shared by the web and terminal
// front ends: symbol search with its stock cards, the portfolio summary, the
// theme preference, user-facing messages and money formatting.
package dashboard

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"papertrade/internal/domain"
	"papertrade/internal/marketdata"
	"papertrade/internal/news"
)

// ErrEmptyQuery is returned for a blank search. Front ends ignore it.
var ErrEmptyQuery = errors.New("empty query")

// ErrInvalidSymbol is returned for a query with characters that cannot
// appear in a ticker.
var ErrInvalidSymbol = errors.New("invalid symbol")

// NormalizeSymbol trims and uppercases a free-text query. Tickers may contain
// letters, digits and the punctuation used by class shares, foreign
// listings and indices (". - : ^").
func NormalizeSymbol(query string) (string, error) {
	s := strings.ToUpper(strings.TrimSpace(query))
	if s == "" {
		return "", ErrEmptyQuery
	}
	for _, r := range s {
		switch {
		case r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		case r == '.', r == '-', r == ':', r == '^':
		default:
			return "", fmt.Errorf("%w: %q", ErrInvalidSymbol, query)
		}
	}
	return s, nil
}

// Card is a searched stock: its quote plus the price chart and news shown
// below it. History and news failures are kept on the card as messages.
type Card struct {
	Symbol     string
	Quote      domain.Quote
	History    []domain.ClosePoint
	HistoryErr string
	News       []domain.Article
	NewsErr    string
	FetchedAt  time.Time
}

// Panel is the search panel: the list of searched stocks, most recent
// first, with at most one card per symbol.
type Panel struct {
	quotes  marketdata.QuoteSource
	history marketdata.HistorySource
	news    news.Source
	log     *slog.Logger

	mu    sync.RWMutex
	cards []Card
}

// NewPanel creates an empty search panel. history and newsSrc may be nil,
// in which case cards carry only the quote.
func NewPanel(quotes marketdata.QuoteSource, history marketdata.HistorySource, newsSrc news.Source, log *slog.Logger) *Panel {
	if log == nil {
		log = slog.Default()
	}
	return &Panel{
		quotes:  quotes,
		history: history,
		news:    newsSrc,
		log:     log.With("component", "search"),
	}
}

// Search normalizes query, fetches its quote and puts the stock at the
// front of the list, replacing an earlier card for the same symbol. The
// chart and news are then loaded onto the card. A failed quote leaves the
// list unchanged.
func (p *Panel) Search(ctx context.Context, query string) (Card, error) {
	symbol, err := NormalizeSymbol(query)
	if err != nil {
		return Card{}, err
	}

	quote, err := p.quotes.Quote(ctx, symbol)
	if err != nil {
		p.log.Warn("quote fetch failed", "symbol", symbol, "error", err)
		return Card{}, err
	}

	card := Card{Symbol: symbol, Quote: quote, FetchedAt: time.Now().UTC()}
	p.load(ctx, &card)
	if ctx.Err() != nil {
		return Card{}, ctx.Err()
	}

	p.mu.Lock()
	cards := make([]Card, 0, len(p.cards)+1)
	cards = append(cards, card)
	for _, c := range p.cards {
		if c.Symbol != symbol {
			cards = append(cards, c)
		}
	}
	p.cards = cards
	p.mu.Unlock()

	p.log.Info("stock searched", "symbol", symbol, "price", FormatPrice(quote.Price))
	return card, nil
}

// load fetches the chart and news for a card concurrently.
func (p *Panel) load(ctx context.Context, card *Card) {
	var wg sync.WaitGroup
	if p.history != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			points, err := p.history.History(ctx, card.Symbol)
			if err != nil {
				p.log.Warn("history fetch failed", "symbol", card.Symbol, "error", err)
				card.HistoryErr = HistoryMessage(err)
				return
			}
			card.History = points
		}()
	}
	if p.news != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			articles, err := p.news.CompanyNews(ctx, card.Symbol)
			if err != nil {
				p.log.Warn("news fetch failed", "symbol", card.Symbol, "error", err)
				card.NewsErr = CompanyNewsMessage(err)
				return
			}
			card.News = articles
		}()
	}
	wg.Wait()
}

// Cards returns the searched stocks, most recent first.
func (p *Panel) Cards() []Card {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]Card, len(p.cards))
	copy(out, p.cards)
	return out
}

// Card returns the card for symbol, if it has been searched.
func (p *Panel) Card(symbol string) (Card, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	for _, c := range p.cards {
		if c.Symbol == symbol {
			return c, true
		}
	}
	return Card{}, false
}
