// Package papertrade is a Go client for the papertrade-server JSON API.
package papertrade

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"papertrade/internal/dashboard"
	"papertrade/internal/domain"
	"papertrade/internal/httpapi"
)

// Client provides a Go SDK for interacting with the papertrade-server API.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a new papertrade API client.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// APIError is returned for non-2xx responses.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("server returned %d: %s", e.Status, e.Message)
}

// Quote retrieves the latest quote for symbol.
func (c *Client) Quote(ctx context.Context, symbol string) (domain.Quote, error) {
	var q domain.Quote
	err := c.do(ctx, http.MethodGet, "/api/quote/"+url.PathEscape(symbol), nil, &q)
	return q, err
}

// History retrieves the recent daily closes for symbol, oldest first.
func (c *Client) History(ctx context.Context, symbol string) ([]domain.ClosePoint, error) {
	var resp httpapi.HistoryResponse
	err := c.do(ctx, http.MethodGet, "/api/history/"+url.PathEscape(symbol), nil, &resp)
	return resp.Points, err
}

// CompanyNews retrieves recent news for symbol.
func (c *Client) CompanyNews(ctx context.Context, symbol string) ([]domain.Article, error) {
	var resp httpapi.NewsResponse
	err := c.do(ctx, http.MethodGet, "/api/news/"+url.PathEscape(symbol), nil, &resp)
	return resp.Articles, err
}

// MarketNews retrieves general market news.
func (c *Client) MarketNews(ctx context.Context) ([]domain.Article, error) {
	var resp httpapi.NewsResponse
	err := c.do(ctx, http.MethodGet, "/api/news", nil, &resp)
	return resp.Articles, err
}

// Portfolio retrieves the cash balance and holdings.
func (c *Client) Portfolio(ctx context.Context) (domain.Portfolio, error) {
	var p domain.Portfolio
	err := c.do(ctx, http.MethodGet, "/api/portfolio", nil, &p)
	return p, err
}

// Buy buys quantity shares of symbol at price.
func (c *Client) Buy(ctx context.Context, symbol string, price decimal.Decimal, quantity int64) (httpapi.TradeResponse, error) {
	var resp httpapi.TradeResponse
	req := httpapi.BuyRequest{Symbol: symbol, Price: decimal.NewNullDecimal(price), Quantity: quantity}
	err := c.do(ctx, http.MethodPost, "/api/buy", req, &resp)
	return resp, err
}

// Sell sells quantity shares of symbol at the current market price.
func (c *Client) Sell(ctx context.Context, symbol string, quantity int64) (httpapi.TradeResponse, error) {
	var resp httpapi.TradeResponse
	err := c.do(ctx, http.MethodPost, "/api/sell", httpapi.SellRequest{Symbol: symbol, Quantity: quantity}, &resp)
	return resp, err
}

// Reset restores the starting balance and clears all holdings.
func (c *Client) Reset(ctx context.Context) (domain.Portfolio, error) {
	var p domain.Portfolio
	err := c.do(ctx, http.MethodPost, "/api/reset", nil, &p)
	return p, err
}

// Valuation values the holdings now.
func (c *Client) Valuation(ctx context.Context) (dashboard.Summary, error) {
	var s dashboard.Summary
	err := c.do(ctx, http.MethodGet, "/api/valuation", nil, &s)
	return s, err
}

// Valuations retrieves the archived valuations of one UTC day.
func (c *Client) Valuations(ctx context.Context, day time.Time) ([]domain.Valuation, error) {
	var resp httpapi.ValuationsResponse
	err := c.do(ctx, http.MethodGet, "/api/valuations?date="+day.UTC().Format("2006-01-02"), nil, &resp)
	return resp.Valuations, err
}

// Trades retrieves up to limit journaled trades, newest first. limit 0
// means all.
func (c *Client) Trades(ctx context.Context, limit int) ([]domain.Trade, error) {
	var resp httpapi.TradesResponse
	err := c.do(ctx, http.MethodGet, "/api/trades?limit="+strconv.Itoa(limit), nil, &resp)
	return resp.Trades, err
}

// Settings retrieves the user preferences.
func (c *Client) Settings(ctx context.Context) (httpapi.Settings, error) {
	var s httpapi.Settings
	err := c.do(ctx, http.MethodGet, "/api/settings", nil, &s)
	return s, err
}

// SetSettings saves the user preferences.
func (c *Client) SetSettings(ctx context.Context, s httpapi.Settings) error {
	return c.do(ctx, http.MethodPut, "/api/settings", s, nil)
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encoding request: %w", err)
		}
		rd = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, rd)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		var e httpapi.ErrorResponse
		if err := json.NewDecoder(resp.Body).Decode(&e); err != nil || e.Error == "" {
			e.Error = http.StatusText(resp.StatusCode)
		}
		return &APIError{Status: resp.StatusCode, Message: e.Error}
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding %s response: %w", path, err)
	}
	return nil
}
