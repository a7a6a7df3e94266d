package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"html/template"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"papertrade/internal/dashboard"
	"papertrade/internal/domain"
	"papertrade/internal/ledger"
	"papertrade/internal/marketdata"
	"papertrade/internal/news"
	"papertrade/internal/store"
)

const (
	newsPerCard       = 5
	defaultTradeLimit = 50
	maxBodyBytes      = 1 << 16
)

// Deps are the collaborators of a Server. Journal and Archive are optional.
type Deps struct {
	Ledger  *ledger.Ledger
	Watcher *dashboard.Watcher
	Quotes  marketdata.QuoteSource
	History marketdata.HistorySource
	News    news.Source
	Panel   *dashboard.Panel
	Theme   *dashboard.Theme
	Journal store.TradeJournal
	Archive store.ValuationArchive
	Log     *slog.Logger
}

// Server serves the dashboard pages, the JSON API and the valuation
// websocket.
type Server struct {
	ledger  *ledger.Ledger
	watcher *dashboard.Watcher
	quotes  marketdata.QuoteSource
	history marketdata.HistorySource
	news    news.Source
	panel   *dashboard.Panel
	theme   *dashboard.Theme
	journal store.TradeJournal
	archive store.ValuationArchive
	log     *slog.Logger
	pages   *template.Template
}

// New creates a Server.
func New(d Deps) *Server {
	log := d.Log
	if log == nil {
		log = slog.Default()
	}
	return &Server{
		ledger:  d.Ledger,
		watcher: d.Watcher,
		quotes:  d.Quotes,
		history: d.History,
		news:    d.News,
		panel:   d.Panel,
		theme:   d.Theme,
		journal: d.Journal,
		archive: d.Archive,
		log:     log.With("component", "http"),
		pages:   parsePages(),
	}
}

// RegisterRoutes registers all routes on the given mux.
func (s *Server) RegisterRoutes(mux *http.ServeMux) {
	// Pages.
	mux.HandleFunc("GET /{$}", s.handleDashboardPage)
	mux.HandleFunc("GET /news", s.handleNewsPage)
	mux.HandleFunc("POST /search", s.handleSearchForm)
	mux.HandleFunc("POST /buy", s.handleBuyForm)
	mux.HandleFunc("POST /sell", s.handleSellForm)
	mux.HandleFunc("POST /theme", s.handleThemeForm)

	// JSON API.
	mux.HandleFunc("GET /api/quote/{symbol}", s.handleQuote)
	mux.HandleFunc("GET /api/history/{symbol}", s.handleHistory)
	mux.HandleFunc("GET /api/news/{symbol}", s.handleCompanyNews)
	mux.HandleFunc("GET /api/news", s.handleMarketNews)
	mux.HandleFunc("GET /api/portfolio", s.handlePortfolio)
	mux.HandleFunc("POST /api/buy", s.handleBuy)
	mux.HandleFunc("POST /api/sell", s.handleSell)
	mux.HandleFunc("POST /api/reset", s.handleReset)
	mux.HandleFunc("GET /api/valuation", s.handleValuation)
	mux.HandleFunc("GET /api/valuations", s.handleValuations)
	mux.HandleFunc("GET /api/trades", s.handleTrades)
	mux.HandleFunc("GET /api/settings", s.handleGetSettings)
	mux.HandleFunc("PUT /api/settings", s.handlePutSettings)

	mux.HandleFunc("GET /ws", s.handleWebSocket)
}

// Handler returns an http.Handler with CORS middleware.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	s.RegisterRoutes(mux)
	return corsMiddleware(mux)
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("encoding JSON response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(ErrorResponse{Error: msg})
}

// writeDomainError maps the error taxonomy to a status code.
func writeDomainError(w http.ResponseWriter, err error) {
	writeError(w, StatusFor(err), err.Error())
}

// StatusFor returns the HTTP status for an error returned by the ledger,
// the search panel or a market data source.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, dashboard.ErrEmptyQuery),
		errors.Is(err, dashboard.ErrInvalidSymbol),
		errors.Is(err, domain.ErrInvalidOrder):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrNoSuchHolding), errors.Is(err, domain.ErrNoData):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrInsufficientFunds), errors.Is(err, domain.ErrInsufficientShares):
		return http.StatusConflict
	case errors.Is(err, domain.ErrFetchFailed), errors.Is(err, domain.ErrPriceUnavailable):
		return http.StatusBadGateway
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}

func pathSymbol(w http.ResponseWriter, r *http.Request) (string, bool) {
	symbol, err := dashboard.NormalizeSymbol(r.PathValue("symbol"))
	if err != nil {
		writeDomainError(w, err)
		return "", false
	}
	return symbol, true
}

// ---------------------------------------------------------------------------
// Market data
// ---------------------------------------------------------------------------

func (s *Server) handleQuote(w http.ResponseWriter, r *http.Request) {
	symbol, ok := pathSymbol(w, r)
	if !ok {
		return
	}
	q, err := s.quotes.Quote(r.Context(), symbol)
	if err != nil {
		s.log.Warn("quote failed", "symbol", symbol, "error", err)
		writeDomainError(w, err)
		return
	}
	writeJSON(w, q)
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	symbol, ok := pathSymbol(w, r)
	if !ok {
		return
	}
	if s.history == nil {
		writeError(w, http.StatusNotFound, "history not configured")
		return
	}
	points, err := s.history.History(r.Context(), symbol)
	if err != nil {
		s.log.Warn("history failed", "symbol", symbol, "error", err)
		writeDomainError(w, err)
		return
	}
	writeJSON(w, HistoryResponse{Symbol: symbol, Points: points})
}

func (s *Server) handleCompanyNews(w http.ResponseWriter, r *http.Request) {
	symbol, ok := pathSymbol(w, r)
	if !ok {
		return
	}
	if s.news == nil {
		writeError(w, http.StatusNotFound, "news not configured")
		return
	}
	articles, err := s.news.CompanyNews(r.Context(), symbol)
	if err != nil {
		s.log.Warn("company news failed", "symbol", symbol, "error", err)
		writeDomainError(w, err)
		return
	}
	writeJSON(w, NewsResponse{Symbol: symbol, Articles: articles})
}

func (s *Server) handleMarketNews(w http.ResponseWriter, r *http.Request) {
	if s.news == nil {
		writeError(w, http.StatusNotFound, "news not configured")
		return
	}
	articles, err := s.news.MarketNews(r.Context())
	if err != nil {
		s.log.Warn("market news failed", "error", err)
		writeDomainError(w, err)
		return
	}
	writeJSON(w, NewsResponse{Articles: articles})
}

// ---------------------------------------------------------------------------
// Ledger
// ---------------------------------------------------------------------------

func (s *Server) handlePortfolio(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.ledger.Snapshot())
}

func (s *Server) handleBuy(w http.ResponseWriter, r *http.Request) {
	var req BuyRequest
	if !decodeBody(w, r, &req) {
		return
	}
	trade, err := s.ledger.Buy(r.Context(), req.Symbol, req.Price, req.Quantity)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, TradeResponse{Trade: trade, Portfolio: s.ledger.Snapshot()})
}

func (s *Server) handleSell(w http.ResponseWriter, r *http.Request) {
	var req SellRequest
	if !decodeBody(w, r, &req) {
		return
	}
	trade, err := s.ledger.Sell(r.Context(), req.Symbol, req.Quantity)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, TradeResponse{Trade: trade, Portfolio: s.ledger.Snapshot()})
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	if err := s.ledger.Reset(r.Context()); err != nil {
		s.log.Error("reset failed", "error", err)
		writeDomainError(w, err)
		return
	}
	writeJSON(w, s.ledger.Snapshot())
}

func (s *Server) handleTrades(w http.ResponseWriter, r *http.Request) {
	limit := defaultTradeLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		limit = n
	}
	if s.journal == nil {
		writeJSON(w, TradesResponse{Trades: []domain.Trade{}})
		return
	}
	trades, err := s.journal.ListTrades(r.Context(), limit)
	if err != nil {
		s.log.Error("listing trades", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list trades")
		return
	}
	if trades == nil {
		trades = []domain.Trade{}
	}
	writeJSON(w, TradesResponse{Trades: trades})
}

// ---------------------------------------------------------------------------
// Valuation
// ---------------------------------------------------------------------------

func (s *Server) handleValuation(w http.ResponseWriter, r *http.Request) {
	sum := s.watcher.Value(r.Context())
	if err := r.Context().Err(); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, sum)
}

func (s *Server) handleValuations(w http.ResponseWriter, r *http.Request) {
	if s.archive == nil {
		writeError(w, http.StatusNotFound, "valuation archive disabled")
		return
	}
	day := time.Now().UTC()
	if v := r.URL.Query().Get("date"); v != "" {
		t, err := time.Parse("2006-01-02", v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "date must be YYYY-MM-DD")
			return
		}
		day = t
	}
	vals, err := s.archive.ReadValuations(r.Context(), day)
	if err != nil {
		s.log.Error("reading valuations", "date", day.Format("2006-01-02"), "error", err)
		writeError(w, http.StatusInternalServerError, "failed to read valuations")
		return
	}
	if vals == nil {
		vals = []domain.Valuation{}
	}
	writeJSON(w, ValuationsResponse{Date: day.Format("2006-01-02"), Valuations: vals})
}

// ---------------------------------------------------------------------------
// Settings
// ---------------------------------------------------------------------------

func (s *Server) handleGetSettings(w http.ResponseWriter, r *http.Request) {
	dark, err := s.theme.Dark(r.Context())
	if err != nil {
		s.log.Warn("reading theme", "error", err)
	}
	writeJSON(w, Settings{DarkMode: dark})
}

func (s *Server) handlePutSettings(w http.ResponseWriter, r *http.Request) {
	var req Settings
	if !decodeBody(w, r, &req) {
		return
	}
	if err := s.theme.SetDark(r.Context(), req.DarkMode); err != nil {
		s.log.Error("saving theme", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to save settings")
		return
	}
	writeJSON(w, req)
}
