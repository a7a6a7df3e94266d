package httpapi

import (
	"bytes"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"net/http"
	"net/url"
	"strconv"

	"github.com/shopspring/decimal"

	"papertrade/internal/dashboard"
	"papertrade/internal/domain"
)

//go:embed templates/*.html
var templateFS embed.FS

const noticeCookie = "notice"

func parsePages() *template.Template {
	funcs := template.FuncMap{
		"usd":         dashboard.FormatUSD,
		"price":       dashboard.FormatPrice,
		"change":      dashboard.FormatChange,
		"changeClass": dashboard.ChangeClass,
		"shares":      dashboard.FormatShares,
		"date":        func(a domain.Article) string { return a.PublishedAt.Format("Jan 2, 2006 15:04") },
	}
	return template.Must(template.New("").Funcs(funcs).ParseFS(templateFS, "templates/*.html"))
}

func (s *Server) render(w http.ResponseWriter, name string, data any) {
	var buf bytes.Buffer
	if err := s.pages.ExecuteTemplate(&buf, name, data); err != nil {
		s.log.Error("rendering page", "page", name, "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	buf.WriteTo(w)
}

// setNotice stores a one-time message shown on the next page load.
func setNotice(w http.ResponseWriter, msg string) {
	http.SetCookie(w, &http.Cookie{
		Name:     noticeCookie,
		Value:    url.QueryEscape(msg),
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

// takeNotice returns the pending notice and clears it.
func takeNotice(w http.ResponseWriter, r *http.Request) string {
	c, err := r.Cookie(noticeCookie)
	if err != nil {
		return ""
	}
	http.SetCookie(w, &http.Cookie{Name: noticeCookie, Path: "/", MaxAge: -1})
	msg, err := url.QueryUnescape(c.Value)
	if err != nil {
		return ""
	}
	return msg
}

func redirectHome(w http.ResponseWriter, r *http.Request) {
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (s *Server) dark(r *http.Request) bool {
	dark, err := s.theme.Dark(r.Context())
	if err != nil {
		s.log.Warn("reading theme", "error", err)
	}
	return dark
}

// ---------------------------------------------------------------------------
// Pages
// ---------------------------------------------------------------------------

func (s *Server) handleDashboardPage(w http.ResponseWriter, r *http.Request) {
	page := dashboardPage{
		Dark:        s.dark(r),
		Notice:      takeNotice(w, r),
		Summary:     s.watcher.Current(),
		Holdings:    s.ledger.Holdings(),
		SellAmounts: dashboard.SellAmounts,
	}
	for _, c := range s.panel.Cards() {
		page.Cards = append(page.Cards, newCardView(c, newsPerCard))
	}
	s.render(w, "dashboard.html", page)
}

func (s *Server) handleNewsPage(w http.ResponseWriter, r *http.Request) {
	page := newsPage{Dark: s.dark(r)}
	if s.news == nil {
		page.Message = dashboard.MarketNewsMessage(domain.ErrNoData)
	} else if articles, err := s.news.MarketNews(r.Context()); err != nil {
		s.log.Warn("market news failed", "error", err)
		page.Message = dashboard.MarketNewsMessage(err)
	} else {
		page.Articles = articles
	}
	s.render(w, "news.html", page)
}

// ---------------------------------------------------------------------------
// Forms
// ---------------------------------------------------------------------------

func (s *Server) handleSearchForm(w http.ResponseWriter, r *http.Request) {
	_, err := s.panel.Search(r.Context(), r.FormValue("symbol"))
	if err != nil && !errors.Is(err, dashboard.ErrEmptyQuery) {
		setNotice(w, dashboard.UserMessage(err))
	}
	redirectHome(w, r)
}

// handleBuyForm buys at the price shown on the symbol's card.
func (s *Server) handleBuyForm(w http.ResponseWriter, r *http.Request) {
	symbol, err := dashboard.NormalizeSymbol(r.FormValue("symbol"))
	if err != nil {
		setNotice(w, dashboard.UserMessage(err))
		redirectHome(w, r)
		return
	}
	qty, err := strconv.ParseInt(r.FormValue("quantity"), 10, 64)
	if err != nil {
		setNotice(w, dashboard.UserMessage(fmt.Errorf("%w: quantity", domain.ErrInvalidOrder)))
		redirectHome(w, r)
		return
	}

	var price decimal.NullDecimal
	if card, ok := s.panel.Card(symbol); ok {
		price = card.Quote.Price
	}
	trade, err := s.ledger.Buy(r.Context(), symbol, price, qty)
	if err != nil {
		setNotice(w, dashboard.UserMessage(err))
	} else {
		setNotice(w, fmt.Sprintf("Bought %s of %s for %s.",
			dashboard.FormatShares(trade.Quantity), trade.Symbol, dashboard.FormatUSD(trade.Total)))
	}
	redirectHome(w, r)
}

func (s *Server) handleSellForm(w http.ResponseWriter, r *http.Request) {
	qty, err := strconv.ParseInt(r.FormValue("quantity"), 10, 64)
	if err != nil {
		setNotice(w, dashboard.UserMessage(fmt.Errorf("%w: quantity", domain.ErrInvalidOrder)))
		redirectHome(w, r)
		return
	}
	trade, err := s.ledger.Sell(r.Context(), r.FormValue("symbol"), qty)
	if err != nil {
		setNotice(w, dashboard.UserMessage(err))
	} else {
		setNotice(w, fmt.Sprintf("Sold %s of %s for %s.",
			dashboard.FormatShares(trade.Quantity), trade.Symbol, dashboard.FormatUSD(trade.Total)))
	}
	redirectHome(w, r)
}

func (s *Server) handleThemeForm(w http.ResponseWriter, r *http.Request) {
	if _, err := s.theme.Toggle(r.Context()); err != nil {
		s.log.Error("toggling theme", "error", err)
	}
	back := "/"
	if ref := r.FormValue("back"); ref == "/news" {
		back = ref
	}
	http.Redirect(w, r, back, http.StatusSeeOther)
}
