package main

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/shopspring/decimal"

	"papertrade/internal/dashboard"
	"papertrade/internal/domain"
	"papertrade/internal/ledger"
	"papertrade/internal/news"
)

type viewID int

const (
	viewDashboard viewID = iota
	viewNews
)

type inputMode int

const (
	modeNormal inputMode = iota
	modeSearch
	modeBuy
)

type focusArea int

const (
	focusCards focusArea = iota
	focusHoldings
)

// Messages.
type searchDoneMsg struct {
	card dashboard.Card
	err  error
}

type tradeDoneMsg struct {
	trade domain.Trade
	err   error
}

type themeMsg struct {
	dark bool
	err  error
}

type marketNewsMsg struct {
	articles []domain.Article
	err      error
}

// streamMsg carries one update from the valuation stream started for
// generation gen. Updates from an older generation are dropped.
type streamMsg struct {
	gen    int
	update dashboard.Update
}

// valuationStream is the dashboard's running Watch call.
type valuationStream struct {
	gen    int
	ch     chan dashboard.Update
	cancel context.CancelFunc
}

// Model.
type model struct {
	ctx     context.Context
	ledger  *ledger.Ledger
	watcher *dashboard.Watcher
	panel   *dashboard.Panel
	news    news.Source
	theme   *dashboard.Theme
	logger  *slog.Logger

	view  viewID
	mode  inputMode
	focus focusArea
	dark  bool

	search   textinput.Model
	quantity textinput.Model

	// Dashboard.
	cards      []dashboard.Card
	selCard    int
	searching  bool
	portfolio  domain.Portfolio
	summary    dashboard.Summary
	selHolding int
	notice     string
	busy       bool

	gen    int
	stream *valuationStream

	// News.
	articles    []domain.Article
	newsErr     string
	newsLoading bool
	selArticle  int

	viewport      viewport.Model
	ready         bool
	width, height int
}

func initialModel(ctx context.Context, l *ledger.Ledger, w *dashboard.Watcher, p *dashboard.Panel, n news.Source, th *dashboard.Theme, dark bool, logger *slog.Logger) model {
	search := textinput.New()
	search.Placeholder = "symbol, e.g. AAPL"
	search.Prompt = "Search: "
	search.CharLimit = 16

	qty := textinput.New()
	qty.Placeholder = "shares"
	qty.Prompt = "Quantity: "
	qty.CharLimit = 9

	snap := l.Snapshot()
	return model{
		ctx:       ctx,
		ledger:    l,
		watcher:   w,
		panel:     p,
		news:      n,
		theme:     th,
		logger:    logger,
		dark:      dark,
		search:    search,
		quantity:  qty,
		portfolio: snap,
		summary:   w.Current(),
	}
}

func (m model) Init() tea.Cmd {
	return func() tea.Msg { return enterDashboardMsg{} }
}

type enterDashboardMsg struct{}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			m.stopValuation()
			return m, tea.Quit
		}
		switch m.mode {
		case modeSearch:
			return m.updateSearch(msg)
		case modeBuy:
			return m.updateBuy(msg)
		}
		if m.view == viewNews {
			return m.updateNewsKeys(msg)
		}
		if next, cmd, handled := m.updateDashboardKeys(msg); handled {
			return next, cmd
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		headerH := 2
		footerH := 2
		vpHeight := m.height - headerH - footerH
		if vpHeight < 1 {
			vpHeight = 1
		}
		if !m.ready {
			m.viewport = viewport.New(m.width, vpHeight)
			m.viewport.MouseWheelEnabled = true
			m.ready = true
		} else {
			m.viewport.Width = m.width
			m.viewport.Height = vpHeight
		}
		m.refresh()
		return m, nil

	case enterDashboardMsg:
		cmd = m.enterDashboard()
		return m, cmd

	case streamMsg:
		if msg.gen != m.gen || m.stream == nil {
			return m, nil
		}
		m.applyUpdate(msg.update)
		m.refresh()
		return m, waitStream(m.stream)

	case searchDoneMsg:
		m.searching = false
		if msg.err != nil {
			m.notice = dashboard.UserMessage(msg.err)
		} else {
			m.cards = m.panel.Cards()
			m.selCard = 0
			m.notice = ""
		}
		m.refresh()
		return m, nil

	case tradeDoneMsg:
		m.busy = false
		if msg.err != nil {
			m.notice = dashboard.UserMessage(msg.err)
			m.logger.Warn("trade rejected", "error", msg.err)
		} else {
			t := msg.trade
			verb := "Bought"
			if t.Side == domain.TradeSideSell {
				verb = "Sold"
			}
			m.notice = fmt.Sprintf("%s %s of %s for %s.", verb,
				dashboard.FormatShares(t.Quantity), t.Symbol, dashboard.FormatUSD(t.Total))
		}
		m.portfolio = m.ledger.Snapshot()
		m.clampHolding()
		m.refresh()
		return m, nil

	case themeMsg:
		if msg.err != nil {
			m.logger.Warn("saving theme", "error", msg.err)
		}
		m.dark = msg.dark
		m.refresh()
		return m, nil

	case marketNewsMsg:
		m.newsLoading = false
		m.articles = msg.articles
		m.newsErr = ""
		if msg.err != nil {
			m.newsErr = dashboard.MarketNewsMessage(msg.err)
			m.logger.Warn("market news fetch failed", "error", msg.err)
		}
		m.selArticle = 0
		m.refresh()
		if m.ready {
			m.viewport.GotoTop()
		}
		return m, nil
	}

	if m.ready {
		m.viewport, cmd = m.viewport.Update(msg)
	}
	return m, cmd
}

// ---------------------------------------------------------------------------
// Key handling
// ---------------------------------------------------------------------------

func (m model) updateDashboardKeys(msg tea.KeyMsg) (model, tea.Cmd, bool) {
	switch msg.String() {
	case "q":
		m.stopValuation()
		return m, tea.Quit, true
	case "/", "s":
		m.mode = modeSearch
		m.search.SetValue("")
		cmd := m.search.Focus()
		return m, cmd, true
	case "tab":
		if m.focus == focusCards {
			m.focus = focusHoldings
		} else {
			m.focus = focusCards
		}
		m.refresh()
		return m, nil, true
	case "up", "k":
		m.moveSelection(-1)
		m.refresh()
		return m, nil, true
	case "down", "j":
		m.moveSelection(1)
		m.refresh()
		return m, nil, true
	case "b":
		if m.busy || m.selCard >= len(m.cards) {
			return m, nil, true
		}
		m.mode = modeBuy
		m.quantity.SetValue("")
		cmd := m.quantity.Focus()
		return m, cmd, true
	case "1", "2", "3", "4", "5", "6":
		i, _ := strconv.Atoi(msg.String())
		if m.busy || m.selHolding >= len(m.portfolio.Holdings) {
			return m, nil, true
		}
		m.busy = true
		sym := m.portfolio.Holdings[m.selHolding].Symbol
		return m, m.sellCmd(sym, dashboard.SellAmounts[i-1]), true
	case "r":
		if m.selCard < len(m.cards) && !m.searching {
			m.searching = true
			return m, m.searchCmd(m.cards[m.selCard].Symbol), true
		}
		return m, nil, true
	case "n":
		cmd := m.enterNews()
		return m, cmd, true
	case "t":
		return m, m.toggleThemeCmd(), true
	}
	return m, nil, false
}

func (m model) updateSearch(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.mode = modeNormal
		m.search.Blur()
		return m, nil
	case "enter":
		m.mode = modeNormal
		m.search.Blur()
		query := m.search.Value()
		if _, err := dashboard.NormalizeSymbol(query); err != nil {
			// An empty query is ignored.
			if query != "" {
				m.notice = dashboard.UserMessage(err)
				m.refresh()
			}
			return m, nil
		}
		m.searching = true
		m.notice = ""
		m.refresh()
		return m, m.searchCmd(query)
	}
	var cmd tea.Cmd
	m.search, cmd = m.search.Update(msg)
	return m, cmd
}

func (m model) updateBuy(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.mode = modeNormal
		m.quantity.Blur()
		return m, nil
	case "enter":
		m.mode = modeNormal
		m.quantity.Blur()
		qty, err := strconv.ParseInt(m.quantity.Value(), 10, 64)
		if err != nil || qty <= 0 {
			m.notice = dashboard.UserMessage(fmt.Errorf("%w: quantity", domain.ErrInvalidOrder))
			m.refresh()
			return m, nil
		}
		card := m.cards[m.selCard]
		m.busy = true
		return m, m.buyCmd(card.Symbol, card.Quote.Price, qty)
	}
	var cmd tea.Cmd
	m.quantity, cmd = m.quantity.Update(msg)
	return m, cmd
}

func (m model) updateNewsKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q":
		return m, tea.Quit
	case "esc", "backspace", "d":
		cmd := m.enterDashboard()
		return m, cmd
	case "up", "k":
		if m.selArticle > 0 {
			m.selArticle--
			m.refresh()
		}
		return m, nil
	case "down", "j":
		if m.selArticle < len(m.articles)-1 {
			m.selArticle++
			m.refresh()
		}
		return m, nil
	case "y":
		if m.selArticle < len(m.articles) {
			url := m.articles[m.selArticle].URL
			if err := clipboard.WriteAll(url); err != nil {
				m.logger.Warn("copying url", "error", err)
				m.notice = "Could not copy link."
			} else {
				m.notice = "Link copied."
			}
			m.refresh()
		}
		return m, nil
	case "t":
		return m, m.toggleThemeCmd()
	}
	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

func (m *model) moveSelection(delta int) {
	if m.focus == focusCards {
		m.selCard = clamp(m.selCard+delta, len(m.cards))
		return
	}
	m.selHolding = clamp(m.selHolding+delta, len(m.portfolio.Holdings))
}

func (m *model) clampHolding() {
	m.selHolding = clamp(m.selHolding, len(m.portfolio.Holdings))
}

func clamp(i, n int) int {
	if i >= n {
		i = n - 1
	}
	if i < 0 {
		i = 0
	}
	return i
}

// ---------------------------------------------------------------------------
// View lifecycle
// ---------------------------------------------------------------------------

// enterDashboard switches to the dashboard and starts its valuation stream.
func (m *model) enterDashboard() tea.Cmd {
	m.view = viewDashboard
	m.notice = ""
	m.portfolio = m.ledger.Snapshot()
	m.summary = m.watcher.Current()
	m.clampHolding()
	m.refresh()
	if m.ready {
		m.viewport.GotoTop()
	}
	return m.startValuation()
}

// enterNews stops the valuation stream and loads market news.
func (m *model) enterNews() tea.Cmd {
	m.stopValuation()
	m.view = viewNews
	m.notice = ""
	m.newsLoading = true
	m.refresh()

	ctx, src := m.ctx, m.news
	return func() tea.Msg {
		articles, err := src.MarketNews(ctx)
		return marketNewsMsg{articles: articles, err: err}
	}
}

// startValuation runs watcher.Watch for a new generation. The stream ends
// when stopValuation cancels it.
func (m *model) startValuation() tea.Cmd {
	m.stopValuation()
	m.gen++

	ctx, cancel := context.WithCancel(m.ctx)
	s := &valuationStream{gen: m.gen, ch: make(chan dashboard.Update, 1), cancel: cancel}
	m.stream = s

	w, logger := m.watcher, m.logger
	go func() {
		defer close(s.ch)
		err := w.Watch(ctx, func(u dashboard.Update) error {
			select {
			case s.ch <- u:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		})
		if err != nil && ctx.Err() == nil {
			logger.Error("valuation stream", "error", err)
		}
	}()
	m.logger.Info("valuation started", "gen", s.gen)
	return waitStream(s)
}

func (m *model) stopValuation() {
	if m.stream == nil {
		return
	}
	m.stream.cancel()
	m.logger.Info("valuation stopped", "gen", m.stream.gen)
	m.stream = nil
	m.gen++
}

func waitStream(s *valuationStream) tea.Cmd {
	return func() tea.Msg {
		u, ok := <-s.ch
		if !ok {
			return nil
		}
		return streamMsg{gen: s.gen, update: u}
	}
}

// applyUpdate folds a stream update into the dashboard state.
func (m *model) applyUpdate(u dashboard.Update) {
	switch u.Type {
	case dashboard.UpdateValuation:
		if u.Summary != nil {
			m.summary = *u.Summary
		}
	case dashboard.UpdateLedger:
		if u.Event != nil {
			m.portfolio = u.Event.Portfolio
			m.summary.Cash = m.portfolio.CashBalance
			m.summary.Total = m.summary.Cash.Add(m.summary.PortfolioValue)
			m.clampHolding()
		}
	}
}

// ---------------------------------------------------------------------------
// Commands
// ---------------------------------------------------------------------------

func (m model) searchCmd(query string) tea.Cmd {
	ctx, p := m.ctx, m.panel
	return func() tea.Msg {
		card, err := p.Search(ctx, query)
		return searchDoneMsg{card: card, err: err}
	}
}

func (m model) buyCmd(symbol string, price decimal.NullDecimal, qty int64) tea.Cmd {
	ctx, l := m.ctx, m.ledger
	return func() tea.Msg {
		t, err := l.Buy(ctx, symbol, price, qty)
		return tradeDoneMsg{trade: t, err: err}
	}
}

func (m model) sellCmd(symbol string, qty int64) tea.Cmd {
	ctx, l := m.ctx, m.ledger
	return func() tea.Msg {
		t, err := l.Sell(ctx, symbol, qty)
		return tradeDoneMsg{trade: t, err: err}
	}
}

func (m model) toggleThemeCmd() tea.Cmd {
	ctx, th := m.ctx, m.theme
	return func() tea.Msg {
		dark, err := th.Toggle(ctx)
		return themeMsg{dark: dark, err: err}
	}
}
