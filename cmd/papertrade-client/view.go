package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"

	"papertrade/internal/dashboard"
	"papertrade/internal/domain"
)

// Styles.
var (
	titleStyle       = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("0")).Background(lipgloss.Color("6"))
	symbolStyle      = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	gainStyle        = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	lossStyle        = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	colHeaderStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	dimStyle         = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	noticeStyle      = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("11"))
	sectionStyle     = lipgloss.NewStyle().Bold(true).Underline(true)
	highlightBG      = lipgloss.Color("236") // dark grey
	lightHighlightBG = lipgloss.Color("254")
)

// hl returns s with the selection background for the current theme.
func (m model) hl(s lipgloss.Style, on bool) lipgloss.Style {
	if !on {
		return s
	}
	if m.dark {
		return s.Background(highlightBG)
	}
	return s.Background(lightHighlightBG)
}

func changeStyle(q domain.Quote) lipgloss.Style {
	if !q.ChangePercent.Valid {
		return dimStyle
	}
	if dashboard.ChangeClass(q.ChangePercent) == "down" {
		return lossStyle
	}
	return gainStyle
}

// refresh re-renders the viewport content for the current view.
func (m *model) refresh() {
	if !m.ready {
		return
	}
	if m.view == viewNews {
		m.viewport.SetContent(m.renderNews())
		return
	}
	m.viewport.SetContent(m.renderDashboard())
}

func (m model) View() string {
	if !m.ready {
		return "loading..."
	}

	var b strings.Builder
	title := " Paper Trading "
	if m.view == viewNews {
		title = " Market News "
	}
	theme := "light"
	if m.dark {
		theme = "dark"
	}
	b.WriteString(titleStyle.Render(title))
	b.WriteString(dimStyle.Render(fmt.Sprintf("  theme: %s", theme)))
	b.WriteString("\n")

	switch {
	case m.mode == modeSearch:
		b.WriteString(m.search.View())
	case m.mode == modeBuy && m.selCard < len(m.cards):
		b.WriteString(fmt.Sprintf("Buy %s at %s  ", m.cards[m.selCard].Symbol, dashboard.FormatPrice(m.cards[m.selCard].Quote.Price)))
		b.WriteString(m.quantity.View())
	case m.notice != "":
		b.WriteString(noticeStyle.Render(m.notice))
	}
	b.WriteString("\n")

	b.WriteString(m.viewport.View())
	b.WriteString("\n\n")
	b.WriteString(dimStyle.Render(m.helpLine()))
	return b.String()
}

func (m model) helpLine() string {
	if m.view == viewNews {
		return "↑/↓ select · y copy link · t theme · esc dashboard · q quit"
	}
	return "/ search · tab cards/holdings · ↑/↓ select · b buy · 1-6 sell 1/5/10/20/50/100 · r refresh · n news · t theme · q quit"
}

// ---------------------------------------------------------------------------
// Dashboard
// ---------------------------------------------------------------------------

func (m model) renderDashboard() string {
	var b strings.Builder

	b.WriteString(sectionStyle.Render("Portfolio Summary"))
	b.WriteString("\n")
	fmt.Fprintf(&b, "  %-22s %14s\n", "Cash Balance", dashboard.FormatUSD(m.summary.Cash))
	fmt.Fprintf(&b, "  %-22s %14s\n", "Portfolio Value", dashboard.FormatUSD(m.summary.PortfolioValue))
	fmt.Fprintf(&b, "  %-22s %14s\n", "Total Account Value", dashboard.FormatUSD(m.summary.Total))
	for _, sym := range m.summary.Failed {
		b.WriteString(dimStyle.Render(fmt.Sprintf("  %s: price unavailable", sym)))
		b.WriteString("\n")
	}
	b.WriteString("\n")

	m.renderHoldings(&b)
	b.WriteString("\n")
	m.renderCards(&b)
	return b.String()
}

func (m model) renderHoldings(b *strings.Builder) {
	b.WriteString(sectionStyle.Render("Your Portfolio"))
	b.WriteString("\n")
	if len(m.portfolio.Holdings) == 0 {
		b.WriteString(dimStyle.Render("  You don't own any stocks yet."))
		b.WriteString("\n")
		return
	}
	b.WriteString(colHeaderStyle.Render(fmt.Sprintf("  %-8s %10s %14s %14s", "Symbol", "Shares", "Purchase", "Total")))
	b.WriteString("\n")
	for i, h := range m.portfolio.Holdings {
		sel := m.focus == focusHoldings && i == m.selHolding
		line := fmt.Sprintf("  %-8s %10s %14s %14s", h.Symbol, dashboard.FormatInt(h.Quantity),
			dashboard.FormatUSD(h.PurchasePrice), dashboard.FormatUSD(h.TotalValue))
		b.WriteString(m.hl(lipgloss.NewStyle(), sel).Render(line))
		b.WriteString("\n")
	}
}

func (m model) renderCards(b *strings.Builder) {
	b.WriteString(sectionStyle.Render("Searched Stocks"))
	b.WriteString("\n")
	if m.searching {
		b.WriteString(dimStyle.Render("  searching..."))
		b.WriteString("\n")
	}
	if len(m.cards) == 0 {
		b.WriteString(dimStyle.Render("  Press / to search for a stock."))
		b.WriteString("\n")
		return
	}
	for i, c := range m.cards {
		sel := m.focus == focusCards && i == m.selCard
		b.WriteString(m.hl(symbolStyle, sel).Render(fmt.Sprintf("  %-8s", c.Symbol)))
		b.WriteString(m.hl(changeStyle(c.Quote), sel).Render(fmt.Sprintf(" %12s %10s",
			dashboard.FormatPrice(c.Quote.Price), dashboard.FormatChange(c.Quote.ChangePercent))))
		b.WriteString("\n")

		if c.HistoryErr != "" {
			b.WriteString(dimStyle.Render("    " + c.HistoryErr))
		} else if len(c.History) > 0 {
			first, last := c.History[0], c.History[len(c.History)-1]
			fmt.Fprintf(b, "    %s  %s %s → %s %s", sparkline(c.History),
				first.Date, dashboard.FormatUSD(first.Close), last.Date, dashboard.FormatUSD(last.Close))
		}
		b.WriteString("\n")

		if c.NewsErr != "" {
			b.WriteString(dimStyle.Render("    " + c.NewsErr))
			b.WriteString("\n")
		}
		for j, a := range c.News {
			if j == newsPerCard {
				break
			}
			b.WriteString("    • " + a.Headline)
			b.WriteString("\n")
		}
		b.WriteString("\n")
	}
}

const newsPerCard = 3

// ---------------------------------------------------------------------------
// News
// ---------------------------------------------------------------------------

func (m model) renderNews() string {
	if m.newsLoading {
		return dimStyle.Render("Loading market news...")
	}
	if m.newsErr != "" {
		return lossStyle.Render(m.newsErr)
	}

	md := newsMarkdown(m.articles, m.selArticle)
	style := "light"
	if m.dark {
		style = "dark"
	}
	r, err := glamour.NewTermRenderer(
		glamour.WithStandardStyle(style),
		glamour.WithWordWrap(max(m.width-4, 20)),
	)
	if err != nil {
		m.logger.Warn("creating markdown renderer", "error", err)
		return md
	}
	out, err := r.Render(md)
	if err != nil {
		m.logger.Warn("rendering news", "error", err)
		return md
	}
	return out
}

// newsMarkdown lays out the articles as a markdown document, marking the
// selected one.
func newsMarkdown(articles []domain.Article, selected int) string {
	var b strings.Builder
	for i, a := range articles {
		marker := ""
		if i == selected {
			marker = "▶ "
		}
		fmt.Fprintf(&b, "## %s%s\n\n", marker, escapeMarkdown(a.Headline))
		if a.Summary != "" {
			fmt.Fprintf(&b, "%s\n\n", escapeMarkdown(a.Summary))
		}
		meta := a.Source
		if !a.PublishedAt.IsZero() {
			if meta != "" {
				meta += " · "
			}
			meta += a.PublishedAt.Local().Format("Jan 2, 15:04")
		}
		if meta != "" {
			fmt.Fprintf(&b, "*%s*\n\n", escapeMarkdown(meta))
		}
		if a.URL != "" {
			fmt.Fprintf(&b, "<%s>\n\n", a.URL)
		}
		b.WriteString("---\n\n")
	}
	return b.String()
}

var markdownEscaper = strings.NewReplacer(
	`\`, `\\`, "*", `\*`, "_", `\_`, "`", "\\`", "#", `\#`, "[", `\[`, "]", `\]`, "<", `\<`, ">", `\>`,
)

func escapeMarkdown(s string) string {
	return markdownEscaper.Replace(s)
}
