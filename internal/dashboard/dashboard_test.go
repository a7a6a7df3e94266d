package dashboard

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"papertrade/internal/domain"
	"papertrade/internal/ledger"
	"papertrade/internal/store"
	"papertrade/internal/valuation"
)

func TestFormatUSD(t *testing.T) {
	cases := map[string]string{
		"8500":      "$8,500.00",
		"0":         "$0.00",
		"1234567.5": "$1,234,567.50",
		"0.005":     "$0.01",
		"189.844":   "$189.84",
		"-42.1":     "-$42.10",
	}
	for in, want := range cases {
		if got := FormatUSD(decimal.RequireFromString(in)); got != want {
			t.Errorf("FormatUSD(%s) = %q, want %q", in, got, want)
		}
	}
}

func TestFormatPriceAndChange(t *testing.T) {
	if got := FormatPrice(decimal.NullDecimal{}); got != "N/A" {
		t.Errorf("FormatPrice(absent) = %q", got)
	}
	if got := FormatPrice(decimal.NewNullDecimal(decimal.RequireFromString("150.2"))); got != "$150.20" {
		t.Errorf("FormatPrice(150.2) = %q", got)
	}
	if got := FormatChange(decimal.NewNullDecimal(decimal.RequireFromString("0.6363"))); got != "+0.64%" {
		t.Errorf("FormatChange(0.6363) = %q", got)
	}
	neg := decimal.NewNullDecimal(decimal.RequireFromString("-1.5"))
	if got := FormatChange(neg); got != "-1.50%" {
		t.Errorf("FormatChange(-1.5) = %q", got)
	}
	if ChangeClass(neg) != "down" || ChangeClass(decimal.NullDecimal{}) != "up" {
		t.Error("ChangeClass mismatch")
	}
	if got := FormatChange(decimal.NullDecimal{}); got != "N/A" {
		t.Errorf("FormatChange(absent) = %q", got)
	}
}

func TestFormatInt(t *testing.T) {
	cases := map[int64]string{0: "0", 999: "999", 1000: "1,000", 1234567: "1,234,567", -12345: "-12,345"}
	for in, want := range cases {
		if got := FormatInt(in); got != want {
			t.Errorf("FormatInt(%d) = %q, want %q", in, got, want)
		}
	}
	if FormatShares(1) != "1 share" || FormatShares(1200) != "1,200 shares" {
		t.Error("FormatShares mismatch")
	}
}

func TestNormalizeSymbol(t *testing.T) {
	ok := map[string]string{
		"aapl":    "AAPL",
		"  msft ": "MSFT",
		"brk.b":   "BRK.B",
		"^gspc":   "^GSPC",
		"tsx:ry":  "TSX:RY",
	}
	for in, want := range ok {
		got, err := NormalizeSymbol(in)
		if err != nil || got != want {
			t.Errorf("NormalizeSymbol(%q) = %q, %v; want %q", in, got, err, want)
		}
	}
	if _, err := NormalizeSymbol("   "); !errors.Is(err, ErrEmptyQuery) {
		t.Errorf("NormalizeSymbol(blank) error = %v, want ErrEmptyQuery", err)
	}
	for _, bad := range []string{"AA PL", "AAPL&token=x", "<b>"} {
		if _, err := NormalizeSymbol(bad); !errors.Is(err, ErrInvalidSymbol) {
			t.Errorf("NormalizeSymbol(%q) error = %v, want ErrInvalidSymbol", bad, err)
		}
	}
}

type fakeQuotes map[string]string

func (f fakeQuotes) Quote(_ context.Context, symbol string) (domain.Quote, error) {
	p, ok := f[symbol]
	if !ok {
		return domain.Quote{}, fmt.Errorf("%w: 502 Bad Gateway", domain.ErrFetchFailed)
	}
	return domain.Quote{Symbol: symbol, Price: decimal.NewNullDecimal(decimal.RequireFromString(p))}, nil
}

type fakeHistory struct{ err error }

func (f fakeHistory) History(_ context.Context, symbol string) ([]domain.ClosePoint, error) {
	if f.err != nil {
		return nil, f.err
	}
	return []domain.ClosePoint{{Date: "2024-01-02", Close: decimal.NewFromInt(1)}}, nil
}

type fakeNews struct{ err error }

func (f fakeNews) CompanyNews(_ context.Context, symbol string) ([]domain.Article, error) {
	if f.err != nil {
		return nil, f.err
	}
	return []domain.Article{{Headline: symbol + " news"}}, nil
}

func (f fakeNews) MarketNews(context.Context) ([]domain.Article, error) { return nil, f.err }

func quietLog() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func TestPanelSearchOrdering(t *testing.T) {
	p := NewPanel(fakeQuotes{"AAPL": "150", "MSFT": "400", "TSLA": "200"}, fakeHistory{}, fakeNews{}, quietLog())
	ctx := context.Background()

	for _, q := range []string{"aapl", "msft", "tsla", "AAPL"} {
		if _, err := p.Search(ctx, q); err != nil {
			t.Fatalf("Search(%s): %v", q, err)
		}
	}
	cards := p.Cards()
	want := []string{"AAPL", "TSLA", "MSFT"}
	if len(cards) != len(want) {
		t.Fatalf("cards = %d, want %d", len(cards), len(want))
	}
	for i, sym := range want {
		if cards[i].Symbol != sym {
			t.Errorf("card %d = %s, want %s", i, cards[i].Symbol, sym)
		}
	}
	if len(cards[0].History) != 1 || len(cards[0].News) != 1 || cards[0].News[0].Headline != "AAPL news" {
		t.Errorf("card not loaded: %+v", cards[0])
	}
	if _, ok := p.Card("MSFT"); !ok {
		t.Error("Card(MSFT) not found")
	}
}

func TestPanelSearchFailures(t *testing.T) {
	p := NewPanel(fakeQuotes{"AAPL": "150"}, fakeHistory{}, fakeNews{}, quietLog())
	ctx := context.Background()
	if _, err := p.Search(ctx, "AAPL"); err != nil {
		t.Fatal(err)
	}

	if _, err := p.Search(ctx, ""); !errors.Is(err, ErrEmptyQuery) {
		t.Errorf("Search(empty) error = %v", err)
	}
	if _, err := p.Search(ctx, "NOPE"); !errors.Is(err, domain.ErrFetchFailed) {
		t.Errorf("Search(NOPE) error = %v, want ErrFetchFailed", err)
	}
	if cards := p.Cards(); len(cards) != 1 || cards[0].Symbol != "AAPL" {
		t.Errorf("cards changed after failed search: %+v", cards)
	}
}

func TestPanelCardErrors(t *testing.T) {
	p := NewPanel(fakeQuotes{"AAPL": "150"},
		fakeHistory{err: domain.ErrNoData},
		fakeNews{err: fmt.Errorf("%w: timeout", domain.ErrFetchFailed)}, quietLog())

	card, err := p.Search(context.Background(), "AAPL")
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if card.HistoryErr != "No historical data available." {
		t.Errorf("HistoryErr = %q", card.HistoryErr)
	}
	if card.NewsErr != "Failed to load news. Try again later." {
		t.Errorf("NewsErr = %q", card.NewsErr)
	}
}

func TestUserMessage(t *testing.T) {
	cases := []struct {
		err  error
		want string
	}{
		{&domain.InsufficientFundsError{}, "Not enough balance!"},
		{fmt.Errorf("%w: AAPL", domain.ErrNoSuchHolding), "You don't own this stock!"},
		{&domain.InsufficientSharesError{Symbol: "AAPL", Held: 4, Requested: 10}, "You only have 4 shares!"},
		{fmt.Errorf("%w: no current price", domain.ErrPriceUnavailable), "Failed to fetch latest stock price. Try again."},
		{fmt.Errorf("%w: %w", domain.ErrPriceUnavailable, domain.ErrFetchFailed), "Failed to get the latest stock price. Try again."},
		{nil, ""},
	}
	for _, tc := range cases {
		if got := UserMessage(tc.err); got != tc.want {
			t.Errorf("UserMessage(%v) = %q, want %q", tc.err, got, tc.want)
		}
	}
	if MarketNewsMessage(domain.ErrNoData) != "No market news available." {
		t.Error("MarketNewsMessage(NoData) mismatch")
	}
}

func TestSummarize(t *testing.T) {
	s := Summarize(decimal.NewFromInt(8500), domain.Valuation{Value: decimal.NewFromInt(1600)})
	if !s.Total.Equal(decimal.NewFromInt(10100)) {
		t.Errorf("Total = %s, want 10100", s.Total)
	}
	empty := Summarize(decimal.NewFromInt(10000), domain.Valuation{})
	if !empty.PortfolioValue.IsZero() || !empty.Total.Equal(decimal.NewFromInt(10000)) {
		t.Errorf("empty summary = %+v", empty)
	}
}

func TestTheme(t *testing.T) {
	kv := store.NewMemoryStore()
	theme := NewTheme(kv)
	ctx := context.Background()

	if dark, err := theme.Dark(ctx); err != nil || dark {
		t.Errorf("Dark() on fresh store = %v, %v; want false", dark, err)
	}
	dark, err := theme.Toggle(ctx)
	if err != nil || !dark {
		t.Fatalf("Toggle() = %v, %v; want true", dark, err)
	}
	if v, _, _ := kv.Get(ctx, store.KeyDarkMode); v != "true" {
		t.Errorf("persisted darkMode = %q, want \"true\"", v)
	}
	if dark, _ := theme.Toggle(ctx); dark {
		t.Error("second Toggle() = true, want false")
	}
	if v, _, _ := kv.Get(ctx, store.KeyDarkMode); v != "false" {
		t.Errorf("persisted darkMode = %q, want \"false\"", v)
	}
}

func TestWatcher(t *testing.T) {
	ctx := context.Background()
	quotes := fakeQuotes{"AAPL": "150"}
	l, err := ledger.Open(ctx, store.NewMemoryStore(), quotes, ledger.Options{Log: quietLog()})
	if err != nil {
		t.Fatal(err)
	}
	w := NewWatcher(l, valuation.New(l, quotes, time.Hour, quietLog()))

	if sum := w.Current(); !sum.Total.Equal(decimal.NewFromInt(10000)) || !sum.PortfolioValue.IsZero() {
		t.Errorf("Current() on empty ledger = %+v", sum)
	}
	if _, err := l.Buy(ctx, "AAPL", decimal.NewNullDecimal(decimal.NewFromInt(100)), 10); err != nil {
		t.Fatal(err)
	}
	if sum := w.Current(); !sum.PortfolioValue.IsZero() {
		t.Errorf("Current() before any valuation = %s, want 0", sum.PortfolioValue)
	}
	if sum := w.Value(ctx); !sum.PortfolioValue.Equal(decimal.NewFromInt(1500)) || !sum.Total.Equal(decimal.NewFromInt(10500)) {
		t.Errorf("Value() = %+v, want 1500 / 10500", sum)
	}
	if sum := w.Current(); !sum.PortfolioValue.Equal(decimal.NewFromInt(1500)) {
		t.Errorf("Current() after Value() = %s, want 1500", sum.PortfolioValue)
	}
}

func TestWatcherOnValuation(t *testing.T) {
	ctx := context.Background()
	quotes := fakeQuotes{"AAPL": "150"}
	l, err := ledger.Open(ctx, store.NewMemoryStore(), quotes, ledger.Options{Log: quietLog()})
	if err != nil {
		t.Fatal(err)
	}
	w := NewWatcher(l, valuation.New(l, quotes, time.Hour, quietLog()))

	var seen []domain.Valuation
	w.OnValuation(func(v domain.Valuation) { seen = append(seen, v) })

	w.Value(ctx)
	if len(seen) != 0 {
		t.Errorf("hook called %d times for an empty portfolio, want 0", len(seen))
	}

	if _, err := l.Buy(ctx, "AAPL", decimal.NewNullDecimal(decimal.NewFromInt(100)), 2); err != nil {
		t.Fatal(err)
	}
	w.Value(ctx)
	if len(seen) != 1 || !seen[0].Value.Equal(decimal.NewFromInt(300)) {
		t.Errorf("hook saw %+v, want one valuation of 300", seen)
	}
}

func TestWatcherStopsWithContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	quotes := fakeQuotes{"AAPL": "150"}
	l, err := ledger.Open(ctx, store.NewMemoryStore(), quotes, ledger.Options{Log: quietLog()})
	if err != nil {
		t.Fatal(err)
	}
	l.Buy(ctx, "AAPL", decimal.NewNullDecimal(decimal.NewFromInt(150)), 1)
	w := NewWatcher(l, valuation.New(l, quotes, time.Hour, quietLog()))

	got := make(chan Update, 4)
	done := make(chan error, 1)
	go func() {
		done <- w.Watch(ctx, func(u Update) error {
			got <- u
			return nil
		})
	}()

	select {
	case u := <-got:
		if u.Type != UpdateValuation || !u.Summary.PortfolioValue.Equal(decimal.NewFromInt(150)) {
			t.Errorf("first update = %+v", u)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("no valuation pushed")
	}
	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Watch() = %v, want nil", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Watch did not return after cancel")
	}
}
