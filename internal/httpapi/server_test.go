package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/shopspring/decimal"

	"papertrade/internal/dashboard"
	"papertrade/internal/domain"
	"papertrade/internal/ledger"
	"papertrade/internal/store"
	"papertrade/internal/valuation"
)

type fakeQuotes map[string]string

func (f fakeQuotes) Quote(_ context.Context, symbol string) (domain.Quote, error) {
	p, ok := f[symbol]
	if !ok {
		return domain.Quote{}, fmt.Errorf("%w: 500 Internal Server Error", domain.ErrFetchFailed)
	}
	return domain.Quote{
		Symbol:        symbol,
		Price:         decimal.NewNullDecimal(decimal.RequireFromString(p)),
		ChangePercent: decimal.NewNullDecimal(decimal.RequireFromString("1.25")),
	}, nil
}

type fakeHistory struct{}

func (fakeHistory) History(_ context.Context, symbol string) ([]domain.ClosePoint, error) {
	return []domain.ClosePoint{
		{Date: "2024-03-04", Close: decimal.NewFromInt(100)},
		{Date: "2024-03-05", Close: decimal.NewFromInt(110)},
	}, nil
}

type fakeNews struct{}

func (fakeNews) CompanyNews(_ context.Context, symbol string) ([]domain.Article, error) {
	return []domain.Article{{Headline: symbol + " beats estimates", URL: "https://example.com/a"}}, nil
}

func (fakeNews) MarketNews(context.Context) ([]domain.Article, error) {
	return []domain.Article{{Headline: "Stocks rally", URL: "https://example.com/m", Source: "Wire"}}, nil
}

type testEnv struct {
	srv     *Server
	http    *httptest.Server
	mem     *store.MemoryStore
	archive *store.ParquetArchive
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	quotes := fakeQuotes{"AAPL": "150", "MSFT": "400"}
	mem := store.NewMemoryStore()

	l, err := ledger.Open(context.Background(), mem, quotes, ledger.Options{Journal: mem, Log: log})
	if err != nil {
		t.Fatalf("ledger.Open: %v", err)
	}
	archive := store.NewParquetArchive(t.TempDir())
	srv := New(Deps{
		Ledger:  l,
		Watcher: dashboard.NewWatcher(l, valuation.New(l, quotes, time.Hour, log)),
		Quotes:  quotes,
		History: fakeHistory{},
		News:    fakeNews{},
		Panel:   dashboard.NewPanel(quotes, fakeHistory{}, fakeNews{}, log),
		Theme:   dashboard.NewTheme(mem),
		Journal: mem,
		Archive: archive,
		Log:     log,
	})
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return &testEnv{srv: srv, http: ts, mem: mem, archive: archive}
}

func (e *testEnv) do(t *testing.T, method, path string, body any, out any) int {
	t.Helper()
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatal(err)
		}
		rd = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, e.http.URL+path, rd)
	if err != nil {
		t.Fatal(err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("%s %s: decoding: %v", method, path, err)
		}
	}
	return resp.StatusCode
}

func TestStatusFor(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{dashboard.ErrInvalidSymbol, http.StatusBadRequest},
		{fmt.Errorf("%w: quantity", domain.ErrInvalidOrder), http.StatusBadRequest},
		{fmt.Errorf("%w: TSLA", domain.ErrNoSuchHolding), http.StatusNotFound},
		{domain.ErrNoData, http.StatusNotFound},
		{&domain.InsufficientFundsError{}, http.StatusConflict},
		{&domain.InsufficientSharesError{Held: 2, Requested: 3}, http.StatusConflict},
		{fmt.Errorf("%w: %w", domain.ErrPriceUnavailable, domain.ErrFetchFailed), http.StatusBadGateway},
		{io.ErrUnexpectedEOF, http.StatusInternalServerError},
	}
	for _, tc := range cases {
		if got := StatusFor(tc.err); got != tc.want {
			t.Errorf("StatusFor(%v) = %d, want %d", tc.err, got, tc.want)
		}
	}
}

func TestBuildChart(t *testing.T) {
	c := BuildChart([]domain.ClosePoint{
		{Date: "2024-01-01", Close: decimal.NewFromInt(10)},
		{Date: "2024-01-02", Close: decimal.NewFromInt(20)},
		{Date: "2024-01-03", Close: decimal.NewFromInt(15)},
	}, 120, 60)
	if want := "8.0,52.0 60.0,8.0 112.0,30.0"; c.Points != want {
		t.Errorf("Points = %q, want %q", c.Points, want)
	}
	if c.Min != "10.00" || c.Max != "20.00" || len(c.Labels) != 3 {
		t.Errorf("chart = %+v", c)
	}

	flat := BuildChart([]domain.ClosePoint{{Date: "2024-01-01", Close: decimal.NewFromInt(5)}}, 100, 50)
	if flat.Points != "50.0,25.0" {
		t.Errorf("single point = %q", flat.Points)
	}
	if !BuildChart(nil, 100, 50).Empty() {
		t.Error("empty series should be Empty")
	}
}

func TestMarketDataEndpoints(t *testing.T) {
	e := newTestEnv(t)

	var q domain.Quote
	if code := e.do(t, "GET", "/api/quote/aapl", nil, &q); code != http.StatusOK {
		t.Fatalf("quote status = %d", code)
	}
	if q.Symbol != "AAPL" || !q.Price.Decimal.Equal(decimal.NewFromInt(150)) {
		t.Errorf("quote = %+v", q)
	}

	var errResp ErrorResponse
	if code := e.do(t, "GET", "/api/quote/ZZZZ", nil, &errResp); code != http.StatusBadGateway {
		t.Errorf("failed quote status = %d, want 502", code)
	}
	if strings.Contains(errResp.Error, "token") {
		t.Errorf("error leaks credentials: %q", errResp.Error)
	}
	if code := e.do(t, "GET", "/api/quote/A%20B", nil, nil); code != http.StatusBadRequest {
		t.Errorf("invalid symbol status = %d, want 400", code)
	}

	var hist HistoryResponse
	if code := e.do(t, "GET", "/api/history/aapl", nil, &hist); code != http.StatusOK || len(hist.Points) != 2 {
		t.Errorf("history = %d %+v", code, hist)
	}
	var news NewsResponse
	if code := e.do(t, "GET", "/api/news/msft", nil, &news); code != http.StatusOK || news.Symbol != "MSFT" || len(news.Articles) != 1 {
		t.Errorf("company news = %d %+v", code, news)
	}
	if code := e.do(t, "GET", "/api/news", nil, &news); code != http.StatusOK || news.Articles[0].Headline != "Stocks rally" {
		t.Errorf("market news = %d %+v", code, news)
	}
}

func TestBuySellFlow(t *testing.T) {
	e := newTestEnv(t)

	var tr TradeResponse
	code := e.do(t, "POST", "/api/buy", map[string]any{"symbol": "aapl", "price": "150", "quantity": 10}, &tr)
	if code != http.StatusOK {
		t.Fatalf("buy status = %d", code)
	}
	if !tr.Portfolio.CashBalance.Equal(decimal.NewFromInt(8500)) {
		t.Errorf("cash after buy = %s, want 8500", tr.Portfolio.CashBalance)
	}
	if h, ok := tr.Portfolio.Holding("AAPL"); !ok || h.Quantity != 10 {
		t.Errorf("holding after buy = %+v, %v", h, ok)
	}

	cases := []struct {
		path string
		body any
		want int
	}{
		{"/api/buy", map[string]any{"symbol": "MSFT", "price": "400", "quantity": 100}, http.StatusConflict},
		{"/api/buy", map[string]any{"symbol": "MSFT", "quantity": 1}, http.StatusBadRequest},
		{"/api/sell", SellRequest{Symbol: "AAPL", Quantity: 20}, http.StatusConflict},
		{"/api/sell", SellRequest{Symbol: "TSLA", Quantity: 1}, http.StatusNotFound},
		{"/api/sell", SellRequest{Symbol: "AAPL", Quantity: 0}, http.StatusBadRequest},
	}
	for _, tc := range cases {
		if got := e.do(t, "POST", tc.path, tc.body, nil); got != tc.want {
			t.Errorf("POST %s %+v = %d, want %d", tc.path, tc.body, got, tc.want)
		}
	}

	req, _ := http.NewRequest("POST", e.http.URL+"/api/buy", strings.NewReader("{"))
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("malformed body status = %d, want 400", resp.StatusCode)
	}

	if code := e.do(t, "POST", "/api/sell", SellRequest{Symbol: "AAPL", Quantity: 10}, &tr); code != http.StatusOK {
		t.Fatalf("sell status = %d", code)
	}
	if !tr.Portfolio.CashBalance.Equal(decimal.NewFromInt(10000)) || len(tr.Portfolio.Holdings) != 0 {
		t.Errorf("portfolio after sell = %+v", tr.Portfolio)
	}

	var trades TradesResponse
	if code := e.do(t, "GET", "/api/trades?limit=1", nil, &trades); code != http.StatusOK {
		t.Fatalf("trades status = %d", code)
	}
	if len(trades.Trades) != 1 || trades.Trades[0].Side != domain.TradeSideSell {
		t.Errorf("trades = %+v, want the sell only", trades.Trades)
	}
	if code := e.do(t, "GET", "/api/trades?limit=x", nil, nil); code != http.StatusBadRequest {
		t.Errorf("bad limit status = %d", code)
	}
}

func TestSellPriceUnavailable(t *testing.T) {
	e := newTestEnv(t)
	if code := e.do(t, "POST", "/api/buy", BuyRequest{Symbol: "IBM", Price: decimal.NewNullDecimal(decimal.NewFromInt(10)), Quantity: 1}, nil); code != http.StatusOK {
		t.Fatalf("buy status = %d", code)
	}
	var errResp ErrorResponse
	if code := e.do(t, "POST", "/api/sell", SellRequest{Symbol: "IBM", Quantity: 1}, &errResp); code != http.StatusBadGateway {
		t.Errorf("sell status = %d, want 502", code)
	}
	var p domain.Portfolio
	e.do(t, "GET", "/api/portfolio", nil, &p)
	if h, ok := p.Holding("IBM"); !ok || h.Quantity != 1 {
		t.Errorf("holding changed after failed sell: %+v", p)
	}
}

func TestResetAndValuation(t *testing.T) {
	e := newTestEnv(t)
	e.do(t, "POST", "/api/buy", BuyRequest{Symbol: "MSFT", Price: decimal.NewNullDecimal(decimal.NewFromInt(390)), Quantity: 2}, nil)

	var sum dashboard.Summary
	if code := e.do(t, "GET", "/api/valuation", nil, &sum); code != http.StatusOK {
		t.Fatalf("valuation status = %d", code)
	}
	if !sum.PortfolioValue.Equal(decimal.NewFromInt(800)) || !sum.Total.Equal(decimal.NewFromInt(10020)) {
		t.Errorf("summary = %+v, want value 800 total 10020", sum)
	}

	var p domain.Portfolio
	if code := e.do(t, "POST", "/api/reset", nil, &p); code != http.StatusOK {
		t.Fatalf("reset status = %d", code)
	}
	if !p.CashBalance.Equal(decimal.NewFromInt(10000)) || len(p.Holdings) != 0 {
		t.Errorf("portfolio after reset = %+v", p)
	}
	e.do(t, "GET", "/api/valuation", nil, &sum)
	if !sum.PortfolioValue.IsZero() {
		t.Errorf("value after reset = %s, want 0", sum.PortfolioValue)
	}
}

func TestValuationsEndpoint(t *testing.T) {
	e := newTestEnv(t)
	at := time.Date(2024, 5, 6, 14, 30, 0, 0, time.UTC)
	err := e.archive.WriteValuations(context.Background(), []domain.Valuation{
		{Value: decimal.RequireFromString("1234.5"), Symbols: 2, At: at},
	})
	if err != nil {
		t.Fatalf("WriteValuations: %v", err)
	}

	var resp ValuationsResponse
	if code := e.do(t, "GET", "/api/valuations?date=2024-05-06", nil, &resp); code != http.StatusOK {
		t.Fatalf("valuations status = %d", code)
	}
	if len(resp.Valuations) != 1 || !resp.Valuations[0].Value.Equal(decimal.RequireFromString("1234.5")) {
		t.Errorf("valuations = %+v", resp.Valuations)
	}
	if code := e.do(t, "GET", "/api/valuations?date=2024-05-07", nil, &resp); code != http.StatusOK || len(resp.Valuations) != 0 {
		t.Errorf("empty day = %d %+v", code, resp)
	}
	if code := e.do(t, "GET", "/api/valuations?date=May", nil, nil); code != http.StatusBadRequest {
		t.Errorf("bad date status = %d", code)
	}
}

func TestSettings(t *testing.T) {
	e := newTestEnv(t)
	var s Settings
	if e.do(t, "GET", "/api/settings", nil, &s); s.DarkMode {
		t.Error("dark mode on by default")
	}
	if code := e.do(t, "PUT", "/api/settings", Settings{DarkMode: true}, &s); code != http.StatusOK {
		t.Fatalf("put settings status = %d", code)
	}
	if v, _, _ := e.mem.Get(context.Background(), store.KeyDarkMode); v != "true" {
		t.Errorf("persisted darkMode = %q", v)
	}
	e.do(t, "GET", "/api/settings", nil, &s)
	if !s.DarkMode {
		t.Error("dark mode not persisted")
	}
}

func newBrowser(t *testing.T) *http.Client {
	jar, err := cookiejar.New(nil)
	if err != nil {
		t.Fatal(err)
	}
	return &http.Client{Jar: jar}
}

func getPage(t *testing.T, c *http.Client, u string) string {
	t.Helper()
	resp, err := c.Get(u)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	b, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("GET %s = %d", u, resp.StatusCode)
	}
	return string(b)
}

func postForm(t *testing.T, c *http.Client, u string, v url.Values) string {
	t.Helper()
	resp, err := c.PostForm(u, v)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	b, _ := io.ReadAll(resp.Body)
	return string(b)
}

func TestDashboardPages(t *testing.T) {
	e := newTestEnv(t)
	b := newBrowser(t)

	page := getPage(t, b, e.http.URL+"/")
	if !strings.Contains(page, "$10,000.00") {
		t.Error("dashboard missing starting balance")
	}

	page = postForm(t, b, e.http.URL+"/search", url.Values{"symbol": {" aapl "}})
	for _, want := range []string{"AAPL", "$150.00", "&#43;1.25%", "AAPL beats estimates", "<polyline"} {
		if !strings.Contains(page, want) {
			t.Errorf("dashboard after search missing %q", want)
		}
	}

	page = postForm(t, b, e.http.URL+"/buy", url.Values{"symbol": {"AAPL"}, "quantity": {"10"}})
	if !strings.Contains(page, "Bought 10 shares of AAPL for $1,500.00.") || !strings.Contains(page, "$8,500.00") {
		t.Error("buy notice or balance missing")
	}

	page = postForm(t, b, e.http.URL+"/buy", url.Values{"symbol": {"AAPL"}, "quantity": {"100"}})
	if !strings.Contains(page, "Not enough balance!") {
		t.Error("insufficient funds notice missing")
	}
	if page = getPage(t, b, e.http.URL+"/"); strings.Contains(page, "Not enough balance!") {
		t.Error("notice shown twice")
	}

	page = postForm(t, b, e.http.URL+"/sell", url.Values{"symbol": {"AAPL"}, "quantity": {"50"}})
	if !strings.Contains(page, "You only have 10 shares!") {
		t.Error("insufficient shares notice missing")
	}
	page = postForm(t, b, e.http.URL+"/sell", url.Values{"symbol": {"TSLA"}, "quantity": {"1"}})
	if !strings.Contains(page, "You don&#39;t own this stock!") {
		t.Error("no such holding notice missing")
	}

	page = postForm(t, b, e.http.URL+"/theme", url.Values{"back": {"/news"}})
	if !strings.Contains(page, `class="dark"`) || !strings.Contains(page, "Stocks rally") {
		t.Error("news page not dark after toggle")
	}
}

func TestWebSocketPushesValuation(t *testing.T) {
	e := newTestEnv(t)
	e.do(t, "POST", "/api/buy", BuyRequest{Symbol: "AAPL", Price: decimal.NewNullDecimal(decimal.NewFromInt(140)), Quantity: 10}, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	c, _, err := websocket.Dial(ctx, "ws"+strings.TrimPrefix(e.http.URL, "http")+"/ws", nil)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer c.CloseNow()

	var msg StreamMessage
	if err := wsjson.Read(ctx, c, &msg); err != nil {
		t.Fatalf("Read: %v", err)
	}
	if msg.Type != dashboard.UpdateValuation || msg.Summary == nil {
		t.Fatalf("first message = %+v, want valuation", msg)
	}
	if !msg.Summary.PortfolioValue.Equal(decimal.NewFromInt(1500)) || !msg.Summary.Total.Equal(decimal.NewFromInt(10100)) {
		t.Errorf("summary = %+v, want value 1500 total 10100", msg.Summary)
	}

	e.do(t, "POST", "/api/sell", SellRequest{Symbol: "AAPL", Quantity: 10}, nil)
	if err := wsjson.Read(ctx, c, &msg); err != nil {
		t.Fatalf("Read: %v", err)
	}
	if msg.Type != dashboard.UpdateLedger || msg.Event == nil || msg.Event.Type != ledger.EventSell {
		t.Errorf("second message = %+v, want sell event", msg)
	}
	if err := wsjson.Read(ctx, c, &msg); err != nil {
		t.Fatalf("Read: %v", err)
	}
	if msg.Type != dashboard.UpdateValuation || !msg.Summary.PortfolioValue.IsZero() {
		t.Errorf("third message = %+v, want zero valuation", msg)
	}
	c.Close(websocket.StatusNormalClosure, "")
}
