package live

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"google.golang.org/grpc"
	"google.golang.org/grpc/test/bufconn"

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
		return domain.Quote{}, fmt.Errorf("%w: %s", domain.ErrFetchFailed, symbol)
	}
	return domain.Quote{Symbol: symbol, Price: decimal.NewNullDecimal(decimal.RequireFromString(p))}, nil
}

func startServer(t *testing.T) (*ledger.Ledger, *Client) {
	t.Helper()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	quotes := fakeQuotes{"AAPL": "150", "MSFT": "400"}
	l, err := ledger.Open(context.Background(), store.NewMemoryStore(), quotes, ledger.Options{Log: log})
	if err != nil {
		t.Fatal(err)
	}

	lis := bufconn.Listen(1 << 20)
	gs := grpc.NewServer()
	NewServer(l, dashboard.NewWatcher(l, valuation.New(l, quotes, time.Hour, log)), log).RegisterGRPC(gs)
	go gs.Serve(lis)
	t.Cleanup(gs.Stop)

	c, err := Dial("passthrough:///bufnet", log, grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
		return lis.DialContext(ctx)
	}))
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	t.Cleanup(func() { c.Close() })
	return l, c
}

func TestGetPortfolio(t *testing.T) {
	l, c := startServer(t)
	ctx := context.Background()
	if _, err := l.Buy(ctx, "AAPL", decimal.NewNullDecimal(decimal.RequireFromString("150.25")), 4); err != nil {
		t.Fatal(err)
	}

	p, err := c.Portfolio(ctx)
	if err != nil {
		t.Fatalf("Portfolio: %v", err)
	}
	if want := decimal.RequireFromString("9399"); !p.CashBalance.Equal(want) {
		t.Errorf("CashBalance = %s, want %s", p.CashBalance, want)
	}
	h, ok := p.Holding("AAPL")
	if !ok || h.Quantity != 4 || !h.PurchasePrice.Equal(decimal.RequireFromString("150.25")) {
		t.Errorf("holding = %+v, %v", h, ok)
	}
}

func TestWatchValuation(t *testing.T) {
	l, c := startServer(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, err := l.Buy(ctx, "MSFT", decimal.NewNullDecimal(decimal.NewFromInt(380)), 2); err != nil {
		t.Fatal(err)
	}

	updates := make(chan dashboard.Update, 8)
	done := make(chan error, 1)
	go func() {
		done <- c.Watch(ctx, func(u dashboard.Update) { updates <- u })
	}()

	u := <-updates
	if u.Type != dashboard.UpdateValuation || u.Summary == nil {
		t.Fatalf("first update = %+v", u)
	}
	if !u.Summary.PortfolioValue.Equal(decimal.NewFromInt(800)) || !u.Summary.Total.Equal(decimal.NewFromInt(10040)) {
		t.Errorf("summary = %+v, want value 800 total 10040", u.Summary)
	}

	if _, err := l.Sell(ctx, "MSFT", 1); err != nil {
		t.Fatal(err)
	}
	u = <-updates
	if u.Type != dashboard.UpdateLedger || u.Event == nil || u.Event.Type != ledger.EventSell {
		t.Errorf("second update = %+v, want sell event", u)
	}
	u = <-updates
	if u.Type != dashboard.UpdateValuation || !u.Summary.PortfolioValue.Equal(decimal.NewFromInt(400)) {
		t.Errorf("third update = %+v, want revaluation at 400", u)
	}

	cancel()
	if err := <-done; err != nil {
		t.Errorf("Watch() = %v, want nil after cancel", err)
	}
}
