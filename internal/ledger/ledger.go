// Package ledger implements the paper-trading portfolio: a cash balance and
// an ordered set of holdings, mutated by buy and sell orders, persisted to a
// key-value store after every change and published to subscribers.
package ledger

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"papertrade/internal/domain"
	"papertrade/internal/marketdata"
	"papertrade/internal/store"
)

// DefaultStartingBalance is the cash of a fresh ledger.
var DefaultStartingBalance = decimal.NewFromInt(10000)

// Event types.
const (
	EventBuy   = "buy"
	EventSell  = "sell"
	EventReset = "reset"
)

// Event is published after every committed mutation.
type Event struct {
	Type      string           `json:"type"`
	Trade     *domain.Trade    `json:"trade,omitempty"`
	Portfolio domain.Portfolio `json:"portfolio"`
}

// Options configures a Ledger.
type Options struct {
	// StartingBalance is used when nothing is persisted and after Reset.
	// Zero means DefaultStartingBalance.
	StartingBalance decimal.Decimal

	// Journal, if set, receives every executed trade. Journal failures are
	// logged and do not fail the trade.
	Journal store.TradeJournal

	Log *slog.Logger
}

// Ledger holds the cash balance and holdings. All mutations are serialised
// by mu; sells fetch their price outside the lock and re-validate before
// committing.
type Ledger struct {
	mu       sync.RWMutex
	cash     decimal.Decimal
	holdings []domain.Holding // insertion order

	kv       store.KV
	quotes   marketdata.QuoteSource
	journal  store.TradeJournal
	starting decimal.Decimal
	log      *slog.Logger
	now      func() time.Time

	subsMu    sync.Mutex
	nextSubID int
	subs      map[int]chan Event
}

// Open creates a Ledger, loading persisted state from kv. Missing state
// yields the starting balance and no holdings; unreadable state is logged
// and replaced by the same defaults.
func Open(ctx context.Context, kv store.KV, quotes marketdata.QuoteSource, opts Options) (*Ledger, error) {
	l := &Ledger{
		kv:       kv,
		quotes:   quotes,
		journal:  opts.Journal,
		starting: opts.StartingBalance,
		log:      opts.Log,
		now:      time.Now,
		subs:     make(map[int]chan Event),
	}
	if l.starting.IsZero() {
		l.starting = DefaultStartingBalance
	}
	if l.log == nil {
		l.log = slog.Default()
	}
	l.log = l.log.With("component", "ledger")

	if err := l.load(ctx); err != nil {
		return nil, err
	}
	return l, nil
}

// ---------------------------------------------------------------------------
// Reads
// ---------------------------------------------------------------------------

// Snapshot returns a copy of the cash balance and holdings.
func (l *Ledger) Snapshot() domain.Portfolio {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return domain.Portfolio{CashBalance: l.cash, Holdings: copyHoldings(l.holdings)}
}

// Holdings returns a copy of the holdings in insertion order.
func (l *Ledger) Holdings() []domain.Holding {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return copyHoldings(l.holdings)
}

// Cash returns the cash balance.
func (l *Ledger) Cash() decimal.Decimal {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.cash
}

// ---------------------------------------------------------------------------
// Mutations
// ---------------------------------------------------------------------------

// Buy purchases quantity shares of symbol at price, the price the user saw.
// An existing holding grows and is revalued at price; its purchase price is
// left as it was.
func (l *Ledger) Buy(ctx context.Context, symbol string, price decimal.NullDecimal, quantity int64) (domain.Trade, error) {
	symbol = normalize(symbol)
	switch {
	case symbol == "":
		return domain.Trade{}, fmt.Errorf("%w: symbol is required", domain.ErrInvalidOrder)
	case !price.Valid:
		return domain.Trade{}, fmt.Errorf("%w: no price for %s", domain.ErrInvalidOrder, symbol)
	case !price.Decimal.IsPositive():
		return domain.Trade{}, fmt.Errorf("%w: price must be positive", domain.ErrInvalidOrder)
	case quantity <= 0:
		return domain.Trade{}, fmt.Errorf("%w: quantity must be positive", domain.ErrInvalidOrder)
	}
	p := price.Decimal
	qty := decimal.NewFromInt(quantity)
	cost := p.Mul(qty)

	l.mu.Lock()
	if l.cash.LessThan(cost) {
		avail := l.cash
		l.mu.Unlock()
		return domain.Trade{}, &domain.InsufficientFundsError{Required: cost, Available: avail}
	}

	holdings := copyHoldings(l.holdings)
	if i := indexOf(holdings, symbol); i >= 0 {
		holdings[i].Quantity += quantity
		holdings[i].TotalValue = decimal.NewFromInt(holdings[i].Quantity).Mul(p)
	} else {
		holdings = append(holdings, domain.Holding{
			Symbol:        symbol,
			Quantity:      quantity,
			PurchasePrice: p,
			TotalValue:    cost,
		})
	}
	cash := l.cash.Sub(cost)

	if err := l.commit(ctx, cash, holdings); err != nil {
		l.mu.Unlock()
		return domain.Trade{}, err
	}
	snap := l.snapshotLocked()
	l.mu.Unlock()

	trade := l.newTrade(domain.TradeSideBuy, symbol, quantity, p)
	l.afterTrade(ctx, EventBuy, trade, snap)
	return trade, nil
}

// Sell sells quantity shares of symbol at the current market price. The
// price is fetched without holding the lock; the holding is validated again
// before the sale is committed so concurrent sells never oversell.
func (l *Ledger) Sell(ctx context.Context, symbol string, quantity int64) (domain.Trade, error) {
	symbol = normalize(symbol)
	if quantity <= 0 {
		return domain.Trade{}, fmt.Errorf("%w: quantity must be positive", domain.ErrInvalidOrder)
	}

	l.mu.RLock()
	err := checkSell(l.holdings, symbol, quantity)
	l.mu.RUnlock()
	if err != nil {
		return domain.Trade{}, err
	}

	quote, err := l.quotes.Quote(ctx, symbol)
	if err != nil {
		l.log.Warn("sell quote failed", "symbol", symbol, "error", err)
		return domain.Trade{}, fmt.Errorf("%w: %w", domain.ErrPriceUnavailable, err)
	}
	if !quote.HasPrice() {
		return domain.Trade{}, fmt.Errorf("%w: no current price for %s", domain.ErrPriceUnavailable, symbol)
	}
	if err := ctx.Err(); err != nil {
		return domain.Trade{}, err
	}
	price := quote.Price.Decimal

	l.mu.Lock()
	if err := checkSell(l.holdings, symbol, quantity); err != nil {
		l.mu.Unlock()
		return domain.Trade{}, err
	}

	holdings := copyHoldings(l.holdings)
	i := indexOf(holdings, symbol)
	if remaining := holdings[i].Quantity - quantity; remaining > 0 {
		holdings[i].Quantity = remaining
		holdings[i].TotalValue = decimal.NewFromInt(remaining).Mul(price)
	} else {
		holdings = append(holdings[:i], holdings[i+1:]...)
	}
	cash := l.cash.Add(price.Mul(decimal.NewFromInt(quantity)))

	if err := l.commit(ctx, cash, holdings); err != nil {
		l.mu.Unlock()
		return domain.Trade{}, err
	}
	snap := l.snapshotLocked()
	l.mu.Unlock()

	trade := l.newTrade(domain.TradeSideSell, symbol, quantity, price)
	l.afterTrade(ctx, EventSell, trade, snap)
	return trade, nil
}

// Reset clears the persisted ledger and restores the starting balance with
// no holdings.
func (l *Ledger) Reset(ctx context.Context) error {
	l.mu.Lock()
	if err := l.kv.Clear(ctx, store.KeyBalance, store.KeyPortfolio); err != nil {
		l.mu.Unlock()
		return fmt.Errorf("clearing ledger: %w", err)
	}
	l.cash = l.starting
	l.holdings = nil
	snap := l.snapshotLocked()
	l.mu.Unlock()

	l.log.Info("ledger reset", "cash", snap.CashBalance.String())
	l.broadcast(Event{Type: EventReset, Portfolio: snap})
	return nil
}

// ---------------------------------------------------------------------------
// Pub/sub
// ---------------------------------------------------------------------------

// Subscribe returns a channel that receives events. bufSize controls the
// channel buffer; slow consumers will have events dropped.
func (l *Ledger) Subscribe(bufSize int) (int, <-chan Event) {
	ch := make(chan Event, bufSize)
	l.subsMu.Lock()
	id := l.nextSubID
	l.nextSubID++
	l.subs[id] = ch
	l.subsMu.Unlock()
	return id, ch
}

// Unsubscribe removes a subscriber and closes its channel.
func (l *Ledger) Unsubscribe(id int) {
	l.subsMu.Lock()
	if ch, ok := l.subs[id]; ok {
		delete(l.subs, id)
		close(ch)
	}
	l.subsMu.Unlock()
}

// broadcast sends an event to all subscribers non-blocking (drop on full).
func (l *Ledger) broadcast(e Event) {
	l.subsMu.Lock()
	defer l.subsMu.Unlock()
	for _, ch := range l.subs {
		select {
		case ch <- e:
		default:
			// Slow consumer: drop event.
		}
	}
}

// ---------------------------------------------------------------------------
// Internals
// ---------------------------------------------------------------------------

// commit persists the new state and swaps it in. On a persistence error the
// in-memory state is left untouched. Must be called with mu held.
func (l *Ledger) commit(ctx context.Context, cash decimal.Decimal, holdings []domain.Holding) error {
	if holdings == nil {
		holdings = []domain.Holding{}
	}
	data, err := json.Marshal(holdings)
	if err != nil {
		return fmt.Errorf("encoding portfolio: %w", err)
	}
	err = l.kv.SetMany(ctx, map[string]string{
		store.KeyBalance:   cash.String(),
		store.KeyPortfolio: string(data),
	})
	if err != nil {
		return fmt.Errorf("persisting ledger: %w", err)
	}
	l.cash = cash
	l.holdings = holdings
	return nil
}

// afterTrade journals and publishes a committed trade. The journal write
// outlives a cancelled request context.
func (l *Ledger) afterTrade(ctx context.Context, typ string, trade domain.Trade, snap domain.Portfolio) {
	l.log.Info("trade executed",
		"side", trade.Side, "symbol", trade.Symbol, "quantity", trade.Quantity,
		"price", trade.Price.String(), "cash", snap.CashBalance.String())

	if l.journal != nil {
		if err := l.journal.RecordTrade(context.WithoutCancel(ctx), trade); err != nil {
			l.log.Error("journaling trade", "id", trade.ID, "error", err)
		}
	}
	l.broadcast(Event{Type: typ, Trade: &trade, Portfolio: snap})
}

func (l *Ledger) newTrade(side domain.TradeSide, symbol string, quantity int64, price decimal.Decimal) domain.Trade {
	return domain.Trade{
		ID:         uuid.NewString(),
		Side:       side,
		Symbol:     symbol,
		Quantity:   quantity,
		Price:      price,
		Total:      price.Mul(decimal.NewFromInt(quantity)),
		ExecutedAt: l.now().UTC(),
	}
}

// snapshotLocked must be called with mu held.
func (l *Ledger) snapshotLocked() domain.Portfolio {
	return domain.Portfolio{CashBalance: l.cash, Holdings: copyHoldings(l.holdings)}
}

func checkSell(holdings []domain.Holding, symbol string, quantity int64) error {
	i := indexOf(holdings, symbol)
	if i < 0 {
		return fmt.Errorf("%w: %s", domain.ErrNoSuchHolding, symbol)
	}
	if held := holdings[i].Quantity; held < quantity {
		return &domain.InsufficientSharesError{Symbol: symbol, Held: held, Requested: quantity}
	}
	return nil
}

func indexOf(holdings []domain.Holding, symbol string) int {
	for i, h := range holdings {
		if h.Symbol == symbol {
			return i
		}
	}
	return -1
}

func copyHoldings(h []domain.Holding) []domain.Holding {
	out := make([]domain.Holding, len(h))
	copy(out, h)
	return out
}

func normalize(symbol string) string {
	return strings.ToUpper(strings.TrimSpace(symbol))
}
