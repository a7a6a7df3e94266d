// Package valuation computes the live market value of the ledger's holdings
// and republishes it on a fixed interval for as long as a view is open.
package valuation

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"papertrade/internal/domain"
	"papertrade/internal/marketdata"
)

// DefaultInterval is the time between valuation cycles.
const DefaultInterval = 15 * time.Second

// maxConcurrentQuotes bounds the quote fan-out of a single cycle.
const maxConcurrentQuotes = 4

// HoldingSource supplies the positions to value.
type HoldingSource interface {
	Holdings() []domain.Holding
}

// Valuer prices holdings with live quotes.
type Valuer struct {
	holdings HoldingSource
	quotes   marketdata.QuoteSource
	interval time.Duration
	log      *slog.Logger
	now      func() time.Time
}

// New creates a Valuer. interval <= 0 means DefaultInterval.
func New(holdings HoldingSource, quotes marketdata.QuoteSource, interval time.Duration, log *slog.Logger) *Valuer {
	if interval <= 0 {
		interval = DefaultInterval
	}
	if log == nil {
		log = slog.Default()
	}
	return &Valuer{
		holdings: holdings,
		quotes:   quotes,
		interval: interval,
		log:      log.With("component", "valuation"),
		now:      time.Now,
	}
}

// Interval returns the cycle interval.
func (v *Valuer) Interval() time.Duration { return v.interval }

// Once values the current holdings. It reports false, with a zero
// valuation, when there is nothing to value. A symbol whose quote fails or
// has no price is logged, listed in Failed and contributes zero.
func (v *Valuer) Once(ctx context.Context) (domain.Valuation, bool) {
	holdings := v.holdings.Holdings()
	if len(holdings) == 0 {
		return domain.Valuation{Value: decimal.Zero, At: v.now().UTC()}, false
	}

	values := make([]decimal.NullDecimal, len(holdings))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentQuotes)
	for i, h := range holdings {
		g.Go(func() error {
			q, err := v.quotes.Quote(gctx, h.Symbol)
			if err != nil {
				v.log.Warn("quote failed", "symbol", h.Symbol, "error", err)
				return nil
			}
			if !q.HasPrice() {
				v.log.Warn("quote has no price", "symbol", h.Symbol)
				return nil
			}
			values[i] = decimal.NewNullDecimal(q.Price.Decimal.Mul(decimal.NewFromInt(h.Quantity)))
			return nil
		})
	}
	g.Wait()

	val := domain.Valuation{Value: decimal.Zero, Symbols: len(holdings), At: v.now().UTC()}
	for i, h := range holdings {
		if !values[i].Valid {
			val.Failed = append(val.Failed, h.Symbol)
			continue
		}
		val.Value = val.Value.Add(values[i].Decimal)
	}
	return val, true
}

// Task is a running valuation loop owned by one view.
type Task struct {
	cancel  context.CancelFunc
	trigger chan struct{}
	done    chan struct{}
	once    sync.Once
}

// Start runs a cycle immediately and then every interval until ctx is done
// or Stop is called. publish receives each valuation; it is not called when
// there are no holdings or when the task was stopped mid-cycle.
func (v *Valuer) Start(ctx context.Context, publish func(domain.Valuation)) *Task {
	ctx, cancel := context.WithCancel(ctx)
	t := &Task{
		cancel:  cancel,
		trigger: make(chan struct{}, 1),
		done:    make(chan struct{}),
	}

	go func() {
		defer close(t.done)
		ticker := time.NewTicker(v.interval)
		defer ticker.Stop()

		for {
			val, ok := v.Once(ctx)
			if ctx.Err() != nil {
				return
			}
			if ok {
				publish(val)
			}

			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			case <-t.trigger:
			}
		}
	}()
	return t
}

// Trigger requests an immediate cycle. Requests made while one is pending
// are coalesced.
func (t *Task) Trigger() {
	select {
	case t.trigger <- struct{}{}:
	default:
	}
}

// Stop cancels the loop and waits for it to exit. In-flight quotes are
// abandoned and their result discarded. Stop is idempotent.
func (t *Task) Stop() {
	t.once.Do(t.cancel)
	<-t.done
}

// Done is closed when the loop has exited.
func (t *Task) Done() <-chan struct{} { return t.done }
