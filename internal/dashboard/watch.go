package dashboard

import (
	"context"
	"sync"

	"papertrade/internal/domain"
	"papertrade/internal/ledger"
	"papertrade/internal/valuation"
)

// Update types.
const (
	UpdateValuation = "valuation"
	UpdateLedger    = "ledger"
)

// Update is pushed to a live view: either a fresh portfolio summary or a
// ledger change.
type Update struct {
	Type    string        `json:"type"`
	Summary *Summary      `json:"summary,omitempty"`
	Event   *ledger.Event `json:"event,omitempty"`
}

const watchEventBuffer = 16

// Watcher feeds live views with valuations and ledger changes. Each view
// gets its own valuation task for as long as it watches.
type Watcher struct {
	ledger *ledger.Ledger
	valuer *valuation.Valuer

	mu     sync.RWMutex
	latest domain.Valuation
	hooks  []func(domain.Valuation)
}

// NewWatcher creates a Watcher over the ledger.
func NewWatcher(l *ledger.Ledger, v *valuation.Valuer) *Watcher {
	return &Watcher{ledger: l, valuer: v}
}

// Value runs a single valuation and returns the summary.
func (w *Watcher) Value(ctx context.Context) Summary {
	val, _ := w.valuer.Once(ctx)
	if ctx.Err() == nil {
		w.record(val)
	}
	return Summarize(w.ledger.Cash(), val)
}

// Current combines the cash balance with the last valuation any view has
// seen. Without holdings the portfolio value is 0.
func (w *Watcher) Current() Summary {
	snap := w.ledger.Snapshot()
	if len(snap.Holdings) == 0 {
		return Summarize(snap.CashBalance, domain.Valuation{})
	}
	w.mu.RLock()
	val := w.latest
	w.mu.RUnlock()
	return Summarize(snap.CashBalance, val)
}

// OnValuation registers fn to receive every non-empty valuation a view
// produces. fn runs on the producing view's goroutine.
func (w *Watcher) OnValuation(fn func(domain.Valuation)) {
	w.mu.Lock()
	w.hooks = append(w.hooks, fn)
	w.mu.Unlock()
}

func (w *Watcher) record(val domain.Valuation) {
	w.mu.Lock()
	w.latest = val
	hooks := w.hooks
	w.mu.Unlock()

	if val.Symbols == 0 {
		return
	}
	for _, fn := range hooks {
		fn(val)
	}
}

// Watch starts a valuation task for one view and forwards its results,
// along with ledger events, to send until ctx is done or send fails. A
// trade triggers an immediate revaluation; a trade that empties the
// portfolio is followed by a zero valuation.
func (w *Watcher) Watch(ctx context.Context, send func(Update) error) error {
	vals := make(chan domain.Valuation, 1)
	task := w.valuer.Start(ctx, func(v domain.Valuation) {
		// Keep only the newest result.
		select {
		case <-vals:
		default:
		}
		vals <- v
	})
	defer task.Stop()

	subID, events := w.ledger.Subscribe(watchEventBuffer)
	defer w.ledger.Unsubscribe(subID)

	for {
		select {
		case <-ctx.Done():
			return nil
		case v := <-vals:
			w.record(v)
			sum := Summarize(w.ledger.Cash(), v)
			if err := send(Update{Type: UpdateValuation, Summary: &sum}); err != nil {
				return err
			}
		case e, ok := <-events:
			if !ok {
				return nil
			}
			if err := send(Update{Type: UpdateLedger, Event: &e}); err != nil {
				return err
			}
			if len(e.Portfolio.Holdings) > 0 {
				task.Trigger()
				continue
			}
			sum := Summarize(e.Portfolio.CashBalance, domain.Valuation{})
			if err := send(Update{Type: UpdateValuation, Summary: &sum}); err != nil {
				return err
			}
		}
	}
}
