package execution

import (
	"errors"
	"time"

	"github.com/yanun0323/logs"

	"main/internal/ledger"
	"main/internal/model"
	"main/internal/model/enum"
	"main/pkg/exception"
)

// FeedRequest is a synthetic subscription change emitted when a conclusion
// changes a position: subscribe while the position is open, unsubscribe when
// it empties.
type FeedRequest struct {
	StockCode string
	SetStatus bool
}

// StateMachine classifies execution events into ledger mutations, an
// optional feed request, and a trade-status broadcast. Events are applied in
// arrival order by a single caller goroutine; all shared state lives in the
// ledger.
type StateMachine struct {
	ledger      *ledger.Ledger
	now         func() time.Time
	feedRequest func(FeedRequest)
	broadcast   func(model.TradeEvent)
}

// New creates a state machine. feedRequest and broadcast may be nil when the
// caller has no use for them.
func New(l *ledger.Ledger, feedRequest func(FeedRequest), broadcast func(model.TradeEvent)) *StateMachine {
	return &StateMachine{
		ledger:      l,
		now:         time.Now,
		feedRequest: feedRequest,
		broadcast:   broadcast,
	}
}

// SetClock overrides the classification clock.
func (m *StateMachine) SetClock(now func() time.Time) {
	m.now = now
}

// Apply consumes one execution event. A modify that cannot be resolved
// against the unconcluded ledger is dropped entirely; any later ledger miss
// only skips that mutation and the event still broadcasts.
func (m *StateMachine) Apply(e model.TradeEvent) error {
	// A modify with reported quantity zero means "modify the entire
	// remaining quantity"; resolve it from the origin order.
	if e.ModifyCancel == enum.ModifyCancelModify && e.Qty == 0 {
		qty, ok, err := m.ledger.UnconcludedQuantity(e.OriginOrderNum)
		if err != nil {
			return err
		}
		if !ok {
			logs.Errorf("modify references unknown origin order %d, dropping event", e.OriginOrderNum)
			return exception.ErrLedgerInconsistency
		}
		e.Qty = qty
	}

	e.DateTime = stamp(m.now())
	e.TotalPrice = e.Price * e.Qty

	if err := m.ledger.AppendHistory(e); err != nil {
		logs.Errorf("append trade history, order: %d, err: %v", e.OrderNum, err)
	}

	// Modify/cancel acknowledgements report a zero sellable quantity; skip
	// that known-bogus update.
	if !(e.Conclusion == enum.ConclusionReceived && e.ModifyCancel != enum.ModifyCancelNone) {
		if err := m.ledger.ChangeAbleSell(e.StockCode, e.AbleSellQty); err != nil {
			logs.Errorf("update sellable quantity, stock: %s, err: %v", e.StockCode, err)
		}
	}

	if e.Conclusion != enum.ConclusionReceived {
		if err := m.ledger.DecrementUnconcluded(e.DecrementKey(), e.Qty); err != nil {
			if errors.Is(err, exception.ErrLedgerUnknownOrder) {
				logs.Warnf("event references missing unconcluded order %d, skipping decrement", e.DecrementKey())
			} else {
				logs.Errorf("decrement unconcluded order %d, err: %v", e.DecrementKey(), err)
			}
		}
	}

	if (e.Conclusion == enum.ConclusionReceived && e.ModifyCancel == enum.ModifyCancelNone) ||
		(e.Conclusion == enum.ConclusionConfirmed && e.ModifyCancel == enum.ModifyCancelModify) {
		if err := m.ledger.UpsertUnconcluded(model.UnconcludedFromEvent(e)); err != nil {
			logs.Errorf("insert unconcluded order %d, err: %v", e.OrderNum, err)
		}
	}

	if e.Conclusion == enum.ConclusionConcluded {
		if err := m.ledger.ChangeBalance(e.StockCode, e.StockName, e.BalanceQty, e.AbleSellQty, e.AvgPrice); err != nil {
			logs.Errorf("update balance, stock: %s, err: %v", e.StockCode, err)
		}
		if m.feedRequest != nil {
			m.feedRequest(FeedRequest{StockCode: e.StockCode, SetStatus: e.BalanceQty != 0})
		}
	}

	if m.broadcast != nil {
		m.broadcast(e)
	}
	return nil
}

// stamp renders a time as the broker's YYYYMMDDHHmmss integer format.
func stamp(t time.Time) int64 {
	year, month, day := t.Date()
	hour, min, sec := t.Clock()
	return int64(year)*1e10 +
		int64(month)*1e8 +
		int64(day)*1e6 +
		int64(hour)*1e4 +
		int64(min)*1e2 +
		int64(sec)
}
