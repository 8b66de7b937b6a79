package execution

import (
	"errors"
	"testing"
	"time"

	"main/internal/ledger"
	"main/internal/model"
	"main/internal/model/enum"
	"main/internal/store"
	"main/pkg/exception"
)

type recorder struct {
	feedRequests []FeedRequest
	broadcasts   []model.TradeEvent
}

func (r *recorder) feedRequest(req FeedRequest)  { r.feedRequests = append(r.feedRequests, req) }
func (r *recorder) broadcast(e model.TradeEvent) { r.broadcasts = append(r.broadcasts, e) }

func newTestMachine(t *testing.T) (*StateMachine, *ledger.Ledger, *store.Memory, *recorder) {
	t.Helper()
	st := store.NewMemory()
	lg := ledger.New(st)
	rec := &recorder{}
	m := New(lg, rec.feedRequest, rec.broadcast)
	m.SetClock(func() time.Time {
		return time.Date(2024, 3, 15, 9, 30, 0, 0, time.UTC)
	})
	return m, lg, st, rec
}

func buyEvent(orderNum, qty, price int64) model.TradeEvent {
	return model.TradeEvent{
		StockName:    "samsung",
		Qty:          qty,
		Price:        price,
		OrderNum:     orderNum,
		StockCode:    "005930",
		Side:         enum.OrderSideBuy,
		Conclusion:   enum.ConclusionReceived,
		ModifyCancel: enum.ModifyCancelNone,
		PriceKind:    enum.PriceKindNormal,
	}
}

func TestReceivedOrderEntersUnconcluded(t *testing.T) {
	m, lg, st, rec := newTestMachine(t)

	if err := m.Apply(buyEvent(1001, 10, 70000)); err != nil {
		t.Fatalf("apply: %v", err)
	}

	qty, ok, err := lg.UnconcludedQuantity(1001)
	if err != nil || !ok {
		t.Fatalf("unconcluded lookup: ok=%t err=%v", ok, err)
	}
	if qty != 10 {
		t.Fatalf("unconcluded qty: got %d want 10", qty)
	}
	if got := len(st.OrderHistory()); got != 1 {
		t.Fatalf("order history rows: got %d want 1", got)
	}
	if got := len(st.ConclusionHistory()); got != 0 {
		t.Fatalf("conclusion history rows: got %d want 0", got)
	}
	if len(rec.broadcasts) != 1 {
		t.Fatalf("broadcasts: got %d want 1", len(rec.broadcasts))
	}
	if rec.broadcasts[0].DateTime != 20240315093000 {
		t.Fatalf("stamped date_time: got %d", rec.broadcasts[0].DateTime)
	}
	if rec.broadcasts[0].TotalPrice != 700000 {
		t.Fatalf("total price: got %d want 700000", rec.broadcasts[0].TotalPrice)
	}
}

func TestPartialThenFullConclusion(t *testing.T) {
	m, lg, st, rec := newTestMachine(t)

	if err := m.Apply(buyEvent(1001, 10, 70000)); err != nil {
		t.Fatalf("received: %v", err)
	}

	partial := buyEvent(1001, 4, 70000)
	partial.Conclusion = enum.ConclusionConcluded
	partial.BalanceQty = 4
	partial.AbleSellQty = 4
	partial.AvgPrice = 70000
	if err := m.Apply(partial); err != nil {
		t.Fatalf("partial conclusion: %v", err)
	}

	qty, ok, err := lg.UnconcludedQuantity(1001)
	if err != nil || !ok {
		t.Fatalf("unconcluded lookup: ok=%t err=%v", ok, err)
	}
	if qty != 6 {
		t.Fatalf("remaining qty: got %d want 6", qty)
	}

	b, ok, err := lg.Balance("005930")
	if err != nil || !ok {
		t.Fatalf("balance lookup: ok=%t err=%v", ok, err)
	}
	if b.Quantity != 4 || b.AverageUnitPrice != 70000 {
		t.Fatalf("balance: %+v", b)
	}
	if b.ProfitUnitPrice <= b.AverageUnitPrice {
		t.Fatalf("break-even price must exceed average: %d <= %d", b.ProfitUnitPrice, b.AverageUnitPrice)
	}

	rest := buyEvent(1001, 6, 70000)
	rest.Conclusion = enum.ConclusionConcluded
	rest.BalanceQty = 10
	rest.AbleSellQty = 10
	rest.AvgPrice = 70000
	if err := m.Apply(rest); err != nil {
		t.Fatalf("full conclusion: %v", err)
	}

	if _, ok, _ := lg.UnconcludedQuantity(1001); ok {
		t.Fatal("fully concluded order must leave the unconcluded list")
	}
	if got := len(st.ConclusionHistory()); got != 2 {
		t.Fatalf("conclusion history rows: got %d want 2", got)
	}

	// Both conclusions opened the position, so both request a subscribe.
	if len(rec.feedRequests) != 2 {
		t.Fatalf("feed requests: got %d want 2", len(rec.feedRequests))
	}
	for _, req := range rec.feedRequests {
		if req.StockCode != "005930" || !req.SetStatus {
			t.Fatalf("feed request: %+v", req)
		}
	}
}

func TestSellToZeroUnsubscribes(t *testing.T) {
	m, lg, _, rec := newTestMachine(t)

	open := buyEvent(1001, 10, 70000)
	open.Conclusion = enum.ConclusionConcluded
	open.BalanceQty = 10
	open.AvgPrice = 70000
	if err := m.Apply(open); err != nil {
		t.Fatalf("open position: %v", err)
	}

	flat := buyEvent(1002, 10, 71000)
	flat.Side = enum.OrderSideSell
	flat.Conclusion = enum.ConclusionConcluded
	flat.BalanceQty = 0
	if err := m.Apply(flat); err != nil {
		t.Fatalf("flatten position: %v", err)
	}

	if _, ok, _ := lg.Balance("005930"); ok {
		t.Fatal("zero quantity must delete the balance row")
	}
	last := rec.feedRequests[len(rec.feedRequests)-1]
	if last.SetStatus {
		t.Fatal("flattening must request an unsubscribe")
	}
}

func TestConfirmedModifyMovesUnconcluded(t *testing.T) {
	m, lg, _, _ := newTestMachine(t)

	if err := m.Apply(buyEvent(1001, 10, 70000)); err != nil {
		t.Fatalf("received: %v", err)
	}

	confirm := buyEvent(1002, 10, 69000)
	confirm.OriginOrderNum = 1001
	confirm.Conclusion = enum.ConclusionConfirmed
	confirm.ModifyCancel = enum.ModifyCancelModify
	if err := m.Apply(confirm); err != nil {
		t.Fatalf("confirmed modify: %v", err)
	}

	if _, ok, _ := lg.UnconcludedQuantity(1001); ok {
		t.Fatal("origin order must be removed")
	}
	qty, ok, err := lg.UnconcludedQuantity(1002)
	if err != nil || !ok {
		t.Fatalf("modified order lookup: ok=%t err=%v", ok, err)
	}
	if qty != 10 {
		t.Fatalf("modified qty: got %d want 10", qty)
	}
}

func TestConfirmedCancelReducesOrigin(t *testing.T) {
	m, lg, _, _ := newTestMachine(t)

	if err := m.Apply(buyEvent(1001, 10, 70000)); err != nil {
		t.Fatalf("received: %v", err)
	}

	cancel := buyEvent(1002, 4, 70000)
	cancel.OriginOrderNum = 1001
	cancel.Conclusion = enum.ConclusionConfirmed
	cancel.ModifyCancel = enum.ModifyCancelCancel
	if err := m.Apply(cancel); err != nil {
		t.Fatalf("partial cancel: %v", err)
	}

	// The remainder stays under the origin order number; a cancel never
	// re-enters the unconcluded list under its own number.
	qty, ok, err := lg.UnconcludedQuantity(1001)
	if err != nil || !ok {
		t.Fatalf("origin lookup: ok=%t err=%v", ok, err)
	}
	if qty != 6 {
		t.Fatalf("remaining qty: got %d want 6", qty)
	}
	if _, ok, _ := lg.UnconcludedQuantity(1002); ok {
		t.Fatal("cancel confirmation must not enter unconcluded")
	}

	rest := buyEvent(1003, 6, 70000)
	rest.OriginOrderNum = 1001
	rest.Conclusion = enum.ConclusionConfirmed
	rest.ModifyCancel = enum.ModifyCancelCancel
	if err := m.Apply(rest); err != nil {
		t.Fatalf("full cancel: %v", err)
	}
	if _, ok, _ := lg.UnconcludedQuantity(1001); ok {
		t.Fatal("origin order must be removed once fully cancelled")
	}
}

func TestModifyQuantityZeroResolvesFromOrigin(t *testing.T) {
	m, lg, _, _ := newTestMachine(t)

	if err := m.Apply(buyEvent(1001, 10, 70000)); err != nil {
		t.Fatalf("received: %v", err)
	}

	confirm := buyEvent(1002, 0, 69000)
	confirm.OriginOrderNum = 1001
	confirm.Conclusion = enum.ConclusionConfirmed
	confirm.ModifyCancel = enum.ModifyCancelModify
	if err := m.Apply(confirm); err != nil {
		t.Fatalf("confirmed modify: %v", err)
	}

	qty, ok, err := lg.UnconcludedQuantity(1002)
	if err != nil || !ok {
		t.Fatalf("modified order lookup: ok=%t err=%v", ok, err)
	}
	if qty != 10 {
		t.Fatalf("resolved qty: got %d want 10", qty)
	}
}

func TestModifyUnknownOriginDropsEvent(t *testing.T) {
	m, _, st, rec := newTestMachine(t)

	confirm := buyEvent(1002, 0, 69000)
	confirm.OriginOrderNum = 9999
	confirm.Conclusion = enum.ConclusionConfirmed
	confirm.ModifyCancel = enum.ModifyCancelModify

	err := m.Apply(confirm)
	if !errors.Is(err, exception.ErrLedgerInconsistency) {
		t.Fatalf("want ErrLedgerInconsistency, got %v", err)
	}
	if len(rec.broadcasts) != 0 {
		t.Fatal("dropped event must not broadcast")
	}
	if got := len(st.OrderHistory()); got != 0 {
		t.Fatalf("dropped event must not enter history, rows %d", got)
	}
}

func TestCancelAckSkipsSellableUpdate(t *testing.T) {
	m, lg, _, _ := newTestMachine(t)

	open := buyEvent(1001, 10, 70000)
	open.Conclusion = enum.ConclusionConcluded
	open.BalanceQty = 10
	open.AbleSellQty = 10
	open.AvgPrice = 70000
	if err := m.Apply(open); err != nil {
		t.Fatalf("open position: %v", err)
	}

	// Cancel acknowledgements carry a zero sellable quantity; it must not
	// clobber the real one.
	ack := buyEvent(1002, 3, 70000)
	ack.OriginOrderNum = 1001
	ack.Conclusion = enum.ConclusionReceived
	ack.ModifyCancel = enum.ModifyCancelCancel
	ack.AbleSellQty = 0
	if err := m.Apply(ack); err != nil {
		t.Fatalf("cancel ack: %v", err)
	}

	b, ok, err := lg.Balance("005930")
	if err != nil || !ok {
		t.Fatalf("balance lookup: ok=%t err=%v", ok, err)
	}
	if b.AbleSellQuantity != 10 {
		t.Fatalf("sellable qty clobbered: got %d want 10", b.AbleSellQuantity)
	}
}

func TestMissingUnconcludedOnlySkipsDecrement(t *testing.T) {
	m, _, st, rec := newTestMachine(t)

	done := buyEvent(4242, 5, 70000)
	done.Conclusion = enum.ConclusionConcluded
	done.BalanceQty = 5
	done.AvgPrice = 70000
	if err := m.Apply(done); err != nil {
		t.Fatalf("apply: %v", err)
	}

	if len(rec.broadcasts) != 1 {
		t.Fatal("event must still broadcast")
	}
	if got := len(st.ConclusionHistory()); got != 1 {
		t.Fatalf("conclusion history rows: got %d want 1", got)
	}
}
