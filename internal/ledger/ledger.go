package ledger

import (
	"sync"

	"github.com/yanun0323/logs"

	"main/internal/model"
	"main/internal/model/enum"
	"main/internal/store"
	"main/pkg/exception"
)

// Brokerage cost constants used only for the derived P&L fields. The trade
// path itself carries no fee model; total price stays price times quantity.
const (
	tradeFeePercent = 0.011360
	sellTaxPercent  = 0.25
)

// Ledger is the unconcluded-order list and position balances over a Store.
// One mutex serializes compound mutations; the execution state machine and
// the tick path both call in.
type Ledger struct {
	mu sync.Mutex
	st store.Store
}

// New creates a ledger over a store.
func New(st store.Store) *Ledger {
	return &Ledger{st: st}
}

// AppendHistory routes an event to the conclusion or the order history.
func (l *Ledger) AppendHistory(e model.TradeEvent) error {
	if e.Conclusion == enum.ConclusionConcluded {
		return l.st.AppendConclusionHistory(e)
	}
	return l.st.AppendOrderHistory(e)
}

// UpsertUnconcluded inserts or replaces the record for an order number.
func (l *Ledger) UpsertUnconcluded(o model.UnconcludedOrder) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.st.UpsertUnconcluded(o)
}

// UnconcludedQuantity returns the tracked remaining quantity.
func (l *Ledger) UnconcludedQuantity(orderNum int64) (int64, bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	o, ok, err := l.st.Unconcluded(orderNum)
	if err != nil || !ok {
		return 0, ok, err
	}
	return o.Quantity, true, nil
}

// DecrementUnconcluded subtracts qty from the record, deleting it exactly
// when the remaining quantity reaches zero. The quantity never goes negative:
// an overshoot deletes the record and is reported.
func (l *Ledger) DecrementUnconcluded(orderNum, qty int64) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	o, ok, err := l.st.Unconcluded(orderNum)
	if err != nil {
		return err
	}
	if !ok {
		return exception.ErrLedgerUnknownOrder
	}
	remaining := o.Quantity - qty
	if remaining <= 0 {
		if remaining < 0 {
			logs.Warnf("unconcluded quantity overshoot, order: %d, quantity: %d, decrement: %d",
				orderNum, o.Quantity, qty)
		}
		return l.st.DeleteUnconcluded(orderNum)
	}
	return l.st.SetUnconcludedQuantity(orderNum, remaining)
}

// ListUnconcluded returns the current unconcluded records.
func (l *Ledger) ListUnconcluded() ([]model.UnconcludedOrder, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.st.ListUnconcluded()
}

// ChangeBalance applies a concluded execution to the position: zero quantity
// deletes the row, otherwise quantity, sellable quantity and cost fields are
// replaced. Quantities below zero are rejected without touching the row.
func (l *Ledger) ChangeBalance(stockCode, stockName string, balanceQty, ableSellQty, avgPrice int64) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if balanceQty < 0 || ableSellQty < 0 {
		return exception.ErrLedgerNegativeAmount
	}
	if balanceQty == 0 {
		return l.st.DeleteBalance(stockCode)
	}

	b, ok, err := l.st.Balance(stockCode)
	if err != nil {
		return err
	}
	if !ok {
		b = model.PositionBalance{StockCode: stockCode, StockName: stockName}
	}
	b.Quantity = balanceQty
	b.AbleSellQuantity = ableSellQty
	b.AverageUnitPrice = avgPrice
	b.ProfitUnitPrice = profitUnitPrice(avgPrice)
	return l.st.UpsertBalance(b)
}

// ChangeAbleSell updates only the sellable quantity of an existing position.
func (l *Ledger) ChangeAbleSell(stockCode string, ableSellQty int64) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if ableSellQty < 0 {
		return exception.ErrLedgerNegativeAmount
	}
	b, ok, err := l.st.Balance(stockCode)
	if err != nil || !ok {
		return err
	}
	b.AbleSellQuantity = ableSellQty
	return l.st.UpsertBalance(b)
}

// UpdateCurrentPrice refreshes the display-level derived fields from a live
// tick. Held quantity and cost are untouched.
func (l *Ledger) UpdateCurrentPrice(stockCode string, price int64) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	b, ok, err := l.st.Balance(stockCode)
	if err != nil || !ok {
		return err
	}
	b.CurrentPrice = price
	b.Profit = (price - b.ProfitUnitPrice) * b.Quantity
	if b.ProfitUnitPrice != 0 {
		b.ProfitRatio = float64(price)/float64(b.ProfitUnitPrice)*100 - 100
	}
	b.Evaluation = int64(float64(price*b.Quantity) * (1 - (tradeFeePercent/100 + sellTaxPercent/100)))
	return l.st.UpsertBalance(b)
}

// Balance returns one position.
func (l *Ledger) Balance(stockCode string) (model.PositionBalance, bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.st.Balance(stockCode)
}

// ListBalances returns all held positions.
func (l *Ledger) ListBalances() ([]model.PositionBalance, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.st.ListBalances()
}

// profitUnitPrice is the break-even unit price after brokerage fee and sell
// tax.
func profitUnitPrice(avgPrice int64) int64 {
	return int64(float64(avgPrice) / (1 - (tradeFeePercent/100 + sellTaxPercent/100)))
}
