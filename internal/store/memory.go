package store

import (
	"sync"

	"main/internal/model"
)

// Memory is an in-process Store for tests and paper runs.
type Memory struct {
	mu          sync.RWMutex
	users       map[string]string
	unconcluded map[int64]model.UnconcludedOrder
	balances    map[string]model.PositionBalance
	orderHist   []model.TradeEvent
	conclHist   []model.TradeEvent
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		users:       make(map[string]string),
		unconcluded: make(map[int64]model.UnconcludedOrder),
		balances:    make(map[string]model.PositionBalance),
	}
}

// PutUser registers credentials.
func (m *Memory) PutUser(username, password string) {
	m.mu.Lock()
	m.users[username] = password
	m.mu.Unlock()
}

func (m *Memory) UserPassword(username string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	pw, ok := m.users[username]
	return pw, ok, nil
}

func (m *Memory) UpsertUnconcluded(o model.UnconcludedOrder) error {
	m.mu.Lock()
	m.unconcluded[o.OrderNum] = o
	m.mu.Unlock()
	return nil
}

func (m *Memory) Unconcluded(orderNum int64) (model.UnconcludedOrder, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	o, ok := m.unconcluded[orderNum]
	return o, ok, nil
}

func (m *Memory) SetUnconcludedQuantity(orderNum, qty int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.unconcluded[orderNum]
	if !ok {
		return nil
	}
	o.Quantity = qty
	m.unconcluded[orderNum] = o
	return nil
}

func (m *Memory) DeleteUnconcluded(orderNum int64) error {
	m.mu.Lock()
	delete(m.unconcluded, orderNum)
	m.mu.Unlock()
	return nil
}

func (m *Memory) ListUnconcluded() ([]model.UnconcludedOrder, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]model.UnconcludedOrder, 0, len(m.unconcluded))
	for _, o := range m.unconcluded {
		out = append(out, o)
	}
	return out, nil
}

func (m *Memory) Balance(stockCode string) (model.PositionBalance, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	b, ok := m.balances[stockCode]
	return b, ok, nil
}

func (m *Memory) UpsertBalance(b model.PositionBalance) error {
	m.mu.Lock()
	m.balances[b.StockCode] = b
	m.mu.Unlock()
	return nil
}

func (m *Memory) DeleteBalance(stockCode string) error {
	m.mu.Lock()
	delete(m.balances, stockCode)
	m.mu.Unlock()
	return nil
}

func (m *Memory) ListBalances() ([]model.PositionBalance, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]model.PositionBalance, 0, len(m.balances))
	for _, b := range m.balances {
		out = append(out, b)
	}
	return out, nil
}

func (m *Memory) AppendOrderHistory(e model.TradeEvent) error {
	m.mu.Lock()
	m.orderHist = append(m.orderHist, e)
	m.mu.Unlock()
	return nil
}

func (m *Memory) AppendConclusionHistory(e model.TradeEvent) error {
	m.mu.Lock()
	m.conclHist = append(m.conclHist, e)
	m.mu.Unlock()
	return nil
}

// OrderHistory returns the appended order-history rows in order.
func (m *Memory) OrderHistory() []model.TradeEvent {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]model.TradeEvent, len(m.orderHist))
	copy(out, m.orderHist)
	return out
}

// ConclusionHistory returns the appended conclusion-history rows in order.
func (m *Memory) ConclusionHistory() []model.TradeEvent {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]model.TradeEvent, len(m.conclHist))
	copy(out, m.conclHist)
	return out
}

var _ Store = (*Memory)(nil)
