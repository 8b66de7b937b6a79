package store

import "main/internal/model"

// Store is the keyed persistence surface the ledger and the dispatcher rely
// on. Single-row atomicity is enough; callers serialize multi-step mutations.
type Store interface {
	// UserPassword returns the stored password for a username.
	UserPassword(username string) (string, bool, error)

	UpsertUnconcluded(o model.UnconcludedOrder) error
	Unconcluded(orderNum int64) (model.UnconcludedOrder, bool, error)
	SetUnconcludedQuantity(orderNum, qty int64) error
	DeleteUnconcluded(orderNum int64) error
	ListUnconcluded() ([]model.UnconcludedOrder, error)

	Balance(stockCode string) (model.PositionBalance, bool, error)
	UpsertBalance(b model.PositionBalance) error
	DeleteBalance(stockCode string) error
	ListBalances() ([]model.PositionBalance, error)

	AppendOrderHistory(e model.TradeEvent) error
	AppendConclusionHistory(e model.TradeEvent) error
}
