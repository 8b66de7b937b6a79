package exception

import "github.com/yanun0323/errors"

var (
	ErrLedgerUnknownOrder   = errors.New("ledger: order number not found")
	ErrLedgerInconsistency  = errors.New("ledger: event references missing record")
	ErrLedgerNegativeAmount = errors.New("ledger: negative quantity")
)
