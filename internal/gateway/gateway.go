package gateway

import (
	"context"

	"main/internal/model"
	"main/internal/model/enum"
)

// LimitClass mirrors the broker terminal's request rate-limit classes.
type LimitClass uint8

const (
	_limit_class_beg LimitClass = iota
	LimitTrade                  // order / account requests
	LimitNonTrade               // quote requests
	LimitSubscribe              // real-time feed registrations
	_limit_class_end
)

func (c LimitClass) IsAvailable() bool {
	return c > _limit_class_beg && c < _limit_class_end
}

// OrderCommand is one serialized request against the broker terminal.
type OrderCommand struct {
	Action         enum.OrderAction
	StockCode      string
	Qty            int64
	OrderCondition enum.OrderCondition
	PriceKind      enum.PriceKind
	Price          int64
	OriginOrderNum int64
}

// Broker is the narrow surface of the upstream trading terminal. The order
// path and the feed path are separate rate-limit classes; implementations
// must serialize calls within each class, callers must not assume calls
// across classes are safe to overlap on one connection without it.
//
// Feed events, execution events included, are delivered asynchronously on the
// broker's own callback goroutine.
type Broker interface {
	// Submit sends one order command and returns the assigned order number.
	Submit(ctx context.Context, cmd OrderCommand) (int64, error)

	SubscribeTick(stockCode string) error
	UnsubscribeTick(stockCode string) error
	SubscribeDepth(stockCode string) error
	UnsubscribeDepth(stockCode string) error

	// RemainCount reports how many requests of a class may still be issued
	// before the terminal throttles.
	RemainCount(class LimitClass) int

	SetTickHandler(func(model.Tick))
	SetDepthHandler(func(model.Depth))
	SetTradeStatusHandler(func(model.TradeEvent))
}
