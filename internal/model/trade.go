package model

import "main/internal/model/enum"

// TradeEvent is one execution notification from the broker terminal, fully
// classified. Prices and quantities are integer KRW/shares.
type TradeEvent struct {
	DateTime       int64               `json:"date_time"` // YYYYMMDDHHmmss
	StockName      string              `json:"stock_name"`
	Qty            int64               `json:"qty"`
	Price          int64               `json:"price"`
	OrderNum       int64               `json:"order_num"`
	OriginOrderNum int64               `json:"origin_order_num"`
	StockCode      string              `json:"stock_code"`
	Side           enum.OrderSide      `json:"e_order_type"`
	Conclusion     enum.Conclusion     `json:"e_conclusion_type"`
	ModifyCancel   enum.ModifyCancel   `json:"e_modify_cancel_type"`
	PriceKind      enum.PriceKind      `json:"e_price_type"`
	OrderCondition enum.OrderCondition `json:"e_order_condition"`
	AvgPrice       int64               `json:"avg_price"`
	AbleSellQty    int64               `json:"able_sell_qty"`
	BalanceQty     int64               `json:"balance_qty"`
	TotalPrice     int64               `json:"total_price"`
}

// DecrementKey returns the unconcluded-order key this event decrements:
// confirmed modify/cancel events reference the origin order, everything else
// references the event's own order number.
func (e TradeEvent) DecrementKey() int64 {
	if e.Conclusion == enum.ConclusionConfirmed {
		return e.OriginOrderNum
	}
	return e.OrderNum
}

// UnconcludedOrder tracks the remaining, not-yet-filled quantity of an
// accepted order.
type UnconcludedOrder struct {
	DateTime       int64
	OrderNum       int64
	OriginOrderNum int64
	Side           enum.OrderSide
	StockCode      string
	StockName      string
	Quantity       int64
	PriceKind      enum.PriceKind
	OrderCondition enum.OrderCondition
	Price          int64
}

// UnconcludedFromEvent builds the ledger record inserted for a received order
// or a confirmed modify.
func UnconcludedFromEvent(e TradeEvent) UnconcludedOrder {
	return UnconcludedOrder{
		DateTime:       e.DateTime,
		OrderNum:       e.OrderNum,
		OriginOrderNum: e.OriginOrderNum,
		Side:           e.Side,
		StockCode:      e.StockCode,
		StockName:      e.StockName,
		Quantity:       e.Qty,
		PriceKind:      e.PriceKind,
		OrderCondition: e.OrderCondition,
		Price:          e.Price,
	}
}

// PositionBalance is one instrument's holding plus derived P&L fields.
// Quantity bookkeeping is integer; only the display ratio is floating point.
type PositionBalance struct {
	StockCode        string
	StockName        string
	Quantity         int64
	AbleSellQuantity int64
	AverageUnitPrice int64
	ProfitUnitPrice  int64
	CurrentPrice     int64
	Profit           int64
	ProfitRatio      float64
	Evaluation       int64
}
