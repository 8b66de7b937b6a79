package model

import "main/internal/model/enum"

// DepthLevels is the number of ask/bid rows the broker reports.
const DepthLevels = 10

// Tick is one live trade print for an instrument.
type Tick struct {
	StockCode string         `json:"stock_code"`
	DateTime  int64          `json:"date_time"`
	PriceFlag enum.PriceFlag `json:"single_price_flag"`
	Price     int64          `json:"price"`
	DayChange int64          `json:"day_changed"`
	Qty       int64          `json:"qty"`
	Volume    int64          `json:"vol"`
}

// DepthRow is one price level of the order book.
type DepthRow struct {
	Price  int64 `json:"price"`
	Volume int64 `json:"volume"`
}

// Depth is a ten-level order-book snapshot for an instrument.
type Depth struct {
	StockCode      string                `json:"stock_code"`
	DateTime       int64                 `json:"date_time"`
	Asks           [DepthLevels]DepthRow `json:"asks"`
	Bids           [DepthLevels]DepthRow `json:"bids"`
	TotalAskVolume int64                 `json:"total_ask_volume"`
	TotalBidVolume int64                 `json:"total_bid_volume"`
}
