package store

import (
	"errors"

	"gorm.io/gorm"

	"main/internal/model"
	"main/internal/model/enum"
)

// Gorm is the PostgreSQL-backed Store. Enum columns hold the enum names, the
// way the operation tables have always been written.
type Gorm struct {
	db *gorm.DB
}

// NewGorm wraps a gorm handle and migrates the operation tables.
func NewGorm(db *gorm.DB) (*Gorm, error) {
	if db == nil {
		return nil, errors.New("store: nil db")
	}
	if err := db.AutoMigrate(
		&userRow{},
		&unconcludedRow{},
		&balanceRow{},
		&orderHistoryRow{},
		&conclusionHistoryRow{},
	); err != nil {
		return nil, err
	}
	return &Gorm{db: db}, nil
}

type userRow struct {
	Username string `gorm:"primaryKey;column:username"`
	Password string `gorm:"column:password"`
}

func (userRow) TableName() string { return "users" }

type unconcludedRow struct {
	OrderNum       int64  `gorm:"primaryKey;column:order_number"`
	DateTime       int64  `gorm:"column:date_time"`
	OriginOrderNum int64  `gorm:"column:origin_order_number"`
	OrderType      string `gorm:"column:order_type"`
	StockCode      string `gorm:"column:stock_code;index"`
	StockName      string `gorm:"column:stock_name"`
	Quantity       int64  `gorm:"column:quantity"`
	PriceType      string `gorm:"column:price_type"`
	OrderCondition string `gorm:"column:order_condition"`
	Price          int64  `gorm:"column:price"`
}

func (unconcludedRow) TableName() string { return "kr_unconcluded_order" }

type balanceRow struct {
	StockCode        string  `gorm:"primaryKey;column:stock_code"`
	StockName        string  `gorm:"column:stock_name"`
	Quantity         int64   `gorm:"column:quantity"`
	AbleSellQuantity int64   `gorm:"column:able_sell_quantity"`
	AverageUnitPrice int64   `gorm:"column:average_unit_price"`
	ProfitUnitPrice  int64   `gorm:"column:profit_unit_price"`
	CurrentPrice     int64   `gorm:"column:current_price"`
	Profit           int64   `gorm:"column:profit"`
	ProfitRatio      float64 `gorm:"column:profit_ratio"`
	Evaluation       int64   `gorm:"column:evaluation"`
}

func (balanceRow) TableName() string { return "kr_stock_balance" }

type orderHistoryRow struct {
	ID int64 `gorm:"primaryKey;autoIncrement;column:id"`
	historyColumns
}

func (orderHistoryRow) TableName() string { return "kr_order_history" }

type conclusionHistoryRow struct {
	ID int64 `gorm:"primaryKey;autoIncrement;column:id"`
	historyColumns
}

func (conclusionHistoryRow) TableName() string { return "kr_conclusion_history" }

type historyColumns struct {
	DateTime         int64  `gorm:"column:date_time"`
	OrderNum         int64  `gorm:"column:order_number"`
	OriginOrderNum   int64  `gorm:"column:origin_order_number"`
	ConclusionType   string `gorm:"column:conclusion_type"`
	OrderType        string `gorm:"column:order_type"`
	ModifyCancelType string `gorm:"column:modify_cancel_type"`
	StockCode        string `gorm:"column:stock_code;index"`
	StockName        string `gorm:"column:stock_name"`
	Quantity         int64  `gorm:"column:quantity"`
	PriceType        string `gorm:"column:price_type"`
	OrderCondition   string `gorm:"column:order_condition"`
	Price            int64  `gorm:"column:price"`
	TotalPrice       int64  `gorm:"column:total_price"`
	AveragePrice     int64  `gorm:"column:average_price"`
	AbleSellQuantity int64  `gorm:"column:able_sell_quantity"`
	BalanceQuantity  int64  `gorm:"column:balance_quantity"`
}

func historyFromEvent(e model.TradeEvent) historyColumns {
	return historyColumns{
		DateTime:         e.DateTime,
		OrderNum:         e.OrderNum,
		OriginOrderNum:   e.OriginOrderNum,
		ConclusionType:   e.Conclusion.String(),
		OrderType:        e.Side.String(),
		ModifyCancelType: e.ModifyCancel.String(),
		StockCode:        e.StockCode,
		StockName:        e.StockName,
		Quantity:         e.Qty,
		PriceType:        e.PriceKind.String(),
		OrderCondition:   e.OrderCondition.String(),
		Price:            e.Price,
		TotalPrice:       e.TotalPrice,
		AveragePrice:     e.AvgPrice,
		AbleSellQuantity: e.AbleSellQty,
		BalanceQuantity:  e.BalanceQty,
	}
}

func (g *Gorm) UserPassword(username string) (string, bool, error) {
	var row userRow
	err := g.db.Where("username = ?", username).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return row.Password, true, nil
}

func (g *Gorm) UpsertUnconcluded(o model.UnconcludedOrder) error {
	row := unconcludedRow{
		OrderNum:       o.OrderNum,
		DateTime:       o.DateTime,
		OriginOrderNum: o.OriginOrderNum,
		OrderType:      o.Side.String(),
		StockCode:      o.StockCode,
		StockName:      o.StockName,
		Quantity:       o.Quantity,
		PriceType:      o.PriceKind.String(),
		OrderCondition: o.OrderCondition.String(),
		Price:          o.Price,
	}
	return g.db.Save(&row).Error
}

func (g *Gorm) Unconcluded(orderNum int64) (model.UnconcludedOrder, bool, error) {
	var row unconcludedRow
	err := g.db.Where("order_number = ?", orderNum).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return model.UnconcludedOrder{}, false, nil
	}
	if err != nil {
		return model.UnconcludedOrder{}, false, err
	}
	return unconcludedFromRow(row), true, nil
}

func (g *Gorm) SetUnconcludedQuantity(orderNum, qty int64) error {
	return g.db.Model(&unconcludedRow{}).
		Where("order_number = ?", orderNum).
		Update("quantity", qty).Error
}

func (g *Gorm) DeleteUnconcluded(orderNum int64) error {
	return g.db.Where("order_number = ?", orderNum).Delete(&unconcludedRow{}).Error
}

func (g *Gorm) ListUnconcluded() ([]model.UnconcludedOrder, error) {
	var rows []unconcludedRow
	if err := g.db.Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]model.UnconcludedOrder, 0, len(rows))
	for _, row := range rows {
		out = append(out, unconcludedFromRow(row))
	}
	return out, nil
}

func (g *Gorm) Balance(stockCode string) (model.PositionBalance, bool, error) {
	var row balanceRow
	err := g.db.Where("stock_code = ?", stockCode).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return model.PositionBalance{}, false, nil
	}
	if err != nil {
		return model.PositionBalance{}, false, err
	}
	return model.PositionBalance(row), true, nil
}

func (g *Gorm) UpsertBalance(b model.PositionBalance) error {
	row := balanceRow(b)
	return g.db.Save(&row).Error
}

func (g *Gorm) DeleteBalance(stockCode string) error {
	return g.db.Where("stock_code = ?", stockCode).Delete(&balanceRow{}).Error
}

func (g *Gorm) ListBalances() ([]model.PositionBalance, error) {
	var rows []balanceRow
	if err := g.db.Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]model.PositionBalance, 0, len(rows))
	for _, row := range rows {
		out = append(out, model.PositionBalance(row))
	}
	return out, nil
}

func (g *Gorm) AppendOrderHistory(e model.TradeEvent) error {
	row := orderHistoryRow{historyColumns: historyFromEvent(e)}
	return g.db.Create(&row).Error
}

func (g *Gorm) AppendConclusionHistory(e model.TradeEvent) error {
	row := conclusionHistoryRow{historyColumns: historyFromEvent(e)}
	return g.db.Create(&row).Error
}

func unconcludedFromRow(row unconcludedRow) model.UnconcludedOrder {
	side, _ := enum.ParseOrderSide(row.OrderType)
	priceKind, _ := enum.ParsePriceKind(row.PriceType)
	condition, _ := enum.ParseOrderCondition(row.OrderCondition)
	return model.UnconcludedOrder{
		DateTime:       row.DateTime,
		OrderNum:       row.OrderNum,
		OriginOrderNum: row.OriginOrderNum,
		Side:           side,
		StockCode:      row.StockCode,
		StockName:      row.StockName,
		Quantity:       row.Quantity,
		PriceKind:      priceKind,
		OrderCondition: condition,
		Price:          row.Price,
	}
}

var _ Store = (*Gorm)(nil)
