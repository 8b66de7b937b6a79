package enum

// OrderSide sell, buy. Codes follow the broker terminal ("1" sell, "2" buy).
type OrderSide uint8

const (
	_order_side_beg OrderSide = iota
	OrderSideSell
	OrderSideBuy
	_order_side_end
)

func (s OrderSide) IsAvailable() bool {
	return s > _order_side_beg && s < _order_side_end
}

func (s OrderSide) String() string {
	switch s {
	case OrderSideSell:
		return "SELL"
	case OrderSideBuy:
		return "BUY"
	default:
		return "UNKNOWN"
	}
}

// Code returns the broker wire code.
func (s OrderSide) Code() string {
	switch s {
	case OrderSideSell:
		return "1"
	case OrderSideBuy:
		return "2"
	default:
		return ""
	}
}

func (s OrderSide) MarshalJSON() ([]byte, error) {
	return marshalName(s.String())
}

func (s *OrderSide) UnmarshalJSON(data []byte) error {
	name, err := unmarshalName(data)
	if err != nil {
		return err
	}
	parsed, ok := ParseOrderSide(name)
	if !ok {
		return errUnknownEnumName
	}
	*s = parsed
	return nil
}

func ParseOrderSide(name string) (OrderSide, bool) {
	switch name {
	case "SELL":
		return OrderSideSell, true
	case "BUY":
		return OrderSideBuy, true
	default:
		return 0, false
	}
}

// OrderAction is the client-side order command verb.
type OrderAction uint8

const (
	_order_action_beg OrderAction = iota
	OrderActionBuy
	OrderActionSell
	OrderActionModifyType
	OrderActionModifyPrice
	OrderActionCancel
	_order_action_end
)

func (a OrderAction) IsAvailable() bool {
	return a > _order_action_beg && a < _order_action_end
}

func (a OrderAction) String() string {
	switch a {
	case OrderActionBuy:
		return "buy"
	case OrderActionSell:
		return "sell"
	case OrderActionModifyType:
		return "modify_type"
	case OrderActionModifyPrice:
		return "modify_price"
	case OrderActionCancel:
		return "cancel"
	default:
		return "unknown"
	}
}

func (a OrderAction) MarshalJSON() ([]byte, error) {
	return marshalName(a.String())
}

func (a *OrderAction) UnmarshalJSON(data []byte) error {
	name, err := unmarshalName(data)
	if err != nil {
		return err
	}
	parsed, ok := ParseOrderAction(name)
	if !ok {
		return errUnknownEnumName
	}
	*a = parsed
	return nil
}

func ParseOrderAction(name string) (OrderAction, bool) {
	switch name {
	case "buy":
		return OrderActionBuy, true
	case "sell":
		return OrderActionSell, true
	case "modify_type":
		return OrderActionModifyType, true
	case "modify_price":
		return OrderActionModifyPrice, true
	case "cancel":
		return OrderActionCancel, true
	default:
		return 0, false
	}
}

// IsModifyOrCancel reports whether the action targets an origin order number.
func (a OrderAction) IsModifyOrCancel() bool {
	switch a {
	case OrderActionModifyType, OrderActionModifyPrice, OrderActionCancel:
		return true
	default:
		return false
	}
}

// OrderCondition none, IOC, FOK. Codes "0", "1", "2".
type OrderCondition uint8

const (
	_order_condition_beg OrderCondition = iota
	OrderConditionNone
	OrderConditionIOC
	OrderConditionFOK
	_order_condition_end
)

func (c OrderCondition) IsAvailable() bool {
	return c > _order_condition_beg && c < _order_condition_end
}

func (c OrderCondition) String() string {
	switch c {
	case OrderConditionNone:
		return "NONE"
	case OrderConditionIOC:
		return "IOC"
	case OrderConditionFOK:
		return "FOK"
	default:
		return "UNKNOWN"
	}
}

// Code returns the broker wire code.
func (c OrderCondition) Code() string {
	switch c {
	case OrderConditionNone:
		return "0"
	case OrderConditionIOC:
		return "1"
	case OrderConditionFOK:
		return "2"
	default:
		return ""
	}
}

func (c OrderCondition) MarshalJSON() ([]byte, error) {
	return marshalName(c.String())
}

func (c *OrderCondition) UnmarshalJSON(data []byte) error {
	name, err := unmarshalName(data)
	if err != nil {
		return err
	}
	parsed, ok := ParseOrderCondition(name)
	if !ok {
		return errUnknownEnumName
	}
	*c = parsed
	return nil
}

func ParseOrderCondition(name string) (OrderCondition, bool) {
	switch name {
	case "NONE":
		return OrderConditionNone, true
	case "IOC":
		return OrderConditionIOC, true
	case "FOK":
		return OrderConditionFOK, true
	default:
		return 0, false
	}
}

// PriceKind none, normal, market. Codes "00", "01", "03".
type PriceKind uint8

const (
	_price_kind_beg PriceKind = iota
	PriceKindNone
	PriceKindNormal
	PriceKindMarket
	_price_kind_end
)

func (k PriceKind) IsAvailable() bool {
	return k > _price_kind_beg && k < _price_kind_end
}

func (k PriceKind) String() string {
	switch k {
	case PriceKindNone:
		return "NONE"
	case PriceKindNormal:
		return "NORMAL"
	case PriceKindMarket:
		return "MARKET"
	default:
		return "UNKNOWN"
	}
}

// Code returns the broker wire code.
func (k PriceKind) Code() string {
	switch k {
	case PriceKindNone:
		return "00"
	case PriceKindNormal:
		return "01"
	case PriceKindMarket:
		return "03"
	default:
		return ""
	}
}

func (k PriceKind) MarshalJSON() ([]byte, error) {
	return marshalName(k.String())
}

func (k *PriceKind) UnmarshalJSON(data []byte) error {
	name, err := unmarshalName(data)
	if err != nil {
		return err
	}
	parsed, ok := ParsePriceKind(name)
	if !ok {
		return errUnknownEnumName
	}
	*k = parsed
	return nil
}

func ParsePriceKind(name string) (PriceKind, bool) {
	switch name {
	case "NONE":
		return PriceKindNone, true
	case "NORMAL":
		return PriceKindNormal, true
	case "MARKET":
		return PriceKindMarket, true
	default:
		return 0, false
	}
}
