package enum

// PriceFlag marks whether a tick is a projected single-price quote or an
// intraday trade.
type PriceFlag uint8

const (
	_price_flag_beg PriceFlag = iota
	PriceFlagSinglePrice
	PriceFlagNormal
	_price_flag_end
)

func (f PriceFlag) IsAvailable() bool {
	return f > _price_flag_beg && f < _price_flag_end
}

func (f PriceFlag) String() string {
	switch f {
	case PriceFlagSinglePrice:
		return "SINGLE_PRICE"
	case PriceFlagNormal:
		return "NORMAL"
	default:
		return "UNKNOWN"
	}
}

func (f PriceFlag) MarshalJSON() ([]byte, error) {
	return marshalName(f.String())
}

func (f *PriceFlag) UnmarshalJSON(data []byte) error {
	name, err := unmarshalName(data)
	if err != nil {
		return err
	}
	parsed, ok := ParsePriceFlag(name)
	if !ok {
		return errUnknownEnumName
	}
	*f = parsed
	return nil
}

func ParsePriceFlag(name string) (PriceFlag, bool) {
	switch name {
	case "SINGLE_PRICE":
		return PriceFlagSinglePrice, true
	case "NORMAL":
		return PriceFlagNormal, true
	default:
		return 0, false
	}
}

// FeedKind selects which live feed a subscription request targets.
type FeedKind uint8

const (
	_feed_kind_beg FeedKind = iota
	FeedKindTick
	FeedKindDepth
	_feed_kind_end
)

func (k FeedKind) IsAvailable() bool {
	return k > _feed_kind_beg && k < _feed_kind_end
}

func (k FeedKind) String() string {
	switch k {
	case FeedKindTick:
		return "tick"
	case FeedKindDepth:
		return "depth"
	default:
		return "unknown"
	}
}

func (k FeedKind) MarshalJSON() ([]byte, error) {
	return marshalName(k.String())
}

func (k *FeedKind) UnmarshalJSON(data []byte) error {
	name, err := unmarshalName(data)
	if err != nil {
		return err
	}
	parsed, ok := ParseFeedKind(name)
	if !ok {
		return errUnknownEnumName
	}
	*k = parsed
	return nil
}

func ParseFeedKind(name string) (FeedKind, bool) {
	switch name {
	case "tick":
		return FeedKindTick, true
	case "depth":
		return FeedKindDepth, true
	default:
		return 0, false
	}
}
