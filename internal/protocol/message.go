package protocol

import (
	"encoding/json"

	"github.com/bytedance/sonic"

	"main/internal/model/enum"
	"main/pkg/exception"
)

// Handshake replies sent before the session enters the message protocol.
const (
	HandshakeSuccess = "SUCCESS"
	HandshakeFail    = "FAIL"
)

// AllInstruments is the sentinel instrument list entry meaning "every
// instrument this identity currently subscribes to".
const AllInstruments = "ALL"

// Kind discriminates wire messages. The set is closed; unknown names fail to
// decode instead of falling through.
type Kind uint8

const (
	_kind_beg Kind = iota
	KindOrder
	KindFeedSubscribe
	KindTick
	KindDepth
	KindTradeStatus
	_kind_end
)

func (k Kind) IsAvailable() bool {
	return k > _kind_beg && k < _kind_end
}

func (k Kind) String() string {
	switch k {
	case KindOrder:
		return "order"
	case KindFeedSubscribe:
		return "feed_subscribe"
	case KindTick:
		return "tick"
	case KindDepth:
		return "depth"
	case KindTradeStatus:
		return "trade_status"
	default:
		return "unknown"
	}
}

func (k Kind) MarshalJSON() ([]byte, error) {
	return []byte(`"` + k.String() + `"`), nil
}

func (k *Kind) UnmarshalJSON(data []byte) error {
	if len(data) < 2 || data[0] != '"' || data[len(data)-1] != '"' {
		return exception.ErrSessionProtocol
	}
	parsed, ok := ParseKind(string(data[1 : len(data)-1]))
	if !ok {
		return exception.ErrSessionProtocol
	}
	*k = parsed
	return nil
}

func ParseKind(name string) (Kind, bool) {
	switch name {
	case "order":
		return KindOrder, true
	case "feed_subscribe":
		return KindFeedSubscribe, true
	case "tick":
		return KindTick, true
	case "depth":
		return KindDepth, true
	case "trade_status":
		return KindTradeStatus, true
	default:
		return 0, false
	}
}

// Message is the envelope for every post-handshake frame.
type Message struct {
	Kind    Kind            `json:"kind"`
	Payload json.RawMessage `json:"payload"`
}

// Credentials is the first frame a client sends.
type Credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// OrderRequest is the inbound order command payload.
type OrderRequest struct {
	Action         enum.OrderAction    `json:"action"`
	StockCode      string              `json:"stock_code"`
	Qty            int64               `json:"qty"`
	OrderCondition enum.OrderCondition `json:"e_order_condition"`
	PriceKind      enum.PriceKind      `json:"e_price_type"`
	Price          int64               `json:"price"`
	OriginOrderNum int64               `json:"origin_order_num,omitempty"`
}

// OrderResponse acknowledges one order command.
type OrderResponse struct {
	OrderNum int64  `json:"order_num"`
	OK       bool   `json:"ok"`
	Reason   string `json:"reason,omitempty"`
}

// FeedRequest is the inbound feed-subscription payload.
type FeedRequest struct {
	Feed       enum.FeedKind `json:"feed"`
	SetStatus  bool          `json:"set_status"`
	StockCodes []string      `json:"stock_code_list"`
}

// FeedResponse echoes the request back with the outcome.
type FeedResponse struct {
	Feed       enum.FeedKind `json:"feed"`
	SetStatus  bool          `json:"set_status"`
	StockCodes []string      `json:"stock_code_list"`
	OK         bool          `json:"ok"`
	Reason     string        `json:"reason,omitempty"`
}

// Encode wraps a payload in the envelope and marshals it.
func Encode(kind Kind, payload any) ([]byte, error) {
	raw, err := sonic.ConfigFastest.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return sonic.ConfigFastest.Marshal(Message{Kind: kind, Payload: raw})
}

// Decode parses an envelope. Malformed frames map to ErrSessionProtocol so
// the caller can drop the single message and keep the session alive.
func Decode(data []byte) (Message, error) {
	var m Message
	if err := sonic.Unmarshal(data, &m); err != nil {
		return Message{}, exception.ErrSessionProtocol
	}
	if !m.Kind.IsAvailable() {
		return Message{}, exception.ErrSessionProtocol
	}
	return m, nil
}

// DecodePayload parses the payload of an envelope into a concrete type.
func DecodePayload[T any](m Message) (T, error) {
	var v T
	if err := sonic.Unmarshal(m.Payload, &v); err != nil {
		return v, exception.ErrSessionProtocol
	}
	return v, nil
}

// DecodeCredentials parses the handshake frame.
func DecodeCredentials(data []byte) (Credentials, error) {
	var c Credentials
	if err := sonic.Unmarshal(data, &c); err != nil {
		return Credentials{}, exception.ErrSessionProtocol
	}
	if c.Username == "" {
		return Credentials{}, exception.ErrSessionProtocol
	}
	return c, nil
}
