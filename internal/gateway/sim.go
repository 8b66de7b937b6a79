package gateway

import (
	"context"
	"sync"

	"main/internal/model"
	"main/pkg/exception"
)

// SimConfig controls the simulated broker behavior.
type SimConfig struct {
	// Quota per limit class; 0 means unlimited.
	TradeQuota     int
	SubscribeQuota int
	// NextOrderNum seeds the order number sequence. Optional; default 1000.
	NextOrderNum int64
}

// Sim is an in-process broker used by tests and paper runs. Order numbers are
// assigned from a sequence; execution events are injected by the test through
// the Emit methods.
type Sim struct {
	mu  sync.Mutex
	cfg SimConfig

	nextOrderNum int64
	tradeUsed    int
	subUsed      int

	commands     []OrderCommand
	tickSubs     map[string]bool
	depthSubs    map[string]bool
	failNext     bool
	disconnected bool

	onTick        func(model.Tick)
	onDepth       func(model.Depth)
	onTradeStatus func(model.TradeEvent)
}

// NewSim creates a simulated broker.
func NewSim(cfg SimConfig) *Sim {
	if cfg.NextOrderNum == 0 {
		cfg.NextOrderNum = 1000
	}
	return &Sim{
		cfg:          cfg,
		nextOrderNum: cfg.NextOrderNum,
		tickSubs:     make(map[string]bool),
		depthSubs:    make(map[string]bool),
	}
}

// FailNextSubmit makes the next Submit report a gateway failure.
func (s *Sim) FailNextSubmit() {
	s.mu.Lock()
	s.failNext = true
	s.mu.Unlock()
}

// SetDisconnected simulates the broker terminal dropping its link. While set,
// every request fails without consuming quota.
func (s *Sim) SetDisconnected(down bool) {
	s.mu.Lock()
	s.disconnected = down
	s.mu.Unlock()
}

// Submit assigns the next order number, or fails when the trade quota is
// spent or a failure was scripted.
func (s *Sim) Submit(ctx context.Context, cmd OrderCommand) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.disconnected {
		return 0, exception.ErrGatewayDisconnected
	}
	if !cmd.Action.IsAvailable() {
		return 0, exception.ErrGatewayUnsupportedAction
	}
	if s.failNext {
		s.failNext = false
		return 0, exception.ErrGatewayRequestFailed
	}
	if s.cfg.TradeQuota > 0 && s.tradeUsed >= s.cfg.TradeQuota {
		return 0, exception.ErrGatewayQuotaExhausted
	}
	s.tradeUsed++
	s.commands = append(s.commands, cmd)
	num := s.nextOrderNum
	s.nextOrderNum++
	return num, nil
}

func (s *Sim) SubscribeTick(stockCode string) error {
	return s.subscribe(s.tickSubs, stockCode)
}

func (s *Sim) UnsubscribeTick(stockCode string) error {
	s.mu.Lock()
	delete(s.tickSubs, stockCode)
	s.mu.Unlock()
	return nil
}

func (s *Sim) SubscribeDepth(stockCode string) error {
	return s.subscribe(s.depthSubs, stockCode)
}

func (s *Sim) UnsubscribeDepth(stockCode string) error {
	s.mu.Lock()
	delete(s.depthSubs, stockCode)
	s.mu.Unlock()
	return nil
}

func (s *Sim) subscribe(set map[string]bool, stockCode string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.disconnected {
		return exception.ErrGatewayDisconnected
	}
	if s.cfg.SubscribeQuota > 0 && s.subUsed >= s.cfg.SubscribeQuota {
		return exception.ErrFeedQuotaExhausted
	}
	if !set[stockCode] {
		s.subUsed++
		set[stockCode] = true
	}
	return nil
}

func (s *Sim) RemainCount(class LimitClass) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch class {
	case LimitTrade:
		if s.cfg.TradeQuota <= 0 {
			return int(^uint(0) >> 1)
		}
		return s.cfg.TradeQuota - s.tradeUsed
	case LimitSubscribe:
		if s.cfg.SubscribeQuota <= 0 {
			return int(^uint(0) >> 1)
		}
		return s.cfg.SubscribeQuota - s.subUsed
	default:
		return int(^uint(0) >> 1)
	}
}

func (s *Sim) SetTickHandler(fn func(model.Tick)) {
	s.mu.Lock()
	s.onTick = fn
	s.mu.Unlock()
}

func (s *Sim) SetDepthHandler(fn func(model.Depth)) {
	s.mu.Lock()
	s.onDepth = fn
	s.mu.Unlock()
}

func (s *Sim) SetTradeStatusHandler(fn func(model.TradeEvent)) {
	s.mu.Lock()
	s.onTradeStatus = fn
	s.mu.Unlock()
}

// EmitTick delivers a tick as the broker callback would.
func (s *Sim) EmitTick(t model.Tick) {
	s.mu.Lock()
	fn := s.onTick
	s.mu.Unlock()
	if fn != nil {
		fn(t)
	}
}

// EmitDepth delivers a depth snapshot as the broker callback would.
func (s *Sim) EmitDepth(d model.Depth) {
	s.mu.Lock()
	fn := s.onDepth
	s.mu.Unlock()
	if fn != nil {
		fn(d)
	}
}

// EmitTradeStatus delivers an execution event as the broker callback would.
func (s *Sim) EmitTradeStatus(e model.TradeEvent) {
	s.mu.Lock()
	fn := s.onTradeStatus
	s.mu.Unlock()
	if fn != nil {
		fn(e)
	}
}

// Commands returns the submitted order commands in arrival order.
func (s *Sim) Commands() []OrderCommand {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]OrderCommand, len(s.commands))
	copy(out, s.commands)
	return out
}

// TickSubscribed reports whether the tick feed is open for an instrument.
func (s *Sim) TickSubscribed(stockCode string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tickSubs[stockCode]
}

// DepthSubscribed reports whether the depth feed is open for an instrument.
func (s *Sim) DepthSubscribed(stockCode string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.depthSubs[stockCode]
}

var _ Broker = (*Sim)(nil)
