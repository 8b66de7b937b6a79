package dispatch

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/yanun0323/logs"

	"main/internal/bus"
	"main/internal/execution"
	"main/internal/feed"
	"main/internal/gateway"
	"main/internal/ledger"
	"main/internal/model"
	"main/internal/model/enum"
	"main/internal/obs"
	"main/internal/protocol"
	"main/internal/store"
	"main/pkg/exception"
)

// SystemIdentity names the server's own subscriber entries in the feed
// multiplexers. It never maps to a session, so its feed requests get no ack
// and its deliveries are discarded.
const SystemIdentity = "system"

const (
	handshakeTimeout = 10 * time.Second
	closeFrame       = "CLOSE"
)

// Options sizes the dispatcher's bounded queues.
type Options struct {
	OutboundQueueSize int
	OrderQueueSize    int
	FeedQueueSize     int
}

func (o *Options) resolve() {
	if o.OutboundQueueSize <= 0 {
		o.OutboundQueueSize = 256
	}
	if o.OrderQueueSize <= 0 {
		o.OrderQueueSize = 128
	}
	if o.FeedQueueSize <= 0 {
		o.FeedQueueSize = 128
	}
}

type orderTask struct {
	username string
	req      protocol.OrderRequest
}

type feedTask struct {
	username string
	req      protocol.FeedRequest
}

// Dispatcher owns the session table and routes every inbound message to the
// single worker for its concern. Order submission and each feed kind's
// subscription changes run on their own serialized queue, so the broker never
// sees concurrent requests within one rate-limit class.
type Dispatcher struct {
	st      store.Store
	ledger  *ledger.Ledger
	broker  gateway.Broker
	sm      *execution.StateMachine
	metrics *obs.Metrics

	tick  *feed.Multiplexer[model.Tick]
	depth *feed.Multiplexer[model.Depth]

	orderQ    *bus.Queue[orderTask]
	tickReqQ  *bus.Queue[feedTask]
	depthReqQ *bus.Queue[feedTask]

	opt      Options
	upgrader websocket.Upgrader

	mu       sync.Mutex
	sessions map[string]*Session
}

// New wires the dispatcher to its collaborators and installs the broker
// callbacks. Run must be called before clients connect.
func New(st store.Store, lg *ledger.Ledger, broker gateway.Broker, metrics *obs.Metrics, opt Options) *Dispatcher {
	opt.resolve()

	d := &Dispatcher{
		st:        st,
		ledger:    lg,
		broker:    broker,
		metrics:   metrics,
		orderQ:    bus.NewQueue[orderTask](opt.OrderQueueSize),
		tickReqQ:  bus.NewQueue[feedTask](opt.FeedQueueSize),
		depthReqQ: bus.NewQueue[feedTask](opt.FeedQueueSize),
		opt:       opt,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(*http.Request) bool { return true },
		},
		sessions: make(map[string]*Session),
	}

	d.tick = feed.New("tick", tickUpstream{broker}, func(t model.Tick) ([]byte, error) {
		return protocol.Encode(protocol.KindTick, t)
	}, d.deliver)
	d.depth = feed.New("depth", depthUpstream{broker}, func(dp model.Depth) ([]byte, error) {
		return protocol.Encode(protocol.KindDepth, dp)
	}, d.deliver)

	d.sm = execution.New(lg, d.positionFeedRequest, d.broadcastTradeStatus)

	broker.SetTickHandler(d.onTick)
	broker.SetDepthHandler(d.onDepth)
	broker.SetTradeStatusHandler(d.onTradeStatus)
	return d
}

// StateMachine exposes the execution state machine, clock injection for tests.
func (d *Dispatcher) StateMachine() *execution.StateMachine {
	return d.sm
}

// Run drives the queue workers until the context ends, then closes every
// session.
func (d *Dispatcher) Run(ctx context.Context) {
	var wg sync.WaitGroup
	wg.Add(3)
	go func() {
		defer wg.Done()
		d.orderQ.Run(ctx, func(t orderTask) { d.handleOrderTask(ctx, t) })
	}()
	go func() {
		defer wg.Done()
		d.tickReqQ.Run(ctx, d.handleFeedTask)
	}()
	go func() {
		defer wg.Done()
		d.depthReqQ.Run(ctx, d.handleFeedTask)
	}()

	<-ctx.Done()
	wg.Wait()

	for _, s := range d.snapshotSessions() {
		d.closeSession(s, false)
	}
}

// Seed re-subscribes the tick feed for every held position under the system
// identity, so price updates resume after a restart.
func (d *Dispatcher) Seed() error {
	balances, err := d.ledger.ListBalances()
	if err != nil {
		return err
	}
	if len(balances) == 0 {
		return nil
	}

	codes := make([]string, 0, len(balances))
	for _, b := range balances {
		codes = append(codes, b.StockCode)
	}
	logs.Infof("seeding tick subscriptions for %d held positions", len(codes))
	return d.tickReqQ.TryPublish(feedTask{
		username: SystemIdentity,
		req: protocol.FeedRequest{
			Feed:       enum.FeedKindTick,
			SetStatus:  true,
			StockCodes: codes,
		},
	})
}

// HandleWS upgrades one HTTP request into a client session and blocks on its
// read pump until the session ends.
func (d *Dispatcher) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := d.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logs.Warnf("upgrade websocket, err: %v", err)
		return
	}

	s := newSession(conn, d.opt.OutboundQueueSize)
	if !d.authenticate(s) {
		_ = conn.Close()
		return
	}

	d.register(s)
	go s.writePump()
	d.readPump(s)
}

// authenticate reads the credential frame and checks it against the store.
// The reply is the bare handshake word, not an envelope.
func (d *Dispatcher) authenticate(s *Session) bool {
	s.setState(StateAuthenticating)
	_ = s.conn.SetReadDeadline(time.Now().Add(handshakeTimeout))
	defer s.conn.SetReadDeadline(time.Time{})

	_, raw, err := s.conn.ReadMessage()
	if err != nil {
		d.metrics.IncAuthFailure()
		return false
	}

	cred, err := protocol.DecodeCredentials(raw)
	if err != nil {
		d.failHandshake(s)
		return false
	}

	password, found, err := d.st.UserPassword(cred.Username)
	if err != nil {
		logs.Errorf("look up user %s, err: %v", cred.Username, err)
		d.failHandshake(s)
		return false
	}
	if !found || password != cred.Password {
		reason := exception.ErrAuthUnknownUser
		if found {
			reason = exception.ErrAuthBadCredentials
		}
		logs.Warnf("reject handshake for user %s, err: %v", cred.Username, reason)
		d.failHandshake(s)
		return false
	}

	if err := s.conn.WriteMessage(websocket.TextMessage, []byte(protocol.HandshakeSuccess)); err != nil {
		d.metrics.IncAuthFailure()
		return false
	}

	s.username = cred.Username
	return true
}

func (d *Dispatcher) failHandshake(s *Session) {
	d.metrics.IncAuthFailure()
	_ = s.conn.WriteMessage(websocket.TextMessage, []byte(protocol.HandshakeFail))
}

// register installs the session under its identity, evicting any session
// already bound to it. The old session is fully closed before the new one
// installs, so the identity is never live twice. Eviction and install are
// not one critical section (closeSession takes the lock itself), hence the
// re-check loop: a concurrent login for the same identity can slip in
// between the eviction and the install.
func (d *Dispatcher) register(s *Session) {
	for {
		d.mu.Lock()
		cur := d.sessions[s.username]
		if cur == nil || cur == s {
			d.sessions[s.username] = s
			s.setState(StateActive)
			d.mu.Unlock()
			break
		}
		d.mu.Unlock()

		logs.Warnf("evict session for user %s, replaced by a new connection", s.username)
		d.closeSession(cur, true)
	}

	d.metrics.IncSessionOpened()
	logs.Infof("session active, user: %s", s.username)
}

// closeSession runs the teardown sequence exactly once: transport first, feed
// subscriptions second, then the session table entry and the queued frames.
// Only after all of it does the identity become free again.
func (d *Dispatcher) closeSession(s *Session, evicted bool) {
	s.teardown.Do(func() {
		s.setState(StateClosing)
		_ = s.conn.Close()
		close(s.done)

		d.tick.RemoveIdentity(s.username)
		d.depth.RemoveIdentity(s.username)

		d.mu.Lock()
		if d.sessions[s.username] == s {
			delete(d.sessions, s.username)
		}
		d.mu.Unlock()

		s.drain()
		s.setState(StateClosed)

		d.metrics.IncSessionClosed()
		if evicted {
			d.metrics.IncSessionEvicted()
		}
		logs.Infof("session closed, user: %s, evicted: %t", s.username, evicted)
	})
}

// readPump decodes inbound frames and routes them until the connection drops
// or the client sends the close word.
func (d *Dispatcher) readPump(s *Session) {
	defer d.closeSession(s, false)
	for {
		_, raw, err := s.conn.ReadMessage()
		if err != nil {
			return
		}
		if string(raw) == closeFrame {
			return
		}
		d.route(s, raw)
	}
}

// route parses one frame and hands it to the worker for its kind. A malformed
// frame costs only itself, the session stays up.
func (d *Dispatcher) route(s *Session, raw []byte) {
	msg, err := protocol.Decode(raw)
	if err != nil {
		d.metrics.IncProtocolError()
		logs.Warnf("drop malformed frame from user %s", s.username)
		return
	}

	switch msg.Kind {
	case protocol.KindOrder:
		req, err := protocol.DecodePayload[protocol.OrderRequest](msg)
		if err != nil {
			d.metrics.IncProtocolError()
			logs.Warnf("drop malformed order payload from user %s", s.username)
			return
		}
		if err := d.orderQ.TryPublish(orderTask{username: s.username, req: req}); err != nil {
			d.sendTo(s.username, protocol.KindOrder, protocol.OrderResponse{
				OK:     false,
				Reason: exception.ErrSessionOrderQueueFull.Error(),
			})
		}
	case protocol.KindFeedSubscribe:
		req, err := protocol.DecodePayload[protocol.FeedRequest](msg)
		if err != nil {
			d.metrics.IncProtocolError()
			logs.Warnf("drop malformed feed payload from user %s", s.username)
			return
		}
		q := d.tickReqQ
		if req.Feed == enum.FeedKindDepth {
			q = d.depthReqQ
		}
		if err := q.TryPublish(feedTask{username: s.username, req: req}); err != nil {
			d.sendTo(s.username, protocol.KindFeedSubscribe, protocol.FeedResponse{
				Feed:       req.Feed,
				SetStatus:  req.SetStatus,
				StockCodes: req.StockCodes,
				OK:         false,
				Reason:     exception.ErrSessionQueueFull.Error(),
			})
		}
	default:
		// tick, depth and trade_status are server-to-client only.
		d.metrics.IncProtocolError()
		logs.Warnf("drop inbound %s frame from user %s", msg.Kind, s.username)
	}
}

// handleOrderTask runs on the single order worker. Every task gets exactly
// one ack, success or not.
func (d *Dispatcher) handleOrderTask(ctx context.Context, t orderTask) {
	resp := protocol.OrderResponse{OK: true}

	cmd, err := orderCommand(t.req)
	if err == nil {
		started := time.Now()
		resp.OrderNum, err = d.broker.Submit(ctx, cmd)
		d.metrics.ObserveOrderSubmit(time.Since(started))
	}
	if err != nil {
		resp.OK = false
		resp.Reason = err.Error()
		logs.Warnf("submit %s order for user %s, stock: %s, err: %v",
			t.req.Action, t.username, t.req.StockCode, err)
	}

	d.sendTo(t.username, protocol.KindOrder, resp)
}

func orderCommand(req protocol.OrderRequest) (gateway.OrderCommand, error) {
	if !req.Action.IsAvailable() {
		return gateway.OrderCommand{}, exception.ErrGatewayUnsupportedAction
	}
	if req.Action.IsModifyOrCancel() && req.OriginOrderNum == 0 {
		return gateway.OrderCommand{}, exception.ErrSessionProtocol
	}
	return gateway.OrderCommand{
		Action:         req.Action,
		StockCode:      req.StockCode,
		Qty:            req.Qty,
		OrderCondition: req.OrderCondition,
		PriceKind:      req.PriceKind,
		Price:          req.Price,
		OriginOrderNum: req.OriginOrderNum,
	}, nil
}

// handleFeedTask runs on one feed worker, per feed kind. System requests get
// no ack.
func (d *Dispatcher) handleFeedTask(t feedTask) {
	var err error
	switch t.req.Feed {
	case enum.FeedKindTick:
		err = d.tick.SetSubscription(t.username, t.req.StockCodes, t.req.SetStatus)
	case enum.FeedKindDepth:
		err = d.depth.SetSubscription(t.username, t.req.StockCodes, t.req.SetStatus)
	default:
		err = exception.ErrFeedInvalidRequest
	}

	if t.username == SystemIdentity {
		if err != nil {
			logs.Errorf("change system feed subscription, stocks: %v, err: %v", t.req.StockCodes, err)
		}
		return
	}

	resp := protocol.FeedResponse{
		Feed:       t.req.Feed,
		SetStatus:  t.req.SetStatus,
		StockCodes: t.req.StockCodes,
		OK:         err == nil,
	}
	if err != nil {
		resp.Reason = err.Error()
	}
	d.sendTo(t.username, protocol.KindFeedSubscribe, resp)
}

// positionFeedRequest is the execution state machine's hook: concluded trades
// adjust the system identity's tick subscription for the traded instrument.
func (d *Dispatcher) positionFeedRequest(req execution.FeedRequest) {
	err := d.tickReqQ.TryPublish(feedTask{
		username: SystemIdentity,
		req: protocol.FeedRequest{
			Feed:       enum.FeedKindTick,
			SetStatus:  req.SetStatus,
			StockCodes: []string{req.StockCode},
		},
	})
	if err != nil {
		logs.Errorf("queue position feed request, stock: %s, err: %v", req.StockCode, err)
	}
}

// broadcastTradeStatus fans one execution event to every active session. The
// frame is encoded once.
func (d *Dispatcher) broadcastTradeStatus(e model.TradeEvent) {
	payload, err := protocol.Encode(protocol.KindTradeStatus, e)
	if err != nil {
		logs.Errorf("encode trade status, order: %d, err: %v", e.OrderNum, err)
		return
	}

	d.metrics.IncBroadcast()
	for _, s := range d.snapshotSessions() {
		if err := s.Enqueue(payload); err != nil {
			d.metrics.IncOutboundDropped()
		}
	}
}

// deliver is the multiplexers' outbound hook. Frames for the system identity
// or a gone session are dropped, never blocked on.
func (d *Dispatcher) deliver(identity string, payload []byte) {
	if identity == SystemIdentity {
		return
	}

	d.mu.Lock()
	s := d.sessions[identity]
	d.mu.Unlock()

	if s == nil || s.Enqueue(payload) != nil {
		d.metrics.IncOutboundDropped()
	}
}

func (d *Dispatcher) sendTo(identity string, kind protocol.Kind, payload any) {
	raw, err := protocol.Encode(kind, payload)
	if err != nil {
		logs.Errorf("encode %s frame for user %s, err: %v", kind, identity, err)
		return
	}
	d.deliver(identity, raw)
}

func (d *Dispatcher) snapshotSessions() []*Session {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]*Session, 0, len(d.sessions))
	for _, s := range d.sessions {
		out = append(out, s)
	}
	return out
}

// onTick runs on the broker callback goroutine. Held positions track the
// latest trade price before subscribers see the tick.
func (d *Dispatcher) onTick(t model.Tick) {
	if err := d.ledger.UpdateCurrentPrice(t.StockCode, t.Price); err != nil {
		logs.Errorf("update current price, stock: %s, err: %v", t.StockCode, err)
	}
	d.tick.OnUpstreamEvent(t.StockCode, t)
}

func (d *Dispatcher) onDepth(dp model.Depth) {
	d.depth.OnUpstreamEvent(dp.StockCode, dp)
}

func (d *Dispatcher) onTradeStatus(e model.TradeEvent) {
	if err := d.sm.Apply(e); err != nil {
		logs.Errorf("apply trade status, order: %d, err: %v", e.OrderNum, err)
	}
}

type tickUpstream struct{ broker gateway.Broker }

func (u tickUpstream) Subscribe(stockCode string) error   { return u.broker.SubscribeTick(stockCode) }
func (u tickUpstream) Unsubscribe(stockCode string) error { return u.broker.UnsubscribeTick(stockCode) }

type depthUpstream struct{ broker gateway.Broker }

func (u depthUpstream) Subscribe(stockCode string) error { return u.broker.SubscribeDepth(stockCode) }
func (u depthUpstream) Unsubscribe(stockCode string) error {
	return u.broker.UnsubscribeDepth(stockCode)
}
