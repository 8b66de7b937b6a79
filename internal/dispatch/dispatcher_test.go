package dispatch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"main/internal/gateway"
	"main/internal/ledger"
	"main/internal/model"
	"main/internal/model/enum"
	"main/internal/obs"
	"main/internal/protocol"
	"main/internal/store"
)

type testServer struct {
	dispatcher *Dispatcher
	broker     *gateway.Sim
	metrics    *obs.Metrics
	store      *store.Memory
	url        string
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	st := store.NewMemory()
	st.PutUser("alice", "secret")
	st.PutUser("bob", "hunter2")

	broker := gateway.NewSim(gateway.SimConfig{})
	metrics := obs.NewMetrics()
	d := New(st, ledger.New(st), broker, metrics, Options{})

	ctx, cancel := context.WithCancel(context.Background())
	go d.Run(ctx)

	server := httptest.NewServer(http.HandlerFunc(d.HandleWS))
	t.Cleanup(func() {
		server.Close()
		cancel()
	})

	return &testServer{
		dispatcher: d,
		broker:     broker,
		metrics:    metrics,
		store:      st,
		url:        "ws" + strings.TrimPrefix(server.URL, "http"),
	}
}

type testClient struct {
	t    *testing.T
	conn *websocket.Conn
}

// rawDial opens a transport and completes the handshake without test
// assertions, so several goroutines can race logins for one identity.
func (ts *testServer) rawDial(username, password string) (*websocket.Conn, error) {
	conn, _, err := websocket.DefaultDialer.Dial(ts.url, nil)
	if err != nil {
		return nil, err
	}
	if err := conn.WriteJSON(protocol.Credentials{Username: username, Password: password}); err != nil {
		_ = conn.Close()
		return nil, err
	}
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, _, err := conn.ReadMessage(); err != nil {
		_ = conn.Close()
		return nil, err
	}
	return conn, nil
}

func (ts *testServer) dial(t *testing.T, username, password string) (*testClient, string) {
	t.Helper()

	conn, _, err := websocket.DefaultDialer.Dial(ts.url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	// Credentials are a bare object, not an envelope.
	require.NoError(t, conn.WriteJSON(protocol.Credentials{Username: username, Password: password}))

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, reply, err := conn.ReadMessage()
	require.NoError(t, err)
	return &testClient{t: t, conn: conn}, string(reply)
}

func (c *testClient) send(kind protocol.Kind, payload any) {
	c.t.Helper()
	raw, err := protocol.Encode(kind, payload)
	require.NoError(c.t, err)
	require.NoError(c.t, c.conn.WriteMessage(websocket.TextMessage, raw))
}

// expect reads frames until one of the wanted kind arrives. Other kinds,
// stray feed events for example, are skipped.
func (c *testClient) expect(kind protocol.Kind) protocol.Message {
	c.t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for {
		_ = c.conn.SetReadDeadline(deadline)
		_, raw, err := c.conn.ReadMessage()
		require.NoError(c.t, err)
		msg, err := protocol.Decode(raw)
		require.NoError(c.t, err)
		if msg.Kind == kind {
			return msg
		}
	}
}

func TestAuthRejectsBadCredentials(t *testing.T) {
	ts := newTestServer(t)

	_, reply := ts.dial(t, "alice", "wrong")
	require.Equal(t, protocol.HandshakeFail, reply)

	snap := ts.metrics.Snapshot()
	require.Equal(t, uint64(1), snap.AuthFailures)
}

func TestOrderRoundTrip(t *testing.T) {
	ts := newTestServer(t)

	c, reply := ts.dial(t, "alice", "secret")
	require.Equal(t, protocol.HandshakeSuccess, reply)

	c.send(protocol.KindOrder, protocol.OrderRequest{
		Action:         enum.OrderActionBuy,
		StockCode:      "005930",
		Qty:            10,
		OrderCondition: enum.OrderConditionNone,
		PriceKind:      enum.PriceKindNormal,
		Price:          70000,
	})

	msg := c.expect(protocol.KindOrder)
	resp, err := protocol.DecodePayload[protocol.OrderResponse](msg)
	require.NoError(t, err)
	require.True(t, resp.OK)
	require.EqualValues(t, 1000, resp.OrderNum)

	cmds := ts.broker.Commands()
	require.Len(t, cmds, 1)
	require.Equal(t, "005930", cmds[0].StockCode)
	require.Equal(t, enum.OrderActionBuy, cmds[0].Action)
}

func TestOrderFailureStillAcks(t *testing.T) {
	ts := newTestServer(t)

	c, _ := ts.dial(t, "alice", "secret")
	ts.broker.FailNextSubmit()

	c.send(protocol.KindOrder, protocol.OrderRequest{
		Action:         enum.OrderActionBuy,
		StockCode:      "005930",
		Qty:            1,
		OrderCondition: enum.OrderConditionNone,
		PriceKind:      enum.PriceKindMarket,
	})

	msg := c.expect(protocol.KindOrder)
	resp, err := protocol.DecodePayload[protocol.OrderResponse](msg)
	require.NoError(t, err)
	require.False(t, resp.OK)
	require.NotEmpty(t, resp.Reason)
}

func TestModifyWithoutOriginRejected(t *testing.T) {
	ts := newTestServer(t)

	c, _ := ts.dial(t, "alice", "secret")
	c.send(protocol.KindOrder, protocol.OrderRequest{
		Action:         enum.OrderActionCancel,
		StockCode:      "005930",
		Qty:            1,
		OrderCondition: enum.OrderConditionNone,
		PriceKind:      enum.PriceKindNone,
	})

	msg := c.expect(protocol.KindOrder)
	resp, err := protocol.DecodePayload[protocol.OrderResponse](msg)
	require.NoError(t, err)
	require.False(t, resp.OK)
	require.Empty(t, ts.broker.Commands())
}

func TestFeedSubscribeAndTickDelivery(t *testing.T) {
	ts := newTestServer(t)

	c, _ := ts.dial(t, "alice", "secret")
	c.send(protocol.KindFeedSubscribe, protocol.FeedRequest{
		Feed:       enum.FeedKindTick,
		SetStatus:  true,
		StockCodes: []string{"005930"},
	})

	msg := c.expect(protocol.KindFeedSubscribe)
	resp, err := protocol.DecodePayload[protocol.FeedResponse](msg)
	require.NoError(t, err)
	require.True(t, resp.OK)
	require.True(t, ts.broker.TickSubscribed("005930"))

	ts.broker.EmitTick(model.Tick{StockCode: "005930", PriceFlag: enum.PriceFlagNormal, Price: 70100, Qty: 5})

	tickMsg := c.expect(protocol.KindTick)
	tick, err := protocol.DecodePayload[model.Tick](tickMsg)
	require.NoError(t, err)
	require.EqualValues(t, 70100, tick.Price)

	// Unsubscribe closes the upstream registration.
	c.send(protocol.KindFeedSubscribe, protocol.FeedRequest{
		Feed:       enum.FeedKindTick,
		SetStatus:  false,
		StockCodes: []string{"005930"},
	})
	c.expect(protocol.KindFeedSubscribe)
	require.False(t, ts.broker.TickSubscribed("005930"))
}

func TestMalformedFrameKeepsSession(t *testing.T) {
	ts := newTestServer(t)

	c, _ := ts.dial(t, "alice", "secret")
	require.NoError(t, c.conn.WriteMessage(websocket.TextMessage, []byte("not a frame")))

	// The session must survive: a well-formed order still round-trips.
	c.send(protocol.KindOrder, protocol.OrderRequest{
		Action:         enum.OrderActionBuy,
		StockCode:      "005930",
		Qty:            1,
		OrderCondition: enum.OrderConditionNone,
		PriceKind:      enum.PriceKindMarket,
	})
	msg := c.expect(protocol.KindOrder)
	resp, err := protocol.DecodePayload[protocol.OrderResponse](msg)
	require.NoError(t, err)
	require.True(t, resp.OK)

	snap := ts.metrics.Snapshot()
	require.Equal(t, uint64(1), snap.ProtocolErrors)
}

func TestDuplicateIdentityEviction(t *testing.T) {
	ts := newTestServer(t)

	first, reply := ts.dial(t, "alice", "secret")
	require.Equal(t, protocol.HandshakeSuccess, reply)

	second, reply := ts.dial(t, "alice", "secret")
	require.Equal(t, protocol.HandshakeSuccess, reply)

	// The old transport is torn down; its next read fails.
	_ = first.conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err := first.conn.ReadMessage()
	require.Error(t, err)

	// The new session owns the identity.
	second.send(protocol.KindOrder, protocol.OrderRequest{
		Action:         enum.OrderActionBuy,
		StockCode:      "005930",
		Qty:            1,
		OrderCondition: enum.OrderConditionNone,
		PriceKind:      enum.PriceKindMarket,
	})
	msg := second.expect(protocol.KindOrder)
	resp, err := protocol.DecodePayload[protocol.OrderResponse](msg)
	require.NoError(t, err)
	require.True(t, resp.OK)

	require.Eventually(t, func() bool {
		return ts.metrics.Snapshot().SessionsEvicted == 1
	}, 2*time.Second, 10*time.Millisecond)
}

// orderRoundTrips reports whether the transport still answers an order
// request. An evicted transport fails the read.
func orderRoundTrips(conn *websocket.Conn) bool {
	raw, err := protocol.Encode(protocol.KindOrder, protocol.OrderRequest{
		Action:         enum.OrderActionBuy,
		StockCode:      "005930",
		Qty:            1,
		OrderCondition: enum.OrderConditionNone,
		PriceKind:      enum.PriceKindMarket,
	})
	if err != nil || conn.WriteMessage(websocket.TextMessage, raw) != nil {
		return false
	}
	deadline := time.Now().Add(time.Second)
	for {
		_ = conn.SetReadDeadline(deadline)
		_, frame, err := conn.ReadMessage()
		if err != nil {
			return false
		}
		msg, err := protocol.Decode(frame)
		if err != nil {
			return false
		}
		if msg.Kind == protocol.KindOrder {
			return true
		}
	}
}

func TestConcurrentDuplicateLogins(t *testing.T) {
	ts := newTestServer(t)

	for i := 0; i < 25; i++ {
		conns := make([]*websocket.Conn, 2)
		var wg sync.WaitGroup
		for j := range conns {
			wg.Add(1)
			go func(j int) {
				defer wg.Done()
				if conn, err := ts.rawDial("alice", "secret"); err == nil {
					conns[j] = conn
				}
			}(j)
		}
		wg.Wait()

		// Every login registers exactly once; all but one must have been
		// evicted or closed by the time both registrations land.
		opened := uint64(2 * (i + 1))
		require.Eventually(t, func() bool {
			snap := ts.metrics.Snapshot()
			return snap.SessionsOpened == opened && snap.SessionsClosed == opened-1
		}, 2*time.Second, 5*time.Millisecond)

		ts.dispatcher.mu.Lock()
		cur := ts.dispatcher.sessions["alice"]
		ts.dispatcher.mu.Unlock()
		require.NotNil(t, cur)
		require.Equal(t, StateActive, cur.State())

		live := 0
		for _, conn := range conns {
			if conn != nil && orderRoundTrips(conn) {
				live++
			}
		}
		require.Equal(t, 1, live, "exactly one transport may stay readable")

		for _, conn := range conns {
			if conn != nil {
				_ = conn.Close()
			}
		}
		require.Eventually(t, func() bool {
			return ts.metrics.Snapshot().SessionsClosed == opened
		}, 2*time.Second, 5*time.Millisecond)
	}
}

func TestEvictionReleasesFeedSubscriptions(t *testing.T) {
	ts := newTestServer(t)

	first, _ := ts.dial(t, "alice", "secret")
	first.send(protocol.KindFeedSubscribe, protocol.FeedRequest{
		Feed:       enum.FeedKindTick,
		SetStatus:  true,
		StockCodes: []string{"005930"},
	})
	first.expect(protocol.KindFeedSubscribe)
	require.True(t, ts.broker.TickSubscribed("005930"))

	_, reply := ts.dial(t, "alice", "secret")
	require.Equal(t, protocol.HandshakeSuccess, reply)

	// Sole subscriber evicted, the upstream registration closes.
	require.Eventually(t, func() bool {
		return !ts.broker.TickSubscribed("005930")
	}, 2*time.Second, 10*time.Millisecond)
}

func TestTradeStatusBroadcastAndPositionFeed(t *testing.T) {
	ts := newTestServer(t)

	alice, _ := ts.dial(t, "alice", "secret")
	bob, _ := ts.dial(t, "bob", "hunter2")

	ts.broker.EmitTradeStatus(model.TradeEvent{
		StockName:      "samsung",
		Qty:            10,
		Price:          70000,
		OrderNum:       1001,
		StockCode:      "005930",
		Side:           enum.OrderSideBuy,
		Conclusion:     enum.ConclusionConcluded,
		ModifyCancel:   enum.ModifyCancelNone,
		PriceKind:      enum.PriceKindNormal,
		OrderCondition: enum.OrderConditionNone,
		BalanceQty:     10,
		AbleSellQty:    10,
		AvgPrice:       70000,
	})

	for _, c := range []*testClient{alice, bob} {
		msg := c.expect(protocol.KindTradeStatus)
		e, err := protocol.DecodePayload[model.TradeEvent](msg)
		require.NoError(t, err)
		require.EqualValues(t, 1001, e.OrderNum)
		require.EqualValues(t, 700000, e.TotalPrice)
	}

	// The open position subscribes the server itself to the tick feed.
	require.Eventually(t, func() bool {
		return ts.broker.TickSubscribed("005930")
	}, 2*time.Second, 10*time.Millisecond)

	// A tick updates the position's derived fields before fan-out.
	ts.broker.EmitTick(model.Tick{StockCode: "005930", PriceFlag: enum.PriceFlagNormal, Price: 72000, Qty: 1})
	require.Eventually(t, func() bool {
		b, ok, err := ledger.New(ts.store).Balance("005930")
		return err == nil && ok && b.CurrentPrice == 72000
	}, 2*time.Second, 10*time.Millisecond)
}

func TestSeedSubscribesHeldPositions(t *testing.T) {
	st := store.NewMemory()
	st.PutUser("alice", "secret")
	require.NoError(t, st.UpsertBalance(model.PositionBalance{StockCode: "005930", Quantity: 10}))
	require.NoError(t, st.UpsertBalance(model.PositionBalance{StockCode: "000660", Quantity: 5}))

	broker := gateway.NewSim(gateway.SimConfig{})
	d := New(st, ledger.New(st), broker, obs.NewMetrics(), Options{})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go d.Run(ctx)

	require.NoError(t, d.Seed())
	require.Eventually(t, func() bool {
		return broker.TickSubscribed("005930") && broker.TickSubscribed("000660")
	}, 2*time.Second, 10*time.Millisecond)
}

func TestCloseFrameEndsSession(t *testing.T) {
	ts := newTestServer(t)

	c, _ := ts.dial(t, "alice", "secret")
	require.NoError(t, c.conn.WriteMessage(websocket.TextMessage, []byte(closeFrame)))

	_ = c.conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err := c.conn.ReadMessage()
	require.Error(t, err)

	require.Eventually(t, func() bool {
		return ts.metrics.Snapshot().SessionsClosed == 1
	}, 2*time.Second, 10*time.Millisecond)
}
