package dispatch

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/yanun0323/pkg/sys"

	"main/pkg/exception"
)

// SessionState is the connection lifecycle position.
type SessionState uint32

const (
	StateConnecting SessionState = iota
	StateAuthenticating
	StateActive
	StateClosing
	StateClosed
)

func (s SessionState) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateAuthenticating:
		return "authenticating"
	case StateActive:
		return "active"
	case StateClosing:
		return "closing"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

const sessionWriteTimeout = 10 * time.Second

// Session is one authenticated client connection: a transport handle plus a
// bounded outbound queue. The queue is written by any component holding the
// identity and read by the session's write pump alone.
type Session struct {
	username string
	conn     *websocket.Conn
	out      chan []byte
	done     chan struct{}
	state    atomic.Uint32
	teardown sync.Once
}

func newSession(conn *websocket.Conn, queueSize int) *Session {
	if queueSize <= 0 {
		queueSize = 1
	}
	s := &Session{
		conn: conn,
		out:  make(chan []byte, queueSize),
		done: make(chan struct{}),
	}
	s.state.Store(uint32(StateConnecting))
	return s
}

// Username returns the identity bound at authentication.
func (s *Session) Username() string {
	return s.username
}

// State returns the current lifecycle state.
func (s *Session) State() SessionState {
	return SessionState(s.state.Load())
}

func (s *Session) setState(st SessionState) {
	s.state.Store(uint32(st))
}

// Enqueue puts an encoded frame on the outbound queue without blocking.
func (s *Session) Enqueue(payload []byte) error {
	switch st := s.State(); {
	case st >= StateClosing:
		return exception.ErrSessionClosed
	case st != StateActive:
		return exception.ErrSessionNotActive
	}
	select {
	case s.out <- payload:
		return nil
	default:
		return exception.ErrSessionQueueFull
	}
}

// drain discards everything still queued.
func (s *Session) drain() {
	for {
		select {
		case <-s.out:
		default:
			return
		}
	}
}

// writePump moves frames from the outbound queue onto the wire until the
// session closes or a write fails.
func (s *Session) writePump() {
	defer s.conn.Close()
	for {
		select {
		case <-s.done:
			return
		case <-sys.Shutdown():
			return
		case payload := <-s.out:
			_ = s.conn.SetWriteDeadline(time.Now().Add(sessionWriteTimeout))
			if err := s.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
		}
	}
}
