package feed

import (
	"fmt"
	"sync"

	"github.com/yanun0323/logs"

	"main/pkg/exception"
)

// All is the sentinel instrument meaning "every instrument this identity
// currently subscribes to". Only meaningful when turning subscriptions off.
const All = "ALL"

// Upstream opens and closes one broker-side feed registration per
// instrument. Calls are issued under the multiplexer lock, so an Upstream
// never sees two calls for the same feed kind at once.
type Upstream interface {
	Subscribe(stockCode string) error
	Unsubscribe(stockCode string) error
}

// Deliver hands an encoded payload to one subscriber's outbound queue.
type Deliver func(identity string, payload []byte)

// Multiplexer fans one upstream feed out to many identities, reference
// counted per instrument: the upstream subscription is open exactly while at
// least one identity subscribes.
type Multiplexer[T any] struct {
	name     string
	upstream Upstream
	encode   func(T) ([]byte, error)
	deliver  Deliver

	mu      sync.Mutex
	entries map[string]map[string]struct{} // stock code -> subscriber identities
}

// New creates a multiplexer for one feed kind.
func New[T any](name string, upstream Upstream, encode func(T) ([]byte, error), deliver Deliver) *Multiplexer[T] {
	return &Multiplexer[T]{
		name:     name,
		upstream: upstream,
		encode:   encode,
		deliver:  deliver,
		entries:  make(map[string]map[string]struct{}),
	}
}

// SetSubscription turns an identity's subscription on or off for each listed
// instrument. Adding twice is a no-op; removing the last subscriber closes
// the upstream registration and deletes the entry in the same locked step.
// The All sentinel with on=false drops every subscription the identity
// holds. The first upstream failure aborts and is reported as a refusal; no
// entry is created for the failed instrument.
func (m *Multiplexer[T]) SetSubscription(identity string, stockCodes []string, on bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, code := range stockCodes {
		if code == All {
			if on {
				return exception.ErrFeedInvalidRequest
			}
			m.removeIdentityLocked(identity)
			continue
		}
		if on {
			if err := m.addLocked(identity, code); err != nil {
				return err
			}
		} else {
			m.removeLocked(identity, code)
		}
	}
	return nil
}

// RemoveIdentity drops every subscription the identity holds. Called on
// session teardown.
func (m *Multiplexer[T]) RemoveIdentity(identity string) {
	m.mu.Lock()
	m.removeIdentityLocked(identity)
	m.mu.Unlock()
}

// OnUpstreamEvent delivers one upstream event to every subscriber of the
// instrument. Events for instruments without an entry are dropped silently;
// the upstream may emit briefly after an unsubscribe completes.
func (m *Multiplexer[T]) OnUpstreamEvent(stockCode string, event T) {
	m.mu.Lock()
	set, ok := m.entries[stockCode]
	if !ok || len(set) == 0 {
		m.mu.Unlock()
		return
	}
	identities := make([]string, 0, len(set))
	for identity := range set {
		identities = append(identities, identity)
	}
	m.mu.Unlock()

	payload, err := m.encode(event)
	if err != nil {
		logs.Errorf("encode %s event for %s, err: %v", m.name, stockCode, err)
		return
	}
	for _, identity := range identities {
		m.deliver(identity, payload)
	}
}

// Subscribers returns the identities subscribed to an instrument.
func (m *Multiplexer[T]) Subscribers(stockCode string) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	set := m.entries[stockCode]
	out := make([]string, 0, len(set))
	for identity := range set {
		out = append(out, identity)
	}
	return out
}

// Instruments returns the instruments an identity subscribes to.
func (m *Multiplexer[T]) Instruments(identity string) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []string
	for code, set := range m.entries {
		if _, ok := set[identity]; ok {
			out = append(out, code)
		}
	}
	return out
}

// Open reports whether the upstream subscription for an instrument exists.
func (m *Multiplexer[T]) Open(stockCode string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.entries[stockCode]
	return ok
}

func (m *Multiplexer[T]) addLocked(identity, stockCode string) error {
	set, ok := m.entries[stockCode]
	if !ok {
		if err := m.upstream.Subscribe(stockCode); err != nil {
			return fmt.Errorf("%w: %w", exception.ErrFeedUpstreamRefused, err)
		}
		set = make(map[string]struct{})
		m.entries[stockCode] = set
	}
	set[identity] = struct{}{}
	return nil
}

func (m *Multiplexer[T]) removeLocked(identity, stockCode string) {
	set, ok := m.entries[stockCode]
	if !ok {
		return
	}
	delete(set, identity)
	if len(set) == 0 {
		if err := m.upstream.Unsubscribe(stockCode); err != nil {
			logs.Errorf("unsubscribe %s feed for %s, err: %v", m.name, stockCode, err)
		}
		delete(m.entries, stockCode)
	}
}

func (m *Multiplexer[T]) removeIdentityLocked(identity string) {
	for code := range m.entries {
		m.removeLocked(identity, code)
	}
}
