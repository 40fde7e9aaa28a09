// Package toolmap implements the Tool-Call Identity Map: the
// correlation between client-synthesized tool call IDs and the
// upstream-facing IDs or ordinals they actually correspond to.
//
// Grounded on proxy/transform.go's SessionCache/CleanupExpiredSessions
// (a mutex-protected map keyed by session ID, with LastAccessed-based
// TTL sweeping), generalized here with a real bounded LRU eviction
// path and an opportunistic sweep triggered by insertion count rather
// than a background timer, per spec.md §3/§5.
package toolmap

import (
	"container/list"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/ImogeneOctaviap794/Toolify-code/types"
)

const (
	// MaxEntries bounds the map's LRU size (spec.md §3).
	MaxEntries = 10000
	// TTL is how long an entry survives without being touched.
	TTL = time.Hour
	// SweepEvery triggers an opportunistic TTL sweep on every Nth
	// insertion; there is never a dedicated timer goroutine.
	SweepEvery = 128
)

// IDStore abstracts the map's storage so an operator can choose a
// process-local map (the default) or a Redis-backed one that survives
// a restart. Toolify's Non-goals disclaim cross-restart persistence as
// a *requirement*, not a prohibition on offering it.
type IDStore interface {
	Put(identity types.ToolCallIdentity)
	Get(clientID string) (types.ToolCallIdentity, bool)
	Delete(clientID string)
	Len() int
}

// entry is the doubly-linked-list element backing LRU ordering.
type entry struct {
	identity types.ToolCallIdentity
}

// Map is the default in-process IDStore: a mutex-protected hash map
// plus an LRU list, TTL-swept opportunistically.
type Map struct {
	mu       sync.Mutex
	byID     map[string]*list.Element
	lru      *list.List // front = most recently used
	inserts  uint64
	limiter  *rate.Limiter
	onEvict  func(reason string, evicted int)
}

// New returns an empty, ready-to-use Map.
func New() *Map {
	return &Map{
		byID: make(map[string]*list.Element),
		lru:  list.New(),
		// At most one opportunistic sweep per second; a burst of
		// inserts landing on the 128th-insert boundary concurrently
		// should not run redundant concurrent sweeps.
		limiter: rate.NewLimiter(rate.Every(time.Second), 1),
	}
}

// OnEvict registers a callback invoked after each sweep or cap
// eviction, for observability logging.
func (m *Map) OnEvict(fn func(reason string, evicted int)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onEvict = fn
}

// NewClientID synthesizes a fresh client-facing tool call ID in the
// spec's `call_` + 24 hex char shape.
func NewClientID() string {
	id := uuid.New()
	hex := id.String()
	compact := ""
	for _, r := range hex {
		if r != '-' {
			compact += string(r)
		}
	}
	if len(compact) > 24 {
		compact = compact[:24]
	}
	return "call_" + compact
}

// Put inserts or refreshes an identity, touching it to the front of
// the LRU list and evicting over-capacity entries from the back.
// Every SweepEvery-th call also runs an opportunistic TTL sweep.
func (m *Map) Put(identity types.ToolCallIdentity) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	if identity.CreatedAt.IsZero() {
		identity.CreatedAt = now
	}
	identity.LastTouched = now

	if el, ok := m.byID[identity.ClientID]; ok {
		el.Value.(*entry).identity = identity
		m.lru.MoveToFront(el)
	} else {
		el := m.lru.PushFront(&entry{identity: identity})
		m.byID[identity.ClientID] = el
	}

	m.inserts++
	evicted := m.evictOverCapacityLocked()
	if m.inserts%SweepEvery == 0 && m.limiter.Allow() {
		evicted += m.sweepExpiredLocked(now)
	}
	if evicted > 0 && m.onEvict != nil {
		m.onEvict("insert", evicted)
	}
}

// evictOverCapacityLocked drops least-recently-used entries until the
// map is at or under MaxEntries. Caller must hold m.mu.
func (m *Map) evictOverCapacityLocked() int {
	evicted := 0
	for len(m.byID) > MaxEntries {
		back := m.lru.Back()
		if back == nil {
			break
		}
		m.lru.Remove(back)
		delete(m.byID, back.Value.(*entry).identity.ClientID)
		evicted++
	}
	return evicted
}

// sweepExpiredLocked drops every entry whose TTL has lapsed since
// LastTouched. Caller must hold m.mu.
func (m *Map) sweepExpiredLocked(now time.Time) int {
	evicted := 0
	for el := m.lru.Back(); el != nil; {
		prev := el.Prev()
		id := el.Value.(*entry).identity
		if now.Sub(id.LastTouched) > TTL {
			m.lru.Remove(el)
			delete(m.byID, id.ClientID)
			evicted++
		}
		el = prev
	}
	return evicted
}

// Get looks up an identity by its client-facing ID, touching it to
// the front of the LRU list on hit.
func (m *Map) Get(clientID string) (types.ToolCallIdentity, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	el, ok := m.byID[clientID]
	if !ok {
		return types.ToolCallIdentity{}, false
	}
	if time.Since(el.Value.(*entry).identity.LastTouched) > TTL {
		m.lru.Remove(el)
		delete(m.byID, clientID)
		return types.ToolCallIdentity{}, false
	}
	m.lru.MoveToFront(el)
	id := el.Value.(*entry).identity
	id.LastTouched = time.Now()
	el.Value.(*entry).identity = id
	return id, true
}

// Delete removes an identity outright, e.g. once a tool result for it
// has been forwarded and it will never be looked up again.
func (m *Map) Delete(clientID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if el, ok := m.byID[clientID]; ok {
		m.lru.Remove(el)
		delete(m.byID, clientID)
	}
}

// Len reports the current entry count, mostly for tests and metrics.
func (m *Map) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.byID)
}

var _ IDStore = (*Map)(nil)
