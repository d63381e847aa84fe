// Package events carries cache invalidation signals from writers to the
// components that hold read state.
package events

import "sync"

// Scope names a piece of read state an invalidation applies to.
type Scope string

const (
	// ScopeList is the aggregated pull request list.
	ScopeList Scope = "list"
	// ScopeDetail is the single pull request detail view.
	ScopeDetail Scope = "detail"
)

// Invalidation reports that a write changed a pull request upstream.
type Invalidation struct {
	PullRequestID string
	Action        string
	Scopes        []Scope
}

// Has reports whether the invalidation covers scope.
func (i Invalidation) Has(scope Scope) bool {
	for _, s := range i.Scopes {
		if s == scope {
			return true
		}
	}
	return false
}

// Publisher publishes invalidations.
type Publisher interface {
	Publish(inv Invalidation)
}

// Bus fans invalidations out to subscribers. Publish never blocks: each
// subscriber queues pending invalidations and is woken through a one-slot
// channel, so bursts coalesce into a single wake-up without losing entries.
type Bus struct {
	mu   sync.RWMutex
	subs map[*Subscription]struct{}
}

// NewBus creates an empty bus.
func NewBus() *Bus {
	return &Bus{subs: make(map[*Subscription]struct{})}
}

// Publish queues inv on every current subscription.
func (b *Bus) Publish(inv Invalidation) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for s := range b.subs {
		s.push(inv)
	}
}

// Subscribe registers a new subscription. Call Close when done.
func (b *Bus) Subscribe() *Subscription {
	s := &Subscription{bus: b, ready: make(chan struct{}, 1)}
	b.mu.Lock()
	b.subs[s] = struct{}{}
	b.mu.Unlock()
	return s
}

// Subscription is one subscriber's queue.
type Subscription struct {
	bus   *Bus
	ready chan struct{}

	mu      sync.Mutex
	pending []Invalidation
}

// Ready is signalled when invalidations are waiting to be drained.
func (s *Subscription) Ready() <-chan struct{} {
	return s.ready
}

// Drain returns and clears the pending invalidations in publish order.
func (s *Subscription) Drain() []Invalidation {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.pending
	s.pending = nil
	return out
}

// Close unregisters the subscription.
func (s *Subscription) Close() {
	s.bus.mu.Lock()
	delete(s.bus.subs, s)
	s.bus.mu.Unlock()
}

func (s *Subscription) push(inv Invalidation) {
	s.mu.Lock()
	s.pending = append(s.pending, inv)
	s.mu.Unlock()
	select {
	case s.ready <- struct{}{}:
	default:
	}
}
