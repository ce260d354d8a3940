// Package handoff applies results of background work to a shared target
// only while the work still owns it. Every new request on a Slot binds a
// fresh Ticket; results carrying an older ticket are dropped.
package handoff

import (
	"context"
	"sync"

	"github.com/puzpuzpuz/xsync/v3"
)

// Ticket identifies one binding of a Slot.
type Ticket uint64

// Slot holds a value written by whichever request currently owns it.
type Slot[V any] struct {
	mu  sync.Mutex
	gen Ticket
	val V
}

// Bind stores a provisional value and transfers ownership to a new ticket.
func (s *Slot[V]) Bind(provisional V) Ticket {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gen++
	s.val = provisional
	return s.gen
}

// Holds reports whether t still owns the slot.
func (s *Slot[V]) Holds(t Ticket) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gen == t
}

// Apply stores v if t still owns the slot and reports whether it did.
func (s *Slot[V]) Apply(t Ticket, v V) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.gen != t {
		return false
	}
	s.val = v
	return true
}

// Load returns the current value.
func (s *Slot[V]) Load() V {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.val
}

// Deliver waits for one result on ch and applies value(r) under t. It
// returns the result and whether it was applied: applied is false if ctx
// ends first, ch closes empty, or t no longer owns the slot.
func Deliver[V, R any](ctx context.Context, s *Slot[V], t Ticket, ch <-chan R, value func(R) V) (r R, applied bool) {
	select {
	case <-ctx.Done():
		return r, false
	case v, ok := <-ch:
		if !ok {
			return r, false
		}
		return v, s.Apply(t, value(v))
	}
}

// Board is a concurrent set of slots keyed by K.
type Board[K comparable, V any] struct {
	slots *xsync.MapOf[K, *Slot[V]]
}

// NewBoard returns an empty Board.
func NewBoard[K comparable, V any]() *Board[K, V] {
	return &Board[K, V]{slots: xsync.NewMapOf[K, *Slot[V]]()}
}

// Slot returns the slot for key, creating it on first use.
func (b *Board[K, V]) Slot(key K) *Slot[V] {
	s, _ := b.slots.LoadOrCompute(key, func() *Slot[V] { return &Slot[V]{} })
	return s
}

// Get returns the value for key if a slot exists.
func (b *Board[K, V]) Get(key K) (V, bool) {
	s, ok := b.slots.Load(key)
	if !ok {
		var zero V
		return zero, false
	}
	return s.Load(), true
}

// Snapshot copies every slot's current value.
func (b *Board[K, V]) Snapshot() map[K]V {
	out := make(map[K]V, b.slots.Size())
	b.slots.Range(func(k K, s *Slot[V]) bool {
		out[k] = s.Load()
		return true
	})
	return out
}

// Forget drops the slot for key; in-flight tickets on it are orphaned.
func (b *Board[K, V]) Forget(key K) {
	b.slots.Delete(key)
}
