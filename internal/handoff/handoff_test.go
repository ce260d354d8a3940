package handoff

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStaleTicketIsDropped(t *testing.T) {
	var s Slot[string]
	first := s.Bind("checking")
	second := s.Bind("checking")

	assert.False(t, s.Holds(first))
	assert.True(t, s.Holds(second))

	assert.False(t, s.Apply(first, "offline"))
	assert.Equal(t, "checking", s.Load())
	assert.True(t, s.Apply(second, "online"))
	assert.Equal(t, "online", s.Load())
}

func identity[T any](v T) T { return v }

func TestDeliver(t *testing.T) {
	var s Slot[int]
	tk := s.Bind(0)

	ch := make(chan int, 1)
	ch <- 42
	got, ok := Deliver(context.Background(), &s, tk, ch, identity[int])
	assert.True(t, ok)
	assert.Equal(t, 42, got)
	assert.Equal(t, 42, s.Load())

	closed := make(chan int)
	close(closed)
	_, ok = Deliver(context.Background(), &s, tk, closed, identity[int])
	assert.False(t, ok)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, ok = Deliver(ctx, &s, tk, make(chan int), identity[int])
	assert.False(t, ok)
}

func TestDeliverMapsResult(t *testing.T) {
	type result struct {
		status string
		code   int
	}
	var s Slot[string]
	tk := s.Bind("checking")
	ch := make(chan result, 1)
	ch <- result{status: "online", code: 200}

	got, ok := Deliver(context.Background(), &s, tk, ch, func(r result) string { return r.status })
	require.True(t, ok)
	assert.Equal(t, 200, got.code)
	assert.Equal(t, "online", s.Load())
}

func TestDeliverAfterRebind(t *testing.T) {
	var s Slot[string]
	old := s.Bind("checking")
	ch := make(chan string, 1)

	cur := s.Bind("checking")
	ch <- "offline"
	got, ok := Deliver(context.Background(), &s, old, ch, identity[string])
	assert.False(t, ok)
	assert.Equal(t, "offline", got, "the result is still returned to the caller")
	assert.Equal(t, "checking", s.Load())
	assert.True(t, s.Holds(cur))
}

func TestBoardConcurrentBinds(t *testing.T) {
	b := NewBoard[int64, string]()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			slot := b.Slot(7)
			tk := slot.Bind("checking")
			slot.Apply(tk, "online")
		}()
	}
	wg.Wait()

	v, ok := b.Get(7)
	require.True(t, ok)
	assert.Contains(t, []string{"checking", "online"}, v)
	assert.Same(t, b.Slot(7), b.Slot(7))

	_, ok = b.Get(8)
	assert.False(t, ok)

	assert.Len(t, b.Snapshot(), 1)
	b.Forget(7)
	assert.Empty(t, b.Snapshot())
}
