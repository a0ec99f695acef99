package streams

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReclaimer_SweepClaimsStalledEntries(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	require.NoError(t, store.EnsureGroup(ctx, "events:order", "g"))

	ids := appendN(t, store, "events:order", 1, 0)

	// Delivered to c1, never acked.
	_, err := store.ReadGroup(ctx, "g", "c1", []string{"events:order"}, 10, -1)
	require.NoError(t, err)

	c2 := newTestConsumer(store, "g", "c2", NewHandlerRegistry())
	reclaimer := NewReclaimer(c2, []string{"order"}, WithClaimMinIdle(0), WithClaimBatch(10))

	assert.Equal(t, int64(1), reclaimer.Sweep(ctx))

	pending, err := store.PendingEntries(ctx, "events:order", "g", 0)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, ids[0], pending[0].ID)
	assert.Equal(t, "c2", pending[0].Consumer)

	// Claiming reset the entry's idle clock, so a sweep with a real idle
	// floor leaves it alone until it stalls again.
	strict := NewReclaimer(c2, []string{"order"}, WithClaimMinIdle(time.Minute), WithClaimBatch(10))
	assert.Zero(t, strict.Sweep(ctx))
}

func TestReclaimer_SweepSpansDomains(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	require.NoError(t, store.EnsureGroup(ctx, "events:order", "g"))
	require.NoError(t, store.EnsureGroup(ctx, "events:user", "g"))

	appendN(t, store, "events:order", 1, 0)
	appendN(t, store, "events:user", 2, 0)

	_, err := store.ReadGroup(ctx, "g", "c1", []string{"events:order", "events:user"}, 10, -1)
	require.NoError(t, err)

	c2 := newTestConsumer(store, "g", "c2", NewHandlerRegistry())
	reclaimer := NewReclaimer(c2, []string{"order", "user"}, WithClaimMinIdle(0), WithClaimBatch(10))

	assert.Equal(t, int64(3), reclaimer.Sweep(ctx))
}

func TestReclaimer_RunSweepsOnInterval(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	require.NoError(t, store.EnsureGroup(ctx, "events:order", "g"))

	appendN(t, store, "events:order", 1, 0)
	_, err := store.ReadGroup(ctx, "g", "c1", []string{"events:order"}, 10, -1)
	require.NoError(t, err)

	c2 := newTestConsumer(store, "g", "c2", NewHandlerRegistry())
	reclaimer := NewReclaimer(c2, []string{"order"},
		WithClaimInterval(10*time.Millisecond), WithClaimMinIdle(0), WithClaimBatch(10))

	done := make(chan struct{})
	go func() {
		defer close(done)
		reclaimer.Run(ctx)
	}()

	waitFor(t, time.Second, func() bool {
		pending, err := store.PendingEntries(ctx, "events:order", "g", 0)
		require.NoError(t, err)
		return len(pending) == 1 && pending[0].Consumer == "c2"
	})

	reclaimer.Stop()
	reclaimer.Stop() // idempotent

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("reclaimer did not stop")
	}
}

func TestReclaimer_RunHonorsContext(t *testing.T) {
	store := NewMemoryStore()
	c := newTestConsumer(store, "g", "c1", NewHandlerRegistry())
	reclaimer := NewReclaimer(c, []string{"order"}, WithClaimInterval(10*time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		reclaimer.Run(ctx)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("reclaimer ignored cancellation")
	}
}
