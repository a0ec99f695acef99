package streams

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func appendN(t *testing.T, store *MemoryStore, topic string, n int, maxLen int64) []string {
	t.Helper()

	ids := make([]string, 0, n)
	for i := 0; i < n; i++ {
		id, err := store.Append(context.Background(), topic, Record{
			FieldEventType: "order.placed",
			FieldEventID:   fmt.Sprintf("e%d", i),
			FieldData:      "{}",
		}, maxLen)
		require.NoError(t, err)
		ids = append(ids, id)
	}
	return ids
}

func TestMemoryStore_EnsureGroup(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	require.NoError(t, store.EnsureGroup(ctx, "events:order", "g"))

	err := store.EnsureGroup(ctx, "events:order", "g")
	assert.ErrorIs(t, err, ErrGroupExists)

	// Creating the group materializes the stream.
	info, err := store.Info(ctx, "events:order")
	require.NoError(t, err)
	assert.Equal(t, int64(1), info.Groups)
	assert.Zero(t, info.Length)
}

func TestMemoryStore_PendingLifecycle(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	require.NoError(t, store.EnsureGroup(ctx, "events:order", "g"))

	ids := appendN(t, store, "events:order", 2, 0)

	res, err := store.ReadGroup(ctx, "g", "c1", []string{"events:order"}, 10, -1)
	require.NoError(t, err)
	require.Len(t, res["events:order"], 2)
	assert.Equal(t, ids, []string{res["events:order"][0].ID, res["events:order"][1].ID})

	pending, err := store.PendingEntries(ctx, "events:order", "g", 0)
	require.NoError(t, err)
	require.Len(t, pending, 2)
	assert.Equal(t, "c1", pending[0].Consumer)
	assert.Equal(t, int64(1), pending[0].RetryCount)

	// A second read for new entries returns nothing; delivery moved the cursor.
	res, err = store.ReadGroup(ctx, "g", "c1", []string{"events:order"}, 10, -1)
	require.NoError(t, err)
	assert.Empty(t, res)

	require.NoError(t, store.Ack(ctx, "events:order", "g", ids[0]))

	pending, err = store.PendingEntries(ctx, "events:order", "g", 0)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, ids[1], pending[0].ID)
}

func TestMemoryStore_ClaimTransfersOwnership(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	require.NoError(t, store.EnsureGroup(ctx, "events:order", "g"))

	ids := appendN(t, store, "events:order", 1, 0)

	_, err := store.ReadGroup(ctx, "g", "c1", []string{"events:order"}, 10, -1)
	require.NoError(t, err)

	require.NoError(t, store.Claim(ctx, "events:order", "g", "c2", 0, ids))

	pending, err := store.PendingEntries(ctx, "events:order", "g", 0)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "c2", pending[0].Consumer)
	assert.Equal(t, int64(2), pending[0].RetryCount)

	// The claimed entry surfaces on the new owner's backlog, not the old one's.
	backlog, err := store.ReadBacklog(ctx, "g", "c2", []string{"events:order"}, 10)
	require.NoError(t, err)
	require.Len(t, backlog["events:order"], 1)
	assert.Equal(t, ids[0], backlog["events:order"][0].ID)

	backlog, err = store.ReadBacklog(ctx, "g", "c1", []string{"events:order"}, 10)
	require.NoError(t, err)
	assert.Empty(t, backlog)
}

func TestMemoryStore_ClaimHonorsMinIdle(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	require.NoError(t, store.EnsureGroup(ctx, "events:order", "g"))

	ids := appendN(t, store, "events:order", 1, 0)

	_, err := store.ReadGroup(ctx, "g", "c1", []string{"events:order"}, 10, -1)
	require.NoError(t, err)

	// Freshly delivered, so a one-minute idle floor must leave it alone.
	require.NoError(t, store.Claim(ctx, "events:order", "g", "c2", time.Minute, ids))

	pending, err := store.PendingEntries(ctx, "events:order", "g", 0)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "c1", pending[0].Consumer)
}

func TestMemoryStore_BlockingReadWokenByAppend(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	require.NoError(t, store.EnsureGroup(ctx, "events:order", "g"))

	type result struct {
		res map[string][]Entry
		err error
	}
	done := make(chan result, 1)

	go func() {
		res, err := store.ReadGroup(ctx, "g", "c1", []string{"events:order"}, 10, 5*time.Second)
		done <- result{res, err}
	}()

	time.Sleep(20 * time.Millisecond)
	appendN(t, store, "events:order", 1, 0)

	select {
	case r := <-done:
		require.NoError(t, r.err)
		require.Len(t, r.res["events:order"], 1)
	case <-time.After(time.Second):
		t.Fatal("blocking read was not woken by the append")
	}
}

func TestMemoryStore_BlockingReadTimesOut(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	require.NoError(t, store.EnsureGroup(ctx, "events:order", "g"))

	start := time.Now()
	res, err := store.ReadGroup(ctx, "g", "c1", []string{"events:order"}, 10, 20*time.Millisecond)
	require.NoError(t, err)
	assert.Empty(t, res)
	assert.GreaterOrEqual(t, time.Since(start), 20*time.Millisecond)
}

func TestMemoryStore_BlockingReadCancellable(t *testing.T) {
	store := NewMemoryStore()
	require.NoError(t, store.EnsureGroup(context.Background(), "events:order", "g"))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)

	go func() {
		_, err := store.ReadGroup(ctx, "g", "c1", []string{"events:order"}, 10, 0)
		done <- err
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("cancellation did not interrupt the read")
	}
}

func TestMemoryStore_TrimsToMaxLen(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	ids := appendN(t, store, "events:order", 5, 3)

	info, err := store.Info(ctx, "events:order")
	require.NoError(t, err)
	assert.Equal(t, int64(3), info.Length)
	assert.Equal(t, ids[2], info.FirstEntryID)
	assert.Equal(t, ids[4], info.LastEntryID)
}

func TestMemoryStore_TrimDropsPendingReferences(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	require.NoError(t, store.EnsureGroup(ctx, "events:order", "g"))

	appendN(t, store, "events:order", 3, 3)

	// All three delivered and left pending, then trimmed out by new appends.
	res, err := store.ReadGroup(ctx, "g", "c1", []string{"events:order"}, 10, -1)
	require.NoError(t, err)
	require.Len(t, res["events:order"], 3)

	appendN(t, store, "events:order", 3, 3)

	pending, err := store.PendingEntries(ctx, "events:order", "g", 0)
	require.NoError(t, err)
	assert.Empty(t, pending, "trimmed entries cannot stay pending")

	backlog, err := store.ReadBacklog(ctx, "g", "c1", []string{"events:order"}, 10)
	require.NoError(t, err)
	assert.Empty(t, backlog)
}

func TestMemoryStore_MissingStreamAndGroup(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	_, err := store.Info(ctx, "events:nope")
	assert.ErrorIs(t, err, ErrStreamNotFound)

	_, err = store.ReadGroup(ctx, "g", "c1", []string{"events:nope"}, 10, -1)
	assert.Error(t, err)

	appendN(t, store, "events:order", 1, 0)
	_, err = store.PendingEntries(ctx, "events:order", "nope", 0)
	assert.Error(t, err)
}
