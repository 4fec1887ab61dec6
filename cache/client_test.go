package cache

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func newTestClient(t *testing.T) (*Client, Store) {
	t.Helper()
	store, err := NewStore(DefaultConfig())
	require.NoError(t, err)
	return NewClient(store, zaptest.NewLogger(t)), store
}

func counting(calls *atomic.Int32) FetchFunc[string] {
	return func(ctx context.Context) (string, error) {
		n := calls.Add(1)
		return fmt.Sprintf("v%d", n), nil
	}
}

func TestFetch_MissThenHit(t *testing.T) {
	client, _ := newTestClient(t)
	ctx := context.Background()
	var calls atomic.Int32

	v, err := Fetch(ctx, client, "k", counting(&calls))
	require.NoError(t, err)
	assert.Equal(t, "v1", v)

	v, err = Fetch(ctx, client, "k", counting(&calls))
	require.NoError(t, err)
	assert.Equal(t, "v1", v)
	assert.Equal(t, int32(1), calls.Load())

	entry, ok := client.Peek("k")
	require.True(t, ok)
	assert.Equal(t, Fresh, entry.State)
	assert.Equal(t, "k", entry.Fingerprint)
}

func TestFetch_InvalidationStrength(t *testing.T) {
	client, _ := newTestClient(t)
	ctx := context.Background()
	var calls atomic.Int32

	_, err := Fetch(ctx, client, "k", counting(&calls))
	require.NoError(t, err)

	marked := client.Invalidate(ctx, Invalidation{Match: Exact("k")})
	assert.Equal(t, []string{"k"}, marked)

	entry, _ := client.Peek("k")
	assert.Equal(t, Stale, entry.State)
	assert.False(t, entry.Refetch)

	v, err := Fetch(ctx, client, "k", counting(&calls))
	require.NoError(t, err)
	assert.Equal(t, "v1", v, "stale entry without refetch is served as is")
	assert.Equal(t, int32(1), calls.Load())

	client.Invalidate(ctx, Invalidation{Match: Exact("k"), Refetch: true})
	assert.Equal(t, int32(2), calls.Load(), "refetch invalidation reloads right away")

	entry, _ = client.Peek("k")
	assert.Equal(t, Fresh, entry.State)
	assert.Equal(t, "v2", entry.Value)
}

func TestFetch_StaleWithRefetchReloadsOnRead(t *testing.T) {
	client, store := newTestClient(t)
	ctx := context.Background()
	var calls atomic.Int32

	store.Set("k", "seeded")
	store.Invalidate(Exact("k"), true)

	v, err := Fetch(ctx, client, "k", counting(&calls))
	require.NoError(t, err)
	assert.Equal(t, "v1", v)
	assert.Equal(t, int32(1), calls.Load())
}

func TestFetch_FailureKeepsStaleValue(t *testing.T) {
	client, store := newTestClient(t)
	ctx := context.Background()
	boom := errors.New("storage down")

	store.Set("k", "old")
	store.Invalidate(Exact("k"), true)

	v, err := Fetch(ctx, client, "k", func(ctx context.Context) (string, error) {
		return "", boom
	})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, "old", v)

	entry, ok := store.Get("k")
	require.True(t, ok)
	assert.Equal(t, "old", entry.Value)
	assert.Equal(t, Stale, entry.State)

	_, err = Fetch(ctx, client, "missing", func(ctx context.Context) (string, error) {
		return "", boom
	})
	assert.ErrorIs(t, err, boom)
	_, ok = store.Get("missing")
	assert.False(t, ok)
}

func TestFetch_CancelledReadNeverLands(t *testing.T) {
	client, _ := newTestClient(t)
	ctx := context.Background()

	started := make(chan struct{})
	release := make(chan struct{})
	type result struct {
		value int
		err   error
	}
	results := make(chan result, 1)

	go func() {
		v, err := Fetch(ctx, client, "k", func(ctx context.Context) (int, error) {
			close(started)
			<-release
			return 1, nil
		})
		results <- result{v, err}
	}()

	<-started
	client.Cancel(Exact("k"))
	client.Patch("k", func(old any, ok bool) (any, bool) { return 99, true })
	close(release)

	select {
	case res := <-results:
		require.NoError(t, res.err)
		assert.Equal(t, 99, res.value, "reader sees the optimistic value")
	case <-time.After(2 * time.Second):
		t.Fatal("read did not return")
	}

	entry, ok := client.Peek("k")
	require.True(t, ok)
	assert.Equal(t, 99, entry.Value)
}

func TestFetch_CancelledReadRetriesWhenNothingCached(t *testing.T) {
	client, _ := newTestClient(t)
	ctx := context.Background()

	var calls atomic.Int32
	started := make(chan struct{})
	results := make(chan int, 1)

	go func() {
		v, err := Fetch(ctx, client, "k", func(ctx context.Context) (int, error) {
			if calls.Add(1) == 1 {
				close(started)
				<-ctx.Done()
				return 0, ctx.Err()
			}
			return 5, nil
		})
		if err != nil {
			results <- -1
			return
		}
		results <- v
	}()

	<-started
	client.Cancel(Prefix("k"))

	select {
	case v := <-results:
		assert.Equal(t, 5, v)
	case <-time.After(2 * time.Second):
		t.Fatal("read did not return")
	}
	assert.Equal(t, int32(2), calls.Load())
}

func TestFetchSlot_SupersededResultIsDiscarded(t *testing.T) {
	client, _ := newTestClient(t)
	ctx := context.Background()

	started := make(chan struct{})
	release := make(chan struct{})
	errs := make(chan error, 1)

	go func() {
		_, err := FetchSlot(ctx, client, "home-list", "page-a", func(ctx context.Context) (string, error) {
			close(started)
			<-release
			return "late", nil
		})
		errs <- err
	}()

	<-started
	v, err := FetchSlot(ctx, client, "home-list", "page-b", func(ctx context.Context) (string, error) {
		return "current", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "current", v)
	close(release)

	select {
	case err := <-errs:
		assert.ErrorIs(t, err, ErrSuperseded)
	case <-time.After(2 * time.Second):
		t.Fatal("superseded read did not return")
	}

	_, ok := client.Peek("page-a")
	assert.False(t, ok, "late result must not be written")
	entry, ok := client.Peek("page-b")
	require.True(t, ok)
	assert.Equal(t, "current", entry.Value)
}

func TestFetch_TypeMismatch(t *testing.T) {
	client, store := newTestClient(t)
	store.Set("k", 42)

	_, err := Fetch(context.Background(), client, "k", func(ctx context.Context) (string, error) {
		return "x", nil
	})
	assert.Error(t, err)
}

func TestInvalidate_PrefixRefetchesRegisteredOnly(t *testing.T) {
	client, store := newTestClient(t)
	ctx := context.Background()
	var calls atomic.Int32

	_, err := Fetch(ctx, client, "page::a", counting(&calls))
	require.NoError(t, err)
	store.Set("page::b", "unregistered")

	marked := client.Invalidate(ctx, Invalidation{Match: Prefix("page::"), Refetch: true})
	assert.ElementsMatch(t, []string{"page::a", "page::b"}, marked)
	assert.Equal(t, int32(2), calls.Load())

	a, _ := client.Peek("page::a")
	assert.Equal(t, Fresh, a.State)
	b, _ := client.Peek("page::b")
	assert.Equal(t, Stale, b.State)
	assert.True(t, b.Refetch)
}

func TestInvalidate_DropRemovesEntries(t *testing.T) {
	client, store := newTestClient(t)
	ctx := context.Background()
	var calls atomic.Int32

	_, err := Fetch(ctx, client, "pick::a", counting(&calls))
	require.NoError(t, err)
	store.Set("pick::b", "other")
	store.Set("page::a", "kept")

	marked := client.Invalidate(ctx, Invalidation{Match: Prefix("pick::"), Drop: true})
	assert.ElementsMatch(t, []string{"pick::a", "pick::b"}, marked)

	_, ok := client.Peek("pick::a")
	assert.False(t, ok)
	_, ok = client.Peek("pick::b")
	assert.False(t, ok)
	_, ok = client.Peek("page::a")
	assert.True(t, ok)
	assert.Equal(t, int32(1), calls.Load())

	v, err := Fetch(ctx, client, "pick::a", counting(&calls))
	require.NoError(t, err)
	assert.Equal(t, "v2", v)
}
