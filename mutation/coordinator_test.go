package mutation

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/goliatone/go-recipe-cache/cache"
	"github.com/goliatone/go-recipe-cache/recipe"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type harness struct {
	store  cache.Store
	client *cache.Client
	coord  *Coordinator

	mu     sync.Mutex
	events []Event
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	store, err := cache.NewStore(cache.DefaultConfig())
	require.NoError(t, err)

	h := &harness{store: store}
	h.client = cache.NewClient(store, zaptest.NewLogger(t))
	h.coord = NewCoordinator(h.client,
		WithLogger(zaptest.NewLogger(t)),
		WithObserver(func(e Event) {
			h.mu.Lock()
			defer h.mu.Unlock()
			h.events = append(h.events, e)
		}),
	)
	return h
}

func (h *harness) states(id uint64) []State {
	h.mu.Lock()
	defer h.mu.Unlock()
	var out []State
	for _, e := range h.events {
		if e.ID == id {
			out = append(out, e.State)
		}
	}
	return out
}

func (h *harness) value(t *testing.T, fp string) any {
	t.Helper()
	entry, ok := h.store.Get(fp)
	require.True(t, ok, "expected %s to be cached", fp)
	return entry.Value
}

func detail(favorites, cooks int) *recipe.Recipe {
	return &recipe.Recipe{ID: "r1", Title: "Kimchi stew", FavoriteCount: favorites, CookCount: cooks}
}

func TestMutate_ToggleFavoriteRollbackRestoresVerbatim(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	statusFP := cache.FavoriteStatus("u1", "r1")
	batchFP := cache.FavoriteStatusBatch("u1", []string{"r1", "r2"})
	otherBatchFP := cache.FavoriteStatusBatch("u1", []string{"r3"})
	detailFP := cache.Recipe("r1")

	h.store.Set(statusFP, false)
	h.store.Set(batchFP, map[string]bool{"r1": false, "r2": true})
	h.store.Set(otherBatchFP, map[string]bool{"r3": true})
	h.store.Set(detailFP, detail(3, 0))

	fps := []string{statusFP, batchFP, otherBatchFP, detailFP}
	before := map[string]cache.Entry{}
	for _, fp := range fps {
		before[fp], _ = h.store.Get(fp)
	}

	var atRollback map[string]cache.Entry
	var patched map[string]any
	h.coord.observer = func(e Event) {
		switch e.State {
		case Pending:
			patched = map[string]any{}
			for _, fp := range fps {
				patched[fp] = h.value(t, fp)
			}
		case RolledBack:
			atRollback = map[string]cache.Entry{}
			for _, fp := range fps {
				atRollback[fp], _ = h.store.Get(fp)
			}
		}
	}

	boom := errors.New("write failed")
	_, err := Mutate(ctx, h.coord, Op[bool]{
		Kind: ToggleFavorite,
		Args: Args{UserID: "u1", RecipeID: "r1", WasFavorite: false},
		Write: func(ctx context.Context) (bool, error) {
			return false, boom
		},
	})
	require.ErrorIs(t, err, boom)

	assert.Equal(t, true, patched[statusFP])
	assert.Equal(t, map[string]bool{"r1": true, "r2": true}, patched[batchFP])
	assert.Equal(t, map[string]bool{"r3": true}, patched[otherBatchFP])
	assert.Equal(t, 4, patched[detailFP].(*recipe.Recipe).FavoriteCount)

	assert.Equal(t, before, atRollback, "rollback restores every entry verbatim")
	for _, fp := range fps {
		assert.Equal(t, before[fp].Value, h.value(t, fp), fp)
	}
	assert.Equal(t, 3, before[detailFP].Value.(*recipe.Recipe).FavoriteCount, "snapshot value is never mutated")
}

func TestMutate_ToggleFavoriteSuccessAndInvalidationStrength(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	var serverFavorite atomic.Bool
	var statusFetches, batchFetches atomic.Int32

	fetchStatus := func(ctx context.Context) (bool, error) {
		statusFetches.Add(1)
		return serverFavorite.Load(), nil
	}
	fetchBatch := func(ctx context.Context) (map[string]bool, error) {
		batchFetches.Add(1)
		return map[string]bool{"r1": serverFavorite.Load(), "r2": false}, nil
	}

	statusFP := cache.FavoriteStatus("u1", "r1")
	batchFP := cache.FavoriteStatusBatch("u1", []string{"r1", "r2"})

	_, err := cache.Fetch(ctx, h.client, statusFP, fetchStatus)
	require.NoError(t, err)
	_, err = cache.Fetch(ctx, h.client, batchFP, fetchBatch)
	require.NoError(t, err)

	_, err = Mutate(ctx, h.coord, Op[struct{}]{
		Kind: ToggleFavorite,
		Args: Args{UserID: "u1", RecipeID: "r1", WasFavorite: false},
		Write: func(ctx context.Context) (struct{}, error) {
			serverFavorite.Store(true)
			return struct{}{}, nil
		},
	})
	require.NoError(t, err)

	assert.Equal(t, int32(2), statusFetches.Load(), "own status is refetched on settle")
	status, _ := h.store.Get(statusFP)
	assert.Equal(t, cache.Fresh, status.State)
	assert.Equal(t, true, status.Value)

	batch, _ := h.store.Get(batchFP)
	assert.Equal(t, cache.Stale, batch.State)
	assert.False(t, batch.Refetch)
	assert.Equal(t, map[string]bool{"r1": true, "r2": false}, batch.Value)

	got, err := cache.Fetch(ctx, h.client, batchFP, fetchBatch)
	require.NoError(t, err)
	assert.Equal(t, map[string]bool{"r1": true, "r2": false}, got)
	assert.Equal(t, int32(1), batchFetches.Load(), "stale batch is served without a refetch")

	assert.Equal(t, []State{Pending, Applied, Settled}, h.states(1))
}

func TestMutate_CancelledReadNeverLands(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	detailFP := cache.Recipe("r1")

	h.store.Set(detailFP, detail(3, 0))
	h.store.Invalidate(cache.Exact(detailFP), true)

	var calls atomic.Int32
	started := make(chan struct{})
	release := make(chan struct{})
	fetchDetail := func(ctx context.Context) (*recipe.Recipe, error) {
		if calls.Add(1) == 1 {
			close(started)
			<-release
			return detail(3, 0), nil
		}
		return detail(5, 0), nil
	}

	readDone := make(chan *recipe.Recipe, 1)
	go func() {
		rc, _ := cache.Fetch(ctx, h.client, detailFP, fetchDetail)
		readDone <- rc
	}()
	<-started

	var optimistic int
	h.coord.observer = func(e Event) {
		if e.State == Applied {
			optimistic = h.value(t, detailFP).(*recipe.Recipe).FavoriteCount
		}
	}

	_, err := Mutate(ctx, h.coord, Op[struct{}]{
		Kind: ToggleFavorite,
		Args: Args{UserID: "u1", RecipeID: "r1"},
		Write: func(ctx context.Context) (struct{}, error) {
			return struct{}{}, nil
		},
	})
	require.NoError(t, err)
	assert.Equal(t, 4, optimistic)
	assert.Equal(t, int32(2), calls.Load(), "settle refetches the detail")
	close(release)

	select {
	case rc := <-readDone:
		require.NotNil(t, rc)
		assert.Equal(t, 5, rc.FavoriteCount, "reader is served the settled value")
	case <-time.After(2 * time.Second):
		t.Fatal("read did not return")
	}

	assert.Equal(t, 5, h.value(t, detailFP).(*recipe.Recipe).FavoriteCount, "slow pre-mutation read must not land")
}

func TestMutate_SameFingerprintsAreSerialized(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	running := make(chan struct{})
	release := make(chan struct{})
	first := make(chan error, 1)

	go func() {
		_, err := Mutate(ctx, h.coord, Op[int]{
			Kind: LogCooking,
			Args: Args{UserID: "u1", RecipeID: "r1"},
			Write: func(ctx context.Context) (int, error) {
				close(running)
				<-release
				return 1, nil
			},
		})
		first <- err
	}()
	<-running

	disjoint := make(chan error, 1)
	go func() {
		_, err := Mutate(ctx, h.coord, Op[int]{
			Kind:  LogCooking,
			Args:  Args{UserID: "u2", RecipeID: "r2"},
			Write: func(ctx context.Context) (int, error) { return 1, nil },
		})
		disjoint <- err
	}()

	select {
	case err := <-disjoint:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("mutation on disjoint fingerprints was blocked")
	}

	var secondWrote atomic.Bool
	second := make(chan error, 1)
	go func() {
		_, err := Mutate(ctx, h.coord, Op[int]{
			Kind: LogCooking,
			Args: Args{UserID: "u1", RecipeID: "r1"},
			Write: func(ctx context.Context) (int, error) {
				secondWrote.Store(true)
				return 2, nil
			},
		})
		second <- err
	}()

	time.Sleep(50 * time.Millisecond)
	assert.False(t, secondWrote.Load(), "overlapping mutation must wait for the first to settle")

	close(release)
	require.NoError(t, <-first)
	require.NoError(t, <-second)
	assert.True(t, secondWrote.Load())
}

func TestMutate_LogCookingPatchesCounts(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	h.store.Set(cache.CookCount("u1", "r1"), 2)
	h.store.Set(cache.CookCountAll("u1"), map[string]int{"r1": 2, "r9": 1})
	h.store.Set(cache.Recipe("r1"), detail(0, 10))

	var patched []string
	h.coord.observer = func(e Event) {
		if e.State == Pending {
			patched = e.Targets
		}
	}

	_, err := Mutate(ctx, h.coord, Op[struct{}]{
		Kind:  LogCooking,
		Args:  Args{UserID: "u1", RecipeID: "r1"},
		Write: func(ctx context.Context) (struct{}, error) { return struct{}{}, nil },
	})
	require.NoError(t, err)

	assert.Equal(t, []string{cache.CookCount("u1", "r1"), cache.CookCountAll("u1"), cache.Recipe("r1")}, patched)
	assert.Equal(t, 3, h.value(t, cache.CookCount("u1", "r1")))
	assert.Equal(t, map[string]int{"r1": 3, "r9": 1}, h.value(t, cache.CookCountAll("u1")))
	assert.Equal(t, 11, h.value(t, cache.Recipe("r1")).(*recipe.Recipe).CookCount)
}

func TestMutate_LogCookingSkipsUncachedTargets(t *testing.T) {
	h := newHarness(t)

	_, err := Mutate(context.Background(), h.coord, Op[struct{}]{
		Kind:  LogCooking,
		Args:  Args{UserID: "u1", RecipeID: "r1"},
		Write: func(ctx context.Context) (struct{}, error) { return struct{}{}, nil },
	})
	require.NoError(t, err)

	_, ok := h.store.Get(cache.CookCount("u1", "r1"))
	assert.False(t, ok)
}

func TestMutate_DeleteRecipePatchesDetailToNil(t *testing.T) {
	h := newHarness(t)
	h.store.Set(cache.Recipe("r1"), detail(1, 1))

	var seen any
	h.coord.observer = func(e Event) {
		if e.State == Applied {
			seen = h.value(t, cache.Recipe("r1"))
		}
	}

	_, err := Mutate(context.Background(), h.coord, Op[struct{}]{
		Kind:  DeleteRecipe,
		Args:  Args{RecipeID: "r1"},
		Write: func(ctx context.Context) (struct{}, error) { return struct{}{}, nil },
	})
	require.NoError(t, err)
	assert.Equal(t, (*recipe.Recipe)(nil), seen)
}

func TestMutate_UnknownKind(t *testing.T) {
	h := newHarness(t)
	_, err := Mutate(context.Background(), h.coord, Op[int]{
		Kind:  "rename_user",
		Write: func(ctx context.Context) (int, error) { return 0, nil },
	})
	assert.Error(t, err)
}

func TestPlan_LockKeys(t *testing.T) {
	plan := DefaultPlans[ToggleFavorite](Args{UserID: "u1", RecipeID: "r1"})
	assert.Equal(t, []string{
		"favorite-status-batch::u1::",
		"favorite-status::u1::r1",
		"recipe::r1",
	}, plan.LockKeys())

	assert.Empty(t, DefaultPlans[CreateRecipe](Args{}).LockKeys())

	for _, kind := range []Kind{ToggleFavorite, LogCooking, CreateRecipe, UpdateRecipe, DeleteRecipe, RecordView} {
		_, ok := DefaultPlans[kind]
		assert.True(t, ok, string(kind))
	}
}

func TestUpdateRecipePlan_MergesEditableFields(t *testing.T) {
	current := &recipe.Recipe{ID: "r1", OwnerID: "u1", Title: "Old", CookCount: 5, ViewCount: 9}
	update := &recipe.Recipe{Title: "New", Tags: []string{"quick"}, CookCount: 0}

	plan := DefaultPlans[UpdateRecipe](Args{RecipeID: "r1", Recipe: update})
	require.Len(t, plan.Patches, 1)

	next, keep := plan.Patches[0].Apply(current, true)
	require.True(t, keep)
	rc := next.(*recipe.Recipe)
	assert.Equal(t, "New", rc.Title)
	assert.Equal(t, []string{"quick"}, rc.Tags)
	assert.Equal(t, 5, rc.CookCount)
	assert.Equal(t, "u1", rc.OwnerID)
	assert.Equal(t, "Old", current.Title)
}
