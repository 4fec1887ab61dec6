package cache

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore_SetGetDelete(t *testing.T) {
	store, err := NewStore(DefaultConfig())
	require.NoError(t, err)

	store.Set("a", 1)
	entry, ok := store.Get("a")
	require.True(t, ok)
	assert.Equal(t, 1, entry.Value)
	assert.Equal(t, Fresh, entry.State)
	assert.False(t, entry.WrittenAt.IsZero())

	store.Delete("a")
	_, ok = store.Get("a")
	assert.False(t, ok)
}

func TestStore_InvalidateExactAndPrefix(t *testing.T) {
	store, err := NewStore(DefaultConfig())
	require.NoError(t, err)

	store.Set("favorite-status-batch::u1::r1,r2", map[string]bool{})
	store.Set("favorite-status-batch::u1::r3", map[string]bool{})
	store.Set("favorite-status-batch::u2::r1", map[string]bool{})

	assert.Nil(t, store.Invalidate(Exact("missing"), true))

	marked := store.Invalidate(Prefix("favorite-status-batch::u1::"), false)
	assert.Equal(t, []string{"favorite-status-batch::u1::r1,r2", "favorite-status-batch::u1::r3"}, marked)

	other, _ := store.Get("favorite-status-batch::u2::r1")
	assert.Equal(t, Fresh, other.State)

	assert.Equal(t, marked, store.Keys(Prefix("favorite-status-batch::u1::")))
	assert.Equal(t, []string{"favorite-status-batch::u2::r1"}, store.Keys(Exact("favorite-status-batch::u2::r1")))
	assert.Nil(t, store.Keys(Exact("missing")))
}

func TestStore_PatchRestoreIsVerbatim(t *testing.T) {
	store, err := NewStore(DefaultConfig())
	require.NoError(t, err)

	store.Set("k", "original")
	store.Invalidate(Exact("k"), false)
	before, _ := store.Get("k")

	snap := store.Patch("k", func(old any, ok bool) (any, bool) {
		assert.True(t, ok)
		assert.Equal(t, "original", old)
		return "patched", true
	})
	assert.True(t, snap.Existed)
	assert.True(t, snap.Applied)

	patched, _ := store.Get("k")
	assert.Equal(t, "patched", patched.Value)
	assert.Equal(t, Fresh, patched.State)

	store.Restore(snap)
	after, _ := store.Get("k")
	assert.Equal(t, before, after)
}

func TestStore_PatchMissingAndDeclined(t *testing.T) {
	store, err := NewStore(DefaultConfig())
	require.NoError(t, err)

	snap := store.Patch("new", func(old any, ok bool) (any, bool) {
		assert.False(t, ok)
		assert.Nil(t, old)
		return true, true
	})
	assert.False(t, snap.Existed)
	_, ok := store.Get("new")
	assert.True(t, ok)

	store.Restore(snap)
	_, ok = store.Get("new")
	assert.False(t, ok, "restoring a missing snapshot deletes the entry")

	declined := store.Patch("absent", func(old any, ok bool) (any, bool) {
		return nil, false
	})
	assert.False(t, declined.Applied)
	_, ok = store.Get("absent")
	assert.False(t, ok)
}

func TestConfig_DefaultIsValid(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())

	cfg.Capacity = 0
	assert.Error(t, cfg.Validate())

	_, err := NewStore(cfg)
	assert.Error(t, err)
}
