package cache

import (
	"time"

	"github.com/goliatone/go-recipe-cache/internal/cacheinfra"
)

var _ Store = (*sturdycStore)(nil)

// sturdycStore adapts the generic sturdyc store to Entry semantics.
type sturdycStore struct {
	entries *cacheinfra.SturdycStore[Entry]
	now     func() time.Time
}

func newSturdycStore(cfg cacheinfra.Config, now func() time.Time) (*sturdycStore, error) {
	entries, err := cacheinfra.NewSturdycStore[Entry](cfg)
	if err != nil {
		return nil, err
	}
	if now == nil {
		now = time.Now
	}
	return &sturdycStore{entries: entries, now: now}, nil
}

func (s *sturdycStore) Get(fp string) (Entry, bool) {
	return s.entries.Get(fp)
}

func (s *sturdycStore) Set(fp string, value any) {
	s.entries.Set(fp, Entry{
		Fingerprint: fp,
		Value:       value,
		State:       Fresh,
		WrittenAt:   s.now(),
	})
}

func (s *sturdycStore) Invalidate(m Match, refetch bool) []string {
	mark := func(e Entry) (Entry, bool) {
		e.State = Stale
		e.Refetch = refetch
		return e, true
	}

	if m.Prefix {
		return s.entries.UpdatePrefix(m.Key, func(_ string, e Entry) (Entry, bool) {
			return mark(e)
		})
	}

	_, ok := s.entries.Update(m.Key, func(e Entry, ok bool) (Entry, bool) {
		if !ok {
			return e, false
		}
		return mark(e)
	})
	if !ok {
		return nil
	}
	return []string{m.Key}
}

func (s *sturdycStore) Patch(fp string, fn PatchFunc) Snapshot {
	applied := false
	old, existed := s.entries.Update(fp, func(e Entry, ok bool) (Entry, bool) {
		var current any
		if ok {
			current = e.Value
		}
		next, keep := fn(current, ok)
		if !keep {
			return e, false
		}
		applied = true
		return Entry{Fingerprint: fp, Value: next, State: Fresh, WrittenAt: s.now()}, true
	})
	return Snapshot{Fingerprint: fp, Entry: old, Existed: existed, Applied: applied}
}

func (s *sturdycStore) Restore(snap Snapshot) {
	if !snap.Existed {
		s.entries.Delete(snap.Fingerprint)
		return
	}
	s.entries.Set(snap.Fingerprint, snap.Entry)
}

func (s *sturdycStore) Keys(m Match) []string {
	if m.Prefix {
		return s.entries.Keys(m.Key)
	}
	if _, ok := s.entries.Get(m.Key); ok {
		return []string{m.Key}
	}
	return nil
}

func (s *sturdycStore) Delete(fp string) {
	s.entries.Delete(fp)
}
