package cache

import (
	"strings"
	"time"
)

// State tracks whether an entry reflects the last known server state.
type State int

const (
	Fresh State = iota
	Stale
)

func (s State) String() string {
	if s == Stale {
		return "stale"
	}
	return "fresh"
}

// Entry is one cached value keyed by its fingerprint. Refetch is only
// meaningful for stale entries: a stale entry without Refetch keeps being
// served until something asks for a refresh.
type Entry struct {
	Fingerprint string
	Value       any
	State       State
	Refetch     bool
	WrittenAt   time.Time
}

// Match selects fingerprints either exactly or by prefix.
type Match struct {
	Key    string
	Prefix bool
}

// Exact matches a single fingerprint.
func Exact(key string) Match {
	return Match{Key: key}
}

// Prefix matches every fingerprint starting with prefix.
func Prefix(prefix string) Match {
	return Match{Key: prefix, Prefix: true}
}

// Matches reports whether key is selected by m.
func (m Match) Matches(key string) bool {
	if m.Prefix {
		return strings.HasPrefix(key, m.Key)
	}
	return key == m.Key
}

func (m Match) String() string {
	if m.Prefix {
		return m.Key + "*"
	}
	return m.Key
}

// Snapshot is the state of a fingerprint before a patch. Restoring a
// snapshot of a missing entry removes the entry. Applied is false when the
// patch function declined to write.
type Snapshot struct {
	Fingerprint string
	Entry       Entry
	Existed     bool
	Applied     bool
}

// PatchFunc computes the optimistic value from the current one. Returning
// false leaves the entry untouched.
type PatchFunc func(old any, ok bool) (any, bool)

// Store holds cache entries. Implementations must make Patch and Restore
// atomic per fingerprint.
type Store interface {
	Get(fp string) (Entry, bool)
	// Set writes value as a Fresh entry.
	Set(fp string, value any)
	// Invalidate marks every present entry selected by m Stale and returns
	// the affected fingerprints.
	Invalidate(m Match, refetch bool) []string
	// Patch applies fn and returns the pre-patch snapshot.
	Patch(fp string, fn PatchFunc) Snapshot
	// Restore writes a snapshot back verbatim.
	Restore(s Snapshot)
	Keys(m Match) []string
	Delete(fp string)
}
