package cache

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	goerrors "github.com/goliatone/go-errors"
	"github.com/puzpuzpuz/xsync/v3"
	"go.uber.org/zap"
)

var (
	// ErrSuperseded is returned to a slot request replaced by a newer one.
	ErrSuperseded = errors.New("cache: request superseded by a newer request for the same slot")
	// ErrCancelled is returned when a mutation cancelled a read and nothing
	// cached can stand in for its result.
	ErrCancelled = errors.New("cache: read cancelled by a mutation")
)

// maxReadAttempts bounds how often a read cancelled by mutations is retried.
const maxReadAttempts = 3

// FetchFunc is the function signature Client expects when fetching from the source of truth.
type FetchFunc[T any] func(ctx context.Context) (T, error)

type fetchFunc func(ctx context.Context) (any, error)

// Invalidation marks entries stale. With Refetch set, entries that were
// populated through Fetch are reloaded right away. With Drop set, entries
// are removed instead, so the next read always goes to the source.
type Invalidation struct {
	Match   Match
	Refetch bool
	Drop    bool
}

type inflightRead struct {
	fp     string
	cancel context.CancelFunc
}

type slotState struct {
	gen    uint64
	cancel context.CancelFunc
}

// Client is the read-through front of a Store. Every fingerprint carries a
// generation; a fetch only lands if the generation it started with is still
// current, so reads cancelled by a mutation never overwrite its result.
type Client struct {
	store  Store
	logger *zap.Logger

	seq         atomic.Uint64
	generations *xsync.MapOf[string, uint64]
	inflight    *xsync.MapOf[uint64, inflightRead]
	fetchers    *xsync.MapOf[string, fetchFunc]
	slots       *xsync.MapOf[string, slotState]
}

// NewClient wraps store. A nil logger disables logging.
func NewClient(store Store, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		store:       store,
		logger:      logger,
		generations: xsync.NewMapOf[string, uint64](),
		inflight:    xsync.NewMapOf[uint64, inflightRead](),
		fetchers:    xsync.NewMapOf[string, fetchFunc](),
		slots:       xsync.NewMapOf[string, slotState](),
	}
}

// Fetch returns the cached value for fp or loads it with fetch.
//
// A fresh entry is served as is. A stale entry is served without a fetch
// unless it was invalidated with Refetch. When the fetch fails the store is
// left untouched and any stale value is returned along with the error.
func Fetch[T any](ctx context.Context, c *Client, fp string, fetch FetchFunc[T]) (T, error) {
	return fetchTyped(ctx, c, fp, fetch, nil)
}

// FetchSlot is Fetch for a logical UI slot: a newer request on the same slot
// cancels the older one, whose result is discarded and reported as
// ErrSuperseded.
func FetchSlot[T any](ctx context.Context, c *Client, slot, fp string, fetch FetchFunc[T]) (T, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	gen := c.enterSlot(slot, cancel)
	current := func() bool { return c.slotCurrent(slot, gen) }

	value, err := fetchTyped(ctx, c, fp, fetch, current)
	if !current() {
		var zero T
		c.logger.Debug("slot request superseded", zap.String("slot", slot), zap.String("fingerprint", fp))
		return zero, ErrSuperseded
	}
	return value, err
}

func fetchTyped[T any](ctx context.Context, c *Client, fp string, fetch FetchFunc[T], valid func() bool) (T, error) {
	fn := func(ctx context.Context) (any, error) {
		return fetch(ctx)
	}
	c.fetchers.Store(fp, fn)

	value, err := c.read(ctx, fp, fn, valid)
	out, convErr := valueAs[T](value)
	if err != nil {
		return out, err
	}
	return out, convErr
}

func valueAs[T any](value any) (T, error) {
	var zero T
	if value == nil {
		return zero, nil
	}
	out, ok := value.(T)
	if !ok {
		return zero, goerrors.New(
			fmt.Sprintf("cached value of type %T cannot be used as %T", value, zero),
			goerrors.CategoryInternal,
		)
	}
	return out, nil
}

// Peek returns the entry for fp without fetching.
func (c *Client) Peek(fp string) (Entry, bool) {
	return c.store.Get(fp)
}

// Keys returns the cached fingerprints selected by m.
func (c *Client) Keys(m Match) []string {
	return c.store.Keys(m)
}

// Patch applies an optimistic update. Only the mutation coordinator should
// call it, while holding the locks for fp.
func (c *Client) Patch(fp string, fn PatchFunc) Snapshot {
	return c.store.Patch(fp, fn)
}

// Restore writes a snapshot taken by Patch back verbatim.
func (c *Client) Restore(s Snapshot) {
	c.store.Restore(s)
}

// Cancel bumps the generation of every fingerprint selected by matches and
// cancels their in-flight reads. Results of those reads are never stored.
func (c *Client) Cancel(matches ...Match) {
	for _, m := range matches {
		if !m.Prefix {
			c.bump(m.Key)
			continue
		}
		c.generations.Range(func(fp string, _ uint64) bool {
			if m.Matches(fp) {
				c.bump(fp)
			}
			return true
		})
	}

	c.inflight.Range(func(_ uint64, read inflightRead) bool {
		for _, m := range matches {
			if m.Matches(read.fp) {
				read.cancel()
				break
			}
		}
		return true
	})
}

// Invalidate marks the selected entries stale, or removes them for a Drop.
// Reads in flight for those fingerprints are cancelled first so they cannot
// land a pre-invalidation result as fresh. It returns every fingerprint that
// was marked or removed.
func (c *Client) Invalidate(ctx context.Context, invalidations ...Invalidation) []string {
	var marked []string
	for _, inv := range invalidations {
		c.Cancel(inv.Match)
		if inv.Drop {
			fps := c.store.Keys(inv.Match)
			for _, fp := range fps {
				c.store.Delete(fp)
			}
			c.logger.Debug("dropped", zap.Stringer("match", inv.Match), zap.Int("entries", len(fps)))
			marked = append(marked, fps...)
			continue
		}
		fps := c.store.Invalidate(inv.Match, inv.Refetch)
		c.logger.Debug("invalidated",
			zap.Stringer("match", inv.Match),
			zap.Bool("refetch", inv.Refetch),
			zap.Int("entries", len(fps)),
		)
		marked = append(marked, fps...)

		if !inv.Refetch {
			continue
		}
		for _, fp := range fps {
			if err := c.Refetch(ctx, fp); err != nil {
				c.logger.Warn("refetch after invalidation failed", zap.String("fingerprint", fp), zap.Error(err))
			}
		}
	}
	return marked
}

// Refetch reloads fp with the fetcher registered by the last Fetch for it,
// regardless of the entry state. Unknown fingerprints are a no-op.
func (c *Client) Refetch(ctx context.Context, fp string) error {
	fn, ok := c.fetchers.Load(fp)
	if !ok {
		return nil
	}
	entry, cached := c.store.Get(fp)
	_, err := c.load(ctx, fp, fn, entry, cached, nil)
	return err
}

func (c *Client) read(ctx context.Context, fp string, fn fetchFunc, valid func() bool) (any, error) {
	entry, cached := c.store.Get(fp)
	if cached && (entry.State == Fresh || !entry.Refetch) {
		c.logger.Debug("cache hit", zap.String("fingerprint", fp), zap.Stringer("state", entry.State))
		return entry.Value, nil
	}
	c.logger.Debug("cache miss", zap.String("fingerprint", fp), zap.Bool("stale", cached))
	return c.load(ctx, fp, fn, entry, cached, valid)
}

// load runs fn and stores its result if no mutation touched fp meanwhile.
// A read that lost its generation serves what the mutation left in the
// cache, or is retried when nothing is cached.
func (c *Client) load(ctx context.Context, fp string, fn fetchFunc, prev Entry, hasPrev bool, valid func() bool) (any, error) {
	for attempt := 1; ; attempt++ {
		value, dropped, err := c.loadOnce(ctx, fp, fn, valid)
		if !dropped {
			if err != nil && hasPrev {
				return prev.Value, err
			}
			return value, err
		}

		if entry, ok := c.store.Get(fp); ok {
			return entry.Value, nil
		}
		if err == nil {
			return value, nil
		}
		if ctx.Err() != nil || (valid != nil && !valid()) {
			return nil, err
		}
		if attempt >= maxReadAttempts {
			return nil, ErrCancelled
		}
	}
}

// loadOnce reports dropped when the generation of fp moved while fn ran.
func (c *Client) loadOnce(ctx context.Context, fp string, fn fetchFunc, valid func() bool) (any, bool, error) {
	gen := c.generation(fp)

	fetchCtx, cancel := context.WithCancel(ctx)
	id := c.seq.Add(1)
	c.inflight.Store(id, inflightRead{fp: fp, cancel: cancel})
	defer func() {
		c.inflight.Delete(id)
		cancel()
	}()

	value, err := fn(fetchCtx)
	if err != nil {
		return nil, c.generation(fp) != gen, err
	}

	if !c.commit(fp, gen, value, valid) {
		c.logger.Debug("discarded read result", zap.String("fingerprint", fp))
		return value, true, nil
	}
	return value, false, nil
}

func (c *Client) generation(fp string) uint64 {
	gen, _ := c.generations.LoadOrStore(fp, 0)
	return gen
}

func (c *Client) bump(fp string) {
	c.generations.Compute(fp, func(gen uint64, _ bool) (uint64, bool) {
		return gen + 1, false
	})
}

// commit writes value while holding the generation slot for fp, so a
// concurrent Cancel either happens before the check or after the write.
func (c *Client) commit(fp string, gen uint64, value any, valid func() bool) bool {
	committed := false
	c.generations.Compute(fp, func(current uint64, _ bool) (uint64, bool) {
		if current == gen && (valid == nil || valid()) {
			c.store.Set(fp, value)
			committed = true
		}
		return current, false
	})
	return committed
}

func (c *Client) enterSlot(slot string, cancel context.CancelFunc) uint64 {
	state, _ := c.slots.Compute(slot, func(old slotState, loaded bool) (slotState, bool) {
		if loaded && old.cancel != nil {
			old.cancel()
		}
		return slotState{gen: old.gen + 1, cancel: cancel}, false
	})
	return state.gen
}

func (c *Client) slotCurrent(slot string, gen uint64) bool {
	state, ok := c.slots.Load(slot)
	return ok && state.gen == gen
}
