// Package mutation runs writes with optimistic cache updates.
//
// Each mutation kind declares a Plan in a static table: the fingerprints to
// patch before the write and the invalidations to run once it settles. A
// mutation instance moves through Pending, then Applied or RolledBack, and
// always ends Settled. While an instance is between Pending and Settled it
// holds a lock for every fingerprint it patches, so snapshot, patch and
// rollback on one fingerprint never interleave with another mutation.
package mutation

import (
	"context"
	"sync"
	"sync/atomic"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-recipe-cache/cache"
	"github.com/puzpuzpuz/xsync/v3"
	"go.uber.org/zap"
)

// State is the lifecycle position of a mutation instance.
type State int

const (
	Pending State = iota
	Applied
	RolledBack
	Settled
)

func (s State) String() string {
	switch s {
	case Pending:
		return "pending"
	case Applied:
		return "applied"
	case RolledBack:
		return "rolled_back"
	case Settled:
		return "settled"
	}
	return "unknown"
}

// Event reports a state transition of one mutation instance.
type Event struct {
	ID      uint64
	Kind    Kind
	State   State
	Targets []string
	Err     error
}

// Observer receives every state transition. It runs synchronously on the
// mutating goroutine.
type Observer func(Event)

// Op is one mutation request. Write performs the authoritative write.
type Op[T any] struct {
	Kind  Kind
	Args  Args
	Write func(ctx context.Context) (T, error)
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithLogger sets the coordinator logger.
func WithLogger(logger *zap.Logger) Option {
	return func(c *Coordinator) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithObserver registers an observer for state transitions.
func WithObserver(observer Observer) Option {
	return func(c *Coordinator) {
		c.observer = observer
	}
}

// WithPlans replaces the plan table.
func WithPlans(plans map[Kind]PlanFunc) Option {
	return func(c *Coordinator) {
		c.plans = plans
	}
}

// Coordinator is the only writer of optimistic cache state.
type Coordinator struct {
	client   *cache.Client
	logger   *zap.Logger
	observer Observer
	plans    map[Kind]PlanFunc
	locks    *xsync.MapOf[string, *sync.Mutex]
	seq      atomic.Uint64
}

// NewCoordinator creates a coordinator patching through client.
func NewCoordinator(client *cache.Client, opts ...Option) *Coordinator {
	c := &Coordinator{
		client: client,
		logger: zap.NewNop(),
		plans:  DefaultPlans,
		locks:  xsync.NewMapOf[string, *sync.Mutex](),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Mutate runs op under its plan: patch, write, then keep or roll back, and
// finally invalidate. The write error is returned unchanged.
func Mutate[T any](ctx context.Context, c *Coordinator, op Op[T]) (T, error) {
	var zero T

	build, ok := c.plans[op.Kind]
	if !ok {
		return zero, goerrors.New("unknown mutation kind "+string(op.Kind), goerrors.CategoryInternal)
	}
	if op.Write == nil {
		return zero, goerrors.New("mutation "+string(op.Kind)+" has no write", goerrors.CategoryInternal)
	}

	m := c.begin(op.Kind, build(op.Args))
	defer m.release()

	result, err := op.Write(ctx)
	if err != nil {
		m.rollback(err)
	} else {
		m.apply()
	}

	m.settle(context.WithoutCancel(ctx))
	return result, err
}

type instance struct {
	c         *Coordinator
	id        uint64
	kind      Kind
	plan      Plan
	held      []*sync.Mutex
	snapshots []cache.Snapshot
	targets   []string
}

func (c *Coordinator) begin(kind Kind, plan Plan) *instance {
	m := &instance{c: c, id: c.seq.Add(1), kind: kind, plan: plan}

	for _, key := range plan.LockKeys() {
		mu, _ := c.locks.LoadOrCompute(key, func() *sync.Mutex { return &sync.Mutex{} })
		mu.Lock()
		m.held = append(m.held, mu)
	}

	matches := make([]cache.Match, 0, len(plan.Patches))
	for _, p := range plan.Patches {
		matches = append(matches, p.Match)
	}
	if len(matches) > 0 {
		c.client.Cancel(matches...)
	}

	for _, p := range plan.Patches {
		for _, fp := range c.resolve(p) {
			snap := c.client.Patch(fp, p.Apply)
			if snap.Applied {
				m.snapshots = append(m.snapshots, snap)
				m.targets = append(m.targets, fp)
			}
		}
	}

	c.logger.Debug("mutation pending",
		zap.Uint64("id", m.id),
		zap.String("kind", string(kind)),
		zap.Strings("patched", m.targets),
	)
	m.emit(Pending, nil)
	return m
}

func (c *Coordinator) resolve(p Patch) []string {
	if !p.Match.Prefix {
		return []string{p.Match.Key}
	}
	var fps []string
	for _, fp := range c.client.Keys(p.Match) {
		if p.Filter == nil || p.Filter(fp) {
			fps = append(fps, fp)
		}
	}
	return fps
}

func (m *instance) apply() {
	m.emit(Applied, nil)
}

func (m *instance) rollback(err error) {
	for i := len(m.snapshots) - 1; i >= 0; i-- {
		m.c.client.Restore(m.snapshots[i])
	}
	m.c.logger.Error("mutation rolled back",
		zap.Uint64("id", m.id),
		zap.String("kind", string(m.kind)),
		zap.Strings("restored", m.targets),
		zap.Error(err),
	)
	m.emit(RolledBack, err)
}

func (m *instance) settle(ctx context.Context) {
	m.c.client.Invalidate(ctx, m.plan.Invalidations...)
	m.c.logger.Debug("mutation settled", zap.Uint64("id", m.id), zap.String("kind", string(m.kind)))
	m.emit(Settled, nil)
}

func (m *instance) release() {
	for i := len(m.held) - 1; i >= 0; i-- {
		m.held[i].Unlock()
	}
	m.held = nil
}

func (m *instance) emit(state State, err error) {
	if m.c.observer == nil {
		return
	}
	m.c.observer(Event{ID: m.id, Kind: m.kind, State: state, Targets: m.targets, Err: err})
}
