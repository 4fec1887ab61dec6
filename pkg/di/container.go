package di

import (
	"context"

	"github.com/uptrace/bun"
	"go.uber.org/zap"

	"github.com/goliatone/go-recipe-cache/cache"
	"github.com/goliatone/go-recipe-cache/config"
	"github.com/goliatone/go-recipe-cache/engine"
	"github.com/goliatone/go-recipe-cache/mutation"
	"github.com/goliatone/go-recipe-cache/picker"
	"github.com/goliatone/go-recipe-cache/query"
	"github.com/goliatone/go-recipe-cache/storage/bunstore"
	"github.com/goliatone/go-recipe-cache/storage/memory"
)

// Option customizes a Container before its components are built.
type Option func(*Container)

// WithStorage uses storage instead of the backend named by the config.
func WithStorage(storage engine.Storage) Option {
	return func(c *Container) {
		c.storage = storage
	}
}

// WithLogger uses logger instead of one built from the log config.
func WithLogger(logger *zap.Logger) Option {
	return func(c *Container) {
		c.logger = logger
	}
}

// WithObserver registers an observer for mutation state transitions.
func WithObserver(observer mutation.Observer) Option {
	return func(c *Container) {
		c.observer = observer
	}
}

// Container wires the recipe engine from a configuration. Every component
// is a singleton owned by the container.
type Container struct {
	config      config.Config
	logger      *zap.Logger
	db          *bun.DB
	storage     engine.Storage
	cacheStore  cache.Store
	client      *cache.Client
	planner     *query.Planner
	picker      *picker.Service
	coordinator *mutation.Coordinator
	observer    mutation.Observer
	engine      *engine.Engine
}

// NewContainer validates cfg and builds every component.
func NewContainer(ctx context.Context, cfg config.Config, opts ...Option) (*Container, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	c := &Container{config: cfg}
	for _, opt := range opts {
		opt(c)
	}

	if c.logger == nil {
		logger, err := NewLogger(cfg.Log)
		if err != nil {
			return nil, err
		}
		c.logger = logger
	}

	if c.storage == nil {
		storage, err := c.openStorage(ctx)
		if err != nil {
			return nil, err
		}
		c.storage = storage
	}

	cacheStore, err := cache.NewStore(cfg.CacheConfig())
	if err != nil {
		c.Close()
		return nil, err
	}
	c.cacheStore = cacheStore
	c.client = cache.NewClient(cacheStore, c.logger.Named("cache"))
	c.planner = query.NewPlanner(c.storage,
		query.WithMaxLimit(cfg.Planner.MaxLimit),
		query.WithLogger(c.logger.Named("planner")),
	)
	c.picker = picker.NewService(c.storage, c.logger.Named("picker"))

	coordinatorOpts := []mutation.Option{mutation.WithLogger(c.logger.Named("mutation"))}
	if c.observer != nil {
		coordinatorOpts = append(coordinatorOpts, mutation.WithObserver(c.observer))
	}
	c.coordinator = mutation.NewCoordinator(c.client, coordinatorOpts...)

	c.engine, err = engine.New(engine.Deps{
		Storage:     c.storage,
		Client:      c.client,
		Planner:     c.planner,
		Picker:      c.picker,
		Coordinator: c.coordinator,
		Logger:      c.logger.Named("engine"),
	})
	if err != nil {
		c.Close()
		return nil, err
	}
	return c, nil
}

// NewContainerWithDefaults builds a container on the in-memory store.
func NewContainerWithDefaults(opts ...Option) (*Container, error) {
	return NewContainer(context.Background(), config.Default(), opts...)
}

func (c *Container) openStorage(ctx context.Context) (engine.Storage, error) {
	if c.config.Storage.Backend == config.StorageMemory {
		return memory.New(), nil
	}

	db, err := bunstore.Open(c.config.Storage.Driver, c.config.Storage.DSN)
	if err != nil {
		return nil, err
	}
	store := bunstore.New(db, bunstore.WithLogger(c.logger.Named("bunstore")))
	if c.config.Storage.Migrate {
		if err := store.CreateSchema(ctx); err != nil {
			db.Close()
			return nil, err
		}
	}
	c.db = db
	return store, nil
}

// Close releases the database handle, if any.
func (c *Container) Close() error {
	if c.db == nil {
		return nil
	}
	err := c.db.Close()
	c.db = nil
	return err
}

func (c *Container) Engine() *engine.Engine {
	return c.engine
}

func (c *Container) Storage() engine.Storage {
	return c.storage
}

func (c *Container) CacheStore() cache.Store {
	return c.cacheStore
}

func (c *Container) Client() *cache.Client {
	return c.client
}

func (c *Container) Planner() *query.Planner {
	return c.planner
}

func (c *Container) Picker() *picker.Service {
	return c.picker
}

func (c *Container) Coordinator() *mutation.Coordinator {
	return c.coordinator
}

func (c *Container) Logger() *zap.Logger {
	return c.logger
}

// Config returns a copy of the configuration used by this container.
func (c *Container) Config() config.Config {
	return c.config
}
