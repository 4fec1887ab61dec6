package query

import (
	"context"

	"github.com/goliatone/go-recipe-cache/recipe"
	"go.uber.org/zap"
)

// Store is the read side the planner needs from persistence.
type Store interface {
	// FavoriteRecipeIDs returns the ids of every recipe userID has favorited.
	FavoriteRecipeIDs(ctx context.Context, userID string) ([]string, error)
	// Find runs a counted range read: the rows in the window and the total
	// number of rows matching the clauses.
	Find(ctx context.Context, q Query) ([]recipe.Record, int, error)
	// Count returns the number of rows matching clauses.
	Count(ctx context.Context, clauses []Clause) (int, error)
}

// Option configures a Planner.
type Option func(*Planner)

// WithMaxLimit bounds FilterSpec.Limit. Values <= 0 keep recipe.DefaultMaxLimit.
func WithMaxLimit(limit int) Option {
	return func(p *Planner) {
		if limit > 0 {
			p.maxLimit = limit
		}
	}
}

// WithLogger sets the logger used for plan decisions.
func WithLogger(logger *zap.Logger) Option {
	return func(p *Planner) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// Planner turns a FilterSpec into a Query and executes it against a Store.
type Planner struct {
	store    Store
	maxLimit int
	logger   *zap.Logger
}

// NewPlanner creates a planner reading from store.
func NewPlanner(store Store, opts ...Option) *Planner {
	p := &Planner{
		store:    store,
		maxLimit: recipe.DefaultMaxLimit,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Plan validates spec, resolves favorites membership and executes the counted
// range read. A spec that matches nothing yields an empty page, never an error.
// Store failures are returned as StorageUnavailable errors.
func (p *Planner) Plan(ctx context.Context, spec recipe.FilterSpec) (recipe.Page[recipe.Recipe], error) {
	spec, err := p.prepare(spec)
	if err != nil {
		return recipe.Page[recipe.Recipe]{}, err
	}

	var favoriteIDs []string
	if spec.FavoritesOf != "" {
		favoriteIDs, err = p.store.FavoriteRecipeIDs(ctx, spec.FavoritesOf)
		if err != nil {
			return recipe.Page[recipe.Recipe]{}, storeError(ctx, err, "resolve favorite recipes")
		}
		if len(favoriteIDs) == 0 {
			p.logger.Debug("favorites empty, skipping query", zap.String("user", spec.FavoritesOf))
			return recipe.EmptyPage[recipe.Recipe](), nil
		}
	}

	q := p.build(spec, favoriteIDs)
	p.logger.Debug("planned recipe query",
		zap.Int("clauses", len(q.Clauses)),
		zap.String("sort", string(spec.Sort)),
		zap.Int("limit", q.Limit),
		zap.Int("offset", q.Offset),
	)

	records, total, err := p.store.Find(ctx, q)
	if err != nil {
		return recipe.Page[recipe.Recipe]{}, storeError(ctx, err, "list recipes")
	}

	items := make([]recipe.Recipe, 0, len(records))
	for _, rec := range records {
		items = append(items, rec.ToRecipe())
	}
	return recipe.NewPage(items, total, q.Offset), nil
}

// Describe returns the query Plan would run for spec without touching the
// store. Favorites membership is left unresolved.
func (p *Planner) Describe(spec recipe.FilterSpec) (Query, error) {
	spec, err := p.prepare(spec)
	if err != nil {
		return Query{}, err
	}
	return p.build(spec, nil), nil
}

// MaxLimit reports the configured page size bound.
func (p *Planner) MaxLimit() int {
	return p.maxLimit
}

func (p *Planner) prepare(spec recipe.FilterSpec) (recipe.FilterSpec, error) {
	spec = spec.Normalize()
	if err := spec.Validate(p.maxLimit); err != nil {
		return recipe.FilterSpec{}, err
	}
	return spec, nil
}

func (p *Planner) build(spec recipe.FilterSpec, favoriteIDs []string) Query {
	return Query{
		Clauses: buildClauses(planInput{spec: spec, favoriteIDs: favoriteIDs}),
		Order:   OrderFor(spec.Sort),
		Limit:   spec.Limit,
		Offset:  spec.Offset,
	}
}

// storeError keeps context cancellation recognizable and categorizes the rest.
func storeError(ctx context.Context, err error, message string) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	return recipe.StorageUnavailable(err, message)
}
