// Package engine is the entry point for callers presenting recipes.
//
// Reads go through the cache client, so repeated requests are served from
// memory and stale entries stay visible while the store is unreachable.
// Writes go through the mutation coordinator, which patches the cache before
// the store confirms and rolls the patch back when it does not.
package engine

import (
	"context"
	"errors"
	"maps"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-recipe-cache/cache"
	"github.com/goliatone/go-recipe-cache/mutation"
	"github.com/goliatone/go-recipe-cache/picker"
	"github.com/goliatone/go-recipe-cache/query"
	"github.com/goliatone/go-recipe-cache/recipe"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

var errNoPick = errors.New("engine: no pick for the day")

// Deps holds the collaborators of an Engine. Only Storage is required; the
// rest default to instances built around it.
type Deps struct {
	Storage     Storage
	Client      *cache.Client
	Planner     *query.Planner
	Picker      *picker.Service
	Coordinator *mutation.Coordinator
	Logger      *zap.Logger
	Now         func() time.Time
	NewID       func() string
}

// Engine serves recipe reads and writes for one client session.
type Engine struct {
	storage     Storage
	client      *cache.Client
	planner     *query.Planner
	picker      *picker.Service
	coordinator *mutation.Coordinator
	logger      *zap.Logger
	now         func() time.Time
	newID       func() string
}

// New builds an engine from deps.
func New(deps Deps) (*Engine, error) {
	if deps.Storage == nil {
		return nil, goerrors.New("engine requires a storage", goerrors.CategoryInternal)
	}

	e := &Engine{
		storage:     deps.Storage,
		client:      deps.Client,
		planner:     deps.Planner,
		picker:      deps.Picker,
		coordinator: deps.Coordinator,
		logger:      deps.Logger,
		now:         deps.Now,
		newID:       deps.NewID,
	}
	if e.logger == nil {
		e.logger = zap.NewNop()
	}
	if e.now == nil {
		e.now = time.Now
	}
	if e.newID == nil {
		e.newID = uuid.NewString
	}
	if e.client == nil {
		store, err := cache.NewStore(cache.DefaultConfig())
		if err != nil {
			return nil, err
		}
		e.client = cache.NewClient(store, e.logger.Named("cache"))
	}
	if e.planner == nil {
		e.planner = query.NewPlanner(e.storage, query.WithLogger(e.logger.Named("planner")))
	}
	if e.picker == nil {
		e.picker = picker.NewService(e.storage, e.logger.Named("picker"))
	}
	if e.coordinator == nil {
		e.coordinator = mutation.NewCoordinator(e.client, mutation.WithLogger(e.logger.Named("mutation")))
	}
	return e, nil
}

// Client exposes the cache client, mostly for inspection in tests and tools.
func (e *Engine) Client() *cache.Client {
	return e.client
}

// Planner exposes the query planner.
func (e *Engine) Planner() *query.Planner {
	return e.planner
}

// List returns one page of recipes matching spec. A non-empty slot names
// the UI region issuing the request: a newer List on the same slot
// supersedes this one, which then fails with cache.ErrSuperseded.
//
// When the store fails and a page for spec is cached, that page is returned
// together with the error.
func (e *Engine) List(ctx context.Context, slot string, spec recipe.FilterSpec) (recipe.Page[recipe.Recipe], error) {
	if err := spec.Normalize().Validate(e.planner.MaxLimit()); err != nil {
		return recipe.Page[recipe.Recipe]{}, err
	}

	fp := cache.RecipePage(spec)
	fetch := func(ctx context.Context) (recipe.Page[recipe.Recipe], error) {
		return e.planner.Plan(ctx, spec)
	}
	var page recipe.Page[recipe.Recipe]
	var err error
	if slot == "" {
		page, err = cache.Fetch(ctx, e.client, fp, fetch)
	} else {
		page, err = cache.FetchSlot(ctx, e.client, slot, fp, fetch)
	}
	return recipe.ClonePage(page), err
}

// Get returns a recipe by id, or nil when it does not exist.
func (e *Engine) Get(ctx context.Context, id string) (*recipe.Recipe, error) {
	rc, err := cache.Fetch(ctx, e.client, cache.Recipe(id), func(ctx context.Context) (*recipe.Recipe, error) {
		rec, err := e.storage.GetRecipe(ctx, id)
		if recipe.IsNotFound(err) {
			return nil, nil
		}
		if err != nil {
			return nil, storeError(ctx, err, "read recipe "+id)
		}
		rc := rec.ToRecipe()
		return &rc, nil
	})
	return cloneRecipe(rc), err
}

// TodaysPick returns the recipe of the day for date, or nil. It never fails
// because of the store.
func (e *Engine) TodaysPick(ctx context.Context, date time.Time) (*recipe.Recipe, error) {
	day := date.UTC().Format(picker.DateLayout)
	rc, err := cache.Fetch(ctx, e.client, cache.RecipePick(day), func(ctx context.Context) (*recipe.Recipe, error) {
		rc, err := e.picker.Today(ctx, date)
		if err == nil && rc == nil {
			return nil, errNoPick
		}
		return rc, err
	})
	if errors.Is(err, errNoPick) {
		return nil, nil
	}
	if err != nil {
		e.logger.Warn("pick of the day unavailable", zap.String("day", day), zap.Error(err))
	}
	return cloneRecipe(rc), nil
}

// IsFavorite reports whether userID has favorited recipeID.
func (e *Engine) IsFavorite(ctx context.Context, userID, recipeID string) (bool, error) {
	return cache.Fetch(ctx, e.client, cache.FavoriteStatus(userID, recipeID), func(ctx context.Context) (bool, error) {
		statuses, err := e.storage.FavoriteStatuses(ctx, userID, []string{recipeID})
		if err != nil {
			return false, storeError(ctx, err, "read favorite status")
		}
		return statuses[recipeID], nil
	})
}

// FavoriteStatuses returns the favorite status of every id for userID.
func (e *Engine) FavoriteStatuses(ctx context.Context, userID string, recipeIDs []string) (map[string]bool, error) {
	fp := cache.FavoriteStatusBatch(userID, recipeIDs)
	ids := cache.BatchIDs(fp)
	statuses, err := cache.Fetch(ctx, e.client, fp, func(ctx context.Context) (map[string]bool, error) {
		statuses, err := e.storage.FavoriteStatuses(ctx, userID, ids)
		if err != nil {
			return nil, storeError(ctx, err, "read favorite statuses")
		}
		return statuses, nil
	})
	return maps.Clone(statuses), err
}

// ToggleFavorite flips the favorite status of recipeID for userID and
// returns the new status. A duplicate add is reported as a Conflict error.
func (e *Engine) ToggleFavorite(ctx context.Context, userID, recipeID string) (bool, error) {
	was, err := e.IsFavorite(ctx, userID, recipeID)
	if err != nil {
		return was, err
	}

	return mutation.Mutate(ctx, e.coordinator, mutation.Op[bool]{
		Kind: mutation.ToggleFavorite,
		Args: mutation.Args{UserID: userID, RecipeID: recipeID, WasFavorite: was},
		Write: func(ctx context.Context) (bool, error) {
			var err error
			if was {
				err = e.storage.RemoveFavorite(ctx, userID, recipeID)
			} else {
				err = e.storage.AddFavorite(ctx, userID, recipeID)
			}
			if err != nil {
				return was, storeError(ctx, err, "toggle favorite")
			}
			return !was, nil
		},
	})
}

// CookCount returns how often userID cooked recipeID.
func (e *Engine) CookCount(ctx context.Context, userID, recipeID string) (int, error) {
	return cache.Fetch(ctx, e.client, cache.CookCount(userID, recipeID), func(ctx context.Context) (int, error) {
		counts, err := e.storage.CookCounts(ctx, userID)
		if err != nil {
			return 0, storeError(ctx, err, "read cook count")
		}
		return counts[recipeID], nil
	})
}

// CookCounts returns every recipe userID cooked with its count.
func (e *Engine) CookCounts(ctx context.Context, userID string) (map[string]int, error) {
	counts, err := cache.Fetch(ctx, e.client, cache.CookCountAll(userID), func(ctx context.Context) (map[string]int, error) {
		counts, err := e.storage.CookCounts(ctx, userID)
		if err != nil {
			return nil, storeError(ctx, err, "read cook counts")
		}
		return counts, nil
	})
	return maps.Clone(counts), err
}

// LogCooking records that userID cooked recipeID.
func (e *Engine) LogCooking(ctx context.Context, userID, recipeID string) error {
	_, err := mutation.Mutate(ctx, e.coordinator, mutation.Op[struct{}]{
		Kind: mutation.LogCooking,
		Args: mutation.Args{UserID: userID, RecipeID: recipeID},
		Write: func(ctx context.Context) (struct{}, error) {
			if err := e.storage.LogCooking(ctx, userID, recipeID); err != nil {
				return struct{}{}, storeError(ctx, err, "log cooking")
			}
			return struct{}{}, nil
		},
	})
	return err
}

// RecordView counts a view of recipeID by userID, at most once per UTC day.
// Failures are logged and dropped.
func (e *Engine) RecordView(ctx context.Context, userID, recipeID string) {
	day := e.now().UTC().Format(picker.DateLayout)
	_, err := mutation.Mutate(ctx, e.coordinator, mutation.Op[bool]{
		Kind: mutation.RecordView,
		Args: mutation.Args{UserID: userID, RecipeID: recipeID},
		Write: func(ctx context.Context) (bool, error) {
			return e.storage.IncrementViewOnce(ctx, userID, recipeID, day)
		},
	})
	if err != nil {
		e.logger.Warn("record view failed",
			zap.String("user", userID),
			zap.String("recipe", recipeID),
			zap.Error(err),
		)
	}
}

// CreateRecipe stores a new recipe. An empty ID is assigned; counters start
// at zero.
func (e *Engine) CreateRecipe(ctx context.Context, rc recipe.Recipe) (recipe.Recipe, error) {
	if err := rc.Validate(); err != nil {
		return recipe.Recipe{}, err
	}
	if rc.ID == "" {
		rc.ID = e.newID()
	}
	now := e.now().UTC()
	rc.CreatedAt, rc.UpdatedAt = now, now
	rc.ViewCount, rc.FavoriteCount, rc.CookCount = 0, 0, 0

	return mutation.Mutate(ctx, e.coordinator, mutation.Op[recipe.Recipe]{
		Kind: mutation.CreateRecipe,
		Args: mutation.Args{UserID: rc.OwnerID, RecipeID: rc.ID, Recipe: &rc},
		Write: func(ctx context.Context) (recipe.Recipe, error) {
			rec, err := e.storage.CreateRecipe(ctx, recipe.RecordFromRecipe(rc))
			if err != nil {
				return recipe.Recipe{}, storeError(ctx, err, "create recipe")
			}
			return rec.ToRecipe(), nil
		},
	})
}

// UpdateRecipe replaces the editable fields of an existing recipe.
func (e *Engine) UpdateRecipe(ctx context.Context, rc recipe.Recipe) (recipe.Recipe, error) {
	if rc.ID == "" {
		return recipe.Recipe{}, goerrors.New("recipe id is required", goerrors.CategoryValidation)
	}
	if err := rc.Validate(); err != nil {
		return recipe.Recipe{}, err
	}
	rc.UpdatedAt = e.now().UTC()

	return mutation.Mutate(ctx, e.coordinator, mutation.Op[recipe.Recipe]{
		Kind: mutation.UpdateRecipe,
		Args: mutation.Args{UserID: rc.OwnerID, RecipeID: rc.ID, Recipe: &rc},
		Write: func(ctx context.Context) (recipe.Recipe, error) {
			rec, err := e.storage.UpdateRecipe(ctx, recipe.RecordFromRecipe(rc))
			if err != nil {
				return recipe.Recipe{}, storeError(ctx, err, "update recipe")
			}
			return rec.ToRecipe(), nil
		},
	})
}

// DeleteRecipe removes a recipe along with its favorites and cooking log.
func (e *Engine) DeleteRecipe(ctx context.Context, id string) error {
	_, err := mutation.Mutate(ctx, e.coordinator, mutation.Op[struct{}]{
		Kind: mutation.DeleteRecipe,
		Args: mutation.Args{RecipeID: id},
		Write: func(ctx context.Context) (struct{}, error) {
			if err := e.storage.DeleteRecipe(ctx, id); err != nil {
				return struct{}{}, storeError(ctx, err, "delete recipe")
			}
			return struct{}{}, nil
		},
	})
	return err
}

func cloneRecipe(rc *recipe.Recipe) *recipe.Recipe {
	if rc == nil {
		return nil
	}
	out := rc.Clone()
	return &out
}

func storeError(ctx context.Context, err error, message string) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	return recipe.StorageUnavailable(err, message)
}
