package mutation

import (
	"slices"

	"github.com/goliatone/go-recipe-cache/cache"
	"github.com/goliatone/go-recipe-cache/recipe"
)

// Kind names a mutation. Every kind has an entry in the plan table.
type Kind string

const (
	ToggleFavorite Kind = "toggle_favorite"
	LogCooking     Kind = "log_cooking"
	CreateRecipe   Kind = "create_recipe"
	UpdateRecipe   Kind = "update_recipe"
	DeleteRecipe   Kind = "delete_recipe"
	RecordView     Kind = "record_view"
)

// Args carries what a plan needs to know about the mutation.
type Args struct {
	UserID   string
	RecipeID string
	// WasFavorite is the favorite status before a toggle.
	WasFavorite bool
	// Recipe holds the new field values for an update.
	Recipe *recipe.Recipe
}

// Patch is one optimistic target. A prefix match patches every cached
// fingerprint it selects that Filter accepts.
type Patch struct {
	Match  cache.Match
	Filter func(fp string) bool
	Apply  cache.PatchFunc
}

// Plan declares what a mutation touches: patches applied before the write
// and invalidations run when it settles.
type Plan struct {
	Patches       []Patch
	Invalidations []cache.Invalidation
}

// LockKeys returns the sorted, unique keys a mutation must hold.
func (p Plan) LockKeys() []string {
	keys := make([]string, 0, len(p.Patches))
	for _, patch := range p.Patches {
		keys = append(keys, patch.Match.Key)
	}
	slices.Sort(keys)
	return slices.Compact(keys)
}

// PlanFunc builds the plan for one mutation instance.
type PlanFunc func(args Args) Plan

// DefaultPlans is the plan table used by NewCoordinator.
var DefaultPlans = map[Kind]PlanFunc{
	ToggleFavorite: toggleFavoritePlan,
	LogCooking:     logCookingPlan,
	CreateRecipe:   createRecipePlan,
	UpdateRecipe:   updateRecipePlan,
	DeleteRecipe:   deleteRecipePlan,
	RecordView:     recordViewPlan,
}

func refetch(m cache.Match) cache.Invalidation {
	return cache.Invalidation{Match: m, Refetch: true}
}

func markStale(m cache.Match) cache.Invalidation {
	return cache.Invalidation{Match: m}
}

func drop(m cache.Match) cache.Invalidation {
	return cache.Invalidation{Match: m, Drop: true}
}

func toggleFavoritePlan(args Args) Plan {
	now := !args.WasFavorite
	delta := 1
	if args.WasFavorite {
		delta = -1
	}

	return Plan{
		Patches: []Patch{
			{
				Match: cache.Exact(cache.FavoriteStatus(args.UserID, args.RecipeID)),
				Apply: func(any, bool) (any, bool) { return now, true },
			},
			{
				Match:  cache.KindPrefix(cache.KindFavoriteStatusBatch, args.UserID),
				Filter: batchContains(args.RecipeID),
				Apply:  setBatchStatus(args.RecipeID, now),
			},
			{
				Match: cache.Exact(cache.Recipe(args.RecipeID)),
				Apply: adjustRecipe(func(rc *recipe.Recipe) {
					rc.FavoriteCount = max(rc.FavoriteCount+delta, 0)
				}),
			},
		},
		Invalidations: []cache.Invalidation{
			refetch(cache.Exact(cache.FavoriteStatus(args.UserID, args.RecipeID))),
			markStale(cache.KindPrefix(cache.KindFavoriteStatusBatch, args.UserID)),
			refetch(cache.Exact(cache.Recipe(args.RecipeID))),
			refetch(cache.KindPrefix(cache.KindRecipePageFavorites, args.UserID)),
			markStale(cache.KindPrefix(cache.KindRecipePage)),
		},
	}
}

func logCookingPlan(args Args) Plan {
	return Plan{
		Patches: []Patch{
			{
				Match: cache.Exact(cache.CookCount(args.UserID, args.RecipeID)),
				Apply: func(old any, ok bool) (any, bool) {
					n, isInt := old.(int)
					if !ok || !isInt {
						return nil, false
					}
					return n + 1, true
				},
			},
			{
				Match: cache.Exact(cache.CookCountAll(args.UserID)),
				Apply: incrementCount(args.RecipeID),
			},
			{
				Match: cache.Exact(cache.Recipe(args.RecipeID)),
				Apply: adjustRecipe(func(rc *recipe.Recipe) {
					rc.CookCount++
				}),
			},
		},
		Invalidations: []cache.Invalidation{
			refetch(cache.Exact(cache.CookCount(args.UserID, args.RecipeID))),
			markStale(cache.Exact(cache.CookCountAll(args.UserID))),
			refetch(cache.Exact(cache.Recipe(args.RecipeID))),
			markStale(cache.KindPrefix(cache.KindRecipePage)),
		},
	}
}

func createRecipePlan(args Args) Plan {
	return Plan{
		Invalidations: []cache.Invalidation{
			refetch(cache.KindPrefix(cache.KindRecipePage)),
			drop(cache.KindPrefix(cache.KindRecipePick)),
		},
	}
}

func updateRecipePlan(args Args) Plan {
	return Plan{
		Patches: []Patch{
			{
				Match: cache.Exact(cache.Recipe(args.RecipeID)),
				Apply: func(old any, ok bool) (any, bool) {
					current, isRecipe := old.(*recipe.Recipe)
					if !ok || !isRecipe || current == nil || args.Recipe == nil {
						return nil, false
					}
					next := mergeRecipe(*current, *args.Recipe)
					return &next, true
				},
			},
		},
		Invalidations: []cache.Invalidation{
			refetch(cache.Exact(cache.Recipe(args.RecipeID))),
			refetch(cache.KindPrefix(cache.KindRecipePage)),
			refetch(cache.KindPrefix(cache.KindRecipePageFavorites)),
			drop(cache.KindPrefix(cache.KindRecipePick)),
		},
	}
}

func deleteRecipePlan(args Args) Plan {
	return Plan{
		Patches: []Patch{
			{
				Match: cache.Exact(cache.Recipe(args.RecipeID)),
				Apply: func(old any, ok bool) (any, bool) {
					if !ok {
						return nil, false
					}
					return (*recipe.Recipe)(nil), true
				},
			},
		},
		Invalidations: []cache.Invalidation{
			refetch(cache.Exact(cache.Recipe(args.RecipeID))),
			refetch(cache.KindPrefix(cache.KindRecipePage)),
			refetch(cache.KindPrefix(cache.KindRecipePageFavorites)),
			markStale(cache.KindPrefix(cache.KindFavoriteStatus)),
			markStale(cache.KindPrefix(cache.KindFavoriteStatusBatch)),
			drop(cache.KindPrefix(cache.KindRecipePick)),
		},
	}
}

func recordViewPlan(args Args) Plan {
	return Plan{
		Invalidations: []cache.Invalidation{
			markStale(cache.Exact(cache.Recipe(args.RecipeID))),
		},
	}
}

// adjustRecipe patches a cached detail through a copy so the snapshot keeps
// pointing at the untouched original.
func adjustRecipe(fn func(rc *recipe.Recipe)) cache.PatchFunc {
	return func(old any, ok bool) (any, bool) {
		current, isRecipe := old.(*recipe.Recipe)
		if !ok || !isRecipe || current == nil {
			return nil, false
		}
		next := *current
		fn(&next)
		return &next, true
	}
}

func batchContains(recipeID string) func(fp string) bool {
	return func(fp string) bool {
		return slices.Contains(cache.BatchIDs(fp), recipeID)
	}
}

func setBatchStatus(recipeID string, status bool) cache.PatchFunc {
	return func(old any, ok bool) (any, bool) {
		current, isMap := old.(map[string]bool)
		if !ok || !isMap {
			return nil, false
		}
		next := make(map[string]bool, len(current)+1)
		for id, v := range current {
			next[id] = v
		}
		next[recipeID] = status
		return next, true
	}
}

func incrementCount(recipeID string) cache.PatchFunc {
	return func(old any, ok bool) (any, bool) {
		current, isMap := old.(map[string]int)
		if !ok || !isMap {
			return nil, false
		}
		next := make(map[string]int, len(current)+1)
		for id, v := range current {
			next[id] = v
		}
		next[recipeID]++
		return next, true
	}
}

// mergeRecipe applies editable fields from update onto current, keeping
// identity, counters and creation time.
func mergeRecipe(current, update recipe.Recipe) recipe.Recipe {
	next := current
	next.Title = update.Title
	next.Description = update.Description
	next.ThumbnailURL = update.ThumbnailURL
	next.CookingTime = update.CookingTime
	next.Servings = update.Servings
	next.Categories = update.Categories
	next.Ingredients = update.Ingredients
	next.Steps = update.Steps
	next.IsPublic = update.IsPublic
	next.Tags = update.Tags
	if !update.UpdatedAt.IsZero() {
		next.UpdatedAt = update.UpdatedAt
	}
	return next
}
