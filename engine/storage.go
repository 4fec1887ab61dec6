package engine

import (
	"context"

	"github.com/goliatone/go-recipe-cache/query"
	"github.com/goliatone/go-recipe-cache/recipe"
)

// Writer is the write side and the point reads the engine needs from
// persistence. Missing rows are reported with recipe.NotFound; a duplicate
// favorite with recipe.Conflict.
type Writer interface {
	GetRecipe(ctx context.Context, id string) (recipe.Record, error)
	CreateRecipe(ctx context.Context, rec recipe.Record) (recipe.Record, error)
	UpdateRecipe(ctx context.Context, rec recipe.Record) (recipe.Record, error)
	DeleteRecipe(ctx context.Context, id string) error

	AddFavorite(ctx context.Context, userID, recipeID string) error
	RemoveFavorite(ctx context.Context, userID, recipeID string) error
	// FavoriteStatuses returns an entry for every requested id.
	FavoriteStatuses(ctx context.Context, userID string, recipeIDs []string) (map[string]bool, error)

	LogCooking(ctx context.Context, userID, recipeID string) error
	// CookCounts returns how often userID cooked each recipe, omitting zeros.
	CookCounts(ctx context.Context, userID string) (map[string]int, error)

	// IncrementViewOnce bumps the view counter of a recipe at most once per
	// user and UTC day. It reports whether the counter moved.
	IncrementViewOnce(ctx context.Context, userID, recipeID, day string) (bool, error)
}

// Storage is everything the engine needs from persistence.
type Storage interface {
	query.Store
	Writer
}
