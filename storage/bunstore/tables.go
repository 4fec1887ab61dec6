package bunstore

import (
	"context"
	"time"

	"github.com/uptrace/bun"

	"github.com/goliatone/go-recipe-cache/recipe"
)

type favoriteRow struct {
	bun.BaseModel `bun:"table:recipe_favorites,alias:f"`

	UserID    string    `bun:"user_id,pk"`
	RecipeID  string    `bun:"recipe_id,pk"`
	CreatedAt time.Time `bun:"created_at,notnull"`
}

type cookLogRow struct {
	bun.BaseModel `bun:"table:recipe_cook_logs,alias:cl"`

	ID       int64     `bun:"id,pk,autoincrement"`
	UserID   string    `bun:"user_id,notnull"`
	RecipeID string    `bun:"recipe_id,notnull"`
	CookedAt time.Time `bun:"cooked_at,notnull"`
}

type viewRow struct {
	bun.BaseModel `bun:"table:recipe_views,alias:v"`

	UserID   string `bun:"user_id,pk"`
	RecipeID string `bun:"recipe_id,pk"`
	Day      string `bun:"day,pk"`
}

var models = []any{
	(*recipe.Record)(nil),
	(*favoriteRow)(nil),
	(*cookLogRow)(nil),
	(*viewRow)(nil),
}

// CreateSchema creates every table the store uses if it does not exist.
func (s *Store) CreateSchema(ctx context.Context) error {
	for _, model := range models {
		if _, err := s.db.NewCreateTable().Model(model).IfNotExists().Exec(ctx); err != nil {
			return err
		}
	}
	_, err := s.db.NewCreateIndex().
		Model((*cookLogRow)(nil)).
		Index("recipe_cook_logs_user_idx").
		IfNotExists().
		Column("user_id", "recipe_id").
		Exec(ctx)
	return err
}
