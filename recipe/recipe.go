package recipe

import (
	"errors"
	"fmt"
	"slices"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/uptrace/bun"
)

// Ingredient is a single ingredient line of a recipe.
type Ingredient struct {
	Name   string  `json:"name"`
	Amount string  `json:"amount"`
	Unit   *string `json:"unit,omitempty"`
}

// Step is an ordered preparation step. Number is 1-based.
type Step struct {
	Number      int     `json:"step_number"`
	Description string  `json:"description"`
	ImageURL    *string `json:"image_url,omitempty"`
}

// Recipe is the read model handed to callers. Categories is always the flat,
// ordered list; the grouped shape only exists on Record.
type Recipe struct {
	ID            string       `json:"id"`
	OwnerID       string       `json:"owner_id"`
	Title         string       `json:"title"`
	Description   *string      `json:"description,omitempty"`
	ThumbnailURL  *string      `json:"thumbnail_url,omitempty"`
	CookingTime   *int         `json:"cooking_time,omitempty"`
	Servings      *int         `json:"servings,omitempty"`
	Categories    []Category   `json:"categories"`
	Ingredients   []Ingredient `json:"ingredients"`
	Steps         []Step       `json:"steps"`
	IsPublic      bool         `json:"is_public"`
	ViewCount     int          `json:"view_count"`
	FavoriteCount int          `json:"favorite_count"`
	CookCount     int          `json:"cook_count"`
	Tags          []string     `json:"tags"`
	CreatedAt     time.Time    `json:"created_at"`
	UpdatedAt     time.Time    `json:"updated_at"`
}

// Clone returns a deep copy of rc. Cached values are handed out as clones so
// callers cannot edit what the cache holds.
func (rc Recipe) Clone() Recipe {
	out := rc
	out.Description = clonePtr(rc.Description)
	out.ThumbnailURL = clonePtr(rc.ThumbnailURL)
	out.CookingTime = clonePtr(rc.CookingTime)
	out.Servings = clonePtr(rc.Servings)
	out.Categories = slices.Clone(rc.Categories)
	out.Tags = slices.Clone(rc.Tags)
	if rc.Ingredients != nil {
		out.Ingredients = make([]Ingredient, len(rc.Ingredients))
		for i, ing := range rc.Ingredients {
			ing.Unit = clonePtr(ing.Unit)
			out.Ingredients[i] = ing
		}
	}
	if rc.Steps != nil {
		out.Steps = make([]Step, len(rc.Steps))
		for i, step := range rc.Steps {
			step.ImageURL = clonePtr(step.ImageURL)
			out.Steps[i] = step
		}
	}
	return out
}

func clonePtr[T any](v *T) *T {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}

// Validate checks the fields a caller may write. Counters and timestamps are
// owned by storage and are not checked.
func (rc Recipe) Validate() error {
	err := validation.ValidateStruct(&rc,
		validation.Field(&rc.OwnerID, validation.Required),
		validation.Field(&rc.Title, validation.Required, validation.Length(1, 200)),
		validation.Field(&rc.CookingTime, validation.Min(0)),
		validation.Field(&rc.Servings, validation.When(rc.Servings != nil, validation.Required, validation.Min(1))),
		validation.Field(&rc.Categories, validation.By(validateCategoryList)),
		validation.Field(&rc.Ingredients, validation.Each(validation.By(validateIngredient))),
		validation.Field(&rc.Steps, validation.By(validateSteps)),
		validation.Field(&rc.Tags, validation.Each(validation.Required)),
	)
	if err != nil {
		return NewValidationError("invalid recipe", err)
	}
	return nil
}

func validateCategoryList(value any) error {
	categories, _ := value.([]Category)
	for _, c := range categories {
		if !c.Dimension.Valid() {
			return errors.New("unknown dimension " + string(c.Dimension))
		}
		if c.Code == "" {
			return errors.New("category in " + string(c.Dimension) + " has no code")
		}
	}
	return nil
}

// validateSteps requires step numbers to run 1, 2, 3... in list order.
func validateSteps(value any) error {
	steps, _ := value.([]Step)
	for i, step := range steps {
		if step.Number != i+1 {
			return fmt.Errorf("step %d is numbered %d", i+1, step.Number)
		}
	}
	return nil
}

func validateIngredient(value any) error {
	ing, _ := value.(Ingredient)
	if ing.Name == "" {
		return errors.New("ingredient name is required")
	}
	return nil
}

// Record is the storage row for a recipe. Counters and arrays are nullable and
// categories are grouped by dimension, which is how the relational store keeps them.
type Record struct {
	bun.BaseModel `bun:"table:recipes,alias:r" json:"-"`

	ID            string         `bun:"id,pk" json:"id"`
	OwnerID       string         `bun:"owner_id,notnull" json:"owner_id"`
	Title         string         `bun:"title,notnull" json:"title"`
	Description   *string        `bun:"description" json:"description,omitempty"`
	ThumbnailURL  *string        `bun:"thumbnail_url" json:"thumbnail_url,omitempty"`
	CookingTime   *int           `bun:"cooking_time" json:"cooking_time,omitempty"`
	Servings      *int           `bun:"servings" json:"servings,omitempty"`
	Categories    CategoryGroups `bun:"categories,type:jsonb" json:"categories,omitempty"`
	Ingredients   []Ingredient   `bun:"ingredients,type:jsonb" json:"ingredients,omitempty"`
	Steps         []Step         `bun:"steps,type:jsonb" json:"steps,omitempty"`
	IsPublic      bool           `bun:"is_public,notnull" json:"is_public"`
	ViewCount     *int           `bun:"view_count" json:"view_count,omitempty"`
	FavoriteCount *int           `bun:"favorite_count" json:"favorite_count,omitempty"`
	CookCount     *int           `bun:"cook_count" json:"cook_count,omitempty"`
	Tags          []string       `bun:"tags,type:jsonb" json:"tags,omitempty"`
	CreatedAt     time.Time      `bun:"created_at,notnull" json:"created_at"`
	UpdatedAt     time.Time      `bun:"updated_at,notnull" json:"updated_at"`
}

// ToRecipe maps a storage row to the read model: categories are flattened,
// nil counters become 0 and nil arrays become empty.
func (r Record) ToRecipe() Recipe {
	return Recipe{
		ID:            r.ID,
		OwnerID:       r.OwnerID,
		Title:         r.Title,
		Description:   r.Description,
		ThumbnailURL:  r.ThumbnailURL,
		CookingTime:   r.CookingTime,
		Servings:      r.Servings,
		Categories:    Flatten(r.Categories),
		Ingredients:   orEmpty(r.Ingredients),
		Steps:         orEmpty(r.Steps),
		IsPublic:      r.IsPublic,
		ViewCount:     intOrZero(r.ViewCount),
		FavoriteCount: intOrZero(r.FavoriteCount),
		CookCount:     intOrZero(r.CookCount),
		Tags:          orEmpty(r.Tags),
		CreatedAt:     r.CreatedAt,
		UpdatedAt:     r.UpdatedAt,
	}
}

// RecordFromRecipe is the inverse of ToRecipe used on the write path.
func RecordFromRecipe(rc Recipe) Record {
	return Record{
		ID:            rc.ID,
		OwnerID:       rc.OwnerID,
		Title:         rc.Title,
		Description:   rc.Description,
		ThumbnailURL:  rc.ThumbnailURL,
		CookingTime:   rc.CookingTime,
		Servings:      rc.Servings,
		Categories:    GroupByDimension(rc.Categories),
		Ingredients:   rc.Ingredients,
		Steps:         rc.Steps,
		IsPublic:      rc.IsPublic,
		ViewCount:     intPtr(rc.ViewCount),
		FavoriteCount: intPtr(rc.FavoriteCount),
		CookCount:     intPtr(rc.CookCount),
		Tags:          rc.Tags,
		CreatedAt:     rc.CreatedAt,
		UpdatedAt:     rc.UpdatedAt,
	}
}

// Counter returns the value of a nullable counter column by name, treating nil as 0.
// Unknown columns return 0.
func (r Record) Counter(column string) int {
	switch column {
	case ColumnViewCount:
		return intOrZero(r.ViewCount)
	case ColumnFavoriteCount:
		return intOrZero(r.FavoriteCount)
	case ColumnCookCount:
		return intOrZero(r.CookCount)
	}
	return 0
}

func intOrZero(v *int) int {
	if v == nil {
		return 0
	}
	return *v
}

func intPtr(v int) *int {
	return &v
}

func orEmpty[T any](in []T) []T {
	if in == nil {
		return []T{}
	}
	return in
}
