// Package bunstore is the SQL recipe store.
//
// Recipe rows are read and written through a go-repository-bun repository;
// favorites, cooking logs and view events go through bun directly. Postgres
// and SQLite are supported and clause rendering follows the dialect of the
// database handle.
package bunstore

import (
	"context"
	"database/sql"
	"errors"
	"time"

	goerrors "github.com/goliatone/go-errors"
	repository "github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/mattn/go-sqlite3"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect"
	"go.uber.org/zap"

	"github.com/goliatone/go-recipe-cache/query"
	"github.com/goliatone/go-recipe-cache/recipe"
)

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the store logger.
func WithLogger(logger *zap.Logger) Option {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithRepository replaces the recipe repository built from the database.
func WithRepository(repo repository.Repository[*recipe.Record]) Option {
	return func(s *Store) {
		if repo != nil {
			s.recipes = repo
		}
	}
}

// WithClock sets the time source for new rows.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// Store implements the recipe read and write contracts over SQL.
type Store struct {
	db      *bun.DB
	dialect dialect.Name
	recipes repository.Repository[*recipe.Record]
	logger  *zap.Logger
	now     func() time.Time
}

// New creates a store on db.
func New(db *bun.DB, opts ...Option) *Store {
	s := &Store{
		db:      db,
		dialect: db.Dialect().Name(),
		logger:  zap.NewNop(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.recipes == nil {
		s.recipes = NewRecipeRepository(db)
	}
	return s
}

// NewRecipeRepository returns the generic repository for recipe rows.
func NewRecipeRepository(db *bun.DB) repository.Repository[*recipe.Record] {
	return repository.NewRepository[*recipe.Record](db, repository.ModelHandlers[*recipe.Record]{
		NewRecord: func() *recipe.Record {
			return &recipe.Record{}
		},
		GetID: func(rec *recipe.Record) uuid.UUID {
			if rec == nil {
				return uuid.Nil
			}
			id, _ := uuid.Parse(rec.ID)
			return id
		},
		SetID: func(rec *recipe.Record, id uuid.UUID) {
			rec.ID = id.String()
		},
		GetIdentifier: func() string {
			return recipe.ColumnID
		},
	})
}

func (s *Store) FavoriteRecipeIDs(ctx context.Context, userID string) ([]string, error) {
	var ids []string
	err := s.db.NewSelect().
		Model((*favoriteRow)(nil)).
		Column("recipe_id").
		Where("user_id = ?", userID).
		Order("recipe_id").
		Scan(ctx, &ids)
	if err != nil {
		return nil, err
	}
	return ids, nil
}

func (s *Store) Find(ctx context.Context, q query.Query) ([]recipe.Record, int, error) {
	s.logger.Debug("find recipes", zap.Int("clauses", len(q.Clauses)), zap.Int("limit", q.Limit), zap.Int("offset", q.Offset))
	if err := checkQuery(q.Clauses, q.Order); err != nil {
		return nil, 0, err
	}

	rows, total, err := s.recipes.List(ctx,
		whereClauses(s.dialect, q.Clauses),
		orderBy(q.Order),
		window(q.Limit, q.Offset),
	)
	if err != nil {
		return nil, 0, err
	}

	records := make([]recipe.Record, 0, len(rows))
	for _, row := range rows {
		records = append(records, *row)
	}
	return records, total, nil
}

func (s *Store) Count(ctx context.Context, clauses []query.Clause) (int, error) {
	if err := checkQuery(clauses, nil); err != nil {
		return 0, err
	}
	return s.recipes.Count(ctx, whereClauses(s.dialect, clauses))
}

func (s *Store) GetRecipe(ctx context.Context, id string) (recipe.Record, error) {
	row, err := s.recipes.GetByID(ctx, id)
	if err != nil {
		if isNotFound(err) {
			return recipe.Record{}, recipe.NotFound("recipe " + id + " not found")
		}
		return recipe.Record{}, err
	}
	return *row, nil
}

func (s *Store) CreateRecipe(ctx context.Context, rec recipe.Record) (recipe.Record, error) {
	now := s.now().UTC()
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = now
	}
	if rec.UpdatedAt.IsZero() {
		rec.UpdatedAt = now
	}

	if _, err := s.db.NewInsert().Model(&rec).Exec(ctx); err != nil {
		if isUniqueViolation(err) {
			return recipe.Record{}, recipe.Conflict("recipe "+rec.ID+" already exists", "RECIPE_EXISTS")
		}
		return recipe.Record{}, err
	}
	return rec, nil
}

// editableColumns are replaced by UpdateRecipe. Counters, owner and creation
// time belong to the store.
var editableColumns = []string{
	"title", "description", "thumbnail_url", "cooking_time", "servings",
	"categories", "ingredients", "steps", "is_public", "tags", "updated_at",
}

func (s *Store) UpdateRecipe(ctx context.Context, rec recipe.Record) (recipe.Record, error) {
	if rec.UpdatedAt.IsZero() {
		rec.UpdatedAt = s.now().UTC()
	}

	res, err := s.db.NewUpdate().
		Model(&rec).
		Column(editableColumns...).
		WherePK().
		Exec(ctx)
	if err != nil {
		return recipe.Record{}, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return recipe.Record{}, recipe.NotFound("recipe " + rec.ID + " not found")
	}
	return s.GetRecipe(ctx, rec.ID)
}

func (s *Store) DeleteRecipe(ctx context.Context, id string) error {
	return s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		res, err := tx.NewDelete().Model((*recipe.Record)(nil)).Where("id = ?", id).Exec(ctx)
		if err != nil {
			return err
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return recipe.NotFound("recipe " + id + " not found")
		}
		for _, model := range []any{(*favoriteRow)(nil), (*cookLogRow)(nil), (*viewRow)(nil)} {
			if _, err := tx.NewDelete().Model(model).Where("recipe_id = ?", id).Exec(ctx); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *Store) AddFavorite(ctx context.Context, userID, recipeID string) error {
	return s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if err := recipeExists(ctx, tx, recipeID); err != nil {
			return err
		}

		exists, err := tx.NewSelect().
			Model((*favoriteRow)(nil)).
			Where("user_id = ? AND recipe_id = ?", userID, recipeID).
			Exists(ctx)
		if err != nil {
			return err
		}
		if exists {
			return favoriteConflict(userID, recipeID)
		}

		row := &favoriteRow{UserID: userID, RecipeID: recipeID, CreatedAt: s.now().UTC()}
		if _, err := tx.NewInsert().Model(row).Exec(ctx); err != nil {
			if isUniqueViolation(err) {
				return favoriteConflict(userID, recipeID)
			}
			return err
		}
		return bumpCounter(ctx, tx, recipeID, recipe.ColumnFavoriteCount, 1)
	})
}

func (s *Store) RemoveFavorite(ctx context.Context, userID, recipeID string) error {
	return s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		res, err := tx.NewDelete().
			Model((*favoriteRow)(nil)).
			Where("user_id = ? AND recipe_id = ?", userID, recipeID).
			Exec(ctx)
		if err != nil {
			return err
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return nil
		}
		return bumpCounter(ctx, tx, recipeID, recipe.ColumnFavoriteCount, -1)
	})
}

func (s *Store) FavoriteStatuses(ctx context.Context, userID string, recipeIDs []string) (map[string]bool, error) {
	out := make(map[string]bool, len(recipeIDs))
	for _, id := range recipeIDs {
		out[id] = false
	}
	if len(recipeIDs) == 0 {
		return out, nil
	}

	var found []string
	err := s.db.NewSelect().
		Model((*favoriteRow)(nil)).
		Column("recipe_id").
		Where("user_id = ?", userID).
		Where("recipe_id IN (?)", bun.In(recipeIDs)).
		Scan(ctx, &found)
	if err != nil {
		return nil, err
	}
	for _, id := range found {
		out[id] = true
	}
	return out, nil
}

func (s *Store) LogCooking(ctx context.Context, userID, recipeID string) error {
	return s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if err := recipeExists(ctx, tx, recipeID); err != nil {
			return err
		}
		row := &cookLogRow{UserID: userID, RecipeID: recipeID, CookedAt: s.now().UTC()}
		if _, err := tx.NewInsert().Model(row).Exec(ctx); err != nil {
			return err
		}
		return bumpCounter(ctx, tx, recipeID, recipe.ColumnCookCount, 1)
	})
}

type cookCount struct {
	RecipeID string `bun:"recipe_id"`
	Count    int    `bun:"count"`
}

func (s *Store) CookCounts(ctx context.Context, userID string) (map[string]int, error) {
	var rows []cookCount
	err := s.db.NewSelect().
		Model((*cookLogRow)(nil)).
		Column("recipe_id").
		ColumnExpr("COUNT(*) AS count").
		Where("user_id = ?", userID).
		Group("recipe_id").
		Scan(ctx, &rows)
	if err != nil {
		return nil, err
	}

	out := make(map[string]int, len(rows))
	for _, row := range rows {
		out[row.RecipeID] = row.Count
	}
	return out, nil
}

func (s *Store) IncrementViewOnce(ctx context.Context, userID, recipeID, day string) (bool, error) {
	moved := false
	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if err := recipeExists(ctx, tx, recipeID); err != nil {
			return err
		}
		res, err := tx.NewInsert().
			Model(&viewRow{UserID: userID, RecipeID: recipeID, Day: day}).
			On("CONFLICT DO NOTHING").
			Exec(ctx)
		if err != nil {
			return err
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return nil
		}
		moved = true
		return bumpCounter(ctx, tx, recipeID, recipe.ColumnViewCount, 1)
	})
	return moved, err
}

func recipeExists(ctx context.Context, db bun.IDB, id string) error {
	exists, err := db.NewSelect().Model((*recipe.Record)(nil)).Where("id = ?", id).Exists(ctx)
	if err != nil {
		return err
	}
	if !exists {
		return recipe.NotFound("recipe " + id + " not found")
	}
	return nil
}

// bumpCounter moves a nullable counter by delta, never below zero.
func bumpCounter(ctx context.Context, db bun.IDB, id, column string, delta int) error {
	_, err := db.NewUpdate().
		Table("recipes").
		Set("? = CASE WHEN COALESCE(?, 0) + ? > 0 THEN COALESCE(?, 0) + ? ELSE 0 END",
			bun.Ident(column), bun.Ident(column), delta, bun.Ident(column), delta).
		Where("id = ?", id).
		Exec(ctx)
	return err
}

func favoriteConflict(userID, recipeID string) error {
	return recipe.Conflict("recipe "+recipeID+" is already a favorite of "+userID, recipe.TextCodeFavoriteExists)
}

func isNotFound(err error) bool {
	return errors.Is(err, sql.ErrNoRows) ||
		repository.IsRecordNotFound(err) ||
		goerrors.HasCategory(err, goerrors.CategoryNotFound)
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	var liteErr sqlite3.Error
	if errors.As(err, &liteErr) {
		return liteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			liteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	return false
}
