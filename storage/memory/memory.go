// Package memory provides an in-memory recipe store.
//
// Clauses are evaluated in Go with the same semantics the SQL store renders,
// which makes this store the reference for planner and engine tests.
package memory

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/goliatone/go-recipe-cache/query"
	"github.com/goliatone/go-recipe-cache/recipe"
)

// Op names a store method for failure injection.
type Op string

const (
	OpFavoriteIDs      Op = "favorite_ids"
	OpFind             Op = "find"
	OpCount            Op = "count"
	OpGet              Op = "get"
	OpCreate           Op = "create"
	OpUpdate           Op = "update"
	OpDelete           Op = "delete"
	OpAddFavorite      Op = "add_favorite"
	OpRemoveFavorite   Op = "remove_favorite"
	OpFavoriteStatuses Op = "favorite_statuses"
	OpLogCooking       Op = "log_cooking"
	OpCookCounts       Op = "cook_counts"
	OpIncrementView    Op = "increment_view"
)

type viewKey struct {
	user, recipe, day string
}

// Store keeps recipes, favorites, cooking logs and view events in maps.
// Safe for concurrent access.
type Store struct {
	mu        sync.RWMutex
	recipes   map[string]recipe.Record
	favorites map[string]map[string]struct{}
	cooked    map[string]map[string]int
	views     map[viewKey]struct{}
	failures  map[Op][]error
	calls     map[Op]int
	now       func() time.Time
}

// New creates a store holding records.
func New(records ...recipe.Record) *Store {
	s := &Store{
		recipes:   make(map[string]recipe.Record, len(records)),
		favorites: make(map[string]map[string]struct{}),
		cooked:    make(map[string]map[string]int),
		views:     make(map[viewKey]struct{}),
		failures:  make(map[Op][]error),
		calls:     make(map[Op]int),
		now:       time.Now,
	}
	for _, rec := range records {
		s.recipes[rec.ID] = rec
	}
	return s
}

// FailNext makes the next call of op return err. Calls queue up.
func (s *Store) FailNext(op Op, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[op] = append(s.failures[op], err)
}

// Calls reports how often op was invoked.
func (s *Store) Calls(op Op) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.calls[op]
}

// SeedFavorite records a favorite without touching counters.
func (s *Store) SeedFavorite(userID string, recipeIDs ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range recipeIDs {
		s.favoriteSet(userID)[id] = struct{}{}
	}
}

// enter must be called with s.mu held for writing.
func (s *Store) enter(op Op) error {
	s.calls[op]++
	queue := s.failures[op]
	if len(queue) == 0 {
		return nil
	}
	s.failures[op] = queue[1:]
	return queue[0]
}

func (s *Store) FavoriteRecipeIDs(ctx context.Context, userID string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter(OpFavoriteIDs); err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(s.favorites[userID]))
	for id := range s.favorites[userID] {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

func (s *Store) Find(ctx context.Context, q query.Query) ([]recipe.Record, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter(OpFind); err != nil {
		return nil, 0, err
	}

	for _, term := range q.Order {
		if !sortable(term.Column) {
			return nil, 0, fmt.Errorf("memory: unsupported order column %q", term.Column)
		}
	}
	matched, err := s.match(q.Clauses)
	if err != nil {
		return nil, 0, err
	}
	sortRecords(matched, q.Order)

	total := len(matched)
	if q.Offset >= total {
		return []recipe.Record{}, total, nil
	}
	end := total
	if q.Limit > 0 && q.Offset+q.Limit < total {
		end = q.Offset + q.Limit
	}
	return slices.Clone(matched[q.Offset:end]), total, nil
}

func (s *Store) Count(ctx context.Context, clauses []query.Clause) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter(OpCount); err != nil {
		return 0, err
	}

	matched, err := s.match(clauses)
	if err != nil {
		return 0, err
	}
	return len(matched), nil
}

func (s *Store) GetRecipe(ctx context.Context, id string) (recipe.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter(OpGet); err != nil {
		return recipe.Record{}, err
	}

	rec, ok := s.recipes[id]
	if !ok {
		return recipe.Record{}, recipe.NotFound("recipe " + id + " not found")
	}
	return rec, nil
}

func (s *Store) CreateRecipe(ctx context.Context, rec recipe.Record) (recipe.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter(OpCreate); err != nil {
		return recipe.Record{}, err
	}

	if _, exists := s.recipes[rec.ID]; exists {
		return recipe.Record{}, recipe.Conflict("recipe "+rec.ID+" already exists", "RECIPE_EXISTS")
	}
	now := s.now().UTC()
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = now
	}
	if rec.UpdatedAt.IsZero() {
		rec.UpdatedAt = now
	}
	s.recipes[rec.ID] = rec
	return rec, nil
}

// UpdateRecipe replaces editable fields. Counters, owner and creation time
// are kept from the stored row.
func (s *Store) UpdateRecipe(ctx context.Context, rec recipe.Record) (recipe.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter(OpUpdate); err != nil {
		return recipe.Record{}, err
	}

	current, ok := s.recipes[rec.ID]
	if !ok {
		return recipe.Record{}, recipe.NotFound("recipe " + rec.ID + " not found")
	}
	rec.OwnerID = current.OwnerID
	rec.CreatedAt = current.CreatedAt
	rec.ViewCount = current.ViewCount
	rec.FavoriteCount = current.FavoriteCount
	rec.CookCount = current.CookCount
	if rec.UpdatedAt.IsZero() {
		rec.UpdatedAt = s.now().UTC()
	}
	s.recipes[rec.ID] = rec
	return rec, nil
}

func (s *Store) DeleteRecipe(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter(OpDelete); err != nil {
		return err
	}

	if _, ok := s.recipes[id]; !ok {
		return recipe.NotFound("recipe " + id + " not found")
	}
	delete(s.recipes, id)
	for _, set := range s.favorites {
		delete(set, id)
	}
	for _, counts := range s.cooked {
		delete(counts, id)
	}
	return nil
}

func (s *Store) AddFavorite(ctx context.Context, userID, recipeID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter(OpAddFavorite); err != nil {
		return err
	}

	rec, ok := s.recipes[recipeID]
	if !ok {
		return recipe.NotFound("recipe " + recipeID + " not found")
	}
	set := s.favoriteSet(userID)
	if _, exists := set[recipeID]; exists {
		return recipe.Conflict(fmt.Sprintf("recipe %s is already a favorite of %s", recipeID, userID), recipe.TextCodeFavoriteExists)
	}
	set[recipeID] = struct{}{}
	s.recipes[recipeID] = bump(rec, recipe.ColumnFavoriteCount, 1)
	return nil
}

func (s *Store) RemoveFavorite(ctx context.Context, userID, recipeID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter(OpRemoveFavorite); err != nil {
		return err
	}

	set := s.favorites[userID]
	if _, exists := set[recipeID]; !exists {
		return nil
	}
	delete(set, recipeID)
	if rec, ok := s.recipes[recipeID]; ok {
		s.recipes[recipeID] = bump(rec, recipe.ColumnFavoriteCount, -1)
	}
	return nil
}

func (s *Store) FavoriteStatuses(ctx context.Context, userID string, recipeIDs []string) (map[string]bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter(OpFavoriteStatuses); err != nil {
		return nil, err
	}

	out := make(map[string]bool, len(recipeIDs))
	set := s.favorites[userID]
	for _, id := range recipeIDs {
		_, out[id] = set[id]
	}
	return out, nil
}

func (s *Store) LogCooking(ctx context.Context, userID, recipeID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter(OpLogCooking); err != nil {
		return err
	}

	rec, ok := s.recipes[recipeID]
	if !ok {
		return recipe.NotFound("recipe " + recipeID + " not found")
	}
	counts, ok := s.cooked[userID]
	if !ok {
		counts = make(map[string]int)
		s.cooked[userID] = counts
	}
	counts[recipeID]++
	s.recipes[recipeID] = bump(rec, recipe.ColumnCookCount, 1)
	return nil
}

func (s *Store) CookCounts(ctx context.Context, userID string) (map[string]int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter(OpCookCounts); err != nil {
		return nil, err
	}

	out := make(map[string]int, len(s.cooked[userID]))
	for id, n := range s.cooked[userID] {
		if n > 0 {
			out[id] = n
		}
	}
	return out, nil
}

func (s *Store) IncrementViewOnce(ctx context.Context, userID, recipeID, day string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter(OpIncrementView); err != nil {
		return false, err
	}

	rec, ok := s.recipes[recipeID]
	if !ok {
		return false, recipe.NotFound("recipe " + recipeID + " not found")
	}
	key := viewKey{user: userID, recipe: recipeID, day: day}
	if _, seen := s.views[key]; seen {
		return false, nil
	}
	s.views[key] = struct{}{}
	s.recipes[recipeID] = bump(rec, recipe.ColumnViewCount, 1)
	return true, nil
}

func (s *Store) favoriteSet(userID string) map[string]struct{} {
	set, ok := s.favorites[userID]
	if !ok {
		set = make(map[string]struct{})
		s.favorites[userID] = set
	}
	return set
}

func (s *Store) match(clauses []query.Clause) ([]recipe.Record, error) {
	out := make([]recipe.Record, 0, len(s.recipes))
	for _, rec := range s.recipes {
		ok, err := s.matches(rec, clauses)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (s *Store) matches(rec recipe.Record, clauses []query.Clause) (bool, error) {
	for _, c := range clauses {
		ok, err := s.evaluate(rec, c)
		if err != nil || !ok {
			return false, err
		}
	}
	return true, nil
}

func (s *Store) evaluate(rec recipe.Record, c query.Clause) (bool, error) {
	switch c := c.(type) {
	case query.FavoriteIDs:
		if c.IDs == nil {
			_, ok := s.favorites[c.UserID][rec.ID]
			return ok, nil
		}
		return slices.Contains(c.IDs, rec.ID), nil
	case query.Owner:
		return rec.OwnerID == c.UserID, nil
	case query.Visibility:
		return rec.IsPublic == c.Public, nil
	case query.TextSearch:
		needle := strings.ToLower(c.Text)
		if strings.Contains(strings.ToLower(rec.Title), needle) {
			return true, nil
		}
		return rec.Description != nil && strings.Contains(strings.ToLower(*rec.Description), needle), nil
	case query.CategoryAny:
		for _, code := range rec.Categories.Codes(c.Dimension) {
			if slices.Contains(c.Codes, code) {
				return true, nil
			}
		}
		return false, nil
	case query.CookingTimeRange:
		if rec.CookingTime == nil {
			return false, nil
		}
		t := *rec.CookingTime
		if c.Min != nil && t < *c.Min {
			return false, nil
		}
		if c.Max != nil && t > *c.Max {
			return false, nil
		}
		return true, nil
	case query.TagsAll:
		for _, tag := range c.Tags {
			if !slices.Contains(rec.Tags, tag) {
				return false, nil
			}
		}
		return true, nil
	}
	return false, fmt.Errorf("memory: unsupported clause %T", c)
}

func sortable(column string) bool {
	switch column {
	case recipe.ColumnID, recipe.ColumnCreatedAt,
		recipe.ColumnCookCount, recipe.ColumnViewCount, recipe.ColumnFavoriteCount:
		return true
	}
	return false
}

func sortRecords(records []recipe.Record, order []query.OrderTerm) {
	sort.SliceStable(records, func(i, j int) bool {
		for _, term := range order {
			cmp := compareColumn(records[i], records[j], term.Column)
			if cmp == 0 {
				continue
			}
			if term.Desc {
				return cmp > 0
			}
			return cmp < 0
		}
		return false
	})
}

func compareColumn(a, b recipe.Record, column string) int {
	switch column {
	case recipe.ColumnID:
		return strings.Compare(a.ID, b.ID)
	case recipe.ColumnCreatedAt:
		return a.CreatedAt.Compare(b.CreatedAt)
	default:
		x, y := a.Counter(column), b.Counter(column)
		switch {
		case x < y:
			return -1
		case x > y:
			return 1
		}
		return 0
	}
}

// bump returns rec with a counter moved by delta, never below zero. Records
// are stored by value so the caller's copy is not affected.
func bump(rec recipe.Record, column string, delta int) recipe.Record {
	n := max(rec.Counter(column)+delta, 0)
	switch column {
	case recipe.ColumnViewCount:
		rec.ViewCount = &n
	case recipe.ColumnFavoriteCount:
		rec.FavoriteCount = &n
	case recipe.ColumnCookCount:
		rec.CookCount = &n
	}
	return rec
}
