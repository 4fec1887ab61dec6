// Package picker selects the recipe of the day.
//
// The choice depends only on the calendar date and the size of the
// collection, so every client asking on the same UTC day sees the same pick
// as long as the collection does not change.
package picker

import (
	"context"
	"time"

	"github.com/goliatone/go-recipe-cache/query"
	"github.com/goliatone/go-recipe-cache/recipe"
	"go.uber.org/zap"
)

// DateLayout is the day key the seed is derived from.
const DateLayout = "2006-01-02"

// Seed folds the UTC day of date into an int64 hash.
func Seed(date time.Time) int64 {
	var seed int64
	for _, c := range date.UTC().Format(DateLayout) {
		seed = seed*31 + int64(c)
	}
	return seed
}

// Pick returns the index of the day's pick in a collection of total rows.
// It reports false when the collection is empty.
func Pick(total int, date time.Time) (int, bool) {
	if total <= 0 {
		return 0, false
	}
	seed := Seed(date)
	if seed < 0 {
		seed = -seed
	}
	return int(seed % int64(total)), true
}

// Service reads the day's pick from a store.
type Service struct {
	store  query.Store
	logger *zap.Logger
}

// NewService creates a picker service. A nil logger disables logging.
func NewService(store query.Store, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{store: store, logger: logger}
}

// Today returns the pick for date, or nil when the collection is empty or the
// store cannot serve it. Failures are logged and never returned.
func (s *Service) Today(ctx context.Context, date time.Time) (*recipe.Recipe, error) {
	total, err := s.store.Count(ctx, nil)
	if err != nil {
		s.logger.Warn("pick of the day: count failed", zap.Error(err))
		return nil, nil
	}

	index, ok := Pick(total, date)
	if !ok {
		return nil, nil
	}

	records, _, err := s.store.Find(ctx, query.Query{
		Order: []query.OrderTerm{
			{Column: recipe.ColumnCreatedAt},
			{Column: recipe.ColumnID},
		},
		Limit:  1,
		Offset: index,
	})
	if err != nil {
		s.logger.Warn("pick of the day: read failed", zap.Int("index", index), zap.Error(err))
		return nil, nil
	}
	if len(records) == 0 {
		s.logger.Warn("pick of the day: no row at index", zap.Int("index", index), zap.Int("total", total))
		return nil, nil
	}

	rc := records[0].ToRecipe()
	return &rc, nil
}
