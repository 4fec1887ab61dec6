package picker

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/goliatone/go-recipe-cache/query"
	"github.com/goliatone/go-recipe-cache/recipe"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type stubStore struct {
	records  []recipe.Record
	countErr error
	findErr  error
	queries  []query.Query
}

func (s *stubStore) FavoriteRecipeIDs(ctx context.Context, userID string) ([]string, error) {
	return nil, nil
}

func (s *stubStore) Find(ctx context.Context, q query.Query) ([]recipe.Record, int, error) {
	s.queries = append(s.queries, q)
	if s.findErr != nil {
		return nil, 0, s.findErr
	}
	if q.Offset >= len(s.records) {
		return nil, len(s.records), nil
	}
	end := q.Offset + q.Limit
	if end > len(s.records) {
		end = len(s.records)
	}
	return s.records[q.Offset:end], len(s.records), nil
}

func (s *stubStore) Count(ctx context.Context, clauses []query.Clause) (int, error) {
	return len(s.records), s.countErr
}

func day(s string) time.Time {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		panic(err)
	}
	return t
}

func TestSeed_KnownValues(t *testing.T) {
	assert.Equal(t, int64(1364342992873059), Seed(day("2024-01-15")))
	assert.Equal(t, int64(1364342993826429), Seed(day("2024-12-31")))
}

func TestSeed_UsesUTCDay(t *testing.T) {
	seoul := time.FixedZone("KST", 9*60*60)
	// 2024-01-16 08:00 in Seoul is still 2024-01-15 in UTC.
	local := time.Date(2024, 1, 16, 8, 0, 0, 0, seoul)
	assert.Equal(t, Seed(day("2024-01-15")), Seed(local))
}

func TestPick(t *testing.T) {
	tests := []struct {
		date  string
		total int
		index int
		ok    bool
	}{
		{date: "2024-01-15", total: 12, index: 3, ok: true},
		{date: "2024-01-15", total: 13, index: 4, ok: true},
		{date: "2024-12-31", total: 7, index: 1, ok: true},
		{date: "2024-12-31", total: 1, index: 0, ok: true},
		{date: "2024-12-31", total: 0, ok: false},
		{date: "2024-12-31", total: -3, ok: false},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("%s/%d", tt.date, tt.total), func(t *testing.T) {
			index, ok := Pick(tt.total, day(tt.date))
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.Equal(t, tt.index, index)
			}
		})
	}
}

func TestPick_StableWithinDay(t *testing.T) {
	morning := time.Date(2024, 3, 9, 0, 0, 1, 0, time.UTC)
	night := time.Date(2024, 3, 9, 23, 59, 59, 0, time.UTC)

	for total := 1; total < 50; total++ {
		a, _ := Pick(total, morning)
		b, _ := Pick(total, night)
		assert.Equal(t, a, b)
		assert.Less(t, a, total)
	}
}

func seedRecords(n int) []recipe.Record {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	out := make([]recipe.Record, n)
	for i := range out {
		out[i] = recipe.Record{
			ID:        fmt.Sprintf("r%02d", i),
			Title:     fmt.Sprintf("Recipe %d", i),
			CreatedAt: base.Add(time.Duration(i) * time.Hour),
		}
	}
	return out
}

func TestService_Today(t *testing.T) {
	store := &stubStore{records: seedRecords(12)}
	svc := NewService(store, zaptest.NewLogger(t))

	got, err := svc.Today(context.Background(), day("2024-01-15"))
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "r03", got.ID)

	require.Len(t, store.queries, 1)
	q := store.queries[0]
	assert.Equal(t, 1, q.Limit)
	assert.Equal(t, 3, q.Offset)
	assert.Equal(t, []query.OrderTerm{{Column: recipe.ColumnCreatedAt}, {Column: recipe.ColumnID}}, q.Order)
}

func TestService_TodayIsBestEffort(t *testing.T) {
	ctx := context.Background()
	date := day("2024-01-15")

	got, err := NewService(&stubStore{}, nil).Today(ctx, date)
	assert.NoError(t, err)
	assert.Nil(t, got, "empty collection has no pick")

	got, err = NewService(&stubStore{records: seedRecords(3), countErr: errors.New("down")}, zaptest.NewLogger(t)).Today(ctx, date)
	assert.NoError(t, err)
	assert.Nil(t, got)

	got, err = NewService(&stubStore{records: seedRecords(3), findErr: errors.New("down")}, zaptest.NewLogger(t)).Today(ctx, date)
	assert.NoError(t, err)
	assert.Nil(t, got)
}
