package query

import "github.com/goliatone/go-recipe-cache/recipe"

var sortTable = map[recipe.SortMode]OrderTerm{
	recipe.SortLatest:      {Column: recipe.ColumnCreatedAt, Desc: true},
	recipe.SortOldest:      {Column: recipe.ColumnCreatedAt},
	recipe.SortMostCooked:  {Column: recipe.ColumnCookCount, Desc: true},
	recipe.SortLeastCooked: {Column: recipe.ColumnCookCount},
	recipe.SortMostViewed:  {Column: recipe.ColumnViewCount, Desc: true},
	recipe.SortLeastViewed: {Column: recipe.ColumnViewCount},
	recipe.SortFavorites:   {Column: recipe.ColumnFavoriteCount, Desc: true},
}

// OrderFor returns the ORDER BY terms for a sort mode. The primary term is
// always followed by id in the same direction so equal keys keep a total order.
// An unknown mode falls back to latest.
func OrderFor(mode recipe.SortMode) []OrderTerm {
	primary, ok := sortTable[mode]
	if !ok {
		primary = sortTable[recipe.SortLatest]
	}
	return []OrderTerm{
		primary,
		{Column: recipe.ColumnID, Desc: primary.Desc},
	}
}
