package bunstore

import (
	"encoding/json"
	"fmt"
	"strings"

	repository "github.com/goliatone/go-repository-bun"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect"

	"github.com/goliatone/go-recipe-cache/query"
	"github.com/goliatone/go-recipe-cache/recipe"
)

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// checkQuery reports clauses and order columns the renderers below do not
// handle. Find and Count call it before building criteria.
func checkQuery(clauses []query.Clause, order []query.OrderTerm) error {
	for _, c := range clauses {
		switch c.(type) {
		case query.FavoriteIDs, query.Owner, query.Visibility, query.TextSearch,
			query.CategoryAny, query.CookingTimeRange, query.TagsAll:
		default:
			return fmt.Errorf("bunstore: unsupported clause %T", c)
		}
	}
	for _, term := range order {
		switch term.Column {
		case recipe.ColumnCookCount, recipe.ColumnViewCount, recipe.ColumnFavoriteCount,
			recipe.ColumnCreatedAt, recipe.ColumnID:
		default:
			return fmt.Errorf("bunstore: unsupported order column %q", term.Column)
		}
	}
	return nil
}

// whereClauses renders clauses as AND-ed WHERE conditions for the dialect.
func whereClauses(name dialect.Name, clauses []query.Clause) repository.SelectCriteria {
	return func(q *bun.SelectQuery) *bun.SelectQuery {
		for _, c := range clauses {
			q = applyClause(q, name, c)
		}
		return q
	}
}

func applyClause(q *bun.SelectQuery, name dialect.Name, c query.Clause) *bun.SelectQuery {
	switch c := c.(type) {
	case query.FavoriteIDs:
		if c.IDs == nil {
			return q.Where("r.id IN (SELECT f.recipe_id FROM recipe_favorites AS f WHERE f.user_id = ?)", c.UserID)
		}
		return q.Where("r.id IN (?)", bun.In(c.IDs))
	case query.Owner:
		return q.Where("r.owner_id = ?", c.UserID)
	case query.Visibility:
		return q.Where("r.is_public = ?", c.Public)
	case query.TextSearch:
		pattern := "%" + likeEscaper.Replace(c.Text) + "%"
		if name == dialect.PG {
			return q.Where("(r.title ILIKE ? OR r.description ILIKE ?)", pattern, pattern)
		}
		pattern = strings.ToLower(pattern)
		return q.Where(`(lower(r.title) LIKE ? ESCAPE '\' OR lower(r.description) LIKE ? ESCAPE '\')`, pattern, pattern)
	case query.CategoryAny:
		if name == dialect.PG {
			return q.Where("EXISTS (SELECT 1 FROM jsonb_array_elements(r.categories -> ?) AS c WHERE c ->> 'code' IN (?))",
				string(c.Dimension), bun.In(c.Codes))
		}
		return q.Where("EXISTS (SELECT 1 FROM json_each(r.categories, ?) AS c WHERE json_extract(c.value, '$.code') IN (?))",
			"$."+string(c.Dimension), bun.In(c.Codes))
	case query.CookingTimeRange:
		if c.Min != nil {
			q = q.Where("r.cooking_time >= ?", *c.Min)
		}
		if c.Max != nil {
			q = q.Where("r.cooking_time <= ?", *c.Max)
		}
		if c.Min == nil && c.Max == nil {
			q = q.Where("r.cooking_time IS NOT NULL")
		}
		return q
	case query.TagsAll:
		if name == dialect.PG {
			tags, _ := json.Marshal(c.Tags)
			return q.Where("r.tags @> ?::jsonb", string(tags))
		}
		for _, tag := range c.Tags {
			q = q.Where("EXISTS (SELECT 1 FROM json_each(r.tags) AS t WHERE t.value = ?)", tag)
		}
		return q
	}
	return q
}

// orderBy renders order terms. Counter columns are nullable and sort as 0.
func orderBy(order []query.OrderTerm) repository.SelectCriteria {
	return func(q *bun.SelectQuery) *bun.SelectQuery {
		for _, term := range order {
			dir := "ASC"
			if term.Desc {
				dir = "DESC"
			}
			switch term.Column {
			case recipe.ColumnCookCount, recipe.ColumnViewCount, recipe.ColumnFavoriteCount:
				q = q.OrderExpr("COALESCE(r." + term.Column + ", 0) " + dir)
			case recipe.ColumnCreatedAt, recipe.ColumnID:
				q = q.OrderExpr("r." + term.Column + " " + dir)
			}
		}
		return q
	}
}

func window(limit, offset int) repository.SelectCriteria {
	return func(q *bun.SelectQuery) *bun.SelectQuery {
		if limit > 0 {
			q = q.Limit(limit)
		}
		if offset > 0 {
			q = q.Offset(offset)
		}
		return q
	}
}
