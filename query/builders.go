package query

import "github.com/goliatone/go-recipe-cache/recipe"

type planInput struct {
	spec        recipe.FilterSpec
	favoriteIDs []string
}

// builder contributes zero or more clauses for one FilterSpec field.
type builder func(in planInput) []Clause

// builders run in order; the resulting clause order is part of the planned
// query and shows up in rendered SQL.
var builders = []builder{
	favoritesClause,
	ownerClause,
	visibilityClause,
	textClause,
	categoryClauses,
	cookingTimeClause,
	tagsClause,
}

func buildClauses(in planInput) []Clause {
	clauses := make([]Clause, 0, len(builders))
	for _, build := range builders {
		clauses = append(clauses, build(in)...)
	}
	return clauses
}

func favoritesClause(in planInput) []Clause {
	if in.spec.FavoritesOf == "" {
		return nil
	}
	return []Clause{FavoriteIDs{UserID: in.spec.FavoritesOf, IDs: in.favoriteIDs}}
}

func ownerClause(in planInput) []Clause {
	if in.spec.OwnerID == "" {
		return nil
	}
	return []Clause{Owner{UserID: in.spec.OwnerID}}
}

func visibilityClause(in planInput) []Clause {
	if in.spec.Public == nil {
		return nil
	}
	return []Clause{Visibility{Public: *in.spec.Public}}
}

func textClause(in planInput) []Clause {
	if in.spec.SearchText == "" {
		return nil
	}
	return []Clause{TextSearch{Text: in.spec.SearchText}}
}

// categoryClauses emits one clause per dimension so that codes OR within a
// dimension and dimensions AND with each other.
func categoryClauses(in planInput) []Clause {
	var out []Clause
	for _, dim := range recipe.Dimensions {
		codes := in.spec.Categories[dim]
		if len(codes) == 0 {
			continue
		}
		out = append(out, CategoryAny{Dimension: dim, Codes: codes})
	}
	return out
}

func cookingTimeClause(in planInput) []Clause {
	r := in.spec.CookingTime
	if r == nil || (r.Min == nil && r.Max == nil) {
		return nil
	}
	return []Clause{CookingTimeRange{Min: r.Min, Max: r.Max}}
}

func tagsClause(in planInput) []Clause {
	if len(in.spec.Tags) == 0 {
		return nil
	}
	return []Clause{TagsAll{Tags: in.spec.Tags}}
}
