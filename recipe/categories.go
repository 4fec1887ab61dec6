package recipe

import "sort"

// Dimension is one axis of the category taxonomy.
type Dimension string

const (
	DimensionSituation Dimension = "situation"
	DimensionCuisine   Dimension = "cuisine"
	DimensionDishType  Dimension = "dish_type"
)

// Dimensions lists the known dimensions in canonical order.
var Dimensions = []Dimension{DimensionSituation, DimensionCuisine, DimensionDishType}

// Valid reports whether d is one of the known dimensions.
func (d Dimension) Valid() bool {
	for _, known := range Dimensions {
		if d == known {
			return true
		}
	}
	return false
}

// Category is one entry of the flat category list carried by Recipe.
type Category struct {
	Dimension Dimension `json:"dimension"`
	Code      string    `json:"code"`
	Name      string    `json:"name"`
}

// CategoryRef is a category inside its dimension group.
type CategoryRef struct {
	Code string `json:"code"`
	Name string `json:"name"`
}

// CategoryGroups is the storage shape of categories: dimension -> ordered refs.
type CategoryGroups map[Dimension][]CategoryRef

// Codes returns the category codes stored for one dimension, in order.
func (g CategoryGroups) Codes(d Dimension) []string {
	refs := g[d]
	out := make([]string, 0, len(refs))
	for _, ref := range refs {
		out = append(out, ref.Code)
	}
	return out
}

// GroupByDimension groups a flat list by dimension, keeping the original order
// inside each dimension. A nil or empty list yields nil.
func GroupByDimension(categories []Category) CategoryGroups {
	if len(categories) == 0 {
		return nil
	}
	groups := make(CategoryGroups)
	for _, c := range categories {
		groups[c.Dimension] = append(groups[c.Dimension], CategoryRef{Code: c.Code, Name: c.Name})
	}
	return groups
}

// Flatten turns grouped categories into the flat list. Known dimensions come
// first in canonical order, unknown ones follow alphabetically; order within a
// dimension is preserved.
func Flatten(groups CategoryGroups) []Category {
	out := make([]Category, 0)
	for _, d := range orderedDimensions(groups) {
		for _, ref := range groups[d] {
			out = append(out, Category{Dimension: d, Code: ref.Code, Name: ref.Name})
		}
	}
	return out
}

func orderedDimensions(groups CategoryGroups) []Dimension {
	dims := make([]Dimension, 0, len(groups))
	for _, d := range Dimensions {
		if _, ok := groups[d]; ok {
			dims = append(dims, d)
		}
	}

	var extra []Dimension
	for d := range groups {
		if !d.Valid() {
			extra = append(extra, d)
		}
	}
	sort.Slice(extra, func(i, j int) bool { return extra[i] < extra[j] })

	return append(dims, extra...)
}
