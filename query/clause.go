package query

import "github.com/goliatone/go-recipe-cache/recipe"

// Clause is one predicate of a planned query. The set of clauses is closed:
// store implementations switch over the concrete types below and may treat
// an unknown clause as a programming error.
type Clause interface {
	clause()
}

// FavoriteIDs restricts results to the recipes a user has favorited. IDs holds
// the resolved membership; it is nil when the query was only described.
type FavoriteIDs struct {
	UserID string
	IDs    []string
}

// Owner restricts results to recipes created by UserID.
type Owner struct {
	UserID string
}

// Visibility restricts results to public or private recipes.
type Visibility struct {
	Public bool
}

// TextSearch matches a case-insensitive substring of the title or description.
type TextSearch struct {
	Text string
}

// CategoryAny matches recipes carrying at least one of Codes in Dimension.
type CategoryAny struct {
	Dimension recipe.Dimension
	Codes     []string
}

// CookingTimeRange matches an inclusive cooking time window. A nil bound is open.
type CookingTimeRange struct {
	Min *int
	Max *int
}

// TagsAll matches recipes carrying every tag.
type TagsAll struct {
	Tags []string
}

func (FavoriteIDs) clause()      {}
func (Owner) clause()            {}
func (Visibility) clause()       {}
func (TextSearch) clause()       {}
func (CategoryAny) clause()      {}
func (CookingTimeRange) clause() {}
func (TagsAll) clause()          {}

// OrderTerm is one ORDER BY term.
type OrderTerm struct {
	Column string
	Desc   bool
}

// Query is the storage-independent description of a counted range read.
type Query struct {
	Clauses []Clause
	Order   []OrderTerm
	Limit   int
	Offset  int
}
