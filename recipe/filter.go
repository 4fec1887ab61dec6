package recipe

import (
	"errors"
	"sort"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

const (
	// DefaultLimit is the page size used when a FilterSpec leaves Limit unset.
	DefaultLimit = 10
	// DefaultMaxLimit bounds Limit when the caller does not configure a bound.
	DefaultMaxLimit = 100
)

// Column names shared by the planner and the storage implementations.
const (
	ColumnID            = "id"
	ColumnCreatedAt     = "created_at"
	ColumnCookCount     = "cook_count"
	ColumnViewCount     = "view_count"
	ColumnFavoriteCount = "favorite_count"
)

// SortMode is one of the fixed orderings a list request may ask for.
type SortMode string

const (
	SortLatest      SortMode = "latest"
	SortOldest      SortMode = "oldest"
	SortMostCooked  SortMode = "most_cooked"
	SortLeastCooked SortMode = "least_cooked"
	SortMostViewed  SortMode = "most_viewed"
	SortLeastViewed SortMode = "least_viewed"
	SortFavorites   SortMode = "favorites"
)

// SortModes lists every supported mode.
var SortModes = []SortMode{
	SortLatest, SortOldest,
	SortMostCooked, SortLeastCooked,
	SortMostViewed, SortLeastViewed,
	SortFavorites,
}

// TimeRange is an inclusive cooking time window in minutes. Either bound may be nil.
type TimeRange struct {
	Min *int `json:"min,omitempty"`
	Max *int `json:"max,omitempty"`
}

// Validate implements validation.Validatable.
func (r TimeRange) Validate() error {
	err := validation.ValidateStruct(&r,
		validation.Field(&r.Min, validation.Min(0)),
		validation.Field(&r.Max, validation.Min(0)),
	)
	if err != nil {
		return err
	}
	if r.Min != nil && r.Max != nil && *r.Min > *r.Max {
		return validation.Errors{
			"max": validation.NewError("validation_range_order", "must be greater than or equal to min"),
		}
	}
	return nil
}

// FilterSpec describes one list request: filters, sort mode and page window.
type FilterSpec struct {
	SearchText  string                 `json:"search_text,omitempty"`
	Categories  map[Dimension][]string `json:"categories,omitempty"`
	CookingTime *TimeRange             `json:"cooking_time,omitempty"`
	Tags        []string               `json:"tags,omitempty"`
	FavoritesOf string                 `json:"favorites_of,omitempty"`
	OwnerID     string                 `json:"owner_id,omitempty"`
	Public      *bool                  `json:"public,omitempty"`
	Sort        SortMode               `json:"sort,omitempty"`
	Limit       int                    `json:"limit,omitempty"`
	Offset      int                    `json:"offset,omitempty"`
}

// Normalize returns the canonical form of s. Text fields are trimmed, empty
// dimensions and blank tags are dropped, codes and tags are sorted and
// deduplicated, and defaults are applied to Sort and Limit. Two specs that
// select the same rows in the same order normalize to equal values.
func (s FilterSpec) Normalize() FilterSpec {
	out := FilterSpec{
		SearchText:  strings.TrimSpace(s.SearchText),
		FavoritesOf: strings.TrimSpace(s.FavoritesOf),
		OwnerID:     strings.TrimSpace(s.OwnerID),
		Sort:        s.Sort,
		Limit:       s.Limit,
		Offset:      s.Offset,
	}

	if s.Public != nil {
		public := *s.Public
		out.Public = &public
	}
	if out.Sort == "" {
		out.Sort = SortLatest
	}
	if out.Limit == 0 {
		out.Limit = DefaultLimit
	}

	for dim, codes := range s.Categories {
		codes = uniqueSorted(codes)
		if len(codes) == 0 {
			continue
		}
		if out.Categories == nil {
			out.Categories = make(map[Dimension][]string)
		}
		out.Categories[dim] = codes
	}

	if r := s.CookingTime; r != nil && (r.Min != nil || r.Max != nil) {
		cp := TimeRange{}
		if r.Min != nil {
			v := *r.Min
			cp.Min = &v
		}
		if r.Max != nil {
			v := *r.Max
			cp.Max = &v
		}
		out.CookingTime = &cp
	}

	if tags := uniqueSorted(s.Tags); len(tags) > 0 {
		out.Tags = tags
	}

	return out
}

// Validate checks s against the FilterSpec invariants. maxLimit <= 0 selects
// DefaultMaxLimit. The returned error is a ValidationError.
func (s FilterSpec) Validate(maxLimit int) error {
	if maxLimit <= 0 {
		maxLimit = DefaultMaxLimit
	}

	err := validation.ValidateStruct(&s,
		validation.Field(&s.Categories, validation.By(validateCategories)),
		validation.Field(&s.CookingTime),
		validation.Field(&s.Tags, validation.Each(validation.Required)),
		validation.Field(&s.Sort, validation.In(sortModeValues()...)),
		validation.Field(&s.Limit, validation.Min(0), validation.Max(maxLimit)),
		validation.Field(&s.Offset, validation.Min(0)),
	)
	if err != nil {
		return NewValidationError("invalid filter spec", err)
	}
	return nil
}

func validateCategories(value any) error {
	categories, _ := value.(map[Dimension][]string)
	for dim, codes := range categories {
		if !dim.Valid() {
			return errors.New("unknown dimension " + string(dim))
		}
		if len(codes) == 0 {
			return errors.New("dimension " + string(dim) + " has no codes")
		}
		for _, code := range codes {
			if strings.TrimSpace(code) == "" {
				return errors.New("dimension " + string(dim) + " has a blank code")
			}
		}
	}
	return nil
}

func sortModeValues() []any {
	values := make([]any, len(SortModes))
	for i, mode := range SortModes {
		values[i] = mode
	}
	return values
}

func uniqueSorted(in []string) []string {
	if len(in) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, v := range in {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}
