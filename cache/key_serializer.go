package cache

import (
	"encoding/json"
	"fmt"
	"reflect"
	"sort"
	"strings"

	"github.com/goliatone/go-recipe-cache/recipe"
)

// KeySeparator defines the delimiter used between cache key segments.
const KeySeparator = "::"

// Entity kinds, the first segment of every fingerprint.
const (
	KindRecipePage          = "recipe-page"
	KindRecipePageFavorites = "recipe-page-favorites"
	KindRecipe              = "recipe"
	KindFavoriteStatus      = "favorite-status"
	KindFavoriteStatusBatch = "favorite-status-batch"
	KindCookCount           = "cook-count"
	KindCookCountAll        = "cook-count-all"
	KindRecipePick          = "recipe-pick"
)

// KeySerializer builds a fingerprint from an entity kind and its identifying
// arguments. Equal arguments must always produce equal keys.
type KeySerializer interface {
	SerializeKey(kind string, args ...any) string
}

// defaultKeySerializer writes scalars verbatim and everything else as JSON.
// encoding/json sorts map keys, so maps and structs serialize deterministically.
type defaultKeySerializer struct{}

// NewDefaultKeySerializer creates a new instance of the default key serializer.
func NewDefaultKeySerializer() KeySerializer {
	return &defaultKeySerializer{}
}

// SerializeKey joins kind and the serialized args with KeySeparator.
func (s *defaultKeySerializer) SerializeKey(kind string, args ...any) string {
	parts := make([]string, 0, len(args)+1)
	parts = append(parts, kind)
	for _, arg := range args {
		parts = append(parts, s.serializeValue(arg))
	}
	return strings.Join(parts, KeySeparator)
}

func (s *defaultKeySerializer) serializeValue(v any) string {
	switch x := v.(type) {
	case nil:
		return "nil"
	case string:
		return x
	case fmt.Stringer:
		return x.String()
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Ptr:
		if rv.IsNil() {
			return "nil"
		}
		return s.serializeValue(rv.Elem().Interface())
	case reflect.String:
		return rv.String()
	case reflect.Bool,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return fmt.Sprintf("%v", v)
	}

	data, err := json.Marshal(v)
	if err != nil {
		return "fallback:" + rv.Type().String()
	}
	return string(data)
}

var defaultKeys = NewDefaultKeySerializer()

// RecipePage fingerprints a list request. The spec is normalized first so
// equivalent requests share an entry. Favorites-scoped pages live under
// their own kind so a user's favorites lists can be invalidated by prefix.
func RecipePage(spec recipe.FilterSpec) string {
	spec = spec.Normalize()
	if spec.FavoritesOf != "" {
		return defaultKeys.SerializeKey(KindRecipePageFavorites, spec.FavoritesOf, spec)
	}
	return defaultKeys.SerializeKey(KindRecipePage, spec)
}

// Recipe fingerprints a recipe detail.
func Recipe(id string) string {
	return defaultKeys.SerializeKey(KindRecipe, id)
}

// FavoriteStatus fingerprints whether user favorited a recipe.
func FavoriteStatus(userID, recipeID string) string {
	return defaultKeys.SerializeKey(KindFavoriteStatus, userID, recipeID)
}

// FavoriteStatusBatch fingerprints a status map for a set of recipes. The ids
// are sorted and deduplicated so the fingerprint ignores request order.
func FavoriteStatusBatch(userID string, recipeIDs []string) string {
	return defaultKeys.SerializeKey(KindFavoriteStatusBatch, userID, strings.Join(sortedUnique(recipeIDs), ","))
}

// CookCount fingerprints how often user cooked a recipe.
func CookCount(userID, recipeID string) string {
	return defaultKeys.SerializeKey(KindCookCount, userID, recipeID)
}

// CookCountAll fingerprints every cook count of a user.
func CookCountAll(userID string) string {
	return defaultKeys.SerializeKey(KindCookCountAll, userID)
}

// RecipePick fingerprints the pick of the day. Only the UTC day is kept.
func RecipePick(day string) string {
	return defaultKeys.SerializeKey(KindRecipePick, day)
}

// KindPrefix matches every fingerprint of kind, optionally narrowed by the
// leading args.
func KindPrefix(kind string, args ...any) Match {
	return Prefix(defaultKeys.SerializeKey(kind, args...) + KeySeparator)
}

// BatchIDs returns the recipe ids encoded in a favorite-status-batch
// fingerprint, or nil when fp is not one.
func BatchIDs(fp string) []string {
	parts := strings.SplitN(fp, KeySeparator, 3)
	if len(parts) != 3 || parts[0] != KindFavoriteStatusBatch || parts[2] == "" {
		return nil
	}
	return strings.Split(parts[2], ",")
}

func sortedUnique(in []string) []string {
	out := make([]string, 0, len(in))
	seen := make(map[string]struct{}, len(in))
	for _, v := range in {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}
