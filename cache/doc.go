// Package cache keeps fetched recipe data keyed by query fingerprints.
//
// # Overview
//
// The package exports three pieces:
//
//   - Store: fingerprint -> Entry map with Fresh/Stale state, prefix
//     invalidation and snapshot based patching. NewStore returns the sturdyc
//     backed implementation; TTL eviction is its only garbage collection.
//   - Fingerprint helpers (RecipePage, Recipe, FavoriteStatus, ...) built on a
//     KeySerializer that joins segments with "::".
//   - Client: read-through access with per-fingerprint generations.
//
// # Reading
//
//	page, err := cache.Fetch(ctx, client, cache.RecipePage(spec), func(ctx context.Context) (recipe.Page[recipe.Recipe], error) {
//		return planner.Plan(ctx, spec)
//	})
//
// Fresh entries are served from the store. Stale entries are served as well,
// unless they were invalidated with Refetch, in which case the next read
// reloads them. A failed load leaves the store untouched and returns the
// stale value, when there is one, together with the error.
//
// # Generations
//
// Each fingerprint has a generation number. Cancel and Invalidate bump it;
// a load only writes its result when the generation it started with is still
// current. This is what keeps a slow read from overwriting an optimistic
// value. FetchSlot adds a second generation per UI slot so a newer request
// for the same slot discards the result of an older one.
//
// # Fingerprints
//
// Fingerprints start with the entity kind so whole families can be matched
// by prefix:
//
//	recipe-page::{"sort":"latest","limit":10}
//	recipe-page-favorites::u1::{"favorites_of":"u1","sort":"latest","limit":10}
//	recipe::r1
//	favorite-status::u1::r1
//	favorite-status-batch::u1::r1,r2,r3
//	cook-count::u1::r1
//	cook-count-all::u1
//	recipe-pick::2024-03-01
//
// List fingerprints serialize the normalized FilterSpec, so requests that
// differ only in ordering of codes, blank fields or defaults share an entry.
package cache
