// Package recipe holds the domain types shared by the retrieval engine.
//
// Recipe is the read model returned to callers. Record is the storage row: its
// counters and arrays are nullable and its categories are grouped by dimension.
// Record.ToRecipe and RecordFromRecipe are the only places where the two shapes
// meet, so the rest of the module always sees the flat category list.
//
// FilterSpec describes one list request. Call Normalize before Validate or
// before deriving a cache fingerprint; two specs that select the same page
// normalize to equal values.
//
// Errors produced by the engine are categorized with go-errors:
//
//   - validation: malformed FilterSpec, never retried
//   - external (STORAGE_UNAVAILABLE): the backing store could not be reached
//   - not_found: single-entity reads, callers usually map it to nil
//   - conflict: writes rejected because the state already exists
package recipe
