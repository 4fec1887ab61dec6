// Package query plans recipe list requests.
//
// A FilterSpec is normalized, validated and folded through an ordered list of
// builders into a Query: a list of sealed Clause values, ORDER BY terms and a
// page window. Store implementations translate the clauses into their own
// predicates; the planner never sees SQL.
//
//	planner := query.NewPlanner(store, query.WithMaxLimit(50))
//	page, err := planner.Plan(ctx, recipe.FilterSpec{
//		Categories: map[recipe.Dimension][]string{
//			recipe.DimensionCuisine: {"korean", "japanese"},
//		},
//		Sort: recipe.SortMostCooked,
//	})
//
// Within one dimension codes are alternatives; separate dimensions must all
// match. Every sort mode ends with an id tie-break, so a page window over an
// unchanged collection is stable.
package query
