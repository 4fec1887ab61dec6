package query

import (
	"fmt"
	"strings"
)

// String renders q in a compact, line-oriented form used by the CLI explain
// output and by golden tests.
func (q Query) String() string {
	var b strings.Builder
	for i, c := range q.Clauses {
		if i == 0 {
			b.WriteString("where ")
		} else {
			b.WriteString("  and ")
		}
		b.WriteString(describeClause(c))
		b.WriteByte('\n')
	}

	terms := make([]string, 0, len(q.Order))
	for _, term := range q.Order {
		dir := "asc"
		if term.Desc {
			dir = "desc"
		}
		terms = append(terms, term.Column+" "+dir)
	}
	fmt.Fprintf(&b, "order by %s\n", strings.Join(terms, ", "))
	fmt.Fprintf(&b, "limit %d offset %d\n", q.Limit, q.Offset)
	return b.String()
}

func describeClause(c Clause) string {
	switch c := c.(type) {
	case FavoriteIDs:
		if c.IDs == nil {
			return fmt.Sprintf("favorites(user=%s)", c.UserID)
		}
		return fmt.Sprintf("favorites(user=%s, ids=[%s])", c.UserID, strings.Join(c.IDs, ","))
	case Owner:
		return fmt.Sprintf("owner(%s)", c.UserID)
	case Visibility:
		return fmt.Sprintf("public(%t)", c.Public)
	case TextSearch:
		return fmt.Sprintf("text(%q)", c.Text)
	case CategoryAny:
		return fmt.Sprintf("category(%s in [%s])", c.Dimension, strings.Join(c.Codes, ","))
	case CookingTimeRange:
		return fmt.Sprintf("cooking_time(%s..%s)", bound(c.Min), bound(c.Max))
	case TagsAll:
		return fmt.Sprintf("tags(all [%s])", strings.Join(c.Tags, ","))
	}
	return fmt.Sprintf("unknown(%T)", c)
}

func bound(v *int) string {
	if v == nil {
		return "*"
	}
	return fmt.Sprint(*v)
}
