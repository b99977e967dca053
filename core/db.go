package core

import "strings"

// DBOrdering is a single `ORDER BY` term.
type DBOrdering struct {
	Field     string
	Ascending bool
}

func (ord DBOrdering) String() string {
	direction := "DESC"
	if ord.Ascending {
		direction = "ASC"
	}
	return ord.Field + " " + direction
}

// OrderBy joins the orderings whose field is allowed into an `ORDER BY` clause body.
// allowed maps API field names to column names. fallback is used when nothing matches.
func OrderBy(orderings []DBOrdering, allowed map[string]string, fallback string) string {
	terms := make([]string, 0, len(orderings))
	for _, ord := range orderings {
		col, ok := allowed[ord.Field]
		if !ok {
			continue
		}
		terms = append(terms, DBOrdering{Field: col, Ascending: ord.Ascending}.String())
	}
	if len(terms) == 0 {
		return fallback
	}
	return strings.Join(terms, ", ")
}
