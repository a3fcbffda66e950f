// Package sorter parses client sort parameters such as "name:asc,created_at:desc"
// into order clauses restricted to a whitelist of columns.
package sorter

import (
	"slices"
	"strings"
)

type Direction string

const (
	Asc  Direction = "asc"
	Desc Direction = "desc"
)

// Opt orders by one column.
type Opt struct {
	Field     string
	Direction Direction
}

// Opts is an ordered list of sort options, the first one wins.
type Opts []Opt

// Parse reads comma separated "field:direction" pairs. Pairs naming a field
// outside allowed, an unknown direction or a field already seen are skipped.
func Parse(s string, allowed ...string) Opts {
	var opts Opts
	for pair := range strings.SplitSeq(s, ",") {
		field, dir, ok := strings.Cut(pair, ":")
		if !ok {
			continue
		}
		field = strings.TrimSpace(field)
		d := Direction(strings.ToLower(strings.TrimSpace(dir)))

		if !slices.Contains(allowed, field) || (d != Asc && d != Desc) {
			continue
		}
		if slices.ContainsFunc(opts, func(o Opt) bool { return o.Field == field }) {
			continue
		}
		opts = append(opts, Opt{Field: field, Direction: d})
	}
	return opts
}

// SQL renders the option as an ORDER BY item, qualified with alias when set.
func (o Opt) SQL(alias string) string {
	col := o.Field
	if alias != "" {
		col = alias + "." + col
	}
	return col + " " + strings.ToUpper(string(o.Direction))
}
