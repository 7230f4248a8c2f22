// Package genre maps human-readable genre names to catalog genre identifiers.
package genre

import "strings"

type entry struct {
	name string
	id   int
}

// table is kept in display order.
var table = []entry{
	{"Action", 1},
	{"Adventure", 2},
	{"Comedy", 4},
	{"Drama", 8},
	{"Fantasy", 10},
	{"Horror", 14},
	{"Mystery", 7},
	{"Romance", 22},
	{"Sci-Fi", 24},
	{"Slice of Life", 36},
	{"Sports", 30},
	{"Thriller", 41},
	{"Shounen", 27},
	{"Shoujo", 25},
	{"Seinen", 42},
	{"Josei", 43},
	{"Mecha", 18},
	{"Supernatural", 37},
}

var (
	byKey = make(map[string]entry, len(table))
	byID  = make(map[int]string, len(table))
)

func init() {
	for _, e := range table {
		byKey[Normalize(e.name)] = e
		byID[e.id] = e.name
	}
}

// Normalize lowercases s and drops every character that is not an ASCII
// letter or digit, so "Slice of Life" and "slice-of-life" compare equal.
func Normalize(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range strings.ToLower(s) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// Lookup returns the catalog identifier for name.
func Lookup(name string) (int, bool) {
	e, ok := byKey[Normalize(name)]
	return e.id, ok
}

// Canonical returns the display spelling of a loosely typed genre name.
func Canonical(name string) (string, bool) {
	e, ok := byKey[Normalize(name)]
	return e.name, ok
}

// Name returns the display name for a catalog identifier.
func Name(id int) (string, bool) {
	n, ok := byID[id]
	return n, ok
}

// Names returns every known genre name in display order.
func Names() []string {
	out := make([]string, len(table))
	for i, e := range table {
		out[i] = e.name
	}
	return out
}

// IDs maps names to identifiers in input order. Unknown names are dropped
// and repeated identifiers are kept once.
func IDs(names []string) []int {
	var ids []int
	seen := make(map[int]bool, len(names))
	for _, n := range names {
		id, ok := Lookup(n)
		if !ok || seen[id] {
			continue
		}
		seen[id] = true
		ids = append(ids, id)
	}
	return ids
}
