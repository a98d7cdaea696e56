package recipe

import (
	"sort"
	"strings"
)

// Set is a set of normalised names.
type Set map[string]struct{}

// NewSet builds a set of lower-cased, trimmed names. Empty names are dropped.
func NewSet(names ...string) Set {
	s := make(Set, len(names))
	for _, n := range names {
		if n = Normalize(n); n != "" {
			s[n] = struct{}{}
		}
	}
	return s
}

// Has reports whether name is in the set, ignoring case.
func (s Set) Has(name string) bool {
	_, ok := s[Normalize(name)]
	return ok
}

// Sorted returns the members in lexical order.
func (s Set) Sorted() []string {
	out := make([]string, 0, len(s))
	for n := range s {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// Normalize lower-cases and trims a protein or tag name.
func Normalize(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// Facet carries the recipe attributes rule evaluation and scheduling need.
type Facet struct {
	ID       int64    `json:"id"`
	Title    string   `json:"title"`
	Proteins Set      `json:"-"`
	Tags     Set      `json:"-"`
	Rating   *float64 `json:"rating,omitempty"`
	Archived bool     `json:"archived"`
}

// HasProtein reports whether the recipe features protein.
func (f Facet) HasProtein(protein string) bool {
	return f.Proteins.Has(protein)
}

// HasTag reports whether the recipe carries tag.
func (f Facet) HasTag(tag string) bool {
	return f.Tags.Has(tag)
}

// Catalog is a read-only snapshot of recipe facets keyed by id.
// Archived recipes stay in the catalog so history can still be evaluated.
type Catalog struct {
	byID map[int64]Facet
	ids  []int64
}

// NewCatalog indexes facets. Later duplicates of an id replace earlier ones.
func NewCatalog(facets []Facet) *Catalog {
	c := &Catalog{byID: make(map[int64]Facet, len(facets))}
	for _, f := range facets {
		if f.Proteins == nil {
			f.Proteins = Set{}
		}
		if f.Tags == nil {
			f.Tags = Set{}
		}
		if _, seen := c.byID[f.ID]; !seen {
			c.ids = append(c.ids, f.ID)
		}
		c.byID[f.ID] = f
	}
	sort.Slice(c.ids, func(i, j int) bool { return c.ids[i] < c.ids[j] })
	return c
}

// Get looks a recipe up by id.
func (c *Catalog) Get(id int64) (Facet, bool) {
	f, ok := c.byID[id]
	return f, ok
}

// Len is the number of recipes in the catalog.
func (c *Catalog) Len() int {
	return len(c.ids)
}

// All returns every facet ordered by id.
func (c *Catalog) All() []Facet {
	out := make([]Facet, 0, len(c.ids))
	for _, id := range c.ids {
		out = append(out, c.byID[id])
	}
	return out
}

// NewPool returns the recipes eligible for a planning request: not archived
// and, when contextTag is non-empty, tagged with it. Order is by id; ranking
// is left to the scheduler.
func NewPool(c *Catalog, contextTag string) []Facet {
	var pool []Facet
	for _, f := range c.All() {
		if f.Archived {
			continue
		}
		if contextTag != "" && !f.HasTag(contextTag) {
			continue
		}
		pool = append(pool, f)
	}
	return pool
}
