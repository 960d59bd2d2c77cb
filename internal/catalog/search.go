package catalog

import (
	"strings"

	"github.com/sahilm/fuzzy"
	"github.com/specialistvlad/toucan/internal/schema"
)

type searchSource []schema.CatalogEntry

func (s searchSource) String(i int) string { return s[i].SearchValue }
func (s searchSource) Len() int            { return len(s) }

// Search returns the entries whose search value fuzzily matches query, best
// match first. A blank query returns entries unchanged.
func Search(entries []schema.CatalogEntry, query string) []schema.CatalogEntry {
	query = strings.TrimSpace(query)
	if query == "" {
		return entries
	}
	matches := fuzzy.FindFrom(query, searchSource(entries))
	out := make([]schema.CatalogEntry, 0, len(matches))
	for _, m := range matches {
		out = append(out, entries[m.Index])
	}
	return out
}
