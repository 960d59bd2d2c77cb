package schema

import (
	"sort"
	"strings"
)

// CatalogEntry is the searchable summary of a node type.
type CatalogEntry struct {
	Name        string `json:"name"`
	DisplayName string `json:"displayName"`
	Description string `json:"description"`
	Category    string `json:"category"`
	SearchValue string `json:"searchValue"`
}

// BuildCatalog lists every schema sorted by display name, then by name.
func BuildCatalog(m Map) []CatalogEntry {
	entries := make([]CatalogEntry, 0, len(m))
	for _, s := range m {
		if s == nil {
			continue
		}
		entries = append(entries, CatalogEntry{
			Name:        s.Name,
			DisplayName: s.DisplayName,
			Description: s.Description,
			Category:    s.Category,
			SearchValue: s.SearchValue,
		})
	}
	sort.Slice(entries, func(i, j int) bool {
		a, b := strings.ToLower(entries[i].DisplayName), strings.ToLower(entries[j].DisplayName)
		if a != b {
			return a < b
		}
		return entries[i].Name < entries[j].Name
	})
	return entries
}
