package query

import (
	"sort"

	"github.com/Rogue-Bear-Innovations/art-archive/internal/models"
)

type SortMode string

const (
	SortNone     SortMode = ""
	SortDateAsc  SortMode = "dateAsc"
	SortDateDesc SortMode = "dateDesc"
	SortFavorite SortMode = "favorite"
)

// ParseSortMode maps user input onto a SortMode. Unknown values keep the original order.
func ParseSortMode(s string) SortMode {
	switch s {
	case string(SortDateAsc):
		return SortDateAsc
	case string(SortDateDesc):
		return SortDateDesc
	case string(SortFavorite), "fav":
		return SortFavorite
	default:
		return SortNone
	}
}

// Filter selects arts by tag membership and exact author. Empty fields do not filter.
type Filter struct {
	Tag    string `json:"tag"`
	Author string `json:"author"`
}

func (f Filter) Match(a *models.Art) bool {
	if f.Tag != "" && !a.HasTag(f.Tag) {
		return false
	}
	if f.Author != "" && a.Author != f.Author {
		return false
	}
	return true
}

// Query returns a new slice holding the arts that pass f, ordered by mode. items is left untouched and
// arts with equal sort keys keep their relative order.
func Query(items []models.Art, f Filter, mode SortMode) []models.Art {
	out := make([]models.Art, 0, len(items))
	for i := range items {
		if f.Match(&items[i]) {
			out = append(out, items[i])
		}
	}

	switch mode {
	case SortDateAsc:
		sort.SliceStable(out, func(i, j int) bool {
			return out[i].Timestamp() < out[j].Timestamp()
		})
	case SortDateDesc:
		sort.SliceStable(out, func(i, j int) bool {
			return out[i].Timestamp() > out[j].Timestamp()
		})
	case SortFavorite:
		sort.SliceStable(out, func(i, j int) bool {
			if out[i].Favorite != out[j].Favorite {
				return out[i].Favorite
			}
			return out[i].Timestamp() > out[j].Timestamp()
		})
	}
	return out
}

// Authors lists the distinct non-empty authors in ascending order.
func Authors(items []models.Art) []string {
	seen := make(map[string]struct{})
	out := make([]string, 0)
	for i := range items {
		a := items[i].Author
		if a == "" {
			continue
		}
		if _, ok := seen[a]; ok {
			continue
		}
		seen[a] = struct{}{}
		out = append(out, a)
	}
	sort.Strings(out)
	return out
}
