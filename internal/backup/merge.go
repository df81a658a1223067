package backup

import (
	"github.com/Rogue-Bear-Innovations/art-archive/internal/models"
)

type (
	// Keys is the set of identity keys already present in the live collections.
	Keys struct {
		Arts          map[int64]struct{}
		Categories    map[int64]struct{}
		TagCategories map[string]struct{}
	}

	Counts struct {
		Arts          int `json:"arts"`
		Categories    int `json:"categories"`
		TagCategories int `json:"tagCategories"`
	}

	Plan struct {
		Insert  models.Backup
		Skipped Counts
	}
)

func NewKeys() Keys {
	return Keys{
		Arts:          make(map[int64]struct{}),
		Categories:    make(map[int64]struct{}),
		TagCategories: make(map[string]struct{}),
	}
}

func CountOf(b *models.Backup) Counts {
	return Counts{
		Arts:          len(b.Arts),
		Categories:    len(b.Categories),
		TagCategories: len(b.TagCategories),
	}
}

// PlanMerge selects the incoming records whose key is absent from existing. Repeated keys inside incoming
// collapse first with the last record winning, as successive puts of the same key would leave it.
func PlanMerge(existing Keys, incoming *models.Backup) Plan {
	batch := Collapse(incoming)
	p := Plan{Insert: models.Backup{
		ExportedAt:    incoming.ExportedAt,
		Arts:          []models.Art{},
		Categories:    []models.Category{},
		TagCategories: []models.TagCategory{},
	}}

	for _, a := range batch.Arts {
		if _, ok := existing.Arts[a.ID]; ok {
			p.Skipped.Arts++
			continue
		}
		p.Insert.Arts = append(p.Insert.Arts, a)
	}

	for _, c := range batch.Categories {
		if _, ok := existing.Categories[c.ID]; ok {
			p.Skipped.Categories++
			continue
		}
		p.Insert.Categories = append(p.Insert.Categories, c)
	}

	for _, tc := range batch.TagCategories {
		if _, ok := existing.TagCategories[tc.Tag]; ok {
			p.Skipped.TagCategories++
			continue
		}
		p.Insert.TagCategories = append(p.Insert.TagCategories, tc)
	}

	return p
}

// Collapse returns b with repeated keys removed, the last record for a key winning, as successive puts of
// the same key would leave it.
func Collapse(b *models.Backup) *models.Backup {
	out := &models.Backup{ExportedAt: b.ExportedAt}
	out.Arts = lastByKey(b.Arts, func(a models.Art) int64 { return a.ID })
	out.Categories = lastByKey(b.Categories, func(c models.Category) int64 { return c.ID })
	out.TagCategories = lastByKey(b.TagCategories, func(tc models.TagCategory) string { return tc.Tag })
	return out
}

// lastByKey keeps the last record per key, at the position of that key's first occurrence.
func lastByKey[T any, K comparable](in []T, key func(T) K) []T {
	pos := make(map[K]int, len(in))
	out := make([]T, 0, len(in))
	for _, v := range in {
		k := key(v)
		if i, ok := pos[k]; ok {
			out[i] = v
			continue
		}
		pos[k] = len(out)
		out = append(out, v)
	}
	return out
}
