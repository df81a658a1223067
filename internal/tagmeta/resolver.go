// Package tagmeta resolves a tag to its category and priority.
package tagmeta

import (
	"github.com/Rogue-Bear-Innovations/art-archive/internal/models"
)

type (
	Meta struct {
		Category *models.Category `json:"category"`
		Priority int              `json:"priority"`
	}

	association struct {
		categoryID *int64
		priority   int
	}

	// Resolver is an immutable snapshot built from the full category and association collections.
	// A changed collection means a new Resolver, never an edited one.
	Resolver struct {
		associations map[string]association
		categories   map[int64]models.Category
	}
)

func NewResolver(categories []models.Category, associations []models.TagCategory) *Resolver {
	r := &Resolver{
		associations: make(map[string]association, len(associations)),
		categories:   make(map[int64]models.Category, len(categories)),
	}
	for _, c := range categories {
		r.categories[c.ID] = c
	}
	for i := range associations {
		tc := &associations[i]
		a := association{priority: int(tc.Priority)}
		if id := tc.Category(); id != nil {
			v := *id
			a.categoryID = &v
		}
		r.associations[tc.Tag] = a
	}
	return r
}

// Resolve never fails: unknown tags and dangling category ids come back as a nil category.
func (r *Resolver) Resolve(tag string) Meta {
	if r == nil {
		return Meta{}
	}
	a, ok := r.associations[tag]
	if !ok {
		return Meta{}
	}
	meta := Meta{Priority: a.priority}
	if a.categoryID != nil {
		if c, ok := r.categories[*a.categoryID]; ok {
			meta.Category = &c
		}
	}
	return meta
}

func (r *Resolver) Priority(tag string) int {
	return r.Resolve(tag).Priority
}
