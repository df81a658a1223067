package query

import (
	"sort"

	"github.com/Rogue-Bear-Innovations/art-archive/internal/models"
	"github.com/Rogue-Bear-Innovations/art-archive/internal/tagmeta"
)

type TagEntry struct {
	Tag      string `json:"tag"`
	LastUsed string `json:"lastUsed"`
	tagmeta.Meta
}

// tagUsage maps each tag found on items to the newest timestamp of an art carrying it.
func tagUsage(items []models.Art) map[string]string {
	used := make(map[string]string)
	for i := range items {
		when := items[i].Timestamp()
		for _, t := range items[i].Tags {
			if prev, ok := used[t]; !ok || prev < when {
				used[t] = when
			}
		}
	}
	return used
}

func entries(items []models.Art, r *tagmeta.Resolver) []TagEntry {
	used := tagUsage(items)
	out := make([]TagEntry, 0, len(used))
	for tag, when := range used {
		out = append(out, TagEntry{Tag: tag, LastUsed: when, Meta: r.Resolve(tag)})
	}
	return out
}

// RecentTags orders the tags in use by priority, then most recent use, then name.
func RecentTags(items []models.Art, r *tagmeta.Resolver) []TagEntry {
	out := entries(items, r)
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Priority != b.Priority {
			return a.Priority > b.Priority
		}
		if a.LastUsed != b.LastUsed {
			return a.LastUsed > b.LastUsed
		}
		return a.Tag < b.Tag
	})
	return out
}

// AllTags orders the tags in use by priority, then name.
func AllTags(items []models.Art, r *tagmeta.Resolver) []TagEntry {
	out := entries(items, r)
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Priority != b.Priority {
			return a.Priority > b.Priority
		}
		return a.Tag < b.Tag
	})
	return out
}
