package models

import (
	"encoding/json"
	"math"
	"strings"
	"time"
)

// TimestampLayout matches the ISO-8601 form the archive has always written: UTC with milliseconds.
const TimestampLayout = "2006-01-02T15:04:05.000Z"

type (
	Art struct {
		ID        int64    `gorm:"primaryKey;autoIncrement:false" json:"id"`
		Image     string   `gorm:"type:text" json:"image"`
		URL       string   `json:"url"`
		Author    string   `gorm:"index" json:"author"`
		State     State    `json:"state"`
		Tags      []string `gorm:"serializer:json" json:"tags"`
		Favorite  bool     `json:"favorite"`
		CreatedAt string   `gorm:"column:created_at;autoCreateTime:false" json:"createdAt"`
	}

	Category struct {
		ID    int64  `gorm:"primaryKey;autoIncrement:false" json:"id"`
		Name  string `gorm:"not null" json:"name"`
		Color string `json:"color"`
	}

	// TagCategory binds a tag to an optional category and a priority weight.
	TagCategory struct {
		Tag        string   `gorm:"primaryKey" json:"tag"`
		CategoryID *int64   `gorm:"index" json:"categoryId"`
		Priority   Priority `json:"priority"`
	}

	Backup struct {
		ExportedAt    string        `json:"exportedAt"`
		Arts          []Art         `json:"arts"`
		Categories    []Category    `json:"categories"`
		TagCategories []TagCategory `json:"tagCategories"`
	}
)

// FormatTimestamp renders t in TimestampLayout.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(TimestampLayout)
}

// Timestamp is the value used for date ordering: CreatedAt, or the id read as a millisecond epoch when
// CreatedAt was never recorded.
func (a *Art) Timestamp() string {
	if a.CreatedAt != "" {
		return a.CreatedAt
	}
	return FormatTimestamp(time.UnixMilli(a.ID))
}

func (a *Art) HasTag(tag string) bool {
	for _, t := range a.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

// Category reference with the zero id folded into nil.
func (tc *TagCategory) Category() *int64 {
	if tc.CategoryID == nil || *tc.CategoryID == 0 {
		return nil
	}
	return tc.CategoryID
}

// Priority is a tag ordering weight. Anything in a payload that is not an integral JSON number decodes to 0.
type Priority int

func (p *Priority) UnmarshalJSON(b []byte) error {
	var v interface{}
	if err := json.Unmarshal(b, &v); err != nil {
		*p = 0
		return nil
	}
	f, ok := v.(float64)
	if !ok || f != math.Trunc(f) || math.IsInf(f, 0) || f > math.MaxInt32 || f < math.MinInt32 {
		*p = 0
		return nil
	}
	*p = Priority(f)
	return nil
}

// ParseTags splits comma separated tag input, trimming blanks and dropping empties and repeats.
func ParseTags(input string) []string {
	return NormalizeTags(strings.Split(input, ","))
}

// NormalizeTags trims every tag and removes empty and repeated entries, keeping first-seen order.
// The result is never nil.
func NormalizeTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	seen := make(map[string]struct{}, len(tags))
	for _, t := range tags {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}
