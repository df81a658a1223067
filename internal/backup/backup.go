// Package backup reads and writes archive backup files and plans merge imports.
package backup

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/tidwall/gjson"

	"github.com/Rogue-Bear-Innovations/art-archive/internal/models"
)

const (
	fieldArts          = "arts"
	fieldCategories    = "categories"
	fieldTagCategories = "tagCategories"
)

var ErrMalformed = errors.New("malformed backup")

// Parse decodes a backup payload. Collections missing from the payload come back empty; a payload that is
// not a JSON object, holds a collection that is not an array, or holds a record without its key is rejected
// whole.
func Parse(data []byte) (*models.Backup, error) {
	if !gjson.ValidBytes(data) {
		return nil, errors.Wrap(ErrMalformed, "invalid json")
	}
	root := gjson.ParseBytes(data)
	if !root.IsObject() {
		return nil, errors.Wrap(ErrMalformed, "top level is not an object")
	}
	for _, field := range []string{fieldArts, fieldCategories, fieldTagCategories} {
		v := root.Get(field)
		if v.Exists() && v.Type != gjson.Null && !v.IsArray() {
			return nil, errors.Wrapf(ErrMalformed, "%s is not an array", field)
		}
	}

	b := models.Backup{}
	if err := json.Unmarshal(data, &b); err != nil {
		return nil, errors.Wrap(ErrMalformed, err.Error())
	}
	if err := checkKeys(&b); err != nil {
		return nil, err
	}
	normalize(&b)
	return &b, nil
}

func ParseReader(r io.Reader) (*models.Backup, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, errors.Wrap(err, "read backup")
	}
	return Parse(data)
}

func checkKeys(b *models.Backup) error {
	for i := range b.Arts {
		if b.Arts[i].ID == 0 {
			return errors.Wrapf(ErrMalformed, "arts[%d] has no id", i)
		}
	}
	for i := range b.Categories {
		if b.Categories[i].ID == 0 {
			return errors.Wrapf(ErrMalformed, "categories[%d] has no id", i)
		}
	}
	for i := range b.TagCategories {
		if b.TagCategories[i].Tag == "" {
			return errors.Wrapf(ErrMalformed, "tagCategories[%d] has no tag", i)
		}
	}
	return nil
}

func normalize(b *models.Backup) {
	if b.Arts == nil {
		b.Arts = []models.Art{}
	}
	if b.Categories == nil {
		b.Categories = []models.Category{}
	}
	if b.TagCategories == nil {
		b.TagCategories = []models.TagCategory{}
	}
	for i := range b.Arts {
		if b.Arts[i].Tags == nil {
			b.Arts[i].Tags = []string{}
		}
	}
	for i := range b.TagCategories {
		b.TagCategories[i].CategoryID = b.TagCategories[i].Category()
	}
}

// Encode writes b as two-space indented JSON.
func Encode(w io.Writer, b *models.Backup) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(b); err != nil {
		return errors.Wrap(err, "encode backup")
	}
	return nil
}

// FileName is the conventional name of a backup exported at t.
func FileName(t time.Time) string {
	stamp := strings.NewReplacer(":", "-", ".", "-").Replace(models.FormatTimestamp(t))
	return fmt.Sprintf("art-archive-%s.json", stamp)
}
