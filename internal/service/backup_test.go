package service

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Rogue-Bear-Innovations/art-archive/internal/backup"
	"github.com/Rogue-Bear-Innovations/art-archive/internal/models"
)

func refuse(context.Context, backup.Counts) bool { return false }

func int64Ptr(v int64) *int64 { return &v }

func seed(t *testing.T, f *fixture) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, f.store.Arts().PutAll(ctx, []models.Art{
		{ID: 1, Image: "one", Author: "amy", Tags: []string{"cat"}, CreatedAt: "2023-01-01T00:00:00.000Z"},
		{ID: 2, Image: "two", Author: "bob", Tags: []string{"dog"}, CreatedAt: "2023-02-01T00:00:00.000Z"},
	}))
	require.NoError(t, f.store.Categories().Put(ctx, &models.Category{ID: 10, Name: "animals", Color: "#ff0000"}))
	require.NoError(t, f.store.TagCategories().Put(ctx, &models.TagCategory{Tag: "cat", CategoryID: int64Ptr(10), Priority: 1}))
}

func incoming() *models.Backup {
	return &models.Backup{
		ExportedAt: "2024-05-05T00:00:00.000Z",
		Arts: []models.Art{
			{ID: 2, Image: "changed", Author: "eve", Tags: []string{"dog"}, CreatedAt: "2023-02-01T00:00:00.000Z"},
			{ID: 3, Image: "three", Author: "cy", Tags: []string{"bird"}, State: "done", Favorite: true, CreatedAt: "2023-03-01T00:00:00.000Z"},
		},
		Categories: []models.Category{
			{ID: 10, Name: "renamed", Color: "#000000"},
			{ID: 11, Name: "birds", Color: "#0000ff"},
		},
		TagCategories: []models.TagCategory{
			{Tag: "cat", Priority: 3},
			{Tag: "bird", CategoryID: int64Ptr(11), Priority: 2},
		},
	}
}

func snapshot(t *testing.T, f *fixture) *models.Backup {
	t.Helper()
	snap, err := f.store.Snapshot(context.Background())
	require.NoError(t, err)
	return snap
}

func TestImportMergeIsAdditive(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	seed(t, f)
	before := snapshot(t, f)

	res, err := f.gallery.ImportMerge(ctx, incoming())
	require.NoError(t, err)
	assert.Equal(t, ModeMerge, res.Mode)
	assert.NotEmpty(t, res.ID)
	assert.Equal(t, backup.Counts{Arts: 1, Categories: 1, TagCategories: 1}, res.Imported)
	assert.Equal(t, backup.Counts{Arts: 1, Categories: 1, TagCategories: 1}, res.Skipped)

	after := snapshot(t, f)
	require.Len(t, after.Arts, 3)
	assert.Equal(t, before.Arts[0], after.Arts[0])
	assert.Equal(t, before.Arts[1], after.Arts[1], "existing art must not be overwritten")
	assert.Equal(t, int64(3), after.Arts[2].ID)

	assert.Equal(t, []models.Category{
		{ID: 10, Name: "animals", Color: "#ff0000"},
		{ID: 11, Name: "birds", Color: "#0000ff"},
	}, after.Categories)
	assert.Equal(t, []models.TagCategory{
		{Tag: "bird", CategoryID: int64Ptr(11), Priority: 2},
		{Tag: "cat", CategoryID: int64Ptr(10), Priority: 1},
	}, after.TagCategories)

	// the cache sees the merged records
	m, err := f.gallery.TagMeta(ctx, "bird")
	require.NoError(t, err)
	require.NotNil(t, m.Category)
	assert.Equal(t, "birds", m.Category.Name)
}

func TestImportMergeIsIdempotent(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	seed(t, f)

	_, err := f.gallery.ImportMerge(ctx, incoming())
	require.NoError(t, err)
	once := snapshot(t, f)

	res, err := f.gallery.ImportMerge(ctx, incoming())
	require.NoError(t, err)
	assert.Equal(t, backup.Counts{}, res.Imported)
	assert.Equal(t, once, snapshot(t, f))
}

func TestImportOverwriteReplacesEverything(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	seed(t, f)

	var asked backup.Counts
	res, err := f.gallery.ImportOverwrite(ctx, incoming(), func(_ context.Context, c backup.Counts) bool {
		asked = c
		return true
	})
	require.NoError(t, err)
	assert.Equal(t, backup.Counts{Arts: 2, Categories: 2, TagCategories: 2}, asked)
	assert.Equal(t, asked, res.Imported)

	want := incoming()
	after := snapshot(t, f)
	assert.Equal(t, want.Arts, after.Arts)
	assert.Equal(t, want.Categories, after.Categories)
	assert.ElementsMatch(t, want.TagCategories, after.TagCategories)

	all, err := f.gallery.Authors(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"cy", "eve"}, all)
}

func TestImportOverwriteRefused(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	seed(t, f)
	before := snapshot(t, f)

	_, err := f.gallery.ImportOverwrite(ctx, incoming(), refuse)
	assert.True(t, errors.Is(err, ErrImportNotConfirmed))
	_, err = f.gallery.ImportOverwrite(ctx, incoming(), nil)
	assert.True(t, errors.Is(err, ErrImportNotConfirmed))

	assert.Equal(t, before, snapshot(t, f))
	assert.Equal(t, float64(2), testutil.ToFloat64(f.metrics.Imports.WithLabelValues(ModeOverwrite, "refused")))
}

func TestImportRejectsMalformedBeforeWriting(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	seed(t, f)
	before := snapshot(t, f)

	payloads := []string{
		`{"arts": [`,
		`[]`,
		`{"arts": [{"id": 9}], "categories": {"id": 1}}`,
		`{"arts": [{"id": 9}], "tagCategories": [{"priority": 1}]}`,
	}
	for _, p := range payloads {
		for _, mode := range []string{ModeMerge, ModeOverwrite} {
			_, err := f.gallery.Import(ctx, []byte(p), mode, Confirmed)
			assert.True(t, errors.Is(err, ErrMalformedBackup), "%s %s: %v", mode, p, err)
		}
	}
	assert.Equal(t, before, snapshot(t, f))

	_, err := f.gallery.Import(ctx, []byte(`{}`), "replace", Confirmed)
	assert.True(t, errors.Is(err, ErrInvalidArgument))
}

func TestImportMissingCollectionsAreEmpty(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	seed(t, f)

	res, err := f.gallery.Import(ctx, []byte(`{"arts": [{"id": 77, "image": "x"}]}`), ModeMerge, nil)
	require.NoError(t, err)
	assert.Equal(t, backup.Counts{Arts: 1}, res.Imported)

	res, err = f.gallery.Import(ctx, []byte(`{"categories": []}`), ModeOverwrite, Confirmed)
	require.NoError(t, err)
	assert.Equal(t, backup.Counts{}, res.Imported)

	after := snapshot(t, f)
	assert.Empty(t, after.Arts)
	assert.Empty(t, after.Categories)
	assert.Empty(t, after.TagCategories)
}

func TestExportOverwriteRoundTrip(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	a, err := f.gallery.AddArt(ctx, NewArt{Image: "data:x", URL: "u", Author: "amy", Tags: []string{"cat", "sky"}})
	require.NoError(t, err)
	_, err = f.gallery.ToggleFavorite(ctx, a.ID)
	require.NoError(t, err)
	c, err := f.gallery.AddCategory(ctx, "animals", "#abcdef")
	require.NoError(t, err)
	_, err = f.gallery.SetTagCategory(ctx, "cat", &c.ID)
	require.NoError(t, err)
	_, err = f.gallery.SetTagPriority(ctx, "sky", 2)
	require.NoError(t, err)

	exported, err := f.gallery.Export(ctx)
	require.NoError(t, err)
	assert.Equal(t, "2024-01-01T09:00:00.000Z", exported.ExportedAt)

	buf := bytes.Buffer{}
	require.NoError(t, backup.Encode(&buf, exported))

	other := newFixture(t)
	_, err = other.gallery.Import(ctx, buf.Bytes(), ModeOverwrite, Confirmed)
	require.NoError(t, err)

	again, err := other.gallery.Export(ctx)
	require.NoError(t, err)
	assert.Equal(t, exported.Arts, again.Arts)
	assert.Equal(t, exported.Categories, again.Categories)
	assert.Equal(t, exported.TagCategories, again.TagCategories)
}

func TestImportMalformedErrorNamedOnce(t *testing.T) {
	f := newFixture(t)

	_, err := f.gallery.Import(context.Background(), []byte(`{"categories": {}}`), ModeMerge, nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrMalformedBackup))
	assert.Equal(t, 1, strings.Count(err.Error(), "malformed backup"), err.Error())
	assert.Contains(t, err.Error(), "categories is not an array")
}

func TestImportMergeRepeatedKeyLastWins(t *testing.T) {
	ctx := context.Background()
	payload := []byte(`{"arts": [
		{"id": 5, "image": "x", "author": "first"},
		{"id": 5, "image": "x", "author": "second"}
	]}`)

	merged := newFixture(t)
	res, err := merged.gallery.Import(ctx, payload, ModeMerge, nil)
	require.NoError(t, err)
	assert.Equal(t, backup.Counts{Arts: 1}, res.Imported)

	overwritten := newFixture(t)
	_, err = overwritten.gallery.Import(ctx, payload, ModeOverwrite, Confirmed)
	require.NoError(t, err)

	a, err := merged.gallery.GetArt(ctx, 5)
	require.NoError(t, err)
	b, err := overwritten.gallery.GetArt(ctx, 5)
	require.NoError(t, err)
	assert.Equal(t, "second", a.Author)
	assert.Equal(t, b, a)
}
