package test_functional

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Rogue-Bear-Innovations/art-archive/internal/models"
	"github.com/Rogue-Bear-Innovations/art-archive/internal/service"
)

const fixtureBackup = `{
	"exportedAt": "2024-03-01T10:00:00.000Z",
	"arts": [
		{"id": 1700000000000, "image": "data:a", "url": "", "author": "amy", "state": "", "tags": ["cat"], "favorite": false, "createdAt": "2023-11-14T22:13:20.000Z"},
		{"id": 1700000001000, "image": "data:b", "url": "", "author": "bob", "state": "done", "tags": ["dog", "cat"], "favorite": true, "createdAt": "2023-11-14T22:13:21.000Z"}
	],
	"categories": [{"id": 5, "name": "animals", "color": "#ff8800"}],
	"tagCategories": [{"tag": "cat", "categoryId": 5, "priority": 2}]
}`

func importBackup(t *testing.T, ctx context.Context, body, mode string, confirm bool) (*resty.Response, *service.ImportResult) {
	t.Helper()
	params := map[string]string{"mode": mode}
	if confirm {
		params["confirm"] = "true"
	}
	resp, err := resty.New().
		R().
		SetHeader("Content-Type", "application/json").
		SetContext(ctx).
		SetQueryParams(params).
		SetResult(&service.ImportResult{}).
		SetBody(body).
		Post(Endpoint("/backup/import"))
	require.NoError(t, err)

	res, _ := resp.Result().(*service.ImportResult)
	return resp, res
}

func listArts(t *testing.T, ctx context.Context, body string) []models.Art {
	t.Helper()
	resp, err := resty.New().
		R().
		SetHeader("Content-Type", "application/json").
		SetContext(ctx).
		SetResult(&[]models.Art{}).
		SetBody(body).
		Post(Endpoint("/art/list"))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode())

	got, ok := resp.Result().(*[]models.Art)
	require.True(t, ok)
	return *got
}

func TestPing(t *testing.T) {
	resp, err := resty.New().R().Get(Endpoint("/ping"))
	assert.Nil(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode())
	assert.Equal(t, "pong", resp.String())
}

func TestImport(t *testing.T) {
	t.Run("merge into empty store", func(t *testing.T) {
		defer FlushDB()

		ctx, cancel := context.WithTimeout(context.Background(), time.Second*10)
		defer cancel()

		resp, res := importBackup(t, ctx, fixtureBackup, service.ModeMerge, false)
		require.Equal(t, http.StatusOK, resp.StatusCode(), resp.String())
		assert.Equal(t, 2, res.Imported.Arts)
		assert.Equal(t, 1, res.Imported.Categories)
		assert.Equal(t, 1, res.Imported.TagCategories)

		arts := listArts(t, ctx, `{"tag": "cat", "sort": "dateDesc"}`)
		require.Len(t, arts, 2)
		assert.Equal(t, int64(1700000001000), arts[0].ID)
		assert.Equal(t, int64(1700000000000), arts[1].ID)

		arts = listArts(t, ctx, `{"sort": "favorite"}`)
		require.Len(t, arts, 2)
		assert.True(t, arts[0].Favorite)

		resp, res = importBackup(t, ctx, fixtureBackup, service.ModeMerge, false)
		require.Equal(t, http.StatusOK, resp.StatusCode())
		assert.Equal(t, 0, res.Imported.Arts)
		assert.Equal(t, 2, res.Skipped.Arts)
	})

	t.Run("overwrite needs confirmation", func(t *testing.T) {
		defer FlushDB()

		ctx, cancel := context.WithTimeout(context.Background(), time.Second*10)
		defer cancel()

		resp, _ := importBackup(t, ctx, fixtureBackup, service.ModeMerge, false)
		require.Equal(t, http.StatusOK, resp.StatusCode())

		resp, _ = importBackup(t, ctx, `{"arts": []}`, service.ModeOverwrite, false)
		assert.Equal(t, http.StatusPreconditionRequired, resp.StatusCode())
		assert.Len(t, listArts(t, ctx, `{}`), 2)

		resp, _ = importBackup(t, ctx, `{"arts": []}`, service.ModeOverwrite, true)
		assert.Equal(t, http.StatusOK, resp.StatusCode())
		assert.Empty(t, listArts(t, ctx, `{}`))
	})

	t.Run("malformed backup", func(t *testing.T) {
		defer FlushDB()

		ctx, cancel := context.WithTimeout(context.Background(), time.Second*10)
		defer cancel()

		resp, _ := importBackup(t, ctx, fixtureBackup, service.ModeMerge, false)
		require.Equal(t, http.StatusOK, resp.StatusCode())

		for _, body := range []string{`not json`, `{"arts": "nope"}`, `{"arts": [{"image": "no id"}]}`} {
			resp, _ = importBackup(t, ctx, body, service.ModeOverwrite, true)
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode(), body)
		}
		assert.Len(t, listArts(t, ctx, `{}`), 2)
	})
}

func TestCategoryDeleteDetachesTags(t *testing.T) {
	defer FlushDB()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second*10)
	defer cancel()

	resp, _ := importBackup(t, ctx, fixtureBackup, service.ModeMerge, false)
	require.Equal(t, http.StatusOK, resp.StatusCode())

	resp, err := resty.New().R().SetContext(ctx).Delete(Endpoint("/category/5"))
	require.NoError(t, err)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode())

	type Meta struct {
		Category *models.Category `json:"category"`
		Priority int              `json:"priority"`
	}
	resp, err = resty.New().R().SetContext(ctx).SetResult(&Meta{}).Get(Endpoint("/tag/cat"))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode())

	got, ok := resp.Result().(*Meta)
	require.True(t, ok)
	assert.Equal(t, Meta{Priority: 2}, *got)
}
