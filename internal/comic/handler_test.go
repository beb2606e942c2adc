package comic

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"webtoonhub/internal/store"
	"webtoonhub/pkg/models"
)

func seed(t *testing.T) *Repo {
	t.Helper()
	t0 := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	st := store.NewFileStore(filepath.Join(t.TempDir(), "comics_data.json"))
	cat := store.Catalog{}
	for i, c := range []models.Comic{
		{ID: "1", Title: "夜之城", Genre: "奇幻", Author: "甲", AccessNote: models.AccessGated, Summary: "s1"},
		{ID: "2", Title: "日之城", Genre: "奇幻", Author: "乙", AccessNote: models.AccessFree},
		{ID: "3", Title: "戀愛物語", Genre: "愛情", Author: "甲", AccessNote: models.AccessFree},
	} {
		c.EpisodeCount = 10
		c.EpisodesLabel = models.EpisodesLabel(10)
		c.FirstSeenAt = t0.Add(time.Duration(i) * time.Minute)
		c.LastUpdatedAt = c.FirstSeenAt
		cat[c.ID] = c
	}
	require.NoError(t, st.SaveAll(context.Background(), cat))
	return NewRepo(st)
}

func router(repo *Repo) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	NewHandler(repo).RegisterRoutes(r.Group("/api/comics"))
	return r
}

func get(t *testing.T, r *gin.Engine, target string) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, target, nil))
	return w
}

func ids(t *testing.T, w *httptest.ResponseRecorder) []string {
	t.Helper()
	var list []models.Comic
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	out := make([]string, len(list))
	for i, c := range list {
		out[i] = c.ID
	}
	return out
}

func TestListComics(t *testing.T) {
	r := router(seed(t))

	w := get(t, r, "/api/comics")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []string{"1", "2", "3"}, ids(t, w))
	assert.Equal(t, "3", w.Header().Get("X-Total-Count"))

	assert.Equal(t, []string{"1", "3"}, ids(t, get(t, r, "/api/comics?q=甲")))
	assert.Equal(t, []string{"1", "2"}, ids(t, get(t, r, "/api/comics?genre=奇幻")))
	assert.Equal(t, []string{"2", "3"}, ids(t, get(t, r, "/api/comics?access=free")))
	assert.Equal(t, []string{"1"}, ids(t, get(t, r, "/api/comics?access=gated")))

	w = get(t, r, "/api/comics?limit=1&offset=1")
	assert.Equal(t, []string{"2"}, ids(t, w))
	assert.Equal(t, "3", w.Header().Get("X-Total-Count"))

	assert.Equal(t, http.StatusBadRequest, get(t, r, "/api/comics?access=maybe").Code)
}

func TestListEmptyStoreIsEmptyArray(t *testing.T) {
	r := router(NewRepo(store.NewFileStore(filepath.Join(t.TempDir(), "none.json"))))
	w := get(t, r, "/api/comics")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `[]`, w.Body.String())
}

func TestGetComic(t *testing.T) {
	r := router(seed(t))

	w := get(t, r, "/api/comics/2")
	require.Equal(t, http.StatusOK, w.Code)
	var c models.Comic
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &c))
	assert.Equal(t, "日之城", c.Title)

	assert.Equal(t, http.StatusNotFound, get(t, r, "/api/comics/404").Code)
}

func TestDescribe(t *testing.T) {
	r := router(seed(t))

	w := get(t, r, "/api/comics/describe?keyword=夜")
	assert.Contains(t, w.Body.String(), "標題：夜之城\n")
	assert.Contains(t, w.Body.String(), "話次：共 10 話\n")
	assert.NotContains(t, w.Body.String(), "日之城")

	w = get(t, r, "/api/comics/describe?keyword=nothing")
	assert.Equal(t, "很抱歉，目前無符合這個關鍵字的相關漫畫喔", w.Body.String())
}

func TestRepoByGenreFreeFirst(t *testing.T) {
	repo := seed(t)
	list, err := repo.ByGenre(context.Background(), "奇幻")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "2", list[0].ID)
	assert.Equal(t, "1", list[1].ID)

	c, err := repo.FindByTitle(context.Background(), "戀愛")
	require.NoError(t, err)
	require.NotNil(t, c)
	assert.Equal(t, "3", c.ID)

	c, err = repo.FindByTitle(context.Background(), "none")
	require.NoError(t, err)
	assert.Nil(t, c)
}
