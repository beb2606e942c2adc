package app

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"webtoonhub/internal/crawler"
	"webtoonhub/internal/store"
	"webtoonhub/pkg/utils"
)

func testConfig(t *testing.T) utils.Config {
	t.Helper()
	return utils.Config{
		StoreBackend:    "file",
		DataFile:        filepath.Join(t.TempDir(), "comics_data.json"),
		CatalogURL:      utils.DefaultCatalogURL,
		EpisodeStrategy: "attribute",
	}
}

func TestBuild(t *testing.T) {
	a, err := Build(context.Background(), testConfig(t))
	require.NoError(t, err)
	defer a.Close()

	assert.IsType(t, &store.FileStore{}, a.Store)
	assert.Equal(t, "attribute", a.Counter.Name())
	assert.Nil(t, a.Notify)
	assert.Nil(t, a.FeedTCP)
	assert.Equal(t, crawler.Notifiers{a.Feed}, a.Engine.Notifier)
	assert.False(t, a.Runner.Running())
}

func TestBuildWithNotify(t *testing.T) {
	cfg := testConfig(t)
	cfg.NotifyAddr = "127.0.0.1:0"
	cfg.FeedAddr = "127.0.0.1:0"
	a, err := Build(context.Background(), cfg)
	require.NoError(t, err)
	defer a.Close()

	require.NotNil(t, a.FeedTCP)
	require.NotNil(t, a.Notify)
	assert.Equal(t, crawler.Notifiers{a.Feed, a.Notify}, a.Engine.Notifier)
}

func TestBuildRejectsBadSettings(t *testing.T) {
	cfg := testConfig(t)
	cfg.StoreBackend = "redis"
	_, err := Build(context.Background(), cfg)
	assert.Error(t, err)

	cfg = testConfig(t)
	cfg.StoreBackend = "postgres"
	_, err = Build(context.Background(), cfg)
	assert.Error(t, err)

	cfg = testConfig(t)
	cfg.EpisodeStrategy = "guess"
	_, err = Build(context.Background(), cfg)
	assert.Error(t, err)
}

func TestOpenSQLiteStore(t *testing.T) {
	t.Setenv("WEBTOONHUB_DB_PATH", filepath.Join(t.TempDir(), "data.db"))
	cfg := testConfig(t)
	cfg.StoreBackend = "sqlite"

	st, err := OpenStore(context.Background(), cfg)
	require.NoError(t, err)
	defer st.Close()
	assert.IsType(t, &store.SQLiteStore{}, st)
}

func TestReadyPingsSQLite(t *testing.T) {
	gin.SetMode(gin.TestMode)
	t.Setenv("WEBTOONHUB_DB_PATH", filepath.Join(t.TempDir(), "data.db"))
	cfg := testConfig(t)
	cfg.StoreBackend = "sqlite"
	a, err := Build(context.Background(), cfg)
	require.NoError(t, err)
	defer a.Close()
	r := a.Router()

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ready", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	require.NoError(t, a.Store.Close())
	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ready", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestHealthAndReady(t *testing.T) {
	gin.SetMode(gin.TestMode)
	cfg := testConfig(t)
	a, err := Build(context.Background(), cfg)
	require.NoError(t, err)
	defer a.Close()
	r := a.Router()

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ready", nil))
	require.Equal(t, http.StatusOK, w.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["store"])
	assert.EqualValues(t, 0, body["ws_clients"])

	require.NoError(t, os.WriteFile(cfg.DataFile, []byte("{broken"), 0o644))
	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ready", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/comics", nil))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestScheduleRejectsBadSpec(t *testing.T) {
	a, err := Build(context.Background(), testConfig(t))
	require.NoError(t, err)
	defer a.Close()

	_, err = a.Schedule(context.Background(), "every tuesday")
	assert.Error(t, err)

	c, err := a.Schedule(context.Background(), "@every 1h")
	require.NoError(t, err)
	c.Stop()
}
