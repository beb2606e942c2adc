package crawler

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"webtoonhub/internal/progress"
	"webtoonhub/internal/store"
)

func newTestRouter(t *testing.T) (*gin.Engine, *Runner) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	site := newFakeSite(t, twoTitles())
	runner := NewRunner(newTestEngine(site, store.NewFileStore(filepath.Join(t.TempDir(), "c.json")), &clock{now: t1}))
	r := gin.New()
	NewHandler(runner).RegisterRoutes(r)
	return r, runner
}

func TestStartCrawlStreamsSSE(t *testing.T) {
	r, _ := newTestRouter(t)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/start-crawl", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/event-stream", w.Header().Get("Content-Type"))
	body := w.Body.String()
	assert.True(t, strings.HasPrefix(body, "data:🚀 "))
	assert.Contains(t, body, "data:✅ 新增資料：A\n\n")
	assert.Contains(t, body, "data:💾 第 1 頁資料已存檔\n\n")
	assert.True(t, strings.HasSuffix(body, "data:DONE\n\n"))
}

func TestStartCrawlConflict(t *testing.T) {
	r, runner := newTestRouter(t)
	claim, err := runner.Start()
	require.NoError(t, err)
	defer claim.Release()

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/start-crawl", nil))
	assert.Equal(t, http.StatusConflict, w.Code)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ws/crawl", nil))
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestCrawlOverWebsocket(t *testing.T) {
	r, _ := newTestRouter(t)
	srv := httptest.NewServer(r)
	defer srv.Close()

	ws, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/ws/crawl", nil)
	require.NoError(t, err)
	defer ws.Close()

	var lines []string
	for {
		_, msg, err := ws.ReadMessage()
		if err != nil {
			break
		}
		lines = append(lines, string(msg))
		if string(msg) == progress.Sentinel {
			break
		}
	}
	require.NotEmpty(t, lines)
	assert.Equal(t, progress.Sentinel, lines[len(lines)-1])
	assert.Contains(t, lines, "✅ 新增資料：B")
}

func TestCrawlStatus(t *testing.T) {
	r, runner := newTestRouter(t)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/crawl/status", nil))
	assert.JSONEq(t, `{"running": false}`, w.Body.String())

	_, err := runner.Run(t.Context(), &progress.Recorder{})
	require.NoError(t, err)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/crawl/status", nil))
	var resp struct {
		Running bool    `json:"running"`
		Status  Status  `json:"status"`
		Last    Summary `json:"last"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.False(t, resp.Running)
	assert.Equal(t, 2, resp.Last.New)
	assert.Equal(t, StateCompleted, resp.Status.State)
	assert.Equal(t, resp.Last.RunID, resp.Status.RunID)
	assert.Equal(t, 1, resp.Status.Page)
}
