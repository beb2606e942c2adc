package imageproxy

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/go-resty/resty/v2"
	"github.com/stretchr/testify/assert"
)

func newRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	NewHandler(resty.New()).RegisterRoutes(r.Group("/api"))
	return r
}

func relay(r *gin.Engine, target string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/proxy-image?url="+url.QueryEscape(target), nil))
	return w
}

func TestRelayStripsTransportHeaders(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/jpeg")
		w.Header().Set("Content-Encoding", "br")
		w.Header().Set("Cache-Control", "max-age=60")
		_, _ = w.Write([]byte("JPEGDATA"))
	}))
	defer upstream.Close()

	w := relay(newRouter(), upstream.URL+"/cover.jpg")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "JPEGDATA", w.Body.String())
	assert.Equal(t, "image/jpeg", w.Header().Get("Content-Type"))
	assert.Equal(t, "max-age=60", w.Header().Get("Cache-Control"))
	assert.Empty(t, w.Header().Get("Content-Encoding"))
	assert.Empty(t, w.Header().Get("Transfer-Encoding"))
	assert.Empty(t, w.Header().Get("Connection"))
}

func TestRelayDefaultsContentType(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header()["Content-Type"] = nil // suppress sniffing
		_, _ = w.Write([]byte{0x89, 'P', 'N', 'G'})
	}))
	defer upstream.Close()

	w := relay(newRouter(), upstream.URL)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, defaultContentType, w.Header().Get("Content-Type"))
}

func TestRelayErrors(t *testing.T) {
	r := newRouter()

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/proxy-image", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	assert.Equal(t, http.StatusBadRequest, relay(r, "ftp://example.test/a.png").Code)
	assert.Equal(t, http.StatusBadRequest, relay(r, "not a url").Code)

	missing := httptest.NewServer(http.NotFoundHandler())
	defer missing.Close()
	assert.Equal(t, http.StatusBadGateway, relay(r, missing.URL+"/gone.png").Code)

	closed := httptest.NewServer(http.NotFoundHandler())
	closed.Close()
	assert.Equal(t, http.StatusBadGateway, relay(r, closed.URL+"/a.png").Code)
}
