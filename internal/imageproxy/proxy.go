// Package imageproxy relays remote cover images so browsers can show them
// despite the site's hotlink checks.
package imageproxy

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog/log"
)

// stripped headers describe the upstream transfer, not the image.
var stripped = map[string]bool{
	"Content-Encoding":  true,
	"Content-Length":    true,
	"Transfer-Encoding": true,
	"Connection":        true,
}

const defaultContentType = "image/png"

type Handler struct {
	Client *resty.Client
}

// NewHandler relays through client, which should carry the same User-Agent
// and Referer as the crawler.
func NewHandler(client *resty.Client) *Handler {
	return &Handler{Client: client}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/proxy-image", h.proxy) // GET /api/proxy-image?url=
}

func (h *Handler) proxy(c *gin.Context) {
	raw := strings.TrimSpace(c.Query("url"))
	if raw == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "url is required"})
		return
	}
	if strings.HasPrefix(raw, "//") {
		raw = "https:" + raw
	}
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "url must be an absolute http(s) url"})
		return
	}

	resp, err := h.Client.R().SetContext(c.Request.Context()).Get(u.String())
	if err != nil {
		log.Warn().Err(err).Str("url", u.String()).Msg("image relay failed")
		c.JSON(http.StatusBadGateway, gin.H{"error": "upstream unreachable"})
		return
	}
	if resp.StatusCode() != http.StatusOK {
		c.JSON(http.StatusBadGateway, gin.H{"error": "upstream returned " + resp.Status()})
		return
	}

	for k, vs := range resp.Header() {
		k = http.CanonicalHeaderKey(k)
		if stripped[k] || k == "Content-Type" {
			continue
		}
		for _, v := range vs {
			c.Writer.Header().Add(k, v)
		}
	}
	ct := resp.Header().Get("Content-Type")
	if ct == "" {
		ct = defaultContentType
	}
	c.Data(http.StatusOK, ct, resp.Body())
}
