package comic

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
)

type Handler struct {
	Repo *Repo
}

func NewHandler(repo *Repo) *Handler {
	return &Handler{Repo: repo}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("", h.list)              // GET /api/comics
	rg.GET("/describe", h.describe) // GET /api/comics/describe?keyword=
	rg.GET("/:id", h.getByID)       // GET /api/comics/:id
}

func (h *Handler) list(c *gin.Context) {
	q := ListQuery{
		Q:      c.Query("q"),
		Genre:  c.Query("genre"),
		Access: strings.ToLower(strings.TrimSpace(c.Query("access"))),
		Limit:  parseInt(c.Query("limit"), 0),
		Offset: parseInt(c.Query("offset"), 0),
	}
	if q.Access != "" && q.Access != "free" && q.Access != "gated" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "access must be free or gated"})
		return
	}

	items, total, err := h.Repo.List(c.Request.Context(), q)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list failed"})
		return
	}

	c.Header("X-Total-Count", strconv.Itoa(total))
	c.JSON(http.StatusOK, items)
}

func (h *Handler) getByID(c *gin.Context) {
	id := c.Param("id")
	m, err := h.Repo.GetByID(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "get failed"})
		return
	}
	if m == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		return
	}
	c.JSON(http.StatusOK, m)
}

// describe renders every title matching keyword as plain text cards.
func (h *Handler) describe(c *gin.Context) {
	keyword := strings.TrimSpace(c.Query("keyword"))
	items, _, err := h.Repo.List(c.Request.Context(), ListQuery{})
	if err != nil {
		c.String(http.StatusInternalServerError, "list failed")
		return
	}

	var b strings.Builder
	for _, m := range items {
		if !strings.Contains(m.Title, keyword) {
			continue
		}
		fmt.Fprintf(&b, "標題：%s\n分類：%s\n作者：%s\n話次：%s\n狀態：%s\n評分：%s\n簡介：%s\n連結：%s\n圖片：%s\n\n",
			m.Title, m.Genre, m.Author, m.EpisodesLabel, m.AccessNote, m.Score, m.Summary, m.DetailURL, m.CoverImageURL)
	}
	if b.Len() == 0 {
		b.WriteString("很抱歉，目前無符合這個關鍵字的相關漫畫喔")
	}
	c.String(http.StatusOK, b.String())
}

func parseInt(s string, def int) int {
	if strings.TrimSpace(s) == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return n
}
