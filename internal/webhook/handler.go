// Package webhook answers Dialogflow fulfillment calls from the LINE bot
// with data from the mirrored catalog.
package webhook

import (
	"context"
	"fmt"
	"math/rand/v2"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"webtoonhub/internal/comic"
	"webtoonhub/pkg/models"
)

const (
	actionGenreChoice = "genreChoice"
	actionGenreAll    = "genreAll"
	actionComicDetail = "ComicDetail"
	actionFreeComics  = "FreeComics"
	actionUnknown     = "input.unknown"

	freeSampleSize = 25
	detailByName   = "名稱"

	textUndefined  = "未定義的操作。"
	textNotFound   = "很抱歉，目前無符合這個關鍵字的相關漫畫喔"
	textSearchHint = "如要搜尋作品的詳細資訊，請輸入：作品是..."
	textMoreHint   = "有更多想查詢的漫畫嗎？請再次輸入作品是...，或是輸入「漫畫」再換其他分類！"
	textSeparator  = "------------------------"
)

// Responder answers free text the intents did not match.
type Responder interface {
	Reply(ctx context.Context, text string) (string, error)
}

// StaticResponder always gives the same answer.
type StaticResponder string

func (s StaticResponder) Reply(context.Context, string) (string, error) { return string(s), nil }

type Handler struct {
	Repo      *comic.Repo
	Fallback  Responder
	PublicURL string // base for hero images; derived from the request when empty

	mu   sync.Mutex
	rand *rand.Rand
}

func NewHandler(repo *comic.Repo, fallback Responder, rnd *rand.Rand) *Handler {
	if fallback == nil {
		fallback = StaticResponder("抱歉，我不太明白您的意思。")
	}
	if rnd == nil {
		rnd = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return &Handler{Repo: repo, Fallback: fallback, rand: rnd}
}

func (h *Handler) RegisterRoutes(r gin.IRoutes) {
	r.POST("/webhook", h.webhook)
}

func (h *Handler) webhook(c *gin.Context) {
	var req Request
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid fulfillment request"})
		return
	}

	resp, err := h.Handle(c.Request.Context(), req, h.baseURL(c.Request))
	if err != nil {
		log.Error().Err(err).Str("action", req.QueryResult.Action).Msg("webhook failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "webhook failed"})
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Handle dispatches on the intent action. base is the externally visible
// root of this server.
func (h *Handler) Handle(ctx context.Context, req Request, base string) (Response, error) {
	q := req.QueryResult
	switch q.Action {
	case actionGenreChoice:
		return h.genreChoice(ctx, q.Param("genre"))
	case actionGenreAll:
		return h.genreAll(ctx, q.Param("genre"))
	case actionComicDetail:
		return h.comicDetail(ctx, q.Param("comicq"), q.Param("any"), base)
	case actionFreeComics:
		return h.freeComics(ctx)
	case actionUnknown:
		reply, err := h.Fallback.Reply(ctx, q.QueryText)
		if err != nil {
			reply = fmt.Sprintf("AI 回覆失敗：%v", err)
		}
		return Response{FulfillmentText: reply}, nil
	default:
		return Response{FulfillmentText: textUndefined}, nil
	}
}

func (h *Handler) genreChoice(ctx context.Context, genre string) (Response, error) {
	list, err := h.Repo.ByGenre(ctx, genre)
	if err != nil {
		return Response{}, err
	}

	var b strings.Builder
	fmt.Fprintf(&b, "您選擇的漫畫分類是：%s，共%d本漫畫，免費優先如下：\n", genre, len(list))
	for _, m := range list {
		fmt.Fprintf(&b, "標題：%s\n連結：%s\n狀態：%s\n%s\n", m.Title, m.DetailURL, m.AccessNote, textSeparator)
	}
	return Response{FulfillmentMessages: []Message{
		textMessage(strings.TrimSpace(b.String())),
		textMessage("\n" + textSearchHint),
	}}, nil
}

func (h *Handler) genreAll(ctx context.Context, genre string) (Response, error) {
	list, err := h.Repo.ByGenre(ctx, genre)
	if err != nil {
		return Response{}, err
	}
	if len(list) == 0 {
		return Response{FulfillmentText: fmt.Sprintf("目前無分類「%s」的漫畫。", genre)}, nil
	}
	return Response{FulfillmentMessages: []Message{
		textMessage(fmt.Sprintf("資料筆數過多，正在處理請耐心等候...\n分類「%s」共有%d本漫畫，即將為您整理全部清單。", genre, len(list))),
	}}, nil
}

func (h *Handler) comicDetail(ctx context.Context, field, keyword, base string) (Response, error) {
	if field != detailByName {
		return Response{FulfillmentText: textNotFound}, nil
	}
	m, err := h.Repo.FindByTitle(ctx, keyword)
	if err != nil {
		return Response{}, err
	}
	if m == nil {
		return Response{FulfillmentText: textNotFound}, nil
	}

	summary := "（無簡介）"
	if m.Summary != "" {
		summary = "簡介：" + m.Summary
	}
	return Response{FulfillmentMessages: []Message{
		flexMessage(m.Title+" 漫畫資訊", detailBubble(*m, heroURL(base, m.CoverImageURL))),
		textMessage(summary),
		textMessage(textMoreHint),
	}}, nil
}

func (h *Handler) freeComics(ctx context.Context) (Response, error) {
	free, err := h.Repo.Free(ctx)
	if err != nil {
		return Response{}, err
	}
	n := len(free)

	sampled := free
	if n > freeSampleSize {
		h.mu.Lock()
		h.rand.Shuffle(n, func(i, j int) { free[i], free[j] = free[j], free[i] })
		h.mu.Unlock()
		sampled = free[:freeSampleSize]
	}

	var b strings.Builder
	fmt.Fprintf(&b, "隨機顯示 %d 本免費完整觀看漫畫（共%d本）：\n", freeSampleSize, n)
	for _, m := range sampled {
		fmt.Fprintf(&b, "標題：%s\n分類：%s\n話次：%s\n連結：%s\n%s\n", m.Title, m.Genre, m.EpisodesLabel, m.DetailURL, textSeparator)
	}
	if len(sampled) == 0 {
		b.WriteString("目前無可免費完整觀看的漫畫。")
	}
	return Response{FulfillmentMessages: []Message{
		textMessage(strings.TrimSpace(b.String()) + "\n" + "如果要搜尋作品的詳細資訊，請輸入：作品是..."),
	}}, nil
}

func detailBubble(m models.Comic, hero string) *FlexBubble {
	score := m.Score
	if score == "" {
		score = "無"
	}
	bubble := &FlexBubble{
		Type: "bubble",
		Body: &FlexComponent{
			Type:   "box",
			Layout: "vertical",
			Contents: []FlexComponent{
				{Type: "text", Text: m.Title, Weight: "bold", Size: "xl", Wrap: true},
				smallText("分類：" + m.Genre),
				smallText("作者：" + m.Author),
				smallText("話數：" + m.EpisodesLabel),
				smallText("評分：" + score),
				smallText("狀態：" + m.AccessNote),
			},
		},
		Footer: &FlexComponent{
			Type:    "box",
			Layout:  "vertical",
			Spacing: "sm",
			Contents: []FlexComponent{{
				Type:   "button",
				Style:  "primary",
				Action: &FlexAction{Type: "uri", Label: "前往閱讀", URI: m.DetailURL},
			}},
		},
	}
	if hero != "" {
		bubble.Hero = &FlexComponent{Type: "image", URL: hero, Size: "full", AspectRatio: "20:13", AspectMode: "cover"}
	}
	return bubble
}

// heroURL routes the cover through this server's image relay.
func heroURL(base, cover string) string {
	if cover == "" || base == "" {
		return ""
	}
	return strings.TrimRight(base, "/") + "/api/proxy-image?url=" + url.QueryEscape(cover)
}

func (h *Handler) baseURL(r *http.Request) string {
	if h.PublicURL != "" {
		return h.PublicURL
	}
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if p := r.Header.Get("X-Forwarded-Proto"); p != "" {
		scheme = p
	}
	return scheme + "://" + r.Host
}
