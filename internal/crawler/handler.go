package crawler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"webtoonhub/internal/progress"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// eventBuffer is how far the engine may run ahead of a slow consumer.
const eventBuffer = 64

type Handler struct {
	Runner *Runner
}

func NewHandler(r *Runner) *Handler {
	return &Handler{Runner: r}
}

func (h *Handler) RegisterRoutes(r gin.IRoutes) {
	r.GET("/start-crawl", h.startCrawl) // SSE
	r.GET("/ws/crawl", h.wsCrawl)
	r.GET("/api/crawl/status", h.status)
}

func (h *Handler) startCrawl(c *gin.Context) {
	claim, err := h.Runner.Start()
	if err != nil {
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	}

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")
	c.Status(http.StatusOK)

	err = stream(c.Request.Context(), claim, func(ev progress.Event) error {
		return progress.WriteSSE(c.Writer, ev)
	})
	if err != nil {
		log.Warn().Err(err).Msg("sse crawl stream ended early")
	}
}

func (h *Handler) wsCrawl(c *gin.Context) {
	claim, err := h.Runner.Start()
	if err != nil {
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	}

	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		claim.Release()
		return
	}
	defer ws.Close()

	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()

	// the only way to notice a closed websocket is to read from it
	go func() {
		defer cancel()
		for {
			if _, _, err := ws.ReadMessage(); err != nil {
				return
			}
		}
	}()

	err = stream(ctx, claim, func(ev progress.Event) error {
		return progress.WriteWS(ws, ev)
	})
	if err != nil {
		log.Warn().Err(err).Msg("websocket crawl stream ended early")
		return
	}
	_ = ws.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
}

func (h *Handler) status(c *gin.Context) {
	resp := gin.H{"running": h.Runner.Running()}
	if st, ok := h.Runner.Status(); ok {
		resp["status"] = st
	}
	if last, ok := h.Runner.Last(); ok {
		resp["last"] = last
	}
	c.JSON(http.StatusOK, resp)
}

// stream runs the claimed crawl and hands every event to write, in order.
// A failed write cancels the crawl.
func stream(parent context.Context, claim *Claim, write func(progress.Event) error) error {
	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	events := make(chan progress.Event, eventBuffer)
	done := make(chan error, 1)
	go func() {
		defer close(events)
		_, err := claim.Run(ctx, progress.ChanSink(events))
		done <- err
	}()

	var writeErr error
	for ev := range events {
		if writeErr != nil {
			continue // drain until the engine notices
		}
		if err := write(ev); err != nil {
			writeErr = err
			cancel()
		}
	}
	if writeErr != nil {
		return writeErr
	}
	return <-done
}
