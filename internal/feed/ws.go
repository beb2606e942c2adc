package feed

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// WSHandler subscribes the caller to hub until it disconnects. The filter
// comes from the query: ?type=comic.new&type=comic.updated&genre=奇幻.
func WSHandler(hub *Hub) gin.HandlerFunc {
	return func(c *gin.Context) {
		f := Filter{Types: c.QueryArray("type"), Genre: c.Query("genre")}

		ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			return
		}
		write := func(b []byte) error {
			_ = ws.SetWriteDeadline(time.Now().Add(writeTimeout))
			return ws.WriteMessage(websocket.TextMessage, b)
		}

		if err := hub.greet(write, "websocket"); err != nil {
			_ = ws.Close()
			return
		}
		sub, err := hub.subscribe(transportWS, f, write, ws.Close)
		if err != nil {
			return
		}
		log.Debug().Strs("types", f.Types).Str("genre", f.Genre).Msg("feed: websocket client connected")

		for {
			if _, _, err := ws.ReadMessage(); err != nil {
				break
			}
		}

		hub.unsubscribe(sub)
		log.Debug().Msg("feed: websocket client disconnected")
	}
}
