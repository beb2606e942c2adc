package progress

import (
	"context"
	"io"
	"net/http"

	"github.com/gin-contrib/sse"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

// WriteSSE writes one event as a server-sent event and flushes it.
func WriteSSE(w io.Writer, ev Event) error {
	if err := sse.Encode(w, sse.Event{Data: ev.Line()}); err != nil {
		return err
	}
	if f, ok := w.(http.Flusher); ok {
		f.Flush()
	}
	return nil
}

// WriteWS sends one event as a websocket text frame.
func WriteWS(ws *websocket.Conn, ev Event) error {
	return ws.WriteMessage(websocket.TextMessage, []byte(ev.Line()))
}

// LogSink writes events to a zerolog logger. It never fails.
type LogSink struct {
	Logger zerolog.Logger
}

func (s LogSink) Emit(_ context.Context, ev Event) error {
	var e *zerolog.Event
	switch ev.Kind {
	case KindError:
		e = s.Logger.Error()
	case KindWarning:
		e = s.Logger.Warn()
	case KindUnchanged, KindItem, KindPage, KindPageDone:
		e = s.Logger.Debug()
	default:
		e = s.Logger.Info()
	}
	if ev.ComicID != "" {
		e = e.Str("comic_id", ev.ComicID)
	}
	if ev.Page > 0 {
		e = e.Int("page", ev.Page)
	}
	e.Str("kind", string(ev.Kind)).Msg(ev.Line())
	return nil
}
