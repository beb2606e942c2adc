package progress

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLine(t *testing.T) {
	assert.Equal(t, "✅ 新增：A", Event{Kind: KindNew, Message: "新增：A"}.Line())
	assert.Equal(t, "⚠️ skipped", Event{Kind: KindWarning, Message: "skipped"}.Line())
	assert.Equal(t, "plain", Event{Kind: Kind("other"), Message: "plain"}.Line())
	assert.Equal(t, Sentinel, Event{Kind: KindDone, Message: "ignored"}.Line())
}

func TestChanSink(t *testing.T) {
	ch := make(chan Event, 1)
	sink := ChanSink(ch)

	require.NoError(t, sink.Emit(context.Background(), Event{Kind: KindStart}))
	assert.Equal(t, KindStart, (<-ch).Kind)

	// full channel and a cancelled context: the emit gives up
	ch <- Event{}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, sink.Emit(ctx, Event{Kind: KindPage}), context.Canceled)
}

func TestRecorder(t *testing.T) {
	var r Recorder
	ctx := context.Background()
	_ = r.Emit(ctx, Event{Kind: KindNew})
	_ = r.Emit(ctx, Event{Kind: KindUnchanged})
	_ = r.Emit(ctx, Event{Kind: KindNew})

	assert.Equal(t, []Kind{KindNew, KindUnchanged, KindNew}, r.Kinds())
	assert.Equal(t, 2, r.Count(KindNew))
	assert.Len(t, r.Events(), 3)
}

func TestWriteSSE(t *testing.T) {
	rec := httptest.NewRecorder()
	require.NoError(t, WriteSSE(rec, Event{Kind: KindPage, Message: "page 1"}))
	require.NoError(t, WriteSSE(rec, Event{Kind: KindDone}))

	assert.Equal(t, "data:📄 page 1\n\ndata:DONE\n\n", rec.Body.String())
	assert.True(t, rec.Flushed)
}

func TestWriteWS(t *testing.T) {
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer ws.Close()
		_ = WriteWS(ws, Event{Kind: KindFinished, Message: "done"})
		_ = WriteWS(ws, Event{Kind: KindDone})
	}))
	defer srv.Close()

	ws, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)
	defer ws.Close()

	_, msg, err := ws.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, "🎉 done", string(msg))
	_, msg, err = ws.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, Sentinel, string(msg))
}

func TestLogSink(t *testing.T) {
	var buf strings.Builder
	sink := LogSink{Logger: zerolog.New(&buf)}
	require.NoError(t, sink.Emit(context.Background(), Event{
		Kind: KindUpdated, Message: "更新：A", ComicID: "100", Page: 2, At: time.Now(),
	}))

	out := buf.String()
	assert.Contains(t, out, `"comic_id":"100"`)
	assert.Contains(t, out, `"page":2`)
	assert.Contains(t, out, `"kind":"updated"`)
	assert.Contains(t, out, `"level":"info"`)
}
