package notify

import (
	"encoding/json"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"webtoonhub/pkg/models"
)

func TestParseRegisterMessage(t *testing.T) {
	msg, err := parseRegisterMessage([]byte(`{"type":"register","user_id":"u1"}`))
	require.NoError(t, err)
	assert.Equal(t, "u1", msg.UserID)

	_, err = parseRegisterMessage([]byte(`{"type":"register"}`))
	assert.Error(t, err)
	_, err = parseRegisterMessage([]byte(`nope`))
	assert.Error(t, err)
}

func TestRegistry(t *testing.T) {
	r := NewRegistry()
	addr := &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 9}
	r.Register("u1", addr)
	r.Register("", addr)
	r.Register("u2", nil)
	assert.Len(t, r.Snapshot(), 1)
	r.Remove("u1")
	assert.Empty(t, r.Snapshot())
}

func TestBroadcastReachesRegisteredClient(t *testing.T) {
	registry := NewRegistry()
	srv := NewServer("127.0.0.1:0", registry)
	require.NoError(t, srv.Listen())
	defer srv.Close()
	go srv.Serve()

	client, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	require.NoError(t, err)
	defer client.Close()

	server := srv.Addr().(*net.UDPAddr)
	_, err = client.WriteToUDP([]byte(`{"type":"register","user_id":"reader"}`), server)
	require.NoError(t, err)
	require.Eventually(t, func() bool { return len(registry.Snapshot()) == 1 }, 2*time.Second, 10*time.Millisecond)

	srv.ComicChanged(models.Comic{ID: "100", Title: "A", EpisodeCount: 7}, false)

	require.NoError(t, client.SetReadDeadline(time.Now().Add(2*time.Second)))
	buf := make([]byte, 2048)
	n, _, err := client.ReadFromUDP(buf)
	require.NoError(t, err)

	var msg NewEpisodeMessage
	require.NoError(t, json.Unmarshal(buf[:n], &msg))
	assert.Equal(t, NewEpisodeMessageType, msg.Type)
	assert.Equal(t, "100", msg.ComicID)
	assert.Equal(t, 7, msg.EpisodeCount)
	assert.False(t, msg.IsNew)

	_, err = client.WriteToUDP([]byte(`{"type":"unregister","user_id":"reader"}`), server)
	require.NoError(t, err)
	require.Eventually(t, func() bool { return len(registry.Snapshot()) == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestBroadcastWithoutListenerIsNoop(t *testing.T) {
	srv := NewServer("127.0.0.1:0", NewRegistry())
	srv.ComicChanged(models.Comic{ID: "1"}, true)
	assert.Nil(t, srv.Addr())
	assert.NoError(t, srv.Close())
}
