// Package feed pushes catalog writes to subscribers as JSON lines, over raw
// TCP and over websocket. A new subscriber first gets the most recent changes
// it would have matched, then live ones.
package feed

import (
	"encoding/json"
	"slices"
	"strings"
	"sync"

	"github.com/rs/zerolog/log"

	"webtoonhub/pkg/models"
)

// DefaultReplay is how many recent changes a new subscriber is sent.
const DefaultReplay = 20

type transport int

const (
	transportTCP transport = iota
	transportWS
)

// Filter narrows what a subscriber receives. The zero Filter matches all.
type Filter struct {
	Types []string `json:"types,omitempty"` // TypeNew, TypeUpdated
	Genre string   `json:"genre,omitempty"` // substring of the comic's genre
}

func (f Filter) Match(ev ChangeEvent) bool {
	if len(f.Types) > 0 && !slices.Contains(f.Types, ev.Type) {
		return false
	}
	return f.Genre == "" || strings.Contains(ev.Genre, f.Genre)
}

// subscriber serialises its own writes; the hub and the connection's
// reader both write to it.
type subscriber struct {
	transport transport
	write     func([]byte) error
	close     func() error

	mu     sync.Mutex
	filter Filter
}

func (s *subscriber) send(b []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.write(b)
}

func (s *subscriber) setFilter(f Filter) {
	s.mu.Lock()
	s.filter = f
	s.mu.Unlock()
}

func (s *subscriber) matches(ev ChangeEvent) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.filter.Match(ev)
}

type Hub struct {
	mu     sync.Mutex
	subs   map[*subscriber]struct{}
	recent []ChangeEvent
	replay int
}

type Stats struct {
	TCPClients int `json:"tcp_clients"`
	WSClients  int `json:"ws_clients"`
	Recent     int `json:"recent"`
}

func NewHub() *Hub {
	return NewHubWithReplay(DefaultReplay)
}

// NewHubWithReplay keeps the last n changes for new subscribers; n <= 0
// disables replay.
func NewHubWithReplay(n int) *Hub {
	return &Hub{subs: make(map[*subscriber]struct{}), replay: max(n, 0)}
}

// ComicChanged publishes a record the crawler just saved.
func (h *Hub) ComicChanged(c models.Comic, isNew bool) {
	h.Publish(changeEvent(c, isNew))
}

// Publish remembers ev for replay and sends it to every matching
// subscriber, dropping the ones whose connection fails.
func (h *Hub) Publish(ev ChangeEvent) {
	line, err := encode(ev)
	if err != nil {
		log.Error().Err(err).Msg("feed: marshal event")
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if h.replay > 0 {
		h.recent = append(h.recent, ev)
		if over := len(h.recent) - h.replay; over > 0 {
			h.recent = slices.Delete(h.recent, 0, over)
		}
	}
	for s := range h.subs {
		if !s.matches(ev) {
			continue
		}
		if err := s.send(line); err != nil {
			h.drop(s)
		}
	}
}

// subscribe replays the recent changes matching f, then registers the
// subscriber, all under the hub lock so no change is missed or doubled.
func (h *Hub) subscribe(t transport, f Filter, write func([]byte) error, closeFn func() error) (*subscriber, error) {
	s := &subscriber{transport: t, write: write, close: closeFn, filter: f}

	h.mu.Lock()
	defer h.mu.Unlock()
	for _, ev := range h.recent {
		if !f.Match(ev) {
			continue
		}
		line, err := encode(ev)
		if err != nil {
			continue
		}
		if err := s.send(line); err != nil {
			_ = closeFn()
			return nil, err
		}
	}
	h.subs[s] = struct{}{}
	return s, nil
}

func (h *Hub) unsubscribe(s *subscriber) {
	h.mu.Lock()
	h.drop(s)
	h.mu.Unlock()
}

// drop must be called with h.mu held.
func (h *Hub) drop(s *subscriber) {
	if _, ok := h.subs[s]; !ok {
		return
	}
	delete(h.subs, s)
	_ = s.close()
}

func (h *Hub) Stats() Stats {
	h.mu.Lock()
	defer h.mu.Unlock()
	st := Stats{Recent: len(h.recent)}
	for s := range h.subs {
		if s.transport == transportWS {
			st.WSClients++
		} else {
			st.TCPClients++
		}
	}
	return st
}

func encode(v any) ([]byte, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return append(b, '\n'), nil
}

// greet writes the welcome line, telling the client how many changes the
// hub replays.
func (h *Hub) greet(write func([]byte) error, transport string) error {
	line, err := encode(Welcome{Type: TypeWelcome, Transport: transport, Replay: h.replay})
	if err != nil {
		return err
	}
	return write(line)
}
