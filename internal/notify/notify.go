// Package notify pushes catalog changes to subscribers over UDP. A
// subscriber registers by sending a register message from the address it
// wants to be notified at.
package notify

import (
	"encoding/json"
	"errors"
	"net"
	"sync"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"webtoonhub/pkg/models"
)

const (
	RegisterMessageType   = "register"
	UnregisterMessageType = "unregister"
	NewEpisodeMessageType = "new_episode"
)

type RegisterMessage struct {
	Type   string `json:"type"`
	UserID string `json:"user_id"`
}

type NewEpisodeMessage struct {
	Type         string `json:"type"`
	ComicID      string `json:"comic_id"`
	Title        string `json:"title"`
	EpisodeCount int    `json:"episode_count"`
	IsNew        bool   `json:"is_new"`
	DetailURL    string `json:"detail_url"`
}

type Client struct {
	UserID string
	Addr   *net.UDPAddr
}

type Registry struct {
	mu      sync.RWMutex
	clients map[string]Client
}

func NewRegistry() *Registry {
	return &Registry{clients: make(map[string]Client)}
}

func (r *Registry) Register(userID string, addr *net.UDPAddr) {
	if userID == "" || addr == nil {
		return
	}
	r.mu.Lock()
	r.clients[userID] = Client{UserID: userID, Addr: addr}
	r.mu.Unlock()
}

func (r *Registry) Remove(userID string) {
	r.mu.Lock()
	delete(r.clients, userID)
	r.mu.Unlock()
}

func (r *Registry) Snapshot() []Client {
	r.mu.RLock()
	defer r.mu.RUnlock()
	clients := make([]Client, 0, len(r.clients))
	for _, client := range r.clients {
		clients = append(clients, client)
	}
	return clients
}

type Server struct {
	addr     string
	registry *Registry
	logger   zerolog.Logger

	mu   sync.RWMutex
	conn *net.UDPConn
}

func NewServer(addr string, registry *Registry) *Server {
	return &Server{
		addr:     addr,
		registry: registry,
		logger:   log.With().Str("component", "notify").Logger(),
	}
}

// Listen binds the UDP socket. Serve must be called afterwards.
func (s *Server) Listen() error {
	udpAddr, err := net.ResolveUDPAddr("udp", s.addr)
	if err != nil {
		return err
	}
	conn, err := net.ListenUDP("udp", udpAddr)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.conn = conn
	s.mu.Unlock()
	s.logger.Info().Str("addr", conn.LocalAddr().String()).Msg("UDP notify server listening")
	return nil
}

// Addr is the bound address, or nil before Listen.
func (s *Server) Addr() net.Addr {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.conn == nil {
		return nil
	}
	return s.conn.LocalAddr()
}

// Serve reads registrations until the socket is closed.
func (s *Server) Serve() error {
	s.mu.RLock()
	conn := s.conn
	s.mu.RUnlock()
	if conn == nil {
		return errors.New("notify server not listening")
	}

	buffer := make([]byte, 2048)
	for {
		n, addr, err := conn.ReadFromUDP(buffer)
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			return err
		}
		msg, err := parseRegisterMessage(buffer[:n])
		if err != nil {
			s.logger.Warn().Err(err).Str("from", addr.String()).Msg("invalid UDP message")
			continue
		}
		switch msg.Type {
		case RegisterMessageType:
			s.registry.Register(msg.UserID, addr)
			s.logger.Info().Str("user_id", msg.UserID).Str("addr", addr.String()).Msg("registered UDP client")
		case UnregisterMessageType:
			s.registry.Remove(msg.UserID)
		}
	}
}

// Run listens and serves.
func (s *Server) Run() error {
	if err := s.Listen(); err != nil {
		return err
	}
	return s.Serve()
}

func (s *Server) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn == nil {
		return nil
	}
	err := s.conn.Close()
	s.conn = nil
	return err
}

// ComicChanged broadcasts a record the crawler just wrote.
func (s *Server) ComicChanged(c models.Comic, isNew bool) {
	s.Broadcast(NewEpisodeMessage{
		Type:         NewEpisodeMessageType,
		ComicID:      c.ID,
		Title:        c.Title,
		EpisodeCount: c.EpisodeCount,
		IsNew:        isNew,
		DetailURL:    c.DetailURL,
	})
}

func (s *Server) Broadcast(msg NewEpisodeMessage) {
	s.mu.RLock()
	conn := s.conn
	s.mu.RUnlock()
	if conn == nil {
		s.logger.Debug().Msg("UDP notify server not running")
		return
	}
	payload, err := json.Marshal(msg)
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to marshal broadcast")
		return
	}

	for _, client := range s.registry.Snapshot() {
		s.sendWithRetry(conn, client, payload)
	}
}

func (s *Server) sendWithRetry(conn *net.UDPConn, client Client, payload []byte) {
	if err := sendOnce(conn, client, payload); err == nil {
		return
	}
	if err := sendOnce(conn, client, payload); err != nil {
		s.logger.Warn().Err(err).Str("user_id", client.UserID).Msg("dropping unreachable client")
		s.registry.Remove(client.UserID)
	}
}

func sendOnce(conn *net.UDPConn, client Client, payload []byte) error {
	if client.Addr == nil {
		return errors.New("missing client address")
	}
	_, err := conn.WriteToUDP(payload, client.Addr)
	return err
}

func parseRegisterMessage(data []byte) (RegisterMessage, error) {
	var msg RegisterMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return msg, err
	}
	if msg.UserID == "" || msg.Type == "" {
		return msg, errors.New("missing required fields")
	}
	return msg, nil
}
