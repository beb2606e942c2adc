package feed

import (
	"bufio"
	"encoding/json"
	"errors"
	"net"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

const writeTimeout = 2 * time.Second

// Server accepts raw TCP subscribers for a Hub.
type Server struct {
	Addr string
	Hub  *Hub

	mu sync.Mutex
	ln net.Listener
}

func NewServer(addr string, hub *Hub) *Server {
	return &Server{Addr: addr, Hub: hub}
}

func (s *Server) Listen() error {
	ln, err := net.Listen("tcp", s.Addr)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.ln = ln
	s.mu.Unlock()
	log.Info().Str("addr", ln.Addr().String()).Msg("feed: TCP listening")
	return nil
}

// ListenAddr is the bound address, or nil before Listen.
func (s *Server) ListenAddr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ln == nil {
		return nil
	}
	return s.ln.Addr()
}

// Serve accepts subscribers until Close.
func (s *Server) Serve() error {
	s.mu.Lock()
	ln := s.ln
	s.mu.Unlock()
	if ln == nil {
		return errors.New("feed server not listening")
	}

	for {
		conn, err := ln.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			log.Warn().Err(err).Msg("feed: accept")
			continue
		}

		go s.handle(conn)
	}
}

// handle feeds one TCP subscriber. Each line it sends is a
// SubscribeRequest that replaces its filter and is acknowledged with a
// Subscribed line; anything else is ignored.
func (s *Server) handle(conn net.Conn) {
	remote := conn.RemoteAddr().String()
	write := func(b []byte) error {
		_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		_, err := conn.Write(b)
		return err
	}

	if err := s.Hub.greet(write, "tcp"); err != nil {
		_ = conn.Close()
		return
	}
	sub, err := s.Hub.subscribe(transportTCP, Filter{}, write, conn.Close)
	if err != nil {
		log.Debug().Err(err).Str("remote", remote).Msg("feed: replay failed")
		return
	}
	log.Debug().Str("remote", remote).Msg("feed: client connected")
	defer func() {
		s.Hub.unsubscribe(sub)
		log.Debug().Str("remote", remote).Msg("feed: client disconnected")
	}()

	sc := bufio.NewScanner(conn)
	for sc.Scan() {
		var req SubscribeRequest
		if err := json.Unmarshal(sc.Bytes(), &req); err != nil || req.Type != typeSubscribe {
			continue
		}
		sub.setFilter(req.Filter)
		ack, err := encode(Subscribed{Type: TypeSubscribed, Filter: req.Filter})
		if err != nil {
			continue
		}
		if err := sub.send(ack); err != nil {
			return
		}
	}
}

func (s *Server) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ln == nil {
		return nil
	}
	err := s.ln.Close()
	s.ln = nil
	return err
}
