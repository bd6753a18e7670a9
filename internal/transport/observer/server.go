package observer

import (
	"encoding/json"
	"fmt"
	"log"
	"net"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"peaceclaims.dev/internal/model"
	"peaceclaims.dev/internal/observerproto"
)

type subscriber struct {
	out    chan []byte
	gone   chan struct{}
	mu     sync.Mutex
	filter observerproto.SubscribeMsg
}

func (s *subscriber) setFilter(f observerproto.SubscribeMsg) {
	s.mu.Lock()
	s.filter = f
	s.mu.Unlock()
}

func (s *subscriber) matches(e model.AuditEntry) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.filter.Matches(e)
}

// Server streams audit entries to websocket observers. It is an audit sink;
// subscribers that fall behind are disconnected rather than slowing writers.
type Server struct {
	log *log.Logger
	// AllowRemote admits non-loopback observers.
	AllowRemote bool
	// QueueSize is the per-subscriber backlog before it is dropped.
	QueueSize int

	upgrader websocket.Upgrader
	nextID   atomic.Uint64
	seq      atomic.Uint64
	dropped  atomic.Uint64

	mu   sync.Mutex
	subs map[string]*subscriber
}

func NewServer(logger *log.Logger) *Server {
	return &Server{
		log:       logger,
		QueueSize: 256,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4 * 1024,
			WriteBufferSize: 64 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true }, // dev default
		},
		subs: map[string]*subscriber{},
	}
}

// WriteAudit implements the audit sink. It never blocks on a subscriber.
func (s *Server) WriteAudit(e model.AuditEntry) error {
	seq := s.seq.Add(1)
	b, err := json.Marshal(observerproto.AuditMsg{Type: "AUDIT", Seq: seq, Entry: e})
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, sub := range s.subs {
		if !sub.matches(e) {
			continue
		}
		select {
		case sub.out <- b:
		default:
			delete(s.subs, id)
			close(sub.gone)
			s.dropped.Add(1)
			if s.log != nil {
				s.log.Printf("observer %s dropped: queue full", id)
			}
		}
	}
	return nil
}

func (s *Server) Subscribers() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.subs)
}

// Dropped counts subscribers disconnected for falling behind.
func (s *Server) Dropped() uint64 { return s.dropped.Load() }

func (s *Server) BootstrapHandler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			rw.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		if !s.AllowRemote && !isLoopbackRemote(r.RemoteAddr) {
			http.Error(rw, "forbidden", http.StatusForbidden)
			return
		}
		resp := observerproto.BootstrapResponse{
			ProtocolVersion: observerproto.Version,
			Seq:             s.seq.Load(),
			Subscribers:     s.Subscribers(),
		}
		rw.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(rw).Encode(resp)
	}
}

func (s *Server) WSHandler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		if !s.AllowRemote && !isLoopbackRemote(r.RemoteAddr) {
			http.Error(rw, "forbidden", http.StatusForbidden)
			return
		}

		conn, err := s.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		// Handshake: must send SUBSCRIBE first.
		_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return
		}
		sub, ok := parseSubscribe(msg)
		if !ok {
			_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "expected SUBSCRIBE"), time.Now().Add(time.Second))
			return
		}

		id := fmt.Sprintf("O%d", s.nextID.Add(1))
		size := s.QueueSize
		if size <= 0 {
			size = 256
		}
		st := &subscriber{out: make(chan []byte, size), gone: make(chan struct{}), filter: sub}
		s.mu.Lock()
		s.subs[id] = st
		s.mu.Unlock()
		defer func() {
			s.mu.Lock()
			if s.subs[id] == st {
				delete(s.subs, id)
			}
			s.mu.Unlock()
		}()

		// Reader goroutine: allow SUBSCRIBE updates.
		readDone := make(chan struct{})
		go func() {
			defer close(readDone)
			for {
				_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
				_, msg, err := conn.ReadMessage()
				if err != nil {
					return
				}
				if sub, ok := parseSubscribe(msg); ok {
					st.setFilter(sub)
				}
			}
		}()

		for {
			select {
			case <-readDone:
				return
			case <-st.gone:
				_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseTryAgainLater, "too slow"), time.Now().Add(time.Second))
				return
			case b := <-st.out:
				_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
				if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
					return
				}
			}
		}
	}
}

func parseSubscribe(msg []byte) (observerproto.SubscribeMsg, bool) {
	var sub observerproto.SubscribeMsg
	if err := json.Unmarshal(msg, &sub); err != nil {
		return sub, false
	}
	if sub.Type != "SUBSCRIBE" || sub.ProtocolVersion != observerproto.Version {
		return sub, false
	}
	for i, a := range sub.Actions {
		sub.Actions[i] = strings.ToUpper(strings.TrimSpace(a))
	}
	return sub, true
}

func isLoopbackRemote(remoteAddr string) bool {
	host := remoteAddr
	if h, _, err := net.SplitHostPort(remoteAddr); err == nil {
		host = h
	}
	host = strings.TrimPrefix(host, "[")
	host = strings.TrimSuffix(host, "]")
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
