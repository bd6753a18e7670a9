// Package ws is the game host bridge: the host plugin connects over a
// websocket, reports joins, quits and permission nodes, forwards player
// commands and asks for build, door, attack and explosion verdicts.
package ws

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"fmt"
	"log"
	"net"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"peaceclaims.dev/internal/commands"
	"peaceclaims.dev/internal/engine"
	"peaceclaims.dev/internal/model"
	"peaceclaims.dev/internal/players"
	"peaceclaims.dev/internal/policy/rules"
	"peaceclaims.dev/internal/protocol"
	"peaceclaims.dev/internal/service"
)

// Hub fans notifications out to every connected host. It is created before
// the service so it can serve as the service's Notifier.
type Hub struct {
	// Render formats a message key. It is called on the engine loop.
	Render func(key string, args ...any) string

	mu       sync.Mutex
	sessions map[string]chan []byte
	// economy holds the sessions that answer ECONOMY requests.
	economy map[string]bool
	pending map[string]chan protocol.EconomyResultMsg
	nextReq atomic.Uint64
	dropped atomic.Uint64
}

func NewHub() *Hub {
	return &Hub{
		sessions: map[string]chan []byte{},
		economy:  map[string]bool{},
		pending:  map[string]chan protocol.EconomyResultMsg{},
	}
}

// Notify implements service.Notifier. Sessions with a full queue miss the
// message.
func (h *Hub) Notify(id model.PlayerID, key string, args ...any) {
	text := key
	if h.Render != nil {
		text = h.Render(key, args...)
	}
	b, err := json.Marshal(protocol.NotifyMsg{Type: protocol.TypeNotify, Player: id.String(), Key: key, Text: text})
	if err != nil {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, out := range h.sessions {
		select {
		case out <- b:
		default:
			h.dropped.Add(1)
		}
	}
}

// Dropped counts notifications lost to full session queues.
func (h *Hub) Dropped() uint64 { return h.dropped.Load() }

func (h *Hub) Sessions() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.sessions)
}

func (h *Hub) add(sid string, out chan []byte, economy bool) {
	h.mu.Lock()
	h.sessions[sid] = out
	if economy {
		h.economy[sid] = true
	}
	h.mu.Unlock()
}

func (h *Hub) remove(sid string) {
	h.mu.Lock()
	delete(h.sessions, sid)
	delete(h.economy, sid)
	h.mu.Unlock()
}

type Config struct {
	Hub        *Hub
	Service    *service.Service
	Dispatcher *commands.Dispatcher
	Loop       *engine.Loop
	Directory  *players.Directory
	Logger     *log.Logger
	// Token, when set, must match the HELLO token. Without a token only
	// loopback hosts may connect.
	Token string
	// RequestTimeout bounds one round trip through the engine loop.
	RequestTimeout time.Duration
}

type Server struct {
	cfg      Config
	upgrader websocket.Upgrader
	nextID   atomic.Uint64
}

func NewServer(cfg Config) *Server {
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 5 * time.Second
	}
	return &Server{
		cfg: cfg,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  16 * 1024,
			WriteBufferSize: 16 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true }, // hosts are not browsers
		},
	}
}

func (s *Server) Handler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		if s.cfg.Token == "" && !isLoopbackRemote(r.RemoteAddr) {
			http.Error(rw, "forbidden: bridge is loopback-only without a token", http.StatusForbidden)
			return
		}
		conn, err := s.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		sid, out, econ := s.handshake(conn)
		if sid == "" {
			return
		}
		s.cfg.Hub.add(sid, out, econ)
		defer s.cfg.Hub.remove(sid)
		s.logf("host session %s connected from %s", sid, r.RemoteAddr)

		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()

		// Writer goroutine.
		go func() {
			for {
				select {
				case <-ctx.Done():
					return
				case b := <-out:
					_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
					if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
						cancel()
						return
					}
				}
			}
		}()

		// Commands run in order on their own goroutine so the reader stays
		// free to deliver ECONOMY_RESULT while a command waits for one.
		cmds := make(chan []byte, cap(out))
		go func() {
			for {
				select {
				case <-ctx.Done():
					return
				case msg := <-cmds:
					send(ctx, out, s.handle(ctx, msg))
				}
			}
		}()

		// Reader loop. Everything except commands is handled in arrival order.
		for ctx.Err() == nil {
			_ = conn.SetReadDeadline(time.Now().Add(90 * time.Second))
			_, msg, err := conn.ReadMessage()
			if err != nil {
				break
			}
			base, err := protocol.DecodeBase(msg)
			switch {
			case err == nil && base.Type == protocol.TypeEconomyResult:
				if err := s.cfg.Hub.resolve(msg); err != nil {
					send(ctx, out, errorMsg("", protocol.ErrBadRequest, err.Error()))
				}
			case err == nil && base.Type == protocol.TypeCommand:
				select {
				case cmds <- msg:
				default:
					send(ctx, out, errorMsg("", protocol.ErrTimeout, "command queue full"))
				}
			default:
				send(ctx, out, s.handle(ctx, msg))
			}
		}
		s.logf("host session %s closed", sid)
	}
}

func (s *Server) handshake(conn *websocket.Conn) (string, chan []byte, bool) {
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		return "", nil, false
	}
	var hello protocol.HelloMsg
	if err := json.Unmarshal(msg, &hello); err != nil || hello.Type != protocol.TypeHello {
		closeWith(conn, websocket.ClosePolicyViolation, "expected HELLO")
		return "", nil, false
	}
	if hello.ProtocolVersion != protocol.Version {
		closeWith(conn, websocket.ClosePolicyViolation, "bad protocol_version")
		return "", nil, false
	}
	if s.cfg.Token != "" && subtle.ConstantTimeCompare([]byte(hello.Token), []byte(s.cfg.Token)) != 1 {
		closeWith(conn, websocket.ClosePolicyViolation, "bad token")
		return "", nil, false
	}

	maxQ := hello.MaxQueue
	if maxQ <= 0 {
		maxQ = 64
	}
	if maxQ > 1024 {
		maxQ = 1024
	}
	sid := fmt.Sprintf("H%d", s.nextID.Add(1))
	welcome := protocol.WelcomeMsg{Type: protocol.TypeWelcome, ProtocolVersion: protocol.Version, SessionID: sid}
	if err := writeJSON(conn, welcome); err != nil {
		return "", nil, false
	}
	return sid, make(chan []byte, maxQ), hello.Economy
}

// handle decodes one host message and runs it on the engine loop. The
// returned value, if any, is sent back to the host.
func (s *Server) handle(ctx context.Context, msg []byte) any {
	base, err := protocol.DecodeBase(msg)
	if err != nil {
		return errorMsg("", protocol.ErrBadRequest, "malformed message")
	}
	switch base.Type {
	case protocol.TypeJoin:
		var m protocol.JoinMsg
		if err := json.Unmarshal(msg, &m); err != nil {
			return errorMsg("", protocol.ErrBadRequest, err.Error())
		}
		id, err := uuid.Parse(m.Player)
		if err != nil {
			return errorMsg("", protocol.ErrBadRequest, "bad player id")
		}
		s.cfg.Directory.Put(id, m.Name, m.Nodes)
		var joinErr error
		if err := s.do(ctx, func(ctx context.Context) { _, joinErr = s.cfg.Service.Join(ctx, id) }); err != nil {
			return errorMsg("", protocol.CodeOf(err), err.Error())
		}
		if joinErr != nil {
			return errorMsg("", protocol.CodeOf(joinErr), joinErr.Error())
		}
		return nil

	case protocol.TypeQuit:
		var m protocol.QuitMsg
		if err := json.Unmarshal(msg, &m); err != nil {
			return errorMsg("", protocol.ErrBadRequest, err.Error())
		}
		id, err := uuid.Parse(m.Player)
		if err != nil {
			return errorMsg("", protocol.ErrBadRequest, "bad player id")
		}
		var quitErr error
		if err := s.do(ctx, func(ctx context.Context) { quitErr = s.cfg.Service.Quit(ctx, id) }); err != nil {
			return errorMsg("", protocol.CodeOf(err), err.Error())
		}
		if quitErr != nil {
			return errorMsg("", protocol.CodeOf(quitErr), quitErr.Error())
		}
		return nil

	case protocol.TypePerms:
		var m protocol.PermsMsg
		if err := json.Unmarshal(msg, &m); err != nil {
			return errorMsg("", protocol.ErrBadRequest, err.Error())
		}
		id, err := uuid.Parse(m.Player)
		if err != nil || !s.cfg.Directory.SetNodes(id, m.Nodes) {
			return errorMsg("", protocol.ErrNotFound, "unknown player")
		}
		return nil

	case protocol.TypeCommand:
		var m protocol.CommandMsg
		if err := json.Unmarshal(msg, &m); err != nil {
			return errorMsg("", protocol.ErrBadRequest, err.Error())
		}
		return s.command(ctx, m)

	case protocol.TypeCheck:
		var m protocol.CheckMsg
		if err := json.Unmarshal(msg, &m); err != nil {
			return errorMsg("", protocol.ErrBadRequest, err.Error())
		}
		return s.check(ctx, m)

	case protocol.TypeKill:
		var m protocol.KillMsg
		if err := json.Unmarshal(msg, &m); err != nil {
			return errorMsg("", protocol.ErrBadRequest, err.Error())
		}
		killer, err1 := uuid.Parse(m.Killer)
		victim, err2 := uuid.Parse(m.Victim)
		if err1 != nil || err2 != nil {
			return errorMsg("", protocol.ErrBadRequest, "bad player id")
		}
		var killErr error
		if err := s.do(ctx, func(ctx context.Context) {
			_, killErr = s.cfg.Service.OnPlayerKill(ctx, killer, victim, location(m.Pos))
		}); err != nil {
			return errorMsg("", protocol.CodeOf(err), err.Error())
		}
		if killErr != nil {
			return errorMsg("", protocol.CodeOf(killErr), killErr.Error())
		}
		return nil
	}
	return errorMsg("", protocol.ErrBadRequest, "unknown type "+base.Type)
}

func (s *Server) command(ctx context.Context, m protocol.CommandMsg) any {
	sender := commands.Sender{Console: m.Console, Location: location(m.Pos)}
	if !m.Console {
		id, err := uuid.Parse(m.Player)
		if err != nil {
			return errorMsg(m.ReqID, protocol.ErrBadRequest, "bad player id")
		}
		sender.ID = id
	}
	resp := protocol.ReplyMsg{Type: protocol.TypeReply, ReqID: m.ReqID}
	err := s.do(ctx, func(ctx context.Context) {
		r := s.cfg.Dispatcher.Run(ctx, sender, m.Line)
		resp.Lines = r.Render(s.cfg.Service.Config())
		if r.Err != nil {
			resp.Code = protocol.CodeOf(r.Err)
		}
	})
	if err != nil {
		return errorMsg(m.ReqID, protocol.CodeOf(err), err.Error())
	}
	return resp
}

func (s *Server) check(ctx context.Context, m protocol.CheckMsg) any {
	loc := location(m.Pos)
	var actor, victim model.PlayerID
	if m.Kind != protocol.CheckExplosion {
		id, err := uuid.Parse(m.Player)
		if err != nil {
			return errorMsg(m.ReqID, protocol.ErrBadRequest, "bad player id")
		}
		actor = id
	}
	if m.Kind == protocol.CheckAttack {
		id, err := uuid.Parse(m.Victim)
		if err != nil {
			return errorMsg(m.ReqID, protocol.ErrBadRequest, "bad victim id")
		}
		victim = id
	}

	var v rules.Verdict
	known := true
	err := s.do(ctx, func(context.Context) {
		res := s.cfg.Service.Resolver()
		switch m.Kind {
		case protocol.CheckBuild:
			v = res.CanBuild(actor, loc, rules.ActionBuild)
		case protocol.CheckBreak:
			v = res.CanBuild(actor, loc, rules.ActionBreak)
		case protocol.CheckContainer:
			v = res.CanBuild(actor, loc, rules.ActionContainer)
		case protocol.CheckDoor:
			v = res.CanUseDoor(actor, loc)
		case protocol.CheckAttack:
			v = res.CanAttack(actor, victim, loc)
		case protocol.CheckExplosion:
			v.Allowed = res.ExplosionAllowed(loc)
		default:
			known = false
		}
	})
	if err != nil {
		return errorMsg(m.ReqID, protocol.CodeOf(err), err.Error())
	}
	if !known {
		return errorMsg(m.ReqID, protocol.ErrBadRequest, "unknown check kind "+m.Kind)
	}
	return protocol.VerdictMsg{Type: protocol.TypeVerdict, ReqID: m.ReqID, Allowed: v.Allowed, Reason: v.Reason}
}

// do runs fn on the engine loop with a per-request deadline.
func (s *Server) do(ctx context.Context, fn func(ctx context.Context)) error {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.RequestTimeout)
	defer cancel()
	return s.cfg.Loop.Do(ctx, func() { fn(ctx) })
}

func (s *Server) logf(format string, args ...any) {
	if s.cfg.Logger != nil {
		s.cfg.Logger.Printf(format, args...)
	}
}

func location(p protocol.Pos) model.Location {
	return model.Location{World: strings.TrimSpace(p.World), X: p.X, Y: p.Y, Z: p.Z}
}

func errorMsg(reqID, code, message string) protocol.ErrorMsg {
	return protocol.ErrorMsg{Type: protocol.TypeError, ReqID: reqID, Code: code, Message: message}
}

func closeWith(conn *websocket.Conn, code int, reason string) {
	_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, reason), time.Now().Add(time.Second))
}

// send queues resp for the writer; nil means no reply.
func send(ctx context.Context, out chan<- []byte, resp any) {
	if resp == nil {
		return
	}
	b, err := json.Marshal(resp)
	if err != nil {
		return
	}
	select {
	case out <- b:
	case <-ctx.Done():
	}
}

func writeJSON(conn *websocket.Conn, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	return conn.WriteMessage(websocket.TextMessage, b)
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
