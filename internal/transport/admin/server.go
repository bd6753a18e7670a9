// Package admin serves the operator HTTP API under /admin/v1.
package admin

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"peaceclaims.dev/internal/config"
	"peaceclaims.dev/internal/engine"
	"peaceclaims.dev/internal/model"
	"peaceclaims.dev/internal/protocol"
	"peaceclaims.dev/internal/service"
)

type Config struct {
	Service *service.Service
	Loop    *engine.Loop
	Logger  *log.Logger
	// Secret enables bearer-token auth; empty means loopback-only.
	Secret []byte
	// Reload re-reads configuration; nil disables /admin/v1/reload.
	Reload  func() (config.Config, error)
	Timeout time.Duration
}

type Server struct {
	cfg Config
}

func NewServer(cfg Config) *Server {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	return &Server{cfg: cfg}
}

// Register mounts the admin routes on mux.
func (s *Server) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /admin/v1/state", guard(s.cfg.Secret, s.state))
	mux.HandleFunc("GET /admin/v1/claims", guard(s.cfg.Secret, s.claimAt))
	mux.HandleFunc("POST /admin/v1/reputation", guard(s.cfg.Secret, s.reputation))
	mux.HandleFunc("POST /admin/v1/mode", guard(s.cfg.Secret, s.mode))
	mux.HandleFunc("POST /admin/v1/noob", guard(s.cfg.Secret, s.noob))
	mux.HandleFunc("POST /admin/v1/reload", guard(s.cfg.Secret, s.reload))
}

func (s *Server) state(rw http.ResponseWriter, r *http.Request) {
	var st service.State
	if !s.run(rw, r, func(context.Context) error { st = s.cfg.Service.State(); return nil }) {
		return
	}
	writeJSON(rw, http.StatusOK, st)
}

// GET /admin/v1/claims?world=w&x=1&z=2 with block coordinates.
func (s *Server) claimAt(rw http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	world := q.Get("world")
	x, errX := strconv.Atoi(q.Get("x"))
	z, errZ := strconv.Atoi(q.Get("z"))
	if world == "" || errX != nil || errZ != nil {
		writeProblem(rw, http.StatusBadRequest, "bad_request", "world, x and z are required")
		return
	}
	key := model.Location{World: world, X: x, Z: z}.Chunk()
	var info service.ClaimInfo
	if !s.run(rw, r, func(context.Context) error { info = s.cfg.Service.ClaimInfo(key); return nil }) {
		return
	}
	writeJSON(rw, http.StatusOK, info)
}

type reputationReq struct {
	Player string `json:"player"`
	Value  *int   `json:"value,omitempty"`
	Delta  *int   `json:"delta,omitempty"`
}

// POST /admin/v1/reputation sets value or adds delta.
func (s *Server) reputation(rw http.ResponseWriter, r *http.Request) {
	var req reputationReq
	id, ok := decode(rw, r, &req, func() string { return req.Player })
	if !ok {
		return
	}
	if (req.Value == nil) == (req.Delta == nil) {
		writeProblem(rw, http.StatusBadRequest, "bad_request", "exactly one of value and delta is required")
		return
	}
	var rep model.Reputation
	applied := 0
	if !s.run(rw, r, func(ctx context.Context) error {
		var err error
		if req.Value != nil {
			rep, err = s.cfg.Service.SetReputation(ctx, model.PlayerID{}, id, *req.Value)
			applied = rep.Value
			return err
		}
		applied, rep, err = s.cfg.Service.AddReputation(ctx, model.PlayerID{}, id, *req.Delta)
		return err
	}) {
		return
	}
	writeJSON(rw, http.StatusOK, map[string]any{"player": id, "value": rep.Value, "applied": applied})
}

type modeReq struct {
	Player string `json:"player"`
	Mode   string `json:"mode"`
}

// POST /admin/v1/mode forces a mode without cooldown or confirmation.
func (s *Server) mode(rw http.ResponseWriter, r *http.Request) {
	var req modeReq
	id, ok := decode(rw, r, &req, func() string { return req.Player })
	if !ok {
		return
	}
	mode, err := model.ParseMode(req.Mode)
	if err != nil {
		writeProblem(rw, http.StatusBadRequest, "bad_request", err.Error())
		return
	}
	var ch service.ModeChange
	if !s.run(rw, r, func(ctx context.Context) error {
		var err error
		ch, err = s.cfg.Service.ForceMode(ctx, model.PlayerID{}, id, mode)
		return err
	}) {
		return
	}
	writeJSON(rw, http.StatusOK, map[string]any{
		"player":          id,
		"from":            ch.From.String(),
		"to":              ch.To.String(),
		"claims_released": len(ch.ClaimsReleased),
		"invites_removed": ch.InvitesRemoved,
	})
}

type noobReq struct {
	Player string `json:"player"`
	Action string `json:"action"` // grant or clear
}

func (s *Server) noob(rw http.ResponseWriter, r *http.Request) {
	var req noobReq
	id, ok := decode(rw, r, &req, func() string { return req.Player })
	if !ok {
		return
	}
	if req.Action != "grant" && req.Action != "clear" {
		writeProblem(rw, http.StatusBadRequest, "bad_request", "action must be grant or clear")
		return
	}
	var left time.Duration
	if !s.run(rw, r, func(context.Context) error {
		if req.Action == "grant" {
			s.cfg.Service.GrantNoob(model.PlayerID{}, id)
		} else {
			s.cfg.Service.ClearNoob(model.PlayerID{}, id)
		}
		left = s.cfg.Service.NoobRemaining(id)
		return nil
	}) {
		return
	}
	writeJSON(rw, http.StatusOK, map[string]any{"player": id, "remaining_seconds": int(left / time.Second)})
}

func (s *Server) reload(rw http.ResponseWriter, r *http.Request) {
	if s.cfg.Reload == nil {
		writeProblem(rw, http.StatusNotFound, "not_found", "reload is not configured")
		return
	}
	cfg, err := s.cfg.Reload()
	if err != nil {
		writeProblem(rw, http.StatusBadRequest, "bad_config", err.Error())
		return
	}
	if !s.run(rw, r, func(context.Context) error { s.cfg.Service.Reload(cfg); return nil }) {
		return
	}
	s.logf("configuration reloaded via admin API")
	writeJSON(rw, http.StatusOK, map[string]any{"ok": true})
}

// run executes fn on the engine loop and writes a problem response on
// failure. It reports whether the caller should write the success body.
func (s *Server) run(rw http.ResponseWriter, r *http.Request, fn func(ctx context.Context) error) bool {
	ctx, cancel := context.WithTimeout(r.Context(), s.cfg.Timeout)
	defer cancel()
	var opErr error
	if err := s.cfg.Loop.Do(ctx, func() { opErr = fn(ctx) }); err != nil {
		writeError(rw, err)
		return false
	}
	if opErr != nil {
		writeError(rw, opErr)
		return false
	}
	return true
}

func (s *Server) logf(format string, args ...any) {
	if s.cfg.Logger != nil {
		s.cfg.Logger.Printf(format, args...)
	}
}

func decode(rw http.ResponseWriter, r *http.Request, v any, player func() string) (model.PlayerID, bool) {
	r.Body = http.MaxBytesReader(rw, r.Body, 64*1024)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeProblem(rw, http.StatusBadRequest, "bad_request", "malformed JSON body")
		return model.PlayerID{}, false
	}
	id, err := uuid.Parse(player())
	if err != nil {
		writeProblem(rw, http.StatusBadRequest, "bad_request", "player must be a UUID")
		return model.PlayerID{}, false
	}
	return id, true
}

// Problem is an RFC 9457 problem document.
type Problem struct {
	Type   string `json:"type"`
	Title  string `json:"title"`
	Status int    `json:"status"`
	Detail string `json:"detail,omitempty"`
	Code   string `json:"code,omitempty"`
}

func writeProblem(rw http.ResponseWriter, status int, title, detail string) {
	rw.Header().Set("Content-Type", "application/problem+json")
	rw.WriteHeader(status)
	_ = json.NewEncoder(rw).Encode(Problem{Type: "about:blank", Title: title, Status: status, Detail: detail})
}

func writeError(rw http.ResponseWriter, err error) {
	code := protocol.CodeOf(err)
	status := statusOf(code)
	rw.Header().Set("Content-Type", "application/problem+json")
	rw.WriteHeader(status)
	_ = json.NewEncoder(rw).Encode(Problem{
		Type:   "about:blank",
		Title:  protocol.KeyOf(err),
		Status: status,
		Detail: err.Error(),
		Code:   code,
	})
}

func statusOf(code string) int {
	switch code {
	case protocol.ErrBadRequest:
		return http.StatusBadRequest
	case protocol.ErrNoPermission:
		return http.StatusForbidden
	case protocol.ErrNotFound:
		return http.StatusNotFound
	case protocol.ErrConflict, protocol.ErrLimit, protocol.ErrCooldown, protocol.ErrNoFunds:
		return http.StatusConflict
	case protocol.ErrTimeout:
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

func writeJSON(rw http.ResponseWriter, status int, v any) {
	rw.Header().Set("Content-Type", "application/json")
	rw.WriteHeader(status)
	_ = json.NewEncoder(rw).Encode(v)
}
