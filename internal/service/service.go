// Package service is the orchestration layer between the host (events,
// commands, admin API) and the stores. Every method must run on the engine
// loop; async persistence results are posted back onto it.
package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"time"

	"peaceclaims.dev/internal/claims"
	"peaceclaims.dev/internal/config"
	"peaceclaims.dev/internal/economy"
	"peaceclaims.dev/internal/invites"
	"peaceclaims.dev/internal/model"
	"peaceclaims.dev/internal/modes"
	"peaceclaims.dev/internal/noob"
	plog "peaceclaims.dev/internal/persistence/log"
	"peaceclaims.dev/internal/persistence/store"
	"peaceclaims.dev/internal/policy/rules"
	"peaceclaims.dev/internal/protocol"
	"peaceclaims.dev/internal/pvparea"
	"peaceclaims.dev/internal/region"
	"peaceclaims.dev/internal/reputation"
	"peaceclaims.dev/internal/resolver"
)

var (
	ErrRequiresPeace = protocol.New(protocol.ErrConflict, "claim_requires_peace")
	ErrClaimInPvp    = protocol.New(protocol.ErrConflict, "claim_in_pvp_area")
	ErrModeChosen    = protocol.New(protocol.ErrConflict, "mode_already_chosen")
	ErrNoPending     = protocol.New(protocol.ErrNotFound, "no_pending_mode")
	ErrInviteePeace  = protocol.New(protocol.ErrConflict, "invitee_not_peaceful")
	ErrInviterPeace  = protocol.New(protocol.ErrConflict, "invite_requires_peace")
	ErrNoManage      = protocol.New(protocol.ErrNoPermission, "no_manage_permission")
)

// Notifier delivers a message key to a player. Keys index the message table.
type Notifier interface {
	Notify(id model.PlayerID, key string, args ...any)
}

type NopNotifier struct{}

func (NopNotifier) Notify(model.PlayerID, string, ...any) {}

type Deps struct {
	Writer   *store.Writer
	Perms    resolver.Permissions
	Economy  economy.Economy
	Region   region.Oracle
	Notifier Notifier
	Audit    plog.AuditSink
	Logger   *log.Logger
	// Post schedules fn on the engine loop. Required.
	Post func(fn func()) bool
	Now  func() time.Time
	// Doors selects whether invitations open doors.
	Doors rules.DoorPolicy
}

type Service struct {
	cfg  config.Config
	deps Deps

	areas   *pvparea.Index
	claims  *claims.Store
	modes   *modes.Store
	pending *modes.Pending
	invites *invites.Store
	rep     *reputation.Store
	noob    *noob.Store
	res     *resolver.Resolver

	online map[model.PlayerID]time.Time
}

func New(cfg config.Config, d Deps) (*Service, error) {
	if d.Writer == nil {
		return nil, errors.New("service: nil writer")
	}
	if d.Post == nil {
		return nil, errors.New("service: nil post")
	}
	if d.Perms == nil {
		d.Perms = resolver.NoPermissions{}
	}
	if d.Economy == nil {
		d.Economy = economy.None{}
	}
	d.Region = region.Detect(d.Region)
	if d.Notifier == nil {
		d.Notifier = NopNotifier{}
	}
	if d.Now == nil {
		d.Now = time.Now
	}
	rep, err := reputation.NewStore(d.Writer, reputation.DefaultCacheSize, cfg.PersistenceTimeout())
	if err != nil {
		return nil, err
	}
	s := &Service{
		cfg:     cfg,
		deps:    d,
		areas:   pvparea.NewIndex(d.Writer),
		claims:  claims.NewStore(d.Writer, d.Now),
		modes:   modes.NewStore(d.Writer, cfg.ModeCooldown()),
		pending: modes.NewPending(cfg.ModeConfirmWindow()),
		invites: invites.NewStore(d.Writer),
		rep:     rep,
		noob:    noob.NewStore(d.Writer, cfg.NoobWindow()),
		online:  map[model.PlayerID]time.Time{},
	}
	s.res = resolver.New(resolver.Config{
		Areas:    s.areas,
		Claims:   s.claims,
		Modes:    s.modes,
		Invites:  s.invites,
		Noob:     s.noob,
		Perms:    d.Perms,
		Doors:    d.Doors,
		Now:      d.Now,
		OnRevoke: s.onRevoke,
	})
	return s, nil
}

// Load warms every eagerly cached store from b. Reputation stays lazy.
func (s *Service) Load(ctx context.Context, b store.Backend) error {
	snap, err := store.Load(ctx, b)
	if err != nil {
		return err
	}
	s.areas.Load(snap.PvpAreas)
	s.claims.Load(snap.Claims, snap.Purchased)
	s.modes.Load(snap.Modes)
	s.invites.Load(snap.Invitations)
	s.noob.Load(snap.Noob)
	s.logf("loaded %d claims, %d modes, %d invitations, %d pvp areas",
		len(snap.Claims), len(snap.Modes), len(snap.Invitations), len(snap.PvpAreas))
	return nil
}

// Reload swaps in new settings. Stored data is untouched.
func (s *Service) Reload(cfg config.Config) {
	s.cfg = cfg
	s.modes.SetCooldown(cfg.ModeCooldown())
	s.pending.SetWindow(cfg.ModeConfirmWindow())
	s.noob.SetWindow(cfg.NoobWindow())
	s.rep.SetTimeout(cfg.PersistenceTimeout())
}

func (s *Service) Config() config.Config { return s.cfg }

func (s *Service) Resolver() *resolver.Resolver { return s.res }

func (s *Service) Permissions() resolver.Permissions { return s.deps.Perms }

func (s *Service) ModeOf(id model.PlayerID) model.Mode { return s.modes.ModeOf(id) }

func (s *Service) now() time.Time { return s.deps.Now() }

func (s *Service) readCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.cfg.PersistenceTimeout())
}

func (s *Service) logf(format string, args ...any) {
	if s.deps.Logger != nil {
		s.deps.Logger.Printf(format, args...)
	}
}

func (s *Service) notify(id model.PlayerID, key string, args ...any) {
	s.deps.Notifier.Notify(id, key, args...)
}

func (s *Service) audit(actor model.PlayerID, action string, target string, key *model.ChunkKey, detail string) {
	if s.deps.Audit == nil {
		return
	}
	e := model.AuditEntry{At: s.now().UTC(), Action: action, Target: target, Detail: detail}
	if actor != (model.PlayerID{}) {
		e.Actor = actor.String()
	}
	if key != nil {
		e.World, e.X, e.Z = key.World, key.X, key.Z
	}
	if err := s.deps.Audit.WriteAudit(e); err != nil {
		s.logf("audit %s: %v", action, err)
	}
}

// watch waits for p off the loop and runs onErr back on the loop if the op
// failed. Without onErr the actor is told the change was not saved.
func (s *Service) watch(p *store.Pending, actor model.PlayerID, onErr func(error)) {
	if p == nil {
		return
	}
	go func() {
		<-p.Done()
		err := p.Err()
		if err == nil {
			return
		}
		s.deps.Post(func() {
			if onErr != nil {
				onErr(err)
				return
			}
			s.notify(actor, "persist_failed")
		})
	}()
}

func (s *Service) onRevoke(actor model.PlayerID, removed []model.Invitation) {
	s.notify(actor, "invitations_revoked")
	s.audit(actor, "INVITES_REVOKED", actor.String(), nil, fmt.Sprintf("%d invitations", len(removed)))
}

func sortedIDs(m map[model.PlayerID]time.Time) []model.PlayerID {
	out := make([]model.PlayerID, 0, len(m))
	for id := range m {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].String() < out[j].String() })
	return out
}
