// Package resolver answers "may this player do this here" by gathering facts
// from the stores and handing them to the rules.
package resolver

import (
	"time"

	"peaceclaims.dev/internal/claims"
	"peaceclaims.dev/internal/invites"
	"peaceclaims.dev/internal/model"
	"peaceclaims.dev/internal/modes"
	"peaceclaims.dev/internal/noob"
	"peaceclaims.dev/internal/policy/rules"
	"peaceclaims.dev/internal/pvparea"
)

// Permission nodes checked by the resolver and the command surface.
const (
	NodeBypass  = "peaceclaims.bypass"
	NodeAdmin   = "peaceclaims.admin"
	NodeUnclaim = "peaceclaims.admin.unclaim"
	NodeReload  = "peaceclaims.admin.reload"
)

//go:generate go tool mockgen -destination=./mocks/permissions_mock.go -package=mocks . Permissions

// Permissions is the host's permission system.
type Permissions interface {
	Has(id model.PlayerID, node string) bool
	// Nodes lists every node granted to id; used for claim limit bonuses.
	Nodes(id model.PlayerID) []string
}

// NoPermissions grants nothing. It stands in when the host has no
// permission system.
type NoPermissions struct{}

func (NoPermissions) Has(model.PlayerID, string) bool { return false }
func (NoPermissions) Nodes(model.PlayerID) []string   { return nil }

type Config struct {
	Areas   *pvparea.Index
	Claims  *claims.Store
	Modes   *modes.Store
	Invites *invites.Store
	Noob    *noob.Store
	Revoked *invites.Revoked
	Perms   Permissions
	Doors   rules.DoorPolicy
	Now     func() time.Time
	// OnRevoke runs on the calling goroutine after an actor's invitations
	// were revoked.
	OnRevoke func(actor model.PlayerID, removed []model.Invitation)
}

// Resolver is confined to the engine loop, like the stores it reads.
type Resolver struct {
	cfg Config
}

func New(cfg Config) *Resolver {
	if cfg.Perms == nil {
		cfg.Perms = NoPermissions{}
	}
	if cfg.Revoked == nil {
		cfg.Revoked = invites.NewRevoked()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Resolver{cfg: cfg}
}

// Facts snapshots everything the rules need about actor at loc.
func (r *Resolver) Facts(actor model.PlayerID, loc model.Location) rules.Facts {
	f := rules.Facts{
		Bypass:    r.cfg.Perms.Has(actor, NodeBypass),
		InPvpArea: r.cfg.Areas.IsInArea(loc),
		ActorMode: r.cfg.Modes.ModeOf(actor),
	}
	owner, ok := r.cfg.Claims.OwnerOf(loc.Chunk())
	if !ok {
		return f
	}
	f.Claimed = true
	f.Owner = owner == actor
	if !f.Owner {
		f.Invitation, f.Invited = r.cfg.Invites.PermissionsFor(owner, actor)
	}
	return f
}

// CanBuild decides block place/break and container access. A denial that
// carries a revocation drops every invitation actor holds before returning.
func (r *Resolver) CanBuild(actor model.PlayerID, loc model.Location, a rules.Action) rules.Verdict {
	v := rules.Build(r.Facts(actor, loc), a)
	if v.Revoke {
		r.Revoke(actor)
	}
	return v
}

func (r *Resolver) CanUseDoor(actor model.PlayerID, loc model.Location) rules.Verdict {
	v := rules.Door(r.Facts(actor, loc), r.cfg.Doors)
	if v.Revoke {
		r.Revoke(actor)
	}
	return v
}

func (r *Resolver) CanAttack(attacker, victim model.PlayerID, loc model.Location) rules.Verdict {
	now := r.cfg.Now()
	return rules.Attack(r.combatant(attacker, now), r.combatant(victim, now), r.cfg.Areas.IsInArea(loc))
}

func (r *Resolver) ExplosionAllowed(loc model.Location) bool {
	_, claimed := r.cfg.Claims.OwnerOf(loc.Chunk())
	return rules.Explosion(rules.Facts{Claimed: claimed, InPvpArea: r.cfg.Areas.IsInArea(loc)})
}

// Revoke drops every invitation held by actor and marks them revoked.
func (r *Resolver) Revoke(actor model.PlayerID) []model.Invitation {
	removed := r.cfg.Invites.RemoveAllTo(actor)
	r.cfg.Revoked.Mark(actor)
	if r.cfg.OnRevoke != nil && len(removed) > 0 {
		r.cfg.OnRevoke(actor, removed)
	}
	return removed
}

func (r *Resolver) Revoked() *invites.Revoked { return r.cfg.Revoked }

func (r *Resolver) Permissions() Permissions { return r.cfg.Perms }

func (r *Resolver) combatant(id model.PlayerID, now time.Time) rules.Combatant {
	return rules.Combatant{Mode: r.cfg.Modes.ModeOf(id), Noob: r.cfg.Noob.IsNoob(id, now)}
}
