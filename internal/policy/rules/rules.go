// Package rules holds the pure protection decisions. Callers gather Facts
// from the stores; nothing here reads state.
package rules

import "peaceclaims.dev/internal/model"

type Action int

const (
	ActionBuild Action = iota
	ActionBreak
	ActionContainer
)

func (a Action) String() string {
	switch a {
	case ActionBreak:
		return "break"
	case ActionContainer:
		return "container"
	default:
		return "build"
	}
}

// DoorPolicy decides whether invitations open doors on someone else's claim.
type DoorPolicy int

const (
	// DoorsIgnoreInvitations: invited players cannot use doors even when
	// they may build.
	DoorsIgnoreInvitations DoorPolicy = iota
	DoorsHonorInvitations
)

// Facts is what the stores say about one actor at one location.
type Facts struct {
	Bypass    bool
	InPvpArea bool
	Claimed   bool
	Owner     bool
	ActorMode model.Mode
	// Invitation is the grant from the claim owner to the actor, if Invited.
	Invited    bool
	Invitation model.Invitation
}

// Verdict is a decision plus the step that produced it.
type Verdict struct {
	Allowed bool
	// Revoke asks the caller to drop every invitation the actor holds.
	Revoke bool
	Reason string
}

func allow(reason string) Verdict { return Verdict{Allowed: true, Reason: reason} }
func deny(reason string) Verdict  { return Verdict{Reason: reason} }

// Build decides block place/break and container access. Steps run in order;
// the first that applies wins.
func Build(f Facts, a Action) Verdict {
	switch {
	case f.Bypass:
		return allow("bypass")
	case f.InPvpArea:
		return deny("pvp_area")
	case !f.Claimed:
		return allow("wild")
	case f.Owner:
		return allow("owner")
	}
	if f.Invited && f.Invitation.Any() {
		if f.ActorMode != model.ModePeaceful {
			return Verdict{Revoke: true, Reason: "invitation_revoked"}
		}
		if grants(f.Invitation, a) {
			return allow("invited")
		}
	}
	return raid(f)
}

// Door is Build without the invitation step unless policy honours it.
func Door(f Facts, policy DoorPolicy) Verdict {
	if policy == DoorsHonorInvitations {
		return Build(f, ActionBuild)
	}
	switch {
	case f.Bypass:
		return allow("bypass")
	case f.InPvpArea:
		return deny("pvp_area")
	case !f.Claimed:
		return allow("wild")
	case f.Owner:
		return allow("owner")
	}
	return raid(f)
}

// raid: only normal-mode players may act on land they have no rights on.
func raid(f Facts) Verdict {
	switch f.ActorMode {
	case model.ModeNormal:
		return allow("raid")
	case model.ModeUnset:
		return deny("mode_unset")
	}
	return deny("protected")
}

func grants(inv model.Invitation, a Action) bool {
	if a == ActionContainer {
		return inv.CanAccessContainers
	}
	return inv.CanBuild
}

// Explosion decides whether an explosion may damage blocks at a location.
func Explosion(f Facts) bool {
	return f.InPvpArea || !f.Claimed
}

// Combatant is one side of an attack.
type Combatant struct {
	Mode model.Mode
	Noob bool
}

// Attack decides player-versus-player damage. Anything goes inside a PVP
// area; outside, both sides must be normal-mode and out of noob protection.
// A player who has not chosen a mode yet is protected like a peaceful one.
func Attack(attacker, victim Combatant, inPvpArea bool) Verdict {
	if inPvpArea {
		return allow("pvp_area")
	}
	if attacker.Mode == model.ModePeaceful || victim.Mode == model.ModePeaceful {
		return deny("peaceful")
	}
	if attacker.Mode == model.ModeUnset || victim.Mode == model.ModeUnset {
		return deny("mode_unset")
	}
	if attacker.Noob || victim.Noob {
		return deny("noob")
	}
	return allow("normal")
}

// KillPenalty is the reputation change for a kill.
func KillPenalty(killer, victim model.Mode, inPvpArea bool) int {
	if inPvpArea || killer != model.ModeNormal || victim != model.ModeNormal {
		return 0
	}
	return -1
}
