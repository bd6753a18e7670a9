package service

import (
	"peaceclaims.dev/internal/invites"
	"peaceclaims.dev/internal/model"
)

// authorize checks that actor may manage owner's invitations.
func (s *Service) authorize(actor, owner model.PlayerID) error {
	if actor == owner {
		return nil
	}
	inv, ok := s.invites.PermissionsFor(owner, actor)
	if !ok || !inv.CanManageInvitations {
		return ErrNoManage
	}
	return nil
}

// Invite grants invitee level on all of owner's land. actor is owner or one
// of owner's managers; both sides must be peaceful.
func (s *Service) Invite(actor, owner, invitee model.PlayerID, level model.Level) (model.Invitation, error) {
	if err := s.authorize(actor, owner); err != nil {
		return model.Invitation{}, err
	}
	if s.modes.ModeOf(actor) != model.ModePeaceful || s.modes.ModeOf(owner) != model.ModePeaceful {
		return model.Invitation{}, ErrInviterPeace
	}
	if s.modes.ModeOf(invitee) != model.ModePeaceful {
		return model.Invitation{}, ErrInviteePeace
	}
	if level == model.LevelNone {
		level = model.LevelBuild
	}
	inv, err := s.invites.Invite(owner, invitee, actor, level, s.now())
	if err != nil {
		return model.Invitation{}, err
	}
	s.notify(invitee, "invited_notice", owner.String())
	s.audit(actor, "INVITE", invitee.String(), nil, "owner "+owner.String()+" level "+level.String())
	return inv, nil
}

func (s *Service) Uninvite(actor, owner, invitee model.PlayerID) (model.Invitation, error) {
	if err := s.authorize(actor, owner); err != nil {
		return model.Invitation{}, err
	}
	inv, err := s.invites.Uninvite(owner, invitee)
	if err != nil {
		return model.Invitation{}, err
	}
	s.audit(actor, "UNINVITE", invitee.String(), nil, "owner "+owner.String())
	return inv, nil
}

// UpdateInvitation sets the three flags directly.
func (s *Service) UpdateInvitation(actor, owner, invitee model.PlayerID, build, containers, manage bool) (model.Invitation, error) {
	if err := s.authorize(actor, owner); err != nil {
		return model.Invitation{}, err
	}
	inv, err := s.invites.UpdatePermissions(owner, invitee, build, containers, manage)
	if err != nil {
		return model.Invitation{}, err
	}
	s.audit(actor, "INVITE_UPDATE", invitee.String(), nil, "owner "+owner.String()+" level "+inv.Level().String())
	return inv, nil
}

// CycleInvitation moves invitee to the next level (none, build,
// build+containers, full, none, ...).
func (s *Service) CycleInvitation(actor, owner, invitee model.PlayerID) (model.Invitation, error) {
	if err := s.authorize(actor, owner); err != nil {
		return model.Invitation{}, err
	}
	inv, ok := s.invites.PermissionsFor(owner, invitee)
	if !ok {
		return model.Invitation{}, invites.ErrNotInvited
	}
	next := inv.WithLevel(inv.Level().Next())
	return s.UpdateInvitation(actor, owner, invitee, next.CanBuild, next.CanAccessContainers, next.CanManageInvitations)
}

// Invitations returns what id has issued and what id holds.
func (s *Service) Invitations(id model.PlayerID) (by, to []model.Invitation) {
	return s.invites.InvitationsBy(id), s.invites.InvitationsTo(id)
}
