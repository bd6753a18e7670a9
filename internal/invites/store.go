// Package invites stores owner-wide invitations. One record per
// (owner, invitee) covers every claim the owner holds, now or later.
package invites

import (
	"bytes"
	"context"
	"sort"
	"time"

	"peaceclaims.dev/internal/model"
	"peaceclaims.dev/internal/persistence/cache"
	"peaceclaims.dev/internal/persistence/store"
	"peaceclaims.dev/internal/protocol"
)

var (
	ErrNotInvited = protocol.New(protocol.ErrNotFound, "not_invited")
	ErrSelf       = protocol.New(protocol.ErrBadRequest, "invite_self")
)

type key struct {
	Owner, Invitee model.PlayerID
}

// Store is confined to the engine loop.
type Store struct {
	invs   *cache.WriteThrough[key, model.Invitation]
	writer *store.Writer
}

func NewStore(w *store.Writer) *Store {
	return &Store{invs: cache.New[key, model.Invitation](w), writer: w}
}

func (s *Store) Load(invs []model.Invitation) {
	for _, inv := range invs {
		s.invs.Warm(key{inv.Owner, inv.Invitee}, inv)
	}
}

// Invite creates or replaces the invitation of invitee on owner's land.
func (s *Store) Invite(owner, invitee, by model.PlayerID, level model.Level, now time.Time) (model.Invitation, error) {
	if owner == invitee {
		return model.Invitation{}, ErrSelf
	}
	inv := model.Invitation{Owner: owner, Invitee: invitee, InvitedBy: by, InvitedAt: now.UTC()}.WithLevel(level)
	s.save(inv)
	return inv, nil
}

func (s *Store) Uninvite(owner, invitee model.PlayerID) (model.Invitation, error) {
	k := key{owner, invitee}
	inv, ok := s.invs.Get(k)
	if !ok {
		return model.Invitation{}, ErrNotInvited
	}
	s.invs.Delete(k, store.Op{Name: "delete invitation " + owner.String() + "/" + invitee.String(), Run: func(ctx context.Context, b store.Backend) error {
		return b.DeleteInvitation(ctx, owner, invitee)
	}})
	return inv, nil
}

func (s *Store) PermissionsFor(owner, invitee model.PlayerID) (model.Invitation, bool) {
	return s.invs.Get(key{owner, invitee})
}

// UpdatePermissions sets the three flags directly; any combination is valid.
func (s *Store) UpdatePermissions(owner, invitee model.PlayerID, build, containers, manage bool) (model.Invitation, error) {
	inv, ok := s.invs.Get(key{owner, invitee})
	if !ok {
		return model.Invitation{}, ErrNotInvited
	}
	inv.CanBuild = build
	inv.CanAccessContainers = containers
	inv.CanManageInvitations = manage
	s.save(inv)
	return inv, nil
}

// InvitationsBy lists the invitations owner has issued.
func (s *Store) InvitationsBy(owner model.PlayerID) []model.Invitation {
	return s.collect(func(k key) bool { return k.Owner == owner })
}

// InvitationsTo lists the invitations invitee holds.
func (s *Store) InvitationsTo(invitee model.PlayerID) []model.Invitation {
	return s.collect(func(k key) bool { return k.Invitee == invitee })
}

// RemoveAllTo deletes every invitation held by invitee.
func (s *Store) RemoveAllTo(invitee model.PlayerID) []model.Invitation {
	removed, _ := s.invs.DeleteFunc(func(k key, _ model.Invitation) bool { return k.Invitee == invitee },
		store.Op{Name: "delete invitations to " + invitee.String(), Run: func(ctx context.Context, b store.Backend) error {
			return b.DeleteInvitationsTo(ctx, invitee)
		}})
	sortInvitations(removed)
	return removed
}

// RemoveAllBy deletes every invitation issued by owner.
func (s *Store) RemoveAllBy(owner model.PlayerID) []model.Invitation {
	removed, _ := s.invs.DeleteFunc(func(k key, _ model.Invitation) bool { return k.Owner == owner },
		store.Op{Name: "delete invitations by " + owner.String(), Run: func(ctx context.Context, b store.Backend) error {
			return b.DeleteInvitationsBy(ctx, owner)
		}})
	sortInvitations(removed)
	return removed
}

func (s *Store) Len() int { return s.invs.Len() }

func (s *Store) save(inv model.Invitation) {
	s.invs.Put(key{inv.Owner, inv.Invitee}, inv, store.Op{Name: "save invitation " + inv.Owner.String() + "/" + inv.Invitee.String(), Run: func(ctx context.Context, b store.Backend) error {
		return b.SaveInvitation(ctx, inv)
	}})
}

func (s *Store) collect(match func(key) bool) []model.Invitation {
	var out []model.Invitation
	s.invs.Range(func(k key, inv model.Invitation) bool {
		if match(k) {
			out = append(out, inv)
		}
		return true
	})
	sortInvitations(out)
	return out
}

func sortInvitations(invs []model.Invitation) {
	sort.Slice(invs, func(i, j int) bool {
		if c := bytes.Compare(invs[i].Owner[:], invs[j].Owner[:]); c != 0 {
			return c < 0
		}
		return bytes.Compare(invs[i].Invitee[:], invs[j].Invitee[:]) < 0
	})
}
