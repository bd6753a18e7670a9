package service

import (
	"context"
	"fmt"
	"time"

	"peaceclaims.dev/internal/model"
	"peaceclaims.dev/internal/modes"
)

// ModeChange describes an applied switch and what it cost.
type ModeChange struct {
	From, To        model.Mode
	ClaimsReleased  []model.Claim
	InvitesRemoved  int
	RevocationClear bool
}

// ChooseMode sets the first mode of a player who has none yet.
func (s *Service) ChooseMode(ctx context.Context, id model.PlayerID, mode model.Mode) (ModeChange, error) {
	if s.modes.ModeOf(id) != model.ModeUnset {
		return ModeChange{}, ErrModeChosen
	}
	prev, err := s.modes.ChangeMode(id, mode, s.now())
	if err != nil {
		return ModeChange{}, err
	}
	return s.applyMode(ctx, id, id, prev, mode), nil
}

// RequestModeChange checks that id may switch to mode and parks the request
// until ConfirmModeChange. Players without a mode switch immediately.
func (s *Service) RequestModeChange(ctx context.Context, id model.PlayerID, mode model.Mode) (modes.Request, *ModeChange, error) {
	cur := s.modes.ModeOf(id)
	if cur == model.ModeUnset {
		ch, err := s.ChooseMode(ctx, id, mode)
		if err != nil {
			return modes.Request{}, nil, err
		}
		return modes.Request{}, &ch, nil
	}
	if mode == model.ModeUnset {
		return modes.Request{}, nil, modes.ErrUnset
	}
	if cur == mode {
		return modes.Request{}, nil, modes.ErrSameMode
	}
	now := s.now()
	if s.modes.CooldownRemaining(id, now) > 0 {
		return modes.Request{}, nil, modes.ErrOnCooldown
	}
	return s.pending.Request(id, mode, now), nil, nil
}

// ConfirmModeChange applies id's pending request.
func (s *Service) ConfirmModeChange(ctx context.Context, id model.PlayerID) (ModeChange, error) {
	now := s.now()
	mode, ok := s.pending.Take(id, now)
	if !ok {
		return ModeChange{}, ErrNoPending
	}
	prev, err := s.modes.ChangeMode(id, mode, now)
	if err != nil {
		return ModeChange{}, err
	}
	return s.applyMode(ctx, id, id, prev, mode), nil
}

func (s *Service) CancelModeChange(id model.PlayerID) bool { return s.pending.Cancel(id) }

func (s *Service) ModeRecord(id model.PlayerID) (model.ModeRecord, bool) { return s.modes.Record(id) }

func (s *Service) CooldownRemaining(id model.PlayerID) time.Duration {
	return s.modes.CooldownRemaining(id, s.now())
}

// ForceMode sets target's mode without cooldown or confirmation.
func (s *Service) ForceMode(ctx context.Context, actor, target model.PlayerID, mode model.Mode) (ModeChange, error) {
	prev := s.modes.ModeOf(target)
	if prev == mode {
		return ModeChange{}, modes.ErrSameMode
	}
	if _, err := s.modes.SetMode(target, mode, s.now()); err != nil {
		return ModeChange{}, err
	}
	s.pending.Cancel(target)
	return s.applyMode(ctx, actor, target, prev, mode), nil
}

// applyMode runs the cascade of a switch that has already been stored.
// Leaving peaceful releases all land and every invitation by or to the
// player; entering peaceful clears the revoked flag; entering normal starts
// the playtime clock.
func (s *Service) applyMode(ctx context.Context, actor, id model.PlayerID, from, to model.Mode) ModeChange {
	ch := ModeChange{From: from, To: to}
	if from == model.ModePeaceful && to == model.ModeNormal {
		ch.ClaimsReleased = s.claims.DeleteAllOf(id)
		ch.InvitesRemoved = len(s.invites.RemoveAllBy(id)) + len(s.invites.RemoveAllTo(id))
	}
	if to == model.ModePeaceful {
		ch.RevocationClear = s.res.Revoked().Clear(id)
	}
	if to == model.ModeNormal {
		rctx, cancel := s.readCtx(ctx)
		if err := s.rep.StartSession(rctx, id, s.now()); err != nil {
			s.logf("start playtime %s: %v", id, err)
		}
		cancel()
	}
	s.audit(actor, "MODE_CHANGE", id.String(), nil,
		fmt.Sprintf("%s -> %s, %d claims released, %d invitations removed", from, to, len(ch.ClaimsReleased), ch.InvitesRemoved))
	return ch
}
