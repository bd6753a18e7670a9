package service

import (
	"context"
	"fmt"
	"time"

	"peaceclaims.dev/internal/model"
	"peaceclaims.dev/internal/policy/rules"
)

type JoinInfo struct {
	FirstJoin bool
	Mode      model.Mode
	// NoobUntil is zero when the player has no PVP protection.
	NoobUntil time.Time
}

// Join marks id online, opens the noob window on a first join and restarts
// the playtime clock.
func (s *Service) Join(ctx context.Context, id model.PlayerID) (JoinInfo, error) {
	now := s.now()
	s.online[id] = now
	info := JoinInfo{FirstJoin: s.noob.FirstJoin(id, now), Mode: s.modes.ModeOf(id)}
	if left := s.noob.Remaining(id, now); left > 0 {
		info.NoobUntil = now.Add(left)
	}
	if info.Mode == model.ModeUnset {
		s.notify(id, "mode_choose")
	}
	if info.Mode != model.ModePeaceful && s.res.Revoked().Has(id) {
		s.notify(id, "invitations_revoked")
	}
	rctx, cancel := s.readCtx(ctx)
	defer cancel()
	if err := s.rep.StartSession(rctx, id, now); err != nil {
		return info, err
	}
	return info, nil
}

// Quit credits the session's playtime and forgets id's pending mode change.
func (s *Service) Quit(ctx context.Context, id model.PlayerID) error {
	delete(s.online, id)
	s.pending.Cancel(id)
	if s.modes.ModeOf(id) != model.ModeNormal {
		return nil
	}
	rctx, cancel := s.readCtx(ctx)
	defer cancel()
	gained, err := s.rep.Accrue(rctx, id, s.now())
	if err != nil {
		return err
	}
	if gained > 0 {
		s.audit(id, "PLAYTIME", id.String(), nil, fmt.Sprintf("+%d", gained))
	}
	return nil
}

func (s *Service) IsOnline(id model.PlayerID) bool {
	_, ok := s.online[id]
	return ok
}

type SweepReport struct {
	Checked  int `json:"checked"`
	Credited int `json:"credited"`
	Expired  int `json:"expired"`
	Failed   int `json:"failed"`
}

// Sweep credits playtime to every online normal-mode player whose last
// update is at least an hour old, and drops expired mode requests.
func (s *Service) Sweep(ctx context.Context, now time.Time) SweepReport {
	var r SweepReport
	r.Expired = s.pending.Expire(now)
	for _, id := range sortedIDs(s.online) {
		if s.modes.ModeOf(id) != model.ModeNormal {
			continue
		}
		r.Checked++
		rctx, cancel := s.readCtx(ctx)
		gained, err := s.rep.Accrue(rctx, id, now)
		cancel()
		if err != nil {
			r.Failed++
			s.logf("sweep %s: %v", id, err)
			continue
		}
		if gained > 0 {
			r.Credited++
			s.notify(id, "reputation_gained", gained)
			s.audit(model.PlayerID{}, "PLAYTIME", id.String(), nil, fmt.Sprintf("+%d", gained))
		}
	}
	return r
}

// OnPlayerKill applies the kill penalty and returns the change applied to
// the killer's reputation.
func (s *Service) OnPlayerKill(ctx context.Context, killer, victim model.PlayerID, loc model.Location) (int, error) {
	penalty := rules.KillPenalty(s.modes.ModeOf(killer), s.modes.ModeOf(victim), s.areas.IsInArea(loc))
	if penalty == 0 {
		return 0, nil
	}
	rctx, cancel := s.readCtx(ctx)
	defer cancel()
	actual, rep, err := s.rep.Add(rctx, killer, penalty)
	if err != nil {
		return 0, err
	}
	if actual != 0 {
		s.notify(killer, "reputation_penalty", victim.String())
		key := loc.Chunk()
		s.audit(killer, "KILL_PENALTY", victim.String(), &key, fmt.Sprintf("%d -> %d", rep.Value-actual, rep.Value))
	}
	return actual, nil
}
