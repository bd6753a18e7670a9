package service

import (
	"context"
	"fmt"
	"time"

	"peaceclaims.dev/internal/economy"
	"peaceclaims.dev/internal/model"
	"peaceclaims.dev/internal/persistence/store"
	"peaceclaims.dev/internal/policy/rules"
)

func (s *Service) CanBuild(actor model.PlayerID, loc model.Location, a rules.Action) bool {
	return s.res.CanBuild(actor, loc, a).Allowed
}

func (s *Service) CanUseDoor(actor model.PlayerID, loc model.Location) bool {
	return s.res.CanUseDoor(actor, loc).Allowed
}

func (s *Service) CanAttack(attacker, victim model.PlayerID, loc model.Location) bool {
	return s.res.CanAttack(attacker, victim, loc).Allowed
}

func (s *Service) ExplosionAllowed(loc model.Location) bool {
	return s.res.ExplosionAllowed(loc)
}

func (s *Service) CreatePvpArea(actor model.PlayerID, name string, a, b model.Location) (model.PvpArea, error) {
	area, err := s.areas.Create(name, a, b)
	if err != nil {
		return model.PvpArea{}, err
	}
	s.audit(actor, "PVPAREA_CREATE", name, nil,
		fmt.Sprintf("%s (%d,%d,%d)-(%d,%d,%d)", area.World, area.MinX, area.MinY, area.MinZ, area.MaxX, area.MaxY, area.MaxZ))
	return area, nil
}

func (s *Service) DeletePvpArea(actor model.PlayerID, name string) error {
	if err := s.areas.Delete(name); err != nil {
		return err
	}
	s.audit(actor, "PVPAREA_DELETE", name, nil, "")
	return nil
}

func (s *Service) PvpAreas() []model.PvpArea { return s.areas.List() }

func (s *Service) Reputation(ctx context.Context, id model.PlayerID) (model.Reputation, error) {
	rctx, cancel := s.readCtx(ctx)
	defer cancel()
	return s.rep.ReputationOf(rctx, id)
}

func (s *Service) SetReputation(ctx context.Context, actor, target model.PlayerID, value int) (model.Reputation, error) {
	rctx, cancel := s.readCtx(ctx)
	defer cancel()
	r, err := s.rep.Set(rctx, target, value)
	if err != nil {
		return r, err
	}
	s.audit(actor, "REPUTATION_SET", target.String(), nil, fmt.Sprint(value))
	return r, nil
}

// AddReputation returns the delta actually applied after clamping.
func (s *Service) AddReputation(ctx context.Context, actor, target model.PlayerID, delta int) (int, model.Reputation, error) {
	rctx, cancel := s.readCtx(ctx)
	defer cancel()
	actual, r, err := s.rep.Add(rctx, target, delta)
	if err != nil {
		return 0, r, err
	}
	s.audit(actor, "REPUTATION_ADD", target.String(), nil, fmt.Sprintf("%+d (requested %+d)", actual, delta))
	return actual, r, nil
}

func (s *Service) GrantNoob(actor, target model.PlayerID) model.NoobStatus {
	st := s.noob.Grant(target, s.now())
	s.audit(actor, "NOOB_GRANT", target.String(), nil, st.GrantedUntil.Format(time.RFC3339))
	return st
}

func (s *Service) ClearNoob(actor, target model.PlayerID) bool {
	ok := s.noob.Clear(target)
	if ok {
		s.audit(actor, "NOOB_CLEAR", target.String(), nil, "")
	}
	return ok
}

func (s *Service) NoobRemaining(id model.PlayerID) time.Duration {
	return s.noob.Remaining(id, s.now())
}

// BuyClaims charges id through the economy and raises their purchased
// count. It returns the new count and the amount charged.
func (s *Service) BuyClaims(ctx context.Context, id model.PlayerID, n int) (int, float64, error) {
	p := economy.Purchaser{Economy: s.deps.Economy, Claims: s.claims, Price: s.cfg.ClaimPrice, Max: s.cfg.MaxPurchasedClaims}
	total, cost, err := p.Buy(ctx, id, n)
	if err != nil {
		return total, cost, err
	}
	s.audit(id, "BUY_CLAIMS", id.String(), nil, fmt.Sprintf("%d for %.2f", n, cost))
	return total, cost, nil
}

func (s *Service) SetPurchased(actor, target model.PlayerID, n int) error {
	if err := s.claims.SetPurchased(target, n); err != nil {
		return err
	}
	s.audit(actor, "SET_PURCHASED", target.String(), nil, fmt.Sprint(n))
	return nil
}

func (s *Service) Purchased(id model.PlayerID) int { return s.claims.Purchased(id) }

// State is a point-in-time summary for operators.
type State struct {
	Claims       int               `json:"claims"`
	Modes        map[string]int    `json:"modes"`
	Invitations  int               `json:"invitations"`
	PvpAreas     int               `json:"pvp_areas"`
	Online       int               `json:"online"`
	Revoked      int               `json:"revoked"`
	PendingModes int               `json:"pending_modes"`
	Reputations  int               `json:"reputations_cached"`
	Persistence  store.WriterStats `json:"persistence"`
	EconomyReady bool              `json:"economy"`
	Region       string            `json:"region"`
	UpdateCheck  bool              `json:"update_check"`
}

func (s *Service) State() State {
	st := State{
		Claims:       s.claims.Total(),
		Modes:        map[string]int{},
		Invitations:  s.invites.Len(),
		PvpAreas:     len(s.areas.List()),
		Online:       len(s.online),
		Revoked:      s.res.Revoked().Len(),
		PendingModes: s.pending.Len(),
		Reputations:  s.rep.Cached(),
		Persistence:  s.deps.Writer.Stats(),
		EconomyReady: s.deps.Economy.Available(),
		Region:       s.deps.Region.Name(),
		UpdateCheck:  s.cfg.UpdateCheck.Enabled,
	}
	for m, n := range s.modes.Counts() {
		st.Modes[m.String()] = n
	}
	return st
}
