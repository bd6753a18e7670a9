package service

import (
	"errors"

	"peaceclaims.dev/internal/claims"
	"peaceclaims.dev/internal/model"
	"peaceclaims.dev/internal/persistence/store"
	"peaceclaims.dev/internal/resolver"
)

// LimitOf is base + purchased + the best permission bonus of id, or
// unlimited when the host says id holds the unlimited node.
func (s *Service) LimitOf(id model.PlayerID) claims.Limit {
	if s.deps.Perms.Has(id, claims.UnlimitedNode) {
		return claims.Limit{Unlimited: true}
	}
	return claims.LimitFor(s.cfg.BaseClaims, s.claims.Purchased(id), s.cfg.ClaimLimits, s.deps.Perms.Nodes(id))
}

// Claim gives the chunk at loc to id. Only peaceful players may claim, and
// never inside a PVP area. If the backend later rejects the insert as a
// duplicate, the cached claim is rolled back on the loop.
func (s *Service) Claim(id model.PlayerID, loc model.Location) (model.Claim, error) {
	if s.modes.ModeOf(id) != model.ModePeaceful {
		return model.Claim{}, ErrRequiresPeace
	}
	key := loc.Chunk()
	if _, ok := s.areas.IntersectingChunk(key); ok {
		return model.Claim{}, ErrClaimInPvp
	}
	c, p, err := s.claims.Claim(id, key, s.LimitOf(id))
	if err != nil {
		return model.Claim{}, err
	}
	s.watch(p, id, func(err error) {
		if !errors.Is(err, store.ErrDuplicateKey) {
			s.notify(id, "persist_failed")
			return
		}
		if s.claims.Forget(c) {
			s.notify(id, "already_claimed", key.String())
			s.audit(id, "CLAIM_ROLLBACK", id.String(), &key, "duplicate key")
		}
	})
	s.audit(id, "CLAIM", id.String(), &key, "")
	return c, nil
}

// Unclaim releases the chunk at loc. Holders of the admin unclaim node may
// release anyone's chunk.
func (s *Service) Unclaim(actor model.PlayerID, loc model.Location) (model.Claim, error) {
	key := loc.Chunk()
	c, err := s.claims.Unclaim(actor, key, s.deps.Perms.Has(actor, resolver.NodeUnclaim))
	if err != nil {
		return model.Claim{}, err
	}
	s.audit(actor, "UNCLAIM", c.Owner.String(), &key, "")
	return c, nil
}

func (s *Service) ClaimsOf(id model.PlayerID) []model.Claim { return s.claims.ClaimsOf(id) }

func (s *Service) ClaimCount(id model.PlayerID) int { return s.claims.Count(id) }

type ClaimInfo struct {
	Key     model.ChunkKey `json:"key"`
	Claimed bool           `json:"claimed"`
	Claim   model.Claim    `json:"claim,omitempty"`
	PvpArea string         `json:"pvp_area,omitempty"`
	// Region is the name of the external region oracle when it protects the
	// chunk. Diagnostic only.
	Region string `json:"region,omitempty"`
}

func (s *Service) ClaimInfo(key model.ChunkKey) ClaimInfo {
	info := ClaimInfo{Key: key}
	info.Claim, info.Claimed = s.claims.Get(key)
	if a, ok := s.areas.IntersectingChunk(key); ok {
		info.PvpArea = a.Name
	}
	if s.deps.Region.IsProtected(key) {
		info.Region = s.deps.Region.Name()
	}
	return info
}

// Show lists claims within the configured radius of loc's chunk.
func (s *Service) Show(loc model.Location) []model.Claim {
	return s.claims.Around(loc.Chunk(), s.cfg.ShowRadius)
}
