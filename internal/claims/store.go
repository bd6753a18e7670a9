package claims

import (
	"context"
	"sort"
	"time"

	"peaceclaims.dev/internal/model"
	"peaceclaims.dev/internal/persistence/cache"
	"peaceclaims.dev/internal/persistence/store"
	"peaceclaims.dev/internal/protocol"
)

var (
	ErrAlreadyClaimed = protocol.New(protocol.ErrConflict, "already_claimed")
	ErrLimitReached   = protocol.New(protocol.ErrLimit, "claim_limit_reached")
	ErrNotOwner       = protocol.New(protocol.ErrNoPermission, "not_owner")
	ErrNotClaimed     = protocol.New(protocol.ErrNotFound, "not_claimed")
	ErrCountRange     = protocol.New(protocol.ErrBadRequest, "claims_range")
)

// MaxPurchased bounds purchased claim counts.
const MaxPurchased = 1000

// Store owns chunk claims and purchased claim counts. It is confined to the
// engine loop. The uniqueness check and the cache write happen in one loop
// step; the durable insert follows asynchronously and is rejected by the
// backend's unique key if another writer got there first.
type Store struct {
	claims    *cache.WriteThrough[model.ChunkKey, model.Claim]
	byOwner   map[model.PlayerID]map[model.ChunkKey]struct{}
	purchased *cache.WriteThrough[model.PlayerID, int]
	writer    *store.Writer
	now       func() time.Time
}

func NewStore(w *store.Writer, now func() time.Time) *Store {
	if now == nil {
		now = time.Now
	}
	return &Store{
		claims:    cache.New[model.ChunkKey, model.Claim](w),
		byOwner:   map[model.PlayerID]map[model.ChunkKey]struct{}{},
		purchased: cache.New[model.PlayerID, int](w),
		writer:    w,
		now:       now,
	}
}

func (s *Store) Load(claims []model.Claim, purchased map[model.PlayerID]int) {
	for _, c := range claims {
		s.claims.Warm(c.Key, c)
		s.index(c)
	}
	for id, n := range purchased {
		s.purchased.Warm(id, n)
	}
}

// Claim records owner on key when the chunk is free and the owner is below
// limit. The returned Pending resolves with store.ErrDuplicateKey if the
// backend rejects the insert.
func (s *Store) Claim(owner model.PlayerID, key model.ChunkKey, limit Limit) (model.Claim, *store.Pending, error) {
	if _, ok := s.claims.Get(key); ok {
		return model.Claim{}, nil, ErrAlreadyClaimed
	}
	if !limit.Allows(s.Count(owner)) {
		return model.Claim{}, nil, ErrLimitReached
	}
	c := model.Claim{Owner: owner, Key: key, ClaimedAt: s.now().UTC()}
	s.index(c)
	p := s.claims.Put(key, c, store.Op{Name: "insert claim " + key.String(), Run: func(ctx context.Context, b store.Backend) error {
		return b.InsertClaim(ctx, c)
	}})
	return c, p, nil
}

// Forget drops c from the cache if it is still the cached claim for its key.
// Used to undo an optimistic claim whose insert was rejected.
func (s *Store) Forget(c model.Claim) bool {
	cur, ok := s.claims.Get(c.Key)
	if !ok || cur != c {
		return false
	}
	s.claims.Evict(c.Key)
	s.unindex(c)
	return true
}

// Unclaim releases key. force skips the ownership check (admin bypass).
func (s *Store) Unclaim(actor model.PlayerID, key model.ChunkKey, force bool) (model.Claim, error) {
	c, ok := s.claims.Get(key)
	if !ok {
		return model.Claim{}, ErrNotClaimed
	}
	if c.Owner != actor && !force {
		return model.Claim{}, ErrNotOwner
	}
	s.unindex(c)
	s.claims.Delete(key, store.Op{Name: "delete claim " + key.String(), Run: func(ctx context.Context, b store.Backend) error {
		return b.DeleteClaim(ctx, key)
	}})
	return c, nil
}

// DeleteAllOf releases every claim of owner and returns them.
func (s *Store) DeleteAllOf(owner model.PlayerID) []model.Claim {
	keys := s.byOwner[owner]
	if len(keys) == 0 {
		// Still clear durable rows the cache may not know about.
		s.writer.Submit(deleteAllOp(owner))
		return nil
	}
	removed, _ := s.claims.DeleteFunc(func(k model.ChunkKey, c model.Claim) bool {
		return c.Owner == owner
	}, deleteAllOp(owner))
	delete(s.byOwner, owner)
	sortClaims(removed)
	return removed
}

func deleteAllOp(owner model.PlayerID) store.Op {
	return store.Op{Name: "delete claims of " + owner.String(), Run: func(ctx context.Context, b store.Backend) error {
		return b.DeleteClaimsOf(ctx, owner)
	}}
}

func (s *Store) OwnerOf(key model.ChunkKey) (model.PlayerID, bool) {
	c, ok := s.claims.Get(key)
	return c.Owner, ok
}

func (s *Store) Get(key model.ChunkKey) (model.Claim, bool) {
	return s.claims.Get(key)
}

func (s *Store) Count(owner model.PlayerID) int { return len(s.byOwner[owner]) }

func (s *Store) Total() int { return s.claims.Len() }

// ClaimsOf returns owner's claims oldest first.
func (s *Store) ClaimsOf(owner model.PlayerID) []model.Claim {
	keys := s.byOwner[owner]
	out := make([]model.Claim, 0, len(keys))
	for k := range keys {
		if c, ok := s.claims.Get(k); ok {
			out = append(out, c)
		}
	}
	sortClaims(out)
	return out
}

// Around returns every claim in the square of chunks within radius of center.
func (s *Store) Around(center model.ChunkKey, radius int) []model.Claim {
	var out []model.Claim
	for dx := -radius; dx <= radius; dx++ {
		for dz := -radius; dz <= radius; dz++ {
			k := model.ChunkKey{World: center.World, X: center.X + dx, Z: center.Z + dz}
			if c, ok := s.claims.Get(k); ok {
				out = append(out, c)
			}
		}
	}
	return out
}

func (s *Store) Purchased(id model.PlayerID) int {
	n, _ := s.purchased.Get(id)
	return n
}

func (s *Store) SetPurchased(id model.PlayerID, n int) error {
	if n < 0 || n > MaxPurchased {
		return ErrCountRange
	}
	s.purchased.Put(id, n, store.Op{Name: "save purchased " + id.String(), Run: func(ctx context.Context, b store.Backend) error {
		return b.SavePurchased(ctx, id, n)
	}})
	return nil
}

// AddPurchased raises id's purchased count by n and returns the new count.
func (s *Store) AddPurchased(id model.PlayerID, n int) (int, error) {
	total := s.Purchased(id) + n
	if err := s.SetPurchased(id, total); err != nil {
		return s.Purchased(id), err
	}
	return total, nil
}

func (s *Store) index(c model.Claim) {
	m := s.byOwner[c.Owner]
	if m == nil {
		m = map[model.ChunkKey]struct{}{}
		s.byOwner[c.Owner] = m
	}
	m[c.Key] = struct{}{}
}

func (s *Store) unindex(c model.Claim) {
	m := s.byOwner[c.Owner]
	delete(m, c.Key)
	if len(m) == 0 {
		delete(s.byOwner, c.Owner)
	}
}

func sortClaims(cs []model.Claim) {
	sort.Slice(cs, func(i, j int) bool {
		if !cs[i].ClaimedAt.Equal(cs[j].ClaimedAt) {
			return cs[i].ClaimedAt.Before(cs[j].ClaimedAt)
		}
		a, b := cs[i].Key, cs[j].Key
		if a.World != b.World {
			return a.World < b.World
		}
		if a.X != b.X {
			return a.X < b.X
		}
		return a.Z < b.Z
	})
}
