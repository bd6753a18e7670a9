// Package noob tracks the PVP grace period of new players.
package noob

import (
	"context"
	"time"

	"peaceclaims.dev/internal/model"
	"peaceclaims.dev/internal/persistence/cache"
	"peaceclaims.dev/internal/persistence/store"
)

// Store is confined to the engine loop.
type Store struct {
	status *cache.WriteThrough[model.PlayerID, model.NoobStatus]
	window time.Duration
}

func NewStore(w *store.Writer, window time.Duration) *Store {
	return &Store{status: cache.New[model.PlayerID, model.NoobStatus](w), window: window}
}

func (s *Store) Load(sts []model.NoobStatus) {
	for _, st := range sts {
		s.status.Warm(st.PlayerID, st)
	}
}

func (s *Store) SetWindow(d time.Duration) { s.window = d }

// FirstJoin opens the automatic window the first time id is seen and reports
// whether it did.
func (s *Store) FirstJoin(id model.PlayerID, now time.Time) bool {
	if _, ok := s.status.Get(id); ok {
		return false
	}
	s.save(model.NoobStatus{PlayerID: id, FirstJoinAt: now.UTC(), GrantedUntil: now.UTC().Add(s.window)})
	return true
}

// Grant opens a fresh window starting at now.
func (s *Store) Grant(id model.PlayerID, now time.Time) model.NoobStatus {
	st, ok := s.status.Get(id)
	if !ok {
		st = model.NoobStatus{PlayerID: id, FirstJoinAt: now.UTC()}
	}
	st.GrantedUntil = now.UTC().Add(s.window)
	s.save(st)
	return st
}

// Clear ends any active window.
func (s *Store) Clear(id model.PlayerID) bool {
	st, ok := s.status.Get(id)
	if !ok || st.GrantedUntil.IsZero() {
		return false
	}
	st.GrantedUntil = time.Time{}
	s.save(st)
	return true
}

func (s *Store) IsNoob(id model.PlayerID, now time.Time) bool {
	return s.Remaining(id, now) > 0
}

func (s *Store) Remaining(id model.PlayerID, now time.Time) time.Duration {
	st, ok := s.status.Get(id)
	if !ok {
		return 0
	}
	left := st.GrantedUntil.Sub(now)
	if left < 0 {
		return 0
	}
	return left
}

func (s *Store) save(st model.NoobStatus) {
	s.status.Put(st.PlayerID, st, store.Op{Name: "save noob " + st.PlayerID.String(), Run: func(ctx context.Context, b store.Backend) error {
		return b.SaveNoob(ctx, st)
	}})
}
