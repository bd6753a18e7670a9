// Package modes tracks each player's peaceful/normal choice and the cooldown
// between changes.
package modes

import (
	"context"
	"time"

	"peaceclaims.dev/internal/model"
	"peaceclaims.dev/internal/persistence/cache"
	"peaceclaims.dev/internal/persistence/store"
	"peaceclaims.dev/internal/protocol"
)

var (
	ErrSameMode   = protocol.New(protocol.ErrConflict, "same_mode")
	ErrOnCooldown = protocol.New(protocol.ErrCooldown, "mode_cooldown")
	ErrUnset      = protocol.New(protocol.ErrBadRequest, "mode_unset")
)

// Store is confined to the engine loop.
type Store struct {
	records  *cache.WriteThrough[model.PlayerID, model.ModeRecord]
	cooldown time.Duration
}

func NewStore(w *store.Writer, cooldown time.Duration) *Store {
	return &Store{
		records:  cache.New[model.PlayerID, model.ModeRecord](w),
		cooldown: cooldown,
	}
}

func (s *Store) Load(rs []model.ModeRecord) {
	for _, r := range rs {
		s.records.Warm(r.PlayerID, r)
	}
}

// SetCooldown applies a reloaded cooldown; existing timestamps are kept.
func (s *Store) SetCooldown(d time.Duration) { s.cooldown = d }

func (s *Store) ModeOf(id model.PlayerID) model.Mode {
	r, _ := s.records.Get(id)
	return r.Mode
}

func (s *Store) Record(id model.PlayerID) (model.ModeRecord, bool) {
	return s.records.Get(id)
}

// SetMode stores mode without any cooldown check.
func (s *Store) SetMode(id model.PlayerID, mode model.Mode, now time.Time) (model.ModeRecord, error) {
	if mode == model.ModeUnset {
		return model.ModeRecord{}, ErrUnset
	}
	r := model.ModeRecord{PlayerID: id, Mode: mode, LastModeChangeAt: now.UTC()}
	s.records.Put(id, r, store.Op{Name: "save mode " + id.String(), Run: func(ctx context.Context, b store.Backend) error {
		return b.SaveMode(ctx, r)
	}})
	return r, nil
}

// ChangeMode switches id to mode and returns the previous mode. The cooldown
// does not apply to the first choice out of ModeUnset.
func (s *Store) ChangeMode(id model.PlayerID, mode model.Mode, now time.Time) (model.Mode, error) {
	if mode == model.ModeUnset {
		return model.ModeUnset, ErrUnset
	}
	prev := s.ModeOf(id)
	if prev == mode {
		return prev, ErrSameMode
	}
	if prev != model.ModeUnset && s.CooldownRemaining(id, now) > 0 {
		return prev, ErrOnCooldown
	}
	if _, err := s.SetMode(id, mode, now); err != nil {
		return prev, err
	}
	return prev, nil
}

// CooldownRemaining is zero when id may change mode at now.
func (s *Store) CooldownRemaining(id model.PlayerID, now time.Time) time.Duration {
	r, ok := s.records.Get(id)
	if !ok || r.Mode == model.ModeUnset || r.LastModeChangeAt.IsZero() {
		return 0
	}
	left := r.LastModeChangeAt.Add(s.cooldown).Sub(now)
	if left < 0 {
		return 0
	}
	return left
}

// Counts returns the number of players per mode.
func (s *Store) Counts() map[model.Mode]int {
	out := map[model.Mode]int{}
	s.records.Range(func(_ model.PlayerID, r model.ModeRecord) bool {
		out[r.Mode]++
		return true
	})
	return out
}
