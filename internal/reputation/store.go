// Package reputation keeps the bounded PVP conduct score of each player and
// the playtime that slowly restores it.
package reputation

import (
	"context"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"peaceclaims.dev/internal/model"
	"peaceclaims.dev/internal/persistence/store"
	"peaceclaims.dev/internal/protocol"
)

var ErrRange = protocol.New(protocol.ErrBadRequest, "reputation_range")

const DefaultCacheSize = 4096

// Store is a bounded read-through cache over the backend. Misses are read
// through the persistence writer so they observe every earlier write, and
// each read is bounded by the configured timeout.
//
// Store is confined to the engine loop.
type Store struct {
	cache   *lru.Cache[model.PlayerID, model.Reputation]
	writer  *store.Writer
	timeout time.Duration
}

func NewStore(w *store.Writer, size int, timeout time.Duration) (*Store, error) {
	if size <= 0 {
		size = DefaultCacheSize
	}
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	c, err := lru.New[model.PlayerID, model.Reputation](size)
	if err != nil {
		return nil, err
	}
	return &Store{cache: c, writer: w, timeout: timeout}, nil
}

func (s *Store) SetTimeout(d time.Duration) {
	if d > 0 {
		s.timeout = d
	}
}

// ReputationOf returns id's record, creating it at zero on first access.
func (s *Store) ReputationOf(ctx context.Context, id model.PlayerID) (model.Reputation, error) {
	if r, ok := s.cache.Get(id); ok {
		return r, nil
	}
	var (
		loaded model.Reputation
		found  bool
	)
	p := s.writer.Submit(store.Op{Name: "load reputation " + id.String(), Run: func(ctx context.Context, b store.Backend) error {
		var err error
		loaded, found, err = b.LoadReputation(ctx, id)
		return err
	}})
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	if err := p.Wait(ctx); err != nil {
		return model.Reputation{}, err
	}
	if !found {
		loaded = model.Reputation{PlayerID: id}
		s.save(loaded)
		return loaded, nil
	}
	s.cache.Add(id, loaded)
	return loaded, nil
}

// Add applies delta clamped to the reputation bounds and returns the part of
// delta that was actually applied.
func (s *Store) Add(ctx context.Context, id model.PlayerID, delta int) (int, model.Reputation, error) {
	r, err := s.ReputationOf(ctx, id)
	if err != nil {
		return 0, r, err
	}
	next := model.ClampReputation(r.Value + delta)
	actual := next - r.Value
	if actual == 0 {
		return 0, r, nil
	}
	r.Value = next
	s.save(r)
	return actual, r, nil
}

// Set overwrites the value; out-of-range values are rejected.
func (s *Store) Set(ctx context.Context, id model.PlayerID, value int) (model.Reputation, error) {
	if value < model.MinReputation || value > model.MaxReputation {
		return model.Reputation{}, ErrRange
	}
	r, err := s.ReputationOf(ctx, id)
	if err != nil {
		return r, err
	}
	r.Value = value
	s.save(r)
	return r, nil
}

// AddPlaytime credits whole hours of playtime, one reputation point per
// hour, but never more hours than have passed on the playtime clock since
// the last update and nothing until a full hour has passed. The clock
// advances only by the hours credited. A player with no clock yet has it
// started at now.
func (s *Store) AddPlaytime(ctx context.Context, id model.PlayerID, hours float64, now time.Time) (int, error) {
	r, err := s.ReputationOf(ctx, id)
	if err != nil {
		return 0, err
	}
	if r.LastPlaytimeUpdateAt.IsZero() {
		r.LastPlaytimeUpdateAt = now.UTC()
		s.save(r)
		return 0, nil
	}
	elapsed := int(now.Sub(r.LastPlaytimeUpdateAt) / time.Hour)
	whole := min(int(hours), elapsed)
	if whole < 1 {
		return 0, nil
	}
	return s.credit(r, whole, r.LastPlaytimeUpdateAt.Add(time.Duration(whole)*time.Hour)), nil
}

// Accrue credits the whole hours elapsed since the last update. The
// remainder is carried by advancing the timestamp in whole hours only.
func (s *Store) Accrue(ctx context.Context, id model.PlayerID, now time.Time) (int, error) {
	r, err := s.ReputationOf(ctx, id)
	if err != nil {
		return 0, err
	}
	if r.LastPlaytimeUpdateAt.IsZero() {
		return s.AddPlaytime(ctx, id, 0, now)
	}
	return s.AddPlaytime(ctx, id, now.Sub(r.LastPlaytimeUpdateAt).Hours(), now)
}

// StartSession restarts the playtime clock; offline time never counts.
func (s *Store) StartSession(ctx context.Context, id model.PlayerID, now time.Time) error {
	r, err := s.ReputationOf(ctx, id)
	if err != nil {
		return err
	}
	r.LastPlaytimeUpdateAt = now.UTC()
	s.save(r)
	return nil
}

// Cached reports the number of records held in memory.
func (s *Store) Cached() int { return s.cache.Len() }

func (s *Store) credit(r model.Reputation, hours int, last time.Time) int {
	before := r.Value
	r.Value = model.ClampReputation(r.Value + hours)
	r.TotalPlaytimeHours += float64(hours)
	r.LastPlaytimeUpdateAt = last
	s.save(r)
	return r.Value - before
}

func (s *Store) save(r model.Reputation) {
	s.cache.Add(r.PlayerID, r)
	s.writer.Submit(store.Op{Name: "save reputation " + r.PlayerID.String(), Run: func(ctx context.Context, b store.Backend) error {
		return b.SaveReputation(ctx, r)
	}})
}
