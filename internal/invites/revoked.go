package invites

import (
	"sync"

	"peaceclaims.dev/internal/model"
)

// Revoked remembers players whose invitations were revoked because they left
// peaceful mode. Safe for concurrent use.
type Revoked struct {
	mu  sync.RWMutex
	ids map[model.PlayerID]struct{}
}

func NewRevoked() *Revoked {
	return &Revoked{ids: map[model.PlayerID]struct{}{}}
}

// Mark returns true if id was not already marked.
func (r *Revoked) Mark(id model.PlayerID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.ids[id]; ok {
		return false
	}
	r.ids[id] = struct{}{}
	return true
}

func (r *Revoked) Has(id model.PlayerID) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.ids[id]
	return ok
}

func (r *Revoked) Clear(id model.PlayerID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.ids[id]
	delete(r.ids, id)
	return ok
}

func (r *Revoked) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.ids)
}
