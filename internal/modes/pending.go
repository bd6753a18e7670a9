package modes

import (
	"sync"
	"time"

	"peaceclaims.dev/internal/model"
)

// Request is a mode change waiting for confirmation.
type Request struct {
	Mode      model.Mode
	ExpiresAt time.Time
}

// Pending holds unconfirmed mode changes. Safe for concurrent use; entries
// are dropped by async completions as well as by the main loop.
type Pending struct {
	mu     sync.Mutex
	window time.Duration
	reqs   map[model.PlayerID]Request
}

func NewPending(window time.Duration) *Pending {
	return &Pending{window: window, reqs: map[model.PlayerID]Request{}}
}

func (p *Pending) SetWindow(d time.Duration) {
	p.mu.Lock()
	p.window = d
	p.mu.Unlock()
}

// Request replaces any earlier request by id.
func (p *Pending) Request(id model.PlayerID, mode model.Mode, now time.Time) Request {
	p.mu.Lock()
	defer p.mu.Unlock()
	r := Request{Mode: mode, ExpiresAt: now.Add(p.window)}
	p.reqs[id] = r
	return r
}

// Take removes and returns id's request if it has not expired.
func (p *Pending) Take(id model.PlayerID, now time.Time) (model.Mode, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	r, ok := p.reqs[id]
	if !ok {
		return model.ModeUnset, false
	}
	delete(p.reqs, id)
	if now.After(r.ExpiresAt) {
		return model.ModeUnset, false
	}
	return r.Mode, true
}

func (p *Pending) Cancel(id model.PlayerID) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, ok := p.reqs[id]
	delete(p.reqs, id)
	return ok
}

// Expire drops every request past its deadline and returns how many.
func (p *Pending) Expire(now time.Time) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for id, r := range p.reqs {
		if now.After(r.ExpiresAt) {
			delete(p.reqs, id)
			n++
		}
	}
	return n
}

func (p *Pending) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.reqs)
}
