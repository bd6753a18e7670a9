package store

import (
	"context"
	"sort"
	"sync"

	"peaceclaims.dev/internal/model"
)

type inviteKey struct {
	owner, invitee model.PlayerID
}

// Memory is an in-process Backend with the same uniqueness guarantees as the
// sqlite one. Used by tests and by `-backend memory`.
type Memory struct {
	mu sync.Mutex

	claims      map[model.ChunkKey]model.Claim
	modes       map[model.PlayerID]model.ModeRecord
	invitations map[inviteKey]model.Invitation
	reputation  map[model.PlayerID]model.Reputation
	areas       map[string]model.PvpArea
	areaOrder   []string
	purchased   map[model.PlayerID]int
	noob        map[model.PlayerID]model.NoobStatus

	// Fail, when set, is returned by every write.
	Fail error
}

func NewMemory() *Memory {
	return &Memory{
		claims:      map[model.ChunkKey]model.Claim{},
		modes:       map[model.PlayerID]model.ModeRecord{},
		invitations: map[inviteKey]model.Invitation{},
		reputation:  map[model.PlayerID]model.Reputation{},
		areas:       map[string]model.PvpArea{},
		purchased:   map[model.PlayerID]int{},
		noob:        map[model.PlayerID]model.NoobStatus{},
	}
}

func (m *Memory) LoadClaims(ctx context.Context) ([]model.Claim, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]model.Claim, 0, len(m.claims))
	for _, c := range m.claims {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ClaimedAt.Before(out[j].ClaimedAt) })
	return out, nil
}

func (m *Memory) InsertClaim(ctx context.Context, c model.Claim) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Fail != nil {
		return m.Fail
	}
	if _, ok := m.claims[c.Key]; ok {
		return ErrDuplicateKey
	}
	m.claims[c.Key] = c
	return nil
}

func (m *Memory) DeleteClaim(ctx context.Context, key model.ChunkKey) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Fail != nil {
		return m.Fail
	}
	delete(m.claims, key)
	return nil
}

func (m *Memory) DeleteClaimsOf(ctx context.Context, owner model.PlayerID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Fail != nil {
		return m.Fail
	}
	for k, c := range m.claims {
		if c.Owner == owner {
			delete(m.claims, k)
		}
	}
	return nil
}

func (m *Memory) LoadModes(ctx context.Context) ([]model.ModeRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]model.ModeRecord, 0, len(m.modes))
	for _, r := range m.modes {
		out = append(out, r)
	}
	return out, nil
}

func (m *Memory) SaveMode(ctx context.Context, r model.ModeRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Fail != nil {
		return m.Fail
	}
	m.modes[r.PlayerID] = r
	return nil
}

func (m *Memory) LoadInvitations(ctx context.Context) ([]model.Invitation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]model.Invitation, 0, len(m.invitations))
	for _, inv := range m.invitations {
		out = append(out, inv)
	}
	return out, nil
}

func (m *Memory) SaveInvitation(ctx context.Context, inv model.Invitation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Fail != nil {
		return m.Fail
	}
	m.invitations[inviteKey{inv.Owner, inv.Invitee}] = inv
	return nil
}

func (m *Memory) DeleteInvitation(ctx context.Context, owner, invitee model.PlayerID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Fail != nil {
		return m.Fail
	}
	delete(m.invitations, inviteKey{owner, invitee})
	return nil
}

func (m *Memory) DeleteInvitationsTo(ctx context.Context, invitee model.PlayerID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Fail != nil {
		return m.Fail
	}
	for k := range m.invitations {
		if k.invitee == invitee {
			delete(m.invitations, k)
		}
	}
	return nil
}

func (m *Memory) DeleteInvitationsBy(ctx context.Context, owner model.PlayerID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Fail != nil {
		return m.Fail
	}
	for k := range m.invitations {
		if k.owner == owner {
			delete(m.invitations, k)
		}
	}
	return nil
}

func (m *Memory) LoadReputation(ctx context.Context, id model.PlayerID) (model.Reputation, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.reputation[id]
	return r, ok, nil
}

func (m *Memory) SaveReputation(ctx context.Context, r model.Reputation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Fail != nil {
		return m.Fail
	}
	m.reputation[r.PlayerID] = r
	return nil
}

func (m *Memory) LoadPvpAreas(ctx context.Context) ([]model.PvpArea, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]model.PvpArea, 0, len(m.areaOrder))
	for _, name := range m.areaOrder {
		out = append(out, m.areas[name])
	}
	return out, nil
}

func (m *Memory) SavePvpArea(ctx context.Context, a model.PvpArea) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Fail != nil {
		return m.Fail
	}
	if _, ok := m.areas[a.Name]; !ok {
		m.areaOrder = append(m.areaOrder, a.Name)
	}
	m.areas[a.Name] = a
	return nil
}

func (m *Memory) DeletePvpArea(ctx context.Context, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Fail != nil {
		return m.Fail
	}
	if _, ok := m.areas[name]; !ok {
		return nil
	}
	delete(m.areas, name)
	for i, n := range m.areaOrder {
		if n == name {
			m.areaOrder = append(m.areaOrder[:i], m.areaOrder[i+1:]...)
			break
		}
	}
	return nil
}

func (m *Memory) LoadPurchased(ctx context.Context) (map[model.PlayerID]int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[model.PlayerID]int, len(m.purchased))
	for k, v := range m.purchased {
		out[k] = v
	}
	return out, nil
}

func (m *Memory) SavePurchased(ctx context.Context, id model.PlayerID, n int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Fail != nil {
		return m.Fail
	}
	m.purchased[id] = n
	return nil
}

func (m *Memory) LoadNoob(ctx context.Context) ([]model.NoobStatus, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]model.NoobStatus, 0, len(m.noob))
	for _, s := range m.noob {
		out = append(out, s)
	}
	return out, nil
}

func (m *Memory) SaveNoob(ctx context.Context, s model.NoobStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Fail != nil {
		return m.Fail
	}
	m.noob[s.PlayerID] = s
	return nil
}

// SetFail toggles write failures for tests.
func (m *Memory) SetFail(err error) {
	m.mu.Lock()
	m.Fail = err
	m.mu.Unlock()
}

func (m *Memory) Close() error { return nil }
