package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"peaceclaims.dev/internal/claims"
	"peaceclaims.dev/internal/config"
	"peaceclaims.dev/internal/invites"
	"peaceclaims.dev/internal/model"
	"peaceclaims.dev/internal/modes"
	"peaceclaims.dev/internal/persistence/store"
	"peaceclaims.dev/internal/policy/rules"
)

type fakePerms map[model.PlayerID][]string

func (f fakePerms) Has(id model.PlayerID, node string) bool {
	for _, n := range f[id] {
		if n == node {
			return true
		}
	}
	return false
}

func (f fakePerms) Nodes(id model.PlayerID) []string { return f[id] }

type note struct {
	To   model.PlayerID
	Key  string
	Args []any
}

type notes struct {
	mu  sync.Mutex
	got []note
}

func (n *notes) Notify(id model.PlayerID, key string, args ...any) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.got = append(n.got, note{id, key, args})
}

func (n *notes) keysFor(id model.PlayerID) []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	var out []string
	for _, x := range n.got {
		if x.To == id {
			out = append(out, x.Key)
		}
	}
	return out
}

type auditRec struct {
	mu      sync.Mutex
	entries []model.AuditEntry
}

func (a *auditRec) WriteAudit(e model.AuditEntry) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.entries = append(a.entries, e)
	return nil
}

func (a *auditRec) actions() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	var out []string
	for _, e := range a.entries {
		out = append(out, e.Action)
	}
	return out
}

type harness struct {
	svc    *Service
	mem    *store.Memory
	w      *store.Writer
	perms  fakePerms
	notes  *notes
	audit  *auditRec
	posted chan func()
	clock  time.Time
}

var t0 = time.Date(2026, 6, 1, 10, 0, 0, 0, time.UTC)

func newHarness(t *testing.T) *harness {
	h := &harness{
		mem:    store.NewMemory(),
		perms:  fakePerms{},
		notes:  &notes{},
		audit:  &auditRec{},
		posted: make(chan func(), 16),
		clock:  t0,
	}
	h.w = store.NewWriter(store.WriterConfig{Backend: h.mem})
	t.Cleanup(func() { _ = h.w.Close() })
	svc, err := New(config.Defaults(), Deps{
		Writer:   h.w,
		Perms:    h.perms,
		Notifier: h.notes,
		Audit:    h.audit,
		Post:     func(fn func()) bool { h.posted <- fn; return true },
		Now:      func() time.Time { return h.clock },
	})
	require.NoError(t, err)
	h.svc = svc
	return h
}

// runPosted runs the next closure posted back to the loop.
func (h *harness) runPosted(t *testing.T) {
	t.Helper()
	select {
	case fn := <-h.posted:
		fn()
	case <-time.After(2 * time.Second):
		t.Fatalf("nothing was posted back to the loop")
	}
}

func (h *harness) player(t *testing.T, m model.Mode) model.PlayerID {
	t.Helper()
	id := uuid.New()
	_, err := h.svc.ChooseMode(context.Background(), id, m)
	require.NoError(t, err)
	return id
}

func at(x, z int) model.Location { return model.Location{World: "world", X: x, Y: 70, Z: z} }

func chunkAt(cx, cz int) model.Location { return at(cx*16+1, cz*16+1) }

func TestClaimLimitPurchaseScenario(t *testing.T) {
	h := newHarness(t)
	p := h.player(t, model.ModePeaceful)

	_, err := h.svc.Claim(p, chunkAt(0, 0))
	require.NoError(t, err)
	_, err = h.svc.Claim(p, chunkAt(1, 0))
	require.ErrorIs(t, err, claims.ErrLimitReached)

	require.NoError(t, h.svc.SetPurchased(uuid.Nil, p, 1))
	c, err := h.svc.Claim(p, chunkAt(1, 0))
	require.NoError(t, err)
	require.Equal(t, model.ChunkKey{World: "world", X: 1, Z: 0}, c.Key)
	require.Equal(t, 2, h.svc.ClaimCount(p))
}

func TestClaimPreconditions(t *testing.T) {
	h := newHarness(t)
	normal := h.player(t, model.ModeNormal)
	_, err := h.svc.Claim(normal, chunkAt(0, 0))
	require.ErrorIs(t, err, ErrRequiresPeace)

	p := h.player(t, model.ModePeaceful)
	_, err = h.svc.CreatePvpArea(uuid.Nil, "arena", at(100, 100), at(120, 120))
	require.NoError(t, err)
	_, err = h.svc.Claim(p, at(110, 110))
	require.ErrorIs(t, err, ErrClaimInPvp)

	_, err = h.svc.Claim(p, chunkAt(0, 0))
	require.NoError(t, err)
	other := h.player(t, model.ModePeaceful)
	_, err = h.svc.Claim(other, chunkAt(0, 0))
	require.ErrorIs(t, err, claims.ErrAlreadyClaimed)
}

func TestPermissionNodesRaiseLimit(t *testing.T) {
	h := newHarness(t)
	p := h.player(t, model.ModePeaceful)
	h.perms[p] = []string{"peaceclaims.limit.unlimited"}
	for i := 0; i < 5; i++ {
		_, err := h.svc.Claim(p, chunkAt(i, 0))
		require.NoError(t, err)
	}
	require.True(t, h.svc.LimitOf(p).Unlimited)
}

func TestWildcardGrantsUnlimitedClaims(t *testing.T) {
	h := newHarness(t)
	p := h.player(t, model.ModePeaceful)
	h.perms[p] = []string{"peaceclaims.*"}
	require.True(t, h.svc.LimitOf(p).Unlimited)
	for i := 0; i < 3; i++ {
		_, err := h.svc.Claim(p, chunkAt(i, 0))
		require.NoError(t, err)
	}
}

func TestDuplicateInsertIsRolledBack(t *testing.T) {
	h := newHarness(t)
	p := h.player(t, model.ModePeaceful)
	key := chunkAt(4, 4).Chunk()
	require.NoError(t, h.mem.InsertClaim(context.Background(), model.Claim{Owner: uuid.New(), Key: key, ClaimedAt: t0}))

	_, err := h.svc.Claim(p, chunkAt(4, 4))
	require.NoError(t, err, "the cache has not seen the other writer yet")
	h.runPosted(t)

	require.Equal(t, 0, h.svc.ClaimCount(p))
	require.Contains(t, h.notes.keysFor(p), "already_claimed")
	require.Contains(t, h.audit.actions(), "CLAIM_ROLLBACK")
}

func TestUnclaim(t *testing.T) {
	h := newHarness(t)
	owner := h.player(t, model.ModePeaceful)
	other := h.player(t, model.ModePeaceful)
	admin := uuid.New()
	h.perms[admin] = []string{"peaceclaims.admin.unclaim"}
	_, _ = h.svc.Claim(owner, chunkAt(0, 0))

	_, err := h.svc.Unclaim(other, chunkAt(0, 0))
	require.ErrorIs(t, err, claims.ErrNotOwner)
	_, err = h.svc.Unclaim(admin, chunkAt(0, 0))
	require.NoError(t, err)
	_, err = h.svc.Unclaim(owner, chunkAt(0, 0))
	require.ErrorIs(t, err, claims.ErrNotClaimed)
}

func TestLeavingPeacefulCascades(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	a := h.player(t, model.ModePeaceful)
	b := h.player(t, model.ModePeaceful)
	c := h.player(t, model.ModePeaceful)
	require.NoError(t, h.svc.SetPurchased(uuid.Nil, a, 5))

	for i := 0; i < 3; i++ {
		_, err := h.svc.Claim(a, chunkAt(i, 0))
		require.NoError(t, err)
	}
	_, err := h.svc.Claim(b, chunkAt(0, 9))
	require.NoError(t, err)
	_, err = h.svc.Invite(a, a, c, model.LevelBuild)
	require.NoError(t, err)
	_, err = h.svc.Invite(b, b, a, model.LevelFull)
	require.NoError(t, err)
	_, err = h.svc.Invite(b, b, c, model.LevelBuild)
	require.NoError(t, err)

	_, _, err = h.svc.RequestModeChange(ctx, a, model.ModeNormal)
	require.ErrorIs(t, err, modes.ErrOnCooldown)

	h.clock = t0.Add(25 * time.Hour)
	req, immediate, err := h.svc.RequestModeChange(ctx, a, model.ModeNormal)
	require.NoError(t, err)
	require.Nil(t, immediate)
	require.Equal(t, model.ModeNormal, req.Mode)

	ch, err := h.svc.ConfirmModeChange(ctx, a)
	require.NoError(t, err)
	require.Len(t, ch.ClaimsReleased, 3)
	require.Equal(t, 2, ch.InvitesRemoved)
	require.Equal(t, 0, h.svc.ClaimCount(a))
	require.Equal(t, 1, h.svc.ClaimCount(b), "other owners keep their land")

	by, to := h.svc.Invitations(a)
	require.Empty(t, by)
	require.Empty(t, to)
	by, _ = h.svc.Invitations(b)
	require.Len(t, by, 1, "b's invitation to c survives")

	_, err = h.svc.ConfirmModeChange(ctx, a)
	require.ErrorIs(t, err, ErrNoPending)

	require.NoError(t, h.w.Flush(ctx))
	rows, _ := h.mem.LoadClaims(ctx)
	require.Len(t, rows, 1)
}

func TestConfirmWindowExpires(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	a := h.player(t, model.ModeNormal)
	h.clock = t0.Add(48 * time.Hour)
	_, _, err := h.svc.RequestModeChange(ctx, a, model.ModePeaceful)
	require.NoError(t, err)
	h.clock = h.clock.Add(31 * time.Second)
	_, err = h.svc.ConfirmModeChange(ctx, a)
	require.ErrorIs(t, err, ErrNoPending)
	require.Equal(t, model.ModeNormal, h.svc.ModeOf(a))
}

func TestRevocationFlagClearedOnPeace(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	owner := h.player(t, model.ModePeaceful)
	guest := h.player(t, model.ModePeaceful)
	_, _ = h.svc.Claim(owner, chunkAt(0, 0))
	_, err := h.svc.Invite(owner, owner, guest, model.LevelBuild)
	require.NoError(t, err)

	_, err = h.svc.ForceMode(ctx, uuid.Nil, guest, model.ModeNormal)
	require.NoError(t, err)
	_, to := h.svc.Invitations(guest)
	require.Empty(t, to, "leaving peaceful drops invitations held")

	_, _ = h.svc.ForceMode(ctx, uuid.Nil, guest, model.ModePeaceful)
	_, _ = h.svc.Invite(owner, owner, guest, model.LevelBuild)
	// Switch without the cascade so the invitation is still there when the
	// build check runs.
	_, err = h.svc.modes.SetMode(guest, model.ModeNormal, h.clock)
	require.NoError(t, err)
	require.False(t, h.svc.CanBuild(guest, at(1, 1), rules.ActionBuild))
	require.True(t, h.svc.Resolver().Revoked().Has(guest))
	require.Contains(t, h.notes.keysFor(guest), "invitations_revoked")

	_, err = h.svc.Join(ctx, guest)
	require.NoError(t, err)

	ch, err := h.svc.ForceMode(ctx, uuid.Nil, guest, model.ModePeaceful)
	require.NoError(t, err)
	require.True(t, ch.RevocationClear)
	require.False(t, h.svc.Resolver().Revoked().Has(guest))
}

func TestInvitationCoversLaterClaims(t *testing.T) {
	h := newHarness(t)
	a := h.player(t, model.ModePeaceful)
	b := h.player(t, model.ModePeaceful)
	require.NoError(t, h.svc.SetPurchased(uuid.Nil, a, 1))
	_, _ = h.svc.Claim(a, chunkAt(0, 0))
	inv, err := h.svc.Invite(a, a, b, model.LevelNone)
	require.NoError(t, err)
	require.True(t, inv.InvitedAt.Equal(h.clock))

	// Invitations are per owner, so a chunk claimed after the invite is
	// covered as well.
	_, err = h.svc.Claim(a, chunkAt(5, 5))
	require.NoError(t, err)
	require.True(t, h.svc.CanBuild(b, chunkAt(5, 5), rules.ActionBuild))
	require.False(t, h.svc.CanBuild(b, chunkAt(5, 5), rules.ActionContainer))
	require.False(t, h.svc.CanUseDoor(b, chunkAt(5, 5)))
}

func TestInviteAuthority(t *testing.T) {
	h := newHarness(t)
	owner := h.player(t, model.ModePeaceful)
	manager := h.player(t, model.ModePeaceful)
	builder := h.player(t, model.ModePeaceful)
	guest := h.player(t, model.ModePeaceful)
	raider := h.player(t, model.ModeNormal)

	_, err := h.svc.Invite(owner, owner, raider, model.LevelBuild)
	require.ErrorIs(t, err, ErrInviteePeace)
	_, err = h.svc.Invite(raider, raider, guest, model.LevelBuild)
	require.ErrorIs(t, err, ErrInviterPeace)

	_, _ = h.svc.Invite(owner, owner, manager, model.LevelFull)
	_, _ = h.svc.Invite(owner, owner, builder, model.LevelBuild)

	inv, err := h.svc.Invite(manager, owner, guest, model.LevelBuild)
	require.NoError(t, err)
	require.Equal(t, manager, inv.InvitedBy)
	_, err = h.svc.Invite(builder, owner, guest, model.LevelBuild)
	require.ErrorIs(t, err, ErrNoManage)

	inv, err = h.svc.CycleInvitation(owner, owner, guest)
	require.NoError(t, err)
	require.Equal(t, model.LevelContainers, inv.Level())
	_, err = h.svc.CycleInvitation(owner, owner, raider)
	require.ErrorIs(t, err, invites.ErrNotInvited)

	_, err = h.svc.Uninvite(builder, owner, guest)
	require.ErrorIs(t, err, ErrNoManage)
	_, err = h.svc.Uninvite(manager, owner, guest)
	require.NoError(t, err)
	require.Contains(t, h.notes.keysFor(guest), "invited_notice")
}

func TestKillPenaltyAtAreaBoundary(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	killer := h.player(t, model.ModeNormal)
	victim := h.player(t, model.ModeNormal)
	_, err := h.svc.CreatePvpArea(uuid.Nil, "arena", at(0, 0), at(15, 15))
	require.NoError(t, err)

	d, err := h.svc.OnPlayerKill(ctx, killer, victim, at(15, 5))
	require.NoError(t, err)
	require.Equal(t, 0, d, "inside the area")

	d, err = h.svc.OnPlayerKill(ctx, killer, victim, at(16, 5))
	require.NoError(t, err)
	require.Equal(t, -1, d, "one block outside")

	r, _ := h.svc.Reputation(ctx, killer)
	require.Equal(t, -1, r.Value)

	peaceful := h.player(t, model.ModePeaceful)
	d, _ = h.svc.OnPlayerKill(ctx, killer, peaceful, at(100, 100))
	require.Equal(t, 0, d)
}

func TestSweepCreditsOnlineNormalPlayers(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	n := h.player(t, model.ModeNormal)
	p := h.player(t, model.ModePeaceful)
	_, err := h.svc.Join(ctx, n)
	require.NoError(t, err)
	_, err = h.svc.Join(ctx, p)
	require.NoError(t, err)

	rep := h.svc.Sweep(ctx, t0.Add(30*time.Minute))
	require.Equal(t, SweepReport{Checked: 1}, rep)

	rep = h.svc.Sweep(ctx, t0.Add(61*time.Minute))
	require.Equal(t, 1, rep.Credited)
	r, _ := h.svc.Reputation(ctx, n)
	require.Equal(t, 1, r.Value)
	require.Contains(t, h.notes.keysFor(n), "reputation_gained")

	require.NoError(t, h.svc.Quit(ctx, n))
	rep = h.svc.Sweep(ctx, t0.Add(5*time.Hour))
	require.Equal(t, 0, rep.Checked, "offline players are skipped")
}

func TestJoinNoobAndModePrompt(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	id := uuid.New()
	info, err := h.svc.Join(ctx, id)
	require.NoError(t, err)
	require.True(t, info.FirstJoin)
	require.Equal(t, t0.Add(30*time.Minute), info.NoobUntil)
	require.Contains(t, h.notes.keysFor(id), "mode_choose")

	_, err = h.svc.ChooseMode(ctx, id, model.ModeNormal)
	require.NoError(t, err)
	_, err = h.svc.ChooseMode(ctx, id, model.ModePeaceful)
	require.ErrorIs(t, err, ErrModeChosen)

	other := h.player(t, model.ModeNormal)
	require.False(t, h.svc.CanAttack(other, id, at(0, 0)), "noob protection")
	h.clock = t0.Add(31 * time.Minute)
	require.True(t, h.svc.CanAttack(other, id, at(0, 0)))
}

func TestStateAndReload(t *testing.T) {
	h := newHarness(t)
	p := h.player(t, model.ModePeaceful)
	_, _ = h.svc.Claim(p, chunkAt(0, 0))
	st := h.svc.State()
	require.Equal(t, 1, st.Claims)
	require.Equal(t, 1, st.Modes["peaceful"])
	require.False(t, st.EconomyReady)
	require.Equal(t, "none", st.Region)

	cfg := config.Defaults()
	cfg.ShowRadius = 1
	h.svc.Reload(cfg)
	require.NoError(t, h.svc.SetPurchased(uuid.Nil, p, 2))
	_, _ = h.svc.Claim(p, chunkAt(2, 0))
	require.Len(t, h.svc.Show(chunkAt(0, 0)), 1)
}

func TestLoadWarmsStores(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	p := h.player(t, model.ModePeaceful)
	_, _ = h.svc.Claim(p, chunkAt(3, 3))
	_, _ = h.svc.CreatePvpArea(uuid.Nil, "pit", at(500, 500), at(510, 510))
	require.NoError(t, h.w.Flush(ctx))

	fresh := newHarness(t)
	require.NoError(t, fresh.svc.Load(ctx, h.mem))
	require.Equal(t, model.ModePeaceful, fresh.svc.ModeOf(p))
	require.Equal(t, 1, fresh.svc.ClaimCount(p))
	require.Len(t, fresh.svc.PvpAreas(), 1)
}
