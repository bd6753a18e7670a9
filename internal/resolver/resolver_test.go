package resolver_test

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"peaceclaims.dev/internal/claims"
	"peaceclaims.dev/internal/invites"
	"peaceclaims.dev/internal/model"
	"peaceclaims.dev/internal/modes"
	"peaceclaims.dev/internal/noob"
	"peaceclaims.dev/internal/persistence/store"
	"peaceclaims.dev/internal/policy/rules"
	"peaceclaims.dev/internal/pvparea"
	"peaceclaims.dev/internal/resolver"
	"peaceclaims.dev/internal/resolver/mocks"
)

var t0 = time.Date(2026, 4, 4, 4, 0, 0, 0, time.UTC)

type fixture struct {
	r       *resolver.Resolver
	perms   *mocks.MockPermissions
	areas   *pvparea.Index
	claims  *claims.Store
	modes   *modes.Store
	invites *invites.Store
	noob    *noob.Store
	revoked []model.PlayerID
}

func newFixture(t *testing.T) *fixture {
	ctrl := gomock.NewController(t)
	w := store.NewWriter(store.WriterConfig{Backend: store.NewMemory()})
	t.Cleanup(func() { _ = w.Close() })
	f := &fixture{
		perms:   mocks.NewMockPermissions(ctrl),
		areas:   pvparea.NewIndex(w),
		claims:  claims.NewStore(w, nil),
		modes:   modes.NewStore(w, 24*time.Hour),
		invites: invites.NewStore(w),
		noob:    noob.NewStore(w, 30*time.Minute),
	}
	f.perms.EXPECT().Has(gomock.Any(), resolver.NodeBypass).Return(false).AnyTimes()
	f.r = resolver.New(resolver.Config{
		Areas: f.areas, Claims: f.claims, Modes: f.modes, Invites: f.invites, Noob: f.noob,
		Perms: f.perms,
		Now:   func() time.Time { return t0 },
		OnRevoke: func(actor model.PlayerID, _ []model.Invitation) {
			f.revoked = append(f.revoked, actor)
		},
	})
	return f
}

func (f *fixture) player(t *testing.T, m model.Mode) model.PlayerID {
	id := uuid.New()
	_, err := f.modes.SetMode(id, m, t0)
	require.NoError(t, err)
	return id
}

func at(x, z int) model.Location { return model.Location{World: "world", X: x, Y: 64, Z: z} }

func TestOwnerAlwaysBuilds(t *testing.T) {
	f := newFixture(t)
	owner := f.player(t, model.ModePeaceful)
	_, _, err := f.claims.Claim(owner, at(0, 0).Chunk(), claims.Limit{N: 1})
	require.NoError(t, err)

	for _, a := range []rules.Action{rules.ActionBuild, rules.ActionBreak, rules.ActionContainer} {
		require.True(t, f.r.CanBuild(owner, at(5, 5), a).Allowed)
	}
	require.True(t, f.r.CanUseDoor(owner, at(5, 5)).Allowed)
}

func TestBypassAlwaysAllowed(t *testing.T) {
	ctrl := gomock.NewController(t)
	perms := mocks.NewMockPermissions(ctrl)
	admin := uuid.New()
	perms.EXPECT().Has(admin, resolver.NodeBypass).Return(true).Times(2)

	w := store.NewWriter(store.WriterConfig{Backend: store.NewMemory()})
	t.Cleanup(func() { _ = w.Close() })
	areas := pvparea.NewIndex(w)
	_, err := areas.Create("arena", at(-10, -10), at(10, 10))
	require.NoError(t, err)
	r := resolver.New(resolver.Config{
		Areas: areas, Claims: claims.NewStore(w, nil), Modes: modes.NewStore(w, time.Hour),
		Invites: invites.NewStore(w), Noob: noob.NewStore(w, time.Minute), Perms: perms,
	})
	require.True(t, r.CanBuild(admin, at(0, 0), rules.ActionBreak).Allowed)
	require.True(t, r.CanUseDoor(admin, at(0, 0)).Allowed)
}

func TestStrangersAndRaiders(t *testing.T) {
	f := newFixture(t)
	owner := f.player(t, model.ModePeaceful)
	peaceful := f.player(t, model.ModePeaceful)
	raider := f.player(t, model.ModeNormal)
	_, _, _ = f.claims.Claim(owner, at(0, 0).Chunk(), claims.Limit{N: 1})

	require.False(t, f.r.CanBuild(peaceful, at(1, 1), rules.ActionBuild).Allowed)
	require.True(t, f.r.CanBuild(raider, at(1, 1), rules.ActionBreak).Allowed)
	require.True(t, f.r.CanBuild(peaceful, at(100, 100), rules.ActionBuild).Allowed, "wild land")
}

func TestInvitationCoversLaterClaims(t *testing.T) {
	f := newFixture(t)
	owner := f.player(t, model.ModePeaceful)
	guest := f.player(t, model.ModePeaceful)
	_, _, _ = f.claims.Claim(owner, at(0, 0).Chunk(), claims.Limit{N: 5})
	_, err := f.invites.Invite(owner, guest, owner, model.LevelBuild, t0)
	require.NoError(t, err)

	// Invitations are keyed by owner, so land claimed afterwards is covered
	// without re-inviting.
	_, _, _ = f.claims.Claim(owner, at(32, 0).Chunk(), claims.Limit{N: 5})
	require.True(t, f.r.CanBuild(guest, at(33, 1), rules.ActionBuild).Allowed)
	require.False(t, f.r.CanBuild(guest, at(33, 1), rules.ActionContainer).Allowed)
	require.False(t, f.r.CanUseDoor(guest, at(33, 1)).Allowed, "invitations do not open doors")
}

func TestNonPeacefulInviteeIsRevoked(t *testing.T) {
	f := newFixture(t)
	owner := f.player(t, model.ModePeaceful)
	other := f.player(t, model.ModePeaceful)
	guest := f.player(t, model.ModePeaceful)
	_, _, _ = f.claims.Claim(owner, at(0, 0).Chunk(), claims.Limit{N: 1})
	_, _ = f.invites.Invite(owner, guest, owner, model.LevelFull, t0)
	_, _ = f.invites.Invite(other, guest, other, model.LevelBuild, t0)

	_, _ = f.modes.SetMode(guest, model.ModeNormal, t0)
	v := f.r.CanBuild(guest, at(1, 1), rules.ActionBuild)
	require.False(t, v.Allowed)
	require.True(t, v.Revoke)
	require.Empty(t, f.invites.InvitationsTo(guest), "every invitation is dropped")
	require.True(t, f.r.Revoked().Has(guest))
	require.Equal(t, []model.PlayerID{guest}, f.revoked)

	// Now an ordinary raider.
	require.True(t, f.r.CanBuild(guest, at(1, 1), rules.ActionBuild).Allowed)
}

func TestPvpAreaBlocksBuildingAndAllowsCombat(t *testing.T) {
	f := newFixture(t)
	_, err := f.areas.Create("arena", at(0, 0), at(15, 15))
	require.NoError(t, err)
	a := f.player(t, model.ModePeaceful)
	b := f.player(t, model.ModeNormal)

	require.False(t, f.r.CanBuild(b, at(3, 3), rules.ActionBuild).Allowed)
	require.True(t, f.r.CanAttack(b, a, at(3, 3)).Allowed)
	require.False(t, f.r.CanAttack(b, a, at(16, 3)).Allowed)
	require.True(t, f.r.ExplosionAllowed(at(3, 3)))
}

func TestNoobProtection(t *testing.T) {
	f := newFixture(t)
	a := f.player(t, model.ModeNormal)
	b := f.player(t, model.ModeNormal)
	require.True(t, f.r.CanAttack(a, b, at(0, 0)).Allowed)

	f.noob.Grant(b, t0)
	v := f.r.CanAttack(a, b, at(0, 0))
	require.False(t, v.Allowed)
	require.Equal(t, "noob", v.Reason)
}

func TestExplosionsSpareClaims(t *testing.T) {
	f := newFixture(t)
	owner := f.player(t, model.ModePeaceful)
	_, _, _ = f.claims.Claim(owner, at(0, 0).Chunk(), claims.Limit{N: 1})
	require.False(t, f.r.ExplosionAllowed(at(8, 8)))
	require.True(t, f.r.ExplosionAllowed(at(16, 8)))
}
