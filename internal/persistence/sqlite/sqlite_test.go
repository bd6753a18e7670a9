package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"peaceclaims.dev/internal/model"
	"peaceclaims.dev/internal/persistence/store"
)

func openTemp(t *testing.T) (*Store, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "claims.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	return s, path
}

func TestStore_ClaimUniqueness(t *testing.T) {
	s, path := openTemp(t)
	ctx := context.Background()
	key := model.ChunkKey{World: "world", X: -3, Z: 7}
	at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	if err := s.InsertClaim(ctx, model.Claim{Owner: uuid.New(), Key: key, ClaimedAt: at}); err != nil {
		t.Fatalf("first insert: %v", err)
	}
	err := s.InsertClaim(ctx, model.Claim{Owner: uuid.New(), Key: key, ClaimedAt: at})
	if !errors.Is(err, store.ErrDuplicateKey) {
		t.Fatalf("second insert: got %v want ErrDuplicateKey", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatalf("sql.Open: %v", err)
	}
	defer db.Close()
	var n int
	if err := db.QueryRow(`SELECT COUNT(*) FROM claims WHERE world='world' AND chunk_x=-3 AND chunk_z=7`).Scan(&n); err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected exactly one claim row, got %d", n)
	}
}

func TestStore_RoundTripAllTables(t *testing.T) {
	s, _ := openTemp(t)
	defer s.Close()
	ctx := context.Background()

	a, b := uuid.New(), uuid.New()
	now := time.Now().UTC().Truncate(time.Millisecond)

	if err := s.InsertClaim(ctx, model.Claim{Owner: a, Key: model.ChunkKey{World: "world", X: 1, Z: 1}, ClaimedAt: now}); err != nil {
		t.Fatalf("InsertClaim: %v", err)
	}
	if err := s.SaveMode(ctx, model.ModeRecord{PlayerID: a, Mode: model.ModePeaceful, LastModeChangeAt: now}); err != nil {
		t.Fatalf("SaveMode: %v", err)
	}
	inv := model.Invitation{Owner: a, Invitee: b, InvitedBy: a, InvitedAt: now}.WithLevel(model.LevelContainers)
	if err := s.SaveInvitation(ctx, inv); err != nil {
		t.Fatalf("SaveInvitation: %v", err)
	}
	if err := s.SaveReputation(ctx, model.Reputation{PlayerID: b, Value: -4, TotalPlaytimeHours: 2.5, LastPlaytimeUpdateAt: now}); err != nil {
		t.Fatalf("SaveReputation: %v", err)
	}
	if err := s.SavePvpArea(ctx, model.PvpArea{Name: "arena", World: "world", MinX: -5, MinY: model.MinBuildY, MaxX: 5, MaxY: model.MaxBuildY, MaxZ: 9}); err != nil {
		t.Fatalf("SavePvpArea: %v", err)
	}
	if err := s.SavePvpArea(ctx, model.PvpArea{Name: "pit", World: "world"}); err != nil {
		t.Fatalf("SavePvpArea: %v", err)
	}
	if err := s.SavePurchased(ctx, a, 2); err != nil {
		t.Fatalf("SavePurchased: %v", err)
	}
	if err := s.SaveNoob(ctx, model.NoobStatus{PlayerID: b, FirstJoinAt: now}); err != nil {
		t.Fatalf("SaveNoob: %v", err)
	}

	snap, err := store.Load(ctx, s)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(snap.Claims) != 1 || snap.Claims[0].Owner != a || !snap.Claims[0].ClaimedAt.Equal(now) {
		t.Fatalf("claims mismatch: %+v", snap.Claims)
	}
	if len(snap.Modes) != 1 || snap.Modes[0].Mode != model.ModePeaceful {
		t.Fatalf("modes mismatch: %+v", snap.Modes)
	}
	if len(snap.Invitations) != 1 || snap.Invitations[0].Level() != model.LevelContainers || !snap.Invitations[0].InvitedAt.Equal(now) {
		t.Fatalf("invitations mismatch: %+v", snap.Invitations)
	}
	if len(snap.PvpAreas) != 2 || snap.PvpAreas[0].Name != "arena" || snap.PvpAreas[0].MaxZ != 9 {
		t.Fatalf("areas mismatch: %+v", snap.PvpAreas)
	}
	if snap.Purchased[a] != 2 {
		t.Fatalf("purchased mismatch: %+v", snap.Purchased)
	}
	if len(snap.Noob) != 1 || !snap.Noob[0].GrantedUntil.IsZero() {
		t.Fatalf("noob mismatch: %+v", snap.Noob)
	}

	rep, ok, err := s.LoadReputation(ctx, b)
	if err != nil || !ok {
		t.Fatalf("LoadReputation: ok=%v err=%v", ok, err)
	}
	if rep.Value != -4 || rep.TotalPlaytimeHours != 2.5 {
		t.Fatalf("reputation mismatch: %+v", rep)
	}
	if _, ok, err := s.LoadReputation(ctx, uuid.New()); ok || err != nil {
		t.Fatalf("missing reputation: ok=%v err=%v", ok, err)
	}
}

func TestStore_CascadeDeletes(t *testing.T) {
	s, _ := openTemp(t)
	defer s.Close()
	ctx := context.Background()

	a, b, c := uuid.New(), uuid.New(), uuid.New()
	for i := 0; i < 3; i++ {
		if err := s.InsertClaim(ctx, model.Claim{Owner: a, Key: model.ChunkKey{World: "world", X: i}}); err != nil {
			t.Fatalf("InsertClaim: %v", err)
		}
	}
	if err := s.InsertClaim(ctx, model.Claim{Owner: c, Key: model.ChunkKey{World: "world", X: 10}}); err != nil {
		t.Fatalf("InsertClaim: %v", err)
	}
	_ = s.SaveInvitation(ctx, model.Invitation{Owner: a, Invitee: b, InvitedBy: a, CanBuild: true})
	_ = s.SaveInvitation(ctx, model.Invitation{Owner: c, Invitee: a, InvitedBy: c, CanBuild: true})
	_ = s.SaveInvitation(ctx, model.Invitation{Owner: c, Invitee: b, InvitedBy: c, CanBuild: true})

	if err := s.DeleteClaimsOf(ctx, a); err != nil {
		t.Fatalf("DeleteClaimsOf: %v", err)
	}
	if err := s.DeleteInvitationsBy(ctx, a); err != nil {
		t.Fatalf("DeleteInvitationsBy: %v", err)
	}
	if err := s.DeleteInvitationsTo(ctx, a); err != nil {
		t.Fatalf("DeleteInvitationsTo: %v", err)
	}

	claims, _ := s.LoadClaims(ctx)
	if len(claims) != 1 || claims[0].Owner != c {
		t.Fatalf("expected only c's claim to survive, got %+v", claims)
	}
	invs, _ := s.LoadInvitations(ctx)
	if len(invs) != 1 || invs[0].Owner != c || invs[0].Invitee != b {
		t.Fatalf("expected only c->b invitation to survive, got %+v", invs)
	}
}

func TestOpenMigratesInvitationsTable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "old.db")
	db, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatalf("sql.Open: %v", err)
	}
	a, b := uuid.New(), uuid.New()
	for _, q := range []string{
		`CREATE TABLE invitations (
			owner TEXT NOT NULL,
			invitee TEXT NOT NULL,
			invited_by TEXT NOT NULL,
			can_build INTEGER NOT NULL,
			can_containers INTEGER NOT NULL,
			can_manage INTEGER NOT NULL,
			PRIMARY KEY (owner, invitee)
		);`,
		`INSERT INTO invitations VALUES('` + a.String() + `','` + b.String() + `','` + a.String() + `',1,0,0);`,
	} {
		if _, err := db.Exec(q); err != nil {
			t.Fatalf("old schema: %v", err)
		}
	}
	_ = db.Close()

	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer s.Close()
	invs, err := s.LoadInvitations(context.Background())
	if err != nil {
		t.Fatalf("LoadInvitations: %v", err)
	}
	if len(invs) != 1 || !invs[0].CanBuild || !invs[0].InvitedAt.IsZero() {
		t.Fatalf("migrated rows mismatch: %+v", invs)
	}
	if _, err := Open(path); err != nil {
		t.Fatalf("reopen after migration: %v", err)
	}
}
