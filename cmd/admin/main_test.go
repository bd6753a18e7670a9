package main

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"

	"peaceclaims.dev/internal/model"
	persistlog "peaceclaims.dev/internal/persistence/log"
	"peaceclaims.dev/internal/persistence/sqlite"
)

func TestRunQueryReadsServerSchema(t *testing.T) {
	ctx := context.Background()
	st, err := sqlite.Open(filepath.Join(t.TempDir(), "peaceclaims.sqlite"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer st.Close()

	alice, bob := uuid.New(), uuid.New()
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	for i, key := range []model.ChunkKey{{World: "world", X: 0, Z: 0}, {World: "world", X: 1, Z: 0}} {
		owner := alice
		if i == 1 {
			owner = bob
		}
		if err := st.InsertClaim(ctx, model.Claim{Owner: owner, Key: key, ClaimedAt: at}); err != nil {
			t.Fatalf("insert: %v", err)
		}
	}
	if err := st.SaveMode(ctx, model.ModeRecord{PlayerID: alice, Mode: model.ModePeaceful, LastModeChangeAt: at}); err != nil {
		t.Fatalf("save mode: %v", err)
	}

	var rows []any
	collect := func(v any) { rows = append(rows, v) }

	if err := runQuery(st.DB(), "claims", alice.String(), 10, collect); err != nil {
		t.Fatalf("claims: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("claims for alice = %d rows", len(rows))
	}
	c := rows[0].(claimRow)
	if c.Owner != alice.String() || c.ChunkX != 0 || !c.ClaimedAt.Equal(at) {
		t.Fatalf("claim row: %+v", c)
	}

	rows = nil
	if err := runQuery(st.DB(), "modes", "", 10, collect); err != nil {
		t.Fatalf("modes: %v", err)
	}
	if len(rows) != 1 || rows[0].(modeRow).Mode != "peaceful" {
		t.Fatalf("modes: %+v", rows)
	}

	if err := runQuery(st.DB(), "snapshots", "", 10, collect); err == nil {
		t.Fatalf("expected unknown query error")
	}
}

func TestReadAuditFilters(t *testing.T) {
	dir := t.TempDir()
	l := persistlog.NewAuditLogger(dir)
	p := uuid.NewString()
	now := time.Now().UTC()
	for _, e := range []model.AuditEntry{
		{At: now, Actor: p, Action: "CLAIM", Target: p},
		{At: now, Actor: uuid.NewString(), Action: "CLAIM"},
		{At: now, Actor: p, Action: "UNCLAIM", Target: p},
	} {
		if err := l.WriteAudit(e); err != nil {
			t.Fatalf("write: %v", err)
		}
	}
	if err := l.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	got, err := readAudit(filepath.Join(dir, "audit"), auditFilter{Action: "CLAIM"})
	if err != nil {
		t.Fatalf("readAudit: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("CLAIM entries = %d", len(got))
	}
	got, err = readAudit(filepath.Join(dir, "audit"), auditFilter{Player: p})
	if err != nil {
		t.Fatalf("readAudit: %v", err)
	}
	if len(got) != 2 || got[1].Action != "UNCLAIM" {
		t.Fatalf("player entries: %+v", got)
	}
	got, _ = readAudit(filepath.Join(dir, "audit"), auditFilter{Since: now.Add(time.Hour)})
	if len(got) != 0 {
		t.Fatalf("since filter kept %d entries", len(got))
	}
}
