package noob

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"peaceclaims.dev/internal/persistence/store"
)

var t0 = time.Date(2026, 2, 2, 20, 0, 0, 0, time.UTC)

func TestNoobWindow(t *testing.T) {
	mem := store.NewMemory()
	w := store.NewWriter(store.WriterConfig{Backend: mem})
	defer w.Close()
	s := NewStore(w, 30*time.Minute)
	id := uuid.New()

	if s.IsNoob(id, t0) {
		t.Fatalf("unknown player must not be protected")
	}
	if !s.FirstJoin(id, t0) {
		t.Fatalf("first join should open the window")
	}
	if s.FirstJoin(id, t0.Add(time.Hour)) {
		t.Fatalf("second join must not reopen the window")
	}
	if !s.IsNoob(id, t0.Add(29*time.Minute)) {
		t.Fatalf("expected protection inside window")
	}
	if s.IsNoob(id, t0.Add(30*time.Minute)) {
		t.Fatalf("window end is exclusive")
	}

	s.Grant(id, t0.Add(2*time.Hour))
	if got := s.Remaining(id, t0.Add(2*time.Hour+10*time.Minute)); got != 20*time.Minute {
		t.Fatalf("remaining=%v want 20m", got)
	}
	if !s.Clear(id) || s.IsNoob(id, t0.Add(2*time.Hour)) {
		t.Fatalf("clear should end protection")
	}
	if s.Clear(id) {
		t.Fatalf("clear on inactive status should report false")
	}

	if err := w.Flush(context.Background()); err != nil {
		t.Fatalf("flush: %v", err)
	}
	rows, _ := mem.LoadNoob(context.Background())
	if len(rows) != 1 || !rows[0].FirstJoinAt.Equal(t0) || !rows[0].GrantedUntil.IsZero() {
		t.Fatalf("persisted row mismatch: %+v", rows)
	}

	reloaded := NewStore(w, 30*time.Minute)
	reloaded.Load(rows)
	if reloaded.FirstJoin(id, t0.Add(3*time.Hour)) {
		t.Fatalf("loaded player is not a first joiner")
	}
}
