package modes

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"peaceclaims.dev/internal/model"
	"peaceclaims.dev/internal/persistence/store"
)

var t0 = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func newStore(t *testing.T) (*Store, *store.Memory, *store.Writer) {
	mem := store.NewMemory()
	w := store.NewWriter(store.WriterConfig{Backend: mem})
	t.Cleanup(func() { _ = w.Close() })
	return NewStore(w, 24*time.Hour), mem, w
}

func TestFirstChoiceSkipsCooldown(t *testing.T) {
	s, _, _ := newStore(t)
	p := uuid.New()
	require.Equal(t, model.ModeUnset, s.ModeOf(p))

	prev, err := s.ChangeMode(p, model.ModePeaceful, t0)
	require.NoError(t, err)
	require.Equal(t, model.ModeUnset, prev)

	_, err = s.ChangeMode(p, model.ModeNormal, t0.Add(time.Hour))
	require.ErrorIs(t, err, ErrOnCooldown)
	require.Equal(t, 23*time.Hour, s.CooldownRemaining(p, t0.Add(time.Hour)))

	prev, err = s.ChangeMode(p, model.ModeNormal, t0.Add(24*time.Hour))
	require.NoError(t, err)
	require.Equal(t, model.ModePeaceful, prev)
	require.Equal(t, model.ModeNormal, s.ModeOf(p))
}

func TestSameModeAndUnset(t *testing.T) {
	s, _, _ := newStore(t)
	p := uuid.New()
	_, _ = s.SetMode(p, model.ModeNormal, t0)
	_, err := s.ChangeMode(p, model.ModeNormal, t0.Add(48*time.Hour))
	require.ErrorIs(t, err, ErrSameMode)
	_, err = s.ChangeMode(p, model.ModeUnset, t0)
	require.ErrorIs(t, err, ErrUnset)
	_, err = s.SetMode(p, model.ModeUnset, t0)
	require.ErrorIs(t, err, ErrUnset)
}

func TestSetModePersists(t *testing.T) {
	s, mem, w := newStore(t)
	p := uuid.New()
	_, err := s.SetMode(p, model.ModePeaceful, t0)
	require.NoError(t, err)
	require.NoError(t, w.Flush(context.Background()))

	rows, err := mem.LoadModes(context.Background())
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.Equal(t, model.ModePeaceful, rows[0].Mode)
	require.True(t, rows[0].LastModeChangeAt.Equal(t0))

	fresh, _, _ := newStore(t)
	fresh.Load(rows)
	require.Equal(t, model.ModePeaceful, fresh.ModeOf(p))
	require.Equal(t, 1, fresh.Counts()[model.ModePeaceful])
}

func TestPendingExpiry(t *testing.T) {
	p := NewPending(30 * time.Second)
	id := uuid.New()

	p.Request(id, model.ModeNormal, t0)
	mode, ok := p.Take(id, t0.Add(10*time.Second))
	require.True(t, ok)
	require.Equal(t, model.ModeNormal, mode)
	_, ok = p.Take(id, t0.Add(10*time.Second))
	require.False(t, ok, "take consumes the request")

	p.Request(id, model.ModePeaceful, t0)
	_, ok = p.Take(id, t0.Add(31*time.Second))
	require.False(t, ok)
	require.Equal(t, 0, p.Len())

	p.Request(id, model.ModePeaceful, t0)
	require.True(t, p.Cancel(id))
	require.False(t, p.Cancel(id))

	p.Request(uuid.New(), model.ModeNormal, t0)
	p.Request(uuid.New(), model.ModeNormal, t0.Add(time.Minute))
	require.Equal(t, 1, p.Expire(t0.Add(45*time.Second)))
}

func TestPendingConcurrent(t *testing.T) {
	p := NewPending(time.Minute)
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			id := uuid.New()
			for j := 0; j < 100; j++ {
				p.Request(id, model.ModeNormal, t0)
				p.Take(id, t0)
				p.Expire(t0)
			}
		}()
	}
	wg.Wait()
	require.Equal(t, 0, p.Len())
}
