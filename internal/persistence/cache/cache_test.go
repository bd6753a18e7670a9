package cache

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"peaceclaims.dev/internal/model"
	"peaceclaims.dev/internal/persistence/store"
)

func TestWriteThroughReadYourWrites(t *testing.T) {
	mem := store.NewMemory()
	w := store.NewWriter(store.WriterConfig{Backend: mem})
	defer w.Close()

	c := New[model.PlayerID, model.ModeRecord](w)
	id := uuid.New()
	rec := model.ModeRecord{PlayerID: id, Mode: model.ModeNormal}
	p := c.Put(id, rec, store.Op{Name: "save mode", Run: func(ctx context.Context, b store.Backend) error {
		return b.SaveMode(ctx, rec)
	}})

	got, ok := c.Get(id)
	require.True(t, ok, "write must be visible before persistence completes")
	require.Equal(t, model.ModeNormal, got.Mode)

	require.NoError(t, p.Wait(context.Background()))
	modes, err := mem.LoadModes(context.Background())
	require.NoError(t, err)
	require.Len(t, modes, 1)
}

func TestDeleteFuncRemovesMatches(t *testing.T) {
	w := store.NewWriter(store.WriterConfig{Backend: store.NewMemory()})
	defer w.Close()

	c := New[int, string](w)
	for i := 0; i < 6; i++ {
		c.Warm(i, "v")
	}
	removed, p := c.DeleteFunc(func(k int, _ string) bool { return k%2 == 0 }, store.Op{
		Name: "noop",
		Run:  func(context.Context, store.Backend) error { return nil },
	})
	require.NoError(t, p.Wait(context.Background()))
	require.Len(t, removed, 3)
	require.Equal(t, 3, c.Len())
	_, ok := c.Get(2)
	require.False(t, ok)
}
