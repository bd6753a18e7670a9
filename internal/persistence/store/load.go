package store

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"peaceclaims.dev/internal/model"
)

// Snapshot is everything eagerly loaded at startup. Reputation is loaded
// lazily per player and is not part of it.
type Snapshot struct {
	Claims      []model.Claim
	Modes       []model.ModeRecord
	Invitations []model.Invitation
	PvpAreas    []model.PvpArea
	Purchased   map[model.PlayerID]int
	Noob        []model.NoobStatus
}

// Load reads every eagerly cached table concurrently.
func Load(ctx context.Context, b Backend) (Snapshot, error) {
	var snap Snapshot
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		snap.Claims, err = b.LoadClaims(gctx)
		return wrap("claims", err)
	})
	g.Go(func() (err error) {
		snap.Modes, err = b.LoadModes(gctx)
		return wrap("modes", err)
	})
	g.Go(func() (err error) {
		snap.Invitations, err = b.LoadInvitations(gctx)
		return wrap("invitations", err)
	})
	g.Go(func() (err error) {
		snap.PvpAreas, err = b.LoadPvpAreas(gctx)
		return wrap("pvp areas", err)
	})
	g.Go(func() (err error) {
		snap.Purchased, err = b.LoadPurchased(gctx)
		return wrap("purchased claims", err)
	})
	g.Go(func() (err error) {
		snap.Noob, err = b.LoadNoob(gctx)
		return wrap("noob status", err)
	})
	if err := g.Wait(); err != nil {
		return Snapshot{}, err
	}
	return snap, nil
}

func wrap(what string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("load %s: %w", what, err)
}
