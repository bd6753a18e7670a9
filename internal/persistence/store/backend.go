package store

import (
	"context"
	"errors"

	"peaceclaims.dev/internal/model"
)

// ErrDuplicateKey is returned by InsertClaim when (world, x, z) is taken.
var ErrDuplicateKey = errors.New("duplicate key")

// Backend is the durable CRUD surface. Implementations must reject a second
// claim on the same chunk; every other write is an idempotent upsert/delete.
type Backend interface {
	LoadClaims(ctx context.Context) ([]model.Claim, error)
	InsertClaim(ctx context.Context, c model.Claim) error
	DeleteClaim(ctx context.Context, key model.ChunkKey) error
	DeleteClaimsOf(ctx context.Context, owner model.PlayerID) error

	LoadModes(ctx context.Context) ([]model.ModeRecord, error)
	SaveMode(ctx context.Context, r model.ModeRecord) error

	LoadInvitations(ctx context.Context) ([]model.Invitation, error)
	SaveInvitation(ctx context.Context, inv model.Invitation) error
	DeleteInvitation(ctx context.Context, owner, invitee model.PlayerID) error
	DeleteInvitationsTo(ctx context.Context, invitee model.PlayerID) error
	DeleteInvitationsBy(ctx context.Context, owner model.PlayerID) error

	LoadReputation(ctx context.Context, id model.PlayerID) (model.Reputation, bool, error)
	SaveReputation(ctx context.Context, r model.Reputation) error

	LoadPvpAreas(ctx context.Context) ([]model.PvpArea, error)
	SavePvpArea(ctx context.Context, a model.PvpArea) error
	DeletePvpArea(ctx context.Context, name string) error

	LoadPurchased(ctx context.Context) (map[model.PlayerID]int, error)
	SavePurchased(ctx context.Context, id model.PlayerID, n int) error

	LoadNoob(ctx context.Context) ([]model.NoobStatus, error)
	SaveNoob(ctx context.Context, s model.NoobStatus) error

	Close() error
}
