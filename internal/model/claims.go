package model

import (
	"fmt"
	"time"
)

// ChunkSize is the edge length of a chunk in blocks.
const ChunkSize = 16

// Build height of the host world. PVP areas always span all of it.
const (
	MinBuildY = -64
	MaxBuildY = 319
)

type ChunkKey struct {
	World string
	X     int
	Z     int
}

func (k ChunkKey) String() string { return fmt.Sprintf("%s:%d,%d", k.World, k.X, k.Z) }

// Block bounds of the chunk column (inclusive).
func (k ChunkKey) MinBlockX() int { return k.X * ChunkSize }
func (k ChunkKey) MinBlockZ() int { return k.Z * ChunkSize }
func (k ChunkKey) MaxBlockX() int { return k.X*ChunkSize + ChunkSize - 1 }
func (k ChunkKey) MaxBlockZ() int { return k.Z*ChunkSize + ChunkSize - 1 }

type Location struct {
	World string
	X     int
	Y     int
	Z     int
}

func (l Location) Chunk() ChunkKey {
	return ChunkKey{World: l.World, X: floorDiv(l.X, ChunkSize), Z: floorDiv(l.Z, ChunkSize)}
}

func floorDiv(a, b int) int {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}

type Claim struct {
	Owner     PlayerID
	Key       ChunkKey
	ClaimedAt time.Time
}

// Level is the discrete invitation permission ladder used by the UI.
type Level int

const (
	LevelNone Level = iota
	LevelBuild
	LevelContainers
	LevelFull
)

func (l Level) String() string {
	switch l {
	case LevelBuild:
		return "build"
	case LevelContainers:
		return "build+containers"
	case LevelFull:
		return "full"
	default:
		return "none"
	}
}

// Next cycles none -> build -> build+containers -> full -> none.
func (l Level) Next() Level {
	if l >= LevelFull {
		return LevelNone
	}
	return l + 1
}

// Invitation grants another player rights on every claim of Owner.
type Invitation struct {
	Owner                PlayerID
	Invitee              PlayerID
	InvitedBy            PlayerID
	CanBuild             bool
	CanAccessContainers  bool
	CanManageInvitations bool
	// InvitedAt is when the owner last (re)invited. Permission changes keep it.
	InvitedAt time.Time
}

func (inv Invitation) Level() Level {
	switch {
	case inv.CanManageInvitations:
		return LevelFull
	case inv.CanAccessContainers:
		return LevelContainers
	case inv.CanBuild:
		return LevelBuild
	default:
		return LevelNone
	}
}

// WithLevel returns inv with its three flags set from l.
func (inv Invitation) WithLevel(l Level) Invitation {
	inv.CanBuild = l >= LevelBuild
	inv.CanAccessContainers = l >= LevelContainers
	inv.CanManageInvitations = l >= LevelFull
	return inv
}

// Any reports whether the invitation grants anything at all.
func (inv Invitation) Any() bool {
	return inv.CanBuild || inv.CanAccessContainers || inv.CanManageInvitations
}
