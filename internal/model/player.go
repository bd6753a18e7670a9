package model

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// PlayerID is the host's stable player identifier.
type PlayerID = uuid.UUID

// ParsePlayerID accepts both dashed and undashed uuid forms.
func ParsePlayerID(s string) (PlayerID, error) {
	return uuid.Parse(strings.TrimSpace(s))
}

type Mode int

const (
	ModeUnset Mode = iota
	ModePeaceful
	ModeNormal
)

func (m Mode) String() string {
	switch m {
	case ModePeaceful:
		return "peaceful"
	case ModeNormal:
		return "normal"
	default:
		return "unset"
	}
}

func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "peaceful", "peace", "p":
		return ModePeaceful, nil
	case "normal", "n", "pvp":
		return ModeNormal, nil
	default:
		return ModeUnset, fmt.Errorf("unknown mode %q", s)
	}
}

type ModeRecord struct {
	PlayerID         PlayerID
	Mode             Mode
	LastModeChangeAt time.Time
}

// NoobStatus tracks temporary PVP immunity. The first join opens the
// automatic window; admins may open another one or end it early.
type NoobStatus struct {
	PlayerID     PlayerID
	FirstJoinAt  time.Time
	GrantedUntil time.Time
}
