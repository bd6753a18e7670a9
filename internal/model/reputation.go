package model

import "time"

const (
	MinReputation = -15
	MaxReputation = 15
)

type Reputation struct {
	PlayerID             PlayerID
	Value                int
	TotalPlaytimeHours   float64
	LastPlaytimeUpdateAt time.Time
}

// ClampReputation bounds v to [MinReputation, MaxReputation].
func ClampReputation(v int) int {
	if v < MinReputation {
		return MinReputation
	}
	if v > MaxReputation {
		return MaxReputation
	}
	return v
}
