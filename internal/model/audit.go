package model

import "time"

// AuditEntry records one accepted domain mutation.
type AuditEntry struct {
	At     time.Time `json:"at"`
	Actor  string    `json:"actor,omitempty"`
	Action string    `json:"action"` // e.g. "CLAIM", "MODE_CHANGE"
	Target string    `json:"target,omitempty"`
	World  string    `json:"world,omitempty"`
	X      int       `json:"x"`
	Z      int       `json:"z"`
	Detail string    `json:"detail,omitempty"`
}
