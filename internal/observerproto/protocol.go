package observerproto

import "peaceclaims.dev/internal/model"

// Version is the observer protocol version (separate from the host bridge protocol).
const Version = "1.0"

// Client -> Server. First message on the observer WS connection, and can be
// re-sent to change the filter.
type SubscribeMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`

	// Optional filters; empty means everything.
	Actions []string `json:"actions,omitempty"`
	World   string   `json:"world,omitempty"`
}

// Server -> Client. One per accepted mutation.
type AuditMsg struct {
	Type  string           `json:"type"`
	Seq   uint64           `json:"seq"`
	Entry model.AuditEntry `json:"entry"`
}

// HTTP response for GET /admin/v1/observer/bootstrap.
type BootstrapResponse struct {
	ProtocolVersion string `json:"protocol_version"`
	Seq             uint64 `json:"seq"`
	Subscribers     int    `json:"subscribers"`
}

// Matches reports whether e passes the subscription's filters.
func (m SubscribeMsg) Matches(e model.AuditEntry) bool {
	if m.World != "" && m.World != e.World {
		return false
	}
	if len(m.Actions) == 0 {
		return true
	}
	for _, a := range m.Actions {
		if a == e.Action {
			return true
		}
	}
	return false
}
