package protocol

// Pos is a block position on the wire.
type Pos struct {
	World string `json:"world"`
	X     int    `json:"x"`
	Y     int    `json:"y"`
	Z     int    `json:"z"`
}

type HelloMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	ServerName      string `json:"server_name"`
	// Token is required when the bridge is configured with a shared secret.
	Token    string `json:"token,omitempty"`
	MaxQueue int    `json:"max_queue,omitempty"`
	// Economy is set when the host can answer ECONOMY requests.
	Economy bool `json:"economy,omitempty"`
}

type WelcomeMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	SessionID       string `json:"session_id"`
}

// JoinMsg announces a player together with their permission nodes.
type JoinMsg struct {
	Type   string   `json:"type"`
	Player string   `json:"player"`
	Name   string   `json:"name"`
	Nodes  []string `json:"nodes,omitempty"`
}

type QuitMsg struct {
	Type   string `json:"type"`
	Player string `json:"player"`
}

// PermsMsg replaces the permission nodes of an online player.
type PermsMsg struct {
	Type   string   `json:"type"`
	Player string   `json:"player"`
	Nodes  []string `json:"nodes"`
}

type CommandMsg struct {
	Type    string `json:"type"`
	ReqID   string `json:"req_id"`
	Player  string `json:"player,omitempty"`
	Console bool   `json:"console,omitempty"`
	Pos     Pos    `json:"pos"`
	Line    string `json:"line"`
}

type ReplyMsg struct {
	Type  string   `json:"type"`
	ReqID string   `json:"req_id"`
	Lines []string `json:"lines"`
	Code  string   `json:"code,omitempty"`
}

// Check kinds.
const (
	CheckBuild     = "build"
	CheckBreak     = "break"
	CheckContainer = "container"
	CheckDoor      = "door"
	CheckAttack    = "attack"
	CheckExplosion = "explosion"
)

type CheckMsg struct {
	Type   string `json:"type"`
	ReqID  string `json:"req_id"`
	Kind   string `json:"kind"`
	Player string `json:"player,omitempty"`
	// Victim is set for attack checks.
	Victim string `json:"victim,omitempty"`
	Pos    Pos    `json:"pos"`
}

type VerdictMsg struct {
	Type    string `json:"type"`
	ReqID   string `json:"req_id"`
	Allowed bool   `json:"allowed"`
	Reason  string `json:"reason,omitempty"`
}

type KillMsg struct {
	Type   string `json:"type"`
	Killer string `json:"killer"`
	Victim string `json:"victim"`
	Pos    Pos    `json:"pos"`
}

// NotifyMsg carries a rendered message for one player.
type NotifyMsg struct {
	Type   string `json:"type"`
	Player string `json:"player"`
	Key    string `json:"key"`
	Text   string `json:"text"`
}

type ErrorMsg struct {
	Type    string `json:"type"`
	ReqID   string `json:"req_id,omitempty"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Economy operations.
const (
	EconomyBalance  = "balance"
	EconomyWithdraw = "withdraw"
)

type EconomyMsg struct {
	Type   string  `json:"type"`
	ReqID  string  `json:"req_id"`
	Op     string  `json:"op"`
	Player string  `json:"player"`
	Amount float64 `json:"amount,omitempty"`
}

// EconomyResultMsg answers an EconomyMsg. Error is empty on success;
// "insufficient_funds" marks a refused withdrawal.
type EconomyResultMsg struct {
	Type    string  `json:"type"`
	ReqID   string  `json:"req_id"`
	Balance float64 `json:"balance,omitempty"`
	Error   string  `json:"error,omitempty"`
}
