package protocol

import "encoding/json"

// Version of the host bridge protocol.
const Version = "1.0"

// Message types. The game host sends HELLO first and gets WELCOME back;
// everything after that may arrive in any order.
const (
	TypeHello   = "HELLO"
	TypeWelcome = "WELCOME"
	TypeJoin    = "JOIN"
	TypeQuit    = "QUIT"
	TypePerms   = "PERMS"
	TypeCommand = "COMMAND"
	TypeReply   = "REPLY"
	TypeCheck   = "CHECK"
	TypeVerdict = "VERDICT"
	TypeKill    = "KILL"
	TypeNotify  = "NOTIFY"
	TypeError   = "ERROR"

	// ECONOMY goes to a host that announced an economy in HELLO; the host
	// answers with ECONOMY_RESULT carrying the same req_id.
	TypeEconomy       = "ECONOMY"
	TypeEconomyResult = "ECONOMY_RESULT"
)

// BaseMessage lets us route unknown JSON messages by type.
type BaseMessage struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version,omitempty"`
}

func DecodeBase(b []byte) (BaseMessage, error) {
	var m BaseMessage
	err := json.Unmarshal(b, &m)
	return m, err
}
