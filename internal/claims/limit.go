package claims

import (
	"strconv"
	"strings"
)

// Permission nodes that raise the claim limit.
const (
	LimitNodePrefix = "peaceclaims.limit."
	UnlimitedNode   = LimitNodePrefix + "unlimited"
)

// Limit is the number of chunks a player may hold.
type Limit struct {
	N         int
	Unlimited bool
}

func (l Limit) Allows(count int) bool { return l.Unlimited || count < l.N }

func (l Limit) String() string {
	if l.Unlimited {
		return "unlimited"
	}
	return strconv.Itoa(l.N)
}

// LimitFor computes base + purchased + the highest permission bonus. Bonus
// nodes are either peaceclaims.limit.<n> or peaceclaims.limit.<group> with
// the group's bonus taken from groups.
func LimitFor(base, purchased int, groups map[string]int, nodes []string) Limit {
	bonus := 0
	for _, node := range nodes {
		node = strings.ToLower(strings.TrimSpace(node))
		if grantsUnlimited(node) {
			return Limit{Unlimited: true}
		}
		suffix, ok := strings.CutPrefix(node, LimitNodePrefix)
		if !ok || suffix == "" {
			continue
		}
		if n, err := strconv.Atoi(suffix); err == nil {
			bonus = max(bonus, n)
			continue
		}
		if n, ok := groups[suffix]; ok {
			bonus = max(bonus, n)
		}
	}
	return Limit{N: base + purchased + bonus}
}

// grantsUnlimited reports whether node is the unlimited node or a wildcard
// covering it, such as "*", "peaceclaims.*" or "peaceclaims.limit.*".
func grantsUnlimited(node string) bool {
	if node == UnlimitedNode || node == "*" {
		return true
	}
	prefix, ok := strings.CutSuffix(node, "*")
	return ok && strings.HasSuffix(prefix, ".") && strings.HasPrefix(UnlimitedNode, prefix)
}
