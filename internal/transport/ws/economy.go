package ws

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"peaceclaims.dev/internal/economy"
	"peaceclaims.dev/internal/model"
	"peaceclaims.dev/internal/protocol"
)

// Economy asks a connected host for balances and withdrawals. It is
// available while at least one host announced an economy in HELLO.
type Economy struct {
	Hub *Hub
	// Timeout bounds one round trip to the host.
	Timeout time.Duration
}

func NewEconomy(h *Hub, timeout time.Duration) *Economy {
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return &Economy{Hub: h, Timeout: timeout}
}

func (e *Economy) Available() bool {
	e.Hub.mu.Lock()
	defer e.Hub.mu.Unlock()
	return len(e.Hub.economy) > 0
}

func (e *Economy) Balance(ctx context.Context, id model.PlayerID) (float64, error) {
	res, err := e.request(ctx, protocol.EconomyMsg{Op: protocol.EconomyBalance, Player: id.String()})
	if err != nil {
		return 0, err
	}
	if res.Error != "" {
		return 0, fmt.Errorf("host economy: %s", res.Error)
	}
	return res.Balance, nil
}

func (e *Economy) Withdraw(ctx context.Context, id model.PlayerID, amount float64) error {
	res, err := e.request(ctx, protocol.EconomyMsg{Op: protocol.EconomyWithdraw, Player: id.String(), Amount: amount})
	if err != nil {
		return err
	}
	switch res.Error {
	case "":
		return nil
	case "insufficient_funds":
		return economy.ErrFunds
	}
	return fmt.Errorf("host economy: %s", res.Error)
}

func (e *Economy) request(ctx context.Context, m protocol.EconomyMsg) (protocol.EconomyResultMsg, error) {
	h := e.Hub
	m.Type = protocol.TypeEconomy
	m.ReqID = fmt.Sprintf("E%d", h.nextReq.Add(1))
	b, err := json.Marshal(m)
	if err != nil {
		return protocol.EconomyResultMsg{}, err
	}
	done := make(chan protocol.EconomyResultMsg, 1)

	h.mu.Lock()
	sids := make([]string, 0, len(h.economy))
	for sid := range h.economy {
		sids = append(sids, sid)
	}
	if len(sids) == 0 {
		h.mu.Unlock()
		return protocol.EconomyResultMsg{}, economy.ErrUnavailable
	}
	sort.Strings(sids)
	out := h.sessions[sids[0]]
	select {
	case out <- b:
	default:
		h.mu.Unlock()
		h.dropped.Add(1)
		return protocol.EconomyResultMsg{}, protocol.ErrTimedOut
	}
	h.pending[m.ReqID] = done
	h.mu.Unlock()

	defer func() {
		h.mu.Lock()
		delete(h.pending, m.ReqID)
		h.mu.Unlock()
	}()
	ctx, cancel := context.WithTimeout(ctx, e.Timeout)
	defer cancel()
	select {
	case res := <-done:
		return res, nil
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return protocol.EconomyResultMsg{}, protocol.ErrTimedOut
		}
		return protocol.EconomyResultMsg{}, ctx.Err()
	}
}

// resolve hands an ECONOMY_RESULT to the request waiting for it. Results
// nobody waits for any more are dropped.
func (h *Hub) resolve(msg []byte) error {
	var res protocol.EconomyResultMsg
	if err := json.Unmarshal(msg, &res); err != nil {
		return err
	}
	h.mu.Lock()
	done, ok := h.pending[res.ReqID]
	h.mu.Unlock()
	if ok {
		select {
		case done <- res:
		default:
		}
	}
	return nil
}
