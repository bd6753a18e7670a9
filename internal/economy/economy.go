// Package economy adapts an optional host economy for buying extra claims.
package economy

import (
	"context"
	"fmt"

	"peaceclaims.dev/internal/claims"
	"peaceclaims.dev/internal/model"
	"peaceclaims.dev/internal/protocol"
)

var (
	ErrUnavailable = protocol.New(protocol.ErrBadRequest, "economy_unavailable")
	ErrFunds       = protocol.New(protocol.ErrNoFunds, "insufficient_funds")
	ErrPurchaseCap = protocol.New(protocol.ErrLimit, "purchase_limit")
	ErrAmount      = protocol.New(protocol.ErrBadRequest, "bad_number")
)

//go:generate go tool mockgen -destination=./mocks/economy_mock.go -package=mocks . Economy

// Economy is the host's currency provider.
type Economy interface {
	Available() bool
	Balance(ctx context.Context, id model.PlayerID) (float64, error)
	Withdraw(ctx context.Context, id model.PlayerID, amount float64) error
}

// None is used when no economy is installed; purchasing is disabled.
type None struct{}

func (None) Available() bool { return false }
func (None) Balance(context.Context, model.PlayerID) (float64, error) {
	return 0, ErrUnavailable
}
func (None) Withdraw(context.Context, model.PlayerID, float64) error { return ErrUnavailable }

// Purchaser sells claim slots at a fixed price.
type Purchaser struct {
	Economy Economy
	Claims  *claims.Store
	Price   float64
	// Max caps the purchased count per player.
	Max int
}

// Buy withdraws n slots' worth and raises id's purchased count. It returns
// the new purchased count and the amount charged.
func (p Purchaser) Buy(ctx context.Context, id model.PlayerID, n int) (int, float64, error) {
	if p.Economy == nil || !p.Economy.Available() {
		return 0, 0, ErrUnavailable
	}
	if n <= 0 {
		return 0, 0, ErrAmount
	}
	limit := p.Max
	if limit <= 0 || limit > claims.MaxPurchased {
		limit = claims.MaxPurchased
	}
	have := p.Claims.Purchased(id)
	if have+n > limit {
		return have, 0, ErrPurchaseCap
	}
	cost := p.Price * float64(n)
	bal, err := p.Economy.Balance(ctx, id)
	if err != nil {
		return have, 0, fmt.Errorf("balance: %w", err)
	}
	if bal < cost {
		return have, 0, ErrFunds
	}
	if err := p.Economy.Withdraw(ctx, id, cost); err != nil {
		return have, 0, fmt.Errorf("withdraw: %w", err)
	}
	total, err := p.Claims.AddPurchased(id, n)
	if err != nil {
		return have, cost, err
	}
	return total, cost, nil
}
