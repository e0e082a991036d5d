package core

import (
	"github.com/DomeLiquid/lending/wad"
	"github.com/gofrs/uuid"
	"github.com/holiman/uint256"
	"github.com/pkg/errors"
)

// Position is an account's claim on one asset pool, kept as internal units on
// both sides. Positions are zeroed, never removed.
type Position struct {
	AccountId uuid.UUID `json:"accountId"`
	AssetId   uuid.UUID `json:"assetId"`

	BalanceUnits *uint256.Int `json:"balanceUnits"`
	DebtUnits    *uint256.Int `json:"debtUnits"`
	LastUpdate   int64        `json:"lastUpdate"`
}

func NewPosition(now int64, accountId, assetId uuid.UUID) *Position {
	return &Position{
		AccountId:    accountId,
		AssetId:      assetId,
		BalanceUnits: wad.Zero(),
		DebtUnits:    wad.Zero(),
		LastUpdate:   now,
	}
}

func (p *Position) Clone() *Position {
	return &Position{
		AccountId:    p.AccountId,
		AssetId:      p.AssetId,
		BalanceUnits: wad.Clone(p.BalanceUnits),
		DebtUnits:    wad.Clone(p.DebtUnits),
		LastUpdate:   p.LastUpdate,
	}
}

func (p *Position) Units(side BalanceSide) *uint256.Int {
	if side == BalanceSideLiabilities {
		return p.DebtUnits
	}
	return p.BalanceUnits
}

func (p *Position) IsEmpty(side BalanceSide) bool {
	return p.Units(side).IsZero()
}

func (p *Position) IncreaseUnits(side BalanceSide, units *uint256.Int) error {
	next, err := wad.Add(p.Units(side), units)
	if err != nil {
		return mathErr(err, "increase units")
	}
	p.setUnits(side, next)
	return nil
}

func (p *Position) DecreaseUnits(side BalanceSide, units *uint256.Int) error {
	if p.Units(side).Lt(units) {
		if side == BalanceSideLiabilities {
			return ErrRepaymentExceedsDebt
		}
		return ErrInsufficientBalance
	}
	p.setUnits(side, new(uint256.Int).Sub(p.Units(side), units))
	return nil
}

func (p *Position) setUnits(side BalanceSide, units *uint256.Int) {
	if side == BalanceSideLiabilities {
		p.DebtUnits = units
	} else {
		p.BalanceUnits = units
	}
}

// changeTotals mirrors a position change on the pool totals.
func changeTotals(a *AssetState, side BalanceSide, units *uint256.Int, increase bool) error {
	total := a.TotalBalanceUnits
	if side == BalanceSideLiabilities {
		total = a.TotalDebtUnits
	}

	var (
		next *uint256.Int
		err  error
	)
	if increase {
		next, err = wad.Add(total, units)
	} else {
		next, err = wad.Sub(total, units)
	}
	if err != nil {
		return errors.Wrapf(ErrInternalInvariantViolated, "%s totals of %s: %v", side, a.Symbol, err)
	}

	if side == BalanceSideLiabilities {
		a.TotalDebtUnits = next
	} else {
		a.TotalBalanceUnits = next
	}
	return nil
}
