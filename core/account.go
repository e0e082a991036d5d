package core

import (
	"context"
	"strconv"

	"github.com/DomeLiquid/lending/utils"
	"github.com/gofrs/uuid"
)

type (
	AccountStore interface {
		GetAccountById(ctx context.Context, accountId uuid.UUID) (*Account, error)
		UpsertAccount(ctx context.Context, account *Account) error
	}

	Account struct {
		Id           uuid.UUID    `json:"id"`
		AccountFlags AccountFlags `json:"accountFlags"`

		Positions  map[uuid.UUID]*Position `json:"positions"`
		Collateral IndexedSet              `json:"-"`
		Loans      IndexedSet              `json:"-"`

		CreatedAt int64 `json:"createdAt"`
		UpdatedAt int64 `json:"updatedAt"`
	}
)

type AccountFlags uint8

const (
	// ClosedFlag marks a position whose residual debt was written off.
	ClosedFlag AccountFlags = 1 << 0
)

func (a *Account) SetFlag(flag AccountFlags) {
	a.AccountFlags |= flag
}

func (a *Account) UnsetFlag(flag AccountFlags) {
	a.AccountFlags &= ^flag
}

func (a *Account) GetFlag(flag AccountFlags) bool {
	return a.AccountFlags&flag != 0
}

// AccountIdFor derives a stable account id from an owner key and a sub-account index.
func AccountIdFor(owner string, index uint8) uuid.UUID {
	return utils.GenUuidFromOrderedStrings(owner, strconv.Itoa(int(index)))
}

func NewAccount(now int64, id uuid.UUID) *Account {
	return &Account{
		Id:         id,
		Positions:  map[uuid.UUID]*Position{},
		Collateral: NewIndexedSet(),
		Loans:      NewIndexedSet(),
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

func (a *Account) Clone() *Account {
	positions := make(map[uuid.UUID]*Position, len(a.Positions))
	for id, p := range a.Positions {
		positions[id] = p.Clone()
	}
	return &Account{
		Id:           a.Id,
		AccountFlags: a.AccountFlags,
		Positions:    positions,
		Collateral:   a.Collateral.Clone(),
		Loans:        a.Loans.Clone(),
		CreatedAt:    a.CreatedAt,
		UpdatedAt:    a.UpdatedAt,
	}
}

func (a *Account) Position(assetId uuid.UUID) *Position {
	return a.Positions[assetId]
}

func (a *Account) FindOrCreatePosition(now int64, assetId uuid.UUID) *Position {
	p, ok := a.Positions[assetId]
	if !ok {
		p = NewPosition(now, a.Id, assetId)
		a.Positions[assetId] = p
	}
	p.LastUpdate = now
	a.UpdatedAt = now
	return p
}
