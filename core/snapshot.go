package core

import (
	"context"

	"github.com/gofrs/uuid"
)

type (
	StateStore interface {
		SaveState(ctx context.Context, state *State) error
		LoadState(ctx context.Context) (*State, error)
	}

	// State is the whole ledger: asset records keyed by asset id and account
	// records keyed by account id. The engine owns one State and mutates it only
	// inside an operation.
	State struct {
		Assets   map[uuid.UUID]*AssetState `json:"assets"`
		Accounts map[uuid.UUID]*Account    `json:"accounts"`
		Sequence uint64                    `json:"sequence"`
	}
)

func NewState() *State {
	return &State{
		Assets:   map[uuid.UUID]*AssetState{},
		Accounts: map[uuid.UUID]*Account{},
	}
}

func (s *State) Clone() *State {
	out := &State{
		Assets:   make(map[uuid.UUID]*AssetState, len(s.Assets)),
		Accounts: make(map[uuid.UUID]*Account, len(s.Accounts)),
		Sequence: s.Sequence,
	}
	for id, a := range s.Assets {
		out.Assets[id] = a.Clone()
	}
	for id, a := range s.Accounts {
		out.Accounts[id] = a.Clone()
	}
	return out
}
