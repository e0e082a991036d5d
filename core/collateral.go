package core

import (
	"github.com/gofrs/uuid"
)

// IndexedSet is an enumerable set of asset ids with O(1) membership and removal.
// Order is insertion order until a removal swaps the last item into the gap.
type IndexedSet struct {
	items []uuid.UUID
	index map[uuid.UUID]int
}

func NewIndexedSet(items ...uuid.UUID) IndexedSet {
	s := IndexedSet{index: make(map[uuid.UUID]int, len(items))}
	for _, id := range items {
		s.Add(id)
	}
	return s
}

func (s *IndexedSet) Add(id uuid.UUID) bool {
	if s.index == nil {
		s.index = make(map[uuid.UUID]int)
	}
	if _, ok := s.index[id]; ok {
		return false
	}
	s.index[id] = len(s.items)
	s.items = append(s.items, id)
	return true
}

func (s *IndexedSet) Remove(id uuid.UUID) bool {
	i, ok := s.index[id]
	if !ok {
		return false
	}
	last := len(s.items) - 1
	if i != last {
		moved := s.items[last]
		s.items[i] = moved
		s.index[moved] = i
	}
	s.items = s.items[:last]
	delete(s.index, id)
	return true
}

func (s *IndexedSet) Contains(id uuid.UUID) bool {
	_, ok := s.index[id]
	return ok
}

// IndexOf returns the slot of id, or -1.
func (s *IndexedSet) IndexOf(id uuid.UUID) int {
	if i, ok := s.index[id]; ok {
		return i
	}
	return -1
}

func (s *IndexedSet) Len() int {
	return len(s.items)
}

// Items returns a copy of the members.
func (s *IndexedSet) Items() []uuid.UUID {
	out := make([]uuid.UUID, len(s.items))
	copy(out, s.items)
	return out
}

func (s *IndexedSet) Clone() IndexedSet {
	return NewIndexedSet(s.items...)
}

func (a *Account) EnableCollateral(assetId uuid.UUID) {
	a.Collateral.Add(assetId)
}

func (a *Account) EnableLoan(assetId uuid.UUID) {
	a.Loans.Add(assetId)
}

// DisableCollateral is a no-op while the account still holds balance units.
func (a *Account) DisableCollateral(assetId uuid.UUID) bool {
	if p := a.Positions[assetId]; p != nil && !p.IsEmpty(BalanceSideAssets) {
		return false
	}
	return a.Collateral.Remove(assetId)
}

// DisableLoan is a no-op while the account still owes debt units.
func (a *Account) DisableLoan(assetId uuid.UUID) bool {
	if p := a.Positions[assetId]; p != nil && !p.IsEmpty(BalanceSideLiabilities) {
		return false
	}
	return a.Loans.Remove(assetId)
}
