package core

import (
	"sync"

	"github.com/DomeLiquid/lending/wad"
	"github.com/gofrs/uuid"
	"github.com/holiman/uint256"
)

// Oracle prices one base unit of an asset in a common quote, 1e18 fixed point.
// A nil price is read as zero.
type Oracle interface {
	Price(assetId uuid.UUID) *uint256.Int
}

// PriceFeed is an in-memory Oracle fed by the host.
type PriceFeed struct {
	mu     sync.RWMutex
	prices map[uuid.UUID]*uint256.Int
}

func NewPriceFeed() *PriceFeed {
	return &PriceFeed{prices: map[uuid.UUID]*uint256.Int{}}
}

func (f *PriceFeed) SetPrice(assetId uuid.UUID, price *uint256.Int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.prices[assetId] = wad.Clone(price)
}

func (f *PriceFeed) Price(assetId uuid.UUID) *uint256.Int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	p, ok := f.prices[assetId]
	if !ok {
		return nil
	}
	return wad.Clone(p)
}

func priceOf(oracle Oracle, assetId uuid.UUID) *uint256.Int {
	if oracle == nil {
		return wad.Zero()
	}
	return wad.Clone(oracle.Price(assetId))
}
