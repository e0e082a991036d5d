package core

import (
	"github.com/DomeLiquid/lending/wad"
	"github.com/fox-one/mixin-sdk-go/v2"
	"github.com/gofrs/uuid"
	"github.com/holiman/uint256"
	"github.com/pkg/errors"
)

type (
	Asset struct {
		Id       uuid.UUID `json:"id"`
		Symbol   string    `json:"symbol"`
		Decimals uint8     `json:"decimals"`
	}

	// AssetConfig holds the risk parameters of an asset. Factors are 1e18 fixed point.
	AssetConfig struct {
		LendFactor    *uint256.Int `json:"lendFactor"`
		BorrowFactor  *uint256.Int `json:"borrowFactor"`
		ReserveFactor *uint256.Int `json:"reserveFactor"`

		RateModel RateModel `json:"-"`
	}
)

// NewAssetFromMixin maps a Mixin safe asset onto the registry's asset identity.
func NewAssetFromMixin(asset *mixin.SafeAsset) (Asset, error) {
	id, err := uuid.FromString(asset.AssetID)
	if err != nil {
		return Asset{}, errors.Wrapf(ErrInvalidConfig, "mixin asset id %q", asset.AssetID)
	}
	if asset.Precision < 0 || asset.Precision > MAX_ASSET_DECIMALS {
		return Asset{}, errors.Wrapf(ErrInvalidConfig, "mixin asset precision %d", asset.Precision)
	}
	return Asset{
		Id:       id,
		Symbol:   asset.Symbol,
		Decimals: uint8(asset.Precision),
	}, nil
}

func (a Asset) Validate() error {
	if a.Id == uuid.Nil {
		return errors.Wrap(ErrInvalidConfig, "asset id is nil")
	}
	if a.Decimals > MAX_ASSET_DECIMALS {
		return errors.Wrapf(ErrInvalidConfig, "decimals %d", a.Decimals)
	}
	return nil
}

func (c AssetConfig) Clone() AssetConfig {
	return AssetConfig{
		LendFactor:    wad.Clone(c.LendFactor),
		BorrowFactor:  wad.Clone(c.BorrowFactor),
		ReserveFactor: wad.Clone(c.ReserveFactor),
		RateModel:     c.RateModel,
	}
}

func (c *AssetConfig) Validate() error {
	if c.LendFactor == nil || c.LendFactor.Gt(ONE) {
		return errors.Wrap(ErrInvalidConfig, "lend factor must be within [0, 1]")
	}
	if c.BorrowFactor == nil || c.BorrowFactor.IsZero() || c.BorrowFactor.Gt(ONE) {
		return errors.Wrap(ErrInvalidConfig, "borrow factor must be within (0, 1]")
	}
	if c.ReserveFactor != nil && !c.ReserveFactor.Lt(ONE) {
		return errors.Wrap(ErrInvalidConfig, "reserve factor must be below 1")
	}
	if v, ok := c.RateModel.(interface{ Validate() error }); ok {
		if err := v.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// Update overwrites the lend and borrow factors. Nil fields are left unchanged.
func (c *AssetConfig) Update(next AssetConfig) {
	if next.LendFactor != nil {
		c.LendFactor = wad.Clone(next.LendFactor)
	}
	if next.BorrowFactor != nil {
		c.BorrowFactor = wad.Clone(next.BorrowFactor)
	}
}
