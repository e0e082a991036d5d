package core

import (
	"context"

	"github.com/DomeLiquid/lending/wad"
	"github.com/gofrs/uuid"
	"github.com/holiman/uint256"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

type (
	AssetStore interface {
		UpsertAsset(ctx context.Context, asset *AssetState) error
		GetAssetById(ctx context.Context, assetId uuid.UUID) (*AssetState, error)
		ListAssets(ctx context.Context) ([]*AssetState, error)
	}

	// AssetState is the registry entry of an asset together with its pool totals.
	AssetState struct {
		Asset

		VaultRef string       `json:"vaultRef"`
		BaseUnit *uint256.Int `json:"baseUnit"`
		Config   AssetConfig  `json:"config"`

		Cash               *uint256.Int `json:"cash"`
		Reserves           *uint256.Int `json:"reserves"`
		CachedTotalBorrows *uint256.Int `json:"cachedTotalBorrows"`
		TotalBalanceUnits  *uint256.Int `json:"totalBalanceUnits"`
		TotalDebtUnits     *uint256.Int `json:"totalDebtUnits"`
		LastAccrual        int64        `json:"lastAccrual"`

		CreatedAt int64 `json:"createdAt"`
		UpdatedAt int64 `json:"updatedAt"`
	}
)

type BalanceSide uint8

const (
	BalanceSideAssets BalanceSide = iota
	BalanceSideLiabilities
)

func (bs BalanceSide) String() string {
	switch bs {
	case BalanceSideAssets:
		return "Assets"
	case BalanceSideLiabilities:
		return "Liabilities"
	default:
		return "Unknown"
	}
}

func NewAssetState(now int64, asset Asset, vaultRef string, baseUnit *uint256.Int, config AssetConfig) *AssetState {
	return &AssetState{
		Asset:              asset,
		VaultRef:           vaultRef,
		BaseUnit:           wad.Clone(baseUnit),
		Config:             config.Clone(),
		Cash:               wad.Zero(),
		Reserves:           wad.Zero(),
		CachedTotalBorrows: wad.Zero(),
		TotalBalanceUnits:  wad.Zero(),
		TotalDebtUnits:     wad.Zero(),
		LastAccrual:        now,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
}

func (a *AssetState) Clone() *AssetState {
	return &AssetState{
		Asset:              a.Asset,
		VaultRef:           a.VaultRef,
		BaseUnit:           wad.Clone(a.BaseUnit),
		Config:             a.Config.Clone(),
		Cash:               wad.Clone(a.Cash),
		Reserves:           wad.Clone(a.Reserves),
		CachedTotalBorrows: wad.Clone(a.CachedTotalBorrows),
		TotalBalanceUnits:  wad.Clone(a.TotalBalanceUnits),
		TotalDebtUnits:     wad.Clone(a.TotalDebtUnits),
		LastAccrual:        a.LastAccrual,
		CreatedAt:          a.CreatedAt,
		UpdatedAt:          a.UpdatedAt,
	}
}

// TotalUnderlying is what suppliers collectively own: cash + borrows - reserves.
func (a *AssetState) TotalUnderlying() (*uint256.Int, error) {
	total, err := wad.Add(a.Cash, a.CachedTotalBorrows)
	if err != nil {
		return nil, mathErr(err, "total underlying")
	}
	return wad.SubSaturating(total, a.Reserves), nil
}

// ExchangeRate is the underlying amount of baseUnit internal units, floored to
// baseUnit precision. It is reported only; conversions use the totals.
func (a *AssetState) ExchangeRate(side BalanceSide) (*uint256.Int, error) {
	switch side {
	case BalanceSideAssets:
		if a.TotalBalanceUnits.IsZero() {
			return wad.Clone(a.BaseUnit), nil
		}
		total, err := a.TotalUnderlying()
		if err != nil {
			return nil, err
		}
		rate, err := wad.MulDivDown(total, a.BaseUnit, a.TotalBalanceUnits)
		return rate, mathErr(err, "balance exchange rate")
	case BalanceSideLiabilities:
		if a.TotalDebtUnits.IsZero() {
			return wad.Clone(a.BaseUnit), nil
		}
		rate, err := wad.MulDivDown(a.CachedTotalBorrows, a.BaseUnit, a.TotalDebtUnits)
		return rate, mathErr(err, "debt exchange rate")
	}
	return nil, errors.Wrapf(ErrInternalInvariantViolated, "unknown side %d", side)
}

// totals returns the underlying total and the unit total of a side.
func (a *AssetState) totals(side BalanceSide) (total, units *uint256.Int, err error) {
	switch side {
	case BalanceSideAssets:
		total, err = a.TotalUnderlying()
		return total, a.TotalBalanceUnits, err
	case BalanceSideLiabilities:
		return a.CachedTotalBorrows, a.TotalDebtUnits, nil
	}
	return nil, nil, errors.Wrapf(ErrInternalInvariantViolated, "unknown side %d", side)
}

// GetUnits converts an underlying amount into internal units of the given side.
// The conversion runs on the totals, not on the rounded exchange rate. An empty
// side converts one to one.
func (a *AssetState) GetUnits(side BalanceSide, amount *uint256.Int, roundUp bool) (*uint256.Int, error) {
	total, units, err := a.totals(side)
	if err != nil {
		return nil, err
	}
	if units.IsZero() {
		return wad.Clone(amount), nil
	}
	if roundUp {
		res, err := wad.MulDivUp(amount, units, total)
		return res, mathErr(err, "units")
	}
	res, err := wad.MulDivDown(amount, units, total)
	return res, mathErr(err, "units")
}

// GetAmount converts internal units of the given side into an underlying amount.
func (a *AssetState) GetAmount(side BalanceSide, units *uint256.Int, roundUp bool) (*uint256.Int, error) {
	total, totalUnits, err := a.totals(side)
	if err != nil {
		return nil, err
	}
	if totalUnits.IsZero() {
		return wad.Clone(units), nil
	}
	if roundUp {
		amount, err := wad.MulDivUp(units, total, totalUnits)
		return amount, mathErr(err, "amount")
	}
	amount, err := wad.MulDivDown(units, total, totalUnits)
	return amount, mathErr(err, "amount")
}

// AccrueInterest compounds cached borrows over the whole periods elapsed since the
// last accrual. A pool without borrows only moves its timestamp forward.
func (a *AssetState) AccrueInterest(log Log, currentTimestamp, period int64) error {
	if period <= 0 {
		period = DEFAULT_ACCRUAL_PERIOD
	}
	periods := (currentTimestamp - a.LastAccrual) / period
	if periods <= 0 {
		return nil
	}

	if a.CachedTotalBorrows.IsZero() {
		a.LastAccrual += periods * period
		return nil
	}
	if a.Config.RateModel == nil {
		return errors.Wrapf(ErrRateModelUnset, "asset %s", a.Id)
	}

	rate := a.Config.RateModel.BorrowRate(wad.Clone(a.Cash), wad.Clone(a.CachedTotalBorrows), wad.Clone(a.Reserves))
	if rate == nil {
		rate = wad.Zero()
	}
	base, err := wad.Add(ONE, rate)
	if err != nil {
		return mathErr(err, "accrual base")
	}
	growth, err := wad.Pow(base, uint64(periods))
	if err != nil {
		return mathErr(err, "accrual growth")
	}
	borrows, err := wad.MulUp(a.CachedTotalBorrows, growth)
	if err != nil {
		return mathErr(err, "accrual borrows")
	}

	interest := wad.SubSaturating(borrows, a.CachedTotalBorrows)
	if a.Config.ReserveFactor != nil && !a.Config.ReserveFactor.IsZero() {
		reserveCut, err := wad.Mul(interest, a.Config.ReserveFactor)
		if err != nil {
			return mathErr(err, "accrual reserves")
		}
		if a.Reserves, err = wad.Add(a.Reserves, reserveCut); err != nil {
			return mathErr(err, "accrual reserves")
		}
	}

	log.Debug().Msgf("accrue %s: periods %d, rate %s, borrows %s -> %s", a.Symbol, periods, rate, a.CachedTotalBorrows, borrows)

	a.CachedTotalBorrows = borrows
	a.LastAccrual += periods * period
	a.UpdatedAt = currentTimestamp
	return nil
}

// SocializeLoss removes debt that will never be repaid. Suppliers absorb the loss
// through a lower balance exchange rate.
func (a *AssetState) SocializeLoss(units, amount *uint256.Int) error {
	remaining, err := wad.Sub(a.TotalDebtUnits, units)
	if err != nil {
		return mathErr(err, "socialize loss")
	}
	a.TotalDebtUnits = remaining
	a.CachedTotalBorrows = wad.SubSaturating(a.CachedTotalBorrows, amount)
	a.normalizeBorrows()
	return nil
}

// normalizeBorrows drops rounding dust once no debt units are outstanding.
func (a *AssetState) normalizeBorrows() {
	if a.TotalDebtUnits.IsZero() {
		a.CachedTotalBorrows = wad.Zero()
	}
}

func (a *AssetState) UtilizationRate() decimal.Decimal {
	return ComputeUtilizationRate(a.Cash, a.CachedTotalBorrows, a.Reserves)
}
