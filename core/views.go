package core

import (
	"github.com/DomeLiquid/lending/wad"
	"github.com/gofrs/uuid"
	"github.com/holiman/uint256"
	"github.com/pkg/errors"
)

// projection serves read-only views: asset records are copied and accrued to
// now without touching the ledger.
type projection struct {
	e      *Engine
	now    int64
	assets map[uuid.UUID]*AssetState
}

func (p *projection) asset(id uuid.UUID) (*AssetState, error) {
	if a, ok := p.assets[id]; ok {
		return a, nil
	}
	live, ok := p.e.state.Assets[id]
	if !ok {
		return nil, errors.Wrapf(ErrAssetNotConfigured, "asset %s", id)
	}
	a := live.Clone()
	if err := a.AccrueInterest(p.e.log, p.now, p.e.params.AccrualPeriod); err != nil {
		return nil, err
	}
	p.assets[id] = a
	return a, nil
}

func (e *Engine) view(fn func(p *projection) error) error {
	if !e.acquire() {
		return ErrReentrantCall
	}
	defer e.release()
	return fn(&projection{e: e, now: e.now(), assets: map[uuid.UUID]*AssetState{}})
}

// Asset returns a copy of the asset record with interest projected to now.
func (e *Engine) Asset(assetId uuid.UUID) (asset *AssetState, err error) {
	err = e.view(func(p *projection) error {
		a, err := p.asset(assetId)
		if err != nil {
			return err
		}
		asset = a.Clone()
		return nil
	})
	return asset, err
}

func (e *Engine) ListAssets() ([]uuid.UUID, error) {
	if !e.acquire() {
		return nil, ErrReentrantCall
	}
	defer e.release()
	ids := make([]uuid.UUID, 0, len(e.state.Assets))
	for id := range e.state.Assets {
		ids = append(ids, id)
	}
	return ids, nil
}

func (e *Engine) positionAmount(accountId, assetId uuid.UUID, side BalanceSide) (amount *uint256.Int, err error) {
	err = e.view(func(p *projection) error {
		a, err := p.asset(assetId)
		if err != nil {
			return err
		}
		amount = wad.Zero()
		account, ok := e.state.Accounts[accountId]
		if !ok {
			return nil
		}
		pos := account.Position(assetId)
		if pos == nil || pos.IsEmpty(side) {
			return nil
		}
		amount, err = a.GetAmount(side, pos.Units(side), side == BalanceSideLiabilities)
		return err
	})
	return amount, err
}

// BalanceOf is the underlying amount the account's balance units redeem for.
func (e *Engine) BalanceOf(accountId, assetId uuid.UUID) (*uint256.Int, error) {
	return e.positionAmount(accountId, assetId, BalanceSideAssets)
}

// BorrowBalance is the underlying amount the account owes, rounded up.
func (e *Engine) BorrowBalance(accountId, assetId uuid.UUID) (*uint256.Int, error) {
	return e.positionAmount(accountId, assetId, BalanceSideLiabilities)
}

func (e *Engine) TotalUnderlying(assetId uuid.UUID) (total *uint256.Int, err error) {
	err = e.view(func(p *projection) error {
		a, err := p.asset(assetId)
		if err != nil {
			return err
		}
		total, err = a.TotalUnderlying()
		return err
	})
	return total, err
}

func (e *Engine) ExchangeRate(assetId uuid.UUID, side BalanceSide) (rate *uint256.Int, err error) {
	err = e.view(func(p *projection) error {
		a, err := p.asset(assetId)
		if err != nil {
			return err
		}
		rate, err = a.ExchangeRate(side)
		return err
	})
	return rate, err
}

func (e *Engine) HealthFactor(accountId uuid.UUID) (*uint256.Int, error) {
	return e.ProjectedHealthFactor(accountId, uuid.Nil, nil)
}

// ProjectedHealthFactor is the health factor the account would have after
// borrowing debtDelta more of assetId.
func (e *Engine) ProjectedHealthFactor(accountId, assetId uuid.UUID, debtDelta *uint256.Int) (hf *uint256.Int, err error) {
	err = e.view(func(p *projection) error {
		account, ok := e.state.Accounts[accountId]
		if !ok {
			account = NewAccount(p.now, accountId)
		}
		hf, err = NewRiskEngine(account, p, e.oracle, e.params.StrictPrices).HealthFactor(assetId, debtDelta)
		return err
	})
	return hf, err
}

func (e *Engine) IsHealthy(accountId uuid.UUID) (bool, error) {
	hf, err := e.HealthFactor(accountId)
	if err != nil {
		return false, err
	}
	return !hf.Lt(MIN_HEALTH_FACTOR), nil
}

// AccountValues returns the account's collateral and debt values in the oracle quote.
func (e *Engine) AccountValues(accountId uuid.UUID, requirementType RequirementType) (collateral, debt *uint256.Int, err error) {
	err = e.view(func(p *projection) error {
		account, ok := e.state.Accounts[accountId]
		if !ok {
			collateral, debt = wad.Zero(), wad.Zero()
			return nil
		}
		collateral, debt, err = NewRiskEngine(account, p, e.oracle, e.params.StrictPrices).GetAccountHealthComponents(requirementType, uuid.Nil, nil)
		return err
	})
	return collateral, debt, err
}

func (e *Engine) EnabledCollateral(accountId uuid.UUID) ([]uuid.UUID, error) {
	return e.enabled(accountId, func(a *Account) []uuid.UUID { return a.Collateral.Items() })
}

func (e *Engine) EnabledLoan(accountId uuid.UUID) ([]uuid.UUID, error) {
	return e.enabled(accountId, func(a *Account) []uuid.UUID { return a.Loans.Items() })
}

func (e *Engine) enabled(accountId uuid.UUID, items func(a *Account) []uuid.UUID) ([]uuid.UUID, error) {
	if !e.acquire() {
		return nil, ErrReentrantCall
	}
	defer e.release()
	account, ok := e.state.Accounts[accountId]
	if !ok {
		return []uuid.UUID{}, nil
	}
	return items(account), nil
}

func (e *Engine) IsClosed(accountId uuid.UUID) (bool, error) {
	if !e.acquire() {
		return false, ErrReentrantCall
	}
	defer e.release()
	account, ok := e.state.Accounts[accountId]
	return ok && account.GetFlag(ClosedFlag), nil
}

// RepayToTarget estimates the repayment in repayAssetId that, with collateral
// seized from collateralAssetId, lifts the account to the target health factor.
// Solving (C - V(1+b)lf) / (D - V/bf) = T for the repaid value V gives
// V = (T·D - C) / (T/bf - (1+b)·lf). The result is rounded up and capped at the
// outstanding debt; zero means the account is already at or above the target.
func (e *Engine) RepayToTarget(accountId, repayAssetId, collateralAssetId uuid.UUID) (amount *uint256.Int, err error) {
	err = e.view(func(p *projection) error {
		account, ok := e.state.Accounts[accountId]
		if !ok {
			return errors.Wrapf(ErrAccountNotFound, "account %s", accountId)
		}
		debtAsset, err := p.asset(repayAssetId)
		if err != nil {
			return err
		}
		collateralAsset, err := p.asset(collateralAssetId)
		if err != nil {
			return err
		}

		debtPos := account.Position(repayAssetId)
		if debtPos == nil || debtPos.IsEmpty(BalanceSideLiabilities) {
			amount = wad.Zero()
			return nil
		}
		debtBalance, err := debtAsset.GetAmount(BalanceSideLiabilities, debtPos.DebtUnits, true)
		if err != nil {
			return err
		}

		collateral, debt, err := NewRiskEngine(account, p, e.oracle, e.params.StrictPrices).GetAccountHealthComponents(Weighted, uuid.Nil, nil)
		if err != nil {
			return err
		}
		debtPrice := priceOf(e.oracle, repayAssetId)
		if debtPrice.IsZero() {
			return errors.Wrapf(ErrPriceUnavailable, "debt %s", debtAsset.Symbol)
		}

		amount, err = repayToTarget(collateral, debt, e.params.TargetHealthFactor, e.params.LiquidationBonus,
			debtAsset.Config.BorrowFactor, collateralAsset.Config.LendFactor, debtAsset.BaseUnit, debtPrice)
		if err != nil {
			return err
		}
		if amount.Gt(debtBalance) {
			amount = debtBalance
		}
		return nil
	})
	return amount, err
}

func repayToTarget(collateral, debt, target, bonus, borrowFactor, lendFactor, baseUnit, price *uint256.Int) (*uint256.Int, error) {
	targetDebt, err := wad.MulUp(target, debt)
	if err != nil {
		return nil, mathErr(err, "target debt")
	}
	if !collateral.Lt(targetDebt) {
		return wad.Zero(), nil
	}
	numerator := new(uint256.Int).Sub(targetDebt, collateral)

	debtRelief, err := wad.Div(target, borrowFactor)
	if err != nil {
		return nil, mathErr(err, "debt relief")
	}
	multiplier, err := wad.Add(ONE, bonus)
	if err != nil {
		return nil, mathErr(err, "bonus")
	}
	collateralLoss, err := wad.MulUp(multiplier, lendFactor)
	if err != nil {
		return nil, mathErr(err, "collateral loss")
	}
	if !debtRelief.Gt(collateralLoss) {
		// the target is out of reach, the caller caps this at the debt
		return wad.Max(), nil
	}
	denominator := new(uint256.Int).Sub(debtRelief, collateralLoss)

	value, err := wad.MulDivUp(numerator, ONE, denominator)
	if err != nil {
		return nil, mathErr(err, "repay value")
	}
	amount, err := wad.MulDivUp(value, baseUnit, price)
	return amount, mathErr(err, "repay amount")
}
