package core

import (
	"context"

	"github.com/DomeLiquid/lending/wad"
	"github.com/gofrs/uuid"
	"github.com/holiman/uint256"
	"github.com/pkg/errors"
)

func validAmount(amount *uint256.Int) error {
	if amount == nil || amount.IsZero() {
		return ErrInvalidAmount
	}
	return nil
}

// Deposit supplies amount of the asset and enables it as collateral.
func (e *Engine) Deposit(ctx context.Context, accountId, assetId uuid.UUID, amount *uint256.Int) (err error) {
	if err := validAmount(amount); err != nil {
		return err
	}
	tx, err := e.begin(OpDeposit)
	if err != nil {
		return err
	}
	defer tx.finish(ctx, &err)

	a, err := tx.asset(assetId)
	if err != nil {
		return err
	}
	units, err := a.GetUnits(BalanceSideAssets, amount, false)
	if err != nil {
		return err
	}
	if units.IsZero() {
		return errors.Wrapf(ErrInvalidAmount, "%s is below one %s unit", amount, a.Symbol)
	}

	account, err := tx.account(accountId, true)
	if err != nil {
		return err
	}
	if err := tx.increase(a, account, BalanceSideAssets, units); err != nil {
		return err
	}
	if a.Cash, err = wad.Add(a.Cash, amount); err != nil {
		return mathErr(err, "cash")
	}
	account.EnableCollateral(assetId)
	account.UnsetFlag(ClosedFlag)

	if err := tx.transferIn(ctx, assetId, accountId, amount); err != nil {
		return err
	}
	tx.record(accountId, OpDeposit, NewActionDetail(accountId, OpDeposit, assetId, amount))
	return nil
}

// Withdraw releases amount of supplied asset if the account stays healthy.
func (e *Engine) Withdraw(ctx context.Context, accountId, assetId uuid.UUID, amount *uint256.Int) (err error) {
	if err := validAmount(amount); err != nil {
		return err
	}
	tx, err := e.begin(OpWithdraw)
	if err != nil {
		return err
	}
	defer tx.finish(ctx, &err)

	a, err := tx.asset(assetId)
	if err != nil {
		return err
	}
	account, err := tx.account(accountId, false)
	if err != nil {
		return err
	}
	units, err := a.GetUnits(BalanceSideAssets, amount, true)
	if err != nil {
		return err
	}
	return tx.withdraw(ctx, a, account, units, amount)
}

// WithdrawAll burns every balance unit of the asset and returns the amount paid out.
func (e *Engine) WithdrawAll(ctx context.Context, accountId, assetId uuid.UUID) (amount *uint256.Int, err error) {
	tx, err := e.begin(OpWithdraw)
	if err != nil {
		return nil, err
	}
	defer tx.finish(ctx, &err)

	a, err := tx.asset(assetId)
	if err != nil {
		return nil, err
	}
	account, err := tx.account(accountId, false)
	if err != nil {
		return nil, err
	}
	p := account.Position(assetId)
	if p == nil || p.IsEmpty(BalanceSideAssets) {
		return nil, errors.Wrapf(ErrInsufficientBalance, "no %s balance", a.Symbol)
	}
	units := wad.Clone(p.BalanceUnits)
	if amount, err = a.GetAmount(BalanceSideAssets, units, false); err != nil {
		return nil, err
	}
	if amount.IsZero() {
		return nil, errors.Wrapf(ErrInvalidAmount, "%s balance rounds to zero", a.Symbol)
	}
	if err := tx.withdraw(ctx, a, account, units, amount); err != nil {
		return nil, err
	}
	return amount, nil
}

func (tx *txn) withdraw(ctx context.Context, a *AssetState, account *Account, units, amount *uint256.Int) error {
	if err := tx.decrease(a, account, BalanceSideAssets, units); err != nil {
		return errors.Wrapf(err, "withdraw %s %s", amount, a.Symbol)
	}
	if a.Cash.Lt(amount) {
		return errors.Wrapf(ErrInsufficientLiquidity, "withdraw %s %s, cash %s", amount, a.Symbol, a.Cash)
	}
	a.Cash = new(uint256.Int).Sub(a.Cash, amount)
	account.DisableCollateral(a.Id)

	if err := tx.riskEngine(account).CheckAccountHealth(); err != nil {
		return err
	}
	if err := tx.transferOut(ctx, a.Id, account.Id, amount); err != nil {
		return err
	}
	tx.record(account.Id, OpWithdraw, NewActionDetail(account.Id, OpWithdraw, a.Id, amount))
	return nil
}

// Borrow lends amount of the asset to the account if it stays healthy.
func (e *Engine) Borrow(ctx context.Context, accountId, assetId uuid.UUID, amount *uint256.Int) (err error) {
	if err := validAmount(amount); err != nil {
		return err
	}
	tx, err := e.begin(OpBorrow)
	if err != nil {
		return err
	}
	defer tx.finish(ctx, &err)

	a, err := tx.asset(assetId)
	if err != nil {
		return err
	}
	if a.Config.RateModel == nil {
		return errors.Wrapf(ErrRateModelUnset, "asset %s", a.Symbol)
	}
	account, err := tx.account(accountId, true)
	if err != nil {
		return err
	}
	if account.GetFlag(ClosedFlag) {
		return errors.Wrapf(ErrAccountClosed, "account %s", accountId)
	}
	account.EnableLoan(assetId)

	units, err := a.GetUnits(BalanceSideLiabilities, amount, true)
	if err != nil {
		return err
	}
	// the rounded-up units are owed in full
	owed, err := a.GetAmount(BalanceSideLiabilities, units, true)
	if err != nil {
		return err
	}
	if a.Cash.Lt(amount) {
		return errors.Wrapf(ErrInsufficientLiquidity, "borrow %s %s, cash %s", amount, a.Symbol, a.Cash)
	}
	if err := tx.increase(a, account, BalanceSideLiabilities, units); err != nil {
		return err
	}
	if a.CachedTotalBorrows, err = wad.Add(a.CachedTotalBorrows, owed); err != nil {
		return mathErr(err, "borrows")
	}
	a.Cash = new(uint256.Int).Sub(a.Cash, amount)

	if err := tx.riskEngine(account).CheckAccountHealth(); err != nil {
		return err
	}
	if err := tx.transferOut(ctx, assetId, accountId, amount); err != nil {
		return err
	}
	tx.record(accountId, OpBorrow, NewActionDetail(accountId, OpBorrow, assetId, amount))
	return nil
}

// Repay pays back amount of the account's debt. Paying the full borrow balance
// clears every debt unit.
func (e *Engine) Repay(ctx context.Context, accountId, assetId uuid.UUID, amount *uint256.Int) (err error) {
	if err := validAmount(amount); err != nil {
		return err
	}
	tx, err := e.begin(OpRepay)
	if err != nil {
		return err
	}
	defer tx.finish(ctx, &err)

	a, err := tx.asset(assetId)
	if err != nil {
		return err
	}
	account, err := tx.account(accountId, false)
	if err != nil {
		return err
	}
	if err := tx.repay(a, account, amount); err != nil {
		return err
	}
	if err := tx.transferIn(ctx, assetId, accountId, amount); err != nil {
		return err
	}
	tx.record(accountId, OpRepay, NewActionDetail(accountId, OpRepay, assetId, amount))
	return nil
}

// RepayAll clears the account's debt in the asset and returns the amount charged.
func (e *Engine) RepayAll(ctx context.Context, accountId, assetId uuid.UUID) (amount *uint256.Int, err error) {
	tx, err := e.begin(OpRepay)
	if err != nil {
		return nil, err
	}
	defer tx.finish(ctx, &err)

	a, err := tx.asset(assetId)
	if err != nil {
		return nil, err
	}
	account, err := tx.account(accountId, false)
	if err != nil {
		return nil, err
	}
	p := account.Position(assetId)
	if p == nil || p.IsEmpty(BalanceSideLiabilities) {
		return nil, errors.Wrapf(ErrInvalidAmount, "no %s debt", a.Symbol)
	}
	if amount, err = a.GetAmount(BalanceSideLiabilities, p.DebtUnits, true); err != nil {
		return nil, err
	}
	if err := tx.repay(a, account, amount); err != nil {
		return nil, err
	}
	if err := tx.transferIn(ctx, assetId, accountId, amount); err != nil {
		return nil, err
	}
	tx.record(accountId, OpRepay, NewActionDetail(accountId, OpRepay, assetId, amount))
	return amount, nil
}

// repay burns the debt units amount pays for. Units are rounded down so the payer
// always covers what is extinguished, except that paying the whole balance burns
// every unit. The debt balance is rounded up, so a sole borrower repaying all of
// it covers cachedTotalBorrows.
func (tx *txn) repay(a *AssetState, account *Account, amount *uint256.Int) error {
	p := account.Position(a.Id)
	if p == nil || p.IsEmpty(BalanceSideLiabilities) {
		return errors.Wrapf(ErrRepaymentExceedsDebt, "no %s debt", a.Symbol)
	}
	debt, err := a.GetAmount(BalanceSideLiabilities, p.DebtUnits, true)
	if err != nil {
		return err
	}
	if amount.Gt(debt) {
		return errors.Wrapf(ErrRepaymentExceedsDebt, "repay %s, debt %s", amount, debt)
	}

	var units *uint256.Int
	if amount.Eq(debt) {
		units = wad.Clone(p.DebtUnits)
	} else {
		if units, err = a.GetUnits(BalanceSideLiabilities, amount, false); err != nil {
			return err
		}
		if units.IsZero() {
			return errors.Wrapf(ErrInvalidAmount, "%s is below one %s debt unit", amount, a.Symbol)
		}
	}

	// borrows shrink by the floor value of the burned units, any excess stays
	// in cash for suppliers
	extinguished, err := a.GetAmount(BalanceSideLiabilities, units, false)
	if err != nil {
		return err
	}
	if err := tx.decrease(a, account, BalanceSideLiabilities, units); err != nil {
		return err
	}
	if a.CachedTotalBorrows, err = wad.Sub(a.CachedTotalBorrows, extinguished); err != nil {
		return mathErr(err, "borrows")
	}
	a.normalizeBorrows()
	if a.Cash, err = wad.Add(a.Cash, amount); err != nil {
		return mathErr(err, "cash")
	}
	account.DisableLoan(a.Id)
	return nil
}

func (tx *txn) increase(a *AssetState, account *Account, side BalanceSide, units *uint256.Int) error {
	p := account.FindOrCreatePosition(tx.now, a.Id)
	if err := p.IncreaseUnits(side, units); err != nil {
		return err
	}
	return changeTotals(a, side, units, true)
}

func (tx *txn) decrease(a *AssetState, account *Account, side BalanceSide, units *uint256.Int) error {
	p := account.Position(a.Id)
	if p == nil {
		if side == BalanceSideLiabilities {
			return ErrRepaymentExceedsDebt
		}
		return ErrInsufficientBalance
	}
	if err := p.DecreaseUnits(side, units); err != nil {
		return err
	}
	p.LastUpdate = tx.now
	account.UpdatedAt = tx.now
	return changeTotals(a, side, units, false)
}
