package core

import (
	"github.com/DomeLiquid/lending/wad"
	"github.com/pkg/errors"
)

var (
	// configuration
	ErrAlreadyConfigured = errors.New("asset already configured")
	ErrNotConfigured     = errors.New("asset not configured")
	ErrInvalidConfig     = errors.New("invalid asset config")

	// input
	ErrInvalidAmount      = errors.New("invalid amount")
	ErrAssetNotConfigured = errors.New("asset not configured for ledger operation")
	ErrAccountNotFound    = errors.New("account not found")

	// solvency
	ErrInsufficientHealthFactor = errors.New("insufficient health factor")
	ErrRepaymentExceedsDebt     = errors.New("repayment exceeds debt")
	ErrInsufficientBalance      = errors.New("insufficient balance")
	ErrInsufficientLiquidity    = errors.New("insufficient liquidity")

	// liveness
	ErrRateModelUnset   = errors.New("interest rate model unset")
	ErrTransferFailed   = errors.New("asset transfer failed")
	ErrPriceUnavailable = errors.New("price unavailable")
	ErrReentrantCall    = errors.New("reentrant call")
	ErrAccountClosed    = errors.New("account closed")

	// liquidation
	ErrHealthyAccount         = errors.New("account is healthy")
	ErrSelfLiquidation        = errors.New("liquidator is the liquidated account")
	ErrCollateralNotEnabled   = errors.New("collateral not enabled")
	ErrLiquidationIneffective = errors.New("liquidation did not improve health")
	ErrExcessiveLiquidation   = errors.New("liquidation exceeds max health factor")

	ErrInternalInvariantViolated = errors.New("internal invariant violated")
)

// mathErr promotes an arithmetic failure to ErrInternalInvariantViolated.
func mathErr(err error, op string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, wad.ErrOverflow) || errors.Is(err, wad.ErrUnderflow) || errors.Is(err, wad.ErrDivisionByZero) {
		return errors.Wrapf(ErrInternalInvariantViolated, "%s: %v", op, err)
	}
	return err
}
