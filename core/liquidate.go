package core

import (
	"context"

	"github.com/DomeLiquid/lending/wad"
	"github.com/gofrs/uuid"
	"github.com/holiman/uint256"
	"github.com/pkg/errors"
)

type WriteOff struct {
	AssetId uuid.UUID    `json:"assetId"`
	Units   *uint256.Int `json:"units"`
	Amount  *uint256.Int `json:"amount"`
}

type LiquidateResult struct {
	LiquidatorId      uuid.UUID `json:"liquidatorId"`
	AccountId         uuid.UUID `json:"accountId"`
	RepayAssetId      uuid.UUID `json:"repayAssetId"`
	CollateralAssetId uuid.UUID `json:"collateralAssetId"`

	RepayAmount *uint256.Int `json:"repayAmount"`
	SeizeAmount *uint256.Int `json:"seizeAmount"`
	SeizeUnits  *uint256.Int `json:"seizeUnits"`

	LiquidateePreHealth  *uint256.Int `json:"liquidateePreHealth"`
	LiquidateePostHealth *uint256.Int `json:"liquidateePostHealth"`

	// Closed is set when residual debt was written off.
	Closed    bool       `json:"closed"`
	WriteOffs []WriteOff `json:"writeOffs,omitempty"`
}

// Liquidate lets liquidator repay up to repayAmount of the unhealthy account's
// debt in repayAsset and take the equivalent collateral plus the liquidation
// bonus. When the account's collateral cannot cover the seize, the seize is
// capped and the repayment shrinks to match.
//
// Debt is never valued at a zero price: while the repay asset (or any other
// asset the account owes) has no price, health cannot be computed and Liquidate
// fails with ErrPriceUnavailable until the oracle reports one.
func (e *Engine) Liquidate(ctx context.Context, liquidatorId, accountId, repayAssetId, collateralAssetId uuid.UUID, repayAmount *uint256.Int) (result *LiquidateResult, err error) {
	if err := validAmount(repayAmount); err != nil {
		return nil, err
	}
	if liquidatorId == accountId {
		return nil, ErrSelfLiquidation
	}
	tx, err := e.begin(OpLiquidate)
	if err != nil {
		return nil, err
	}
	defer tx.finish(ctx, &err)

	debtAsset, err := tx.asset(repayAssetId)
	if err != nil {
		return nil, err
	}
	collateralAsset, err := tx.asset(collateralAssetId)
	if err != nil {
		return nil, err
	}
	account, err := tx.account(accountId, false)
	if err != nil {
		return nil, err
	}

	risk := tx.riskEngine(account)
	preHealth, err := risk.CheckPreLiquidationConditionAndGetAccountHealth()
	if err != nil {
		return nil, err
	}

	collateralPos := account.Position(collateralAssetId)
	if !account.Collateral.Contains(collateralAssetId) || collateralPos == nil || collateralPos.IsEmpty(BalanceSideAssets) {
		return nil, errors.Wrapf(ErrCollateralNotEnabled, "account %s asset %s", accountId, collateralAsset.Symbol)
	}

	debtPrice := priceOf(e.oracle, repayAssetId)
	collateralPrice := priceOf(e.oracle, collateralAssetId)
	if debtPrice.IsZero() || collateralPrice.IsZero() {
		return nil, errors.Wrapf(ErrPriceUnavailable, "liquidate %s for %s", debtAsset.Symbol, collateralAsset.Symbol)
	}

	seizeAmount, err := seizeFor(repayAmount, debtAsset, collateralAsset, debtPrice, collateralPrice, e.params.LiquidationBonus)
	if err != nil {
		return nil, err
	}
	seizeUnits, err := collateralAsset.GetUnits(BalanceSideAssets, seizeAmount, false)
	if err != nil {
		return nil, err
	}
	if seizeUnits.Gt(collateralPos.BalanceUnits) {
		seizeUnits = wad.Clone(collateralPos.BalanceUnits)
		if seizeAmount, err = collateralAsset.GetAmount(BalanceSideAssets, seizeUnits, false); err != nil {
			return nil, err
		}
		if repayAmount, err = repayFor(seizeAmount, debtAsset, collateralAsset, debtPrice, collateralPrice, e.params.LiquidationBonus); err != nil {
			return nil, err
		}
		e.log.Debug().Msgf("liquidate %s: seize capped at %s %s, repay %s", accountId, seizeAmount, collateralAsset.Symbol, repayAmount)
	}
	if seizeUnits.IsZero() || repayAmount.IsZero() {
		return nil, errors.Wrapf(ErrInvalidAmount, "repay %s seizes nothing", repayAmount)
	}

	if err := tx.repay(debtAsset, account, repayAmount); err != nil {
		return nil, err
	}

	liquidator, err := tx.account(liquidatorId, true)
	if err != nil {
		return nil, err
	}
	if err := account.Position(collateralAssetId).DecreaseUnits(BalanceSideAssets, seizeUnits); err != nil {
		return nil, err
	}
	if err := liquidator.FindOrCreatePosition(tx.now, collateralAssetId).IncreaseUnits(BalanceSideAssets, seizeUnits); err != nil {
		return nil, err
	}
	liquidator.EnableCollateral(collateralAssetId)
	account.DisableCollateral(collateralAssetId)
	account.UpdatedAt = tx.now

	result = &LiquidateResult{
		LiquidatorId:        liquidatorId,
		AccountId:           accountId,
		RepayAssetId:        repayAssetId,
		CollateralAssetId:   collateralAssetId,
		RepayAmount:         wad.Clone(repayAmount),
		SeizeAmount:         seizeAmount,
		SeizeUnits:          seizeUnits,
		LiquidateePreHealth: preHealth,
	}

	if risk.IsBankrupt() {
		if result.WriteOffs, err = tx.writeOff(account); err != nil {
			return nil, err
		}
		result.Closed = true
		result.LiquidateePostHealth = wad.Max()
	} else {
		result.LiquidateePostHealth, err = risk.CheckPostLiquidationConditionAndGetAccountHealth(preHealth, e.params.MaxHealthFactor)
		if err != nil {
			return nil, err
		}
	}

	if err := tx.transferIn(ctx, repayAssetId, liquidatorId, repayAmount); err != nil {
		return nil, err
	}

	tx.record(accountId, OpLiquidate,
		NewActionDetail(liquidatorId, OpRepay, repayAssetId, repayAmount),
		NewActionDetail(liquidatorId, OpDeposit, collateralAssetId, seizeAmount),
	)

	e.log.Info().
		Str("account", accountId.String()).
		Str("liquidator", liquidatorId.String()).
		Str("repay", repayAmount.Dec()).
		Str("seize", seizeAmount.Dec()).
		Str("preHealth", wad.ToDecimal(preHealth).String()).
		Str("postHealth", wad.ToDecimal(result.LiquidateePostHealth).String()).
		Bool("closed", result.Closed).
		Msg("liquidated")

	if e.metrics != nil {
		e.metrics.ObserveLiquidation(result)
	}
	return result, nil
}

// writeOff clears debt that has no collateral left behind it and closes the account.
func (tx *txn) writeOff(account *Account) ([]WriteOff, error) {
	var writeOffs []WriteOff
	for _, assetId := range account.Loans.Items() {
		a, err := tx.asset(assetId)
		if err != nil {
			return nil, err
		}
		p := account.Position(assetId)
		if p == nil || p.IsEmpty(BalanceSideLiabilities) {
			account.DisableLoan(assetId)
			continue
		}
		units := wad.Clone(p.DebtUnits)
		amount, err := a.GetAmount(BalanceSideLiabilities, units, true)
		if err != nil {
			return nil, err
		}
		if err := p.DecreaseUnits(BalanceSideLiabilities, units); err != nil {
			return nil, err
		}
		if err := a.SocializeLoss(units, amount); err != nil {
			return nil, err
		}
		account.DisableLoan(assetId)

		tx.e.log.Warn().Msgf("write off %s %s of account %s", amount, a.Symbol, account.Id)
		tx.record(account.Id, OpWriteOff, NewActionDetail(account.Id, OpWriteOff, assetId, amount))
		writeOffs = append(writeOffs, WriteOff{AssetId: assetId, Units: units, Amount: amount})
	}
	account.SetFlag(ClosedFlag)
	return writeOffs, nil
}

// seizeFor values repayAmount in the quote, adds the bonus and converts the
// result into collateral. Rounds down.
func seizeFor(repayAmount *uint256.Int, debtAsset, collateralAsset *AssetState, debtPrice, collateralPrice, bonus *uint256.Int) (*uint256.Int, error) {
	repayValue, err := wad.MulDivDown(repayAmount, debtPrice, debtAsset.BaseUnit)
	if err != nil {
		return nil, mathErr(err, "repay value")
	}
	multiplier, err := wad.Add(ONE, bonus)
	if err != nil {
		return nil, mathErr(err, "bonus")
	}
	seizeValue, err := wad.Mul(repayValue, multiplier)
	if err != nil {
		return nil, mathErr(err, "seize value")
	}
	seize, err := wad.MulDivDown(seizeValue, collateralAsset.BaseUnit, collateralPrice)
	return seize, mathErr(err, "seize amount")
}

// repayFor is the inverse of seizeFor. Rounds down.
func repayFor(seizeAmount *uint256.Int, debtAsset, collateralAsset *AssetState, debtPrice, collateralPrice, bonus *uint256.Int) (*uint256.Int, error) {
	seizeValue, err := wad.MulDivDown(seizeAmount, collateralPrice, collateralAsset.BaseUnit)
	if err != nil {
		return nil, mathErr(err, "seize value")
	}
	multiplier, err := wad.Add(ONE, bonus)
	if err != nil {
		return nil, mathErr(err, "bonus")
	}
	repayValue, err := wad.Div(seizeValue, multiplier)
	if err != nil {
		return nil, mathErr(err, "repay value")
	}
	repay, err := wad.MulDivDown(repayValue, debtAsset.BaseUnit, debtPrice)
	return repay, mathErr(err, "repay amount")
}
