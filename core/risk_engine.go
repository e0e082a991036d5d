package core

import (
	"github.com/DomeLiquid/lending/wad"
	"github.com/gofrs/uuid"
	"github.com/holiman/uint256"
	"github.com/pkg/errors"
)

// assetSource hands out asset records whose interest is current.
type assetSource interface {
	asset(id uuid.UUID) (*AssetState, error)
}

type RequirementType uint8

const (
	// Weighted applies lend and borrow factors.
	Weighted RequirementType = iota
	// Equity values positions at plain oracle prices.
	Equity
)

func (rt RequirementType) String() string {
	switch rt {
	case Weighted:
		return "Weighted"
	case Equity:
		return "Equity"
	default:
		return "Unknown"
	}
}

type RiskEngine struct {
	Account *Account

	assets       assetSource
	oracle       Oracle
	strictPrices bool
}

func NewRiskEngine(account *Account, assets assetSource, oracle Oracle, strictPrices bool) *RiskEngine {
	return &RiskEngine{
		Account:      account,
		assets:       assets,
		oracle:       oracle,
		strictPrices: strictPrices,
	}
}

// GetAccountHealthComponents sums the collateral and debt values of the account.
// hypoDelta, when non-nil, is added to the debt of hypoAssetId as if it had
// already been borrowed.
func (r *RiskEngine) GetAccountHealthComponents(requirementType RequirementType, hypoAssetId uuid.UUID, hypoDelta *uint256.Int) (*uint256.Int, *uint256.Int, error) {
	totalCollateral := wad.Zero()
	for _, id := range r.Account.Collateral.Items() {
		value, err := r.collateralValue(id, requirementType)
		if err != nil {
			return nil, nil, err
		}
		if totalCollateral, err = wad.Add(totalCollateral, value); err != nil {
			return nil, nil, mathErr(err, "total collateral")
		}
	}

	hasDelta := hypoDelta != nil && !hypoDelta.IsZero()
	loans := r.Account.Loans.Items()
	if hasDelta && !r.Account.Loans.Contains(hypoAssetId) {
		loans = append(loans, hypoAssetId)
	}

	totalDebt := wad.Zero()
	for _, id := range loans {
		var delta *uint256.Int
		if hasDelta && id == hypoAssetId {
			delta = hypoDelta
		}
		value, err := r.debtValue(id, delta, requirementType)
		if err != nil {
			return nil, nil, err
		}
		if totalDebt, err = wad.Add(totalDebt, value); err != nil {
			return nil, nil, mathErr(err, "total debt")
		}
	}
	return totalCollateral, totalDebt, nil
}

// collateralValue rounds down. A zero price contributes nothing unless prices are strict.
func (r *RiskEngine) collateralValue(assetId uuid.UUID, requirementType RequirementType) (*uint256.Int, error) {
	p := r.Account.Position(assetId)
	if p == nil || p.IsEmpty(BalanceSideAssets) {
		return wad.Zero(), nil
	}
	a, err := r.assets.asset(assetId)
	if err != nil {
		return nil, err
	}

	price := priceOf(r.oracle, assetId)
	if price.IsZero() {
		if r.strictPrices {
			return nil, errors.Wrapf(ErrPriceUnavailable, "collateral %s", a.Symbol)
		}
		return wad.Zero(), nil
	}

	amount, err := a.GetAmount(BalanceSideAssets, p.BalanceUnits, false)
	if err != nil {
		return nil, err
	}
	value, err := wad.MulDivDown(amount, price, a.BaseUnit)
	if err != nil {
		return nil, mathErr(err, "collateral value")
	}
	if requirementType == Weighted {
		value, err = wad.Mul(value, a.Config.LendFactor)
	}
	return value, mathErr(err, "collateral value")
}

// debtValue rounds up. Debt is never valued at a zero price.
func (r *RiskEngine) debtValue(assetId uuid.UUID, delta *uint256.Int, requirementType RequirementType) (*uint256.Int, error) {
	a, err := r.assets.asset(assetId)
	if err != nil {
		return nil, err
	}

	amount := wad.Zero()
	if p := r.Account.Position(assetId); p != nil && !p.IsEmpty(BalanceSideLiabilities) {
		if amount, err = a.GetAmount(BalanceSideLiabilities, p.DebtUnits, true); err != nil {
			return nil, err
		}
	}
	if delta != nil {
		if amount, err = wad.Add(amount, delta); err != nil {
			return nil, mathErr(err, "hypothetical debt")
		}
	}
	if amount.IsZero() {
		return amount, nil
	}

	price := priceOf(r.oracle, assetId)
	if price.IsZero() {
		return nil, errors.Wrapf(ErrPriceUnavailable, "debt %s", a.Symbol)
	}
	value, err := wad.MulDivUp(amount, price, a.BaseUnit)
	if err != nil {
		return nil, mathErr(err, "debt value")
	}
	if requirementType == Weighted {
		value, err = wad.DivUp(value, a.Config.BorrowFactor)
	}
	return value, mathErr(err, "debt value")
}

// HealthFactor is collateral * 1e18 / debt, or wad.Max() without debt.
func (r *RiskEngine) HealthFactor(hypoAssetId uuid.UUID, hypoDelta *uint256.Int) (*uint256.Int, error) {
	collateral, debt, err := r.GetAccountHealthComponents(Weighted, hypoAssetId, hypoDelta)
	if err != nil {
		return nil, err
	}
	return GetAccountHealth(collateral, debt)
}

func GetAccountHealth(collateral, debt *uint256.Int) (*uint256.Int, error) {
	if debt.IsZero() {
		return wad.Max(), nil
	}
	hf, err := wad.Div(collateral, debt)
	return hf, mathErr(err, "health factor")
}

func (r *RiskEngine) CheckAccountHealth() error {
	hf, err := r.HealthFactor(uuid.Nil, nil)
	if err != nil {
		return err
	}
	if hf.Lt(MIN_HEALTH_FACTOR) {
		return errors.Wrapf(ErrInsufficientHealthFactor, "account %s health factor %s", r.Account.Id, hf)
	}
	return nil
}

func (r *RiskEngine) CheckPreLiquidationConditionAndGetAccountHealth() (*uint256.Int, error) {
	hf, err := r.HealthFactor(uuid.Nil, nil)
	if err != nil {
		return nil, err
	}
	if !hf.Lt(MIN_HEALTH_FACTOR) {
		return nil, errors.Wrapf(ErrHealthyAccount, "account %s health factor %s", r.Account.Id, hf)
	}
	return hf, nil
}

// CheckPostLiquidationConditionAndGetAccountHealth requires that the liquidation
// raised the health factor and did not push it past maxHealth while debt remains.
func (r *RiskEngine) CheckPostLiquidationConditionAndGetAccountHealth(preLiquidationHealth, maxHealth *uint256.Int) (*uint256.Int, error) {
	hf, err := r.HealthFactor(uuid.Nil, nil)
	if err != nil {
		return nil, err
	}
	if !hf.Gt(preLiquidationHealth) {
		return nil, errors.Wrapf(ErrLiquidationIneffective, "health factor %s -> %s", preLiquidationHealth, hf)
	}
	if hf.Gt(maxHealth) && !hf.Eq(wad.Max()) {
		return nil, errors.Wrapf(ErrExcessiveLiquidation, "health factor %s above %s", hf, maxHealth)
	}
	return hf, nil
}

// IsBankrupt reports debt left behind with no collateral enabled.
func (r *RiskEngine) IsBankrupt() bool {
	return r.Account.Collateral.Len() == 0 && r.Account.Loans.Len() > 0
}
