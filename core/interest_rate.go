package core

import (
	"github.com/DomeLiquid/lending/wad"
	"github.com/holiman/uint256"
	"github.com/shopspring/decimal"
)

// RateModel returns the per-period borrow rate (1e18 = 100%) for the given pool state.
type RateModel interface {
	BorrowRate(cash, borrows, reserves *uint256.Int) *uint256.Int
}

// FixedRate charges the same per-period rate regardless of utilization.
type FixedRate struct {
	Rate *uint256.Int
}

func NewFixedRate(rate *uint256.Int) *FixedRate {
	return &FixedRate{Rate: wad.Clone(rate)}
}

func (f *FixedRate) BorrowRate(_, _, _ *uint256.Int) *uint256.Int {
	return wad.Clone(f.Rate)
}

// InterestRateConfig is a kinked utilization curve expressed in APR. The yearly
// rate is spread evenly over the accrual periods of a year.
type InterestRateConfig struct {
	OptimalUtilizationRate decimal.Decimal `json:"optimalUtilizationRate"`
	PlateauInterestRate    decimal.Decimal `json:"plateauInterestRate"`
	MaxInterestRate        decimal.Decimal `json:"maxInterestRate"`

	PeriodSeconds int64 `json:"periodSeconds"`
}

func (i *InterestRateConfig) BorrowRate(cash, borrows, reserves *uint256.Int) *uint256.Int {
	apr := i.InterestRateCurve(ComputeUtilizationRate(cash, borrows, reserves))

	period := i.PeriodSeconds
	if period <= 0 {
		period = DEFAULT_ACCRUAL_PERIOD
	}
	perPeriod := apr.Mul(decimal.NewFromInt(period)).Div(decimal.NewFromInt(SECONDS_PER_YEAR))

	rate, err := wad.FromDecimal(perPeriod)
	if err != nil {
		return wad.Zero()
	}
	return rate
}

func (i *InterestRateConfig) InterestRateCurve(utilizationRatio decimal.Decimal) decimal.Decimal {
	optimalUr := i.OptimalUtilizationRate
	plateauIr := i.PlateauInterestRate
	maxIr := i.MaxInterestRate

	if utilizationRatio.LessThanOrEqual(optimalUr) {
		// ur / optimal_ur * plateau_ir
		return utilizationRatio.Mul(plateauIr).Div(optimalUr)
	}

	// (ur - optimal_ur) / (1 - optimal_ur) * (max_ir - plateau_ir) + plateau_ir
	oneMinusOptimalUr := decimal.NewFromInt(1).Sub(optimalUr)
	maxIrMinusPlateau := maxIr.Sub(plateauIr)
	return utilizationRatio.Sub(optimalUr).Div(oneMinusOptimalUr).Mul(maxIrMinusPlateau).Add(plateauIr)
}

func (i *InterestRateConfig) Validate() error {
	optimalUr := i.OptimalUtilizationRate
	plateauIr := i.PlateauInterestRate
	maxIr := i.MaxInterestRate

	if optimalUr.LessThanOrEqual(decimal.Zero) || optimalUr.GreaterThanOrEqual(decimal.NewFromInt(1)) {
		return ErrInvalidConfig
	}
	if plateauIr.LessThanOrEqual(decimal.Zero) || maxIr.LessThanOrEqual(decimal.Zero) {
		return ErrInvalidConfig
	}
	if plateauIr.GreaterThanOrEqual(maxIr) {
		return ErrInvalidConfig
	}
	if i.PeriodSeconds < 0 {
		return ErrInvalidConfig
	}
	return nil
}

// ComputeUtilizationRate is borrows / (cash + borrows - reserves), zero for an empty pool.
func ComputeUtilizationRate(cash, borrows, reserves *uint256.Int) decimal.Decimal {
	b := toDecimal(borrows)
	total := toDecimal(cash).Add(b).Sub(toDecimal(reserves))
	if !total.IsPositive() {
		return decimal.Zero
	}
	ur := b.Div(total)
	if ur.GreaterThan(decimal.NewFromInt(1)) {
		return decimal.NewFromInt(1)
	}
	return ur
}

func toDecimal(x *uint256.Int) decimal.Decimal {
	return wad.ScaleToDecimal(x, 0)
}
