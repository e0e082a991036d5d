package core

import (
	"testing"
	"time"

	"github.com/DomeLiquid/lending/wad"
	"github.com/gofrs/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// assertEnablement checks that every account enables exactly the assets it holds
// units of, on each side.
func assertEnablement(t *testing.T, e *Engine) {
	t.Helper()
	state, err := e.Snapshot()
	require.NoError(t, err)
	for _, account := range state.Accounts {
		for assetId, p := range account.Positions {
			assert.Equal(t, !p.IsEmpty(BalanceSideAssets), account.Collateral.Contains(assetId), "collateral %s of %s", assetId, account.Id)
			assert.Equal(t, !p.IsEmpty(BalanceSideLiabilities), account.Loans.Contains(assetId), "loan %s of %s", assetId, account.Id)
		}
		for _, assetId := range account.Collateral.Items() {
			assert.NotNil(t, account.Positions[assetId])
		}
		for _, assetId := range account.Loans.Items() {
			assert.NotNil(t, account.Positions[assetId])
		}
	}
}

func TestConfigureAsset(t *testing.T) {
	f := newFixture(t)
	rate := NewFixedRate(w("0.01"))
	valid := AssetConfig{LendFactor: w("0.7"), BorrowFactor: w("0.9"), RateModel: rate}

	tests := []struct {
		name   string
		asset  Asset
		vault  string
		config AssetConfig
		err    error
	}{
		{
			name:   "already configured",
			asset:  Asset{Id: f.A, Symbol: "A", Decimals: 18},
			vault:  "vault-a2",
			config: valid,
			err:    ErrAlreadyConfigured,
		},
		{
			name:   "empty vault",
			asset:  Asset{Id: uuid.Must(uuid.NewV4()), Symbol: "C", Decimals: 8},
			config: valid,
			err:    ErrInvalidConfig,
		},
		{
			name:   "lend factor above one",
			asset:  Asset{Id: uuid.Must(uuid.NewV4()), Symbol: "C", Decimals: 8},
			vault:  "vault-c",
			config: AssetConfig{LendFactor: w("1.1"), BorrowFactor: w("1")},
			err:    ErrInvalidConfig,
		},
		{
			name:   "zero borrow factor",
			asset:  Asset{Id: uuid.Must(uuid.NewV4()), Symbol: "C", Decimals: 8},
			vault:  "vault-c",
			config: AssetConfig{LendFactor: w("0.5"), BorrowFactor: w("0")},
			err:    ErrInvalidConfig,
		},
		{
			name:   "too many decimals",
			asset:  Asset{Id: uuid.Must(uuid.NewV4()), Symbol: "C", Decimals: 40},
			vault:  "vault-c",
			config: valid,
			err:    ErrInvalidConfig,
		},
		{
			name:   "nil id",
			asset:  Asset{Symbol: "C", Decimals: 8},
			vault:  "vault-c",
			config: valid,
			err:    ErrInvalidConfig,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, f.engine.ConfigureAsset(f.ctx, tt.asset, tt.vault, tt.config), tt.err)
		})
	}

	usdc := Asset{Id: uuid.Must(uuid.NewV4()), Symbol: "USDC", Decimals: 6}
	require.NoError(t, f.engine.ConfigureAsset(f.ctx, usdc, "vault-usdc", valid))
	a, err := f.engine.Asset(usdc.Id)
	require.NoError(t, err)
	assert.True(t, a.BaseUnit.Eq(n("1000000")))
	assert.True(t, a.Config.ReserveFactor.IsZero())
	ids, err := f.engine.ListAssets()
	require.NoError(t, err)
	assert.Len(t, ids, 3)

	rate0, err := f.engine.ExchangeRate(usdc.Id, BalanceSideAssets)
	require.NoError(t, err)
	assert.True(t, rate0.Eq(n("1000000")))
}

func TestUpdateConfiguration(t *testing.T) {
	f := newFixture(t)

	assert.ErrorIs(t, f.engine.UpdateConfiguration(f.ctx, uuid.Must(uuid.NewV4()), AssetConfig{LendFactor: w("0.1")}), ErrNotConfigured)
	assert.ErrorIs(t, f.engine.SetRateModel(f.ctx, uuid.Must(uuid.NewV4()), NewFixedRate(w("0.1"))), ErrNotConfigured)
	assert.ErrorIs(t, f.engine.SetRateModel(f.ctx, f.A, nil), ErrInvalidConfig)
	assert.ErrorIs(t, f.engine.UpdateConfiguration(f.ctx, f.A, AssetConfig{BorrowFactor: w("0")}), ErrInvalidConfig)

	require.NoError(t, f.engine.UpdateConfiguration(f.ctx, f.A, AssetConfig{LendFactor: w("0.6")}))

	a, err := f.engine.Asset(f.A)
	require.NoError(t, err)
	assert.True(t, a.Config.LendFactor.Eq(w("0.6")))
	assert.True(t, a.Config.BorrowFactor.Eq(w("1")))
	assert.Equal(t, "vault-a", a.VaultRef)
	assert.True(t, a.BaseUnit.Eq(w("1")))

	collateral, _, err := f.engine.AccountValues(f.borrower, Weighted)
	require.NoError(t, err)
	assert.True(t, collateral.Eq(w("0.6")), "got %s", collateral)
}

func TestSetRateModelChargesPreviousModel(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.engine.Borrow(f.ctx, f.borrower, f.B, w("0.2")))

	f.clk.Add(2 * time.Second)
	require.NoError(t, f.engine.SetRateModel(f.ctx, f.B, NewFixedRate(w("0.1"))))

	// two periods at 5%
	debt, err := f.engine.BorrowBalance(f.borrower, f.B)
	require.NoError(t, err)
	assert.True(t, debt.Eq(w("0.2205")), "got %s", debt)

	// then one at 10%
	f.clk.Add(time.Second)
	debt, err = f.engine.BorrowBalance(f.borrower, f.B)
	require.NoError(t, err)
	assert.True(t, debt.Eq(w("0.24255")), "got %s", debt)
}

func TestDepositWithdrawRoundTrip(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.engine.Borrow(f.ctx, f.borrower, f.B, w("0.25")))
	f.clk.Add(5 * time.Second)

	rate, err := f.engine.ExchangeRate(f.B, BalanceSideAssets)
	require.NoError(t, err)
	require.True(t, rate.Gt(w("1")))

	tests := []struct {
		name   string
		amount string
		err    error
	}{
		{name: "below one unit", amount: "1", err: ErrInvalidAmount},
		{name: "dust", amount: "7"},
		{name: "one", amount: "1000000000000000000"},
		{name: "odd", amount: "123456789123456789"},
		{name: "large", amount: "5000000000000000000000"},
	}

	for i, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			holder := AccountIdFor("holder", uint8(i))
			amount := n(tt.amount)
			err := f.engine.Deposit(f.ctx, holder, f.B, amount)
			if tt.err != nil {
				assert.ErrorIs(t, err, tt.err)
				return
			}
			require.NoError(t, err)

			balance, err := f.engine.BalanceOf(holder, f.B)
			require.NoError(t, err)
			assert.False(t, balance.Gt(amount), "balance %s above deposit %s", balance, amount)

			out, err := f.engine.WithdrawAll(f.ctx, holder, f.B)
			require.NoError(t, err)
			assert.False(t, out.Gt(amount), "withdrew %s of %s", out, amount)
			assert.True(t, out.Eq(balance))

			left, err := f.engine.BalanceOf(holder, f.B)
			require.NoError(t, err)
			assert.True(t, left.IsZero())

			collateral, err := f.engine.EnabledCollateral(holder)
			require.NoError(t, err)
			assert.Empty(t, collateral)
		})
	}
	assertEnablement(t, f.engine)
}

func TestWithdraw(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.engine.Borrow(f.ctx, f.borrower, f.B, w("0.25")))

	assert.ErrorIs(t, f.engine.Withdraw(f.ctx, f.supplier, f.B, w("10")), ErrInsufficientLiquidity)
	assert.ErrorIs(t, f.engine.Withdraw(f.ctx, AccountIdFor("nobody", 0), f.B, w("1")), ErrAccountNotFound)
	assert.ErrorIs(t, f.engine.Withdraw(f.ctx, f.supplier, f.B, nil), ErrInvalidAmount)
	assert.ErrorIs(t, f.engine.Withdraw(f.ctx, f.supplier, uuid.Must(uuid.NewV4()), w("1")), ErrAssetNotConfigured)

	require.NoError(t, f.engine.Withdraw(f.ctx, f.supplier, f.B, w("4")))
	balance, err := f.engine.BalanceOf(f.supplier, f.B)
	require.NoError(t, err)
	assert.True(t, balance.Eq(w("6")), "got %s", balance)

	out := f.transfer.last()
	assert.False(t, out.in)
	assert.Equal(t, f.supplier, out.who)
	assert.True(t, out.amount.Eq(w("4")))
	assertEnablement(t, f.engine)
}

func TestBorrow(t *testing.T) {
	f := newFixture(t)

	assert.ErrorIs(t, f.engine.Borrow(f.ctx, f.supplier, f.A, w("2")), ErrInsufficientLiquidity)
	assert.ErrorIs(t, f.engine.Borrow(f.ctx, f.supplier, f.A, w("0")), ErrInvalidAmount)

	noRate := Asset{Id: uuid.Must(uuid.NewV4()), Symbol: "C", Decimals: 8}
	require.NoError(t, f.engine.ConfigureAsset(f.ctx, noRate, "vault-c", AssetConfig{LendFactor: w("0.5"), BorrowFactor: w("1")}))
	f.feed.SetPrice(noRate.Id, w("1"))
	require.NoError(t, f.engine.Deposit(f.ctx, f.supplier, noRate.Id, n("100000000")))
	assert.ErrorIs(t, f.engine.Borrow(f.ctx, f.borrower, noRate.Id, n("1000")), ErrRateModelUnset)

	// an account with no collateral cannot borrow at all
	assert.ErrorIs(t, f.engine.Borrow(f.ctx, AccountIdFor("nobody", 0), f.B, n("1")), ErrInsufficientHealthFactor)

	hf, err := f.engine.ProjectedHealthFactor(f.borrower, f.B, w("0.25"))
	require.NoError(t, err)
	assert.True(t, hf.Eq(w("1")), "got %s", hf)

	hf, err = f.engine.HealthFactor(f.borrower)
	require.NoError(t, err)
	assert.True(t, hf.Eq(wad.Max()))

	require.NoError(t, f.engine.Borrow(f.ctx, f.borrower, f.B, w("0.1")))
	require.NoError(t, f.engine.Borrow(f.ctx, f.borrower, f.B, w("0.1")))
	debt, err := f.engine.BorrowBalance(f.borrower, f.B)
	require.NoError(t, err)
	assert.True(t, debt.Eq(w("0.2")))

	a, err := f.engine.Asset(f.B)
	require.NoError(t, err)
	assert.True(t, a.Cash.Eq(w("9.8")))
	assert.True(t, a.CachedTotalBorrows.Eq(w("0.2")))
	assert.Equal(t, "0.02", a.UtilizationRate().String())
	assertEnablement(t, f.engine)
}

func TestRepay(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.engine.Borrow(f.ctx, f.borrower, f.B, w("0.25")))
	f.clk.Add(time.Second)

	debt, err := f.engine.BorrowBalance(f.borrower, f.B)
	require.NoError(t, err)
	require.True(t, debt.Eq(w("0.2625")), "got %s", debt)

	assert.ErrorIs(t, f.engine.Repay(f.ctx, f.borrower, f.B, w("0.3")), ErrRepaymentExceedsDebt)
	assert.ErrorIs(t, f.engine.Repay(f.ctx, f.borrower, f.A, w("0.1")), ErrRepaymentExceedsDebt)
	assert.ErrorIs(t, f.engine.Repay(f.ctx, AccountIdFor("nobody", 0), f.B, w("0.1")), ErrAccountNotFound)

	require.NoError(t, f.engine.Repay(f.ctx, f.borrower, f.B, w("0.1")))
	in := f.transfer.last()
	assert.True(t, in.in)
	assert.True(t, in.amount.Eq(w("0.1")))

	debt, err = f.engine.BorrowBalance(f.borrower, f.B)
	require.NoError(t, err)
	assert.False(t, debt.Lt(w("0.1625")), "got %s", debt)
	assert.False(t, debt.Gt(n("162500000000000002")), "got %s", debt)

	loans, err := f.engine.EnabledLoan(f.borrower)
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{f.B}, loans)

	paid, err := f.engine.RepayAll(f.ctx, f.borrower, f.B)
	require.NoError(t, err)
	assert.True(t, paid.Eq(debt), "paid %s of %s", paid, debt)

	debt, err = f.engine.BorrowBalance(f.borrower, f.B)
	require.NoError(t, err)
	assert.True(t, debt.IsZero())

	loans, err = f.engine.EnabledLoan(f.borrower)
	require.NoError(t, err)
	assert.Empty(t, loans)

	a, err := f.engine.Asset(f.B)
	require.NoError(t, err)
	assert.True(t, a.TotalDebtUnits.IsZero())
	assert.True(t, a.CachedTotalBorrows.IsZero())

	_, err = f.engine.RepayAll(f.ctx, f.borrower, f.B)
	assert.ErrorIs(t, err, ErrInvalidAmount)
	assertEnablement(t, f.engine)
}

func TestRepayExactDebtClearsUnits(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.engine.Borrow(f.ctx, f.borrower, f.B, w("0.25")))
	f.clk.Add(3 * time.Second)

	debt, err := f.engine.BorrowBalance(f.borrower, f.B)
	require.NoError(t, err)
	require.NoError(t, f.engine.Repay(f.ctx, f.borrower, f.B, debt))

	loans, err := f.engine.EnabledLoan(f.borrower)
	require.NoError(t, err)
	assert.Empty(t, loans)

	// the borrower can now leave entirely
	out, err := f.engine.WithdrawAll(f.ctx, f.borrower, f.A)
	require.NoError(t, err)
	assert.True(t, out.Eq(w("1")))
	assertEnablement(t, f.engine)
}

func TestEnablementFollowsPositions(t *testing.T) {
	f := newFixture(t)

	require.NoError(t, f.engine.Deposit(f.ctx, f.borrower, f.B, w("1")))
	collateral, err := f.engine.EnabledCollateral(f.borrower)
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{f.A, f.B}, collateral)

	require.NoError(t, f.engine.Borrow(f.ctx, f.borrower, f.A, w("0.5")))
	require.NoError(t, f.engine.Withdraw(f.ctx, f.borrower, f.A, w("0.5")))
	assertEnablement(t, f.engine)

	_, err = f.engine.RepayAll(f.ctx, f.borrower, f.A)
	require.NoError(t, err)
	_, err = f.engine.WithdrawAll(f.ctx, f.borrower, f.A)
	require.NoError(t, err)

	collateral, err = f.engine.EnabledCollateral(f.borrower)
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{f.B}, collateral)
	assertEnablement(t, f.engine)
}

func TestZeroPricePolicy(t *testing.T) {
	t.Run("lenient", func(t *testing.T) {
		f := newFixture(t)
		require.NoError(t, f.engine.Borrow(f.ctx, f.borrower, f.B, w("0.1")))

		f.feed.SetPrice(f.A, w("0"))
		hf, err := f.engine.HealthFactor(f.borrower)
		require.NoError(t, err)
		assert.True(t, hf.IsZero())

		_, err = f.engine.Liquidate(f.ctx, f.liquidator, f.borrower, f.B, f.A, w("0.01"))
		assert.ErrorIs(t, err, ErrPriceUnavailable)

		f.feed.SetPrice(f.A, w("1"))
		f.feed.SetPrice(f.B, w("0"))
		_, err = f.engine.HealthFactor(f.borrower)
		assert.ErrorIs(t, err, ErrPriceUnavailable)
		assert.ErrorIs(t, f.engine.Borrow(f.ctx, f.borrower, f.B, w("0.01")), ErrPriceUnavailable)

		// debt that cannot be priced cannot be liquidated either
		_, err = f.engine.IsHealthy(f.borrower)
		assert.ErrorIs(t, err, ErrPriceUnavailable)
		_, err = f.engine.Liquidate(f.ctx, f.liquidator, f.borrower, f.B, f.A, w("0.01"))
		assert.ErrorIs(t, err, ErrPriceUnavailable)
		debt, err := f.engine.BorrowBalance(f.borrower, f.B)
		require.NoError(t, err)
		assert.True(t, debt.Eq(w("0.1")))
		// repaying needs no price
		require.NoError(t, f.engine.Repay(f.ctx, f.borrower, f.B, w("0.05")))

		// an account without debt never needs the debt price
		require.NoError(t, f.engine.Withdraw(f.ctx, f.supplier, f.B, w("1")))
	})

	t.Run("strict", func(t *testing.T) {
		params := testParams()
		params.StrictPrices = true
		f := newFixtureWith(t, params)
		require.NoError(t, f.engine.Borrow(f.ctx, f.borrower, f.B, w("0.1")))

		f.feed.SetPrice(f.A, w("0"))
		_, err := f.engine.HealthFactor(f.borrower)
		assert.ErrorIs(t, err, ErrPriceUnavailable)
		assert.ErrorIs(t, f.engine.Withdraw(f.ctx, f.borrower, f.A, w("0.1")), ErrPriceUnavailable)
	})
}

func TestAccountValues(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.engine.Borrow(f.ctx, f.borrower, f.B, w("0.2")))

	tests := []struct {
		rt         RequirementType
		collateral string
		debt       string
	}{
		{rt: Weighted, collateral: "0.5", debt: "0.4"},
		{rt: Equity, collateral: "1", debt: "0.4"},
	}
	for _, tt := range tests {
		t.Run(tt.rt.String(), func(t *testing.T) {
			collateral, debt, err := f.engine.AccountValues(f.borrower, tt.rt)
			require.NoError(t, err)
			assert.True(t, collateral.Eq(w(tt.collateral)), "collateral %s", collateral)
			assert.True(t, debt.Eq(w(tt.debt)), "debt %s", debt)
		})
	}

	collateral, debt, err := f.engine.AccountValues(AccountIdFor("nobody", 0), Weighted)
	require.NoError(t, err)
	assert.True(t, collateral.IsZero())
	assert.True(t, debt.IsZero())
}
