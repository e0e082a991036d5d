package core

import (
	"testing"

	"github.com/gofrs/uuid"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestPool(t *testing.T, config AssetConfig) *AssetState {
	t.Helper()
	return NewAssetState(0, Asset{Id: uuid.Must(uuid.NewV4()), Symbol: "P", Decimals: 6}, "vault-p", n("1000000"), config)
}

func TestExchangeRate(t *testing.T) {
	a := newTestPool(t, AssetConfig{LendFactor: w("0.5"), BorrowFactor: w("1")})

	for _, side := range []BalanceSide{BalanceSideAssets, BalanceSideLiabilities} {
		rate, err := a.ExchangeRate(side)
		require.NoError(t, err)
		assert.True(t, rate.Eq(n("1000000")), side.String())
	}

	a.Cash = n("900")
	a.CachedTotalBorrows = n("300")
	a.Reserves = n("100")
	a.TotalBalanceUnits = n("1000")
	a.TotalDebtUnits = n("250")

	tests := []struct {
		side    BalanceSide
		rate    string
		amount  string
		down    string
		up      string
		units   string
		unitsUp string
	}{
		// (900 + 300 - 100) / 1000
		{side: BalanceSideAssets, rate: "1100000", amount: "10", down: "9", up: "10", units: "11", unitsUp: "11"},
		// 300 / 250
		{side: BalanceSideLiabilities, rate: "1200000", amount: "10", down: "8", up: "9", units: "12", unitsUp: "12"},
	}
	for _, tt := range tests {
		t.Run(tt.side.String(), func(t *testing.T) {
			rate, err := a.ExchangeRate(tt.side)
			require.NoError(t, err)
			assert.Equal(t, tt.rate, rate.Dec())

			down, err := a.GetUnits(tt.side, n(tt.amount), false)
			require.NoError(t, err)
			assert.Equal(t, tt.down, down.Dec())

			up, err := a.GetUnits(tt.side, n(tt.amount), true)
			require.NoError(t, err)
			assert.Equal(t, tt.up, up.Dec())

			amount, err := a.GetAmount(tt.side, n("10"), false)
			require.NoError(t, err)
			assert.Equal(t, tt.units, amount.Dec())

			amount, err = a.GetAmount(tt.side, n("10"), true)
			require.NoError(t, err)
			assert.Equal(t, tt.unitsUp, amount.Dec())
		})
	}
}

func TestAccrueInterest(t *testing.T) {
	t.Run("no borrows only moves the clock", func(t *testing.T) {
		a := newTestPool(t, AssetConfig{LendFactor: w("0.5"), BorrowFactor: w("1")})
		require.NoError(t, a.AccrueInterest(nopLog(), 100, 1))
		assert.Equal(t, int64(100), a.LastAccrual)
		assert.True(t, a.CachedTotalBorrows.IsZero())
	})

	t.Run("borrows without a model", func(t *testing.T) {
		a := newTestPool(t, AssetConfig{LendFactor: w("0.5"), BorrowFactor: w("1")})
		a.CachedTotalBorrows = n("100")
		assert.ErrorIs(t, a.AccrueInterest(nopLog(), 1, 1), ErrRateModelUnset)
		assert.Equal(t, int64(0), a.LastAccrual)
	})

	t.Run("partial periods carry over", func(t *testing.T) {
		a := newTestPool(t, AssetConfig{LendFactor: w("0.5"), BorrowFactor: w("1"), RateModel: NewFixedRate(w("0.1"))})
		a.CachedTotalBorrows = w("1")
		a.TotalDebtUnits = w("1")

		require.NoError(t, a.AccrueInterest(nopLog(), 25, 10))
		assert.Equal(t, int64(20), a.LastAccrual)
		assert.True(t, a.CachedTotalBorrows.Eq(w("1.21")), "got %s", a.CachedTotalBorrows)

		require.NoError(t, a.AccrueInterest(nopLog(), 29, 10))
		assert.Equal(t, int64(20), a.LastAccrual)
		assert.True(t, a.CachedTotalBorrows.Eq(w("1.21")))
	})

	t.Run("reserve factor", func(t *testing.T) {
		a := newTestPool(t, AssetConfig{LendFactor: w("0.5"), BorrowFactor: w("1"), ReserveFactor: w("0.2"), RateModel: NewFixedRate(w("0.1"))})
		a.Cash = w("9")
		a.CachedTotalBorrows = w("1")
		a.TotalDebtUnits = w("1")
		a.TotalBalanceUnits = w("10")

		before, err := a.ExchangeRate(BalanceSideAssets)
		require.NoError(t, err)
		require.NoError(t, a.AccrueInterest(nopLog(), 1, 1))

		assert.True(t, a.CachedTotalBorrows.Eq(w("1.1")))
		assert.True(t, a.Reserves.Eq(w("0.02")), "got %s", a.Reserves)

		after, err := a.ExchangeRate(BalanceSideAssets)
		require.NoError(t, err)
		assert.True(t, after.Gt(before))
		// suppliers get the other 80% of the interest
		total, err := a.TotalUnderlying()
		require.NoError(t, err)
		assert.True(t, total.Eq(w("10.08")), "got %s", total)
	})
}

func TestSocializeLoss(t *testing.T) {
	a := newTestPool(t, AssetConfig{LendFactor: w("0.5"), BorrowFactor: w("1")})
	a.CachedTotalBorrows = n("101")
	a.TotalDebtUnits = n("100")

	require.NoError(t, a.SocializeLoss(n("40"), n("41")))
	assert.Equal(t, "60", a.TotalDebtUnits.Dec())
	assert.Equal(t, "60", a.CachedTotalBorrows.Dec())

	require.NoError(t, a.SocializeLoss(n("60"), n("59")))
	assert.True(t, a.TotalDebtUnits.IsZero())
	assert.True(t, a.CachedTotalBorrows.IsZero(), "dust is dropped with the last unit")

	assert.ErrorIs(t, a.SocializeLoss(n("1"), uint256.NewInt(1)), ErrInternalInvariantViolated)
}
