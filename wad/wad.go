// Package wad implements 1e18 fixed-point arithmetic on 256-bit unsigned integers.
//
// Every function returns a fresh value and never mutates its arguments. Results
// that do not fit 256 bits, divisions by zero and subtractions below zero are
// reported as errors instead of wrapping.
package wad

import (
	"github.com/holiman/uint256"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

const Decimals = 18

var (
	ErrOverflow       = errors.New("wad: overflow")
	ErrUnderflow      = errors.New("wad: underflow")
	ErrDivisionByZero = errors.New("wad: division by zero")
)

var (
	one     = uint256.NewInt(1_000_000_000_000_000_000)
	halfOne = uint256.NewInt(500_000_000_000_000_000)
	ten     = uint256.NewInt(10)
)

// One returns 1.0 (1e18).
func One() *uint256.Int { return new(uint256.Int).Set(one) }

func Zero() *uint256.Int { return new(uint256.Int) }

// Max returns the largest representable value, used as the "no debt" health factor.
func Max() *uint256.Int { return new(uint256.Int).SetAllOne() }

// Clone copies x, treating nil as zero.
func Clone(x *uint256.Int) *uint256.Int {
	if x == nil {
		return new(uint256.Int)
	}
	return new(uint256.Int).Set(x)
}

func Add(x, y *uint256.Int) (*uint256.Int, error) {
	z, overflow := new(uint256.Int).AddOverflow(x, y)
	if overflow {
		return nil, ErrOverflow
	}
	return z, nil
}

func Sub(x, y *uint256.Int) (*uint256.Int, error) {
	if x.Lt(y) {
		return nil, ErrUnderflow
	}
	return new(uint256.Int).Sub(x, y), nil
}

// SubSaturating returns x-y, or zero when y > x.
func SubSaturating(x, y *uint256.Int) *uint256.Int {
	if x.Lt(y) {
		return new(uint256.Int)
	}
	return new(uint256.Int).Sub(x, y)
}

// MulDivDown returns floor(x*y/d) with a 512-bit intermediate product.
func MulDivDown(x, y, d *uint256.Int) (*uint256.Int, error) {
	if d.IsZero() {
		return nil, ErrDivisionByZero
	}
	z, overflow := new(uint256.Int).MulDivOverflow(x, y, d)
	if overflow {
		return nil, ErrOverflow
	}
	return z, nil
}

// MulDivUp returns ceil(x*y/d).
func MulDivUp(x, y, d *uint256.Int) (*uint256.Int, error) {
	z, err := MulDivDown(x, y, d)
	if err != nil {
		return nil, err
	}
	if new(uint256.Int).MulMod(x, y, d).IsZero() {
		return z, nil
	}
	return Add(z, uint256.NewInt(1))
}

// Mul multiplies two wad values rounding down.
func Mul(x, y *uint256.Int) (*uint256.Int, error) { return MulDivDown(x, y, one) }

func MulUp(x, y *uint256.Int) (*uint256.Int, error) { return MulDivUp(x, y, one) }

// Div divides two wad values rounding down.
func Div(x, y *uint256.Int) (*uint256.Int, error) { return MulDivDown(x, one, y) }

func DivUp(x, y *uint256.Int) (*uint256.Int, error) { return MulDivUp(x, one, y) }

// mulHalfUp is x*y/1e18 rounded half up, the rounding rpow uses for every step.
func mulHalfUp(x, y *uint256.Int) (*uint256.Int, error) {
	p, overflow := new(uint256.Int).MulOverflow(x, y)
	if overflow {
		return nil, ErrOverflow
	}
	p, overflow = p.AddOverflow(p, halfOne)
	if overflow {
		return nil, ErrOverflow
	}
	return p.Div(p, one), nil
}

// Pow raises the wad value x to the integer power n by repeated squaring.
// Pow(x, 0) is 1e18.
func Pow(x *uint256.Int, n uint64) (*uint256.Int, error) {
	z := One()
	if n%2 != 0 {
		z.Set(x)
	}
	base := new(uint256.Int).Set(x)
	var err error
	for n /= 2; n != 0; n /= 2 {
		if base, err = mulHalfUp(base, base); err != nil {
			return nil, err
		}
		if n%2 != 0 {
			if z, err = mulHalfUp(z, base); err != nil {
				return nil, err
			}
		}
	}
	return z, nil
}

// Pow10 returns 10^n as a plain integer.
func Pow10(n uint8) (*uint256.Int, error) {
	if n > 77 {
		return nil, ErrOverflow
	}
	return new(uint256.Int).Exp(ten, uint256.NewInt(uint64(n))), nil
}

// FromDecimal scales d by 1e18. Digits beyond the 18th decimal place are truncated.
func FromDecimal(d decimal.Decimal) (*uint256.Int, error) {
	if d.IsNegative() {
		return nil, ErrUnderflow
	}
	z, overflow := uint256.FromBig(d.Shift(Decimals).BigInt())
	if overflow {
		return nil, ErrOverflow
	}
	return z, nil
}

// Parse reads a human decimal string such as "0.75" into a wad value.
func Parse(s string) (*uint256.Int, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return nil, errors.Wrapf(err, "wad: parse %q", s)
	}
	return FromDecimal(d)
}

// MustParse is Parse for constants and tests.
func MustParse(s string) *uint256.Int {
	z, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return z
}

// ToDecimal is the inverse of FromDecimal.
func ToDecimal(x *uint256.Int) decimal.Decimal {
	if x == nil {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(x.ToBig(), -Decimals)
}

// ScaleToDecimal renders an integer amount with the given number of decimals.
func ScaleToDecimal(x *uint256.Int, decimals int32) decimal.Decimal {
	if x == nil {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(x.ToBig(), -decimals)
}
