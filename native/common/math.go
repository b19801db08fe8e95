package common

import (
	"errors"
	"math/big"

	"github.com/holiman/uint256"
)

var (
	// ErrAmountOverflow is returned when a value does not fit in 256 bits.
	ErrAmountOverflow = errors.New("amount overflows uint256")
	// ErrNegativeAmount is returned for negative inputs.
	ErrNegativeAmount = errors.New("amount must not be negative")
)

// ToUint256 converts a non-negative big integer, rejecting values that do not
// fit in an EVM word. Nil is treated as zero.
func ToUint256(v *big.Int) (*uint256.Int, error) {
	if v == nil {
		return new(uint256.Int), nil
	}
	if v.Sign() < 0 {
		return nil, ErrNegativeAmount
	}
	out, overflow := uint256.FromBig(v)
	if overflow {
		return nil, ErrAmountOverflow
	}
	return out, nil
}

// MulDiv returns a*b/d rounded down. d must be non-zero.
func MulDiv(a, b, d *big.Int) (*big.Int, error) {
	x, err := ToUint256(a)
	if err != nil {
		return nil, err
	}
	y, err := ToUint256(b)
	if err != nil {
		return nil, err
	}
	z, err := ToUint256(d)
	if err != nil {
		return nil, err
	}
	if z.IsZero() {
		return nil, errors.New("division by zero")
	}
	product, overflow := new(uint256.Int).MulOverflow(x, y)
	if overflow {
		return nil, ErrAmountOverflow
	}
	return new(uint256.Int).Div(product, z).ToBig(), nil
}

// Percent returns amount*pct/100 rounded down.
func Percent(amount *big.Int, pct uint64) (*big.Int, error) {
	return MulDiv(amount, new(big.Int).SetUint64(pct), big.NewInt(100))
}

// MulUint returns amount*n.
func MulUint(amount *big.Int, n uint64) (*big.Int, error) {
	x, err := ToUint256(amount)
	if err != nil {
		return nil, err
	}
	product, overflow := new(uint256.Int).MulOverflow(x, new(uint256.Int).SetUint64(n))
	if overflow {
		return nil, ErrAmountOverflow
	}
	return product.ToBig(), nil
}

// Add returns a+b, failing on uint256 overflow.
func Add(a, b *big.Int) (*big.Int, error) {
	x, err := ToUint256(a)
	if err != nil {
		return nil, err
	}
	y, err := ToUint256(b)
	if err != nil {
		return nil, err
	}
	sum, overflow := new(uint256.Int).AddOverflow(x, y)
	if overflow {
		return nil, ErrAmountOverflow
	}
	return sum.ToBig(), nil
}

// IsPositive reports whether v is a strictly positive amount that fits in 256 bits.
func IsPositive(v *big.Int) bool {
	if v == nil || v.Sign() <= 0 {
		return false
	}
	_, overflow := uint256.FromBig(v)
	return !overflow
}

// Clone copies v, mapping nil to zero.
func Clone(v *big.Int) *big.Int {
	if v == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(v)
}
