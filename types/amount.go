// Package types provides common types used across shareledger.
package types

import (
	"bytes"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/holiman/uint256"
)

// Arithmetic sentinels. ErrOverflow and ErrUnderflow both match ErrArithmetic
// under errors.Is.
var (
	ErrArithmetic     = errors.New("amount: arithmetic error")
	ErrOverflow       = fmt.Errorf("%w: overflow", ErrArithmetic)
	ErrUnderflow      = fmt.Errorf("%w: underflow", ErrArithmetic)
	ErrDivisionByZero = errors.New("amount: division by zero")
	ErrInvalidAmount  = errors.New("amount: invalid value")
)

// Amount is an unsigned 256-bit integer quantity (shares or pooled value).
// All arithmetic is checked: an operation whose result would leave
// [0, 2^256-1] returns an error instead of wrapping.
//
// The zero value is 0 and ready to use. Amount has value semantics and is
// safe to copy and compare with Eq.
type Amount struct {
	v uint256.Int
}

// Zero returns the zero Amount.
func Zero() Amount { return Amount{} }

// NewAmount creates an Amount from a uint64.
func NewAmount(n uint64) Amount {
	var a Amount
	a.v.SetUint64(n)
	return a
}

// Max returns the largest representable Amount, 2^256-1.
func Max() Amount {
	var a Amount
	a.v.SetAllOne()
	return a
}

// ParseAmount parses a base-10 string, or a 0x-prefixed hex string, into an Amount.
func ParseAmount(s string) (Amount, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Amount{}, fmt.Errorf("%w: empty string", ErrInvalidAmount)
	}

	var (
		v   *uint256.Int
		err error
	)
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		v, err = uint256.FromHex(s)
	} else {
		v, err = uint256.FromDecimal(s)
	}
	if err != nil {
		return Amount{}, fmt.Errorf("%w: parse %q: %v", ErrInvalidAmount, s, err)
	}
	return Amount{v: *v}, nil
}

// MustParseAmount is like ParseAmount but panics on error. Use for constants.
func MustParseAmount(s string) Amount {
	a, err := ParseAmount(s)
	if err != nil {
		panic(err)
	}
	return a
}

// FromBig converts a big.Int. Negative values return ErrUnderflow and values
// wider than 256 bits return ErrOverflow.
func FromBig(b *big.Int) (Amount, error) {
	if b == nil {
		return Amount{}, nil
	}
	if b.Sign() < 0 {
		return Amount{}, ErrUnderflow
	}
	v, overflow := uint256.FromBig(b)
	if overflow {
		return Amount{}, ErrOverflow
	}
	return Amount{v: *v}, nil
}

// Checked arithmetic

// Add returns a+b, or ErrOverflow if the sum exceeds 2^256-1.
func (a Amount) Add(b Amount) (Amount, error) {
	var z Amount
	if _, overflow := z.v.AddOverflow(&a.v, &b.v); overflow {
		return Amount{}, ErrOverflow
	}
	return z, nil
}

// Sub returns a-b, or ErrUnderflow if b > a.
func (a Amount) Sub(b Amount) (Amount, error) {
	var z Amount
	if _, underflow := z.v.SubOverflow(&a.v, &b.v); underflow {
		return Amount{}, ErrUnderflow
	}
	return z, nil
}

// MulDiv returns floor(a*b/d). The product is held in 512 bits so it never
// wraps; ErrOverflow is returned only when the quotient itself does not fit.
func (a Amount) MulDiv(b, d Amount) (Amount, error) {
	if d.v.IsZero() {
		return Amount{}, ErrDivisionByZero
	}
	var z Amount
	if _, overflow := z.v.MulDivOverflow(&a.v, &b.v, &d.v); overflow {
		return Amount{}, ErrOverflow
	}
	return z, nil
}

// Comparison methods

// Cmp returns -1, 0 or +1 depending on whether a is less than, equal to or
// greater than b.
func (a Amount) Cmp(b Amount) int { return a.v.Cmp(&b.v) }

// Eq reports whether a == b.
func (a Amount) Eq(b Amount) bool { return a.v.Eq(&b.v) }

// Lt reports whether a < b.
func (a Amount) Lt(b Amount) bool { return a.v.Lt(&b.v) }

// Gt reports whether a > b.
func (a Amount) Gt(b Amount) bool { return a.v.Gt(&b.v) }

// IsZero reports whether a == 0.
func (a Amount) IsZero() bool { return a.v.IsZero() }

// Min returns the smaller of a and b.
func (a Amount) Min(b Amount) Amount {
	if a.Lt(b) {
		return a
	}
	return b
}

// Conversions

// Uint64 returns the value as a uint64 and whether it fit without truncation.
func (a Amount) Uint64() (uint64, bool) {
	return a.v.Uint64(), a.v.IsUint64()
}

// Big returns the value as a newly allocated big.Int.
func (a Amount) Big() *big.Int { return a.v.ToBig() }

// String returns the base-10 representation.
func (a Amount) String() string { return a.v.Dec() }

// Hex returns the 0x-prefixed hex representation.
func (a Amount) Hex() string { return a.v.Hex() }

// MarshalText implements encoding.TextMarshaler using base 10.
func (a Amount) MarshalText() ([]byte, error) {
	return []byte(a.v.Dec()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler. It accepts base-10 or
// 0x-prefixed hex.
func (a *Amount) UnmarshalText(data []byte) error {
	parsed, err := ParseAmount(string(data))
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}

// MarshalJSON encodes the amount as a quoted decimal string so that values
// above 2^53 survive JavaScript clients.
func (a Amount) MarshalJSON() ([]byte, error) {
	return []byte(`"` + a.v.Dec() + `"`), nil
}

// UnmarshalJSON accepts a quoted string or a bare JSON integer.
func (a *Amount) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, []byte("null")) {
		*a = Amount{}
		return nil
	}
	if n := len(data); n >= 2 && data[0] == '"' && data[n-1] == '"' {
		return a.UnmarshalText(data[1 : n-1])
	}
	for _, c := range data {
		if c < '0' || c > '9' {
			return fmt.Errorf("%w: malformed JSON %q", ErrInvalidAmount, data)
		}
	}
	return a.UnmarshalText(data)
}

// Sum adds all values, returning ErrOverflow if the total does not fit.
func Sum(values ...Amount) (Amount, error) {
	var total Amount
	for _, v := range values {
		next, err := total.Add(v)
		if err != nil {
			return Amount{}, err
		}
		total = next
	}
	return total, nil
}
