package types

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
)

// Account identifies a share holder. It is a 160-bit address, comparable and
// usable as a map key; the zero address is a valid key like any other.
type Account = common.Address

// ParseAccount parses a 0x-prefixed 40-hex-digit address.
func ParseAccount(s string) (Account, error) {
	if !common.IsHexAddress(s) {
		return Account{}, fmt.Errorf("account: invalid address %q", s)
	}
	return common.HexToAddress(s), nil
}

// MustParseAccount is like ParseAccount but panics on error.
func MustParseAccount(s string) Account {
	a, err := ParseAccount(s)
	if err != nil {
		panic(err)
	}
	return a
}
