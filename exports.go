package shareledger

import "github.com/xraph/shareledger/types"

// Re-export common types for convenience so users don't have to import types package.

// Amount is re-exported from types package.
type Amount = types.Amount

// Account is re-exported from types package.
type Account = types.Account

// Entity is re-exported from types package.
type Entity = types.Entity

// Re-export Amount and Account constructors
var (
	NewAmount        = types.NewAmount
	ParseAmount      = types.ParseAmount
	MustParseAmount  = types.MustParseAmount
	MaxAmount        = types.Max
	ZeroAmount       = types.Zero
	ParseAccount     = types.ParseAccount
	MustParseAccount = types.MustParseAccount
)

// Re-export Entity constructor
var NewEntity = types.NewEntity
