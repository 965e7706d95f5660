package shareledger

import "github.com/xraph/shareledger/id"

// ID is the primary identifier type for persisted shareledger records.
type ID = id.ID

// Prefix identifies the entity type encoded in a TypeID.
type Prefix = id.Prefix
