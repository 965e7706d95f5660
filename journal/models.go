// Package journal defines the append-only record of committed ledger updates.
//
// Each Entry holds every operation applied by one Ledger.Update call, so a
// ledger can be rebuilt by replaying entries in sequence order.
package journal

import (
	"time"

	"github.com/xraph/shareledger/id"
	"github.com/xraph/shareledger/types"
)

// Kind names a ledger mutation.
type Kind string

const (
	KindMint     Kind = "mint"
	KindBurn     Kind = "burn"
	KindTransfer Kind = "transfer"
	KindRebase   Kind = "rebase"
)

// Op is one mutation inside an entry. Which fields are meaningful depends
// on Kind: mint uses To, burn uses From, transfer uses both, and rebase uses
// Positive.
type Op struct {
	Kind     Kind          `json:"kind"`
	From     types.Account `json:"from"`
	To       types.Account `json:"to"`
	Amount   types.Amount  `json:"amount"`
	Positive bool          `json:"positive,omitempty"`
}

// Entry is one committed update of a pool's ledger.
type Entry struct {
	ID        id.EntryID        `json:"id"`
	PoolID    id.PoolID         `json:"pool_id"`
	Seq       uint64            `json:"seq"`
	Ops       []Op              `json:"ops"`
	Reference string            `json:"reference,omitempty"`
	Metadata  map[string]string `json:"metadata,omitempty"`
	Timestamp time.Time         `json:"timestamp"`
}

// NewEntry builds an entry for the given pool and sequence number.
func NewEntry(poolID id.PoolID, seq uint64, ops []Op) *Entry {
	return &Entry{
		ID:        id.NewEntryID(),
		PoolID:    poolID,
		Seq:       seq,
		Ops:       ops,
		Timestamp: time.Now().UTC(),
	}
}
