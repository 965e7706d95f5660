// Package snapshot defines point-in-time copies of a ledger's state.
package snapshot

import (
	"time"

	"github.com/xraph/shareledger/id"
	"github.com/xraph/shareledger/types"
)

// Snapshot is the full persisted state of one pool's ledger after entry Seq:
// the sparse share map and the two scalars.
type Snapshot struct {
	ID          id.SnapshotID                  `json:"id"`
	PoolID      id.PoolID                      `json:"pool_id"`
	Seq         uint64                         `json:"seq"`
	TotalShares types.Amount                   `json:"total_shares"`
	PooledValue types.Amount                   `json:"pooled_value"`
	Shares      map[types.Account]types.Amount `json:"shares"`
	CreatedAt   time.Time                      `json:"created_at"`
}
