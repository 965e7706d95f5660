package pool

import (
	"github.com/xraph/shareledger/id"
	"github.com/xraph/shareledger/types"
)

type Status string

const (
	StatusActive   Status = "active"
	StatusArchived Status = "archived"
)

// Pool is a named share ledger. Its balances live in the journal and
// snapshots; this record only carries identity and policy.
type Pool struct {
	types.Entity
	ID          id.PoolID         `json:"id"`
	Name        string            `json:"name"`
	Slug        string            `json:"slug"`
	Description string            `json:"description"`
	Unit        string            `json:"unit"` // denomination of the pooled value, e.g. "wei"
	Status      Status            `json:"status"`
	Cap         *types.Amount     `json:"cap,omitempty"` // nil means 2^256-1
	Metadata    map[string]string `json:"metadata,omitempty"`
}

// IsArchived reports whether the pool rejects further mutations.
func (p *Pool) IsArchived() bool { return p.Status == StatusArchived }
