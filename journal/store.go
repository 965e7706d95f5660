package journal

import (
	"context"

	"github.com/xraph/shareledger/id"
)

type Store interface {
	// AppendEntry persists e. An entry with the same (PoolID, Seq) already
	// present is a sequence conflict.
	AppendEntry(ctx context.Context, e *Entry) error
	ListEntries(ctx context.Context, poolID id.PoolID, opts ListOpts) ([]*Entry, error)
}

// ListOpts selects entries with Seq > AfterSeq, in ascending Seq order.
type ListOpts struct {
	AfterSeq uint64
	Limit    int
}
