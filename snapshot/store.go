package snapshot

import (
	"context"

	"github.com/xraph/shareledger/id"
)

type Store interface {
	SaveSnapshot(ctx context.Context, s *Snapshot) error
	// LatestSnapshot returns the snapshot with the highest Seq for the pool.
	LatestSnapshot(ctx context.Context, poolID id.PoolID) (*Snapshot, error)
}
