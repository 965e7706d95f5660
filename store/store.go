// Package store defines the persistence boundary of the engine.
package store

import (
	"context"

	"github.com/xraph/shareledger/journal"
	"github.com/xraph/shareledger/pool"
	"github.com/xraph/shareledger/snapshot"
)

// Store is the unified storage interface for pools, journal entries and
// snapshots. Every write is a single record, so each entry and snapshot is
// persisted atomically without cross-record transactions.
type Store interface {
	pool.Store
	journal.Store
	snapshot.Store

	// Core methods
	Migrate(ctx context.Context) error
	Ping(ctx context.Context) error
	Close() error
}
