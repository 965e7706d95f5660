// Package plugin provides an extensible plugin system for shareledger.
// Plugins can hook into pool, journal and snapshot events to extend
// functionality.
package plugin

import (
	"context"

	"github.com/xraph/shareledger/journal"
	"github.com/xraph/shareledger/pool"
	"github.com/xraph/shareledger/snapshot"
	"github.com/xraph/shareledger/types"
)

// Plugin is the base interface that all plugins must implement.
type Plugin interface {
	Name() string
}

// ──────────────────────────────────────────────────
// Lifecycle hooks
// ──────────────────────────────────────────────────

// OnInit is called when the engine starts. engine is the *shareledger.Engine.
type OnInit interface {
	Plugin
	OnInit(ctx context.Context, engine interface{}) error
}

// OnShutdown is called when the plugin is shutting down.
type OnShutdown interface {
	Plugin
	OnShutdown(ctx context.Context) error
}

// ──────────────────────────────────────────────────
// Pool lifecycle hooks
// ──────────────────────────────────────────────────

// OnPoolCreated is called when a new pool is created.
type OnPoolCreated interface {
	Plugin
	OnPoolCreated(ctx context.Context, p *pool.Pool) error
}

// OnPoolArchived is called when a pool is archived.
type OnPoolArchived interface {
	Plugin
	OnPoolArchived(ctx context.Context, p *pool.Pool) error
}

// ──────────────────────────────────────────────────
// Share hooks
// ──────────────────────────────────────────────────

// OnSharesMinted is called once per committed mint.
type OnSharesMinted interface {
	Plugin
	OnSharesMinted(ctx context.Context, p *pool.Pool, to types.Account, amount types.Amount) error
}

// OnSharesBurned is called once per committed burn.
type OnSharesBurned interface {
	Plugin
	OnSharesBurned(ctx context.Context, p *pool.Pool, from types.Account, amount types.Amount) error
}

// OnSharesTransferred is called once per committed transfer.
type OnSharesTransferred interface {
	Plugin
	OnSharesTransferred(ctx context.Context, p *pool.Pool, from, to types.Account, amount types.Amount) error
}

// OnRebased is called when the pooled value of a pool changes.
type OnRebased interface {
	Plugin
	OnRebased(ctx context.Context, p *pool.Pool, positive bool, delta, pooledValue types.Amount) error
}

// ──────────────────────────────────────────────────
// Journal and snapshot hooks
// ──────────────────────────────────────────────────

// OnEntryCommitted is called after a journal entry is durably stored and
// applied.
type OnEntryCommitted interface {
	Plugin
	OnEntryCommitted(ctx context.Context, entry *journal.Entry) error
}

// OnCommitFailed is called when the store rejects a journal entry and the
// update is rolled back.
type OnCommitFailed interface {
	Plugin
	OnCommitFailed(ctx context.Context, p *pool.Pool, err error) error
}

// OnSnapshotSaved is called after a snapshot is persisted.
type OnSnapshotSaved interface {
	Plugin
	OnSnapshotSaved(ctx context.Context, snap *snapshot.Snapshot) error
}
