// Package observability provides a metrics extension for shareledger that
// records share and valuation event counts via a MetricFactory.
package observability

import (
	"context"

	"github.com/xraph/shareledger/journal"
	"github.com/xraph/shareledger/plugin"
	"github.com/xraph/shareledger/pool"
	"github.com/xraph/shareledger/snapshot"
	"github.com/xraph/shareledger/types"
)

// Ensure MetricsExtension implements required interfaces.
var (
	_ plugin.Plugin              = (*MetricsExtension)(nil)
	_ plugin.OnInit              = (*MetricsExtension)(nil)
	_ plugin.OnPoolCreated       = (*MetricsExtension)(nil)
	_ plugin.OnPoolArchived      = (*MetricsExtension)(nil)
	_ plugin.OnSharesMinted      = (*MetricsExtension)(nil)
	_ plugin.OnSharesBurned      = (*MetricsExtension)(nil)
	_ plugin.OnSharesTransferred = (*MetricsExtension)(nil)
	_ plugin.OnRebased           = (*MetricsExtension)(nil)
	_ plugin.OnEntryCommitted    = (*MetricsExtension)(nil)
	_ plugin.OnCommitFailed      = (*MetricsExtension)(nil)
	_ plugin.OnSnapshotSaved     = (*MetricsExtension)(nil)
)

// Counter interface for metric counters.
type Counter interface {
	Inc()
	Add(float64)
}

// Histogram interface for metric histograms.
type Histogram interface {
	Observe(float64)
}

// MetricFactory creates metrics.
type MetricFactory interface {
	Counter(name string) Counter
	Histogram(name string) Histogram
}

// MetricsExtension records system-wide ledger metrics.
// Register it as a shareledger plugin to track pool activity.
type MetricsExtension struct {
	factory MetricFactory

	// Pool metrics
	PoolCreated  Counter
	PoolArchived Counter

	// Share metrics
	SharesMinted      Counter
	SharesBurned      Counter
	SharesTransferred Counter

	// Valuation metrics
	RebasePositive Counter
	RebaseNegative Counter

	// Journal metrics
	EntriesCommitted Counter
	EntryOps         Histogram
	CommitFailures   Counter

	// Snapshot metrics
	SnapshotsSaved  Counter
	SnapshotHolders Histogram
}

// NewMetricsExtension creates a MetricsExtension with the provided MetricFactory.
// Use app.Metrics() in forge extensions.
func NewMetricsExtension(factory MetricFactory) *MetricsExtension {
	return &MetricsExtension{
		factory: factory,

		PoolCreated:  factory.Counter("shareledger.pool.created"),
		PoolArchived: factory.Counter("shareledger.pool.archived"),

		SharesMinted:      factory.Counter("shareledger.shares.minted"),
		SharesBurned:      factory.Counter("shareledger.shares.burned"),
		SharesTransferred: factory.Counter("shareledger.shares.transferred"),

		RebasePositive: factory.Counter("shareledger.rebase.positive"),
		RebaseNegative: factory.Counter("shareledger.rebase.negative"),

		EntriesCommitted: factory.Counter("shareledger.journal.committed"),
		EntryOps:         factory.Histogram("shareledger.journal.ops"),
		CommitFailures:   factory.Counter("shareledger.journal.failed"),

		SnapshotsSaved:  factory.Counter("shareledger.snapshot.saved"),
		SnapshotHolders: factory.Histogram("shareledger.snapshot.holders"),
	}
}

// Name implements plugin.Plugin.
func (m *MetricsExtension) Name() string { return "observability-metrics" }

// OnInit implements plugin.OnInit.
func (m *MetricsExtension) OnInit(_ context.Context, _ interface{}) error {
	return nil
}

// ──────────────────────────────────────────────────
// Pool lifecycle hooks
// ──────────────────────────────────────────────────

// OnPoolCreated implements plugin.OnPoolCreated.
func (m *MetricsExtension) OnPoolCreated(_ context.Context, _ *pool.Pool) error {
	m.PoolCreated.Inc()
	return nil
}

// OnPoolArchived implements plugin.OnPoolArchived.
func (m *MetricsExtension) OnPoolArchived(_ context.Context, _ *pool.Pool) error {
	m.PoolArchived.Inc()
	return nil
}

// ──────────────────────────────────────────────────
// Share hooks
// ──────────────────────────────────────────────────

// Share amounts can exceed float64 precision, so the counters track
// operation counts rather than volumes.

// OnSharesMinted implements plugin.OnSharesMinted.
func (m *MetricsExtension) OnSharesMinted(_ context.Context, _ *pool.Pool, _ types.Account, _ types.Amount) error {
	m.SharesMinted.Inc()
	return nil
}

// OnSharesBurned implements plugin.OnSharesBurned.
func (m *MetricsExtension) OnSharesBurned(_ context.Context, _ *pool.Pool, _ types.Account, _ types.Amount) error {
	m.SharesBurned.Inc()
	return nil
}

// OnSharesTransferred implements plugin.OnSharesTransferred.
func (m *MetricsExtension) OnSharesTransferred(_ context.Context, _ *pool.Pool, _, _ types.Account, _ types.Amount) error {
	m.SharesTransferred.Inc()
	return nil
}

// OnRebased implements plugin.OnRebased.
func (m *MetricsExtension) OnRebased(_ context.Context, _ *pool.Pool, positive bool, _, _ types.Amount) error {
	if positive {
		m.RebasePositive.Inc()
	} else {
		m.RebaseNegative.Inc()
	}
	return nil
}

// ──────────────────────────────────────────────────
// Journal and snapshot hooks
// ──────────────────────────────────────────────────

// OnEntryCommitted implements plugin.OnEntryCommitted.
func (m *MetricsExtension) OnEntryCommitted(_ context.Context, entry *journal.Entry) error {
	m.EntriesCommitted.Inc()
	m.EntryOps.Observe(float64(len(entry.Ops)))
	return nil
}

// OnCommitFailed implements plugin.OnCommitFailed.
func (m *MetricsExtension) OnCommitFailed(_ context.Context, _ *pool.Pool, _ error) error {
	m.CommitFailures.Inc()
	return nil
}

// OnSnapshotSaved implements plugin.OnSnapshotSaved.
func (m *MetricsExtension) OnSnapshotSaved(_ context.Context, snap *snapshot.Snapshot) error {
	m.SnapshotsSaved.Inc()
	m.SnapshotHolders.Observe(float64(len(snap.Shares)))
	return nil
}
