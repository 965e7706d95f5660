// Package audithook bridges shareledger events to an audit trail backend.
//
// It defines a local Recorder interface so the package does not import
// Chronicle directly. Callers inject a RecorderFunc adapter that bridges
// to Chronicle at wiring time.
package audithook

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/xraph/shareledger/journal"
	"github.com/xraph/shareledger/plugin"
	"github.com/xraph/shareledger/pool"
	"github.com/xraph/shareledger/snapshot"
	"github.com/xraph/shareledger/types"
)

// Compile-time interface checks.
var (
	_ plugin.Plugin              = (*Extension)(nil)
	_ plugin.OnPoolCreated       = (*Extension)(nil)
	_ plugin.OnPoolArchived      = (*Extension)(nil)
	_ plugin.OnSharesMinted      = (*Extension)(nil)
	_ plugin.OnSharesBurned      = (*Extension)(nil)
	_ plugin.OnSharesTransferred = (*Extension)(nil)
	_ plugin.OnRebased           = (*Extension)(nil)
	_ plugin.OnEntryCommitted    = (*Extension)(nil)
	_ plugin.OnCommitFailed      = (*Extension)(nil)
	_ plugin.OnSnapshotSaved     = (*Extension)(nil)
)

// Recorder is the interface that audit backends must implement.
// This matches chronicle.Emitter but is defined locally so that the
// audit_hook package does not import Chronicle directly.
type Recorder interface {
	Record(ctx context.Context, event *AuditEvent) error
}

// AuditEvent is a local representation of an audit event.
// It mirrors chronicle/audit.Event but avoids a module dependency.
type AuditEvent struct {
	Action     string         `json:"action"`
	Resource   string         `json:"resource"`
	Category   string         `json:"category"`
	ResourceID string         `json:"resource_id,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	Outcome    string         `json:"outcome"`
	Severity   string         `json:"severity"`
	Reason     string         `json:"reason,omitempty"`
}

// RecorderFunc is an adapter to use a plain function as a Recorder.
type RecorderFunc func(ctx context.Context, event *AuditEvent) error

// Record implements Recorder.
func (f RecorderFunc) Record(ctx context.Context, event *AuditEvent) error {
	return f(ctx, event)
}

// Extension bridges shareledger events to an audit trail backend.
type Extension struct {
	recorder Recorder
	enabled  map[string]bool // nil = all enabled
	logger   *slog.Logger
}

// New creates an Extension that emits audit events through the provided Recorder.
func New(r Recorder, opts ...Option) *Extension {
	e := &Extension{
		recorder: r,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Name implements plugin.Plugin.
func (e *Extension) Name() string { return "audit-hook" }

// ──────────────────────────────────────────────────
// Pool lifecycle hooks
// ──────────────────────────────────────────────────

// OnPoolCreated implements plugin.OnPoolCreated.
func (e *Extension) OnPoolCreated(ctx context.Context, p *pool.Pool) error {
	return e.record(ctx, ActionPoolCreated, SeverityInfo, OutcomeSuccess,
		ResourcePool, p.ID.String(), CategoryPool, nil,
		"name", p.Name,
		"slug", p.Slug,
		"unit", p.Unit,
	)
}

// OnPoolArchived implements plugin.OnPoolArchived.
func (e *Extension) OnPoolArchived(ctx context.Context, p *pool.Pool) error {
	return e.record(ctx, ActionPoolArchived, SeverityWarning, OutcomeSuccess,
		ResourcePool, p.ID.String(), CategoryPool, nil,
		"slug", p.Slug,
	)
}

// ──────────────────────────────────────────────────
// Share hooks
// ──────────────────────────────────────────────────

// OnSharesMinted implements plugin.OnSharesMinted.
func (e *Extension) OnSharesMinted(ctx context.Context, p *pool.Pool, to types.Account, amount types.Amount) error {
	return e.record(ctx, ActionSharesMinted, SeverityInfo, OutcomeSuccess,
		ResourceHolder, to.Hex(), CategoryOwnership, nil,
		"pool_id", p.ID.String(),
		"amount", amount.String(),
	)
}

// OnSharesBurned implements plugin.OnSharesBurned.
func (e *Extension) OnSharesBurned(ctx context.Context, p *pool.Pool, from types.Account, amount types.Amount) error {
	return e.record(ctx, ActionSharesBurned, SeverityInfo, OutcomeSuccess,
		ResourceHolder, from.Hex(), CategoryOwnership, nil,
		"pool_id", p.ID.String(),
		"amount", amount.String(),
	)
}

// OnSharesTransferred implements plugin.OnSharesTransferred.
func (e *Extension) OnSharesTransferred(ctx context.Context, p *pool.Pool, from, to types.Account, amount types.Amount) error {
	return e.record(ctx, ActionSharesTransferred, SeverityInfo, OutcomeSuccess,
		ResourceHolder, from.Hex(), CategoryOwnership, nil,
		"pool_id", p.ID.String(),
		"to", to.Hex(),
		"amount", amount.String(),
	)
}

// OnRebased implements plugin.OnRebased.
func (e *Extension) OnRebased(ctx context.Context, p *pool.Pool, positive bool, delta, pooledValue types.Amount) error {
	severity := SeverityInfo
	if !positive {
		severity = SeverityWarning
	}
	return e.record(ctx, ActionRebased, severity, OutcomeSuccess,
		ResourcePool, p.ID.String(), CategoryValuation, nil,
		"positive", positive,
		"delta", delta.String(),
		"pooled_value", pooledValue.String(),
	)
}

// ──────────────────────────────────────────────────
// Journal and snapshot hooks
// ──────────────────────────────────────────────────

// OnEntryCommitted implements plugin.OnEntryCommitted.
func (e *Extension) OnEntryCommitted(ctx context.Context, entry *journal.Entry) error {
	return e.record(ctx, ActionEntryCommitted, SeverityInfo, OutcomeSuccess,
		ResourceJournal, entry.ID.String(), CategoryPersistence, nil,
		"pool_id", entry.PoolID.String(),
		"seq", entry.Seq,
		"ops", len(entry.Ops),
		"reference", entry.Reference,
	)
}

// OnCommitFailed implements plugin.OnCommitFailed.
func (e *Extension) OnCommitFailed(ctx context.Context, p *pool.Pool, err error) error {
	return e.record(ctx, ActionCommitFailed, SeverityError, OutcomeFailure,
		ResourcePool, p.ID.String(), CategoryPersistence, err,
	)
}

// OnSnapshotSaved implements plugin.OnSnapshotSaved.
func (e *Extension) OnSnapshotSaved(ctx context.Context, snap *snapshot.Snapshot) error {
	return e.record(ctx, ActionSnapshotSaved, SeverityInfo, OutcomeSuccess,
		ResourceSnapshot, snap.ID.String(), CategoryPersistence, nil,
		"pool_id", snap.PoolID.String(),
		"seq", snap.Seq,
		"holders", len(snap.Shares),
	)
}

// ──────────────────────────────────────────────────
// Internal helpers
// ──────────────────────────────────────────────────

// record builds and sends an audit event if the action is enabled.
func (e *Extension) record(
	ctx context.Context,
	action, severity, outcome string,
	resource, resourceID, category string,
	err error,
	kvPairs ...any,
) error {
	if e.enabled != nil && !e.enabled[action] {
		return nil
	}

	meta := make(map[string]any, len(kvPairs)/2+1)
	for i := 0; i+1 < len(kvPairs); i += 2 {
		key, ok := kvPairs[i].(string)
		if !ok {
			key = fmt.Sprintf("%v", kvPairs[i])
		}
		meta[key] = kvPairs[i+1]
	}

	var reason string
	if err != nil {
		reason = err.Error()
		meta["error"] = err.Error()
	}

	evt := &AuditEvent{
		Action:     action,
		Resource:   resource,
		Category:   category,
		ResourceID: resourceID,
		Metadata:   meta,
		Outcome:    outcome,
		Severity:   severity,
		Reason:     reason,
	}

	if recErr := e.recorder.Record(ctx, evt); recErr != nil {
		e.logger.Warn("audit_hook: failed to record audit event",
			"action", action,
			"resource_id", resourceID,
			"error", recErr,
		)
	}
	return nil
}
