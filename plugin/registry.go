package plugin

import (
	"context"
	"fmt"
	"log/slog"
	"reflect"
	"sync"
	"time"

	"github.com/xraph/shareledger/journal"
	"github.com/xraph/shareledger/pool"
	"github.com/xraph/shareledger/snapshot"
	"github.com/xraph/shareledger/types"
)

// DefaultTimeout bounds how long a single hook may run.
const DefaultTimeout = 5 * time.Second

// Registry manages all registered plugins and provides efficient dispatch.
// It uses type-cached discovery for O(1) dispatch performance.
type Registry struct {
	mu      sync.RWMutex
	plugins []Plugin
	logger  *slog.Logger
	timeout time.Duration

	// Type-cached plugin lists for efficient dispatch
	onInit              []OnInit
	onShutdown          []OnShutdown
	onPoolCreated       []OnPoolCreated
	onPoolArchived      []OnPoolArchived
	onSharesMinted      []OnSharesMinted
	onSharesBurned      []OnSharesBurned
	onSharesTransferred []OnSharesTransferred
	onRebased           []OnRebased
	onEntryCommitted    []OnEntryCommitted
	onCommitFailed      []OnCommitFailed
	onSnapshotSaved     []OnSnapshotSaved
}

// NewRegistry creates a new plugin registry.
func NewRegistry() *Registry {
	return &Registry{
		logger:  slog.Default(),
		timeout: DefaultTimeout,
	}
}

// WithLogger sets the logger for the registry.
func (r *Registry) WithLogger(logger *slog.Logger) *Registry {
	r.logger = logger
	return r
}

// WithTimeout sets the per-hook timeout.
func (r *Registry) WithTimeout(d time.Duration) *Registry {
	r.timeout = d
	return r
}

// Register adds a plugin to the registry and caches its interfaces.
func (r *Registry) Register(p Plugin) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.plugins {
		if existing.Name() == p.Name() {
			return fmt.Errorf("plugin: duplicate registration: %s", p.Name())
		}
	}

	r.plugins = append(r.plugins, p)

	if v, ok := p.(OnInit); ok {
		r.onInit = append(r.onInit, v)
	}
	if v, ok := p.(OnShutdown); ok {
		r.onShutdown = append(r.onShutdown, v)
	}
	if v, ok := p.(OnPoolCreated); ok {
		r.onPoolCreated = append(r.onPoolCreated, v)
	}
	if v, ok := p.(OnPoolArchived); ok {
		r.onPoolArchived = append(r.onPoolArchived, v)
	}
	if v, ok := p.(OnSharesMinted); ok {
		r.onSharesMinted = append(r.onSharesMinted, v)
	}
	if v, ok := p.(OnSharesBurned); ok {
		r.onSharesBurned = append(r.onSharesBurned, v)
	}
	if v, ok := p.(OnSharesTransferred); ok {
		r.onSharesTransferred = append(r.onSharesTransferred, v)
	}
	if v, ok := p.(OnRebased); ok {
		r.onRebased = append(r.onRebased, v)
	}
	if v, ok := p.(OnEntryCommitted); ok {
		r.onEntryCommitted = append(r.onEntryCommitted, v)
	}
	if v, ok := p.(OnCommitFailed); ok {
		r.onCommitFailed = append(r.onCommitFailed, v)
	}
	if v, ok := p.(OnSnapshotSaved); ok {
		r.onSnapshotSaved = append(r.onSnapshotSaved, v)
	}

	r.logger.Info("plugin registered",
		"name", p.Name(),
		"interfaces", implementedInterfaces(p),
	)

	return nil
}

var hookTypes = []struct {
	typ  reflect.Type
	name string
}{
	{reflect.TypeOf((*OnInit)(nil)).Elem(), "OnInit"},
	{reflect.TypeOf((*OnShutdown)(nil)).Elem(), "OnShutdown"},
	{reflect.TypeOf((*OnPoolCreated)(nil)).Elem(), "OnPoolCreated"},
	{reflect.TypeOf((*OnPoolArchived)(nil)).Elem(), "OnPoolArchived"},
	{reflect.TypeOf((*OnSharesMinted)(nil)).Elem(), "OnSharesMinted"},
	{reflect.TypeOf((*OnSharesBurned)(nil)).Elem(), "OnSharesBurned"},
	{reflect.TypeOf((*OnSharesTransferred)(nil)).Elem(), "OnSharesTransferred"},
	{reflect.TypeOf((*OnRebased)(nil)).Elem(), "OnRebased"},
	{reflect.TypeOf((*OnEntryCommitted)(nil)).Elem(), "OnEntryCommitted"},
	{reflect.TypeOf((*OnCommitFailed)(nil)).Elem(), "OnCommitFailed"},
	{reflect.TypeOf((*OnSnapshotSaved)(nil)).Elem(), "OnSnapshotSaved"},
}

// implementedInterfaces returns the hook names implemented by the plugin.
func implementedInterfaces(p Plugin) []string {
	var names []string
	v := reflect.TypeOf(p)
	for _, h := range hookTypes {
		if v.Implements(h.typ) {
			names = append(names, h.name)
		}
	}
	return names
}

// Get returns a plugin by name.
func (r *Registry) Get(name string) Plugin {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, p := range r.plugins {
		if p.Name() == name {
			return p
		}
	}
	return nil
}

// List returns all registered plugins.
func (r *Registry) List() []Plugin {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]Plugin, len(r.plugins))
	copy(result, r.plugins)
	return result
}

// Count returns the number of registered plugins.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.plugins)
}

// ──────────────────────────────────────────────────
// Event emission methods
// ──────────────────────────────────────────────────

// emit runs call for every plugin in hooks, logging failures. Hook errors
// never propagate to the caller.
func emit[T Plugin](ctx context.Context, r *Registry, hook string, list func() []T, call func(T) error) {
	r.mu.RLock()
	plugins := list()
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return call(p)
		}); err != nil {
			r.logger.Warn("plugin "+hook+" failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// EmitInit calls OnInit for all plugins that implement it.
func (r *Registry) EmitInit(ctx context.Context, engine interface{}) {
	emit(ctx, r, "OnInit", func() []OnInit { return r.onInit }, func(p OnInit) error {
		return p.OnInit(ctx, engine)
	})
}

// EmitShutdown calls OnShutdown for all plugins that implement it.
func (r *Registry) EmitShutdown(ctx context.Context) {
	emit(ctx, r, "OnShutdown", func() []OnShutdown { return r.onShutdown }, func(p OnShutdown) error {
		return p.OnShutdown(ctx)
	})
}

// EmitPoolCreated emits a pool created event.
func (r *Registry) EmitPoolCreated(ctx context.Context, pl *pool.Pool) {
	emit(ctx, r, "OnPoolCreated", func() []OnPoolCreated { return r.onPoolCreated }, func(p OnPoolCreated) error {
		return p.OnPoolCreated(ctx, pl)
	})
}

// EmitPoolArchived emits a pool archived event.
func (r *Registry) EmitPoolArchived(ctx context.Context, pl *pool.Pool) {
	emit(ctx, r, "OnPoolArchived", func() []OnPoolArchived { return r.onPoolArchived }, func(p OnPoolArchived) error {
		return p.OnPoolArchived(ctx, pl)
	})
}

// EmitSharesMinted emits a shares minted event.
func (r *Registry) EmitSharesMinted(ctx context.Context, pl *pool.Pool, to types.Account, amount types.Amount) {
	emit(ctx, r, "OnSharesMinted", func() []OnSharesMinted { return r.onSharesMinted }, func(p OnSharesMinted) error {
		return p.OnSharesMinted(ctx, pl, to, amount)
	})
}

// EmitSharesBurned emits a shares burned event.
func (r *Registry) EmitSharesBurned(ctx context.Context, pl *pool.Pool, from types.Account, amount types.Amount) {
	emit(ctx, r, "OnSharesBurned", func() []OnSharesBurned { return r.onSharesBurned }, func(p OnSharesBurned) error {
		return p.OnSharesBurned(ctx, pl, from, amount)
	})
}

// EmitSharesTransferred emits a shares transferred event.
func (r *Registry) EmitSharesTransferred(ctx context.Context, pl *pool.Pool, from, to types.Account, amount types.Amount) {
	emit(ctx, r, "OnSharesTransferred", func() []OnSharesTransferred { return r.onSharesTransferred }, func(p OnSharesTransferred) error {
		return p.OnSharesTransferred(ctx, pl, from, to, amount)
	})
}

// EmitRebased emits a pooled value change event.
func (r *Registry) EmitRebased(ctx context.Context, pl *pool.Pool, positive bool, delta, pooledValue types.Amount) {
	emit(ctx, r, "OnRebased", func() []OnRebased { return r.onRebased }, func(p OnRebased) error {
		return p.OnRebased(ctx, pl, positive, delta, pooledValue)
	})
}

// EmitEntryCommitted emits a journal entry committed event.
func (r *Registry) EmitEntryCommitted(ctx context.Context, entry *journal.Entry) {
	emit(ctx, r, "OnEntryCommitted", func() []OnEntryCommitted { return r.onEntryCommitted }, func(p OnEntryCommitted) error {
		return p.OnEntryCommitted(ctx, entry)
	})
}

// EmitCommitFailed emits a rolled back update event.
func (r *Registry) EmitCommitFailed(ctx context.Context, pl *pool.Pool, cause error) {
	emit(ctx, r, "OnCommitFailed", func() []OnCommitFailed { return r.onCommitFailed }, func(p OnCommitFailed) error {
		return p.OnCommitFailed(ctx, pl, cause)
	})
}

// EmitSnapshotSaved emits a snapshot saved event.
func (r *Registry) EmitSnapshotSaved(ctx context.Context, snap *snapshot.Snapshot) {
	emit(ctx, r, "OnSnapshotSaved", func() []OnSnapshotSaved { return r.onSnapshotSaved }, func(p OnSnapshotSaved) error {
		return p.OnSnapshotSaved(ctx, snap)
	})
}

// callWithTimeout calls a plugin function with a timeout.
// Plugins should never block the ledger pipeline.
func (r *Registry) callWithTimeout(ctx context.Context, pluginName string, fn func() error) error {
	done := make(chan error, 1)

	go func() {
		done <- fn()
	}()

	timer := time.NewTimer(r.timeout)
	defer timer.Stop()

	select {
	case err := <-done:
		return err
	case <-timer.C:
		return fmt.Errorf("plugin timeout: %s", pluginName)
	case <-ctx.Done():
		return ctx.Err()
	}
}
