package shareledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/xraph/shareledger/id"
	"github.com/xraph/shareledger/journal"
	"github.com/xraph/shareledger/plugin"
	"github.com/xraph/shareledger/pool"
	"github.com/xraph/shareledger/snapshot"
	"github.com/xraph/shareledger/store"
	"github.com/xraph/shareledger/types"
)

const replayPageSize = 500

// Engine runs one Ledger per pool on top of a store. Every committed update
// is appended to the pool's journal before it becomes visible, and the
// snapshot worker periodically persists full ledger state so that opening a
// pool only replays the journal tail.
type Engine struct {
	store   store.Store
	plugins *plugin.Registry
	logger  *slog.Logger

	mu    sync.Mutex
	pools map[string]*openPool

	// Background workers
	snapshotReq chan *openPool
	stopChan    chan struct{}
	stopOnce    sync.Once
	stopErr     error
	wg          sync.WaitGroup

	// Configuration
	defaultCap       *types.Amount
	snapshotEvery    uint64
	snapshotInterval time.Duration
	skipMigrate      bool
}

// openPool is a loaded pool ledger.
type openPool struct {
	ledger *Ledger
	pool   atomic.Pointer[pool.Pool]

	snapMu       sync.Mutex
	lastSnapshot atomic.Uint64
}

// New creates a new Engine instance.
func New(s store.Store, opts ...Option) *Engine {
	e := &Engine{
		store:            s,
		plugins:          plugin.NewRegistry(),
		logger:           slog.Default(),
		pools:            make(map[string]*openPool),
		snapshotReq:      make(chan *openPool, 64),
		stopChan:         make(chan struct{}),
		snapshotEvery:    1000,
		snapshotInterval: time.Minute,
	}

	for _, opt := range opts {
		opt(e)
	}

	return e
}

// Option configures an Engine instance.
type Option func(*Engine)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
		e.plugins.WithLogger(logger)
	}
}

// WithPlugin registers a plugin.
func WithPlugin(p plugin.Plugin) Option {
	return func(e *Engine) {
		_ = e.plugins.Register(p) //nolint:errcheck // best-effort plugin registration during init
	}
}

// WithDefaultCap bounds the counters of pools that do not set their own cap.
func WithDefaultCap(c types.Amount) Option {
	return func(e *Engine) {
		e.defaultCap = &c
	}
}

// WithSnapshotConfig configures snapshotting. A pool is snapshotted once it
// has committed every entries since its last snapshot, and all pools are
// swept every interval. Zero values keep the defaults.
func WithSnapshotConfig(every int, interval time.Duration) Option {
	return func(e *Engine) {
		if every > 0 {
			e.snapshotEvery = uint64(every)
		}
		if interval > 0 {
			e.snapshotInterval = interval
		}
	}
}

// WithoutMigrate makes Start skip store migration, for schemas managed
// outside the engine.
func WithoutMigrate() Option {
	return func(e *Engine) {
		e.skipMigrate = true
	}
}

// Plugins returns the engine's plugin registry.
func (e *Engine) Plugins() *plugin.Registry { return e.plugins }

// Store returns the underlying store.
func (e *Engine) Store() store.Store { return e.store }

// Start migrates the store and begins background workers.
func (e *Engine) Start(ctx context.Context) error {
	if !e.skipMigrate {
		if err := e.store.Migrate(ctx); err != nil {
			return fmt.Errorf("%w: %w", ErrMigrationFailed, err)
		}
	}

	e.plugins.EmitInit(ctx, e)

	e.wg.Add(1)
	go e.snapshotWorker(context.WithoutCancel(ctx))

	e.logger.Info("shareledger started",
		"snapshot_every", e.snapshotEvery,
		"snapshot_interval", e.snapshotInterval,
	)

	return nil
}

// Stop takes a final snapshot of every open pool, shuts down plugins and
// closes the store. Calls after the first return the first call's result.
func (e *Engine) Stop() error {
	e.stopOnce.Do(func() {
		close(e.stopChan)
		e.wg.Wait()

		e.plugins.EmitShutdown(context.Background())
		e.stopErr = e.store.Close()
	})
	return e.stopErr
}

// ──────────────────────────────────────────────────
// Pool Management
// ──────────────────────────────────────────────────

// CreatePool creates a new pool with an empty ledger.
func (e *Engine) CreatePool(ctx context.Context, p *pool.Pool) error {
	if p.Name == "" {
		return ValidationError{Field: "name", Message: "must not be empty"}
	}
	if p.Cap != nil && p.Cap.IsZero() {
		return ValidationError{Field: "cap", Message: "must be positive"}
	}
	if p.ID.IsNil() {
		p.ID = id.NewPoolID()
	}
	if p.Status == "" {
		p.Status = pool.StatusActive
	}
	p.Entity = types.NewEntity()

	if err := e.store.CreatePool(ctx, p); err != nil {
		return err
	}

	e.logger.Info("pool created", "pool_id", p.ID.String(), "slug", p.Slug)
	e.plugins.EmitPoolCreated(ctx, p)
	return nil
}

// GetPool retrieves a pool by ID.
func (e *Engine) GetPool(ctx context.Context, poolID id.PoolID) (*pool.Pool, error) {
	return e.store.GetPool(ctx, poolID)
}

// GetPoolBySlug retrieves a pool by slug.
func (e *Engine) GetPoolBySlug(ctx context.Context, slug string) (*pool.Pool, error) {
	return e.store.GetPoolBySlug(ctx, slug)
}

// ListPools lists pools, newest first.
func (e *Engine) ListPools(ctx context.Context, opts pool.ListOpts) ([]*pool.Pool, error) {
	return e.store.ListPools(ctx, opts)
}

// ArchivePool freezes a pool. Its ledger stays readable but rejects every
// further mutation.
func (e *Engine) ArchivePool(ctx context.Context, poolID id.PoolID) error {
	if err := e.store.ArchivePool(ctx, poolID); err != nil {
		return err
	}
	p, err := e.store.GetPool(ctx, poolID)
	if err != nil {
		return err
	}

	e.mu.Lock()
	if op, ok := e.pools[poolID.String()]; ok {
		op.pool.Store(p)
	}
	e.mu.Unlock()

	e.logger.Info("pool archived", "pool_id", poolID.String())
	e.plugins.EmitPoolArchived(ctx, p)
	return nil
}

// Open returns the pool's ledger, loading it from the latest snapshot and
// the journal entries after it on first use. The returned ledger is
// read-only: its mutators return ErrReadOnly, and changes go through Batch.
func (e *Engine) Open(ctx context.Context, poolID id.PoolID) (*Ledger, error) {
	op, err := e.open(ctx, poolID)
	if err != nil {
		return nil, err
	}
	return op.ledger, nil
}

func (e *Engine) open(ctx context.Context, poolID id.PoolID) (*openPool, error) {
	key := poolID.String()

	e.mu.Lock()
	op, ok := e.pools[key]
	e.mu.Unlock()
	if ok {
		return op, nil
	}

	loaded, err := e.load(ctx, poolID)
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if op, ok := e.pools[key]; ok {
		return op, nil
	}
	e.pools[key] = loaded
	return loaded, nil
}

func (e *Engine) load(ctx context.Context, poolID id.PoolID) (*openPool, error) {
	start := time.Now()

	p, err := e.store.GetPool(ctx, poolID)
	if err != nil {
		return nil, err
	}

	var opts []LedgerOption
	switch {
	case p.Cap != nil:
		opts = append(opts, WithCap(*p.Cap))
	case e.defaultCap != nil:
		opts = append(opts, WithCap(*e.defaultCap))
	}

	op := &openPool{}
	op.pool.Store(p)

	snap, err := e.store.LatestSnapshot(ctx, poolID)
	switch {
	case errors.Is(err, ErrSnapshotNotFound):
		op.ledger = NewLedger(opts...)
	case err != nil:
		return nil, fmt.Errorf("load snapshot for pool %s: %w", poolID, err)
	default:
		op.ledger, err = NewLedgerFromState(State{
			Seq:         snap.Seq,
			TotalShares: snap.TotalShares,
			PooledValue: snap.PooledValue,
			Shares:      snap.Shares,
		}, opts...)
		if err != nil {
			return nil, fmt.Errorf("restore snapshot %s: %w", snap.ID, err)
		}
		op.lastSnapshot.Store(snap.Seq)
	}

	replayed := 0
	for {
		entries, err := e.store.ListEntries(ctx, poolID, journal.ListOpts{
			AfterSeq: op.ledger.Seq(),
			Limit:    replayPageSize,
		})
		if err != nil {
			return nil, fmt.Errorf("list journal for pool %s: %w", poolID, err)
		}
		for _, entry := range entries {
			if err := op.ledger.Replay(entry.Seq, entry.Ops); err != nil {
				return nil, fmt.Errorf("replay pool %s entry %d: %w", poolID, entry.Seq, err)
			}
		}
		replayed += len(entries)
		if len(entries) < replayPageSize {
			break
		}
	}

	op.ledger.journaled = true

	e.logger.Debug("pool opened",
		"pool_id", poolID.String(),
		"seq", op.ledger.Seq(),
		"replayed", replayed,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return op, nil
}

// evict drops a cached ledger so that the next access reloads it from the
// store.
func (e *Engine) evict(poolID id.PoolID) {
	e.mu.Lock()
	delete(e.pools, poolID.String())
	e.mu.Unlock()
}

// ──────────────────────────────────────────────────
// Mutations
// ──────────────────────────────────────────────────

// EntryOption annotates the journal entry written by a batch.
type EntryOption func(*journal.Entry)

// WithReference attaches an external reference, such as a transaction hash,
// to the journal entry.
func WithReference(ref string) EntryOption {
	return func(en *journal.Entry) {
		en.Reference = ref
	}
}

// WithEntryMetadata attaches metadata to the journal entry.
func WithEntryMetadata(md map[string]string) EntryOption {
	return func(en *journal.Entry) {
		en.Metadata = md
	}
}

// Batch runs fn as one atomic update of the pool's ledger. The staged
// operations are appended to the journal as a single entry before they are
// applied; if fn or the append fails, nothing changes. Only a failed append
// is reported to OnCommitFailed hooks. Batch returns a nil entry when fn
// staged no operations.
func (e *Engine) Batch(ctx context.Context, poolID id.PoolID, fn func(tx *Tx) error, opts ...EntryOption) (*journal.Entry, error) {
	op, err := e.open(ctx, poolID)
	if err != nil {
		return nil, err
	}
	p := op.pool.Load()
	if p.IsArchived() {
		return nil, ErrPoolArchived
	}

	var (
		entry        *journal.Entry
		startPool    types.Amount
		appendFailed bool
	)
	err = op.ledger.update(func(tx *Tx) error {
		startPool = tx.PooledValue()
		if err := fn(tx); err != nil {
			return err
		}
		ops := tx.Ops()
		if len(ops) == 0 {
			return nil
		}

		entry = journal.NewEntry(poolID, tx.Seq(), ops)
		for _, opt := range opts {
			opt(entry)
		}
		if err := e.store.AppendEntry(ctx, entry); err != nil {
			appendFailed = true
			return fmt.Errorf("append journal entry: %w", err)
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrSequenceConflict) {
			e.logger.Warn("journal sequence conflict, reloading pool",
				"pool_id", poolID.String(),
				"error", err,
			)
			e.evict(poolID)
		}
		if appendFailed {
			e.plugins.EmitCommitFailed(ctx, p, err)
		}
		return nil, err
	}
	if entry == nil {
		return nil, nil
	}

	e.logger.Debug("journal entry committed",
		"pool_id", poolID.String(),
		"seq", entry.Seq,
		"ops", len(entry.Ops),
	)
	e.emitCommitted(ctx, p, startPool, entry)

	if entry.Seq-op.lastSnapshot.Load() >= e.snapshotEvery {
		select {
		case e.snapshotReq <- op:
		default:
		}
	}
	return entry, nil
}

func (e *Engine) emitCommitted(ctx context.Context, p *pool.Pool, pooledValue types.Amount, entry *journal.Entry) {
	for _, op := range entry.Ops {
		switch op.Kind {
		case journal.KindMint:
			e.plugins.EmitSharesMinted(ctx, p, op.To, op.Amount)
		case journal.KindBurn:
			e.plugins.EmitSharesBurned(ctx, p, op.From, op.Amount)
		case journal.KindTransfer:
			e.plugins.EmitSharesTransferred(ctx, p, op.From, op.To, op.Amount)
		case journal.KindRebase:
			// The update already succeeded, so these cannot fail.
			if op.Positive {
				pooledValue, _ = pooledValue.Add(op.Amount)
			} else {
				pooledValue, _ = pooledValue.Sub(op.Amount)
			}
			e.plugins.EmitRebased(ctx, p, op.Positive, op.Amount, pooledValue)
		}
	}
	e.plugins.EmitEntryCommitted(ctx, entry)
}

// Mint creates amount new shares for to.
func (e *Engine) Mint(ctx context.Context, poolID id.PoolID, to types.Account, amount types.Amount, opts ...EntryOption) (*journal.Entry, error) {
	return e.Batch(ctx, poolID, func(tx *Tx) error {
		return tx.MintShares(to, amount)
	}, opts...)
}

// Burn destroys amount of from's shares.
func (e *Engine) Burn(ctx context.Context, poolID id.PoolID, from types.Account, amount types.Amount, opts ...EntryOption) (*journal.Entry, error) {
	return e.Batch(ctx, poolID, func(tx *Tx) error {
		return tx.BurnShares(from, amount)
	}, opts...)
}

// Transfer moves amount shares between holders.
func (e *Engine) Transfer(ctx context.Context, poolID id.PoolID, from, to types.Account, amount types.Amount, opts ...EntryOption) (*journal.Entry, error) {
	return e.Batch(ctx, poolID, func(tx *Tx) error {
		return tx.TransferShares(from, to, amount)
	}, opts...)
}

// Rebase adds delta to the pooled value, or subtracts it when positive is
// false, changing every holder's balance at once.
func (e *Engine) Rebase(ctx context.Context, poolID id.PoolID, positive bool, delta types.Amount, opts ...EntryOption) (*journal.Entry, error) {
	return e.Batch(ctx, poolID, func(tx *Tx) error {
		return tx.UpdatePooledValue(positive, delta)
	}, opts...)
}

// ──────────────────────────────────────────────────
// Reads
// ──────────────────────────────────────────────────

// View runs fn against a consistent read-only view of the pool's ledger.
func (e *Engine) View(ctx context.Context, poolID id.PoolID, fn func(tx *Tx) error) error {
	l, err := e.Open(ctx, poolID)
	if err != nil {
		return err
	}
	return l.View(fn)
}

// SharesOf returns account's shares in the pool.
func (e *Engine) SharesOf(ctx context.Context, poolID id.PoolID, account types.Account) (types.Amount, error) {
	l, err := e.Open(ctx, poolID)
	if err != nil {
		return types.Amount{}, err
	}
	return l.SharesOf(account), nil
}

// BalanceOf returns the value account owns in the pool.
func (e *Engine) BalanceOf(ctx context.Context, poolID id.PoolID, account types.Account) (types.Amount, error) {
	l, err := e.Open(ctx, poolID)
	if err != nil {
		return types.Amount{}, err
	}
	return l.BalanceOf(account)
}

// TotalShares returns the pool's outstanding shares.
func (e *Engine) TotalShares(ctx context.Context, poolID id.PoolID) (types.Amount, error) {
	l, err := e.Open(ctx, poolID)
	if err != nil {
		return types.Amount{}, err
	}
	return l.TotalShares(), nil
}

// PooledValue returns the value backing the pool's shares.
func (e *Engine) PooledValue(ctx context.Context, poolID id.PoolID) (types.Amount, error) {
	l, err := e.Open(ctx, poolID)
	if err != nil {
		return types.Amount{}, err
	}
	return l.PooledValue(), nil
}

// CalculateBalance converts shares to value at the pool's current rate.
func (e *Engine) CalculateBalance(ctx context.Context, poolID id.PoolID, shares types.Amount) (types.Amount, error) {
	l, err := e.Open(ctx, poolID)
	if err != nil {
		return types.Amount{}, err
	}
	return l.CalculateBalance(shares)
}

// CalculateShares converts value to shares at the pool's current rate.
func (e *Engine) CalculateShares(ctx context.Context, poolID id.PoolID, amount types.Amount) (types.Amount, error) {
	l, err := e.Open(ctx, poolID)
	if err != nil {
		return types.Amount{}, err
	}
	return l.CalculateShares(amount)
}

// History lists the pool's journal entries in sequence order.
func (e *Engine) History(ctx context.Context, poolID id.PoolID, opts journal.ListOpts) ([]*journal.Entry, error) {
	return e.store.ListEntries(ctx, poolID, opts)
}

// Verify checks that the pool's holdings sum to its total shares.
func (e *Engine) Verify(ctx context.Context, poolID id.PoolID) error {
	l, err := e.Open(ctx, poolID)
	if err != nil {
		return err
	}
	return l.Verify()
}

// ──────────────────────────────────────────────────
// Snapshots
// ──────────────────────────────────────────────────

// Checkpoint persists a snapshot of the pool's current state.
func (e *Engine) Checkpoint(ctx context.Context, poolID id.PoolID) (*snapshot.Snapshot, error) {
	op, err := e.open(ctx, poolID)
	if err != nil {
		return nil, err
	}
	return e.saveSnapshot(ctx, op, true)
}

// snapshotWorker persists snapshots on request and on every tick.
func (e *Engine) snapshotWorker(ctx context.Context) {
	defer e.wg.Done()

	ticker := time.NewTicker(e.snapshotInterval)
	defer ticker.Stop()

	for {
		select {
		case <-e.stopChan:
			// Final flush
			e.snapshotAll(ctx)
			return

		case op := <-e.snapshotReq:
			if _, err := e.saveSnapshot(ctx, op, false); err != nil {
				e.logger.Error("failed to save snapshot",
					"pool_id", op.pool.Load().ID.String(),
					"error", err,
				)
			}

		case <-ticker.C:
			e.snapshotAll(ctx)
		}
	}
}

func (e *Engine) snapshotAll(ctx context.Context) {
	e.mu.Lock()
	open := make([]*openPool, 0, len(e.pools))
	for _, op := range e.pools {
		open = append(open, op)
	}
	e.mu.Unlock()

	for _, op := range open {
		if _, err := e.saveSnapshot(ctx, op, false); err != nil {
			e.logger.Error("failed to save snapshot",
				"pool_id", op.pool.Load().ID.String(),
				"error", err,
			)
		}
	}
}

// saveSnapshot writes the ledger state unless it is already covered by the
// last snapshot, or force is set. It returns nil when nothing was written.
func (e *Engine) saveSnapshot(ctx context.Context, op *openPool, force bool) (*snapshot.Snapshot, error) {
	op.snapMu.Lock()
	defer op.snapMu.Unlock()

	st := op.ledger.State()
	if !force && st.Seq == op.lastSnapshot.Load() {
		return nil, nil
	}

	start := time.Now()
	snap := &snapshot.Snapshot{
		ID:          id.NewSnapshotID(),
		PoolID:      op.pool.Load().ID,
		Seq:         st.Seq,
		TotalShares: st.TotalShares,
		PooledValue: st.PooledValue,
		Shares:      st.Shares,
		CreatedAt:   time.Now().UTC(),
	}
	if err := e.store.SaveSnapshot(ctx, snap); err != nil {
		return nil, err
	}
	op.lastSnapshot.Store(st.Seq)

	e.logger.Debug("snapshot saved",
		"pool_id", snap.PoolID.String(),
		"seq", snap.Seq,
		"holders", len(snap.Shares),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	e.plugins.EmitSnapshotSaved(ctx, snap)
	return snap, nil
}
