package shareledger_test

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"go.uber.org/goleak"

	"github.com/xraph/shareledger"
	"github.com/xraph/shareledger/id"
	"github.com/xraph/shareledger/journal"
	"github.com/xraph/shareledger/pool"
	"github.com/xraph/shareledger/snapshot"
	"github.com/xraph/shareledger/store"
	"github.com/xraph/shareledger/store/memory"
	"github.com/xraph/shareledger/types"
)

var (
	holderA = shareledger.MustParseAccount("0x00000000000000000000000000000000000000a1")
	holderB = shareledger.MustParseAccount("0x00000000000000000000000000000000000000b2")

	amountComparer = cmp.Comparer(func(a, b types.Amount) bool { return a.Eq(b) })
)

func n(v uint64) types.Amount { return types.NewAmount(v) }

func quietLogger() *slog.Logger { return slog.New(slog.DiscardHandler) }

// newTestEngine returns an engine over s with one fresh pool.
func newTestEngine(t *testing.T, s store.Store, opts ...shareledger.Option) (*shareledger.Engine, *pool.Pool) {
	t.Helper()

	opts = append([]shareledger.Option{shareledger.WithLogger(quietLogger())}, opts...)
	eng := shareledger.New(s, opts...)

	p := &pool.Pool{Name: "Test Pool", Unit: "wei"}
	if err := eng.CreatePool(context.Background(), p); err != nil {
		t.Fatalf("CreatePool: %v", err)
	}
	return eng, p
}

// failingStore fails AppendEntry on demand.
type failingStore struct {
	store.Store
	failAppend atomic.Bool
}

var errAppend = errors.New("append refused")

func (s *failingStore) AppendEntry(ctx context.Context, e *journal.Entry) error {
	if s.failAppend.Load() {
		return errAppend
	}
	return s.Store.AppendEntry(ctx, e)
}

// eventRecorder records every hook call as a short string.
type eventRecorder struct {
	mu     sync.Mutex
	events []string
}

func (r *eventRecorder) Name() string { return "event-recorder" }

func (r *eventRecorder) add(format string, args ...any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, fmt.Sprintf(format, args...))
}

func (r *eventRecorder) Events() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.events...)
}

func (r *eventRecorder) OnPoolCreated(_ context.Context, p *pool.Pool) error {
	r.add("pool.created:%s", p.Name)
	return nil
}

func (r *eventRecorder) OnPoolArchived(_ context.Context, p *pool.Pool) error {
	r.add("pool.archived:%s", p.Status)
	return nil
}

func (r *eventRecorder) OnSharesMinted(_ context.Context, _ *pool.Pool, _ types.Account, amount types.Amount) error {
	r.add("minted:%s", amount)
	return nil
}

func (r *eventRecorder) OnSharesBurned(_ context.Context, _ *pool.Pool, _ types.Account, amount types.Amount) error {
	r.add("burned:%s", amount)
	return nil
}

func (r *eventRecorder) OnSharesTransferred(_ context.Context, _ *pool.Pool, _, _ types.Account, amount types.Amount) error {
	r.add("transferred:%s", amount)
	return nil
}

func (r *eventRecorder) OnRebased(_ context.Context, _ *pool.Pool, positive bool, delta, pooledValue types.Amount) error {
	r.add("rebased:%t:%s:%s", positive, delta, pooledValue)
	return nil
}

func (r *eventRecorder) OnEntryCommitted(_ context.Context, entry *journal.Entry) error {
	r.add("committed:%d", entry.Seq)
	return nil
}

func (r *eventRecorder) OnCommitFailed(_ context.Context, _ *pool.Pool, _ error) error {
	r.add("failed")
	return nil
}

func (r *eventRecorder) OnSnapshotSaved(_ context.Context, snap *snapshot.Snapshot) error {
	r.add("snapshot:%d", snap.Seq)
	return nil
}

func TestEnginePools(t *testing.T) {
	ctx := context.Background()
	eng := shareledger.New(memory.New(), shareledger.WithLogger(quietLogger()))

	t.Run("validation", func(t *testing.T) {
		zero := types.Zero()
		tests := []struct {
			name string
			p    *pool.Pool
		}{
			{name: "empty name", p: &pool.Pool{}},
			{name: "zero cap", p: &pool.Pool{Name: "capped", Cap: &zero}},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				err := eng.CreatePool(ctx, tt.p)
				if !errors.Is(err, shareledger.ErrInvalidInput) {
					t.Fatalf("expected ErrInvalidInput, got %v", err)
				}
			})
		}
	})

	p := &pool.Pool{Name: "Staked ETH", Slug: "steth"}
	if err := eng.CreatePool(ctx, p); err != nil {
		t.Fatalf("CreatePool: %v", err)
	}
	if p.ID.IsNil() || p.Status != pool.StatusActive {
		t.Fatalf("CreatePool did not assign defaults: %+v", p)
	}

	t.Run("duplicate slug", func(t *testing.T) {
		err := eng.CreatePool(ctx, &pool.Pool{Name: "Other", Slug: "steth"})
		if !errors.Is(err, shareledger.ErrPoolExists) {
			t.Fatalf("expected ErrPoolExists, got %v", err)
		}
	})

	t.Run("lookup", func(t *testing.T) {
		got, err := eng.GetPoolBySlug(ctx, "steth")
		if err != nil {
			t.Fatalf("GetPoolBySlug: %v", err)
		}
		if got.ID != p.ID {
			t.Errorf("GetPoolBySlug returned %s, want %s", got.ID, p.ID)
		}

		_, err = eng.GetPool(ctx, id.NewPoolID())
		if !shareledger.IsNotFound(err) {
			t.Errorf("expected not found, got %v", err)
		}
		_, err = eng.Open(ctx, id.NewPoolID())
		if !errors.Is(err, shareledger.ErrPoolNotFound) {
			t.Errorf("Open unknown pool: expected ErrPoolNotFound, got %v", err)
		}
	})

	t.Run("archive", func(t *testing.T) {
		if _, err := eng.Mint(ctx, p.ID, holderA, n(10)); err != nil {
			t.Fatalf("Mint: %v", err)
		}
		if err := eng.ArchivePool(ctx, p.ID); err != nil {
			t.Fatalf("ArchivePool: %v", err)
		}

		_, err := eng.Mint(ctx, p.ID, holderA, n(1))
		if !errors.Is(err, shareledger.ErrPoolArchived) {
			t.Fatalf("expected ErrPoolArchived, got %v", err)
		}

		shares, err := eng.SharesOf(ctx, p.ID, holderA)
		if err != nil {
			t.Fatalf("SharesOf on archived pool: %v", err)
		}
		if !shares.Eq(n(10)) {
			t.Errorf("shares = %s, want 10", shares)
		}

		archived, err := eng.ListPools(ctx, pool.ListOpts{Status: pool.StatusArchived})
		if err != nil {
			t.Fatalf("ListPools: %v", err)
		}
		if len(archived) != 1 || archived[0].ID != p.ID {
			t.Errorf("ListPools(archived) = %v, want only %s", archived, p.ID)
		}
	})
}

func TestEngineMutations(t *testing.T) {
	ctx := context.Background()
	eng, p := newTestEngine(t, memory.New())

	if _, err := eng.BalanceOf(ctx, p.ID, holderA); !shareledger.IsDivisionByZero(err) {
		t.Fatalf("BalanceOf on empty pool: expected ErrDivisionByZero, got %v", err)
	}

	steps := []struct {
		name string
		run  func() (*journal.Entry, error)
	}{
		{"mint", func() (*journal.Entry, error) { return eng.Mint(ctx, p.ID, holderA, n(1000)) }},
		{"rebase up", func() (*journal.Entry, error) { return eng.Rebase(ctx, p.ID, true, n(5000)) }},
		{"transfer", func() (*journal.Entry, error) {
			return eng.Transfer(ctx, p.ID, holderA, holderB, n(400), shareledger.WithReference("0xfeed"))
		}},
		{"burn", func() (*journal.Entry, error) { return eng.Burn(ctx, p.ID, holderB, n(100)) }},
		{"rebase down", func() (*journal.Entry, error) { return eng.Rebase(ctx, p.ID, false, n(500)) }},
	}
	for i, step := range steps {
		entry, err := step.run()
		if err != nil {
			t.Fatalf("%s: %v", step.name, err)
		}
		if entry.Seq != uint64(i+1) {
			t.Errorf("%s: seq = %d, want %d", step.name, entry.Seq, i+1)
		}
	}

	// 900 shares backing 4500.
	reads := []struct {
		name string
		get  func() (types.Amount, error)
		want types.Amount
	}{
		{"total shares", func() (types.Amount, error) { return eng.TotalShares(ctx, p.ID) }, n(900)},
		{"pooled value", func() (types.Amount, error) { return eng.PooledValue(ctx, p.ID) }, n(4500)},
		{"shares of A", func() (types.Amount, error) { return eng.SharesOf(ctx, p.ID, holderA) }, n(600)},
		{"balance of A", func() (types.Amount, error) { return eng.BalanceOf(ctx, p.ID, holderA) }, n(3000)},
		{"balance of B", func() (types.Amount, error) { return eng.BalanceOf(ctx, p.ID, holderB) }, n(1500)},
		{"calculate balance", func() (types.Amount, error) { return eng.CalculateBalance(ctx, p.ID, n(1)) }, n(5)},
		{"calculate shares", func() (types.Amount, error) { return eng.CalculateShares(ctx, p.ID, n(14)) }, n(2)},
	}
	for _, tt := range reads {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.get()
			if err != nil {
				t.Fatal(err)
			}
			if diff := cmp.Diff(tt.want, got, amountComparer); diff != "" {
				t.Errorf("mismatch (-want +got):\n%s", diff)
			}
		})
	}

	history, err := eng.History(ctx, p.ID, journal.ListOpts{AfterSeq: 2, Limit: 2})
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(history) != 2 || history[0].Seq != 3 || history[1].Seq != 4 {
		t.Fatalf("History returned %d entries, want seqs 3 and 4", len(history))
	}
	if history[0].Reference != "0xfeed" {
		t.Errorf("reference = %q, want 0xfeed", history[0].Reference)
	}
	wantOp := journal.Op{Kind: journal.KindTransfer, From: holderA, To: holderB, Amount: n(400)}
	if diff := cmp.Diff([]journal.Op{wantOp}, history[0].Ops, amountComparer); diff != "" {
		t.Errorf("ops mismatch (-want +got):\n%s", diff)
	}

	if err := eng.Verify(ctx, p.ID); err != nil {
		t.Errorf("Verify: %v", err)
	}
}

func TestEngineBatch(t *testing.T) {
	ctx := context.Background()
	eng, p := newTestEngine(t, memory.New())

	entry, err := eng.Batch(ctx, p.ID, func(tx *shareledger.Tx) error {
		if err := tx.UpdatePooledValue(true, n(1000)); err != nil {
			return err
		}
		if err := tx.MintShares(holderA, n(1000)); err != nil {
			return err
		}
		return tx.TransferShares(holderA, holderB, n(250))
	}, shareledger.WithReference("deposit-1"), shareledger.WithEntryMetadata(map[string]string{"source": "test"}))
	if err != nil {
		t.Fatalf("Batch: %v", err)
	}
	if entry.Seq != 1 || len(entry.Ops) != 3 {
		t.Fatalf("entry = seq %d with %d ops, want seq 1 with 3 ops", entry.Seq, len(entry.Ops))
	}

	stored, err := eng.History(ctx, p.ID, journal.ListOpts{})
	if err != nil {
		t.Fatal(err)
	}
	if len(stored) != 1 || stored[0].Metadata["source"] != "test" || stored[0].Reference != "deposit-1" {
		t.Errorf("stored entry did not keep its annotations: %+v", stored)
	}

	t.Run("failed batch changes nothing", func(t *testing.T) {
		_, err := eng.Batch(ctx, p.ID, func(tx *shareledger.Tx) error {
			if err := tx.MintShares(holderB, n(10)); err != nil {
				return err
			}
			return tx.BurnShares(holderA, n(10_000))
		})
		if !errors.Is(err, shareledger.ErrUnderflow) {
			t.Fatalf("expected ErrUnderflow, got %v", err)
		}
		got, _ := eng.SharesOf(ctx, p.ID, holderB)
		if !got.Eq(n(250)) {
			t.Errorf("shares of B = %s, want 250", got)
		}
	})

	t.Run("empty batch writes nothing", func(t *testing.T) {
		entry, err := eng.Batch(ctx, p.ID, func(tx *shareledger.Tx) error {
			_, err := tx.BalanceOf(holderA)
			return err
		})
		if err != nil || entry != nil {
			t.Fatalf("Batch = %v, %v; want nil, nil", entry, err)
		}
		all, _ := eng.History(ctx, p.ID, journal.ListOpts{})
		if len(all) != 1 {
			t.Errorf("journal has %d entries, want 1", len(all))
		}
	})

	t.Run("view", func(t *testing.T) {
		err := eng.View(ctx, p.ID, func(tx *shareledger.Tx) error {
			if !tx.TotalShares().Eq(n(1000)) {
				return fmt.Errorf("total shares %s", tx.TotalShares())
			}
			return nil
		})
		if err != nil {
			t.Fatal(err)
		}
	})
}

func TestEngineCaps(t *testing.T) {
	ctx := context.Background()
	eng, p := newTestEngine(t, memory.New(), shareledger.WithDefaultCap(n(100)))

	if _, err := eng.Mint(ctx, p.ID, holderA, n(101)); !errors.Is(err, shareledger.ErrOverflow) {
		t.Fatalf("expected ErrOverflow above default cap, got %v", err)
	}
	if _, err := eng.Mint(ctx, p.ID, holderA, n(100)); err != nil {
		t.Fatalf("Mint at cap: %v", err)
	}

	own := n(1000)
	big := &pool.Pool{Name: "Big", Cap: &own}
	if err := eng.CreatePool(ctx, big); err != nil {
		t.Fatal(err)
	}
	if _, err := eng.Mint(ctx, big.ID, holderA, n(500)); err != nil {
		t.Fatalf("pool cap should override the default: %v", err)
	}
}

func TestEngineRestoresFromSnapshotAndJournal(t *testing.T) {
	ctx := context.Background()
	s := memory.New()
	first, p := newTestEngine(t, s)

	if _, err := first.Mint(ctx, p.ID, holderA, n(1000)); err != nil {
		t.Fatal(err)
	}
	if _, err := first.Rebase(ctx, p.ID, true, n(5000)); err != nil {
		t.Fatal(err)
	}
	snap, err := first.Checkpoint(ctx, p.ID)
	if err != nil {
		t.Fatalf("Checkpoint: %v", err)
	}
	if snap.Seq != 2 {
		t.Fatalf("snapshot seq = %d, want 2", snap.Seq)
	}
	if _, err := first.Transfer(ctx, p.ID, holderA, holderB, n(400)); err != nil {
		t.Fatal(err)
	}
	if _, err := first.Burn(ctx, p.ID, holderB, n(100)); err != nil {
		t.Fatal(err)
	}

	second := shareledger.New(s, shareledger.WithLogger(quietLogger()))
	restored, err := second.Open(ctx, p.ID)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	original, _ := first.Open(ctx, p.ID)

	if diff := cmp.Diff(original.State(), restored.State(), amountComparer); diff != "" {
		t.Errorf("restored state mismatch (-want +got):\n%s", diff)
	}
	if restored.Seq() != 4 {
		t.Errorf("restored seq = %d, want 4", restored.Seq())
	}
}

func TestEngineReplaysLongJournal(t *testing.T) {
	ctx := context.Background()
	s := memory.New()
	first, p := newTestEngine(t, s)

	const entries = 1201
	for range entries {
		if _, err := first.Mint(ctx, p.ID, holderA, n(1)); err != nil {
			t.Fatal(err)
		}
	}

	second := shareledger.New(s, shareledger.WithLogger(quietLogger()))
	total, err := second.TotalShares(ctx, p.ID)
	if err != nil {
		t.Fatal(err)
	}
	if !total.Eq(n(entries)) {
		t.Errorf("total shares = %s, want %d", total, entries)
	}
}

func TestEngineOpenIsReadOnly(t *testing.T) {
	ctx := context.Background()
	s := memory.New()
	eng, p := newTestEngine(t, s)

	l, err := eng.Open(ctx, p.ID)
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name string
		fn   func() error
	}{
		{name: "mint", fn: func() error { return l.MintShares(holderA, n(100)) }},
		{name: "burn", fn: func() error { return l.BurnShares(holderA, n(1)) }},
		{name: "transfer", fn: func() error { return l.TransferShares(holderA, holderB, n(1)) }},
		{name: "rebase", fn: func() error { return l.UpdatePooledValue(true, n(100)) }},
		{name: "update", fn: func() error {
			return l.Update(func(tx *shareledger.Tx) error { return tx.MintShares(holderA, n(1)) })
		}},
		{name: "replay", fn: func() error {
			return l.Replay(1, []journal.Op{{Kind: journal.KindMint, To: holderA, Amount: n(1)}})
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.fn(); !errors.Is(err, shareledger.ErrReadOnly) {
				t.Fatalf("expected ErrReadOnly, got %v", err)
			}
		})
	}
	if l.Seq() != 0 {
		t.Fatalf("seq = %d after rejected mutations, want 0", l.Seq())
	}

	if _, err := eng.Mint(ctx, p.ID, holderB, n(50)); err != nil {
		t.Fatal(err)
	}
	if _, err := eng.Rebase(ctx, p.ID, true, n(100)); err != nil {
		t.Fatal(err)
	}

	// A fresh engine replays the journal without gaps.
	other := shareledger.New(s, shareledger.WithLogger(quietLogger()))
	balance, err := other.BalanceOf(ctx, p.ID, holderB)
	if err != nil {
		t.Fatalf("BalanceOf on reloaded pool: %v", err)
	}
	if !balance.Eq(n(100)) {
		t.Errorf("balance = %s, want 100", balance)
	}
}

func TestEngineRollsBackOnStoreFailure(t *testing.T) {
	ctx := context.Background()
	rec := &eventRecorder{}
	s := &failingStore{Store: memory.New()}
	eng, p := newTestEngine(t, s, shareledger.WithPlugin(rec))

	if _, err := eng.Mint(ctx, p.ID, holderA, n(1000)); err != nil {
		t.Fatal(err)
	}

	s.failAppend.Store(true)
	_, err := eng.Transfer(ctx, p.ID, holderA, holderB, n(300))
	if !errors.Is(err, errAppend) {
		t.Fatalf("expected append error, got %v", err)
	}

	l, err := eng.Open(ctx, p.ID)
	if err != nil {
		t.Fatal(err)
	}
	if l.Seq() != 1 || !l.SharesOf(holderA).Eq(n(1000)) || !l.SharesOf(holderB).IsZero() {
		t.Fatalf("ledger changed after failed append: seq=%d A=%s B=%s", l.Seq(), l.SharesOf(holderA), l.SharesOf(holderB))
	}

	s.failAppend.Store(false)
	entry, err := eng.Transfer(ctx, p.ID, holderA, holderB, n(300))
	if err != nil {
		t.Fatalf("Transfer after recovery: %v", err)
	}
	if entry.Seq != 2 {
		t.Errorf("seq = %d, want 2", entry.Seq)
	}

	want := []string{
		"pool.created:Test Pool",
		"minted:1000", "committed:1",
		"failed",
		"transferred:300", "committed:2",
	}
	if diff := cmp.Diff(want, rec.Events()); diff != "" {
		t.Errorf("events mismatch (-want +got):\n%s", diff)
	}
}

func TestEngineSequenceConflict(t *testing.T) {
	ctx := context.Background()
	s := memory.New()
	a, p := newTestEngine(t, s)
	b := shareledger.New(s, shareledger.WithLogger(quietLogger()))

	if _, err := a.Mint(ctx, p.ID, holderA, n(10)); err != nil {
		t.Fatal(err)
	}
	// b caches the pool at seq 1.
	if _, err := b.Open(ctx, p.ID); err != nil {
		t.Fatal(err)
	}
	if _, err := a.Mint(ctx, p.ID, holderA, n(10)); err != nil {
		t.Fatal(err)
	}

	_, err := b.Mint(ctx, p.ID, holderB, n(5))
	if !errors.Is(err, shareledger.ErrSequenceConflict) {
		t.Fatalf("expected ErrSequenceConflict, got %v", err)
	}
	if !shareledger.IsRetryable(err) {
		t.Error("sequence conflicts should be retryable")
	}

	entry, err := b.Mint(ctx, p.ID, holderB, n(5))
	if err != nil {
		t.Fatalf("retry after reload: %v", err)
	}
	if entry.Seq != 3 {
		t.Errorf("seq = %d, want 3", entry.Seq)
	}
	total, _ := b.TotalShares(ctx, p.ID)
	if !total.Eq(n(25)) {
		t.Errorf("total shares = %s, want 25", total)
	}
}

func TestEnginePluginHooks(t *testing.T) {
	ctx := context.Background()
	rec := &eventRecorder{}
	eng, p := newTestEngine(t, memory.New(), shareledger.WithPlugin(rec))

	_, err := eng.Batch(ctx, p.ID, func(tx *shareledger.Tx) error {
		if err := tx.MintShares(holderA, n(1000)); err != nil {
			return err
		}
		if err := tx.UpdatePooledValue(true, n(500)); err != nil {
			return err
		}
		return tx.TransferShares(holderA, holderB, n(100))
	})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := eng.Rebase(ctx, p.ID, false, n(200)); err != nil {
		t.Fatal(err)
	}
	// Updates rejected before the journal append report no commit failure.
	if _, err := eng.Burn(ctx, p.ID, holderB, n(101)); !errors.Is(err, shareledger.ErrUnderflow) {
		t.Fatalf("expected ErrUnderflow, got %v", err)
	}
	errRejected := errors.New("rejected")
	_, err = eng.Batch(ctx, p.ID, func(tx *shareledger.Tx) error {
		_ = tx.MintShares(holderB, n(1))
		return errRejected
	})
	if !errors.Is(err, errRejected) {
		t.Fatalf("expected callback error, got %v", err)
	}
	if _, err := eng.Checkpoint(ctx, p.ID); err != nil {
		t.Fatal(err)
	}
	if err := eng.ArchivePool(ctx, p.ID); err != nil {
		t.Fatal(err)
	}

	want := []string{
		"pool.created:Test Pool",
		"minted:1000", "rebased:true:500:500", "transferred:100", "committed:1",
		"rebased:false:200:300", "committed:2",
		"snapshot:2",
		"pool.archived:archived",
	}
	if diff := cmp.Diff(want, rec.Events()); diff != "" {
		t.Errorf("events mismatch (-want +got):\n%s", diff)
	}
}

func TestEngineSnapshotWorker(t *testing.T) {
	defer goleak.VerifyNone(t)

	ctx := context.Background()
	s := memory.New()
	eng, p := newTestEngine(t, s, shareledger.WithSnapshotConfig(2, time.Hour))
	if err := eng.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}

	for range 2 {
		if _, err := eng.Mint(ctx, p.ID, holderA, n(1)); err != nil {
			t.Fatal(err)
		}
	}

	deadline := time.Now().Add(5 * time.Second)
	for {
		snap, err := s.LatestSnapshot(ctx, p.ID)
		if err == nil && snap.Seq == 2 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("no snapshot at seq 2 (last err %v)", err)
		}
		time.Sleep(10 * time.Millisecond)
	}

	// Below the threshold; only the final flush on Stop persists it.
	if _, err := eng.Mint(ctx, p.ID, holderA, n(1)); err != nil {
		t.Fatal(err)
	}
	if err := eng.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}

	snap, err := s.LatestSnapshot(ctx, p.ID)
	if err != nil {
		t.Fatal(err)
	}
	if snap.Seq != 3 {
		t.Errorf("final snapshot seq = %d, want 3", snap.Seq)
	}
	if err := s.Ping(ctx); !errors.Is(err, shareledger.ErrStoreClosed) {
		t.Errorf("Stop should close the store, Ping = %v", err)
	}
}

// closeCounter counts Close calls on the wrapped store.
type closeCounter struct {
	store.Store
	closes atomic.Int32
}

func (s *closeCounter) Close() error {
	s.closes.Add(1)
	return s.Store.Close()
}

type shutdownCounter struct {
	calls atomic.Int32
}

func (c *shutdownCounter) Name() string { return "shutdown-counter" }

func (c *shutdownCounter) OnShutdown(context.Context) error {
	c.calls.Add(1)
	return nil
}

func TestEngineStopOnce(t *testing.T) {
	defer goleak.VerifyNone(t)

	s := &closeCounter{Store: memory.New()}
	sc := &shutdownCounter{}
	eng := shareledger.New(s, shareledger.WithLogger(quietLogger()), shareledger.WithPlugin(sc))
	if err := eng.Start(context.Background()); err != nil {
		t.Fatal(err)
	}

	for i := range 3 {
		if err := eng.Stop(); err != nil {
			t.Fatalf("Stop #%d: %v", i+1, err)
		}
	}
	if got := sc.calls.Load(); got != 1 {
		t.Errorf("OnShutdown called %d times, want 1", got)
	}
	if got := s.closes.Load(); got != 1 {
		t.Errorf("store closed %d times, want 1", got)
	}
}
