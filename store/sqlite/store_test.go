package sqlite_test

import (
	"context"
	"errors"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/xraph/grove"
	"github.com/xraph/grove/drivers/sqlitedriver"

	"github.com/xraph/shareledger"
	"github.com/xraph/shareledger/id"
	"github.com/xraph/shareledger/journal"
	"github.com/xraph/shareledger/pool"
	"github.com/xraph/shareledger/snapshot"
	"github.com/xraph/shareledger/store/sqlite"
	"github.com/xraph/shareledger/types"
)

var (
	holderA = types.MustParseAccount("0x00000000000000000000000000000000000000a1")
	holderB = types.MustParseAccount("0x00000000000000000000000000000000000000b2")
)

// openStore returns a migrated store over a fresh database file.
func openStore(t *testing.T, path string) *sqlite.Store {
	t.Helper()
	ctx := context.Background()

	sdb := sqlitedriver.New()
	if err := sdb.Open(ctx, path); err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	db, err := grove.Open(sdb)
	if err != nil {
		t.Fatalf("grove.Open: %v", err)
	}
	s := sqlite.New(db)
	if err := s.Migrate(ctx); err != nil {
		t.Fatalf("Migrate: %v", err)
	}
	return s
}

func discardLogger() *slog.Logger { return slog.New(slog.DiscardHandler) }

func dbPath(t *testing.T) string {
	return filepath.Join(t.TempDir(), "shareledger.db")
}

func TestMigrateIsIdempotent(t *testing.T) {
	s := openStore(t, dbPath(t))
	defer s.Close()

	if err := s.Migrate(context.Background()); err != nil {
		t.Fatalf("second Migrate: %v", err)
	}
}

func TestPools(t *testing.T) {
	ctx := context.Background()
	s := openStore(t, dbPath(t))
	defer s.Close()

	created := time.Now().UTC()
	limit := types.NewAmount(1_000_000)
	p := &pool.Pool{
		ID:       id.NewPoolID(),
		Name:     "Staked ETH",
		Slug:     "steth",
		Unit:     "wei",
		Status:   pool.StatusActive,
		Cap:      &limit,
		Metadata: map[string]string{"chain": "1"},
	}
	p.CreatedAt = created
	p.UpdatedAt = created

	if err := s.CreatePool(ctx, p); err != nil {
		t.Fatalf("CreatePool: %v", err)
	}

	got, err := s.GetPool(ctx, p.ID)
	if err != nil {
		t.Fatalf("GetPool: %v", err)
	}
	if got.Name != p.Name || got.Slug != p.Slug || got.Cap == nil || !got.Cap.Eq(limit) {
		t.Errorf("GetPool = %+v", got)
	}
	if diff := cmp.Diff(p.Metadata, got.Metadata); diff != "" {
		t.Errorf("metadata mismatch (-want +got):\n%s", diff)
	}
	if d := got.CreatedAt.Sub(created); d > time.Second || d < -time.Second {
		t.Errorf("created_at = %s, want about %s", got.CreatedAt, created)
	}

	bySlug, err := s.GetPoolBySlug(ctx, "steth")
	if err != nil || bySlug.ID != p.ID {
		t.Fatalf("GetPoolBySlug = %v, %v", bySlug, err)
	}

	t.Run("conflicts", func(t *testing.T) {
		tests := []struct {
			name string
			p    *pool.Pool
		}{
			{name: "same id", p: &pool.Pool{ID: p.ID, Name: "dup", Status: pool.StatusActive}},
			{name: "same slug", p: &pool.Pool{ID: id.NewPoolID(), Name: "dup", Slug: "steth", Status: pool.StatusActive}},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				tt.p.CreatedAt = created
				tt.p.UpdatedAt = created
				if err := s.CreatePool(ctx, tt.p); !errors.Is(err, shareledger.ErrPoolExists) {
					t.Fatalf("expected ErrPoolExists, got %v", err)
				}
			})
		}
	})

	t.Run("missing", func(t *testing.T) {
		if _, err := s.GetPool(ctx, id.NewPoolID()); !errors.Is(err, shareledger.ErrPoolNotFound) {
			t.Errorf("expected ErrPoolNotFound, got %v", err)
		}
	})

	t.Run("archive", func(t *testing.T) {
		if err := s.ArchivePool(ctx, p.ID); err != nil {
			t.Fatal(err)
		}
		archived, err := s.ListPools(ctx, pool.ListOpts{Status: pool.StatusArchived})
		if err != nil {
			t.Fatal(err)
		}
		if len(archived) != 1 || archived[0].ID != p.ID {
			t.Errorf("archived pools = %v", archived)
		}
	})
}

func TestJournalAndSnapshots(t *testing.T) {
	ctx := context.Background()
	s := openStore(t, dbPath(t))
	defer s.Close()

	p := &pool.Pool{ID: id.NewPoolID(), Name: "Vault", Status: pool.StatusActive}
	p.CreatedAt = time.Now().UTC()
	p.UpdatedAt = p.CreatedAt
	if err := s.CreatePool(ctx, p); err != nil {
		t.Fatal(err)
	}

	for seq := uint64(1); seq <= 3; seq++ {
		e := journal.NewEntry(p.ID, seq, []journal.Op{{Kind: journal.KindMint, To: holderA, Amount: types.NewAmount(seq)}})
		if err := s.AppendEntry(ctx, e); err != nil {
			t.Fatalf("AppendEntry(%d): %v", seq, err)
		}
	}
	if err := s.AppendEntry(ctx, journal.NewEntry(p.ID, 2, nil)); !errors.Is(err, shareledger.ErrSequenceConflict) {
		t.Fatalf("expected ErrSequenceConflict, got %v", err)
	}

	entries, err := s.ListEntries(ctx, p.ID, journal.ListOpts{AfterSeq: 1})
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 2 || entries[0].Seq != 2 || entries[1].Seq != 3 {
		t.Fatalf("ListEntries returned %d entries", len(entries))
	}
	if op := entries[1].Ops[0]; op.Kind != journal.KindMint || op.To != holderA || !op.Amount.Eq(types.NewAmount(3)) {
		t.Errorf("decoded op = %+v", op)
	}

	if _, err := s.LatestSnapshot(ctx, p.ID); !errors.Is(err, shareledger.ErrSnapshotNotFound) {
		t.Fatalf("expected ErrSnapshotNotFound, got %v", err)
	}
	for _, seq := range []uint64{2, 3} {
		snap := &snapshot.Snapshot{
			ID:          id.NewSnapshotID(),
			PoolID:      p.ID,
			Seq:         seq,
			TotalShares: types.NewAmount(seq),
			PooledValue: types.Max(),
			Shares:      map[types.Account]types.Amount{holderA: types.NewAmount(seq)},
			CreatedAt:   time.Now().UTC(),
		}
		if err := s.SaveSnapshot(ctx, snap); err != nil {
			t.Fatal(err)
		}
	}
	latest, err := s.LatestSnapshot(ctx, p.ID)
	if err != nil {
		t.Fatal(err)
	}
	if latest.Seq != 3 || !latest.PooledValue.Eq(types.Max()) || !latest.Shares[holderA].Eq(types.NewAmount(3)) {
		t.Errorf("latest snapshot = %+v", latest)
	}
}

func TestEngineOnSQLite(t *testing.T) {
	ctx := context.Background()
	path := dbPath(t)
	quiet := shareledger.WithLogger(discardLogger())

	first := shareledger.New(openStore(t, path), quiet)
	if err := first.Start(ctx); err != nil {
		t.Fatal(err)
	}
	p := &pool.Pool{Name: "Staked ETH", Slug: "steth"}
	if err := first.CreatePool(ctx, p); err != nil {
		t.Fatal(err)
	}
	if _, err := first.Mint(ctx, p.ID, holderA, types.NewAmount(1000)); err != nil {
		t.Fatal(err)
	}
	if _, err := first.Rebase(ctx, p.ID, true, types.NewAmount(1000)); err != nil {
		t.Fatal(err)
	}
	if _, err := first.Checkpoint(ctx, p.ID); err != nil {
		t.Fatal(err)
	}
	if _, err := first.Rebase(ctx, p.ID, true, types.NewAmount(500)); err != nil {
		t.Fatal(err)
	}
	if _, err := first.Transfer(ctx, p.ID, holderA, holderB, types.NewAmount(400)); err != nil {
		t.Fatal(err)
	}
	if err := first.Stop(); err != nil {
		t.Fatal(err)
	}

	second := shareledger.New(openStore(t, path), quiet)
	if err := second.Start(ctx); err != nil {
		t.Fatal(err)
	}
	defer second.Stop()

	tests := []struct {
		account types.Account
		want    uint64
	}{
		{account: holderA, want: 1500},
		{account: holderB, want: 1000},
	}
	for _, tt := range tests {
		got, err := second.BalanceOf(ctx, p.ID, tt.account)
		if err != nil {
			t.Fatalf("BalanceOf(%s): %v", tt.account.Hex(), err)
		}
		if !got.Eq(types.NewAmount(tt.want)) {
			t.Errorf("BalanceOf(%s) = %s, want %d", tt.account.Hex(), got, tt.want)
		}
	}
	if err := second.Verify(ctx, p.ID); err != nil {
		t.Errorf("Verify: %v", err)
	}
}
