// Package shareledger provides a rebasing share ledger for Go applications.
//
// A pool tracks proportional ownership of a single pooled value. Holders own
// shares, and a holder's balance is derived on read:
//
//	balance = shares * pooledValue / totalShares
//
// Changing the pooled value (a rebase) moves every balance at once without
// touching any holder's shares. All quantities are unsigned 256-bit integers
// with checked arithmetic: an operation that would overflow, underflow or
// divide by zero fails and leaves the ledger unchanged.
//
// shareledger is designed as a library, not a service. It provides:
//
//   - Ledger, the in-memory core with atomic staged updates
//   - Engine, which journals every committed update to a store
//   - Snapshots, so opening a pool only replays the journal tail
//   - Memory, SQLite, PostgreSQL and MongoDB stores
//   - Plugin hooks for audit trails and metrics
//
// # Quick Start
//
// The core ledger needs no storage:
//
//	l := shareledger.NewLedger()
//	alice := shareledger.MustParseAccount("0x00000000000000000000000000000000000000a1")
//
//	_ = l.UpdatePooledValue(true, shareledger.NewAmount(1000))
//	_ = l.MintShares(alice, shareledger.NewAmount(1000))
//	_ = l.UpdatePooledValue(true, shareledger.NewAmount(500)) // +50% yield
//
//	balance, _ := l.BalanceOf(alice) // 1500
//
// Several operations can be committed together:
//
//	err := l.Update(func(tx *shareledger.Tx) error {
//	    if err := tx.BurnShares(alice, shareledger.NewAmount(100)); err != nil {
//	        return err
//	    }
//	    return tx.UpdatePooledValue(false, shareledger.NewAmount(150))
//	})
//
// # Engine
//
// The Engine persists pools through a store:
//
//	engine := shareledger.New(memory.New(),
//	    shareledger.WithSnapshotConfig(1000, time.Minute),
//	)
//	if err := engine.Start(ctx); err != nil {
//	    log.Fatal(err)
//	}
//	defer engine.Stop()
//
//	p := &pool.Pool{Name: "Staked ETH", Slug: "steth", Unit: "wei"}
//	_ = engine.CreatePool(ctx, p)
//	_, _ = engine.Mint(ctx, p.ID, alice, shareledger.NewAmount(1000))
//
// # Rounding
//
// Conversions between shares and value round down. The sum of every
// holder's balance may therefore fall short of the pooled value by at most
// one unit per holder.
//
// # TypeID
//
// Persisted records use TypeID identifiers:
//
//	pool_01h2xcejqtf2nbrexx3vqjhp41  // Pool ID
//	jrnl_01h2xcejqtf2nbrexx3vqjhp41  // Journal entry ID
//	snap_01h455vb4pex5vsknk084sn02q  // Snapshot ID
package shareledger
