package shareledger

import (
	"bytes"
	"slices"
	"sync"

	"github.com/xraph/shareledger/journal"
	"github.com/xraph/shareledger/types"
)

// Ledger tracks proportional ownership of a pooled value.
//
// Holders own shares; a holder's balance is shares*pooledValue/totalShares,
// computed on read. Mint and burn change totalShares, transfers never do, and
// UpdatePooledValue rebases every balance at once without touching shares.
//
// Every mutation is all-or-nothing: it either moves the ledger from one
// consistent state to the next or fails with the prior state intact.
// A Ledger is safe for concurrent use. Mutations are serialized; reads may
// run concurrently with each other but never observe a partial mutation.
type Ledger struct {
	mu sync.RWMutex

	shares      map[types.Account]types.Amount
	totalShares types.Amount
	pooledValue types.Amount

	cap types.Amount
	seq uint64

	// journaled ledgers are owned by an Engine and only change through it.
	journaled bool
}

// LedgerOption configures a Ledger.
type LedgerOption func(*Ledger)

// WithCap bounds every counter (each holder's shares, totalShares and
// pooledValue) to c. Operations that would exceed it fail with ErrOverflow.
// The default cap is 2^256-1.
func WithCap(c types.Amount) LedgerOption {
	return func(l *Ledger) {
		l.cap = c
	}
}

// NewLedger creates an empty ledger: no holders, zero shares, zero value.
func NewLedger(opts ...LedgerOption) *Ledger {
	l := &Ledger{
		shares: make(map[types.Account]types.Amount),
		cap:    types.Max(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// State is a copy of a ledger's full state after Seq committed updates.
type State struct {
	Seq         uint64
	TotalShares types.Amount
	PooledValue types.Amount
	Shares      map[types.Account]types.Amount
}

// NewLedgerFromState restores a ledger from a previously captured State.
// It fails with ErrInvariantViolated if the share map does not sum to
// TotalShares, and with ErrOverflow if any counter exceeds the cap.
func NewLedgerFromState(st State, opts ...LedgerOption) (*Ledger, error) {
	l := NewLedger(opts...)

	sum := types.Zero()
	for acct, n := range st.Shares {
		if n.IsZero() {
			continue
		}
		if n.Gt(l.cap) {
			return nil, &OpError{Op: "restore", Account: acct.Hex(), Err: types.ErrOverflow}
		}
		next, err := sum.Add(n)
		if err != nil {
			return nil, &OpError{Op: "restore", Err: err}
		}
		sum = next
		l.shares[acct] = n
	}
	if !sum.Eq(st.TotalShares) {
		return nil, ErrInvariantViolated
	}
	if st.TotalShares.Gt(l.cap) || st.PooledValue.Gt(l.cap) {
		return nil, &OpError{Op: "restore", Err: types.ErrOverflow}
	}

	l.totalShares = st.TotalShares
	l.pooledValue = st.PooledValue
	l.seq = st.Seq
	return l, nil
}

// ──────────────────────────────────────────────────
// Mutations
// ──────────────────────────────────────────────────

// MintShares creates amount new shares for to.
func (l *Ledger) MintShares(to types.Account, amount types.Amount) error {
	return l.Update(func(tx *Tx) error { return tx.MintShares(to, amount) })
}

// BurnShares destroys amount of from's shares.
func (l *Ledger) BurnShares(from types.Account, amount types.Amount) error {
	return l.Update(func(tx *Tx) error { return tx.BurnShares(from, amount) })
}

// TransferShares moves amount shares from one holder to another.
// totalShares is unchanged.
func (l *Ledger) TransferShares(from, to types.Account, amount types.Amount) error {
	return l.Update(func(tx *Tx) error { return tx.TransferShares(from, to, amount) })
}

// UpdatePooledValue adds delta to the pooled value when isPositive is true
// and subtracts it otherwise.
func (l *Ledger) UpdatePooledValue(isPositive bool, delta types.Amount) error {
	return l.Update(func(tx *Tx) error { return tx.UpdatePooledValue(isPositive, delta) })
}

// Update runs fn against a transaction holding the ledger's write lock.
// Writes made through tx are staged; they become visible together when fn
// returns nil and are discarded when it returns an error or panics.
// A successful update that staged at least one operation advances Seq by one.
//
// fn must not call methods on l itself. Ledgers returned by Engine.Open
// reject Update with ErrReadOnly.
func (l *Ledger) Update(fn func(tx *Tx) error) error {
	if l.journaled {
		return ErrReadOnly
	}
	return l.update(fn)
}

func (l *Ledger) update(fn func(tx *Tx) error) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	tx := &Tx{
		l:           l,
		writable:    true,
		totalShares: l.totalShares,
		pooledValue: l.pooledValue,
	}
	if err := fn(tx); err != nil {
		return err
	}
	l.commit(tx)
	return nil
}

// View runs fn against a read-only transaction holding the read lock, so
// every read inside fn sees the same state.
func (l *Ledger) View(fn func(tx *Tx) error) error {
	l.mu.RLock()
	defer l.mu.RUnlock()

	return fn(&Tx{
		l:           l,
		totalShares: l.totalShares,
		pooledValue: l.pooledValue,
	})
}

// Replay applies a journaled update. seq must be exactly Seq()+1.
func (l *Ledger) Replay(seq uint64, ops []journal.Op) error {
	if l.journaled {
		return ErrReadOnly
	}
	return l.update(func(tx *Tx) error {
		if seq != tx.Seq() {
			return ErrSequenceGap
		}
		for _, op := range ops {
			if err := tx.Apply(op); err != nil {
				return err
			}
		}
		return nil
	})
}

func (l *Ledger) commit(tx *Tx) {
	if len(tx.ops) == 0 {
		return
	}
	for acct, n := range tx.shares {
		if n.IsZero() {
			delete(l.shares, acct)
			continue
		}
		l.shares[acct] = n
	}
	l.totalShares = tx.totalShares
	l.pooledValue = tx.pooledValue
	l.seq++
}

// ──────────────────────────────────────────────────
// Reads
// ──────────────────────────────────────────────────

// SharesOf returns account's share count, zero for unknown accounts.
func (l *Ledger) SharesOf(account types.Account) types.Amount {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.shares[account]
}

// PooledValue returns the total value backing all shares.
func (l *Ledger) PooledValue() types.Amount {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.pooledValue
}

// TotalShares returns the number of shares outstanding.
func (l *Ledger) TotalShares() types.Amount {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.totalShares
}

// CalculateBalance converts shares to value: floor(shares*pooledValue/totalShares).
// It fails with ErrDivisionByZero while no shares exist.
func (l *Ledger) CalculateBalance(shares types.Amount) (types.Amount, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return calculateBalance(shares, l.pooledValue, l.totalShares)
}

// CalculateShares converts value to shares: floor(amount*totalShares/pooledValue).
// It fails with ErrDivisionByZero while the pooled value is zero.
func (l *Ledger) CalculateShares(amount types.Amount) (types.Amount, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return calculateShares(amount, l.totalShares, l.pooledValue)
}

// BalanceOf returns the value currently owned by account.
func (l *Ledger) BalanceOf(account types.Account) (types.Amount, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return calculateBalance(l.shares[account], l.pooledValue, l.totalShares)
}

// Seq returns the number of committed updates that produced this state.
func (l *Ledger) Seq() uint64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.seq
}

// Holders returns every account with non-zero shares in address order.
func (l *Ledger) Holders() []types.Account {
	l.mu.RLock()
	defer l.mu.RUnlock()

	holders := make([]types.Account, 0, len(l.shares))
	for acct := range l.shares {
		holders = append(holders, acct)
	}
	slices.SortFunc(holders, func(a, b types.Account) int {
		return bytes.Compare(a[:], b[:])
	})
	return holders
}

// State returns a deep copy of the ledger's state.
func (l *Ledger) State() State {
	l.mu.RLock()
	defer l.mu.RUnlock()

	shares := make(map[types.Account]types.Amount, len(l.shares))
	for acct, n := range l.shares {
		shares[acct] = n
	}
	return State{
		Seq:         l.seq,
		TotalShares: l.totalShares,
		PooledValue: l.pooledValue,
		Shares:      shares,
	}
}

// Verify recomputes the sum of all holdings and checks it against
// totalShares.
func (l *Ledger) Verify() error {
	l.mu.RLock()
	defer l.mu.RUnlock()

	sum := types.Zero()
	for _, n := range l.shares {
		next, err := sum.Add(n)
		if err != nil {
			return ErrInvariantViolated
		}
		sum = next
	}
	if !sum.Eq(l.totalShares) {
		return ErrInvariantViolated
	}
	return nil
}

func calculateBalance(shares, pooledValue, totalShares types.Amount) (types.Amount, error) {
	v, err := shares.MulDiv(pooledValue, totalShares)
	if err != nil {
		return types.Amount{}, &OpError{Op: "calculateBalance", Err: err}
	}
	return v, nil
}

func calculateShares(amount, totalShares, pooledValue types.Amount) (types.Amount, error) {
	v, err := amount.MulDiv(totalShares, pooledValue)
	if err != nil {
		return types.Amount{}, &OpError{Op: "calculateShares", Err: err}
	}
	return v, nil
}

// BalanceFor converts shares to their value at the given totals, rounding
// down. It fails with ErrDivisionByZero when totalShares is zero.
func BalanceFor(shares, pooledValue, totalShares types.Amount) (types.Amount, error) {
	return calculateBalance(shares, pooledValue, totalShares)
}

// SharesFor converts a value to the shares it buys at the given totals,
// rounding down. It fails with ErrDivisionByZero when pooledValue is zero.
func SharesFor(amount, totalShares, pooledValue types.Amount) (types.Amount, error) {
	return calculateShares(amount, totalShares, pooledValue)
}
