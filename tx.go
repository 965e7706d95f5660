package shareledger

import (
	"fmt"

	"github.com/xraph/shareledger/journal"
	"github.com/xraph/shareledger/types"
)

// Tx is a staged view of a Ledger inside Update or View. Reads through a Tx
// see its own staged writes. A Tx is only valid for the duration of the
// callback it was passed to.
type Tx struct {
	l        *Ledger
	writable bool

	shares      map[types.Account]types.Amount
	totalShares types.Amount
	pooledValue types.Amount
	ops         []journal.Op
}

// Seq is the sequence number this transaction commits as.
func (tx *Tx) Seq() uint64 { return tx.l.seq + 1 }

// Ops returns the operations staged so far.
func (tx *Tx) Ops() []journal.Op {
	ops := make([]journal.Op, len(tx.ops))
	copy(ops, tx.ops)
	return ops
}

// SharesOf returns account's staged share count.
func (tx *Tx) SharesOf(account types.Account) types.Amount {
	if n, ok := tx.shares[account]; ok {
		return n
	}
	return tx.l.shares[account]
}

// TotalShares returns the staged share total.
func (tx *Tx) TotalShares() types.Amount { return tx.totalShares }

// PooledValue returns the staged pooled value.
func (tx *Tx) PooledValue() types.Amount { return tx.pooledValue }

// CalculateBalance converts shares to value against the staged state.
func (tx *Tx) CalculateBalance(shares types.Amount) (types.Amount, error) {
	return calculateBalance(shares, tx.pooledValue, tx.totalShares)
}

// CalculateShares converts value to shares against the staged state.
func (tx *Tx) CalculateShares(amount types.Amount) (types.Amount, error) {
	return calculateShares(amount, tx.totalShares, tx.pooledValue)
}

// BalanceOf returns the value owned by account in the staged state.
func (tx *Tx) BalanceOf(account types.Account) (types.Amount, error) {
	return tx.CalculateBalance(tx.SharesOf(account))
}

// MintShares stages shares[to] += amount and totalShares += amount.
func (tx *Tx) MintShares(to types.Account, amount types.Amount) error {
	if !tx.writable {
		return ErrReadOnly
	}
	balance, err := tx.add(tx.SharesOf(to), amount)
	if err != nil {
		return accountErr("mint", to, err)
	}
	total, err := tx.add(tx.totalShares, amount)
	if err != nil {
		return accountErr("mint", to, err)
	}

	tx.set(to, balance)
	tx.totalShares = total
	tx.record(journal.Op{Kind: journal.KindMint, To: to, Amount: amount})
	return nil
}

// BurnShares stages totalShares -= amount and shares[from] -= amount.
func (tx *Tx) BurnShares(from types.Account, amount types.Amount) error {
	if !tx.writable {
		return ErrReadOnly
	}
	total, err := tx.totalShares.Sub(amount)
	if err != nil {
		return accountErr("burn", from, err)
	}
	balance, err := tx.SharesOf(from).Sub(amount)
	if err != nil {
		return accountErr("burn", from, err)
	}

	tx.set(from, balance)
	tx.totalShares = total
	tx.record(journal.Op{Kind: journal.KindBurn, From: from, Amount: amount})
	return nil
}

// TransferShares stages a move of amount shares from one holder to another.
// A self-transfer is validated like any other and leaves shares unchanged.
func (tx *Tx) TransferShares(from, to types.Account, amount types.Amount) error {
	if !tx.writable {
		return ErrReadOnly
	}
	fromBalance, err := tx.SharesOf(from).Sub(amount)
	if err != nil {
		return accountErr("transfer", from, err)
	}
	if from != to {
		toBalance, err := tx.add(tx.SharesOf(to), amount)
		if err != nil {
			return accountErr("transfer", to, err)
		}
		tx.set(from, fromBalance)
		tx.set(to, toBalance)
	}

	tx.record(journal.Op{Kind: journal.KindTransfer, From: from, To: to, Amount: amount})
	return nil
}

// UpdatePooledValue stages pooledValue += delta, or -= delta when
// isPositive is false.
func (tx *Tx) UpdatePooledValue(isPositive bool, delta types.Amount) error {
	if !tx.writable {
		return ErrReadOnly
	}
	var (
		value types.Amount
		err   error
	)
	if isPositive {
		value, err = tx.add(tx.pooledValue, delta)
	} else {
		value, err = tx.pooledValue.Sub(delta)
	}
	if err != nil {
		return &OpError{Op: "updatePooledValue", Err: err}
	}

	tx.pooledValue = value
	tx.record(journal.Op{Kind: journal.KindRebase, Amount: delta, Positive: isPositive})
	return nil
}

// Apply stages a journaled operation.
func (tx *Tx) Apply(op journal.Op) error {
	switch op.Kind {
	case journal.KindMint:
		return tx.MintShares(op.To, op.Amount)
	case journal.KindBurn:
		return tx.BurnShares(op.From, op.Amount)
	case journal.KindTransfer:
		return tx.TransferShares(op.From, op.To, op.Amount)
	case journal.KindRebase:
		return tx.UpdatePooledValue(op.Positive, op.Amount)
	default:
		return fmt.Errorf("%w: unknown operation kind %q", ErrInvalidInput, op.Kind)
	}
}

// add is a checked add bounded by the ledger cap.
func (tx *Tx) add(a, b types.Amount) (types.Amount, error) {
	sum, err := a.Add(b)
	if err != nil {
		return types.Amount{}, err
	}
	if sum.Gt(tx.l.cap) {
		return types.Amount{}, types.ErrOverflow
	}
	return sum, nil
}

func (tx *Tx) set(account types.Account, n types.Amount) {
	if tx.shares == nil {
		tx.shares = make(map[types.Account]types.Amount, 2)
	}
	tx.shares[account] = n
}

func (tx *Tx) record(op journal.Op) {
	tx.ops = append(tx.ops, op)
}
