package mongo

import (
	"fmt"
	"time"

	"github.com/xraph/grove"

	"github.com/xraph/shareledger/id"
	"github.com/xraph/shareledger/journal"
	"github.com/xraph/shareledger/pool"
	"github.com/xraph/shareledger/snapshot"
	"github.com/xraph/shareledger/types"
)

// ==================== Pool models ====================

type poolModel struct {
	grove.BaseModel `grove:"table:shareledger_pools"`

	ID          string            `grove:"id,pk"       bson:"_id"`
	Name        string            `grove:"name"        bson:"name"`
	Slug        string            `grove:"slug"        bson:"slug"`
	Description string            `grove:"description" bson:"description"`
	Unit        string            `grove:"unit"        bson:"unit"`
	Status      string            `grove:"status"      bson:"status"`
	Cap         string            `grove:"cap"         bson:"cap,omitempty"`
	Metadata    map[string]string `grove:"metadata"    bson:"metadata,omitempty"`
	CreatedAt   time.Time         `grove:"created_at"  bson:"created_at"`
	UpdatedAt   time.Time         `grove:"updated_at"  bson:"updated_at"`
}

func toPoolModel(p *pool.Pool) *poolModel {
	m := &poolModel{
		ID:          p.ID.String(),
		Name:        p.Name,
		Slug:        p.Slug,
		Description: p.Description,
		Unit:        p.Unit,
		Status:      string(p.Status),
		Metadata:    p.Metadata,
		CreatedAt:   p.CreatedAt,
		UpdatedAt:   p.UpdatedAt,
	}
	if p.Cap != nil {
		m.Cap = p.Cap.String()
	}
	return m
}

func fromPoolModel(m *poolModel) (*pool.Pool, error) {
	poolID, err := id.ParsePoolID(m.ID)
	if err != nil {
		return nil, fmt.Errorf("parse pool id %q: %w", m.ID, err)
	}

	p := &pool.Pool{
		Entity: types.Entity{
			CreatedAt: m.CreatedAt,
			UpdatedAt: m.UpdatedAt,
		},
		ID:          poolID,
		Name:        m.Name,
		Slug:        m.Slug,
		Description: m.Description,
		Unit:        m.Unit,
		Status:      pool.Status(m.Status),
		Metadata:    m.Metadata,
	}
	if m.Cap != "" {
		c, err := types.ParseAmount(m.Cap)
		if err != nil {
			return nil, fmt.Errorf("pool %s cap: %w", m.ID, err)
		}
		p.Cap = &c
	}
	return p, nil
}

// ==================== Journal models ====================

type entryModel struct {
	grove.BaseModel `grove:"table:shareledger_journal"`

	ID        string            `grove:"id,pk"     bson:"_id"`
	PoolID    string            `grove:"pool_id"   bson:"pool_id"`
	Seq       int64             `grove:"seq"       bson:"seq"`
	Ops       []opModel         `grove:"ops"       bson:"ops"`
	Reference string            `grove:"reference" bson:"reference,omitempty"`
	Metadata  map[string]string `grove:"metadata"  bson:"metadata,omitempty"`
	Timestamp time.Time         `grove:"timestamp" bson:"timestamp"`
}

// opModel stores addresses as hex and amounts as decimal strings, since
// BSON has no 256-bit integer type.
type opModel struct {
	Kind     string `bson:"kind"`
	From     string `bson:"from,omitempty"`
	To       string `bson:"to,omitempty"`
	Amount   string `bson:"amount"`
	Positive bool   `bson:"positive,omitempty"`
}

func toEntryModel(e *journal.Entry) *entryModel {
	ops := make([]opModel, len(e.Ops))
	for i, op := range e.Ops {
		m := opModel{
			Kind:     string(op.Kind),
			Amount:   op.Amount.String(),
			Positive: op.Positive,
		}
		if op.Kind == journal.KindBurn || op.Kind == journal.KindTransfer {
			m.From = op.From.Hex()
		}
		if op.Kind == journal.KindMint || op.Kind == journal.KindTransfer {
			m.To = op.To.Hex()
		}
		ops[i] = m
	}

	return &entryModel{
		ID:        e.ID.String(),
		PoolID:    e.PoolID.String(),
		Seq:       int64(e.Seq), //nolint:gosec // sequence numbers stay far below 2^63
		Ops:       ops,
		Reference: e.Reference,
		Metadata:  e.Metadata,
		Timestamp: e.Timestamp,
	}
}

func fromEntryModel(m *entryModel) (*journal.Entry, error) {
	entryID, err := id.ParseEntryID(m.ID)
	if err != nil {
		return nil, fmt.Errorf("parse entry id %q: %w", m.ID, err)
	}
	poolID, err := id.ParsePoolID(m.PoolID)
	if err != nil {
		return nil, fmt.Errorf("parse pool id %q: %w", m.PoolID, err)
	}

	ops := make([]journal.Op, len(m.Ops))
	for i, om := range m.Ops {
		amount, err := types.ParseAmount(om.Amount)
		if err != nil {
			return nil, fmt.Errorf("entry %s op %d amount: %w", m.ID, i, err)
		}
		op := journal.Op{
			Kind:     journal.Kind(om.Kind),
			Amount:   amount,
			Positive: om.Positive,
		}
		if om.From != "" {
			if op.From, err = types.ParseAccount(om.From); err != nil {
				return nil, fmt.Errorf("entry %s op %d from: %w", m.ID, i, err)
			}
		}
		if om.To != "" {
			if op.To, err = types.ParseAccount(om.To); err != nil {
				return nil, fmt.Errorf("entry %s op %d to: %w", m.ID, i, err)
			}
		}
		ops[i] = op
	}

	return &journal.Entry{
		ID:        entryID,
		PoolID:    poolID,
		Seq:       uint64(m.Seq), //nolint:gosec // stored from a uint64
		Ops:       ops,
		Reference: m.Reference,
		Metadata:  m.Metadata,
		Timestamp: m.Timestamp,
	}, nil
}

// ==================== Snapshot models ====================

type snapshotModel struct {
	grove.BaseModel `grove:"table:shareledger_snapshots"`

	ID          string            `grove:"id,pk"        bson:"_id"`
	PoolID      string            `grove:"pool_id"      bson:"pool_id"`
	Seq         int64             `grove:"seq"          bson:"seq"`
	TotalShares string            `grove:"total_shares" bson:"total_shares"`
	PooledValue string            `grove:"pooled_value" bson:"pooled_value"`
	Shares      map[string]string `grove:"shares"       bson:"shares"`
	CreatedAt   time.Time         `grove:"created_at"   bson:"created_at"`
}

func toSnapshotModel(s *snapshot.Snapshot) *snapshotModel {
	shares := make(map[string]string, len(s.Shares))
	for acct, n := range s.Shares {
		shares[acct.Hex()] = n.String()
	}
	return &snapshotModel{
		ID:          s.ID.String(),
		PoolID:      s.PoolID.String(),
		Seq:         int64(s.Seq), //nolint:gosec // sequence numbers stay far below 2^63
		TotalShares: s.TotalShares.String(),
		PooledValue: s.PooledValue.String(),
		Shares:      shares,
		CreatedAt:   s.CreatedAt,
	}
}

func fromSnapshotModel(m *snapshotModel) (*snapshot.Snapshot, error) {
	snapID, err := id.ParseSnapshotID(m.ID)
	if err != nil {
		return nil, fmt.Errorf("parse snapshot id %q: %w", m.ID, err)
	}
	poolID, err := id.ParsePoolID(m.PoolID)
	if err != nil {
		return nil, fmt.Errorf("parse pool id %q: %w", m.PoolID, err)
	}
	total, err := types.ParseAmount(m.TotalShares)
	if err != nil {
		return nil, fmt.Errorf("snapshot %s total_shares: %w", m.ID, err)
	}
	pooled, err := types.ParseAmount(m.PooledValue)
	if err != nil {
		return nil, fmt.Errorf("snapshot %s pooled_value: %w", m.ID, err)
	}

	shares := make(map[types.Account]types.Amount, len(m.Shares))
	for hex, dec := range m.Shares {
		acct, err := types.ParseAccount(hex)
		if err != nil {
			return nil, fmt.Errorf("snapshot %s holder: %w", m.ID, err)
		}
		n, err := types.ParseAmount(dec)
		if err != nil {
			return nil, fmt.Errorf("snapshot %s shares of %s: %w", m.ID, hex, err)
		}
		shares[acct] = n
	}

	return &snapshot.Snapshot{
		ID:          snapID,
		PoolID:      poolID,
		Seq:         uint64(m.Seq), //nolint:gosec // stored from a uint64
		TotalShares: total,
		PooledValue: pooled,
		Shares:      shares,
		CreatedAt:   m.CreatedAt,
	}, nil
}
