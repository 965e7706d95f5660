package sqlite

import (
	"encoding/json"
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

	ID          string    `grove:"id,pk"`
	Name        string    `grove:"name"`
	Slug        string    `grove:"slug"`
	Description string    `grove:"description"`
	Unit        string    `grove:"unit"`
	Status      string    `grove:"status"`
	Cap         *string   `grove:"cap"`
	Metadata    string    `grove:"metadata"`
	CreatedAt   time.Time `grove:"created_at"`
	UpdatedAt   time.Time `grove:"updated_at"`
}

func toPoolModel(p *pool.Pool) *poolModel {
	m := &poolModel{
		ID:          p.ID.String(),
		Name:        p.Name,
		Slug:        p.Slug,
		Description: p.Description,
		Unit:        p.Unit,
		Status:      string(p.Status),
		Metadata:    encodeMetadata(p.Metadata),
		CreatedAt:   p.CreatedAt,
		UpdatedAt:   p.UpdatedAt,
	}
	if p.Cap != nil {
		c := p.Cap.String()
		m.Cap = &c
	}
	return m
}

func fromPoolModel(m *poolModel) (*pool.Pool, error) {
	poolID, err := id.ParsePoolID(m.ID)
	if err != nil {
		return nil, err
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
		Metadata:    decodeMetadata(m.Metadata),
	}
	if m.Cap != nil {
		c, err := types.ParseAmount(*m.Cap)
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

	ID        string    `grove:"id,pk"`
	PoolID    string    `grove:"pool_id"`
	Seq       int64     `grove:"seq"`
	Ops       string    `grove:"ops"`
	Reference string    `grove:"reference"`
	Metadata  string    `grove:"metadata"`
	Timestamp time.Time `grove:"timestamp"`
}

func toEntryModel(e *journal.Entry) (*entryModel, error) {
	ops, err := json.Marshal(e.Ops)
	if err != nil {
		return nil, fmt.Errorf("encode ops: %w", err)
	}
	return &entryModel{
		ID:        e.ID.String(),
		PoolID:    e.PoolID.String(),
		Seq:       int64(e.Seq), //nolint:gosec // sequence numbers stay far below 2^63
		Ops:       string(ops),
		Reference: e.Reference,
		Metadata:  encodeMetadata(e.Metadata),
		Timestamp: e.Timestamp,
	}, nil
}

func fromEntryModel(m *entryModel) (*journal.Entry, error) {
	entryID, err := id.ParseEntryID(m.ID)
	if err != nil {
		return nil, err
	}
	poolID, err := id.ParsePoolID(m.PoolID)
	if err != nil {
		return nil, err
	}

	var ops []journal.Op
	if err := json.Unmarshal([]byte(m.Ops), &ops); err != nil {
		return nil, fmt.Errorf("decode ops of entry %s: %w", m.ID, err)
	}

	return &journal.Entry{
		ID:        entryID,
		PoolID:    poolID,
		Seq:       uint64(m.Seq), //nolint:gosec // stored from a uint64
		Ops:       ops,
		Reference: m.Reference,
		Metadata:  decodeMetadata(m.Metadata),
		Timestamp: m.Timestamp,
	}, nil
}

// ==================== Snapshot models ====================

type snapshotModel struct {
	grove.BaseModel `grove:"table:shareledger_snapshots"`

	ID          string    `grove:"id,pk"`
	PoolID      string    `grove:"pool_id"`
	Seq         int64     `grove:"seq"`
	TotalShares string    `grove:"total_shares"`
	PooledValue string    `grove:"pooled_value"`
	Shares      string    `grove:"shares"`
	CreatedAt   time.Time `grove:"created_at"`
}

func toSnapshotModel(s *snapshot.Snapshot) (*snapshotModel, error) {
	shares, err := json.Marshal(s.Shares)
	if err != nil {
		return nil, fmt.Errorf("encode shares: %w", err)
	}
	return &snapshotModel{
		ID:          s.ID.String(),
		PoolID:      s.PoolID.String(),
		Seq:         int64(s.Seq), //nolint:gosec // sequence numbers stay far below 2^63
		TotalShares: s.TotalShares.String(),
		PooledValue: s.PooledValue.String(),
		Shares:      string(shares),
		CreatedAt:   s.CreatedAt,
	}, nil
}

func fromSnapshotModel(m *snapshotModel) (*snapshot.Snapshot, error) {
	snapID, err := id.ParseSnapshotID(m.ID)
	if err != nil {
		return nil, err
	}
	poolID, err := id.ParsePoolID(m.PoolID)
	if err != nil {
		return nil, err
	}
	total, err := types.ParseAmount(m.TotalShares)
	if err != nil {
		return nil, fmt.Errorf("snapshot %s total_shares: %w", m.ID, err)
	}
	pooled, err := types.ParseAmount(m.PooledValue)
	if err != nil {
		return nil, fmt.Errorf("snapshot %s pooled_value: %w", m.ID, err)
	}

	shares := make(map[types.Account]types.Amount)
	if len(m.Shares) > 0 {
		if err := json.Unmarshal([]byte(m.Shares), &shares); err != nil {
			return nil, fmt.Errorf("decode shares of snapshot %s: %w", m.ID, err)
		}
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

// ==================== Helpers ====================

// encodeMetadata stores metadata as a JSON object in a TEXT column.
func encodeMetadata(md map[string]string) string {
	if len(md) == 0 {
		return "{}"
	}
	data, _ := json.Marshal(md) //nolint:errcheck // map[string]string always encodes
	return string(data)
}

func decodeMetadata(s string) map[string]string {
	if s == "" || s == "{}" {
		return nil
	}
	var md map[string]string
	_ = json.Unmarshal([]byte(s), &md) //nolint:errcheck // best-effort
	return md
}
