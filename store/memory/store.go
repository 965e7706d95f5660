// Package memory provides an in-process store.Store for tests, simulations
// and single-node deployments that rebuild state from elsewhere.
package memory

import (
	"context"
	"maps"
	"slices"
	"sort"
	"sync"

	"github.com/xraph/shareledger"
	"github.com/xraph/shareledger/id"
	"github.com/xraph/shareledger/journal"
	"github.com/xraph/shareledger/pool"
	"github.com/xraph/shareledger/snapshot"
)

type Store struct {
	mu     sync.RWMutex
	closed bool

	// Pool storage
	pools map[string]*pool.Pool

	// Journal storage, per pool in ascending Seq order
	entries map[string][]*journal.Entry

	// Snapshot storage, per pool in ascending Seq order
	snapshots map[string][]*snapshot.Snapshot
}

func New() *Store {
	return &Store{
		pools:     make(map[string]*pool.Pool),
		entries:   make(map[string][]*journal.Entry),
		snapshots: make(map[string][]*snapshot.Snapshot),
	}
}

// Pool Store implementation
func (s *Store) CreatePool(_ context.Context, p *pool.Pool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return shareledger.ErrStoreClosed
	}
	if _, exists := s.pools[p.ID.String()]; exists {
		return shareledger.ErrPoolExists
	}
	for _, existing := range s.pools {
		if p.Slug != "" && existing.Slug == p.Slug {
			return shareledger.ErrPoolExists
		}
	}
	s.pools[p.ID.String()] = clonePool(p)
	return nil
}

func (s *Store) GetPool(_ context.Context, poolID id.PoolID) (*pool.Pool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if p, ok := s.pools[poolID.String()]; ok {
		return clonePool(p), nil
	}
	return nil, shareledger.ErrPoolNotFound
}

func (s *Store) GetPoolBySlug(_ context.Context, slug string) (*pool.Pool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, p := range s.pools {
		if p.Slug == slug {
			return clonePool(p), nil
		}
	}
	return nil, shareledger.ErrPoolNotFound
}

func (s *Store) ListPools(_ context.Context, opts pool.ListOpts) ([]*pool.Pool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*pool.Pool, 0, len(s.pools))
	for _, p := range s.pools {
		if opts.Status == "" || p.Status == opts.Status {
			result = append(result, clonePool(p))
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})

	// Apply limit/offset
	start := min(opts.Offset, len(result))
	end := start + opts.Limit
	if opts.Limit == 0 || end > len(result) {
		end = len(result)
	}

	return result[start:end], nil
}

func (s *Store) UpdatePool(_ context.Context, p *pool.Pool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.pools[p.ID.String()]; !exists {
		return shareledger.ErrPoolNotFound
	}
	p.Touch()
	s.pools[p.ID.String()] = clonePool(p)
	return nil
}

func (s *Store) ArchivePool(_ context.Context, poolID id.PoolID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if p, exists := s.pools[poolID.String()]; exists {
		p.Status = pool.StatusArchived
		p.Touch()
		return nil
	}
	return shareledger.ErrPoolNotFound
}

// Journal Store implementation
func (s *Store) AppendEntry(_ context.Context, e *journal.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return shareledger.ErrStoreClosed
	}
	key := e.PoolID.String()
	list := s.entries[key]
	i, found := slices.BinarySearchFunc(list, e.Seq, func(x *journal.Entry, seq uint64) int {
		switch {
		case x.Seq < seq:
			return -1
		case x.Seq > seq:
			return 1
		}
		return 0
	})
	if found {
		return shareledger.ErrSequenceConflict
	}
	s.entries[key] = slices.Insert(list, i, cloneEntry(e))
	return nil
}

func (s *Store) ListEntries(_ context.Context, poolID id.PoolID, opts journal.ListOpts) ([]*journal.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*journal.Entry, 0)
	for _, e := range s.entries[poolID.String()] {
		if e.Seq <= opts.AfterSeq {
			continue
		}
		result = append(result, cloneEntry(e))
		if opts.Limit > 0 && len(result) == opts.Limit {
			break
		}
	}
	return result, nil
}

// Snapshot Store implementation
func (s *Store) SaveSnapshot(_ context.Context, snap *snapshot.Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return shareledger.ErrStoreClosed
	}
	key := snap.PoolID.String()
	list := append(s.snapshots[key], cloneSnapshot(snap))
	sort.SliceStable(list, func(i, j int) bool { return list[i].Seq < list[j].Seq })
	s.snapshots[key] = list
	return nil
}

func (s *Store) LatestSnapshot(_ context.Context, poolID id.PoolID) (*snapshot.Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	list := s.snapshots[poolID.String()]
	if len(list) == 0 {
		return nil, shareledger.ErrSnapshotNotFound
	}
	return cloneSnapshot(list[len(list)-1]), nil
}

// Core methods
func (s *Store) Migrate(_ context.Context) error {
	return nil
}

func (s *Store) Ping(_ context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return shareledger.ErrStoreClosed
	}
	return nil
}

func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.closed = true
	return nil
}

func clonePool(p *pool.Pool) *pool.Pool {
	c := *p
	if p.Cap != nil {
		capCopy := *p.Cap
		c.Cap = &capCopy
	}
	c.Metadata = maps.Clone(p.Metadata)
	return &c
}

func cloneEntry(e *journal.Entry) *journal.Entry {
	c := *e
	c.Ops = slices.Clone(e.Ops)
	c.Metadata = maps.Clone(e.Metadata)
	return &c
}

func cloneSnapshot(snap *snapshot.Snapshot) *snapshot.Snapshot {
	c := *snap
	c.Shares = maps.Clone(snap.Shares)
	return &c
}
