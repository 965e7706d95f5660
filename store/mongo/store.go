package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/xraph/grove"
	"github.com/xraph/grove/drivers/mongodriver"

	"github.com/xraph/shareledger"
	"github.com/xraph/shareledger/id"
	"github.com/xraph/shareledger/journal"
	"github.com/xraph/shareledger/pool"
	"github.com/xraph/shareledger/snapshot"
	ledgerstore "github.com/xraph/shareledger/store"
)

// Collection name constants.
const (
	colPools     = "shareledger_pools"
	colJournal   = "shareledger_journal"
	colSnapshots = "shareledger_snapshots"
)

// compile-time interface check
var _ ledgerstore.Store = (*Store)(nil)

// Store implements store.Store using MongoDB via Grove ORM.
type Store struct {
	db  *grove.DB
	mdb *mongodriver.MongoDB
}

// New creates a new MongoDB store backed by Grove ORM.
func New(db *grove.DB) *Store {
	return &Store{
		db:  db,
		mdb: mongodriver.Unwrap(db),
	}
}

// DB returns the underlying grove database for direct access.
func (s *Store) DB() *grove.DB { return s.db }

// Migrate creates indexes for all shareledger collections.
func (s *Store) Migrate(ctx context.Context) error {
	indexes := migrationIndexes()

	for col, models := range indexes {
		if len(models) == 0 {
			continue
		}
		_, err := s.mdb.Collection(col).Indexes().CreateMany(ctx, models)
		if err != nil {
			return fmt.Errorf("shareledger/mongo: migrate %s indexes: %w", col, err)
		}
	}
	return nil
}

// Ping checks database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// ==================== Pool Store ====================

func (s *Store) CreatePool(ctx context.Context, p *pool.Pool) error {
	m := toPoolModel(p)
	_, err := s.mdb.NewInsert(m).Exec(ctx)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return shareledger.ErrPoolExists
		}
		return fmt.Errorf("shareledger/mongo: create pool: %w", err)
	}
	return nil
}

func (s *Store) GetPool(ctx context.Context, poolID id.PoolID) (*pool.Pool, error) {
	var m poolModel
	err := s.mdb.NewFind(&m).
		Filter(bson.M{"_id": poolID.String()}).
		Scan(ctx)
	if err != nil {
		if isNoDocuments(err) {
			return nil, shareledger.ErrPoolNotFound
		}
		return nil, fmt.Errorf("shareledger/mongo: get pool: %w", err)
	}
	return fromPoolModel(&m)
}

func (s *Store) GetPoolBySlug(ctx context.Context, slug string) (*pool.Pool, error) {
	var m poolModel
	err := s.mdb.NewFind(&m).
		Filter(bson.M{"slug": slug}).
		Scan(ctx)
	if err != nil {
		if isNoDocuments(err) {
			return nil, shareledger.ErrPoolNotFound
		}
		return nil, fmt.Errorf("shareledger/mongo: get pool by slug: %w", err)
	}
	return fromPoolModel(&m)
}

func (s *Store) ListPools(ctx context.Context, opts pool.ListOpts) ([]*pool.Pool, error) {
	var models []poolModel

	filter := bson.M{}
	if opts.Status != "" {
		filter["status"] = string(opts.Status)
	}

	q := s.mdb.NewFind(&models).
		Filter(filter).
		Sort(bson.D{{Key: "created_at", Value: -1}})

	if opts.Limit > 0 {
		q = q.Limit(int64(opts.Limit))
	}
	if opts.Offset > 0 {
		q = q.Skip(int64(opts.Offset))
	}

	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("shareledger/mongo: list pools: %w", err)
	}

	result := make([]*pool.Pool, len(models))
	for i := range models {
		p, err := fromPoolModel(&models[i])
		if err != nil {
			return nil, err
		}
		result[i] = p
	}
	return result, nil
}

func (s *Store) UpdatePool(ctx context.Context, p *pool.Pool) error {
	m := toPoolModel(p)
	m.UpdatedAt = now()
	res, err := s.mdb.NewUpdate(m).
		Filter(bson.M{"_id": m.ID}).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("shareledger/mongo: update pool: %w", err)
	}
	if res.MatchedCount() == 0 {
		return shareledger.ErrPoolNotFound
	}
	return nil
}

func (s *Store) ArchivePool(ctx context.Context, poolID id.PoolID) error {
	t := now()
	res, err := s.mdb.NewUpdate((*poolModel)(nil)).
		Filter(bson.M{"_id": poolID.String()}).
		Set("status", string(pool.StatusArchived)).
		Set("updated_at", t).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("shareledger/mongo: archive pool: %w", err)
	}
	if res.MatchedCount() == 0 {
		return shareledger.ErrPoolNotFound
	}
	return nil
}

// ==================== Journal Store ====================

func (s *Store) AppendEntry(ctx context.Context, e *journal.Entry) error {
	m := toEntryModel(e)
	_, err := s.mdb.NewInsert(m).Exec(ctx)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return shareledger.ErrSequenceConflict
		}
		return fmt.Errorf("shareledger/mongo: append entry: %w", err)
	}
	return nil
}

func (s *Store) ListEntries(ctx context.Context, poolID id.PoolID, opts journal.ListOpts) ([]*journal.Entry, error) {
	var models []entryModel

	q := s.mdb.NewFind(&models).
		Filter(bson.M{
			"pool_id": poolID.String(),
			"seq":     bson.M{"$gt": int64(opts.AfterSeq)}, //nolint:gosec // sequence numbers stay far below 2^63
		}).
		Sort(bson.D{{Key: "seq", Value: 1}})

	if opts.Limit > 0 {
		q = q.Limit(int64(opts.Limit))
	}

	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("shareledger/mongo: list entries: %w", err)
	}

	result := make([]*journal.Entry, len(models))
	for i := range models {
		e, err := fromEntryModel(&models[i])
		if err != nil {
			return nil, err
		}
		result[i] = e
	}
	return result, nil
}

// ==================== Snapshot Store ====================

func (s *Store) SaveSnapshot(ctx context.Context, snap *snapshot.Snapshot) error {
	m := toSnapshotModel(snap)
	_, err := s.mdb.NewInsert(m).Exec(ctx)
	if err != nil {
		return fmt.Errorf("shareledger/mongo: save snapshot: %w", err)
	}
	return nil
}

func (s *Store) LatestSnapshot(ctx context.Context, poolID id.PoolID) (*snapshot.Snapshot, error) {
	var m snapshotModel
	err := s.mdb.NewFind(&m).
		Filter(bson.M{"pool_id": poolID.String()}).
		Sort(bson.D{{Key: "seq", Value: -1}}).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if isNoDocuments(err) {
			return nil, shareledger.ErrSnapshotNotFound
		}
		return nil, fmt.Errorf("shareledger/mongo: latest snapshot: %w", err)
	}
	return fromSnapshotModel(&m)
}

// ==================== Helpers ====================

// now returns the current UTC time.
func now() time.Time {
	return time.Now().UTC()
}

// isNoDocuments checks if an error wraps mongo.ErrNoDocuments.
func isNoDocuments(err error) bool {
	return errors.Is(err, mongo.ErrNoDocuments)
}

// migrationIndexes returns the index definitions for all shareledger collections.
func migrationIndexes() map[string][]mongo.IndexModel {
	return map[string][]mongo.IndexModel{
		colPools: {
			{
				Keys: bson.D{{Key: "slug", Value: 1}},
				Options: options.Index().
					SetUnique(true).
					SetPartialFilterExpression(bson.M{"slug": bson.M{"$gt": ""}}),
			},
			{Keys: bson.D{{Key: "status", Value: 1}, {Key: "created_at", Value: -1}}},
		},
		colJournal: {
			{
				Keys:    bson.D{{Key: "pool_id", Value: 1}, {Key: "seq", Value: 1}},
				Options: options.Index().SetUnique(true),
			},
			{
				Keys:    bson.D{{Key: "reference", Value: 1}},
				Options: options.Index().SetSparse(true),
			},
		},
		colSnapshots: {
			{Keys: bson.D{{Key: "pool_id", Value: 1}, {Key: "seq", Value: -1}}},
		},
	}
}
