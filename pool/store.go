package pool

import (
	"context"

	"github.com/xraph/shareledger/id"
)

type Store interface {
	CreatePool(ctx context.Context, p *Pool) error
	GetPool(ctx context.Context, poolID id.PoolID) (*Pool, error)
	GetPoolBySlug(ctx context.Context, slug string) (*Pool, error)
	ListPools(ctx context.Context, opts ListOpts) ([]*Pool, error)
	UpdatePool(ctx context.Context, p *Pool) error
	ArchivePool(ctx context.Context, poolID id.PoolID) error
}

type ListOpts struct {
	Status Status
	Limit  int
	Offset int
}
