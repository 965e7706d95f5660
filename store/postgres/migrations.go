package postgres

import (
	"context"

	"github.com/xraph/grove/migrate"
)

// Migrations is the grove migration group for the shareledger store.
var Migrations = migrate.NewGroup("shareledger")

func init() {
	Migrations.MustRegister(
		&migrate.Migration{
			Name:    "create_shareledger_pools",
			Version: "20250301000001",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS shareledger_pools (
    id          TEXT PRIMARY KEY,
    name        TEXT NOT NULL DEFAULT '',
    slug        TEXT NOT NULL DEFAULT '',
    description TEXT NOT NULL DEFAULT '',
    unit        TEXT NOT NULL DEFAULT '',
    status      TEXT NOT NULL DEFAULT 'active',
    cap         TEXT,
    metadata    JSONB NOT NULL DEFAULT '{}',
    created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_shareledger_pools_slug ON shareledger_pools (slug) WHERE slug != '';
CREATE INDEX IF NOT EXISTS idx_shareledger_pools_status ON shareledger_pools (status, created_at);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS shareledger_pools`)
				return err
			},
		},
		&migrate.Migration{
			Name:    "create_shareledger_journal",
			Version: "20250301000002",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS shareledger_journal (
    id        TEXT PRIMARY KEY,
    pool_id   TEXT NOT NULL REFERENCES shareledger_pools (id),
    seq       BIGINT NOT NULL,
    ops       JSONB NOT NULL DEFAULT '[]',
    reference TEXT NOT NULL DEFAULT '',
    metadata  JSONB NOT NULL DEFAULT '{}',
    timestamp TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_shareledger_journal_pool_seq ON shareledger_journal (pool_id, seq);
CREATE INDEX IF NOT EXISTS idx_shareledger_journal_reference ON shareledger_journal (reference) WHERE reference != '';
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS shareledger_journal`)
				return err
			},
		},
		&migrate.Migration{
			Name:    "create_shareledger_snapshots",
			Version: "20250301000003",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS shareledger_snapshots (
    id           TEXT PRIMARY KEY,
    pool_id      TEXT NOT NULL REFERENCES shareledger_pools (id),
    seq          BIGINT NOT NULL,
    total_shares TEXT NOT NULL DEFAULT '0',
    pooled_value TEXT NOT NULL DEFAULT '0',
    shares       JSONB NOT NULL DEFAULT '{}',
    created_at   TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_shareledger_snapshots_pool_seq ON shareledger_snapshots (pool_id, seq DESC);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS shareledger_snapshots`)
				return err
			},
		},
	)
}
