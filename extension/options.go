package extension

import (
	"time"

	"github.com/xraph/shareledger"
	"github.com/xraph/shareledger/plugin"
	"github.com/xraph/shareledger/store"
)

// Option configures the shareledger Forge extension.
type Option func(*Extension)

// WithStore sets the store for the engine.
func WithStore(s store.Store) Option {
	return func(e *Extension) {
		e.store = s
	}
}

// WithEngineOption passes a shareledger.Option through to the underlying engine.
func WithEngineOption(opt shareledger.Option) Option {
	return func(e *Extension) {
		e.engineOpts = append(e.engineOpts, opt)
	}
}

// WithPlugin registers an engine plugin.
func WithPlugin(p plugin.Plugin) Option {
	return func(e *Extension) {
		e.engineOpts = append(e.engineOpts, shareledger.WithPlugin(p))
	}
}

// WithConfig sets the Forge extension configuration.
func WithConfig(cfg Config) Option {
	return func(e *Extension) { e.config = cfg }
}

// WithDisableMigrate prevents auto-migration on start.
func WithDisableMigrate() Option {
	return func(e *Extension) { e.config.DisableMigrate = true }
}

// WithRequireConfig requires config to be present in YAML files.
// If true and no config is found, Register returns an error.
func WithRequireConfig(require bool) Option {
	return func(e *Extension) { e.config.RequireConfig = require }
}

// WithSnapshotEvery sets how many entries a pool accumulates before a snapshot.
func WithSnapshotEvery(n int) Option {
	return func(e *Extension) { e.config.SnapshotEvery = n }
}

// WithSnapshotInterval sets how frequently open pools are snapshotted.
func WithSnapshotInterval(d time.Duration) Option {
	return func(e *Extension) { e.config.SnapshotInterval = d }
}

// WithDefaultCap sets the decimal cap applied to pools without their own.
func WithDefaultCap(c string) Option {
	return func(e *Extension) { e.config.DefaultCap = c }
}
