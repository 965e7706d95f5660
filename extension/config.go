package extension

import "time"

// Config holds the shareledger extension configuration.
// Fields can be set programmatically via Option functions or loaded from
// YAML configuration files (under "extensions.shareledger" or "shareledger" keys).
type Config struct {
	// DisableMigrate prevents auto-migration on start.
	DisableMigrate bool `json:"disable_migrate" mapstructure:"disable_migrate" yaml:"disable_migrate"`

	// SnapshotEvery is the number of journal entries a pool may accumulate
	// before a snapshot is requested (default: 1000).
	SnapshotEvery int `json:"snapshot_every" mapstructure:"snapshot_every" yaml:"snapshot_every"`

	// SnapshotInterval is how frequently every open pool is snapshotted
	// even if SnapshotEvery has not been reached (default: 1m).
	SnapshotInterval time.Duration `json:"snapshot_interval" mapstructure:"snapshot_interval" yaml:"snapshot_interval"`

	// DefaultCap is the decimal upper bound for shares and pooled value of
	// pools that do not set their own. Empty means 2^256-1.
	DefaultCap string `json:"default_cap" mapstructure:"default_cap" yaml:"default_cap"`

	// RequireConfig requires config to be present in YAML files.
	// If true and no config is found, Register returns an error.
	RequireConfig bool `json:"-" yaml:"-"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		SnapshotEvery:    1000,
		SnapshotInterval: time.Minute,
	}
}
