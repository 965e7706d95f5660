// Package extension provides the Forge extension adapter for shareledger.
//
// It implements the forge.Extension interface to integrate the share
// ledger engine into a Forge application with DI registration and
// lifecycle management.
//
// Configuration can be provided programmatically via Option functions
// or via YAML configuration files under "extensions.shareledger" or
// "shareledger" keys.
package extension

import (
	"context"
	"errors"
	"fmt"

	"github.com/xraph/forge"
	"github.com/xraph/vessel"

	"github.com/xraph/shareledger"
	"github.com/xraph/shareledger/store"
	"github.com/xraph/shareledger/store/memory"
	"github.com/xraph/shareledger/types"
)

// ExtensionName is the name registered with Forge.
const ExtensionName = "shareledger"

// ExtensionDescription is the human-readable description.
const ExtensionDescription = "Rebasing share ledger with journaled pools"

// ExtensionVersion is the semantic version.
const ExtensionVersion = "0.1.0"

// Ensure Extension implements forge.Extension at compile time.
var _ forge.Extension = (*Extension)(nil)

// Extension adapts the shareledger Engine as a Forge extension.
type Extension struct {
	*forge.BaseExtension

	config     Config
	engine     *shareledger.Engine
	store      store.Store
	engineOpts []shareledger.Option
}

// New creates a new shareledger Forge extension with the given options.
func New(opts ...Option) *Extension {
	e := &Extension{
		BaseExtension: forge.NewBaseExtension(ExtensionName, ExtensionVersion, ExtensionDescription),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Engine returns the underlying Engine.
// This is nil until Register is called.
func (e *Extension) Engine() *shareledger.Engine { return e.engine }

// Register implements [forge.Extension]. It loads configuration,
// initializes the engine, and registers it in the DI container.
func (e *Extension) Register(fapp forge.App) error {
	if err := e.BaseExtension.Register(fapp); err != nil {
		return err
	}

	if err := e.loadConfiguration(); err != nil {
		return err
	}

	// Use memory store if no store was provided programmatically.
	if e.store == nil {
		e.store = memory.New()
	}

	opts, err := e.buildEngineOpts()
	if err != nil {
		return err
	}

	e.engine = shareledger.New(e.store, opts...)

	return vessel.Provide(fapp.Container(), func() (*shareledger.Engine, error) {
		return e.engine, nil
	})
}

// Start implements [forge.Extension].
func (e *Extension) Start(ctx context.Context) error {
	if e.engine == nil {
		return errors.New("shareledger: extension not initialized")
	}

	if err := e.engine.Start(ctx); err != nil {
		return err
	}

	e.MarkStarted()
	return nil
}

// Stop implements [forge.Extension].
func (e *Extension) Stop(_ context.Context) error {
	if e.engine != nil {
		if err := e.engine.Stop(); err != nil {
			e.MarkStopped()
			return err
		}
	}
	e.MarkStopped()
	return nil
}

// Health implements [forge.Extension].
func (e *Extension) Health(ctx context.Context) error {
	if e.store == nil {
		return errors.New("shareledger: store not initialized")
	}
	return e.store.Ping(ctx)
}

// buildEngineOpts constructs shareledger.Option values from the resolved config.
func (e *Extension) buildEngineOpts() ([]shareledger.Option, error) {
	opts := make([]shareledger.Option, 0, len(e.engineOpts)+4)

	opts = append(opts, shareledger.WithSnapshotConfig(e.config.SnapshotEvery, e.config.SnapshotInterval))

	if e.config.DefaultCap != "" {
		c, err := types.ParseAmount(e.config.DefaultCap)
		if err != nil {
			return nil, fmt.Errorf("shareledger: default_cap: %w", err)
		}
		opts = append(opts, shareledger.WithDefaultCap(c))
	}

	if e.config.DisableMigrate {
		opts = append(opts, shareledger.WithoutMigrate())
	}

	// Append any pass-through engine options.
	opts = append(opts, e.engineOpts...)

	return opts, nil
}

// --- Config Loading (mirrors grove/shield extension pattern) ---

// loadConfiguration loads config from YAML files or programmatic sources.
func (e *Extension) loadConfiguration() error {
	programmaticConfig := e.config

	// Try loading from config file.
	fileConfig, configLoaded := e.tryLoadFromConfigFile()

	if !configLoaded {
		if programmaticConfig.RequireConfig {
			return errors.New("shareledger: configuration is required but not found in config files; " +
				"ensure 'extensions.shareledger' or 'shareledger' key exists in your config")
		}

		// Use programmatic config merged with defaults.
		e.config = mergeWithDefaults(programmaticConfig)
	} else {
		// Config loaded from YAML -- merge with programmatic options.
		e.config = mergeConfigurations(fileConfig, programmaticConfig)
	}

	e.Logger().Debug("shareledger: configuration loaded",
		forge.F("disable_migrate", e.config.DisableMigrate),
		forge.F("snapshot_every", e.config.SnapshotEvery),
		forge.F("snapshot_interval", e.config.SnapshotInterval),
		forge.F("default_cap", e.config.DefaultCap),
	)

	return nil
}

// tryLoadFromConfigFile attempts to load config from YAML files.
func (e *Extension) tryLoadFromConfigFile() (Config, bool) {
	cm := e.App().Config()
	var cfg Config

	for _, key := range []string{"extensions.shareledger", "shareledger"} {
		if !cm.IsSet(key) {
			continue
		}
		if err := cm.Bind(key, &cfg); err == nil {
			e.Logger().Debug("shareledger: loaded config from file",
				forge.F("key", key),
			)
			return cfg, true
		}
		e.Logger().Warn("shareledger: failed to bind config",
			forge.F("key", key),
			forge.F("error", "bind failed"),
		)
	}

	return Config{}, false
}

// mergeWithDefaults fills zero-valued fields with defaults.
func mergeWithDefaults(cfg Config) Config {
	defaults := DefaultConfig()
	if cfg.SnapshotEvery == 0 {
		cfg.SnapshotEvery = defaults.SnapshotEvery
	}
	if cfg.SnapshotInterval == 0 {
		cfg.SnapshotInterval = defaults.SnapshotInterval
	}
	return cfg
}

// mergeConfigurations merges YAML config with programmatic options.
// YAML config takes precedence for most fields; programmatic values fill gaps.
func mergeConfigurations(yamlConfig, programmaticConfig Config) Config {
	if programmaticConfig.DisableMigrate {
		yamlConfig.DisableMigrate = true
	}

	if yamlConfig.DefaultCap == "" && programmaticConfig.DefaultCap != "" {
		yamlConfig.DefaultCap = programmaticConfig.DefaultCap
	}

	if yamlConfig.SnapshotEvery == 0 && programmaticConfig.SnapshotEvery != 0 {
		yamlConfig.SnapshotEvery = programmaticConfig.SnapshotEvery
	}
	if yamlConfig.SnapshotInterval == 0 && programmaticConfig.SnapshotInterval != 0 {
		yamlConfig.SnapshotInterval = programmaticConfig.SnapshotInterval
	}

	return mergeWithDefaults(yamlConfig)
}
