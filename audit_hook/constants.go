package audithook

// Action constants for audit events.
const (
	// Pool actions
	ActionPoolCreated  = "pool.created"
	ActionPoolArchived = "pool.archived"

	// Share actions
	ActionSharesMinted      = "shares.minted"
	ActionSharesBurned      = "shares.burned"
	ActionSharesTransferred = "shares.transferred"

	// Pooled value actions
	ActionRebased = "pool.rebased"

	// Journal actions
	ActionEntryCommitted = "journal.committed"
	ActionCommitFailed   = "journal.failed"

	// Snapshot actions
	ActionSnapshotSaved = "snapshot.saved"
)

// Resource constants for audit events.
const (
	ResourcePool     = "pool"
	ResourceHolder   = "holder"
	ResourceJournal  = "journal"
	ResourceSnapshot = "snapshot"
)

// Category constants for audit events.
const (
	CategoryPool        = "pool"
	CategoryOwnership   = "ownership"
	CategoryValuation   = "valuation"
	CategoryPersistence = "persistence"
)

// Severity levels for audit events.
const (
	SeverityInfo     = "info"
	SeverityWarning  = "warning"
	SeverityError    = "error"
	SeverityCritical = "critical"
)

// Outcome values for audit events.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)
