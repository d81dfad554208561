package types

import "time"

// StoreConfig holds settings for the screening ledger store.
type StoreConfig struct {
	// ReviewDir is the base directory for review data (contains index/, exports/).
	ReviewDir string `json:"review_dir" yaml:"review_dir"`

	// BusyTimeout bounds how long a writer waits on a locked database
	// before giving up (default 5s).
	BusyTimeout time.Duration `json:"busy_timeout" yaml:"busy_timeout"`
}

// ReconcileConfig holds the consensus policy thresholds.
// Per prd003-reconciliation R5.1-R5.2. The defaults are a product-level
// calibration choice, not derived from the data model; both knobs are
// exposed in config and as CLI flags.
type ReconcileConfig struct {
	// MinDecisions is K, the number of independent decisions required
	// before a document's verdict is considered final (default 2).
	MinDecisions int `json:"min_decisions" yaml:"min_decisions"`

	// ConfidenceThreshold is τ, the confidence at or above which a single
	// decision is treated as high-confidence (default 0.9).
	ConfidenceThreshold float64 `json:"confidence_threshold" yaml:"confidence_threshold"`
}

// WithDefaults returns the config with zero-valued knobs replaced by the
// documented defaults.
func (c ReconcileConfig) WithDefaults() ReconcileConfig {
	if c.MinDecisions <= 0 {
		c.MinDecisions = 2
	}
	if c.ConfidenceThreshold <= 0 {
		c.ConfidenceThreshold = 0.9
	}
	return c
}

// EngineConfig groups all configuration for the screening engine.
type EngineConfig struct {
	Store     StoreConfig     `json:"store" yaml:"store"`
	Reconcile ReconcileConfig `json:"reconcile" yaml:"reconcile"`

	// Retrieval configures the external evidence-lookup contract; the
	// core only passes these values through to the retrieval service.
	Retrieval SearchConfig `json:"retrieval" yaml:"retrieval"`
}
