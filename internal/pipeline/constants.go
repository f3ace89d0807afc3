package pipeline

// Default values stamped on persisted transactions.
// These can be overridden via configuration.
const (
	// DefaultCurrency is applied to every transaction; currency is not detected.
	DefaultCurrency = "INR"

	// DefaultCategory is the category assigned before any categorization.
	DefaultCategory = "Uncategorized"
)

// Strategy names recorded on runs, jobs and rows.
const (
	StrategyAI        = "ai"
	StrategyHeuristic = "heuristic"
)
