package engine

// DefaultMaxParallelism bounds concurrent sub-units of one parallel execution.
const DefaultMaxParallelism = 8

// DefaultRecentUsage is how many usage records a ToolContext carries.
const DefaultRecentUsage = 20
