// Package constants collects the defaults shared by the config layer and
// the command flags.
package constants

// Pair filter defaults
const (
	// DefaultPairThreshold is the |r| a pair must exceed to be reported.
	DefaultPairThreshold = 0.5

	// DefaultPairScope restricts pairs to those with both genes listed.
	DefaultPairScope = "both"

	// DefaultDisplayPairs is how many pairs the text output prints when no
	// limit is given. JSON and TSV output are never truncated by it.
	DefaultDisplayPairs = 50
)

// Merge defaults
const (
	DefaultZMethod     = "beta"
	DefaultMergeMethod = "stouffer"
)

// Storage defaults
const (
	DefaultCacheDriver   = "fs"
	DefaultResultsDriver = "sqlite"

	// DefaultCacheKeep is the entry count kept by `cache prune` when no
	// policy flag is given.
	DefaultCacheKeep = 10

	// DefaultRunsLimit is how many runs `runs list` shows.
	DefaultRunsLimit = 20
)

// DefaultSampleSeed seeds column sampling so repeated runs pick the same
// genes and hit the same cache entry.
const DefaultSampleSeed uint64 = 1
