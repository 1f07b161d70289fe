package config

// Diff defaults.
const (
	DefaultDiffDepth             = "infinity"
	DefaultDiffIgnoreAncestry    = false
	DefaultDiffShowCopiesAsAdds  = false
	DefaultDiffLocalBeforeRemote = false
	DefaultDiffReverse           = false
	DefaultDiffContextLines      = 3
	DefaultDiffColor             = false
)

// Merge defaults.
const (
	DefaultMergeHistoryCacheSize = 256
)

// Logging defaults.
const (
	DefaultLoggingLevel  = "info"
	DefaultLoggingFormat = "text"
)

// Observability defaults.
const (
	DefaultObservabilityServiceName = "treemerge"
	DefaultObservabilitySampleRatio = 1.0
	DefaultObservabilityShutdownSec = 5
)
