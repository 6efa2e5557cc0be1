package configtypes

import "github.com/serplens/engine/pkg/types"

// ConfigProvider provides access to analyzer service configuration.
// Implementations must be safe for concurrent use.
// Returned pointers are read-only - callers must not modify them.
type ConfigProvider interface {
	// GetConfig returns the main service configuration (read-only)
	GetConfig() *AnalyzerConfig

	// GetProfiles returns the resolved display profiles (read-only)
	GetProfiles() *types.ProfileSet
}
