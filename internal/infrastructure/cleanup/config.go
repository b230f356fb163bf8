package cleanup

import (
	"time"

	"github.com/benjarmc/portal-pji-project-sub000/pkg/config"
)

// Config holds cleanup worker configuration, sourced from the central config package.
type Config struct {
	CleanupInterval  time.Duration
	VerboseReporting bool
	// SyncerIdleTTL is how long an unused per-session synchronizer is kept.
	SyncerIdleTTL time.Duration
}

// NewConfig creates a new cleanup configuration by reading values
// from the already-initialized variables in the centralized /pkg/config package.
func NewConfig() *Config {
	return &Config{
		CleanupInterval:  config.CleanupInterval,
		VerboseReporting: config.CleanupVerbose,
		SyncerIdleTTL:    config.SyncerIdleTTL,
	}
}
