// Package cleanup provides background worker
package cleanup

import (
	"context"
	"time"

	"github.com/benjarmc/portal-pji-project-sub000/internal/infrastructure/observability/logging"
)

// Target is what the worker cleans: the stored wizard states and the
// per-session synchronizers held in memory.
type Target interface {
	PurgeExpired(ctx context.Context) (int, error)
	EvictIdleSyncers(cutoff time.Time) int
}

// Result summarises one cleanup pass.
type Result struct {
	StatesPurged   int
	SyncersEvicted int
	Duration       time.Duration
}

// Worker handles background state cleanup operations
type Worker struct {
	target   Target
	config   *Config
	logger   *logging.ChanneledLogger
	reporter *Reporter
	now      func() time.Time
}

// NewWorker creates a new cleanup worker with injected configuration
func NewWorker(target Target, config *Config, logger *logging.ChanneledLogger) *Worker {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	if config.CleanupInterval <= 0 {
		config.CleanupInterval = 30 * time.Minute
	}
	if config.SyncerIdleTTL <= 0 {
		config.SyncerIdleTTL = time.Hour
	}
	return &Worker{
		target:   target,
		config:   config,
		logger:   logger,
		reporter: NewReporter(nil),
		now:      time.Now,
	}
}

// Start begins the cleanup worker routine, using the configured interval
func (w *Worker) Start(ctx context.Context) {
	ticker := time.NewTicker(w.config.CleanupInterval)
	defer ticker.Stop()

	w.logger.System().Info("State cleanup worker started",
		"interval", w.config.CleanupInterval, "verbose", w.config.VerboseReporting)

	for {
		select {
		case <-ctx.Done():
			w.logger.Shutdown().Info("State cleanup worker stopping")
			return
		case <-ticker.C:
			if _, err := w.RunOnce(ctx); err != nil {
				w.logger.System().Error("State cleanup failed", "error", err.Error())
			}
		}
	}
}

// RunOnce purges expired states and evicts idle synchronizers.
func (w *Worker) RunOnce(ctx context.Context) (Result, error) {
	start := w.now()
	if w.config.VerboseReporting {
		w.reporter.LogStage("PERIODIC STATE CLEANUP")
	}

	var res Result
	purged, err := w.target.PurgeExpired(ctx)
	if err != nil {
		if w.config.VerboseReporting {
			w.reporter.LogError("State purge failed", err)
		}
		return res, err
	}
	res.StatesPurged = purged
	res.SyncersEvicted = w.target.EvictIdleSyncers(start.Add(-w.config.SyncerIdleTTL))
	res.Duration = w.now().Sub(start)

	if res.StatesPurged > 0 || res.SyncersEvicted > 0 {
		w.logger.System().Info("State cleanup finished",
			"statesPurged", res.StatesPurged, "syncersEvicted", res.SyncersEvicted, "duration", res.Duration)
	}
	if w.config.VerboseReporting {
		w.reporter.LogResult(res)
	}
	return res, nil
}
