package performance

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestTrackerAggregatesCompletedMarkers(t *testing.T) {
	tracker := NewTracker(&TrackerConfig{MaxRecent: 2, SlowThreshold: time.Hour})

	ok := tracker.StartOperation("wizard:next", "system")
	ok.Complete()
	ok.Complete()

	failed := tracker.StartOperation("wizard:next", "system")
	failed.SetError(errors.New("backend unavailable"))
	failed.Complete()

	tracker.StartOperation("plans:list", "system").Complete()

	stats := tracker.Stats()
	require.Equal(t, 2, stats["wizard:next"].Count)
	require.Equal(t, 1, stats["wizard:next"].Failures)
	require.Equal(t, 1, stats["plans:list"].Count)
	require.Len(t, tracker.Recent(time.Minute), 2)
}

func TestMarkerWithoutTrackerStillCompletes(t *testing.T) {
	m := &Marker{Operation: "detached", StartTime: time.Now()}
	m.AddMetadata("step", 2)
	m.Complete()
	require.True(t, m.Completed)
	require.Equal(t, 2, m.Metadata["step"])
}
