package broadcast

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/rhizomatica/hermes-broadcast/frame"
)

func TestProgressTrackerRateLimits(t *testing.T) {
	calls := 0
	tr := NewProgressTracker(uuid.New(), "obj.bin", frame.OTIPair{}, 10, time.Hour, func(SessionStats) { calls++ })

	tr.Update(1) // lastUpdate starts at construction time, so this is not yet due
	tr.Update(2)
	tr.Update(3)

	// With a 1-hour interval none of these immediate calls is due; the
	// check allows at most one invocation.
	require.LessOrEqual(t, calls, 1)
}

func TestProgressTrackerCompleteAlwaysFires(t *testing.T) {
	calls := 0
	id := uuid.New()
	tr := NewProgressTracker(id, "obj.bin", frame.OTIPair{}, 4, time.Hour, func(s SessionStats) { calls++ })
	tr.Update(1)
	tr.Complete()
	require.GreaterOrEqual(t, calls, 1)

	stats := tr.Stats()
	require.Equal(t, id, stats.ID)
	require.Equal(t, 4, stats.TotalBlocks)
	require.Equal(t, 4, stats.BlocksDecoded)
}
