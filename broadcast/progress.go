package broadcast

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/rhizomatica/hermes-broadcast/frame"
)

// ProgressTracker reports an RX session's block-decode progress at most
// once per update interval, regardless of how often Update is called,
// tracking decoded-block counts rather than byte counts since that is the
// unit that actually advances in a fountain-coded receive.
type ProgressTracker struct {
	mu             sync.Mutex
	id             uuid.UUID
	path           string
	oti            frame.OTIPair
	totalBlocks    int
	decodedBlocks  int
	startTime      time.Time
	lastUpdate     time.Time
	updateInterval time.Duration
	callback       func(SessionStats)
}

// NewProgressTracker starts tracking id/path/oti's totalBlocks, invoking
// callback at most once per updateInterval.
func NewProgressTracker(id uuid.UUID, path string, oti frame.OTIPair, totalBlocks int, updateInterval time.Duration, callback func(SessionStats)) *ProgressTracker {
	if callback == nil {
		callback = func(SessionStats) {}
	}
	now := timeNow()
	return &ProgressTracker{
		id:             id,
		path:           path,
		oti:            oti,
		totalBlocks:    totalBlocks,
		startTime:      now,
		lastUpdate:     now,
		updateInterval: updateInterval,
		callback:       callback,
	}
}

// Update records that blocksDecoded blocks are now done and invokes the
// callback if updateInterval has elapsed since the last invocation.
func (p *ProgressTracker) Update(blocksDecoded int) {
	p.mu.Lock()
	p.decodedBlocks = blocksDecoded
	now := timeNow()
	due := now.Sub(p.lastUpdate) >= p.updateInterval
	if due {
		p.lastUpdate = now
	}
	stats := p.statsLocked()
	p.mu.Unlock()

	if due {
		p.callback(stats)
	}
}

// Complete forces a final callback invocation regardless of timing.
func (p *ProgressTracker) Complete() {
	p.mu.Lock()
	p.decodedBlocks = p.totalBlocks
	stats := p.statsLocked()
	p.mu.Unlock()
	p.callback(stats)
}

// Stats returns the tracker's current snapshot.
func (p *ProgressTracker) Stats() SessionStats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.statsLocked()
}

func (p *ProgressTracker) statsLocked() SessionStats {
	return SessionStats{
		ID:            p.id,
		Path:          p.path,
		OTI:           p.oti,
		BlocksDecoded: p.decodedBlocks,
		TotalBlocks:   p.totalBlocks,
	}
}

// timeNow exists so tests could substitute a fake clock; production code
// always uses the real one.
var timeNow = time.Now
