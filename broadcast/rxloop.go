package broadcast

import (
	"errors"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	frm "github.com/rhizomatica/hermes-broadcast/frame"
	"github.com/rhizomatica/hermes-broadcast/rqengine"
	"github.com/rhizomatica/hermes-broadcast/transport"
)

// RXLoop receives inbound frames, dispatches them by packet type and OTI
// identity, and drives RX sessions to completion.
type RXLoop struct {
	outDir    string
	mode      int
	transport *transport.Transport
	cfg       Config
	logger    Logger
	callbacks *Callbacks
	running   *atomic.Bool

	session   *RXSession
	progress  *ProgressTracker
	memo      CompletedMemo
	crcErrors uint64
}

// NewRXLoop constructs an RX loop writing decoded objects to outDir.
func NewRXLoop(outDir string, mode int, t *transport.Transport, cfg Config, logger Logger, callbacks *Callbacks, running *atomic.Bool) *RXLoop {
	if logger == nil {
		logger = NoopLogger{}
	}
	return &RXLoop{
		outDir:    outDir,
		mode:      mode,
		transport: t,
		cfg:       cfg,
		logger:    logger,
		callbacks: mergeCallbacks(callbacks),
		running:   running,
	}
}

// Run executes the loop until recv fails (peer closed, socket shut down by
// the supervisor), at which point it clears the shared running flag.
func (l *RXLoop) Run() {
	for l.running.Load() {
		raw, err := l.transport.RecvFrame()
		if err != nil {
			if !errors.Is(err, transport.ErrClosed) {
				l.logger.Error("rx: recv: %v", err)
			}
			l.running.Store(false)
			return
		}
		l.handleFrame(raw)
	}
}

// CRCErrors returns the running CRC-mismatch counter.
func (l *RXLoop) CRCErrors() uint64 { return l.crcErrors }

func (l *RXLoop) handleFrame(raw []byte) {
	w, err := frm.FrameSize(l.mode)
	if err != nil {
		l.logger.Error("rx: %v", err)
		return
	}
	if uint32(len(raw)) != w {
		l.logger.Debug("rx: dropping frame of length %d, want %d", len(raw), w)
		l.callbacks.OnFrameDropped(DropLengthMismatch)
		return
	}

	f, ok, err := frm.Decode(l.mode, raw)
	if err != nil {
		l.logger.Error("rx: decode: %v", err)
		return
	}
	if !ok {
		l.crcErrors++
		l.logger.Debug("rx: CRC mismatch, total %d", l.crcErrors)
		l.callbacks.OnFrameDropped(DropCRCMismatch)
		return
	}

	switch f.PacketType {
	case frm.PacketRQPayload:
		l.logger.Debug("rx: side-information frame dropped: %s", FormatFrameLog("rx", l.currentSessionID(), f.OTI, f.Tag, true))
		l.callbacks.OnFrameDropped(DropSideInformation)
		return
	case frm.PacketRQConfig:
		// handled below
	default:
		l.callbacks.OnFrameDropped(DropUnknownPacket)
		return
	}

	if !l.dispatchSession(f.OTI) {
		return
	}

	l.absorb(f)
}

// dispatchSession decides which session a frame belongs to: a new OTI
// opens a fresh session; an OTI equal to the last-completed memo is
// dropped, whether or not a session is active, so a finished object is
// never reopened; an unrelated active session is reset before the new one
// starts.
func (l *RXLoop) dispatchSession(oti frm.OTIPair) bool {
	if l.session != nil && l.session.OTI.Equal(oti) {
		return true
	}

	if l.memo.Matches(oti) {
		l.callbacks.OnFrameDropped(DropCompletedMemo)
		return false
	}

	if l.session != nil {
		l.logger.Info("rx: OTI changed mid-session, resetting")
		_ = l.session.Close()
		l.session = nil
		l.progress = nil
	}

	session, err := StartRXSession(l.outDir, oti, time.Now())
	if err != nil {
		l.logger.Error("rx: start session: %v", err)
		l.callbacks.OnError(err)
		return false
	}
	l.session = session
	l.progress = NewProgressTracker(session.ID, session.OutPath, oti, session.TotalBlocks(), l.cfg.ProgressInterval, l.callbacks.OnProgress)
	l.logger.Info("rx: opened %s session=%s", session.OutPath, session.ID)
	l.callbacks.OnSessionOpen(SessionStats{ID: session.ID, Path: session.OutPath, OTI: oti, TotalBlocks: session.TotalBlocks()})
	return true
}

// currentSessionID returns the active session's id, or the zero UUID if
// no session is open, for correlating frame-level log lines that fire
// outside a session's own lifecycle (e.g. dropped side-information frames).
func (l *RXLoop) currentSessionID() uuid.UUID {
	if l.session == nil {
		return uuid.UUID{}
	}
	return l.session.ID
}

func (l *RXLoop) absorb(f frm.Frame) {
	status, complete, err := l.session.Absorb(f.Tag, f.Symbol)
	if err != nil {
		l.logger.Error("rx: absorb: %v", err)
		l.callbacks.OnError(err)
		return
	}
	if status != rqengine.SymAdded {
		return
	}

	if l.progress != nil {
		l.progress.Update(l.session.BlocksDecoded())
	}

	if !complete {
		return
	}

	l.logger.Info("rx: completed %s session=%s", l.session.OutPath, l.session.ID)
	stats := SessionStats{
		ID:            l.session.ID,
		Path:          l.session.OutPath,
		OTI:           l.session.OTI,
		BlocksDecoded: l.session.BlocksDecoded(),
		TotalBlocks:   l.session.TotalBlocks(),
	}
	if l.progress != nil {
		l.progress.Complete()
		l.progress = nil
	}
	_ = l.session.Close()
	l.memo = CompletedMemo{OTI: l.session.OTI, Completed: true}
	l.session = nil
	l.callbacks.OnSessionComplete(stats)
}
