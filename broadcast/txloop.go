package broadcast

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync/atomic"
	"time"

	"github.com/rhizomatica/hermes-broadcast/transport"
)

// TXLoop scans a queue directory, opens/closes TX sessions as files
// arrive, change or vanish, and pumps one frame per iteration up to any
// per-file frame budget.
type TXLoop struct {
	dir       string
	mode      int
	transport *transport.Transport
	cfg       Config
	logger    Logger
	callbacks *Callbacks
	running   *atomic.Bool

	session *TXSession
}

// NewTXLoop constructs a TX loop over dir. running is the shared shutdown
// flag the supervisor flips to stop both loops.
func NewTXLoop(dir string, mode int, t *transport.Transport, cfg Config, logger Logger, callbacks *Callbacks, running *atomic.Bool) *TXLoop {
	if logger == nil {
		logger = NoopLogger{}
	}
	return &TXLoop{
		dir:       dir,
		mode:      mode,
		transport: t,
		cfg:       cfg,
		logger:    logger,
		callbacks: mergeCallbacks(callbacks),
		running:   running,
	}
}

// Run executes the loop until running is cleared or a send fails, at which
// point it clears running itself so the RX loop and supervisor unwind too.
func (l *TXLoop) Run() {
	for l.running.Load() {
		if l.session != nil {
			if !l.maintainSession() {
				continue
			}
		}

		if l.session == nil {
			if !l.openNextFile() {
				time.Sleep(l.cfg.ScanInterval)
				continue
			}
		}

		if l.session.BudgetReached() {
			time.Sleep(l.cfg.ScanInterval)
			continue
		}

		if !l.pumpOne() {
			return
		}
	}
}

// maintainSession stats the active session's file: removal closes it,
// an mtime change closes and reopens it as a new object. Returns false if
// the caller should re-loop immediately (session was just closed).
func (l *TXLoop) maintainSession() bool {
	info, err := os.Stat(l.session.Path)
	if err != nil {
		l.logger.Info("tx: file %s disappeared, closing session", l.session.Path)
		l.session = nil
		return false
	}
	if !info.ModTime().Equal(l.session.ModTime) {
		l.logger.Info("tx: file %s changed, reopening session", l.session.Path)
		l.session = nil
		return false
	}
	return true
}

// openNextFile scans the queue directory and opens the lexicographically
// smallest non-dot regular file, if any.
func (l *TXLoop) openNextFile() bool {
	entries, err := os.ReadDir(l.dir)
	if err != nil {
		l.logger.Error("tx: scan %s: %v", l.dir, err)
		return false
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		if !e.Type().IsRegular() {
			continue
		}
		names = append(names, e.Name())
	}
	if len(names) == 0 {
		return false
	}
	sort.Strings(names)

	path := filepath.Join(l.dir, names[0])
	info, err := os.Stat(path)
	if err != nil {
		l.logger.Error("tx: stat %s: %v", path, err)
		return false
	}

	session, err := OpenTXSession(path, info.ModTime(), l.mode)
	if err != nil {
		l.logger.Error("tx: open %s: %v", path, err)
		l.callbacks.OnError(err)
		time.Sleep(l.cfg.OpenFailureInterval)
		return false
	}

	l.session = session
	l.logger.Info("tx: opened %s session=%s", path, session.ID)
	l.callbacks.OnSessionOpen(SessionStats{ID: session.ID, Path: path, OTI: session.OTI()})
	return true
}

// pumpOne sends one frame from the active session. It returns false on a
// transport failure, signalling the caller to stop the whole daemon.
func (l *TXLoop) pumpOne() bool {
	wire, tag, err := l.session.Pump()
	if err != nil {
		l.logger.Error("tx: pump: %v", err)
		l.callbacks.OnError(err)
		return true // a frame-codec error is not fatal; skip this pump
	}

	if err := l.transport.Send(wire); err != nil {
		l.logger.Error("tx: send: %v", err)
		l.callbacks.OnError(NewError(ErrTransport, "send frame", err))
		l.running.Store(false)
		return false
	}

	l.callbacks.OnFrameSent(l.session.OTI(), tag)
	return true
}
