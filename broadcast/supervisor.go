package broadcast

import (
	"sync"
	"sync/atomic"

	"github.com/rhizomatica/hermes-broadcast/frame"
	"github.com/rhizomatica/hermes-broadcast/transport"
)

// Supervisor owns the transport and the TX/RX loops, and brings both down
// together on Stop.
type Supervisor struct {
	cfg       Config
	logger    Logger
	callbacks *Callbacks
	transport *transport.Transport
	running   atomic.Bool

	tx *TXLoop
	rx *RXLoop
	wg sync.WaitGroup
}

// NewSupervisor connects to the modem at cfg.IP:cfg.Port and wires up TX and
// RX loops over cfg.TXDir/cfg.RXDir. The caller must call Run to start the
// loops and Stop to shut them down.
func NewSupervisor(cfg Config, logger Logger, callbacks *Callbacks) (*Supervisor, error) {
	if cfg.Mode < 0 || cfg.Mode >= frame.ModeCount {
		return nil, NewError(ErrConfig, "mode out of range", nil)
	}
	if _, err := frame.SymbolSize(cfg.Mode); err != nil {
		return nil, NewError(ErrConfig, "frame size too small for mode", err)
	}
	if logger == nil {
		logger = NoopLogger{}
	}

	t, err := transport.Dial(cfg.IP, cfg.Port)
	if err != nil {
		return nil, NewError(ErrConfig, "connect to modem", err)
	}

	s := &Supervisor{cfg: cfg, logger: logger, callbacks: mergeCallbacks(callbacks), transport: t}
	s.running.Store(true)
	s.tx = NewTXLoop(cfg.TXDir, cfg.Mode, t, cfg, logger, s.callbacks, &s.running)
	s.rx = NewRXLoop(cfg.RXDir, cfg.Mode, t, cfg, logger, s.callbacks, &s.running)
	return s, nil
}

// Run starts the TX and RX loops as peers and blocks until both return
// (either loop failing stops the other via the shared running flag).
func (s *Supervisor) Run() {
	s.wg.Add(2)
	go func() {
		defer s.wg.Done()
		s.tx.Run()
	}()
	go func() {
		defer s.wg.Done()
		s.rx.Run()
	}()
	s.wg.Wait()
}

// Stop clears the shared running flag and closes the transport, which
// unblocks the RX loop's pending recv and fails any in-flight send. It
// then waits for both loops to return.
func (s *Supervisor) Stop() {
	s.running.Store(false)
	_ = s.transport.Close()
	s.wg.Wait()
}
