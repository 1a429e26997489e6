package broadcast

import (
	"os"
	"regexp"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/rhizomatica/hermes-broadcast/frame"
	"github.com/rhizomatica/hermes-broadcast/rqengine"
)

// framesLimitPattern matches a `-<digits>_frames` suffix anywhere in a
// filename: the dash is mandatory, the digits immediately precede
// "_frames".
var framesLimitPattern = regexp.MustCompile(`-([0-9]+)_frames`)

// parseFramesLimit extracts N from a `...-N_frames...` filename, or reports
// ok=false (unbounded budget) if no such suffix is present.
func parseFramesLimit(name string) (n uint64, ok bool) {
	m := framesLimitPattern.FindStringSubmatch(name)
	if m == nil {
		return 0, false
	}
	v, err := strconv.ParseUint(m[1], 10, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// TXSession owns one source file's encoder, per-block ESI counters and the
// round-robin block cursor.
type TXSession struct {
	ID      uuid.UUID
	Path    string
	ModTime time.Time

	mode    int
	encoder *rqengine.Encoder
	oti     frame.OTIPair

	esi    []uint32 // per-block ESI counter, len Z
	cursor int       // C, next block to pump
	budget uint64    // B; 0 means unbounded
	sent   uint64    // S
}

// OpenTXSession reads path, rejects it if too large, builds a fountain
// encoder over it and pre-generates every block's source symbols.
func OpenTXSession(path string, modTime time.Time, mode int) (*TXSession, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, NewPathError(ErrSessionSetup, "stat file", path, err)
	}
	if info.Size() > frame.MaxObjectSize {
		return nil, NewPathError(ErrSessionSetup, "file exceeds maximum object size", path, nil)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, NewPathError(ErrSessionSetup, "read file", path, err)
	}

	symbolSize, err := frame.SymbolSize(mode)
	if err != nil {
		return nil, NewPathError(ErrConfig, "compute symbol size", path, err)
	}

	enc, err := rqengine.NewEncoder(data, int(symbolSize))
	if err != nil {
		return nil, NewPathError(ErrSessionSetup, "construct encoder", path, err)
	}

	budget, _ := parseFramesLimit(path)

	s := &TXSession{
		ID:      uuid.New(),
		Path:    path,
		ModTime: modTime,
		mode:    mode,
		encoder: enc,
		oti:     enc.OTI(),
		esi:     make([]uint32, enc.Blocks()),
		budget:  budget,
	}
	return s, nil
}

// OTI returns the session's object identity.
func (s *TXSession) OTI() frame.OTIPair { return s.oti }

// BudgetReached reports whether the session has sent its full frame budget
// (always false when the budget is unbounded).
func (s *TXSession) BudgetReached() bool {
	return s.budget != 0 && s.sent >= s.budget
}

// FramesSent returns S.
func (s *TXSession) FramesSent() uint64 { return s.sent }

// Pump assembles one RQ_CONFIG frame for the next block in round-robin
// order, advancing the block cursor and that block's ESI counter. It
// returns an error only for a frame-codec failure; callers must check
// BudgetReached before calling Pump.
func (s *TXSession) Pump() ([]byte, frame.Tag, error) {
	z := s.encoder.Blocks()
	sbn := uint8(s.cursor % z)
	s.cursor = (s.cursor + 1) % z

	esi := s.esi[sbn]
	if esi > frame.MaxESI {
		esi = 0
	}

	symbol, err := s.encoder.Encode(sbn, esi)
	if err != nil {
		return nil, frame.Tag{}, NewError(ErrFrame, "encode symbol", err)
	}

	tag := frame.Tag{SBN: sbn, ESI: uint16(esi)}
	wire, err := frame.Encode(s.mode, s.oti, tag, symbol)
	if err != nil {
		return nil, frame.Tag{}, NewError(ErrFrame, "encode frame", err)
	}

	if esi+1 > frame.MaxESI {
		s.esi[sbn] = 0
	} else {
		s.esi[sbn] = esi + 1
	}
	s.sent++

	return wire, tag, nil
}
