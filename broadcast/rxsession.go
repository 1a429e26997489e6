package broadcast

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/rhizomatica/hermes-broadcast/frame"
	"github.com/rhizomatica/hermes-broadcast/rqengine"
)

// RXSession owns one decoder keyed by an OTI pair and the output file
// decoded blocks are written to as they complete. Blocks are flushed as
// soon as they decode; no atomic rename is performed at completion.
type RXSession struct {
	ID      uuid.UUID
	OutPath string
	OTI     frame.OTIPair

	decoder *rqengine.Decoder
	out     *os.File
	written []bool   // blocks already flushed to out
	seen    []uint64 // V[sbn]: SYM_ADDED count per block
}

// StartRXSession builds the output path, opens it for writing, and
// allocates a decoder for oti. The returned session is ready to Absorb
// frames.
func StartRXSession(outDir string, oti frame.OTIPair, now time.Time) (*RXSession, error) {
	outPath, err := buildOutputPath(outDir, now)
	if err != nil {
		return nil, NewError(ErrSessionSetup, "build output path", err)
	}

	dec, err := rqengine.NewDecoder(oti)
	if err != nil {
		return nil, NewError(ErrSessionSetup, "construct decoder", err)
	}

	out, err := os.OpenFile(outPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return nil, NewPathError(ErrSessionSetup, "open output file", outPath, err)
	}

	return &RXSession{
		ID:      uuid.New(),
		OutPath: outPath,
		OTI:     oti,
		decoder: dec,
		out:     out,
		written: make([]bool, dec.Blocks()),
		seen:    make([]uint64, dec.Blocks()),
	}, nil
}

// Absorb feeds one payload frame's symbol to the decoder, tracking V[sbn],
// flushing any block that newly completes to disk, and reporting whether
// the whole object is now fully decoded. Duplicate and erroring symbols
// leave V and D untouched.
func (s *RXSession) Absorb(tag frame.Tag, symbol []byte) (status rqengine.SymbolStatus, complete bool, err error) {
	status, err = s.decoder.AddSymbol(tag.SBN, uint32(tag.ESI), symbol)
	if err != nil {
		return status, false, NewError(ErrFrame, "add symbol", err)
	}
	if status == rqengine.SymAdded {
		s.seen[tag.SBN]++
		if err := s.flushNewlyDecodedBlocks(); err != nil {
			return status, false, err
		}
	}
	return status, s.decoder.Decoded(), nil
}

// flushNewlyDecodedBlocks writes any block that has just become fully
// decoded to its correct byte offset in the output file. A block is only
// worth a repair attempt once V[sbn] (seen) reaches its source symbol
// count; RepairBlock reports whether that attempt actually completed it.
func (s *RXSession) flushNewlyDecodedBlocks() error {
	for sbn := 0; sbn < s.decoder.Blocks(); sbn++ {
		if s.written[sbn] {
			continue
		}
		k, err := s.decoder.BlockSymbols(sbn)
		if err != nil {
			return NewPathError(ErrSessionSetup, "read block symbol count", s.OutPath, err)
		}
		if s.seen[sbn] < uint64(k) {
			continue
		}
		decoded, err := s.decoder.RepairBlock(sbn)
		if err != nil {
			return NewPathError(ErrSessionSetup, "repair block", s.OutPath, err)
		}
		if !decoded {
			continue
		}
		data, err := s.decoder.BlockBytes(sbn)
		if err != nil {
			return NewPathError(ErrSessionSetup, "read decoded block", s.OutPath, err)
		}
		off, err := s.decoder.BlockByteOffset(sbn)
		if err != nil {
			return NewPathError(ErrSessionSetup, "compute block offset", s.OutPath, err)
		}
		if _, err := s.out.WriteAt(data, int64(off)); err != nil {
			return NewPathError(ErrSessionSetup, "write decoded block", s.OutPath, err)
		}
		s.written[sbn] = true
	}
	return nil
}

// BlocksDecoded and TotalBlocks expose decode progress for ProgressTracker.
func (s *RXSession) BlocksDecoded() int {
	n := 0
	for i := 0; i < s.decoder.Blocks(); i++ {
		if s.decoder.BlockDecoded(i) {
			n++
		}
	}
	return n
}

func (s *RXSession) TotalBlocks() int { return s.decoder.Blocks() }

// Close closes the output file handle. Safe to call once decoding
// completes or when the session is discarded on reset.
func (s *RXSession) Close() error {
	return s.out.Close()
}

// buildOutputPath names the next free broadcast_YYYYMMDD_HHMMSS[_NNN].bin
// path under outDir.
func buildOutputPath(outDir string, now time.Time) (string, error) {
	base := fmt.Sprintf("broadcast_%s.bin", now.Format("20060102_150405"))
	candidate := filepath.Join(outDir, base)
	if _, err := os.Stat(candidate); os.IsNotExist(err) {
		return candidate, nil
	}

	ext := filepath.Ext(base)
	stem := base[:len(base)-len(ext)]
	for n := 1; n <= 999; n++ {
		candidate = filepath.Join(outDir, fmt.Sprintf("%s_%03d%s", stem, n, ext))
		if _, err := os.Stat(candidate); os.IsNotExist(err) {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("broadcast: no free output name for %s under %s", base, outDir)
}

// CompletedMemo is the sticky record of the last fully decoded object; it
// survives RX session resets so a late duplicate frame for the same
// object doesn't reopen a finished transfer.
type CompletedMemo struct {
	OTI       frame.OTIPair
	Completed bool
}

// Matches reports whether oti equals the memoised completed object.
func (m CompletedMemo) Matches(oti frame.OTIPair) bool {
	return m.Completed && m.OTI.Equal(oti)
}
