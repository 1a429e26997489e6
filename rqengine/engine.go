// Package rqengine is a from-scratch fountain code exposing a RaptorQ-style
// engine (encoder/decoder construction, per-block symbol generation and
// encoding, incremental decoding, repair, reduced OTI and tag packing). No
// ecosystem Go RaptorQ library exists in the retrieved corpus (see
// DESIGN.md), so this package supplies a systematic LT-style fountain code
// instead of wrapping RFC 6330:
// source symbols 0..K-1 of each block are returned verbatim (systematic),
// and repair symbols are deterministic XOR combinations of a pseudo-random
// neighbor set, recovered by iterative peeling.
//
// Sub-blocking (N) is fixed at 1: this engine does not interleave symbols
// within a block for erasure-resilience beyond the block-level RaptorQ
// scheme itself, which is sufficient for the broadcast daemon's use (loss
// tolerance is exercised across frames/blocks, not sub-symbol alignment).
package rqengine

import (
	"fmt"

	"github.com/rhizomatica/hermes-broadcast/frame"
)

// MaxSymbolsPerBlock bounds the number of source symbols placed in a single
// source block, matching RFC 6330's K_max so objects with many small
// symbols still split across multiple blocks the way mercury/nanorq would.
const MaxSymbolsPerBlock = 56403

// SymbolStatus reports the outcome of feeding a symbol to a Decoder.
type SymbolStatus int

const (
	SymAdded SymbolStatus = iota
	SymDup
	SymErr
)

func (s SymbolStatus) String() string {
	switch s {
	case SymAdded:
		return "ADDED"
	case SymDup:
		return "DUP"
	default:
		return "ERR"
	}
}

// Encoder holds the source data for one object, partitioned into blocks of
// at most MaxSymbolsPerBlock source symbols each.
type Encoder struct {
	transferLength uint64
	symbolSize     int
	maxESI         uint32
	blocks         []block
}

type block struct {
	k      int      // source symbols in this block
	source [][]byte // k chunks of symbolSize bytes, last zero-padded
}

// NewEncoder partitions data into source blocks of symbolSize-byte symbols.
// data is not retained beyond this call; each block's source chunks are
// copied out immediately (generate_symbols in the nanorq contract).
func NewEncoder(data []byte, symbolSize int) (*Encoder, error) {
	if symbolSize <= 0 {
		return nil, fmt.Errorf("rqengine: symbol size must be positive, got %d", symbolSize)
	}
	f := uint64(len(data))
	totalSymbols := (len(data) + symbolSize - 1) / symbolSize
	if totalSymbols == 0 {
		totalSymbols = 1 // an empty object still occupies one block, one symbol
	}
	z := (totalSymbols + MaxSymbolsPerBlock - 1) / MaxSymbolsPerBlock
	if z == 0 {
		z = 1
	}
	if z > 255 {
		return nil, fmt.Errorf("rqengine: object requires %d source blocks, exceeds the 8-bit SBN space", z)
	}

	e := &Encoder{transferLength: f, symbolSize: symbolSize, maxESI: frame.MaxESI}
	sizes := partitionBlockSizes(totalSymbols, z)
	e.blocks = make([]block, z)

	off := 0
	for i, k := range sizes {
		e.blocks[i] = block{k: k, source: makeSourceChunks(data, off, k, symbolSize)}
		off += k
	}
	return e, nil
}

// partitionBlockSizes splits totalSymbols source symbols as evenly as
// possible across z blocks (the first totalSymbols%z blocks get one extra
// symbol). Encoder and Decoder both call this so they agree on block
// boundaries purely from (F, T, Z), without any OTI field carrying it
// explicitly.
func partitionBlockSizes(totalSymbols, z int) []int {
	sizes := make([]int, z)
	base := totalSymbols / z
	extra := totalSymbols % z
	for i := 0; i < z; i++ {
		sizes[i] = base
		if i < extra {
			sizes[i]++
		}
	}
	return sizes
}

func makeSourceChunks(data []byte, startSymbol, k, symbolSize int) [][]byte {
	chunks := make([][]byte, k)
	for i := 0; i < k; i++ {
		chunk := make([]byte, symbolSize)
		begin := (startSymbol + i) * symbolSize
		end := begin + symbolSize
		if begin < len(data) {
			if end > len(data) {
				end = len(data)
			}
			copy(chunk, data[begin:end])
		}
		chunks[i] = chunk
	}
	return chunks
}

// Blocks returns Z, the number of source blocks.
func (e *Encoder) Blocks() int { return len(e.blocks) }

// BlockSymbols returns K, the number of source symbols in block sbn.
func (e *Encoder) BlockSymbols(sbn int) (int, error) {
	if sbn < 0 || sbn >= len(e.blocks) {
		return 0, fmt.Errorf("rqengine: sbn %d out of range", sbn)
	}
	return e.blocks[sbn].k, nil
}

// SymbolSize returns T.
func (e *Encoder) SymbolSize() int { return e.symbolSize }

// OTICommonReduced packs the 5-byte reduced oti_common body.
func (e *Encoder) OTICommonReduced() [frame.OTICommonReducedSize]byte {
	return frame.EncodeOTICommonReduced(frame.OTICommon{
		TransferLength: e.transferLength,
		SymbolSize:     uint16(e.symbolSize),
	})
}

// OTISchemeSpecificAlign1 packs the 3-byte reduced oti_scheme body (Al=1
// implicit, matching the function name in the nanorq contract).
func (e *Encoder) OTISchemeSpecificAlign1() [frame.OTISchemeReducedSize]byte {
	return frame.EncodeOTISchemeReduced(frame.OTIScheme{
		SourceBlocks: uint8(len(e.blocks)),
		SubBlocks:    1,
	})
}

// OTI returns the full (oti_common, oti_scheme) pair identifying this object.
func (e *Encoder) OTI() frame.OTIPair {
	return frame.OTIPair{
		Common: frame.OTICommon{TransferLength: e.transferLength, SymbolSize: uint16(e.symbolSize)},
		Scheme: frame.OTIScheme{SourceBlocks: uint8(len(e.blocks)), SubBlocks: 1},
	}
}

// Encode produces the symbolSize-byte symbol for (sbn, esi): the raw chunk
// if esi addresses a source symbol, or a deterministic XOR combination of a
// pseudo-random neighbor set if esi ≥ K (a repair symbol).
func (e *Encoder) Encode(sbn uint8, esi uint32) ([]byte, error) {
	if int(sbn) >= len(e.blocks) {
		return nil, fmt.Errorf("rqengine: sbn %d out of range", sbn)
	}
	b := &e.blocks[sbn]
	if int(esi) < b.k {
		out := make([]byte, e.symbolSize)
		copy(out, b.source[esi])
		return out, nil
	}

	neighbors := repairNeighbors(sbn, esi, b.k)
	out := make([]byte, e.symbolSize)
	for _, idx := range neighbors {
		xorInto(out, b.source[idx])
	}
	return out, nil
}

// TagReduced packs the 3-byte on-wire symbol tag.
func TagReduced(sbn uint8, esi uint32) [frame.TagSize]byte {
	return frame.EncodeTag(frame.Tag{SBN: sbn, ESI: uint16(esi)})
}

// Tag packs (sbn, esi) into a single comparable value, used by the decoder
// for deduplication.
func Tag(sbn uint8, esi uint32) uint32 {
	return uint32(sbn)<<24 | (esi & 0xffffff)
}

func xorInto(dst, src []byte) {
	for i := range dst {
		dst[i] ^= src[i]
	}
}
