package rqengine

import (
	"fmt"

	"github.com/rhizomatica/hermes-broadcast/frame"
)

// Decoder accumulates symbols for one object identified by an OTI pair and
// recovers its source blocks by iterative peeling as soon as each block's
// equations become solvable.
type Decoder struct {
	oti        frame.OTIPair
	symbolSize int
	blocks     []decodeBlock
}

type decodeBlock struct {
	k             int
	resolved      [][]byte // nil until known, length k
	resolvedCount int
	seenTags      map[uint32]bool
	refs          map[int][]*equation // source index -> equations still waiting on it
}

// equation represents one received repair symbol not yet fully resolved:
// value is the repair payload with every already-known neighbor XORed out,
// remaining holds the source indices still unknown.
type equation struct {
	remaining map[int]bool
	value     []byte
}

// NewDecoder constructs a Decoder for the object identified by oti. F and T
// come from oti.Common, Z from oti.Scheme; block sizes are derived with the
// same partitionBlockSizes an Encoder for the same (F, T, Z) would use.
func NewDecoder(oti frame.OTIPair) (*Decoder, error) {
	symbolSize := int(oti.Common.SymbolSize)
	if symbolSize <= 0 {
		return nil, fmt.Errorf("rqengine: symbol size must be positive, got %d", symbolSize)
	}
	z := int(oti.Scheme.SourceBlocks)
	if z <= 0 {
		return nil, fmt.Errorf("rqengine: source block count must be positive, got %d", z)
	}

	totalSymbols := int((oti.Common.TransferLength + uint64(symbolSize) - 1) / uint64(symbolSize))
	if totalSymbols == 0 {
		totalSymbols = 1
	}
	sizes := partitionBlockSizes(totalSymbols, z)

	d := &Decoder{oti: oti, symbolSize: symbolSize, blocks: make([]decodeBlock, z)}
	for i, k := range sizes {
		d.blocks[i] = decodeBlock{
			k:        k,
			resolved: make([][]byte, k),
			seenTags: make(map[uint32]bool),
			refs:     make(map[int][]*equation),
		}
	}
	return d, nil
}

// Blocks returns Z.
func (d *Decoder) Blocks() int { return len(d.blocks) }

// BlockSymbols returns K for block sbn.
func (d *Decoder) BlockSymbols(sbn int) (int, error) {
	if sbn < 0 || sbn >= len(d.blocks) {
		return 0, fmt.Errorf("rqengine: sbn %d out of range", sbn)
	}
	return d.blocks[sbn].k, nil
}

// BlockDecoded reports whether block sbn has recovered all K source symbols.
func (d *Decoder) BlockDecoded(sbn int) bool {
	if sbn < 0 || sbn >= len(d.blocks) {
		return false
	}
	b := &d.blocks[sbn]
	return b.resolvedCount == b.k
}

// BlockByteOffset returns the byte offset of block sbn's data within the
// assembled object, i.e. the sum of every earlier block's symbol count
// times the symbol size.
func (d *Decoder) BlockByteOffset(sbn int) (int, error) {
	if sbn < 0 || sbn >= len(d.blocks) {
		return 0, fmt.Errorf("rqengine: sbn %d out of range", sbn)
	}
	off := 0
	for i := 0; i < sbn; i++ {
		off += d.blocks[i].k * d.symbolSize
	}
	return off, nil
}

// BlockBytes returns block sbn's recovered bytes, trimmed to the object's
// transfer length if sbn is the final block and padding was added. It
// errors if the block is not yet fully decoded.
func (d *Decoder) BlockBytes(sbn int) ([]byte, error) {
	if sbn < 0 || sbn >= len(d.blocks) {
		return nil, fmt.Errorf("rqengine: sbn %d out of range", sbn)
	}
	if !d.BlockDecoded(sbn) {
		return nil, fmt.Errorf("rqengine: block %d not fully decoded", sbn)
	}
	b := &d.blocks[sbn]
	out := make([]byte, 0, b.k*d.symbolSize)
	for _, chunk := range b.resolved {
		out = append(out, chunk...)
	}
	if sbn == len(d.blocks)-1 {
		off, _ := d.BlockByteOffset(sbn)
		f := int(d.oti.Common.TransferLength)
		if off+len(out) > f {
			if off > f {
				out = nil
			} else {
				out = out[:f-off]
			}
		}
	}
	return out, nil
}

// Decoded reports whether every block has been fully recovered.
func (d *Decoder) Decoded() bool {
	for i := range d.blocks {
		if !d.BlockDecoded(i) {
			return false
		}
	}
	return true
}

// AddSymbol feeds one received symbol into the decoder. data must be
// exactly symbolSize bytes. The returned status mirrors the nanorq
// decoder_add_symbol contract: SymAdded for new information (even if it
// turns out immediately redundant algebraically), SymDup for an exact
// repeat of a (sbn, esi) already seen — including a repeat from a later ESI
// wrap epoch, which is indistinguishable on the wire and treated the same —
// and also SymDup for a first-seen source symbol (esi < K) whose value was
// already recovered by peeling.
func (d *Decoder) AddSymbol(sbn uint8, esi uint32, data []byte) (SymbolStatus, error) {
	if int(sbn) >= len(d.blocks) {
		return SymErr, fmt.Errorf("rqengine: sbn %d out of range", sbn)
	}
	if len(data) != d.symbolSize {
		return SymErr, fmt.Errorf("rqengine: symbol length %d != expected %d", len(data), d.symbolSize)
	}

	b := &d.blocks[sbn]
	tag := Tag(sbn, esi)
	if b.seenTags[tag] {
		return SymDup, nil
	}
	b.seenTags[tag] = true

	if int(esi) < b.k {
		if b.resolved[esi] != nil {
			return SymDup, nil
		}
		d.resolveIndex(b, int(esi), append([]byte(nil), data...))
		return SymAdded, nil
	}

	neighbors := repairNeighbors(sbn, esi, b.k)
	if len(neighbors) == 0 {
		return SymErr, fmt.Errorf("rqengine: no neighbors for repair symbol sbn=%d esi=%d", sbn, esi)
	}
	value := append([]byte(nil), data...)
	remaining := make(map[int]bool, len(neighbors))
	for _, idx := range neighbors {
		if b.resolved[idx] != nil {
			xorInto(value, b.resolved[idx])
		} else {
			remaining[idx] = true
		}
	}
	if len(remaining) == 0 {
		return SymAdded, nil // fully redundant given what's already known
	}

	eq := &equation{remaining: remaining, value: value}
	for idx := range remaining {
		b.refs[idx] = append(b.refs[idx], eq)
	}
	d.tryResolveEquation(b, eq)
	return SymAdded, nil
}

// resolveIndex records idx's data as known and propagates that knowledge
// into every equation still waiting on it, recursively resolving any
// equation that drops to a single remaining unknown.
func (d *Decoder) resolveIndex(b *decodeBlock, idx int, data []byte) {
	if b.resolved[idx] != nil {
		return
	}
	b.resolved[idx] = data
	b.resolvedCount++

	waiting := b.refs[idx]
	delete(b.refs, idx)
	for _, eq := range waiting {
		if !eq.remaining[idx] {
			continue
		}
		xorInto(eq.value, data)
		delete(eq.remaining, idx)
		d.tryResolveEquation(b, eq)
	}
}

func (d *Decoder) tryResolveEquation(b *decodeBlock, eq *equation) {
	if len(eq.remaining) != 1 {
		return
	}
	var last int
	for idx := range eq.remaining {
		last = idx
	}
	d.resolveIndex(b, last, eq.value)
}

// RepairBlock reports whether block sbn is now fully decoded. Peeling runs
// incrementally inside AddSymbol, so this is a status check rather than a
// distinct decode pass — named to mirror the nanorq contract's
// repair_block, which the RX session calls once a block has seen enough
// symbols to plausibly be solvable.
func (d *Decoder) RepairBlock(sbn int) (bool, error) {
	if sbn < 0 || sbn >= len(d.blocks) {
		return false, fmt.Errorf("rqengine: sbn %d out of range", sbn)
	}
	return d.BlockDecoded(sbn), nil
}

// AssembleObject concatenates every block's recovered source symbols and
// trims the result to the object's transfer length F. It errors if any
// block is still incomplete.
func (d *Decoder) AssembleObject() ([]byte, error) {
	if !d.Decoded() {
		return nil, fmt.Errorf("rqengine: object not fully decoded")
	}
	out := make([]byte, 0, len(d.blocks)*d.symbolSize)
	for i := range d.blocks {
		for _, chunk := range d.blocks[i].resolved {
			out = append(out, chunk...)
		}
	}
	f := d.oti.Common.TransferLength
	if uint64(len(out)) > f {
		out = out[:f]
	}
	return out, nil
}
