// Package frame implements the joint configuration+payload wire frame used
// between the broadcast daemon and hermes-modem: a 1-byte header (packet
// type + CRC-6), an 8-byte reduced RaptorQ Object Transmission Information
// body, a 3-byte symbol tag, and a fixed-size symbol payload.
package frame

import "fmt"

// Packet type codes, occupying the two high bits of the header byte.
const (
	PacketRaw       = 0
	PacketUUCP      = 1
	PacketRQConfig  = 2
	PacketRQPayload = 3
)

// HeaderSize, OTICommonReducedSize, OTISchemeReducedSize, ConfigBodySize and
// TagSize are the fixed field widths of the on-wire layout.
const (
	HeaderSize           = 1
	OTICommonReducedSize = 5
	OTISchemeReducedSize = 3
	ConfigBodySize       = OTICommonReducedSize + OTISchemeReducedSize // 8
	TagSize              = 3

	// MaxObjectSize is the largest source object this system transmits:
	// 2^24 - 1 bytes (16 MiB - 1).
	MaxObjectSize = 16777215

	// MaxESI is the largest Encoded Symbol Identifier a TX session will
	// emit before cycling the per-block counter back to 0.
	MaxESI = 65535
)

// modemFrameSize is the mode -> W lookup table from mercury_modes.h's
// hermes_frame_size array (modes 0..6).
var modemFrameSize = [7]uint32{510, 126, 14, 54, 14, 3, 30}

// ModeCount is the number of supported modem modes.
const ModeCount = len(modemFrameSize)

// FrameSize returns the total on-wire frame size W for a modem mode, or an
// error if the mode is out of range.
func FrameSize(mode int) (uint32, error) {
	if mode < 0 || mode >= ModeCount {
		return 0, fmt.Errorf("frame: mode %d out of range 0..%d", mode, ModeCount-1)
	}
	return modemFrameSize[mode], nil
}

// SymbolSize returns T = W - 12 for a modem mode, rejecting modes whose W is
// too small to hold the header, OTI body and tag.
func SymbolSize(mode int) (uint32, error) {
	w, err := FrameSize(mode)
	if err != nil {
		return 0, err
	}
	overhead := uint32(HeaderSize + ConfigBodySize + TagSize)
	if w <= overhead {
		return 0, fmt.Errorf("frame: mode %d frame size %d too small for joint configuration+payload protocol (need > %d)", mode, w, overhead)
	}
	return w - overhead, nil
}

// OTICommon is the RaptorQ transfer length (F) and symbol size (T) pair
// packed into oti_common, stored here in expanded (unpacked) form.
type OTICommon struct {
	TransferLength uint64 // F, fits in 24 bits on the wire
	SymbolSize     uint16 // T
}

// OTIScheme is the RaptorQ source-block count (Z) and sub-block count (N)
// pair packed into oti_scheme_specific. Symbol alignment Al is implicit and
// always 1.
type OTIScheme struct {
	SourceBlocks uint8  // Z
	SubBlocks    uint16 // N
}

// OTIPair is the session identity: two sessions with identical Common and
// Scheme fields are the same object.
type OTIPair struct {
	Common OTICommon
	Scheme OTIScheme
}

// Equal reports whether two OTI pairs identify the same object.
func (p OTIPair) Equal(o OTIPair) bool {
	return p.Common == o.Common && p.Scheme == o.Scheme
}

// EncodeOTICommonReduced packs oti_common into its 5-byte reduced wire form.
// Layout: B[0]=F[23:16], B[1]=F[15:8], B[2]=F[7:0], B[3]=T[7:0],
// B[4]=T[15:8]. F above 24 bits is not carried (objects are capped at
// MaxObjectSize).
func EncodeOTICommonReduced(c OTICommon) [OTICommonReducedSize]byte {
	var b [OTICommonReducedSize]byte
	b[0] = byte(c.TransferLength >> 16)
	b[1] = byte(c.TransferLength >> 8)
	b[2] = byte(c.TransferLength)
	b[3] = byte(c.SymbolSize)
	b[4] = byte(c.SymbolSize >> 8)
	return b
}

// DecodeOTICommonReduced reconstructs oti_common from its reduced wire form.
func DecodeOTICommonReduced(b [OTICommonReducedSize]byte) OTICommon {
	var f uint64
	f |= uint64(b[0]) << 16
	f |= uint64(b[1]) << 8
	f |= uint64(b[2])
	t := uint16(b[3]) | uint16(b[4])<<8
	return OTICommon{TransferLength: f, SymbolSize: t}
}

// EncodeOTISchemeReduced packs oti_scheme into its 3-byte reduced wire form.
// Layout: B[0]=Z, B[1]=N low byte, B[2]=N high byte.
func EncodeOTISchemeReduced(s OTIScheme) [OTISchemeReducedSize]byte {
	var b [OTISchemeReducedSize]byte
	b[0] = s.SourceBlocks
	b[1] = byte(s.SubBlocks)
	b[2] = byte(s.SubBlocks >> 8)
	return b
}

// DecodeOTISchemeReduced reconstructs oti_scheme from its reduced wire form.
// Symbol alignment Al=1 is implicit and not represented in OTIScheme.
func DecodeOTISchemeReduced(b [OTISchemeReducedSize]byte) OTIScheme {
	return OTIScheme{
		SourceBlocks: b[0],
		SubBlocks:    uint16(b[1]) | uint16(b[2])<<8,
	}
}

// Tag is the 3-byte symbol tag: byte 0 = SBN, bytes 1-2 = ESI little-endian.
type Tag struct {
	SBN uint8
	ESI uint16
}

// EncodeTag packs a Tag into its 3-byte wire form.
func EncodeTag(t Tag) [TagSize]byte {
	return [TagSize]byte{t.SBN, byte(t.ESI), byte(t.ESI >> 8)}
}

// DecodeTag unpacks a Tag from its 3-byte wire form.
func DecodeTag(b [TagSize]byte) Tag {
	return Tag{SBN: b[0], ESI: uint16(b[1]) | uint16(b[2])<<8}
}

// Frame is a fully decoded on-wire frame.
type Frame struct {
	PacketType int
	OTI        OTIPair
	Tag        Tag
	Symbol     []byte
}

// Encode serialises an RQ_CONFIG frame: header | 8-byte OTI body | 3-byte
// tag | T-byte symbol, exactly W bytes. symbol must be exactly W-12 bytes.
func Encode(mode int, oti OTIPair, tag Tag, symbol []byte) ([]byte, error) {
	w, err := FrameSize(mode)
	if err != nil {
		return nil, err
	}
	symSize, err := SymbolSize(mode)
	if err != nil {
		return nil, err
	}
	if uint32(len(symbol)) != symSize {
		return nil, fmt.Errorf("frame: symbol length %d != expected %d for mode %d", len(symbol), symSize, mode)
	}

	out := make([]byte, w)
	common := EncodeOTICommonReduced(oti.Common)
	scheme := EncodeOTISchemeReduced(oti.Scheme)
	copy(out[1:], common[:])
	copy(out[1+OTICommonReducedSize:], scheme[:])
	tagBytes := EncodeTag(tag)
	copy(out[1+ConfigBodySize:], tagBytes[:])
	copy(out[1+ConfigBodySize+TagSize:], symbol)

	out[0] = byte(PacketRQConfig<<6) & 0xff
	out[0] |= crc6(out[1:])
	return out, nil
}

// Decode parses a frame of exactly W bytes for the given mode, verifying
// its CRC-6. ok is false (with no error) on CRC mismatch, so a corrupted
// frame can be dropped silently — callers bump their own counter on !ok.
func Decode(mode int, raw []byte) (f Frame, ok bool, err error) {
	w, err := FrameSize(mode)
	if err != nil {
		return Frame{}, false, err
	}
	if uint32(len(raw)) != w {
		return Frame{}, false, fmt.Errorf("frame: length %d != expected %d for mode %d", len(raw), w, mode)
	}

	packetType := int(raw[0]>>6) & 0x3
	wantCRC := raw[0] & 0x3f
	gotCRC := crc6(raw[1:])
	if wantCRC != gotCRC {
		return Frame{}, false, nil
	}

	var common [OTICommonReducedSize]byte
	copy(common[:], raw[1:1+OTICommonReducedSize])
	var scheme [OTISchemeReducedSize]byte
	copy(scheme[:], raw[1+OTICommonReducedSize:1+ConfigBodySize])
	var tagBytes [TagSize]byte
	copy(tagBytes[:], raw[1+ConfigBodySize:1+ConfigBodySize+TagSize])

	f = Frame{
		PacketType: packetType,
		OTI: OTIPair{
			Common: DecodeOTICommonReduced(common),
			Scheme: DecodeOTISchemeReduced(scheme),
		},
		Tag:    DecodeTag(tagBytes),
		Symbol: raw[1+ConfigBodySize+TagSize:],
	}
	return f, true, nil
}
