package frame

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFrameSizeAndSymbolSize(t *testing.T) {
	w, err := FrameSize(0)
	require.NoError(t, err)
	require.Equal(t, uint32(510), w)

	t2, err := SymbolSize(0)
	require.NoError(t, err)
	require.Equal(t, uint32(498), t2)

	_, err = FrameSize(7)
	require.Error(t, err)

	_, err = SymbolSize(5) // W=3, too small for 12 bytes of overhead
	require.Error(t, err)
}

func TestOTIReducedRoundTrip(t *testing.T) {
	common := OTICommon{TransferLength: 123456, SymbolSize: 498}
	scheme := OTIScheme{SourceBlocks: 3, SubBlocks: 1}

	cb := EncodeOTICommonReduced(common)
	require.Equal(t, common, DecodeOTICommonReduced(cb))

	sb := EncodeOTISchemeReduced(scheme)
	require.Equal(t, scheme, DecodeOTISchemeReduced(sb))
}

func TestTagRoundTrip(t *testing.T) {
	tag := Tag{SBN: 7, ESI: 65000}
	require.Equal(t, tag, DecodeTag(EncodeTag(tag)))
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	mode := 0
	symSize, err := SymbolSize(mode)
	require.NoError(t, err)

	oti := OTIPair{
		Common: OTICommon{TransferLength: 1000, SymbolSize: uint16(symSize)},
		Scheme: OTIScheme{SourceBlocks: 1, SubBlocks: 1},
	}
	tag := Tag{SBN: 0, ESI: 42}
	symbol := make([]byte, symSize)
	for i := range symbol {
		symbol[i] = byte(i)
	}

	raw, err := Encode(mode, oti, tag, symbol)
	require.NoError(t, err)

	w, err := FrameSize(mode)
	require.NoError(t, err)
	require.Len(t, raw, int(w))

	f, ok, err := Decode(mode, raw)
	require.NoError(t, err)
	require.True(t, ok)
	require.True(t, f.OTI.Equal(oti))
	require.Equal(t, tag, f.Tag)
	require.Equal(t, symbol, f.Symbol)
	require.Equal(t, PacketRQConfig, f.PacketType)
}

func TestDecodeRejectsCorruptedCRC(t *testing.T) {
	mode := 2 // W=14, smallest usable mode
	symSize, err := SymbolSize(mode)
	require.NoError(t, err)

	oti := OTIPair{
		Common: OTICommon{TransferLength: 10, SymbolSize: uint16(symSize)},
		Scheme: OTIScheme{SourceBlocks: 1, SubBlocks: 1},
	}
	raw, err := Encode(mode, oti, Tag{SBN: 0, ESI: 1}, make([]byte, symSize))
	require.NoError(t, err)

	raw[2] ^= 0xff // flip a byte inside the OTI body, outside the header
	_, ok, err := Decode(mode, raw)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestDecodeRejectsWrongLength(t *testing.T) {
	_, _, err := Decode(0, make([]byte, 10))
	require.Error(t, err)
}

func TestEncodeRejectsWrongSymbolLength(t *testing.T) {
	oti := OTIPair{Common: OTICommon{TransferLength: 10, SymbolSize: 498}, Scheme: OTIScheme{SourceBlocks: 1, SubBlocks: 1}}
	_, err := Encode(0, oti, Tag{}, make([]byte, 10))
	require.Error(t, err)
}
