package rqengine

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func roundTrip(t *testing.T, data []byte, symbolSize int, drop func(sbn uint8, esi uint32) bool, maxExtra int) []byte {
	t.Helper()
	enc, err := NewEncoder(data, symbolSize)
	require.NoError(t, err)

	dec, err := NewDecoder(enc.OTI())
	require.NoError(t, err)
	require.Equal(t, enc.Blocks(), dec.Blocks())

	for sbn := 0; sbn < enc.Blocks(); sbn++ {
		k, err := enc.BlockSymbols(sbn)
		require.NoError(t, err)
		limit := k + maxExtra
		for esi := 0; esi < limit; esi++ {
			if drop != nil && drop(uint8(sbn), uint32(esi)) {
				continue
			}
			sym, err := enc.Encode(uint8(sbn), uint32(esi))
			require.NoError(t, err)
			_, err = dec.AddSymbol(uint8(sbn), uint32(esi), sym)
			require.NoError(t, err)
			if dec.BlockDecoded(sbn) {
				break
			}
		}
		require.True(t, dec.BlockDecoded(sbn), "block %d did not decode", sbn)
	}

	out, err := dec.AssembleObject()
	require.NoError(t, err)
	return out
}

func TestRoundTripNoLoss(t *testing.T) {
	data := make([]byte, 10000)
	for i := range data {
		data[i] = 0xA5
	}
	out := roundTrip(t, data, 498, nil, 20)
	require.Equal(t, data, out)
}

func TestRoundTripSingleSymbolObject(t *testing.T) {
	data := []byte{0x01, 0x02, 0x03}
	out := roundTrip(t, data, 114, nil, 5)
	require.Equal(t, data, out)
}

func TestRoundTripWithLoss(t *testing.T) {
	data := make([]byte, 1000)
	for i := range data {
		data[i] = byte(i)
	}
	count := 0
	drop := func(sbn uint8, esi uint32) bool {
		count++
		return count%10 == 0 // ~10% loss
	}
	out := roundTrip(t, data, 18, drop, 64) // generous overhead for a 56-symbol block
	require.Equal(t, data, out)
}

func TestDuplicateSymbolIsIdempotent(t *testing.T) {
	data := []byte("duplicate symbols must not corrupt decode state")
	enc, err := NewEncoder(data, 16)
	require.NoError(t, err)
	dec, err := NewDecoder(enc.OTI())
	require.NoError(t, err)

	k, err := enc.BlockSymbols(0)
	require.NoError(t, err)

	for esi := 0; esi < k; esi++ {
		sym, err := enc.Encode(0, uint32(esi))
		require.NoError(t, err)
		status, err := dec.AddSymbol(0, uint32(esi), sym)
		require.NoError(t, err)
		require.Equal(t, SymAdded, status)

		// Feed it again: must be reported as a duplicate and not disturb state.
		status, err = dec.AddSymbol(0, uint32(esi), sym)
		require.NoError(t, err)
		require.Equal(t, SymDup, status)
	}

	out, err := dec.AssembleObject()
	require.NoError(t, err)
	require.Equal(t, data, out)
}

func TestReorderedSymbolsStillDecode(t *testing.T) {
	data := make([]byte, 2000)
	for i := range data {
		data[i] = byte(i * 7)
	}
	enc, err := NewEncoder(data, 50)
	require.NoError(t, err)
	dec, err := NewDecoder(enc.OTI())
	require.NoError(t, err)

	type sym struct {
		sbn uint8
		esi uint32
		buf []byte
	}
	var all []sym
	for sbn := 0; sbn < enc.Blocks(); sbn++ {
		k, err := enc.BlockSymbols(sbn)
		require.NoError(t, err)
		for esi := 0; esi < k+5; esi++ {
			buf, err := enc.Encode(uint8(sbn), uint32(esi))
			require.NoError(t, err)
			all = append(all, sym{uint8(sbn), uint32(esi), buf})
		}
	}
	// Reverse order.
	for i, j := 0, len(all)-1; i < j; i, j = i+1, j-1 {
		all[i], all[j] = all[j], all[i]
	}
	for _, s := range all {
		_, err := dec.AddSymbol(s.sbn, s.esi, s.buf)
		require.NoError(t, err)
	}
	require.True(t, dec.Decoded())
	out, err := dec.AssembleObject()
	require.NoError(t, err)
	require.Equal(t, data, out)
}
