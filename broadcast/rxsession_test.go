package broadcast

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/rhizomatica/hermes-broadcast/frame"
	"github.com/rhizomatica/hermes-broadcast/rqengine"
)

func TestBuildOutputPathDisambiguates(t *testing.T) {
	dir := t.TempDir()
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	first, err := buildOutputPath(dir, now)
	require.NoError(t, err)
	require.Equal(t, filepath.Join(dir, "broadcast_20260102_030405.bin"), first)
	require.NoError(t, os.WriteFile(first, []byte("x"), 0644))

	second, err := buildOutputPath(dir, now)
	require.NoError(t, err)
	require.Equal(t, filepath.Join(dir, "broadcast_20260102_030405_001.bin"), second)
}

func TestRXSessionEndToEnd(t *testing.T) {
	dir := t.TempDir()
	mode := 0
	symSize, err := frame.SymbolSize(mode)
	require.NoError(t, err)

	data := []byte("the quick brown fox jumps over the lazy dog, repeated for bulk")
	enc, err := rqengine.NewEncoder(data, int(symSize))
	require.NoError(t, err)

	session, err := StartRXSession(dir, enc.OTI(), time.Now())
	require.NoError(t, err)

	complete := false
	for sbn := 0; sbn < enc.Blocks() && !complete; sbn++ {
		k, err := enc.BlockSymbols(sbn)
		require.NoError(t, err)
		for esi := 0; esi < k+5; esi++ {
			sym, err := enc.Encode(uint8(sbn), uint32(esi))
			require.NoError(t, err)
			_, complete, err = session.Absorb(frame.Tag{SBN: uint8(sbn), ESI: uint16(esi)}, sym)
			require.NoError(t, err)
			if complete {
				break
			}
		}
	}
	require.True(t, complete)
	require.NoError(t, session.Close())

	out, err := os.ReadFile(session.OutPath)
	require.NoError(t, err)
	require.Equal(t, data, out)
}

func TestCompletedMemoMatches(t *testing.T) {
	oti := frame.OTIPair{Common: frame.OTICommon{TransferLength: 10, SymbolSize: 5}, Scheme: frame.OTIScheme{SourceBlocks: 1, SubBlocks: 1}}
	memo := CompletedMemo{OTI: oti, Completed: true}
	require.True(t, memo.Matches(oti))

	other := oti
	other.Common.TransferLength = 11
	require.False(t, memo.Matches(other))
	require.False(t, (CompletedMemo{}).Matches(oti))
}
