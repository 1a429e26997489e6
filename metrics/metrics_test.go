package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/rhizomatica/hermes-broadcast/broadcast"
	"github.com/rhizomatica/hermes-broadcast/frame"
)

func TestCallbacksRecordFramesAndSessions(t *testing.T) {
	r := New()
	cb := r.Callbacks(nil)

	cb.OnFrameSent(frame.OTIPair{}, frame.Tag{})
	cb.OnFrameDropped(broadcast.DropCRCMismatch)
	cb.OnSessionComplete(broadcast.SessionStats{TotalBlocks: 4, BlocksDecoded: 4})
	cb.OnError(nil)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	r.Handler().ServeHTTP(rec, req)

	body := rec.Body.String()
	require.Contains(t, body, "hermes_broadcast_frames_sent_total 1")
	require.Contains(t, body, `hermes_broadcast_frames_dropped_total{reason="crc_mismatch"} 1`)
	require.True(t, strings.Contains(body, "hermes_broadcast_rx_blocks_decoded 4"))
	require.Contains(t, body, "hermes_broadcast_errors_total 1")
}

func TestCallbacksChainToUserCallbacks(t *testing.T) {
	r := New()
	called := false
	user := &broadcast.Callbacks{OnError: func(error) { called = true }}
	cb := r.Callbacks(user)

	cb.OnError(nil)
	require.True(t, called)
}
