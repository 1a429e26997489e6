package transport

import (
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func pipeTransports(t *testing.T) (*Transport, *Transport) {
	t.Helper()
	a, b := net.Pipe()
	return newTransport(a), newTransport(b)
}

func TestSendRecvRoundTrip(t *testing.T) {
	tx, rx := pipeTransports(t)
	defer tx.Close()
	defer rx.Close()

	payload := []byte{0x01, 0x02, 0xC0, 0xDB, 0x03}
	done := make(chan error, 1)
	go func() { done <- tx.Send(payload) }()

	frame, err := rx.RecvFrame()
	require.NoError(t, err)
	require.Equal(t, payload, frame)
	require.NoError(t, <-done)
}

func TestMultipleFramesAcrossReads(t *testing.T) {
	tx, rx := pipeTransports(t)
	defer tx.Close()
	defer rx.Close()

	frames := [][]byte{{0xAA}, {0xBB, 0xCC}, {0xDD, 0xEE, 0xFF}}
	go func() {
		for _, f := range frames {
			_ = tx.Send(f)
		}
	}()

	for _, want := range frames {
		got, err := rx.RecvFrame()
		require.NoError(t, err)
		require.Equal(t, want, got)
	}
}

func TestRecvFrameReturnsErrClosedOnClose(t *testing.T) {
	tx, rx := pipeTransports(t)
	defer tx.Close()

	go func() {
		time.Sleep(20 * time.Millisecond)
		rx.Close()
	}()

	_, err := rx.RecvFrame()
	require.ErrorIs(t, err, ErrClosed)
}
