// Package transport provides the duplex TCP byte stream to hermes-modem:
// a mutex-serialised send path and a single-reader receive path that
// internally drives the KISS framer and carries partially-consumed socket
// reads across calls, the way original_source/tcp_interface.c's
// tcp_interface_recv_kiss does with its static partial buffer.
package transport

import (
	"errors"
	"fmt"
	"io"
	"net"
	"time"

	"github.com/rhizomatica/hermes-broadcast/kiss"
)

// ErrClosed is returned by Send and RecvFrame once the transport has been
// closed, either locally (Close) or by the peer.
var ErrClosed = errors.New("transport: closed")

const recvBufferSize = 4096

// Transport is a connection-oriented duplex byte stream to a single peer.
// Send is safe to call from one goroutine while RecvFrame is called from
// another; Send itself is additionally safe for concurrent callers, though
// the broadcast daemon never needs more than one.
type Transport struct {
	conn net.Conn

	sendMu  chan struct{} // 1-buffered; acts as a non-reentrant mutex
	decoder *kiss.Decoder
	readBuf [recvBufferSize]byte
	pending []byte
}

// Dial connects to a hermes-modem peer at ip:port.
func Dial(ip string, port int) (*Transport, error) {
	addr := fmt.Sprintf("%s:%d", ip, port)
	conn, err := net.DialTimeout("tcp", addr, 10*time.Second)
	if err != nil {
		return nil, fmt.Errorf("transport: connect %s: %w", addr, err)
	}
	return newTransport(conn), nil
}

func newTransport(conn net.Conn) *Transport {
	t := &Transport{
		conn:    conn,
		sendMu:  make(chan struct{}, 1),
		decoder: kiss.NewDecoder(),
	}
	t.sendMu <- struct{}{}
	return t
}

// Close shuts down the underlying connection, unblocking any goroutine
// parked in RecvFrame and failing subsequent Send calls.
func (t *Transport) Close() error {
	return t.conn.Close()
}

// Send KISS-frames payload and writes it to the peer. Concurrent sends are
// serialised: only one goroutine's bytes ever hit the wire at a time, since
// TX and RX share one socket.
func (t *Transport) Send(payload []byte) error {
	<-t.sendMu
	defer func() { t.sendMu <- struct{}{} }()

	wire := kiss.EncodeFrame(payload)
	n, err := t.conn.Write(wire)
	if err != nil {
		if isClosed(err) {
			return ErrClosed
		}
		return fmt.Errorf("transport: send: %w", err)
	}
	if n < len(wire) {
		return fmt.Errorf("transport: partial send: %d of %d bytes", n, len(wire))
	}
	return nil
}

// RecvFrame blocks until one complete KISS-framed payload has been received
// and returns its decoded bytes (the KISS command byte stripped, escapes
// undone). It returns ErrClosed once the connection is closed, whether by
// Close or by the peer.
func (t *Transport) RecvFrame() ([]byte, error) {
	for {
		for len(t.pending) > 0 {
			b := t.pending[0]
			t.pending = t.pending[1:]
			if frame, ok := t.decoder.ReadByte(b); ok {
				return frame, nil
			}
		}

		n, err := t.conn.Read(t.readBuf[:])
		if err != nil {
			if isClosed(err) {
				return nil, ErrClosed
			}
			return nil, fmt.Errorf("transport: recv: %w", err)
		}
		if n == 0 {
			return nil, ErrClosed
		}

		for i := 0; i < n; i++ {
			if frame, ok := t.decoder.ReadByte(t.readBuf[i]); ok {
				t.pending = append([]byte(nil), t.readBuf[i+1:n]...)
				return frame, nil
			}
		}
	}
}

// isClosed reports whether err signals that the connection is gone, whether
// a real socket (net.ErrClosed, EOF) or the in-process net.Pipe used in
// tests (io.ErrClosedPipe).
func isClosed(err error) bool {
	return errors.Is(err, net.ErrClosed) || errors.Is(err, io.ErrClosedPipe) || errors.Is(err, io.EOF)
}
