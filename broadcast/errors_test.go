package broadcast

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestErrorIsFatal(t *testing.T) {
	cfgErr := NewError(ErrConfig, "bad mode", nil)
	require.True(t, IsFatal(cfgErr))

	transportErr := NewError(ErrTransport, "send failed", errors.New("broken pipe"))
	require.True(t, IsFatal(transportErr))

	setupErr := NewError(ErrSessionSetup, "file too big", nil)
	require.False(t, IsFatal(setupErr))

	require.False(t, IsFatal(errors.New("plain error")))
}

func TestErrorIsFrame(t *testing.T) {
	frameErr := NewError(ErrFrame, "crc mismatch", nil)
	require.True(t, IsFrame(frameErr))
	require.False(t, IsFrame(NewError(ErrConfig, "x", nil)))
}

func TestErrorUnwrap(t *testing.T) {
	cause := errors.New("root cause")
	wrapped := NewPathError(ErrSessionSetup, "open failed", "/tmp/x", cause)
	require.ErrorIs(t, wrapped, cause)
	require.Contains(t, wrapped.Error(), "/tmp/x")
}
