package broadcast

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFileLoggerWritesAndGatesDebug(t *testing.T) {
	path := filepath.Join(t.TempDir(), "daemon.log")
	l, err := NewFileLogger(path, false)
	require.NoError(t, err)

	l.Debug("should not appear %d", 1)
	l.Info("session opened %s", "obj.bin")
	require.NoError(t, l.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.NotContains(t, string(data), "should not appear")
	require.Contains(t, string(data), "session opened obj.bin")
}

func TestFileLoggerDebugEnabled(t *testing.T) {
	path := filepath.Join(t.TempDir(), "daemon.log")
	l, err := NewFileLogger(path, true)
	require.NoError(t, err)
	l.Debug("verbose line")
	require.NoError(t, l.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Contains(t, string(data), "verbose line")
}
