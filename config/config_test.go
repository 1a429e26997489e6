package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadFileMissingIsNotError(t *testing.T) {
	f, err := LoadFile(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	require.Nil(t, f.Mode)
}

func TestLoadFileParsesOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cfg.yaml")
	require.NoError(t, os.WriteFile(path, []byte("mode: 3\ntx_dir: /data/tx\nport: 9000\n"), 0644))

	f, err := LoadFile(path)
	require.NoError(t, err)
	require.Equal(t, 3, *f.Mode)
	require.Equal(t, "/data/tx", *f.TXDir)
	require.Equal(t, 9000, *f.Port)
	require.Nil(t, f.RXDir)
}

func TestResolvePrecedenceFlagsOverEnvOverFileOverDefaults(t *testing.T) {
	mode := 1
	ip := "10.0.0.1"
	file := File{Mode: &mode, IP: &ip}

	t.Setenv("HERMES_BROADCAST_MODE", "2")
	t.Setenv("HERMES_BROADCAST_PORT", "7100")

	cli := Overlay{}
	cli.Mode = 5
	cliSet := map[string]bool{"mode": true}

	o := Resolve(file, cli, cliSet)

	require.Equal(t, 5, o.Mode) // CLI wins over env and file
	require.Equal(t, 7100, o.Port) // env wins over file (file didn't set it) and default
	require.Equal(t, "10.0.0.1", o.IP) // file wins since neither env nor CLI set it
	require.Equal(t, "./rx", o.RXDir) // default, nothing overrode it
}

func TestResolveWithNoOverridesReturnsDefaults(t *testing.T) {
	o := Resolve(File{}, Overlay{}, nil)
	require.Equal(t, 0, o.Mode)
	require.Equal(t, "127.0.0.1", o.IP)
	require.Equal(t, 8100, o.Port)
}
