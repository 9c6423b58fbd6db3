//go:build linux

package process

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/momentics/coreparker/api"
)

func TestLinuxOps_SelfInspection(t *testing.T) {
	ops, err := NewOS()
	require.NoError(t, err)

	pid := os.Getpid()
	assert.False(t, ops.Exited(pid))

	ok, err := ops.Responsive(pid)
	require.NoError(t, err)
	assert.True(t, ok)

	exe, err := ops.Executable(pid)
	require.NoError(t, err)
	assert.NotEmpty(t, exe)

	_, err = ops.Priority(pid)
	require.NoError(t, err)
}

func TestLinuxOps_MissingProcess(t *testing.T) {
	ops, err := NewOS()
	require.NoError(t, err)

	// PIDs above pid_max never exist.
	const ghost = 1 << 30
	assert.True(t, ops.Exited(ghost))
	assert.ErrorIs(t, ops.SetAffinity(ghost, 1), api.ErrTargetExited)

	_, found, err := ops.Discover([]api.Match{{Name: "no-such-process-name-xyz"}})
	require.NoError(t, err)
	assert.False(t, found)
}

type procFixture struct {
	exe     string
	cwd     string
	cmdline []string
	environ []string
}

// writeProc lays out the procfs entries Executable reads for pid.
func writeProc(t *testing.T, root string, pid int, f procFixture) {
	t.Helper()
	dir := filepath.Join(root, strconv.Itoa(pid))
	require.NoError(t, os.MkdirAll(dir, 0o755))
	if f.exe != "" {
		require.NoError(t, os.Symlink(f.exe, filepath.Join(dir, "exe")))
	}
	if f.cwd != "" {
		require.NoError(t, os.Symlink(f.cwd, filepath.Join(dir, "cwd")))
	}
	cmd := strings.Join(f.cmdline, "\x00") + "\x00"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "cmdline"), []byte(cmd), 0o644))
	env := strings.Join(f.environ, "\x00") + "\x00"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "environ"), []byte(env), 0o644))
}

func TestLinuxOps_ExecutableUnderWine(t *testing.T) {
	root := t.TempDir()
	writeProc(t, root, 100, procFixture{
		exe:     "/usr/bin/wine64-preloader",
		cmdline: []string{`C:\Program Files (x86)\Grinding Gear Games\Path of Exile 2\PathOfExile.exe`},
		environ: []string{"HOME=/home/exile", "WINEPREFIX=/games/poe2/pfx"},
	})
	writeProc(t, root, 101, procFixture{
		exe:     "/opt/wine/bin/wine",
		cmdline: []string{`D:\PoE2\PathOfExile.exe`},
		environ: []string{"HOME=/home/exile"},
	})
	writeProc(t, root, 102, procFixture{
		exe:     "/usr/bin/wine-preloader",
		cwd:     "/games/poe2",
		cmdline: []string{"PathOfExile.exe", "--nologo"},
	})
	writeProc(t, root, 103, procFixture{
		exe:     "/opt/native/PathOfExile",
		cmdline: []string{"/opt/native/PathOfExile"},
	})

	ops, err := NewProcFS(root)
	require.NoError(t, err)

	cases := []struct {
		pid  int
		want string
	}{
		{100, "/games/poe2/pfx/dosdevices/c:/Program Files (x86)/Grinding Gear Games/Path of Exile 2/PathOfExile.exe"},
		{101, "/home/exile/.wine/dosdevices/d:/PoE2/PathOfExile.exe"},
		{102, "/games/poe2/PathOfExile.exe"},
		{103, "/opt/native/PathOfExile"},
	}
	for _, tc := range cases {
		got, err := ops.Executable(tc.pid)
		require.NoError(t, err, "pid %d", tc.pid)
		assert.Equal(t, tc.want, got, "pid %d", tc.pid)
	}
}
