package merecat

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// chdirTemp creates a temp dir, chdirs into it (restoring the original
// working directory on cleanup) and returns its path. expandSymlinks is
// designed to run against a chrooted process (cwd "/"), so exercising it
// against relative paths from a known cwd is the faithful way to drive
// it without actually chrooting the test binary.
func chdirTemp(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(wd) })
	return dir
}

func TestExpandSymlinksPlainPath(t *testing.T) {
	chdirTemp(t)
	require.NoError(t, os.MkdirAll("a/b", 0o755))
	require.NoError(t, os.WriteFile(filepath.Join("a", "b", "c.txt"), []byte("hi"), 0o644))

	checked, trailer, err := expandSymlinks("a/b/c.txt", false, false)
	require.NoError(t, err)
	assert.Equal(t, "a/b/c.txt", checked)
	assert.Equal(t, "", trailer)
}

func TestExpandSymlinksStopsAtMissingComponent(t *testing.T) {
	chdirTemp(t)
	require.NoError(t, os.MkdirAll("a/b", 0o755))

	checked, trailer, err := expandSymlinks("a/b/extra/pathinfo", false, false)
	require.NoError(t, err)
	assert.Equal(t, "a/b", checked)
	assert.Equal(t, "extra/pathinfo", trailer)
}

func TestExpandSymlinksMissingTopLevelReturnsDot(t *testing.T) {
	chdirTemp(t)

	checked, trailer, err := expandSymlinks("nope/pathinfo", false, false)
	require.NoError(t, err)
	assert.Equal(t, ".", checked)
	assert.Equal(t, "nope/pathinfo", trailer)
}

func TestExpandSymlinksFollowsRelativeSymlink(t *testing.T) {
	chdirTemp(t)
	require.NoError(t, os.MkdirAll("real", 0o755))
	require.NoError(t, os.WriteFile(filepath.Join("real", "target.txt"), []byte("hi"), 0o644))
	require.NoError(t, os.Symlink("real", "link"))

	checked, trailer, err := expandSymlinks("link/target.txt", false, false)
	require.NoError(t, err)
	assert.Equal(t, "real/target.txt", checked)
	assert.Equal(t, "", trailer)
}

func TestExpandSymlinksLoopIsRejected(t *testing.T) {
	chdirTemp(t)
	require.NoError(t, os.Symlink("loop2", "loop1"))
	require.NoError(t, os.Symlink("loop1", "loop2"))

	_, _, err := expandSymlinks("loop1", false, false)
	assert.ErrorIs(t, err, errTooManySymlinks)
}

func TestExpandSymlinksNoSymlinkCheckShortcut(t *testing.T) {
	chdirTemp(t)
	require.NoError(t, os.MkdirAll("a/b", 0o755))

	checked, trailer, err := expandSymlinks("a/b/", true, false)
	require.NoError(t, err)
	assert.Equal(t, "a/b", checked)
	assert.Equal(t, "", trailer)
}
