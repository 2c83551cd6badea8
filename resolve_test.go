package merecat

import (
	"bytes"
	"io"
	"net"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// runResolveAndCapture wires a Connection over a net.Pipe, runs the
// resolver dispatch against it with setup applied first, and returns
// whatever bytes were written to the client side of the pipe. It chdirs
// into documentRoot first since expandSymlinks (like libhttpd's
// expand_symlinks) assumes the process is chrooted to the document
// root, so relative-path symlink/stat checks resolve against cwd.
func runResolveAndCapture(t *testing.T, documentRoot string, setup func(conn *Connection), opts ...Option) string {
	t.Helper()

	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(documentRoot))
	t.Cleanup(func() { os.Chdir(wd) })

	cfg := NewConfig(documentRoot, opts...)
	srv := New(cfg)

	serverConn, clientConn := net.Pipe()
	conn := NewConnection(srv, serverConn)
	conn.Reset()
	setup(conn)

	var buf bytes.Buffer
	readDone := make(chan struct{})
	go func() {
		io.Copy(&buf, clientConn)
		close(readDone)
	}()

	resolverDispatch{}.Run(conn)
	serverConn.Close()
	clientConn.Close()
	<-readDone

	return buf.String()
}

func TestResolveServesStaticFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "page.html"), []byte("<p>hi</p>"), 0o644))

	resp := runResolveAndCapture(t, dir, func(conn *Connection) {
		conn.method = MethodGet
		conn.encodedURL.SetString("/page.html")
		conn.decodedURL.SetString("/page.html")
		conn.origFilename.SetString("page.html")
		conn.expnFilename.SetString("page.html")
	})

	assert.Contains(t, resp, "200 OK")
	assert.Contains(t, resp, "Content-Type: text/html")
	assert.Contains(t, resp, "<p>hi</p>")
}

func TestResolvePathInfoOnDirectoryIs404(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "sub"), 0o755))

	resp := runResolveAndCapture(t, dir, func(conn *Connection) {
		conn.method = MethodGet
		conn.encodedURL.SetString("/sub/extra")
		conn.decodedURL.SetString("/sub/extra")
		conn.origFilename.SetString("sub/extra")
		conn.expnFilename.SetString("sub/extra")
	})

	assert.Contains(t, resp, "404")
}

func TestResolveDirectoryWithoutSlashRedirects(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "sub"), 0o755))

	resp := runResolveAndCapture(t, dir, func(conn *Connection) {
		conn.method = MethodGet
		conn.encodedURL.SetString("/sub")
		conn.decodedURL.SetString("/sub")
		conn.origFilename.SetString("sub")
		conn.expnFilename.SetString("sub")
	})

	assert.Contains(t, resp, "302")
	assert.Contains(t, resp, "Location: /sub/")
}

func TestResolveDirectoryServesIndexFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "sub"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "sub", "index.html"), []byte("front page"), 0o644))

	resp := runResolveAndCapture(t, dir, func(conn *Connection) {
		conn.method = MethodGet
		conn.encodedURL.SetString("/sub/")
		conn.decodedURL.SetString("/sub/")
		conn.origFilename.SetString("sub/")
		conn.expnFilename.SetString("sub/")
	})

	assert.Contains(t, resp, "200 OK")
	assert.Contains(t, resp, "front page")
}

func TestResolveRangeIgnoredWhenGzipSiblingServed(t *testing.T) {
	dir := t.TempDir()
	original := []byte("plain text body long enough to matter")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "page.txt"), original, 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "page.txt.gz"), []byte("gzipped-bytes-differ-from-original"), 0o644))

	resp := runResolveAndCapture(t, dir, func(conn *Connection) {
		conn.method = MethodGet
		conn.encodedURL.SetString("/page.txt")
		conn.decodedURL.SetString("/page.txt")
		conn.origFilename.SetString("page.txt")
		conn.expnFilename.SetString("page.txt")
		conn.gotRange = true
		conn.firstByteIndex = 0
		conn.lastByteIndex = 4
	})

	assert.Contains(t, resp, "200 OK")
	assert.NotContains(t, resp, "206")
	assert.NotContains(t, resp, "Content-Range")
	assert.Contains(t, resp, "Content-Encoding: gzip")
	assert.Contains(t, resp, "gzipped-bytes-differ-from-original")
}

func TestResolveOptionsRequest(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "page.html"), []byte("hi"), 0o644))

	resp := runResolveAndCapture(t, dir, func(conn *Connection) {
		conn.method = MethodOptions
		conn.encodedURL.SetString("/page.html")
		conn.decodedURL.SetString("/page.html")
		conn.origFilename.SetString("page.html")
		conn.expnFilename.SetString("page.html")
	})

	assert.Contains(t, resp, "200 OK")
	assert.Contains(t, resp, "Allow: GET,HEAD,OPTIONS")
}
