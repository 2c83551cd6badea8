package accesslog

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteFormatsCombinedLogLine(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, false)

	err := l.Write(Entry{
		RemoteAddr: "192.0.2.1",
		Method:     "GET",
		URL:        "/index.html",
		Protocol:   "HTTP/1.1",
		Status:     200,
		BytesSent:  1234,
		Referer:    "http://example.com/",
		UserAgent:  "curl/8.0",
	})
	require.NoError(t, err)

	want := "192.0.2.1: - \"GET /index.html HTTP/1.1\" 200 1234 \"http://example.com/\" \"curl/8.0\"\n"
	assert.Equal(t, want, buf.String())
}

func TestWriteDefaultsEmptyRemoteUserToDash(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, false)

	require.NoError(t, l.Write(Entry{RemoteAddr: "10.0.0.1", Method: "GET", URL: "/", Protocol: "HTTP/1.0", Status: 200, BytesSent: 0}))
	assert.Contains(t, buf.String(), "10.0.0.1: - \"GET / HTTP/1.0\" 200 0")
}

func TestWriteRemoteUserPopulated(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, false)

	require.NoError(t, l.Write(Entry{RemoteAddr: "10.0.0.1", RemoteUser: "alice", Method: "GET", URL: "/", Protocol: "HTTP/1.0", Status: 200}))
	assert.Contains(t, buf.String(), "10.0.0.1: alice ")
}

func TestWriteNegativeBytesSentBecomesDash(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, false)

	require.NoError(t, l.Write(Entry{RemoteAddr: "10.0.0.1", Method: "GET", URL: "/", Protocol: "HTTP/1.0", Status: 304, BytesSent: -1}))
	assert.Contains(t, buf.String(), "304 - ")
}

func TestWriteNoLogIsNoop(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, true)

	require.NoError(t, l.Write(Entry{RemoteAddr: "10.0.0.1", Method: "GET", URL: "/"}))
	assert.Empty(t, buf.String())
}

func TestWriteNilWriterIsNoop(t *testing.T) {
	l := New(nil, false)
	assert.NoError(t, l.Write(Entry{RemoteAddr: "10.0.0.1"}))
}
