package merecat

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseRequestHTTP09(t *testing.T) {
	conn := &Connection{}
	status := parseRequest(conn, []byte("GET /\n"))
	assert.Equal(t, 0, status)
	assert.Equal(t, MethodGet, conn.method)
	assert.False(t, conn.oneOne)
}

func TestParseRequestHTTP11WithHost(t *testing.T) {
	conn := &Connection{}
	status := parseRequest(conn, []byte("GET / HTTP/1.1\r\nHost: example.com\r\n\r\n"))
	assert.Equal(t, 0, status)
	assert.True(t, conn.oneOne)
	assert.Equal(t, 1, conn.protoMajor)
	assert.Equal(t, 1, conn.protoMinor)
	assert.Equal(t, "example.com", conn.host.String())
}

func TestParseRequestAbsoluteFormURI(t *testing.T) {
	conn := &Connection{}
	status := parseRequest(conn, []byte("GET http://example.com/page.html HTTP/1.1\r\n\r\n"))
	assert.Equal(t, 0, status)
	assert.Equal(t, "example.com", conn.host.String())
	assert.Equal(t, "/page.html", conn.encodedURL.String())
}

func TestParseRequestAbsoluteFormRejectedOnHTTP10(t *testing.T) {
	conn := &Connection{}
	status := parseRequest(conn, []byte("GET http://example.com/ HTTP/1.0\r\n\r\n"))
	assert.Equal(t, 400, status)
}

func TestParseRequestUnknownMethodIs501(t *testing.T) {
	conn := &Connection{}
	status := parseRequest(conn, []byte("FOO / HTTP/1.1\r\nHost: h\r\n\r\n"))
	assert.Equal(t, 501, status)
}

func TestParseRequestHTTP11MissingHostIs400(t *testing.T) {
	conn := &Connection{}
	status := parseRequest(conn, []byte("GET /page HTTP/1.1\r\n\r\n"))
	assert.Equal(t, 400, status)
}

func TestParseRequestSplitsQueryString(t *testing.T) {
	conn := &Connection{}
	status := parseRequest(conn, []byte("GET /search?q=abc&x=1 HTTP/1.1\r\nHost: h\r\n\r\n"))
	assert.Equal(t, 0, status)
	assert.Equal(t, "q=abc&x=1", conn.query.String())
	assert.Equal(t, "search", conn.origFilename.String())
}

func TestParseRequestRangeSuffixForm(t *testing.T) {
	conn := &Connection{}
	status := parseRequest(conn, []byte("GET /file HTTP/1.1\r\nHost: h\r\nRange: bytes=-500\r\n\r\n"))
	assert.Equal(t, 0, status)
	assert.True(t, conn.gotRange)
	assert.Equal(t, int64(-1), conn.firstByteIndex)
	assert.Equal(t, int64(500), conn.lastByteIndex)
}

func TestParseRequestBadUserAgentDisablesKeepAlive(t *testing.T) {
	conn := &Connection{}
	status := parseRequest(conn, []byte("GET / HTTP/1.1\r\nHost: h\r\nUser-Agent: Mozilla/2.0\r\nConnection: keep-alive\r\n\r\n"))
	assert.Equal(t, 0, status)
	assert.True(t, conn.keepAliveOK)
	assert.True(t, conn.shouldLinger)
	assert.False(t, conn.doKeepAlive)
}

func TestParseRequestContentLength(t *testing.T) {
	conn := &Connection{}
	status := parseRequest(conn, []byte("POST /upload HTTP/1.1\r\nHost: h\r\nContent-Length: 42\r\n\r\n"))
	assert.Equal(t, 0, status)
	assert.Equal(t, int64(42), conn.contentLength)
	assert.True(t, conn.haveContentLen)
}
