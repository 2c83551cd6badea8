package merecat

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func newRefererTestConn(urlPattern string, noEmptyReferer bool, localHost, hostname string) *Connection {
	conn := &Connection{
		server: &Server{
			config: &Config{
				urlPattern:     urlPattern,
				noEmptyReferer: noEmptyReferer,
				localHost:      localHost,
				hostname:       hostname,
			},
		},
	}
	return conn
}

func TestRefererOKEmptyRefererAllowedByDefault(t *testing.T) {
	conn := newRefererTestConn("*.html", false, "example.com", "")
	conn.referer.SetString("")
	assert.True(t, refererOK(conn))
}

func TestRefererOKEmptyRefererRejectedWhenConfigured(t *testing.T) {
	conn := newRefererTestConn("*.html", true, "example.com", "")
	conn.referer.SetString("")
	conn.origFilename.SetString("page.html")
	assert.False(t, refererOK(conn))
}

func TestRefererOKEmptyRefererAllowedWhenURLDoesntMatchPattern(t *testing.T) {
	conn := newRefererTestConn("*.html", true, "example.com", "")
	conn.referer.SetString("")
	conn.origFilename.SetString("image.png")
	assert.True(t, refererOK(conn))
}

func TestRefererOKLocalHostMatches(t *testing.T) {
	conn := newRefererTestConn("*.html", false, "example.com", "")
	conn.referer.SetString("http://example.com/page.html")
	assert.True(t, refererOK(conn))
}

func TestRefererOKForeignHostRejected(t *testing.T) {
	conn := newRefererTestConn("*.html", false, "example.com", "")
	conn.origFilename.SetString("page.html")
	conn.referer.SetString("http://evil.example/page.html")
	assert.False(t, refererOK(conn))
}

func TestRefererOKFallsBackToHostname(t *testing.T) {
	conn := newRefererTestConn("*.html", false, "", "example.org")
	conn.referer.SetString("https://example.org:8080/x")
	assert.True(t, refererOK(conn))
}

func TestCheckRefererNoopWhenNoURLPattern(t *testing.T) {
	conn := newRefererTestConn("", false, "example.com", "")
	conn.referer.SetString("http://evil.example/")
	assert.NoError(t, checkReferer(conn))
}
