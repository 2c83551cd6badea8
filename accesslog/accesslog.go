// Package accesslog renders one request's disposition into an extended
// Combined Log Format line, the wire format spec.md §6's "Persisted
// state" section calls for ("extended Combined Log Format with omitted
// date (the log daemon supplies it)"). Ported field-for-field from
// libhttpd.c's make_log_entry(); the date is left to the configured
// io.Writer (a syslog.Writer in production) the same way the original
// relies on syslogd to stamp it.
package accesslog

import (
	"fmt"
	"io"
)

// Entry is the set of fields make_log_entry() formats.
type Entry struct {
	RemoteAddr  string
	RemoteUser  string // "" becomes "-"
	Method      string
	URL         string // already vhost-prefixed by the caller if vhosting
	Protocol    string
	Status      int
	BytesSent   int64 // -1 becomes "-"
	Referer     string
	UserAgent   string
}

// Logger writes Entry lines to an underlying writer, any io.Writer
// (e.g. log/syslog.Writer), the way the teacher's logger/config.Config
// holds a replaceable Writer. With a nil writer, Write does nothing.
type Logger struct {
	w      io.Writer
	noLog  bool
}

// New wraps w. When noLog is true, Write is a no-op, matching
// server.hs->no_log short-circuiting make_log_entry entirely.
func New(w io.Writer, noLog bool) *Logger {
	return &Logger{w: w, noLog: noLog}
}

// Write renders e as one CLF line and writes it, trailing newline
// included. Errors are returned for the caller to log at a higher
// level; access-logging failures must never fail the HTTP response
// itself.
func (l *Logger) Write(e Entry) error {
	if l.noLog || l.w == nil {
		return nil
	}

	ru := e.RemoteUser
	if ru == "" {
		ru = "-"
	}

	bytes := "-"
	if e.BytesSent >= 0 {
		bytes = fmt.Sprintf("%d", e.BytesSent)
	}

	referer := e.Referer
	userAgent := e.UserAgent

	_, err := fmt.Fprintf(l.w, "%s: %s \"%s %s %s\" %d %s \"%s\" \"%s\"\n",
		e.RemoteAddr, ru, e.Method, e.URL, e.Protocol, e.Status, bytes, referer, userAgent)
	return err
}
