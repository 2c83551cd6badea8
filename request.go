package merecat

import (
	"strconv"
	"strings"
	"time"

	"github.com/mwjian/merecat/internal/text"
)

// httpDateLayouts covers the three date formats RFC 7231 §7.1.1.1
// allows a client to send; ported from libhttpd's use of tdate_parse.
var httpDateLayouts = []string{
	time.RFC1123,
	time.RFC850,
	time.ANSIC,
}

func parseHTTPDate(s string) (time.Time, bool) {
	s = text.TrimString(s)
	for _, layout := range httpDateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// acceptHeaderCap bounds the accumulated length of repeated Accept /
// Accept-Encoding headers (spec.md §4.5): once the joined value is
// longer than this, later occurrences are dropped. Dropped values are
// not logged.
const acceptHeaderCap = 5000

// maxRequestHeaderSize bounds how much of the request line and header
// block server_run.go's FSM-driven reader will buffer before giving up
// with 400, sized generously above any real request the static/CGI
// dispatch this server does will produce.
const maxRequestHeaderSize = 64 * 1024

// badUserAgents disables keep-alive for browsers with known
// keep-alive bugs, the list libhttpd ported from Apache 1.3.19.
var badUserAgents = []string{"Mozilla/2", "MSIE 4.0b2;"}

// parseRequest fills conn from the FSM-terminated buffer buf. It
// returns the HTTP status to send on failure, or 0 on success.
// Ported from libhttpd.c's httpd_parse_request().
func parseRequest(conn *Connection, buf []byte) int {
	lines := splitRequestLines(string(buf))
	if len(lines) == 0 {
		return 400
	}

	requestLine := lines[0]
	fields := strings.Fields(requestLine)
	if len(fields) < 2 {
		return 400
	}

	methodStr := fields[0]
	rawURL := fields[1]

	protocol := "HTTP/0.9"
	mimeFlag := false
	if len(fields) >= 3 {
		protocol = fields[2]
		mimeFlag = true
		conn.oneOne = !strings.EqualFold(protocol, "HTTP/1.0")
	}
	conn.protoMajor, conn.protoMinor = protocolVersion(protocol)

	// Absolute-form URI, only legal on HTTP/1.1.
	if strings.HasPrefix(strings.ToLower(rawURL), "http://") {
		if !conn.oneOne {
			return 400
		}

		rest := rawURL[len("http://"):]
		slash := strings.IndexByte(rest, '/')
		if slash < 0 {
			return 400
		}

		reqHost := rest[:slash]
		if strings.Contains(reqHost, "/") || strings.HasPrefix(reqHost, ".") {
			return 400
		}

		conn.host.SetString(reqHost)
		rawURL = rest[slash:]
	}

	if !strings.HasPrefix(rawURL, "/") {
		return 400
	}

	method := Method(strings.ToUpper(methodStr))
	if !knownMethods[method] {
		return 501
	}
	conn.method = method

	conn.encodedURL.SetString(rawURL)

	decoded := strdecode(rawURL)
	conn.decodedURL.SetString(decoded)

	origFilename := decoded
	if len(origFilename) > 0 && origFilename[0] == '/' {
		origFilename = origFilename[1:]
	}
	if origFilename == "" {
		origFilename = "."
	}

	if q := strings.IndexByte(rawURL, '?'); q >= 0 {
		conn.query.SetString(rawURL[q+1:])
		if q2 := strings.IndexByte(origFilename, '?'); q2 >= 0 {
			origFilename = origFilename[:q2]
		}
	}

	origFilename = deDotdot(origFilename)
	if rejectsEscape(origFilename) {
		return 400
	}
	conn.origFilename.SetString(origFilename)
	conn.expnFilename.SetString(origFilename)

	if mimeFlag {
		if status := parseHeaders(conn, lines[1:]); status != 0 {
			return status
		}
	}

	if conn.oneOne {
		if conn.host.Len() == 0 {
			return 400
		}
		if conn.keepAliveOK {
			conn.shouldLinger = true
		}
	}

	decideGzipAcceptance(conn)
	disableKeepAliveForBadAgents(conn)

	return 0
}

// splitRequestLines splits the terminated buffer on the header-block
// boundary the FSM recognized, one logical line per header, tolerant
// of bare CR, bare LF, or CRLF line endings.
func splitRequestLines(s string) []string {
	s = strings.TrimRight(s, "\r\n")
	raw := strings.Split(strings.ReplaceAll(s, "\r\n", "\n"), "\n")

	var lines []string
	for _, l := range raw {
		for _, part := range strings.Split(l, "\r") {
			lines = append(lines, part)
		}
	}
	return lines
}

func protocolVersion(protocol string) (major, minor int) {
	slash := strings.IndexByte(protocol, '/')
	if slash < 0 {
		return 1, 0
	}
	dot := strings.IndexByte(protocol[slash+1:], '.')
	if dot < 0 {
		return 1, 0
	}

	m, err1 := strconv.Atoi(protocol[slash+1 : slash+1+dot])
	n, err2 := strconv.Atoi(protocol[slash+1+dot+1:])
	if err1 != nil || err2 != nil {
		return 1, 0
	}
	return m, n
}

// parseHeaders recognizes the header set of spec.md §4.5. It returns a
// non-zero HTTP status on a hard failure (bad Host), or 0.
func parseHeaders(conn *Connection, lines []string) int {
	for _, raw := range lines {
		if raw == "" {
			break
		}

		colon := strings.IndexByte(raw, ':')
		if colon < 0 {
			continue
		}
		name := raw[:colon]
		value := text.TrimString(raw[colon+1:])

		switch {
		case strings.EqualFold(name, "Referer"):
			conn.referer.SetString(value)

		case strings.EqualFold(name, "User-Agent"):
			conn.userAgent.SetString(value)

		case strings.EqualFold(name, "Host"):
			if strings.Contains(value, "/") || strings.HasPrefix(value, ".") {
				return 400
			}
			if conn.host.Len() == 0 {
				conn.host.SetString(value)
			}

		case strings.EqualFold(name, "Accept"):
			appendCapped(&conn.accept, value)

		case strings.EqualFold(name, "Accept-Encoding"):
			appendCapped(&conn.acceptEncoding, value)

		case strings.EqualFold(name, "Accept-Language"):
			conn.acceptLanguage.SetString(value)

		case strings.EqualFold(name, "If-Modified-Since"):
			if t, ok := parseHTTPDate(value); ok {
				conn.ifModifiedSince = t
				conn.haveIfModSince = true
			}

		case strings.EqualFold(name, "Cookie"):
			conn.cookie.SetString(value)

		case strings.EqualFold(name, "Range"):
			parseRangeHeader(conn, value)

		case strings.EqualFold(name, "Range-If"), strings.EqualFold(name, "If-Range"):
			conn.ifRange.SetString(value)

		case strings.EqualFold(name, "Content-Type"):
			conn.contentType.SetString(value)

		case strings.EqualFold(name, "Content-Length"):
			if n, err := strconv.ParseInt(text.TrimString(value), 10, 64); err == nil && n >= 0 {
				conn.contentLength = n
				conn.haveContentLen = true
			}

		case strings.EqualFold(name, "Authorization"):
			conn.authorization.SetString(value)

		case strings.EqualFold(name, "Connection"):
			if strings.EqualFold(value, "keep-alive") {
				conn.keepAliveOK = true
				conn.doKeepAlive = true
			}

		case strings.EqualFold(name, "X-Forwarded-For"):
			if comma := strings.IndexByte(value, ','); comma >= 0 {
				value = value[:comma]
			}
			conn.xForwardedFor.SetString(text.TrimString(value))
		}
	}

	return 0
}

// appendCapped implements the repeated-header concatenation policy of
// spec.md §4.5: join occurrences with ", " while the accumulated value
// is at most acceptHeaderCap bytes. Each value is appended whole, so the
// result can end up longer than the cap; once it does, further
// occurrences are ignored.
func appendCapped(g *growBuf, value string) {
	if g.Len() == 0 {
		g.SetString(value)
		return
	}
	if g.Len() > acceptHeaderCap {
		return
	}
	g.SetString(g.String() + ", " + value)
}

// parseRangeHeader only recognizes single-interval "bytes=n-" and
// "bytes=n-m" forms; a comma anywhere in the header value means
// multi-range and the header is ignored entirely, per spec.md §4.5 and
// the decision recorded in SPEC_FULL.md §6 to additionally support the
// RFC 7233 suffix form "bytes=-n".
func parseRangeHeader(conn *Connection, value string) {
	if strings.Contains(value, ",") {
		return
	}

	eq := strings.IndexByte(value, '=')
	if eq < 0 {
		return
	}
	spec := value[eq+1:]

	dash := strings.IndexByte(spec, '-')
	if dash < 0 {
		return
	}

	firstStr := spec[:dash]
	lastStr := spec[dash+1:]

	if firstStr == "" {
		// Suffix range "bytes=-N": resolved against the file size later
		// in httprange.go, since the size isn't known yet here.
		n, err := strconv.ParseInt(lastStr, 10, 64)
		if err != nil || n < 0 {
			return
		}
		conn.gotRange = true
		conn.firstByteIndex = -1
		conn.lastByteIndex = n
		return
	}

	first, err := strconv.ParseInt(firstStr, 10, 64)
	if err != nil {
		return
	}
	if first < 0 {
		first = 0
	}

	last := int64(-1)
	if lastStr != "" {
		if n, err := strconv.ParseInt(lastStr, 10, 64); err == nil && n >= 0 {
			last = n
		}
	}

	conn.gotRange = true
	conn.firstByteIndex = first
	conn.lastByteIndex = last
}

func decideGzipAcceptance(conn *Connection) {
	ae := conn.acceptEncoding.String()
	if ae == "" {
		return
	}

	idx := strings.Index(ae, "gzip")
	if idx < 0 {
		return
	}

	rest := ae[idx:]
	comma := strings.IndexByte(rest, ',')
	qIdx := strings.Index(rest, "q=")

	qval := float64(0)
	if qIdx >= 0 {
		end := len(rest)
		if c := strings.IndexAny(rest[qIdx+2:], ", \t"); c >= 0 {
			end = qIdx + 2 + c
		}
		if v, err := strconv.ParseFloat(rest[qIdx+2:end], 64); err == nil {
			qval = v
		}
	}

	noQ := qIdx < 0
	qBeforeComma := comma < 0 || qIdx < comma
	if noQ || (qBeforeComma && qval > 0) {
		conn.gzipOK = true
	}
}

func disableKeepAliveForBadAgents(conn *Connection) {
	if !conn.doKeepAlive {
		return
	}
	ua := conn.userAgent.String()
	for _, bad := range badUserAgents {
		if strings.Contains(ua, bad) {
			conn.doKeepAlive = false
			return
		}
	}
}
