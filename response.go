package merecat

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/klauspost/compress/gzip"
	"github.com/valyala/fasthttp"
)

// statusTitles gives the reason phrase for every disposition spec.md
// §7 names, including libhttpd's non-standard 503 wording.
var statusTitles = map[int]string{
	fasthttp.StatusOK:                  "OK",
	fasthttp.StatusPartialContent:       "Partial Content",
	fasthttp.StatusMovedPermanently:     "Moved Permanently",
	fasthttp.StatusFound:                "Found",
	fasthttp.StatusNotModified:          "Not Modified",
	fasthttp.StatusBadRequest:           "Bad Request",
	fasthttp.StatusUnauthorized:         "Unauthorized",
	fasthttp.StatusForbidden:            "Forbidden",
	fasthttp.StatusNotFound:             "Not Found",
	fasthttp.StatusRequestedRangeNotSatisfiable: "Requested Range Not Satisfiable",
	fasthttp.StatusInternalServerError:  "Internal Error",
	fasthttp.StatusNotImplemented:       "Not Implemented",
	fasthttp.StatusServiceUnavailable:   "Service Temporarily Overloaded",
}

// errorForms is the printf-style body template per status, ported
// verbatim from libhttpd.c's err*form strings.
var errorForms = map[int]string{
	fasthttp.StatusBadRequest:           "Your request has bad syntax (%s) or is inherently impossible to satisfy.",
	fasthttp.StatusUnauthorized:         "Authorization required for the URL '%s'.",
	fasthttp.StatusForbidden:            "You do not have permission to get URL '%s' from this server.",
	fasthttp.StatusNotFound:             "The requested URL '%s' was not found on this server.",
	fasthttp.StatusInternalServerError:  "There was an unusual problem serving the requested URL '%s'.",
	fasthttp.StatusNotImplemented:       "The requested method '%s' is not implemented by this server.",
	fasthttp.StatusServiceUnavailable:   "The server is currently experiencing a high load and cannot process your request ('%s').",
	fasthttp.StatusRequestedRangeNotSatisfiable: "The requested byte range ('%s') cannot be satisfied.",
}

func statusText(code int) string {
	if t, ok := statusTitles[code]; ok {
		return t
	}
	return "Unknown"
}

// varyExtensions is the small set of types for which the composer adds
// Vary: Accept-Encoding (spec.md §4.8).
var varyExtensions = map[string]bool{
	".js": true, ".css": true, ".xml": true, ".html": true, ".gz": true,
}

// writeStatusLine emits "HTTP/<proto> <code> <reason>\r\n" and records
// the status on conn for access logging.
func writeStatusLine(conn *Connection, status int) {
	conn.status = status

	proto := "HTTP/1.0"
	if conn.oneOne {
		proto = "HTTP/1.1"
	}

	fmt.Fprintf(conn.rw, "%s %d %s\r\n", proto, status, statusText(status))
}

func writeHeader(conn *Connection, name, value string) {
	fmt.Fprintf(conn.rw, "%s: %s\r\n", name, value)
}

func finishHeaders(conn *Connection) {
	io.WriteString(conn.rw, "\r\n")
}

// writeCommonHeaders emits the headers mandatory on every response
// (spec.md §4.8): Date, Server, Connection, and — when non-2xx/3xx —
// the no-cache override.
func writeCommonHeaders(conn *Connection, status int) {
	writeHeader(conn, "Date", time.Now().UTC().Format(http11DateFormat))
	writeHeader(conn, "Server", "merecat")

	if status < 200 || status >= 400 {
		writeHeader(conn, "Cache-Control", "no-cache,no-store")
	} else if conn.server.config.maxAge > 0 {
		writeHeader(conn, "Cache-Control", fmt.Sprintf("max-age=%d", int(conn.server.config.maxAge.Seconds())))
	}

	if conn.doKeepAlive {
		writeHeader(conn, "Connection", "keep-alive")
	} else {
		writeHeader(conn, "Connection", "close")
	}
}

// http11DateFormat is RFC 1123 rendered in GMT, the wire format spec.md
// §6 requires for Date and Last-Modified.
const http11DateFormat = "Mon, 02 Jan 2006 15:04:05 GMT"

// sendError writes a complete HTML error response: an on-disk
// err<code>.html (vhost-specific, then server-wide) if one exists,
// else the built-in template. Ported from libhttpd.c's httpd_send_err
// / send_err_file.
func sendError(conn *Connection, status int, arg string) error {
	if conn.method == MethodPost || conn.method == MethodPut {
		if status == fasthttp.StatusUnauthorized || status >= 400 {
			conn.shouldLinger = true
		}
	}

	if body, ok := loadErrorPage(conn, status); ok {
		writeStatusLine(conn, status)
		writeCommonHeaders(conn, status)
		writeHeader(conn, "Content-Type", "text/html; charset="+conn.server.config.defaultCharset)
		writeHeader(conn, "Content-Length", strconv.Itoa(len(body)))
		if status == fasthttp.StatusUnauthorized {
			writeHeader(conn, "WWW-Authenticate", conn.wwwAuthenticate)
		}
		finishHeaders(conn)
		io.WriteString(conn.rw, body)
		return conn.rw.Flush()
	}

	form := errorForms[status]
	if form == "" {
		form = "The server encountered an error processing '%s'."
	}
	body := builtinErrorBody(status, fmt.Sprintf(form, defang(arg, 2000)))

	writeStatusLine(conn, status)
	writeCommonHeaders(conn, status)
	writeHeader(conn, "Content-Type", "text/html; charset="+conn.server.config.defaultCharset)
	writeHeader(conn, "Content-Length", strconv.Itoa(len(body)))
	if status == fasthttp.StatusUnauthorized {
		writeHeader(conn, "WWW-Authenticate", conn.wwwAuthenticate)
	}
	finishHeaders(conn)
	io.WriteString(conn.rw, body)

	return conn.rw.Flush()
}

func builtinErrorBody(status int, message string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "<!DOCTYPE html>\n<html><head><title>%d %s</title></head>\n", status, statusText(status))
	fmt.Fprintf(&b, "<body><h1>%d %s</h1>\n%s\n</body></html>\n", status, statusText(status), message)
	return b.String()
}

// loadErrorPage tries hostdir/ERR_DIR/err<status>.html, then the
// server-wide ERR_DIR/err<status>.html.
func loadErrorPage(conn *Connection, status int) (string, bool) {
	candidates := make([]string, 0, 2)
	if conn.hostDir.Len() > 0 {
		candidates = append(candidates, conn.hostDir.String()+"/errors/err"+strconv.Itoa(status)+".html")
	}
	candidates = append(candidates, conn.server.config.documentRoot+"/errors/err"+strconv.Itoa(status)+".html")

	for _, path := range candidates {
		data, err := os.ReadFile(path)
		if err == nil {
			return string(data), true
		}
	}
	return "", false
}

// compressionDecision implements the mod_headers table of spec.md
// §4.8: prefer an existing .gz sibling, else consider runtime gzip.
func compressionDecision(conn *Connection, path string, fi os.FileInfo, mimeType string) (gzPath string, policy compressionPolicy) {
	gzInfo, err := os.Stat(path + ".gz")
	if err == nil && !gzInfo.IsDir() && gzInfo.Mode().Perm()&0o004 != 0 &&
		!gzInfo.ModTime().Before(fi.ModTime()) && !hasEncoding(conn.encodings, "gzip") {
		return path + ".gz", compressionSibling
	}

	if !conn.gzipOK {
		return "", compressionNone
	}
	if !isCompressibleType(mimeType) {
		return "", compressionNone
	}
	if fi.Size() < 256 {
		return "", compressionNone
	}

	return "", compressionRuntime
}

func hasEncoding(encodings []string, name string) bool {
	for _, e := range encodings {
		if e == name {
			return true
		}
	}
	return false
}

func isCompressibleType(mimeType string) bool {
	return strings.HasPrefix(mimeType, "text/") || strings.HasPrefix(mimeType, "application/javascript")
}

// etagFor computes the MD5 of the file's bytes, spec.md §4.8's
// definition of ETag ("the MD5 of the mapped file bytes"). This server
// has no mmap cache, so it reads the file directly; acceptable for the
// small document trees this server is designed for.
func etagFor(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := md5.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}

	return `"` + hex.EncodeToString(h.Sum(nil)) + `"`, nil
}

// serveStaticFile writes the full response (headers plus body) for a
// regular file disposition: conditional evaluation, range slicing,
// compression, then the body itself. Ported from the composition
// logic in libhttpd.c's httpd_start_request /
// static/fs.go's serveContent, collapsed to this server's single
// streaming path (no memory-mapped cache).
func serveStaticFile(conn *Connection, path string, fi os.FileInfo) error {
	etag, err := etagFor(path)
	if err != nil {
		return sendError(conn, fasthttp.StatusInternalServerError, conn.decodedURL.String())
	}

	if conn.haveIfModSince && !fi.ModTime().Truncate(time.Second).After(conn.ifModifiedSince) {
		writeStatusLine(conn, fasthttp.StatusNotModified)
		writeCommonHeaders(conn, fasthttp.StatusNotModified)
		writeHeader(conn, "Last-Modified", fi.ModTime().UTC().Format(http11DateFormat))
		writeHeader(conn, "ETag", etag)
		finishHeaders(conn)
		return conn.rw.Flush()
	}

	gzPath, policy := compressionDecision(conn, path, fi, conn.mimeType)
	conn.compress = policy

	// A .gz sibling is a distinct byte stream from the original file, so
	// byte offsets computed against fi.Size() don't address it; serve it
	// in full rather than produce a Content-Range that doesn't match what
	// gets streamed (spec.md §4.8 doesn't define range-over-precompressed
	// semantics, so the sibling wins and the range request is dropped).
	if policy == compressionSibling {
		conn.gotRange = false
	}

	if conn.gotRange {
		if ir := conn.ifRange.String(); ir != "" {
			if !ifRangeMatches(ir, etag, fi.ModTime()) {
				conn.gotRange = false
			}
		}
	}

	if err := resolveRange(conn, fi.Size()); err != nil {
		if err == errNoOverlap {
			writeStatusLine(conn, fasthttp.StatusRequestedRangeNotSatisfiable)
			writeCommonHeaders(conn, fasthttp.StatusRequestedRangeNotSatisfiable)
			writeHeader(conn, "Content-Range", fmt.Sprintf("bytes */%d", fi.Size()))
			finishHeaders(conn)
			return conn.rw.Flush()
		}
	}

	status := fasthttp.StatusOK
	if conn.gotRange && conn.rangeIfOK {
		status = fasthttp.StatusPartialContent
	}

	writeStatusLine(conn, status)
	writeCommonHeaders(conn, status)
	writeHeader(conn, "Last-Modified", fi.ModTime().UTC().Format(http11DateFormat))
	writeHeader(conn, "Accept-Ranges", "bytes")
	writeHeader(conn, "ETag", etag)

	encodings := conn.encodings
	if policy == compressionSibling {
		encodings = append(append([]string{}, encodings...), "gzip")
	} else if policy == compressionRuntime && !hasEncoding(encodings, "gzip") {
		encodings = append(append([]string{}, encodings...), "gzip")
	}
	if len(encodings) > 0 {
		writeHeader(conn, "Content-Encoding", strings.Join(encodings, ", "))
	}

	if varyExtensions[extOf(path)] {
		writeHeader(conn, "Vary", "Accept-Encoding")
	}

	writeHeader(conn, "Content-Type", conn.mimeType)

	servePath := path
	serveSize := fi.Size()
	if policy == compressionSibling {
		servePath = gzPath
		if gzInfo, err := os.Stat(gzPath); err == nil {
			serveSize = gzInfo.Size()
		}
	}

	switch {
	case status == fasthttp.StatusPartialContent:
		writeHeader(conn, "Content-Range", fmt.Sprintf("bytes %d-%d/%d", conn.firstByteIndex, conn.lastByteIndex, fi.Size()))
		writeHeader(conn, "Content-Length", strconv.FormatInt(rangeContentLength(conn), 10))
	case policy != compressionRuntime:
		writeHeader(conn, "Content-Length", strconv.FormatInt(serveSize, 10))
	}

	finishHeaders(conn)

	if conn.method == MethodHead {
		return conn.rw.Flush()
	}

	return streamBody(conn, servePath, policy, status == fasthttp.StatusPartialContent)
}

func extOf(path string) string {
	if i := strings.LastIndexByte(path, '.'); i >= 0 {
		return path[i:]
	}
	return ""
}

func ifRangeMatches(ifRange, etag string, modTime time.Time) bool {
	if strings.HasPrefix(ifRange, `"`) || strings.HasPrefix(ifRange, "W/") {
		return ifRange == etag
	}
	t, ok := parseHTTPDate(ifRange)
	return ok && t.Unix() == modTime.Unix()
}

// streamBody writes the file body, honoring an already-decided range
// or runtime-gzip policy.
func streamBody(conn *Connection, path string, policy compressionPolicy, ranged bool) error {
	f, err := os.Open(path)
	if err != nil {
		return sendError(conn, fasthttp.StatusInternalServerError, conn.decodedURL.String())
	}
	defer f.Close()

	var src io.Reader = f
	if ranged {
		if _, err := f.Seek(conn.firstByteIndex, io.SeekStart); err != nil {
			return err
		}
		src = io.LimitReader(f, rangeContentLength(conn))
	}

	var w io.Writer = conn.rw
	var gz *gzip.Writer
	if policy == compressionRuntime {
		gz = gzip.NewWriter(conn.rw)
		w = gz
	}

	if _, err := io.Copy(w, src); err != nil {
		return err
	}
	if gz != nil {
		if err := gz.Close(); err != nil {
			return err
		}
	}

	return conn.rw.Flush()
}
