package merecat

import (
	"bufio"
	"hash/crc64"
	"io"
	"net"
	"os"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/mwjian/merecat/logger"
)

var crcTable = crc64.MakeTable(crc64.ISO)

// growBuf is a grow-only byte arena: spec.md §4.11 replaces libhttpd's
// malloc/realloc-per-field pattern with an explicit pool whose capacity
// only ever grows. First allocation is max(200, requested+100);
// subsequent growth is max(cap*2, requested*5/4); it never shrinks.
type growBuf struct {
	buf []byte
}

var (
	arenaGrowCount int64
	arenaGrowBytes int64
)

// ArenaStats returns the process-wide grow-only-arena allocation tally,
// for the diagnostic log line spec.md §4.11 calls for.
func ArenaStats() (grows int64, bytes int64) {
	return atomic.LoadInt64(&arenaGrowCount), atomic.LoadInt64(&arenaGrowBytes)
}

func (g *growBuf) ensure(requested int) {
	if cap(g.buf) >= requested {
		return
	}

	newCap := requested + 100
	if cap(g.buf) > 0 {
		newCap = cap(g.buf) * 2
		if alt := requested * 5 / 4; alt > newCap {
			newCap = alt
		}
	} else if newCap < 200 {
		newCap = 200
	}

	nb := make([]byte, len(g.buf), newCap)
	copy(nb, g.buf)

	atomic.AddInt64(&arenaGrowCount, 1)
	atomic.AddInt64(&arenaGrowBytes, int64(newCap-cap(g.buf)))

	g.buf = nb
}

func (g *growBuf) SetString(s string) {
	g.ensure(len(s))
	g.buf = append(g.buf[:0], s...)
}

func (g *growBuf) SetBytes(b []byte) {
	g.ensure(len(b))
	g.buf = append(g.buf[:0], b...)
}

func (g *growBuf) String() string { return string(g.buf) }
func (g *growBuf) Bytes() []byte  { return g.buf }
func (g *growBuf) Len() int       { return len(g.buf) }
func (g *growBuf) Reset()         { g.buf = g.buf[:0] }

// compressionPolicy is the decision mod_headers (spec.md §4.8) makes
// once per request.
type compressionPolicy int

const (
	compressionNone compressionPolicy = iota
	compressionSibling                // a readable .gz sibling exists; served as-is
	compressionRuntime                // recompressed on the fly
)

// authCacheEntry is the single-entry per-connection Basic-auth cache
// (spec.md §4.6): a matching (path, mtime, user) tuple skips the
// .htpasswd file scan; the password is still compared against the
// cached hash.
type authCacheEntry struct {
	path    string
	mtime   time.Time
	user    string
	crypted string
}

// Connection is the per-accepted-socket state described in spec.md §3.
// Every growable field lives in its own growBuf; mutable content-layer
// fields are cleared by Reset between keep-alive requests while the
// arenas themselves are retained and only ever grow.
type Connection struct {
	server *Server
	conn   net.Conn
	rw     *bufio.ReadWriter

	remoteAddr string
	remotePort int

	uniqID uint64

	logger *logger.Logger

	// --- request line & headers (filled by C5) ---
	method     Method
	encodedURL growBuf
	decodedURL growBuf
	query      growBuf
	protoMajor int
	protoMinor int
	oneOne     bool

	host           growBuf
	referer        growBuf
	userAgent      growBuf
	accept         growBuf
	acceptEncoding growBuf
	acceptLanguage growBuf
	cookie         growBuf
	contentType    growBuf
	authorization  growBuf
	xForwardedFor  growBuf
	contentLength  int64
	haveContentLen bool

	ifModifiedSince time.Time
	haveIfModSince  bool
	ifRange         growBuf
	rangeHeader     growBuf

	gzipOK      bool // Accept-Encoding allows gzip
	keepAliveOK bool // client requested keep-alive (or defaulted to it under 1.1)

	// --- resolution state (filled by C7) ---
	origFilename growBuf
	expnFilename growBuf
	pathInfo     growBuf
	hostDir      growBuf // vhost top-level directory, empty if vhost disabled
	tildeMapped  bool

	fileInfo  os.FileInfo
	mimeType  string
	encodings []string
	compress  compressionPolicy

	remoteUser      growBuf
	wwwAuthenticate string

	// --- range state (C8) ---
	gotRange       bool
	firstByteIndex int64
	lastByteIndex  int64
	rangeIfOK      bool

	// --- protocol/response state ---
	doKeepAlive   bool
	shouldLinger  bool
	sendFullMime  bool // suppress for HEAD/304 minimal responses
	status        int
	bytesToSend   int64
	bytesSent     int64
	responseBuf   growBuf

	authCache authCacheEntry

	aborted     bool
	handlePath  []string
	isindexArgs []string
}

// countingWriter tallies bytes written to the underlying socket into
// *n, so Connection.bytesSent (spec.md §3) can feed the access log
// without every response path having to track it itself.
type countingWriter struct {
	w io.Writer
	n *int64
}

func (cw *countingWriter) Write(p []byte) (int, error) {
	n, err := cw.w.Write(p)
	atomic.AddInt64(cw.n, int64(n))
	return n, err
}

// NewConnection wraps an accepted socket. The logger is request-scoped
// the way the teacher's ctx.go attaches one per Context.
func NewConnection(server *Server, c net.Conn) *Connection {
	host, portStr, _ := net.SplitHostPort(c.RemoteAddr().String())
	port, _ := strconv.Atoi(portStr)

	conn := &Connection{
		server:     server,
		conn:       c,
		remoteAddr: host,
		remotePort: port,
		logger:     logger.New().SetConfig(server.logConfig),
	}
	conn.rw = bufio.NewReadWriter(
		bufio.NewReaderSize(c, maxRequestHeaderSize),
		bufio.NewWriter(&countingWriter{w: c, n: &conn.bytesSent}),
	)

	return conn
}

// Reset clears the content-layer fields between keep-alive requests on
// the same connection. Buffers are retained at whatever capacity they
// grew to; only their logical length resets.
func (c *Connection) Reset() {
	c.method = ""
	c.encodedURL.Reset()
	c.decodedURL.Reset()
	c.query.Reset()
	c.host.Reset()
	c.referer.Reset()
	c.userAgent.Reset()
	c.accept.Reset()
	c.acceptEncoding.Reset()
	c.acceptLanguage.Reset()
	c.cookie.Reset()
	c.contentType.Reset()
	c.authorization.Reset()
	c.xForwardedFor.Reset()
	c.contentLength = 0
	c.haveContentLen = false
	c.haveIfModSince = false
	c.ifRange.Reset()
	c.rangeHeader.Reset()
	c.gzipOK = false
	c.keepAliveOK = false

	c.origFilename.Reset()
	c.expnFilename.Reset()
	c.pathInfo.Reset()
	c.hostDir.Reset()
	c.tildeMapped = false
	c.fileInfo = nil
	c.mimeType = ""
	c.encodings = nil
	c.compress = compressionNone
	c.remoteUser.Reset()
	c.wwwAuthenticate = ""

	c.gotRange = false
	c.firstByteIndex = 0
	c.lastByteIndex = 0
	c.rangeIfOK = false

	c.doKeepAlive = false
	c.shouldLinger = false
	c.sendFullMime = true
	c.status = 0
	c.bytesToSend = 0
	c.bytesSent = 0
	c.responseBuf.Reset()
	c.aborted = false
	c.handlePath = c.handlePath[:0]
	c.isindexArgs = nil

	c.uniqID = crc64.Checksum([]byte(strconv.FormatInt(time.Now().UnixNano(), 10)+c.remoteAddr), crcTable)
	c.logger = logger.New().SetConfig(c.server.logConfig).Add("conn_id", c.uniqID).Add("remote_addr", c.remoteAddr)
}

// Abort marks the connection so the pipeline stops calling further
// gates/handlers, mirroring the teacher's ctx.go Abort/Stop pair
// collapsed to the one meaning this server needs: a disposition has
// already been written.
func (c *Connection) Abort() { c.aborted = true }

func (c *Connection) debugHandler(name string) {
	if c.logger.IsDebug() {
		c.handlePath = append(c.handlePath, name)
	}
}

// Logger exposes the request-scoped structured logger.
func (c *Connection) Logger() *logger.Logger { return c.logger }
